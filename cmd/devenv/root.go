package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/Gcluowenqiang/DevEnv-OneClick-Installer/internal/events"
	"github.com/Gcluowenqiang/DevEnv-OneClick-Installer/internal/ledger"
	"github.com/Gcluowenqiang/DevEnv-OneClick-Installer/internal/lock"
	"github.com/Gcluowenqiang/DevEnv-OneClick-Installer/internal/reaper"
	"github.com/Gcluowenqiang/DevEnv-OneClick-Installer/internal/relocate"
	"github.com/Gcluowenqiang/DevEnv-OneClick-Installer/internal/storage"
	"github.com/Gcluowenqiang/DevEnv-OneClick-Installer/internal/tui"
)

func runRootNoun(g globals, args []string) int {
	if len(args) < 1 {
		printRootNounHelp(os.Stderr)
		return exitUsage
	}
	if isHelpToken(args[0]) {
		printRootNounHelp(os.Stdout)
		return exitOK
	}
	if hasHelpFlag(args[1:]) {
		printRootNounHelp(os.Stdout)
		return exitOK
	}

	action := args[0]
	actionArgs := args[1:]

	switch action {
	case "show":
		return runRootShow(g, actionArgs)
	case "init":
		return runRootInit(g, actionArgs)
	case "move":
		return runRootMove(g, actionArgs)
	case "cleanup":
		return runRootCleanup(g, actionArgs)
	case "reclaim":
		return runRootReclaim(g, actionArgs)
	default:
		fmt.Fprintf(os.Stderr, "Unknown root action: %s\n", action)
		return exitUsage
	}
}

func printRootNounHelp(w *os.File) {
	fmt.Fprint(w, `Usage: devenv root <action> [flags]

Actions:
  show [--json]                              Show the active root and pending old roots
  init <path>                                Set the managed root for the first time
  move <dest> [--json] [--plain] [--no-elevate]
                                             Relocate the managed root
  cleanup [--json] [--no-elevate]            Retry removal of recorded old roots
  reclaim <path> [--json] [--no-elevate]     Remove one old root directory
`)
}

type rootView struct {
	Root    string            `json:"root"`
	Subdirs map[string]string `json:"subdirs,omitempty"`
	Orphans []ledger.Orphan   `json:"orphans"`
}

func runRootShow(g globals, args []string) int {
	fs := flag.NewFlagSet("root show", flag.ContinueOnError)
	jsonOut := fs.Bool("json", false, "Output as JSON")
	pos, err := parseFlags(fs, args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return exitUsage
	}
	if len(pos) > 0 {
		fmt.Fprintln(os.Stderr, "Usage: devenv root show [--json]")
		return exitUsage
	}

	a, err := loadApp(g)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return exitFailure
	}
	defer a.close()

	root := a.ledger.CurrentRoot()
	view := rootView{Root: root.Path, Orphans: a.ledger.Orphans()}
	if !root.IsZero() {
		view.Subdirs = make(map[string]string, len(ledger.Subdirs))
		for _, name := range ledger.Subdirs {
			view.Subdirs[name] = root.Subdir(name)
		}
	}
	if view.Orphans == nil {
		view.Orphans = []ledger.Orphan{}
	}

	if *jsonOut {
		return printJSON(view)
	}

	if root.IsZero() {
		fmt.Println("No managed root is set.")
	} else {
		fmt.Printf("Root: %s\n", root.Path)
		for _, name := range ledger.Subdirs {
			fmt.Printf("  %-10s %s\n", name, view.Subdirs[name])
		}
	}
	if len(view.Orphans) > 0 {
		fmt.Println("Old roots awaiting removal:")
		for _, o := range view.Orphans {
			fmt.Printf("  %s (%s)\n", o.Path, o.Outcome)
		}
	}
	return exitOK
}

func runRootInit(g globals, args []string) int {
	fs := flag.NewFlagSet("root init", flag.ContinueOnError)
	pos, err := parseFlags(fs, args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return exitUsage
	}
	if len(pos) != 1 {
		fmt.Fprintln(os.Stderr, "Usage: devenv root init <path>")
		return exitUsage
	}

	root, err := ledger.NewRoot(pos[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return exitUsage
	}

	a, err := loadApp(g)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return exitFailure
	}
	defer a.close()

	lk, ok := acquireLock(a)
	if !ok {
		return exitFailure
	}
	defer func() { _ = lk.Release() }()

	current := a.ledger.CurrentRoot()
	if !current.IsZero() {
		if current.Path == root.Path {
			fmt.Printf("Root is already %s\n", root.Path)
			return exitOK
		}
		fmt.Fprintf(os.Stderr, "A root is already set (%s); use `devenv root move %s` instead.\n", current.Path, root.Path)
		return exitFailure
	}

	if err := storage.ValidateLocalFilesystem(root.Path); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return exitFailure
	}
	if err := a.ledger.SetRoot(root); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return exitFailure
	}
	if v := a.cfg.Environment.RootVariable; v != "" {
		if err := a.env.Set(v, root.Path); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: could not set %s: %v\n", v, err)
		} else if err := a.env.Notify(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: could not broadcast environment change: %v\n", err)
		}
	}
	if err := a.sink.ReinitializeAt(root.Logs()); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: log file unavailable: %v\n", err)
	}
	a.logger.Info("root initialized", "root", root.Path)

	fmt.Printf("Root set to %s\n", root.Path)
	return exitOK
}

func runRootMove(g globals, args []string) int {
	fs := flag.NewFlagSet("root move", flag.ContinueOnError)
	jsonOut := fs.Bool("json", false, "Output the result as JSON")
	plain := fs.Bool("plain", false, "Print progress lines instead of the interactive view")
	noElevate := fs.Bool("no-elevate", false, "Never schedule reboot deletion or request elevation")
	pos, err := parseFlags(fs, args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return exitUsage
	}
	if len(pos) != 1 {
		fmt.Fprintln(os.Stderr, "Usage: devenv root move <dest> [--json] [--plain] [--no-elevate]")
		return exitUsage
	}

	a, err := loadApp(g)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return exitFailure
	}
	defer a.close()

	lk, ok := acquireLock(a)
	if !ok {
		return exitFailure
	}
	defer func() { _ = lk.Release() }()

	coord, err := a.coordinator(*noElevate)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return exitFailure
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	req := relocate.Request{Destination: pos[0]}
	var res *relocate.Result
	switch {
	case *jsonOut:
		res, _ = coord.Relocate(ctx, req)
	case *plain || !interactive():
		res = moveWithPlainOutput(ctx, a.hub, coord, req)
	default:
		res = moveWithProgressView(ctx, a.hub, coord, req)
	}
	if res == nil {
		fmt.Fprintln(os.Stderr, "Error: relocation produced no result")
		return exitFailure
	}

	if *jsonOut {
		printJSON(res)
		return exitCodeFor(res.Status)
	}
	printRelocationResult(res)
	return exitCodeFor(res.Status)
}

// moveWithPlainOutput prints one line per progress event.
func moveWithPlainOutput(ctx context.Context, hub *events.Hub, coord *relocate.Coordinator, req relocate.Request) *relocate.Result {
	ch, cancel := hub.Subscribe()
	printed := make(chan struct{})
	go func() {
		defer close(printed)
		for e := range ch {
			if line := describeEvent(e); line != "" {
				fmt.Println(line)
			}
		}
	}()

	res, _ := coord.Relocate(ctx, req)
	cancel()
	<-printed
	return res
}

// moveWithProgressView runs the relocation under the interactive progress
// view. Leaving the view early does not stop a relocation that is already
// moving files.
func moveWithProgressView(ctx context.Context, hub *events.Hub, coord *relocate.Coordinator, req relocate.Request) *relocate.Result {
	ctx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()

	ch, cancel := hub.Subscribe()
	defer cancel()

	done := make(chan *relocate.Result, 1)
	go func() {
		res, _ := coord.Relocate(ctx, req)
		done <- res
	}()

	final, err := tea.NewProgram(tui.NewProgress(ch)).Run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Progress view failed: %v\n", err)
	}
	if m, ok := final.(tui.Model); ok && m.Interrupted() {
		cancelRun()
		fmt.Fprintln(os.Stderr, "Waiting for the relocation to reach a safe point...")
	}
	return <-done
}

func describeEvent(e events.Event) string {
	switch e.Type {
	case events.TypeRelocationStarted:
		var p events.StartedPayload
		if e.Decode(&p) == nil {
			return fmt.Sprintf("Relocating %s -> %s (job %s)", p.Source, p.Destination, p.JobID)
		}
	case events.TypeRelocationPhase:
		var p events.PhasePayload
		if e.Decode(&p) == nil {
			return fmt.Sprintf("  phase: %s", p.Phase)
		}
	case events.TypeRelocationSubdir:
		var p events.SubdirPayload
		if e.Decode(&p) == nil {
			return fmt.Sprintf("  %-10s moved=%d copied_only=%d failed=%d", p.Subdir, p.Moved, p.CopiedOnly, p.Failed)
		}
	case events.TypeRelocationWarning:
		var p events.WarningPayload
		if e.Decode(&p) == nil {
			return fmt.Sprintf("  warning: %s", p.Message)
		}
	case events.TypeReclamation:
		var p events.ReclamationPayload
		if e.Decode(&p) == nil {
			return fmt.Sprintf("  old root %s: %s", p.Path, p.Outcome)
		}
	}
	return ""
}

func printRelocationResult(res *relocate.Result) {
	out := os.Stdout
	if res.Status == relocate.StatusFailed {
		out = os.Stderr
	}
	fmt.Fprintln(out, res.Summary)
	for _, w := range res.Warnings {
		fmt.Fprintf(out, "  warning: %s\n", w)
	}
}

func runRootCleanup(g globals, args []string) int {
	fs := flag.NewFlagSet("root cleanup", flag.ContinueOnError)
	jsonOut := fs.Bool("json", false, "Output as JSON")
	noElevate := fs.Bool("no-elevate", false, "Never schedule reboot deletion or request elevation")
	pos, err := parseFlags(fs, args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return exitUsage
	}
	if len(pos) > 0 {
		fmt.Fprintln(os.Stderr, "Usage: devenv root cleanup [--json] [--no-elevate]")
		return exitUsage
	}

	return withCoordinator(g, *noElevate, func(ctx context.Context, coord *relocate.Coordinator) int {
		results, err := coord.ReclaimOrphans(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return exitFailure
		}
		if *jsonOut {
			if results == nil {
				results = []reaper.Reclamation{}
			}
			printJSON(results)
		} else if len(results) == 0 {
			fmt.Println("No old roots are waiting for removal.")
		}
		code := exitOK
		for _, r := range results {
			if !*jsonOut {
				printReclamation(r)
			}
			if r.Outcome != reaper.Removed {
				code = exitPartial
			}
		}
		return code
	})
}

func runRootReclaim(g globals, args []string) int {
	fs := flag.NewFlagSet("root reclaim", flag.ContinueOnError)
	jsonOut := fs.Bool("json", false, "Output as JSON")
	noElevate := fs.Bool("no-elevate", false, "Never schedule reboot deletion or request elevation")
	pos, err := parseFlags(fs, args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return exitUsage
	}
	if len(pos) != 1 {
		fmt.Fprintln(os.Stderr, "Usage: devenv root reclaim <path> [--json] [--no-elevate]")
		return exitUsage
	}

	return withCoordinator(g, *noElevate, func(ctx context.Context, coord *relocate.Coordinator) int {
		r, err := coord.ReclaimPath(ctx, pos[0])
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return exitFailure
		}
		if *jsonOut {
			printJSON(r)
		} else {
			printReclamation(r)
		}
		switch {
		case r.Outcome == reaper.Removed:
			return exitOK
		case r.Refused:
			return exitFailure
		default:
			return exitPartial
		}
	})
}

// withCoordinator loads the app, takes the relocation lock and runs fn.
func withCoordinator(g globals, noElevate bool, fn func(context.Context, *relocate.Coordinator) int) int {
	a, err := loadApp(g)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return exitFailure
	}
	defer a.close()

	lk, ok := acquireLock(a)
	if !ok {
		return exitFailure
	}
	defer func() { _ = lk.Release() }()

	coord, err := a.coordinator(noElevate)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return exitFailure
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return fn(ctx, coord)
}

func printReclamation(r reaper.Reclamation) {
	switch r.Outcome {
	case reaper.Removed:
		fmt.Printf("%s: removed\n", r.Path)
	case reaper.ScheduledOnReboot:
		fmt.Printf("%s: will be deleted at the next restart\n", r.Path)
	default:
		fmt.Printf("%s: %s\n", r.Path, r.OutcomeName)
		if r.Error != "" {
			fmt.Printf("  error: %s\n", r.Error)
		}
		for _, p := range r.Remaining {
			fmt.Printf("  still present: %s\n", p)
		}
	}
}

// acquireLock takes the cross-process relocation lock, printing why it
// could not.
func acquireLock(a *app) (*lock.RelocationLock, bool) {
	lk, err := lock.Acquire(lock.PathFor(a.cfg.Ledger.Path))
	if err != nil {
		if errors.Is(err, lock.ErrLocked) {
			fmt.Fprintf(os.Stderr, "Another devenv process is relocating or cleaning up; try again when it finishes (%v).\n", err)
		} else {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		return nil, false
	}
	return lk, true
}
