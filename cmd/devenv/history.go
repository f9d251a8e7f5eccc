package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/Gcluowenqiang/DevEnv-OneClick-Installer/internal/history"
)

func runHistoryNoun(g globals, args []string) int {
	if len(args) < 1 {
		printHistoryNounHelp(os.Stderr)
		return exitUsage
	}
	if isHelpToken(args[0]) || hasHelpFlag(args[1:]) {
		printHistoryNounHelp(os.Stdout)
		return exitOK
	}

	action := args[0]
	actionArgs := args[1:]

	switch action {
	case "list":
		return runHistoryList(g, actionArgs)
	case "add":
		return runHistoryAdd(g, actionArgs)
	case "remove":
		return runHistoryRemove(g, actionArgs)
	case "import":
		return runHistoryImport(g, actionArgs)
	default:
		fmt.Fprintf(os.Stderr, "Unknown history action: %s\n", action)
		return exitUsage
	}
}

func printHistoryNounHelp(w *os.File) {
	fmt.Fprint(w, `Usage: devenv history <action> [flags]

Actions:
  list [--json]                       List installed toolchains
  add <env> <version> <path>          Record an installation
  remove <path>                       Forget the installation at <path>
  import <installed.json>             Import a legacy JSON history file
`)
}

// withHistory opens the app and the history ledger of the active root.
func withHistory(g globals, fn func(context.Context, *history.Store) int) int {
	a, err := loadApp(g)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return exitFailure
	}
	defer a.close()

	store, err := a.history()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return exitFailure
	}
	return fn(context.Background(), store)
}

func runHistoryList(g globals, args []string) int {
	fs := flag.NewFlagSet("history list", flag.ContinueOnError)
	jsonOut := fs.Bool("json", false, "Output as JSON")
	pos, err := parseFlags(fs, args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return exitUsage
	}
	if len(pos) > 0 {
		fmt.Fprintln(os.Stderr, "Usage: devenv history list [--json]")
		return exitUsage
	}

	return withHistory(g, func(ctx context.Context, store *history.Store) int {
		records, err := store.LoadAll(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return exitFailure
		}
		if *jsonOut {
			if records == nil {
				records = []history.Record{}
			}
			return printJSON(records)
		}
		if len(records) == 0 {
			fmt.Println("No installations recorded.")
			return exitOK
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ENV\tVERSION\tPATH\tINSTALLED")
		for _, r := range records {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", r.Env, r.Version, r.Path, r.InstalledAt.Format("2006-01-02 15:04"))
		}
		_ = w.Flush()
		return exitOK
	})
}

func runHistoryAdd(g globals, args []string) int {
	fs := flag.NewFlagSet("history add", flag.ContinueOnError)
	pos, err := parseFlags(fs, args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return exitUsage
	}
	if len(pos) != 3 {
		fmt.Fprintln(os.Stderr, "Usage: devenv history add <env> <version> <path>")
		return exitUsage
	}

	return withHistory(g, func(ctx context.Context, store *history.Store) int {
		rec, err := store.Add(ctx, pos[0], pos[1], pos[2])
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return exitFailure
		}
		fmt.Printf("Recorded %s %s at %s\n", rec.Env, rec.Version, rec.Path)
		return exitOK
	})
}

func runHistoryRemove(g globals, args []string) int {
	fs := flag.NewFlagSet("history remove", flag.ContinueOnError)
	pos, err := parseFlags(fs, args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return exitUsage
	}
	if len(pos) != 1 {
		fmt.Fprintln(os.Stderr, "Usage: devenv history remove <path>")
		return exitUsage
	}

	return withHistory(g, func(ctx context.Context, store *history.Store) int {
		removed, err := store.Remove(ctx, pos[0])
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return exitFailure
		}
		if !removed {
			fmt.Fprintf(os.Stderr, "No installation recorded at %s\n", pos[0])
			return exitFailure
		}
		fmt.Printf("Removed %s\n", pos[0])
		return exitOK
	})
}

func runHistoryImport(g globals, args []string) int {
	fs := flag.NewFlagSet("history import", flag.ContinueOnError)
	pos, err := parseFlags(fs, args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return exitUsage
	}
	if len(pos) != 1 {
		fmt.Fprintln(os.Stderr, "Usage: devenv history import <installed.json>")
		return exitUsage
	}

	return withHistory(g, func(ctx context.Context, store *history.Store) int {
		n, err := store.ImportLegacy(ctx, pos[0])
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return exitFailure
		}
		fmt.Printf("Imported %d records\n", n)
		return exitOK
	})
}
