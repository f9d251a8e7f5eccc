package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"runtime/debug"
	"strings"
	"time"

	"github.com/mattn/go-isatty"

	"github.com/Gcluowenqiang/DevEnv-OneClick-Installer/internal/relocate"
)

var (
	version   = "0.1.0-dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

// Exit codes.
const (
	exitOK      = 0
	exitFailure = 1
	exitUsage   = 2
	exitPartial = 3
)

var errNoRoot = errors.New("no managed root is set; run `devenv root init <path>` first")

// globals are the flags accepted before the noun.
type globals struct {
	configPath string
}

func main() {
	os.Exit(runCLI(os.Args[1:]))
}

func runCLI(cliArgs []string) int {
	g, rest, err := parseGlobals(cliArgs)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return exitUsage
	}
	if len(rest) < 1 {
		printUsage(os.Stderr)
		return exitUsage
	}

	cmd := rest[0]
	args := rest[1:]

	switch cmd {
	case "root":
		return runRootNoun(g, args)
	case "history":
		return runHistoryNoun(g, args)
	case "env":
		return runEnvNoun(g, args)
	case "doctor":
		return runDoctor(g, args)
	case "serve":
		return runServe(g, args)
	case "watch":
		return runWatch(g, args)
	case "version", "--version":
		return runVersion(args)
	case "help", "--help", "-h":
		printUsage(os.Stdout)
		return exitOK
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		printUsage(os.Stderr)
		return exitUsage
	}
}

// parseGlobals consumes leading --config flags.
func parseGlobals(args []string) (globals, []string, error) {
	var g globals
	for len(args) > 0 {
		arg := args[0]
		switch {
		case arg == "--config" || arg == "-config":
			if len(args) < 2 {
				return g, nil, fmt.Errorf("%s requires a path", arg)
			}
			g.configPath = args[1]
			args = args[2:]
		case strings.HasPrefix(arg, "--config="):
			g.configPath = strings.TrimPrefix(arg, "--config=")
			args = args[1:]
		default:
			return g, args, nil
		}
	}
	return g, args, nil
}

type versionInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"build_time"`
}

func runVersion(args []string) int {
	fs := flag.NewFlagSet("version", flag.ContinueOnError)
	jsonOut := fs.Bool("json", false, "Output version metadata as JSON")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return exitUsage
	}
	if fs.NArg() > 0 {
		fmt.Fprintln(os.Stderr, "Usage: devenv version [--json]")
		return exitUsage
	}

	info := currentVersionInfo()

	if *jsonOut {
		return printJSON(info)
	}

	fmt.Printf("devenv %s\n", info.Version)
	fmt.Printf("commit: %s\n", info.Commit)
	fmt.Printf("built_at: %s\n", info.BuildTime)
	return exitOK
}

func currentVersionInfo() versionInfo {
	info := versionInfo{
		Version:   strings.TrimSpace(version),
		Commit:    "unknown",
		BuildTime: "unknown",
	}

	if info.Version == "" {
		info.Version = "0.0.0-dev"
	}

	resolvedCommit := strings.TrimSpace(gitCommit)
	if resolvedCommit == "" || resolvedCommit == "unknown" {
		resolvedCommit = strings.TrimSpace(readBuildSetting("vcs.revision"))
	}
	if resolvedCommit != "" {
		info.Commit = shortenCommit(resolvedCommit)
	}

	resolvedBuildTime := strings.TrimSpace(buildDate)
	if resolvedBuildTime == "" || resolvedBuildTime == "unknown" {
		resolvedBuildTime = strings.TrimSpace(readBuildSetting("vcs.time"))
	}
	if normalizedBuildTime, ok := normalizeBuildTimeUTC(resolvedBuildTime); ok {
		info.BuildTime = normalizedBuildTime
	}

	return info
}

func shortenCommit(commit string) string {
	if len(commit) <= 12 {
		return commit
	}
	return commit[:12]
}

func normalizeBuildTimeUTC(raw string) (string, bool) {
	if raw == "" || raw == "unknown" {
		return "", false
	}

	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return "", false
	}

	return t.UTC().Format(time.RFC3339), true
}

func readBuildSetting(key string) string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return ""
	}
	for _, setting := range info.Settings {
		if setting.Key == key {
			return setting.Value
		}
	}
	return ""
}

func printUsage(w io.Writer) {
	fmt.Fprint(w, `devenv - Manage and relocate the developer environment root

Usage:
  devenv [--config PATH] <noun> <action> [flags]

Root Commands:
  root show                 Show the active root and pending old roots
  root init <path>          Set the managed root for the first time
  root move <dest>          Relocate the managed root to <dest>
  root cleanup              Retry removal of old roots left by earlier moves
  root reclaim <path>       Remove one old root directory

History Commands:
  history list              List installed toolchains
  history add <env> <version> <path>
  history remove <path>
  history import <installed.json>

Environment:
  env show                  Show variables that reference the root

Diagnostics:
  doctor                    Check the root and everything that points at it
  serve                     Run the local control API
  watch                     Follow relocations running in 'devenv serve'

General:
  version                   Show version information
  help                      Show this help message

Exit codes: 0 success, 1 failure, 2 usage error, 3 partial success.
`)
}

func isHelpToken(token string) bool {
	return token == "help" || token == "--help" || token == "-h"
}

func hasHelpFlag(args []string) bool {
	for _, arg := range args {
		if arg == "--help" || arg == "-h" {
			return true
		}
	}
	return false
}

// parseFlags parses fs, accepting flags after positional arguments.
func parseFlags(fs *flag.FlagSet, args []string) ([]string, error) {
	var positional []string
	for {
		if err := fs.Parse(args); err != nil {
			return nil, err
		}
		args = fs.Args()
		if len(args) == 0 {
			return positional, nil
		}
		positional = append(positional, args[0])
		args = args[1:]
	}
}

func printJSON(v any) int {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to render JSON: %v\n", err)
		return exitFailure
	}
	fmt.Println(string(data))
	return exitOK
}

func interactive() bool {
	fd := os.Stdout.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func exitCodeFor(status relocate.Status) int {
	switch status {
	case relocate.StatusDone:
		return exitOK
	case relocate.StatusPartialSuccess:
		return exitPartial
	default:
		return exitFailure
	}
}
