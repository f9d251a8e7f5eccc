package main

import (
	"flag"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/Gcluowenqiang/DevEnv-OneClick-Installer/internal/tui"
)

func runWatch(g globals, args []string) int {
	if hasHelpFlag(args) {
		printWatchHelp()
		return exitOK
	}
	fs := flag.NewFlagSet("watch", flag.ContinueOnError)
	apiURL := fs.String("api-url", "", "API URL (default: derived from api.listen)")
	apiKey := fs.String("api-key", os.Getenv("DEVENV_API_KEY"), "API Bearer Token")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return exitUsage
	}

	url, key := *apiURL, *apiKey
	if url == "" || key == "" {
		a, err := loadApp(g)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return exitFailure
		}
		if url == "" {
			url = "http://" + a.cfg.API.Listen
		}
		if key == "" {
			key = a.cfg.API.APIKey
		}
		a.close()
	}
	if key == "" {
		fmt.Fprintln(os.Stderr, "Error: API key required. Use --api-key, DEVENV_API_KEY or api.api_key.")
		return exitFailure
	}

	if _, err := tea.NewProgram(tui.NewWatch(url, key)).Run(); err != nil {
		fmt.Fprintf(os.Stderr, "TUI error: %v\n", err)
		return exitFailure
	}
	return exitOK
}

func printWatchHelp() {
	fmt.Println("Usage: devenv watch [--api-url URL] [--api-key KEY]")
	fmt.Println()
	fmt.Println("Follow relocation progress from a running 'devenv serve'.")
	fmt.Println()
	fmt.Println("Flags:")
	fmt.Println("  --api-url URL    API URL (default: http://<api.listen>)")
	fmt.Println("  --api-key KEY    API Bearer Token (or DEVENV_API_KEY env var)")
	fmt.Println()
	fmt.Println("Keybindings:")
	fmt.Println("  q, Ctrl+C        Quit")
}
