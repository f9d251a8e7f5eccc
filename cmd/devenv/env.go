package main

import (
	"flag"
	"fmt"
	"os"
)

type envEntry struct {
	Name     string `json:"name"`
	Value    string `json:"value"`
	Set      bool   `json:"set"`
	Software string `json:"software,omitempty"`
	Error    string `json:"error,omitempty"`
}

func runEnvNoun(g globals, args []string) int {
	if len(args) < 1 || isHelpToken(args[0]) || hasHelpFlag(args[1:]) {
		w := os.Stdout
		code := exitOK
		if len(args) < 1 {
			w, code = os.Stderr, exitUsage
		}
		fmt.Fprintln(w, "Usage: devenv env show [--json]")
		return code
	}
	if args[0] != "show" {
		fmt.Fprintf(os.Stderr, "Unknown env action: %s\n", args[0])
		return exitUsage
	}
	return runEnvShow(g, args[1:])
}

func runEnvShow(g globals, args []string) int {
	fs := flag.NewFlagSet("env show", flag.ContinueOnError)
	jsonOut := fs.Bool("json", false, "Output as JSON")
	pos, err := parseFlags(fs, args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return exitUsage
	}
	if len(pos) > 0 {
		fmt.Fprintln(os.Stderr, "Usage: devenv env show [--json]")
		return exitUsage
	}

	a, err := loadApp(g)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return exitFailure
	}
	defer a.close()

	var entries []envEntry
	add := func(name, software string) {
		e := envEntry{Name: name, Software: software}
		v, ok, err := a.env.Get(name)
		if err != nil {
			e.Error = err.Error()
		}
		e.Value, e.Set = v, ok
		entries = append(entries, e)
	}

	ec := a.cfg.Environment
	if ec.RootVariable != "" {
		add(ec.RootVariable, "")
	}
	for _, b := range a.cfg.Bindings() {
		for _, name := range b.Vars {
			add(name, b.Software)
		}
	}
	for _, name := range ec.SearchPathVariables {
		add(name, "")
	}

	if *jsonOut {
		return printJSON(entries)
	}
	for _, e := range entries {
		switch {
		case e.Error != "":
			fmt.Printf("%-22s <error: %s>\n", e.Name, e.Error)
		case !e.Set:
			fmt.Printf("%-22s <unset>\n", e.Name)
		default:
			fmt.Printf("%-22s %s\n", e.Name, e.Value)
		}
	}
	return exitOK
}
