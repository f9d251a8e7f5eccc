package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/Gcluowenqiang/DevEnv-OneClick-Installer/internal/doctor"
)

func runDoctor(g globals, args []string) int {
	if hasHelpFlag(args) {
		fmt.Println("Usage: devenv doctor [--json]")
		fmt.Println("Check the managed root, the variables and history that point at it, and pending old roots.")
		return exitOK
	}
	fs := flag.NewFlagSet("doctor", flag.ContinueOnError)
	jsonOut := fs.Bool("json", false, "Output as JSON")
	pos, err := parseFlags(fs, args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return exitUsage
	}
	if len(pos) > 0 {
		fmt.Fprintln(os.Stderr, "Usage: devenv doctor [--json]")
		return exitUsage
	}

	a, err := loadApp(g)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return exitFailure
	}
	defer a.close()

	var hist doctor.HistoryReader
	if store, err := a.history(); err == nil {
		hist = store
	}
	result := doctor.New(a.cfg, a.ledger, a.env, hist).Validate(context.Background())

	if *jsonOut {
		out, err := doctor.FormatJSON(result)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return exitFailure
		}
		fmt.Println(out)
	} else {
		fmt.Print(doctor.FormatHuman(result))
	}

	if !result.Valid {
		return exitFailure
	}
	return exitOK
}
