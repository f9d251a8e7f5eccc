package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Gcluowenqiang/DevEnv-OneClick-Installer/internal/api"
	"github.com/Gcluowenqiang/DevEnv-OneClick-Installer/internal/log"
)

func runServe(g globals, args []string) int {
	if hasHelpFlag(args) {
		printServeHelp()
		return exitOK
	}
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	listen := fs.String("listen", "", "Address to listen on (overrides api.listen)")
	noElevate := fs.Bool("no-elevate", false, "Never schedule reboot deletion or request elevation")
	pos, err := parseFlags(fs, args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return exitUsage
	}
	if len(pos) > 0 {
		printServeHelp()
		return exitUsage
	}

	a, err := loadApp(g)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return exitFailure
	}
	defer a.close()

	if a.cfg.API.APIKey == "" {
		fmt.Fprintln(os.Stderr, "Error: api.api_key must be set to run the API server.")
		return exitFailure
	}
	addr := a.cfg.API.Listen
	if *listen != "" {
		addr = *listen
	}

	// The lock is held for the server's lifetime so CLI moves cannot race
	// relocations started over HTTP.
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

	// Closing the hub ends open event streams so shutdown is not held up.
	go func() {
		<-ctx.Done()
		a.hub.Close()
	}()

	server := api.New(api.Config{
		Listen: addr,
		APIKey: a.cfg.API.APIKey,
	}, coord, a.ledger, a.hub, log.WithComponent("api"))

	a.logger.Info("devenv serving", "listen", addr, "root", a.ledger.CurrentRoot().Path)
	if err := server.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return exitFailure
	}
	return exitOK
}

func printServeHelp() {
	fmt.Println("Usage: devenv serve [--listen ADDR] [--no-elevate]")
	fmt.Println()
	fmt.Println("Run the local control API. Requests need the configured api.api_key")
	fmt.Println("as a Bearer token. The relocation lock is held until the server exits.")
}
