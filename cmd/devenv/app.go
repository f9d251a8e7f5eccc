package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/Gcluowenqiang/DevEnv-OneClick-Installer/internal/config"
	"github.com/Gcluowenqiang/DevEnv-OneClick-Installer/internal/envstore"
	"github.com/Gcluowenqiang/DevEnv-OneClick-Installer/internal/events"
	"github.com/Gcluowenqiang/DevEnv-OneClick-Installer/internal/history"
	"github.com/Gcluowenqiang/DevEnv-OneClick-Installer/internal/ledger"
	"github.com/Gcluowenqiang/DevEnv-OneClick-Installer/internal/log"
	"github.com/Gcluowenqiang/DevEnv-OneClick-Installer/internal/migrate"
	"github.com/Gcluowenqiang/DevEnv-OneClick-Installer/internal/reaper"
	"github.com/Gcluowenqiang/DevEnv-OneClick-Installer/internal/relocate"
	"github.com/Gcluowenqiang/DevEnv-OneClick-Installer/internal/rewrite"
)

// newEnvStore is swapped in tests so they never touch the real user
// environment.
var newEnvStore = envstore.Default

// app holds the components shared by every command.
type app struct {
	cfg    *config.Config
	logger *slog.Logger
	sink   *log.Sink
	ledger *ledger.Ledger
	env    envstore.Store
	hub    *events.Hub
}

func loadApp(g globals) (*app, error) {
	cfg, err := config.Load(g.configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	var console io.Writer
	if cfg.Log.Console {
		console = os.Stderr
	}
	sink := log.NewSink(console)
	log.Setup(cfg.Log.Level, sink)
	logger := log.WithComponent("cli")

	led, err := ledger.Open(cfg.Ledger.Path, ledger.WithLogger(log.WithComponent("ledger")))
	if err != nil {
		return nil, err
	}
	if root := led.CurrentRoot(); !root.IsZero() {
		if err := sink.ReinitializeAt(root.Logs()); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: log file unavailable: %v\n", err)
		}
	}

	return &app{
		cfg:    cfg,
		logger: logger,
		sink:   sink,
		ledger: led,
		env:    newEnvStore(cfg.Environment.ProfilePath, cfg.Environment.SearchPathVariables, log.WithComponent("envstore")),
		hub:    events.NewHub(256),
	}, nil
}

func (a *app) close() {
	_ = a.sink.CloseHandles()
}

// history returns the history ledger of the active root.
func (a *app) history() (*history.Store, error) {
	root := a.ledger.CurrentRoot()
	if root.IsZero() {
		return nil, errNoRoot
	}
	return history.NewStore(root.HistoryDB()), nil
}

// coordinator wires a relocation coordinator from configuration. noElevate
// disables reaper tiers 4 and 5.
func (a *app) coordinator(noElevate bool) (*relocate.Coordinator, error) {
	m := a.cfg.Migration
	migrator := migrate.New(
		migrate.WithRetries(m.Retries, m.RetryDelay),
		migrate.WithVerify(m.VerifyCopies),
		migrate.WithLogger(log.WithComponent("migrate")),
	)

	e := a.cfg.Environment
	rewriter := rewrite.New(a.env, rewrite.OpenHistory,
		rewrite.WithBindings(a.cfg.Bindings()),
		rewrite.WithRootVariable(e.RootVariable),
		rewrite.WithSearchPathVariables(e.SearchPathVariables),
		rewrite.WithLogger(log.WithComponent("rewrite")),
	)

	r := a.cfg.Reaper
	allowDeferred, allowElevation := r.AllowDeferred, r.AllowElevation
	if noElevate {
		allowDeferred, allowElevation = false, false
	}
	reap := reaper.New(
		reaper.WithMinPathLength(r.MinPathLength),
		reaper.WithPassDelays(r.PassDelay, r.PassDelay*2/3),
		reaper.WithElevationTimeout(r.ElevationTimeout),
		reaper.WithEscalation(allowDeferred, allowElevation),
		reaper.WithLogger(log.WithComponent("reaper")),
	)

	return relocate.New(relocate.Deps{
		Ledger:   a.ledger,
		Migrator: migrator,
		Rewriter: rewriter,
		Reaper:   reap,
		Sink:     a.sink,
		Events:   a.hub,
		Logger:   log.WithComponent("relocate"),
	},
		relocate.WithQuiesceDelay(a.cfg.Relocation.QuiesceDelay),
		relocate.WithSettleDelay(a.cfg.Relocation.SettleDelay),
	)
}
