// Package rewrite updates state outside the managed root that embeds its
// absolute path: user environment variables, search paths and the
// installation history.
package rewrite

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Gcluowenqiang/DevEnv-OneClick-Installer/internal/history"
	"github.com/Gcluowenqiang/DevEnv-OneClick-Installer/internal/ledger"
	"github.com/Gcluowenqiang/DevEnv-OneClick-Installer/internal/pathutil"
)

// EnvironmentStore is the persistent user environment.
type EnvironmentStore interface {
	Get(name string) (string, bool, error)
	Set(name, value string) error
	Notify() error
}

// HistoryStore is the installation history ledger.
type HistoryStore interface {
	LoadAll(ctx context.Context) ([]history.Record, error)
	SaveAll(ctx context.Context, records []history.Record) error
}

// HistoryOpener returns the history ledger stored under root.
type HistoryOpener func(root ledger.Root) HistoryStore

// OpenHistory is the HistoryOpener for the SQLite ledger kept under a root.
func OpenHistory(root ledger.Root) HistoryStore {
	return history.NewStore(root.HistoryDB())
}

// EnvironmentResult counts environment updates.
type EnvironmentResult struct {
	Variables         int `json:"variables"`
	SearchPathEntries int `json:"search_path_entries"`
}

// Rewriter rewrites references from an old root to a new one.
type Rewriter struct {
	env        EnvironmentStore
	history    HistoryOpener
	bindings   []Binding
	rootVar    string
	searchVars []string
	flavor     pathutil.Flavor
	logger     *slog.Logger
}

// Option customises a Rewriter.
type Option func(*Rewriter)

// WithBindings replaces the toolchain table.
func WithBindings(b []Binding) Option {
	return func(r *Rewriter) { r.bindings = b }
}

// WithRootVariable sets the variable publishing the root. Empty disables it.
func WithRootVariable(name string) Option {
	return func(r *Rewriter) { r.rootVar = name }
}

// WithSearchPathVariables sets the list-valued variables to scan.
func WithSearchPathVariables(names []string) Option {
	return func(r *Rewriter) { r.searchVars = names }
}

// WithFlavor sets how stored paths are compared. Defaults to the host flavor.
func WithFlavor(f pathutil.Flavor) Option {
	return func(r *Rewriter) { r.flavor = f }
}

func WithLogger(logger *slog.Logger) Option {
	return func(r *Rewriter) { r.logger = logger }
}

// New returns a Rewriter. A nil history opener skips history rewriting.
func New(env EnvironmentStore, hist HistoryOpener, opts ...Option) *Rewriter {
	r := &Rewriter{
		env:        env,
		history:    hist,
		bindings:   DefaultBindings,
		rootVar:    DefaultRootVariable,
		searchVars: DefaultSearchPathVariables,
		flavor:     pathutil.Native(),
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RewriteEnvironment points bound variables and search-path entries that
// sit under oldRoot at the same place under newRoot. Unreadable variables
// are skipped. Write failures are joined into the returned error while the
// counts cover the writes that succeeded.
func (r *Rewriter) RewriteEnvironment(_ context.Context, oldRoot, newRoot ledger.Root) (EnvironmentResult, error) {
	var res EnvironmentResult
	var errs []error

	for _, b := range r.bindings {
		oldHome := r.flavor.Join(oldRoot.Path, ledger.SubdirApps, b.Folder)
		newHome := r.flavor.Join(newRoot.Path, ledger.SubdirApps, b.Folder)
		for _, name := range b.Vars {
			changed, err := r.rewriteVar(name, oldHome, newHome)
			if err != nil {
				errs = append(errs, err)
			}
			if changed {
				res.Variables++
			}
		}
	}

	if r.rootVar != "" {
		changed, err := r.rewriteVar(r.rootVar, oldRoot.Path, newRoot.Path)
		if err != nil {
			errs = append(errs, err)
		}
		if changed {
			res.Variables++
		}
	}

	for _, name := range r.searchVars {
		n, err := r.rewriteSearchPath(name, oldRoot.Path, newRoot.Path)
		if err != nil {
			errs = append(errs, err)
		}
		res.SearchPathEntries += n
	}

	return res, errors.Join(errs...)
}

func (r *Rewriter) rewriteVar(name, oldPrefix, newPrefix string) (bool, error) {
	value, ok, err := r.env.Get(name)
	if err != nil {
		r.logger.Warn("environment variable unreadable; skipped", "name", name, "error", err)
		return false, nil
	}
	if !ok || strings.TrimSpace(value) == "" {
		return false, nil
	}
	next, matched := r.flavor.Rebase(value, oldPrefix, newPrefix)
	if !matched || next == value {
		return false, nil
	}
	if err := r.env.Set(name, next); err != nil {
		return false, fmt.Errorf("set %s: %w", name, err)
	}
	r.logger.Info("environment variable rewritten", "name", name, "from", value, "to", next)
	r.notify()
	return true, nil
}

func (r *Rewriter) rewriteSearchPath(name, oldPrefix, newPrefix string) (int, error) {
	value, ok, err := r.env.Get(name)
	if err != nil {
		r.logger.Warn("search path unreadable; skipped", "name", name, "error", err)
		return 0, nil
	}
	if !ok || value == "" {
		return 0, nil
	}

	entries := r.flavor.SplitList(value)
	changed := 0
	for i, entry := range entries {
		trimmed := strings.TrimSpace(entry)
		if trimmed == "" {
			continue
		}
		next, matched := r.flavor.Rebase(trimmed, oldPrefix, newPrefix)
		if !matched || next == trimmed {
			continue
		}
		entries[i] = next
		changed++
	}
	if changed == 0 {
		return 0, nil
	}
	if err := r.env.Set(name, r.flavor.JoinList(entries)); err != nil {
		return 0, fmt.Errorf("set %s: %w", name, err)
	}
	r.logger.Info("search path rewritten", "name", name, "entries", changed)
	r.notify()
	return changed, nil
}

func (r *Rewriter) notify() {
	if err := r.env.Notify(); err != nil {
		r.logger.Warn("environment change broadcast failed", "error", err)
	}
}

// RewriteHistory rebases history records under oldRoot. The history ledger
// has already been migrated, so it is read from newRoot. Records are
// rewritten in memory and saved in a single write when any changed.
func (r *Rewriter) RewriteHistory(ctx context.Context, oldRoot, newRoot ledger.Root) (int, error) {
	if r.history == nil {
		return 0, nil
	}
	store := r.history(newRoot)
	records, err := store.LoadAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("load history: %w", err)
	}

	updated := make([]history.Record, len(records))
	copy(updated, records)
	changed := 0
	for i := range updated {
		next, matched := r.flavor.Rebase(updated[i].Path, oldRoot.Path, newRoot.Path)
		if !matched || next == updated[i].Path {
			continue
		}
		updated[i].Path = next
		changed++
	}
	if changed == 0 {
		return 0, nil
	}
	if err := store.SaveAll(ctx, updated); err != nil {
		return 0, fmt.Errorf("save history: %w", err)
	}
	r.logger.Info("history records rewritten", "count", changed)
	return changed, nil
}
