// Package doctor checks the health of the managed root and of the state
// that refers to it.
package doctor

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"os"
	"strings"

	"github.com/Gcluowenqiang/DevEnv-OneClick-Installer/internal/config"
	"github.com/Gcluowenqiang/DevEnv-OneClick-Installer/internal/history"
	"github.com/Gcluowenqiang/DevEnv-OneClick-Installer/internal/ledger"
	"github.com/Gcluowenqiang/DevEnv-OneClick-Installer/internal/pathutil"
	"github.com/Gcluowenqiang/DevEnv-OneClick-Installer/internal/storage"
)

// Result holds the outcome of a validation run.
type Result struct {
	Valid    bool    `json:"valid"`
	Root     string  `json:"root,omitempty"`
	Errors   []Issue `json:"errors,omitempty"`
	Warnings []Issue `json:"warnings,omitempty"`
}

// Issue describes a single validation error or warning.
type Issue struct {
	Category string `json:"category"`
	Message  string `json:"message"`
	Field    string `json:"field,omitempty"`
}

// RootLedger is the read side of the path ledger.
type RootLedger interface {
	CurrentRoot() ledger.Root
	Orphans() []ledger.Orphan
}

// EnvironmentReader reads persistent user variables.
type EnvironmentReader interface {
	Get(name string) (string, bool, error)
}

// HistoryReader reads the installation history.
type HistoryReader interface {
	LoadAll(ctx context.Context) ([]history.Record, error)
}

// Doctor inspects the active root. env and hist may be nil.
type Doctor struct {
	cfg     *config.Config
	ledger  RootLedger
	env     EnvironmentReader
	history HistoryReader
	flavor  pathutil.Flavor
	fsCheck func(string) error
}

func New(cfg *config.Config, led RootLedger, env EnvironmentReader, hist HistoryReader) *Doctor {
	return &Doctor{
		cfg:     cfg,
		ledger:  led,
		env:     env,
		history: hist,
		flavor:  pathutil.Native(),
		fsCheck: storage.ValidateLocalFilesystem,
	}
}

// Validate runs all checks and returns a result.
func (d *Doctor) Validate(ctx context.Context) *Result {
	r := &Result{Valid: true}
	root := d.ledger.CurrentRoot()
	r.Root = root.Path

	d.validateConfig(r)
	if d.validateRoot(r, root) {
		d.validateFilesystem(r, root)
		d.validateEnvironment(r, root)
		d.validateHistory(ctx, r, root)
	}
	d.warnOrphans(r)

	r.Valid = len(r.Errors) == 0
	return r
}

func (d *Doctor) addError(r *Result, category, field, msg string) {
	r.Errors = append(r.Errors, Issue{Category: category, Field: field, Message: msg})
}

func (d *Doctor) addWarning(r *Result, category, field, msg string) {
	r.Warnings = append(r.Warnings, Issue{Category: category, Field: field, Message: msg})
}

// validateConfig flags settings that make relocation unsafe.
func (d *Doctor) validateConfig(r *Result) {
	if d.cfg == nil {
		return
	}
	if d.cfg.Ledger.Path == "" {
		d.addError(r, "config", "ledger.path", "ledger.path is required")
	}
	if d.cfg.Reaper.MinPathLength < 3 {
		d.addWarning(r, "config", "reaper.min_path_length",
			fmt.Sprintf("min_path_length %d lets the reaper act on very short paths", d.cfg.Reaper.MinPathLength))
	}
	if d.cfg.API.Listen != "" && d.cfg.API.APIKey == "" && !loopback(d.cfg.API.Listen) {
		d.addWarning(r, "api", "api.listen",
			fmt.Sprintf("API listens on %s without an api_key", d.cfg.API.Listen))
	}
}

func loopback(listen string) bool {
	host, _, err := net.SplitHostPort(listen)
	if err != nil {
		return false
	}
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

// validateRoot reports whether the root exists so later checks can run.
func (d *Doctor) validateRoot(r *Result, root ledger.Root) bool {
	if root.IsZero() {
		d.addError(r, "root", "", "no managed root is set; run `devenv root init <path>`")
		return false
	}
	info, err := os.Stat(root.Path)
	if err != nil {
		d.addError(r, "root", "", fmt.Sprintf("managed root %s is not accessible: %v", root.Path, err))
		return false
	}
	if !info.IsDir() {
		d.addError(r, "root", "", fmt.Sprintf("managed root %s is not a directory", root.Path))
		return false
	}
	for _, name := range ledger.Subdirs {
		if _, err := os.Stat(root.Subdir(name)); err != nil {
			d.addWarning(r, "root", name, fmt.Sprintf("subdirectory %s is missing", root.Subdir(name)))
		}
	}
	return true
}

func (d *Doctor) validateFilesystem(r *Result, root ledger.Root) {
	if d.fsCheck == nil {
		return
	}
	if err := d.fsCheck(root.Path); err != nil {
		d.addError(r, "root", "", err.Error())
	}
}

// warnOrphans lists old roots that earlier relocations could not remove.
func (d *Doctor) warnOrphans(r *Result) {
	for _, o := range d.ledger.Orphans() {
		if _, err := os.Stat(o.Path); os.IsNotExist(err) {
			d.addWarning(r, "orphans", o.Path, "old root is gone; `devenv root cleanup` will drop the record")
			continue
		}
		d.addWarning(r, "orphans", o.Path,
			fmt.Sprintf("old root still present (%s); run `devenv root cleanup`", o.Outcome))
	}
}

// validateEnvironment looks for variables still pointing at an old root or
// at toolchains that are not under the current one.
func (d *Doctor) validateEnvironment(r *Result, root ledger.Root) {
	if d.env == nil || d.cfg == nil {
		return
	}
	for _, b := range d.cfg.Bindings() {
		for _, name := range b.Vars {
			value, ok, err := d.env.Get(name)
			if err != nil {
				d.addWarning(r, "environment", name, fmt.Sprintf("cannot read: %v", err))
				continue
			}
			if !ok || value == "" {
				continue
			}
			if orphan, stale := d.underOrphan(value); stale {
				d.addWarning(r, "environment", name, fmt.Sprintf("points into old root %s", orphan))
				continue
			}
			if _, inRoot := d.flavor.Within(value, root.Path); inRoot {
				if _, err := os.Stat(value); err != nil {
					d.addWarning(r, "environment", name, fmt.Sprintf("%s does not exist", value))
				}
			}
		}
	}

	if name := d.cfg.Environment.RootVariable; name != "" {
		value, ok, err := d.env.Get(name)
		switch {
		case err != nil:
			d.addWarning(r, "environment", name, fmt.Sprintf("cannot read: %v", err))
		case !ok:
			d.addWarning(r, "environment", name, "not set")
		case !d.flavor.Equal(value, root.Path):
			d.addWarning(r, "environment", name, fmt.Sprintf("is %s, expected %s", value, root.Path))
		}
	}

	for _, name := range d.cfg.Environment.SearchPathVariables {
		value, ok, err := d.env.Get(name)
		if err != nil || !ok {
			continue
		}
		for _, entry := range d.flavor.SplitList(value) {
			if orphan, stale := d.underOrphan(strings.TrimSpace(entry)); stale {
				d.addWarning(r, "environment", name, fmt.Sprintf("entry %s points into old root %s", entry, orphan))
			}
		}
	}
}

func (d *Doctor) validateHistory(ctx context.Context, r *Result, root ledger.Root) {
	if d.history == nil {
		return
	}
	records, err := d.history.LoadAll(ctx)
	if err != nil {
		d.addError(r, "history", root.HistoryDB(), fmt.Sprintf("cannot read history: %v", err))
		return
	}
	for _, rec := range records {
		field := rec.Env + " " + rec.Version
		if orphan, stale := d.underOrphan(rec.Path); stale {
			d.addWarning(r, "history", field, fmt.Sprintf("path %s is under old root %s", rec.Path, orphan))
			continue
		}
		if _, err := os.Stat(rec.Path); os.IsNotExist(err) {
			d.addWarning(r, "history", field, fmt.Sprintf("path %s no longer exists", rec.Path))
		}
	}
}

func (d *Doctor) underOrphan(p string) (string, bool) {
	if p == "" {
		return "", false
	}
	for _, o := range d.ledger.Orphans() {
		if _, ok := d.flavor.Within(p, o.Path); ok {
			return o.Path, true
		}
	}
	return "", false
}

// FormatHuman returns a human-readable validation report.
func FormatHuman(r *Result) string {
	var b strings.Builder

	if r.Valid && len(r.Warnings) == 0 {
		fmt.Fprintf(&b, "Root %s is healthy.\n", r.Root)
		return b.String()
	}

	if r.Valid && len(r.Warnings) > 0 {
		fmt.Fprintf(&b, "Root %s is usable", r.Root)
		fmt.Fprintf(&b, " (%d warning(s))\n", len(r.Warnings))
	}

	if !r.Valid {
		fmt.Fprintf(&b, "Root check failed (%d error(s), %d warning(s))\n", len(r.Errors), len(r.Warnings))
	}

	for _, e := range r.Errors {
		if e.Field != "" {
			fmt.Fprintf(&b, "  ERROR [%s] %s: %s\n", e.Category, e.Field, e.Message)
		} else {
			fmt.Fprintf(&b, "  ERROR [%s] %s\n", e.Category, e.Message)
		}
	}
	for _, w := range r.Warnings {
		if w.Field != "" {
			fmt.Fprintf(&b, "  WARN  [%s] %s: %s\n", w.Category, w.Field, w.Message)
		} else {
			fmt.Fprintf(&b, "  WARN  [%s] %s\n", w.Category, w.Message)
		}
	}

	return b.String()
}

// FormatJSON returns the result as indented JSON.
func FormatJSON(r *Result) (string, error) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}
