// Package reaper removes an old managed root, escalating from a plain
// recursive delete to reboot-deferred and elevated deletion.
package reaper

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/Gcluowenqiang/DevEnv-OneClick-Installer/internal/pathutil"
)

// Outcome is the fate of a reclaimed directory.
type Outcome int

const (
	Removed Outcome = iota
	PartiallyRemoved
	ScheduledOnReboot
	RequiresManualRemoval
)

func (o Outcome) String() string {
	switch o {
	case Removed:
		return "removed"
	case PartiallyRemoved:
		return "partially_removed"
	case ScheduledOnReboot:
		return "scheduled_on_reboot"
	case RequiresManualRemoval:
		return "requires_manual_removal"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Escalation tiers.
const (
	TierNone = iota
	TierDirect
	TierPermissionFix
	TierBruteForce
	TierDeferred
	TierElevated
)

// MaxRemaining bounds the residual entries reported back.
const MaxRemaining = 50

// Reclamation reports what happened to one path.
type Reclamation struct {
	Path        string   `json:"path"`
	Outcome     Outcome  `json:"-"`
	OutcomeName string   `json:"outcome"`
	Tier        int      `json:"tier"`
	Elevated    bool     `json:"elevated,omitempty"`
	Refused     bool     `json:"refused,omitempty"`
	Remaining   []string `json:"remaining,omitempty"`
	Err         error    `json:"-"`
	Error       string   `json:"error,omitempty"`
}

func (r Reclamation) finish(o Outcome, tier int) Reclamation {
	r.Outcome = o
	r.OutcomeName = o.String()
	r.Tier = tier
	if r.Err != nil {
		r.Error = r.Err.Error()
	}
	return r
}

// DeferredDeleter registers paths for deletion at next boot. Paths arrive
// children first.
type DeferredDeleter func(paths []string) error

// Elevator runs a privileged recursive delete of path.
type Elevator func(ctx context.Context, path string) error

type fsOps struct {
	lstat     func(string) (fs.FileInfo, error)
	readDir   func(string) ([]fs.DirEntry, error)
	remove    func(string) error
	removeAll func(string) error
	chmod     func(string, fs.FileMode) error
}

var osOps = fsOps{
	lstat:     os.Lstat,
	readDir:   os.ReadDir,
	remove:    os.Remove,
	removeAll: os.RemoveAll,
	chmod:     os.Chmod,
}

// Reaper implements directory reclamation.
type Reaper struct {
	flavor           pathutil.Flavor
	minPathLen       int
	protected        []string
	passDelays       [2]time.Duration
	elevationTimeout time.Duration
	allowDeferred    bool
	allowElevation   bool
	deferDelete      DeferredDeleter
	elevate          Elevator
	logger           *slog.Logger
	sleep            func(time.Duration)
	ops              fsOps
}

// Option customises a Reaper.
type Option func(*Reaper)

// WithMinPathLength sets the shortest path the reaper will touch.
func WithMinPathLength(n int) Option {
	return func(r *Reaper) { r.minPathLen = n }
}

// WithPassDelays sets the pauses before the second brute-force pass and
// before the final best-effort delete.
func WithPassDelays(first, second time.Duration) Option {
	return func(r *Reaper) { r.passDelays = [2]time.Duration{first, second} }
}

func WithElevationTimeout(d time.Duration) Option {
	return func(r *Reaper) { r.elevationTimeout = d }
}

// WithEscalation enables or disables tiers 4 and 5 by policy.
func WithEscalation(allowDeferred, allowElevation bool) Option {
	return func(r *Reaper) {
		r.allowDeferred = allowDeferred
		r.allowElevation = allowElevation
	}
}

// WithDeferredDeleter overrides the platform tier 4. nil makes it unavailable.
func WithDeferredDeleter(d DeferredDeleter) Option {
	return func(r *Reaper) { r.deferDelete = d }
}

// WithElevator overrides the platform tier 5. nil makes it unavailable.
func WithElevator(e Elevator) Option {
	return func(r *Reaper) { r.elevate = e }
}

// WithProtectedPaths adds paths that are never reclaimed.
func WithProtectedPaths(paths ...string) Option {
	return func(r *Reaper) { r.protected = append(r.protected, paths...) }
}

func WithFlavor(f pathutil.Flavor) Option {
	return func(r *Reaper) { r.flavor = f }
}

func WithLogger(logger *slog.Logger) Option {
	return func(r *Reaper) { r.logger = logger }
}

func New(opts ...Option) *Reaper {
	r := &Reaper{
		flavor:           pathutil.Native(),
		minPathLen:       5,
		passDelays:       [2]time.Duration{300 * time.Millisecond, 200 * time.Millisecond},
		elevationTimeout: 30 * time.Second,
		allowDeferred:    true,
		allowElevation:   true,
		deferDelete:      platformDeferredDeleter(),
		elevate:          platformElevator(),
		logger:           slog.Default(),
		sleep:            time.Sleep,
		ops:              osOps,
	}
	if home, err := os.UserHomeDir(); err == nil && home != "" {
		r.protected = append(r.protected, home)
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ErrUnsafePath is returned in a refused Reclamation.
var ErrUnsafePath = errors.New("refusing to delete unsafe path")

func (r *Reaper) checkSafe(path string) error {
	if path == "" || len(path) < r.minPathLen {
		return fmt.Errorf("%w %q: shorter than %d characters", ErrUnsafePath, path, r.minPathLen)
	}
	if r.flavor.IsRoot(path) {
		return fmt.Errorf("%w %q: filesystem root", ErrUnsafePath, path)
	}
	for _, p := range r.protected {
		if r.flavor.Equal(path, p) {
			return fmt.Errorf("%w %q: protected directory", ErrUnsafePath, path)
		}
	}
	return nil
}

// Reclaim removes path. It never fails outright: the returned Reclamation
// carries one of the four outcomes. A path that does not exist is Removed.
func (r *Reaper) Reclaim(ctx context.Context, path string) Reclamation {
	clean := r.flavor.Clean(path)
	rec := Reclamation{Path: clean}
	logger := r.logger.With("path", clean)

	if err := r.checkSafe(clean); err != nil {
		logger.Error("reclamation refused", "error", err)
		rec.Refused = true
		rec.Err = err
		return rec.finish(RequiresManualRemoval, TierNone)
	}
	if !r.exists(clean) {
		return rec.finish(Removed, TierNone)
	}

	if err := r.ops.removeAll(clean); err != nil {
		logger.Info("direct delete incomplete", "error", err)
	}
	if !r.exists(clean) {
		return rec.finish(Removed, TierDirect)
	}

	if err := r.removeTree(clean, clean); err != nil {
		logger.Info("permission-fix delete incomplete", "error", err)
	}
	if !r.exists(clean) {
		return rec.finish(Removed, TierPermissionFix)
	}

	r.bruteForce(clean)
	if !r.exists(clean) {
		return rec.finish(Removed, TierBruteForce)
	}

	rec.Remaining = r.residual(clean)
	logger.Warn("entries remain after brute force", "remaining", len(rec.Remaining))

	if !r.allowDeferred && !r.allowElevation {
		return rec.finish(PartiallyRemoved, TierBruteForce)
	}

	if r.allowDeferred && r.deferDelete != nil {
		err := r.deferDelete(r.deletionOrder(clean))
		if err == nil {
			logger.Info("deletion scheduled for next restart")
			return rec.finish(ScheduledOnReboot, TierDeferred)
		}
		logger.Warn("deferred deletion unavailable", "error", err)
		rec.Err = err
	}

	if r.allowElevation && r.elevate != nil {
		tctx, cancel := context.WithTimeout(ctx, r.elevationTimeout)
		err := r.elevate(tctx, clean)
		cancel()
		if err == nil && !r.exists(clean) {
			rec.Elevated = true
			rec.Remaining = nil
			rec.Err = nil
			logger.Info("removed with elevated privileges")
			return rec.finish(Removed, TierElevated)
		}
		if err == nil {
			err = fmt.Errorf("elevated delete finished but %s still exists", clean)
		}
		logger.Warn("elevated deletion failed", "error", err)
		rec.Err = err
		rec.Remaining = r.residual(clean)
		return rec.finish(RequiresManualRemoval, TierElevated)
	}

	return rec.finish(RequiresManualRemoval, TierBruteForce)
}

func (r *Reaper) exists(path string) bool {
	_, err := r.ops.lstat(path)
	return !errors.Is(err, fs.ErrNotExist)
}

// removeTree deletes path bottom-up. Each entry that resists deletion has
// its write protection, and that of its parent inside root, cleared before
// one retry.
func (r *Reaper) removeTree(root, path string) error {
	info, err := r.ops.lstat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	if info.IsDir() {
		entries, err := r.ops.readDir(path)
		if err != nil {
			_ = r.ops.chmod(path, 0o700)
			if entries, err = r.ops.readDir(path); err != nil {
				return fmt.Errorf("read %s: %w", path, err)
			}
		}
		var errs []error
		for _, e := range entries {
			if err := r.removeTree(root, filepath.Join(path, e.Name())); err != nil {
				errs = append(errs, err)
			}
		}
		if len(errs) > 0 {
			return errors.Join(errs...)
		}
	}
	return r.removeEntry(root, path, info)
}

func (r *Reaper) removeEntry(root, path string, info fs.FileInfo) error {
	err := r.ops.remove(path)
	if err == nil || errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if parent := filepath.Dir(path); path != root && parent != path {
		_ = r.ops.chmod(parent, 0o700)
	}
	if info.Mode()&fs.ModeSymlink == 0 {
		_ = r.ops.chmod(path, writable(info))
	}
	if err := r.ops.remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove %s: %w", path, err)
	}
	return nil
}

func writable(info fs.FileInfo) fs.FileMode {
	if info.IsDir() {
		return info.Mode().Perm() | 0o700
	}
	return info.Mode().Perm() | 0o200
}

// bruteForce removes children independently, twice, then makes one last
// best-effort delete.
func (r *Reaper) bruteForce(root string) {
	pass := func() {
		entries, err := r.ops.readDir(root)
		if err != nil {
			_ = r.ops.chmod(root, 0o700)
			if entries, err = r.ops.readDir(root); err != nil {
				return
			}
		}
		for _, e := range entries {
			child := filepath.Join(root, e.Name())
			if err := r.removeTree(root, child); err != nil {
				r.logger.Debug("entry resisted deletion", "path", child, "error", err)
			}
		}
		_ = r.ops.remove(root)
	}

	pass()
	if !r.exists(root) {
		return
	}
	r.sleep(r.passDelays[0])
	pass()
	if !r.exists(root) {
		return
	}
	r.sleep(r.passDelays[1])
	_ = r.ops.removeAll(root)
}

// residual lists up to MaxRemaining entries left under root.
func (r *Reaper) residual(root string) []string {
	var out []string
	_ = filepath.WalkDir(root, func(path string, _ fs.DirEntry, err error) error {
		if err != nil || path == root {
			return nil
		}
		out = append(out, path)
		if len(out) >= MaxRemaining {
			return filepath.SkipAll
		}
		return nil
	})
	return out
}

// deletionOrder returns every entry under root, children before parents,
// ending with root.
func (r *Reaper) deletionOrder(root string) []string {
	var all []string
	_ = filepath.WalkDir(root, func(path string, _ fs.DirEntry, err error) error {
		if err == nil {
			all = append(all, path)
		}
		return nil
	})
	for i, j := 0, len(all)-1; i < j; i, j = i+1, j-1 {
		all[i], all[j] = all[j], all[i]
	}
	if len(all) == 0 {
		return []string{root}
	}
	return all
}
