// Package relocate moves the managed root to a new location: it migrates
// the files, rewrites references to the old location, records the new root
// and reclaims the old one.
package relocate

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/Gcluowenqiang/DevEnv-OneClick-Installer/internal/events"
	"github.com/Gcluowenqiang/DevEnv-OneClick-Installer/internal/ledger"
	"github.com/Gcluowenqiang/DevEnv-OneClick-Installer/internal/pathutil"
	"github.com/Gcluowenqiang/DevEnv-OneClick-Installer/internal/reaper"
	"github.com/Gcluowenqiang/DevEnv-OneClick-Installer/internal/storage"
)

// Deps are the collaborators of a Coordinator. Events and Logger are optional.
type Deps struct {
	Ledger   PathLedger
	Migrator FileMigrator
	Rewriter ReferenceRewriter
	Reaper   DirectoryReaper
	Sink     LogSink
	Events   Publisher
	Logger   *slog.Logger
}

// Request starts a relocation. An empty JobID is generated.
type Request struct {
	Destination string
	JobID       string
}

// Coordinator runs relocations one at a time.
type Coordinator struct {
	mu      sync.Mutex
	running atomic.Bool

	ledger   PathLedger
	migrator FileMigrator
	rewriter ReferenceRewriter
	reaper   DirectoryReaper
	sink     LogSink
	events   Publisher
	logger   *slog.Logger

	quiesceDelay time.Duration
	settleDelay  time.Duration
	checkLocal   func(path string) error
	flavor       pathutil.Flavor
	sleep        func(time.Duration)
	now          func() time.Time
}

// Option customises a Coordinator.
type Option func(*Coordinator)

// WithQuiesceDelay sets the pause after closing log handles.
func WithQuiesceDelay(d time.Duration) Option {
	return func(c *Coordinator) { c.quiesceDelay = d }
}

// WithSettleDelay sets the pause between reopening logs and reclamation.
func WithSettleDelay(d time.Duration) Option {
	return func(c *Coordinator) { c.settleDelay = d }
}

// WithFilesystemCheck replaces the local-filesystem check on destinations.
func WithFilesystemCheck(check func(path string) error) Option {
	return func(c *Coordinator) { c.checkLocal = check }
}

func New(d Deps, opts ...Option) (*Coordinator, error) {
	switch {
	case d.Ledger == nil:
		return nil, fmt.Errorf("coordinator requires a ledger")
	case d.Migrator == nil:
		return nil, fmt.Errorf("coordinator requires a file migrator")
	case d.Rewriter == nil:
		return nil, fmt.Errorf("coordinator requires a reference rewriter")
	case d.Reaper == nil:
		return nil, fmt.Errorf("coordinator requires a directory reaper")
	case d.Sink == nil:
		return nil, fmt.Errorf("coordinator requires a log sink")
	}
	c := &Coordinator{
		ledger:       d.Ledger,
		migrator:     d.Migrator,
		rewriter:     d.Rewriter,
		reaper:       d.Reaper,
		sink:         d.Sink,
		events:       d.Events,
		logger:       d.Logger,
		quiesceDelay: 300 * time.Millisecond,
		settleDelay:  1500 * time.Millisecond,
		checkLocal:   storage.ValidateLocalFilesystem,
		flavor:       pathutil.Native(),
		sleep:        time.Sleep,
		now:          time.Now,
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Running reports whether a relocation or cleanup is underway.
func (c *Coordinator) Running() bool { return c.running.Load() }

// Relocate moves the active root to req.Destination. The returned Result is
// never nil. The error is non-nil exactly when the status is Failed, and is
// one of *ValidationError, *FileMigrationError, *PersistenceError or
// ErrRelocationInProgress. Cancelling ctx only has an effect before file
// migration starts.
func (c *Coordinator) Relocate(ctx context.Context, req Request) (*Result, error) {
	if !c.mu.TryLock() {
		res := &Result{Destination: req.Destination, Status: StatusFailed, Phase: PhaseValidating, Err: ErrRelocationInProgress}
		res.Error = ErrRelocationInProgress.Error()
		res.describe()
		return res, ErrRelocationInProgress
	}
	defer c.mu.Unlock()
	c.running.Store(true)
	defer c.running.Store(false)

	jobID := req.JobID
	if jobID == "" {
		jobID = uuid.NewString()
	}
	logger := c.logger.With("job_id", jobID)
	src := c.ledger.CurrentRoot()
	res := &Result{
		JobID:       jobID,
		Source:      src.Path,
		Destination: strings.TrimSpace(req.Destination),
		StartedAt:   c.now().UTC(),
	}
	c.publish(events.TypeRelocationStarted, events.StartedPayload{JobID: jobID, Source: src.Path, Destination: res.Destination})

	c.enter(logger, res, PhaseValidating)
	dst, err := c.validate(src, res.Destination)
	if err != nil {
		return c.fail(logger, res, err)
	}
	res.Destination = dst.Path
	if err := ctx.Err(); err != nil {
		return c.fail(logger, res, fmt.Errorf("relocation cancelled before migration: %w", err))
	}
	for _, o := range c.ledger.Orphans() {
		logger.Info("earlier root still awaiting reclamation", "path", o.Path, "outcome", o.Outcome)
	}

	// From here on the job runs to a terminal state.
	work := context.WithoutCancel(ctx)

	c.enter(logger, res, PhaseMigratingFiles)
	if err := c.sink.CloseHandles(); err != nil {
		c.warn(logger, res, fmt.Sprintf("closing log files: %v", err))
	}
	c.sleep(c.quiesceDelay)

	var failedPaths []string
	for _, name := range ledger.Subdirs {
		sum := c.migrator.Migrate(work, src.Subdir(name), dst.Subdir(name))
		sum.Subdir = name
		res.Migration = append(res.Migration, sum)
		res.Moved += sum.Moved
		res.CopiedOnly += sum.CopiedOnly
		res.Failed += sum.Failed
		failedPaths = append(failedPaths, sum.FailedPaths()...)
		c.publish(events.TypeRelocationSubdir, events.SubdirPayload{
			JobID: jobID, Subdir: name, Moved: sum.Moved, CopiedOnly: sum.CopiedOnly, Failed: sum.Failed,
		})
	}
	if res.Failed > 0 {
		c.reopenLogs(logger, res, src.Logs())
		if len(failedPaths) > failureSampleSize {
			failedPaths = failedPaths[:failureSampleSize]
		}
		return c.fail(logger, res, &FileMigrationError{Failed: res.Failed, Sample: failedPaths})
	}
	if res.HasResidual() {
		logger.Warn("some source files were copied but are still in use", "copied_only", res.CopiedOnly)
	}

	c.enter(logger, res, PhaseRewritingReferences)
	envRes, err := c.rewriter.RewriteEnvironment(work, src, dst)
	res.References.EnvironmentVariables = envRes.Variables
	res.References.SearchPathEntries = envRes.SearchPathEntries
	if err != nil {
		c.warn(logger, res, fmt.Sprintf("environment rewrite incomplete: %v", err))
	}
	historyCount, err := c.rewriter.RewriteHistory(work, src, dst)
	res.References.HistoryRecords = historyCount
	if err != nil {
		c.warn(logger, res, fmt.Sprintf("history rewrite failed: %v", err))
	}

	c.enter(logger, res, PhasePersisting)
	if err := c.ledger.SetRoot(dst); err != nil {
		c.reopenLogs(logger, res, src.Logs())
		return c.fail(logger, res, &PersistenceError{Err: err})
	}

	c.enter(logger, res, PhaseReclaimingOldRoot)
	c.reopenLogs(logger, res, dst.Logs())
	c.sleep(c.settleDelay)
	rec := c.reaper.Reclaim(work, src.Path)
	res.Reclamation = &rec

	if rec.Outcome == reaper.Removed {
		res.Status = StatusDone
	} else {
		res.Status = StatusPartialSuccess
		if err := c.ledger.RecordOrphan(src.Path, rec.Outcome.String()); err != nil {
			c.warn(logger, res, fmt.Sprintf("recording %s for later cleanup: %v", src.Path, err))
		}
	}
	return c.finish(logger, res), nil
}

func (c *Coordinator) validate(src ledger.Root, destination string) (ledger.Root, error) {
	if destination == "" {
		return ledger.Root{}, &ValidationError{Reason: "destination is empty"}
	}
	if src.IsZero() {
		return ledger.Root{}, &ValidationError{Reason: "no managed root is active"}
	}
	dst, err := ledger.NewRoot(destination)
	if err != nil {
		return ledger.Root{}, &ValidationError{Reason: "destination path is invalid", Err: err}
	}
	if c.flavor.Equal(dst.Path, src.Path) {
		return ledger.Root{}, &ValidationError{Reason: "destination is unchanged"}
	}
	if _, inside := c.flavor.Within(dst.Path, src.Path); inside {
		return ledger.Root{}, &ValidationError{Reason: "destination is inside the current root"}
	}
	if _, contains := c.flavor.Within(src.Path, dst.Path); contains {
		return ledger.Root{}, &ValidationError{Reason: "destination contains the current root"}
	}
	if info, err := os.Stat(dst.Path); err == nil && !info.IsDir() {
		return ledger.Root{}, &ValidationError{Reason: "destination exists and is not a directory"}
	}
	if c.checkLocal != nil {
		if err := c.checkLocal(dst.Path); err != nil {
			return ledger.Root{}, &ValidationError{Reason: "destination filesystem is unsuitable", Err: err}
		}
	}
	if err := os.MkdirAll(filepath.Dir(dst.Path), 0o755); err != nil {
		return ledger.Root{}, &ValidationError{Reason: "cannot create destination parent", Err: err}
	}
	if err := os.MkdirAll(dst.Path, 0o755); err != nil {
		return ledger.Root{}, &ValidationError{Reason: "cannot create destination", Err: err}
	}
	return dst, nil
}

func (c *Coordinator) enter(logger *slog.Logger, res *Result, phase Phase) {
	res.Phase = phase
	logger.Info("relocation phase", "phase", string(phase))
	c.publish(events.TypeRelocationPhase, events.PhasePayload{JobID: res.JobID, Phase: string(phase)})
}

func (c *Coordinator) warn(logger *slog.Logger, res *Result, msg string) {
	res.warn(msg)
	logger.Warn(msg)
	c.publish(events.TypeRelocationWarning, events.WarningPayload{JobID: res.JobID, Message: msg})
}

func (c *Coordinator) reopenLogs(logger *slog.Logger, res *Result, dir string) {
	if err := c.sink.ReinitializeAt(dir); err != nil {
		c.warn(logger, res, fmt.Sprintf("reopening log file in %s: %v", dir, err))
	}
}

func (c *Coordinator) fail(logger *slog.Logger, res *Result, err error) (*Result, error) {
	res.Status = StatusFailed
	res.Err = err
	res.Error = err.Error()
	c.finish(logger, res)
	return res, err
}

func (c *Coordinator) finish(logger *slog.Logger, res *Result) *Result {
	res.FinishedAt = c.now().UTC()
	res.describe()
	attrs := []any{
		"status", string(res.Status),
		"phase", string(res.Phase),
		"moved", res.Moved,
		"copied_only", res.CopiedOnly,
		"failed", res.Failed,
	}
	if res.Status == StatusFailed {
		logger.Error("relocation failed", append(attrs, "error", res.Error)...)
	} else {
		logger.Info("relocation finished", attrs...)
	}
	c.publish(events.TypeRelocationCompleted, events.CompletedPayload{JobID: res.JobID, Status: string(res.Status), Summary: res.Summary})
	return res
}

func (c *Coordinator) publish(eventType string, data any) {
	if c.events != nil {
		c.events.Publish(eventType, data)
	}
}
