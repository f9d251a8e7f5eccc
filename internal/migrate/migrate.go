// Package migrate moves one managed subdirectory from an old root to a new
// one, tolerating individual files that cannot be removed.
package migrate

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// Outcome classifies one migrated entry.
type Outcome int

const (
	// Moved means the destination holds the entry and the source is gone.
	Moved Outcome = iota
	// CopiedOnly means the destination holds a copy but the source could not
	// be removed, usually because another process holds it open.
	CopiedOnly
	// Failed means the entry could not be copied.
	Failed
)

func (o Outcome) String() string {
	switch o {
	case Moved:
		return "moved"
	case CopiedOnly:
		return "copied_only"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// MaxIssues bounds the per-subdirectory list of non-moved entries.
const MaxIssues = 50

// ItemResult is the outcome for a single file or directory entry.
type ItemResult struct {
	Source      string  `json:"source"`
	Destination string  `json:"destination"`
	Outcome     Outcome `json:"-"`
	OutcomeName string  `json:"outcome"`
	Err         error   `json:"-"`
	Error       string  `json:"error,omitempty"`
}

// Summary aggregates the migration of one subdirectory.
type Summary struct {
	Subdir      string       `json:"subdir"`
	Source      string       `json:"source"`
	Destination string       `json:"destination"`
	TreeMoved   bool         `json:"tree_moved"`
	Moved       int          `json:"moved"`
	CopiedOnly  int          `json:"copied_only"`
	Failed      int          `json:"failed"`
	Issues      []ItemResult `json:"issues,omitempty"`
}

// HasResidual reports whether copies were left behind in the source.
func (s Summary) HasResidual() bool { return s.CopiedOnly > 0 }

// FailedPaths lists the recorded sources that failed.
func (s Summary) FailedPaths() []string {
	var out []string
	for _, it := range s.Issues {
		if it.Outcome == Failed {
			out = append(out, it.Source)
		}
	}
	return out
}

func (s *Summary) record(item ItemResult) {
	switch item.Outcome {
	case Moved:
		s.Moved++
		return
	case CopiedOnly:
		s.CopiedOnly++
	case Failed:
		s.Failed++
	}
	item.OutcomeName = item.Outcome.String()
	if item.Err != nil {
		item.Error = item.Err.Error()
	}
	if len(s.Issues) < MaxIssues {
		s.Issues = append(s.Issues, item)
	}
}

// Migrator implements file migration for managed subdirectories.
type Migrator struct {
	retries    int
	retryDelay time.Duration
	verify     bool
	logger     *slog.Logger

	rename   func(oldpath, newpath string) error
	remove   func(name string) error
	copyFile func(src, dst string, mode fs.FileMode) error
	sleep    func(time.Duration)
}

// Option customises a Migrator.
type Option func(*Migrator)

// WithRetries sets how often removing a copied source is attempted.
func WithRetries(n int, delay time.Duration) Option {
	return func(m *Migrator) {
		if n > 0 {
			m.retries = n
		}
		m.retryDelay = delay
	}
}

// WithVerify toggles BLAKE3 comparison of each copy against its source.
func WithVerify(v bool) Option {
	return func(m *Migrator) { m.verify = v }
}

func WithLogger(logger *slog.Logger) Option {
	return func(m *Migrator) { m.logger = logger }
}

func New(opts ...Option) *Migrator {
	m := &Migrator{
		retries:    3,
		retryDelay: 500 * time.Millisecond,
		verify:     true,
		logger:     slog.Default(),
		rename:     os.Rename,
		remove:     os.Remove,
		copyFile:   copyFile,
		sleep:      time.Sleep,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Migrate moves oldDir to newDir. When newDir does not exist the whole tree
// is renamed in one step, falling back to copy and delete across volumes.
// Otherwise entries are merged one by one. A missing oldDir migrates nothing.
// A started migration ignores cancellation.
func (m *Migrator) Migrate(_ context.Context, oldDir, newDir string) Summary {
	sum := Summary{Subdir: filepath.Base(oldDir), Source: oldDir, Destination: newDir}
	logger := m.logger.With("subdir", sum.Subdir)

	info, err := os.Lstat(oldDir)
	if errors.Is(err, fs.ErrNotExist) {
		logger.Debug("nothing to migrate", "source", oldDir)
		return sum
	}
	if err != nil {
		sum.record(ItemResult{Source: oldDir, Destination: newDir, Outcome: Failed, Err: err})
		return sum
	}
	if !info.IsDir() {
		m.migrateFile(oldDir, newDir, info, &sum)
		return sum
	}

	if _, err := os.Lstat(newDir); errors.Is(err, fs.ErrNotExist) {
		if err := os.MkdirAll(filepath.Dir(newDir), 0o755); err != nil {
			sum.record(ItemResult{Source: oldDir, Destination: newDir, Outcome: Failed, Err: err})
			return sum
		}
		files := countFiles(oldDir)
		renameErr := m.rename(oldDir, newDir)
		if renameErr == nil {
			sum.TreeMoved = true
			sum.Moved = files
			logger.Info("subdirectory moved", "source", oldDir, "destination", newDir, "files", files)
			return sum
		}
		logger.Info("rename failed; copying instead", "source", oldDir, "error", renameErr)
		if err := os.Mkdir(newDir, info.Mode().Perm()|0o700); err != nil {
			sum.record(ItemResult{Source: oldDir, Destination: newDir, Outcome: Failed, Err: err})
			return sum
		}
	}

	m.mergeDir(oldDir, newDir, &sum)
	logger.Info("subdirectory merged",
		"source", oldDir,
		"destination", newDir,
		"moved", sum.Moved,
		"copied_only", sum.CopiedOnly,
		"failed", sum.Failed,
	)
	return sum
}

func (m *Migrator) mergeDir(src, dst string, sum *Summary) {
	entries, err := os.ReadDir(src)
	if err != nil {
		sum.record(ItemResult{Source: src, Destination: dst, Outcome: Failed, Err: fmt.Errorf("read directory: %w", err)})
		return
	}
	for _, e := range entries {
		s := filepath.Join(src, e.Name())
		d := filepath.Join(dst, e.Name())
		info, err := os.Lstat(s)
		if err != nil {
			sum.record(ItemResult{Source: s, Destination: d, Outcome: Failed, Err: err})
			continue
		}
		if info.IsDir() {
			if err := ensureDir(d, info.Mode().Perm()); err != nil {
				sum.record(ItemResult{Source: s, Destination: d, Outcome: Failed, Err: err})
				continue
			}
			m.mergeDir(s, d, sum)
			continue
		}
		m.migrateFile(s, d, info, sum)
	}
	if err := m.remove(src); err != nil && !errors.Is(err, fs.ErrNotExist) {
		m.logger.Debug("source directory left in place", "path", src, "error", err)
	}
}

func (m *Migrator) migrateFile(src, dst string, info fs.FileInfo, sum *Summary) {
	_, err := os.Lstat(dst)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		if err := m.copyEntry(src, dst, info); err != nil {
			_ = os.Remove(dst)
			sum.record(ItemResult{Source: src, Destination: dst, Outcome: Failed, Err: err})
			return
		}
	case err != nil:
		sum.record(ItemResult{Source: src, Destination: dst, Outcome: Failed, Err: err})
		return
	default:
		// The destination already has this entry; it wins.
	}

	if err := m.removeWithRetry(src); err != nil {
		m.logger.Warn("source kept after copy", "path", src, "error", err)
		sum.record(ItemResult{Source: src, Destination: dst, Outcome: CopiedOnly, Err: err})
		return
	}
	sum.record(ItemResult{Source: src, Destination: dst, Outcome: Moved})
}

func (m *Migrator) copyEntry(src, dst string, info fs.FileInfo) error {
	switch {
	case info.Mode()&fs.ModeSymlink != 0:
		target, err := os.Readlink(src)
		if err != nil {
			return fmt.Errorf("read symlink %q: %w", src, err)
		}
		if err := os.Symlink(target, dst); err != nil {
			return fmt.Errorf("create symlink %q: %w", dst, err)
		}
		return nil
	case info.Mode().IsRegular():
		if err := m.copyFile(src, dst, info.Mode().Perm()); err != nil {
			return err
		}
		_ = os.Chtimes(dst, info.ModTime(), info.ModTime())
		if m.verify {
			return verifyCopy(src, dst)
		}
		return nil
	default:
		return fmt.Errorf("unsupported file type for %q (%s)", src, info.Mode().Type())
	}
}

func (m *Migrator) removeWithRetry(path string) error {
	var err error
	for attempt := 1; attempt <= m.retries; attempt++ {
		err = m.remove(path)
		if err == nil || errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		if attempt < m.retries {
			m.sleep(m.retryDelay)
		}
	}
	return err
}

func ensureDir(path string, perm fs.FileMode) error {
	info, err := os.Lstat(path)
	if err == nil {
		if !info.IsDir() {
			return fmt.Errorf("destination %q exists and is not a directory", path)
		}
		return nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	if err := os.Mkdir(path, perm|0o700); err != nil {
		return fmt.Errorf("create directory %q: %w", path, err)
	}
	return nil
}

func countFiles(root string) int {
	n := 0
	_ = filepath.WalkDir(root, func(_ string, d fs.DirEntry, err error) error {
		if err == nil && !d.IsDir() {
			n++
		}
		return nil
	})
	return n
}
