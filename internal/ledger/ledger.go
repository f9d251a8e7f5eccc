// Package ledger persists the active managed root and the old roots still
// awaiting reclamation.
package ledger

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Gcluowenqiang/DevEnv-OneClick-Installer/internal/pathutil"
)

const recordVersion = 1

// Orphan is a previous root whose reclamation did not complete.
type Orphan struct {
	Path       string    `yaml:"path" json:"path"`
	Outcome    string    `yaml:"outcome" json:"outcome"`
	RecordedAt time.Time `yaml:"recorded_at" json:"recorded_at"`
}

// Record is the persisted ledger document. Fields this version does not know
// about are kept in Extra and written back unchanged.
type Record struct {
	Version   int               `yaml:"version"`
	Root      string            `yaml:"root,omitempty"`
	Subdirs   map[string]string `yaml:"subdirs,omitempty"`
	UpdatedAt time.Time         `yaml:"updated_at,omitempty"`
	Orphans   []Orphan          `yaml:"orphans,omitempty"`
	Extra     map[string]any    `yaml:",inline"`
}

// Ledger is the read/write view of the persisted root record.
type Ledger struct {
	path       string
	mkdirTries int
	mkdirDelay time.Duration
	logger     *slog.Logger
	flavor     pathutil.Flavor
	now        func() time.Time
	mu         sync.RWMutex
	rec        Record
}

// Option customises a Ledger.
type Option func(*Ledger)

// WithMkdirRetry sets how often subdirectory creation is attempted on activation.
func WithMkdirRetry(tries int, delay time.Duration) Option {
	return func(l *Ledger) {
		if tries > 0 {
			l.mkdirTries = tries
		}
		l.mkdirDelay = delay
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(l *Ledger) { l.logger = logger }
}

// WithFlavor sets the path rules used to match orphan entries.
func WithFlavor(f pathutil.Flavor) Option {
	return func(l *Ledger) { l.flavor = f }
}

// Open loads the ledger file at path. A missing file yields an empty ledger.
func Open(path string, opts ...Option) (*Ledger, error) {
	if path == "" {
		return nil, fmt.Errorf("ledger path is empty")
	}
	l := &Ledger{
		path:       path,
		mkdirTries: 3,
		mkdirDelay: 200 * time.Millisecond,
		logger:     slog.Default(),
		flavor:     pathutil.Native(),
		now:        time.Now,
		rec:        Record{Version: recordVersion},
	}
	for _, opt := range opts {
		opt(l)
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return l, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read ledger %s: %w", path, err)
	}
	var rec Record
	if err := yaml.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("parse ledger %s: %w", path, err)
	}
	if rec.Version == 0 {
		rec.Version = recordVersion
	}
	l.rec = rec
	return l, nil
}

// Path returns the ledger file location.
func (l *Ledger) Path() string { return l.path }

// CurrentRoot returns the active root, or the zero Root when none is set.
func (l *Ledger) CurrentRoot() Root {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return Root{Path: l.rec.Root}
}

// SetRoot activates root. Its subdirectories are created first, then the
// record is replaced atomically. On error the previous record is untouched.
func (l *Ledger) SetRoot(root Root) error {
	if root.IsZero() {
		return fmt.Errorf("set root: path is empty")
	}
	if err := l.ensureSubdirs(root); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	next := l.rec
	next.Root = root.Path
	next.Subdirs = make(map[string]string, len(Subdirs))
	for _, name := range Subdirs {
		next.Subdirs[name] = name
	}
	next.UpdatedAt = l.now().UTC()
	next.Orphans = l.withoutOrphan(l.rec.Orphans, root.Path)

	if err := l.write(next); err != nil {
		return err
	}
	l.rec = next
	l.logger.Info("managed root activated", "root", root.Path, "ledger", l.path)
	return nil
}

// Orphans returns previous roots still awaiting reclamation.
func (l *Ledger) Orphans() []Orphan {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Orphan, len(l.rec.Orphans))
	copy(out, l.rec.Orphans)
	return out
}

// RecordOrphan remembers path as an unreclaimed old root with its last outcome.
func (l *Ledger) RecordOrphan(path, outcome string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	next := l.rec
	next.Orphans = append(l.withoutOrphan(l.rec.Orphans, path), Orphan{
		Path:       path,
		Outcome:    outcome,
		RecordedAt: l.now().UTC(),
	})
	if err := l.write(next); err != nil {
		return err
	}
	l.rec = next
	return nil
}

// ForgetOrphan drops path from the orphan list. Unknown paths are a no-op.
func (l *Ledger) ForgetOrphan(path string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	remaining := l.withoutOrphan(l.rec.Orphans, path)
	if len(remaining) == len(l.rec.Orphans) {
		return nil
	}
	next := l.rec
	next.Orphans = remaining
	if err := l.write(next); err != nil {
		return err
	}
	l.rec = next
	return nil
}

func (l *Ledger) ensureSubdirs(root Root) error {
	var lastErr error
	for attempt := 1; attempt <= l.mkdirTries; attempt++ {
		lastErr = nil
		for _, name := range Subdirs {
			if err := os.MkdirAll(root.Subdir(name), 0o755); err != nil {
				lastErr = fmt.Errorf("create %s: %w", root.Subdir(name), err)
				break
			}
		}
		if lastErr == nil {
			return nil
		}
		l.logger.Warn("subdirectory creation failed", "root", root.Path, "attempt", attempt, "error", lastErr)
		if attempt < l.mkdirTries {
			time.Sleep(l.mkdirDelay)
		}
	}
	return lastErr
}

// write replaces the ledger file via a temp file and rename.
func (l *Ledger) write(rec Record) error {
	data, err := yaml.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode ledger: %w", err)
	}
	dir := filepath.Dir(l.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create ledger dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".ledger-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp ledger: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp ledger: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp ledger: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp ledger: %w", err)
	}
	if err := os.Rename(tmpName, l.path); err != nil {
		return fmt.Errorf("replace ledger %s: %w", l.path, err)
	}
	return nil
}

func (l *Ledger) withoutOrphan(orphans []Orphan, path string) []Orphan {
	out := make([]Orphan, 0, len(orphans))
	for _, o := range orphans {
		if l.flavor.Equal(o.Path, path) {
			continue
		}
		out = append(out, o)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
