package log

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// DefaultPendingLimit bounds how much output is held while the sink is closed.
const DefaultPendingLimit = 1 << 20

// Sink is the process logging sink. It writes to a log file under the active
// root's logs directory and can release that file while the directory is
// moved. Output written while closed is held in memory and flushed into the
// next file opened by ReinitializeAt.
type Sink struct {
	mu           sync.Mutex
	console      io.Writer
	file         *os.File
	pending      bytes.Buffer
	pendingLimit int
	dropped      int
	now          func() time.Time
}

// NewSink returns a closed sink. console, when non-nil, receives a copy of
// every write.
func NewSink(console io.Writer) *Sink {
	return &Sink{
		console:      console,
		pendingLimit: DefaultPendingLimit,
		now:          time.Now,
	}
}

// LogFileName returns the file name used for a log opened at t.
func LogFileName(t time.Time) string {
	return "install_" + t.Format("20060102_150405") + ".log"
}

func (s *Sink) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.console != nil {
		_, _ = s.console.Write(p)
	}
	if s.file != nil {
		return s.file.Write(p)
	}
	if s.pending.Len()+len(p) > s.pendingLimit {
		s.dropped += len(p)
		return len(p), nil
	}
	return s.pending.Write(p)
}

// CloseHandles syncs and closes the current log file. Closing a closed sink
// is a no-op.
func (s *Sink) CloseHandles() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.file == nil {
		return nil
	}
	f := s.file
	s.file = nil
	syncErr := f.Sync()
	if err := f.Close(); err != nil {
		return fmt.Errorf("close log file %s: %w", f.Name(), err)
	}
	if syncErr != nil {
		return fmt.Errorf("sync log file %s: %w", f.Name(), syncErr)
	}
	return nil
}

// ReinitializeAt opens a fresh log file inside dir, closing any current one,
// and flushes output buffered while the sink was closed.
func (s *Sink) ReinitializeAt(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create log dir %s: %w", dir, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.file != nil {
		_ = s.file.Close()
		s.file = nil
	}
	name := filepath.Join(dir, LogFileName(s.now()))
	f, err := os.OpenFile(name, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open log file %s: %w", name, err)
	}
	s.file = f

	if s.pending.Len() > 0 {
		if _, err := s.pending.WriteTo(f); err != nil {
			return fmt.Errorf("flush buffered log output: %w", err)
		}
	}
	s.pending.Reset()
	if s.dropped > 0 {
		fmt.Fprintf(f, "{\"level\":\"WARN\",\"msg\":\"log output dropped while sink was closed\",\"bytes\":%d}\n", s.dropped)
		s.dropped = 0
	}
	return nil
}

// Path returns the open log file, or "" while closed.
func (s *Sink) Path() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return ""
	}
	return s.file.Name()
}
