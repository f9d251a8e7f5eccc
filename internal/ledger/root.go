package ledger

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Managed subdirectory names, in migration order.
const (
	SubdirDownloads = "downloads"
	SubdirLogs      = "logs"
	SubdirConfig    = "config"
	SubdirApps      = "apps"
)

// Subdirs lists the managed subdirectories in the order they are migrated.
// Logs come before config and apps so the log sink is quiesced first.
var Subdirs = []string{SubdirDownloads, SubdirLogs, SubdirConfig, SubdirApps}

// HistoryDBName is the history database file inside the config subdirectory.
const HistoryDBName = "history.db"

// Root is a managed data root. The zero value means no root is active.
type Root struct {
	Path string
}

// NewRoot returns a Root for an absolute, cleaned form of path.
func NewRoot(path string) (Root, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return Root{}, fmt.Errorf("root path is empty")
	}
	abs, err := filepath.Abs(trimmed)
	if err != nil {
		return Root{}, fmt.Errorf("resolve root %q: %w", path, err)
	}
	return Root{Path: abs}, nil
}

func (r Root) IsZero() bool { return r.Path == "" }

func (r Root) String() string { return r.Path }

// Subdir returns root/<name>.
func (r Root) Subdir(name string) string { return filepath.Join(r.Path, name) }

func (r Root) Downloads() string { return r.Subdir(SubdirDownloads) }
func (r Root) Logs() string      { return r.Subdir(SubdirLogs) }
func (r Root) Config() string    { return r.Subdir(SubdirConfig) }
func (r Root) Apps() string      { return r.Subdir(SubdirApps) }

// HistoryDB is the path of the installation history database.
func (r Root) HistoryDB() string { return filepath.Join(r.Config(), HistoryDBName) }
