package relocate

import (
	"context"

	"github.com/Gcluowenqiang/DevEnv-OneClick-Installer/internal/events"
	"github.com/Gcluowenqiang/DevEnv-OneClick-Installer/internal/ledger"
	"github.com/Gcluowenqiang/DevEnv-OneClick-Installer/internal/migrate"
	"github.com/Gcluowenqiang/DevEnv-OneClick-Installer/internal/reaper"
	"github.com/Gcluowenqiang/DevEnv-OneClick-Installer/internal/rewrite"
)

//go:generate mockgen -destination=mocks/mock_relocate.go -package=mocks github.com/Gcluowenqiang/DevEnv-OneClick-Installer/internal/relocate LogSink,PathLedger,FileMigrator,ReferenceRewriter,DirectoryReaper

// LogSink is the process logging sink whose file lives under the root.
type LogSink interface {
	CloseHandles() error
	ReinitializeAt(path string) error
}

// PathLedger persists the active root and unreclaimed old roots.
type PathLedger interface {
	CurrentRoot() ledger.Root
	SetRoot(root ledger.Root) error
	Orphans() []ledger.Orphan
	RecordOrphan(path, outcome string) error
	ForgetOrphan(path string) error
}

// FileMigrator moves one managed subdirectory.
type FileMigrator interface {
	Migrate(ctx context.Context, oldDir, newDir string) migrate.Summary
}

// ReferenceRewriter updates external references to the root.
type ReferenceRewriter interface {
	RewriteEnvironment(ctx context.Context, oldRoot, newRoot ledger.Root) (rewrite.EnvironmentResult, error)
	RewriteHistory(ctx context.Context, oldRoot, newRoot ledger.Root) (int, error)
}

// DirectoryReaper removes an old root.
type DirectoryReaper interface {
	Reclaim(ctx context.Context, path string) reaper.Reclamation
}

// Publisher receives advisory progress events.
type Publisher interface {
	Publish(eventType string, data any) events.Event
}
