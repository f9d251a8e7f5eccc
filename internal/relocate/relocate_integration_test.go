package relocate

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Gcluowenqiang/DevEnv-OneClick-Installer/internal/envstore"
	"github.com/Gcluowenqiang/DevEnv-OneClick-Installer/internal/events"
	"github.com/Gcluowenqiang/DevEnv-OneClick-Installer/internal/history"
	"github.com/Gcluowenqiang/DevEnv-OneClick-Installer/internal/ledger"
	"github.com/Gcluowenqiang/DevEnv-OneClick-Installer/internal/log"
	"github.com/Gcluowenqiang/DevEnv-OneClick-Installer/internal/migrate"
	"github.com/Gcluowenqiang/DevEnv-OneClick-Installer/internal/reaper"
	"github.com/Gcluowenqiang/DevEnv-OneClick-Installer/internal/rewrite"
)

// closedSinkMigrator logs through the sink while it is closed for the move.
type closedSinkMigrator struct {
	FileMigrator
	sink      *log.Sink
	logger    *slog.Logger
	openPaths []string
}

func (m *closedSinkMigrator) Migrate(ctx context.Context, oldDir, newDir string) migrate.Summary {
	m.openPaths = append(m.openPaths, m.sink.Path())
	m.logger.Info("during migration", "subdir", filepath.Base(oldDir))
	return m.FileMigrator.Migrate(ctx, oldDir, newDir)
}

func readLogs(t *testing.T, dir string) string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var b strings.Builder
	for _, e := range entries {
		data, err := os.ReadFile(filepath.Join(dir, e.Name()))
		require.NoError(t, err)
		b.Write(data)
	}
	return b.String()
}

func TestRelocateEndToEnd(t *testing.T) {
	ctx := context.Background()
	base := t.TempDir()
	src := ledger.Root{Path: filepath.Join(base, "DevEnv")}
	dst := ledger.Root{Path: filepath.Join(base, "tools", "DevEnv")}
	sink := log.NewSink(nil)
	logger := slog.New(slog.NewJSONHandler(sink, nil))

	led, err := ledger.Open(filepath.Join(base, "state", "ledger.yaml"), ledger.WithLogger(logger))
	require.NoError(t, err)
	require.NoError(t, led.SetRoot(src))

	for rel, content := range map[string]string{
		"apps/jdk/bin/java":        "#!java",
		"apps/nodejs/node":         "#!node",
		"downloads/jdk-21.zip":     "zip",
		"config/settings.json":     "{}",
		"logs/install_earlier.log": "old run",
	} {
		p := filepath.Join(src.Path, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	}

	hist := history.NewStore(src.HistoryDB())
	_, err = hist.Add(ctx, "JDK", "21", filepath.Join(src.Apps(), "jdk"))
	require.NoError(t, err)
	_, err = hist.Add(ctx, "Git", "2.44", filepath.Join(base, "elsewhere", "git"))
	require.NoError(t, err)

	sep := string(os.PathListSeparator)
	env := envstore.NewMemory(map[string]string{
		"JAVA_HOME":            filepath.Join(src.Apps(), "jdk"),
		"NODE_HOME":            filepath.Join(src.Apps(), "nodejs"),
		"DEVENVMANAGER_CONFIG": src.Path,
		"PATH":                 filepath.Join(src.Apps(), "jdk", "bin") + sep + "/usr/bin",
	})

	require.NoError(t, sink.ReinitializeAt(src.Logs()))
	logger.Info("before move")

	migrator := &closedSinkMigrator{
		FileMigrator: migrate.New(migrate.WithRetries(1, 0), migrate.WithLogger(logger)),
		sink:         sink,
		logger:       logger,
	}

	hub := events.NewHub(128)
	coord, err := New(Deps{
		Ledger:   led,
		Migrator: migrator,
		Rewriter: rewrite.New(env, rewrite.OpenHistory, rewrite.WithLogger(logger)),
		Reaper: reaper.New(
			reaper.WithDeferredDeleter(nil),
			reaper.WithElevator(nil),
			reaper.WithPassDelays(0, 0),
			reaper.WithLogger(logger),
		),
		Sink:   sink,
		Events: hub,
		Logger: logger,
	}, WithQuiesceDelay(0), WithSettleDelay(0), WithFilesystemCheck(nil))
	require.NoError(t, err)
	coord.sleep = func(time.Duration) {}

	res, err := coord.Relocate(ctx, Request{Destination: dst.Path})
	require.NoError(t, err)
	assert.Equal(t, StatusDone, res.Status, res.Summary)
	assert.Equal(t, 0, res.Failed)

	_, statErr := os.Stat(src.Path)
	assert.True(t, os.IsNotExist(statErr), "old root should be gone")
	got, err := os.ReadFile(filepath.Join(dst.Apps(), "jdk", "bin", "java"))
	require.NoError(t, err)
	assert.Equal(t, "#!java", string(got))

	assert.Equal(t, dst.Path, led.CurrentRoot().Path)
	assert.Empty(t, led.Orphans())

	javaHome, _, _ := env.Get("JAVA_HOME")
	assert.Equal(t, filepath.Join(dst.Apps(), "jdk"), javaHome)
	rootVar, _, _ := env.Get("DEVENVMANAGER_CONFIG")
	assert.Equal(t, dst.Path, rootVar)
	path, _, _ := env.Get("PATH")
	assert.True(t, strings.HasPrefix(path, filepath.Join(dst.Apps(), "jdk", "bin")+sep), path)
	assert.Equal(t, ReferenceCounts{EnvironmentVariables: 3, SearchPathEntries: 1, HistoryRecords: 1}, res.References)

	records, err := history.NewStore(dst.HistoryDB()).LoadAll(ctx)
	require.NoError(t, err)
	paths := map[string]string{}
	for _, r := range records {
		paths[r.Env] = r.Path
	}
	assert.Equal(t, filepath.Join(dst.Apps(), "jdk"), paths["JDK"])
	assert.Equal(t, filepath.Join(base, "elsewhere", "git"), paths["Git"])

	for _, p := range migrator.openPaths {
		assert.Empty(t, p, "log file must be closed while subdirectories move")
	}
	logPath := sink.Path()
	_, inNewLogs := coord.flavor.Within(logPath, dst.Logs())
	assert.True(t, inNewLogs, "log file %s should live under the new root", logPath)
	logger.Info("after move")
	require.NoError(t, sink.CloseHandles())

	logs := readLogs(t, dst.Logs())
	assert.Contains(t, logs, `"msg":"before move"`)
	assert.Contains(t, logs, `"msg":"during migration"`)
	assert.Contains(t, logs, `"msg":"relocation finished"`)
	assert.Contains(t, logs, `"msg":"after move"`)
	assert.Contains(t, logs, "old run", "earlier log files move with the root")

	var completed events.CompletedPayload
	evs := hub.SnapshotSince(0)
	require.NoError(t, evs[len(evs)-1].Decode(&completed))
	assert.Equal(t, string(StatusDone), completed.Status)
}
