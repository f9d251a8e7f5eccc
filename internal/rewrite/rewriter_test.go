package rewrite

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Gcluowenqiang/DevEnv-OneClick-Installer/internal/envstore"
	"github.com/Gcluowenqiang/DevEnv-OneClick-Installer/internal/history"
	"github.com/Gcluowenqiang/DevEnv-OneClick-Installer/internal/ledger"
	"github.com/Gcluowenqiang/DevEnv-OneClick-Installer/internal/pathutil"
)

var (
	winOld = ledger.Root{Path: `C:\Users\u\DevEnvManager`}
	winNew = ledger.Root{Path: `D:\Tools\DevEnvManager`}
)

func newTestSlogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

type fakeHistory struct {
	records []history.Record
	saves   int
	saveErr error
}

func (f *fakeHistory) LoadAll(context.Context) ([]history.Record, error) {
	out := make([]history.Record, len(f.records))
	copy(out, f.records)
	return out, nil
}

func (f *fakeHistory) SaveAll(_ context.Context, records []history.Record) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.saves++
	f.records = records
	return nil
}

func TestRewriteEnvironmentWindowsScenario(t *testing.T) {
	env := envstore.NewMemory(map[string]string{
		"JAVA_HOME":            `C:\Users\u\DevEnvManager\apps\jdk`,
		"M2_HOME":              `C:\Users\u\DevEnvManager\apps\maven\apache-maven-3.9.6`,
		"MAVEN_HOME":           `c:\users\u\devenvmanager\apps\maven\apache-maven-3.9.6`,
		"GOPATH":               `C:\Users\u\go`,
		"DEVENVMANAGER_CONFIG": `C:\Users\u\DevEnvManager`,
		"PATH":                 `C:\Windows\system32;C:\Users\u\DevEnvManager\apps\jdk\bin;;C:\Users\u\DevEnvManager\apps\nodejs`,
	})
	r := New(env, nil, WithFlavor(pathutil.Windows), WithLogger(newTestSlogger(&bytes.Buffer{})))

	res, err := r.RewriteEnvironment(context.Background(), winOld, winNew)
	require.NoError(t, err)

	assert.Equal(t, 4, res.Variables)
	assert.Equal(t, 2, res.SearchPathEntries)

	get := func(name string) string {
		v, _, err := env.Get(name)
		require.NoError(t, err)
		return v
	}
	assert.Equal(t, `D:\Tools\DevEnvManager\apps\jdk`, get("JAVA_HOME"))
	assert.Equal(t, `D:\Tools\DevEnvManager\apps\maven\apache-maven-3.9.6`, get("M2_HOME"))
	assert.Equal(t, `D:\Tools\DevEnvManager\apps\maven\apache-maven-3.9.6`, get("MAVEN_HOME"))
	assert.Equal(t, `C:\Users\u\go`, get("GOPATH"))
	assert.Equal(t, `D:\Tools\DevEnvManager`, get("DEVENVMANAGER_CONFIG"))
	assert.Equal(t, `C:\Windows\system32;D:\Tools\DevEnvManager\apps\jdk\bin;;D:\Tools\DevEnvManager\apps\nodejs`, get("PATH"))
	assert.Equal(t, 5, env.Notifications(), "one broadcast per successful write")
}

func TestRewriteEnvironmentNothingToDo(t *testing.T) {
	env := envstore.NewMemory(map[string]string{"JAVA_HOME": "/usr/lib/jvm/java-17", "PATH": "/usr/bin:/bin"})
	r := New(env, nil, WithFlavor(pathutil.Unix), WithLogger(newTestSlogger(&bytes.Buffer{})))

	res, err := r.RewriteEnvironment(context.Background(), ledger.Root{Path: "/home/u/devenv"}, ledger.Root{Path: "/data/devenv"})
	require.NoError(t, err)
	assert.Equal(t, EnvironmentResult{}, res)
	assert.Zero(t, env.Notifications())
}

func TestRewriteEnvironmentSkipsUnreadableAndReportsWriteFailures(t *testing.T) {
	env := envstore.NewMemory(map[string]string{
		"JAVA_HOME":   "/home/u/devenv/apps/jdk",
		"NODE_HOME":   "/home/u/devenv/apps/nodejs",
		"PYTHON_HOME": "/home/u/devenv/apps/python/3.12",
	})
	env.FailGet("JAVA_HOME", errors.New("access denied"))
	env.FailSet("NODE_HOME", errors.New("read-only hive"))

	var logs bytes.Buffer
	r := New(env, nil, WithFlavor(pathutil.Unix), WithLogger(newTestSlogger(&logs)))
	res, err := r.RewriteEnvironment(context.Background(), ledger.Root{Path: "/home/u/devenv"}, ledger.Root{Path: "/data/devenv"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "NODE_HOME")
	assert.Equal(t, 1, res.Variables)
	v, _, _ := env.Get("PYTHON_HOME")
	assert.Equal(t, "/data/devenv/apps/python/3.12", v)
	assert.Contains(t, logs.String(), "environment variable unreadable")
}

func TestRewriteEnvironmentCustomBindings(t *testing.T) {
	env := envstore.NewMemory(map[string]string{"GRADLE_HOME": "/r/apps/gradle/8.5"})
	r := New(env, nil,
		WithFlavor(pathutil.Unix),
		WithBindings([]Binding{{Software: "Gradle", Folder: "gradle", Vars: []string{"GRADLE_HOME"}}}),
		WithRootVariable(""),
		WithSearchPathVariables(nil),
		WithLogger(newTestSlogger(&bytes.Buffer{})),
	)
	res, err := r.RewriteEnvironment(context.Background(), ledger.Root{Path: "/r"}, ledger.Root{Path: "/s"})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Variables)
}

func TestRewriteHistory(t *testing.T) {
	store := &fakeHistory{records: []history.Record{
		{ID: "1", Env: "JDK", Path: `C:\Users\u\DevEnvManager\apps\jdk`},
		{ID: "2", Env: "Redis", Path: `E:\redis`},
		{ID: "3", Env: "Python", Path: `C:\Users\u\DevEnvManager\apps\python\3.12`},
	}}
	var opened ledger.Root
	r := New(envstore.NewMemory(nil), func(root ledger.Root) HistoryStore {
		opened = root
		return store
	}, WithFlavor(pathutil.Windows), WithLogger(newTestSlogger(&bytes.Buffer{})))

	n, err := r.RewriteHistory(context.Background(), winOld, winNew)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, winNew, opened)
	assert.Equal(t, 1, store.saves)
	assert.Equal(t, `D:\Tools\DevEnvManager\apps\jdk`, store.records[0].Path)
	assert.Equal(t, `E:\redis`, store.records[1].Path)
	assert.Equal(t, `D:\Tools\DevEnvManager\apps\python\3.12`, store.records[2].Path)
}

func TestRewriteHistoryUnchangedSkipsWrite(t *testing.T) {
	store := &fakeHistory{records: []history.Record{{ID: "1", Path: "/elsewhere"}}}
	r := New(envstore.NewMemory(nil), func(ledger.Root) HistoryStore { return store }, WithFlavor(pathutil.Unix))

	n, err := r.RewriteHistory(context.Background(), ledger.Root{Path: "/r"}, ledger.Root{Path: "/s"})
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Zero(t, store.saves)
}

func TestRewriteHistorySaveFailureSurfaces(t *testing.T) {
	store := &fakeHistory{
		records: []history.Record{{ID: "1", Path: "/r/apps/jdk"}},
		saveErr: errors.New("disk full"),
	}
	r := New(envstore.NewMemory(nil), func(ledger.Root) HistoryStore { return store }, WithFlavor(pathutil.Unix))

	_, err := r.RewriteHistory(context.Background(), ledger.Root{Path: "/r"}, ledger.Root{Path: "/s"})
	require.Error(t, err)
	assert.Equal(t, "/r/apps/jdk", store.records[0].Path, "persisted records untouched")
}

func TestRewriteHistoryWithSQLiteStore(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	oldRoot := ledger.Root{Path: filepath.Join(dir, "old")}
	newRoot := ledger.Root{Path: filepath.Join(dir, "new")}

	seed := history.NewStore(newRoot.HistoryDB())
	_, err := seed.Add(ctx, "Node.js", "20.11.0", filepath.Join(oldRoot.Apps(), "nodejs"))
	require.NoError(t, err)

	r := New(envstore.NewMemory(nil), func(root ledger.Root) HistoryStore {
		return history.NewStore(root.HistoryDB())
	})
	n, err := r.RewriteHistory(ctx, oldRoot, newRoot)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	records, err := seed.LoadAll(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, filepath.Join(newRoot.Apps(), "nodejs"), records[0].Path)
}
