package ledger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/Gcluowenqiang/DevEnv-OneClick-Installer/internal/pathutil"
)

func TestOpenMissingFileIsEmpty(t *testing.T) {
	l, err := Open(filepath.Join(t.TempDir(), "ledger.yaml"))
	require.NoError(t, err)
	assert.True(t, l.CurrentRoot().IsZero())
	assert.Empty(t, l.Orphans())
}

func TestSetRootCreatesSubdirsAndPersists(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "state", "ledger.yaml")
	root := Root{Path: filepath.Join(dir, "DevEnvManager")}

	l, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, l.SetRoot(root))

	for _, name := range Subdirs {
		info, err := os.Stat(root.Subdir(name))
		require.NoError(t, err, name)
		assert.True(t, info.IsDir())
	}

	reopened, err := Open(path)
	require.NoError(t, err)
	assert.Equal(t, root, reopened.CurrentRoot())
}

func TestSetRootFailureKeepsPreviousRecord(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ledger.yaml")
	first := Root{Path: filepath.Join(dir, "first")}

	l, err := Open(path, WithMkdirRetry(2, 0))
	require.NoError(t, err)
	require.NoError(t, l.SetRoot(first))
	before, err := os.ReadFile(path)
	require.NoError(t, err)

	// A regular file where the root should be makes subdirectory creation fail.
	blocker := filepath.Join(dir, "blocked")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))

	err = l.SetRoot(Root{Path: blocker})
	require.Error(t, err)
	assert.Equal(t, first, l.CurrentRoot())

	after, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, string(before), string(after))
}

func TestUnknownFieldsArePreserved(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ledger.yaml")
	doc := "version: 1\nroot: /old\nlast_run_version: \"2.1.0\"\nfuture:\n  enabled: true\n"
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	l, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, l.SetRoot(Root{Path: filepath.Join(dir, "new")}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var raw map[string]any
	require.NoError(t, yaml.Unmarshal(data, &raw))
	assert.Equal(t, "2.1.0", raw["last_run_version"])
	assert.Equal(t, map[string]any{"enabled": true}, raw["future"])
	assert.Equal(t, filepath.Join(dir, "new"), raw["root"])
}

func TestOrphanBookkeeping(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ledger.yaml")
	l, err := Open(path)
	require.NoError(t, err)

	require.NoError(t, l.RecordOrphan("/old/a", "scheduled_on_reboot"))
	require.NoError(t, l.RecordOrphan("/old/b", "requires_manual_removal"))
	require.NoError(t, l.RecordOrphan("/old/a", "requires_manual_removal"))

	orphans := l.Orphans()
	require.Len(t, orphans, 2)
	assert.Equal(t, "/old/b", orphans[0].Path)
	assert.Equal(t, "requires_manual_removal", orphans[1].Outcome)

	require.NoError(t, l.ForgetOrphan("/old/b"))
	require.NoError(t, l.ForgetOrphan("/never/recorded"))

	reopened, err := Open(path)
	require.NoError(t, err)
	require.Len(t, reopened.Orphans(), 1)
	assert.Equal(t, "/old/a", reopened.Orphans()[0].Path)
}

func TestOrphanMatchingFollowsFlavor(t *testing.T) {
	l, err := Open(filepath.Join(t.TempDir(), "ledger.yaml"), WithFlavor(pathutil.Windows))
	require.NoError(t, err)

	require.NoError(t, l.RecordOrphan(`C:\Users\dev\DevEnv`, "scheduled_on_reboot"))
	require.NoError(t, l.RecordOrphan(`c:\users\DEV\devenv`, "requires_manual_removal"))

	orphans := l.Orphans()
	require.Len(t, orphans, 1, "paths differing only in case are one orphan")
	assert.Equal(t, "requires_manual_removal", orphans[0].Outcome)

	require.NoError(t, l.ForgetOrphan(`C:\USERS\dev\DevEnv`))
	assert.Empty(t, l.Orphans())
}

func TestSetRootClearsMatchingOrphan(t *testing.T) {
	dir := t.TempDir()
	l, err := Open(filepath.Join(dir, "ledger.yaml"))
	require.NoError(t, err)
	back := Root{Path: filepath.Join(dir, "back")}
	require.NoError(t, l.RecordOrphan(back.Path, "requires_manual_removal"))

	require.NoError(t, l.SetRoot(back))
	assert.Empty(t, l.Orphans())
}

func TestRootDerivedPaths(t *testing.T) {
	r := Root{Path: filepath.Join("/", "data", "devenv")}
	assert.Equal(t, filepath.Join("/", "data", "devenv", "logs"), r.Logs())
	assert.Equal(t, filepath.Join("/", "data", "devenv", "config", "history.db"), r.HistoryDB())

	_, err := NewRoot("   ")
	assert.Error(t, err)
}
