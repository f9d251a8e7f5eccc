package history

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s := NewStore(filepath.Join(t.TempDir(), "config", "history.db"))
	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	s.now = func() time.Time {
		base = base.Add(time.Second)
		return base
	}
	return s
}

func TestLoadAllWithoutDatabase(t *testing.T) {
	s := newTestStore(t)
	records, err := s.LoadAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, records)
	_, err = os.Stat(s.Path())
	assert.True(t, os.IsNotExist(err), "loading must not create the database")
}

func TestAddReplacesSamePath(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	_, err := s.Add(ctx, "JDK", "17", "/root/apps/jdk")
	require.NoError(t, err)
	_, err = s.Add(ctx, "Node.js", "20.11.0", "/root/apps/nodejs")
	require.NoError(t, err)
	_, err = s.Add(ctx, "JDK", "21", "/root/apps/jdk/")
	require.NoError(t, err)

	records, err := s.LoadAll(ctx)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "Node.js", records[0].Env)
	assert.Equal(t, "21", records[1].Version)
	assert.Equal(t, "/root/apps/jdk", records[1].Path)
}

func TestAddRequiresEnvAndPath(t *testing.T) {
	_, err := newTestStore(t).Add(context.Background(), "", "1", "/x")
	assert.Error(t, err)
}

func TestSaveAllReplacesEverything(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	_, err := s.Add(ctx, "Redis", "7", "/old/apps/redis")
	require.NoError(t, err)

	records, err := s.LoadAll(ctx)
	require.NoError(t, err)
	records[0].Path = "/new/apps/redis"
	require.NoError(t, s.SaveAll(ctx, records))

	reloaded, err := s.LoadAll(ctx)
	require.NoError(t, err)
	require.Len(t, reloaded, 1)
	assert.Equal(t, records[0].ID, reloaded[0].ID)
	assert.Equal(t, "/new/apps/redis", reloaded[0].Path)
}

func TestSaveAllIsAllOrNothing(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	_, err := s.Add(ctx, "Maven", "3.9", "/old/apps/maven")
	require.NoError(t, err)

	// Duplicate paths violate the unique index halfway through the batch.
	err = s.SaveAll(ctx, []Record{
		{Env: "Maven", Version: "3.9", Path: "/new/apps/maven"},
		{Env: "Maven", Version: "3.8", Path: "/new/apps/maven"},
	})
	require.Error(t, err)

	records, err := s.LoadAll(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "/old/apps/maven", records[0].Path)
}

func TestRemove(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	removed, err := s.Remove(ctx, "/nothing")
	require.NoError(t, err)
	assert.False(t, removed)

	_, err = s.Add(ctx, "Python", "3.12", "/r/apps/python")
	require.NoError(t, err)
	removed, err = s.Remove(ctx, "/r/apps/python")
	require.NoError(t, err)
	assert.True(t, removed)

	records, err := s.LoadAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestImportLegacy(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	_, err := s.Add(ctx, "JDK", "17", "/r/apps/jdk")
	require.NoError(t, err)

	legacy := filepath.Join(t.TempDir(), "installed.json")
	doc := `{"installed":[
  {"env":"JDK","version":"17","path":"/r/apps/jdk","install_time":"2024-05-01 10:00:00"},
  {"env":"Redis","version":"5.0","path":"/r/apps/redis","install_time":"2024-05-02 11:00:00"},
  {"env":"","version":"x","path":"/bad"}
]}`
	require.NoError(t, os.WriteFile(legacy, []byte(doc), 0o644))

	n, err := s.ImportLegacy(ctx, legacy)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	records, err := s.LoadAll(ctx)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "Redis", records[0].Env, "older legacy record sorts first")

	n, err = s.ImportLegacy(ctx, filepath.Join(t.TempDir(), "missing.json"))
	require.NoError(t, err)
	assert.Zero(t, n)
}
