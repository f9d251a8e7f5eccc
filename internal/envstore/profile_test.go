package envstore

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProfileSetGetPersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "devenv", "environment.yaml")
	p := NewProfile(path, []string{"PATH"}, nil)

	_, ok, err := p.Get("JAVA_HOME")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, p.Set("JAVA_HOME", "/data/devenv/apps/jdk"))

	reopened := NewProfile(path, []string{"PATH"}, nil)
	v, ok, err := reopened.Get("JAVA_HOME")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "/data/devenv/apps/jdk", v)
}

func TestProfileNotifyRendersScript(t *testing.T) {
	path := filepath.Join(t.TempDir(), "environment.yaml")
	p := NewProfile(path, []string{"PATH"}, nil)
	require.NoError(t, p.Set("JAVA_HOME", "/opt/it's/jdk"))
	require.NoError(t, p.Set("PATH", "/opt/jdk/bin:/opt/node/bin"))
	require.NoError(t, p.Notify())

	script, err := os.ReadFile(p.ScriptPath())
	require.NoError(t, err)
	assert.Contains(t, string(script), `export JAVA_HOME='/opt/it'\''s/jdk'`)
	assert.Contains(t, string(script), `export PATH='/opt/jdk/bin:/opt/node/bin':"${PATH}"`)
}

func TestProfileRejectsCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "environment.yaml")
	require.NoError(t, os.WriteFile(path, []byte("variables: [unclosed"), 0o644))

	_, _, err := NewProfile(path, nil, nil).Get("X")
	assert.Error(t, err)
}

func TestMemoryFailures(t *testing.T) {
	m := NewMemory(map[string]string{"A": "1"})
	m.FailGet("A", errors.New("denied"))
	_, _, err := m.Get("A")
	assert.Error(t, err)

	m.FailSet("B", errors.New("denied"))
	assert.Error(t, m.Set("B", "2"))
	require.NoError(t, m.Set("C", "3"))
	require.NoError(t, m.Notify())

	_, ok, err := m.Get("B")
	require.NoError(t, err)
	assert.False(t, ok, "failed Set must not store the value")
	v, ok, err := m.Get("C")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "3", v)
	assert.Equal(t, 1, m.Notifications())
}
