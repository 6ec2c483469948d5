package profile

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryDefaults(t *testing.T) {
	r, err := New("", 30*time.Second)
	require.NoError(t, err)

	t.Run("LookupByPrimaryCode", func(t *testing.T) {
		p, ok := r.Lookup("python")
		require.True(t, ok)
		assert.Equal(t, "python:alpine", p.Image)
		assert.Equal(t, []string{"python", "code"}, p.Command)
		assert.Equal(t, 30*time.Second, p.Timeout)
	})

	t.Run("LookupByAlias", func(t *testing.T) {
		py, ok := r.Lookup("py")
		require.True(t, ok)

		python, _ := r.Lookup("python")
		assert.Same(t, python, py)
	})

	t.Run("LookupIsCaseInsensitive", func(t *testing.T) {
		p, ok := r.Lookup("PY")
		require.True(t, ok)
		assert.Equal(t, "python", p.Name)
	})

	t.Run("UnknownCode", func(t *testing.T) {
		_, ok := r.Lookup("brainfuck")
		assert.False(t, ok)
	})

	t.Run("DefaultLimits", func(t *testing.T) {
		p, ok := r.Lookup("rust")
		require.True(t, ok)
		assert.Equal(t, 1.0, p.CPUs)
		assert.Equal(t, int64(128*1024*1024), p.MemoryBytes)
		assert.Equal(t, int64(64), p.PidsLimit)
	})

	t.Run("AllBuiltinsRegistered", func(t *testing.T) {
		assert.Len(t, r.Names(), 11)
	})
}

func writeOverrides(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "profiles.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestRegistryOverrides(t *testing.T) {
	t.Run("OverrideExistingLanguage", func(t *testing.T) {
		path := writeOverrides(t, `
languages:
  python:
    image: python:3.12-slim
    memory_mb: 256
    timeout_sec: 10
`)
		r, err := New(path, 30*time.Second)
		require.NoError(t, err)

		p, ok := r.Lookup("py")
		require.True(t, ok)
		assert.Equal(t, "python:3.12-slim", p.Image)
		assert.Equal(t, int64(256*1024*1024), p.MemoryBytes)
		assert.Equal(t, 10*time.Second, p.Timeout)
		// Untouched fields keep their defaults
		assert.Equal(t, []string{"python", "code"}, p.Command)
	})

	t.Run("AddNewLanguage", func(t *testing.T) {
		path := writeOverrides(t, `
languages:
  lua:
    image: lua:alpine
    command: ["lua", "code"]
    codes: ["lua"]
`)
		r, err := New(path, 30*time.Second)
		require.NoError(t, err)

		p, ok := r.Lookup("lua")
		require.True(t, ok)
		assert.Equal(t, "lua:alpine", p.Image)
		assert.Equal(t, int64(64), p.PidsLimit)
	})

	t.Run("NewLanguageWithoutImage", func(t *testing.T) {
		path := writeOverrides(t, `
languages:
  lua:
    codes: ["lua"]
`)
		_, err := New(path, 30*time.Second)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "lacks image or command")
	})

	t.Run("MissingFile", func(t *testing.T) {
		_, err := New("/nonexistent/profiles.yaml", 30*time.Second)
		assert.Error(t, err)
	})

	t.Run("MalformedYAML", func(t *testing.T) {
		path := writeOverrides(t, "languages: [not a map")
		_, err := New(path, 30*time.Second)
		assert.Error(t, err)
	})
}
