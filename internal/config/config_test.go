package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atomik-dev/atomik/internal/errors"
)

func writeConfig(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, ConfigFileName)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, DefaultMaxWorkers, cfg.MaxWorkers)
	assert.Equal(t, DefaultWorkerNamePrefix, cfg.WorkerNamePrefix)
	require.NotNil(t, cfg.AutoCleanup)
	assert.True(t, *cfg.AutoCleanup)
	assert.Equal(t, "file", cfg.Storage.Backend)
	assert.Empty(t, cfg.Path())
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, `{
		"debug": true,
		"max_workers": 8,
		"storage": {"backend": "badger", "dir": "/tmp/atomik-data"},
		"inspect": {"addr": "localhost:6060"}
	}`)

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.True(t, cfg.Debug)
	assert.Equal(t, 8, cfg.MaxWorkers)
	assert.Equal(t, DefaultWorkerNamePrefix, cfg.WorkerNamePrefix)
	assert.Equal(t, "badger", cfg.Storage.Backend)
	assert.Equal(t, "/tmp/atomik-data", cfg.Storage.Dir)
	assert.Equal(t, "localhost:6060", cfg.Inspect.Addr)
	assert.Equal(t, filepath.Join(dir, ConfigFileName), cfg.Path())
}

func TestLoadMissing(t *testing.T) {
	_, err := Load(t.TempDir())
	require.Error(t, err)

	var ae *errors.AtomikError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, "E101", ae.Code)
}

func TestLoadInvalidJSON(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, `{"max_workers": `)

	_, err := Load(dir)
	require.Error(t, err)

	var ae *errors.AtomikError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, "E102", ae.Code)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"workers too low", `{"max_workers": -1}`},
		{"workers too high", `{"max_workers": 64}`},
		{"unknown backend", `{"storage": {"backend": "redis"}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			writeConfig(t, dir, tt.body)

			_, err := Load(dir)
			require.Error(t, err)

			var ae *errors.AtomikError
			require.ErrorAs(t, err, &ae)
			assert.Equal(t, "E103", ae.Code)
		})
	}
}

func TestLoadOrDefault(t *testing.T) {
	t.Run("missing file yields defaults", func(t *testing.T) {
		cfg, err := LoadOrDefault(t.TempDir())
		require.NoError(t, err)
		assert.Equal(t, DefaultMaxWorkers, cfg.MaxWorkers)
	})

	t.Run("broken file still errors", func(t *testing.T) {
		dir := t.TempDir()
		writeConfig(t, dir, `not json`)
		_, err := LoadOrDefault(dir)
		require.Error(t, err)
	})
}

func TestAutoCleanupPointer(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, `{"auto_cleanup": false}`)

	cfg, err := Load(dir)
	require.NoError(t, err)
	require.NotNil(t, cfg.AutoCleanup)
	assert.False(t, *cfg.AutoCleanup)
}

func TestFindRoot(t *testing.T) {
	root := t.TempDir()
	writeConfig(t, root, `{"max_workers": 2}`)
	nested := filepath.Join(root, "nested", "deeper")
	require.NoError(t, os.MkdirAll(nested, 0o755))

	found, err := FindRoot(nested)
	require.NoError(t, err)
	assert.Equal(t, root, found)
}

func TestFindRootMissing(t *testing.T) {
	_, err := FindRoot(t.TempDir())
	require.Error(t, err)

	var ae *errors.AtomikError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, "E101", ae.Code)
}

func TestDiscover(t *testing.T) {
	t.Run("finds ancestor config", func(t *testing.T) {
		root := t.TempDir()
		writeConfig(t, root, `{"max_workers": 2}`)
		nested := filepath.Join(root, "a", "b")
		require.NoError(t, os.MkdirAll(nested, 0o755))

		cfg, err := Discover(nested)
		require.NoError(t, err)
		assert.Equal(t, 2, cfg.MaxWorkers)
		assert.Equal(t, filepath.Join(root, ConfigFileName), cfg.Path())
	})

	t.Run("no ancestor yields defaults", func(t *testing.T) {
		cfg, err := Discover(t.TempDir())
		require.NoError(t, err)
		assert.Equal(t, DefaultMaxWorkers, cfg.MaxWorkers)
		assert.Empty(t, cfg.Path())
	})

	t.Run("broken ancestor config still errors", func(t *testing.T) {
		root := t.TempDir()
		writeConfig(t, root, `not json`)
		nested := filepath.Join(root, "sub")
		require.NoError(t, os.MkdirAll(nested, 0o755))

		_, err := Discover(nested)
		require.Error(t, err)
	})
}

func TestGraphOptions(t *testing.T) {
	cfg := Default()
	opts := cfg.GraphOptions()
	assert.Len(t, opts, 4)
}
