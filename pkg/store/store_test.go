package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atomik-dev/atomik/pkg/atomik"
)

func TestSanitizeKey(t *testing.T) {
	assert.Equal(t, "temperature", SanitizeKey("temperature"))
	assert.Equal(t, "room_1-temp", SanitizeKey("room_1-temp"))
	assert.Equal(t, "a_b_c", SanitizeKey("a/b c"))
	assert.Equal(t, "___", SanitizeKey("../"))
}

func TestMapStoreRoundTrip(t *testing.T) {
	s := NewMapStore()
	ctx := context.Background()

	_, found, err := s.Load(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, s.Save(ctx, "k", []byte("25.5")))
	data, found, err := s.Load(ctx, "k")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, []byte("25.5"), data)

	require.NoError(t, s.Remove(ctx, "k"))
	_, found, _ = s.Load(ctx, "k")
	assert.False(t, found)
	assert.Zero(t, s.Len())
}

func TestFileStoreRoundTrip(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileStore(dir)
	require.NoError(t, err)
	ctx := context.Background()

	_, found, err := s.Load(ctx, "humidity")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, s.Save(ctx, "humidity", []byte("50")))
	data, found, err := s.Load(ctx, "humidity")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, []byte("50"), data)

	// Keys map to sanitized .json files.
	_, err = os.Stat(filepath.Join(dir, "humidity.json"))
	require.NoError(t, err)

	require.NoError(t, s.Remove(ctx, "humidity"))
	require.NoError(t, s.Remove(ctx, "humidity"), "remove is a no-op for missing keys")
}

func TestFileStoreSanitizesHostileKeys(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileStore(dir)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, "../escape", []byte("x")))
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "___escape.json", entries[0].Name())
}

func TestNewFileStoreRequiresDir(t *testing.T) {
	_, err := NewFileStore("")
	assert.Error(t, err)
}

func TestBadgerStoreRoundTrip(t *testing.T) {
	s, err := NewBadgerStoreInMemory()
	require.NoError(t, err)
	defer s.Close()
	ctx := context.Background()

	_, found, err := s.Load(ctx, "pressure")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, s.Save(ctx, "pressure", []byte("1013.25")))
	data, found, err := s.Load(ctx, "pressure")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, []byte("1013.25"), data)

	require.NoError(t, s.Remove(ctx, "pressure"))
	_, found, _ = s.Load(ctx, "pressure")
	assert.False(t, found)
}

func TestFileStoreBacksPersistentSource(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileStore(dir)
	require.NoError(t, err)
	ctx := context.Background()

	g := atomik.New()
	defer g.Close()

	temp := atomik.NewPersistentSource(ctx, g, "temperature", 20.0, s)
	require.NoError(t, temp.Set(25.5))

	// A fresh graph reading through the same store sees the saved value.
	g2 := atomik.New()
	defer g2.Close()
	restored := atomik.NewPersistentSource(ctx, g2, "temperature", 20.0, s)
	v, err := restored.Get()
	require.NoError(t, err)
	assert.Equal(t, 25.5, v)
}
