package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// FileStore persists values as individual JSON files under one directory.
// Keys are sanitized to filesystem-safe names; a key maps to "<key>.json".
type FileStore struct {
	dir string
}

// NewFileStore creates a store rooted at dir, creating it if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		return nil, errors.New("store: directory is required")
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("store: create directory %s: %w", dir, err)
	}
	return &FileStore{dir: dir}, nil
}

// NewSessionStore creates a store under the OS temporary directory.
// Values typically survive restarts of the process but not of the host.
func NewSessionStore() (*FileStore, error) {
	return NewFileStore(filepath.Join(os.TempDir(), "atomik"))
}

// NewLocalStore creates a store under base/.atomik, or ./.atomik when base
// is empty. This is the durable default for long-running deployments.
func NewLocalStore(base string) (*FileStore, error) {
	if base == "" {
		base = "."
	}
	return NewFileStore(filepath.Join(base, ".atomik"))
}

// Dir returns the backing directory.
func (s *FileStore) Dir() string { return s.dir }

func (s *FileStore) path(key string) string {
	return filepath.Join(s.dir, SanitizeKey(key)+".json")
}

// Load implements atomik.Store.
func (s *FileStore) Load(_ context.Context, key string) ([]byte, bool, error) {
	data, err := os.ReadFile(s.path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("store: read %q: %w", key, err)
	}
	return data, true, nil
}

// Save implements atomik.Store. The write goes through a temp file and
// rename so a crash mid-save never leaves a torn value behind.
func (s *FileStore) Save(_ context.Context, key string, data []byte) error {
	path := s.path(key)
	tmp, err := os.CreateTemp(s.dir, SanitizeKey(key)+".*.tmp")
	if err != nil {
		return fmt.Errorf("store: write %q: %w", key, err)
	}
	_, werr := tmp.Write(data)
	cerr := tmp.Close()
	if werr != nil || cerr != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("store: write %q: %w", key, errors.Join(werr, cerr))
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("store: write %q: %w", key, err)
	}
	return nil
}

// Remove deletes the value for key. Missing keys are a no-op.
func (s *FileStore) Remove(_ context.Context, key string) error {
	err := os.Remove(s.path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("store: remove %q: %w", key, err)
	}
	return nil
}
