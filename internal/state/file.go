package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// FileStore persists state as JSON files under <dir>/<environment>.json.
// This is the default backend, suitable for single-operator use.
type FileStore struct {
	dir string
}

// NewFileStore creates a file-backed store rooted at dir.
func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir}
}

func (f *FileStore) path(environment string) string {
	return filepath.Join(f.dir, environment+".json")
}

// Load reads the state for an environment. Missing files return (nil, nil).
func (f *FileStore) Load(_ context.Context, environment string) (*State, error) {
	data, err := os.ReadFile(f.path(environment))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read state for %s: %w", environment, err)
	}

	return decodeState(data, environment)
}

// Save writes the state atomically (temp file plus rename).
func (f *FileStore) Save(_ context.Context, st *State) error {
	if err := os.MkdirAll(f.dir, 0o700); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode state: %w", err)
	}

	tmp := f.path(st.Environment) + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("failed to write state: %w", err)
	}
	if err := os.Rename(tmp, f.path(st.Environment)); err != nil {
		return fmt.Errorf("failed to commit state: %w", err)
	}
	return nil
}

// Delete removes the state file. Missing files are success.
func (f *FileStore) Delete(_ context.Context, environment string) error {
	err := os.Remove(f.path(environment))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}
