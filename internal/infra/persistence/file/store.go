// Package file persists the replacement state as one JSON document on the
// local filesystem.
package file

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"replacechain/pkg/domain"
)

var _ domain.StateStore = (*Store)(nil)

// DefaultPath is used when no path is configured.
const DefaultPath = "replacechain-state.json"

// Store reads and overwrites a single snapshot file. Save writes a sibling
// temp file, syncs it and renames it over the snapshot, so a failed save
// leaves the previous snapshot untouched.
type Store struct {
	path string
}

// NewStore returns a store for path, creating parent directories.
func NewStore(path string) (*Store, error) {
	if path == "" {
		path = DefaultPath
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("create dirs: %w", err)
	}
	return &Store{path: path}, nil
}

// Path returns the snapshot location.
func (s *Store) Path() string { return s.path }

func (s *Store) Load(ctx context.Context) (domain.State, bool, error) {
	if err := ctx.Err(); err != nil {
		return domain.State{}, false, err
	}
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return domain.State{}, false, nil
	}
	if err != nil {
		return domain.State{}, false, fmt.Errorf("read snapshot: %w", err)
	}
	state, err := domain.DecodeState(data)
	if err != nil {
		return domain.State{}, false, err
	}
	return state, true, nil
}

func (s *Store) Save(ctx context.Context, state domain.State) (retErr error) {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := domain.EncodeState(state)
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), "."+filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp snapshot: %w", err)
	}
	defer func() {
		if retErr != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()
	if _, err := tmp.Write(data); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("sync snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close snapshot: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace snapshot: %w", err)
	}
	return nil
}

func (s *Store) Driver() domain.StorageDriver { return domain.StorageFile }

func (s *Store) Close() error { return nil }
