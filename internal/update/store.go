package update

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/isp-insoft-gmbh/memate-launcher/internal/descriptor"
)

// Store persists the installed state as a properties file.
//
// Writes go to the staging file first and are moved over the installed state
// by a rename, so the installed file is always either the old or the new
// descriptor.
type Store struct {
	installed string
	staged    string
}

// NewStore returns the store for an installation layout.
func NewStore(l Layout) *Store {
	return &Store{installed: l.InstalledState(), staged: l.StagedState()}
}

// Load reads the installed state. It returns nil and no error when nothing is
// installed yet.
func (s *Store) Load() (*descriptor.Descriptor, error) {
	data, err := os.ReadFile(s.installed)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, &PersistenceError{Op: "read", Path: s.installed, Err: err}
	}

	d, err := descriptor.Parse(data)
	if err != nil {
		return nil, &PersistenceError{Op: "parse", Path: s.installed, Err: err}
	}
	return &d, nil
}

// Stage writes d to the staging file and syncs it to disk.
func (s *Store) Stage(d descriptor.Descriptor) error {
	data, err := d.Marshal()
	if err != nil {
		return &PersistenceError{Op: "stage", Path: s.staged, Err: err}
	}
	f, err := os.OpenFile(s.staged, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return &PersistenceError{Op: "stage", Path: s.staged, Err: err}
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return &PersistenceError{Op: "stage", Path: s.staged, Err: err}
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return &PersistenceError{Op: "stage", Path: s.staged, Err: err}
	}
	if err := f.Close(); err != nil {
		return &PersistenceError{Op: "stage", Path: s.staged, Err: err}
	}
	return nil
}

// Promote renames the staging file over the installed state.
func (s *Store) Promote() error {
	if err := os.Rename(s.staged, s.installed); err != nil {
		return &PersistenceError{Op: "promote", Path: s.installed, Err: err}
	}
	return nil
}

// Commit stages d and promotes it.
func (s *Store) Commit(d descriptor.Descriptor) error {
	if err := s.Stage(d); err != nil {
		return err
	}
	if err := s.Promote(); err != nil {
		return fmt.Errorf("commit installed state: %w", err)
	}
	return nil
}
