package update

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/hashicorp/go-multierror"

	"github.com/isp-insoft-gmbh/memate-launcher/internal/archive"
)

// runtimeSwap moves an extracted runtime tree into the installation root.
// Entries it replaces are parked in a backup directory until the swap is
// discarded or rolled back.
type runtimeSwap struct {
	root      string
	backupDir string
	promoted  []string
	displaced map[string]bool
}

// promoteRuntime moves every top-level entry of stagedDir into the layout root.
// On failure the entries already moved are put back before returning.
func promoteRuntime(l Layout, stagedDir string) (*runtimeSwap, error) {
	entries, err := os.ReadDir(stagedDir)
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		if l.reserved(e.Name()) {
			return nil, fmt.Errorf("%w: runtime archive contains reserved entry %q", archive.ErrUnsafePath, e.Name())
		}
	}

	s := &runtimeSwap{
		root:      l.Root,
		backupDir: l.RuntimeBackup(),
		displaced: make(map[string]bool),
	}
	if err := os.MkdirAll(s.backupDir, 0o755); err != nil {
		return nil, err
	}

	for _, e := range entries {
		name := e.Name()
		dest := filepath.Join(s.root, name)

		if _, err := os.Lstat(dest); err == nil {
			if err := os.Rename(dest, filepath.Join(s.backupDir, name)); err != nil {
				return nil, s.abort(fmt.Errorf("failed to move aside %s: %w", dest, err))
			}
			s.displaced[name] = true
		} else if !errors.Is(err, fs.ErrNotExist) {
			return nil, s.abort(err)
		}

		if err := os.Rename(filepath.Join(stagedDir, name), dest); err != nil {
			return nil, s.abort(fmt.Errorf("failed to promote %s: %w", name, err))
		}
		s.promoted = append(s.promoted, name)
	}

	return s, nil
}

func (s *runtimeSwap) abort(cause error) error {
	if err := s.rollback(); err != nil {
		return multierror.Append(cause, err)
	}
	return cause
}

// rollback removes promoted entries and restores the ones they replaced.
func (s *runtimeSwap) rollback() error {
	if s == nil {
		return nil
	}

	var result *multierror.Error
	for i := len(s.promoted) - 1; i >= 0; i-- {
		name := s.promoted[i]
		if err := os.RemoveAll(filepath.Join(s.root, name)); err != nil {
			result = multierror.Append(result, err)
		}
	}
	for name := range s.displaced {
		if err := os.Rename(filepath.Join(s.backupDir, name), filepath.Join(s.root, name)); err != nil {
			result = multierror.Append(result, fmt.Errorf("failed to restore %s: %w", name, err))
		}
	}
	s.promoted = nil
	s.displaced = map[string]bool{}
	return result.ErrorOrNil()
}

// discard drops the replaced entries once the new runtime is committed.
func (s *runtimeSwap) discard() error {
	if s == nil {
		return nil
	}
	return os.RemoveAll(s.backupDir)
}
