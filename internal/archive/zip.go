// Package archive unpacks runtime bundles.
package archive

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	log "github.com/sirupsen/logrus"
)

// ErrUnsafePath is returned for entries that would land outside the target directory.
var ErrUnsafePath = errors.New("entry escapes target directory")

// ExtractionError reports a failed archive extraction.
type ExtractionError struct {
	Archive string
	Entry   string // empty when the archive itself could not be read
	Err     error
}

func (e *ExtractionError) Error() string {
	if e.Entry == "" {
		return fmt.Sprintf("extract %s: %v", e.Archive, e.Err)
	}
	return fmt.Sprintf("extract %s: entry %q: %v", e.Archive, e.Entry, e.Err)
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}

// Extract unpacks the zip at archivePath into targetDir, preserving relative paths.
// Entries that would resolve outside targetDir and symlink entries are rejected
// before anything is written for them. A failure leaves already extracted entries
// in place.
func Extract(archivePath, targetDir string) error {
	logger := log.WithFields(log.Fields{
		"component": "archive",
		"path":      archivePath,
	})

	// Insecure names are reported per entry below.
	r, err := zip.OpenReader(archivePath)
	if err != nil && !(errors.Is(err, zip.ErrInsecurePath) && r != nil) {
		return &ExtractionError{Archive: archivePath, Err: err}
	}
	defer func() { _ = r.Close() }()

	root, err := filepath.Abs(targetDir)
	if err != nil {
		return &ExtractionError{Archive: archivePath, Err: err}
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return &ExtractionError{Archive: archivePath, Err: err}
	}

	var files int
	for _, f := range r.File {
		if err := extractEntry(f, root); err != nil {
			return &ExtractionError{Archive: archivePath, Entry: f.Name, Err: err}
		}
		if !f.FileInfo().IsDir() {
			files++
		}
	}

	logger.Debugf("extracted %d files into %s", files, root)
	return nil
}

func extractEntry(f *zip.File, root string) error {
	dest, err := safeJoin(root, f.Name)
	if err != nil {
		return err
	}

	mode := f.Mode()
	if mode&os.ModeSymlink != 0 {
		return fmt.Errorf("%w: symlink entries are not supported", ErrUnsafePath)
	}

	if f.FileInfo().IsDir() {
		return os.MkdirAll(dest, dirMode(mode))
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}

	src, err := f.Open()
	if err != nil {
		return err
	}
	defer func() { _ = src.Close() }()

	out, err := os.OpenFile(dest, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, fileMode(mode))
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, src); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}

// safeJoin resolves name below root, rejecting absolute names, volume names and
// any path that climbs out of root.
func safeJoin(root, name string) (string, error) {
	slashed := strings.ReplaceAll(name, `\`, "/")
	if slashed == "" || strings.HasPrefix(slashed, "/") || filepath.VolumeName(name) != "" || hasDriveLetter(slashed) {
		return "", fmt.Errorf("%w: %q", ErrUnsafePath, name)
	}

	dest := filepath.Join(root, filepath.FromSlash(slashed))
	rel, err := filepath.Rel(root, dest)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %q", ErrUnsafePath, name)
	}
	return dest, nil
}

func hasDriveLetter(name string) bool {
	return len(name) >= 2 && name[1] == ':' &&
		(('a' <= name[0] && name[0] <= 'z') || ('A' <= name[0] && name[0] <= 'Z'))
}

func fileMode(m os.FileMode) os.FileMode {
	if perm := m.Perm(); perm != 0 {
		return perm
	}
	return 0o644
}

func dirMode(m os.FileMode) os.FileMode {
	if perm := m.Perm(); perm != 0 {
		return perm | 0o700
	}
	return 0o755
}
