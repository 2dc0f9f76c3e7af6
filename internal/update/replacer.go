package update

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
)

const backupSuffix = ".backup"

// BinaryReplacer safely replaces the binary with rollback support
type BinaryReplacer struct {
	currentPath string
	backupPath  string
	hadOriginal bool
	replaced    bool
}

// NewBinaryReplacer creates a new binary replacer
func NewBinaryReplacer(currentPath string) *BinaryReplacer {
	return &BinaryReplacer{
		currentPath: currentPath,
		backupPath:  currentPath + backupSuffix,
	}
}

// Replace moves newBinary over the current binary, keeping a backup of the
// previous one until Discard or Rollback is called.
func (r *BinaryReplacer) Replace(newBinary string) error {
	// 1. Back up the current binary, if there is one
	_, err := os.Stat(r.currentPath)
	switch {
	case err == nil:
		if err := r.createBackup(); err != nil {
			return fmt.Errorf("failed to create backup: %w", err)
		}
		r.hadOriginal = true
	case errors.Is(err, fs.ErrNotExist):
		r.hadOriginal = false
	default:
		return fmt.Errorf("failed to stat current binary: %w", err)
	}

	// 2. Replace with new binary (atomic rename)
	if err := os.Rename(newBinary, r.currentPath); err != nil {
		return fmt.Errorf("failed to replace binary: %w", err)
	}
	r.replaced = true

	// 3. Set executable permissions
	if err := os.Chmod(r.currentPath, 0755); err != nil {
		_ = r.Rollback()
		return fmt.Errorf("failed to set permissions: %w", err)
	}

	return nil
}

// Rollback restores the binary that was in place before Replace. When there
// was none, the replaced binary is removed. Without a completed Replace it does
// nothing.
func (r *BinaryReplacer) Rollback() error {
	if !r.replaced {
		return nil
	}
	if !r.hadOriginal {
		r.replaced = false
		if err := os.Remove(r.currentPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to remove replaced binary: %w", err)
		}
		return nil
	}

	// 1. Check if backup exists
	if _, err := os.Stat(r.backupPath); os.IsNotExist(err) {
		return fmt.Errorf("backup not found: %s", r.backupPath)
	}

	// 2. Restore from backup
	if err := os.Rename(r.backupPath, r.currentPath); err != nil {
		return fmt.Errorf("failed to restore from backup: %w", err)
	}
	r.replaced = false

	return nil
}

// Discard drops the backup once the new binary is committed.
func (r *BinaryReplacer) Discard() error {
	if err := os.Remove(r.backupPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// createBackup creates a backup of the current binary
func (r *BinaryReplacer) createBackup() error {
	// Open source file
	src, err := os.Open(r.currentPath)
	if err != nil {
		return fmt.Errorf("failed to open current binary: %w", err)
	}
	defer func() { _ = src.Close() }()

	// Get source file info for permissions
	srcInfo, err := src.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat current binary: %w", err)
	}

	// Create backup file
	dst, err := os.OpenFile(r.backupPath, os.O_RDWR|os.O_CREATE|os.O_TRUNC, srcInfo.Mode())
	if err != nil {
		return fmt.Errorf("failed to create backup file: %w", err)
	}
	defer func() { _ = dst.Close() }()

	// Copy contents
	if _, err := io.Copy(dst, src); err != nil {
		_ = os.Remove(r.backupPath) // Clean up partial backup
		return fmt.Errorf("failed to copy binary to backup: %w", err)
	}

	return nil
}
