package download

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// ErrChecksumMismatch is returned when a file's digest differs from the expected one.
var ErrChecksumMismatch = errors.New("checksum mismatch")

// VerifySHA256 checks the SHA-256 digest of path against expected (hex, any case).
func VerifySHA256(path, expected string) error {
	actual, err := calculateSHA256(path)
	if err != nil {
		return err
	}

	expected = strings.ToLower(strings.TrimSpace(expected))
	if actual != expected {
		return fmt.Errorf("%w for %s: expected %s, got %s", ErrChecksumMismatch, path, expected, actual)
	}
	return nil
}

// LooksLikeSHA256 reports whether s is a 64 character hex digest.
func LooksLikeSHA256(s string) bool {
	s = strings.TrimSpace(s)
	if len(s) != sha256.Size*2 {
		return false
	}
	_, err := hex.DecodeString(s)
	return err == nil
}

// calculateSHA256 computes the SHA256 checksum of a file
func calculateSHA256(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open file: %w", err)
	}
	defer func() { _ = f.Close() }()

	hash := sha256.New()
	if _, err := io.Copy(hash, f); err != nil {
		return "", fmt.Errorf("failed to read file: %w", err)
	}

	return hex.EncodeToString(hash.Sum(nil)), nil
}
