package update

import (
	"os"
	"path/filepath"
	"testing"
)

func TestNewBinaryReplacer(t *testing.T) {
	replacer := NewBinaryReplacer("/opt/MeMate/memate.exe")

	if replacer.currentPath != "/opt/MeMate/memate.exe" {
		t.Errorf("currentPath = %s, want /opt/MeMate/memate.exe", replacer.currentPath)
	}

	expectedBackup := "/opt/MeMate/memate.exe.backup"
	if replacer.backupPath != expectedBackup {
		t.Errorf("backupPath = %s, want %s", replacer.backupPath, expectedBackup)
	}
}

func TestCreateBackup(t *testing.T) {
	tmpDir := t.TempDir()
	currentBinary := filepath.Join(tmpDir, "memate.exe")
	testContent := []byte("original binary content")

	if err := os.WriteFile(currentBinary, testContent, 0755); err != nil {
		t.Fatalf("Failed to create test binary: %v", err)
	}

	replacer := NewBinaryReplacer(currentBinary)
	if err := replacer.createBackup(); err != nil {
		t.Fatalf("createBackup() error = %v", err)
	}

	backupContent, err := os.ReadFile(replacer.backupPath)
	if err != nil {
		t.Fatalf("Failed to read backup: %v", err)
	}
	if string(backupContent) != string(testContent) {
		t.Errorf("Backup content mismatch: got %s, want %s", backupContent, testContent)
	}
}

func TestCreateBackup_FileNotFound(t *testing.T) {
	replacer := NewBinaryReplacer("/path/that/does/not/exist")
	if err := replacer.createBackup(); err == nil {
		t.Error("Expected error for non-existent file")
	}
}

func TestReplace_Success(t *testing.T) {
	tmpDir := t.TempDir()
	currentBinary := filepath.Join(tmpDir, "memate.exe")
	newBinary := filepath.Join(tmpDir, "memate.exe.new")

	if err := os.WriteFile(currentBinary, []byte("v1"), 0755); err != nil {
		t.Fatalf("Failed to create current binary: %v", err)
	}
	if err := os.WriteFile(newBinary, []byte("v2"), 0644); err != nil {
		t.Fatalf("Failed to create new binary: %v", err)
	}

	replacer := NewBinaryReplacer(currentBinary)
	if err := replacer.Replace(newBinary); err != nil {
		t.Fatalf("Replace() error = %v", err)
	}

	content, err := os.ReadFile(currentBinary)
	if err != nil {
		t.Fatalf("Failed to read replaced binary: %v", err)
	}
	if string(content) != "v2" {
		t.Error("Binary was not replaced")
	}
	if _, err := os.Stat(newBinary); !os.IsNotExist(err) {
		t.Error("staged binary should be consumed")
	}

	// The backup stays until the caller commits.
	backup, err := os.ReadFile(replacer.backupPath)
	if err != nil || string(backup) != "v1" {
		t.Errorf("backup = %q, %v", backup, err)
	}

	if err := replacer.Discard(); err != nil {
		t.Fatalf("Discard() error = %v", err)
	}
	if _, err := os.Stat(replacer.backupPath); !os.IsNotExist(err) {
		t.Error("Backup should be removed after Discard")
	}
}

func TestReplace_ThenRollback(t *testing.T) {
	tmpDir := t.TempDir()
	currentBinary := filepath.Join(tmpDir, "memate.exe")
	newBinary := filepath.Join(tmpDir, "memate.exe.new")

	if err := os.WriteFile(currentBinary, []byte("v1"), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(newBinary, []byte("v2"), 0755); err != nil {
		t.Fatal(err)
	}

	replacer := NewBinaryReplacer(currentBinary)
	if err := replacer.Replace(newBinary); err != nil {
		t.Fatalf("Replace() error = %v", err)
	}
	if err := replacer.Rollback(); err != nil {
		t.Fatalf("Rollback() error = %v", err)
	}

	restored, err := os.ReadFile(currentBinary)
	if err != nil {
		t.Fatalf("Failed to read restored binary: %v", err)
	}
	if string(restored) != "v1" {
		t.Errorf("Restored content = %q, want v1", restored)
	}

	// Verify backup was consumed (renamed to current)
	if _, err := os.Stat(replacer.backupPath); !os.IsNotExist(err) {
		t.Error("Backup should not exist after rollback")
	}
}

func TestReplace_NoPreviousBinary(t *testing.T) {
	tmpDir := t.TempDir()
	currentBinary := filepath.Join(tmpDir, "memate.exe")
	newBinary := filepath.Join(tmpDir, "memate.exe.new")

	if err := os.WriteFile(newBinary, []byte("v1"), 0755); err != nil {
		t.Fatal(err)
	}

	replacer := NewBinaryReplacer(currentBinary)
	if err := replacer.Replace(newBinary); err != nil {
		t.Fatalf("Replace() error = %v", err)
	}
	if _, err := os.Stat(replacer.backupPath); !os.IsNotExist(err) {
		t.Error("no backup should be made without a previous binary")
	}

	if err := replacer.Rollback(); err != nil {
		t.Fatalf("Rollback() error = %v", err)
	}
	if _, err := os.Stat(currentBinary); !os.IsNotExist(err) {
		t.Error("rollback of a first install should remove the binary")
	}
}

func TestReplace_MissingNewBinary(t *testing.T) {
	tmpDir := t.TempDir()
	currentBinary := filepath.Join(tmpDir, "memate.exe")

	if err := os.WriteFile(currentBinary, []byte("v1"), 0755); err != nil {
		t.Fatal(err)
	}

	replacer := NewBinaryReplacer(currentBinary)
	if err := replacer.Replace(filepath.Join(tmpDir, "missing")); err == nil {
		t.Fatal("expected error for missing staged binary")
	}

	content, _ := os.ReadFile(currentBinary)
	if string(content) != "v1" {
		t.Error("current binary should be untouched")
	}
}

func TestRollback_WithoutReplace(t *testing.T) {
	replacer := NewBinaryReplacer(filepath.Join(t.TempDir(), "memate.exe"))
	if err := replacer.Rollback(); err != nil {
		t.Errorf("Rollback() without Replace should be a no-op, got %v", err)
	}
}
