//go:build linux

package device

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

func TestFind_EmptyDir(t *testing.T) {
	if _, err := os.Stat(SymlinkPath); err == nil {
		t.Skip("a real PowerMate symlink is present")
	}

	_, err := Find(t.TempDir(), slog.Default())
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestFind_SkipsNonInputNodes(t *testing.T) {
	if _, err := os.Stat(SymlinkPath); err == nil {
		t.Skip("a real PowerMate symlink is present")
	}

	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "event0"), []byte("not a device"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "mouse0"), nil, 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := Find(dir, slog.Default())
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
