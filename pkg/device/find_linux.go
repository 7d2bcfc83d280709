//go:build linux

package device

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	evdev "github.com/gvalkov/golang-evdev"
)

// Find locates the PowerMate and opens it. The udev symlink wins when present;
// otherwise every event* node in dir is probed by name. Nodes we may not open
// are logged and skipped.
func Find(dir string, logger *slog.Logger) (*Evdev, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if dir == "" {
		dir = DefaultDir
	}

	if _, err := os.Stat(SymlinkPath); err == nil {
		name, err := probeName(SymlinkPath)
		if err != nil {
			return nil, fmt.Errorf("probe %s: %w", SymlinkPath, err)
		}
		return Open(SymlinkPath, name)
	}

	candidates, err := filepath.Glob(filepath.Join(dir, "event*"))
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", dir, err)
	}
	sort.Strings(candidates)

	for _, path := range candidates {
		name, err := probeName(path)
		if err != nil {
			if errors.Is(err, fs.ErrPermission) {
				logger.Warn("no permission to probe input device", "device", path, "error", err, "tip", "run as root or add user to 'input' group")
			} else {
				logger.Debug("skipping input device", "device", path, "error", err)
			}
			continue
		}
		if !strings.Contains(name, NameMatch) {
			continue
		}

		d, err := Open(path, name)
		if err != nil {
			if errors.Is(err, fs.ErrPermission) {
				logger.Warn("no permission to open powermate", "device", path, "error", err)
				continue
			}
			return nil, err
		}
		logger.Debug("found powermate", "device", path, "name", name)
		return d, nil
	}

	return nil, fmt.Errorf("%w in %s", ErrNotFound, dir)
}

// probeName reads the kernel-reported device name.
func probeName(path string) (string, error) {
	dev, err := evdev.Open(path)
	if err != nil {
		return "", err
	}
	defer dev.File.Close()
	return dev.Name, nil
}
