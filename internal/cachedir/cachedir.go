// Package cachedir resolves the on-disk cache location.
package cachedir

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"
)

const appDirName = "CamDB"

// Resolver determines the cache directory for the current OS and holds
// an optional user-chosen override. A single Resolver is shared by every
// cache component, which is what makes the override process-wide.
// Resolution never creates the directory; that is the store's job on
// first write.
type Resolver struct {
	mu       sync.RWMutex
	override string
}

func NewResolver() *Resolver {
	return &Resolver{}
}

// Dir returns the override if one is set, otherwise the platform default.
func (r *Resolver) Dir() (string, error) {
	r.mu.RLock()
	override := r.override
	r.mu.RUnlock()

	if override != "" {
		return override, nil
	}
	return defaultDir()
}

// SetOverride records an absolute path as the cache location for all
// subsequent resolutions. Already-loaded in-memory data is unaffected.
func (r *Resolver) SetOverride(path string) error {
	if !filepath.IsAbs(path) {
		return fmt.Errorf("cache location override must be absolute, got %q", path)
	}

	r.mu.Lock()
	r.override = filepath.Clean(path)
	r.mu.Unlock()
	return nil
}

// ClearOverride reverts to the platform default location.
func (r *Resolver) ClearOverride() {
	r.mu.Lock()
	r.override = ""
	r.mu.Unlock()
}

// defaultDir returns the per-user application-data directory for the
// current OS: %APPDATA%\CamDB, ~/Library/Application Support/CamDB, or
// $XDG_DATA_HOME/CamDB (falling back to ~/.local/share).
func defaultDir() (string, error) {
	switch runtime.GOOS {
	case "windows":
		if appData := os.Getenv("APPDATA"); appData != "" {
			return filepath.Join(appData, appDirName), nil
		}
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to resolve home directory: %w", err)
		}
		return filepath.Join(home, appDirName), nil

	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to resolve home directory: %w", err)
		}
		return filepath.Join(home, "Library", "Application Support", appDirName), nil

	default:
		if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
			return filepath.Join(xdg, appDirName), nil
		}
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to resolve home directory: %w", err)
		}
		return filepath.Join(home, ".local", "share", appDirName), nil
	}
}
