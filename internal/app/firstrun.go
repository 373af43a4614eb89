package app

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
)

const (
	markerFileName = "first_run_completed"
	appName        = "catalogspectre"
	commitLogName  = "commits.json"
)

// ConfigDir returns the per-user state directory of catalogspectre
func ConfigDir() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, appName), nil
}

// DefaultCommitLogPath is where committed edits go when no path is configured
func DefaultCommitLogPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, commitLogName), nil
}

// IsFirstRun reports whether catalogspectre has never run for this user and
// records that it has now.
func IsFirstRun() bool {
	dir, err := ConfigDir()
	if err != nil {
		slog.Debug("failed to get app config directory", slog.String("error", err.Error()))
		return false
	}
	return markFirstRun(dir)
}

// markFirstRun creates the marker in dir and returns true when it was absent
func markFirstRun(dir string) bool {
	markerFilePath := filepath.Join(dir, markerFileName)

	_, err := os.Stat(markerFilePath)
	switch {
	case err == nil:
		return false
	case !errors.Is(err, os.ErrNotExist):
		slog.Debug("failed to check first run marker", slog.String("path", markerFilePath), slog.String("error", err.Error()))
		return false
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		slog.Debug("failed to create app config directory", slog.String("path", dir), slog.String("error", err.Error()))
		return false
	}
	f, err := os.Create(markerFilePath)
	if err != nil {
		slog.Debug("failed to create first run marker", slog.String("path", markerFilePath), slog.String("error", err.Error()))
		return false
	}
	_ = f.Close()
	return true
}
