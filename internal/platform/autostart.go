package platform

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	autostartEntryName = "airqctl"
	startHiddenArg     = "--start-hidden"
)

// LaunchMode selects whether the login launch opens the window or only the tray.
type LaunchMode string

const (
	LaunchModeNormal     LaunchMode = "normal"
	LaunchModeBackground LaunchMode = "background"
)

type AutostartConfig struct {
	Enabled bool
	Mode    LaunchMode
}

// AutostartManager registers or removes the launch-at-login entry.
type AutostartManager interface {
	Sync(cfg AutostartConfig) error
}

func NewAutostartManager() AutostartManager {
	return newAutostartManager()
}

func normalizeLaunchMode(mode LaunchMode) LaunchMode {
	if mode == LaunchModeBackground {
		return LaunchModeBackground
	}

	return LaunchModeNormal
}

func launchArgsForMode(mode LaunchMode) []string {
	if normalizeLaunchMode(mode) == LaunchModeBackground {
		return []string{startHiddenArg}
	}

	return nil
}

// buildLaunchCommand resolves the running binary, so the entry always starts
// the GUI build that saved the setting.
func buildLaunchCommand(cfg AutostartConfig) (string, []string, error) {
	executable, err := resolveExecutablePath()
	if err != nil {
		return "", nil, err
	}

	return executable, launchArgsForMode(cfg.Mode), nil
}

func resolveExecutablePath() (string, error) {
	raw, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("resolve executable path: %w", err)
	}
	path := strings.TrimSpace(raw)
	if path == "" {
		return "", fmt.Errorf("resolve executable path: path is empty")
	}
	if !filepath.IsAbs(path) {
		if path, err = filepath.Abs(path); err != nil {
			return "", fmt.Errorf("resolve executable absolute path: %w", err)
		}
	}
	if resolved, err := filepath.EvalSymlinks(path); err == nil {
		path = resolved
	}

	return filepath.Clean(path), nil
}
