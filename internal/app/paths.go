package app

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Paths stores resolved runtime file locations.
type Paths struct {
	RootDir    string
	ConfigFile string
	EnvFile    string
	DBFile     string
	LogFile    string
}

// ResolvePaths places everything under the user config dir.
func ResolvePaths() (Paths, error) {
	cfgRoot, err := os.UserConfigDir()
	if err != nil {
		return Paths{}, fmt.Errorf("resolve config dir: %w", err)
	}

	return ResolvePathsIn(filepath.Join(cfgRoot, Name))
}

// ResolvePathsIn uses root as the application directory and creates it if needed.
func ResolvePathsIn(root string) (Paths, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		return ResolvePaths()
	}
	if err := os.MkdirAll(root, 0o750); err != nil {
		return Paths{}, fmt.Errorf("create app config dir: %w", err)
	}

	return Paths{
		RootDir:    root,
		ConfigFile: filepath.Join(root, ConfigFilename),
		EnvFile:    filepath.Join(root, EnvFilename),
		DBFile:     filepath.Join(root, DBFilename),
		LogFile:    filepath.Join(root, LogFilename),
	}, nil
}
