package app

import (
	"os"
	"path/filepath"
	"testing"
)

func TestResolvePathsUsesUserConfigDir(t *testing.T) {
	configHome := filepath.Join(t.TempDir(), "cfg")
	t.Setenv("XDG_CONFIG_HOME", configHome)

	paths, err := ResolvePaths()
	if err != nil {
		t.Fatalf("resolve paths: %v", err)
	}

	root := filepath.Join(configHome, Name)
	if paths.RootDir != root {
		t.Fatalf("unexpected root dir: %q", paths.RootDir)
	}
	if paths.ConfigFile != filepath.Join(root, ConfigFilename) || paths.DBFile != filepath.Join(root, DBFilename) {
		t.Fatalf("unexpected file paths: %+v", paths)
	}
	if _, err := os.Stat(root); err != nil {
		t.Fatalf("expected root dir to exist: %v", err)
	}
}

func TestResolvePathsInCustomRoot(t *testing.T) {
	root := filepath.Join(t.TempDir(), "nested", "airqctl")

	paths, err := ResolvePathsIn(root)
	if err != nil {
		t.Fatalf("resolve paths: %v", err)
	}
	if paths.EnvFile != filepath.Join(root, EnvFilename) || paths.LogFile != filepath.Join(root, LogFilename) {
		t.Fatalf("unexpected file paths: %+v", paths)
	}
	if info, err := os.Stat(root); err != nil || !info.IsDir() {
		t.Fatalf("expected custom root to be created: %v", err)
	}
}
