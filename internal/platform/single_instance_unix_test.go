//go:build unix && !windows

package platform

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
)

func TestAcquireInstanceLockContentionAndRelease(t *testing.T) {
	t.Setenv("XDG_RUNTIME_DIR", t.TempDir())
	appID := "airqctl-test-" + strconv.Itoa(os.Getpid())

	first, err := AcquireInstanceLock(appID, "")
	if err != nil {
		t.Fatalf("acquire first lock: %v", err)
	}

	second, err := AcquireInstanceLock(appID, "")
	if !errors.Is(err, ErrInstanceAlreadyRunning) {
		t.Fatalf("expected %v, got %v", ErrInstanceAlreadyRunning, err)
	}
	if second != nil {
		t.Fatalf("expected second lock to be nil, got %#v", second)
	}

	other, err := AcquireInstanceLock(appID, "/tmp/other-config")
	if err != nil {
		t.Fatalf("expected lock for another config dir, got %v", err)
	}
	if err := other.Release(); err != nil {
		t.Fatalf("release other lock: %v", err)
	}

	if err := first.Release(); err != nil {
		t.Fatalf("release first lock: %v", err)
	}
	third, err := AcquireInstanceLock(appID, "")
	if err != nil {
		t.Fatalf("acquire lock after release: %v", err)
	}
	if err := third.Release(); err != nil {
		t.Fatalf("release third lock: %v", err)
	}
}

func TestUnixInstanceLockPath(t *testing.T) {
	runtimeDir := t.TempDir()
	t.Setenv("XDG_RUNTIME_DIR", runtimeDir)

	path, err := unixInstanceLockPath("airqctl")
	if err != nil {
		t.Fatalf("resolve lock path: %v", err)
	}
	if want := filepath.Join(runtimeDir, "airqctl", instanceLockFilename); path != want {
		t.Fatalf("expected %q, got %q", want, path)
	}

	t.Setenv("XDG_RUNTIME_DIR", "")
	path, err = unixInstanceLockPath("airqctl")
	if err != nil {
		t.Fatalf("resolve fallback lock path: %v", err)
	}
	if fragment := "airqctl-" + strconv.Itoa(os.Getuid()); !strings.Contains(path, fragment) {
		t.Fatalf("expected path to contain %q, got %q", fragment, path)
	}
}

func TestWriteLockOwnerReplacesStalePID(t *testing.T) {
	path := filepath.Join(t.TempDir(), instanceLockFilename)
	if err := os.WriteFile(path, []byte("1234567890123"), 0o600); err != nil {
		t.Fatalf("seed lock file: %v", err)
	}

	file, err := os.OpenFile(path, os.O_RDWR, 0o600)
	if err != nil {
		t.Fatalf("open lock file: %v", err)
	}
	if err := writeLockOwner(file); err != nil {
		t.Fatalf("write owner: %v", err)
	}
	_ = file.Close()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read lock file: %v", err)
	}
	if got := string(data); got != strconv.Itoa(os.Getpid()) {
		t.Fatalf("expected current pid, got %q", got)
	}

	readOnly, err := os.Open(path)
	if err != nil {
		t.Fatalf("open read-only: %v", err)
	}
	defer func() { _ = readOnly.Close() }()
	if err := writeLockOwner(readOnly); err == nil {
		t.Fatalf("expected error for read-only lock file")
	}
}
