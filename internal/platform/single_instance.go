package platform

import (
	"errors"
	"fmt"
	"hash/fnv"
	"path/filepath"
	"strings"
)

// ErrInstanceAlreadyRunning indicates another process already owns the app instance lock.
var ErrInstanceAlreadyRunning = errors.New("instance already running")

// ErrInstanceLockUnsupported indicates the current platform has no lock backend implementation.
var ErrInstanceLockUnsupported = errors.New("instance lock unsupported")

// InstanceLock represents an acquired single-instance lock.
type InstanceLock interface {
	Release() error
}

// AcquireInstanceLock takes the per-user lock for appID. Processes using
// different config directories lock independently, so two devices can be
// watched side by side.
func AcquireInstanceLock(appID, configDir string) (InstanceLock, error) {
	return acquireInstanceLock(InstanceLockName(appID, configDir))
}

// InstanceLockName builds the lock identifier used by the OS backends.
func InstanceLockName(appID, configDir string) string {
	name := normalizeInstanceLockComponent(appID, "app")
	configDir = strings.TrimSpace(configDir)
	if configDir == "" {
		return name
	}

	h := fnv.New32a()
	_, _ = h.Write([]byte(filepath.Clean(configDir)))

	return fmt.Sprintf("%s-%08x", name, h.Sum32())
}

func normalizeInstanceLockComponent(raw, fallback string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback
	}

	normalized := strings.Map(func(r rune) rune {
		switch {
		case (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9'):
			return r
		case r == '-' || r == '_' || r == '.':
			return r
		default:
			return '_'
		}
	}, raw)
	normalized = strings.Trim(normalized, "_-.")
	if normalized == "" {
		return fallback
	}

	return normalized
}
