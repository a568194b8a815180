//go:build !linux && !windows

package platform

import (
	"fmt"
	"runtime"
)

type unsupportedAutostartManager struct{}

func newAutostartManager() AutostartManager {
	return unsupportedAutostartManager{}
}

func (unsupportedAutostartManager) Sync(cfg AutostartConfig) error {
	if !cfg.Enabled {
		return nil
	}

	return fmt.Errorf("launch at login is not supported on %s", runtime.GOOS)
}
