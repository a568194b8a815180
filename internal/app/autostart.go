package app

import (
	"fmt"
	"log/slog"

	"github.com/skobkin/airqctl/internal/config"
	"github.com/skobkin/airqctl/internal/platform"
)

// AutostartSyncWarning reports a saved config whose login registration failed.
type AutostartSyncWarning struct {
	Err error
}

func (w *AutostartSyncWarning) Error() string {
	if w == nil || w.Err == nil {
		return "autostart sync failed"
	}

	return fmt.Sprintf("autostart sync failed: %v", w.Err)
}

func (w *AutostartSyncWarning) Unwrap() error {
	if w == nil {
		return nil
	}

	return w.Err
}

func (r *Runtime) syncAutostart(cfg config.AppConfig, trigger string) error {
	if r.AutostartManager == nil {
		slog.Debug("skip autostart sync: manager is not set", "trigger", trigger)

		return nil
	}

	autostart := cfg.UI.Autostart
	if err := r.AutostartManager.Sync(platform.AutostartConfig{
		Enabled: autostart.Enabled,
		Mode:    platform.LaunchMode(autostart.Mode),
	}); err != nil {
		return err
	}
	slog.Info("autostart registration synced", "trigger", trigger, "enabled", autostart.Enabled, "mode", autostart.Mode)

	return nil
}
