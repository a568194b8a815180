package ui

import (
	"fmt"
	"strings"

	"fyne.io/fyne/v2"

	airqapp "github.com/skobkin/airqctl/internal/app"
	"github.com/skobkin/airqctl/internal/resources"
)

// updateIndicator is the sidebar button that appears when newer firmware is published.
type updateIndicator struct {
	button     *iconNavButton
	snapshot   airqapp.FirmwareReleaseSnapshot
	known      bool
	onOpenInfo func(airqapp.FirmwareReleaseSnapshot)
}

func newUpdateIndicator(
	initialVariant fyne.ThemeVariant,
	initialSnapshot airqapp.FirmwareReleaseSnapshot,
	initialKnown bool,
	onOpenInfo func(airqapp.FirmwareReleaseSnapshot),
) *updateIndicator {
	indicator := &updateIndicator{
		snapshot:   initialSnapshot,
		known:      initialKnown,
		onOpenInfo: onOpenInfo,
	}
	indicator.button = newIconNavButton(
		resources.UIIconResource(resources.UIIconUpdateAvailable, initialVariant),
		sidebarConnIconSize,
		indicator.onTap,
	)
	indicator.applySnapshotUI(indicator.snapshot, indicator.known)

	return indicator
}

func (u *updateIndicator) Button() *iconNavButton {
	return u.button
}

func (u *updateIndicator) ApplyTheme(variant fyne.ThemeVariant) {
	u.button.SetIcon(resources.UIIconResource(resources.UIIconUpdateAvailable, variant))
}

func (u *updateIndicator) ApplySnapshot(snapshot airqapp.FirmwareReleaseSnapshot) {
	prevSnapshot := u.snapshot
	prevKnown := u.known
	u.snapshot = snapshot
	u.known = true

	if !prevKnown || prevSnapshot.UpdateAvailable != snapshot.UpdateAvailable || prevSnapshot.Latest.Version != snapshot.Latest.Version {
		appLogger.Info(
			"applied firmware release snapshot",
			"device_version", strings.TrimSpace(snapshot.DeviceVersion),
			"latest_version", strings.TrimSpace(snapshot.Latest.Version),
			"update_available", snapshot.UpdateAvailable,
			"release_count", len(snapshot.Releases),
		)
	}
	u.applySnapshotUI(snapshot, true)
}

func (u *updateIndicator) applySnapshotUI(snapshot airqapp.FirmwareReleaseSnapshot, known bool) {
	if known && snapshot.UpdateAvailable {
		u.button.SetText(snapshot.Latest.Version)
		u.button.SetHint(updateHint(snapshot))
		u.button.Show()

		return
	}
	u.button.SetText("")
	u.button.SetHint("")
	u.button.Hide()
}

func updateHint(snapshot airqapp.FirmwareReleaseSnapshot) string {
	latest := strings.TrimSpace(snapshot.Latest.Version)
	device := strings.TrimSpace(snapshot.DeviceVersion)
	if device == "" {
		return fmt.Sprintf("Firmware %s is available. Device version is unknown.", latest)
	}

	return fmt.Sprintf("Device firmware %s, latest %s. Click for release notes.", device, latest)
}

func (u *updateIndicator) onTap() {
	if !u.known || !u.snapshot.UpdateAvailable {
		appLogger.Debug("update button tap ignored: no available firmware update")

		return
	}
	if u.onOpenInfo != nil {
		u.onOpenInfo(u.snapshot)
	}
}
