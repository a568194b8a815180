package ui

import (
	"strings"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/driver/desktop"

	airqapp "github.com/skobkin/airqctl/internal/app"
	"github.com/skobkin/airqctl/internal/connectors"
	"github.com/skobkin/airqctl/internal/resources"
)

// systemTray owns the tray icon and menu. The first menu item mirrors device reachability.
// A nil systemTray is valid and does nothing.
type systemTray struct {
	desk   desktop.App
	menu   *fyne.Menu
	status *fyne.MenuItem
}

func configureSystemTray(
	fyApp fyne.App,
	window fyne.Window,
	initialVariant fyne.ThemeVariant,
	initialStatus connectors.ConnectionStatus,
	deviceURL string,
	quit func(),
) *systemTray {
	desk, ok := fyApp.(desktop.App)
	if !ok {
		return nil
	}

	tray := &systemTray{desk: desk}
	tray.status = fyne.NewMenuItem(formatConnStatus(initialStatus), nil)
	tray.status.Disabled = true

	openDevice := fyne.NewMenuItem("Open device web page", func() {
		appLogger.Debug("system tray open device page action invoked", "url", deviceURL)
		if err := openExternalURL(deviceURL); err != nil {
			appLogger.Warn("open device web page", "url", deviceURL, "error", err)
		}
	})
	openDevice.Disabled = strings.TrimSpace(deviceURL) == ""

	tray.menu = fyne.NewMenu(airqapp.Name,
		tray.status,
		fyne.NewMenuItemSeparator(),
		fyne.NewMenuItem("Show", func() {
			appLogger.Debug("system tray show action invoked")
			window.Show()
			window.RequestFocus()
		}),
		openDevice,
		fyne.NewMenuItem("Quit", func() {
			appLogger.Debug("system tray quit action invoked")
			quit()
		}),
	)
	tray.SetIcon(initialVariant)
	desk.SetSystemTrayMenu(tray.menu)

	return tray
}

func (t *systemTray) SetIcon(variant fyne.ThemeVariant) {
	if t == nil {
		return
	}
	t.desk.SetSystemTrayIcon(resources.TrayIconResource(variant))
}

// SetConnStatus rewrites the status item and pushes the menu to the tray again.
func (t *systemTray) SetConnStatus(status connectors.ConnectionStatus) {
	if t == nil {
		return
	}
	label := formatConnStatus(status)
	if t.status.Label == label {
		return
	}
	t.status.Label = label
	t.desk.SetSystemTrayMenu(t.menu)
}
