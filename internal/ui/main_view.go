package ui

import (
	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/widget"

	airqapp "github.com/skobkin/airqctl/internal/app"
	"github.com/skobkin/airqctl/internal/connectors"
	"github.com/skobkin/airqctl/internal/resources"
)

const (
	tabTelemetry   = "Telemetry"
	tabDevice      = "Device"
	tabFirmware    = "Firmware"
	tabDiagnostics = "Diagnostics"
	tabApp         = "App"
)

type mainView struct {
	left                *fyne.Container
	rightStack          *fyne.Container
	tooltipLayer        *fyne.Container
	tooltips            *hoverTooltipManager
	sidebar             sidebarLayout
	updateIndicator     *updateIndicator
	connStatusPresenter *connectionStatusPresenter

	telemetry   *telemetryTab
	device      *deviceTab
	firmware    *firmwareTab
	diagnostics *diagnosticsTab
	settings    *settingsTab

	start func()
}

func buildMainView(
	dep RuntimeDependencies,
	fyApp fyne.App,
	window fyne.Window,
	initialVariant fyne.ThemeVariant,
	initialStatus connectors.ConnectionStatus,
) mainView {
	settingsConnStatus := widget.NewLabel("")
	settingsConnStatus.Truncation = fyne.TextTruncateEllipsis

	openReleaseInfo := func(snapshot airqapp.FirmwareReleaseSnapshot) {
		showReleaseDialog(window, fyApp.Settings().ThemeVariant(), snapshot, openExternalURL)
	}

	telemetry := newTelemetryTab(dep)
	deviceSettings := newDeviceTab(dep)
	firmware := newFirmwareTab(dep, openReleaseInfo)
	diagnostics := newDiagnosticsTab(dep)
	settings := newSettingsTab(dep, settingsConnStatus)

	tabContent := map[string]fyne.CanvasObject{
		tabTelemetry:   telemetry.root,
		tabDevice:      deviceSettings.root,
		tabFirmware:    firmware.root,
		tabDiagnostics: diagnostics.root,
		tabApp:         settings.root,
	}
	tabOnShow := map[string]func(){
		tabTelemetry: telemetry.OnShow,
		tabDevice:    deviceSettings.OnShow,
	}
	order := []string{tabTelemetry, tabDevice, tabFirmware, tabDiagnostics, tabApp}
	tabIcons := map[string]resources.UIIcon{
		tabTelemetry:   resources.UIIconTelemetry,
		tabDevice:      resources.UIIconDevice,
		tabFirmware:    resources.UIIconFirmware,
		tabDiagnostics: resources.UIIconDiagnostics,
		tabApp:         resources.UIIconAppSettings,
	}

	initialRelease, releaseKnown := currentRelease(dep)
	updateIndicator := newUpdateIndicator(initialVariant, initialRelease, releaseKnown, openReleaseInfo)
	tooltipLayer := container.NewWithoutLayout()
	tooltips := newHoverTooltipManager(tooltipLayer)
	updateIndicator.Button().SetTooltips(tooltips)
	connStatusPresenter := newConnectionStatusPresenter(window, initialStatus, initialVariant, settingsConnStatus)
	sidebar := buildSidebarLayout(
		initialVariant,
		tabContent,
		tabOnShow,
		order,
		tabIcons,
		updateIndicator.Button(),
		connStatusPresenter.SidebarIcon(),
	)

	start := func() {
		if dep.Actions.StartTelemetry != nil {
			dep.Actions.StartTelemetry(telemetry)
		}
		deviceSettings.Start()
	}

	return mainView{
		left:                sidebar.left,
		rightStack:          sidebar.rightStack,
		tooltipLayer:        tooltipLayer,
		tooltips:            tooltips,
		sidebar:             sidebar,
		updateIndicator:     updateIndicator,
		connStatusPresenter: connStatusPresenter,
		telemetry:           telemetry,
		device:              deviceSettings,
		firmware:            firmware,
		diagnostics:         diagnostics,
		settings:            settings,
		start:               start,
	}
}

func currentRelease(dep RuntimeDependencies) (airqapp.FirmwareReleaseSnapshot, bool) {
	if dep.Data.CurrentRelease == nil {
		return airqapp.FirmwareReleaseSnapshot{}, false
	}

	return dep.Data.CurrentRelease()
}
