package ui

import (
	"log/slog"

	"fyne.io/fyne/v2"
	fyneapp "fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/container"

	airqapp "github.com/skobkin/airqctl/internal/app"
	"github.com/skobkin/airqctl/internal/resources"
)

const appID = "net.skobk.airqctl"

var appLogger = slog.With("component", "ui.app")

var newFyneApp = func() fyne.App {
	return fyneapp.NewWithID(appID)
}

// Run builds the main window on a new Fyne application and blocks until it quits.
func Run(dep RuntimeDependencies) error {
	return runWithApp(dep, newFyneApp())
}

func runWithApp(dep RuntimeDependencies, fyApp fyne.App) error {
	initialVariant := fyApp.Settings().ThemeVariant()
	fyApp.SetIcon(resources.AppIconResource(initialVariant))
	appLogger.Info(
		"starting UI runtime",
		"start_hidden", dep.Launch.StartHidden,
		"initial_theme", initialVariant,
		"version", airqapp.BuildVersion(),
	)

	initialStatus := resolveInitialConnStatus(dep)

	window := fyApp.NewWindow("")
	window.Resize(fyne.NewSize(1000, 700))
	view := buildMainView(
		dep,
		fyApp,
		window,
		initialVariant,
		initialStatus,
	)

	themeRuntime := newThemeRuntime(fyApp, view)
	themeRuntime.BindSettings()

	stopNotifications := startNotificationService(dep, fyApp, dep.Launch.StartHidden)

	stopUIListeners := bindPresentationListeners(
		dep,
		fyApp,
		view,
	)
	// Services publish from their first tick, so listeners must exist before they start.
	if dep.Actions.StartServices != nil {
		dep.Actions.StartServices()
	}
	view.start()

	content := container.NewBorder(nil, nil, view.left, nil, view.rightStack)
	window.SetContent(container.NewStack(content, view.tooltipLayer))

	uiRuntime := newUIRuntime(
		fyApp,
		window,
		stopNotifications,
		stopUIListeners,
		dep.Actions.OnQuit,
	)
	uiRuntime.BindCloseIntercept()

	tray := configureSystemTray(
		fyApp,
		window,
		initialVariant,
		view.connStatusPresenter.CurrentStatus(),
		dep.Data.Config.Device.BaseURL,
		uiRuntime.Quit,
	)
	view.connStatusPresenter.OnChange(tray.SetConnStatus)
	themeRuntime.SetTray(tray)
	themeRuntime.Apply(initialVariant)

	uiRuntime.Run(dep.Launch.StartHidden)

	return nil
}
