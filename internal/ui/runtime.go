package ui

import (
	"sync"

	"fyne.io/fyne/v2"
)

type uiRuntime struct {
	fyApp  fyne.App
	window fyne.Window

	stopNotifications func()
	stopUIListeners   func()
	onQuit            func()

	shutdownOnce sync.Once
}

func newUIRuntime(
	fyApp fyne.App,
	window fyne.Window,
	stopNotifications func(),
	stopUIListeners func(),
	onQuit func(),
) *uiRuntime {
	return &uiRuntime{
		fyApp:             fyApp,
		window:            window,
		stopNotifications: stopNotifications,
		stopUIListeners:   stopUIListeners,
		onQuit:            onQuit,
	}
}

// BindCloseIntercept hides the window to the tray instead of quitting.
func (r *uiRuntime) BindCloseIntercept() {
	if r.window == nil {
		return
	}
	r.window.SetCloseIntercept(func() {
		appLogger.Debug("main window close intercepted: hiding to tray")
		r.window.Hide()
	})
}

func (r *uiRuntime) Quit() {
	r.shutdownOnce.Do(func() {
		appLogger.Info("quitting UI runtime")
		r.stop()
		if r.fyApp != nil {
			r.fyApp.Quit()
		}
	})
}

func (r *uiRuntime) Run(startHidden bool) {
	if r.window != nil {
		r.window.Show()
		if startHidden {
			appLogger.Info("start hidden: hiding main window")
			r.window.Hide()
		}
	}
	if r.fyApp != nil {
		r.fyApp.Run()
	}
	appLogger.Info("UI runtime stopped")
	r.shutdownOnce.Do(func() {
		r.stop()
	})
}

func (r *uiRuntime) stop() {
	for _, stop := range []func(){r.stopNotifications, r.stopUIListeners, r.onQuit} {
		if stop != nil {
			stop()
		}
	}
}
