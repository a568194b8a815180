package ui

import (
	"fyne.io/fyne/v2"

	"github.com/skobkin/airqctl/internal/resources"
)

// themeRuntime swaps variant-specific icons when the OS theme changes.
type themeRuntime struct {
	fyApp fyne.App
	view  mainView
	tray  *systemTray
}

func newThemeRuntime(fyApp fyne.App, view mainView) *themeRuntime {
	return &themeRuntime{
		fyApp: fyApp,
		view:  view,
	}
}

func (r *themeRuntime) SetTray(tray *systemTray) {
	r.tray = tray
}

func (r *themeRuntime) BindSettings() {
	r.fyApp.Settings().AddListener(func(_ fyne.Settings) {
		appLogger.Debug("theme settings changed")
		r.Apply(r.fyApp.Settings().ThemeVariant())
	})
}

func (r *themeRuntime) Apply(variant fyne.ThemeVariant) {
	appLogger.Debug("applying theme resources", "theme", variant)
	r.fyApp.SetIcon(resources.AppIconResource(variant))
	r.tray.SetIcon(variant)
	if r.view.sidebar.applyTheme != nil {
		r.view.sidebar.applyTheme(variant)
	}
	if r.view.updateIndicator != nil {
		r.view.updateIndicator.ApplyTheme(variant)
	}
	if r.view.connStatusPresenter != nil {
		r.view.connStatusPresenter.ApplyTheme(variant)
	}
	// An open hint bubble keeps the colors it was drawn with.
	r.view.tooltips.Hide(nil)
}
