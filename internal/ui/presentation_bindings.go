package ui

import (
	"fyne.io/fyne/v2"

	airqapp "github.com/skobkin/airqctl/internal/app"
	"github.com/skobkin/airqctl/internal/connectors"
	"github.com/skobkin/airqctl/internal/persistence"
)

func bindPresentationListeners(dep RuntimeDependencies, fyApp fyne.App, view mainView) func() {
	applyRelease := func(snapshot airqapp.FirmwareReleaseSnapshot) {
		if view.updateIndicator != nil {
			view.updateIndicator.ApplySnapshot(snapshot)
		}
		if view.firmware != nil {
			view.firmware.ApplyRelease(snapshot)
		}
		if view.left != nil {
			view.left.Refresh()
		}
	}

	appLogger.Debug("starting UI event listeners")
	stop := startUIEventListeners(dep.Data.Bus, uiEventHandlers{
		OnConnStatus: func(status connectors.ConnectionStatus) {
			fyne.Do(func() {
				if view.connStatusPresenter != nil {
					view.connStatusPresenter.Set(status, fyApp.Settings().ThemeVariant())
				}
			})
		},
		OnFirmwareRelease: func(snapshot airqapp.FirmwareReleaseSnapshot) {
			fyne.Do(func() {
				applyRelease(snapshot)
			})
		},
		OnConsoleLine: func(line connectors.ConsoleLine) {
			fyne.Do(func() {
				if view.diagnostics != nil {
					view.diagnostics.AppendConsoleLine(line)
				}
			})
		},
		OnBrokerReading: func(reading connectors.BrokerReading) {
			fyne.Do(func() {
				if view.diagnostics != nil {
					view.diagnostics.ApplyBrokerReading(reading)
				}
			})
		},
		OnDeviceEvent: func(event persistence.DeviceEvent) {
			fyne.Do(func() {
				if view.diagnostics != nil {
					view.diagnostics.AppendDeviceEvent(event)
				}
			})
		},
	})

	if status, ok := currentConnStatus(dep); ok && view.connStatusPresenter != nil {
		view.connStatusPresenter.Set(status, fyApp.Settings().ThemeVariant())
	}
	if snapshot, ok := currentRelease(dep); ok {
		applyRelease(snapshot)
	}

	return stop
}
