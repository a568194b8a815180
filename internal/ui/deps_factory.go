package ui

import (
	airqapp "github.com/skobkin/airqctl/internal/app"
	"github.com/skobkin/airqctl/internal/platform"
	"github.com/skobkin/airqctl/internal/transport"
)

func BuildRuntimeDependencies(rt *airqapp.Runtime, launch LaunchOptions, onQuit func()) RuntimeDependencies {
	systemActions := platform.NewSystemActions()
	dep := RuntimeDependencies{
		Launch: launch,
		Actions: ActionDependencies{
			OnQuit: onQuit,
		},
		Platform: PlatformDependencies{
			OpenWiFiSettings: systemActions.OpenWiFiSettings,
			OpenPath:         systemActions.OpenPath,
			ListSerialPorts:  transport.ListPorts,
		},
	}

	if rt == nil {
		return dep
	}

	dep.Data = DataDependencies{
		Config:            rt.CurrentConfig(),
		Paths:             rt.Paths,
		CurrentConfig:     rt.CurrentConfig,
		CurrentConnStatus: rt.CurrentConnStatus,
		ConsoleLines:      rt.ConsoleLines,
		BrokerReadings:    rt.BrokerReadings,
	}
	if rt.Bus != nil {
		dep.Data.Bus = rt.Bus
	}
	if rt.Releases != nil {
		dep.Data.CurrentRelease = rt.Releases.CurrentSnapshot
	}
	if rt.Samples != nil {
		dep.Data.RecentSamples = rt.RecentSamples
		dep.Data.RecentEvents = rt.RecentEvents
	}

	// Typed nil pointers would make the interfaces non-nil.
	if rt.Preferences != nil {
		dep.Actions.Preferences = rt.Preferences
	}
	if rt.Upload != nil {
		dep.Actions.Upload = rt.Upload
	}
	if rt.Actions != nil {
		dep.Actions.DeviceActions = rt.Actions
	}
	dep.Actions.StartTelemetry = rt.StartTelemetry
	dep.Actions.StartServices = rt.StartServices
	dep.Actions.OnSave = rt.SaveAndApplyConfig
	if rt.DB != nil {
		dep.Actions.OnClearDB = rt.ClearDatabase
	}

	return dep
}
