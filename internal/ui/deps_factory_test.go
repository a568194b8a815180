package ui

import (
	"testing"

	airqapp "github.com/skobkin/airqctl/internal/app"
	"github.com/skobkin/airqctl/internal/config"
)

func TestBuildRuntimeDependenciesMapsRuntimeAndLaunch(t *testing.T) {
	cfg := config.Default()
	cfg.Device.BaseURL = "http://airq.local"
	rt := &airqapp.Runtime{
		Config: cfg,
		Paths:  airqapp.Paths{RootDir: "/tmp/airqctl"},
	}

	quitCalled := false
	dep := BuildRuntimeDependencies(rt, LaunchOptions{StartHidden: true}, func() {
		quitCalled = true
	})

	if !dep.Launch.StartHidden {
		t.Fatalf("expected launch options to be mapped")
	}
	if dep.Data.Config.Device.BaseURL != "http://airq.local" {
		t.Fatalf("expected config to be mapped, got %q", dep.Data.Config.Device.BaseURL)
	}
	if dep.Data.Paths.RootDir != "/tmp/airqctl" {
		t.Fatalf("expected paths to be mapped")
	}
	if dep.Data.CurrentConfig == nil || dep.Data.CurrentConnStatus == nil {
		t.Fatalf("expected runtime providers to be mapped")
	}
	if dep.Data.ConsoleLines() != nil || dep.Data.BrokerReadings() != nil {
		t.Fatalf("expected no diagnostics data without services")
	}
	if dep.Data.Bus != nil {
		t.Fatalf("expected nil bus interface for runtime without bus")
	}
	if dep.Data.CurrentRelease != nil || dep.Data.RecentSamples != nil || dep.Data.RecentEvents != nil {
		t.Fatalf("expected optional providers to stay nil")
	}
	if dep.Actions.Preferences != nil || dep.Actions.Upload != nil || dep.Actions.DeviceActions != nil {
		t.Fatalf("expected missing services to stay nil interfaces")
	}
	if dep.Actions.OnSave == nil || dep.Actions.StartTelemetry == nil || dep.Actions.StartServices == nil {
		t.Fatalf("expected runtime actions to be mapped")
	}
	if dep.Actions.OnClearDB != nil {
		t.Fatalf("expected clear action to be nil without database")
	}
	if dep.Platform.ListSerialPorts == nil || dep.Platform.OpenPath == nil || dep.Platform.OpenWiFiSettings == nil {
		t.Fatalf("expected platform actions to be mapped")
	}

	dep.Actions.OnQuit()
	if !quitCalled {
		t.Fatalf("expected quit callback to be mapped")
	}
}

func TestBuildRuntimeDependenciesNilRuntime(t *testing.T) {
	dep := BuildRuntimeDependencies(nil, LaunchOptions{}, nil)

	if dep.Data.Bus != nil || dep.Actions.Preferences != nil {
		t.Fatalf("expected empty dependencies for nil runtime")
	}
	if dep.Platform.ListSerialPorts == nil {
		t.Fatalf("expected platform actions even without runtime")
	}
}
