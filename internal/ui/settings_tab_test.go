package ui

import (
	"errors"
	"strings"
	"testing"

	fynetest "fyne.io/fyne/v2/test"
	"fyne.io/fyne/v2/widget"

	airqapp "github.com/skobkin/airqctl/internal/app"
	"github.com/skobkin/airqctl/internal/config"
)

func newTestSettingsTab(t *testing.T, dep RuntimeDependencies) *settingsTab {
	t.Helper()
	app := fynetest.NewApp()
	t.Cleanup(app.Quit)
	if dep.UIHooks.CurrentWindow == nil {
		dep.UIHooks = syncHooks(app.NewWindow("settings"), true)
	}

	return newSettingsTab(dep, widget.NewLabel(""))
}

func TestSettingsTabBuildReadsForm(t *testing.T) {
	cfg := config.Default()
	cfg.Console.Port = "/dev/ttyUSB0"
	tab := newTestSettingsTab(t, RuntimeDependencies{
		Data: DataDependencies{Config: cfg},
		Platform: PlatformDependencies{
			ListSerialPorts: func() ([]string, error) {
				return []string{"/dev/ttyACM0"}, nil
			},
		},
	})

	if tab.consolePort.Selected != "/dev/ttyUSB0" {
		t.Fatalf("expected configured port to stay selected, got %q", tab.consolePort.Selected)
	}
	if len(tab.consolePort.Options) != 3 {
		t.Fatalf("expected off, listed and configured ports, got %v", tab.consolePort.Options)
	}

	tab.deviceURL.SetText(" http://airq.local ")
	tab.sensorInterval.SetText("2000")
	tab.brokerEnabled.SetChecked(true)
	tab.brokerURL.SetText("tcp://broker.local:1883")
	tab.consolePort.SetSelected(consolePortNone)
	tab.consoleBaud.SetSelected("9600")
	tab.notifyFocused.SetChecked(true)
	tab.logLevel.SetSelected("debug")

	built, err := tab.Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if built.Device.BaseURL != "http://airq.local" || built.Polling.SensorIntervalMS != 2000 {
		t.Fatalf("unexpected device section %+v %+v", built.Device, built.Polling)
	}
	if !built.Broker.Enabled || built.Broker.URL != "tcp://broker.local:1883" {
		t.Fatalf("unexpected broker section %+v", built.Broker)
	}
	if built.Console.Port != "" || built.Console.Baud != 9600 {
		t.Fatalf("unexpected console section %+v", built.Console)
	}
	if !built.Notifications.NotifyWhenFocused || built.Logging.Level != "debug" {
		t.Fatalf("unexpected notifications/logging %+v %+v", built.Notifications, built.Logging)
	}
}

func TestSettingsTabBuildRejectsBadNumbers(t *testing.T) {
	tab := newTestSettingsTab(t, RuntimeDependencies{Data: DataDependencies{Config: config.Default()}})

	tab.requestTimeout.SetText("soon")
	if _, err := tab.Build(); err == nil || !strings.Contains(err.Error(), "request timeout") {
		t.Fatalf("expected request timeout error, got %v", err)
	}

	tab.requestTimeout.SetText("1000")
	tab.historyRetention.SetText("0")
	if _, err := tab.Build(); err == nil || !strings.Contains(err.Error(), "must be positive") {
		t.Fatalf("expected positive number error, got %v", err)
	}
}

func TestSettingsTabSave(t *testing.T) {
	var saved []config.AppConfig
	saveErr := error(nil)
	tab := newTestSettingsTab(t, RuntimeDependencies{
		Data: DataDependencies{Config: config.Default()},
		Actions: ActionDependencies{
			OnSave: func(cfg config.AppConfig) error {
				if saveErr != nil {
					return saveErr
				}
				saved = append(saved, cfg)

				return nil
			},
		},
	})

	tab.Save()
	if len(saved) != 1 || tab.status.Text != "Saved" {
		t.Fatalf("expected one save with status, saves=%d status=%q", len(saved), tab.status.Text)
	}

	tab.historyEnabled.SetChecked(true)
	tab.Save()
	if tab.status.Text != "Saved. History changes apply after restart." {
		t.Fatalf("unexpected history status %q", tab.status.Text)
	}

	saveErr = errors.New("invalid device url")
	tab.Save()
	if tab.status.Text != "Save failed: invalid device url" {
		t.Fatalf("unexpected failure status %q", tab.status.Text)
	}
}

func TestSettingsTabAutostartControls(t *testing.T) {
	cfg := config.Default()
	cfg.UI.Autostart = config.AutostartConfig{Enabled: true, Mode: config.AutostartModeBackground}
	var saved []config.AppConfig
	tab := newTestSettingsTab(t, RuntimeDependencies{
		Data: DataDependencies{Config: cfg},
		Actions: ActionDependencies{
			OnSave: func(cfg config.AppConfig) error {
				saved = append(saved, cfg)

				return &airqapp.AutostartSyncWarning{Err: errors.New("permission denied")}
			},
		},
	})

	if !tab.autostartEnabled.Checked || tab.autostartMode.Selected != autostartOptionTray || tab.autostartMode.Disabled() {
		t.Fatalf("expected background autostart to be shown, checked=%v mode=%q", tab.autostartEnabled.Checked, tab.autostartMode.Selected)
	}

	tab.autostartMode.SetSelected(autostartOptionNormal)
	tab.Save()
	if len(saved) != 1 || saved[0].UI.Autostart.Mode != config.AutostartModeNormal {
		t.Fatalf("expected normal mode to be saved, got %+v", saved)
	}
	if tab.status.Text != "Saved with warning: autostart sync failed: permission denied" {
		t.Fatalf("unexpected warning status %q", tab.status.Text)
	}
	if tab.current.UI.Autostart.Mode != config.AutostartModeNormal {
		t.Fatalf("expected saved config to become current after warning")
	}

	tab.autostartEnabled.SetChecked(false)
	if !tab.autostartMode.Disabled() {
		t.Fatalf("expected mode select to follow the autostart check")
	}
	built, err := tab.Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if built.UI.Autostart.Enabled {
		t.Fatalf("expected autostart to be disabled, got %+v", built.UI.Autostart)
	}
}

func TestSettingsTabWithoutActions(t *testing.T) {
	tab := newTestSettingsTab(t, RuntimeDependencies{Data: DataDependencies{Config: config.Default()}})

	if !tab.saveButton.Disabled() || !tab.clearDBButton.Disabled() {
		t.Fatalf("expected save and clear buttons to be disabled")
	}
	if tab.consolePort.Selected != consolePortNone {
		t.Fatalf("expected serial console off, got %q", tab.consolePort.Selected)
	}
	tab.Save()
	if tab.status.Text != "Save is not available" {
		t.Fatalf("unexpected status %q", tab.status.Text)
	}
	tab.ClearHistory()
	if tab.status.Text != "History is disabled" {
		t.Fatalf("unexpected status %q", tab.status.Text)
	}
}

func TestSettingsTabClearHistoryAndOpenFolder(t *testing.T) {
	var clearCalls int
	var openedPath string
	dep := RuntimeDependencies{
		Data: DataDependencies{Config: config.Default()},
		Actions: ActionDependencies{
			OnClearDB: func() error {
				clearCalls++

				return nil
			},
		},
		Platform: PlatformDependencies{
			OpenPath: func(path string) error {
				openedPath = path

				return nil
			},
		},
	}
	dep.Data.Paths.RootDir = "/home/user/.config/airqctl"
	tab := newTestSettingsTab(t, dep)

	tab.ClearHistory()
	if clearCalls != 1 || tab.status.Text != "History cleared" {
		t.Fatalf("expected history cleared once, calls=%d status=%q", clearCalls, tab.status.Text)
	}

	tab.OpenConfigFolder()
	if openedPath != "/home/user/.config/airqctl" {
		t.Fatalf("unexpected opened path %q", openedPath)
	}
}

func TestSettingsTabListPortsError(t *testing.T) {
	tab := newTestSettingsTab(t, RuntimeDependencies{
		Data: DataDependencies{Config: config.Default()},
		Platform: PlatformDependencies{
			ListSerialPorts: func() ([]string, error) {
				return nil, errors.New("permission denied")
			},
		},
	})

	if tab.status.Text != "Failed to list serial ports: permission denied" {
		t.Fatalf("unexpected status %q", tab.status.Text)
	}
}
