package ui

import (
	"context"
	"io"

	"fyne.io/fyne/v2"

	"github.com/skobkin/airqctl/internal/app"
	"github.com/skobkin/airqctl/internal/bus"
	"github.com/skobkin/airqctl/internal/config"
	"github.com/skobkin/airqctl/internal/connectors"
	"github.com/skobkin/airqctl/internal/device"
	"github.com/skobkin/airqctl/internal/persistence"
)

// PreferencesService is the part of the preference sync engine the device tab drives.
type PreferencesService interface {
	Attach(render func(app.PreferenceForm))
	State() app.PreferenceForm
	Initialize(ctx context.Context) error
	Rescan(ctx context.Context) error
	Save(ctx context.Context) error
	Reload(ctx context.Context) error
	UpdateForm(edit func(*app.PreferenceForm))
	SelectNetwork(ssid string) error
}

// FirmwareUploader is the part of the upload controller the firmware tab drives.
type FirmwareUploader interface {
	Attach(render func(app.UploadState))
	State() app.UploadState
	Submit(ctx context.Context, name string, body io.Reader, size int64) (app.UploadState, error)
}

type DeviceActionRunner interface {
	Run(ctx context.Context, action app.DeviceAction) (device.ActionResult, error)
}

type DataDependencies struct {
	Config            config.AppConfig
	Bus               bus.MessageBus
	Paths             app.Paths
	CurrentConfig     func() config.AppConfig
	CurrentConnStatus func() (connectors.ConnectionStatus, bool)
	CurrentRelease    func() (app.FirmwareReleaseSnapshot, bool)
	ConsoleLines      func() []connectors.ConsoleLine
	BrokerReadings    func() []connectors.BrokerReading
	RecentSamples     func(ctx context.Context, region app.TelemetryRegion, limit int) ([]persistence.Sample, error)
	RecentEvents      func(ctx context.Context, limit int) ([]persistence.DeviceEvent, error)
}

type ActionDependencies struct {
	Preferences    PreferencesService
	Upload         FirmwareUploader
	DeviceActions  DeviceActionRunner
	StartTelemetry func(sink app.TelemetrySink) bool
	StartServices  func()
	OnSave         func(cfg config.AppConfig) error
	OnClearDB      func() error
	OnQuit         func()
}

type PlatformDependencies struct {
	OpenWiFiSettings func() error
	OpenPath         func(path string) error
	ListSerialPorts  func() ([]string, error)
	// Notifier is bound to the Fyne app once it exists. May be nil.
	Notifier *FyneNotificationSender
}

type UIHooks struct {
	CurrentWindow   func() fyne.Window
	RunOnUI         func(func())
	RunAsync        func(func())
	ShowErrorDialog func(err error, window fyne.Window)
	ShowInfoDialog  func(title, message string, window fyne.Window)
	ShowConfirm     func(title, message string, onConfirm func(bool), window fyne.Window)
}

type LaunchOptions struct {
	StartHidden bool
}

type RuntimeDependencies struct {
	Data     DataDependencies
	Actions  ActionDependencies
	Platform PlatformDependencies
	UIHooks  UIHooks
	Launch   LaunchOptions
}
