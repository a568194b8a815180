package app

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/skobkin/airqctl/internal/broker"
	"github.com/skobkin/airqctl/internal/bus"
	"github.com/skobkin/airqctl/internal/config"
	"github.com/skobkin/airqctl/internal/connectors"
	"github.com/skobkin/airqctl/internal/device"
	"github.com/skobkin/airqctl/internal/logging"
	"github.com/skobkin/airqctl/internal/notifications"
	"github.com/skobkin/airqctl/internal/persistence"
	"github.com/skobkin/airqctl/internal/platform"
	"github.com/skobkin/airqctl/internal/transport"
)

const historyWriterCapacity = 512

// Options tune runtime construction for the GUI and the CLI.
type Options struct {
	// ConfigDir replaces the per-user application directory.
	ConfigDir string
	// DeviceURL overrides the configured device address for this process only.
	DeviceURL string
	// LogConsole receives log output instead of stdout.
	LogConsole io.Writer
	// Notifier receives firmware upload outcomes.
	Notifier notifications.Sender
	// Autostart registers the running executable for launch at login.
	// Nil leaves the OS registration untouched.
	Autostart platform.AutostartManager
}

type Runtime struct {
	mu sync.RWMutex

	Ctx    context.Context
	cancel context.CancelFunc

	Paths  Paths
	Config config.AppConfig
	// fileConfig is Config without environment and flag overrides.
	fileConfig config.AppConfig

	AutostartManager platform.AutostartManager

	LogManager *logging.Manager
	Bus        *bus.PubSubBus

	Device      *device.Client
	Preferences *PreferenceSyncEngine
	Upload      *FirmwareUploadController
	Actions     *DeviceActions
	Releases    *FirmwareReleaseChecker

	DB          *sql.DB
	Samples     *persistence.SampleRepo
	WriterQueue *persistence.WriterQueue

	serviceMu       sync.Mutex
	servicesStarted bool
	poller          *TelemetryPoller
	pollerSink      TelemetrySink
	console         *ConsoleMonitor
	mirror          *broker.Mirror

	connStatusMu    sync.RWMutex
	connStatus      connectors.ConnectionStatus
	connStatusKnown bool
}

func Initialize(parent context.Context, opts Options) (*Runtime, error) {
	paths, err := ResolvePathsIn(opts.ConfigDir)
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load(paths.ConfigFile)
	if err != nil {
		return nil, err
	}
	fileCfg := cfg
	lookup, err := config.EnvLookup(paths.EnvFile)
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(lookup); err != nil {
		return nil, fmt.Errorf("apply environment: %w", err)
	}
	if override := strings.TrimSpace(opts.DeviceURL); override != "" {
		cfg.Device.BaseURL = override
		cfg.FillMissingDefaults()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	ctx, cancel := context.WithCancel(parent)
	rt := &Runtime{
		Ctx:    ctx,
		cancel: cancel,
		Paths:  paths,
		Config: cfg,

		fileConfig:       fileCfg,
		AutostartManager: opts.Autostart,
	}

	var logOpts []logging.Option
	if opts.LogConsole != nil {
		logOpts = append(logOpts, logging.WithConsole(opts.LogConsole))
	}
	logMgr := logging.NewManager(logOpts...)
	if err := logMgr.Configure(cfg.Logging, paths.LogFile); err != nil {
		_ = logMgr.Close()
		cancel()

		return nil, fmt.Errorf("configure logging: %w", err)
	}
	rt.LogManager = logMgr
	slog.Info("starting airqctl runtime", "version", BuildVersion(), "build_date", BuildDateYMD(), "device", cfg.Device.BaseURL)
	if err := rt.syncAutostart(cfg, "startup"); err != nil {
		slog.Warn("sync autostart on startup", "error", err)
	}

	b := bus.New(logMgr.Logger("bus"))
	rt.Bus = b
	rt.setConnStatus(ConnectionStatusFromConfig(cfg.Device))
	connSub := b.Subscribe(connectors.TopicConnStatus)
	go rt.captureConnStatus(ctx, connSub)

	rt.Device = device.NewClient(device.ClientConfig{
		BaseURL: cfg.Device.BaseURL,
		Timeout: cfg.Device.RequestTimeout(),
		Logger:  logMgr.Logger("device"),
	})
	rt.Preferences = NewPreferenceSyncEngine(PreferenceSyncConfig{
		Client: rt.Device,
		Bus:    b,
		Logger: logMgr.Logger("preferences"),
	})
	rt.Upload = NewFirmwareUploadController(FirmwareUploadConfig{
		Uploader: rt.Device,
		Notifier: opts.Notifier,
		Bus:      b,
		Logger:   logMgr.Logger("firmware_upload"),
	})
	rt.Actions = NewDeviceActions(rt.Device, b, logMgr.Logger("device_actions"))
	rt.Releases = NewFirmwareReleaseChecker(FirmwareReleaseCheckerConfig{
		DeviceVersion: rt.deviceFirmwareVersion,
		Endpoint:      cfg.Firmware.ReleaseFeedURL,
		Interval:      cfg.Firmware.CheckInterval(),
		Bus:           b,
		Logger:        logMgr.Logger("firmware_releases"),
	})

	if cfg.History.Enabled {
		if err := rt.openHistory(ctx, cfg.History); err != nil {
			_ = rt.Close()

			return nil, err
		}
	}

	return rt, nil
}

func (r *Runtime) openHistory(ctx context.Context, cfg config.HistoryConfig) error {
	db, err := persistence.Open(ctx, r.Paths.DBFile)
	if err != nil {
		return err
	}
	r.DB = db
	r.Samples = persistence.NewSampleRepo(db)

	writerQueue := persistence.NewWriterQueue(r.LogManager.Logger("persistence"), historyWriterCapacity)
	writerQueue.Start(ctx)
	r.WriterQueue = writerQueue
	StartHistoryProjection(ctx, r.Bus, writerQueue, r.Samples, r.LogManager.Logger("history"))
	PruneHistory(ctx, r.Samples, cfg.Retention(), r.LogManager.Logger("history"))

	return nil
}

// StartTelemetry starts polling into sink. It returns false without a sink or
// when polling already runs.
func (r *Runtime) StartTelemetry(sink TelemetrySink) bool {
	if sink == nil {
		return false
	}

	r.serviceMu.Lock()
	defer r.serviceMu.Unlock()
	if r.poller != nil {
		return false
	}
	r.pollerSink = sink
	r.poller = r.newPoller(r.CurrentConfig().Polling, sink)

	return r.poller.Start(r.Ctx)
}

func (r *Runtime) newPoller(polling config.PollingConfig, sink TelemetrySink) *TelemetryPoller {
	return NewTelemetryPoller(TelemetryPollerConfig{
		Source:         r.Device,
		Sink:           sink,
		Bus:            r.Bus,
		SensorInterval: polling.SensorInterval(),
		StatusInterval: polling.StatusInterval(),
		Target:         r.Device.BaseURL,
		Logger:         r.LogManager.Logger("telemetry"),
	})
}

// Telemetry returns the running poller, or nil before StartTelemetry.
func (r *Runtime) Telemetry() *TelemetryPoller {
	r.serviceMu.Lock()
	defer r.serviceMu.Unlock()

	return r.poller
}

func (r *Runtime) deviceFirmwareVersion() string {
	if poller := r.Telemetry(); poller != nil {
		return poller.FirmwareVersion()
	}

	return ""
}

// StartServices launches the long-running helpers the GUI shows: the release
// checker, the serial console and the broker mirror. Missing configuration
// leaves the matching helper off.
func (r *Runtime) StartServices() {
	r.serviceMu.Lock()
	defer r.serviceMu.Unlock()
	if r.servicesStarted {
		return
	}
	r.servicesStarted = true

	cfg := r.CurrentConfig()
	r.Releases.Start(r.Ctx)
	r.startConsoleLocked(cfg.Console)
	r.startMirrorLocked(cfg.Broker)
}

func (r *Runtime) startConsoleLocked(cfg config.ConsoleConfig) {
	if strings.TrimSpace(cfg.Port) == "" {
		return
	}
	logger := r.LogManager.Logger("console")
	source := transport.NewSerialConsole(cfg.Port, cfg.Baud, logger)
	r.console = NewConsoleMonitor(ConsoleMonitorConfig{
		Source: source,
		Bus:    r.Bus,
		Logger: logger,
	})
	r.console.Start(r.Ctx)
}

func (r *Runtime) startMirrorLocked(cfg config.BrokerConfig) {
	if !cfg.Enabled {
		return
	}
	mirror := broker.NewMirror(broker.Config{
		URL:      cfg.URL,
		Username: cfg.Username,
		Password: cfg.Password,
		ClientID: cfg.ClientID,
		Bus:      r.Bus,
		Logger:   r.LogManager.Logger("broker"),
	})
	r.mirror = mirror
	go func() {
		if err := mirror.Start(r.Ctx); err != nil {
			slog.Warn("start broker mirror", "error", err)
		}
	}()
}

// Console returns the serial console monitor when one is configured.
func (r *Runtime) Console() *ConsoleMonitor {
	r.serviceMu.Lock()
	defer r.serviceMu.Unlock()

	return r.console
}

// Mirror returns the broker mirror when one is configured.
func (r *Runtime) Mirror() *broker.Mirror {
	r.serviceMu.Lock()
	defer r.serviceMu.Unlock()

	return r.mirror
}

// ConsoleLines returns the buffered serial console lines, oldest first.
func (r *Runtime) ConsoleLines() []connectors.ConsoleLine {
	console := r.Console()
	if console == nil {
		return nil
	}

	return console.Buffer().Lines()
}

// BrokerReadings returns the newest broker publication per topic.
func (r *Runtime) BrokerReadings() []connectors.BrokerReading {
	mirror := r.Mirror()
	if mirror == nil {
		return nil
	}

	return mirror.Latest()
}

func (r *Runtime) captureConnStatus(ctx context.Context, sub bus.Subscription) {
	for {
		select {
		case <-ctx.Done():
			return
		case raw, ok := <-sub:
			if !ok {
				return
			}
			status, ok := raw.(connectors.ConnectionStatus)
			if !ok {
				continue
			}
			r.setConnStatus(status)
		}
	}
}

func (r *Runtime) setConnStatus(status connectors.ConnectionStatus) {
	r.connStatusMu.Lock()
	r.connStatus = status
	r.connStatusKnown = true
	r.connStatusMu.Unlock()
}

func (r *Runtime) CurrentConnStatus() (connectors.ConnectionStatus, bool) {
	r.connStatusMu.RLock()
	status := r.connStatus
	known := r.connStatusKnown
	r.connStatusMu.RUnlock()

	return status, known
}

func (r *Runtime) CurrentConfig() config.AppConfig {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.Config
}

// SaveAndApplyConfig persists cfg and applies it to the running services.
// Values that still carry an environment or flag override are written with
// their file value. History changes take effect on the next start.
func (r *Runtime) SaveAndApplyConfig(cfg config.AppConfig) error {
	cfg.FillMissingDefaults()
	if err := cfg.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	persisted := config.WithoutOverrides(cfg, r.Config, r.fileConfig)
	if err := config.Save(r.Paths.ConfigFile, persisted); err != nil {
		r.mu.Unlock()

		return err
	}
	prev := r.Config
	r.Config = cfg
	r.fileConfig = persisted
	r.mu.Unlock()

	if err := r.LogManager.Configure(cfg.Logging, r.Paths.LogFile); err != nil {
		return err
	}
	if prev.Device.BaseURL != cfg.Device.BaseURL {
		r.Device.SetBaseURL(cfg.Device.BaseURL)
		r.Bus.Publish(connectors.TopicConnStatus, ConnectionStatusFromConfig(cfg.Device))
	}
	r.applyServices(prev, cfg)

	if err := r.syncAutostart(cfg, "settings_save"); err != nil {
		slog.Warn("sync autostart after save", "error", err)

		return &AutostartSyncWarning{Err: err}
	}

	return nil
}

func (r *Runtime) applyServices(prev, cfg config.AppConfig) {
	r.serviceMu.Lock()
	defer r.serviceMu.Unlock()
	if r.poller != nil && prev.Polling != cfg.Polling {
		r.poller.Stop()
		r.poller = r.newPoller(cfg.Polling, r.pollerSink)
		r.poller.Start(r.Ctx)
	}
	if !r.servicesStarted {
		return
	}
	if prev.Console != cfg.Console {
		if r.console != nil {
			r.console.Stop()
			r.console = nil
		}
		r.startConsoleLocked(cfg.Console)
	}
	if prev.Broker != cfg.Broker {
		if r.mirror != nil {
			r.mirror.Stop()
			r.mirror = nil
		}
		r.startMirrorLocked(cfg.Broker)
	}
	if prev.History != cfg.History {
		slog.Info("history settings change applies after restart")
	}
}

// RecentSamples lists the newest stored samples of a telemetry region.
func (r *Runtime) RecentSamples(ctx context.Context, region TelemetryRegion, limit int) ([]persistence.Sample, error) {
	if r.Samples == nil {
		return nil, fmt.Errorf("history is disabled")
	}
	if limit <= 0 {
		limit = RecentSamplesLoad
	}

	return r.Samples.ListRecent(ctx, string(region), limit)
}

// RecentEvents lists the newest journaled uploads and device commands.
func (r *Runtime) RecentEvents(ctx context.Context, limit int) ([]persistence.DeviceEvent, error) {
	if r.Samples == nil {
		return nil, fmt.Errorf("history is disabled")
	}
	if limit <= 0 {
		limit = RecentSamplesLoad
	}

	return r.Samples.ListEvents(ctx, limit)
}

func (r *Runtime) ClearDatabase() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := persistence.ClearDatabase(ctx, r.DB); err != nil {
		return err
	}
	slog.Info("history database cleared")

	return nil
}

func (r *Runtime) Close() error {
	r.serviceMu.Lock()
	poller, console, mirror := r.poller, r.console, r.mirror
	r.serviceMu.Unlock()

	if poller != nil {
		poller.Stop()
	}
	if console != nil {
		console.Stop()
	}
	if mirror != nil {
		mirror.Stop()
	}
	if r.WriterQueue != nil {
		flushCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		if err := r.WriterQueue.Flush(flushCtx); err != nil {
			slog.Warn("flush history writes", "error", err)
		}
		cancel()
	}
	if r.cancel != nil {
		r.cancel()
	}
	if r.Bus != nil {
		r.Bus.Close()
	}
	if r.DB != nil {
		_ = r.DB.Close()
	}
	if r.LogManager != nil {
		_ = r.LogManager.Close()
	}

	return nil
}
