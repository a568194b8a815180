package app

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/skobkin/airqctl/internal/bus"
	"github.com/skobkin/airqctl/internal/connectors"
	"github.com/skobkin/airqctl/internal/device"
)

const (
	defaultSensorInterval = 5 * time.Second
	defaultStatusInterval = 10 * time.Second
)

// TelemetryRegion names one of the two independently refreshed display regions.
type TelemetryRegion string

const (
	RegionSensors TelemetryRegion = "sensors"
	RegionStatus  TelemetryRegion = "status"
)

// TelemetryUpdate is one successful fetch, ready to be shown.
type TelemetryUpdate struct {
	Region TelemetryRegion
	Text   string
	Values map[string]any
	At     time.Time
}

// TelemetryState is the last rendered content of both regions.
type TelemetryState struct {
	Sensors TelemetryUpdate
	Status  TelemetryUpdate
}

type TelemetrySink interface {
	Render(update TelemetryUpdate)
}

type TelemetrySinkFunc func(update TelemetryUpdate)

func (f TelemetrySinkFunc) Render(update TelemetryUpdate) {
	f(update)
}

type TelemetrySource interface {
	SensorValues(ctx context.Context) (device.SensorSnapshot, error)
	Status(ctx context.Context) (device.StatusSnapshot, error)
}

// Ticker is the part of time.Ticker the poller needs.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

type TickerFactory func(interval time.Duration) Ticker

type timeTicker struct {
	t *time.Ticker
}

func (t timeTicker) C() <-chan time.Time { return t.t.C }
func (t timeTicker) Stop()               { t.t.Stop() }

func NewTimeTicker(interval time.Duration) Ticker {
	return timeTicker{t: time.NewTicker(interval)}
}

type TelemetryPollerConfig struct {
	Source         TelemetrySource
	Sink           TelemetrySink
	Bus            bus.MessageBus
	SensorInterval time.Duration
	StatusInterval time.Duration
	NewTicker      TickerFactory
	Target         func() string
	Logger         *slog.Logger
}

// TelemetryPoller drives the sensor and status refresh loops.
type TelemetryPoller struct {
	source         TelemetrySource
	sink           TelemetrySink
	bus            bus.MessageBus
	sensorInterval time.Duration
	statusInterval time.Duration
	newTicker      TickerFactory
	target         func() string
	logger         *slog.Logger

	renderMu  sync.Mutex
	mu        sync.Mutex
	state     TelemetryState
	firmware  string
	connState connectors.ConnectionState

	runMu   sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started bool
}

func NewTelemetryPoller(cfg TelemetryPollerConfig) *TelemetryPoller {
	sensorInterval := cfg.SensorInterval
	if sensorInterval <= 0 {
		sensorInterval = defaultSensorInterval
	}
	statusInterval := cfg.StatusInterval
	if statusInterval <= 0 {
		statusInterval = defaultStatusInterval
	}
	newTicker := cfg.NewTicker
	if newTicker == nil {
		newTicker = NewTimeTicker
	}
	target := cfg.Target
	if target == nil {
		target = func() string { return "" }
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default().With("component", "telemetry")
	}

	return &TelemetryPoller{
		source:         cfg.Source,
		sink:           cfg.Sink,
		bus:            cfg.Bus,
		sensorInterval: sensorInterval,
		statusInterval: statusInterval,
		newTicker:      newTicker,
		target:         target,
		logger:         logger,
	}
}

// Start launches both loops. It does nothing and returns false when there is
// nowhere to render or the poller already runs.
func (p *TelemetryPoller) Start(ctx context.Context) bool {
	if p == nil || p.sink == nil || p.source == nil {
		return false
	}

	p.runMu.Lock()
	defer p.runMu.Unlock()
	if p.started {
		return false
	}

	loopCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.started = true

	p.logger.Info("telemetry polling started", "sensor_interval", p.sensorInterval.String(), "status_interval", p.statusInterval.String())
	p.wg.Add(2)
	go p.loop(loopCtx, RegionSensors, p.sensorInterval, p.RefreshSensors)
	go p.loop(loopCtx, RegionStatus, p.statusInterval, p.RefreshStatus)

	return true
}

// Stop cancels both loops and waits for in-flight cycles to finish.
func (p *TelemetryPoller) Stop() {
	if p == nil {
		return
	}

	p.runMu.Lock()
	cancel := p.cancel
	p.cancel = nil
	p.runMu.Unlock()
	if cancel == nil {
		return
	}

	cancel()
	p.wg.Wait()
	p.logger.Info("telemetry polling stopped")
}

func (p *TelemetryPoller) State() TelemetryState {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.state
}

// FirmwareVersion is the version reported by the last successful status fetch.
func (p *TelemetryPoller) FirmwareVersion() string {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.firmware
}

func (p *TelemetryPoller) loop(ctx context.Context, region TelemetryRegion, interval time.Duration, refresh func(context.Context) error) {
	defer p.wg.Done()

	ticker := p.newTicker(interval)
	defer ticker.Stop()

	p.cycle(ctx, region, refresh)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
			p.cycle(ctx, region, refresh)
		}
	}
}

func (p *TelemetryPoller) cycle(ctx context.Context, region TelemetryRegion, refresh func(context.Context) error) {
	if ctx.Err() != nil {
		return
	}
	if err := refresh(ctx); err != nil {
		if ctx.Err() != nil {
			return
		}
		p.logger.Debug("telemetry refresh failed", "region", region, "error", err)
	}
}

func (p *TelemetryPoller) RefreshSensors(ctx context.Context) error {
	snapshot, err := p.source.SensorValues(ctx)
	if err != nil {
		p.reportConnection(err)

		return err
	}
	p.reportConnection(nil)
	p.render(TelemetryUpdate{
		Region: RegionSensors,
		Text:   snapshot.Indented(),
		Values: snapshot.Values,
		At:     time.Now(),
	}, "")

	return nil
}

func (p *TelemetryPoller) RefreshStatus(ctx context.Context) error {
	snapshot, err := p.source.Status(ctx)
	if err != nil {
		p.reportConnection(err)

		return err
	}
	p.reportConnection(nil)
	p.render(TelemetryUpdate{
		Region: RegionStatus,
		Text:   snapshot.Indented(),
		Values: snapshot.Values,
		At:     time.Now(),
	}, snapshot.FirmwareVersion())

	return nil
}

// render applies updates in the order responses arrive.
func (p *TelemetryPoller) render(update TelemetryUpdate, firmware string) {
	p.renderMu.Lock()
	defer p.renderMu.Unlock()

	p.mu.Lock()
	switch update.Region {
	case RegionSensors:
		p.state.Sensors = update
	case RegionStatus:
		p.state.Status = update
		p.firmware = firmware
	}
	p.mu.Unlock()

	if p.sink != nil {
		p.sink.Render(update)
	}

	if p.bus == nil {
		return
	}
	topic := connectors.TopicSensorValues
	if update.Region == RegionStatus {
		topic = connectors.TopicDeviceStatus
	}
	p.bus.TryPublish(topic, update)
}

func (p *TelemetryPoller) reportConnection(err error) {
	next := connectors.ConnectionStateConnected
	errText := ""
	if err != nil {
		next = connectors.ConnectionStateDisconnected
		errText = err.Error()
	}

	p.mu.Lock()
	changed := p.connState != next
	p.connState = next
	p.mu.Unlock()
	if !changed {
		return
	}

	p.logger.Info("device reachability changed", "state", next, "target", p.target(), "error", errText)
	if p.bus == nil {
		return
	}
	p.bus.Publish(connectors.TopicConnStatus, connectors.ConnectionStatus{
		State:     next,
		Err:       errText,
		Target:    p.target(),
		Timestamp: time.Now(),
	})
}
