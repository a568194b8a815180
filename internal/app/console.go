package app

import (
	"context"
	"errors"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/skobkin/airqctl/internal/bus"
	"github.com/skobkin/airqctl/internal/connectors"
)

const (
	defaultConsoleCapacity       = 500
	defaultConsoleReconnectDelay = 2 * time.Second
)

var (
	ansiEscapePattern  = regexp.MustCompile(`\x1b\[[0-9;]*[A-Za-z]`)
	consolePrefixRegex = regexp.MustCompile(`^([EWIDV]) \((\d+)\) ([^:]+): ?(.*)$`)
)

// ParseConsoleLine splits an ESP-IDF log line ("I (1234) TAG: message") into its parts.
// Lines without the prefix keep an empty level and carry the whole text as message.
func ParseConsoleLine(raw string, receivedAt time.Time) connectors.ConsoleLine {
	clean := strings.TrimSpace(ansiEscapePattern.ReplaceAllString(raw, ""))
	line := connectors.ConsoleLine{
		Raw:        clean,
		Message:    clean,
		ReceivedAt: receivedAt,
	}

	match := consolePrefixRegex.FindStringSubmatch(clean)
	if match == nil {
		return line
	}
	line.Level = consoleLevelName(match[1])
	if ms, err := strconv.ParseInt(match[2], 10, 64); err == nil {
		line.Uptime = time.Duration(ms) * time.Millisecond
	}
	line.Tag = strings.TrimSpace(match[3])
	line.Message = match[4]

	return line
}

func consoleLevelName(letter string) string {
	switch letter {
	case "E":
		return "error"
	case "W":
		return "warn"
	case "I":
		return "info"
	case "D":
		return "debug"
	default:
		return "verbose"
	}
}

// ConsoleBuffer keeps the most recent console lines.
type ConsoleBuffer struct {
	mu       sync.RWMutex
	lines    []connectors.ConsoleLine
	capacity int
}

func NewConsoleBuffer(capacity int) *ConsoleBuffer {
	if capacity <= 0 {
		capacity = defaultConsoleCapacity
	}

	return &ConsoleBuffer{
		lines:    make([]connectors.ConsoleLine, 0, capacity),
		capacity: capacity,
	}
}

func (b *ConsoleBuffer) Add(line connectors.ConsoleLine) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.lines) >= b.capacity {
		copy(b.lines, b.lines[1:])
		b.lines[len(b.lines)-1] = line

		return
	}
	b.lines = append(b.lines, line)
}

// Lines returns buffered lines oldest first, optionally filtered by level.
func (b *ConsoleBuffer) Lines(levels ...string) []connectors.ConsoleLine {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if len(levels) == 0 {
		out := make([]connectors.ConsoleLine, len(b.lines))
		copy(out, b.lines)

		return out
	}

	wanted := make(map[string]struct{}, len(levels))
	for _, level := range levels {
		wanted[strings.ToLower(level)] = struct{}{}
	}
	out := make([]connectors.ConsoleLine, 0, len(b.lines))
	for _, line := range b.lines {
		if _, ok := wanted[line.Level]; ok {
			out = append(out, line)
		}
	}

	return out
}

func (b *ConsoleBuffer) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lines = b.lines[:0]
}

// ConsoleSource is a line-oriented device console, usually a serial port.
type ConsoleSource interface {
	Connect(ctx context.Context) error
	ReadLines(ctx context.Context, emit func(line string)) error
	Close() error
}

type ConsoleMonitorConfig struct {
	Source         ConsoleSource
	Buffer         *ConsoleBuffer
	Bus            bus.MessageBus
	ReconnectDelay time.Duration
	Now            func() time.Time
	Logger         *slog.Logger
}

// ConsoleMonitor keeps the device console open, reopening it after failures
// (the USB port disappears while the device reboots after an upload).
type ConsoleMonitor struct {
	source         ConsoleSource
	buffer         *ConsoleBuffer
	bus            bus.MessageBus
	reconnectDelay time.Duration
	now            func() time.Time
	logger         *slog.Logger

	mu      sync.Mutex
	started bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

func NewConsoleMonitor(cfg ConsoleMonitorConfig) *ConsoleMonitor {
	if cfg.Buffer == nil {
		cfg.Buffer = NewConsoleBuffer(defaultConsoleCapacity)
	}
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = defaultConsoleReconnectDelay
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default().With("component", "console")
	}

	return &ConsoleMonitor{
		source:         cfg.Source,
		buffer:         cfg.Buffer,
		bus:            cfg.Bus,
		reconnectDelay: cfg.ReconnectDelay,
		now:            cfg.Now,
		logger:         cfg.Logger,
	}
}

func (m *ConsoleMonitor) Buffer() *ConsoleBuffer {
	return m.buffer
}

// Start launches the read loop. It returns false without a source or when already started.
func (m *ConsoleMonitor) Start(ctx context.Context) bool {
	if m == nil || m.source == nil {
		return false
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.started {
		return false
	}
	m.started = true

	loopCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.run(loopCtx)
	}()

	return true
}

func (m *ConsoleMonitor) Stop() {
	if m == nil {
		return
	}

	m.mu.Lock()
	cancel := m.cancel
	m.cancel = nil
	m.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	m.wg.Wait()
	if err := m.source.Close(); err != nil {
		m.logger.Debug("close console source", "error", err)
	}
}

func (m *ConsoleMonitor) run(ctx context.Context) {
	for {
		err := m.readOnce(ctx)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			m.logger.Debug("console read stopped", "error", err)
		}
		if closeErr := m.source.Close(); closeErr != nil {
			m.logger.Debug("close console source", "error", closeErr)
		}

		timer := time.NewTimer(m.reconnectDelay)
		select {
		case <-ctx.Done():
			timer.Stop()

			return
		case <-timer.C:
		}
	}
}

func (m *ConsoleMonitor) readOnce(ctx context.Context) error {
	if err := m.source.Connect(ctx); err != nil {
		return err
	}

	err := m.source.ReadLines(ctx, m.HandleLine)
	if errors.Is(err, context.Canceled) {
		return nil
	}

	return err
}

// HandleLine parses, buffers and publishes one raw console line.
func (m *ConsoleMonitor) HandleLine(raw string) {
	if strings.TrimSpace(raw) == "" {
		return
	}
	line := ParseConsoleLine(raw, m.now())
	m.buffer.Add(line)
	if m.bus != nil {
		m.bus.TryPublish(connectors.TopicConsoleLine, line)
	}
}
