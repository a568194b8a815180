package transport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"go.bug.st/serial"
)

const (
	defaultSerialReadTimeout = 300 * time.Millisecond
	maxConsoleLineLength     = 4096
)

// ErrNotConnected is returned by reads on a closed console.
var ErrNotConnected = errors.New("serial console is not connected")

// PortOpener opens a serial port. serial.Open satisfies it.
type PortOpener func(portName string, mode *serial.Mode) (serial.Port, error)

// SerialConsole reads the device's USB log output line by line.
type SerialConsole struct {
	portName string
	baudRate int
	open     PortOpener
	logger   *slog.Logger

	mu   sync.Mutex
	port serial.Port
}

func NewSerialConsole(portName string, baudRate int, logger *slog.Logger) *SerialConsole {
	if logger == nil {
		logger = slog.Default().With("component", "serial")
	}

	return &SerialConsole{
		portName: strings.TrimSpace(portName),
		baudRate: baudRate,
		open:     serial.Open,
		logger:   logger,
	}
}

// WithOpener swaps the port opener. Tests use it to plug in fake ports.
func (c *SerialConsole) WithOpener(open PortOpener) *SerialConsole {
	if open != nil {
		c.open = open
	}

	return c
}

func (c *SerialConsole) PortName() string {
	return c.portName
}

func (c *SerialConsole) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.port != nil
}

func (c *SerialConsole) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.port != nil {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if c.portName == "" {
		return errors.New("serial port is empty")
	}
	if c.baudRate <= 0 {
		return fmt.Errorf("invalid serial baud rate: %d", c.baudRate)
	}

	port, err := c.open(c.portName, &serial.Mode{BaudRate: c.baudRate})
	if err != nil {
		return fmt.Errorf("open serial port %q: %w", c.portName, err)
	}
	if err := port.SetReadTimeout(defaultSerialReadTimeout); err != nil {
		_ = port.Close()

		return fmt.Errorf("set serial read timeout: %w", err)
	}
	// Dev boards wire DTR/RTS to EN/BOOT; keep both released so opening the console does not reset the chip.
	if err := port.SetDTR(false); err != nil {
		c.logger.Debug("release DTR", "error", err)
	}
	if err := port.SetRTS(false); err != nil {
		c.logger.Debug("release RTS", "error", err)
	}
	c.port = port
	c.logger.Info("serial console opened", "port", c.portName, "baud", c.baudRate)

	return nil
}

func (c *SerialConsole) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.port == nil {
		return nil
	}
	err := c.port.Close()
	c.port = nil

	return err
}

// ReadLines calls emit for every complete line until ctx is done or the port fails.
// Carriage returns are dropped and over-long lines are split.
func (c *SerialConsole) ReadLines(ctx context.Context, emit func(line string)) error {
	port, err := c.currentPort()
	if err != nil {
		return err
	}

	buf := make([]byte, 512)
	var pending []byte
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, err := port.Read(buf)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}

			return fmt.Errorf("read serial console: %w", err)
		}
		if n == 0 {
			continue
		}
		pending = append(pending, buf[:n]...)
		for {
			idx := bytes.IndexByte(pending, '\n')
			if idx < 0 {
				break
			}
			emit(strings.TrimRight(string(pending[:idx]), "\r"))
			pending = pending[idx+1:]
		}
		if len(pending) >= maxConsoleLineLength {
			emit(strings.TrimRight(string(pending), "\r"))
			pending = nil
		}
	}
}

func (c *SerialConsole) currentPort() (serial.Port, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.port == nil {
		return nil, ErrNotConnected
	}

	return c.port, nil
}

// ListPorts returns the serial ports visible to the OS.
func ListPorts() ([]string, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("list serial ports: %w", err)
	}

	return ports, nil
}
