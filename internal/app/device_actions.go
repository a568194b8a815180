package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/skobkin/airqctl/internal/bus"
	"github.com/skobkin/airqctl/internal/connectors"
	"github.com/skobkin/airqctl/internal/device"
)

type DeviceAction string

const (
	ActionCalibrate           DeviceAction = "calibrate"
	ActionFactoryReset        DeviceAction = "factory_reset"
	ActionFirmwareUpdateReset DeviceAction = "firmware_update_reset"
)

var (
	ErrActionInProgress = errors.New("another device action is already in progress")
	ErrUnknownAction    = errors.New("unknown device action")
)

type DeviceCommander interface {
	Calibrate(ctx context.Context) (device.ActionResult, error)
	FactoryReset(ctx context.Context) (device.ActionResult, error)
	ResetFirmwareUpdate(ctx context.Context) (device.ActionResult, error)
}

// DeviceActionOutcome is published once a command got an answer or failed.
type DeviceActionOutcome struct {
	Action DeviceAction
	Body   string
	Err    error
	At     time.Time
}

// DeviceActions runs one-shot device commands, one at a time.
type DeviceActions struct {
	commander DeviceCommander
	bus       bus.MessageBus
	logger    *slog.Logger

	mu       sync.Mutex
	inFlight bool
}

// NewDeviceActions builds the runner. messageBus may be nil.
func NewDeviceActions(commander DeviceCommander, messageBus bus.MessageBus, logger *slog.Logger) *DeviceActions {
	if logger == nil {
		logger = slog.Default().With("component", "device_actions")
	}

	return &DeviceActions{commander: commander, bus: messageBus, logger: logger}
}

func (a *DeviceActions) Run(ctx context.Context, action DeviceAction) (device.ActionResult, error) {
	call, err := a.resolve(action)
	if err != nil {
		return device.ActionResult{}, err
	}

	a.mu.Lock()
	if a.inFlight {
		a.mu.Unlock()

		return device.ActionResult{}, ErrActionInProgress
	}
	a.inFlight = true
	a.mu.Unlock()
	defer func() {
		a.mu.Lock()
		a.inFlight = false
		a.mu.Unlock()
	}()

	a.logger.Info("running device action", "action", action)
	result, err := call(ctx)
	if err != nil {
		a.logger.Warn("device action failed", "action", action, "error", err)
		a.publish(DeviceActionOutcome{Action: action, Err: err, At: time.Now()})

		return device.ActionResult{}, fmt.Errorf("%s: %w", action, err)
	}
	a.logger.Info("device action answered", "action", action, "body", result.Body)
	a.publish(DeviceActionOutcome{Action: action, Body: result.Body, At: time.Now()})

	return result, nil
}

func (a *DeviceActions) publish(outcome DeviceActionOutcome) {
	if a.bus == nil {
		return
	}
	a.bus.TryPublish(connectors.TopicDeviceAction, outcome)
}

func (a *DeviceActions) resolve(action DeviceAction) (func(context.Context) (device.ActionResult, error), error) {
	switch action {
	case ActionCalibrate:
		return a.commander.Calibrate, nil
	case ActionFactoryReset:
		return a.commander.FactoryReset, nil
	case ActionFirmwareUpdateReset:
		return a.commander.ResetFirmwareUpdate, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownAction, action)
	}
}
