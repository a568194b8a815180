package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/skobkin/airqctl/internal/bus"
	"github.com/skobkin/airqctl/internal/connectors"
	"github.com/skobkin/airqctl/internal/device"
)

var (
	ErrNoNetworkSelected   = errors.New("no wi-fi network selected")
	ErrUnknownNetwork      = errors.New("network is not in the scan result")
	ErrOperationInProgress = errors.New("another preferences operation is already in progress")

	// ErrPreferencesNotLoaded rejects writes before the device values were loaded.
	// The device stores every field except the password placeholder as sent.
	ErrPreferencesNotLoaded = errors.New("device preferences are not loaded")
)

// PreferenceForm is the editable preference state plus what the surface needs to draw it.
type PreferenceForm struct {
	DeviceName    string
	WifiPassword  string
	DeviceVersion string
	MQTTHost      string
	MQTTUsername  string
	MQTTPassword  string
	LogHost       string
	LogUsername   string
	LogPassword   string
	LEDIntensity  int
	LogValues     bool

	// VersionEditable is true only when the last load reported provisioning mode.
	VersionEditable bool
	Networks        []NetworkChoice
	SelectedSSID    string
	Available       bool
	Loaded          bool
}

func (f PreferenceForm) clone() PreferenceForm {
	f.Networks = slices.Clone(f.Networks)

	return f
}

// Update builds the outbound write. It never sends a version the device did not unlock.
func (f PreferenceForm) Update() (device.PreferencesUpdate, error) {
	if !f.Loaded {
		return device.PreferencesUpdate{}, ErrPreferencesNotLoaded
	}
	if f.SelectedSSID == "" || !findNetwork(f.Networks, f.SelectedSSID) {
		return device.PreferencesUpdate{}, ErrNoNetworkSelected
	}

	update := device.PreferencesUpdate{
		DeviceName:   f.DeviceName,
		WifiSSID:     f.SelectedSSID,
		WifiPassword: f.WifiPassword,
		MQTTHost:     f.MQTTHost,
		MQTTUsername: f.MQTTUsername,
		MQTTPassword: f.MQTTPassword,
		LogHost:      f.LogHost,
		LogUsername:  f.LogUsername,
		LogPassword:  f.LogPassword,
		LEDIntensity: f.LEDIntensity,
		LogValues:    f.LogValues,
	}
	if f.VersionEditable {
		version := f.DeviceVersion
		update.DeviceVersion = &version
	}

	return update, nil
}

type PreferencesClient interface {
	NetworkSource
	Preferences(ctx context.Context) (device.Preferences, error)
	SavePreferences(ctx context.Context, update device.PreferencesUpdate) error
}

type PreferenceSyncConfig struct {
	Client PreferencesClient
	Bus    bus.MessageBus
	Logger *slog.Logger
}

// PreferenceSyncEngine keeps the preference form in sync with the device.
// Initialize, Rescan and Save share one in-flight slot.
type PreferenceSyncEngine struct {
	client     PreferencesClient
	reconciler *NetworkReconciler
	bus        bus.MessageBus
	logger     *slog.Logger

	mu     sync.Mutex
	form   PreferenceForm
	render func(PreferenceForm)

	opMu       sync.Mutex
	opInFlight bool
}

func NewPreferenceSyncEngine(cfg PreferenceSyncConfig) *PreferenceSyncEngine {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default().With("component", "preferences")
	}

	return &PreferenceSyncEngine{
		client:     cfg.Client,
		reconciler: NewNetworkReconciler(cfg.Client, logger),
		bus:        cfg.Bus,
		logger:     logger,
		form:       PreferenceForm{Available: true},
	}
}

// Attach sets the surface renderer. Without one Initialize does nothing.
func (e *PreferenceSyncEngine) Attach(render func(PreferenceForm)) {
	e.mu.Lock()
	e.render = render
	e.mu.Unlock()
}

func (e *PreferenceSyncEngine) State() PreferenceForm {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.form.clone()
}

func (e *PreferenceSyncEngine) beginOperation() (func(), error) {
	e.opMu.Lock()
	if e.opInFlight {
		e.opMu.Unlock()

		return nil, ErrOperationInProgress
	}
	e.opInFlight = true
	e.opMu.Unlock()

	return func() {
		e.opMu.Lock()
		e.opInFlight = false
		e.opMu.Unlock()
	}, nil
}

func (e *PreferenceSyncEngine) hasSurface() bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.render != nil
}

// Initialize scans networks, loads preferences and selects the configured network.
func (e *PreferenceSyncEngine) Initialize(ctx context.Context) error {
	if !e.hasSurface() {
		e.logger.Debug("preferences surface absent, skipping initialization")

		return nil
	}
	release, err := e.beginOperation()
	if err != nil {
		return err
	}
	defer release()

	e.logger.Info("initializing preferences form")
	e.setAvailable(false)
	defer e.setAvailable(true)

	if err := e.scan(ctx, ""); err != nil {
		return err
	}

	return e.reload(ctx)
}

// Rescan refreshes the network list and keeps the current selection when it is still visible.
func (e *PreferenceSyncEngine) Rescan(ctx context.Context) error {
	release, err := e.beginOperation()
	if err != nil {
		return err
	}
	defer release()

	e.logger.Info("rescanning networks")
	e.setAvailable(false)
	defer e.setAvailable(true)

	return e.scan(ctx, e.State().SelectedSSID)
}

// Save writes the form and always reloads the device's view afterwards.
func (e *PreferenceSyncEngine) Save(ctx context.Context) error {
	release, err := e.beginOperation()
	if err != nil {
		return err
	}
	defer release()

	update, err := e.State().Update()
	if err != nil {
		return err
	}

	e.setAvailable(false)
	defer e.setAvailable(true)

	saveErr := e.client.SavePreferences(ctx, update)
	if saveErr != nil {
		e.logger.Warn("saving preferences failed", "ssid", update.WifiSSID, "error", saveErr)
		saveErr = fmt.Errorf("save preferences: %w", saveErr)
	} else {
		e.logger.Info("preferences saved", "ssid", update.WifiSSID)
		if e.bus != nil {
			e.bus.TryPublish(connectors.TopicPreferencesSaved, update)
		}
	}

	reloadErr := e.reload(ctx)
	if reloadErr != nil {
		e.logger.Warn("reloading preferences after save failed", "error", reloadErr)
	}

	return errors.Join(saveErr, reloadErr)
}

// Reload fetches preferences again without scanning.
func (e *PreferenceSyncEngine) Reload(ctx context.Context) error {
	release, err := e.beginOperation()
	if err != nil {
		return err
	}
	defer release()

	e.setAvailable(false)
	defer e.setAvailable(true)

	return e.reload(ctx)
}

// UpdateForm applies surface edits. Capability and scan fields cannot be changed through it.
func (e *PreferenceSyncEngine) UpdateForm(edit func(*PreferenceForm)) {
	if edit == nil {
		return
	}

	e.mu.Lock()
	next := e.form.clone()
	edit(&next)
	next.VersionEditable = e.form.VersionEditable
	next.Networks = e.form.Networks
	next.Available = e.form.Available
	next.Loaded = e.form.Loaded
	if !next.VersionEditable {
		next.DeviceVersion = e.form.DeviceVersion
	}
	if next.SelectedSSID != "" && !findNetwork(next.Networks, next.SelectedSSID) {
		next.SelectedSSID = e.form.SelectedSSID
	}
	e.form = next
	e.mu.Unlock()

	e.emit()
}

func (e *PreferenceSyncEngine) SelectNetwork(ssid string) error {
	e.mu.Lock()
	if !findNetwork(e.form.Networks, ssid) {
		e.mu.Unlock()

		return fmt.Errorf("%w: %q", ErrUnknownNetwork, ssid)
	}
	e.form.SelectedSSID = ssid
	e.mu.Unlock()

	e.emit()

	return nil
}

func (e *PreferenceSyncEngine) scan(ctx context.Context, keepSSID string) error {
	choices, err := e.reconciler.Scan(ctx, nil)
	if err != nil {
		e.logger.Warn("network scan failed", "error", err)

		return err
	}

	e.mu.Lock()
	e.form.Networks = choices
	if findNetwork(choices, keepSSID) {
		e.form.SelectedSSID = keepSSID
	} else {
		e.form.SelectedSSID = ""
	}
	e.mu.Unlock()
	e.emit()

	return nil
}

func (e *PreferenceSyncEngine) reload(ctx context.Context) error {
	prefs, err := e.client.Preferences(ctx)
	if err != nil {
		e.logger.Warn("loading preferences failed", "error", err)

		return err
	}

	e.mu.Lock()
	e.form.DeviceName = prefs.DeviceName
	e.form.WifiPassword = prefs.WifiPassword
	e.form.DeviceVersion = prefs.DeviceVersion
	e.form.MQTTHost = prefs.MQTTHost
	e.form.MQTTUsername = prefs.MQTTUsername
	e.form.MQTTPassword = prefs.MQTTPassword
	e.form.LogHost = prefs.LogHost
	e.form.LogUsername = prefs.LogUsername
	e.form.LogPassword = prefs.LogPassword
	e.form.LEDIntensity = prefs.LEDIntensity
	e.form.LogValues = prefs.LogValues
	e.form.VersionEditable = prefs.ProvisioningMode
	e.form.Loaded = true
	if findNetwork(e.form.Networks, prefs.WifiSSID) {
		e.form.SelectedSSID = prefs.WifiSSID
	} else {
		e.form.SelectedSSID = ""
	}
	e.mu.Unlock()

	e.logger.Info("preferences loaded", "ssid", prefs.WifiSSID, "provisioning_mode", prefs.ProvisioningMode)
	e.emit()

	return nil
}

func (e *PreferenceSyncEngine) setAvailable(available bool) {
	e.mu.Lock()
	e.form.Available = available
	e.mu.Unlock()
	e.emit()
}

func (e *PreferenceSyncEngine) emit() {
	e.mu.Lock()
	render := e.render
	snapshot := e.form.clone()
	e.mu.Unlock()

	if render != nil {
		render(snapshot)
	}
}
