package ui

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/widget"

	airqapp "github.com/skobkin/airqctl/internal/app"
	"github.com/skobkin/airqctl/internal/config"
)

const (
	consolePortNone       = "(off)"
	autostartOptionNormal = "Normal window"
	autostartOptionTray   = "Background tray"
)

var defaultSerialBaudOptions = []string{"9600", "19200", "38400", "57600", "115200", "230400", "460800", "921600"}

// settingsTab edits the local application configuration.
type settingsTab struct {
	dep     RuntimeDependencies
	hooks   UIHooks
	current config.AppConfig

	deviceURL        *widget.Entry
	requestTimeout   *widget.Entry
	sensorInterval   *widget.Entry
	statusInterval   *widget.Entry
	historyEnabled   *widget.Check
	historyRetention *widget.Entry
	brokerEnabled    *widget.Check
	brokerURL        *widget.Entry
	brokerUsername   *widget.Entry
	brokerPassword   *widget.Entry
	brokerClientID   *widget.Entry
	consolePort      *widget.Select
	consoleBaud      *widget.Select
	releaseFeedURL   *widget.Entry
	releaseInterval  *widget.Entry
	notifyFocused    *widget.Check
	notifyConnection *widget.Check
	notifyFirmware   *widget.Check
	logLevel         *widget.Select
	logToFile        *widget.Check
	autostartEnabled *widget.Check
	autostartMode    *widget.Select

	connStatus    *widget.Label
	status        *widget.Label
	saveButton    *widget.Button
	clearDBButton *widget.Button

	root fyne.CanvasObject
}

func newSettingsTab(dep RuntimeDependencies, connStatusLabel *widget.Label) *settingsTab {
	current := dep.Data.Config
	if dep.Data.CurrentConfig != nil {
		current = dep.Data.CurrentConfig()
	}
	current.FillMissingDefaults()

	t := &settingsTab{
		dep:        dep,
		hooks:      dep.UIHooks.withDefaults(),
		current:    current,
		connStatus: connStatusLabel,
	}

	t.deviceURL = newTextEntry(current.Device.BaseURL, config.DefaultDeviceURL)
	t.requestTimeout = newTextEntry(strconv.Itoa(current.Device.RequestTimeoutMS), "")
	t.sensorInterval = newTextEntry(strconv.Itoa(current.Polling.SensorIntervalMS), "")
	t.statusInterval = newTextEntry(strconv.Itoa(current.Polling.StatusIntervalMS), "")

	t.historyEnabled = widget.NewCheck("", nil)
	t.historyEnabled.SetChecked(current.History.Enabled)
	t.historyRetention = newTextEntry(strconv.Itoa(current.History.RetentionDays), "")

	t.brokerURL = newTextEntry(current.Broker.URL, "tcp://broker.local:1883")
	t.brokerUsername = newTextEntry(current.Broker.Username, "")
	t.brokerPassword = widget.NewPasswordEntry()
	t.brokerPassword.SetText(current.Broker.Password)
	t.brokerClientID = newTextEntry(current.Broker.ClientID, config.DefaultBrokerClientIDTag)
	t.brokerEnabled = widget.NewCheck("", func(enabled bool) {
		setEnabled(enabled, t.brokerURL, t.brokerUsername, t.brokerPassword, t.brokerClientID)
	})
	t.brokerEnabled.SetChecked(current.Broker.Enabled)
	setEnabled(current.Broker.Enabled, t.brokerURL, t.brokerUsername, t.brokerPassword, t.brokerClientID)

	t.consolePort = widget.NewSelect(nil, nil)
	t.consolePort.PlaceHolder = "Select serial port"
	t.consoleBaud = widget.NewSelect(uniqueValues(append(defaultSerialBaudOptions, strconv.Itoa(current.Console.Baud))), nil)
	t.consoleBaud.SetSelected(strconv.Itoa(current.Console.Baud))
	refreshPortsButton := widget.NewButton("Refresh", t.RefreshPorts)

	t.releaseFeedURL = newTextEntry(current.Firmware.ReleaseFeedURL, "https://git.example.org/api/v1/repos/owner/firmware/releases")
	t.releaseInterval = newTextEntry(strconv.Itoa(current.Firmware.CheckIntervalMinutes), "")

	t.notifyFocused = widget.NewCheck("", nil)
	t.notifyFocused.SetChecked(current.Notifications.NotifyWhenFocused)
	t.notifyConnection = widget.NewCheck("", nil)
	t.notifyConnection.SetChecked(current.Notifications.ConnectionStatus)
	t.notifyFirmware = widget.NewCheck("", nil)
	t.notifyFirmware.SetChecked(current.Notifications.FirmwareRelease)

	t.logLevel = widget.NewSelect([]string{"debug", "info", "warn", "error"}, nil)
	t.logLevel.SetSelected(strings.ToLower(current.Logging.Level))
	if t.logLevel.Selected == "" {
		t.logLevel.SetSelected("info")
	}
	t.logToFile = widget.NewCheck("", nil)
	t.logToFile.SetChecked(current.Logging.LogToFile)

	t.autostartMode = widget.NewSelect([]string{autostartOptionNormal, autostartOptionTray}, nil)
	t.autostartMode.SetSelected(autostartOptionFromMode(current.UI.Autostart.Mode))
	t.autostartEnabled = widget.NewCheck("", func(enabled bool) {
		setEnabled(enabled, t.autostartMode)
	})
	t.autostartEnabled.SetChecked(current.UI.Autostart.Enabled)
	setEnabled(current.UI.Autostart.Enabled, t.autostartMode)

	t.status = widget.NewLabel("")
	t.status.Wrapping = fyne.TextWrapWord

	t.saveButton = widget.NewButton("Save", t.Save)
	t.saveButton.Importance = widget.HighImportance
	if dep.Actions.OnSave == nil {
		t.saveButton.Disable()
	}

	t.clearDBButton = widget.NewButton("Clear history", t.ClearHistory)
	if dep.Actions.OnClearDB == nil {
		t.clearDBButton.Disable()
	}
	openFolderButton := widget.NewButton("Open config folder", t.OpenConfigFolder)
	if dep.Platform.OpenPath == nil || strings.TrimSpace(dep.Data.Paths.RootDir) == "" {
		openFolderButton.Disable()
	}

	t.RefreshPorts()

	deviceForm := widget.NewForm(
		widget.NewFormItem("Device URL", t.deviceURL),
		widget.NewFormItem("Request timeout (ms)", t.requestTimeout),
		widget.NewFormItem("Sensor refresh (ms)", t.sensorInterval),
		widget.NewFormItem("Status refresh (ms)", t.statusInterval),
	)
	historyForm := widget.NewForm(
		widget.NewFormItem("Record history", t.historyEnabled),
		widget.NewFormItem("Keep days", t.historyRetention),
	)
	brokerForm := widget.NewForm(
		widget.NewFormItem("Mirror device MQTT", t.brokerEnabled),
		widget.NewFormItem("Broker URL", t.brokerURL),
		widget.NewFormItem("Username", t.brokerUsername),
		widget.NewFormItem("Password", t.brokerPassword),
		widget.NewFormItem("Client ID", t.brokerClientID),
	)
	consoleForm := widget.NewForm(
		widget.NewFormItem("Serial port", container.NewBorder(nil, nil, nil, refreshPortsButton, t.consolePort)),
		widget.NewFormItem("Baud", t.consoleBaud),
	)
	firmwareForm := widget.NewForm(
		widget.NewFormItem("Release feed URL", t.releaseFeedURL),
		widget.NewFormItem("Check every (min)", t.releaseInterval),
	)
	notificationsForm := widget.NewForm(
		widget.NewFormItem("Notify when focused", t.notifyFocused),
		widget.NewFormItem("Connection changes", t.notifyConnection),
		widget.NewFormItem("Firmware releases", t.notifyFirmware),
	)
	startupForm := widget.NewForm(
		widget.NewFormItem("Start with system", t.autostartEnabled),
		widget.NewFormItem("Start as", t.autostartMode),
	)
	loggingForm := widget.NewForm(
		widget.NewFormItem("Log level", t.logLevel),
		widget.NewFormItem("Log to file", t.logToFile),
	)

	deviceBlock := []fyne.CanvasObject{deviceForm}
	if connStatusLabel != nil {
		deviceBlock = append([]fyne.CanvasObject{connStatusLabel}, deviceBlock...)
	}

	versionBlock := widget.NewCard("", "", container.NewVBox(
		widget.NewLabel(airqapp.Name+" "+airqapp.BuildVersionWithDate()),
		widget.NewHyperlink("Source", mustParseURL(airqapp.SourceURL)),
	))

	content := container.NewVBox(
		widget.NewCard("Device", "", container.NewVBox(deviceBlock...)),
		widget.NewCard("History", "", historyForm),
		widget.NewCard("Broker mirror", "", brokerForm),
		widget.NewCard("Serial console", "", consoleForm),
		widget.NewCard("Firmware releases", "", firmwareForm),
		widget.NewCard("Notifications", "", notificationsForm),
		widget.NewCard("Startup", "", startupForm),
		widget.NewCard("Logging", "", loggingForm),
		widget.NewCard("Maintenance", "", container.NewHBox(t.clearDBButton, openFolderButton)),
		t.saveButton,
		t.status,
		versionBlock,
	)
	t.root = container.NewVScroll(content)

	return t
}

func newTextEntry(text, placeholder string) *widget.Entry {
	entry := widget.NewEntry()
	entry.SetText(text)
	if placeholder != "" {
		entry.SetPlaceHolder(placeholder)
	}

	return entry
}

// RefreshPorts lists serial ports, keeping the configured one even when it is unplugged.
func (t *settingsTab) RefreshPorts() {
	selected := strings.TrimSpace(t.consolePort.Selected)
	if selected == "" {
		selected = strings.TrimSpace(t.current.Console.Port)
	}

	var ports []string
	if t.dep.Platform.ListSerialPorts != nil {
		listed, err := t.dep.Platform.ListSerialPorts()
		if err != nil {
			t.status.SetText("Failed to list serial ports: " + err.Error())
		}
		ports = listed
	}
	sort.Strings(ports)
	options := uniqueValues(append(append([]string{consolePortNone}, ports...), selected))
	t.consolePort.SetOptions(options)
	if selected == "" || selected == consolePortNone {
		t.consolePort.SetSelected(consolePortNone)

		return
	}
	t.consolePort.SetSelected(selected)
}

// Build reads the form into a config based on the current one.
func (t *settingsTab) Build() (config.AppConfig, error) {
	cfg := t.current

	ints := []struct {
		name  string
		entry *widget.Entry
		dst   *int
	}{
		{"request timeout", t.requestTimeout, &cfg.Device.RequestTimeoutMS},
		{"sensor refresh", t.sensorInterval, &cfg.Polling.SensorIntervalMS},
		{"status refresh", t.statusInterval, &cfg.Polling.StatusIntervalMS},
		{"history retention", t.historyRetention, &cfg.History.RetentionDays},
		{"release check interval", t.releaseInterval, &cfg.Firmware.CheckIntervalMinutes},
	}
	for _, field := range ints {
		value, err := parsePositiveInt(field.name, field.entry.Text)
		if err != nil {
			return config.AppConfig{}, err
		}
		*field.dst = value
	}

	cfg.Device.BaseURL = strings.TrimSpace(t.deviceURL.Text)
	cfg.History.Enabled = t.historyEnabled.Checked
	cfg.Broker.Enabled = t.brokerEnabled.Checked
	cfg.Broker.URL = strings.TrimSpace(t.brokerURL.Text)
	cfg.Broker.Username = strings.TrimSpace(t.brokerUsername.Text)
	cfg.Broker.Password = t.brokerPassword.Text
	cfg.Broker.ClientID = strings.TrimSpace(t.brokerClientID.Text)

	cfg.Console.Port = strings.TrimSpace(t.consolePort.Selected)
	if cfg.Console.Port == consolePortNone {
		cfg.Console.Port = ""
	}
	baud, err := parsePositiveInt("serial baud", t.consoleBaud.Selected)
	if err != nil {
		return config.AppConfig{}, err
	}
	cfg.Console.Baud = baud

	cfg.Firmware.ReleaseFeedURL = strings.TrimSpace(t.releaseFeedURL.Text)
	cfg.Notifications.NotifyWhenFocused = t.notifyFocused.Checked
	cfg.Notifications.ConnectionStatus = t.notifyConnection.Checked
	cfg.Notifications.FirmwareRelease = t.notifyFirmware.Checked
	cfg.Logging.Level = t.logLevel.Selected
	cfg.Logging.LogToFile = t.logToFile.Checked
	cfg.UI.Autostart.Enabled = t.autostartEnabled.Checked
	cfg.UI.Autostart.Mode = autostartModeFromOption(t.autostartMode.Selected)

	return cfg, nil
}

func (t *settingsTab) Save() {
	if t.dep.Actions.OnSave == nil {
		t.status.SetText("Save is not available")

		return
	}
	cfg, err := t.Build()
	if err != nil {
		t.status.SetText("Save failed: " + err.Error())

		return
	}
	if err := t.dep.Actions.OnSave(cfg); err != nil {
		var warning *airqapp.AutostartSyncWarning
		if errors.As(err, &warning) {
			t.current = cfg
			t.status.SetText("Saved with warning: " + warning.Error())

			return
		}
		t.status.SetText("Save failed: " + err.Error())

		return
	}
	historyChanged := cfg.History != t.current.History
	t.current = cfg
	if historyChanged {
		t.status.SetText("Saved. History changes apply after restart.")

		return
	}
	t.status.SetText("Saved")
}

// ClearHistory deletes stored samples after confirmation.
func (t *settingsTab) ClearHistory() {
	if t.dep.Actions.OnClearDB == nil {
		t.status.SetText("History is disabled")

		return
	}
	window := t.hooks.CurrentWindow()
	if window == nil {
		t.status.SetText("Clear failed: active window is unavailable")

		return
	}
	t.hooks.ShowConfirm("Clear history", "Delete every stored telemetry sample?", func(ok bool) {
		if !ok {
			return
		}
		if err := t.dep.Actions.OnClearDB(); err != nil {
			t.status.SetText("Clear failed: " + err.Error())

			return
		}
		t.status.SetText("History cleared")
	}, window)
}

func (t *settingsTab) OpenConfigFolder() {
	if t.dep.Platform.OpenPath == nil {
		return
	}
	if err := t.dep.Platform.OpenPath(t.dep.Data.Paths.RootDir); err != nil {
		t.status.SetText("Failed to open config folder: " + err.Error())

		return
	}
	t.status.SetText("")
}

func autostartOptionFromMode(mode config.AutostartMode) string {
	if mode == config.AutostartModeBackground {
		return autostartOptionTray
	}

	return autostartOptionNormal
}

func autostartModeFromOption(value string) config.AutostartMode {
	if strings.TrimSpace(value) == autostartOptionTray {
		return config.AutostartModeBackground
	}

	return config.AutostartModeNormal
}

func parsePositiveInt(name, value string) (int, error) {
	parsed, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q", name, value)
	}
	if parsed <= 0 {
		return 0, fmt.Errorf("%s must be positive", name)
	}

	return parsed, nil
}
