package ui

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/widget"

	airqapp "github.com/skobkin/airqctl/internal/app"
)

const deviceOpTimeout = 30 * time.Second

type deviceActionSpec struct {
	action  airqapp.DeviceAction
	label   string
	title   string
	confirm string
	done    string
}

var deviceActionSpecs = []deviceActionSpec{
	{
		action:  airqapp.ActionCalibrate,
		label:   "Calibrate CO2",
		title:   "Calibrate CO2 sensor",
		confirm: "Calibration assumes the sensor sits in fresh outdoor air (about 400 ppm). Continue?",
		done:    "Calibration started",
	},
	{
		action:  airqapp.ActionFactoryReset,
		label:   "Reset device",
		title:   "Reset device",
		confirm: "The device restarts a few seconds after the request. Continue?",
		done:    "Reset requested",
	},
	{
		action:  airqapp.ActionFirmwareUpdateReset,
		label:   "Reset firmware update",
		title:   "Reset firmware update",
		confirm: "Clear the pending firmware update state on the device?",
		done:    "Firmware update state reset",
	},
}

// deviceTab edits the device preferences through the sync engine and runs
// one-shot device commands.
type deviceTab struct {
	hooks            UIHooks
	prefs            PreferencesService
	actions          DeviceActionRunner
	openWiFiSettings func() error

	controls *pageControls

	deviceName    *widget.Entry
	wifiPassword  *widget.Entry
	deviceVersion *widget.Entry
	mqttHost      *widget.Entry
	mqttUsername  *widget.Entry
	mqttPassword  *widget.Entry
	logHost       *widget.Entry
	logUsername   *widget.Entry
	logPassword   *widget.Entry
	ledIntensity  *widget.Entry
	logValues     *widget.Check

	networks      *widget.RadioGroup
	networkHint   *widget.Label
	rescanButton  *widget.Button
	wifiButton    *widget.Button
	actionButtons map[airqapp.DeviceAction]*widget.Button
	actionStatus  *widget.Label

	labelToSSID map[string]string
	form        airqapp.PreferenceForm
	applying    atomic.Bool
	started     atomic.Bool
	actionBusy  bool

	root fyne.CanvasObject
}

func newDeviceTab(dep RuntimeDependencies) *deviceTab {
	t := &deviceTab{
		hooks:            dep.UIHooks.withDefaults(),
		prefs:            dep.Actions.Preferences,
		actions:          dep.Actions.DeviceActions,
		openWiFiSettings: dep.Platform.OpenWiFiSettings,
		labelToSSID:      map[string]string{},
		actionButtons:    map[airqapp.DeviceAction]*widget.Button{},
	}

	t.controls = newPageControls("Loading device preferences...")
	t.controls.saveButton.OnTapped = t.Save
	t.controls.reloadButton.OnTapped = t.Reload

	t.deviceName = widget.NewEntry()
	t.wifiPassword = widget.NewPasswordEntry()
	t.deviceVersion = widget.NewEntry()
	t.deviceVersion.SetPlaceHolder("Editable in provisioning mode only")
	t.mqttHost = widget.NewEntry()
	t.mqttHost.SetPlaceHolder("mqtt://broker.local:1883")
	t.mqttUsername = widget.NewEntry()
	t.mqttPassword = widget.NewPasswordEntry()
	t.logHost = widget.NewEntry()
	t.logUsername = widget.NewEntry()
	t.logPassword = widget.NewPasswordEntry()
	t.ledIntensity = widget.NewEntry()
	t.ledIntensity.SetPlaceHolder("0 turns the LED off, higher values dim it")
	t.logValues = widget.NewCheck("", nil)

	t.networks = widget.NewRadioGroup(nil, t.onNetworkChanged)
	t.networkHint = widget.NewLabel("")
	t.networkHint.Wrapping = fyne.TextWrapWord
	t.rescanButton = widget.NewButton("Rescan", t.Rescan)
	t.wifiButton = widget.NewButton("Open Wi-Fi settings", t.OpenWiFiSettings)
	if t.openWiFiSettings == nil {
		t.wifiButton.Hide()
	}

	generalForm := widget.NewForm(
		widget.NewFormItem("Device name", t.deviceName),
		widget.NewFormItem("Device version", t.deviceVersion),
		widget.NewFormItem("LED intensity", t.ledIntensity),
		widget.NewFormItem("Log sensor values", t.logValues),
	)
	wifiBlock := container.NewVBox(
		t.networks,
		t.networkHint,
		widget.NewForm(widget.NewFormItem("Wi-Fi password", t.wifiPassword)),
		container.NewHBox(t.rescanButton, t.wifiButton),
	)
	mqttForm := widget.NewForm(
		widget.NewFormItem("Host", t.mqttHost),
		widget.NewFormItem("Username", t.mqttUsername),
		widget.NewFormItem("Password", t.mqttPassword),
	)
	logForm := widget.NewForm(
		widget.NewFormItem("Host", t.logHost),
		widget.NewFormItem("Username", t.logUsername),
		widget.NewFormItem("Password", t.logPassword),
	)

	t.actionStatus = widget.NewLabel("")
	t.actionStatus.Wrapping = fyne.TextWrapWord
	actionRow := container.NewHBox()
	for _, spec := range deviceActionSpecs {
		button := widget.NewButton(spec.label, func() {
			t.RequestAction(spec)
		})
		if t.actions == nil {
			button.Disable()
		}
		t.actionButtons[spec.action] = button
		actionRow.Add(button)
	}

	content := container.NewVBox(
		widget.NewCard("General", "", generalForm),
		widget.NewCard("Wi-Fi network", "", wifiBlock),
		widget.NewCard("MQTT", "", mqttForm),
		widget.NewCard("Remote logging", "", logForm),
		widget.NewCard("Device actions", "", container.NewVBox(actionRow, t.actionStatus)),
	)
	t.root = wrapPage(content, t.controls)

	if t.prefs == nil {
		t.controls.SetStatus("Device preferences are unavailable.")
		t.setInputsEnabled(false, false)
		setEnabled(false, t.controls.saveButton, t.controls.reloadButton)

		return t
	}
	t.setInputsEnabled(false, false)
	t.controls.saveButton.Disable()
	t.prefs.Attach(func(form airqapp.PreferenceForm) {
		t.hooks.RunOnUI(func() {
			t.applyForm(form)
		})
	})

	return t
}

// Start runs the initial scan and load once.
func (t *deviceTab) Start() {
	if t.prefs == nil || !t.started.CompareAndSwap(false, true) {
		return
	}
	t.runOperation("Scanning networks and loading preferences...", "Preferences loaded", t.prefs.Initialize)
}

func (t *deviceTab) applyForm(form airqapp.PreferenceForm) {
	t.applying.Store(true)
	defer t.applying.Store(false)

	t.form = form
	setEntryText(t.deviceName, form.DeviceName)
	setEntryText(t.wifiPassword, form.WifiPassword)
	setEntryText(t.deviceVersion, form.DeviceVersion)
	setEntryText(t.mqttHost, form.MQTTHost)
	setEntryText(t.mqttUsername, form.MQTTUsername)
	setEntryText(t.mqttPassword, form.MQTTPassword)
	setEntryText(t.logHost, form.LogHost)
	setEntryText(t.logUsername, form.LogUsername)
	setEntryText(t.logPassword, form.LogPassword)
	setEntryText(t.ledIntensity, strconv.Itoa(form.LEDIntensity))
	if t.logValues.Checked != form.LogValues {
		t.logValues.SetChecked(form.LogValues)
	}

	labels := make([]string, 0, len(form.Networks))
	t.labelToSSID = make(map[string]string, len(form.Networks))
	selected := ""
	for _, choice := range form.Networks {
		labels = append(labels, choice.Label)
		t.labelToSSID[choice.Label] = choice.SSID
		if form.SelectedSSID != "" && choice.SSID == form.SelectedSSID {
			selected = choice.Label
		}
	}
	t.networks.Options = labels
	t.networks.Selected = selected
	t.networks.Refresh()

	switch {
	case len(labels) == 0 && form.Loaded:
		t.networkHint.SetText("No networks found. Rescan to try again.")
	case selected == "" && form.Loaded:
		t.networkHint.SetText("Select the network the device should join.")
	default:
		t.networkHint.SetText("")
	}

	t.setInputsEnabled(form.Available, form.VersionEditable)
	if form.Available && form.Loaded {
		t.controls.saveButton.Enable()
	} else {
		t.controls.saveButton.Disable()
	}
}

func (t *deviceTab) setInputsEnabled(enabled, versionEditable bool) {
	setEnabled(enabled,
		t.deviceName, t.wifiPassword, t.mqttHost, t.mqttUsername, t.mqttPassword,
		t.logHost, t.logUsername, t.logPassword, t.ledIntensity, t.logValues,
		t.networks, t.rescanButton,
	)
	setEnabled(enabled && versionEditable, t.deviceVersion)
}

func setEntryText(entry *widget.Entry, text string) {
	if entry.Text != text {
		entry.SetText(text)
	}
}

func (t *deviceTab) onNetworkChanged(label string) {
	if t.applying.Load() || t.prefs == nil {
		return
	}
	ssid := t.labelToSSID[label]
	if label != "" && ssid == "" {
		return
	}
	led, err := t.readLEDIntensity()
	if err != nil {
		led = t.form.LEDIntensity
	}
	t.prefs.UpdateForm(func(form *airqapp.PreferenceForm) {
		t.readInto(form, led)
		form.SelectedSSID = ssid
	})
}

func (t *deviceTab) readLEDIntensity() (int, error) {
	raw := strings.TrimSpace(t.ledIntensity.Text)
	if raw == "" {
		return 0, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		return 0, fmt.Errorf("LED intensity must be a non-negative whole number")
	}

	return value, nil
}

func (t *deviceTab) readInto(form *airqapp.PreferenceForm, ledIntensity int) {
	form.DeviceName = strings.TrimSpace(t.deviceName.Text)
	form.WifiPassword = t.wifiPassword.Text
	form.DeviceVersion = strings.TrimSpace(t.deviceVersion.Text)
	form.MQTTHost = strings.TrimSpace(t.mqttHost.Text)
	form.MQTTUsername = strings.TrimSpace(t.mqttUsername.Text)
	form.MQTTPassword = t.mqttPassword.Text
	form.LogHost = strings.TrimSpace(t.logHost.Text)
	form.LogUsername = strings.TrimSpace(t.logUsername.Text)
	form.LogPassword = t.logPassword.Text
	form.LEDIntensity = ledIntensity
	form.LogValues = t.logValues.Checked
}

// syncForm pushes widget values into the engine so its next render does not
// overwrite unsaved edits.
func (t *deviceTab) syncForm() error {
	led, err := t.readLEDIntensity()
	if err != nil {
		return err
	}
	t.prefs.UpdateForm(func(form *airqapp.PreferenceForm) {
		t.readInto(form, led)
	})

	return nil
}

func (t *deviceTab) Save() {
	if t.prefs == nil {
		return
	}
	if err := t.syncForm(); err != nil {
		t.controls.SetStatus("Save failed: " + err.Error())

		return
	}
	t.runOperation("Saving preferences...", "Preferences saved", t.prefs.Save)
}

func (t *deviceTab) Reload() {
	if t.prefs == nil {
		return
	}
	if !t.started.Load() {
		t.Start()

		return
	}
	t.runOperation("Reloading preferences...", "Preferences reloaded", t.prefs.Reload)
}

func (t *deviceTab) Rescan() {
	if t.prefs == nil {
		return
	}
	if err := t.syncForm(); err != nil {
		t.controls.SetStatus("Rescan failed: " + err.Error())

		return
	}
	t.runOperation("Scanning networks...", "Network list updated", t.prefs.Rescan)
}

func (t *deviceTab) runOperation(progress, success string, op func(ctx context.Context) error) {
	t.controls.SetStatus(progress)
	t.controls.SetBusy(true)
	t.controls.reloadButton.Disable()
	t.hooks.RunAsync(func() {
		ctx, cancel := context.WithTimeout(context.Background(), deviceOpTimeout)
		defer cancel()
		err := op(ctx)
		t.hooks.RunOnUI(func() {
			t.controls.SetBusy(false)
			t.controls.reloadButton.Enable()
			if err != nil {
				appLogger.Warn("device preferences operation failed", "operation", progress, "error", err)
				t.controls.SetStatus(describePreferencesError(err))

				return
			}
			t.controls.SetStatus(success)
		})
	})
}

func describePreferencesError(err error) string {
	switch {
	case errors.Is(err, airqapp.ErrNoNetworkSelected):
		return "Select a Wi-Fi network before saving."
	case errors.Is(err, airqapp.ErrOperationInProgress):
		return "Another preferences operation is still running."
	default:
		return "Failed: " + err.Error()
	}
}

func (t *deviceTab) OpenWiFiSettings() {
	if t.openWiFiSettings == nil {
		return
	}
	if err := t.openWiFiSettings(); err != nil {
		t.controls.SetStatus("Failed to open Wi-Fi settings: " + err.Error())

		return
	}
	t.controls.SetStatus("Join the device access point, then press Reload.")
}

// RequestAction asks for confirmation and then runs the device command.
func (t *deviceTab) RequestAction(spec deviceActionSpec) {
	if t.actions == nil || t.actionBusy {
		return
	}
	window := t.hooks.CurrentWindow()
	if window == nil {
		t.actionStatus.SetText(spec.title + " failed: active window is unavailable")

		return
	}
	t.hooks.ShowConfirm(spec.title, spec.confirm, func(ok bool) {
		if !ok {
			return
		}
		t.runAction(spec)
	}, window)
}

func (t *deviceTab) runAction(spec deviceActionSpec) {
	t.actionBusy = true
	for _, button := range t.actionButtons {
		button.Disable()
	}
	t.actionStatus.SetText(spec.title + "...")
	t.hooks.RunAsync(func() {
		ctx, cancel := context.WithTimeout(context.Background(), deviceOpTimeout)
		defer cancel()
		result, err := t.actions.Run(ctx, spec.action)
		t.hooks.RunOnUI(func() {
			t.actionBusy = false
			for _, button := range t.actionButtons {
				button.Enable()
			}
			if err != nil {
				t.actionStatus.SetText(spec.title + " failed: " + err.Error())

				return
			}
			text := spec.done
			if body := strings.TrimSpace(result.Body); body != "" {
				text += ": " + body
			}
			t.actionStatus.SetText(text)
		})
	})
}

func (t *deviceTab) OnShow() {
	t.Start()
}
