package device

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// PasswordPlaceholder is what the device returns for a stored secret.
// Sending it back leaves the stored secret untouched.
const PasswordPlaceholder = "****"

// Snapshot is an opaque JSON object returned by a telemetry endpoint.
// Raw keeps the device's key order for rendering.
type Snapshot struct {
	Raw    json.RawMessage
	Values map[string]any
}

func newSnapshot(raw []byte) (Snapshot, error) {
	var values map[string]any
	if err := json.Unmarshal(raw, &values); err != nil {
		return Snapshot{}, fmt.Errorf("decode json object: %w", err)
	}
	if values == nil {
		return Snapshot{}, fmt.Errorf("decode json object: got null")
	}

	return Snapshot{Raw: append(json.RawMessage(nil), raw...), Values: values}, nil
}

// Indented renders the snapshot with four-space indentation.
func (s Snapshot) Indented() string {
	if len(s.Raw) == 0 {
		return ""
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, s.Raw, "", "    "); err != nil {
		return strings.TrimSpace(string(s.Raw))
	}

	return buf.String()
}

// SensorSnapshot is the /sensorvalues answer.
type SensorSnapshot struct {
	Snapshot
}

// StatusSnapshot is the /status answer.
type StatusSnapshot struct {
	Snapshot
}

// FirmwareVersion returns the "version" field when the device reports one.
func (s StatusSnapshot) FirmwareVersion() string {
	v, ok := s.Values["version"]
	if !ok || v == nil {
		return ""
	}
	if str, ok := v.(string); ok {
		return strings.TrimSpace(str)
	}

	return strings.TrimSpace(fmt.Sprint(v))
}

// NetworkRecord is one entry of a Wi-Fi scan.
type NetworkRecord struct {
	SSID     string `json:"ssid"`
	Channel  int    `json:"channel"`
	RSSI     int    `json:"rssi"`
	AuthMode string `json:"authmode"`
}

// Preferences is the preference set as reported by the device.
type Preferences struct {
	DeviceName       string `json:"deviceName"`
	WifiSSID         string `json:"wifiSsid"`
	WifiPassword     string `json:"wifiPassword"`
	DeviceVersion    string `json:"deviceVersion"`
	MQTTHost         string `json:"mqttHost"`
	MQTTUsername     string `json:"mqttUsername"`
	MQTTPassword     string `json:"mqttPassword"`
	LogHost          string `json:"logHost"`
	LogUsername      string `json:"logUsername"`
	LogPassword      string `json:"logPassword"`
	LEDIntensity     int    `json:"ledIntensity"`
	LogValues        bool   `json:"logValues"`
	ProvisioningMode bool   `json:"provisioningMode"`
}

// PreferencesUpdate is the outbound write. DeviceVersion is only sent when set.
type PreferencesUpdate struct {
	DeviceName    string  `json:"deviceName"`
	WifiSSID      string  `json:"wifiSsid"`
	WifiPassword  string  `json:"wifiPassword"`
	DeviceVersion *string `json:"deviceVersion,omitempty"`
	MQTTHost      string  `json:"mqttHost"`
	MQTTUsername  string  `json:"mqttUsername"`
	MQTTPassword  string  `json:"mqttPassword"`
	LogHost       string  `json:"logHost"`
	LogUsername   string  `json:"logUsername"`
	LogPassword   string  `json:"logPassword"`
	LEDIntensity  int     `json:"ledIntensity"`
	LogValues     bool    `json:"logValues"`
}

// ActionResult is the decoded body of a command endpoint.
type ActionResult struct {
	Body   string
	Values map[string]any
}
