package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	// DefaultDeviceURL is the address the device answers on while it runs its provisioning access point.
	DefaultDeviceURL         = "http://192.168.4.1"
	DefaultRequestTimeoutMS  = 10000
	DefaultSensorIntervalMS  = 5000
	DefaultStatusIntervalMS  = 10000
	DefaultHistoryRetention  = 30
	DefaultConsoleBaud       = 115200
	DefaultReleaseCheckMins  = 12 * 60
	DefaultBrokerClientIDTag = "airqctl"
)

// AutostartMode controls how the app is launched at login.
type AutostartMode string

const (
	AutostartModeNormal     AutostartMode = "normal"
	AutostartModeBackground AutostartMode = "background"
)

// DeviceConfig describes how the device HTTP API is reached.
type DeviceConfig struct {
	BaseURL          string `json:"base_url"`
	RequestTimeoutMS int    `json:"request_timeout_ms"`
}

// PollingConfig defines telemetry refresh intervals.
type PollingConfig struct {
	SensorIntervalMS int `json:"sensor_interval_ms"`
	StatusIntervalMS int `json:"status_interval_ms"`
}

// LoggingConfig defines runtime logging behavior.
type LoggingConfig struct {
	Level     string `json:"level"`
	LogToFile bool   `json:"log_to_file"`
}

// HistoryConfig controls the local telemetry history database.
type HistoryConfig struct {
	Enabled       bool `json:"enabled"`
	RetentionDays int  `json:"retention_days"`
}

// BrokerConfig configures the optional MQTT mirror of device publications.
type BrokerConfig struct {
	Enabled  bool   `json:"enabled"`
	URL      string `json:"url"`
	Username string `json:"username"`
	Password string `json:"password"`
	ClientID string `json:"client_id"`
}

// ConsoleConfig configures the optional USB serial log console.
type ConsoleConfig struct {
	Port string `json:"port"`
	Baud int    `json:"baud"`
}

// FirmwareConfig configures firmware release checks.
type FirmwareConfig struct {
	ReleaseFeedURL       string `json:"release_feed_url"`
	CheckIntervalMinutes int    `json:"check_interval_minutes"`
}

// NotificationConfig controls desktop notifications raised from bus events.
type NotificationConfig struct {
	NotifyWhenFocused bool `json:"notify_when_focused"`
	ConnectionStatus  bool `json:"connection_status"`
	FirmwareRelease   bool `json:"firmware_release"`
}

// AutostartConfig stores the launch-at-login preference.
type AutostartConfig struct {
	Enabled bool          `json:"enabled"`
	Mode    AutostartMode `json:"mode"`
}

// UIConfig holds desktop shell preferences.
type UIConfig struct {
	Autostart AutostartConfig `json:"autostart"`
}

// AppConfig is the root persisted application configuration.
type AppConfig struct {
	Device        DeviceConfig       `json:"device"`
	Polling       PollingConfig      `json:"polling"`
	Logging       LoggingConfig      `json:"logging"`
	History       HistoryConfig      `json:"history"`
	Broker        BrokerConfig       `json:"broker"`
	Console       ConsoleConfig      `json:"console"`
	Firmware      FirmwareConfig     `json:"firmware"`
	Notifications NotificationConfig `json:"notifications"`
	UI            UIConfig           `json:"ui"`
}

func Default() AppConfig {
	return AppConfig{
		Device: DeviceConfig{
			BaseURL:          DefaultDeviceURL,
			RequestTimeoutMS: DefaultRequestTimeoutMS,
		},
		Polling: PollingConfig{
			SensorIntervalMS: DefaultSensorIntervalMS,
			StatusIntervalMS: DefaultStatusIntervalMS,
		},
		Logging: LoggingConfig{
			Level:     "info",
			LogToFile: false,
		},
		History: HistoryConfig{
			Enabled:       false,
			RetentionDays: DefaultHistoryRetention,
		},
		Broker: BrokerConfig{
			ClientID: DefaultBrokerClientIDTag,
		},
		Console: ConsoleConfig{
			Baud: DefaultConsoleBaud,
		},
		Firmware: FirmwareConfig{
			CheckIntervalMinutes: DefaultReleaseCheckMins,
		},
		Notifications: NotificationConfig{
			ConnectionStatus: true,
			FirmwareRelease:  true,
		},
		UI: UIConfig{
			Autostart: AutostartConfig{
				Enabled: false,
				Mode:    AutostartModeNormal,
			},
		},
	}
}

func Load(path string) (AppConfig, error) {
	cfg := Default()
	cleanPath := filepath.Clean(path)
	// #nosec G304 -- path is resolved by app runtime and points to user config dir.
	raw, err := os.ReadFile(cleanPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}

		return AppConfig{}, fmt.Errorf("read config: %w", err)
	}

	if err := json.Unmarshal(raw, &cfg); err != nil {
		return AppConfig{}, fmt.Errorf("decode config json: %w", err)
	}

	cfg.FillMissingDefaults()

	return cfg, nil
}

func (c *AppConfig) FillMissingDefaults() {
	c.Device.BaseURL = strings.TrimRight(strings.TrimSpace(c.Device.BaseURL), "/")
	if c.Device.BaseURL == "" {
		c.Device.BaseURL = DefaultDeviceURL
	}
	if c.Device.RequestTimeoutMS <= 0 {
		c.Device.RequestTimeoutMS = DefaultRequestTimeoutMS
	}
	if c.Polling.SensorIntervalMS <= 0 {
		c.Polling.SensorIntervalMS = DefaultSensorIntervalMS
	}
	if c.Polling.StatusIntervalMS <= 0 {
		c.Polling.StatusIntervalMS = DefaultStatusIntervalMS
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.History.RetentionDays <= 0 {
		c.History.RetentionDays = DefaultHistoryRetention
	}
	if strings.TrimSpace(c.Broker.ClientID) == "" {
		c.Broker.ClientID = DefaultBrokerClientIDTag
	}
	if c.Console.Baud <= 0 {
		c.Console.Baud = DefaultConsoleBaud
	}
	if c.Firmware.CheckIntervalMinutes <= 0 {
		c.Firmware.CheckIntervalMinutes = DefaultReleaseCheckMins
	}
	c.UI.Autostart.Mode = normalizeAutostartMode(c.UI.Autostart.Mode)
}

func normalizeAutostartMode(mode AutostartMode) AutostartMode {
	switch mode {
	case AutostartModeBackground:
		return AutostartModeBackground
	default:
		return AutostartModeNormal
	}
}

func (c AppConfig) Validate() error {
	if err := validateHTTPURL(c.Device.BaseURL); err != nil {
		return fmt.Errorf("device url: %w", err)
	}
	if c.Polling.SensorIntervalMS < 500 || c.Polling.StatusIntervalMS < 500 {
		return errors.New("polling intervals must be at least 500 ms")
	}
	if c.Broker.Enabled {
		raw := strings.TrimSpace(c.Broker.URL)
		if raw == "" {
			return errors.New("broker url is required when the broker mirror is enabled")
		}
		u, err := url.Parse(raw)
		if err != nil {
			return fmt.Errorf("broker url: %w", err)
		}
		switch u.Scheme {
		case "tcp", "ssl", "tls", "ws", "wss", "mqtt", "mqtts":
		default:
			return fmt.Errorf("broker url: unsupported scheme %q", u.Scheme)
		}
	}
	if strings.TrimSpace(c.Console.Port) != "" && c.Console.Baud <= 0 {
		return errors.New("console baud must be positive")
	}
	if feed := strings.TrimSpace(c.Firmware.ReleaseFeedURL); feed != "" {
		if err := validateHTTPURL(feed); err != nil {
			return fmt.Errorf("release feed url: %w", err)
		}
	}

	return nil
}

func validateHTTPURL(raw string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return errors.New("url is required")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return errors.New("host is required")
	}

	return nil
}

func (c DeviceConfig) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutMS) * time.Millisecond
}

func (c PollingConfig) SensorInterval() time.Duration {
	return time.Duration(c.SensorIntervalMS) * time.Millisecond
}

func (c PollingConfig) StatusInterval() time.Duration {
	return time.Duration(c.StatusIntervalMS) * time.Millisecond
}

func (c HistoryConfig) Retention() time.Duration {
	return time.Duration(c.RetentionDays) * 24 * time.Hour
}

func (c FirmwareConfig) CheckInterval() time.Duration {
	return time.Duration(c.CheckIntervalMinutes) * time.Minute
}

func Save(path string, cfg AppConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	raw, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, raw, 0o600); err != nil {
		return fmt.Errorf("write temp config: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename temp config: %w", err)
	}

	return nil
}
