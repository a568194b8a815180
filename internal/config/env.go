package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

const (
	EnvDeviceURL      = "AIRQCTL_DEVICE_URL"
	EnvLogLevel       = "AIRQCTL_LOG_LEVEL"
	EnvHistoryEnabled = "AIRQCTL_HISTORY_ENABLED"
	EnvBrokerURL      = "AIRQCTL_BROKER_URL"
	EnvBrokerUsername = "AIRQCTL_BROKER_USERNAME"
	EnvBrokerPassword = "AIRQCTL_BROKER_PASSWORD"
	EnvConsolePort    = "AIRQCTL_CONSOLE_PORT"
	EnvConsoleBaud    = "AIRQCTL_CONSOLE_BAUD"
	EnvReleaseFeedURL = "AIRQCTL_RELEASE_FEED_URL"
	DefaultDotenvName = ".env"
)

// LookupFunc resolves one environment variable.
type LookupFunc func(key string) (string, bool)

// EnvLookup merges the process environment with an optional dotenv file.
// Process variables win over file values, same as godotenv.Load.
func EnvLookup(dotenvPath string) (LookupFunc, error) {
	fileValues := map[string]string{}
	if strings.TrimSpace(dotenvPath) != "" {
		values, err := godotenv.Read(dotenvPath)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("read env file: %w", err)
		}
		if values != nil {
			fileValues = values
		}
	}

	return func(key string) (string, bool) {
		if value, ok := os.LookupEnv(key); ok {
			return value, true
		}
		value, ok := fileValues[key]

		return value, ok
	}, nil
}

// ApplyEnv overrides config values with AIRQCTL_* variables.
func (c *AppConfig) ApplyEnv(lookup LookupFunc) error {
	if lookup == nil {
		return nil
	}

	setString := func(key string, dst *string) {
		if value, ok := lookup(key); ok && strings.TrimSpace(value) != "" {
			*dst = strings.TrimSpace(value)
		}
	}

	setString(EnvDeviceURL, &c.Device.BaseURL)
	setString(EnvLogLevel, &c.Logging.Level)
	setString(EnvBrokerUsername, &c.Broker.Username)
	setString(EnvBrokerPassword, &c.Broker.Password)
	setString(EnvConsolePort, &c.Console.Port)
	setString(EnvReleaseFeedURL, &c.Firmware.ReleaseFeedURL)

	if value, ok := lookup(EnvBrokerURL); ok && strings.TrimSpace(value) != "" {
		c.Broker.URL = strings.TrimSpace(value)
		c.Broker.Enabled = true
	}
	if value, ok := lookup(EnvHistoryEnabled); ok && strings.TrimSpace(value) != "" {
		enabled, err := strconv.ParseBool(strings.TrimSpace(value))
		if err != nil {
			return fmt.Errorf("parse %s: %w", EnvHistoryEnabled, err)
		}
		c.History.Enabled = enabled
	}
	if value, ok := lookup(EnvConsoleBaud); ok && strings.TrimSpace(value) != "" {
		baud, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			return fmt.Errorf("parse %s: %w", EnvConsoleBaud, err)
		}
		c.Console.Baud = baud
	}

	c.FillMissingDefaults()

	return nil
}

// WithoutOverrides returns edited with every field that still holds its
// environment or --device-url value reset to the value loaded from file.
// Fields the user changed away from the override are kept.
func WithoutOverrides(edited, effective, file AppConfig) AppConfig {
	keepFileValue(&edited.Device.BaseURL, effective.Device.BaseURL, file.Device.BaseURL)
	keepFileValue(&edited.Logging.Level, effective.Logging.Level, file.Logging.Level)
	keepFileValue(&edited.History.Enabled, effective.History.Enabled, file.History.Enabled)
	keepFileValue(&edited.Broker.Enabled, effective.Broker.Enabled, file.Broker.Enabled)
	keepFileValue(&edited.Broker.URL, effective.Broker.URL, file.Broker.URL)
	keepFileValue(&edited.Broker.Username, effective.Broker.Username, file.Broker.Username)
	keepFileValue(&edited.Broker.Password, effective.Broker.Password, file.Broker.Password)
	keepFileValue(&edited.Console.Port, effective.Console.Port, file.Console.Port)
	keepFileValue(&edited.Console.Baud, effective.Console.Baud, file.Console.Baud)
	keepFileValue(&edited.Firmware.ReleaseFeedURL, effective.Firmware.ReleaseFeedURL, file.Firmware.ReleaseFeedURL)

	return edited
}

func keepFileValue[T comparable](dst *T, effective, file T) {
	if effective != file && *dst == effective {
		*dst = file
	}
}
