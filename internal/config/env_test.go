package config

import (
	"os"
	"path/filepath"
	"testing"
)

func mapLookup(values map[string]string) LookupFunc {
	return func(key string) (string, bool) {
		v, ok := values[key]

		return v, ok
	}
}

func TestApplyEnvOverridesValues(t *testing.T) {
	cfg := Default()
	err := cfg.ApplyEnv(mapLookup(map[string]string{
		EnvDeviceURL:      "http://10.1.1.9/",
		EnvLogLevel:       "debug",
		EnvBrokerURL:      "tcp://mqtt.lan:1883",
		EnvBrokerUsername: "sensor",
		EnvConsolePort:    "/dev/ttyACM0",
		EnvConsoleBaud:    "921600",
		EnvHistoryEnabled: "true",
	}))
	if err != nil {
		t.Fatalf("apply env: %v", err)
	}

	if cfg.Device.BaseURL != "http://10.1.1.9" {
		t.Fatalf("unexpected device url %q", cfg.Device.BaseURL)
	}
	if cfg.Logging.Level != "debug" {
		t.Fatalf("unexpected log level %q", cfg.Logging.Level)
	}
	if !cfg.Broker.Enabled || cfg.Broker.URL != "tcp://mqtt.lan:1883" || cfg.Broker.Username != "sensor" {
		t.Fatalf("unexpected broker config %+v", cfg.Broker)
	}
	if cfg.Console.Port != "/dev/ttyACM0" || cfg.Console.Baud != 921600 {
		t.Fatalf("unexpected console config %+v", cfg.Console)
	}
	if !cfg.History.Enabled {
		t.Fatalf("expected history to be enabled")
	}
}

func TestApplyEnvIgnoresBlankValues(t *testing.T) {
	cfg := Default()
	if err := cfg.ApplyEnv(mapLookup(map[string]string{EnvDeviceURL: "  "})); err != nil {
		t.Fatalf("apply env: %v", err)
	}
	if cfg.Device.BaseURL != DefaultDeviceURL {
		t.Fatalf("blank env value must not override, got %q", cfg.Device.BaseURL)
	}
}

func TestApplyEnvRejectsBadNumbers(t *testing.T) {
	cfg := Default()
	if err := cfg.ApplyEnv(mapLookup(map[string]string{EnvConsoleBaud: "fast"})); err == nil {
		t.Fatalf("expected baud parse error")
	}
	if err := cfg.ApplyEnv(mapLookup(map[string]string{EnvHistoryEnabled: "maybe"})); err == nil {
		t.Fatalf("expected bool parse error")
	}
}

func TestEnvLookupReadsDotenvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultDotenvName)
	raw := "AIRQCTL_TEST_ONLY_KEY=from-file\nAIRQCTL_TEST_SHADOWED=file\n"
	if err := os.WriteFile(path, []byte(raw), 0o600); err != nil {
		t.Fatalf("write env fixture: %v", err)
	}
	t.Setenv("AIRQCTL_TEST_SHADOWED", "process")

	lookup, err := EnvLookup(path)
	if err != nil {
		t.Fatalf("env lookup: %v", err)
	}

	if v, ok := lookup("AIRQCTL_TEST_ONLY_KEY"); !ok || v != "from-file" {
		t.Fatalf("expected file value, got %q ok=%v", v, ok)
	}
	if v, _ := lookup("AIRQCTL_TEST_SHADOWED"); v != "process" {
		t.Fatalf("expected process env to win, got %q", v)
	}
	if _, ok := lookup("AIRQCTL_TEST_ABSENT"); ok {
		t.Fatalf("expected absent key to be missing")
	}
}

func TestEnvLookupMissingFileIsNotAnError(t *testing.T) {
	if _, err := EnvLookup(filepath.Join(t.TempDir(), "missing.env")); err != nil {
		t.Fatalf("expected missing dotenv file to be ignored, got %v", err)
	}
}

func TestWithoutOverridesRestoresFileValues(t *testing.T) {
	file := Default()
	file.Broker.Password = "from-file"

	effective := file
	if err := effective.ApplyEnv(mapLookup(map[string]string{
		EnvDeviceURL:      "http://10.9.9.9",
		EnvBrokerURL:      "tcp://mqtt.lan:1883",
		EnvBrokerPassword: "s3cret-from-env",
	})); err != nil {
		t.Fatalf("apply env: %v", err)
	}

	edited := effective
	edited.Logging.Level = "debug"
	edited.Broker.Username = "typed-in-settings"

	got := WithoutOverrides(edited, effective, file)
	if got.Device.BaseURL != DefaultDeviceURL {
		t.Fatalf("expected file device url, got %q", got.Device.BaseURL)
	}
	if got.Broker.Enabled || got.Broker.URL != "" || got.Broker.Password != "from-file" {
		t.Fatalf("expected broker values from file, got %+v", got.Broker)
	}
	if got.Logging.Level != "debug" || got.Broker.Username != "typed-in-settings" {
		t.Fatalf("expected user edits to survive, got level %q username %q", got.Logging.Level, got.Broker.Username)
	}
}

func TestWithoutOverridesKeepsChangedOverriddenField(t *testing.T) {
	file := Default()
	effective := file
	effective.Device.BaseURL = "http://10.9.9.9"

	edited := effective
	edited.Device.BaseURL = "http://10.0.0.5"

	if got := WithoutOverrides(edited, effective, file); got.Device.BaseURL != "http://10.0.0.5" {
		t.Fatalf("expected edited device url to be kept, got %q", got.Device.BaseURL)
	}
}
