package platform

import (
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
)

// SystemActions provides OS-specific helpers triggered from the UI.
type SystemActions interface {
	// OpenWiFiSettings opens the OS network panel so the user can join the
	// device's provisioning access point.
	OpenWiFiSettings() error
	// OpenPath reveals a file or directory in the OS file manager.
	OpenPath(path string) error
}

func NewSystemActions() SystemActions {
	return newSystemActions()
}

type commandSpec struct {
	name string
	args []string
}

type commandStarter func(name string, args ...string) error

func openWiFiSettingsForOS(goos string, start commandStarter) error {
	normalizedOS := strings.ToLower(strings.TrimSpace(goos))
	commands, err := wifiSettingsCommandsForOS(normalizedOS)
	if err != nil {
		return err
	}

	slog.Info("opening wi-fi settings", "goos", normalizedOS, "attempts", len(commands))

	return runFirstAvailable(normalizedOS, commands, start)
}

func openPathForOS(goos, path string, start commandStarter) error {
	path = strings.TrimSpace(path)
	if path == "" {
		return errors.New("path is empty")
	}

	var command commandSpec
	switch strings.ToLower(strings.TrimSpace(goos)) {
	case "windows":
		command = commandSpec{name: "explorer.exe", args: []string{path}}
	case "darwin":
		command = commandSpec{name: "open", args: []string{path}}
	case "linux", "freebsd", "openbsd", "netbsd":
		command = commandSpec{name: "xdg-open", args: []string{path}}
	default:
		return fmt.Errorf("unsupported operating system: %s", goos)
	}

	if err := start(command.name, command.args...); err != nil {
		return fmt.Errorf("%s: %w", command.name, err)
	}

	return nil
}

func runFirstAvailable(goos string, commands []commandSpec, start commandStarter) error {
	var errs []error
	for i, spec := range commands {
		err := start(spec.name, spec.args...)
		if err == nil {
			slog.Info("opened system settings", "goos", goos, "command", spec.name, "attempt", i+1)

			return nil
		}
		slog.Debug("system settings command failed", "goos", goos, "command", spec.name, "args", spec.args, "error", err)
		errs = append(errs, fmt.Errorf("%s: %w", spec.name, err))
	}

	joinedErr := errors.Join(errs...)
	slog.Warn("failed to open system settings", "goos", goos, "error", joinedErr)

	return joinedErr
}

func wifiSettingsCommandsForOS(goos string) ([]commandSpec, error) {
	switch strings.ToLower(strings.TrimSpace(goos)) {
	case "windows":
		return []commandSpec{
			{name: "cmd", args: []string{"/c", "start", "", "ms-settings:network-wifi"}},
		}, nil
	case "darwin":
		return []commandSpec{
			{name: "open", args: []string{"x-apple.systempreferences:com.apple.preference.network"}},
		}, nil
	case "linux":
		return []commandSpec{
			{name: "gnome-control-center", args: []string{"wifi"}},
			{name: "systemsettings", args: []string{"kcm_networkmanagement"}},
			{name: "systemsettings5", args: []string{"kcm_networkmanagement"}},
			{name: "kcmshell6", args: []string{"kcm_networkmanagement"}},
			{name: "nm-connection-editor"},
		}, nil
	default:
		return nil, fmt.Errorf("unsupported operating system: %s", goos)
	}
}

func startCommandDetached(name string, args ...string) error {
	// #nosec G204 -- command names come from the fixed tables above.
	cmd := exec.Command(name, args...)

	return cmd.Start()
}
