//go:build windows

package platform

import (
	"errors"
	"fmt"
	"strings"
	"syscall"

	"golang.org/x/sys/windows/registry"
)

const windowsRunKeyPath = `Software\Microsoft\Windows\CurrentVersion\Run`

type windowsAutostartManager struct{}

func newAutostartManager() AutostartManager {
	return windowsAutostartManager{}
}

func (windowsAutostartManager) Sync(cfg AutostartConfig) error {
	key, _, err := registry.CreateKey(registry.CURRENT_USER, windowsRunKeyPath, registry.QUERY_VALUE|registry.SET_VALUE)
	if err != nil {
		return fmt.Errorf("open autostart registry key: %w", err)
	}
	defer key.Close()

	if !cfg.Enabled {
		if err := key.DeleteValue(autostartEntryName); err != nil && !isWindowsValueNotFound(err) {
			return fmt.Errorf("remove autostart registry value: %w", err)
		}

		return nil
	}

	executable, args, err := buildLaunchCommand(cfg)
	if err != nil {
		return err
	}
	if err := key.SetStringValue(autostartEntryName, windowsCommandLine(executable, args)); err != nil {
		return fmt.Errorf("set autostart registry value: %w", err)
	}

	return nil
}

func isWindowsValueNotFound(err error) bool {
	return errors.Is(err, registry.ErrNotExist) || errors.Is(err, syscall.Errno(2))
}

func windowsCommandLine(executable string, args []string) string {
	fields := make([]string, 0, 1+len(args))
	fields = append(fields, quoteWindowsArg(executable))
	for _, arg := range args {
		fields = append(fields, quoteWindowsArg(arg))
	}

	return strings.Join(fields, " ")
}

// quoteWindowsArg applies the CommandLineToArgvW escaping rules.
func quoteWindowsArg(arg string) string {
	if arg == "" {
		return `""`
	}
	if !strings.ContainsAny(arg, " \t\n\v\"") {
		return arg
	}

	var b strings.Builder
	b.WriteByte('"')
	backslashes := 0
	for i := 0; i < len(arg); i++ {
		switch arg[i] {
		case '\\':
			backslashes++
		case '"':
			b.WriteString(strings.Repeat(`\`, backslashes*2+1))
			b.WriteByte('"')
			backslashes = 0
		default:
			b.WriteString(strings.Repeat(`\`, backslashes))
			backslashes = 0
			b.WriteByte(arg[i])
		}
	}
	b.WriteString(strings.Repeat(`\`, backslashes*2))
	b.WriteByte('"')

	return b.String()
}
