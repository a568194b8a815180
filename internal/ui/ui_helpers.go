package ui

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/dialog"
)

// withDefaults fills unset hooks with the real Fyne implementations.
func (h UIHooks) withDefaults() UIHooks {
	if h.CurrentWindow == nil {
		h.CurrentWindow = currentWindow
	}
	if h.RunOnUI == nil {
		h.RunOnUI = fyne.Do
	}
	if h.RunAsync == nil {
		h.RunAsync = func(fn func()) {
			go fn()
		}
	}
	if h.ShowErrorDialog == nil {
		h.ShowErrorDialog = dialog.ShowError
	}
	if h.ShowInfoDialog == nil {
		h.ShowInfoDialog = dialog.ShowInformation
	}
	if h.ShowConfirm == nil {
		h.ShowConfirm = dialog.ShowConfirm
	}

	return h
}

func openExternalURL(rawURL string) error {
	parsed, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return fmt.Errorf("parse url: %w", err)
	}

	currentApp := fyne.CurrentApp()
	if currentApp == nil {
		return fmt.Errorf("application is not initialized")
	}
	if err := currentApp.OpenURL(parsed); err != nil {
		return fmt.Errorf("open url: %w", err)
	}

	return nil
}

func mustParseURL(rawURL string) *url.URL {
	parsed, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		panic(fmt.Sprintf("invalid url %q: %v", rawURL, err))
	}

	return parsed
}

func setVisible(visible bool, objects ...fyne.CanvasObject) {
	for _, object := range objects {
		if visible {
			object.Show()
			continue
		}
		object.Hide()
	}
}

type disableable interface {
	Enable()
	Disable()
}

func setEnabled(enabled bool, widgets ...disableable) {
	for _, w := range widgets {
		if enabled {
			w.Enable()
			continue
		}
		w.Disable()
	}
}

func uniqueValues(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	unique := make([]string, 0, len(values))
	for _, value := range values {
		trimmed := strings.TrimSpace(value)
		if trimmed == "" {
			continue
		}
		if _, ok := seen[trimmed]; ok {
			continue
		}
		seen[trimmed] = struct{}{}
		unique = append(unique, trimmed)
	}

	return unique
}

func currentWindow() fyne.Window {
	currentApp := fyne.CurrentApp()
	if currentApp == nil || currentApp.Driver() == nil {
		return nil
	}
	windows := currentApp.Driver().AllWindows()
	if len(windows) == 0 {
		return nil
	}

	return windows[0]
}

func orUnknown(v string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return "unknown"
	}

	return v
}

func compactJSONLine(body string) string {
	var buf bytes.Buffer
	if err := json.Compact(&buf, []byte(body)); err == nil {
		return buf.String()
	}

	return strings.Join(strings.Fields(body), " ")
}
