package platform

import "runtime"

type osSystemActions struct {
	goos  string
	start commandStarter
}

func newSystemActions() SystemActions {
	return osSystemActions{goos: runtime.GOOS, start: startCommandDetached}
}

func (a osSystemActions) OpenWiFiSettings() error {
	return openWiFiSettingsForOS(a.goos, a.start)
}

func (a osSystemActions) OpenPath(path string) error {
	return openPathForOS(a.goos, path, a.start)
}
