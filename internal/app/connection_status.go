package app

import (
	"net/url"
	"strings"

	"github.com/skobkin/airqctl/internal/config"
	"github.com/skobkin/airqctl/internal/connectors"
)

// ConnectionTarget returns the host part of the device URL for status lines.
func ConnectionTarget(cfg config.DeviceConfig) string {
	raw := strings.TrimSpace(cfg.BaseURL)
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return raw
	}

	return u.Host
}

// ConnectionStatusFromConfig is the status shown before the first poll completes.
func ConnectionStatusFromConfig(cfg config.DeviceConfig) connectors.ConnectionStatus {
	status := connectors.ConnectionStatus{
		State:  connectors.ConnectionStateDisconnected,
		Target: ConnectionTarget(cfg),
	}
	if status.Target != "" {
		status.State = connectors.ConnectionStateConnecting
	}

	return status
}
