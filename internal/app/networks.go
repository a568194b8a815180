package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/skobkin/airqctl/internal/device"
)

// NetworkChoice is one entry of the exclusive Wi-Fi choice list.
type NetworkChoice struct {
	SSID   string
	Label  string
	Record device.NetworkRecord
}

type NetworkSource interface {
	Networks(ctx context.Context) ([]device.NetworkRecord, error)
}

func NetworkLabel(record device.NetworkRecord) string {
	return fmt.Sprintf("%s - %d - %d - %s", record.SSID, record.Channel, record.RSSI, record.AuthMode)
}

// DedupNetworks keeps the first record of every SSID in scan order.
func DedupNetworks(records []device.NetworkRecord) []NetworkChoice {
	seen := make(map[string]struct{}, len(records))
	choices := make([]NetworkChoice, 0, len(records))
	for _, record := range records {
		if _, ok := seen[record.SSID]; ok {
			continue
		}
		seen[record.SSID] = struct{}{}
		choices = append(choices, NetworkChoice{
			SSID:   record.SSID,
			Label:  NetworkLabel(record),
			Record: record,
		})
	}

	return choices
}

func findNetwork(choices []NetworkChoice, ssid string) bool {
	for _, choice := range choices {
		if choice.SSID == ssid {
			return true
		}
	}

	return false
}

// NetworkReconciler rebuilds the choice list from a fresh scan.
type NetworkReconciler struct {
	source NetworkSource
	logger *slog.Logger
}

func NewNetworkReconciler(source NetworkSource, logger *slog.Logger) *NetworkReconciler {
	if logger == nil {
		logger = slog.Default().With("component", "networks")
	}

	return &NetworkReconciler{source: source, logger: logger}
}

// Scan marks the form unavailable for the duration of the fetch.
// setAvailable may be nil.
func (r *NetworkReconciler) Scan(ctx context.Context, setAvailable func(bool)) ([]NetworkChoice, error) {
	if setAvailable != nil {
		setAvailable(false)
		defer setAvailable(true)
	}

	records, err := r.source.Networks(ctx)
	if err != nil {
		return nil, fmt.Errorf("scan networks: %w", err)
	}
	choices := DedupNetworks(records)
	r.logger.Info("network scan reconciled", "records", len(records), "unique", len(choices))

	return choices, nil
}
