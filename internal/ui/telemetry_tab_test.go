package ui

import (
	"context"
	"errors"
	"testing"
	"time"

	fynetest "fyne.io/fyne/v2/test"

	airqapp "github.com/skobkin/airqctl/internal/app"
	"github.com/skobkin/airqctl/internal/persistence"
)

func TestTelemetryTabRenderUpdatesRegion(t *testing.T) {
	app := fynetest.NewApp()
	t.Cleanup(app.Quit)

	tab := newTelemetryTab(RuntimeDependencies{UIHooks: syncHooks(nil, true)})
	if tab.sensorsText.Text != telemetryPlaceholderText || tab.statusText.Text != telemetryPlaceholderText {
		t.Fatalf("expected placeholders before first update")
	}
	if tab.historyButton != nil {
		t.Fatalf("expected no history card without a sample source")
	}

	at := time.Date(2026, 3, 4, 10, 11, 12, 0, time.Local)
	tab.Render(airqapp.TelemetryUpdate{Region: airqapp.RegionSensors, Text: "CO2: 612 ppm", At: at})

	if tab.sensorsText.Text != "CO2: 612 ppm" {
		t.Fatalf("unexpected sensors text %q", tab.sensorsText.Text)
	}
	if tab.sensorsUpdated.Text != "Updated 10:11:12" {
		t.Fatalf("unexpected sensors timestamp %q", tab.sensorsUpdated.Text)
	}
	if tab.statusText.Text != telemetryPlaceholderText {
		t.Fatalf("expected status region to stay untouched, got %q", tab.statusText.Text)
	}

	tab.Render(airqapp.TelemetryUpdate{Region: airqapp.RegionStatus, Text: "Uptime: 5m", At: at})
	if tab.statusText.Text != "Uptime: 5m" {
		t.Fatalf("unexpected status text %q", tab.statusText.Text)
	}
	tab.OnShow()
}

func TestTelemetryTabLoadHistory(t *testing.T) {
	app := fynetest.NewApp()
	t.Cleanup(app.Quit)

	var gotRegion airqapp.TelemetryRegion
	var gotLimit int
	var calls int
	fail := false
	tab := newTelemetryTab(RuntimeDependencies{
		UIHooks: syncHooks(nil, true),
		Data: DataDependencies{
			RecentSamples: func(_ context.Context, region airqapp.TelemetryRegion, limit int) ([]persistence.Sample, error) {
				calls++
				gotRegion = region
				gotLimit = limit
				if fail {
					return nil, errors.New("database is closed")
				}

				return []persistence.Sample{
					{Region: string(region), Body: "{\n  \"co2\": 612\n}", RecordedAt: time.Date(2026, 3, 4, 10, 0, 0, 0, time.Local)},
				}, nil
			},
		},
	})

	tab.OnShow()
	tab.OnShow()
	if calls != 1 {
		t.Fatalf("expected history to load once on show, got %d", calls)
	}
	if gotRegion != airqapp.RegionSensors || gotLimit != airqapp.RecentSamplesLoad {
		t.Fatalf("unexpected query region=%v limit=%d", gotRegion, gotLimit)
	}
	if tab.historyStatus.Text != "1 samples" || len(tab.history) != 1 {
		t.Fatalf("unexpected history state status=%q len=%d", tab.historyStatus.Text, len(tab.history))
	}
	if got := formatHistorySample(tab.history[0]); got != "2026-03-04 10:00:00  {\"co2\":612}" {
		t.Fatalf("unexpected history row %q", got)
	}

	fail = true
	tab.LoadHistory()
	if tab.historyStatus.Text != "Loading history failed: database is closed" {
		t.Fatalf("unexpected failure status %q", tab.historyStatus.Text)
	}
	if tab.historyButton.Disabled() {
		t.Fatalf("expected history button enabled after failure")
	}
}
