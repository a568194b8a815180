package ui

import (
	"context"
	"fmt"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/widget"

	airqapp "github.com/skobkin/airqctl/internal/app"
	"github.com/skobkin/airqctl/internal/persistence"
)

const (
	telemetryTimeLayout      = "15:04:05"
	telemetryHistoryTimeout  = 5 * time.Second
	telemetryPlaceholderText = "Waiting for the device..."
)

// telemetryTab shows the sensor and status regions. It is the poller's sink,
// so Render may be called from any goroutine.
type telemetryTab struct {
	hooks UIHooks

	sensorsText    *widget.Label
	sensorsUpdated *widget.Label
	statusText     *widget.Label
	statusUpdated  *widget.Label

	recentSamples func(ctx context.Context, region airqapp.TelemetryRegion, limit int) ([]persistence.Sample, error)
	history       []persistence.Sample
	historyList   *widget.List
	historyStatus *widget.Label
	historyButton *widget.Button

	root fyne.CanvasObject
}

func newTelemetryTab(dep RuntimeDependencies) *telemetryTab {
	t := &telemetryTab{
		hooks:         dep.UIHooks.withDefaults(),
		recentSamples: dep.Data.RecentSamples,
	}

	t.sensorsText = newTelemetryTextLabel()
	t.sensorsUpdated = widget.NewLabel("")
	t.statusText = newTelemetryTextLabel()
	t.statusUpdated = widget.NewLabel("")

	sensorsCard := widget.NewCard("Sensor readings", "", container.NewVBox(t.sensorsUpdated, t.sensorsText))
	statusCard := widget.NewCard("Device status", "", container.NewVBox(t.statusUpdated, t.statusText))
	regions := container.NewGridWithColumns(2, sensorsCard, statusCard)

	content := container.NewVBox(regions)
	if t.recentSamples != nil {
		content.Add(t.buildHistoryCard())
	}
	t.root = container.NewVScroll(content)

	return t
}

func newTelemetryTextLabel() *widget.Label {
	label := widget.NewLabel(telemetryPlaceholderText)
	label.TextStyle = fyne.TextStyle{Monospace: true}
	label.Wrapping = fyne.TextWrapBreak

	return label
}

func (t *telemetryTab) buildHistoryCard() fyne.CanvasObject {
	t.historyStatus = widget.NewLabel("")
	t.historyList = widget.NewList(
		func() int {
			return len(t.history)
		},
		func() fyne.CanvasObject {
			label := widget.NewLabel(" ")
			label.Truncation = fyne.TextTruncateEllipsis
			label.TextStyle = fyne.TextStyle{Monospace: true}

			return label
		},
		func(id widget.ListItemID, object fyne.CanvasObject) {
			label, ok := object.(*widget.Label)
			if !ok {
				return
			}
			if id < 0 || id >= len(t.history) {
				label.SetText("")

				return
			}
			label.SetText(formatHistorySample(t.history[id]))
		},
	)
	t.historyButton = widget.NewButton("Load recent samples", t.LoadHistory)

	listBox := container.NewGridWrap(fyne.NewSize(800, 220), t.historyList)

	return widget.NewCard("History", "", container.NewVBox(
		container.NewHBox(t.historyButton, t.historyStatus),
		listBox,
	))
}

// Render applies one poller update to its region.
func (t *telemetryTab) Render(update airqapp.TelemetryUpdate) {
	t.hooks.RunOnUI(func() {
		t.apply(update)
	})
}

func (t *telemetryTab) apply(update airqapp.TelemetryUpdate) {
	updated := "Updated " + update.At.Local().Format(telemetryTimeLayout)
	switch update.Region {
	case airqapp.RegionSensors:
		t.sensorsText.SetText(update.Text)
		t.sensorsUpdated.SetText(updated)
	case airqapp.RegionStatus:
		t.statusText.SetText(update.Text)
		t.statusUpdated.SetText(updated)
	default:
		appLogger.Debug("ignoring telemetry update for unknown region", "region", update.Region)
	}
}

// LoadHistory reads the newest stored sensor samples.
func (t *telemetryTab) LoadHistory() {
	if t.recentSamples == nil || t.historyButton == nil {
		return
	}
	t.historyButton.Disable()
	t.historyStatus.SetText("Loading...")
	t.hooks.RunAsync(func() {
		ctx, cancel := context.WithTimeout(context.Background(), telemetryHistoryTimeout)
		defer cancel()
		samples, err := t.recentSamples(ctx, airqapp.RegionSensors, airqapp.RecentSamplesLoad)
		t.hooks.RunOnUI(func() {
			t.historyButton.Enable()
			if err != nil {
				t.historyStatus.SetText("Loading history failed: " + err.Error())

				return
			}
			t.history = samples
			t.historyStatus.SetText(fmt.Sprintf("%d samples", len(samples)))
			t.historyList.Refresh()
		})
	})
}

func (t *telemetryTab) OnShow() {
	if t.recentSamples != nil && len(t.history) == 0 {
		t.LoadHistory()
	}
}

func formatHistorySample(sample persistence.Sample) string {
	return sample.RecordedAt.Local().Format(time.DateTime) + "  " + compactJSONLine(sample.Body)
}
