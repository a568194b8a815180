package ui

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/widget"

	airqapp "github.com/skobkin/airqctl/internal/app"
	"github.com/skobkin/airqctl/internal/connectors"
	"github.com/skobkin/airqctl/internal/persistence"
)

const (
	diagnosticsConsoleLimit = 500
	diagnosticsEventLimit   = 200
	consoleFilterAll        = "all"
)

var consoleFilterOptions = []string{consoleFilterAll, "error", "warn", "info", "debug", "verbose"}

// diagnosticsTab shows the serial console, the broker mirror and the device event journal.
type diagnosticsTab struct {
	hooks UIHooks

	consoleLines []connectors.ConsoleLine
	visible      []connectors.ConsoleLine
	filter       string
	paused       bool

	readings map[string]connectors.BrokerReading
	topics   []string

	// events is newest first.
	events []persistence.DeviceEvent

	consoleList  *widget.List
	filterSelect *widget.Select
	pauseCheck   *widget.Check
	brokerList   *widget.List
	consoleHint  *widget.Label
	brokerHint   *widget.Label
	eventList    *widget.List
	eventHint    *widget.Label

	root fyne.CanvasObject
}

func newDiagnosticsTab(dep RuntimeDependencies) *diagnosticsTab {
	t := &diagnosticsTab{
		hooks:    dep.UIHooks.withDefaults(),
		filter:   consoleFilterAll,
		readings: map[string]connectors.BrokerReading{},
	}

	cfg := dep.Data.Config
	t.consoleHint = widget.NewLabel("")
	t.consoleHint.Wrapping = fyne.TextWrapWord
	if strings.TrimSpace(cfg.Console.Port) == "" {
		t.consoleHint.SetText("Serial console is off. Pick a port in App settings.")
	}
	t.brokerHint = widget.NewLabel("")
	t.brokerHint.Wrapping = fyne.TextWrapWord
	if !cfg.Broker.Enabled {
		t.brokerHint.SetText("Broker mirror is off. Enable it in App settings.")
	}

	t.consoleList = widget.NewList(
		func() int {
			return len(t.visible)
		},
		func() fyne.CanvasObject {
			label := widget.NewLabel(" ")
			label.TextStyle = fyne.TextStyle{Monospace: true}
			label.Truncation = fyne.TextTruncateEllipsis

			return label
		},
		func(id widget.ListItemID, object fyne.CanvasObject) {
			label, ok := object.(*widget.Label)
			if !ok {
				return
			}
			if id < 0 || id >= len(t.visible) {
				label.SetText("")

				return
			}
			label.SetText(formatConsoleLine(t.visible[id]))
		},
	)

	t.filterSelect = widget.NewSelect(consoleFilterOptions, func(value string) {
		t.filter = value
		t.refreshConsole()
	})
	t.filterSelect.SetSelected(consoleFilterAll)
	t.pauseCheck = widget.NewCheck("Pause", func(paused bool) {
		t.paused = paused
		if !paused {
			t.refreshConsole()
		}
	})
	clearButton := widget.NewButton("Clear", t.ClearConsole)

	t.brokerList = widget.NewList(
		func() int {
			return len(t.topics)
		},
		func() fyne.CanvasObject {
			title := widget.NewLabel(" ")
			title.TextStyle = fyne.TextStyle{Bold: true}
			title.Truncation = fyne.TextTruncateEllipsis
			payload := widget.NewLabel(" ")
			payload.TextStyle = fyne.TextStyle{Monospace: true}
			payload.Truncation = fyne.TextTruncateEllipsis

			return container.NewVBox(title, payload)
		},
		func(id widget.ListItemID, object fyne.CanvasObject) {
			row, ok := object.(*fyne.Container)
			if !ok || len(row.Objects) < 2 {
				return
			}
			title, titleOK := row.Objects[0].(*widget.Label)
			payload, payloadOK := row.Objects[1].(*widget.Label)
			if !titleOK || !payloadOK {
				return
			}
			if id < 0 || id >= len(t.topics) {
				title.SetText("")
				payload.SetText("")

				return
			}
			reading := t.readings[t.topics[id]]
			title.SetText(formatBrokerReadingTitle(reading))
			payload.SetText(compactJSONLine(reading.Payload))
		},
	)

	t.eventHint = widget.NewLabel("")
	t.eventHint.Wrapping = fyne.TextWrapWord
	if dep.Data.RecentEvents == nil {
		t.eventHint.SetText("History is off. Only events from this session are shown.")
	}
	t.eventList = widget.NewList(
		func() int {
			return len(t.events)
		},
		func() fyne.CanvasObject {
			label := widget.NewLabel(" ")
			label.Truncation = fyne.TextTruncateEllipsis

			return label
		},
		func(id widget.ListItemID, object fyne.CanvasObject) {
			label, ok := object.(*widget.Label)
			if !ok {
				return
			}
			if id < 0 || id >= len(t.events) {
				label.SetText("")

				return
			}
			label.SetText(formatDeviceEvent(t.events[id]))
		},
	)

	consoleToolbar := container.NewHBox(widget.NewLabel("Level"), t.filterSelect, t.pauseCheck, clearButton)
	consolePane := container.NewBorder(
		container.NewVBox(consoleToolbar, t.consoleHint),
		nil, nil, nil,
		t.consoleList,
	)
	brokerPane := container.NewBorder(t.brokerHint, nil, nil, nil, t.brokerList)

	tabs := container.NewAppTabs(
		container.NewTabItem("Serial console", consolePane),
		container.NewTabItem("Broker", brokerPane),
		container.NewTabItem("Events", container.NewBorder(t.eventHint, nil, nil, nil, t.eventList)),
	)
	t.root = tabs

	if dep.Data.ConsoleLines != nil {
		for _, line := range dep.Data.ConsoleLines() {
			t.appendConsoleLine(line)
		}
		t.refreshConsole()
	}
	if dep.Data.BrokerReadings != nil {
		for _, reading := range dep.Data.BrokerReadings() {
			t.storeReading(reading)
		}
		t.brokerList.Refresh()
	}
	if dep.Data.RecentEvents != nil {
		t.loadEvents(dep.Data.RecentEvents)
	}

	return t
}

func (t *diagnosticsTab) loadEvents(load func(ctx context.Context, limit int) ([]persistence.DeviceEvent, error)) {
	t.hooks.RunAsync(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		events, err := load(ctx, diagnosticsEventLimit)
		t.hooks.RunOnUI(func() {
			if err != nil {
				t.eventHint.SetText("Failed to load events: " + err.Error())

				return
			}
			// Live events may have arrived while the query ran.
			t.events = append(t.events, events...)
			if len(t.events) > diagnosticsEventLimit {
				t.events = t.events[:diagnosticsEventLimit]
			}
			t.eventList.Refresh()
		})
	})
}

// AppendDeviceEvent puts a journal entry on top of the list. Call on the UI thread.
func (t *diagnosticsTab) AppendDeviceEvent(event persistence.DeviceEvent) {
	t.events = append([]persistence.DeviceEvent{event}, t.events...)
	if len(t.events) > diagnosticsEventLimit {
		t.events = t.events[:diagnosticsEventLimit]
	}
	t.eventList.Refresh()
}

func formatDeviceEvent(event persistence.DeviceEvent) string {
	return fmt.Sprintf("%s  %-22s %s", event.RecordedAt.Local().Format(time.DateTime), deviceEventTitle(event.Kind), event.Detail)
}

func deviceEventTitle(kind string) string {
	switch kind {
	case airqapp.EventKindFirmwareUpload:
		return "Firmware upload"
	case string(airqapp.ActionCalibrate):
		return "CO2 calibration"
	case string(airqapp.ActionFactoryReset):
		return "Factory reset"
	case string(airqapp.ActionFirmwareUpdateReset):
		return "Firmware update reset"
	default:
		return kind
	}
}

// AppendConsoleLine adds one console line. Call on the UI thread.
func (t *diagnosticsTab) AppendConsoleLine(line connectors.ConsoleLine) {
	t.appendConsoleLine(line)
	if !t.paused {
		t.refreshConsole()
	}
}

func (t *diagnosticsTab) appendConsoleLine(line connectors.ConsoleLine) {
	t.consoleLines = append(t.consoleLines, line)
	if overflow := len(t.consoleLines) - diagnosticsConsoleLimit; overflow > 0 {
		t.consoleLines = append([]connectors.ConsoleLine(nil), t.consoleLines[overflow:]...)
	}
}

func (t *diagnosticsTab) ClearConsole() {
	t.consoleLines = nil
	t.refreshConsole()
}

func (t *diagnosticsTab) refreshConsole() {
	visible := make([]connectors.ConsoleLine, 0, len(t.consoleLines))
	for _, line := range t.consoleLines {
		if t.filter == consoleFilterAll || t.filter == "" || line.Level == t.filter {
			visible = append(visible, line)
		}
	}
	t.visible = visible
	t.consoleHint.SetText(consoleHintText(t.consoleHint.Text, len(t.consoleLines)))
	t.consoleList.Refresh()
	if len(visible) > 0 {
		t.consoleList.ScrollToBottom()
	}
}

func consoleHintText(current string, lineCount int) string {
	if lineCount > 0 && strings.HasPrefix(current, "Serial console is off") {
		return ""
	}

	return current
}

// ApplyBrokerReading stores the newest publication for its topic. Call on the UI thread.
func (t *diagnosticsTab) ApplyBrokerReading(reading connectors.BrokerReading) {
	t.storeReading(reading)
	t.brokerHint.SetText("")
	t.brokerList.Refresh()
}

func (t *diagnosticsTab) storeReading(reading connectors.BrokerReading) {
	if _, ok := t.readings[reading.Topic]; !ok {
		t.topics = append(t.topics, reading.Topic)
		sort.Strings(t.topics)
	}
	t.readings[reading.Topic] = reading
}

func formatConsoleLine(line connectors.ConsoleLine) string {
	if line.Tag == "" {
		return line.ReceivedAt.Local().Format("15:04:05") + "  " + line.Message
	}

	return fmt.Sprintf(
		"%s  %-7s %8s  %s: %s",
		line.ReceivedAt.Local().Format("15:04:05"),
		line.Level,
		formatUptime(line.Uptime),
		line.Tag,
		line.Message,
	)
}

func formatUptime(uptime time.Duration) string {
	return fmt.Sprintf("%.3fs", uptime.Seconds())
}

func formatBrokerReadingTitle(reading connectors.BrokerReading) string {
	kind := "state"
	if reading.Levels {
		kind = "levels"
	}

	return fmt.Sprintf("%s %s (%s)", reading.ClientID, kind, reading.ReceivedAt.Local().Format("15:04:05"))
}
