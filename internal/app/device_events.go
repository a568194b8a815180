package app

import (
	"fmt"
	"strings"
	"time"

	"github.com/skobkin/airqctl/internal/persistence"
)

const (
	EventKindFirmwareUpload = "firmware_upload"
	eventDetailLimit        = 200
)

// DeviceEventFor maps a bus payload to the journal entry it produces. Only
// finished uploads and answered or failed device commands are journaled.
func DeviceEventFor(raw any, now time.Time) (persistence.DeviceEvent, bool) {
	switch msg := raw.(type) {
	case UploadState:
		if !msg.Terminal() {
			return persistence.DeviceEvent{}, false
		}

		return persistence.DeviceEvent{
			Kind:       EventKindFirmwareUpload,
			Detail:     fmt.Sprintf("%s %s status=%d", msg.FileName, msg.Phase, msg.StatusCode),
			RecordedAt: now,
		}, true
	case DeviceActionOutcome:
		at := msg.At
		if at.IsZero() {
			at = now
		}
		detail := "ok"
		if body := strings.Join(strings.Fields(msg.Body), " "); body != "" {
			detail += ": " + body
		}
		if msg.Err != nil {
			detail = "failed: " + msg.Err.Error()
		}

		return persistence.DeviceEvent{
			Kind:       string(msg.Action),
			Detail:     truncateRunes(detail, eventDetailLimit),
			RecordedAt: at,
		}, true
	default:
		return persistence.DeviceEvent{}, false
	}
}

func truncateRunes(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}

	return string(runes[:limit-3]) + "..."
}
