package app

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/skobkin/airqctl/internal/bus"
	"github.com/skobkin/airqctl/internal/connectors"
	"github.com/skobkin/airqctl/internal/persistence"
)

func TestHistoryProjectionRecordsRendersAndUploadOutcomes(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := persistence.Open(ctx, filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	repo := persistence.NewSampleRepo(db)

	queue := persistence.NewWriterQueue(quietLogger(), 16)
	queue.Start(ctx)

	messageBus := bus.New(quietLogger())
	t.Cleanup(messageBus.Close)
	StartHistoryProjection(ctx, messageBus, queue, repo, quietLogger())

	at := time.Date(2026, 4, 2, 8, 0, 0, 0, time.UTC)
	messageBus.Publish(connectors.TopicSensorValues, TelemetryUpdate{Region: RegionSensors, Text: `{"co2": 500}`, At: at})
	messageBus.Publish(connectors.TopicDeviceStatus, TelemetryUpdate{Region: RegionStatus, Text: `{"uptime": 3}`, At: at})
	messageBus.Publish(connectors.TopicFirmwareUpload, UploadState{Phase: UploadPhaseUploading, FileName: "fw.bin"})
	messageBus.Publish(connectors.TopicFirmwareUpload, UploadState{Phase: UploadPhaseSucceeded, FileName: "fw.bin", StatusCode: 200})
	messageBus.Publish(connectors.TopicDeviceAction, DeviceActionOutcome{Action: ActionCalibrate, Body: `{"result":"ok"}`, At: at})

	waitFor(t, func() bool {
		flushCtx, flushCancel := context.WithTimeout(ctx, time.Second)
		defer flushCancel()
		_ = queue.Flush(flushCtx)

		sensors, _ := repo.ListRecent(ctx, string(RegionSensors), 10)
		events, _ := repo.ListEvents(ctx, 10)

		return len(sensors) == 1 && len(events) == 2
	})

	sensors, _ := repo.ListRecent(ctx, string(RegionSensors), 10)
	if sensors[0].Body != `{"co2": 500}` || !sensors[0].RecordedAt.Equal(at) {
		t.Fatalf("unexpected sample %+v", sensors[0])
	}
	status, _ := repo.ListRecent(ctx, string(RegionStatus), 10)
	if len(status) != 1 {
		t.Fatalf("expected one status sample, got %d", len(status))
	}
	events, _ := repo.ListEvents(ctx, 10)
	byKind := map[string]persistence.DeviceEvent{}
	for _, event := range events {
		byKind[event.Kind] = event
	}
	if got := byKind[EventKindFirmwareUpload].Detail; got != "fw.bin succeeded status=200" {
		t.Fatalf("unexpected upload event %q", got)
	}
	calibrate := byKind[string(ActionCalibrate)]
	if calibrate.Detail != `ok: {"result":"ok"}` || !calibrate.RecordedAt.Equal(at) {
		t.Fatalf("unexpected calibrate event %+v", calibrate)
	}
}

type fakePruner struct {
	cutoff time.Time
}

func (p *fakePruner) DeleteOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	p.cutoff = cutoff

	return 3, nil
}

func TestPruneHistoryUsesRetention(t *testing.T) {
	pruner := &fakePruner{}
	PruneHistory(context.Background(), pruner, 48*time.Hour, quietLogger())

	age := time.Since(pruner.cutoff)
	if age < 47*time.Hour || age > 49*time.Hour {
		t.Fatalf("unexpected cutoff age %v", age)
	}

	skipped := &fakePruner{}
	PruneHistory(context.Background(), skipped, 0, quietLogger())
	if !skipped.cutoff.IsZero() {
		t.Fatalf("zero retention must not prune")
	}
}
