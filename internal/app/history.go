package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/skobkin/airqctl/internal/bus"
	"github.com/skobkin/airqctl/internal/connectors"
	"github.com/skobkin/airqctl/internal/persistence"
)

// HistoryQueue serializes history writes.
type HistoryQueue interface {
	Enqueue(name string, fn func(context.Context) error) bool
}

type HistoryStore interface {
	Insert(ctx context.Context, s persistence.Sample) error
	InsertEvent(ctx context.Context, e persistence.DeviceEvent) error
}

// StartHistoryProjection records telemetry renders plus the device event journal.
// It returns once the subscription is in place.
func StartHistoryProjection(ctx context.Context, b bus.MessageBus, queue HistoryQueue, store HistoryStore, logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default().With("component", "history")
	}
	topics := []string{
		connectors.TopicSensorValues,
		connectors.TopicDeviceStatus,
		connectors.TopicFirmwareUpload,
		connectors.TopicDeviceAction,
	}
	sub := b.Subscribe(topics...)
	logger.Debug("history projection subscribed", "topics", topics)

	go func() {
		defer b.Unsubscribe(sub)
		for {
			select {
			case <-ctx.Done():
				return
			case raw, ok := <-sub:
				if !ok {
					return
				}
				recordHistory(raw, queue, store, logger)
			}
		}
	}()
}

func recordHistory(raw any, queue HistoryQueue, store HistoryStore, logger *slog.Logger) {
	switch msg := raw.(type) {
	case TelemetryUpdate:
		sample := persistence.Sample{Region: string(msg.Region), Body: msg.Text, RecordedAt: msg.At}
		queue.Enqueue("insert_sample", func(writeCtx context.Context) error {
			return store.Insert(writeCtx, sample)
		})
	case UploadState, DeviceActionOutcome:
		event, ok := DeviceEventFor(msg, time.Now())
		if !ok {
			return
		}
		queue.Enqueue("insert_device_event", func(writeCtx context.Context) error {
			return store.InsertEvent(writeCtx, event)
		})
	default:
		logger.Debug("ignoring unexpected history payload", "payload_type", fmt.Sprintf("%T", raw))
	}
}

type HistoryPruner interface {
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// PruneHistory removes rows older than retention. A zero retention keeps everything.
func PruneHistory(ctx context.Context, pruner HistoryPruner, retention time.Duration, logger *slog.Logger) {
	if retention <= 0 || pruner == nil {
		return
	}
	if logger == nil {
		logger = slog.Default()
	}
	deleted, err := pruner.DeleteOlderThan(ctx, time.Now().Add(-retention))
	if err != nil {
		logger.Warn("prune history", "error", err)

		return
	}
	logger.Info("history pruned", "deleted_rows", deleted, "retention", retention.String())
}
