package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Sample is one rendered telemetry answer.
type Sample struct {
	ID         int64
	Region     string
	Body       string
	RecordedAt time.Time
}

// DeviceEvent records a user-triggered device command or upload outcome.
type DeviceEvent struct {
	ID         int64
	Kind       string
	Detail     string
	RecordedAt time.Time
}

type SampleRepo struct {
	db *sql.DB
}

func NewSampleRepo(db *sql.DB) *SampleRepo {
	return &SampleRepo{db: db}
}

func (r *SampleRepo) Insert(ctx context.Context, s Sample) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO samples(region, body, recorded_at)
		VALUES (?, ?, ?)
	`, s.Region, s.Body, toUnixMillis(s.RecordedAt))
	if err != nil {
		return fmt.Errorf("insert sample: %w", err)
	}

	return nil
}

// ListRecent returns up to limit samples of a region, newest first.
func (r *SampleRepo) ListRecent(ctx context.Context, region string, limit int) ([]Sample, error) {
	if limit <= 0 {
		return nil, nil
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, region, body, recorded_at
		FROM samples
		WHERE region = ?
		ORDER BY recorded_at DESC, id DESC
		LIMIT ?
	`, region, limit)
	if err != nil {
		return nil, fmt.Errorf("list samples: %w", err)
	}
	defer rows.Close()

	var out []Sample
	for rows.Next() {
		var (
			s          Sample
			recordedMs int64
		)
		if err := rows.Scan(&s.ID, &s.Region, &s.Body, &recordedMs); err != nil {
			return nil, fmt.Errorf("scan sample: %w", err)
		}
		s.RecordedAt = fromUnixMillis(recordedMs)
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate samples: %w", err)
	}

	return out, nil
}

func (r *SampleRepo) InsertEvent(ctx context.Context, e DeviceEvent) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO device_events(kind, detail, recorded_at)
		VALUES (?, ?, ?)
	`, e.Kind, e.Detail, toUnixMillis(e.RecordedAt))
	if err != nil {
		return fmt.Errorf("insert device event: %w", err)
	}

	return nil
}

func (r *SampleRepo) ListEvents(ctx context.Context, limit int) ([]DeviceEvent, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, kind, detail, recorded_at
		FROM device_events
		ORDER BY recorded_at DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list device events: %w", err)
	}
	defer rows.Close()

	var out []DeviceEvent
	for rows.Next() {
		var (
			e          DeviceEvent
			recordedMs int64
		)
		if err := rows.Scan(&e.ID, &e.Kind, &e.Detail, &recordedMs); err != nil {
			return nil, fmt.Errorf("scan device event: %w", err)
		}
		e.RecordedAt = fromUnixMillis(recordedMs)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate device events: %w", err)
	}

	return out, nil
}

func (r *SampleRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	return DeleteOlderThan(ctx, r.db, cutoff)
}
