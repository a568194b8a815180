package persistence

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := Open(context.Background(), filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	return db
}

func TestOpenIsIdempotentAcrossRestarts(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		db, err := Open(ctx, path)
		if err != nil {
			t.Fatalf("open #%d: %v", i+1, err)
		}
		var version int
		if err := db.QueryRowContext(ctx, `PRAGMA user_version;`).Scan(&version); err != nil {
			t.Fatalf("read version: %v", err)
		}
		if version != len(migrations) {
			t.Fatalf("unexpected schema version %d", version)
		}
		_ = db.Close()
	}
}

func TestSampleRepoListRecentNewestFirst(t *testing.T) {
	db := openTestDB(t)
	repo := NewSampleRepo(db)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for i, body := range []string{`{"co2":400}`, `{"co2":410}`, `{"co2":420}`} {
		if err := repo.Insert(ctx, Sample{Region: "sensors", Body: body, RecordedAt: base.Add(time.Duration(i) * time.Minute)}); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}
	if err := repo.Insert(ctx, Sample{Region: "status", Body: `{"uptime":1}`, RecordedAt: base}); err != nil {
		t.Fatalf("insert status: %v", err)
	}

	got, err := repo.ListRecent(ctx, "sensors", 2)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 2 || got[0].Body != `{"co2":420}` || got[1].Body != `{"co2":410}` {
		t.Fatalf("unexpected samples %+v", got)
	}
	if !got[0].RecordedAt.Equal(base.Add(2 * time.Minute)) {
		t.Fatalf("unexpected timestamp %v", got[0].RecordedAt)
	}
}

func TestDeleteOlderThan(t *testing.T) {
	db := openTestDB(t)
	repo := NewSampleRepo(db)
	ctx := context.Background()
	now := time.Now()

	_ = repo.Insert(ctx, Sample{Region: "sensors", Body: "{}", RecordedAt: now.Add(-48 * time.Hour)})
	_ = repo.Insert(ctx, Sample{Region: "sensors", Body: "{}", RecordedAt: now})
	_ = repo.InsertEvent(ctx, DeviceEvent{Kind: "calibrate", Detail: "ok", RecordedAt: now.Add(-72 * time.Hour)})

	deleted, err := DeleteOlderThan(ctx, db, now.Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if deleted != 2 {
		t.Fatalf("expected 2 deleted rows, got %d", deleted)
	}
	left, _ := repo.ListRecent(ctx, "sensors", 10)
	if len(left) != 1 {
		t.Fatalf("expected one sample left, got %d", len(left))
	}
}

func TestClearDatabase_ClearsAllTables(t *testing.T) {
	db := openTestDB(t)
	repo := NewSampleRepo(db)
	ctx := context.Background()

	_ = repo.Insert(ctx, Sample{Region: "sensors", Body: "{}", RecordedAt: time.Now()})
	_ = repo.InsertEvent(ctx, DeviceEvent{Kind: "upload", Detail: "succeeded", RecordedAt: time.Now()})

	if err := ClearDatabase(ctx, db); err != nil {
		t.Fatalf("clear database: %v", err)
	}
	for _, table := range []string{"samples", "device_events"} {
		var count int
		if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&count); err != nil {
			t.Fatalf("count %s: %v", table, err)
		}
		if count != 0 {
			t.Fatalf("expected %s to be empty, got %d", table, count)
		}
	}
}

func TestWriterQueueRetriesAndFlushes(t *testing.T) {
	w := NewWriterQueue(slog.New(slog.NewTextHandler(io.Discard, nil)), 4)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	w.Start(ctx)

	var attempts atomic.Int64
	w.Enqueue("flaky", func(context.Context) error {
		if attempts.Add(1) < 2 {
			return errors.New("database is locked")
		}

		return nil
	})

	flushCtx, flushCancel := context.WithTimeout(ctx, 3*time.Second)
	defer flushCancel()
	if err := w.Flush(flushCtx); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if got := attempts.Load(); got != 2 {
		t.Fatalf("expected 2 attempts, got %d", got)
	}
}

func TestWriterQueueDropsWhenFull(t *testing.T) {
	w := NewWriterQueue(slog.New(slog.NewTextHandler(io.Discard, nil)), 1)

	if !w.Enqueue("first", func(context.Context) error { return nil }) {
		t.Fatalf("first write must be queued")
	}
	if w.Enqueue("second", func(context.Context) error { return nil }) {
		t.Fatalf("second write must be dropped while the queue is full")
	}
}
