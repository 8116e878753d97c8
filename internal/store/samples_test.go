package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"bdsgp/internal/history"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "data", "bdsgp.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestSaveAndLoadSamples(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	err := db.SaveSamples(ctx, "srv", []history.Sample{
		{Timestamp: base.Add(10 * time.Minute), Value: 5},
		{Timestamp: base, Value: 2},
	})
	if err != nil {
		t.Fatalf("SaveSamples: %v", err)
	}
	// Overwrite one timestamp.
	if err := db.SaveSamples(ctx, "srv", []history.Sample{{Timestamp: base, Value: 3}}); err != nil {
		t.Fatalf("SaveSamples overwrite: %v", err)
	}

	got, err := db.LoadSamples(ctx, "srv", time.Time{})
	if err != nil {
		t.Fatalf("LoadSamples: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 samples, got %d", len(got))
	}
	if !got[0].Timestamp.Equal(base) || got[0].Value != 3 {
		t.Fatalf("unexpected first sample %+v", got[0])
	}

	recent, err := db.LoadSamples(ctx, "srv", base.Add(time.Minute))
	if err != nil || len(recent) != 1 {
		t.Fatalf("since filter: %v %v", recent, err)
	}

	other, err := db.LoadSamples(ctx, "other", time.Time{})
	if err != nil || other == nil || len(other) != 0 {
		t.Fatalf("unknown server should be empty, got %v %v", other, err)
	}
}

func TestPrune(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	now := time.Now().UTC()
	db.SaveSamples(ctx, "a", []history.Sample{
		{Timestamp: now.Add(-96 * time.Hour), Value: 1},
		{Timestamp: now.Add(-time.Hour), Value: 2},
	})
	removed, err := db.Prune(ctx, now.Add(-72*time.Hour))
	if err != nil {
		t.Fatalf("Prune: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected 1 removed, got %d", removed)
	}
	if n, _ := db.CountSamples(ctx, "a"); n != 1 {
		t.Fatalf("expected 1 remaining, got %d", n)
	}
}

func TestOpenMemory(t *testing.T) {
	db, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open memory: %v", err)
	}
	defer db.Close()
	if err := db.Ping(context.Background()); err != nil {
		t.Fatalf("Ping: %v", err)
	}
}
