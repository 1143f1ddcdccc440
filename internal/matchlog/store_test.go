package matchlog

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "matchlog.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestRecordAndRecent(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		err := store.Record(ctx, Detection{
			EntryID:    "scam.png",
			Distance:   i,
			Poster:     "user#1234",
			Channel:    "general",
			Guild:      "testguild",
			MessageID:  "msg",
			DetectedAt: base.Add(time.Duration(i) * time.Minute),
		})
		if err != nil {
			t.Fatalf("record: %v", err)
		}
	}

	recent, err := store.Recent(ctx, 2)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(recent) != 2 {
		t.Fatalf("got %d detections, want 2", len(recent))
	}
	// Newest first.
	if recent[0].Distance != 2 || recent[1].Distance != 1 {
		t.Fatalf("order: %+v", recent)
	}
	if !recent[0].DetectedAt.Equal(base.Add(2 * time.Minute)) {
		t.Fatalf("timestamp round-trip: %v", recent[0].DetectedAt)
	}
}

func TestRecordFillsTimestamp(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	if err := store.Record(ctx, Detection{EntryID: "x.png", Distance: 4}); err != nil {
		t.Fatalf("record: %v", err)
	}
	recent, err := store.Recent(ctx, 0)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(recent) != 1 || recent[0].DetectedAt.IsZero() {
		t.Fatalf("timestamp not filled: %+v", recent)
	}
}

func TestCountByEntry(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	for _, id := range []string{"a.png", "a.png", "b.png"} {
		if err := store.Record(ctx, Detection{EntryID: id, Distance: 1}); err != nil {
			t.Fatalf("record: %v", err)
		}
	}
	count, err := store.CountByEntry(ctx, "a.png")
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 2 {
		t.Fatalf("count: got %d want 2", count)
	}
}

func TestReopenKeepsHistory(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "matchlog.db")
	ctx := context.Background()

	store, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := store.Record(ctx, Detection{EntryID: "kept.png", Distance: 3}); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	recent, err := reopened.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(recent) != 1 || recent[0].EntryID != "kept.png" {
		t.Fatalf("history lost: %+v", recent)
	}
}
