package persistence

import (
	"context"
	"database/sql"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"github.com/petrijr/dripline/pkg/api"
)

func newTestEventStore(t *testing.T) *SQLiteEventStore {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("sql.Open failed: %v", err)
	}

	t.Cleanup(func() {
		_ = db.Close()
	})

	store, err := NewSQLiteEventStore(db)
	if err != nil {
		t.Fatalf("NewSQLiteEventStore failed: %v", err)
	}
	return store
}

func TestSQLiteEventStore_AppendAndListInOrder(t *testing.T) {
	store := newTestEventStore(t)
	ctx := context.Background()

	actions := []string{"start", "get_material", "bot_stage_got_material"}
	for _, action := range actions {
		err := store.AppendEvent(ctx, api.EventLogEntry{
			UserID:    42,
			Timestamp: time.Now(),
			Action:    action,
			Details:   "d-" + action,
		})
		if err != nil {
			t.Fatalf("AppendEvent(%q) failed: %v", action, err)
		}
	}

	events, err := store.ListEvents(ctx, 42)
	if err != nil {
		t.Fatalf("ListEvents failed: %v", err)
	}
	if len(events) != len(actions) {
		t.Fatalf("expected %d events, got %d", len(actions), len(events))
	}
	for i, ev := range events {
		if ev.Action != actions[i] {
			t.Fatalf("event %d: expected action %q, got %q", i, actions[i], ev.Action)
		}
		if ev.Details != "d-"+actions[i] {
			t.Fatalf("event %d: unexpected details %q", i, ev.Details)
		}
		if ev.UserID != 42 {
			t.Fatalf("event %d: unexpected user id %d", i, ev.UserID)
		}
	}
}

func TestSQLiteEventStore_ListFiltersByUser(t *testing.T) {
	store := newTestEventStore(t)
	ctx := context.Background()

	for _, userID := range []int64{1, 2, 1} {
		err := store.AppendEvent(ctx, api.EventLogEntry{
			UserID:    userID,
			Timestamp: time.Now(),
			Action:    "start",
		})
		if err != nil {
			t.Fatalf("AppendEvent failed: %v", err)
		}
	}

	events, err := store.ListEvents(ctx, 1)
	if err != nil {
		t.Fatalf("ListEvents failed: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events for user 1, got %d", len(events))
	}

	events, err = store.ListEvents(ctx, 3)
	if err != nil {
		t.Fatalf("ListEvents for unknown user failed: %v", err)
	}
	if len(events) != 0 {
		t.Fatalf("expected no events for user 3, got %d", len(events))
	}
}

func TestSQLiteEventStore_TimestampRoundTrip(t *testing.T) {
	store := newTestEventStore(t)
	ctx := context.Background()

	at := time.Date(2026, 8, 29, 12, 30, 45, 123456789, time.UTC)
	if err := store.AppendEvent(ctx, api.EventLogEntry{
		UserID:    5,
		Timestamp: at,
		Action:    "start",
	}); err != nil {
		t.Fatalf("AppendEvent failed: %v", err)
	}

	events, err := store.ListEvents(ctx, 5)
	if err != nil {
		t.Fatalf("ListEvents failed: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if !events[0].Timestamp.Equal(at) {
		t.Fatalf("timestamp did not round-trip: want %v, got %v", at, events[0].Timestamp)
	}
}
