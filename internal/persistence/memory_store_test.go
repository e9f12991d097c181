package persistence

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/petrijr/dripline/pkg/api"
)

func TestInMemoryStore_CompareAndSwapStage(t *testing.T) {
	store := NewInMemoryStore()
	ctx := context.Background()

	if _, err := store.CreateUser(ctx, &api.UserRecord{
		UserID: 1, Stage: api.StageStart, LastAction: time.Now(),
	}); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}

	if err := store.CompareAndSwapStage(ctx, 1, api.StageStart, api.StageGotMaterial, time.Now()); err != nil {
		t.Fatalf("CompareAndSwapStage failed: %v", err)
	}

	err := store.CompareAndSwapStage(ctx, 1, api.StageStart, api.StageGotMaterial, time.Now())
	if !errors.Is(err, ErrStaleStage) {
		t.Fatalf("expected ErrStaleStage, got %v", err)
	}

	err = store.CompareAndSwapStage(ctx, 2, api.StageStart, api.StageGotMaterial, time.Now())
	if !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestInMemoryStore_GetUserReturnsCopy(t *testing.T) {
	store := NewInMemoryStore()
	ctx := context.Background()

	if _, err := store.CreateUser(ctx, &api.UserRecord{
		UserID: 1, Username: "alice", Stage: api.StageStart, LastAction: time.Now(),
	}); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}

	got, err := store.GetUser(ctx, 1)
	if err != nil {
		t.Fatalf("GetUser failed: %v", err)
	}
	got.Stage = api.StageConsultationOffer

	again, err := store.GetUser(ctx, 1)
	if err != nil {
		t.Fatalf("second GetUser failed: %v", err)
	}
	if again.Stage != api.StageStart {
		t.Fatalf("mutating a returned record leaked into the store")
	}
}

func TestInMemoryStore_AnswersLastWriteWins(t *testing.T) {
	store := NewInMemoryStore()
	ctx := context.Background()

	if err := store.RecordAnswer(ctx, api.AnswerRecord{UserID: 1, Question: 2, Answer: true}); err != nil {
		t.Fatalf("RecordAnswer failed: %v", err)
	}
	if err := store.RecordAnswer(ctx, api.AnswerRecord{UserID: 1, Question: 2, Answer: false}); err != nil {
		t.Fatalf("re-RecordAnswer failed: %v", err)
	}

	yes, err := store.TallyYes(ctx, 1)
	if err != nil {
		t.Fatalf("TallyYes failed: %v", err)
	}
	if yes != 0 {
		t.Fatalf("expected tally 0 after overwrite, got %d", yes)
	}

	listed, err := store.ListAnswers(ctx, 1)
	if err != nil {
		t.Fatalf("ListAnswers failed: %v", err)
	}
	if len(listed) != 1 || listed[0].Answer {
		t.Fatalf("unexpected answers: %+v", listed)
	}
}

func TestInMemoryStore_EventsKeepInsertionOrder(t *testing.T) {
	store := NewInMemoryStore()
	ctx := context.Background()

	for _, action := range []string{"start", "get_material", "bot_stage_got_material"} {
		if err := store.AppendEvent(ctx, api.EventLogEntry{UserID: 1, Action: action}); err != nil {
			t.Fatalf("AppendEvent failed: %v", err)
		}
	}

	events, err := store.ListEvents(ctx, 1)
	if err != nil {
		t.Fatalf("ListEvents failed: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("expected 3 events, got %d", len(events))
	}
	if events[0].Action != "start" || events[2].Action != "bot_stage_got_material" {
		t.Fatalf("unexpected order: %+v", events)
	}
	if events[0].ID >= events[1].ID || events[1].ID >= events[2].ID {
		t.Fatalf("expected ascending ids, got %d, %d, %d", events[0].ID, events[1].ID, events[2].ID)
	}
}
