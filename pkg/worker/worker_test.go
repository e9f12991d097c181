package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/petrijr/dripline/internal/persistence"
	"github.com/petrijr/dripline/internal/taskqueue"
	"github.com/petrijr/dripline/pkg/api"
)

type advanceCall struct {
	userID   int64
	from, to api.Stage
}

// fakeEngine records Advance calls and replies with a configurable error.
type fakeEngine struct {
	api.Engine

	mu       sync.Mutex
	calls    []advanceCall
	advanced chan advanceCall
	err      error
}

func newFakeEngine(err error) *fakeEngine {
	return &fakeEngine{
		advanced: make(chan advanceCall, 16),
		err:      err,
	}
}

func (e *fakeEngine) Advance(ctx context.Context, userID int64, from, to api.Stage) error {
	e.mu.Lock()
	call := advanceCall{userID: userID, from: from, to: to}
	e.calls = append(e.calls, call)
	e.mu.Unlock()
	e.advanced <- call
	return e.err
}

func TestWorkerProcessesDueContinuation(t *testing.T) {
	eng := newFakeEngine(nil)
	q := taskqueue.NewInMemoryQueue()
	w := New(eng, q, nil)
	ctx := context.Background()

	delay := 50 * time.Millisecond
	start := time.Now()
	require.NoError(t, w.ScheduleAfter(ctx, delay, 42, api.StageGotMaterial, api.StageFollowupSent))

	processed, err := w.ProcessOne(ctx)
	require.NoError(t, err)
	require.True(t, processed)
	require.GreaterOrEqual(t, time.Since(start), delay, "the continuation fired before it was due")

	require.Equal(t, []advanceCall{{userID: 42, from: api.StageGotMaterial, to: api.StageFollowupSent}}, eng.calls)
	require.Zero(t, q.Len())
}

func TestWorkerDropsStaleContinuation(t *testing.T) {
	eng := newFakeEngine(persistence.ErrStaleStage)
	q := taskqueue.NewInMemoryQueue()
	w := New(eng, q, nil)
	ctx := context.Background()

	require.NoError(t, w.ScheduleAfter(ctx, 0, 42, api.StageGotMaterial, api.StageFollowupSent))

	// A stale continuation is handled, not an error, and never re-queued.
	processed, err := w.ProcessOne(ctx)
	require.NoError(t, err)
	require.True(t, processed)
	require.Zero(t, q.Len())
}

func TestWorkerSurfacesStoreErrors(t *testing.T) {
	wantErr := errors.New("disk full")
	eng := newFakeEngine(wantErr)
	q := taskqueue.NewInMemoryQueue()
	w := New(eng, q, nil)
	ctx := context.Background()

	require.NoError(t, w.ScheduleAfter(ctx, 0, 42, api.StageGotMaterial, api.StageFollowupSent))

	processed, err := w.ProcessOne(ctx)
	require.True(t, processed)
	require.ErrorIs(t, err, wantErr)
	require.Zero(t, q.Len(), "failed continuations are not retried")
}

func TestWorkerRunStopsOnCancel(t *testing.T) {
	eng := newFakeEngine(nil)
	q := taskqueue.NewInMemoryQueue()
	w := New(eng, q, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()

	require.NoError(t, w.ScheduleAfter(ctx, 0, 7, api.StageCaseStory, api.StageSelfDisclosure))

	select {
	case call := <-eng.advanced:
		require.Equal(t, int64(7), call.userID)
	case <-time.After(2 * time.Second):
		t.Fatal("worker never processed the continuation")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop after cancel")
	}
}

func TestWorkerIDsAreUnique(t *testing.T) {
	q := taskqueue.NewInMemoryQueue()
	a := New(newFakeEngine(nil), q, nil)
	b := New(newFakeEngine(nil), q, nil)

	require.NotEmpty(t, a.ID())
	require.NotEqual(t, a.ID(), b.ID())
}
