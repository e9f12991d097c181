package worker

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/petrijr/dripline/internal/persistence"
	"github.com/petrijr/dripline/internal/taskqueue"
	"github.com/petrijr/dripline/pkg/api"
)

// Worker pulls due continuations from a Queue and applies them through an
// Engine. Multiple workers can drain the same queue; the engine's per-user
// serialization and the store's compare-and-swap keep racing continuations
// for one user consistent.
type Worker struct {
	id     string
	engine api.Engine
	queue  taskqueue.Queue
	logger *slog.Logger
}

// New creates a new Worker.
func New(engine api.Engine, queue taskqueue.Queue, logger *slog.Logger) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{
		id:     uuid.NewString(),
		engine: engine,
		queue:  queue,
		logger: logger,
	}
}

// ID returns the worker's identity, used only for log correlation.
func (w *Worker) ID() string {
	return w.id
}

// ScheduleAfter records a continuation that advances the user from 'from' to
// 'to' once the delay has elapsed. It returns as soon as the continuation is
// persisted; a worker fires it later.
func (w *Worker) ScheduleAfter(ctx context.Context, delay time.Duration, userID int64, from, to api.Stage) error {
	return w.queue.Enqueue(ctx, taskqueue.Continuation{
		UserID:    userID,
		From:      from,
		To:        to,
		NotBefore: time.Now().Add(delay),
	})
}

// ProcessOne pulls a single due continuation and applies it.
// Returns (processed, error):
//   - processed == false, err != nil: the context was cancelled (or the
//     dequeue failed) before a continuation was obtained.
//   - processed == true: a continuation was handled; err reports a store
//     failure. A stale continuation counts as handled with err == nil: it
//     is dropped by design, never retried.
func (w *Worker) ProcessOne(ctx context.Context) (bool, error) {
	c, err := w.queue.Dequeue(ctx)
	if err != nil {
		return false, err
	}
	if c == nil {
		return false, nil
	}

	err = w.engine.Advance(ctx, c.UserID, c.From, c.To)
	if err == nil {
		return true, nil
	}

	if errors.Is(err, persistence.ErrStaleStage) {
		// The user's stage moved past this continuation's expectation
		// while it waited. Dropping it is the correct outcome.
		w.logger.DebugContext(ctx, "continuation_stale",
			slog.String("worker", w.id),
			slog.Int64("user_id", c.UserID),
			slog.String("from", string(c.From)),
			slog.String("to", string(c.To)),
		)
		return true, nil
	}

	// No automatic retry: the funnel stalls for this user at this point
	// and the failure is surfaced to the caller's loop for logging.
	return true, err
}

// Run processes continuations until the context is cancelled. Errors from
// individual continuations are logged; a single bad continuation never stops
// the loop.
func (w *Worker) Run(ctx context.Context) {
	for {
		processed, err := w.ProcessOne(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return
			}
			w.logger.ErrorContext(ctx, "continuation_failed",
				slog.String("worker", w.id),
				slog.Any("error", err),
			)
			continue
		}
		if !processed {
			continue
		}
	}
}
