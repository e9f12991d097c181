package taskqueue

import (
	"context"
	"time"

	"github.com/petrijr/dripline/pkg/api"
)

// Continuation is a suspended funnel transition scheduled to fire after a
// delay: "advance this user from From to To once NotBefore has passed".
//
// From is recorded so the worker can detect staleness: if the user's stage
// moved past From while the continuation was waiting, it must be dropped,
// not applied.
type Continuation struct {
	ID     int64
	UserID int64
	From   api.Stage
	To     api.Stage

	EnqueuedAt time.Time

	// NotBefore is the earliest time this continuation should fire.
	// Zero value means "immediately" (i.e., at enqueue time).
	NotBefore time.Time

	Attempts int
}

// Queue is the delayed-continuation queue. Durable implementations survive a
// process restart: continuations for users mid-funnel are resumed, not lost.
type Queue interface {
	// Enqueue records a continuation. It should respect ctx for cancellation.
	Enqueue(ctx context.Context, c Continuation) error

	// Dequeue removes and returns the next due continuation, blocking until
	// one becomes due or the context is cancelled.
	Dequeue(ctx context.Context) (*Continuation, error)

	// Len returns the approximate number of pending continuations.
	Len() int
}
