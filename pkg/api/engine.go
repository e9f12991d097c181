package api

import (
	"context"
	"time"
)

// Engine is the single authority over per-user funnel state: what stage a
// user is in, what happens on the next trigger, and after how long.
type Engine interface {
	// HandleStart handles the initial command from a user. It creates the
	// user record at StageStart if absent, dispatches the welcome content,
	// and then waits for an explicit user action (no timer).
	HandleStart(ctx context.Context, userID int64, username, source string) error

	// HandleAction maps an inbound action onto a stage transition. Illegal
	// or stale actions are acknowledged idempotently: heavy content is
	// never re-sent for a button pressed after its stage already advanced.
	HandleAction(ctx context.Context, userID int64, action Action) error

	// Advance moves a user from one stage to the next: it persists the new
	// stage (rejecting the write if the stored stage no longer equals
	// from), dispatches the stage content, and schedules the following
	// edge. It is invoked both inline and by workers firing delayed
	// continuations; ErrStaleStage from the store means a concurrent
	// transition won and the caller must drop the continuation.
	Advance(ctx context.Context, userID int64, from, to Stage) error

	// GetUser returns the current record for one user.
	GetUser(ctx context.Context, userID int64) (*UserRecord, error)

	// ListUsers returns all user records ordered by last action, most
	// recent first. Read path for the admin viewer.
	ListUsers(ctx context.Context) ([]*UserRecord, error)

	// ListEvents returns one user's event log in insertion order. Read
	// path for the admin viewer.
	ListEvents(ctx context.Context, userID int64) ([]EventLogEntry, error)

	// Definition returns the funnel this engine drives.
	Definition() FunnelDefinition
}

// Scheduler schedules a continuation that re-enters the engine after a
// fixed wait. Implementations persist the continuation so that a process
// restart resumes pending waits.
type Scheduler interface {
	// After schedules Advance(userID, from, to) to run once the delay has
	// elapsed. It returns as soon as the continuation is recorded.
	After(ctx context.Context, delay time.Duration, userID int64, from, to Stage) error
}
