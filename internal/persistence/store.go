package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/petrijr/dripline/pkg/api"
)

var (
	// ErrUserNotFound is returned when a user record does not exist.
	ErrUserNotFound = errors.New("user not found")

	// ErrStaleStage is returned by CompareAndSwapStage when the stored
	// stage no longer matches the expected one. It means a concurrent
	// transition already moved the user; the losing write must be dropped.
	ErrStaleStage = errors.New("stale stage")
)

// UserStore handles storage of per-user funnel state.
//
// All mutations are keyed on the current stage where it matters: the store is
// the final arbiter between racing continuations for the same user.
type UserStore interface {
	// CreateUser inserts the record if no record exists for its user id.
	// It reports whether a new record was created; an existing record is
	// left untouched.
	CreateUser(ctx context.Context, u *api.UserRecord) (created bool, err error)

	// GetUser returns the record for one user.
	GetUser(ctx context.Context, userID int64) (*api.UserRecord, error)

	// ListUsers returns all records ordered by last action, most recent
	// first.
	ListUsers(ctx context.Context) ([]*api.UserRecord, error)

	// CompareAndSwapStage sets the user's stage to 'to' and stamps
	// last_action, but only if the stored stage still equals 'from'.
	// Returns ErrStaleStage otherwise.
	CompareAndSwapStage(ctx context.Context, userID int64, from, to api.Stage, at time.Time) error

	// SetSubscription overwrites the subscription flag. Idempotent.
	SetSubscription(ctx context.Context, userID int64, sub api.Subscription, at time.Time) error
}

// EventStore is an append-only audit log of per-user events. Entries are
// never mutated or deleted; per-user insertion order is authoritative.
type EventStore interface {
	AppendEvent(ctx context.Context, ev api.EventLogEntry) error
	ListEvents(ctx context.Context, userID int64) ([]api.EventLogEntry, error)
}

// AnswerStore accumulates quiz answers. One row is kept per
// (user, question); re-recording a question overwrites the earlier answer.
type AnswerStore interface {
	RecordAnswer(ctx context.Context, a api.AnswerRecord) error
	ListAnswers(ctx context.Context, userID int64) ([]api.AnswerRecord, error)

	// TallyYes counts the recorded "yes" answers for a user.
	TallyYes(ctx context.Context, userID int64) (int, error)
}

// Stores bundles the three stores an engine needs.
type Stores struct {
	Users   UserStore
	Events  EventStore
	Answers AnswerStore
}
