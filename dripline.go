package dripline

import (
	"database/sql"
	"log/slog"

	"github.com/petrijr/dripline/internal/engine"
	"github.com/petrijr/dripline/internal/persistence"
	"github.com/petrijr/dripline/internal/taskqueue"
	"github.com/petrijr/dripline/pkg/api"
)

// Re-export key types so users don't need to dig into pkg/api.

type (
	Engine               = api.Engine
	Stage                = api.Stage
	Transition           = api.Transition
	FunnelDefinition     = api.FunnelDefinition
	Content              = api.Content
	Button               = api.Button
	Action               = api.Action
	ActionType           = api.ActionType
	QuizDefinition       = api.QuizDefinition
	Subscription         = api.Subscription
	UserRecord           = api.UserRecord
	EventLogEntry        = api.EventLogEntry
	AnswerRecord         = api.AnswerRecord
	Dispatcher           = api.Dispatcher
	MembershipChecker    = api.MembershipChecker
	MembershipStatus     = api.MembershipStatus
	Observer             = api.Observer
	LoggingObserver      = api.LoggingObserver
	BasicMetrics         = api.BasicMetrics
	BasicMetricsSnapshot = api.BasicMetricsSnapshot
	CompositeObserver    = api.CompositeObserver
	NoopObserver         = api.NoopObserver
)

// Re-export common observer helpers.

var (
	NewLoggingObserver   = api.NewLoggingObserver
	NewCompositeObserver = api.NewCompositeObserver
)

// Re-export stage values for convenience.

const (
	StageStart             = api.StageStart
	StageGotMaterial       = api.StageGotMaterial
	StageFollowupSent      = api.StageFollowupSent
	StageChatInviteSent    = api.StageChatInviteSent
	StageAvoidanceOffer    = api.StageAvoidanceOffer
	StageAvoidanceDone     = api.StageAvoidanceDone
	StageCaseStory         = api.StageCaseStory
	StageSelfDisclosure    = api.StageSelfDisclosure
	StageConsultationOffer = api.StageConsultationOffer
)

// Re-export action types for convenience.

const (
	ActionGetMaterial = api.ActionGetMaterial
	ActionStartQuiz   = api.ActionStartQuiz
	ActionQuizAnswer  = api.ActionQuizAnswer
	ActionFinishQuiz  = api.ActionFinishQuiz
)

// Options describes the collaborators an engine needs. Definition and
// Dispatcher are required; the rest default to no-ops.
type Options struct {
	Definition api.FunnelDefinition
	Dispatcher api.Dispatcher
	Membership api.MembershipChecker
	Observer   api.Observer
	Logger     *slog.Logger
}

// NewSQLiteEngine returns an Engine that persists user records, the event
// log, quiz answers, and pending continuations in the given SQLite database.
//
// It expects an *sql.DB using a SQLite driver (for example,
// "modernc.org/sqlite"); the caller imports the driver. The returned queue
// must be drained by at least one worker or the funnel will not advance past
// its first delayed edge; most callers should use NewSQLiteRunner instead.
func NewSQLiteEngine(db *sql.DB, opts Options) (Engine, *taskqueue.SQLiteQueue, error) {
	stores, err := newSQLiteStores(db)
	if err != nil {
		return nil, nil, err
	}

	q, err := taskqueue.NewSQLiteQueue(db)
	if err != nil {
		return nil, nil, err
	}

	eng, err := engine.NewEngine(engine.Config{
		Definition: opts.Definition,
		Stores:     stores,
		Dispatcher: opts.Dispatcher,
		Membership: opts.Membership,
		Queue:      q,
		Observer:   opts.Observer,
		Logger:     opts.Logger,
	})
	if err != nil {
		return nil, nil, err
	}
	return eng, q, nil
}

// NewInMemoryEngine returns an Engine backed entirely by in-memory stores
// and an in-memory queue. Nothing survives the process; intended for tests
// and local development.
func NewInMemoryEngine(opts Options) (Engine, *taskqueue.InMemoryQueue, error) {
	mem := persistence.NewInMemoryStore()
	q := taskqueue.NewInMemoryQueue()

	eng, err := engine.NewEngine(engine.Config{
		Definition: opts.Definition,
		Stores: persistence.Stores{
			Users:   mem,
			Events:  mem,
			Answers: mem,
		},
		Dispatcher: opts.Dispatcher,
		Membership: opts.Membership,
		Queue:      q,
		Observer:   opts.Observer,
		Logger:     opts.Logger,
	})
	if err != nil {
		return nil, nil, err
	}
	return eng, q, nil
}

func newSQLiteStores(db *sql.DB) (persistence.Stores, error) {
	users, err := persistence.NewSQLiteUserStore(db)
	if err != nil {
		return persistence.Stores{}, err
	}
	events, err := persistence.NewSQLiteEventStore(db)
	if err != nil {
		return persistence.Stores{}, err
	}
	answers, err := persistence.NewSQLiteAnswerStore(db)
	if err != nil {
		return persistence.Stores{}, err
	}
	return persistence.Stores{
		Users:   users,
		Events:  events,
		Answers: answers,
	}, nil
}
