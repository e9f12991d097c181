package api

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"
)

// Observer receives callbacks from the funnel engine and workers for logging
// and metrics.
//
// Implementations should be fast and non-blocking; heavy work should be done
// asynchronously so as not to delay funnel execution.
type Observer interface {
	// OnUserStart is called once when a user record is first created.
	OnUserStart(ctx context.Context, user *UserRecord)

	// OnStageEnter is called after a stage transition has been persisted
	// and before the stage content is dispatched.
	OnStageEnter(ctx context.Context, userID int64, stage Stage)

	// OnScheduled is called when a delayed continuation has been recorded.
	OnScheduled(ctx context.Context, userID int64, from, to Stage, due time.Time)

	// OnDispatchError is called when sending a piece of stage content
	// fails. The transition still stands; delivery is best-effort.
	OnDispatchError(ctx context.Context, userID int64, stage Stage, err error)

	// OnContinuationDropped is called when a fired continuation found the
	// user's stage already moved past its expectation and was discarded.
	OnContinuationDropped(ctx context.Context, userID int64, from, to Stage)
}

// NoopObserver is an Observer that does nothing.
// It is used as the default when no observer is configured.
type NoopObserver struct{}

func (NoopObserver) OnUserStart(ctx context.Context, user *UserRecord)       {}
func (NoopObserver) OnStageEnter(ctx context.Context, userID int64, s Stage) {}
func (NoopObserver) OnScheduled(ctx context.Context, userID int64, from, to Stage, due time.Time) {
}
func (NoopObserver) OnDispatchError(ctx context.Context, userID int64, s Stage, err error) {}
func (NoopObserver) OnContinuationDropped(ctx context.Context, userID int64, from, to Stage) {
}

// CompositeObserver fans out events to multiple observers.
type CompositeObserver struct {
	observers []Observer
}

// NewCompositeObserver creates an Observer that forwards events to each
// non-nil observer in obs.
func NewCompositeObserver(obs ...Observer) Observer {
	filtered := make([]Observer, 0, len(obs))
	for _, o := range obs {
		if o != nil {
			filtered = append(filtered, o)
		}
	}
	if len(filtered) == 0 {
		return NoopObserver{}
	}
	if len(filtered) == 1 {
		return filtered[0]
	}
	return &CompositeObserver{observers: filtered}
}

func (c *CompositeObserver) OnUserStart(ctx context.Context, user *UserRecord) {
	for _, o := range c.observers {
		o.OnUserStart(ctx, user)
	}
}

func (c *CompositeObserver) OnStageEnter(ctx context.Context, userID int64, s Stage) {
	for _, o := range c.observers {
		o.OnStageEnter(ctx, userID, s)
	}
}

func (c *CompositeObserver) OnScheduled(ctx context.Context, userID int64, from, to Stage, due time.Time) {
	for _, o := range c.observers {
		o.OnScheduled(ctx, userID, from, to, due)
	}
}

func (c *CompositeObserver) OnDispatchError(ctx context.Context, userID int64, s Stage, err error) {
	for _, o := range c.observers {
		o.OnDispatchError(ctx, userID, s, err)
	}
}

func (c *CompositeObserver) OnContinuationDropped(ctx context.Context, userID int64, from, to Stage) {
	for _, o := range c.observers {
		o.OnContinuationDropped(ctx, userID, from, to)
	}
}

// LoggingObserver writes structured logs using log/slog.
type LoggingObserver struct {
	Logger *slog.Logger
}

// NewLoggingObserver creates an Observer that logs funnel lifecycle events
// using the provided slog.Logger. If logger is nil, slog.Default() is used.
func NewLoggingObserver(logger *slog.Logger) Observer {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoggingObserver{Logger: logger}
}

func (o *LoggingObserver) OnUserStart(ctx context.Context, user *UserRecord) {
	o.Logger.InfoContext(ctx, "user_start",
		slog.Int64("user_id", user.UserID),
		slog.String("source", user.Source),
	)
}

func (o *LoggingObserver) OnStageEnter(ctx context.Context, userID int64, s Stage) {
	o.Logger.InfoContext(ctx, "stage_enter",
		slog.Int64("user_id", userID),
		slog.String("stage", string(s)),
	)
}

func (o *LoggingObserver) OnScheduled(ctx context.Context, userID int64, from, to Stage, due time.Time) {
	o.Logger.DebugContext(ctx, "continuation_scheduled",
		slog.Int64("user_id", userID),
		slog.String("from", string(from)),
		slog.String("to", string(to)),
		slog.Time("due", due),
	)
}

func (o *LoggingObserver) OnDispatchError(ctx context.Context, userID int64, s Stage, err error) {
	o.Logger.ErrorContext(ctx, "dispatch_error",
		slog.Int64("user_id", userID),
		slog.String("stage", string(s)),
		slog.Any("error", err),
	)
}

func (o *LoggingObserver) OnContinuationDropped(ctx context.Context, userID int64, from, to Stage) {
	o.Logger.WarnContext(ctx, "continuation_dropped",
		slog.Int64("user_id", userID),
		slog.String("from", string(from)),
		slog.String("to", string(to)),
	)
}

// BasicMetrics collects simple counters for funnel activity. It implements
// Observer, and can be combined with LoggingObserver via
// NewCompositeObserver.
type BasicMetrics struct {
	NoopObserver

	usersStarted          atomic.Int64
	stageTransitions      atomic.Int64
	continuationsQueued   atomic.Int64
	continuationsDropped  atomic.Int64
	dispatchErrors        atomic.Int64
	terminalStagesReached atomic.Int64
}

// BasicMetricsSnapshot is an immutable snapshot of BasicMetrics.
type BasicMetricsSnapshot struct {
	UsersStarted          int64
	StageTransitions      int64
	ContinuationsQueued   int64
	ContinuationsDropped  int64
	DispatchErrors        int64
	TerminalStagesReached int64
}

func (m *BasicMetrics) OnUserStart(ctx context.Context, user *UserRecord) {
	m.usersStarted.Add(1)
}

func (m *BasicMetrics) OnStageEnter(ctx context.Context, userID int64, s Stage) {
	m.stageTransitions.Add(1)
	if s == Stages[len(Stages)-1] {
		m.terminalStagesReached.Add(1)
	}
}

func (m *BasicMetrics) OnScheduled(ctx context.Context, userID int64, from, to Stage, due time.Time) {
	m.continuationsQueued.Add(1)
}

func (m *BasicMetrics) OnDispatchError(ctx context.Context, userID int64, s Stage, err error) {
	m.dispatchErrors.Add(1)
}

func (m *BasicMetrics) OnContinuationDropped(ctx context.Context, userID int64, from, to Stage) {
	m.continuationsDropped.Add(1)
}

// Snapshot returns a snapshot of the current metrics.
func (m *BasicMetrics) Snapshot() BasicMetricsSnapshot {
	return BasicMetricsSnapshot{
		UsersStarted:          m.usersStarted.Load(),
		StageTransitions:      m.stageTransitions.Load(),
		ContinuationsQueued:   m.continuationsQueued.Load(),
		ContinuationsDropped:  m.continuationsDropped.Load(),
		DispatchErrors:        m.dispatchErrors.Load(),
		TerminalStagesReached: m.terminalStagesReached.Load(),
	}
}
