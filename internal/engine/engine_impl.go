package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/petrijr/dripline/internal/persistence"
	"github.com/petrijr/dripline/internal/taskqueue"
	"github.com/petrijr/dripline/pkg/api"
)

// stripeCount is the number of per-user lock stripes. Two users rarely share
// a stripe; one user's transitions are always serialized.
const stripeCount = 64

// engineImpl drives the funnel: it owns stage transitions, content dispatch
// and continuation scheduling. All collaborators are injected; there is no
// process-wide state.
type engineImpl struct {
	def      api.FunnelDefinition
	stores   persistence.Stores
	disp     api.Dispatcher
	gate     *subscriptionGate
	quiz     *quizTracker
	queue    taskqueue.Queue
	observer api.Observer
	logger   *slog.Logger

	// Mutations to one user's record are serialized through a lock stripe
	// keyed on the user id. The store's compare-and-swap is the backstop
	// for anything that slips past (e.g. a second process).
	locks [stripeCount]sync.Mutex
}

// Config describes how to construct an engine. External callers use the
// constructors in the root dripline package.
type Config struct {
	Definition api.FunnelDefinition
	Stores     persistence.Stores
	Dispatcher api.Dispatcher
	Membership api.MembershipChecker
	Queue      taskqueue.Queue
	Observer   api.Observer
	Logger     *slog.Logger
}

// NewEngine creates a new Engine using the given configuration.
func NewEngine(cfg Config) (api.Engine, error) {
	if err := cfg.Definition.Validate(); err != nil {
		return nil, fmt.Errorf("invalid funnel definition: %w", err)
	}
	if cfg.Dispatcher == nil {
		return nil, errors.New("dispatcher is required")
	}
	if cfg.Queue == nil {
		return nil, errors.New("continuation queue is required")
	}

	obs := cfg.Observer
	if obs == nil {
		obs = api.NoopObserver{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	e := &engineImpl{
		def:      cfg.Definition,
		stores:   cfg.Stores,
		disp:     cfg.Dispatcher,
		queue:    cfg.Queue,
		observer: obs,
		logger:   logger,
	}
	e.gate = &subscriptionGate{
		checker:   cfg.Membership,
		users:     cfg.Stores.Users,
		events:    cfg.Stores.Events,
		channelID: cfg.Definition.ChannelID,
		logger:    logger,
	}
	e.quiz = &quizTracker{
		answers: cfg.Stores.Answers,
		def:     cfg.Definition.Quiz,
	}
	return e, nil
}

func (e *engineImpl) Definition() api.FunnelDefinition {
	return e.def
}

func (e *engineImpl) lockFor(userID int64) *sync.Mutex {
	return &e.locks[uint64(userID)%stripeCount]
}

func (e *engineImpl) HandleStart(ctx context.Context, userID int64, username, source string) error {
	mu := e.lockFor(userID)
	mu.Lock()
	defer mu.Unlock()

	now := time.Now()
	user := &api.UserRecord{
		UserID:     userID,
		Username:   username,
		Source:     source,
		Stage:      api.StageStart,
		Subscribed: api.SubscriptionUnknown,
		LastAction: now,
	}

	created, err := e.stores.Users.CreateUser(ctx, user)
	if err != nil {
		return fmt.Errorf("create user %d: %w", userID, err)
	}

	if created {
		e.observer.OnUserStart(ctx, user)
		e.logEvent(ctx, userID, "start", "source="+source)
	} else {
		// A repeated /start just gets the welcome again; the record and
		// any scheduled continuations are untouched.
		e.logEvent(ctx, userID, "duplicate_start", "")
	}

	e.dispatchContent(ctx, userID, api.StageStart)
	// StageStart awaits the "get material" press; nothing is scheduled.
	return nil
}

func (e *engineImpl) HandleAction(ctx context.Context, userID int64, action api.Action) error {
	mu := e.lockFor(userID)
	mu.Lock()
	defer mu.Unlock()

	user, err := e.stores.Users.GetUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("load user %d: %w", userID, err)
	}

	switch action.Type {
	case api.ActionGetMaterial:
		if user.Stage != api.StageStart {
			return e.acknowledgeDuplicate(ctx, userID, action)
		}
		e.logEvent(ctx, userID, "get_material", "")
		return e.advanceLocked(ctx, userID, api.StageStart, api.StageGotMaterial)

	case api.ActionStartQuiz:
		if user.Stage != api.StageAvoidanceOffer {
			return e.acknowledgeDuplicate(ctx, userID, action)
		}
		e.logEvent(ctx, userID, "start_quiz", "")
		e.sendQuestion(ctx, userID, 0)
		return nil

	case api.ActionQuizAnswer:
		if user.Stage != api.StageAvoidanceOffer {
			return e.acknowledgeDuplicate(ctx, userID, action)
		}
		return e.handleQuizAnswer(ctx, userID, action)

	case api.ActionFinishQuiz:
		if user.Stage != api.StageAvoidanceOffer {
			return e.acknowledgeDuplicate(ctx, userID, action)
		}
		e.logEvent(ctx, userID, "finish_quiz", "")
		return e.closeQuiz(ctx, userID)

	default:
		return fmt.Errorf("unknown action %q for user %d", action.Type, userID)
	}
}

// acknowledgeDuplicate handles a stale or repeated action: a short text
// acknowledgement, never the stage's heavy content, and no stage change.
func (e *engineImpl) acknowledgeDuplicate(ctx context.Context, userID int64, action api.Action) error {
	e.logEvent(ctx, userID, "duplicate_action", action.String())
	if e.def.DuplicateAck != "" {
		if err := e.disp.SendText(ctx, userID, e.def.DuplicateAck); err != nil {
			e.observer.OnDispatchError(ctx, userID, "", err)
		}
	}
	return nil
}

func (e *engineImpl) Advance(ctx context.Context, userID int64, from, to api.Stage) error {
	mu := e.lockFor(userID)
	mu.Lock()
	defer mu.Unlock()

	// A continuation never assumes the stage it was scheduled from is
	// still current: re-read before acting.
	user, err := e.stores.Users.GetUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("load user %d: %w", userID, err)
	}
	if user.Stage != from {
		e.observer.OnContinuationDropped(ctx, userID, from, to)
		return persistence.ErrStaleStage
	}

	return e.advanceLocked(ctx, userID, from, to)
}

// advanceLocked performs one transition. The caller holds the user's lock.
// Order is fixed: persist the stage first, then dispatch content, then
// schedule the next edge. A dispatch failure never rolls back the stage.
func (e *engineImpl) advanceLocked(ctx context.Context, userID int64, from, to api.Stage) error {
	now := time.Now()
	if err := e.stores.Users.CompareAndSwapStage(ctx, userID, from, to, now); err != nil {
		if errors.Is(err, persistence.ErrStaleStage) {
			e.observer.OnContinuationDropped(ctx, userID, from, to)
		}
		return err
	}

	e.observer.OnStageEnter(ctx, userID, to)
	e.logEvent(ctx, userID, "bot_stage_"+string(to), "")

	e.dispatchContent(ctx, userID, to)
	return e.scheduleNext(ctx, userID, to)
}

// dispatchContent sends a stage's payload in fixed order: media note first,
// document second, commentary text last. Sends are best-effort; a transport
// error is logged and the remaining parts are still attempted.
func (e *engineImpl) dispatchContent(ctx context.Context, userID int64, stage api.Stage) {
	content, ok := e.def.Content[stage]
	if !ok {
		return
	}

	if content.MediaNote != "" {
		if err := e.disp.SendMediaNote(ctx, userID, content.MediaNote); err != nil {
			e.reportSendError(ctx, userID, stage, err)
		}
	}
	if content.Document != "" {
		if err := e.disp.SendDocument(ctx, userID, content.Document, content.Caption); err != nil {
			e.reportSendError(ctx, userID, stage, err)
		}
	}
	if content.Text != "" {
		if err := e.disp.SendText(ctx, userID, content.Text, content.Buttons...); err != nil {
			e.reportSendError(ctx, userID, stage, err)
		}
	}
}

// scheduleNext enqueues the delayed continuation for the stage just entered.
// Stages that await a user action (or are terminal) schedule nothing.
func (e *engineImpl) scheduleNext(ctx context.Context, userID int64, stage api.Stage) error {
	tr, ok := e.def.Transitions[stage]
	if !ok || tr.Terminal() || tr.AwaitsAction {
		return nil
	}

	delay := tr.Delay
	if tr.Branches() {
		delay = e.branchDelay(ctx, userID, tr)
	}
	return e.schedule(ctx, userID, stage, tr.Next, delay)
}

// branchDelay consults the subscription gate and picks the branch delay. An
// unsubscribed (or undeterminable) membership selects the long delay and
// additionally sends the subscribe prompt.
func (e *engineImpl) branchDelay(ctx context.Context, userID int64, tr api.Transition) time.Duration {
	sub := e.gate.Check(ctx, userID)
	if sub == api.SubscriptionYes {
		return tr.SubscribedDelay
	}

	if e.def.SubscribePrompt != "" {
		if err := e.disp.SendText(ctx, userID, e.def.SubscribePrompt); err != nil {
			e.reportSendError(ctx, userID, "", err)
		}
		e.logEvent(ctx, userID, "bot_subscribe_prompt", "")
	}
	return tr.UnsubscribedDelay
}

func (e *engineImpl) schedule(ctx context.Context, userID int64, from, to api.Stage, delay time.Duration) error {
	due := time.Now().Add(delay)
	err := e.queue.Enqueue(ctx, taskqueue.Continuation{
		UserID:    userID,
		From:      from,
		To:        to,
		NotBefore: due,
	})
	if err != nil {
		return fmt.Errorf("schedule %s -> %s for user %d: %w", from, to, userID, err)
	}
	e.observer.OnScheduled(ctx, userID, from, to, due)
	e.logEvent(ctx, userID, "auto_scheduled", fmt.Sprintf("%s -> %s in %s", from, to, delay))
	return nil
}

func (e *engineImpl) handleQuizAnswer(ctx context.Context, userID int64, action api.Action) error {
	if action.Question < 0 || action.Question >= len(e.def.Quiz.Questions) {
		return fmt.Errorf("quiz question %d out of range for user %d", action.Question, userID)
	}

	if err := e.quiz.Record(ctx, userID, action.Question, action.Answer); err != nil {
		return fmt.Errorf("record answer for user %d: %w", userID, err)
	}
	e.logEvent(ctx, userID, fmt.Sprintf("quiz_answer_%d", action.Question), fmt.Sprintf("yes=%t", action.Answer))

	next, done, err := e.quiz.NextUnanswered(ctx, userID)
	if err != nil {
		return err
	}
	if !done {
		e.sendQuestion(ctx, userID, next)
		return nil
	}
	return e.closeQuiz(ctx, userID)
}

// closeQuiz tallies the answers, sends the matching variant, and schedules
// the move to the post-quiz stage.
func (e *engineImpl) closeQuiz(ctx context.Context, userID int64) error {
	yes, err := e.quiz.TallyYes(ctx, userID)
	if err != nil {
		return fmt.Errorf("tally quiz for user %d: %w", userID, err)
	}

	text := e.def.Quiz.LowText
	verdict := "low"
	if yes >= e.def.Quiz.HighThreshold {
		text = e.def.Quiz.HighText
		verdict = "high"
	}
	if err := e.disp.SendText(ctx, userID, text); err != nil {
		e.reportSendError(ctx, userID, api.StageAvoidanceOffer, err)
	}
	e.logEvent(ctx, userID, "bot_quiz_result", fmt.Sprintf("yes=%d verdict=%s", yes, verdict))

	tr := e.def.Transitions[api.StageAvoidanceOffer]
	return e.schedule(ctx, userID, api.StageAvoidanceOffer, tr.Next, tr.Delay)
}

func (e *engineImpl) sendQuestion(ctx context.Context, userID int64, question int) {
	text := fmt.Sprintf("%d/%d %s", question+1, len(e.def.Quiz.Questions), e.def.Quiz.Questions[question])
	buttons := []api.Button{
		{Label: "Yes", Action: api.Action{Type: api.ActionQuizAnswer, Question: question, Answer: true}},
		{Label: "No", Action: api.Action{Type: api.ActionQuizAnswer, Question: question, Answer: false}},
	}
	if err := e.disp.SendText(ctx, userID, text, buttons...); err != nil {
		e.reportSendError(ctx, userID, api.StageAvoidanceOffer, err)
	}
}

func (e *engineImpl) GetUser(ctx context.Context, userID int64) (*api.UserRecord, error) {
	u, err := e.stores.Users.GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, persistence.ErrUserNotFound) {
			return nil, fmt.Errorf("user not found: %d", userID)
		}
		return nil, err
	}
	return u, nil
}

func (e *engineImpl) ListUsers(ctx context.Context) ([]*api.UserRecord, error) {
	return e.stores.Users.ListUsers(ctx)
}

func (e *engineImpl) ListEvents(ctx context.Context, userID int64) ([]api.EventLogEntry, error) {
	return e.stores.Events.ListEvents(ctx, userID)
}

func (e *engineImpl) reportSendError(ctx context.Context, userID int64, stage api.Stage, err error) {
	e.observer.OnDispatchError(ctx, userID, stage, err)
	e.logEvent(ctx, userID, "system_send_error", err.Error())
}

// logEvent appends to the audit log. The log is display-only; a failed
// append must not disturb the funnel, so it is logged and swallowed.
func (e *engineImpl) logEvent(ctx context.Context, userID int64, action, details string) {
	err := e.stores.Events.AppendEvent(ctx, api.EventLogEntry{
		UserID:    userID,
		Timestamp: time.Now(),
		Action:    action,
		Details:   details,
	})
	if err != nil {
		e.logger.ErrorContext(ctx, "event_append_failed",
			slog.Int64("user_id", userID),
			slog.String("action", action),
			slog.Any("error", err),
		)
	}
}
