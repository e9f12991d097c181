package api

import (
	"fmt"
	"time"
)

// Stage is a named point in the funnel. The set of stages is closed and the
// graph between them is fixed per deployment; transitions are looked up in a
// FunnelDefinition's transition table, never compared ad hoc.
type Stage string

const (
	StageStart             Stage = "start"
	StageGotMaterial       Stage = "got_material"
	StageFollowupSent      Stage = "followup_sent"
	StageChatInviteSent    Stage = "chat_invite_sent"
	StageAvoidanceOffer    Stage = "avoidance_offer"
	StageAvoidanceDone     Stage = "avoidance_done"
	StageCaseStory         Stage = "case_story"
	StageSelfDisclosure    Stage = "self_disclosure"
	StageConsultationOffer Stage = "consultation_offer"
)

// Stages lists all funnel stages in funnel order. The position of a stage in
// this slice is its rank; a user's stage only ever moves toward higher ranks.
var Stages = []Stage{
	StageStart,
	StageGotMaterial,
	StageFollowupSent,
	StageChatInviteSent,
	StageAvoidanceOffer,
	StageAvoidanceDone,
	StageCaseStory,
	StageSelfDisclosure,
	StageConsultationOffer,
}

// Rank returns the position of s in the funnel order, or -1 for an unknown
// stage.
func (s Stage) Rank() int {
	for i, st := range Stages {
		if st == s {
			return i
		}
	}
	return -1
}

// ActionType identifies an inbound user action (a command or a button press).
type ActionType string

const (
	ActionGetMaterial ActionType = "get_material"
	ActionStartQuiz   ActionType = "start_quiz"
	ActionQuizAnswer  ActionType = "quiz_answer"
	ActionFinishQuiz  ActionType = "finish_quiz"
)

// Action is a decoded inbound user action. Question and Answer are only
// meaningful for ActionQuizAnswer.
type Action struct {
	Type     ActionType
	Question int
	Answer   bool
}

func (a Action) String() string {
	if a.Type == ActionQuizAnswer {
		return fmt.Sprintf("%s:%d:%t", a.Type, a.Question, a.Answer)
	}
	return string(a.Type)
}

// Transition describes the single outgoing edge of a stage.
//
// Exactly one of the following shapes applies:
//   - AwaitsAction: the edge fires on an explicit user action, no timer.
//   - Delay > 0: the edge fires after a fixed delay.
//   - SubscribedDelay/UnsubscribedDelay > 0: the edge fires after a delay
//     chosen by the subscription branch.
//
// A stage with a zero-valued Transition is terminal.
type Transition struct {
	Next         Stage
	AwaitsAction bool
	Delay        time.Duration

	// Subscription branch. When both are set, the engine consults the
	// membership gate on entry and picks the delay accordingly; the
	// unsubscribed branch additionally dispatches the subscribe prompt.
	SubscribedDelay   time.Duration
	UnsubscribedDelay time.Duration
}

// Branches reports whether this edge selects its delay via the
// subscription gate.
func (t Transition) Branches() bool {
	return t.SubscribedDelay > 0 && t.UnsubscribedDelay > 0
}

// Terminal reports whether the stage owning this transition has no
// outgoing edge.
func (t Transition) Terminal() bool {
	return t.Next == ""
}

// Content is the payload dispatched when a stage is entered. Parts are sent
// in a fixed order: media note first, document second, text last. Empty
// parts are skipped.
type Content struct {
	// MediaNote is an opaque reference (e.g. a file id) for a short
	// circular video note.
	MediaNote string

	// Document is an opaque file reference or URL; Caption accompanies it.
	Document string
	Caption  string

	// Text is the commentary message. Buttons, if any, are attached to it.
	Text    string
	Buttons []Button
}

// Button is an inline button attached to a text message. Pressing it feeds
// Action back into the engine.
type Button struct {
	Label  string
	Action Action
}

// QuizDefinition describes the embedded binary avoidance quiz.
type QuizDefinition struct {
	Questions []string

	// HighThreshold is the minimum number of "yes" answers that classifies
	// a user as high-avoidance.
	HighThreshold int

	HighText string
	LowText  string
}

// FunnelDefinition is the complete description of one deployment's funnel:
// the transition table, the per-stage content, the quiz, and the membership
// channel consulted by the subscription branch.
type FunnelDefinition struct {
	Transitions map[Stage]Transition
	Content     map[Stage]Content
	Quiz        QuizDefinition

	// SubscribePrompt is sent on the unsubscribed branch before the long
	// delay starts.
	SubscribePrompt string

	// DuplicateAck is the lightweight acknowledgement sent when a user
	// repeats an action whose stage has already advanced. Heavy content
	// (documents, media) is never re-sent.
	DuplicateAck string

	// ChannelID is the membership channel checked by the subscription gate.
	ChannelID int64
}

// Validate checks that the definition forms a well-formed, forward-only
// funnel graph over the closed stage set.
func (d FunnelDefinition) Validate() error {
	if len(d.Transitions) == 0 {
		return fmt.Errorf("funnel definition has no transitions")
	}
	for from, tr := range d.Transitions {
		if from.Rank() < 0 {
			return fmt.Errorf("unknown stage %q in transition table", from)
		}
		if tr.Terminal() {
			continue
		}
		if tr.Next.Rank() < 0 {
			return fmt.Errorf("transition %s -> %q targets unknown stage", from, tr.Next)
		}
		if tr.Next.Rank() <= from.Rank() {
			return fmt.Errorf("transition %s -> %s regresses the funnel", from, tr.Next)
		}
		if !tr.AwaitsAction && tr.Delay <= 0 && !tr.Branches() {
			return fmt.Errorf("transition %s -> %s has no trigger (action, delay, or branch)", from, tr.Next)
		}
	}
	if len(d.Quiz.Questions) > 0 && d.Quiz.HighThreshold <= 0 {
		return fmt.Errorf("quiz has questions but no high threshold")
	}
	return nil
}

// Subscription is the tri-state membership flag on a user record.
type Subscription int

const (
	SubscriptionUnknown Subscription = iota
	SubscriptionYes
	SubscriptionNo
)

func (s Subscription) String() string {
	switch s {
	case SubscriptionYes:
		return "subscribed"
	case SubscriptionNo:
		return "unsubscribed"
	default:
		return "unknown"
	}
}

// UserRecord is the durable per-user funnel state. Exactly one record exists
// per user id; records are created on the first inbound event and never
// deleted.
type UserRecord struct {
	UserID     int64
	Username   string
	Source     string
	Stage      Stage
	Subscribed Subscription
	LastAction time.Time
}

// EventLogEntry is one row of the append-only per-user audit log. Insertion
// order per user is authoritative; entries are never mutated. The funnel
// logic itself never reads the log, it exists for the admin viewer.
type EventLogEntry struct {
	ID        int64
	UserID    int64
	Timestamp time.Time
	Action    string
	Details   string
}

// AnswerRecord is one recorded quiz answer. At most one row is kept per
// (user, question): recording the same question again overwrites the
// previous answer (last-write-wins).
type AnswerRecord struct {
	UserID   int64
	Question int
	Answer   bool
}
