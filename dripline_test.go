package dripline_test

import (
	"context"
	"database/sql"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite"

	"github.com/petrijr/dripline"
)

type fakeDispatcher struct {
	mu    sync.Mutex
	texts []string
}

func (d *fakeDispatcher) SendText(ctx context.Context, userID int64, text string, buttons ...dripline.Button) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.texts = append(d.texts, text)
	return nil
}

func (d *fakeDispatcher) SendDocument(ctx context.Context, userID int64, file, caption string) error {
	return nil
}

func (d *fakeDispatcher) SendMediaNote(ctx context.Context, userID int64, mediaRef string) error {
	return nil
}

func (d *fakeDispatcher) sent(text string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, s := range d.texts {
		if s == text {
			return true
		}
	}
	return false
}

type memberChecker struct{}

func (memberChecker) Membership(ctx context.Context, channelID, userID int64) (dripline.MembershipStatus, error) {
	return "member", nil
}

// fastFunnel is the production funnel shape with millisecond delays so a test
// can watch a user walk it end to end.
func fastFunnel() dripline.FunnelDefinition {
	const tick = 20 * time.Millisecond
	return dripline.FunnelDefinition{
		ChannelID: -1001,
		Transitions: map[dripline.Stage]dripline.Transition{
			dripline.StageStart:       {Next: dripline.StageGotMaterial, AwaitsAction: true},
			dripline.StageGotMaterial: {Next: dripline.StageFollowupSent, Delay: tick},
			dripline.StageFollowupSent: {
				Next:              dripline.StageChatInviteSent,
				SubscribedDelay:   tick,
				UnsubscribedDelay: 10 * time.Second,
			},
			dripline.StageChatInviteSent: {Next: dripline.StageAvoidanceOffer, Delay: tick},
			dripline.StageAvoidanceOffer: {
				Next:         dripline.StageAvoidanceDone,
				AwaitsAction: true,
				Delay:        tick,
			},
			dripline.StageAvoidanceDone:     {Next: dripline.StageCaseStory, Delay: tick},
			dripline.StageCaseStory:         {Next: dripline.StageSelfDisclosure, Delay: tick},
			dripline.StageSelfDisclosure:    {Next: dripline.StageConsultationOffer, Delay: tick},
			dripline.StageConsultationOffer: {},
		},
		Content: map[dripline.Stage]dripline.Content{
			dripline.StageStart: {
				Text: "welcome",
				Buttons: []dripline.Button{
					{Label: "Get it", Action: dripline.Action{Type: dripline.ActionGetMaterial}},
				},
			},
			dripline.StageAvoidanceOffer: {Text: "quiz time"},
			dripline.StageConsultationOffer: {Text: "the end"},
		},
		Quiz: dripline.QuizDefinition{
			Questions:     []string{"q one", "q two"},
			HighThreshold: 2,
			HighText:      "high",
			LowText:       "low",
		},
		SubscribePrompt: "please subscribe",
		DuplicateAck:    "already done",
	}
}

func waitForStage(t *testing.T, eng dripline.Engine, userID int64, want dripline.Stage) {
	t.Helper()
	require.Eventually(t, func() bool {
		u, err := eng.GetUser(context.Background(), userID)
		if err != nil {
			return false
		}
		return u.Stage == want
	}, 5*time.Second, 10*time.Millisecond, "user %d never reached %s", userID, want)
}

func TestInMemoryRunnerWalksFunnelEndToEnd(t *testing.T) {
	disp := &fakeDispatcher{}
	runner, err := dripline.NewInMemoryRunner(dripline.Options{
		Definition: fastFunnel(),
		Dispatcher: disp,
		Membership: memberChecker{},
	})
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, runner.StartWorkers(ctx, 2))
	defer runner.Stop()

	const userID = 42
	require.NoError(t, runner.Engine.HandleStart(ctx, userID, "alice", "ads"))
	require.NoError(t, runner.Engine.HandleAction(ctx, userID, dripline.Action{Type: dripline.ActionGetMaterial}))

	// The timers carry the user to the quiz offer on their own.
	waitForStage(t, runner.Engine, userID, dripline.StageAvoidanceOffer)

	require.NoError(t, runner.Engine.HandleAction(ctx, userID, dripline.Action{Type: dripline.ActionStartQuiz}))
	for q := 0; q < 2; q++ {
		require.NoError(t, runner.Engine.HandleAction(ctx, userID, dripline.Action{
			Type: dripline.ActionQuizAnswer, Question: q, Answer: true,
		}))
	}
	require.True(t, disp.sent("high"))

	// The quiz close resumes the timer chain down to the terminal stage.
	waitForStage(t, runner.Engine, userID, dripline.StageConsultationOffer)
	require.True(t, disp.sent("the end"))

	require.Eventually(t, func() bool { return runner.Pending() == 0 },
		5*time.Second, 10*time.Millisecond, "continuations left in the queue at the terminal stage")
}

func TestSQLiteRunnerResumesPendingWaitAfterRestart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "funnel.db")
	def := fastFunnel()
	ctx := context.Background()

	// First process: the user presses the button, the wait is persisted, and
	// the process dies before the timer fires.
	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	first, err := dripline.NewSQLiteRunner(db, dripline.Options{
		Definition: def,
		Dispatcher: &fakeDispatcher{},
		Membership: memberChecker{},
	})
	require.NoError(t, err)

	require.NoError(t, first.Engine.HandleStart(ctx, 7, "bob", "ads"))
	require.NoError(t, first.Engine.HandleAction(ctx, 7, dripline.Action{Type: dripline.ActionGetMaterial}))
	require.Equal(t, 1, first.Pending())
	require.NoError(t, db.Close())

	// Second process: the pending continuation is picked up and the funnel
	// continues from where it stopped.
	db2, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db2.Close() })

	second, err := dripline.NewSQLiteRunner(db2, dripline.Options{
		Definition: def,
		Dispatcher: &fakeDispatcher{},
		Membership: memberChecker{},
	})
	require.NoError(t, err)
	require.Equal(t, 1, second.Pending())

	require.NoError(t, second.StartWorkers(ctx, 1))
	defer second.Stop()

	waitForStage(t, second.Engine, 7, dripline.StageAvoidanceOffer)
}

func TestRunnerStartWorkersTwiceFails(t *testing.T) {
	runner, err := dripline.NewInMemoryRunner(dripline.Options{
		Definition: fastFunnel(),
		Dispatcher: &fakeDispatcher{},
	})
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, runner.StartWorkers(ctx, 1))
	require.Error(t, runner.StartWorkers(ctx, 1))

	runner.Stop()
	runner.Stop() // idempotent

	require.NoError(t, runner.StartWorkers(ctx, 1))
	runner.Stop()
}

func TestNewEngineRejectsBadDefinition(t *testing.T) {
	def := fastFunnel()
	def.Transitions[dripline.StageCaseStory] = dripline.Transition{
		Next: dripline.StageGotMaterial, Delay: time.Second,
	}

	_, err := dripline.NewInMemoryRunner(dripline.Options{
		Definition: def,
		Dispatcher: &fakeDispatcher{},
	})
	require.Error(t, err)
	require.Contains(t, err.Error(), "regresses")
}
