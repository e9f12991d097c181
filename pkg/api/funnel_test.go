package api

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func validDefinition() FunnelDefinition {
	return FunnelDefinition{
		Transitions: map[Stage]Transition{
			StageStart:       {Next: StageGotMaterial, AwaitsAction: true},
			StageGotMaterial: {Next: StageFollowupSent, Delay: time.Second},
			StageFollowupSent: {
				Next:              StageChatInviteSent,
				SubscribedDelay:   time.Second,
				UnsubscribedDelay: 2 * time.Second,
			},
			StageChatInviteSent: {},
		},
	}
}

func TestValidateAcceptsForwardOnlyGraph(t *testing.T) {
	require.NoError(t, validDefinition().Validate())
}

func TestValidateRejections(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*FunnelDefinition)
		want   string
	}{
		{
			name:   "empty table",
			mutate: func(d *FunnelDefinition) { d.Transitions = nil },
			want:   "no transitions",
		},
		{
			name: "unknown source stage",
			mutate: func(d *FunnelDefinition) {
				d.Transitions["bogus"] = Transition{Next: StageGotMaterial, Delay: time.Second}
			},
			want: "unknown stage",
		},
		{
			name: "unknown target stage",
			mutate: func(d *FunnelDefinition) {
				d.Transitions[StageGotMaterial] = Transition{Next: "bogus", Delay: time.Second}
			},
			want: "unknown stage",
		},
		{
			name: "backward edge",
			mutate: func(d *FunnelDefinition) {
				d.Transitions[StageFollowupSent] = Transition{Next: StageStart, Delay: time.Second}
			},
			want: "regresses",
		},
		{
			name: "edge with no trigger",
			mutate: func(d *FunnelDefinition) {
				d.Transitions[StageGotMaterial] = Transition{Next: StageFollowupSent}
			},
			want: "no trigger",
		},
		{
			name: "quiz without threshold",
			mutate: func(d *FunnelDefinition) {
				d.Quiz = QuizDefinition{Questions: []string{"q"}}
			},
			want: "threshold",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			def := validDefinition()
			tc.mutate(&def)
			err := def.Validate()
			require.Error(t, err)
			require.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestStageRank(t *testing.T) {
	require.Equal(t, 0, StageStart.Rank())
	require.Equal(t, len(Stages)-1, StageConsultationOffer.Rank())
	require.Equal(t, -1, Stage("bogus").Rank())
}

func TestActionString(t *testing.T) {
	require.Equal(t, "get_material", Action{Type: ActionGetMaterial}.String())
	require.Equal(t, "quiz_answer:3:true", Action{Type: ActionQuizAnswer, Question: 3, Answer: true}.String())
	require.Equal(t, "quiz_answer:0:false", Action{Type: ActionQuizAnswer}.String())
}
