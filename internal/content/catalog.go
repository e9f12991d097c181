// Package content holds the funnel definition shipped with the bot: the
// transition table, the per-stage copy, and the avoidance quiz.
package content

import (
	"time"

	"github.com/petrijr/dripline/pkg/api"
)

// Refs are the deployment-specific opaque references injected into the
// funnel content: the downloadable material and the recorded media note.
// Either may be empty, in which case that part is simply not sent.
type Refs struct {
	MaterialDoc string
	MediaNote   string
	ChatLink    string
	ChannelID   int64
}

// Default returns the funnel driven by the bot.
//
// Delays are fixed per edge. The followup edge branches on channel
// membership: subscribers continue quickly, everyone else gets the subscribe
// prompt and a long wait.
func Default(refs Refs) api.FunnelDefinition {
	return api.FunnelDefinition{
		ChannelID: refs.ChannelID,
		Transitions: map[api.Stage]api.Transition{
			api.StageStart: {
				Next:         api.StageGotMaterial,
				AwaitsAction: true,
			},
			api.StageGotMaterial: {
				Next:  api.StageFollowupSent,
				Delay: 10 * time.Second,
			},
			api.StageFollowupSent: {
				Next:              api.StageChatInviteSent,
				SubscribedDelay:   20 * time.Second,
				UnsubscribedDelay: 120 * time.Second,
			},
			api.StageChatInviteSent: {
				Next:  api.StageAvoidanceOffer,
				Delay: 30 * time.Second,
			},
			api.StageAvoidanceOffer: {
				// Fires once the quiz closes, then after the short pause.
				Next:         api.StageAvoidanceDone,
				AwaitsAction: true,
				Delay:        2 * time.Second,
			},
			api.StageAvoidanceDone: {
				Next:  api.StageCaseStory,
				Delay: 30 * time.Second,
			},
			api.StageCaseStory: {
				Next:  api.StageSelfDisclosure,
				Delay: 30 * time.Second,
			},
			api.StageSelfDisclosure: {
				Next:  api.StageConsultationOffer,
				Delay: 120 * time.Second,
			},
			api.StageConsultationOffer: {}, // terminal
		},
		Content: map[api.Stage]api.Content{
			api.StageStart: {
				Text: "If you found this bot, anxiety has probably already made a mess of your life: " +
					"the racing heart, the dizziness, the fear of losing your mind.\n\n" +
					"It is less chaotic than it feels. These states have well-studied mechanisms, and once " +
					"you understand them you can take back control.\n\n" +
					"I put together a guide that explains what triggers panic attacks and how to stop " +
					"obeying them. Download it and push back with knowledge.",
				Buttons: []api.Button{
					{Label: "Get the guide", Action: api.Action{Type: api.ActionGetMaterial}},
				},
			},
			api.StageGotMaterial: {
				MediaNote: refs.MediaNote,
				Document:  refs.MaterialDoc,
				Caption:   "The panic attack guide",
				Text:      materialText(refs.MaterialDoc),
			},
			api.StageFollowupSent: {
				Text: "Did you get a chance to open the guide? The part about the adrenaline curve " +
					"is the one readers say finally made their attacks make sense.",
			},
			api.StageChatInviteSent: {
				Text: "There is a quiet support chat where people share what worked for them" +
					chatLinkSuffix(refs.ChatLink) + " No pressure, read-only is fine.",
			},
			api.StageAvoidanceOffer: {
				Text: "One more thing that predicts how fast people recover: avoidance. " +
					"Eight yes/no questions, two minutes, and you will know your pattern.",
				Buttons: []api.Button{
					{Label: "Take the quiz", Action: api.Action{Type: api.ActionStartQuiz}},
				},
			},
			api.StageAvoidanceDone: {
				Text: "Whatever your score, avoidance is learned, which means it can be unlearned. The guide's chapter four is exactly about that.",
			},
			api.StageCaseStory: {
				Text: "A client of mine, M., spent two years avoiding the subway after one attack. " +
					"Six weeks of structured exposure later she rode it daily. Not because she became " +
					"fearless, but because she stopped negotiating with the fear.",
			},
			api.StageSelfDisclosure: {
				Text: "I know this territory from the inside. My own first panic attack was in a " +
					"checkout line, and I did everything wrong for a year before I learned what actually helps. " +
					"That year is why this bot exists.",
			},
			api.StageConsultationOffer: {
				Text: "If you want to work through your pattern one on one, I keep a few consultation " +
					"slots each week. Reply here and I will send the details.",
			},
		},
		Quiz: api.QuizDefinition{
			Questions: []string{
				"Do you avoid places where an attack once happened?",
				"Do you keep an escape route in mind in crowded rooms?",
				"Have you turned down plans for fear of feeling unwell?",
				"Do you carry water, pills, or a phone as a safety object?",
				"Do you avoid physical exertion that raises your pulse?",
				"Do you scan your body for symptoms during calm moments?",
				"Do you need a trusted person nearby to go somewhere new?",
				"Have you stopped using transport you used to take?",
			},
			HighThreshold: 4,
			HighText: "Your answers point to a strong avoidance pattern. That is not a verdict, it is a map: " +
				"every item you said yes to is a place fear currently makes your decisions. The good news " +
				"is that avoidance responds to training faster than any other part of anxiety.",
			LowText: "Your avoidance score is low. Your world has not shrunk much, which makes this the best " +
				"possible moment to work on the attacks themselves, before habits form around them.",
		},
		SubscribePrompt: "By the way, the channel has the exercises that go with the guide. " +
			"Join it so the next steps reach you.",
		DuplicateAck: "You already have this one. The next step is on its way.",
	}
}

// materialText falls back to an apology when no guide reference is
// configured, so the stage still sends something useful.
func materialText(doc string) string {
	text := "Start with step one tonight. The first chapter takes ten minutes and most people feel the difference after a single read."
	if doc == "" {
		return "The guide file is being updated right now. Write me a message here and I will send it to you directly.\n\n" + text
	}
	return text
}

func chatLinkSuffix(link string) string {
	if link == "" {
		return "."
	}
	return ": " + link + "."
}
