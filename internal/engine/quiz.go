package engine

import (
	"context"

	"github.com/petrijr/dripline/internal/persistence"
	"github.com/petrijr/dripline/pkg/api"
)

// quizTracker accumulates binary answers for the embedded avoidance quiz.
//
// Answers are last-write-wins per question: a re-prompted or out-of-order
// answer overwrites the earlier one, and the tally counts the latest answer
// for each question exactly once.
type quizTracker struct {
	answers persistence.AnswerStore
	def     api.QuizDefinition
}

func (q *quizTracker) Record(ctx context.Context, userID int64, question int, answer bool) error {
	return q.answers.RecordAnswer(ctx, api.AnswerRecord{
		UserID:   userID,
		Question: question,
		Answer:   answer,
	})
}

// NextUnanswered returns the lowest question index the user has not answered
// yet, or done=true once every question has an answer.
func (q *quizTracker) NextUnanswered(ctx context.Context, userID int64) (next int, done bool, err error) {
	recorded, err := q.answers.ListAnswers(ctx, userID)
	if err != nil {
		return 0, false, err
	}

	answered := make(map[int]bool, len(recorded))
	for _, a := range recorded {
		answered[a.Question] = true
	}
	for i := range q.def.Questions {
		if !answered[i] {
			return i, false, nil
		}
	}
	return 0, true, nil
}

func (q *quizTracker) TallyYes(ctx context.Context, userID int64) (int, error) {
	return q.answers.TallyYes(ctx, userID)
}
