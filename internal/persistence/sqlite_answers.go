package persistence

import (
	"context"
	"database/sql"

	"github.com/petrijr/dripline/pkg/api"
)

// SQLiteAnswerStore stores quiz answers in SQLite.
//
// The (user_id, question_index) primary key makes duplicate answers
// last-write-wins: a user who is re-prompted or answers out of order simply
// overwrites the earlier row.
type SQLiteAnswerStore struct {
	db *sql.DB
}

// Ensure SQLiteAnswerStore implements AnswerStore.
var _ AnswerStore = (*SQLiteAnswerStore)(nil)

func NewSQLiteAnswerStore(db *sql.DB) (*SQLiteAnswerStore, error) {
	s := &SQLiteAnswerStore{db: db}
	if err := s.initSchema(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *SQLiteAnswerStore) initSchema() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS answers (
			user_id INTEGER NOT NULL,
			question_index INTEGER NOT NULL,
			answer INTEGER NOT NULL,
			PRIMARY KEY (user_id, question_index)
		);`,
	)
	return err
}

func (s *SQLiteAnswerStore) RecordAnswer(ctx context.Context, a api.AnswerRecord) error {
	answer := 0
	if a.Answer {
		answer = 1
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO answers (user_id, question_index, answer)
		VALUES (?, ?, ?)
		ON CONFLICT(user_id, question_index) DO UPDATE SET answer = excluded.answer`,
		a.UserID,
		a.Question,
		answer,
	)
	return err
}

func (s *SQLiteAnswerStore) ListAnswers(ctx context.Context, userID int64) ([]api.AnswerRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT user_id, question_index, answer
		FROM answers
		WHERE user_id = ?
		ORDER BY question_index ASC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []api.AnswerRecord
	for rows.Next() {
		var (
			a api.AnswerRecord
			n int
		)
		if err := rows.Scan(&a.UserID, &a.Question, &n); err != nil {
			return nil, err
		}
		a.Answer = n != 0
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *SQLiteAnswerStore) TallyYes(ctx context.Context, userID int64) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM answers WHERE user_id = ? AND answer = 1`, userID).Scan(&n)
	if err != nil {
		return 0, err
	}
	return n, nil
}
