package persistence

import (
	"context"
	"database/sql"
	"time"

	"github.com/petrijr/dripline/pkg/api"
)

// SQLiteEventStore stores the per-user audit log in SQLite.
type SQLiteEventStore struct {
	db *sql.DB
}

// Ensure SQLiteEventStore implements EventStore.
var _ EventStore = (*SQLiteEventStore)(nil)

func NewSQLiteEventStore(db *sql.DB) (*SQLiteEventStore, error) {
	s := &SQLiteEventStore{db: db}
	if err := s.initSchema(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *SQLiteEventStore) initSchema() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id INTEGER NOT NULL,
			timestamp TEXT NOT NULL,
			action TEXT NOT NULL,
			details TEXT NOT NULL DEFAULT ''
		);
		CREATE INDEX IF NOT EXISTS idx_events_user_id ON events(user_id, id);
	`)
	return err
}

func (s *SQLiteEventStore) AppendEvent(ctx context.Context, ev api.EventLogEntry) error {
	at := ev.Timestamp
	if at.IsZero() {
		at = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO events (user_id, timestamp, action, details)
		VALUES (?, ?, ?, ?)`,
		ev.UserID,
		encodeTime(at),
		ev.Action,
		ev.Details,
	)
	return err
}

func (s *SQLiteEventStore) ListEvents(ctx context.Context, userID int64) ([]api.EventLogEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, timestamp, action, details
		FROM events
		WHERE user_id = ?
		ORDER BY id ASC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []api.EventLogEntry
	for rows.Next() {
		var (
			ev api.EventLogEntry
			ts string
		)
		if err := rows.Scan(&ev.ID, &ev.UserID, &ts, &ev.Action, &ev.Details); err != nil {
			return nil, err
		}
		at, err := decodeTime(ts)
		if err != nil {
			return nil, err
		}
		ev.Timestamp = at
		out = append(out, ev)
	}
	return out, rows.Err()
}
