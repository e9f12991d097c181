package persistence

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/petrijr/dripline/pkg/api"
)

// SQLiteUserStore is a UserStore backed by SQLite.
//
// It expects an *sql.DB that uses a SQLite driver (for example,
// "modernc.org/sqlite"). The caller is responsible for importing
// the driver, e.g.:
//
//	import _ "modernc.org/sqlite"
type SQLiteUserStore struct {
	db *sql.DB
}

// Ensure SQLiteUserStore implements UserStore.
var _ UserStore = (*SQLiteUserStore)(nil)

// NewSQLiteUserStore initializes the users table in the given database and
// returns a new SQLiteUserStore.
func NewSQLiteUserStore(db *sql.DB) (*SQLiteUserStore, error) {
	s := &SQLiteUserStore{db: db}
	if err := s.initSchema(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *SQLiteUserStore) initSchema() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			user_id INTEGER PRIMARY KEY,
			username TEXT NOT NULL DEFAULT '',
			source TEXT NOT NULL DEFAULT '',
			stage TEXT NOT NULL,
			subscribed INTEGER,
			last_action TEXT NOT NULL
		);`,
	)
	return err
}

func (s *SQLiteUserStore) CreateUser(ctx context.Context, u *api.UserRecord) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO users (user_id, username, source, stage, subscribed, last_action)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO NOTHING`,
		u.UserID,
		u.Username,
		u.Source,
		string(u.Stage),
		encodeSubscription(u.Subscribed),
		encodeTime(u.LastAction),
	)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

func (s *SQLiteUserStore) GetUser(ctx context.Context, userID int64) (*api.UserRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT user_id, username, source, stage, subscribed, last_action
		FROM users
		WHERE user_id = ?`,
		userID,
	)

	u, err := scanUser(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return u, nil
}

func (s *SQLiteUserStore) ListUsers(ctx context.Context) ([]*api.UserRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT user_id, username, source, stage, subscribed, last_action
		FROM users
		ORDER BY last_action DESC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []*api.UserRecord
	for rows.Next() {
		u, err := scanUser(rows.Scan)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (s *SQLiteUserStore) CompareAndSwapStage(ctx context.Context, userID int64, from, to api.Stage, at time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE users
		SET stage = ?, last_action = ?
		WHERE user_id = ? AND stage = ?`,
		string(to),
		encodeTime(at),
		userID,
		string(from),
	)
	if err != nil {
		return err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		// Distinguish a missing user from a lost race.
		if _, err := s.GetUser(ctx, userID); err != nil {
			return err
		}
		return ErrStaleStage
	}
	return nil
}

func (s *SQLiteUserStore) SetSubscription(ctx context.Context, userID int64, sub api.Subscription, at time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE users
		SET subscribed = ?, last_action = ?
		WHERE user_id = ?`,
		encodeSubscription(sub),
		encodeTime(at),
		userID,
	)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrUserNotFound
	}
	return nil
}

func scanUser(scan func(...any) error) (*api.UserRecord, error) {
	var (
		u          api.UserRecord
		stageStr   string
		subscribed sql.NullInt64
		lastAction string
	)
	if err := scan(&u.UserID, &u.Username, &u.Source, &stageStr, &subscribed, &lastAction); err != nil {
		return nil, err
	}

	u.Stage = api.Stage(stageStr)
	u.Subscribed = decodeSubscription(subscribed)

	at, err := decodeTime(lastAction)
	if err != nil {
		return nil, err
	}
	u.LastAction = at

	return &u, nil
}

// Subscription is a tri-state stored as a nullable integer:
// NULL = unknown, 1 = subscribed, 0 = unsubscribed.

func encodeSubscription(sub api.Subscription) sql.NullInt64 {
	switch sub {
	case api.SubscriptionYes:
		return sql.NullInt64{Int64: 1, Valid: true}
	case api.SubscriptionNo:
		return sql.NullInt64{Int64: 0, Valid: true}
	default:
		return sql.NullInt64{}
	}
}

func decodeSubscription(v sql.NullInt64) api.Subscription {
	if !v.Valid {
		return api.SubscriptionUnknown
	}
	if v.Int64 != 0 {
		return api.SubscriptionYes
	}
	return api.SubscriptionNo
}

// Timestamps are stored as ISO-8601 strings so the rows stay readable from
// any sqlite client.

func encodeTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func decodeTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}
