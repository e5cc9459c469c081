package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

type SQLSessionStore struct {
	db      *sql.DB
	dialect Dialect
}

func NewSQLSessionStore(db *sql.DB, dialect Dialect) (*SQLSessionStore, error) {
	if db == nil {
		return nil, fmt.Errorf("database is required")
	}
	if dialect != DialectPostgres && dialect != DialectSQLite {
		return nil, fmt.Errorf("unsupported dialect %q", dialect)
	}
	return &SQLSessionStore{db: db, dialect: dialect}, nil
}

func (s *SQLSessionStore) Save(ctx context.Context, sess Session) error {
	const q = `
INSERT INTO auth_sessions (id, user_id, username, created_at, expires_at)
VALUES ($1, $2, $3, $4, $5)`
	if _, err := s.db.ExecContext(ctx, rebind(s.dialect, q),
		sess.ID, sess.UserID, sess.Username, sess.CreatedAt.UTC(), sess.ExpiresAt.UTC()); err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

func (s *SQLSessionStore) Get(ctx context.Context, id string) (Session, error) {
	const q = `SELECT id, user_id, username, created_at, expires_at FROM auth_sessions WHERE id = $1`
	var sess Session
	err := s.db.QueryRowContext(ctx, rebind(s.dialect, q), id).
		Scan(&sess.ID, &sess.UserID, &sess.Username, &sess.CreatedAt, &sess.ExpiresAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Session{}, ErrSessionNotFound
		}
		return Session{}, fmt.Errorf("query session: %w", err)
	}
	return sess, nil
}

func (s *SQLSessionStore) Delete(ctx context.Context, id string) error {
	const q = `DELETE FROM auth_sessions WHERE id = $1`
	if _, err := s.db.ExecContext(ctx, rebind(s.dialect, q), id); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// PurgeExpired removes sessions that expired before now and reports how many were removed.
func (s *SQLSessionStore) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	const q = `DELETE FROM auth_sessions WHERE expires_at < $1`
	res, err := s.db.ExecContext(ctx, rebind(s.dialect, q), now.UTC())
	if err != nil {
		return 0, fmt.Errorf("purge sessions: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("purge sessions rows: %w", err)
	}
	return n, nil
}
