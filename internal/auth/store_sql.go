package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// Dialect selects placeholder syntax and driver error mapping.
type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite"
)

// SQLUserStore reads and writes the users table created by the migrations package.
type SQLUserStore struct {
	db      *sql.DB
	dialect Dialect
	nowFunc func() time.Time
}

func NewSQLUserStore(db *sql.DB, dialect Dialect) (*SQLUserStore, error) {
	if db == nil {
		return nil, fmt.Errorf("database is required")
	}
	if dialect != DialectPostgres && dialect != DialectSQLite {
		return nil, fmt.Errorf("unsupported dialect %q", dialect)
	}
	return &SQLUserStore{db: db, dialect: dialect, nowFunc: time.Now}, nil
}

const selectUserColumns = `SELECT id, username, email, hashed_password, is_active, created_at FROM users`

func (s *SQLUserStore) GetByID(ctx context.Context, id int64) (User, error) {
	if id <= 0 {
		return User{}, ErrUserNotFound
	}
	return s.getOne(ctx, selectUserColumns+` WHERE id = $1`, id)
}

func (s *SQLUserStore) GetByEmail(ctx context.Context, email string) (User, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return User{}, ErrUserNotFound
	}
	return s.getOne(ctx, selectUserColumns+` WHERE email = $1`, email)
}

func (s *SQLUserStore) GetByUsername(ctx context.Context, username string) (User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return User{}, ErrUserNotFound
	}
	return s.getOne(ctx, selectUserColumns+` WHERE username = $1`, username)
}

func (s *SQLUserStore) getOne(ctx context.Context, q string, arg any) (User, error) {
	var u User
	err := s.db.QueryRowContext(ctx, rebind(s.dialect, q), arg).
		Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.IsActive, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return User{}, ErrUserNotFound
		}
		return User{}, fmt.Errorf("query user: %w", err)
	}
	u.CreatedAt = u.CreatedAt.UTC()
	return u, nil
}

func (s *SQLUserStore) Create(ctx context.Context, user User) (User, error) {
	if user.Username == "" || user.Email == "" || user.PasswordHash == "" {
		return User{}, fmt.Errorf("username, email, and password hash are required")
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = s.nowFunc().UTC()
	}

	const q = `
INSERT INTO users (username, email, hashed_password, is_active, created_at)
VALUES ($1, $2, $3, $4, $5)
RETURNING id`
	err := s.db.QueryRowContext(ctx, rebind(s.dialect, q),
		user.Username, user.Email, user.PasswordHash, user.IsActive, user.CreatedAt).Scan(&user.ID)
	if err != nil {
		if dup := duplicateError(err); dup != nil {
			return User{}, dup
		}
		return User{}, fmt.Errorf("insert user: %w", err)
	}
	return user, nil
}

// rebind rewrites $N placeholders to SQLite's ?N form.
func rebind(d Dialect, q string) string {
	if d == DialectSQLite {
		return strings.ReplaceAll(q, "$", "?")
	}
	return q
}

// duplicateError maps unique violations from either driver to the taken errors.
func duplicateError(err error) error {
	var detail string

	var pqErr *pq.Error
	var liteErr *sqlite.Error
	switch {
	case errors.As(err, &pqErr) && pqErr.Code == "23505":
		detail = pqErr.Constraint + " " + pqErr.Detail
	case errors.As(err, &liteErr) && liteErr.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE:
		detail = liteErr.Error()
	default:
		return nil
	}

	if strings.Contains(detail, "email") {
		return ErrEmailTaken
	}
	return ErrUsernameTaken
}
