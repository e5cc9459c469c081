package auth

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid token")
	ErrInvalidInput       = errors.New("invalid input")
	ErrEmailTaken         = errors.New("email already registered")
	ErrUsernameTaken      = errors.New("username already taken")
)

const (
	minUsernameLength = 3
	maxUsernameLength = 50
	minPasswordLength = 6
	// bcrypt ignores everything past 72 bytes.
	maxPasswordBytes = 72

	TokenTypeBearer = "bearer"
)

type Service struct {
	users    UserStore
	sessions SessionStore
	secret   []byte
	ttl      time.Duration
	cost     int
	nowFunc  func() time.Time
	newID    func() string
}

type ServiceConfig struct {
	JWTSecret  string
	TokenTTL   time.Duration
	BcryptCost int
	// Sessions defaults to an in-memory store.
	Sessions SessionStore
}

func NewService(userStore UserStore, cfg ServiceConfig) (*Service, error) {
	if userStore == nil {
		return nil, fmt.Errorf("user store is required")
	}
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("jwt secret is required")
	}
	if cfg.TokenTTL <= 0 {
		return nil, fmt.Errorf("token TTL must be > 0")
	}
	cost := cfg.BcryptCost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return nil, fmt.Errorf("bcrypt cost must be between %d and %d", bcrypt.MinCost, bcrypt.MaxCost)
	}
	sessions := cfg.Sessions
	if sessions == nil {
		sessions = NewInMemorySessionStore()
	}

	return &Service{
		users:    userStore,
		sessions: sessions,
		secret:   []byte(cfg.JWTSecret),
		ttl:      cfg.TokenTTL,
		cost:     cost,
		nowFunc:  time.Now,
		newID:    uuid.NewString,
	}, nil
}

func (s *Service) HashPassword(password string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(b), nil
}

func (s *Service) VerifyPassword(password, storedHash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(storedHash), []byte(password)) == nil
}

func (s *Service) Signup(ctx context.Context, in SignupInput) (User, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = normalizeEmail(in.Email)
	if err := validateSignup(in); err != nil {
		return User{}, err
	}

	if _, err := s.users.GetByEmail(ctx, in.Email); err == nil {
		return User{}, ErrEmailTaken
	} else if !errors.Is(err, ErrUserNotFound) {
		return User{}, fmt.Errorf("check email: %w", err)
	}
	if _, err := s.users.GetByUsername(ctx, in.Username); err == nil {
		return User{}, ErrUsernameTaken
	} else if !errors.Is(err, ErrUserNotFound) {
		return User{}, fmt.Errorf("check username: %w", err)
	}

	hash, err := s.HashPassword(in.Password)
	if err != nil {
		return User{}, err
	}
	u, err := s.users.Create(ctx, User{
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: hash,
		IsActive:     true,
		CreatedAt:    s.nowFunc().UTC(),
	})
	if err != nil {
		if errors.Is(err, ErrEmailTaken) || errors.Is(err, ErrUsernameTaken) {
			return User{}, err
		}
		return User{}, fmt.Errorf("create user: %w", err)
	}
	return u, nil
}

func (s *Service) Login(ctx context.Context, email, password string) (Token, error) {
	u, err := s.users.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return Token{}, ErrInvalidCredentials
		}
		return Token{}, fmt.Errorf("lookup user: %w", err)
	}
	if !s.VerifyPassword(password, u.PasswordHash) {
		return Token{}, ErrInvalidCredentials
	}

	now := s.nowFunc()
	sess := Session{
		ID:        s.newID(),
		UserID:    u.ID,
		Username:  u.Username,
		CreatedAt: now.UTC(),
		ExpiresAt: now.Add(s.ttl).UTC(),
	}
	signed, err := s.signToken(sess)
	if err != nil {
		return Token{}, err
	}
	if err := s.sessions.Save(ctx, sess); err != nil {
		return Token{}, fmt.Errorf("save session: %w", err)
	}
	return Token{AccessToken: signed, TokenType: TokenTypeBearer, ExpiresAt: sess.ExpiresAt}, nil
}

// CurrentUser resolves an access token to its user. Any token problem,
// including a revoked session or a deleted user, is ErrInvalidToken.
func (s *Service) CurrentUser(ctx context.Context, token string) (User, error) {
	sess, err := s.sessionFor(ctx, token)
	if err != nil {
		return User{}, err
	}
	u, err := s.users.GetByUsername(ctx, sess.Username)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return User{}, ErrInvalidToken
		}
		return User{}, fmt.Errorf("lookup user: %w", err)
	}
	return u, nil
}

func (s *Service) Logout(ctx context.Context, token string) error {
	sess, err := s.sessionFor(ctx, token)
	if err != nil {
		return err
	}
	if err := s.sessions.Delete(ctx, sess.ID); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// PurgeExpiredSessions is a no-op unless the session store can purge.
func (s *Service) PurgeExpiredSessions(ctx context.Context) (int64, error) {
	p, ok := s.sessions.(interface {
		PurgeExpired(ctx context.Context, now time.Time) (int64, error)
	})
	if !ok {
		return 0, nil
	}
	return p.PurgeExpired(ctx, s.nowFunc())
}

func (s *Service) sessionFor(ctx context.Context, token string) (Session, error) {
	claims, err := s.parseToken(token)
	if err != nil {
		return Session{}, ErrInvalidToken
	}
	sess, err := s.sessions.Get(ctx, claims.ID)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			return Session{}, ErrInvalidToken
		}
		return Session{}, fmt.Errorf("load session: %w", err)
	}
	if sess.Username != claims.Subject || s.nowFunc().After(sess.ExpiresAt) {
		_ = s.sessions.Delete(ctx, sess.ID)
		return Session{}, ErrInvalidToken
	}
	return sess, nil
}

func (s *Service) signToken(sess Session) (string, error) {
	claims := jwt.RegisteredClaims{
		Subject:   sess.Username,
		ID:        sess.ID,
		IssuedAt:  jwt.NewNumericDate(sess.CreatedAt),
		ExpiresAt: jwt.NewNumericDate(sess.ExpiresAt),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

func (s *Service) parseToken(token string) (*jwt.RegisteredClaims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrInvalidToken
	}
	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.nowFunc),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, err
	}
	if !parsed.Valid || claims.Subject == "" || claims.ID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func validateSignup(in SignupInput) error {
	if n := utf8.RuneCountInString(in.Username); n < minUsernameLength || n > maxUsernameLength {
		return fmt.Errorf("%w: username must be %d-%d characters", ErrInvalidInput, minUsernameLength, maxUsernameLength)
	}
	addr, err := mail.ParseAddress(in.Email)
	if err != nil || addr.Address != in.Email || !strings.Contains(in.Email[strings.LastIndex(in.Email, "@")+1:], ".") {
		return fmt.Errorf("%w: email is not a valid address", ErrInvalidInput)
	}
	if utf8.RuneCountInString(in.Password) < minPasswordLength {
		return fmt.Errorf("%w: password must be at least %d characters", ErrInvalidInput, minPasswordLength)
	}
	if len(in.Password) > maxPasswordBytes {
		return fmt.Errorf("%w: password must be at most %d bytes", ErrInvalidInput, maxPasswordBytes)
	}
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
