package auth

import (
	"context"
	"errors"
	"sync"
	"time"
)

var ErrUserNotFound = errors.New("user not found")

type UserStore interface {
	GetByID(ctx context.Context, id int64) (User, error)
	GetByEmail(ctx context.Context, email string) (User, error)
	GetByUsername(ctx context.Context, username string) (User, error)
	// Create assigns ID and CreatedAt (when zero) and returns the stored user.
	// Duplicates are reported as ErrEmailTaken or ErrUsernameTaken.
	Create(ctx context.Context, user User) (User, error)
}

type InMemoryUserStore struct {
	mu      sync.RWMutex
	nextID  int64
	users   map[int64]User
	nowFunc func() time.Time
}

func NewInMemoryUserStore() *InMemoryUserStore {
	return &InMemoryUserStore{
		nextID:  1,
		users:   make(map[int64]User),
		nowFunc: time.Now,
	}
}

func (s *InMemoryUserStore) GetByID(_ context.Context, id int64) (User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return User{}, ErrUserNotFound
	}
	return u, nil
}

func (s *InMemoryUserStore) GetByEmail(_ context.Context, email string) (User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return findUser(s.users, func(u User) bool { return u.Email == email })
}

func (s *InMemoryUserStore) GetByUsername(_ context.Context, username string) (User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return findUser(s.users, func(u User) bool { return u.Username == username })
}

func (s *InMemoryUserStore) Create(_ context.Context, user User) (User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := checkDuplicate(s.users, user); err != nil {
		return User{}, err
	}
	user.ID = s.nextID
	s.nextID++
	if user.CreatedAt.IsZero() {
		user.CreatedAt = s.nowFunc().UTC()
	}
	s.users[user.ID] = user
	return user, nil
}

func findUser(users map[int64]User, match func(User) bool) (User, error) {
	if match == nil {
		return User{}, ErrUserNotFound
	}
	for _, u := range users {
		if match(u) {
			return u, nil
		}
	}
	return User{}, ErrUserNotFound
}

func checkDuplicate(users map[int64]User, candidate User) error {
	for _, u := range users {
		if u.Email == candidate.Email {
			return ErrEmailTaken
		}
		if u.Username == candidate.Username {
			return ErrUsernameTaken
		}
	}
	return nil
}
