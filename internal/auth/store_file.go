package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// FileUserStore keeps users in a JSON file. It backs DATABASE_DRIVER=none.
type FileUserStore struct {
	path    string
	nowFunc func() time.Time

	mu     sync.RWMutex
	nextID int64
	users  map[int64]User
}

// fileUserRecord differs from User in that it persists the password hash.
type fileUserRecord struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"password_hash"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
}

func NewFileUserStore(path string) (*FileUserStore, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("user state file path is required")
	}

	s := &FileUserStore{
		path:    path,
		nowFunc: time.Now,
		nextID:  1,
		users:   make(map[int64]User),
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *FileUserStore) GetByID(_ context.Context, id int64) (User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return User{}, ErrUserNotFound
	}
	return u, nil
}

func (s *FileUserStore) GetByEmail(_ context.Context, email string) (User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return findUser(s.users, func(u User) bool { return u.Email == email })
}

func (s *FileUserStore) GetByUsername(_ context.Context, username string) (User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return findUser(s.users, func(u User) bool { return u.Username == username })
}

func (s *FileUserStore) Create(_ context.Context, user User) (User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := checkDuplicate(s.users, user); err != nil {
		return User{}, err
	}
	user.ID = s.nextID
	if user.CreatedAt.IsZero() {
		user.CreatedAt = s.nowFunc().UTC()
	}
	s.users[user.ID] = user
	if err := s.persistLocked(); err != nil {
		delete(s.users, user.ID)
		return User{}, err
	}
	s.nextID++
	return user, nil
}

func (s *FileUserStore) load() error {
	b, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read user store file: %w", err)
	}
	if len(b) == 0 {
		return nil
	}

	var decoded []fileUserRecord
	if err := json.Unmarshal(b, &decoded); err != nil {
		return fmt.Errorf("decode user store file: %w", err)
	}
	for _, rec := range decoded {
		if rec.ID <= 0 || strings.TrimSpace(rec.Username) == "" {
			continue
		}
		s.users[rec.ID] = User(rec)
		if rec.ID >= s.nextID {
			s.nextID = rec.ID + 1
		}
	}
	return nil
}

func (s *FileUserStore) persistLocked() error {
	out := make([]fileUserRecord, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, fileUserRecord(u))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })

	b, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("encode user store file: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("mkdir user store dir: %w", err)
	}
	if err := os.WriteFile(s.path, b, 0o600); err != nil {
		return fmt.Errorf("write user store file: %w", err)
	}
	return nil
}
