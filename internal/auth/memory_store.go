package auth

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps users in process; it backs the memory data backend.
type MemoryStore struct {
	mu     sync.Mutex
	users  map[string]User // by id
	resets map[string]ResetToken
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:  make(map[string]User),
		resets: make(map[string]ResetToken),
	}
}

func (m *MemoryStore) CreateUser(_ context.Context, u User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.users {
		if existing.Email == u.Email {
			return ErrEmailTaken
		}
	}
	m.users[u.ID] = u
	return nil
}

func (m *MemoryStore) GetUserByEmail(_ context.Context, email string) (User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			return u, nil
		}
	}
	return User{}, ErrUserNotFound
}

func (m *MemoryStore) GetUserByID(_ context.Context, id string) (User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return User{}, ErrUserNotFound
	}
	return u, nil
}

func (m *MemoryStore) UpdatePassword(_ context.Context, userID, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return ErrUserNotFound
	}
	u.PasswordHash = hash
	m.users[userID] = u
	return nil
}

func (m *MemoryStore) SaveResetToken(_ context.Context, t ResetToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resets[t.Token] = t
	return nil
}

func (m *MemoryStore) ConsumeResetToken(_ context.Context, token string, now time.Time) (ResetToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.resets[token]
	if !ok || t.Used || !now.Before(t.ExpiresAt) {
		return ResetToken{}, ErrInvalidResetToken
	}
	t.Used = true
	m.resets[token] = t
	return t, nil
}
