package store

import (
	"sync"
	"time"

	"openjournal/internal/util"
)

type memorySession struct {
	userID string
	expiry time.Time
}

// MemorySessionStore keeps session tokens in memory (tests and single
// instance use).
type MemorySessionStore struct {
	mu       sync.Mutex
	sessions map[string]memorySession
	ttl      time.Duration
}

// NewMemorySessionStore constructs an in-memory session store.
func NewMemorySessionStore(ttl time.Duration) *MemorySessionStore {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &MemorySessionStore{
		sessions: make(map[string]memorySession),
		ttl:      ttl,
	}
}

// NewSession issues a token mapped to the user.
func (s *MemorySessionStore) NewSession(userID string) (string, error) {
	token := util.NewID()
	s.mu.Lock()
	s.sessions[token] = memorySession{
		userID: userID,
		expiry: time.Now().Add(s.ttl),
	}
	s.mu.Unlock()
	return token, nil
}

// GetUserIDByToken resolves token to user ID, dropping expired entries.
func (s *MemorySessionStore) GetUserIDByToken(token string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[token]
	if !ok {
		return "", false, nil
	}
	if time.Now().After(sess.expiry) {
		delete(s.sessions, token)
		return "", false, nil
	}
	return sess.userID, true, nil
}

// DeleteSession removes a token mapping.
func (s *MemorySessionStore) DeleteSession(token string) error {
	s.mu.Lock()
	delete(s.sessions, token)
	s.mu.Unlock()
	return nil
}
