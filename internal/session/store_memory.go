package session

import (
	"context"
	"sync"
	"time"

	id "archivist/pkg/domain"
)

// InMemory is the test double for the session index. TTLs are honored
// against the wall clock on read.
type InMemory struct {
	mu       sync.Mutex
	sessions map[id.AccountID]map[string]time.Time // session ID -> expiry
}

func NewInMemory() *InMemory {
	return &InMemory{sessions: make(map[id.AccountID]map[string]time.Time)}
}

func (s *InMemory) Register(_ context.Context, accountID id.AccountID, sessionID string, ttl time.Duration) error {
	if sessionID == "" {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sessions[accountID] == nil {
		s.sessions[accountID] = make(map[string]time.Time)
	}
	s.sessions[accountID][sessionID] = time.Now().Add(ttl)
	return nil
}

func (s *InMemory) ActiveCount(_ context.Context, accountID id.AccountID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	active := 0
	now := time.Now()
	for _, expiry := range s.sessions[accountID] {
		if expiry.After(now) {
			active++
		}
	}
	return active, nil
}

func (s *InMemory) RevokeByAccount(_ context.Context, accountID id.AccountID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	revoked := len(s.sessions[accountID])
	delete(s.sessions, accountID)
	return revoked, nil
}
