package server

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/chazu/intcode/vm"
)

// Session owns one machine created through the API.
type Session struct {
	ID      string
	Machine *vm.Machine
	Created time.Time

	lastUsed time.Time
}

// SessionStore maps opaque session IDs to machines.
type SessionStore struct {
	mu       sync.Mutex
	sessions map[string]*Session
}

// NewSessionStore creates an empty session store.
func NewSessionStore() *SessionStore {
	return &SessionStore{
		sessions: make(map[string]*Session),
	}
}

// Create registers a machine under a fresh random ID.
func (s *SessionStore) Create(m *vm.Machine) *Session {
	now := time.Now()
	session := &Session{
		ID:       uuid.New().String(),
		Machine:  m,
		Created:  now,
		lastUsed: now,
	}

	s.mu.Lock()
	s.sessions[session.ID] = session
	s.mu.Unlock()

	log.Debugf("session %s created", session.ID)
	return session
}

// Get retrieves a session by ID and marks it as used.
func (s *SessionStore) Get(id string) (*Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[id]
	if ok {
		session.lastUsed = time.Now()
	}
	return session, ok
}

// Destroy removes a session. It reports whether the session existed.
func (s *SessionStore) Destroy(id string) bool {
	s.mu.Lock()
	_, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()

	if ok {
		log.Debugf("session %s destroyed", id)
	}
	return ok
}

// Len returns the number of live sessions.
func (s *SessionStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Sweep removes sessions idle for longer than ttl and returns how many
// were removed.
func (s *SessionStore) Sweep(ttl time.Duration) int {
	cutoff := time.Now().Add(-ttl)

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, session := range s.sessions {
		if session.lastUsed.Before(cutoff) {
			delete(s.sessions, id)
			removed++
		}
	}
	if removed > 0 {
		log.Infof("swept %d idle sessions", removed)
	}
	return removed
}

// StartSweeper runs periodic TTL sweeps in the background.
// Returns a stop function.
func (s *SessionStore) StartSweeper(interval, ttl time.Duration) func() {
	ticker := time.NewTicker(interval)
	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-ticker.C:
				s.Sweep(ttl)
			case <-done:
				ticker.Stop()
				return
			}
		}
	}()
	return func() { close(done) }
}
