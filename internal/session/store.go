// Package session keeps per-user analysis settings in process memory.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned for unknown or expired sessions
var ErrNotFound = errors.New("session not found")

// Outcome is the last analysis result shown to the session's user
type Outcome struct {
	State       string    `json:"state"`
	Message     string    `json:"message"`
	ErrorType   string    `json:"error_type,omitempty"`
	Model       string    `json:"model,omitempty"`
	CompletedAt time.Time `json:"completed_at"`
}

// Session holds what a user typed between analyses. The credential is never serialized.
type Session struct {
	ID         string    `json:"id"`
	Credential string    `json:"-"`
	Prompt     string    `json:"prompt"`
	Preset     string    `json:"preset,omitempty"`
	LastResult *Outcome  `json:"last_result,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// HasCredential reports whether an API key was stored
func (s Session) HasCredential() bool {
	return s.Credential != ""
}

// Store is an in-memory session map with idle expiry
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	ttl      time.Duration
	now      func() time.Time
}

// NewStore creates a store. A ttl <= 0 disables expiry.
func NewStore(ttl time.Duration) *Store {
	return &Store{
		sessions: make(map[string]*Session),
		ttl:      ttl,
		now:      time.Now,
	}
}

// Create starts a new session with the given prompt
func (s *Store) Create(prompt string) Session {
	now := s.now()
	sess := &Session{
		ID:        uuid.NewString(),
		Prompt:    prompt,
		CreatedAt: now,
		UpdatedAt: now,
	}

	s.mu.Lock()
	s.sessions[sess.ID] = sess
	s.mu.Unlock()

	return *sess
}

// Get returns a copy of the session
func (s *Store) Get(id string) (Session, error) {
	s.mu.RLock()
	sess, ok := s.sessions[id]
	if ok && s.expired(sess) {
		ok = false
	}
	var out Session
	if ok {
		out = *sess
	}
	s.mu.RUnlock()

	if !ok {
		return Session{}, ErrNotFound
	}
	return out, nil
}

// Update applies fn to the session under the write lock and refreshes its idle timer
func (s *Store) Update(id string, fn func(*Session)) (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok || s.expired(sess) {
		delete(s.sessions, id)
		return Session{}, ErrNotFound
	}

	fn(sess)
	sess.ID = id
	sess.UpdatedAt = s.now()
	return *sess, nil
}

// Delete removes the session
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[id]; !ok {
		return ErrNotFound
	}
	delete(s.sessions, id)
	return nil
}

// Len returns the number of stored sessions, expired ones included until swept
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Sweep drops expired sessions and returns how many were removed
func (s *Store) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, sess := range s.sessions {
		if s.expired(sess) {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed
}

// RunJanitor sweeps every interval until ctx is done
func (s *Store) RunJanitor(ctx context.Context, interval time.Duration) {
	if s.ttl <= 0 || interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep()
		}
	}
}

func (s *Store) expired(sess *Session) bool {
	return s.ttl > 0 && s.now().Sub(sess.UpdatedAt) > s.ttl
}
