package quizbot

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// DefaultSessionTTL is how long an untouched session stays alive
const DefaultSessionTTL = 2 * time.Hour

// AdvanceResult reports what Advance did
type AdvanceResult struct {
	Advanced  bool
	Next      *Question
	Progress  Progress
	Completed bool
}

// SessionStore holds quiz state per session handle. Every mutation of one session is atomic.
type SessionStore interface {
	// Create installs a fresh session at index 0
	Create(s *QuizSession) error
	// Get returns a copy of an active session
	Get(handle string) (*QuizSession, error)
	// Current returns the question being asked and the progress
	Current(handle string) (Question, Progress, error)
	// Advance moves from index from to from+1, or completes the session on its last question.
	// It fails if the session is no longer at from.
	Advance(handle string, from int) (AdvanceResult, error)
	// Replace installs a regenerated batch if the session is still at version
	Replace(handle string, batch []Question, version int) (*QuizSession, error)
	// Delete removes a session
	Delete(handle string)
}

// ErrStaleIndex is returned by Advance when another submission moved the session first
var ErrStaleIndex = errors.New("session index changed concurrently")

// ErrStaleVersion is returned by Replace when the session was regenerated meanwhile
var ErrStaleVersion = errors.New("session version changed concurrently")

// MemoryStore is a SessionStore backed by a locked map with TTL expiry
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*QuizSession
	ttl      time.Duration
	now      func() time.Time
}

// NewMemoryStore creates an empty store; ttl <= 0 uses the default
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &MemoryStore{
		sessions: make(map[string]*QuizSession),
		ttl:      ttl,
		now:      time.Now,
	}
}

// Create installs the session; the batch is copied so callers cannot mutate it later
func (ms *MemoryStore) Create(s *QuizSession) error {
	if s.Handle == "" {
		return newError(KindInvalidRequest, "session handle is empty", nil)
	}
	if len(s.Batch) == 0 {
		return newError(KindInvalidRequest, "session batch is empty", nil)
	}

	c := s.clone()
	now := ms.now()
	c.Index = 0
	c.Completed = false
	c.CreatedAt = now
	c.UpdatedAt = now

	ms.mu.Lock()
	defer ms.mu.Unlock()

	if _, exists := ms.sessions[c.Handle]; exists {
		return newError(KindInvalidRequest, "session "+c.Handle+" already exists", nil)
	}
	ms.sessions[c.Handle] = c
	return nil
}

// lookup returns the live session or SESSION_NOT_FOUND; callers hold ms.mu
func (ms *MemoryStore) lookup(handle string) (*QuizSession, error) {
	s, ok := ms.sessions[handle]
	if !ok {
		return nil, newError(KindSessionNotFound, "unknown session "+handle, nil)
	}
	if ms.now().Sub(s.UpdatedAt) > ms.ttl {
		return nil, newError(KindSessionNotFound, "session "+handle+" expired", nil)
	}
	if s.Completed {
		return nil, newError(KindSessionNotFound, "session "+handle+" is completed", nil)
	}
	return s, nil
}

// Get returns a copy of the session
func (ms *MemoryStore) Get(handle string) (*QuizSession, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	s, err := ms.lookup(handle)
	if err != nil {
		return nil, err
	}
	return s.clone(), nil
}

// Current returns the question at the session's index
func (ms *MemoryStore) Current(handle string) (Question, Progress, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	s, err := ms.lookup(handle)
	if err != nil {
		return Question{}, Progress{}, err
	}
	return s.Batch[s.Index].clone(), s.Progress(), nil
}

// Advance is a compare-and-increment on the session index
func (ms *MemoryStore) Advance(handle string, from int) (AdvanceResult, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	s, err := ms.lookup(handle)
	if err != nil {
		return AdvanceResult{}, err
	}
	if s.Index != from {
		return AdvanceResult{}, fmt.Errorf("advance %s from %d (now at %d): %w", handle, from, s.Index, ErrStaleIndex)
	}

	s.UpdatedAt = ms.now()
	if s.Index+1 < len(s.Batch) {
		s.Index++
		next := s.Batch[s.Index].clone()
		return AdvanceResult{Advanced: true, Next: &next, Progress: s.Progress()}, nil
	}

	s.Completed = true
	return AdvanceResult{Completed: true, Progress: s.Progress()}, nil
}

// Replace swaps in a new batch and bumps the version
func (ms *MemoryStore) Replace(handle string, batch []Question, version int) (*QuizSession, error) {
	if len(batch) == 0 {
		return nil, newError(KindInvalidRequest, "replacement batch is empty", nil)
	}

	ms.mu.Lock()
	defer ms.mu.Unlock()

	s, err := ms.lookup(handle)
	if err != nil {
		return nil, err
	}
	if s.Version != version {
		return nil, fmt.Errorf("replace %s at version %d (now %d): %w", handle, version, s.Version, ErrStaleVersion)
	}
	if len(batch) != len(s.Batch) {
		return nil, newError(KindInvalidRequest, fmt.Sprintf("replacement batch has %d questions, session has %d", len(batch), len(s.Batch)), nil)
	}

	s.Batch = make([]Question, len(batch))
	for i, q := range batch {
		s.Batch[i] = q.clone()
	}
	s.Index = 0
	s.Version++
	s.UpdatedAt = ms.now()
	return s.clone(), nil
}

// Delete removes a session
func (ms *MemoryStore) Delete(handle string) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	delete(ms.sessions, handle)
}

// Sweep drops expired and completed sessions and returns how many were removed
func (ms *MemoryStore) Sweep() int {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	removed := 0
	now := ms.now()
	for handle, s := range ms.sessions {
		if s.Completed || now.Sub(s.UpdatedAt) > ms.ttl {
			delete(ms.sessions, handle)
			removed++
		}
	}
	return removed
}

// Size returns the number of sessions held, including expired ones not yet swept
func (ms *MemoryStore) Size() int {
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	return len(ms.sessions)
}
