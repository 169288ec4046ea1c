package auth

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemorySessionStore keeps sessions in process memory with a background
// sweep of expired entries. Sessions do not survive a restart.
type MemorySessionStore struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID]Session
	now      func() time.Time
	done     chan struct{}
}

// NewMemorySessionStore creates a store whose expired sessions are removed
// every sweepInterval.
func NewMemorySessionStore(sweepInterval time.Duration) *MemorySessionStore {
	s := &MemorySessionStore{
		sessions: make(map[uuid.UUID]Session),
		now:      time.Now,
		done:     make(chan struct{}),
	}
	go s.cleanupLoop(sweepInterval)
	return s
}

func (s *MemorySessionStore) Put(ctx context.Context, sess *Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions[sess.ID] = *sess
	return nil
}

func (s *MemorySessionStore) Get(ctx context.Context, id uuid.UUID) (*Session, error) {
	s.mu.RLock()
	sess, ok := s.sessions[id]
	s.mu.RUnlock()

	if !ok || !s.now().Before(sess.ExpiresAt) {
		return nil, ErrSessionNotFound
	}
	return &sess, nil
}

func (s *MemorySessionStore) Delete(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, id)
	return nil
}

// Count returns the number of stored sessions, expired ones included until
// the next sweep.
func (s *MemorySessionStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.sessions)
}

// Close stops the background sweep. It is safe to call multiple times.
func (s *MemorySessionStore) Close() error {
	select {
	case <-s.done:
	default:
		close(s.done)
	}
	return nil
}

func (s *MemorySessionStore) cleanupLoop(interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.cleanup()
		}
	}
}

func (s *MemorySessionStore) cleanup() int {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, sess := range s.sessions {
		if !now.Before(sess.ExpiresAt) {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed
}
