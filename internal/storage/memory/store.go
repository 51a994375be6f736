package memory

import (
	"sync"
	"time"

	"github.com/mtaadao/mtaa-realtime/internal/core/domain"
	"github.com/mtaadao/mtaa-realtime/pkg/clock"
)

// EvictReason says why the Store removed a session on its own.
type EvictReason string

const (
	// EvictCapacity: the user reached the session cap and this was the oldest.
	EvictCapacity EvictReason = "capacity"
	// EvictExpired: idle for longer than the timeout.
	EvictExpired EvictReason = "expired"
)

// EvictFunc observes sessions the Store removed without a destroy call.
// It runs after the Store lock is released.
type EvictFunc func(s *domain.Session, reason EvictReason)

// Store is the in-memory session registry. Nothing is persisted; a restart
// clears every session.
type Store struct {
	mu sync.Mutex

	// Primary index: SessionID -> Session
	sessions map[string]*domain.Session

	// Secondary index: UserID -> ordered SessionIDs
	userIndex *UserIndex

	clock              clock.Clock
	timeout            time.Duration
	maxSessionsPerUser int
	onEvict            EvictFunc
}

// Option configures the Store.
type Option func(*Store)

// WithClock sets the time source.
func WithClock(c clock.Clock) Option {
	return func(s *Store) {
		s.clock = c
	}
}

// WithTimeout sets the idle timeout.
func WithTimeout(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithMaxSessionsPerUser sets the maximum sessions per user.
func WithMaxSessionsPerUser(max int) Option {
	return func(s *Store) {
		if max > 0 {
			s.maxSessionsPerUser = max
		}
	}
}

// WithEvictFunc registers an eviction observer.
func WithEvictFunc(fn EvictFunc) Option {
	return func(s *Store) {
		s.onEvict = fn
	}
}

// New creates a new in-memory store.
func New(opts ...Option) *Store {
	s := &Store{
		sessions:           make(map[string]*domain.Session),
		userIndex:          NewUserIndex(),
		clock:              clock.Real{},
		timeout:            domain.DefaultSessionTimeout,
		maxSessionsPerUser: domain.DefaultMaxSessionsPerUser,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Timeout returns the idle timeout in effect.
func (s *Store) Timeout() time.Duration {
	return s.timeout
}

// MaxSessionsPerUser returns the per-user cap in effect.
func (s *Store) MaxSessionsPerUser() int {
	return s.maxSessionsPerUser
}

type eviction struct {
	session *domain.Session
	reason  EvictReason
}

func (s *Store) notify(evicted []eviction) {
	if s.onEvict == nil {
		return
	}
	for _, e := range evicted {
		s.onEvict(e.session, e.reason)
	}
}

// CreateSession inserts a session with loginTime = lastActivity = now.
//
// When the user already holds the maximum number of sessions, the oldest
// ones by insertion order are destroyed until there is room. Reusing an
// existing ID replaces that record.
func (s *Store) CreateSession(id, userID string, data domain.UserData, req domain.RequestContext) *domain.Session {
	now := s.clock.Now()
	session := &domain.Session{
		ID:           id,
		UserID:       userID,
		Email:        data.Email,
		Role:         data.Role,
		LoginTime:    now,
		LastActivity: now,
		IPAddress:    req.IPAddress,
		UserAgent:    req.UserAgent,
	}

	var evicted []eviction

	s.mu.Lock()
	s.destroyLocked(id)
	for s.userIndex.Count(userID) >= s.maxSessionsPerUser {
		oldest, ok := s.userIndex.Oldest(userID)
		if !ok {
			break
		}
		if old := s.destroyLocked(oldest); old != nil {
			evicted = append(evicted, eviction{old, EvictCapacity})
		}
	}
	s.sessions[id] = session
	s.userIndex.Add(userID, id)
	out := session.Clone()
	s.mu.Unlock()

	s.notify(evicted)
	return out
}

// GetSession returns a copy of the session, or false if it is absent or
// expired. An expired record is destroyed on the spot. A hit refreshes
// lastActivity.
func (s *Store) GetSession(id string) (*domain.Session, bool) {
	now := s.clock.Now()

	s.mu.Lock()
	session, ok := s.sessions[id]
	if !ok {
		s.mu.Unlock()
		return nil, false
	}
	if session.IsExpired(now, s.timeout) {
		s.destroyLocked(id)
		s.mu.Unlock()
		s.notify([]eviction{{session, EvictExpired}})
		return nil, false
	}
	session.LastActivity = now
	out := session.Clone()
	s.mu.Unlock()

	return out, true
}

// UpdateSessionActivity refreshes lastActivity of a live session. Missing
// or expired sessions are left alone.
func (s *Store) UpdateSessionActivity(id string) {
	now := s.clock.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[id]
	if !ok || session.IsExpired(now, s.timeout) {
		return
	}
	session.LastActivity = now
}

// DestroySession removes a session and reports whether it existed.
// Unknown IDs are ignored.
func (s *Store) DestroySession(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.destroyLocked(id) != nil
}

// destroyLocked removes the record and its index entry and returns the
// removed record, or nil.
func (s *Store) destroyLocked(id string) *domain.Session {
	session, ok := s.sessions[id]
	if !ok {
		return nil
	}
	delete(s.sessions, id)
	s.userIndex.Remove(session.UserID, id)
	return session
}

// DestroyAllUserSessions removes every session of a user and returns how
// many were removed.
func (s *Store) DestroyAllUserSessions(userID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := s.userIndex.Get(userID)
	for _, id := range ids {
		delete(s.sessions, id)
	}
	s.userIndex.Clear(userID)

	return len(ids)
}

// GetUserActiveSessions returns the user's indexed sessions in insertion
// order. Entries are not checked for expiry; a stale one stays listed until
// it is read or swept.
func (s *Store) GetUserActiveSessions(userID string) []*domain.Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := s.userIndex.Get(userID)
	sessions := make([]*domain.Session, 0, len(ids))
	for _, id := range ids {
		if session, ok := s.sessions[id]; ok {
			sessions = append(sessions, session.Clone())
		}
	}
	return sessions
}

// CleanupExpiredSessions destroys every expired session and returns the
// number removed.
func (s *Store) CleanupExpiredSessions() int {
	now := s.clock.Now()

	s.mu.Lock()
	var evicted []eviction
	for id, session := range s.sessions {
		if session.IsExpired(now, s.timeout) {
			s.destroyLocked(id)
			evicted = append(evicted, eviction{session, EvictExpired})
		}
	}
	s.mu.Unlock()

	s.notify(evicted)
	return len(evicted)
}

// Count returns the total number of sessions, expired ones not yet
// reclaimed included.
func (s *Store) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// CountByUser returns the number of indexed sessions for a user.
func (s *Store) CountByUser(userID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.userIndex.Count(userID)
}

// Users returns the number of users holding at least one session.
func (s *Store) Users() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.userIndex.Users()
}

// All returns a copy of every session.
func (s *Store) All() []*domain.Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	sessions := make([]*domain.Session, 0, len(s.sessions))
	for _, session := range s.sessions {
		sessions = append(sessions, session.Clone())
	}
	return sessions
}
