package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/mtaadao/mtaa-realtime/internal/core/domain"
)

// SessionRepository is the session registry the service drives.
// memory.Store implements it. None of its operations fail.
type SessionRepository interface {
	CreateSession(id, userID string, data domain.UserData, req domain.RequestContext) *domain.Session
	GetSession(id string) (*domain.Session, bool)
	UpdateSessionActivity(id string)
	DestroySession(id string) bool
	DestroyAllUserSessions(userID string) int
	GetUserActiveSessions(userID string) []*domain.Session
	CleanupExpiredSessions() int
	Count() int
	CountByUser(userID string) int
	Users() int
	Timeout() time.Duration
	MaxSessionsPerUser() int
}

// SessionService handles session lifecycle operations.
type SessionService struct {
	repo    SessionRepository
	logger  *slog.Logger
	metrics Metrics
}

// NewSessionService creates a new SessionService.
func NewSessionService(repo SessionRepository, opts ...Option) *SessionService {
	o := buildOptions(opts)
	return &SessionService{
		repo:    repo,
		logger:  o.logger.With("component", "session"),
		metrics: o.metrics,
	}
}

// CreateSessionRequest contains parameters for session creation.
type CreateSessionRequest struct {
	// SessionID is optional; one is generated when empty.
	SessionID string `json:"session_id" validate:"omitempty,max=256"`
	UserID    string `json:"user_id" validate:"required,max=128"`
	Email     string `json:"email" validate:"omitempty,email"`
	Role      string `json:"role" validate:"omitempty,max=64"`
	IPAddress string `json:"ip_address" validate:"omitempty,ip"`
	UserAgent string `json:"user_agent" validate:"max=512"`
}

// Create registers a new session. When the user is at the session cap the
// oldest session is evicted silently.
func (s *SessionService) Create(ctx context.Context, req *CreateSessionRequest) (*domain.Session, error) {
	if err := validateStruct(domain.ErrSessionValidation, req); err != nil {
		return nil, err
	}

	id := req.SessionID
	if id == "" {
		var err error
		if id, err = domain.NewSessionID(); err != nil {
			return nil, err
		}
	}

	session := s.repo.CreateSession(id, req.UserID,
		domain.UserData{Email: req.Email, Role: req.Role},
		domain.RequestContext{IPAddress: req.IPAddress, UserAgent: req.UserAgent},
	)

	s.metrics.IncSessionCreated()
	s.metrics.SetSessionActive(float64(s.repo.Count()))
	s.logger.InfoContext(ctx, "session created",
		"session_id", session.ID,
		"user_id", session.UserID,
		"user_sessions", s.repo.CountByUser(session.UserID))

	return session, nil
}

// Get returns a live session and extends its life.
func (s *SessionService) Get(ctx context.Context, id string) (*domain.Session, error) {
	if id == "" {
		return nil, domain.ErrMissingArgument.WithDetails("session_id is required")
	}

	session, ok := s.repo.GetSession(id)
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return session, nil
}

// Touch refreshes a live session's activity. Missing sessions are ignored.
func (s *SessionService) Touch(_ context.Context, id string) {
	if id == "" {
		return
	}
	s.repo.UpdateSessionActivity(id)
}

// Destroy removes a session and reports whether it existed.
func (s *SessionService) Destroy(ctx context.Context, id string) (bool, error) {
	if id == "" {
		return false, domain.ErrMissingArgument.WithDetails("session_id is required")
	}

	removed := s.repo.DestroySession(id)
	if removed {
		s.metrics.AddSessionsDestroyed("revoked", 1)
		s.metrics.SetSessionActive(float64(s.repo.Count()))
		s.logger.InfoContext(ctx, "session revoked", "session_id", id)
	}
	return removed, nil
}

// DestroyAllForUser removes every session of a user.
func (s *SessionService) DestroyAllForUser(ctx context.Context, userID string) (int, error) {
	if userID == "" {
		return 0, domain.ErrMissingArgument.WithDetails("user_id is required")
	}

	n := s.repo.DestroyAllUserSessions(userID)
	s.metrics.AddSessionsDestroyed("logout_all", n)
	s.metrics.SetSessionActive(float64(s.repo.Count()))
	s.logger.InfoContext(ctx, "user sessions revoked", "user_id", userID, "count", n)

	return n, nil
}

// ListForUser returns the user's indexed sessions in login order. Entries
// may be stale until they are next read or swept.
func (s *SessionService) ListForUser(_ context.Context, userID string) ([]*domain.Session, error) {
	if userID == "" {
		return nil, domain.ErrMissingArgument.WithDetails("user_id is required")
	}
	return s.repo.GetUserActiveSessions(userID), nil
}

// Cleanup reclaims expired sessions and returns how many were removed.
func (s *SessionService) Cleanup(ctx context.Context) int {
	n := s.repo.CleanupExpiredSessions()
	s.metrics.SetSessionActive(float64(s.repo.Count()))
	if n > 0 {
		s.logger.InfoContext(ctx, "expired sessions reclaimed", "count", n)
	}
	return n
}

// ExpiresAt returns when session expires unless touched again.
func (s *SessionService) ExpiresAt(session *domain.Session) time.Time {
	return session.ExpiresAt(s.repo.Timeout())
}

// SessionStats summarizes the registry.
type SessionStats struct {
	Sessions           int           `json:"sessions"`
	Users              int           `json:"users"`
	Timeout            time.Duration `json:"timeout"`
	MaxSessionsPerUser int           `json:"max_sessions_per_user"`
}

// Stats returns registry counts and limits.
func (s *SessionService) Stats() SessionStats {
	return SessionStats{
		Sessions:           s.repo.Count(),
		Users:              s.repo.Users(),
		Timeout:            s.repo.Timeout(),
		MaxSessionsPerUser: s.repo.MaxSessionsPerUser(),
	}
}
