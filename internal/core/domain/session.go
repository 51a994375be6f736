package domain

import (
	"crypto/rand"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// Session registry defaults.
const (
	// DefaultSessionTimeout is the idle time after which a session expires.
	DefaultSessionTimeout = 30 * time.Minute

	// DefaultMaxSessionsPerUser bounds concurrent sessions for one user.
	DefaultMaxSessionsPerUser = 5

	// DefaultSweepInterval is how often expired sessions are reclaimed.
	DefaultSweepInterval = 10 * time.Minute

	MaxSessionIDLength = 256
	MaxUserIDLength    = 128
	MaxUserAgentLength = 512

	// SessionIDPrefix marks server-generated session identifiers.
	SessionIDPrefix = "mts_"
)

// Where clients carry their session id.
const (
	SessionHeader = "x-session-id"
	SessionCookie = "sessionId"
	SessionQuery  = "sessionId"
)

// Session is a live login held by the session registry.
//
// A Session is reachable only while now - LastActivity <= timeout.
type Session struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	Email        string    `json:"email,omitempty"`
	Role         string    `json:"role,omitempty"`
	LoginTime    time.Time `json:"login_time"`
	LastActivity time.Time `json:"last_activity"`
	IPAddress    string    `json:"ip_address,omitempty"`
	UserAgent    string    `json:"user_agent,omitempty"`
}

// UserData is the optional profile data copied into a new session.
type UserData struct {
	Email string
	Role  string
}

// RequestContext carries client details captured at login.
type RequestContext struct {
	IPAddress string
	UserAgent string
}

// IsExpired reports whether the session has been idle longer than timeout
// at instant now. Both the read path and the sweep use this definition.
func (s *Session) IsExpired(now time.Time, timeout time.Duration) bool {
	return now.Sub(s.LastActivity) > timeout
}

// ExpiresAt returns the instant after which the session is expired unless
// touched again.
func (s *Session) ExpiresAt(timeout time.Duration) time.Time {
	return s.LastActivity.Add(timeout)
}

// Clone returns a copy safe to hand out of the registry.
func (s *Session) Clone() *Session {
	clone := *s
	return &clone
}

// Validate checks identifier and length constraints.
func (s *Session) Validate() error {
	var violations []string

	if s.ID == "" {
		violations = append(violations, "session_id is required")
	}
	if len(s.ID) > MaxSessionIDLength {
		violations = append(violations, "session_id exceeds 256 characters")
	}
	if s.UserID == "" {
		violations = append(violations, "user_id is required")
	}
	if len(s.UserID) > MaxUserIDLength {
		violations = append(violations, "user_id exceeds 128 characters")
	}
	if len(s.UserAgent) > MaxUserAgentLength {
		violations = append(violations, "user_agent exceeds 512 characters")
	}

	if len(violations) > 0 {
		return ErrSessionValidation.WithDetails(strings.Join(violations, "; "))
	}
	return nil
}

// NewSessionID generates a session identifier: mts_{ulid_lowercase}.
func NewSessionID() (string, error) {
	id, err := newULID(time.Now())
	if err != nil {
		return "", err
	}
	return SessionIDPrefix + id, nil
}

// ULIDs minted in the same millisecond stay ordered.
var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.Reader, 0)
)

func newULID(t time.Time) (string, error) {
	entropyMu.Lock()
	id, err := ulid.New(ulid.Timestamp(t), entropy)
	entropyMu.Unlock()
	if err != nil {
		return "", ErrInternalServer.WithCause(err)
	}
	return strings.ToLower(id.String()), nil
}
