package domain

import (
	"strings"
	"time"
)

// Priority ranks how urgently a notification should surface.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// Valid reports whether p is a known priority.
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

// AtLeastHigh reports whether p is high or urgent.
func (p Priority) AtLeastHigh() bool {
	return p == PriorityHigh || p == PriorityUrgent
}

// NotificationIDPrefix marks notification identifiers.
const NotificationIDPrefix = "ntf_"

// Notification is a message delivered to a user's connected clients.
//
// UserID routes the message and is not part of the client payload.
type Notification struct {
	ID        string         `json:"id"`
	UserID    string         `json:"-"`
	Type      string         `json:"type"`
	Title     string         `json:"title"`
	Message   string         `json:"message"`
	Read      bool           `json:"read"`
	Priority  Priority       `json:"priority"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"createdAt"`
}

// Clone returns a copy with its own metadata map.
func (n *Notification) Clone() *Notification {
	clone := *n
	if n.Metadata != nil {
		clone.Metadata = make(map[string]any, len(n.Metadata))
		for k, v := range n.Metadata {
			clone.Metadata[k] = v
		}
	}
	return &clone
}

// Validate checks the fields a client needs to render the message.
func (n *Notification) Validate() error {
	var violations []string

	if n.UserID == "" {
		violations = append(violations, "user_id is required")
	}
	if n.Type == "" {
		violations = append(violations, "type is required")
	}
	if n.Title == "" {
		violations = append(violations, "title is required")
	}
	if !n.Priority.Valid() {
		violations = append(violations, "priority must be one of low, medium, high, urgent")
	}

	if len(violations) > 0 {
		return ErrNotificationValidation.WithDetails(strings.Join(violations, "; "))
	}
	return nil
}

// NewNotificationID generates an identifier that sorts by creation time.
func NewNotificationID(createdAt time.Time) (string, error) {
	id, err := newULID(createdAt)
	if err != nil {
		return "", err
	}
	return NotificationIDPrefix + id, nil
}
