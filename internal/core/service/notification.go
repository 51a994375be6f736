package service

import (
	"context"
	"log/slog"

	"github.com/mtaadao/mtaa-realtime/internal/core/domain"
	"github.com/mtaadao/mtaa-realtime/pkg/clock"
)

// Publisher pushes a notification to a user's live connections and returns
// how many connections it was queued on.
type Publisher interface {
	Deliver(userID string, n *domain.Notification) int
}

// NotificationFilter selects inbox entries.
type NotificationFilter string

const (
	FilterAll    NotificationFilter = "all"
	FilterUnread NotificationFilter = "unread"
	FilterHigh   NotificationFilter = "high"
)

// Valid reports whether f is a known filter.
func (f NotificationFilter) Valid() bool {
	switch f {
	case FilterAll, FilterUnread, FilterHigh:
		return true
	}
	return false
}

// Match reports whether n passes the filter.
func (f NotificationFilter) Match(n *domain.Notification) bool {
	switch f {
	case FilterUnread:
		return !n.Read
	case FilterHigh:
		return n.Priority.AtLeastHigh()
	default:
		return true
	}
}

// Inbox limits.
const (
	DefaultInboxLimit = 50
	MaxInboxLimit     = 200
)

// InboxRepository persists notifications per user, newest first.
type InboxRepository interface {
	Save(ctx context.Context, n *domain.Notification) error
	List(ctx context.Context, userID string, filter NotificationFilter, limit int) ([]*domain.Notification, error)
	UnreadCount(ctx context.Context, userID string) (int, error)
	// MarkRead returns domain.ErrNotificationNotFound for unknown IDs.
	MarkRead(ctx context.Context, userID, id string) error
	MarkAllRead(ctx context.Context, userID string) (int, error)
	// Delete returns domain.ErrNotificationNotFound for unknown IDs.
	Delete(ctx context.Context, userID, id string) error
}

// NotificationService publishes notifications and serves the inbox.
type NotificationService struct {
	inbox     InboxRepository
	publisher Publisher
	logger    *slog.Logger
	clock     clock.Clock
	metrics   Metrics
}

// NewNotificationService creates a new NotificationService.
func NewNotificationService(inbox InboxRepository, publisher Publisher, opts ...Option) *NotificationService {
	o := buildOptions(opts)
	return &NotificationService{
		inbox:     inbox,
		publisher: publisher,
		logger:    o.logger.With("component", "notification"),
		clock:     o.clock,
		metrics:   o.metrics,
	}
}

// PublishRequest contains parameters for a new notification.
type PublishRequest struct {
	UserID   string          `json:"user_id" validate:"required,max=128"`
	Type     string          `json:"type" validate:"required,max=64"`
	Title    string          `json:"title" validate:"required,max=200"`
	Message  string          `json:"message" validate:"required,max=2000"`
	Priority domain.Priority `json:"priority" validate:"omitempty,oneof=low medium high urgent"`
	Metadata map[string]any  `json:"metadata"`
}

// PublishResult reports what happened to a published notification.
type PublishResult struct {
	Notification *domain.Notification `json:"notification"`
	Delivered    int                  `json:"delivered"`
	Persisted    bool                 `json:"persisted"`
}

// Publish stores a notification in the user's inbox and pushes it to the
// user's live connections. A storage failure is logged and delivery still
// happens.
func (s *NotificationService) Publish(ctx context.Context, req *PublishRequest) (*PublishResult, error) {
	if err := validateStruct(domain.ErrNotificationValidation, req); err != nil {
		return nil, err
	}

	priority := req.Priority
	if priority == "" {
		priority = domain.PriorityMedium
	}

	now := s.clock.Now()
	id, err := domain.NewNotificationID(now)
	if err != nil {
		return nil, err
	}

	n := &domain.Notification{
		ID:        id,
		UserID:    req.UserID,
		Type:      req.Type,
		Title:     req.Title,
		Message:   req.Message,
		Priority:  priority,
		Metadata:  req.Metadata,
		CreatedAt: now,
	}
	if err := n.Validate(); err != nil {
		return nil, err
	}

	result := &PublishResult{Notification: n}

	if err := s.inbox.Save(ctx, n); err != nil {
		s.logger.ErrorContext(ctx, "persist notification failed",
			"notification_id", n.ID, "user_id", n.UserID, "error", err)
	} else {
		result.Persisted = true
	}

	result.Delivered = s.publisher.Deliver(n.UserID, n)
	s.metrics.IncNotificationPublished(string(priority))

	s.logger.InfoContext(ctx, "notification published",
		"notification_id", n.ID,
		"user_id", n.UserID,
		"type", n.Type,
		"priority", n.Priority,
		"delivered", result.Delivered)

	return result, nil
}

// InboxPage is a filtered slice of a user's inbox.
type InboxPage struct {
	Items       []*domain.Notification `json:"items"`
	UnreadCount int                    `json:"unread_count"`
}

// List returns up to limit notifications, newest first, with the user's
// total unread count.
func (s *NotificationService) List(ctx context.Context, userID string, filter NotificationFilter, limit int) (*InboxPage, error) {
	if userID == "" {
		return nil, domain.ErrMissingArgument.WithDetails("user_id is required")
	}
	if filter == "" {
		filter = FilterAll
	}
	if !filter.Valid() {
		return nil, domain.ErrInvalidArgument.WithDetails("filter must be one of all, unread, high")
	}
	switch {
	case limit <= 0:
		limit = DefaultInboxLimit
	case limit > MaxInboxLimit:
		limit = MaxInboxLimit
	}

	items, err := s.inbox.List(ctx, userID, filter, limit)
	if err != nil {
		return nil, domain.ErrStorageError.WithCause(err)
	}
	unread, err := s.inbox.UnreadCount(ctx, userID)
	if err != nil {
		return nil, domain.ErrStorageError.WithCause(err)
	}

	if items == nil {
		items = []*domain.Notification{}
	}
	return &InboxPage{Items: items, UnreadCount: unread}, nil
}

// UnreadCount returns the number of unread notifications of a user.
func (s *NotificationService) UnreadCount(ctx context.Context, userID string) (int, error) {
	if userID == "" {
		return 0, domain.ErrMissingArgument.WithDetails("user_id is required")
	}
	n, err := s.inbox.UnreadCount(ctx, userID)
	if err != nil {
		return 0, domain.ErrStorageError.WithCause(err)
	}
	return n, nil
}

// MarkRead marks one notification read.
func (s *NotificationService) MarkRead(ctx context.Context, userID, id string) error {
	if userID == "" || id == "" {
		return domain.ErrMissingArgument.WithDetails("user_id and notification id are required")
	}
	if err := s.inbox.MarkRead(ctx, userID, id); err != nil {
		if domain.IsDomainError(err, "") {
			return err
		}
		return domain.ErrStorageError.WithCause(err)
	}
	return nil
}

// MarkAllRead marks every notification of a user read and returns how many
// changed.
func (s *NotificationService) MarkAllRead(ctx context.Context, userID string) (int, error) {
	if userID == "" {
		return 0, domain.ErrMissingArgument.WithDetails("user_id is required")
	}
	n, err := s.inbox.MarkAllRead(ctx, userID)
	if err != nil {
		return 0, domain.ErrStorageError.WithCause(err)
	}
	return n, nil
}

// Delete removes one notification from a user's inbox.
func (s *NotificationService) Delete(ctx context.Context, userID, id string) error {
	if userID == "" || id == "" {
		return domain.ErrMissingArgument.WithDetails("user_id and notification id are required")
	}
	if err := s.inbox.Delete(ctx, userID, id); err != nil {
		if domain.IsDomainError(err, "") {
			return err
		}
		return domain.ErrStorageError.WithCause(err)
	}
	s.logger.InfoContext(ctx, "notification deleted", "notification_id", id, "user_id", userID)
	return nil
}
