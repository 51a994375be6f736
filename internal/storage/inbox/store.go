// Package inbox persists per-user notification history on a KVEngine.
//
// Keys are laid out as ntf/<escaped user id>/<notification id>. Notification
// ids embed a ULID, so key order is creation order and a reverse prefix scan
// yields the newest entries first.
package inbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"

	"github.com/mtaadao/mtaa-realtime/internal/core/domain"
	"github.com/mtaadao/mtaa-realtime/internal/core/service"
	"github.com/mtaadao/mtaa-realtime/internal/storage"
)

const keyPrefix = "ntf/"

// Store implements service.InboxRepository.
type Store struct {
	kv      storage.KVEngine
	maxKeep int
	logger  *slog.Logger
}

var _ service.InboxRepository = (*Store)(nil)

// Option configures a Store.
type Option func(*Store)

// WithMaxPerUser caps the entries kept per user. Older entries are pruned
// on Save. Zero keeps everything.
func WithMaxPerUser(n int) Option {
	return func(s *Store) {
		if n >= 0 {
			s.maxKeep = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// New creates an inbox over kv.
func New(kv storage.KVEngine, opts ...Option) *Store {
	s := &Store{
		kv:     kv,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "inbox")
	return s
}

func userPrefix(userID string) []byte {
	return []byte(keyPrefix + url.PathEscape(userID) + "/")
}

func entryKey(userID, id string) []byte {
	return append(userPrefix(userID), id...)
}

// Save stores n under its owner.
func (s *Store) Save(ctx context.Context, n *domain.Notification) error {
	if n == nil || n.UserID == "" || n.ID == "" {
		return domain.ErrNotificationValidation.WithDetails("notification needs id and user_id")
	}
	value, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}
	if err := s.kv.Set(ctx, entryKey(n.UserID, n.ID), value); err != nil {
		return domain.ErrStorageError.WithCause(err)
	}
	if s.maxKeep > 0 {
		if err := s.prune(ctx, n.UserID); err != nil {
			s.logger.Warn("inbox prune failed", "user_id", n.UserID, "error", err)
		}
	}
	return nil
}

// prune deletes everything past the newest maxKeep entries.
func (s *Store) prune(ctx context.Context, userID string) error {
	var stale [][]byte
	seen := 0
	err := s.kv.ScanReverse(ctx, userPrefix(userID), func(key, _ []byte) bool {
		seen++
		if seen > s.maxKeep {
			stale = append(stale, key)
		}
		return true
	})
	if err != nil {
		return err
	}
	for _, key := range stale {
		if err := s.kv.Delete(ctx, key); err != nil {
			return err
		}
	}
	return nil
}

// List returns up to limit entries passing filter, newest first.
// A limit of zero or less means no limit.
func (s *Store) List(ctx context.Context, userID string, filter service.NotificationFilter, limit int) ([]*domain.Notification, error) {
	out := make([]*domain.Notification, 0)
	var decodeErr error
	err := s.kv.ScanReverse(ctx, userPrefix(userID), func(key, value []byte) bool {
		n, err := decode(userID, value)
		if err != nil {
			decodeErr = fmt.Errorf("decode %s: %w", key, err)
			return false
		}
		if filter.Match(n) {
			out = append(out, n)
		}
		return limit <= 0 || len(out) < limit
	})
	if err != nil {
		return nil, domain.ErrStorageError.WithCause(err)
	}
	if decodeErr != nil {
		return nil, domain.ErrStorageError.WithCause(decodeErr)
	}
	return out, nil
}

// UnreadCount counts unread entries for userID.
func (s *Store) UnreadCount(ctx context.Context, userID string) (int, error) {
	count := 0
	err := s.kv.Scan(ctx, userPrefix(userID), func(_, value []byte) bool {
		var n domain.Notification
		if json.Unmarshal(value, &n) == nil && !n.Read {
			count++
		}
		return true
	})
	if err != nil {
		return 0, domain.ErrStorageError.WithCause(err)
	}
	return count, nil
}

// MarkRead flags one entry as read. Marking an already read entry is a no-op.
func (s *Store) MarkRead(ctx context.Context, userID, id string) error {
	key := entryKey(userID, id)
	value, err := s.kv.Get(ctx, key)
	if err != nil {
		if errors.Is(err, storage.ErrKeyNotFound) {
			return domain.ErrNotificationNotFound.WithDetails(id)
		}
		return domain.ErrStorageError.WithCause(err)
	}
	n, err := decode(userID, value)
	if err != nil {
		return domain.ErrStorageError.WithCause(err)
	}
	if n.Read {
		return nil
	}
	n.Read = true
	encoded, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}
	if err := s.kv.Set(ctx, key, encoded); err != nil {
		return domain.ErrStorageError.WithCause(err)
	}
	return nil
}

// MarkAllRead flags every unread entry for userID and returns how many
// changed.
func (s *Store) MarkAllRead(ctx context.Context, userID string) (int, error) {
	var batch []storage.KV
	var encodeErr error
	err := s.kv.Scan(ctx, userPrefix(userID), func(key, value []byte) bool {
		n, err := decode(userID, value)
		if err != nil || n.Read {
			return true
		}
		n.Read = true
		encoded, err := json.Marshal(n)
		if err != nil {
			encodeErr = err
			return false
		}
		batch = append(batch, storage.KV{Key: key, Value: encoded})
		return true
	})
	if err == nil {
		err = encodeErr
	}
	if err != nil {
		return 0, domain.ErrStorageError.WithCause(err)
	}
	if err := s.kv.SetBatch(ctx, batch); err != nil {
		return 0, domain.ErrStorageError.WithCause(err)
	}
	return len(batch), nil
}

// Delete removes one entry. Unknown ids, including another user's, are
// reported as not found.
func (s *Store) Delete(ctx context.Context, userID, id string) error {
	key := entryKey(userID, id)
	if _, err := s.kv.Get(ctx, key); err != nil {
		if errors.Is(err, storage.ErrKeyNotFound) {
			return domain.ErrNotificationNotFound.WithDetails(id)
		}
		return domain.ErrStorageError.WithCause(err)
	}
	if err := s.kv.Delete(ctx, key); err != nil {
		return domain.ErrStorageError.WithCause(err)
	}
	return nil
}

// decode restores a stored entry. UserID is not part of the encoded form.
func decode(userID string, value []byte) (*domain.Notification, error) {
	var n domain.Notification
	if err := json.Unmarshal(value, &n); err != nil {
		return nil, err
	}
	n.UserID = userID
	return &n, nil
}
