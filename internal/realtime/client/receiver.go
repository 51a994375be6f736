package client

import (
	"log/slog"

	"github.com/mtaadao/mtaa-realtime/internal/core/domain"
)

// Deliverer accepts a notification from any channel.
type Deliverer interface {
	Deliver(n *domain.Notification)
}

// DesktopNotifier raises native notifications.
type DesktopNotifier interface {
	// Permitted reports whether the user allowed native notifications.
	Permitted() bool
	Notify(n *domain.Notification) error
}

// Receiver is the single delivery point both channels call.
type Receiver struct {
	cache    *Cache
	notifier DesktopNotifier
	onNew    func(*domain.Notification)
	logger   *slog.Logger
}

var _ Deliverer = (*Receiver)(nil)

// ReceiverOption configures a Receiver.
type ReceiverOption func(*Receiver)

// WithDesktopNotifier enables native notifications.
func WithDesktopNotifier(n DesktopNotifier) ReceiverOption {
	return func(r *Receiver) { r.notifier = n }
}

// WithOnNew registers a callback for each newly merged notification.
// It runs on the delivering goroutine.
func WithOnNew(fn func(*domain.Notification)) ReceiverOption {
	return func(r *Receiver) { r.onNew = fn }
}

// WithReceiverLogger sets the logger.
func WithReceiverLogger(l *slog.Logger) ReceiverOption {
	return func(r *Receiver) {
		if l != nil {
			r.logger = l
		}
	}
}

// NewReceiver creates a receiver merging into cache.
func NewReceiver(cache *Cache, opts ...ReceiverOption) *Receiver {
	r := &Receiver{
		cache:  cache,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Cache returns the backing cache.
func (r *Receiver) Cache() *Cache { return r.cache }

// Deliver merges n into the cache. Duplicates are dropped silently.
func (r *Receiver) Deliver(n *domain.Notification) {
	if n == nil || n.ID == "" {
		r.logger.Warn("notification without id ignored")
		return
	}
	if !r.cache.Merge(n) {
		return
	}
	if r.onNew != nil {
		r.onNew(n)
	}
	if r.notifier != nil && r.notifier.Permitted() {
		go r.notify(n.Clone())
	}
}

// notify is best effort and must never take the receiver down.
func (r *Receiver) notify(n *domain.Notification) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("desktop notifier panicked", "panic", rec)
		}
	}()
	if err := r.notifier.Notify(n); err != nil {
		r.logger.Debug("desktop notification failed", "notification_id", n.ID, "error", err)
	}
}
