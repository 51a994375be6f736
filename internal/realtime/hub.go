package realtime

import (
	"errors"
	"log/slog"
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/mtaadao/mtaa-realtime/internal/core/domain"
	"github.com/mtaadao/mtaa-realtime/internal/core/service"
)

// DefaultSendQueue is the per-connection queue length.
const DefaultSendQueue = 64

var (
	// ErrConnNotFound is returned when a connection id is unknown.
	ErrConnNotFound = errors.New("realtime: connection not found")

	// ErrHubClosed is returned by Register after Close.
	ErrHubClosed = errors.New("realtime: hub closed")
)

// Metrics receives hub counters. metric.Registry satisfies it.
type Metrics interface {
	IncDelivery(channel string)
	IncDeliveryDropped(channel string)
	IncConnections(channel string)
	DecConnections(channel string)
}

type nopMetrics struct{}

func (nopMetrics) IncDelivery(string)        {}
func (nopMetrics) IncDeliveryDropped(string) {}
func (nopMetrics) IncConnections(string)     {}
func (nopMetrics) DecConnections(string)     {}

// Conn is one registered client connection.
type Conn struct {
	id      string
	channel Channel
	send    chan *domain.Notification
	done    chan struct{}
	once    sync.Once

	// userID is guarded by Hub.mu.
	userID string
}

// ID returns the connection id.
func (c *Conn) ID() string { return c.id }

// Channel returns the transport the connection uses.
func (c *Conn) Channel() Channel { return c.channel }

// Messages yields notifications queued for this connection.
func (c *Conn) Messages() <-chan *domain.Notification { return c.send }

// Done is closed when the connection is unregistered.
func (c *Conn) Done() <-chan struct{} { return c.done }

func (c *Conn) close() {
	c.once.Do(func() { close(c.done) })
}

// Hub is the registry of live connections.
type Hub struct {
	mu     sync.RWMutex
	conns  map[string]*Conn
	byUser map[string]map[string]*Conn
	closed bool

	queueSize int
	metrics   Metrics
	logger    *slog.Logger
}

var _ service.Publisher = (*Hub)(nil)

// HubOption configures a Hub.
type HubOption func(*Hub)

// WithQueueSize sets the per-connection send queue length.
func WithQueueSize(n int) HubOption {
	return func(h *Hub) {
		if n > 0 {
			h.queueSize = n
		}
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(m Metrics) HubOption {
	return func(h *Hub) {
		if m != nil {
			h.metrics = m
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) HubOption {
	return func(h *Hub) {
		if l != nil {
			h.logger = l
		}
	}
}

// NewHub creates an empty hub.
func NewHub(opts ...HubOption) *Hub {
	h := &Hub{
		conns:     make(map[string]*Conn),
		byUser:    make(map[string]map[string]*Conn),
		queueSize: DefaultSendQueue,
		metrics:   nopMetrics{},
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.logger = h.logger.With("component", "hub")
	return h
}

// Register adds an unbound connection.
func (h *Hub) Register(channel Channel) (*Conn, error) {
	c := &Conn{
		id:      uuid.NewString(),
		channel: channel,
		send:    make(chan *domain.Notification, h.queueSize),
		done:    make(chan struct{}),
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil, ErrHubClosed
	}
	h.conns[c.id] = c
	h.mu.Unlock()

	h.metrics.IncConnections(string(channel))
	h.logger.Debug("connection registered", "conn_id", c.id, "channel", channel)
	return c, nil
}

// Authenticate binds a connection to userID. Binding again moves the
// connection to the new user.
func (h *Hub) Authenticate(connID, userID string) error {
	if userID == "" {
		return domain.ErrMissingArgument.WithDetails("userId is required")
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	c, ok := h.conns[connID]
	if !ok {
		return ErrConnNotFound
	}
	if c.userID != "" {
		h.unbindLocked(c)
	}
	c.userID = userID
	set, ok := h.byUser[userID]
	if !ok {
		set = make(map[string]*Conn)
		h.byUser[userID] = set
	}
	set[c.id] = c

	h.logger.Debug("connection authenticated", "conn_id", connID, "user_id", userID)
	return nil
}

// Unregister removes a connection and closes its Done channel.
// Unregistering twice is a no-op.
func (h *Hub) Unregister(c *Conn) {
	h.mu.Lock()
	_, ok := h.conns[c.id]
	if ok {
		delete(h.conns, c.id)
		h.unbindLocked(c)
	}
	h.mu.Unlock()

	c.close()
	if ok {
		h.metrics.DecConnections(string(c.channel))
		h.logger.Debug("connection unregistered", "conn_id", c.id, "channel", c.channel)
	}
}

func (h *Hub) unbindLocked(c *Conn) {
	if c.userID == "" {
		return
	}
	if set, ok := h.byUser[c.userID]; ok {
		delete(set, c.id)
		if len(set) == 0 {
			delete(h.byUser, c.userID)
		}
	}
	c.userID = ""
}

// UserOf returns the user a connection is bound to.
func (h *Hub) UserOf(connID string) (string, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	c, ok := h.conns[connID]
	if !ok || c.userID == "" {
		return "", false
	}
	return c.userID, true
}

// Deliver queues n on every connection bound to userID and returns how
// many accepted it.
func (h *Hub) Deliver(userID string, n *domain.Notification) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	delivered := 0
	for _, c := range h.byUser[userID] {
		select {
		case c.send <- n:
			delivered++
			h.metrics.IncDelivery(string(c.channel))
		default:
			h.metrics.IncDeliveryDropped(string(c.channel))
			h.logger.Warn("send queue full, notification dropped",
				"conn_id", c.id,
				"channel", c.channel,
				"user_id", userID,
				"notification_id", n.ID)
		}
	}
	return delivered
}

// DisconnectUser unregisters every connection bound to userID and returns
// how many were closed.
func (h *Hub) DisconnectUser(userID string) int {
	h.mu.RLock()
	conns := make([]*Conn, 0, len(h.byUser[userID]))
	for _, c := range h.byUser[userID] {
		conns = append(conns, c)
	}
	h.mu.RUnlock()

	for _, c := range conns {
		h.Unregister(c)
	}
	return len(conns)
}

// Count returns the number of live connections.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

// UserCount returns the number of users with at least one bound connection.
func (h *Hub) UserCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.byUser)
}

// OnlineUsers returns the sorted ids of users with at least one bound
// connection.
func (h *Hub) OnlineUsers() []string {
	h.mu.RLock()
	users := make([]string, 0, len(h.byUser))
	for id := range h.byUser {
		users = append(users, id)
	}
	h.mu.RUnlock()

	slices.Sort(users)
	return users
}

// ConnectionsFor returns how many connections are bound to userID.
func (h *Hub) ConnectionsFor(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.byUser[userID])
}

// Close unregisters every connection and rejects new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	conns := make([]*Conn, 0, len(h.conns))
	for _, c := range h.conns {
		conns = append(conns, c)
	}
	h.mu.Unlock()

	for _, c := range conns {
		h.Unregister(c)
	}
}
