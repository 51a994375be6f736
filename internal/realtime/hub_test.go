package realtime

import (
	"errors"
	"sync"
	"testing"

	"github.com/mtaadao/mtaa-realtime/internal/core/domain"
)

type countingMetrics struct {
	mu        sync.Mutex
	delivered map[string]int
	dropped   map[string]int
	live      map[string]int
}

func newCountingMetrics() *countingMetrics {
	return &countingMetrics{
		delivered: map[string]int{},
		dropped:   map[string]int{},
		live:      map[string]int{},
	}
}

func (m *countingMetrics) IncDelivery(ch string) {
	m.mu.Lock()
	m.delivered[ch]++
	m.mu.Unlock()
}

func (m *countingMetrics) IncDeliveryDropped(ch string) {
	m.mu.Lock()
	m.dropped[ch]++
	m.mu.Unlock()
}

func (m *countingMetrics) IncConnections(ch string) {
	m.mu.Lock()
	m.live[ch]++
	m.mu.Unlock()
}

func (m *countingMetrics) DecConnections(ch string) {
	m.mu.Lock()
	m.live[ch]--
	m.mu.Unlock()
}

func testNotification(id string) *domain.Notification {
	return &domain.Notification{
		ID:       id,
		UserID:   "u1",
		Type:     "system",
		Title:    "Hello",
		Message:  "World",
		Priority: domain.PriorityMedium,
	}
}

func TestHub_DeliverToBoundConnections(t *testing.T) {
	hub := NewHub()

	a, _ := hub.Register(ChannelWebSocket)
	b, _ := hub.Register(ChannelSSE)
	unbound, _ := hub.Register(ChannelWebSocket)

	if err := hub.Authenticate(a.ID(), "u1"); err != nil {
		t.Fatal(err)
	}
	if err := hub.Authenticate(b.ID(), "u1"); err != nil {
		t.Fatal(err)
	}

	n := testNotification("ntf_1")
	if got := hub.Deliver("u1", n); got != 2 {
		t.Fatalf("expected 2 deliveries, got %d", got)
	}

	for _, c := range []*Conn{a, b} {
		select {
		case got := <-c.Messages():
			if got.ID != "ntf_1" {
				t.Errorf("conn %s: expected ntf_1, got %s", c.ID(), got.ID)
			}
		default:
			t.Errorf("conn %s: nothing queued", c.ID())
		}
	}
	select {
	case <-unbound.Messages():
		t.Error("unbound connection must not receive notifications")
	default:
	}

	if got := hub.Deliver("nobody", n); got != 0 {
		t.Errorf("expected 0 deliveries for unknown user, got %d", got)
	}
}

func TestHub_AuthenticateErrors(t *testing.T) {
	hub := NewHub()
	c, _ := hub.Register(ChannelWebSocket)

	if err := hub.Authenticate(c.ID(), ""); !errors.Is(err, domain.ErrMissingArgument) {
		t.Errorf("expected ErrMissingArgument, got %v", err)
	}
	if err := hub.Authenticate("missing", "u1"); !errors.Is(err, ErrConnNotFound) {
		t.Errorf("expected ErrConnNotFound, got %v", err)
	}
}

func TestHub_Rebind(t *testing.T) {
	hub := NewHub()
	c, _ := hub.Register(ChannelWebSocket)

	_ = hub.Authenticate(c.ID(), "u1")
	_ = hub.Authenticate(c.ID(), "u2")

	if hub.ConnectionsFor("u1") != 0 {
		t.Error("u1 should have no connections after rebind")
	}
	if hub.ConnectionsFor("u2") != 1 {
		t.Error("u2 should own the connection")
	}
	if user, ok := hub.UserOf(c.ID()); !ok || user != "u2" {
		t.Errorf("expected u2, got %q", user)
	}
	if hub.UserCount() != 1 {
		t.Errorf("expected 1 user, got %d", hub.UserCount())
	}
}

func TestHub_OnlineUsers(t *testing.T) {
	hub := NewHub()
	if got := hub.OnlineUsers(); len(got) != 0 {
		t.Fatalf("expected nobody online, got %v", got)
	}

	// An unauthenticated connection is not presence.
	_, _ = hub.Register(ChannelWebSocket)
	for _, user := range []string{"u3", "u1", "u3"} {
		c, _ := hub.Register(ChannelSSE)
		_ = hub.Authenticate(c.ID(), user)
	}
	got := hub.OnlineUsers()
	if len(got) != 2 || got[0] != "u1" || got[1] != "u3" {
		t.Errorf("OnlineUsers() = %v, want [u1 u3]", got)
	}

	hub.DisconnectUser("u1")
	if got := hub.OnlineUsers(); len(got) != 1 || got[0] != "u3" {
		t.Errorf("after disconnect OnlineUsers() = %v", got)
	}
}

func TestHub_FullQueueDrops(t *testing.T) {
	m := newCountingMetrics()
	hub := NewHub(WithQueueSize(2), WithMetrics(m))
	c, _ := hub.Register(ChannelSSE)
	_ = hub.Authenticate(c.ID(), "u1")

	hub.Deliver("u1", testNotification("ntf_1"))
	hub.Deliver("u1", testNotification("ntf_2"))
	if got := hub.Deliver("u1", testNotification("ntf_3")); got != 0 {
		t.Errorf("expected drop on full queue, got %d deliveries", got)
	}

	if m.delivered["sse"] != 2 || m.dropped["sse"] != 1 {
		t.Errorf("unexpected metrics: delivered=%d dropped=%d", m.delivered["sse"], m.dropped["sse"])
	}

	// Order is preserved for what was accepted.
	if first := <-c.Messages(); first.ID != "ntf_1" {
		t.Errorf("expected ntf_1 first, got %s", first.ID)
	}
	if second := <-c.Messages(); second.ID != "ntf_2" {
		t.Errorf("expected ntf_2 second, got %s", second.ID)
	}
}

func TestHub_Unregister(t *testing.T) {
	m := newCountingMetrics()
	hub := NewHub(WithMetrics(m))
	c, _ := hub.Register(ChannelWebSocket)
	_ = hub.Authenticate(c.ID(), "u1")

	hub.Unregister(c)
	hub.Unregister(c)

	select {
	case <-c.Done():
	default:
		t.Error("Done should be closed after Unregister")
	}
	if hub.Count() != 0 || hub.UserCount() != 0 {
		t.Errorf("expected empty hub, got %d conns %d users", hub.Count(), hub.UserCount())
	}
	if m.live["websocket"] != 0 {
		t.Errorf("expected connection gauge back to 0, got %d", m.live["websocket"])
	}
	if got := hub.Deliver("u1", testNotification("ntf_1")); got != 0 {
		t.Errorf("expected no delivery after unregister, got %d", got)
	}
}

func TestHub_Close(t *testing.T) {
	hub := NewHub()
	a, _ := hub.Register(ChannelWebSocket)
	b, _ := hub.Register(ChannelSSE)

	hub.Close()

	for _, c := range []*Conn{a, b} {
		select {
		case <-c.Done():
		default:
			t.Errorf("conn %s not closed", c.ID())
		}
	}
	if _, err := hub.Register(ChannelSSE); !errors.Is(err, ErrHubClosed) {
		t.Errorf("expected ErrHubClosed, got %v", err)
	}
}

func TestHub_ConcurrentDeliver(t *testing.T) {
	hub := NewHub(WithQueueSize(1000))
	c, _ := hub.Register(ChannelWebSocket)
	_ = hub.Authenticate(c.ID(), "u1")

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				hub.Deliver("u1", testNotification("ntf"))
			}
		}()
	}
	wg.Wait()

	if got := len(c.Messages()); got != 500 {
		t.Errorf("expected 500 queued, got %d", got)
	}
}

func TestHub_DisconnectUser(t *testing.T) {
	hub := NewHub()
	a, _ := hub.Register(ChannelWebSocket)
	b, _ := hub.Register(ChannelSSE)
	other, _ := hub.Register(ChannelSSE)
	_ = hub.Authenticate(a.ID(), "u1")
	_ = hub.Authenticate(b.ID(), "u1")
	_ = hub.Authenticate(other.ID(), "u2")

	if got := hub.DisconnectUser("u1"); got != 2 {
		t.Errorf("expected 2 disconnected, got %d", got)
	}
	if hub.ConnectionsFor("u1") != 0 || hub.ConnectionsFor("u2") != 1 {
		t.Error("only u1 connections should be gone")
	}
	if hub.DisconnectUser("u1") != 0 {
		t.Error("second disconnect should find nothing")
	}
}
