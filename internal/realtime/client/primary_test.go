package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/mtaadao/mtaa-realtime/internal/core/domain"
	"github.com/mtaadao/mtaa-realtime/internal/realtime"
)

type stateLog struct {
	mu     sync.Mutex
	events []bool
}

func (s *stateLog) record(v bool) {
	s.mu.Lock()
	s.events = append(s.events, v)
	s.mu.Unlock()
}

func (s *stateLog) snapshot() []bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]bool(nil), s.events...)
}

func startHubServer(t *testing.T, sessions realtime.SessionLookup) (*realtime.Hub, *httptest.Server) {
	t.Helper()
	hub := realtime.NewHub()
	mux := http.NewServeMux()
	mux.Handle(WebSocketPath, realtime.NewWSHandler(hub, sessions, realtime.WSConfig{}, nil))
	mux.Handle(StreamPath, realtime.NewSSEHandler(hub, sessions, time.Hour, nil, nil))
	srv := httptest.NewServer(mux)
	t.Cleanup(func() {
		hub.Close()
		srv.Close()
	})
	return hub, srv
}

func TestPrimary_ReceivesNotifications(t *testing.T) {
	hub, srv := startHubServer(t, nil)

	r := NewReceiver(NewCache(0))
	states := &stateLog{}
	p := NewPrimary(PrimaryConfig{
		URL:            "ws" + strings.TrimPrefix(srv.URL, "http") + WebSocketPath,
		UserID:         "u1",
		ReconnectDelay: 10 * time.Millisecond,
	}, r, states.record, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	eventually(t, p.Connected)
	hub.Deliver("u1", &domain.Notification{ID: "ntf_1", Type: "t", Title: "T", Message: "m", Priority: domain.PriorityLow})
	eventually(t, func() bool { return r.Cache().Len() == 1 })

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("expected nil on cancel, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop")
	}

	got := states.snapshot()
	if len(got) != 2 || !got[0] || got[1] {
		t.Errorf("expected [true false] state edges, got %v", got)
	}
}

func TestPrimary_Reconnects(t *testing.T) {
	hub, srv := startHubServer(t, nil)

	r := NewReceiver(NewCache(0))
	states := &stateLog{}
	p := NewPrimary(PrimaryConfig{
		URL:            "ws" + strings.TrimPrefix(srv.URL, "http") + WebSocketPath,
		UserID:         "u1",
		ReconnectDelay: 10 * time.Millisecond,
	}, r, states.record, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.Run(ctx)

	eventually(t, func() bool { return hub.ConnectionsFor("u1") == 1 })

	// Drop the server side connection; the client must come back.
	hub.DisconnectUser("u1")
	eventually(t, func() bool { return len(states.snapshot()) >= 3 && p.Connected() })
}
