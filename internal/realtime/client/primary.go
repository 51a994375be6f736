package client

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/mtaadao/mtaa-realtime/internal/core/domain"
	"github.com/mtaadao/mtaa-realtime/internal/realtime"
)

// DefaultReconnectDelay is the wait between primary connection attempts.
const DefaultReconnectDelay = 3 * time.Second

// PrimaryConfig configures the WebSocket client.
type PrimaryConfig struct {
	// URL of the WebSocket endpoint, e.g. ws://localhost:8080/ws.
	URL string

	UserID    string
	SessionID string

	// ReconnectDelay is a fixed backoff between attempts.
	ReconnectDelay time.Duration

	// Dialer defaults to websocket.DefaultDialer.
	Dialer *websocket.Dialer
}

// Primary keeps a WebSocket connection open and authenticated.
type Primary struct {
	cfg       PrimaryConfig
	deliver   Deliverer
	onState   func(connected bool)
	connected atomic.Bool
	logger    *slog.Logger
}

// NewPrimary creates the primary channel. onState is called on every
// connected/disconnected edge and may be nil.
func NewPrimary(cfg PrimaryConfig, deliver Deliverer, onState func(bool), logger *slog.Logger) *Primary {
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = DefaultReconnectDelay
	}
	if cfg.Dialer == nil {
		cfg.Dialer = websocket.DefaultDialer
	}
	if onState == nil {
		onState = func(bool) {}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Primary{
		cfg:     cfg,
		deliver: deliver,
		onState: onState,
		logger:  logger.With("component", "primary"),
	}
}

// Connected reports whether the socket is open and authenticated.
func (p *Primary) Connected() bool {
	return p.connected.Load()
}

// Run connects and reconnects until ctx ends.
func (p *Primary) Run(ctx context.Context) error {
	for {
		err := p.session(ctx)
		if ctx.Err() != nil {
			return nil
		}
		p.logger.Debug("primary channel down", "error", err, "retry_in", p.cfg.ReconnectDelay)

		timer := time.NewTimer(p.cfg.ReconnectDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}
	}
}

// session runs one connection until it fails.
func (p *Primary) session(ctx context.Context) error {
	header := http.Header{}
	if p.cfg.SessionID != "" {
		header.Set(domain.SessionHeader, p.cfg.SessionID)
	}
	ws, _, err := p.cfg.Dialer.DialContext(ctx, p.cfg.URL, header)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			_ = ws.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second))
			ws.Close()
		case <-stop:
		}
	}()
	defer ws.Close()
	defer p.setConnected(false)

	auth := realtime.ClientFrame{
		Type:      realtime.FrameAuthenticate,
		UserID:    p.cfg.UserID,
		SessionID: p.cfg.SessionID,
	}
	if err := ws.WriteJSON(auth); err != nil {
		return fmt.Errorf("authenticate: %w", err)
	}

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			return err
		}
		var frame realtime.ServerFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			p.logger.Warn("malformed frame skipped", "error", err)
			continue
		}

		switch frame.Event {
		case realtime.EventAuthenticated:
			p.setConnected(true)
		case realtime.EventNewNotification:
			if frame.Data != nil {
				p.deliver.Deliver(frame.Data)
			}
		case realtime.EventError:
			p.logger.Warn("server rejected frame", "error", frame.Error)
		}
	}
}

func (p *Primary) setConnected(v bool) {
	if p.connected.Swap(v) != v {
		p.onState(v)
	}
}
