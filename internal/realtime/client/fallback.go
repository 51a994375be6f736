package client

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/tmaxmax/go-sse"

	"github.com/mtaadao/mtaa-realtime/internal/core/domain"
	"github.com/mtaadao/mtaa-realtime/internal/realtime"
)

// maxEventSize caps one SSE event.
const maxEventSize = 1 << 20

// FallbackConfig configures the SSE client.
type FallbackConfig struct {
	// URL of the stream, e.g. http://localhost:8080/notifications/stream.
	URL       string
	SessionID string

	// Client defaults to a client without timeout; the stream is long lived.
	Client *http.Client
}

// Fallback reads the SSE stream and hands each notification to a
// Deliverer. It does not reconnect on its own.
type Fallback struct {
	cfg     FallbackConfig
	deliver Deliverer
	logger  *slog.Logger
}

// NewFallback creates the fallback channel.
func NewFallback(cfg FallbackConfig, deliver Deliverer, logger *slog.Logger) *Fallback {
	if cfg.Client == nil {
		cfg.Client = &http.Client{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Fallback{
		cfg:     cfg,
		deliver: deliver,
		logger:  logger.With("component", "fallback"),
	}
}

// Run opens the stream and reads it until ctx ends or the transport fails.
// Cancellation is not an error.
func (f *Fallback) Run(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.cfg.URL, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	if f.cfg.SessionID != "" {
		req.Header.Set(domain.SessionHeader, f.cfg.SessionID)
	}

	resp, err := f.cfg.Client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("open stream: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("open stream: unexpected status %d", resp.StatusCode)
	}
	f.logger.Debug("fallback stream opened")

	for ev, err := range sse.Read(resp.Body, &sse.ReadConfig{MaxEventSize: maxEventSize}) {
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("read stream: %w", err)
		}
		if ev.Data == "" {
			continue
		}
		f.HandleEvent([]byte(ev.Data))
	}

	if ctx.Err() != nil {
		return nil
	}
	return fmt.Errorf("read stream: closed by server")
}

// HandleEvent processes one event payload. Heartbeats are ignored and
// malformed payloads are logged and skipped.
func (f *Fallback) HandleEvent(data []byte) {
	var head struct {
		Type string `json:"type"`
		ID   string `json:"id"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		f.logger.Warn("malformed stream event skipped", "error", err)
		return
	}
	if head.Type == realtime.HeartbeatType && head.ID == "" {
		return
	}

	var n domain.Notification
	if err := json.Unmarshal(data, &n); err != nil {
		f.logger.Warn("malformed notification skipped", "error", err)
		return
	}
	f.deliver.Deliver(&n)
}
