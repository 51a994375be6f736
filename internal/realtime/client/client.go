package client

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

// Endpoint paths on the server.
const (
	WebSocketPath = "/ws"
	StreamPath    = "/notifications/stream"
)

// Config configures a dual-channel Client.
type Config struct {
	// BaseURL is the server's HTTP address, e.g. http://localhost:8080.
	BaseURL string

	UserID    string
	SessionID string

	ReconnectDelay time.Duration

	// TLSConfig applies to both channels; nil uses the system defaults.
	TLSConfig *tls.Config
}

// Client runs the primary channel and swaps the fallback in and out.
type Client struct {
	cfg      Config
	wsURL    string
	sseURL   string
	receiver *Receiver
	logger   *slog.Logger
}

// New validates cfg and derives the endpoint URLs.
func New(cfg Config, receiver *Receiver, logger *slog.Logger) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if cfg.UserID == "" && cfg.SessionID == "" {
		return nil, fmt.Errorf("user id or session id is required")
	}

	wsBase := *base
	switch base.Scheme {
	case "http":
		wsBase.Scheme = "ws"
	case "https":
		wsBase.Scheme = "wss"
	default:
		return nil, fmt.Errorf("unsupported scheme %q", base.Scheme)
	}

	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		cfg:      cfg,
		wsURL:    wsBase.JoinPath(WebSocketPath).String(),
		sseURL:   base.JoinPath(StreamPath).String(),
		receiver: receiver,
		logger:   logger,
	}, nil
}

// Run blocks until ctx ends.
func (c *Client) Run(ctx context.Context) error {
	var (
		dialer     *websocket.Dialer
		httpClient *http.Client
	)
	if c.cfg.TLSConfig != nil {
		d := *websocket.DefaultDialer
		d.TLSClientConfig = c.cfg.TLSConfig
		dialer = &d
		httpClient = &http.Client{Transport: &http.Transport{
			Proxy:           http.ProxyFromEnvironment,
			TLSClientConfig: c.cfg.TLSConfig,
		}}
	}

	fallback := NewFallback(FallbackConfig{
		URL:       c.sseURL,
		SessionID: c.cfg.SessionID,
		Client:    httpClient,
	}, c.receiver, c.logger)

	// Without a session the stream endpoint rejects us; run primary only.
	var switcher *Switcher
	if c.cfg.SessionID != "" {
		switcher = NewSwitcher(ctx, fallback, c.logger)
		defer switcher.Close()
	}

	primary := NewPrimary(PrimaryConfig{
		URL:            c.wsURL,
		UserID:         c.cfg.UserID,
		SessionID:      c.cfg.SessionID,
		ReconnectDelay: c.cfg.ReconnectDelay,
		Dialer:         dialer,
	}, c.receiver, func(connected bool) {
		c.logger.Debug("primary state changed", "connected", connected)
		if switcher != nil {
			switcher.SetPrimaryConnected(connected)
		}
	}, c.logger)

	if switcher != nil {
		switcher.Start()
	}
	return primary.Run(ctx)
}
