package client

import (
	"context"
	"log/slog"
	"sync"
)

// State is the channel the client currently relies on.
type State int

const (
	StatePrimaryConnected State = iota
	StateFallbackActive
)

func (s State) String() string {
	switch s {
	case StatePrimaryConnected:
		return "primary_connected"
	case StateFallbackActive:
		return "fallback_active"
	default:
		return "unknown"
	}
}

// Runner is a channel that runs until its context ends.
type Runner interface {
	Run(ctx context.Context) error
}

// Switcher opens the fallback while the primary is down.
//
// Transitions fire only on edges: repeated reports of the same primary
// state do nothing. A fallback that fails on its own is not restarted until
// the next disconnect edge.
type Switcher struct {
	parent   context.Context
	fallback Runner
	logger   *slog.Logger

	mu      sync.Mutex
	state   State
	started bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewSwitcher creates a switcher whose fallback runs under ctx.
func NewSwitcher(ctx context.Context, fallback Runner, logger *slog.Logger) *Switcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Switcher{
		parent:   ctx,
		fallback: fallback,
		logger:   logger.With("component", "switcher"),
		state:    StateFallbackActive,
	}
}

// Start opens the fallback unless the primary already reported connected.
func (s *Switcher) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.started = true
	if s.state == StateFallbackActive {
		s.openLocked()
	}
}

// SetPrimaryConnected reports the primary channel's state.
func (s *Switcher) SetPrimaryConnected(connected bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case connected && s.state == StateFallbackActive:
		s.state = StatePrimaryConnected
		s.closeLocked()
		s.logger.Info("primary connected, fallback closed")
	case !connected && s.state == StatePrimaryConnected:
		s.state = StateFallbackActive
		if s.started {
			s.openLocked()
		}
		s.logger.Info("primary disconnected, fallback opened")
	}
}

// State returns the current state.
func (s *Switcher) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// FallbackRunning reports whether a fallback stream is live.
func (s *Switcher) FallbackRunning() bool {
	s.mu.Lock()
	done := s.done
	s.mu.Unlock()
	if done == nil {
		return false
	}
	select {
	case <-done:
		return false
	default:
		return true
	}
}

// Close tears down the fallback if it runs.
func (s *Switcher) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeLocked()
}

func (s *Switcher) openLocked() {
	ctx, cancel := context.WithCancel(s.parent)
	done := make(chan struct{})
	s.cancel = cancel
	s.done = done

	go func() {
		defer close(done)
		if err := s.fallback.Run(ctx); err != nil {
			s.logger.Warn("fallback stream closed", "error", err)
		}
	}()
}

func (s *Switcher) closeLocked() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
	s.cancel = nil
	s.done = nil
}
