package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrSweeperRunning is returned by Start on a sweeper that is already running.
var ErrSweeperRunning = errors.New("sweeper already running")

// SweepFunc performs one sweep and returns the number of items reclaimed.
type SweepFunc func(ctx context.Context) int

// Sweeper runs a SweepFunc on a fixed interval until stopped.
//
// Sweeps never overlap: SweepNow and the ticker share one lock.
type Sweeper struct {
	name     string
	interval time.Duration
	sweep    SweepFunc
	logger   *slog.Logger

	runMu sync.Mutex // serializes sweeps

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewSweeper creates a stopped sweeper.
func NewSweeper(name string, interval time.Duration, fn SweepFunc, logger *slog.Logger) *Sweeper {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{
		name:     name,
		interval: interval,
		sweep:    fn,
		logger:   logger.With("component", "sweeper", "sweeper", name),
	}
}

// Start launches the background loop. The loop ends when ctx is done or
// Stop is called.
func (s *Sweeper) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		return ErrSweeperRunning
	}

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})

	go s.loop(ctx, s.done)

	s.logger.Info("sweeper started", "interval", s.interval)
	return nil
}

func (s *Sweeper) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	defer s.exited(done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.run(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// exited clears the running state when the loop ends on its own, so a
// cancelled parent context leaves the sweeper restartable.
func (s *Sweeper) exited(done chan struct{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done != done {
		return
	}
	s.cancel()
	s.cancel, s.done = nil, nil
	s.logger.Info("sweeper stopped", "reason", "context done")
}

// Stop cancels the loop and waits for an in-flight sweep to finish.
// Stopping a stopped sweeper is a no-op.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	s.logger.Info("sweeper stopped")
}

// Running reports whether the background loop is active.
func (s *Sweeper) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancel != nil
}

// SweepNow runs one sweep synchronously.
func (s *Sweeper) SweepNow(ctx context.Context) int {
	return s.run(ctx)
}

func (s *Sweeper) run(ctx context.Context) int {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	start := time.Now()
	n := s.sweep(ctx)
	s.logger.Debug("sweep completed", "reclaimed", n, "elapsed", time.Since(start))
	return n
}
