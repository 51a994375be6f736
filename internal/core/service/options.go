package service

import (
	"log/slog"

	"github.com/mtaadao/mtaa-realtime/pkg/clock"
)

// Metrics is the subset of the metric registry the services report to.
type Metrics interface {
	IncSessionCreated()
	AddSessionsDestroyed(reason string, n int)
	SetSessionActive(v float64)
	IncNotificationPublished(priority string)
	IncRateLimited(policy string)
}

type nopMetrics struct{}

func (nopMetrics) IncSessionCreated() {}
func (nopMetrics) AddSessionsDestroyed(string, int) {}
func (nopMetrics) SetSessionActive(float64) {}
func (nopMetrics) IncNotificationPublished(string) {}
func (nopMetrics) IncRateLimited(string) {}

type options struct {
	logger  *slog.Logger
	clock   clock.Clock
	metrics Metrics
}

// Option configures a service.
type Option func(*options)

// WithLogger sets the service logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithClock sets the time source.
func WithClock(c clock.Clock) Option {
	return func(o *options) {
		if c != nil {
			o.clock = c
		}
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(m Metrics) Option {
	return func(o *options) {
		if m != nil {
			o.metrics = m
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{
		logger:  slog.Default(),
		clock:   clock.Real{},
		metrics: nopMetrics{},
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
