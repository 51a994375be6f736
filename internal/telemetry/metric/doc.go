// Package metric provides Prometheus metrics for mtaa-realtime.
//
// This package implements metrics collection and exposition:
//
//   - prometheus.go: Registry, typed helpers and the HTTP handler
//   - collector.go: scrape-time collector for registry and hub counts
//
// Metrics are exposed at /metrics in Prometheus format.
package metric
