// Package main provides the entry point for mtaa-server.
//
// The server provides:
//
//   - HTTP API for session tracking and notification inboxes
//   - WebSocket push on /ws with an SSE fallback on /notifications/stream
//   - Per-route rate limiting
//   - Admin status and GC endpoints behind an API key
//   - Prometheus metrics on /metrics
//
// Usage:
//
//	mtaa-server [flags]
//	mtaa-server --config /etc/mtaa/server.yaml
//
// Settings are layered: defaults, the YAML file, the .env file, then MTAA_
// environment variables (e.g. MTAA_SESSION_TIMEOUT=45m). Changes to
// log.level in the file apply without a restart.
package main
