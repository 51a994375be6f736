// Package httpserver provides the HTTP/HTTPS server for the realtime
// service.
//
// This package implements the external API using stdlib net/http:
//
//   - Session endpoints: /sessions, /sessions/{id}, /users/{user_id}/sessions
//   - Notification endpoints: /notifications, /users/{user_id}/notifications
//   - Realtime endpoints: /ws (WebSocket), /notifications/stream (SSE)
//   - Admin endpoints: /admin/v1/*
//   - Health endpoints: /health, /ready, /metrics
//
// Every business request passes through the session activity middleware,
// which slides the caller's session forward, and a named rate limit
// policy. The streaming endpoints run without a write timeout.
package httpserver
