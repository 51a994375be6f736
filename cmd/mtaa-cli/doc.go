// Package main provides the entry point for mtaa-cli.
//
// The CLI talks to an mtaa-server over HTTP:
//
//   - Session management (list, get, revoke, revoke-all)
//   - Notifications (send, list, read, read-all, watch)
//   - System administration (status, health, gc, hash-key)
//
// Usage:
//
//	mtaa-cli [global flags] command [flags]
//	mtaa-cli -o json session list u_123
//	mtaa-cli notify watch --session-id mts_...
//
// Defaults come from ~/.mtaa/cli.yaml.
package main
