// Package client receives notifications over the primary WebSocket channel
// and falls back to the SSE stream while the primary is down.
//
// Both channels hand messages to one Receiver, which merges them into a
// Cache and optionally raises a desktop notification. The Switcher opens
// the fallback on the primary's disconnect edge and tears it down on the
// reconnect edge.
package client
