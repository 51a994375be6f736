// Package realtime pushes notifications to connected clients.
//
// The Hub tracks live connections and the user each one is bound to.
// Two transports feed it: a WebSocket endpoint (primary) where the client
// authenticates with a frame after connecting, and a Server-Sent Events
// stream (fallback) bound to the caller's session at request time.
//
// Delivery is at-most-once per connection. Each connection owns a bounded
// queue drained by a single writer, so messages on one connection arrive in
// order; a full queue drops the message for that connection only.
package realtime
