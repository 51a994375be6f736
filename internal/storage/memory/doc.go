// Package memory provides the process-local session registry.
//
// Store keeps session records and a per-user, insertion-ordered index of
// their IDs. Both are guarded by one mutex so every operation sees them in
// lockstep:
//
//   - A user holds at most MaxSessionsPerUser sessions; creating one more
//     silently destroys the oldest by insertion order.
//   - A session is returned only while now - LastActivity <= timeout.
//     Reads evict expired records on the spot and refresh live ones.
//   - CleanupExpiredSessions reclaims records nobody reads again.
//
// Time comes from an injected clock.Clock so tests can move it.
package memory
