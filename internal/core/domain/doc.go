// Package domain defines the core domain models for the MtaaDAO realtime
// service.
//
// Domain models are plain values without IO dependencies. This package
// contains:
//
//   - Session: an authenticated login tracked by the session registry
//   - Notification: a message pushed to a user's connected clients
//   - Errors: coded domain errors shared by services and transports
package domain
