// Package service provides domain services for mtaa-realtime.
//
// Domain services hold the business rules and orchestrate storage through
// interfaces, so each can be tested against fakes:
//
//   - SessionService: login sessions over a SessionRepository
//   - Sweeper: stoppable periodic task for expiry and idle cleanup
//   - NotificationService: publish, inbox listing and read state
//   - RateLimiter: named request-volume policies
//   - AdminAuthenticator: admin API key verification
package service
