// Package connection provides the HTTP client mtaa-cli uses to talk to
// mtaa-server.
//
// Responses arrive in the server's envelope; the client unwraps data on
// success and turns error envelopes and 429 bodies into *APIError.
package connection
