// Package handler provides the HTTP request handlers.
//
// Every JSON response uses the envelope in types.go:
//
//	{code, message, request_id, timestamp, data?, details?}
//
// Handlers parse the request, call a core service and map domain error
// codes to HTTP status. The 429 rate limit body and /metrics are the only
// responses outside the envelope.
package handler
