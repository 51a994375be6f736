// Package logger builds the process slog.Logger.
//
//   - logger.go: handler setup and the runtime-adjustable level
//   - context.go: request and session IDs carried through context
//   - redact.go: masking of session IDs and credentials
package logger
