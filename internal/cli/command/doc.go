// Package command provides CLI command definitions for mtaa-cli.
//
//   - root.go: App, global flags, shared helpers
//   - session.go: session subcommand group
//   - notify.go: notify subcommand group, including the live watch
//   - system.go: system subcommand group
//
// Commands parse flags, call the server through internal/cli/connection
// and print with internal/cli/output to the app's writer.
package command
