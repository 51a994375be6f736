// Package buildinfo provides build information for mtaa-server and
// mtaa-cli.
//
// Values are injected at build time via ldflags:
//
//	go build -ldflags "-X github.com/mtaadao/mtaa-realtime/internal/infra/buildinfo.Version=v1.0.0"
//
// Without ldflags the commit and Go version come from the binary's
// embedded module information.
package buildinfo
