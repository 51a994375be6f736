// Package tlsroots manages TLS material for mtaa-server and mtaa-cli.
//
//   - watcher.go: serves the server certificate pair and reloads it when
//     either file changes on disk
//   - roots.go: client configs that trust a private CA on top of the
//     system roots
package tlsroots
