// Package storage provides the embedded key-value engine behind the
// notification inbox.
//
//   - kv.go: KVEngine interface and configuration
//   - badger.go: Badger v3 implementation with a background GC loop and
//     Prometheus size gauges
//   - inbox/: per-user notification inbox on top of a KVEngine
//   - memory/: the process-local session registry (not persisted)
//
// Sessions are deliberately not stored here: the registry lives and dies
// with the process.
package storage
