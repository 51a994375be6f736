// Package cmap provides a sharded concurrent map.
//
// Each shard has its own RWMutex, so callers touching different keys
// rarely contend. The rate limiter keeps one window per (policy, client)
// here.
//
//	m := cmap.New[string, *window]()
//	b, _ := m.LoadOrCompute("auth|10.0.0.1", newWindow)
package cmap
