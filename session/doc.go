// Package session is a sharded, thread-safe store of per-connection
// session state, grounded directly on teacher internal/session/store.go's
// sessionManager (FNV-1a hashed, power-of-two shard count, one RWMutex
// per shard) and internal/session/context_store.go's contextStore
// (a propagation/TTL-aware key/value map per session). Expiry is
// generalized from context_store's per-key TTL into a whole-session
// idle sweep driven by a timerset recurring timer (mirroring
// connpool's reaper), since a session tracks a connection's overall
// idle time, not one key's.
package session
