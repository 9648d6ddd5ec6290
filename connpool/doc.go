// Package connpool is a coroutine-aware pool of outbound TCP
// connections, grounded on teacher pool/bufferpool.go's
// map-of-pools-keyed-by-node pattern (BufferPoolManager.GetPool's
// read-then-upgrade-to-write-lock lazy creation) generalized from a
// NUMA node key to a "host:port" target key, and on
// pool/numapool.go's Get/Put free-list shape generalized from a
// sync.Pool of same-size byte buffers to a free list of live,
// coroio-managed connections with an idle reaper driven by a
// timerset-backed recurring timer instead of relying on the allocator
// itself to reclaim memory.
package connpool
