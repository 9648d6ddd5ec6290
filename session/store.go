package session

import (
	"hash/fnv"
	"sync"
	"time"

	"github.com/momentics/hioload-coro/ioreactor"
	"github.com/momentics/hioload-coro/xlog"
)

var log = xlog.For("session")

type shard struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// Store is a sharded, concurrent map of Sessions keyed by id, grounded
// on teacher internal/session/store.go's sessionManager: shard count is
// rounded up to a power of two and selection is by FNV-1a hash of the
// id, so concurrent Create/Get/Delete calls on different ids rarely
// contend on the same lock.
type Store struct {
	shards []*shard
	mask   uint32

	// IdleTimeout, if nonzero, is how long a session may go untouched
	// before the sweep cancels and removes it.
	IdleTimeout time.Duration
}

// NewStore builds a Store with at least minShards shards (rounded up
// to a power of two). If reactor is non-nil and idleTimeout > 0, a
// recurring sweep timer is registered on the reactor's embedded
// TimerSet, mirroring connpool's reaper.
func NewStore(reactor *ioreactor.Reactor, minShards int, idleTimeout time.Duration) *Store {
	n := nextPowerOfTwo(uint32(minShards))
	if n == 0 {
		n = 1
	}
	s := &Store{
		shards:      make([]*shard, n),
		mask:        n - 1,
		IdleTimeout: idleTimeout,
	}
	for i := range s.shards {
		s.shards[i] = &shard{sessions: make(map[string]*Session)}
	}
	if reactor != nil && idleTimeout > 0 {
		sweepMs := idleTimeout.Milliseconds() / 2
		if sweepMs < 100 {
			sweepMs = 100
		}
		reactor.Add(sweepMs, true, s.sweep)
	}
	return s
}

func (s *Store) shardFor(id string) *shard {
	h := fnv32(id)
	return s.shards[h&s.mask]
}

// Create allocates and stores a new Session under id, replacing any
// existing session with the same id.
func (s *Store) Create(id string) *Session {
	sh := s.shardFor(id)
	sess := newSession(id)
	sh.mu.Lock()
	if old, ok := sh.sessions[id]; ok {
		old.Cancel()
	}
	sh.sessions[id] = sess
	sh.mu.Unlock()
	return sess
}

// Get returns the session stored under id, if any.
func (s *Store) Get(id string) (*Session, bool) {
	sh := s.shardFor(id)
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	sess, ok := sh.sessions[id]
	return sess, ok
}

// GetOrCreate returns the existing session under id, or creates one.
func (s *Store) GetOrCreate(id string) *Session {
	if sess, ok := s.Get(id); ok {
		return sess
	}
	sh := s.shardFor(id)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	if sess, ok := sh.sessions[id]; ok {
		return sess
	}
	sess := newSession(id)
	sh.sessions[id] = sess
	return sess
}

// Delete cancels and removes the session stored under id, if any.
func (s *Store) Delete(id string) {
	sh := s.shardFor(id)
	sh.mu.Lock()
	sess, ok := sh.sessions[id]
	delete(sh.sessions, id)
	sh.mu.Unlock()
	if ok {
		sess.Cancel()
	}
}

// Range calls fn for every session currently stored, across all shards.
// fn must not call back into the Store.
func (s *Store) Range(fn func(*Session)) {
	for _, sh := range s.shards {
		sh.mu.RLock()
		for _, sess := range sh.sessions {
			fn(sess)
		}
		sh.mu.RUnlock()
	}
}

// Len returns the total number of sessions across all shards.
func (s *Store) Len() int {
	n := 0
	for _, sh := range s.shards {
		sh.mu.RLock()
		n += len(sh.sessions)
		sh.mu.RUnlock()
	}
	return n
}

func (s *Store) sweep() {
	now := time.Now()
	deadline := now.Add(-s.IdleTimeout)
	expired := 0

	for _, sh := range s.shards {
		sh.mu.Lock()
		for id, sess := range sh.sessions {
			if sess.expired(now) || sess.LastSeen().Before(deadline) {
				delete(sh.sessions, id)
				sess.Cancel()
				expired++
			}
		}
		sh.mu.Unlock()
	}
	if expired > 0 {
		log.Debug().Int("expired", expired).Msg("session idle sweep")
	}
}

func fnv32(s string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(s))
	return h.Sum32()
}

func nextPowerOfTwo(v uint32) uint32 {
	if v == 0 {
		return 0
	}
	v--
	v |= v >> 1
	v |= v >> 2
	v |= v >> 4
	v |= v >> 8
	v |= v >> 16
	v++
	return v
}
