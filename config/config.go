package config

import (
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/momentics/hioload-coro/xlog"
)

var log = xlog.For("config")

// defaults carries every key the core packages read from config. A Store
// always has these set, even with no backing file, so callers never need
// a presence check before a typed getter.
var defaults = map[string]any{
	"fiber.stack_size":    131072,
	"tcp.connect.timeout": 5000,
}

// Store is a dynamic key/value map with file-backed initial load, atomic
// snapshot, and synchronous change notification.
type Store struct {
	mu        sync.RWMutex
	values    map[string]any
	listeners []func()
	path      string
}

// NewStore returns a Store seeded with defaults and no backing file.
func NewStore() *Store {
	s := &Store{values: make(map[string]any, len(defaults))}
	for k, v := range defaults {
		s.values[k] = v
	}
	return s
}

// Load reads path as YAML into a new Store, layered over defaults. The
// path is remembered so a later Reload re-reads the same file.
func Load(path string) (*Store, error) {
	s := NewStore()
	s.path = path
	if err := s.reloadLocked(); err != nil {
		return nil, err
	}
	return s, nil
}

// Reload re-reads the Store's backing file (a no-op, returning nil, if
// Load was never called) and dispatches OnChange listeners synchronously
// if the read succeeds.
func (s *Store) Reload() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reloadLocked()
}

func (s *Store) reloadLocked() error {
	if s.path == "" {
		return nil
	}
	raw, err := os.ReadFile(s.path)
	if err != nil {
		return err
	}
	var parsed map[string]any
	if err := yaml.Unmarshal(raw, &parsed); err != nil {
		return err
	}
	for k, v := range parsed {
		s.values[k] = v
	}
	log.Info().Str("path", s.path).Int("keys", len(parsed)).Msg("config reloaded")
	s.dispatchLocked()
	return nil
}

// OnChange registers fn to run (synchronously, on the goroutine that calls
// Set or Reload) after every change. This is synchronous rather than a
// fire-and-forget goroutine dispatch, so a listener's effect is guaranteed
// visible to the caller of Set before it returns.
func (s *Store) OnChange(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

func (s *Store) dispatchLocked() {
	for _, fn := range s.listeners {
		fn()
	}
}

// Set overwrites key's value and dispatches OnChange listeners.
func (s *Store) Set(key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	s.dispatchLocked()
}

// Snapshot returns a copy of every key/value pair currently held.
func (s *Store) Snapshot() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]any, len(s.values))
	for k, v := range s.values {
		out[k] = v
	}
	return out
}

func (s *Store) get(key string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	return v, ok
}

// Int reads key as an int, applying def if absent or not numeric. YAML
// integers decode as int in gopkg.in/yaml.v3, but a value set
// programmatically via Set may arrive as int64 or float64, so both are
// accepted.
func (s *Store) Int(key string, def int) int {
	v, ok := s.get(key)
	if !ok {
		return def
	}
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	default:
		return def
	}
}

// Int64 is Int for callers that want the wider type directly (e.g.
// coroio's millisecond timeouts).
func (s *Store) Int64(key string, def int64) int64 {
	return int64(s.Int(key, int(def)))
}

// Duration reads key (an integer count of milliseconds) as a
// time.Duration.
func (s *Store) Duration(key string, def time.Duration) time.Duration {
	return time.Duration(s.Int64(key, def.Milliseconds())) * time.Millisecond
}

// String reads key as a string, applying def if absent or not a string.
func (s *Store) String(key, def string) string {
	v, ok := s.get(key)
	if !ok {
		return def
	}
	str, ok := v.(string)
	if !ok {
		return def
	}
	return str
}

// Bool reads key as a bool, applying def if absent or not a bool.
func (s *Store) Bool(key string, def bool) bool {
	v, ok := s.get(key)
	if !ok {
		return def
	}
	b, ok := v.(bool)
	if !ok {
		return def
	}
	return b
}

// WatchSIGHUP spawns a goroutine that calls s.Reload on every SIGHUP until
// stop is invoked. Plain os/signal is the idiomatic, and only, way to
// observe a Unix signal; no pack or ecosystem library wraps this more
// usefully than the six lines below.
func (s *Store) WatchSIGHUP() (stop func()) {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGHUP)
	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-ch:
				if err := s.Reload(); err != nil {
					log.Error().Err(err).Msg("config reload on SIGHUP failed")
				}
			case <-done:
				return
			}
		}
	}()
	return func() {
		signal.Stop(ch)
		close(done)
	}
}
