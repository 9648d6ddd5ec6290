package connpool

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/eapache/queue"
	"golang.org/x/sys/unix"

	"github.com/momentics/hioload-coro/coroio"
	"github.com/momentics/hioload-coro/fdctx"
	"github.com/momentics/hioload-coro/ioreactor"
	"github.com/momentics/hioload-coro/netaddr"
	"github.com/momentics/hioload-coro/xlog"
)

var log = xlog.For("connpool")

// Conn is a pooled outbound connection. Callers use Read/Write directly
// (through coroio via the pool's Reactor) and must call Release exactly
// once when done, instead of Close, so the fd can be reused.
type Conn struct {
	pool     *Pool
	target   string
	fd       int
	lastUsed time.Time
	closed   bool
}

// FD returns the raw file descriptor for direct coroio.Read/Write calls.
func (c *Conn) FD() int { return c.fd }

// Release returns the connection to its pool's free list for target,
// or closes it outright if that free list already holds
// MaxIdlePerTarget connections. A connection already closed is dropped.
func (c *Conn) Release() {
	c.pool.release(c)
}

// Close closes the underlying fd immediately, bypassing the pool. Use
// when the connection is known bad (a read/write error occurred).
func (c *Conn) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	return coroio.Close(c.pool.reactor, c.fd)
}

// freeList holds idle connections for one target in FIFO order (a ring
// buffer via eapache/queue) so Get always reuses the longest-idle
// connection first, spreading reuse evenly and keeping the reaper's
// age check a simple front-of-queue comparison.
type freeList struct {
	mu    sync.Mutex
	conns *queue.Queue
	n     int
}

func newFreeList() *freeList {
	return &freeList{conns: queue.New()}
}

// Pool is a per-process set of free lists of live connections, one per
// dial target, with an idle reaper that closes connections unused for
// longer than IdleTimeout.
type Pool struct {
	reactor *ioreactor.Reactor

	// MaxIdlePerTarget bounds how many idle connections Release keeps per
	// target; beyond that, Release closes the connection outright.
	MaxIdlePerTarget int
	// IdleTimeout is how long an idle connection may sit in a free list
	// before the reaper closes it. Zero disables reaping.
	IdleTimeout time.Duration
	// DialTimeoutMs is the coroio.Connect deadline for new connections.
	DialTimeoutMs int64

	mu      sync.RWMutex
	targets map[string]*freeList
}

// New constructs a Pool bound to reactor, and — if idleTimeout > 0 —
// starts a recurring reaper timer on the reactor's embedded TimerSet.
func New(reactor *ioreactor.Reactor, maxIdlePerTarget int, idleTimeout time.Duration) *Pool {
	p := &Pool{
		reactor:          reactor,
		MaxIdlePerTarget: maxIdlePerTarget,
		IdleTimeout:      idleTimeout,
		DialTimeoutMs:    5000,
		targets:          make(map[string]*freeList),
	}
	if idleTimeout > 0 {
		sweepMs := idleTimeout.Milliseconds() / 2
		if sweepMs < 100 {
			sweepMs = 100
		}
		reactor.Add(sweepMs, true, p.reap)
	}
	return p
}

func (p *Pool) listFor(target string) *freeList {
	p.mu.RLock()
	fl, ok := p.targets[target]
	p.mu.RUnlock()
	if ok {
		return fl
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if fl, ok := p.targets[target]; ok {
		return fl
	}
	fl = newFreeList()
	p.targets[target] = fl
	return fl
}

// Get returns a pooled connection to target ("host:port"), reusing an
// idle one if available, or dialing a new one via coroio.Connect.
func (p *Pool) Get(ctx context.Context, target string) (*Conn, error) {
	fl := p.listFor(target)

	fl.mu.Lock()
	if fl.n > 0 {
		c := fl.conns.Remove().(*Conn)
		fl.n--
		fl.mu.Unlock()
		return c, nil
	}
	fl.mu.Unlock()

	host, port, err := splitTarget(target)
	if err != nil {
		return nil, err
	}
	addr, err := netaddr.LookupOne(ctx, host, port)
	if err != nil {
		return nil, err
	}
	sa, err := netaddr.ToSockaddr(addr)
	if err != nil {
		return nil, err
	}

	fd, err := dialSocket(sa)
	if err != nil {
		return nil, err
	}
	fdctx.Default().Get(fd, true)

	if err := coroio.Connect(p.reactor, fd, sa, p.DialTimeoutMs); err != nil {
		_ = coroio.Close(p.reactor, fd)
		return nil, err
	}

	return &Conn{pool: p, target: target, fd: fd, lastUsed: time.Now()}, nil
}

func (p *Pool) release(c *Conn) {
	if c.closed {
		return
	}
	fl := p.listFor(c.target)
	c.lastUsed = time.Now()

	fl.mu.Lock()
	if fl.n >= p.MaxIdlePerTarget {
		fl.mu.Unlock()
		_ = c.Close()
		return
	}
	fl.conns.Add(c)
	fl.n++
	fl.mu.Unlock()
}

func (p *Pool) reap() {
	deadline := time.Now().Add(-p.IdleTimeout)

	p.mu.RLock()
	lists := make([]*freeList, 0, len(p.targets))
	for _, fl := range p.targets {
		lists = append(lists, fl)
	}
	p.mu.RUnlock()

	reaped := 0
	for _, fl := range lists {
		fl.mu.Lock()
		// The queue is in release order, so lastUsed only increases
		// front to back: stop at the first connection still fresh.
		for fl.n > 0 {
			c := fl.conns.Peek().(*Conn)
			if !c.lastUsed.Before(deadline) {
				break
			}
			fl.conns.Remove()
			fl.n--
			_ = c.Close()
			reaped++
		}
		fl.mu.Unlock()
	}
	if reaped > 0 {
		log.Debug().Int("reaped", reaped).Msg("connpool idle reap")
	}
}

// Stats reports the number of idle connections currently held per target.
func (p *Pool) Stats() map[string]int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make(map[string]int, len(p.targets))
	for target, fl := range p.targets {
		fl.mu.Lock()
		out[target] = fl.n
		fl.mu.Unlock()
	}
	return out
}

func splitTarget(target string) (string, int, error) {
	host, portStr, err := net.SplitHostPort(target)
	if err != nil {
		return "", 0, fmt.Errorf("connpool: invalid target %q: %w", target, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return "", 0, fmt.Errorf("connpool: invalid port in target %q: %w", target, err)
	}
	return host, port, nil
}

func dialSocket(sa unix.Sockaddr) (int, error) {
	domain := unix.AF_INET
	if _, ok := sa.(*unix.SockaddrInet6); ok {
		domain = unix.AF_INET6
	}
	fd, err := unix.Socket(domain, unix.SOCK_STREAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return -1, fmt.Errorf("connpool: socket: %w", err)
	}
	return fd, nil
}
