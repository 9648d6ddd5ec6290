package fdctx

import (
	"sync"

	"golang.org/x/sys/unix"
)

// NoTimeout is the sentinel returned by RecvTimeoutMs/SendTimeoutMs when no
// timeout has been configured.
const NoTimeout int64 = -1

// FdCtx is the per-fd state the coroio hook layer needs without a syscall
// on its hot path. Grounded on the source's FdCtx
// (original_source/src/base/fd_manager.cc): fstat-detected socket-ness,
// kernel vs. user nonblocking flags, and millisecond receive/send
// timeouts that are enforced by timers rather than handed to the kernel.
type FdCtx struct {
	mu sync.RWMutex

	fd           int
	isSocket     bool
	sysNonblock  bool
	userNonblock bool
	closed       bool

	recvTimeoutMs int64
	sendTimeoutMs int64
}

func newFdCtx(fd int) *FdCtx {
	c := &FdCtx{
		fd:            fd,
		recvTimeoutMs: NoTimeout,
		sendTimeoutMs: NoTimeout,
	}
	c.init()
	return c
}

// init mirrors FdCtx::init: fstat the fd to detect socket-ness, and for
// sockets force the kernel O_NONBLOCK flag while recording sysNonblock.
// Every bool starts false (Go's zero value already gives us this; the
// source's buggy all-ones default is not reproduced).
func (c *FdCtx) init() {
	var stat unix.Stat_t
	if err := unix.Fstat(c.fd, &stat); err != nil {
		return
	}
	c.isSocket = stat.Mode&unix.S_IFMT == unix.S_IFSOCK
	if !c.isSocket {
		return
	}
	flags, err := unix.FcntlInt(uintptr(c.fd), unix.F_GETFL, 0)
	if err != nil {
		return
	}
	if flags&unix.O_NONBLOCK == 0 {
		if _, err := unix.FcntlInt(uintptr(c.fd), unix.F_SETFL, flags|unix.O_NONBLOCK); err != nil {
			return
		}
	}
	c.sysNonblock = true
}

// FD returns the file descriptor this context describes.
func (c *FdCtx) FD() int { return c.fd }

// IsSocket reports whether fstat identified this fd as a socket.
func (c *FdCtx) IsSocket() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.isSocket
}

// SysNonblock reports whether the kernel flag is held nonblocking by init.
func (c *FdCtx) SysNonblock() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.sysNonblock
}

// UserNonblock reports only what the application itself requested via
// fcntl(F_SETFL, O_NONBLOCK) or ioctl(FIONBIO).
func (c *FdCtx) UserNonblock() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.userNonblock
}

// SetUserNonblock records the application's own nonblocking preference.
func (c *FdCtx) SetUserNonblock(v bool) {
	c.mu.Lock()
	c.userNonblock = v
	c.mu.Unlock()
}

// EffectiveNonblock reports sysNonblock OR userNonblock. coroio does not
// consult it: it decides whether to intercept a call from UserNonblock
// alone (an explicitly-nonblocking user fd is left alone).
func (c *FdCtx) EffectiveNonblock() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.sysNonblock || c.userNonblock
}

// Closed reports whether MarkClosed has been called for this fd.
func (c *FdCtx) Closed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.closed
}

// MarkClosed records that the underlying fd has been closed.
func (c *FdCtx) MarkClosed() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
}

// RecvTimeoutMs returns the configured receive timeout, or NoTimeout.
func (c *FdCtx) RecvTimeoutMs() int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.recvTimeoutMs
}

// SendTimeoutMs returns the configured send timeout, or NoTimeout.
func (c *FdCtx) SendTimeoutMs() int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.sendTimeoutMs
}

// SetRecvTimeoutMs stores ms (milliseconds) for SO_RCVTIMEO. It is not
// propagated to the kernel; the hook layer enforces it via timerset.
func (c *FdCtx) SetRecvTimeoutMs(ms int64) {
	c.mu.Lock()
	c.recvTimeoutMs = ms
	c.mu.Unlock()
}

// SetSendTimeoutMs stores ms (milliseconds) for SO_SNDTIMEO. It is not
// propagated to the kernel; the hook layer enforces it via timerset.
func (c *FdCtx) SetSendTimeoutMs(ms int64) {
	c.mu.Lock()
	c.sendTimeoutMs = ms
	c.mu.Unlock()
}

// Table is a sparse, growable registry of FdCtx indexed by fd value,
// grounded on the source's FdManager. It is safe for concurrent use.
type Table struct {
	mu    sync.RWMutex
	slots []*FdCtx
}

// NewTable constructs an empty Table.
func NewTable() *Table {
	return &Table{slots: make([]*FdCtx, 64)}
}

// Get returns the FdCtx for fd, creating it (and running init, which may
// fstat and adjust kernel flags) if autoCreate is true and none exists
// yet. Returns nil for a negative fd, or for an unknown fd when autoCreate
// is false.
func (t *Table) Get(fd int, autoCreate bool) *FdCtx {
	if fd < 0 {
		return nil
	}

	t.mu.RLock()
	if fd < len(t.slots) {
		c := t.slots[fd]
		t.mu.RUnlock()
		if c != nil || !autoCreate {
			return c
		}
	} else {
		t.mu.RUnlock()
		if !autoCreate {
			return nil
		}
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if fd < len(t.slots) {
		if t.slots[fd] != nil {
			return t.slots[fd]
		}
	} else {
		grown := make([]*FdCtx, fd+1+fd/2)
		copy(grown, t.slots)
		t.slots = grown
	}
	c := newFdCtx(fd)
	t.slots[fd] = c
	return c
}

// Del releases the slot for fd, matching FdManager::del (reset rather
// than erase, so surviving fds keep their indices).
func (t *Table) Del(fd int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if fd >= 0 && fd < len(t.slots) {
		t.slots[fd] = nil
	}
}

var global = NewTable()

// Default returns the process-wide fd context table shared across all
// threads, per spec.md §4.5.
func Default() *Table {
	return global
}
