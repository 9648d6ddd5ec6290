package ioreactor

import (
	"errors"
	"sync"
	"sync/atomic"

	"golang.org/x/sys/unix"

	"github.com/momentics/hioload-coro/fiber"
	"github.com/momentics/hioload-coro/scheduler"
	"github.com/momentics/hioload-coro/timerset"
	"github.com/momentics/hioload-coro/xlog"
)

var log = xlog.For("ioreactor")

// Event is a bit in an fd's epoll interest mask.
type Event int

const (
	Read Event = 1 << iota
	Write
)

// idleEpollCapMs bounds how long a worker's epoll_wait may block even
// when no timer is pending, so shutdown is noticed promptly.
const idleEpollCapMs = 3000

// ErrAlreadyBound is returned by AddEvent when the requested bit is
// already bound for this fd.
var ErrAlreadyBound = errors.New("ioreactor: event bit already bound")

type binding struct {
	fn  func()
	fbr *fiber.Fiber
}

func (b binding) empty() bool { return b.fn == nil && b.fbr == nil }

func (b binding) fire(s *scheduler.Scheduler) {
	if b.fbr != nil {
		_ = s.Schedule(b.fbr, scheduler.AnyThread)
		return
	}
	_ = s.ScheduleFunc(b.fn, scheduler.AnyThread)
}

type fdEvents struct {
	mu    sync.Mutex
	bits  Event
	read  binding
	write binding
}

// Reactor extends a Scheduler and a TimerSet with epoll-backed readiness
// events, matching the source's "IOManager : public Scheduler, public
// TimerManager". Go has no multiple-inheritance-by-base-class, so the
// relationship is expressed as two embedded pointers; Reactor itself
// implements scheduler.Hooks to splice its tickle/idle/stopping behavior
// into the embedded Scheduler's dispatch loop.
type Reactor struct {
	*scheduler.Scheduler
	*timerset.TimerSet

	epfd  int
	wakeR int
	wakeW int

	tableMu sync.RWMutex
	table   []*fdEvents

	pendingEventCount int64
	idleCount         int32
}

// New constructs a Reactor with its own epoll instance and wake pipe, and
// a Scheduler of workerCount dispatch loops (see scheduler.New for the
// meaning of useCaller).
func New(name string, workerCount int, useCaller bool) (*Reactor, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, err
	}

	var pipeFds [2]int
	if err := unix.Pipe2(pipeFds[:], unix.O_NONBLOCK|unix.O_CLOEXEC); err != nil {
		_ = unix.Close(epfd)
		return nil, err
	}

	r := &Reactor{
		Scheduler: scheduler.New(name, workerCount, useCaller),
		TimerSet:  timerset.New(nil),
		epfd:      epfd,
		wakeR:     pipeFds[0],
		wakeW:     pipeFds[1],
	}
	r.Scheduler.SetHooks(r)
	r.TimerSet.SetOnFrontInsert(r.Tickle)

	wakeEv := &unix.EpollEvent{Events: unix.EPOLLIN, Fd: int32(r.wakeR)}
	if err := unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, r.wakeR, wakeEv); err != nil {
		_ = unix.Close(epfd)
		_ = unix.Close(r.wakeR)
		_ = unix.Close(r.wakeW)
		return nil, err
	}
	log.Info().Str("reactor", name).Int("workers", workerCount).Msg("reactor created")
	return r, nil
}

// Close releases the epoll instance and wake pipe. Call after Stop.
func (r *Reactor) Close() error {
	_ = unix.Close(r.wakeR)
	_ = unix.Close(r.wakeW)
	return unix.Close(r.epfd)
}

// PendingEventCount reports how many fd-event bits are currently bound,
// for diagnostics and tests.
func (r *Reactor) PendingEventCount() int64 {
	return atomic.LoadInt64(&r.pendingEventCount)
}

// AddEvent registers interest in ev for fd. If handler is nil, the
// calling coroutine (fiber.Current()) is captured as the resumer, to be
// re-scheduled as a fiber task when the event fires; a nil handler from
// outside a fiber body panics. Returns ErrAlreadyBound if ev is already
// bound for this fd.
func (r *Reactor) AddEvent(fd int, ev Event, handler func()) error {
	var b binding
	if handler != nil {
		b.fn = handler
	} else {
		cur := fiber.Current()
		if cur == fiber.ThreadMain() {
			panic("ioreactor: AddEvent with a nil handler must be called from inside a coroutine")
		}
		b.fbr = cur
	}

	fe := r.fdEntry(fd, true)
	fe.mu.Lock()
	if fe.bits&ev != 0 {
		fe.mu.Unlock()
		return ErrAlreadyBound
	}
	wasEmpty := fe.bits == 0
	if ev == Read {
		fe.read = b
	} else {
		fe.write = b
	}
	fe.bits |= ev
	newBits := fe.bits
	fe.mu.Unlock()

	if err := r.syncEpoll(fd, newBits, wasEmpty); err != nil {
		fe.mu.Lock()
		fe.bits &^= ev
		if ev == Read {
			fe.read = binding{}
		} else {
			fe.write = binding{}
		}
		fe.mu.Unlock()
		return err
	}
	atomic.AddInt64(&r.pendingEventCount, 1)
	return nil
}

// DelEvent unregisters ev for fd without firing its handler.
func (r *Reactor) DelEvent(fd int, ev Event) {
	fe := r.fdEntry(fd, false)
	if fe == nil {
		return
	}
	fe.mu.Lock()
	if fe.bits&ev == 0 {
		fe.mu.Unlock()
		return
	}
	fe.bits &^= ev
	if ev == Read {
		fe.read = binding{}
	} else {
		fe.write = binding{}
	}
	remaining := fe.bits
	fe.mu.Unlock()

	_ = r.syncEpoll(fd, remaining, false)
	atomic.AddInt64(&r.pendingEventCount, -1)
}

// CancelEvent unregisters ev for fd and immediately schedules its bound
// handler as a ready task — a forced wakeup. Reports whether anything was
// bound to cancel.
func (r *Reactor) CancelEvent(fd int, ev Event) bool {
	fe := r.fdEntry(fd, false)
	if fe == nil {
		return false
	}
	fe.mu.Lock()
	if fe.bits&ev == 0 {
		fe.mu.Unlock()
		return false
	}
	var b binding
	if ev == Read {
		b, fe.read = fe.read, binding{}
	} else {
		b, fe.write = fe.write, binding{}
	}
	fe.bits &^= ev
	remaining := fe.bits
	fe.mu.Unlock()

	_ = r.syncEpoll(fd, remaining, false)
	atomic.AddInt64(&r.pendingEventCount, -1)
	b.fire(r.Scheduler)
	return true
}

// CancelAll unregisters both bits for fd and schedules both handlers, if
// bound.
func (r *Reactor) CancelAll(fd int) {
	r.CancelEvent(fd, Read)
	r.CancelEvent(fd, Write)
}

func (r *Reactor) fdEntry(fd int, autoCreate bool) *fdEvents {
	r.tableMu.RLock()
	if fd < len(r.table) {
		fe := r.table[fd]
		r.tableMu.RUnlock()
		if fe != nil || !autoCreate {
			return fe
		}
	} else {
		r.tableMu.RUnlock()
		if !autoCreate {
			return nil
		}
	}

	r.tableMu.Lock()
	defer r.tableMu.Unlock()
	if fd < len(r.table) {
		if r.table[fd] != nil {
			return r.table[fd]
		}
	} else {
		grown := make([]*fdEvents, fd+1+fd/2)
		copy(grown, r.table)
		r.table = grown
	}
	fe := &fdEvents{}
	r.table[fd] = fe
	return fe
}

func epollMaskFor(bits Event) uint32 {
	var m uint32
	if bits&Read != 0 {
		m |= unix.EPOLLIN
	}
	if bits&Write != 0 {
		m |= unix.EPOLLOUT
	}
	return m
}

func (r *Reactor) syncEpoll(fd int, bits Event, isNew bool) error {
	if bits == 0 {
		return unix.EpollCtl(r.epfd, unix.EPOLL_CTL_DEL, fd, nil)
	}
	ev := &unix.EpollEvent{Events: epollMaskFor(bits), Fd: int32(fd)}
	op := unix.EPOLL_CTL_MOD
	if isNew {
		op = unix.EPOLL_CTL_ADD
	}
	return unix.EpollCtl(r.epfd, op, fd, ev)
}

// Tickle implements scheduler.Hooks: write one byte to the wake pipe if
// any worker is currently idle (blocked in, or about to call, epoll_wait).
func (r *Reactor) Tickle() {
	if atomic.LoadInt32(&r.idleCount) > 0 {
		var b [1]byte
		_, _ = unix.Write(r.wakeW, b[:])
	}
}

// ExtraStopping implements scheduler.Hooks: an IO manager additionally
// requires no pending fd-event bindings and no live timers.
func (r *Reactor) ExtraStopping() bool {
	return atomic.LoadInt64(&r.pendingEventCount) == 0 && r.TimerSet.Len() == 0
}

// Idle implements scheduler.Hooks: a worker with no eligible task loops
// calling epoll_wait (bounded by the nearer of the next timer deadline and
// idleEpollCapMs) until Stopping becomes true, dispatching readiness
// events and expired timers as ready tasks after each wait and yielding
// back to the dispatch loop so they can run.
func (r *Reactor) Idle(workerID int) {
	for !r.Scheduler.Stopping() {
		r.idleOnce()
		fiber.Yield()
	}
}

func (r *Reactor) idleOnce() {
	atomic.AddInt32(&r.idleCount, 1)
	defer atomic.AddInt32(&r.idleCount, -1)

	timeout := r.epollTimeoutMs()
	events := make([]unix.EpollEvent, 64)

	var n int
	var err error
	for {
		n, err = unix.EpollWait(r.epfd, events, timeout)
		if err == unix.EINTR {
			continue
		}
		break
	}
	if err != nil {
		log.Warn().Err(err).Msg("epoll_wait failed")
		return
	}

	for i := 0; i < n; i++ {
		fd := int(events[i].Fd)
		if fd == r.wakeR {
			r.drainWake()
			continue
		}
		r.dispatchReady(fd, events[i].Events)
	}

	for _, cb := range r.TimerSet.CollectExpired() {
		_ = r.Scheduler.ScheduleFunc(cb, scheduler.AnyThread)
	}
}

func (r *Reactor) epollTimeoutMs() int {
	nt := r.TimerSet.NextTimeout()
	if nt < 0 || nt > idleEpollCapMs {
		return idleEpollCapMs
	}
	return int(nt)
}

func (r *Reactor) drainWake() {
	var buf [64]byte
	for {
		n, err := unix.Read(r.wakeR, buf[:])
		if n <= 0 || err != nil {
			return
		}
	}
}

func (r *Reactor) dispatchReady(fd int, mask uint32) {
	fe := r.fdEntry(fd, false)
	if fe == nil {
		return
	}

	fe.mu.Lock()
	var readyRead, readyWrite binding
	if mask&(unix.EPOLLIN|unix.EPOLLHUP|unix.EPOLLERR) != 0 && fe.bits&Read != 0 {
		readyRead, fe.read = fe.read, binding{}
		fe.bits &^= Read
	}
	if mask&(unix.EPOLLOUT|unix.EPOLLHUP|unix.EPOLLERR) != 0 && fe.bits&Write != 0 {
		readyWrite, fe.write = fe.write, binding{}
		fe.bits &^= Write
	}
	remaining := fe.bits
	fe.mu.Unlock()

	_ = r.syncEpoll(fd, remaining, false)

	if !readyRead.empty() {
		atomic.AddInt64(&r.pendingEventCount, -1)
		readyRead.fire(r.Scheduler)
	}
	if !readyWrite.empty() {
		atomic.AddInt64(&r.pendingEventCount, -1)
		readyWrite.fire(r.Scheduler)
	}
}
