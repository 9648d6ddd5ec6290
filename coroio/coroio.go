package coroio

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sys/unix"

	"github.com/momentics/hioload-coro/fdctx"
	"github.com/momentics/hioload-coro/fiber"
	"github.com/momentics/hioload-coro/ioreactor"
	"github.com/momentics/hioload-coro/scheduler"
	"github.com/momentics/hioload-coro/timerset"
)

// Direction selects which of a socket's two timeouts (SO_RCVTIMEO vs.
// SO_SNDTIMEO) governs a parked call.
type Direction int

const (
	RecvTimeout Direction = iota
	SendTimeout
)

// ErrTimeout is returned when a parked call's deadline fires before the
// underlying fd becomes ready. It wraps unix.ETIMEDOUT, so errors.Is matches
// both ErrTimeout and ETIMEDOUT.
var ErrTimeout = fmt.Errorf("coroio: i/o timeout: %w", unix.ETIMEDOUT)

var enabled atomic.Bool

func init() {
	enabled.Store(true)
}

// Enabled reports whether parking is currently active for this process. The
// source's hook-enable switch is thread-local, set by the scheduler's
// dispatch loop at the top of each worker; a single process-wide flag is
// used here instead; a per-goroutine registry mirroring fiber's would
// duplicate that package's bookkeeping for a knob tests flip rarely and
// never concurrently with live traffic.
func Enabled() bool { return enabled.Load() }

// SetEnabled toggles hook behavior process-wide. With hooks disabled,
// Read/Write/Recv/Send/Accept/Connect fall through to a direct,
// blocking-as-given syscall — useful for tests that want to drive an fd
// without a reactor. Close and Sleep do not consult the flag.
func SetEnabled(v bool) { enabled.Store(v) }

var defaultConnectTimeoutMs int64 = 5000

// SetDefaultConnectTimeoutMs overrides the deadline Connect uses when called
// with timeoutMs <= 0 (5000 ms until set). It is not connected to config:
// changes to config's tcp.connect.timeout key are not applied here.
func SetDefaultConnectTimeoutMs(ms int64) {
	atomic.StoreInt64(&defaultConnectTimeoutMs, ms)
}

func connectTimeoutMs() int64 {
	return atomic.LoadInt64(&defaultConnectTimeoutMs)
}

// wakeInfo is the per-call record a parked operation's timer and event
// binding both close over. The source guards it with a weak pointer so a
// fired timer never touches a destroyed call frame; Go's garbage collector
// makes that guard unnecessary; the struct's only remaining job is carrying
// the cancellation reason from whichever of (timer, event) fires first.
type wakeInfo struct {
	mu        sync.Mutex
	cancelled error
}

func (w *wakeInfo) cancel(err error) {
	w.mu.Lock()
	if w.cancelled == nil {
		w.cancelled = err
	}
	w.mu.Unlock()
}

func (w *wakeInfo) reason() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.cancelled
}

// park registers interest in (fd, ev) on r, binding the calling coroutine as
// the resumer, and yields. If timeoutMs is not fdctx.NoTimeout, a one-shot
// timer races the event: whichever fires first cancels the other. Returns
// ErrTimeout if the timer won.
func park(r *ioreactor.Reactor, fd int, ev ioreactor.Event, timeoutMs int64) error {
	wake := &wakeInfo{}

	var handle *timerset.Handle
	if timeoutMs != fdctx.NoTimeout {
		handle = r.Add(timeoutMs, false, func() {
			wake.cancel(ErrTimeout)
			r.CancelEvent(fd, ev)
		})
	}

	if err := r.AddEvent(fd, ev, nil); err != nil {
		if handle != nil {
			handle.Cancel()
		}
		return err
	}

	fiber.Yield()

	if handle != nil {
		handle.Cancel()
	}
	return wake.reason()
}

// do implements the source's do_io template: call the underlying syscall;
// on EAGAIN, park until (fd, ev) is ready or the fd's configured timeout
// fires, then retry. fd must already have an fdctx.FdCtx registered in
// fdctx.Default() (tcpserver/connpool register one at accept/dial time);
// an fd with no context, or one that is not a socket, or one the caller has
// put in its own nonblocking mode, is never parked — the call runs exactly
// once, synchronously.
func do(r *ioreactor.Reactor, fd int, ev ioreactor.Event, dir Direction, fn func() (int, error)) (int, error) {
	if !Enabled() {
		return fn()
	}
	fc := fdctx.Default().Get(fd, false)
	if fc == nil {
		return fn()
	}
	if fc.Closed() {
		return -1, unix.EBADF
	}
	if !fc.IsSocket() || fc.UserNonblock() {
		return fn()
	}

	timeoutMs := fc.RecvTimeoutMs()
	if dir == SendTimeout {
		timeoutMs = fc.SendTimeoutMs()
	}

	for {
		n, err := fn()
		if err == nil {
			return n, nil
		}
		if err == unix.EINTR {
			continue
		}
		if err != unix.EAGAIN && err != unix.EWOULDBLOCK {
			return n, err
		}
		if perr := park(r, fd, ev, timeoutMs); perr != nil {
			return -1, perr
		}
	}
}

// Read is the cooperative counterpart of read(2).
func Read(r *ioreactor.Reactor, fd int, buf []byte) (int, error) {
	return do(r, fd, ioreactor.Read, RecvTimeout, func() (int, error) {
		return unix.Read(fd, buf)
	})
}

// Write is the cooperative counterpart of write(2).
func Write(r *ioreactor.Reactor, fd int, buf []byte) (int, error) {
	return do(r, fd, ioreactor.Write, SendTimeout, func() (int, error) {
		return unix.Write(fd, buf)
	})
}

// Recv is the cooperative counterpart of recv(2)/recvfrom(2).
func Recv(r *ioreactor.Reactor, fd int, buf []byte, flags int) (int, error) {
	return do(r, fd, ioreactor.Read, RecvTimeout, func() (int, error) {
		if flags == 0 {
			return unix.Read(fd, buf)
		}
		n, _, err := unix.Recvfrom(fd, buf, flags)
		return n, err
	})
}

// Send is the cooperative counterpart of send(2)/sendto(2).
func Send(r *ioreactor.Reactor, fd int, buf []byte, flags int) (int, error) {
	return do(r, fd, ioreactor.Write, SendTimeout, func() (int, error) {
		if flags == 0 {
			return unix.Write(fd, buf)
		}
		if err := unix.Sendto(fd, buf, flags, nil); err != nil {
			return -1, err
		}
		return len(buf), nil
	})
}

// Accept is the cooperative counterpart of accept(2). On success the
// returned fd is registered in fdctx.Default() (auto-create, fstat will
// find it a socket) so subsequent Read/Write/Close calls on it park
// correctly.
func Accept(r *ioreactor.Reactor, fd int) (int, unix.Sockaddr, error) {
	var sa unix.Sockaddr
	nfd, err := do(r, fd, ioreactor.Read, RecvTimeout, func() (int, error) {
		n, rsa, aerr := unix.Accept4(fd, unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC)
		if aerr == nil {
			sa = rsa
		}
		return n, aerr
	})
	if err != nil {
		return -1, nil, err
	}
	fdctx.Default().Get(nfd, true)
	return nfd, sa, nil
}

// Connect is the cooperative counterpart of connect(2). timeoutMs <= 0 uses
// the process default set by SetDefaultConnectTimeoutMs (5000 ms unless
// changed).
func Connect(r *ioreactor.Reactor, fd int, sa unix.Sockaddr, timeoutMs int64) error {
	fc := fdctx.Default().Get(fd, true)
	if !Enabled() || !fc.IsSocket() || fc.UserNonblock() {
		return unix.Connect(fd, sa)
	}

	err := unix.Connect(fd, sa)
	if err == nil {
		return nil
	}
	if err != unix.EINPROGRESS {
		return err
	}

	if timeoutMs <= 0 {
		timeoutMs = connectTimeoutMs()
	}
	if perr := park(r, fd, ioreactor.Write, timeoutMs); perr != nil {
		return perr
	}

	soerr, gerr := unix.GetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_ERROR)
	if gerr != nil {
		return gerr
	}
	if soerr != 0 {
		return unix.Errno(soerr)
	}
	return nil
}

// Close is the cooperative counterpart of close(2): it cancels every event
// bound to fd on r (waking their handlers with a forced cancellation),
// drops fd's context, then closes it.
func Close(r *ioreactor.Reactor, fd int) error {
	r.CancelAll(fd)
	if fc := fdctx.Default().Get(fd, false); fc != nil {
		fc.MarkClosed()
	}
	fdctx.Default().Del(fd)
	return unix.Close(fd)
}

// Sleep parks the calling coroutine for at least d, yielding the worker to
// other ready work in the meantime. Outside a fiber it falls back to a
// plain blocking time.Sleep.
func Sleep(r *ioreactor.Reactor, d time.Duration) {
	cur := fiber.Current()
	if cur == fiber.ThreadMain() {
		time.Sleep(d)
		return
	}
	ms := d.Milliseconds()
	if ms <= 0 {
		ms = 1
	}
	r.Add(ms, false, func() {
		_ = r.Schedule(cur, scheduler.AnyThread)
	})
	fiber.Yield()
}

// SetNonblock is the cooperative counterpart of
// ioctl(fd, FIONBIO, *arg)/fcntl(fd, F_SETFL, O_NONBLOCK): it records the
// application's own nonblocking preference without touching the kernel
// flag, which coroio holds nonblocking for sockets regardless.
func SetNonblock(fd int, nonblocking bool) {
	fdctx.Default().Get(fd, true).SetUserNonblock(nonblocking)
}

// GetNonblock is the cooperative counterpart of fcntl(fd, F_GETFL): it
// returns the application's own requested view, not the kernel's actual
// flag, preserving the illusion that nothing intercepted the fd.
func GetNonblock(fd int) bool {
	fc := fdctx.Default().Get(fd, false)
	if fc == nil {
		return false
	}
	return fc.UserNonblock()
}

// SetTimeout is the cooperative counterpart of
// setsockopt(fd, SOL_SOCKET, SO_{RCV,SND}TIMEO, tv): ms is stored in the fd
// context and enforced by the timer set, never handed to the kernel.
func SetTimeout(fd int, dir Direction, ms int64) {
	fc := fdctx.Default().Get(fd, true)
	if dir == SendTimeout {
		fc.SetSendTimeoutMs(ms)
	} else {
		fc.SetRecvTimeoutMs(ms)
	}
}
