package coroio_test

import (
	"testing"
	"time"

	"golang.org/x/sys/unix"

	"github.com/momentics/hioload-coro/coroio"
	"github.com/momentics/hioload-coro/fdctx"
	"github.com/momentics/hioload-coro/fiber"
	"github.com/momentics/hioload-coro/ioreactor"
	"github.com/momentics/hioload-coro/scheduler"
)

func newPair(t *testing.T) (a, b int) {
	t.Helper()
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM|unix.SOCK_NONBLOCK, 0)
	if err != nil {
		t.Fatalf("Socketpair: %v", err)
	}
	t.Cleanup(func() {
		fdctx.Default().Del(fds[0])
		fdctx.Default().Del(fds[1])
		_ = unix.Close(fds[0])
		_ = unix.Close(fds[1])
	})
	return fds[0], fds[1]
}

func runInFiber(t *testing.T, r *ioreactor.Reactor, body func()) {
	t.Helper()
	done := make(chan struct{})
	f := fiber.New(func() {
		body()
		close(done)
	}, 0, true)
	if err := r.Schedule(f, scheduler.AnyThread); err != nil {
		t.Fatalf("Schedule: %v", err)
	}
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatalf("fiber body never completed")
	}
}

// TestReadParksUntilDataArrives exercises property 7 from spec.md §8: a
// cooperative Read on an empty nonblocking socket parks instead of
// returning EAGAIN to the caller, and resumes once data is written from
// the peer.
func TestReadParksUntilDataArrives(t *testing.T) {
	r, err := ioreactor.New("read-park", 2, false)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer r.Close()
	r.Start()
	defer r.Stop()

	a, b := newPair(t)
	fdctx.Default().Get(a, true)

	go func() {
		time.Sleep(50 * time.Millisecond)
		_, _ = unix.Write(b, []byte("hi"))
	}()

	runInFiber(t, r, func() {
		buf := make([]byte, 8)
		n, err := coroio.Read(r, a, buf)
		if err != nil {
			t.Errorf("Read: %v", err)
			return
		}
		if string(buf[:n]) != "hi" {
			t.Errorf("expected \"hi\", got %q", buf[:n])
		}
	})
}

// TestReadHonorsTimeout checks property 8 from spec.md §8: a configured
// receive timeout fires ErrTimeout when no data ever arrives.
func TestReadHonorsTimeout(t *testing.T) {
	r, err := ioreactor.New("read-timeout", 2, false)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer r.Close()
	r.Start()
	defer r.Stop()

	a, _ := newPair(t)
	fc := fdctx.Default().Get(a, true)
	fc.SetRecvTimeoutMs(100)

	runInFiber(t, r, func() {
		buf := make([]byte, 8)
		_, err := coroio.Read(r, a, buf)
		if err != coroio.ErrTimeout {
			t.Errorf("expected ErrTimeout, got %v", err)
		}
	})
}

// TestWriteCompletesSynchronouslyWhenBufferHasRoom confirms the fast path
// (no EAGAIN, no parking) for a normal write.
func TestWriteCompletesSynchronouslyWhenBufferHasRoom(t *testing.T) {
	r, err := ioreactor.New("write-fast", 1, false)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer r.Close()
	r.Start()
	defer r.Stop()

	a, b := newPair(t)
	fdctx.Default().Get(a, true)

	runInFiber(t, r, func() {
		n, err := coroio.Write(r, a, []byte("ok"))
		if err != nil {
			t.Errorf("Write: %v", err)
			return
		}
		if n != 2 {
			t.Errorf("expected to write 2 bytes, wrote %d", n)
		}
	})

	buf := make([]byte, 8)
	n, err := unix.Read(b, buf)
	if err != nil {
		t.Fatalf("Read on peer: %v", err)
	}
	if string(buf[:n]) != "ok" {
		t.Fatalf("expected peer to see \"ok\", got %q", buf[:n])
	}
}

// TestNonSocketFdBypassesParkingEntirely confirms step 4 of the do_io
// template: a non-socket fd is never parked, even absent any reactor
// activity.
func TestNonSocketFdBypassesParkingEntirely(t *testing.T) {
	r, err := ioreactor.New("bypass", 1, false)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer r.Close()

	rp, wp, err := pipe(t)
	if err != nil {
		t.Fatalf("pipe: %v", err)
	}
	defer unix.Close(rp)
	defer unix.Close(wp)

	fdctx.Default().Get(rp, true)
	defer fdctx.Default().Del(rp)

	buf := make([]byte, 8)
	if _, err := coroio.Read(r, rp, buf); err != unix.EAGAIN {
		t.Fatalf("expected EAGAIN passthrough for a non-socket fd, got %v", err)
	}
}

func pipe(t *testing.T) (int, int, error) {
	t.Helper()
	var fds [2]int
	if err := unix.Pipe2(fds[:], unix.O_NONBLOCK); err != nil {
		return 0, 0, err
	}
	return fds[0], fds[1], nil
}

// TestUserNonblockBypassesParking confirms the "user asked for nonblocking,
// respect that" clause: with userNonblock set, EAGAIN propagates straight
// through instead of parking.
func TestUserNonblockBypassesParking(t *testing.T) {
	r, err := ioreactor.New("user-nonblock", 1, false)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer r.Close()

	a, _ := newPair(t)
	coroio.SetNonblock(a, true)
	if !coroio.GetNonblock(a) {
		t.Fatalf("expected GetNonblock true after SetNonblock(true)")
	}

	buf := make([]byte, 8)
	if _, err := coroio.Read(r, a, buf); err != unix.EAGAIN {
		t.Fatalf("expected EAGAIN passthrough with userNonblock set, got %v", err)
	}
}

// TestCloseCancelsPendingEvent confirms Close wakes any coroutine parked on
// the fd it is closing, via CancelAll.
func TestCloseCancelsPendingEvent(t *testing.T) {
	r, err := ioreactor.New("close-cancel", 2, false)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer r.Close()
	r.Start()
	defer r.Stop()

	a, _ := newPair(t)
	fdctx.Default().Get(a, true)

	readReturned := make(chan error, 1)
	go func() {
		time.Sleep(50 * time.Millisecond)
		_ = coroio.Close(r, a)
	}()

	runInFiber(t, r, func() {
		buf := make([]byte, 8)
		_, err := coroio.Read(r, a, buf)
		readReturned <- err
	})

	select {
	case err := <-readReturned:
		if err == nil {
			t.Fatalf("expected a cancellation error after Close, got nil")
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("Read never returned after Close")
	}
}

// TestSleepYieldsAndResumes exercises the explicit-timer Sleep path.
func TestSleepYieldsAndResumes(t *testing.T) {
	r, err := ioreactor.New("sleep", 1, false)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer r.Close()
	r.Start()
	defer r.Stop()

	start := time.Now()
	runInFiber(t, r, func() {
		coroio.Sleep(r, 60*time.Millisecond)
	})
	if time.Since(start) < 50*time.Millisecond {
		t.Fatalf("expected Sleep to actually park for roughly its duration")
	}
}

// TestSetTimeoutIsIndependentByDirection confirms recv/send timeouts are
// tracked separately.
func TestSetTimeoutIsIndependentByDirection(t *testing.T) {
	a, _ := newPair(t)
	coroio.SetTimeout(a, coroio.RecvTimeout, 500)
	coroio.SetTimeout(a, coroio.SendTimeout, 1500)

	fc := fdctx.Default().Get(a, false)
	if fc.RecvTimeoutMs() != 500 {
		t.Fatalf("expected recv timeout 500, got %d", fc.RecvTimeoutMs())
	}
	if fc.SendTimeoutMs() != 1500 {
		t.Fatalf("expected send timeout 1500, got %d", fc.SendTimeoutMs())
	}
}
