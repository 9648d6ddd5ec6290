package ioreactor_test

import (
	"sync"
	"testing"
	"time"

	"golang.org/x/sys/unix"

	"github.com/momentics/hioload-coro/ioreactor"
)

func newPair(t *testing.T) (a, b int) {
	t.Helper()
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	if err != nil {
		t.Fatalf("Socketpair: %v", err)
	}
	t.Cleanup(func() {
		_ = unix.Close(fds[0])
		_ = unix.Close(fds[1])
	})
	return fds[0], fds[1]
}

// TestFdEventUniqueness checks property 4 from spec §8: at most one
// binding may exist per (fd, event) pair at a time.
func TestFdEventUniqueness(t *testing.T) {
	r, err := ioreactor.New("uniqueness", 1, false)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer r.Close()

	a, _ := newPair(t)
	if err := r.AddEvent(a, ioreactor.Read, func() {}); err != nil {
		t.Fatalf("first AddEvent: %v", err)
	}
	if err := r.AddEvent(a, ioreactor.Read, func() {}); err != ioreactor.ErrAlreadyBound {
		t.Fatalf("expected ErrAlreadyBound on double-bind, got %v", err)
	}
	// A different event bit on the same fd must still succeed.
	if err := r.AddEvent(a, ioreactor.Write, func() {}); err != nil {
		t.Fatalf("AddEvent for a distinct bit: %v", err)
	}
}

// TestCancelEventWakesHandler checks property 9 from spec §8: cancelling a
// bound event immediately schedules its handler, even with no I/O
// readiness.
func TestCancelEventWakesHandler(t *testing.T) {
	r, err := ioreactor.New("cancel", 1, false)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer r.Close()
	r.Start()
	defer r.Stop()

	a, _ := newPair(t)
	fired := make(chan struct{})
	if err := r.AddEvent(a, ioreactor.Read, func() { close(fired) }); err != nil {
		t.Fatalf("AddEvent: %v", err)
	}

	if !r.CancelEvent(a, ioreactor.Read) {
		t.Fatalf("expected CancelEvent to report a binding was present")
	}

	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatalf("cancelled handler never ran")
	}

	if r.PendingEventCount() != 0 {
		t.Fatalf("expected pending event count 0 after cancel, got %d", r.PendingEventCount())
	}
}

// TestCancelEventOnUnboundFdReturnsFalse checks the no-op case.
func TestCancelEventOnUnboundFdReturnsFalse(t *testing.T) {
	r, err := ioreactor.New("cancel-noop", 1, false)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer r.Close()

	a, _ := newPair(t)
	if r.CancelEvent(a, ioreactor.Read) {
		t.Fatalf("expected false cancelling an unbound event")
	}
}

// TestReadinessSchedulesHandler confirms writing to one end of a socket
// pair fires the READ handler registered on the other end via the reactor
// loop.
func TestReadinessSchedulesHandler(t *testing.T) {
	r, err := ioreactor.New("readiness", 1, false)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer r.Close()
	r.Start()
	defer r.Stop()

	a, b := newPair(t)
	fired := make(chan struct{})
	if err := r.AddEvent(a, ioreactor.Read, func() { close(fired) }); err != nil {
		t.Fatalf("AddEvent: %v", err)
	}

	if _, err := unix.Write(b, []byte("x")); err != nil {
		t.Fatalf("Write: %v", err)
	}

	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatalf("readiness handler never ran")
	}
}

// TestStopDrainsPendingTimers exercises the IO-manager stopping predicate:
// Stop must wait for a pending timer to fire before returning.
func TestStopDrainsPendingTimers(t *testing.T) {
	r, err := ioreactor.New("stop-drain", 1, false)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer r.Close()
	r.Start()

	var mu sync.Mutex
	ran := false
	r.Add(50, false, func() {
		mu.Lock()
		ran = true
		mu.Unlock()
	})

	r.Stop()

	mu.Lock()
	defer mu.Unlock()
	if !ran {
		t.Fatalf("expected pending timer to fire before Stop returned")
	}
}
