package session_test

import (
	"context"
	"testing"
	"time"

	"github.com/momentics/hioload-coro/ioreactor"
	"github.com/momentics/hioload-coro/session"
)

func TestCreateGetDelete(t *testing.T) {
	store := session.NewStore(nil, 4, 0)

	sess := store.Create("conn-1")
	sess.Set("user", "alice")

	got, ok := store.Get("conn-1")
	if !ok {
		t.Fatalf("expected session to be present")
	}
	if v, _ := got.Get("user"); v != "alice" {
		t.Fatalf("expected user=alice, got %v", v)
	}

	store.Delete("conn-1")
	if _, ok := store.Get("conn-1"); ok {
		t.Fatalf("expected session to be gone after Delete")
	}
	select {
	case <-sess.Done():
	default:
		t.Fatalf("expected Done to be closed after Delete")
	}
}

func TestGetOrCreateReusesExisting(t *testing.T) {
	store := session.NewStore(nil, 4, 0)
	a := store.GetOrCreate("x")
	b := store.GetOrCreate("x")
	if a != b {
		t.Fatalf("expected GetOrCreate to return the same session instance")
	}
}

func TestCancelClosesContext(t *testing.T) {
	store := session.NewStore(nil, 4, 0)
	sess := store.Create("conn-2")
	ctx := sess.Context(context.Background())

	sess.Cancel()

	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		t.Fatalf("expected derived context to be cancelled")
	}
}

func TestIdleSweepExpiresStaleSessions(t *testing.T) {
	r, err := ioreactor.New("session-sweep-test", 1, false)
	if err != nil {
		t.Fatalf("ioreactor.New: %v", err)
	}
	defer r.Close()
	r.Start()
	defer r.Stop()

	store := session.NewStore(r, 1, 20*time.Millisecond)
	sess := store.Create("stale")

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if _, ok := store.Get("stale"); !ok {
			select {
			case <-sess.Done():
			default:
				t.Fatalf("expected session to be cancelled once swept")
			}
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("expected idle session to be swept within deadline")
}

func TestDeadlineExpiry(t *testing.T) {
	r, err := ioreactor.New("session-deadline-test", 1, false)
	if err != nil {
		t.Fatalf("ioreactor.New: %v", err)
	}
	defer r.Close()
	r.Start()
	defer r.Stop()

	store := session.NewStore(r, 1, 200*time.Millisecond)
	sess := store.Create("deadline")
	sess.WithDeadline(time.Now().Add(10 * time.Millisecond))

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if _, ok := store.Get("deadline"); !ok {
			return
		}
		// Keep the session fresh so only its deadline can expire it.
		sess.Touch()
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("expected deadline-bound session to be swept within deadline")
}

func TestValuesSnapshotIsIndependent(t *testing.T) {
	store := session.NewStore(nil, 2, 0)
	sess := store.Create("snap")
	sess.Set("a", 1)

	snap := sess.Values()
	snap["a"] = 2
	if v, _ := sess.Get("a"); v != 1 {
		t.Fatalf("expected Values() to return an independent copy, session mutated to %v", v)
	}
}
