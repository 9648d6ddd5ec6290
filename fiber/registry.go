package fiber

import (
	"bytes"
	"runtime"
	"strconv"
	"sync"
)

// goroutineID extracts the numeric id of the calling goroutine from its
// runtime stack trace header ("goroutine 123 [running]:"). It stands in for
// the thread-local storage the source relies on (current coroutine, thread
// main) — each goroutine plays the role of one worker thread in the
// scheduler's ownership model.
func goroutineID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	b := buf[:n]
	b = bytes.TrimPrefix(b, []byte("goroutine "))
	if i := bytes.IndexByte(b, ' '); i >= 0 {
		b = b[:i]
	}
	id, _ := strconv.ParseUint(string(b), 10, 64)
	return id
}

// hostInfo is the per-goroutine record a driving goroutine (one that is not
// itself executing as a Fiber body) accumulates: its lazily created
// thread-main pseudo-fiber, and — if it is a scheduler worker — the
// dispatch-loop's scheduler-main pseudo-fiber.
type hostInfo struct {
	threadMain    *Fiber
	schedulerMain *Fiber
}

var (
	bodyMu  sync.RWMutex
	bodyReg = make(map[uint64]*Fiber)

	hostMu  sync.Mutex
	hostReg = make(map[uint64]*hostInfo)
)

func registerBody(gid uint64, f *Fiber) {
	bodyMu.Lock()
	bodyReg[gid] = f
	bodyMu.Unlock()
}

func unregisterBody(gid uint64) {
	bodyMu.Lock()
	delete(bodyReg, gid)
	bodyMu.Unlock()
}

func lookupBody(gid uint64) (*Fiber, bool) {
	bodyMu.RLock()
	f, ok := bodyReg[gid]
	bodyMu.RUnlock()
	return f, ok
}

func host(gid uint64) *hostInfo {
	hostMu.Lock()
	defer hostMu.Unlock()
	h, ok := hostReg[gid]
	if !ok {
		h = &hostInfo{}
		hostReg[gid] = h
	}
	return h
}

// Current returns the Fiber executing on the calling goroutine, or this
// goroutine's thread-main pseudo-fiber if no Fiber body is running on it.
func Current() *Fiber {
	gid := goroutineID()
	if f, ok := lookupBody(gid); ok {
		return f
	}
	return threadMainFor(gid)
}

func threadMainFor(gid uint64) *Fiber {
	h := host(gid)
	hostMu.Lock()
	defer hostMu.Unlock()
	if h.threadMain == nil {
		h.threadMain = &Fiber{id: nextID()}
		h.threadMain.state.Store(int32(Running))
	}
	return h.threadMain
}

// ThreadMain returns the calling goroutine's thread-main pseudo-fiber: a
// context-only Fiber used as the return point for fibers that do not
// participate in a scheduler. Called from inside a Fiber body that does not
// participate in a scheduler, it returns the context that body's resume()
// saved, since the body runs on its own dedicated goroutine rather than its
// resumer's. Called from a driver goroutine, it lazily creates the
// goroutine's thread-main.
func ThreadMain() *Fiber {
	if f := currentBody(); f != nil {
		return f.returnCtx
	}
	return threadMainFor(goroutineID())
}

// SetSchedulerMain records f as the scheduler dispatch-loop fiber for the
// calling goroutine. Called once by scheduler.Scheduler at the top of each
// worker's dispatch loop.
func SetSchedulerMain(f *Fiber) {
	h := host(goroutineID())
	hostMu.Lock()
	h.schedulerMain = f
	hostMu.Unlock()
}

func schedulerMainFor(gid uint64) *Fiber {
	hostMu.Lock()
	defer hostMu.Unlock()
	if h, ok := hostReg[gid]; ok {
		return h.schedulerMain
	}
	return nil
}

// SchedulerMain returns the scheduler dispatch-loop fiber for the calling
// context: the fiber's saved return context when called from inside a
// participating Fiber body (its own goroutine is not itself registered as a
// worker host), or the registered scheduler-main for the calling goroutine
// when called directly from a dispatch loop or other driver goroutine.
func SchedulerMain() *Fiber {
	if f := currentBody(); f != nil {
		return f.returnCtx
	}
	return schedulerMainFor(goroutineID())
}
