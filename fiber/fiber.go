package fiber

import (
	"fmt"
	"sync/atomic"
)

// DefaultStackSize is the stack hint used when New is called with size 0.
// It mirrors the source's fiber.stack_size default and is read from
// config by callers that want it centrally tunable; the Fiber itself does
// not allocate a stack (Go manages goroutine stacks), so the value is kept
// only for bookkeeping and for sizing buffers callers hang off a Fiber.
const DefaultStackSize uint32 = 128 * 1024

// State is a Fiber's position in its three-state lifecycle.
type State int32

const (
	// Ready means the fiber was just constructed, or has yielded and is
	// eligible to be resumed again.
	Ready State = iota
	// Running means the fiber currently holds the CPU.
	Running
	// Term means the fiber's entry closure has returned; it cannot be
	// resumed again, only Reset.
	Term
)

func (s State) String() string {
	switch s {
	case Ready:
		return "ready"
	case Running:
		return "running"
	case Term:
		return "term"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

var (
	idCounter int64
	liveCount int64
)

func nextID() uint64 {
	return uint64(atomic.AddInt64(&idCounter, 1))
}

// TotalFibers returns the number of currently live (non-thread-main)
// fibers, for diagnostics.
func TotalFibers() int64 {
	return atomic.LoadInt64(&liveCount)
}

// Fiber is a cooperative, stackful task. The zero value is not usable;
// construct with New.
type Fiber struct {
	id           uint64
	state        atomic.Int32
	entry        func()
	participates bool
	stackHint    uint32

	started  atomic.Bool
	resumeCh chan struct{}
	stepCh   chan struct{}

	// returnCtx is the context resume() saves before switching to this
	// fiber: the resuming goroutine's scheduler-main if participates is
	// set, otherwise its thread-main. Code running inside this fiber's
	// body (on its own dedicated goroutine) consults returnCtx to answer
	// fiber.SchedulerMain()/fiber.ThreadMain() queries, since the body's
	// goroutine id is not itself registered as a host.
	returnCtx *Fiber
}

// New allocates a Fiber whose body will run entry when first resumed.
// stackSize is advisory (see DefaultStackSize). participatesInScheduler
// selects which saved context Resume records for this fiber's body to
// consult via SchedulerMain/ThreadMain: the resuming goroutine's
// scheduler-main if true, otherwise its thread-main.
func New(entry func(), stackSize uint32, participatesInScheduler bool) *Fiber {
	if entry == nil {
		panic("fiber: entry must not be nil")
	}
	if stackSize == 0 {
		stackSize = DefaultStackSize
	}
	f := &Fiber{
		id:           nextID(),
		entry:        entry,
		participates: participatesInScheduler,
		stackHint:    stackSize,
		resumeCh:     make(chan struct{}),
		stepCh:       make(chan struct{}),
	}
	f.state.Store(int32(Ready))
	atomic.AddInt64(&liveCount, 1)
	return f
}

// NewContextFiber constructs a context-only pseudo-fiber: no entry, no
// backing goroutine, permanently in the Running state. It exists purely as
// an identity token for bookkeeping roles that have no body of their own —
// a thread-main or a scheduler-main — mirroring the source's main-fiber
// construction (Fiber::Fiber(), the no-arg constructor).
func NewContextFiber() *Fiber {
	f := &Fiber{id: nextID()}
	f.state.Store(int32(Running))
	return f
}

// ID returns the fiber's monotonically increasing identity.
func (f *Fiber) ID() uint64 { return f.id }

// State returns the fiber's current lifecycle state.
func (f *Fiber) State() State { return State(f.state.Load()) }

// ParticipatesInScheduler reports whether this fiber was created to run
// under a scheduler's dispatch loop.
func (f *Fiber) ParticipatesInScheduler() bool { return f.participates }

// Resume switches execution to f. It must only be called when f.State() ==
// Ready; any other state is a contract violation and panics, matching the
// source's assert-driven error model (see spec §7).
func (f *Fiber) Resume() {
	switch f.State() {
	case Term:
		panic(fmt.Sprintf("fiber: resume of fiber %d in TERM state", f.id))
	case Running:
		panic(fmt.Sprintf("fiber: resume of fiber %d already RUNNING", f.id))
	}
	if f.participates {
		f.returnCtx = schedulerMainFor(goroutineID())
	} else {
		f.returnCtx = threadMainFor(goroutineID())
	}
	f.state.Store(int32(Running))
	if f.started.CompareAndSwap(false, true) {
		go f.run()
	} else {
		f.resumeCh <- struct{}{}
	}
	<-f.stepCh
}

// run is the body of the dedicated goroutine backing f. It registers this
// goroutine as f's permanent host (for the lifetime of the goroutine) so
// that fiber.Current(), called from anywhere in the entry closure's call
// graph, resolves back to f.
func (f *Fiber) run() {
	gid := goroutineID()
	registerBody(gid, f)
	defer unregisterBody(gid)

	f.entry()
	f.entry = nil
	f.state.Store(int32(Term))
	atomic.AddInt64(&liveCount, -1)
	// Final yield: wake the resumer but do not wait to be resumed again.
	f.stepCh <- struct{}{}
}

// Yield suspends the calling fiber, switching control back to whichever
// goroutine is blocked in the matching Resume call. It is a contract
// violation — and panics — to call Yield from outside a fiber body.
func Yield() {
	f := currentBody()
	if f == nil {
		panic("fiber: yield called outside a coroutine")
	}
	f.yieldSelf()
}

// currentBody returns the Fiber whose body is executing on the calling
// goroutine, or nil if this goroutine is a thread-main/driver goroutine.
func currentBody() *Fiber {
	if f, ok := lookupBody(goroutineID()); ok {
		return f
	}
	return nil
}

func (f *Fiber) yieldSelf() {
	st := f.State()
	if st != Running && st != Term {
		panic(fmt.Sprintf("fiber: yield of fiber %d in state %s", f.id, st))
	}
	if st != Term {
		f.state.Store(int32(Ready))
	}
	f.stepCh <- struct{}{}
	if st != Term {
		<-f.resumeCh
	}
}

// Reset rebuilds f for a new entry closure. It requires f.State() == Term;
// the next Resume spawns a fresh backing goroutine (Go stacks cannot be
// manually reused the way the source reuses its malloc'd stack — see
// DESIGN.md for this documented deviation).
func (f *Fiber) Reset(entry func()) {
	if entry == nil {
		panic("fiber: entry must not be nil")
	}
	if f.State() != Term {
		panic(fmt.Sprintf("fiber: reset of fiber %d not in TERM state", f.id))
	}
	f.entry = entry
	f.resumeCh = make(chan struct{})
	f.stepCh = make(chan struct{})
	f.started.Store(false)
	f.state.Store(int32(Ready))
	atomic.AddInt64(&liveCount, 1)
}
