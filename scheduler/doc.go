// Package scheduler implements the scheduler (C2): a fixed-size worker pool
// that multiplexes fiber.Fiber and plain closures over a FIFO task queue,
// honoring per-task thread affinity. The dispatch loop is a direct port of
// the source's Scheduler::run (scan head-to-tail, skip affinity mismatches
// and already-running fibers, tickle peers when work remains, idle when the
// queue is empty).
package scheduler
