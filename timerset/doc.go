// Package timerset implements the timer set (C3): an ordered collection of
// absolute-deadline callbacks with conditional (weak-ref-guarded) firing
// and clock-rollover detection, grounded on the source's TimerManager
// (original_source/src/base/timer.cpp). Ordering ties break on insertion
// sequence rather than allocator address, since Go pointers carry no
// meaningful order.
package timerset
