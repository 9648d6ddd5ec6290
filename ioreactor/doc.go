// Package ioreactor implements the I/O manager (C4): a scheduler.Scheduler
// and a timerset.TimerSet composed around one epoll instance, a
// self-pipe wake mechanism, and a growable per-fd event-bit table.
// Grounded on the source's IOManager
// (original_source/include/base/iomanager.h) and on an x/sys/unix
// epoll reactor (reactor/reactor_linux.go), which supplies the
// EpollCreate1/EpollCtl/EpollWait call shapes this package generalizes
// from "one fd per registration, fixed event mask" to the source's
// per-bit READ/WRITE binding-and-rewrite model.
package ioreactor
