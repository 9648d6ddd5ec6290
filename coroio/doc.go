// Package coroio is the explicit async I/O surface that stands in for the
// source's libc-interposition hook layer
// (original_source/include/base/hook.h, src/base/hook.cc). Go has no
// symbol-interposition mechanism, so instead of transparently rewriting
// read/write/accept/connect/close/sleep at the libc boundary, this package
// exposes them as ordinary functions a coroutine calls directly:
// coroio.Read, coroio.Write, coroio.Accept, coroio.Connect, coroio.Close,
// coroio.Sleep. The CALL -> PARK -> RESUME/TIMEOUT state machine each one
// drives is unchanged from the hook layer's do_io template; only the entry
// point moved from "transparent" to "explicit".
package coroio
