// Package fdctx implements the fd context table (C5): a process-wide,
// sparse registry of per-fd state — is this a socket, is it held
// kernel-nonblocking, what does the application think its nonblocking flag
// is, what are its configured receive/send timeouts — that the coroio
// hook layer consults without a syscall on the hot path. Grounded on the
// source's FdManager/FdCtx (original_source/src/base has no standalone
// fd_manager.cpp in the retrieved set; behavior follows spec.md §4.5).
package fdctx
