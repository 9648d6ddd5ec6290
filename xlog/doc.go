// Package xlog provides package-local structured loggers backed by
// zerolog. Each core package (fiber, scheduler, timerset, ioreactor,
// coroio, and the domain-stack consumers) calls xlog.For("<package>")
// once and keeps the returned logger, rather than depending on a single
// shared global logger value, so per-component level overrides and
// field sets don't fight over one mutable logger.
package xlog
