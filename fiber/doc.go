// Package fiber implements the coroutine primitive (C1): a cooperative,
// stackful task with an explicit resume/yield contract and a three-state
// lifecycle (Ready, Running, Term).
//
// Go goroutines already have their own growable stack and their own
// independent scheduling slot, so rather than porting ucontext-style context
// switching, a Fiber wraps a dedicated goroutine and hands control back and
// forth with a pair of unbuffered channels ("batons"). Exactly one side of
// the handoff is ever runnable, which reproduces resume/yield's alternation
// without assembly.
package fiber
