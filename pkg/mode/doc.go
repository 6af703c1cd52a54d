// Package mode provides concurrency-mode combinators: stateless factories
// that wrap a function with an explicit re-entrancy policy.
//
//	save := mode.Debounce(300*time.Millisecond)(saveFn, nil)
//	save("a")
//	save("b") // collapses with the previous call
//
// Available modes:
//   - Sequential: queue calls, each waits for the previous one to settle
//   - Droppable: drop calls while a previous call is still in flight
//   - Debounce: collapse rapid calls into one trailing execution
//   - Once: run the first call only, replay its result afterwards
//   - Throttle: run, then replay the last result for the given window
//
// A call is "in flight" while the *future.Future it returned is pending.
// Plain return values settle immediately. Modes hold only wrapper-local
// state and can be attached to model methods or to watch/sync callbacks.
package mode
