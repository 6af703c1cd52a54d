package mode

import (
	"fmt"
	"sync"
	"time"

	"github.com/eapache/queue"

	"github.com/vango-dev/livemodel/pkg/future"
)

// Func is the shape every mode wraps.
type Func func(args ...any) any

// Mode wraps fn with a re-entrancy policy. onCancel, when non-nil, is called
// whenever the policy drops or supersedes a call.
type Mode func(fn Func, onCancel func()) Func

// now is replaced in tests.
var now = time.Now

// invoke runs fn and classifies its outcome. A returned error value or a
// panic counts as a failure; a returned future is handed back untouched.
func invoke(fn Func, args []any) (result any, err error, pending *future.Future) {
	defer func() {
		if r := recover(); r != nil {
			if e, ok := r.(error); ok {
				err = e
			} else {
				err = fmt.Errorf("livemodel: panic in wrapped call: %v", r)
			}
		}
	}()
	result = fn(args...)
	switch v := result.(type) {
	case *future.Future:
		return nil, nil, v
	case error:
		return nil, v, nil
	}
	return result, nil, nil
}

type seqJob struct {
	args []any
	out  *future.Future
}

// Sequential queues calls so that each one starts after the previous call
// has settled. Without afterDone, a failed call rejects every call queued
// behind it without running them; with afterDone, queued calls run
// regardless of how the previous call ended. Every call returns a future.
func Sequential(afterDone bool) Mode {
	return func(fn Func, onCancel func()) Func {
		var (
			mu      sync.Mutex
			pending = queue.New()
			busy    bool
		)

		var run func(job *seqJob)
		next := func(prevErr error) {
			for {
				mu.Lock()
				if pending.Length() == 0 {
					busy = false
					mu.Unlock()
					return
				}
				job := pending.Remove().(*seqJob)
				mu.Unlock()

				if job.out.Cancelled() {
					continue
				}
				if prevErr != nil && !afterDone {
					job.out.Reject(prevErr)
					continue
				}
				run(job)
				return
			}
		}

		run = func(job *seqJob) {
			result, err, inner := invoke(fn, job.args)
			if inner != nil {
				inner.Then(func(v any, err error) {
					if err != nil {
						job.out.Reject(err)
					} else {
						job.out.Resolve(v)
					}
					next(err)
				})
				return
			}
			if err != nil {
				job.out.Reject(err)
			} else {
				job.out.Resolve(result)
			}
			next(err)
		}

		return func(args ...any) any {
			job := &seqJob{args: args, out: future.New(onCancel)}
			mu.Lock()
			if busy {
				pending.Add(job)
				mu.Unlock()
				return job.out
			}
			busy = true
			mu.Unlock()

			run(job)
			return job.out
		}
	}
}

// Droppable ignores calls made while a previous call is still in flight.
// Dropped calls invoke onCancel and return nil.
func Droppable() Mode {
	return func(fn Func, onCancel func()) Func {
		var (
			mu      sync.Mutex
			calling bool
		)
		release := func() {
			mu.Lock()
			calling = false
			mu.Unlock()
		}

		return func(args ...any) any {
			mu.Lock()
			if calling {
				mu.Unlock()
				if onCancel != nil {
					onCancel()
				}
				return nil
			}
			calling = true
			mu.Unlock()

			async := false
			defer func() {
				if !async {
					release()
				}
			}()

			result := fn(args...)
			if f, ok := result.(*future.Future); ok {
				async = true
				f.Then(func(any, error) { release() })
			}
			return result
		}
	}
}

// Debounce collapses calls made within d of each other into one execution
// that runs d after the last call, with the last call's arguments. Every
// collapsed call returns a future settled with that execution's result.
// Cancelling any of those futures cancels the pending execution.
func Debounce(d time.Duration) Mode {
	return func(fn Func, onCancel func()) Func {
		var (
			mu       sync.Mutex
			timer    *time.Timer
			gen      uint64
			waiting  []*future.Future
			lastArgs []any
		)

		cancel := func() {
			mu.Lock()
			if timer != nil {
				timer.Stop()
				timer = nil
			}
			gen++
			drop := waiting
			waiting = nil
			mu.Unlock()

			if len(drop) == 0 {
				return
			}
			if onCancel != nil {
				onCancel()
			}
			for _, f := range drop {
				f.Cancel()
			}
		}

		fire := func(g uint64) {
			mu.Lock()
			if g != gen {
				mu.Unlock()
				return
			}
			settle := waiting
			args := lastArgs
			waiting = nil
			timer = nil
			mu.Unlock()

			result, err, inner := invoke(fn, args)
			finish := func(v any, err error) {
				for _, f := range settle {
					if err != nil {
						f.Reject(err)
					} else {
						f.Resolve(v)
					}
				}
			}
			if inner != nil {
				inner.Then(finish)
				return
			}
			finish(result, err)
		}

		return func(args ...any) any {
			out := future.New(cancel)

			mu.Lock()
			superseded := len(waiting) > 0
			if timer != nil {
				timer.Stop()
			}
			gen++
			g := gen
			waiting = append(waiting, out)
			lastArgs = args
			timer = time.AfterFunc(d, func() { fire(g) })
			mu.Unlock()

			if superseded && onCancel != nil {
				onCancel()
			}
			return out
		}
	}
}

// Once runs only the first call; later calls return the first result.
func Once() Mode {
	return func(fn Func, _ func()) Func {
		var (
			mu     sync.Mutex
			called bool
			result any
		)
		return func(args ...any) any {
			mu.Lock()
			if called {
				r := result
				mu.Unlock()
				return r
			}
			called = true
			mu.Unlock()

			r := fn(args...)

			mu.Lock()
			result = r
			mu.Unlock()
			return r
		}
	}
}

// Throttle runs the first call immediately and then returns its result for
// every call made within d of that execution.
func Throttle(d time.Duration) Mode {
	return func(fn Func, _ func()) Func {
		var (
			mu       sync.Mutex
			lastTime time.Time
			result   any
		)
		return func(args ...any) any {
			mu.Lock()
			t := now()
			if !lastTime.IsZero() && !lastTime.Add(d).Before(t) {
				r := result
				mu.Unlock()
				return r
			}
			lastTime = t
			mu.Unlock()

			r := fn(args...)

			mu.Lock()
			result = r
			mu.Unlock()
			return r
		}
	}
}

// Wrap applies m to fn without a cancel callback. A nil mode returns fn.
func Wrap(m Mode, fn Func) Func {
	if m == nil {
		return fn
	}
	return m(fn, nil)
}
