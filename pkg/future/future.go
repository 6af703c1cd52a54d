// Package future provides the cancellable, promise-like handle returned by
// async loads, debounced or queued calls, and wait/when operations.
//
// A Future settles exactly once, either with a value or with an error.
// Cancelling a pending future runs its cancel callbacks and rejects it with
// ErrCancelled; cancelling a settled future only marks it cancelled.
package future

import (
	"context"
	"errors"
	"sync"
)

// ErrCancelled is the rejection reason of a future cancelled before settling.
var ErrCancelled = errors.New("livemodel: cancelled")

// ErrTimeout is the rejection reason of a load that ran past its timeout.
var ErrTimeout = errors.New("livemodel: timeout")

// Cancellable tracks a cancellation request and the callbacks it triggers.
type Cancellable struct {
	mu        sync.Mutex
	cancelled bool
	onCancel  []func()
}

// NewCancellable creates a Cancellable that calls onCancel (if non-nil)
// the first time Cancel is called.
func NewCancellable(onCancel func()) *Cancellable {
	c := &Cancellable{}
	if onCancel != nil {
		c.onCancel = append(c.onCancel, onCancel)
	}
	return c
}

// Cancel requests cancellation. Only the first call has an effect.
func (c *Cancellable) Cancel() {
	c.mu.Lock()
	if c.cancelled {
		c.mu.Unlock()
		return
	}
	c.cancelled = true
	callbacks := c.onCancel
	c.onCancel = nil
	c.mu.Unlock()

	for _, fn := range callbacks {
		fn()
	}
}

// Cancelled reports whether Cancel has been called.
func (c *Cancellable) Cancelled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cancelled
}

// OnCancel registers fn to run on cancellation. If already cancelled, fn
// runs immediately.
func (c *Cancellable) OnCancel(fn func()) {
	c.mu.Lock()
	if c.cancelled {
		c.mu.Unlock()
		fn()
		return
	}
	c.onCancel = append(c.onCancel, fn)
	c.mu.Unlock()
}

// Future is a value that becomes available later.
type Future struct {
	*Cancellable

	mu      sync.Mutex
	done    chan struct{}
	settled bool
	value   any
	err     error
	then    []func(any, error)
}

// New creates a pending future. onCancel runs when the future is cancelled.
func New(onCancel func()) *Future {
	f := &Future{
		Cancellable: NewCancellable(onCancel),
		done:        make(chan struct{}),
	}
	f.Cancellable.OnCancel(func() {
		f.Reject(ErrCancelled)
	})
	return f
}

// Resolved returns a future already settled with v.
func Resolved(v any) *Future {
	f := New(nil)
	f.Resolve(v)
	return f
}

// Rejected returns a future already settled with err.
func Rejected(err error) *Future {
	f := New(nil)
	f.Reject(err)
	return f
}

// Resolve settles the future with v. It reports whether this call settled it.
func (f *Future) Resolve(v any) bool {
	return f.settle(v, nil)
}

// Reject settles the future with err. It reports whether this call settled it.
func (f *Future) Reject(err error) bool {
	return f.settle(nil, err)
}

func (f *Future) settle(v any, err error) bool {
	f.mu.Lock()
	if f.settled {
		f.mu.Unlock()
		return false
	}
	f.settled = true
	f.value = v
	f.err = err
	callbacks := f.then
	f.then = nil
	close(f.done)
	f.mu.Unlock()

	for _, fn := range callbacks {
		fn(v, err)
	}
	return true
}

// Done returns a channel closed once the future settles.
func (f *Future) Done() <-chan struct{} {
	return f.done
}

// Settled reports whether the future has settled.
func (f *Future) Settled() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.settled
}

// Result returns the settled value and error. ok is false while pending.
func (f *Future) Result() (value any, err error, ok bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.value, f.err, f.settled
}

// Wait blocks until the future settles or ctx is done.
func (f *Future) Wait(ctx context.Context) (any, error) {
	select {
	case <-f.done:
		v, err, _ := f.Result()
		return v, err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Then registers fn to run when the future settles. If the future has
// already settled, fn runs immediately on the calling goroutine.
func (f *Future) Then(fn func(value any, err error)) *Future {
	f.mu.Lock()
	if f.settled {
		v, err := f.value, f.err
		f.mu.Unlock()
		fn(v, err)
		return f
	}
	f.then = append(f.then, fn)
	f.mu.Unlock()
	return f
}

// Chain returns a future settled with the result of next once f settles.
// next runs only when f resolves; a rejection of f propagates unchanged.
func (f *Future) Chain(next func(value any) (any, error)) *Future {
	out := New(f.Cancel)
	f.Then(func(v any, err error) {
		if err != nil {
			out.Reject(err)
			return
		}
		settleFrom(out, next, v)
	})
	return out
}

// Finally returns a future settled with the result of next after f settles,
// whatever the outcome of f.
func (f *Future) Finally(next func() (any, error)) *Future {
	out := New(f.Cancel)
	f.Then(func(any, error) {
		settleFrom(out, func(any) (any, error) { return next() }, nil)
	})
	return out
}

func settleFrom(out *Future, next func(any) (any, error), v any) {
	res, err := next(v)
	if err != nil {
		out.Reject(err)
		return
	}
	if inner, ok := res.(*Future); ok {
		inner.Then(func(v any, err error) {
			if err != nil {
				out.Reject(err)
				return
			}
			out.Resolve(v)
		})
		return
	}
	out.Resolve(res)
}

// All settles once every future resolves, with their values in order, or
// with the first rejection.
func All(fs ...*Future) *Future {
	out := New(func() {
		for _, f := range fs {
			f.Cancel()
		}
	})
	if len(fs) == 0 {
		out.Resolve([]any{})
		return out
	}

	var mu sync.Mutex
	values := make([]any, len(fs))
	remaining := len(fs)
	for i, f := range fs {
		if f == nil {
			mu.Lock()
			remaining--
			last := remaining == 0
			mu.Unlock()
			if last {
				out.Resolve(values)
			}
			continue
		}
		i := i
		f.Then(func(v any, err error) {
			if err != nil {
				out.Reject(err)
				return
			}
			mu.Lock()
			values[i] = v
			remaining--
			last := remaining == 0
			mu.Unlock()
			if last {
				out.Resolve(values)
			}
		})
	}
	return out
}
