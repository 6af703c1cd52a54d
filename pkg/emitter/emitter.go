// Package emitter provides a minimal multi-listener fan-out primitive.
//
// Handlers are notified in registration order; Prepend places a handler in
// front of those already registered. Emit copies the handler list before
// notifying, so handlers may add or remove handlers (including themselves)
// while an emission is in progress.
package emitter

import (
	"sync"
	"sync/atomic"
)

var handlerIDs atomic.Uint64

type entry[T any] struct {
	id uint64
	fn func(T)
}

// Emitter fans an event out to every registered handler.
// The zero value is ready to use.
type Emitter[T any] struct {
	mu       sync.RWMutex
	handlers []entry[T]
}

// New creates an empty emitter.
func New[T any]() *Emitter[T] {
	return &Emitter[T]{}
}

// Add registers a handler and returns a function that removes it.
// The returned function is idempotent.
func (e *Emitter[T]) Add(fn func(T)) func() {
	return e.insert(fn, false)
}

// Prepend registers a handler ahead of every handler already registered.
func (e *Emitter[T]) Prepend(fn func(T)) func() {
	return e.insert(fn, true)
}

func (e *Emitter[T]) insert(fn func(T), front bool) func() {
	if fn == nil {
		return func() {}
	}
	id := handlerIDs.Add(1)

	e.mu.Lock()
	if front {
		e.handlers = append([]entry[T]{{id: id, fn: fn}}, e.handlers...)
	} else {
		e.handlers = append(e.handlers, entry[T]{id: id, fn: fn})
	}
	e.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { e.remove(id) })
	}
}

func (e *Emitter[T]) remove(id uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i, h := range e.handlers {
		if h.id == id {
			e.handlers = append(e.handlers[:i:i], e.handlers[i+1:]...)
			return
		}
	}
}

// Emit calls every handler with v.
func (e *Emitter[T]) Emit(v T) {
	for _, fn := range e.snapshot() {
		fn(v)
	}
}

// Each calls visit once per registered handler, in order.
func (e *Emitter[T]) Each(visit func(handler func(T))) {
	for _, fn := range e.snapshot() {
		visit(fn)
	}
}

// Clear removes every handler.
func (e *Emitter[T]) Clear() {
	e.mu.Lock()
	e.handlers = nil
	e.mu.Unlock()
}

// Len returns the number of registered handlers.
func (e *Emitter[T]) Len() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.handlers)
}

func (e *Emitter[T]) snapshot() []func(T) {
	e.mu.RLock()
	fns := make([]func(T), len(e.handlers))
	for i, h := range e.handlers {
		fns[i] = h.fn
	}
	e.mu.RUnlock()
	return fns
}
