package model

import (
	"sync"

	"github.com/vango-dev/livemodel/pkg/compare"
	"github.com/vango-dev/livemodel/pkg/emitter"
)

// sliceSource is anything a slice can be cut from.
type sliceSource interface {
	Reader
	prependListener(fn func()) func()
}

// Slice is a read-only projection of a model (or of another slice). It
// recomputes before the source's other listeners run, so a chain of slices
// notifies innermost first. A slice follows its source until Close.
type Slice struct {
	mu      sync.RWMutex
	data    Data
	changes *emitter.Emitter[struct{}]
	detach  func()
}

// Slice derives a read-only view of m from selector.
func (m *Model) Slice(selector func(r Reader) Data) *Slice {
	return newSlice(m, selector)
}

func newSlice(src sliceSource, selector func(r Reader) Data) *Slice {
	s := &Slice{
		data:    copyData(selector(src)),
		changes: emitter.New[struct{}](),
	}
	prev := s.Data()
	s.detach = src.prependListener(func() {
		next := selector(src)
		if compare.Shallow(prev, next) {
			return
		}
		prev = copyData(next)

		s.mu.Lock()
		for k, v := range next {
			s.data[k] = v
		}
		s.mu.Unlock()
		s.changes.Emit(struct{}{})
	})
	return s
}

func copyData(d Data) Data {
	out := make(Data, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}

// Get returns a selected value.
func (s *Slice) Get(name string) any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data[name]
}

// Data returns a copy of the selected values.
func (s *Slice) Data() Data {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copyData(s.data)
}

// Listen registers fn for changes of the slice, or of props only.
func (s *Slice) Listen(fn func(), props ...string) (unsubscribe func()) {
	return s.changes.Add(filterProps(fn, s.Get, props))
}

// Watch calls cb with the selected value whenever it changes.
func (s *Slice) Watch(selector func(s *Slice) any, cb func(value any), opts ...WatchOption) (unsubscribe func()) {
	handler := newWatcher(func() any { return selector(s) }, cb, opts)
	return s.Listen(handler)
}

// Slice derives a narrower view of s.
func (s *Slice) Slice(selector func(r Reader) Data) *Slice {
	return newSlice(s, selector)
}

// Close stops following the source. The slice keeps its last values, and
// slices derived from it stop changing too. Close is idempotent.
func (s *Slice) Close() {
	s.detach()
}

func (s *Slice) prependListener(fn func()) func() {
	return s.changes.Prepend(func(struct{}) { fn() })
}
