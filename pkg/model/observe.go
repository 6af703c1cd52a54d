package model

import (
	"sync"

	"github.com/vango-dev/livemodel/pkg/compare"
	"github.com/vango-dev/livemodel/pkg/future"
	"github.com/vango-dev/livemodel/pkg/mode"
)

// Listen registers fn for change notifications and returns a function that
// removes it. With props, fn only runs when one of those props changed
// since the previous notification.
func (m *Model) Listen(fn func(), props ...string) (unsubscribe func()) {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.init()
	return m.changes.Add(filterProps(fn, m.value, props))
}

// Subscribe registers fn for change notifications like Listen, but does not
// run OnInit. Injectors use it to watch models without initializing them.
func (m *Model) Subscribe(fn func()) (unsubscribe func()) {
	return m.changes.Add(func(struct{}) { fn() })
}

func (m *Model) prependListener(fn func()) func() {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.init()
	return m.changes.Prepend(func(struct{}) { fn() })
}

// filterProps wraps fn so it only runs when a prop read through read
// changed. The returned handler is called with the source lock held.
func filterProps(fn func(), read func(string) any, props []string) func(struct{}) {
	if len(props) == 0 {
		return func(struct{}) { fn() }
	}
	prev := make([]any, len(props))
	for i, p := range props {
		prev[i] = read(p)
	}
	return func(struct{}) {
		changed := false
		for i, p := range props {
			next := read(p)
			if !compare.Strict(prev[i], next) {
				prev[i] = next
				changed = true
			}
		}
		if changed {
			fn()
		}
	}
}

type watchOptions struct {
	compare compare.Func
	mode    mode.Mode
}

// WatchOption configures Watch.
type WatchOption func(*watchOptions)

// WatchCompare sets the function deciding whether the selected value
// changed. The default is compare.Strict.
func WatchCompare(cmp compare.Func) WatchOption {
	return func(o *watchOptions) { o.compare = cmp }
}

// WatchMode wraps the watch callback with a concurrency mode.
func WatchMode(md mode.Mode) WatchOption {
	return func(o *watchOptions) { o.mode = md }
}

func newWatcher(selector func() any, cb func(any), opts []WatchOption) func() {
	o := watchOptions{}
	for _, opt := range opts {
		opt(&o)
	}
	cmp := compare.Resolve(o.compare, compare.Strict)
	call := mode.Wrap(o.mode, func(args ...any) any {
		cb(args[0])
		return nil
	})

	prev := selector()
	return func() {
		next := selector()
		if cmp(prev, next) {
			return
		}
		prev = next
		call(next)
	}
}

// Watch calls cb with the selected value whenever it changes.
func (m *Model) Watch(selector func(m *Model) any, cb func(value any), opts ...WatchOption) (unsubscribe func()) {
	m.lock.Lock()
	defer m.lock.Unlock()
	handler := newWatcher(func() any { return selector(m) }, cb, opts)
	return m.Listen(handler)
}

// subscription detaches a one-shot listener exactly once, whether the
// future it feeds settles or is cancelled first.
type subscription struct {
	mu     sync.Mutex
	stop   func()
	closed bool
}

func (s *subscription) attach(stop func()) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		stop()
		return
	}
	s.stop = stop
	s.mu.Unlock()
}

func (s *subscription) close() {
	s.mu.Lock()
	s.closed = true
	stop := s.stop
	s.stop = nil
	s.mu.Unlock()
	if stop != nil {
		stop()
	}
}

// Wait returns a future resolved with m on its next change notification.
// Cancelling the future stops waiting.
func (m *Model) Wait() *future.Future {
	sub := &subscription{}
	out := future.New(sub.close)
	sub.attach(m.Listen(func() {
		if out.Resolve(m) {
			sub.close()
		}
	}))
	return out
}

// WaitFor returns a future resolved with the selected value the next time
// it changes according to cmp (compare.Strict when nil).
func (m *Model) WaitFor(selector func(m *Model) any, cmp compare.Func) *future.Future {
	sub := &subscription{}
	out := future.New(sub.close)

	m.lock.Lock()
	defer m.lock.Unlock()
	handler := newWatcher(func() any { return selector(m) }, func(v any) {
		if out.Resolve(v) {
			sub.close()
		}
	}, []WatchOption{WatchCompare(cmp)})
	sub.attach(m.Listen(handler))
	return out
}

// Observe registers fn for every activity event.
func (m *Model) Observe(fn func(a Activity)) (unsubscribe func()) {
	return m.activity.Add(fn)
}

// When returns a future resolved with the next activity matching any of
// filters.
func (m *Model) When(filters ...Filter) *future.Future {
	return m.WhenFunc(func(a Activity) bool {
		for _, f := range filters {
			if f.match(a) {
				return true
			}
		}
		return false
	})
}

// WhenFunc returns a future resolved with the next activity for which
// match reports true.
func (m *Model) WhenFunc(match func(a Activity) bool) *future.Future {
	sub := &subscription{}
	out := future.New(sub.close)
	sub.attach(m.activity.Add(func(a Activity) {
		if match(a) && out.Resolve(a) {
			sub.close()
		}
	}))
	return out
}

// Sync keeps m updated from source: selector's result is merged into m now
// and after every change of source. md, when non-nil, wraps the handler.
// Sync panics with ErrFamilyUnsupported on a family root.
func (m *Model) Sync(source *Model, selector func(src *Model) Data, md mode.Mode) (unsubscribe func()) {
	m.unsupportedOnFamily("Sync")
	return m.syncFrom([]*Model{source}, func() Data { return selector(source) }, md)
}

// SyncAll is Sync over several named sources.
func (m *Model) SyncAll(sources map[string]*Model, selector func(src map[string]*Model) Data, md mode.Mode) (unsubscribe func()) {
	m.unsupportedOnFamily("Sync")
	list := make([]*Model, 0, len(sources))
	for _, src := range sources {
		list = append(list, src)
	}
	return m.syncFrom(list, func() Data { return selector(sources) }, md)
}

func (m *Model) syncFrom(sources []*Model, selector func() Data, md mode.Mode) func() {
	handle := func() {
		if update := selector(); update != nil {
			m.Merge(update)
		}
	}
	call := mode.Wrap(md, func(...any) any {
		handle()
		return nil
	})

	stops := make([]func(), 0, len(sources))
	for _, src := range sources {
		stops = append(stops, src.Listen(func() { call() }))
	}
	handle()

	return func() {
		for i := len(stops) - 1; i >= 0; i-- {
			stops[i]()
		}
	}
}

// Silent suspends change notifications until the returned release runs.
// Changes are still recorded; releasing the last hold notifies once if
// anything changed. Holds nest.
func (m *Model) Silent() (release func()) {
	if members := m.fanOut(); members != nil {
		releases := make([]func(), 0, len(members))
		for _, member := range members {
			releases = append(releases, member.Silent())
		}
		return releaseAll(releases)
	}

	m.lock.Lock()
	defer m.lock.Unlock()
	m.silent++
	token := m.token

	var once sync.Once
	return func() {
		once.Do(func() {
			m.lock.Lock()
			defer m.lock.Unlock()
			m.silent--
			if m.silent == 0 && token != m.token {
				m.notify()
			}
		})
	}
}

// Lock makes every write a no-op until the returned release runs. Holds
// nest.
func (m *Model) Lock() (release func()) {
	if members := m.fanOut(); members != nil {
		releases := make([]func(), 0, len(members))
		for _, member := range members {
			releases = append(releases, member.Lock())
		}
		return releaseAll(releases)
	}

	m.lock.Lock()
	defer m.lock.Unlock()
	m.locked++

	var once sync.Once
	return func() {
		once.Do(func() {
			m.lock.Lock()
			defer m.lock.Unlock()
			m.locked--
		})
	}
}

func releaseAll(releases []func()) func() {
	var once sync.Once
	return func() {
		once.Do(func() {
			for _, r := range releases {
				r()
			}
		})
	}
}
