package model

import "sync"

// Injector customizes every model built after it is registered. It runs
// before props are bound, may edit props in place, may call Wrap, and may
// return a callback that runs once construction completes.
type Injector func(m *Model, props Props) func()

// Wrapper intercepts a method. Wrappers registered later wrap earlier ones.
type Wrapper func(next Method, m *Model) Method

var (
	injectorsMu sync.RWMutex
	injectors   []Injector
)

// Inject replaces the process-wide injector set and returns the previous
// one, so callers can restore it. Registration lasts until the next Inject.
func Inject(list ...Injector) (previous []Injector) {
	injectorsMu.Lock()
	defer injectorsMu.Unlock()
	previous = injectors
	injectors = append([]Injector(nil), list...)
	return previous
}

// WithInjectors runs fn with list installed and restores the previous
// injectors afterwards.
func WithInjectors(list []Injector, fn func()) {
	previous := Inject(list...)
	defer Inject(previous...)
	fn()
}

func currentInjectors() []Injector {
	injectorsMu.RLock()
	defer injectorsMu.RUnlock()
	return injectors
}

// Wrap registers method wrappers. It may only be called from an injector.
func (m *Model) Wrap(wrappers ...Wrapper) *Model {
	if !m.creating {
		fail(ErrWrapOutsideInjector, "wrap called after construction")
	}
	for _, w := range wrappers {
		if w != nil {
			m.wrappers = append(m.wrappers, w)
		}
	}
	return m
}
