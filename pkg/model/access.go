package model

import (
	"fmt"

	"github.com/vango-dev/livemodel/pkg/compare"
	"github.com/vango-dev/livemodel/pkg/future"
)

// Get returns the current value of a field, a nested model or a private
// prop. It panics with ErrUnknownProp for any other name.
func (m *Model) Get(name string) any {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.init()

	if f, ok := m.fields[name]; ok {
		m.emit(Activity{Type: ActivityRead, Prop: name})
		return m.read(f)
	}
	if nested, ok := m.nested[name]; ok {
		return nested
	}
	if v, ok := m.private[name]; ok {
		return v
	}
	fail(ErrUnknownProp, "%s", name)
	return nil
}

func (m *Model) read(f *field) any {
	if f.hooks.Get != nil {
		return f.hooks.Get(m)
	}
	return m.data[f.name]
}

// value reads name without emitting activity.
func (m *Model) value(name string) any {
	if f, ok := m.fields[name]; ok {
		return m.read(f)
	}
	return m.data[name]
}

// Set writes a field. Writing a readonly field panics with ErrReadonly and
// writing an unknown field panics with ErrUnknownProp. While the model is
// locked writes are ignored.
func (m *Model) Set(name string, value any) {
	m.lock.Lock()
	defer m.lock.Unlock()

	f, ok := m.fields[name]
	if !ok {
		if _, nested := m.nested[name]; nested {
			fail(ErrReadonly, "the prop %s is a nested model", name)
		}
		fail(ErrUnknownProp, "%s", name)
	}
	if f.readonly() {
		fail(ErrReadonly, "the prop %s is readonly", name)
	}
	if m.locked > 0 {
		return
	}
	m.set(f, value)
}

func (m *Model) set(f *field, value any) {
	m.init()
	m.emit(Activity{Type: ActivityWrite, Prop: f.name, Value: value})

	if f.hooks.Set != nil && !f.hooks.Set(m, value) {
		return
	}
	if compare.Strict(value, m.data[f.name]) {
		return
	}
	m.data[f.name] = value
	m.touched[f.name] = struct{}{}
	m.token = nextToken()

	if f.hooks.OnChange != nil {
		f.hooks.OnChange(m)
	}
	if f.hooks.Validate != nil {
		m.validate(f, value)
	}
	if m.jobs > 0 {
		return
	}
	m.notify()
}

func (m *Model) validate(f *field, value any) {
	result, err := runValidator(m, f.hooks.Validate)
	if err != nil {
		m.setInvalid(f.name, err, true)
		return
	}
	pending, ok := result.(*future.Future)
	if !ok {
		m.setInvalid(f.name, result, true)
		return
	}
	// A settled future runs the callback inline; set notifies for it.
	inline := true
	pending.Then(func(v any, err error) {
		m.lock.Lock()
		defer m.lock.Unlock()
		if !compare.Strict(m.data[f.name], value) {
			return
		}
		outcome := v
		if err != nil {
			outcome = err
		}
		if m.setInvalid(f.name, outcome, true) && !inline && m.jobs == 0 {
			m.notify()
		}
	})
	inline = false
}

func runValidator(m *Model, fn func(*Model) any) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			if e, ok := r.(error); ok {
				err = e
				return
			}
			err = fmt.Errorf("validator panicked: %v", r)
		}
	}()
	return fn(m), nil
}

// setInvalid records a validation outcome and reports whether the invalid
// map changed. nil is ignored; a bool marks (or, inverted, clears) the
// field; anything else is stored as the failure.
func (m *Model) setInvalid(name string, value any, invert bool) bool {
	switch v := value.(type) {
	case nil:
		return false
	case bool:
		if invert {
			v = !v
		}
		_, had := m.invalid[name]
		if v {
			if had {
				return false
			}
			m.invalid[name] = true
			return true
		}
		if had {
			delete(m.invalid, name)
			return true
		}
		return false
	default:
		if prev, ok := m.invalid[name]; ok && compare.Strict(prev, value) {
			return false
		}
		m.invalid[name] = value
		return true
	}
}

// Invalid returns the validation failure recorded for name: true, an error
// or another failure value. It returns nil for a valid field.
func (m *Model) Invalid(name string) any {
	m.lock.Lock()
	defer m.lock.Unlock()
	return m.invalid[name]
}

// HasInvalid reports whether any field is invalid.
func (m *Model) HasInvalid() bool {
	m.lock.Lock()
	defer m.lock.Unlock()
	return len(m.invalid) > 0
}

// SetInvalid marks name invalid (true or a failure value) or valid (false)
// and notifies listeners if that changed anything.
func (m *Model) SetInvalid(name string, value any) {
	m.lock.Lock()
	defer m.lock.Unlock()
	if m.setInvalid(name, value, false) {
		m.notify()
	}
}

// Value reads name from r as a T, returning the zero value when the value
// is missing or of another type.
func Value[T any](r Reader, name string) T {
	v, _ := r.Get(name).(T)
	return v
}

// Int reads an int field.
func (m *Model) Int(name string) int { return Value[int](m, name) }

// String reads a string field.
func (m *Model) String(name string) string { return Value[string](m, name) }

// Bool reads a bool field.
func (m *Model) Bool(name string) bool { return Value[bool](m, name) }

// Float reads a float64 field.
func (m *Model) Float(name string) float64 { return Value[float64](m, name) }

// GetState returns the value of state for prop, or the state's default.
func (m *Model) GetState(prop string, state *State) any {
	m.lock.Lock()
	defer m.lock.Unlock()
	if v, ok := m.states[prop][state]; ok {
		return v
	}
	return state.Default
}

// SetState changes the value of state for prop. A change runs the field's
// OnStateChange and the model's OnStateChange hooks, then notifies
// listeners if the state asks for it.
func (m *Model) SetState(prop string, state *State, value any) {
	m.lock.Lock()
	defer m.lock.Unlock()

	slots := m.states[prop]
	if slots == nil {
		slots = make(map[*State]any)
		m.states[prop] = slots
	}
	if prev, ok := slots[state]; ok && compare.Strict(prev, value) {
		return
	}
	slots[state] = value

	e := StateChange{Prop: prop, State: state, Value: value}
	if f, ok := m.fields[prop]; ok && f.hooks.OnStateChange != nil {
		f.hooks.OnStateChange(m, e)
	}
	if m.def.OnStateChange != nil {
		m.def.OnStateChange(m, e)
	}
	if state.Notify {
		m.notify()
	}
}

// Accessor is a handle on a single prop of a model.
type Accessor struct {
	model *Model
	prop  string
}

// Prop returns the accessor for prop. Accessors are cached per prop.
func (m *Model) Prop(prop string) *Accessor {
	m.lock.Lock()
	defer m.lock.Unlock()
	a, ok := m.accessors[prop]
	if !ok {
		a = &Accessor{model: m, prop: prop}
		m.accessors[prop] = a
	}
	return a
}

func (a *Accessor) Model() *Model { return a.model }
func (a *Accessor) Name() string { return a.prop }
func (a *Accessor) Value() any { return a.model.Get(a.prop) }
func (a *Accessor) SetValue(v any) { a.model.Set(a.prop, v) }
func (a *Accessor) Invalid() any { return a.model.Invalid(a.prop) }
func (a *Accessor) SetInvalid(v any) { a.model.SetInvalid(a.prop, v) }
func (a *Accessor) GetState(s *State) any { return a.model.GetState(a.prop, s) }
func (a *Accessor) SetState(s *State, v any) { a.model.SetState(a.prop, s, v) }
func (a *Accessor) Listen(fn func()) (unsubscribe func()) { return a.model.Listen(fn, a.prop) }
