package model

import "sort"

// call runs fn as one batch. Listeners are notified once, when the
// outermost batch returns with a changed token. A lazy batch hands the
// notification to the scheduler and drops it if a newer change lands first.
func (m *Model) call(fn func() any, lazy bool) any {
	m.jobs++
	token := m.token
	defer func() {
		m.jobs--
		if m.jobs != 0 || (token == m.token && !m.owed) {
			return
		}
		m.owed = false
		if !lazy {
			m.notify()
			return
		}
		pending := m.token
		m.scheduler.Schedule(func() {
			m.lock.Lock()
			defer m.lock.Unlock()
			if pending != m.token {
				return
			}
			m.notify()
		})
	}()
	return fn()
}

// changed notifies now, or at the end of the running batch.
func (m *Model) changed() {
	if m.jobs > 0 {
		m.owed = true
		return
	}
	m.notify()
}

func (m *Model) notify() {
	if m.silent > 0 {
		return
	}
	if m.def.OnChange != nil {
		m.def.OnChange(m)
	}
	if m.def.ValidateAll != nil {
		m.def.ValidateAll(m)
	}
	m.changes.Emit(struct{}{})
}

// Call runs fn as a method of m. On a family root it runs fn on every member
// and returns the first result.
func (m *Model) Call(fn Method, args ...any) any {
	if members := m.fanOut(); members != nil {
		var first any
		for i, member := range members {
			r := member.Call(fn, args...)
			if i == 0 {
				first = r
			}
		}
		return first
	}

	m.lock.Lock()
	defer m.lock.Unlock()
	return m.call(func() any { return fn(m, args...) }, false)
}

// Invoke calls the bound method name. It panics with ErrUnknownMethod when
// no such method exists.
func (m *Model) Invoke(name string, args ...any) any {
	fn, ok := m.methods[name]
	if !ok {
		fail(ErrUnknownMethod, "%s", name)
	}
	return fn(args...)
}

// Batch runs fn and notifies listeners once afterwards if anything changed.
func (m *Model) Batch(fn func(m *Model)) {
	m.batch(fn, false)
}

// BatchLazy is Batch with the notification deferred to the scheduler.
func (m *Model) BatchLazy(fn func(m *Model)) {
	m.batch(fn, true)
}

func (m *Model) batch(fn func(m *Model), lazy bool) {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.init()
	m.call(func() any {
		fn(m)
		return nil
	}, lazy)
}

// Merge assigns every known field of data in one batch. Values for nested
// models are merged into them. Unknown, readonly and private keys are
// ignored. On a family root Merge applies to every member.
func (m *Model) Merge(data Data) {
	m.merge(data, false)
}

// MergeLazy is Merge with the notification deferred to the scheduler.
func (m *Model) MergeLazy(data Data) {
	m.merge(data, true)
}

func (m *Model) merge(data Data, lazy bool) {
	if members := m.fanOut(); members != nil {
		for _, member := range members {
			member.merge(data, lazy)
		}
		return
	}

	m.lock.Lock()
	defer m.lock.Unlock()
	m.call(func() any {
		m.assign(data)
		return nil
	}, lazy)
}

func (m *Model) assign(data Data) {
	if m.locked > 0 {
		return
	}
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		value := data[key]
		if key == "" || key[0] == '$' {
			continue
		}
		if _, ok := asMethod(value); ok {
			continue
		}
		if nested, ok := m.nested[key]; ok {
			if sub := toData(value); sub != nil {
				nested.Merge(sub)
			}
			continue
		}
		f, ok := m.fields[key]
		if !ok || f.readonly() {
			continue
		}
		m.set(f, value)
	}
}

func toData(v any) Data {
	switch x := v.(type) {
	case Data:
		return x
	case map[string]any:
		return Data(x)
	case Props:
		return Data(x)
	case *Model:
		if x != nil {
			return x.Data()
		}
	}
	return nil
}
