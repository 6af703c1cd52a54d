package model

import (
	"encoding/json"
	"sort"

	"github.com/vango-dev/livemodel/pkg/compare"
)

// Reset restores every field to its template value and clears touched,
// invalid, state and memo bookkeeping. OnInit runs again on next access.
// A hard reset also drops listeners and family members. On a family root
// Reset applies to every member. Listeners are notified once, at the end of
// the batch when called inside one.
func (m *Model) Reset(hard bool) {
	if members := m.fanOut(); members != nil {
		for _, member := range members {
			member.Reset(hard)
		}
		if hard {
			m.lock.Lock()
			m.family.clear()
			m.lock.Unlock()
		}
		return
	}

	m.lock.Lock()
	defer m.lock.Unlock()

	m.token = 0
	clear(m.cache)
	clear(m.states)
	clear(m.touched)
	clear(m.invalid)
	if hard {
		m.changes.Clear()
	}
	for name := range m.fields {
		m.data[name] = m.template[name]
	}
	m.initialized = false
	m.changed()
}

// Hydrate fills fields from data without overwriting fields already
// written. Hydrated fields count as touched. Listeners are notified once
// if anything changed, at the end of the batch when called inside one. Family roots use HydrateFamily instead.
func (m *Model) Hydrate(data Data) {
	if m.family != nil {
		fail(ErrInvalidHydration, "use HydrateFamily on a family root")
	}

	m.lock.Lock()
	defer m.lock.Unlock()

	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	changed := false
	for _, key := range keys {
		if _, ok := m.fields[key]; !ok {
			continue
		}
		if _, ok := m.touched[key]; ok {
			continue
		}
		value := data[key]
		if compare.Strict(m.data[key], value) {
			continue
		}
		m.data[key] = value
		m.touched[key] = struct{}{}
		changed = true
	}
	if changed {
		m.token = nextToken()
		m.changed()
	}
}

// Dirty reports whether the model changed since construction or the last
// reset. With props, it reports whether any of them differs from its
// template value.
func (m *Model) Dirty(props ...string) bool {
	m.unsupportedOnFamily("Dirty")
	m.lock.Lock()
	defer m.lock.Unlock()

	if len(props) == 0 {
		return m.token != 0
	}
	for _, p := range props {
		if !compare.Strict(m.template[p], m.data[p]) {
			return true
		}
	}
	return false
}

// Touched reports whether any field (or any of props) was written.
func (m *Model) Touched(props ...string) bool {
	m.unsupportedOnFamily("Touched")
	m.lock.Lock()
	defer m.lock.Unlock()

	if len(props) == 0 {
		return len(m.touched) > 0
	}
	for _, p := range props {
		if _, ok := m.touched[p]; ok {
			return true
		}
	}
	return false
}

// Data returns a snapshot of the stored field values. Nested models are
// snapshotted recursively; methods and private props are left out.
func (m *Model) Data() Data {
	m.unsupportedOnFamily("Data")
	m.lock.Lock()
	defer m.lock.Unlock()

	out := make(Data, len(m.names))
	for _, name := range m.names {
		if nested, ok := m.nested[name]; ok {
			out[name] = nested.Data()
			continue
		}
		out[name] = m.data[name]
	}
	return out
}

// MarshalJSON encodes Data, or FamilyData for a family root.
func (m *Model) MarshalJSON() ([]byte, error) {
	if m.family != nil {
		return json.Marshal(m.FamilyData())
	}
	return json.Marshal(m.Data())
}
