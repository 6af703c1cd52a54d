package model

import (
	"reflect"

	"github.com/vango-dev/livemodel/pkg/compare"
	"github.com/vango-dev/livemodel/pkg/emitter"
)

// family holds the members of a family root, in creation order.
type family struct {
	compare  compare.Func
	members  []*Model
	index    map[any]*Model
	hydrated []FamilyEntry
	created  *emitter.Emitter[*Model]
}

type membership struct {
	key     any
	root    *Model
	removed bool
}

func newFamily(cmp compare.Func) *family {
	return &family{
		compare: compare.Resolve(cmp, compare.Shallow),
		index:   make(map[any]*Model),
		created: emitter.New[*Model](),
	}
}

// composite keys are matched with the family's compare function; every
// other key is matched by identity.
func composite(key any) bool {
	if key == nil {
		return false
	}
	switch reflect.TypeOf(key).Kind() {
	case reflect.Slice, reflect.Array, reflect.Map, reflect.Struct, reflect.Pointer, reflect.Func:
		return true
	}
	return false
}

func (f *family) find(key any) *Model {
	if !composite(key) {
		return f.index[key]
	}
	for _, member := range f.members {
		if composite(member.member.key) && f.compare(member.member.key, key) {
			return member
		}
	}
	return nil
}

func (f *family) hydratedData(key any) Data {
	for _, e := range f.hydrated {
		if composite(key) {
			if composite(e.Key) && f.compare(e.Key, key) {
				return e.Data
			}
			continue
		}
		if compare.Strict(e.Key, key) {
			return e.Data
		}
	}
	return nil
}

func (f *family) add(member *Model) {
	f.members = append(f.members, member)
	if !composite(member.member.key) {
		f.index[member.member.key] = member
	}
}

func (f *family) remove(member *Model) {
	for i, x := range f.members {
		if x == member {
			f.members = append(f.members[:i], f.members[i+1:]...)
			break
		}
	}
	if !composite(member.member.key) {
		delete(f.index, member.member.key)
	}
}

func (f *family) clear() {
	f.members = nil
	f.index = make(map[any]*Model)
}

// IsFamily reports whether m is a family root.
func (m *Model) IsFamily() bool {
	return m.family != nil
}

// Family returns the member for key, creating it from the root template on
// first use. Equal keys always return the same member. Family panics with
// ErrFamilyUnsupported when m is not a family root.
func (m *Model) Family(key any) *Model {
	if m.family == nil {
		fail(ErrFamilyUnsupported, "Family called on a model without a key prop")
	}

	var (
		member  *Model
		created bool
	)
	func() {
		m.lock.Lock()
		defer m.lock.Unlock()
		member, created = m.findOrCreate(key)
	}()
	if created {
		m.family.created.Emit(member)
	}
	return member
}

func (m *Model) findOrCreate(key any) (*Model, bool) {
	if member := m.family.find(key); member != nil {
		return member, false
	}

	props := make(Props, len(m.template)+1)
	for k, v := range m.template {
		props[k] = v
	}
	for k, v := range m.family.hydratedData(key) {
		props[k] = v
	}
	props[m.def.Key] = key

	def := m.def
	def.Props = props
	def.Key = ""
	def.KeyCompare = nil

	member := build(def, &membership{key: key, root: m}, nil)
	m.family.add(member)
	return member, true
}

// OnMember registers fn for every member created from the family root m
// from now on. It panics with ErrFamilyUnsupported when m is not a family
// root.
func (m *Model) OnMember(fn func(member *Model)) (unsubscribe func()) {
	if m.family == nil {
		fail(ErrFamilyUnsupported, "OnMember called on a model without a key prop")
	}
	return m.family.created.Add(fn)
}

// Key returns a member's key, or nil when m is not a family member.
func (m *Model) Key() any {
	if m.member == nil {
		return nil
	}
	return m.member.key
}

// IsMember reports whether m belongs to a family.
func (m *Model) IsMember() bool {
	return m.member != nil
}

// Remove evicts a member from its family. Only the first call has an
// effect; it emits a single remove activity.
func (m *Model) Remove() {
	ms := m.member
	if ms == nil {
		return
	}

	ms.root.lock.Lock()
	if ms.removed {
		ms.root.lock.Unlock()
		return
	}
	ms.removed = true
	ms.root.family.remove(m)
	ms.root.lock.Unlock()

	m.lock.Lock()
	defer m.lock.Unlock()
	m.emit(Activity{Type: ActivityRemove, Key: ms.key, Model: m})
}

// Members returns the members of a family root in creation order.
func (m *Model) Members() []*Model {
	if m.family == nil {
		return nil
	}
	m.lock.Lock()
	defer m.lock.Unlock()
	return append([]*Model(nil), m.family.members...)
}

// FamilyData snapshots every member of a family root.
func (m *Model) FamilyData() []FamilyEntry {
	members := m.Members()
	out := make([]FamilyEntry, 0, len(members))
	for _, member := range members {
		out = append(out, FamilyEntry{Key: member.member.key, Data: member.Data()})
	}
	return out
}

// HydrateFamily provides initial data for members created afterwards.
// It panics with ErrInvalidHydration when m is not a family root.
func (m *Model) HydrateFamily(entries []FamilyEntry) {
	if m.family == nil {
		fail(ErrInvalidHydration, "HydrateFamily called on a model without a key prop")
	}
	m.lock.Lock()
	defer m.lock.Unlock()
	m.family.hydrated = append([]FamilyEntry(nil), entries...)
}

// fanOut returns the members a root-level operation applies to, or nil
// when m is not a family root.
func (m *Model) fanOut() []*Model {
	if m.family == nil {
		return nil
	}
	members := m.Members()
	if members == nil {
		members = []*Model{}
	}
	return members
}

func (m *Model) unsupportedOnFamily(op string) {
	if m.family != nil {
		fail(ErrFamilyUnsupported, "%s", op)
	}
}
