package model

import (
	"github.com/vango-dev/livemodel/pkg/compare"
	"github.com/vango-dev/livemodel/pkg/mode"
)

// Props is a model template: initial field values, methods and nested
// models, keyed by name.
type Props map[string]any

// Data is a plain snapshot of a model's field values.
type Data map[string]any

// Method is a model method. It runs with the model it is bound to.
type Method func(m *Model, args ...any) any

// FieldHooks customizes one field.
type FieldHooks struct {
	// Get replaces the stored value on read. A field with Get and no Set
	// is readonly.
	Get func(m *Model) any

	// Set runs before a write is committed; returning false vetoes it.
	Set func(m *Model, value any) bool

	// OnChange runs after a committed write.
	OnChange func(m *Model)

	// Validate runs after a committed write. true or nil marks the field
	// valid, false marks it invalid, an error (or any other value) is
	// stored as the failure, and a *future.Future is awaited and applied
	// if the field still holds the validated value.
	Validate func(m *Model) any

	// OnStateChange runs when a per-prop state of this field changes.
	OnStateChange func(m *Model, e StateChange)
}

// Def is the full declarative definition of a model.
type Def struct {
	Props Props

	// Fields registers hooks for fields named in Props.
	Fields map[string]FieldHooks

	// Meta attaches a concurrency mode to methods named in Props.
	Meta map[string]mode.Mode

	// OnCreate runs once at the end of construction. Family members skip it.
	OnCreate func(m *Model)

	// OnInit runs once, on first read, listen or write.
	OnInit func(m *Model)

	// OnChange runs before listeners on every change notification.
	OnChange func(m *Model)

	// ValidateAll runs after OnChange on every change notification.
	ValidateAll func(m *Model)

	// OnStateChange runs when any per-prop state changes.
	OnStateChange func(m *Model, e StateChange)

	// Key makes the model a family root; members get their key in this prop.
	Key string

	// KeyCompare matches composite member keys. Defaults to compare.Shallow.
	KeyCompare compare.Func
}

// ActivityType names a fine-grained activity event.
type ActivityType string

const (
	ActivityCall   ActivityType = "call"
	ActivityRead   ActivityType = "read"
	ActivityWrite  ActivityType = "write"
	ActivityRemove ActivityType = "remove"
)

// Activity is a fine-grained event delivered to observers.
type Activity struct {
	Type ActivityType

	// Method is set for call events.
	Method string
	Args   []any

	// Prop is set for read and write events; Value for writes.
	Prop  string
	Value any

	// Key and Model are set for remove events.
	Key   any
	Model *Model
}

// Filter matches activity events in When. A filter with an empty Type
// matches a call of the method Name or a write of the prop Name.
type Filter struct {
	Type ActivityType
	Name string
	Key  any
}

func (f Filter) match(a Activity) bool {
	switch f.Type {
	case "":
		return (a.Type == ActivityCall && a.Method == f.Name) ||
			(a.Type == ActivityWrite && a.Prop == f.Name)
	case ActivityCall:
		return a.Type == ActivityCall && a.Method == f.Name
	case ActivityRead, ActivityWrite:
		return a.Type == f.Type && a.Prop == f.Name
	case ActivityRemove:
		return a.Type == ActivityRemove && compare.Strict(a.Key, f.Key)
	}
	return false
}

// State identifies a per-prop state slot, such as "focused" or "loading".
// States are compared by identity.
type State struct {
	Default any
	Notify  bool
}

// NewState creates a state slot. Changes notify listeners unless notify is
// given as false.
func NewState(defaultValue any, notify ...bool) *State {
	s := &State{Default: defaultValue, Notify: true}
	if len(notify) > 0 {
		s.Notify = notify[0]
	}
	return s
}

// StateChange describes a per-prop state change.
type StateChange struct {
	Prop  string
	State *State
	Value any
}

// FamilyEntry is one member of a family snapshot.
type FamilyEntry struct {
	Key  any  `json:"key"`
	Data Data `json:"data"`
}

// Reader reads named values. Models and slices implement it.
type Reader interface {
	Get(name string) any
}

// Scheduler runs deferred notifications of lazy batches.
type Scheduler interface {
	Schedule(fn func())
}

// SchedulerFunc adapts a function to Scheduler.
type SchedulerFunc func(fn func())

// Schedule calls f(fn).
func (f SchedulerFunc) Schedule(fn func()) { f(fn) }

// GoScheduler runs each deferred notification on its own goroutine.
var GoScheduler Scheduler = SchedulerFunc(func(fn func()) { go fn() })

// SyncScheduler runs deferred notifications immediately, at the end of the
// lazy batch that produced them.
var SyncScheduler Scheduler = SchedulerFunc(func(fn func()) { fn() })
