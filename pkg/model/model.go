package model

import (
	"reflect"
	"sort"
	"strings"
	"sync"

	"github.com/vango-dev/livemodel/pkg/emitter"
	"github.com/vango-dev/livemodel/pkg/mode"
)

const privatePrefixes = "_#!~&*%"

// NameProp is the reserved prop that names a model for logs, metrics and
// devtools. Like every $ key it is never bound.
const NameProp = "$name"

type field struct {
	name  string
	hooks FieldHooks
}

func (f *field) readonly() bool {
	return f.hooks.Get != nil && f.hooks.Set == nil
}

type memoEntry struct {
	deps  []any
	value any
	token uint64
}

// Model is a live, observable instance built from a Def.
type Model struct {
	lock reentrantLock

	def      Def
	template Props

	fields  map[string]*field
	names   []string
	methods map[string]mode.Func
	nested  map[string]*Model
	private map[string]any

	data      map[string]any
	touched   map[string]struct{}
	invalid   map[string]any
	states    map[string]map[*State]any
	accessors map[string]*Accessor
	cache     map[string]memoEntry

	token       uint64
	jobs        int
	owed        bool
	creating    bool
	initialized bool
	invoking    string
	silent      int
	locked      int

	wrappers  []Wrapper
	changes   *emitter.Emitter[struct{}]
	activity  *emitter.Emitter[Activity]
	scheduler Scheduler

	family *family
	member *membership
}

var (
	schedulerMu      sync.RWMutex
	defaultScheduler = GoScheduler
)

// SetScheduler replaces the scheduler used by models created afterwards for
// lazy notifications. It returns the previous scheduler.
func SetScheduler(s Scheduler) Scheduler {
	schedulerMu.Lock()
	defer schedulerMu.Unlock()
	prev := defaultScheduler
	if s == nil {
		s = GoScheduler
	}
	defaultScheduler = s
	return prev
}

func currentScheduler() Scheduler {
	schedulerMu.RLock()
	defer schedulerMu.RUnlock()
	return defaultScheduler
}

// New builds a model from def.
func New(def Def) *Model {
	return build(def, nil, nil)
}

// Create builds a model from props alone.
func Create(props Props) *Model {
	return New(Def{Props: props})
}

// From returns v itself when it is already a model, and otherwise builds a
// model from a Def, Props or plain map.
func From(v any) *Model {
	switch x := v.(type) {
	case *Model:
		if x == nil {
			fail(ErrInvalidProps, "nil model")
		}
		return x
	case Def:
		return New(x)
	case Props:
		return Create(x)
	case map[string]any:
		return Create(Props(x))
	case Data:
		return Create(Props(x))
	}
	fail(ErrInvalidProps, "cannot build a model from %T", v)
	return nil
}

// build constructs a model. alloc, when non-nil, sees the model before any
// injector runs.
func build(def Def, member *membership, alloc func(*Model)) *Model {
	if def.Props == nil {
		fail(ErrInvalidProps, "props are nil")
	}

	m := &Model{
		def:       def,
		template:  def.Props,
		fields:    make(map[string]*field),
		methods:   make(map[string]mode.Func),
		nested:    make(map[string]*Model),
		private:   make(map[string]any),
		data:      make(map[string]any),
		touched:   make(map[string]struct{}),
		invalid:   make(map[string]any),
		states:    make(map[string]map[*State]any),
		accessors: make(map[string]*Accessor),
		cache:     make(map[string]memoEntry),
		creating:  true,
		changes:   emitter.New[struct{}](),
		activity:  emitter.New[Activity](),
		scheduler: currentScheduler(),
		member:    member,
	}
	if def.Key != "" {
		m.family = newFamily(def.KeyCompare)
	}
	if alloc != nil {
		alloc(m)
	}

	props := make(Props, len(def.Props))
	for k, v := range def.Props {
		props[k] = v
	}

	var onCreated []func()
	for _, inject := range currentInjectors() {
		if cb := inject(m, props); cb != nil {
			onCreated = append(onCreated, cb)
		}
	}

	m.bind(props)
	m.applyMeta()
	m.creating = false

	for _, cb := range onCreated {
		cb()
	}
	if member == nil && def.OnCreate != nil {
		def.OnCreate(m)
	}
	return m
}

func isPrivate(name string) bool {
	return name != "" && strings.IndexByte(privatePrefixes, name[0]) >= 0
}

func asMethod(v any) (Method, bool) {
	switch fn := v.(type) {
	case Method:
		return fn, fn != nil
	case func(*Model, ...any) any:
		return Method(fn), fn != nil
	}
	return nil, false
}

func (m *Model) bind(props Props) {
	keys := make([]string, 0, len(props))
	for k := range props {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		value := props[key]
		if key == "" || key[0] == '$' {
			continue
		}
		if isPrivate(key) {
			m.private[key] = value
			continue
		}
		if fn, ok := asMethod(value); ok {
			m.methods[key] = m.bindMethod(key, fn)
			continue
		}
		if value != nil && reflect.TypeOf(value).Kind() == reflect.Func {
			fail(ErrInvalidProps, "method %q has unsupported signature %T", key, value)
		}
		if nested, ok := value.(*Model); ok && nested != nil {
			m.nested[key] = nested
			m.data[key] = nested
			m.names = append(m.names, key)
			continue
		}
		m.fields[key] = &field{name: key, hooks: m.def.Fields[key]}
		m.data[key] = value
		m.names = append(m.names, key)
	}

	for name := range m.def.Fields {
		if _, ok := m.fields[name]; !ok {
			logger().Warn("no prop is matched for field hooks", "prop", name)
		}
	}
}

func (m *Model) bindMethod(name string, fn Method) mode.Func {
	for _, w := range m.wrappers {
		fn = w(fn, m)
	}
	return func(args ...any) any {
		m.lock.Lock()
		defer m.lock.Unlock()

		m.emit(Activity{Type: ActivityCall, Method: name, Args: args})
		prev := m.invoking
		m.invoking = name
		defer func() { m.invoking = prev }()

		return m.call(func() any { return fn(m, args...) }, false)
	}
}

func (m *Model) applyMeta() {
	for name, md := range m.def.Meta {
		bound, ok := m.methods[name]
		if !ok {
			logger().Warn("no prop is matched for the meta", "prop", name)
			continue
		}
		if md != nil {
			m.methods[name] = md(bound, nil)
		}
	}
}

func (m *Model) emit(a Activity) {
	m.activity.Emit(a)
}

// Model returns m. It panics with ErrNotReady while injectors are running.
func (m *Model) Model() *Model {
	if m.creating {
		fail(ErrNotReady, "the model is still being constructed by its injectors")
	}
	return m
}

// Props returns a copy of the template the model was built from.
func (m *Model) Props() Props {
	out := make(Props, len(m.template))
	for k, v := range m.template {
		out[k] = v
	}
	return out
}

// Name returns the NameProp of the template, or "model" when unset.
func (m *Model) Name() string {
	if name, ok := m.template[NameProp].(string); ok && name != "" {
		return name
	}
	return "model"
}

// Private returns the value of a private prop.
func (m *Model) Private(name string) any {
	m.lock.Lock()
	defer m.lock.Unlock()
	return m.private[name]
}

// SetPrivate replaces a private prop. Private props are not observable.
func (m *Model) SetPrivate(name string, value any) {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.private[name] = value
}

// Has reports whether name is a field, nested model or method of m.
func (m *Model) Has(name string) bool {
	if _, ok := m.fields[name]; ok {
		return true
	}
	if _, ok := m.nested[name]; ok {
		return true
	}
	_, ok := m.methods[name]
	return ok
}

// Invoking returns the name of the method running on m, or "" outside
// methods. Wrappers use it to label the method they intercept.
func (m *Model) Invoking() string {
	m.lock.Lock()
	defer m.lock.Unlock()
	return m.invoking
}

// Init runs the OnInit hook if it has not run yet.
func (m *Model) Init() *Model {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.init()
	return m
}

func (m *Model) init() {
	if m.initialized || m.creating {
		return
	}
	m.initialized = true
	if m.def.OnInit != nil {
		m.call(func() any {
			m.def.OnInit(m)
			return nil
		}, false)
	}
}

// Abstract returns a placeholder method that panics with ErrAbstractMethod.
func Abstract(name string) Method {
	return func(*Model, ...any) any {
		if name == "" {
			fail(ErrAbstractMethod, "this method has not been implemented yet")
		}
		fail(ErrAbstractMethod, "the method %s has not been implemented yet", name)
		return nil
	}
}
