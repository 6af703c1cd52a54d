package devtools

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/vango-dev/livemodel/pkg/compare"
	"github.com/vango-dev/livemodel/pkg/model"
)

// Action is one recorded activity with the state of every registered model
// right after it.
type Action struct {
	ID    string         `json:"id"`
	Seq   int            `json:"seq"`
	Type  string         `json:"type"`
	Key   any            `json:"key,omitempty"`
	Time  time.Time      `json:"time"`
	State map[string]any `json:"state"`
}

type event struct {
	name   string
	label  string
	key    any
	member bool
}

// HubOption configures a Hub.
type HubOption func(*Hub)

// WithMaxHistory bounds the number of recorded actions (default 200).
func WithMaxHistory(n int) HubOption {
	return func(h *Hub) { h.maxHistory = n }
}

// WithLogger sets the hub logger.
func WithLogger(l *slog.Logger) HubOption {
	return func(h *Hub) { h.log = l }
}

// Hub records the activity of named models and rolls them back to any
// recorded state.
type Hub struct {
	id         string
	maxHistory int
	log        *slog.Logger

	mu      sync.RWMutex
	models  map[string]*model.Model
	seen    map[*model.Model]struct{}
	history []Action
	seq     int
	clients map[*client]struct{}

	events      chan event
	rollingBack atomic.Bool
}

// NewHub creates a hub. Call Run to start recording.
func NewHub(opts ...HubOption) *Hub {
	h := &Hub{
		id:         uuid.NewString(),
		maxHistory: 200,
		log:        slog.Default(),
		models:     make(map[string]*model.Model),
		seen:       make(map[*model.Model]struct{}),
		clients:    make(map[*client]struct{}),
		events:     make(chan event, 256),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// ID identifies the hub instance.
func (h *Hub) ID() string {
	return h.id
}

// Injector registers every model built with a model.NameProp prop. Family
// members are recorded under their root's name.
func (h *Hub) Injector() model.Injector {
	return func(m *model.Model, props model.Props) func() {
		name, _ := props[model.NameProp].(string)
		if name == "" {
			return nil
		}
		return func() { h.Register(name, m) }
	}
}

// Register records the activity of m under name. A family member is
// recorded under the family registered with the same name. Registering a
// family root also registers its current members and every member created
// from it later. Registering a model twice has no effect.
func (h *Hub) Register(name string, m *model.Model) {
	member := m.IsMember()

	h.mu.Lock()
	if _, ok := h.seen[m]; ok {
		h.mu.Unlock()
		return
	}
	h.seen[m] = struct{}{}
	if !member {
		if _, ok := h.models[name]; ok {
			h.log.Debug("devtools: replacing model", "name", name)
		}
		h.models[name] = m
	}
	h.mu.Unlock()

	m.Observe(func(a model.Activity) {
		if a.Type == model.ActivityRemove {
			h.forget(m)
		}
		if a.Type == model.ActivityRead || h.rollingBack.Load() {
			return
		}
		e := event{name: name, label: label(a), member: member}
		if member {
			e.key = m.Key()
		}
		select {
		case h.events <- e:
		default:
			h.log.Warn("devtools: event dropped", "name", name, "type", e.label)
		}
	})

	if m.IsFamily() {
		m.OnMember(func(created *model.Model) { h.Register(name, created) })
		for _, existing := range m.Members() {
			h.Register(name, existing)
		}
	}
}

func (h *Hub) forget(m *model.Model) {
	h.mu.Lock()
	delete(h.seen, m)
	h.mu.Unlock()
}

func label(a model.Activity) string {
	switch a.Type {
	case model.ActivityCall:
		return "call:" + a.Method
	case model.ActivityWrite:
		return fmt.Sprintf("write:%s:%v", a.Prop, a.Value)
	default:
		return string(a.Type)
	}
}

// Run records queued activity until ctx is done. Snapshots are taken here,
// outside the models' locks, once the activity has committed.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.closeClients()
			return
		case e := <-h.events:
			h.record(e)
		}
	}
}

func (h *Hub) record(e event) Action {
	typ := e.name + ":" + e.label
	if e.member {
		typ = e.name + "[]:" + e.label
	}
	state := h.State()

	h.mu.Lock()
	h.seq++
	a := Action{
		ID:    uuid.NewString(),
		Seq:   h.seq,
		Type:  typ,
		Key:   e.key,
		Time:  time.Now(),
		State: state,
	}
	h.history = append(h.history, a)
	if over := len(h.history) - h.maxHistory; h.maxHistory > 0 && over > 0 {
		h.history = append([]Action(nil), h.history[over:]...)
	}
	h.mu.Unlock()

	h.broadcast(message{Type: "action", Action: &a})
	return a
}

// State snapshots every registered model: model.Data for plain models and
// []model.FamilyEntry for family roots.
func (h *Hub) State() map[string]any {
	h.mu.RLock()
	models := make(map[string]*model.Model, len(h.models))
	for name, m := range h.models {
		models[name] = m
	}
	h.mu.RUnlock()

	state := make(map[string]any, len(models))
	for name, m := range models {
		if m.IsFamily() {
			state[name] = m.FamilyData()
		} else {
			state[name] = m.Data()
		}
	}
	return state
}

// History returns the recorded actions, oldest first.
func (h *Hub) History() []Action {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return append([]Action(nil), h.history...)
}

// Action returns the recorded action with id.
func (h *Hub) Action(id string) (Action, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, a := range h.history {
		if a.ID == id {
			return a, true
		}
	}
	return Action{}, false
}

// JumpTo rolls every registered model back to the state recorded with the
// action id.
func (h *Hub) JumpTo(id string) error {
	a, ok := h.Action(id)
	if !ok {
		return fmt.Errorf("devtools: unknown action %q", id)
	}
	h.Jump(a.State)
	return nil
}

// Jump merges state into the registered models without recording the
// writes. Family members missing from state are removed; listed members
// are merged, and created when they no longer exist.
func (h *Hub) Jump(state map[string]any) {
	h.rollingBack.Store(true)
	defer h.rollingBack.Store(false)

	h.mu.RLock()
	models := make(map[string]*model.Model, len(h.models))
	for name, m := range h.models {
		models[name] = m
	}
	h.mu.RUnlock()

	for name, m := range models {
		target, ok := state[name]
		if !ok {
			continue
		}
		if m.IsFamily() {
			jumpFamily(m, familyEntries(target))
			continue
		}
		if data := toData(target); data != nil {
			m.Merge(data)
		}
	}
}

func jumpFamily(root *model.Model, entries []model.FamilyEntry) {
	for _, member := range root.Members() {
		entry, ok := findEntry(entries, member.Key())
		if !ok {
			member.Remove()
			continue
		}
		member.Merge(entry.Data)
	}
	for _, entry := range entries {
		if !hasMember(root, entry.Key) {
			root.Family(entry.Key).Merge(entry.Data)
		}
	}
}

// sameKey matches keys across a JSON round trip, where 1 becomes 1.0.
func sameKey(a, b any) bool {
	return compare.Strict(a, b) || fmt.Sprint(a) == fmt.Sprint(b)
}

func findEntry(entries []model.FamilyEntry, key any) (model.FamilyEntry, bool) {
	for _, e := range entries {
		if sameKey(e.Key, key) {
			return e, true
		}
	}
	return model.FamilyEntry{}, false
}

func hasMember(root *model.Model, key any) bool {
	for _, member := range root.Members() {
		if sameKey(member.Key(), key) {
			return true
		}
	}
	return false
}

// familyEntries accepts recorded entries or their decoded JSON form.
func familyEntries(v any) []model.FamilyEntry {
	switch entries := v.(type) {
	case []model.FamilyEntry:
		return entries
	case []any:
		out := make([]model.FamilyEntry, 0, len(entries))
		for _, raw := range entries {
			obj, ok := raw.(map[string]any)
			if !ok {
				continue
			}
			out = append(out, model.FamilyEntry{Key: obj["key"], Data: toData(obj["data"])})
		}
		return out
	}
	return nil
}

func toData(v any) model.Data {
	switch data := v.(type) {
	case model.Data:
		return data
	case map[string]any:
		return model.Data(data)
	}
	return nil
}
