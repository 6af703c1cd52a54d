package devtools

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vango-dev/livemodel/pkg/model"
)

func startHub(t *testing.T, opts ...HubOption) *Hub {
	t.Helper()
	h := NewHub(opts...)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go h.Run(ctx)
	return h
}

func counter(h *Hub) *model.Model {
	var m *model.Model
	model.WithInjectors([]model.Injector{h.Injector()}, func() {
		m = model.Create(model.Props{
			model.NameProp: "counter",
			"count":        0,
			"increment": func(m *model.Model, _ ...any) any {
				m.Set("count", m.Int("count")+1)
				return nil
			},
		})
	})
	return m
}

func todos(h *Hub) *model.Model {
	var m *model.Model
	model.WithInjectors([]model.Injector{h.Injector()}, func() {
		m = model.New(model.Def{
			Props: model.Props{
				model.NameProp: "todo",
				"id":           0,
				"done":         false,
				"toggle": func(m *model.Model, _ ...any) any {
					m.Set("done", !m.Bool("done"))
					return nil
				},
			},
			Key: "id",
		})
	})
	return m
}

func waitHistory(t *testing.T, h *Hub, n int) []Action {
	t.Helper()
	require.Eventually(t, func() bool { return len(h.History()) >= n }, 2*time.Second, 5*time.Millisecond)
	return h.History()
}

func TestHubRecordsNamedModels(t *testing.T) {
	h := startHub(t)
	m := counter(h)

	m.Invoke("increment")

	history := waitHistory(t, h, 2)
	assert.Equal(t, "counter:call:increment", history[0].Type)
	assert.Equal(t, "counter:write:count:1", history[1].Type)
	assert.Equal(t, 1, history[1].Seq-history[0].Seq)
	assert.NotEmpty(t, history[0].ID)
	assert.Equal(t, model.Data{"count": 1}, history[1].State["counter"])

	a, ok := h.Action(history[1].ID)
	require.True(t, ok)
	assert.Equal(t, history[1].Type, a.Type)
}

func TestHubIgnoresUnnamedModels(t *testing.T) {
	h := startHub(t)
	model.WithInjectors([]model.Injector{h.Injector()}, func() {
		model.Create(model.Props{"count": 0}).Set("count", 1)
	})

	assert.Empty(t, h.State())
	assert.Never(t, func() bool { return len(h.History()) > 0 }, 50*time.Millisecond, 5*time.Millisecond)
}

func TestHubJumpRestoresWithoutRecording(t *testing.T) {
	h := startHub(t)
	m := counter(h)

	m.Invoke("increment")
	m.Invoke("increment")
	history := waitHistory(t, h, 4)

	h.Jump(map[string]any{"counter": model.Data{"count": 0}})
	assert.Equal(t, 0, m.Int("count"))
	assert.Len(t, h.History(), len(history))

	require.Error(t, h.JumpTo("missing"))
}

func TestHubFamilyJump(t *testing.T) {
	h := startHub(t)
	root := todos(h)
	root.Family(1)
	root.Family(2).Invoke("toggle")

	history := waitHistory(t, h, 2)
	assert.Equal(t, "todo[]:call:toggle", history[0].Type)
	assert.Equal(t, 2, history[0].Key)

	h.Jump(map[string]any{"todo": []model.FamilyEntry{
		{Key: 1, Data: model.Data{"id": 1, "done": true}},
		{Key: 3, Data: model.Data{"id": 3, "done": true}},
	}})

	var keys []any
	for _, member := range root.Members() {
		keys = append(keys, member.Key())
		assert.True(t, member.Bool("done"))
	}
	assert.Equal(t, []any{1, 3}, keys)
}

func TestHubFamilyJumpFromJSON(t *testing.T) {
	h := startHub(t)
	root := todos(h)
	root.Family(1)
	root.Family(2)

	h.Jump(map[string]any{"todo": []any{
		map[string]any{"key": 2.0, "data": map[string]any{"done": true}},
	}})

	members := root.Members()
	require.Len(t, members, 1)
	assert.Equal(t, 2, members[0].Key())
	assert.True(t, members[0].Bool("done"))
}

func TestHubMaxHistory(t *testing.T) {
	h := startHub(t, WithMaxHistory(3))
	m := counter(h)

	for i := 0; i < 5; i++ {
		m.Invoke("increment")
	}

	require.Eventually(t, func() bool {
		history := h.History()
		return len(history) == 3 && history[2].Seq == 10
	}, 2*time.Second, 5*time.Millisecond)
}

func TestHubRecordsMembersCreatedLater(t *testing.T) {
	h := startHub(t)
	root := todos(h)

	root.Family(7).Invoke("toggle")
	model.WithInjectors([]model.Injector{h.Injector()}, func() {
		root.Family(8).Invoke("toggle")
	})

	history := waitHistory(t, h, 4)
	assert.Equal(t, "todo[]:call:toggle", history[0].Type)
	assert.Equal(t, 7, history[0].Key)
	assert.Equal(t, "todo[]:write:done:true", history[1].Type)
	assert.Equal(t, "todo[]:call:toggle", history[2].Type)
	assert.Equal(t, 8, history[2].Key)
	assert.Never(t, func() bool { return len(h.History()) > 4 }, 50*time.Millisecond, 5*time.Millisecond)
}
