package model

import (
	"errors"
	"strings"
	"testing"

	"github.com/vango-dev/livemodel/pkg/compare"
	"github.com/vango-dev/livemodel/pkg/future"
)

func TestListenToProps(t *testing.T) {
	m := Create(Props{"a": 1, "b": 1})
	calls := 0
	stop := m.Listen(func() { calls++ }, "a")

	m.Set("b", 2)
	m.Set("a", 2)
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
	stop()
	m.Set("a", 3)
	if calls != 1 {
		t.Error("unsubscribed listener still called")
	}
}

func TestWatch(t *testing.T) {
	m := Create(Props{"a": 1})
	var seen []any
	m.Watch(func(m *Model) any { return m.Int("a") % 2 }, func(v any) { seen = append(seen, v) })

	m.Set("a", 3)
	m.Set("a", 4)
	m.Set("a", 6)
	if len(seen) != 1 || seen[0] != 0 {
		t.Errorf("seen = %v, want [0]", seen)
	}
}

func TestWatchShallowCompare(t *testing.T) {
	m := Create(Props{"a": 1, "b": 2})
	calls := 0
	m.Watch(func(m *Model) any {
		return []int{m.Int("a")}
	}, func(any) { calls++ }, WatchCompare(compare.Shallow))

	m.Set("b", 3)
	if calls != 0 {
		t.Error("shallow-equal selection should not call back")
	}
	m.Set("a", 2)
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestWaitFor(t *testing.T) {
	m := Create(Props{"n": 0})
	f := m.WaitFor(func(m *Model) any { return m.Int("n") > 5 }, nil)

	m.Set("n", 3)
	if f.Settled() {
		t.Fatal("WaitFor settled before the selection changed")
	}
	m.Set("n", 6)
	v, err := settled(t, f)
	if err != nil || v != true {
		t.Errorf("WaitFor = %v, %v", v, err)
	}
	if m.changes.Len() != 0 {
		t.Error("settled wait should unsubscribe")
	}
}

func TestWaitCancel(t *testing.T) {
	m := Create(Props{"n": 0})
	f := m.Wait()
	f.Cancel()

	_, err := settled(t, f)
	if !errors.Is(err, future.ErrCancelled) {
		t.Errorf("err = %v, want ErrCancelled", err)
	}
	if m.changes.Len() != 0 {
		t.Error("cancelled wait should unsubscribe")
	}
}

func TestObserveActivity(t *testing.T) {
	m := Create(counterProps())
	var got []string
	stop := m.Observe(func(a Activity) {
		switch a.Type {
		case ActivityCall:
			got = append(got, "call:"+a.Method)
		case ActivityRead, ActivityWrite:
			got = append(got, string(a.Type)+":"+a.Prop)
		}
	})
	m.Invoke("increment")
	stop()
	m.Invoke("increment")

	want := "call:increment,read:count,write:count"
	if strings.Join(got, ",") != want {
		t.Errorf("activity = %v, want %s", got, want)
	}
}

func TestWhen(t *testing.T) {
	m := Create(counterProps())
	byMethod := m.When(Filter{Name: "increment"})
	byWrite := m.When(Filter{Type: ActivityWrite, Name: "count"})
	byRead := m.When(Filter{Type: ActivityRead, Name: "other"})

	m.Invoke("increment")

	v, err := settled(t, byMethod)
	if a, ok := v.(Activity); err != nil || !ok || a.Method != "increment" {
		t.Errorf("When(method) = %v, %v", v, err)
	}
	v, _ = settled(t, byWrite)
	if a := v.(Activity); a.Value != 2 {
		t.Errorf("write value = %v, want 2", a.Value)
	}
	if byRead.Settled() {
		t.Error("unmatched filter should stay pending")
	}
	byRead.Cancel()
	if m.activity.Len() != 0 {
		t.Errorf("observers left behind: %d", m.activity.Len())
	}
}

func TestWhenFunc(t *testing.T) {
	m := Create(Props{"v": 0})
	f := m.WhenFunc(func(a Activity) bool { return a.Type == ActivityWrite && a.Value == 2 })
	m.Set("v", 1)
	if f.Settled() {
		t.Fatal("predicate not satisfied yet")
	}
	m.Set("v", 2)
	if !f.Settled() {
		t.Error("predicate satisfied, future should settle")
	}
}

func TestMemoWithDeps(t *testing.T) {
	computed := 0
	m := Create(Props{
		"a": 1, "b": 2, "c": 3,
		"sum": func(m *Model, _ ...any) any {
			a, b := m.Int("a"), m.Int("b")
			return m.Memo(func() any {
				computed++
				return a + b
			}, []any{a, b})
		},
	})

	for i := 0; i < 3; i++ {
		m.Invoke("sum")
	}
	if computed != 1 {
		t.Fatalf("computed %d times, want 1", computed)
	}

	m.Set("c", 4)
	m.Invoke("sum")
	if computed != 1 {
		t.Error("changing an unrelated field should not recompute")
	}

	m.Set("a", 5)
	if got := m.Invoke("sum"); got != 7 {
		t.Errorf("sum = %v, want 7", got)
	}
	m.Invoke("sum")
	if computed != 2 {
		t.Errorf("computed %d times, want 2", computed)
	}
}

func TestMemoWithoutDepsFollowsChanges(t *testing.T) {
	computed := 0
	m := Create(Props{
		"a": 1, "b": 1,
		"snapshot": func(m *Model, _ ...any) any {
			return m.MemoKey("all", func() any {
				computed++
				return m.Data()
			}, nil)
		},
	})

	m.Invoke("snapshot")
	m.Invoke("snapshot")
	m.Set("b", 2)
	m.Invoke("snapshot")
	if computed != 2 {
		t.Errorf("computed %d times, want 2", computed)
	}
}

func TestMemoOutsideMethodPanics(t *testing.T) {
	m := Create(Props{"a": 1})
	mustPanic(t, ErrMemoOutsideMethod, func() {
		m.Memo(func() any { return nil }, nil)
	})
}

func TestInjectors(t *testing.T) {
	calls := 0
	created := 0
	injector := func(m *Model, props Props) func() {
		props["injected"] = true
		m.Wrap(func(next Method, _ *Model) Method {
			return func(m *Model, args ...any) any {
				calls++
				return next(m, args...)
			}
		})
		return func() { created++ }
	}

	var m *Model
	WithInjectors([]Injector{injector}, func() {
		m = Create(counterProps())
	})
	m.Invoke("increment")

	if calls != 1 || created != 1 || m.Get("injected") != true {
		t.Errorf("calls=%d created=%d injected=%v", calls, created, m.Get("injected"))
	}
	if m.Int("count") != 2 {
		t.Errorf("wrapped method should still run, count=%d", m.Int("count"))
	}

	Create(counterProps()).Invoke("increment")
	if calls != 1 {
		t.Error("injectors should be restored after WithInjectors")
	}
}

func TestInjectReturnsPrevious(t *testing.T) {
	first := func(*Model, Props) func() { return nil }
	prev := Inject(first)
	defer Inject(prev...)

	restored := Inject()
	if len(restored) != 1 {
		t.Errorf("Inject returned %d injectors, want 1", len(restored))
	}
}

func TestInjectorContractViolations(t *testing.T) {
	WithInjectors([]Injector{func(m *Model, _ Props) func() {
		m.Model()
		return nil
	}}, func() {
		mustPanic(t, ErrNotReady, func() { Create(Props{"a": 1}) })
	})

	m := Create(Props{"a": 1})
	mustPanic(t, ErrWrapOutsideInjector, func() {
		m.Wrap(func(next Method, _ *Model) Method { return next })
	})
}

func TestWrappersOrder(t *testing.T) {
	var order []string
	wrapper := func(name string) Wrapper {
		return func(next Method, _ *Model) Method {
			return func(m *Model, args ...any) any {
				order = append(order, name)
				return next(m, args...)
			}
		}
	}
	WithInjectors([]Injector{func(m *Model, _ Props) func() {
		m.Wrap(wrapper("inner"), wrapper("outer"))
		return nil
	}}, func() {
		Create(counterProps()).Invoke("increment")
	})

	if strings.Join(order, ",") != "outer,inner" {
		t.Errorf("order = %v, want later wrappers outermost", order)
	}
}

func TestSliceNotifiesInnermostFirst(t *testing.T) {
	m := Create(Props{"a": 1, "b": 2})
	outer := m.Slice(func(r Reader) Data { return Data{"a": r.Get("a"), "b": r.Get("b")} })
	inner := outer.Slice(func(r Reader) Data { return Data{"a": r.Get("a")} })

	var order []string
	m.Listen(func() { order = append(order, "model") })
	outer.Listen(func() { order = append(order, "outer") })
	inner.Listen(func() { order = append(order, "inner") })

	m.Set("a", 10)
	if got := strings.Join(order, ","); got != "inner,outer,model" {
		t.Errorf("order = %s", got)
	}
	if inner.Get("a") != 10 || outer.Get("a") != 10 {
		t.Error("slices should hold the new value")
	}

	order = nil
	m.Set("b", 3)
	if got := strings.Join(order, ","); got != "outer,model" {
		t.Errorf("order = %s", got)
	}
	if _, ok := inner.Data()["b"]; ok {
		t.Error("inner slice should only hold its selection")
	}
}

func TestSliceWatch(t *testing.T) {
	m := Create(Props{"a": 1})
	s := m.Slice(func(r Reader) Data { return Data{"double": Value[int](r, "a") * 2} })

	var seen []any
	s.Watch(func(s *Slice) any { return s.Get("double") }, func(v any) { seen = append(seen, v) })
	m.Set("a", 4)
	if len(seen) != 1 || seen[0] != 8 {
		t.Errorf("seen = %v", seen)
	}
}

func TestSubscribeSkipsInit(t *testing.T) {
	inits := 0
	m := New(Def{
		Props:  Props{"a": 1},
		OnInit: func(*Model) { inits++ },
	})
	calls := 0
	stop := m.Subscribe(func() { calls++ })
	if inits != 0 {
		t.Error("Subscribe ran OnInit")
	}

	m.Set("a", 2)
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
	stop()
	m.Set("a", 3)
	if calls != 1 {
		t.Error("unsubscribed listener still called")
	}
}

func TestSliceClose(t *testing.T) {
	m := Create(Props{"a": 1})
	outer := m.Slice(func(r Reader) Data { return Data{"a": r.Get("a")} })
	inner := outer.Slice(func(r Reader) Data { return Data{"a": r.Get("a")} })

	var calls int
	selects := 0
	m.Slice(func(r Reader) Data {
		selects++
		return Data{"a": r.Get("a")}
	}).Close()
	inner.Listen(func() { calls++ })

	m.Set("a", 2)
	if calls != 1 || inner.Get("a") != 2 {
		t.Fatalf("calls=%d inner=%v", calls, inner.Get("a"))
	}

	outer.Close()
	outer.Close()
	m.Set("a", 3)
	if calls != 1 || outer.Get("a") != 2 || inner.Get("a") != 2 {
		t.Errorf("closed slices changed: calls=%d outer=%v inner=%v", calls, outer.Get("a"), inner.Get("a"))
	}
	if selects != 1 {
		t.Errorf("closed slice selector ran %d times, want 1", selects)
	}
}
