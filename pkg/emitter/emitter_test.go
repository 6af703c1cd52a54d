package emitter

import (
	"reflect"
	"testing"
)

func TestEmitOrder(t *testing.T) {
	e := New[int]()
	var got []string
	e.Add(func(v int) { got = append(got, "a") })
	e.Add(func(v int) { got = append(got, "b") })
	e.Prepend(func(v int) { got = append(got, "first") })

	e.Emit(1)

	want := []string{"first", "a", "b"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("order = %v, want %v", got, want)
	}
}

func TestRemoveIsIdempotent(t *testing.T) {
	var e Emitter[string]
	calls := 0
	off := e.Add(func(string) { calls++ })
	other := 0
	e.Add(func(string) { other++ })

	off()
	off()
	e.Emit("x")

	if calls != 0 {
		t.Errorf("removed handler called %d times", calls)
	}
	if other != 1 {
		t.Errorf("remaining handler called %d times, want 1", other)
	}
	if e.Len() != 1 {
		t.Errorf("Len() = %d, want 1", e.Len())
	}
}

func TestRemoveDuringEmit(t *testing.T) {
	e := New[struct{}]()
	calls := 0
	var off func()
	off = e.Add(func(struct{}) {
		calls++
		off()
	})
	e.Add(func(struct{}) { calls++ })

	e.Emit(struct{}{})
	e.Emit(struct{}{})

	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestEachAndClear(t *testing.T) {
	e := New[int]()
	sum := 0
	e.Add(func(v int) { sum += v })
	e.Add(func(v int) { sum += v * 10 })

	e.Each(func(h func(int)) { h(2) })
	if sum != 22 {
		t.Errorf("sum = %d, want 22", sum)
	}

	e.Clear()
	e.Emit(5)
	if sum != 22 {
		t.Errorf("handlers still called after Clear")
	}
	if e.Len() != 0 {
		t.Errorf("Len() = %d after Clear", e.Len())
	}
}

func TestAddNil(t *testing.T) {
	e := New[int]()
	off := e.Add(nil)
	off()
	if e.Len() != 0 {
		t.Error("nil handler should not be registered")
	}
}
