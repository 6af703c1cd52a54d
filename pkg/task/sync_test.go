package task

import (
	"context"
	"errors"
	"testing"
)

func TestSyncDefault(t *testing.T) {
	tk := New[int](nil)
	tk.Load(nil, 0)
	if r := Sync(tk, WithDefault(7)); r.Status != Ready || r.Data != 7 {
		t.Errorf("pending with default = %+v", r)
	}
	tk.Cancel()

	boom := errors.New("boom")
	wait(t, tk.Load(func(context.Context, ...any) (any, error) { return nil, boom }, 0))
	if r := Sync(tk, WithDefault(7)); r.Data != 7 {
		t.Errorf("failed with default = %+v", r)
	}
	if r := Sync(tk); r.Status != Failed || r.Err != boom {
		t.Errorf("failed = %+v", r)
	}
}

func TestSyncAll(t *testing.T) {
	a, b := New[int](nil), New[int](nil)
	wait(t, a.Load(func(context.Context, ...any) (any, error) { return 1, nil }, 0))
	loader, gate := gated(2)
	pending := b.Load(loader, 0)

	r := SyncAll([]Source{a, b})
	if r.Status != Pending {
		t.Fatalf("status = %v, want pending", r.Status)
	}
	close(gate)
	wait(t, pending)
	wait(t, r.Pending)

	r = SyncAll([]Source{a, b}, WithSelector(func(d any) any {
		sum := 0
		for _, v := range d.([]any) {
			sum += v.(int)
		}
		return sum
	}))
	if r.Status != Ready || r.Data != 3 {
		t.Errorf("result = %+v", r)
	}
}

func TestSyncAllFailureWinsOverLoading(t *testing.T) {
	boom := errors.New("boom")
	a, b := New[int](nil), New[int](nil)
	a.Load(nil, 0)
	wait(t, b.Load(func(context.Context, ...any) (any, error) { return nil, boom }, 0))

	if r := SyncAll([]Source{a, b}); r.Status != Failed || r.Err != boom {
		t.Errorf("result = %+v", r)
	}
	a.Cancel()
}

func TestResultMust(t *testing.T) {
	if (Result{Status: Ready, Data: 1}).Must() != 1 {
		t.Error("ready result should return data")
	}

	defer func() {
		if r := recover(); r == nil {
			t.Error("failed result should panic")
		}
	}()
	Result{Status: Failed, Err: errors.New("x")}.Must()
}

func TestStatusString(t *testing.T) {
	if Ready.String() != "ready" || Pending.String() != "pending" || Failed.String() != "failed" {
		t.Error("unexpected status names")
	}
}
