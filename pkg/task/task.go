// Package task provides the async-load model shape: a model with data,
// error, loading and params fields plus load and cancel methods, and a
// reader that turns one or more tasks into an explicit Result.
package task

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	lmerrors "github.com/vango-dev/livemodel/internal/errors"
	"github.com/vango-dev/livemodel/pkg/future"
	"github.com/vango-dev/livemodel/pkg/model"
)

// Loader fetches data. ctx is cancelled when the load is cancelled,
// superseded by a newer load or timed out.
type Loader func(ctx context.Context, params ...any) (any, error)

// Field, method and private prop names of the task shape.
const (
	FieldData    = "data"
	FieldError   = "error"
	FieldLoading = "loading"
	FieldParams  = "params"

	MethodLoad      = "load"
	MethodCancel    = "cancel"
	MethodOnLoad    = "onLoad"
	MethodOnSuccess = "onSuccess"
	MethodOnError   = "onError"
	MethodOnDone    = "onDone"
	MethodUpdate    = "update"

	privToken  = "_token"
	privFuture = "_future"
	privCancel = "_cancel"
)

var loadTokens atomic.Uint64

type options struct {
	params    []any
	onLoad    func(m *model.Model)
	onSuccess func(m *model.Model)
	onError   func(m *model.Model)
	onDone    func(m *model.Model)
	update    func(next, prev any) any
}

// Option customizes a task definition.
type Option func(*options)

// WithParams sets the initial params passed to the loader.
func WithParams(params ...any) Option {
	return func(o *options) { o.params = params }
}

// OnLoad runs when a load starts.
func OnLoad(fn func(m *model.Model)) Option {
	return func(o *options) { o.onLoad = fn }
}

// OnSuccess runs after a load succeeds and its data is applied.
func OnSuccess(fn func(m *model.Model)) Option {
	return func(o *options) { o.onSuccess = fn }
}

// OnError runs after a load fails and its error is applied.
func OnError(fn func(m *model.Model)) Option {
	return func(o *options) { o.onError = fn }
}

// OnDone runs after every settled load, successful or not.
func OnDone(fn func(m *model.Model)) Option {
	return func(o *options) { o.onDone = fn }
}

// WithUpdate combines freshly loaded data with the current data. The
// default keeps the loaded data.
func WithUpdate(fn func(next, prev any) any) Option {
	return func(o *options) { o.update = fn }
}

// Def returns the definition of a task model. When loader is non-nil the
// task loads on first access and reloads whenever params change.
func Def(loader Loader, params ...any) model.Def {
	return DefWith(loader, WithParams(params...))
}

// DefWith is Def with options.
func DefWith(loader Loader, opts ...Option) model.Def {
	o := options{params: []any{}}
	for _, opt := range opts {
		opt(&o)
	}

	hook := func(fn func(*model.Model)) model.Method {
		return func(m *model.Model, _ ...any) any {
			if fn != nil {
				fn(m)
			}
			return nil
		}
	}
	start := func(m *model.Model) {
		if loader != nil {
			m.Invoke(MethodLoad, loader)
		}
	}

	return model.Def{
		Props: model.Props{
			FieldData:       nil,
			FieldError:      nil,
			FieldLoading:    false,
			FieldParams:     o.params,
			MethodLoad:      model.Method(load),
			MethodCancel:    model.Method(cancel),
			MethodOnLoad:    hook(o.onLoad),
			MethodOnSuccess: hook(o.onSuccess),
			MethodOnError:   hook(o.onError),
			MethodOnDone:    hook(o.onDone),
			MethodUpdate: func(_ *model.Model, args ...any) any {
				if o.update != nil {
					return o.update(args[0], args[1])
				}
				return args[0]
			},
			privToken:  uint64(0),
			privFuture: (*future.Future)(nil),
			privCancel: context.CancelCauseFunc(nil),
		},
		Fields: map[string]model.FieldHooks{
			FieldParams: {OnChange: start},
		},
		OnInit: start,
	}
}

func forever(ctx context.Context, _ ...any) (any, error) {
	<-ctx.Done()
	return nil, context.Cause(ctx)
}

// load starts a load: args are an optional Loader and an optional timeout.
func load(m *model.Model, args ...any) any {
	fn := Loader(forever)
	var timeout time.Duration
	for _, arg := range args {
		switch v := arg.(type) {
		case Loader:
			if v != nil {
				fn = v
			}
		case func(context.Context, ...any) (any, error):
			if v != nil {
				fn = v
			}
		case time.Duration:
			timeout = v
		}
	}

	if prev, _ := m.Private(privFuture).(*future.Future); prev != nil {
		prev.Cancel()
	}

	m.Set(FieldLoading, true)
	m.Set(FieldError, nil)

	token := loadTokens.Add(1)
	m.SetPrivate(privToken, token)

	ctx, stop := context.WithCancelCause(context.Background())
	if timeout > 0 {
		var stopTimer context.CancelFunc
		ctx, stopTimer = context.WithTimeoutCause(ctx, timeout, future.ErrTimeout)
		parent := stop
		stop = func(cause error) {
			parent(cause)
			stopTimer()
		}
	}
	out := future.New(func() { stop(future.ErrCancelled) })
	m.SetPrivate(privCancel, stop)
	m.SetPrivate(privFuture, out)

	m.Invoke(MethodOnLoad)

	params, _ := m.Get(FieldParams).([]any)
	go run(m, token, ctx, stop, fn, params, out)
	return out
}

type outcome struct {
	data any
	err  error
}

func run(m *model.Model, token uint64, ctx context.Context, stop context.CancelCauseFunc, fn Loader, params []any, out *future.Future) {
	defer stop(nil)

	results := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				results <- outcome{err: lmerrors.New("E212").WithDetailf("loader panicked: %v", r)}
			}
		}()
		data, err := fn(ctx, params...)
		results <- outcome{data: data, err: err}
	}()

	var res outcome
	select {
	case res = <-results:
	case <-ctx.Done():
	}

	if ctx.Err() != nil {
		cause := context.Cause(ctx)
		if !errors.Is(cause, future.ErrTimeout) {
			// A newer load or Cancel owns the state now, unless only the
			// returned future was cancelled.
			if current(m, token) {
				m.Invoke(MethodCancel)
			}
			return
		}
		res = outcome{err: lmerrors.New("E211").Wrap(cause)}
	}

	m.Batch(func(m *model.Model) {
		if !current(m, token) {
			return
		}
		m.SetPrivate(privCancel, context.CancelCauseFunc(nil))
		if res.err != nil {
			m.Merge(model.Data{FieldLoading: false, FieldError: res.err})
			m.Invoke(MethodOnError)
			m.Invoke(MethodOnDone)
			out.Reject(res.err)
			return
		}
		m.Merge(model.Data{
			FieldLoading: false,
			FieldData:    m.Invoke(MethodUpdate, res.data, m.Get(FieldData)),
		})
		m.Invoke(MethodOnSuccess)
		m.Invoke(MethodOnDone)
		out.Resolve(res.data)
	})
}

func current(m *model.Model, token uint64) bool {
	t, _ := m.Private(privToken).(uint64)
	return t == token
}

// cancel abandons the in-flight load, if any.
func cancel(m *model.Model, _ ...any) any {
	if loading, _ := m.Get(FieldLoading).(bool); !loading {
		return nil
	}
	m.SetPrivate(privToken, loadTokens.Add(1))
	if f, _ := m.Private(privFuture).(*future.Future); f != nil {
		f.Cancel()
	}
	if stop, _ := m.Private(privCancel).(context.CancelCauseFunc); stop != nil {
		stop(future.ErrCancelled)
	}
	m.SetPrivate(privFuture, (*future.Future)(nil))
	m.SetPrivate(privCancel, context.CancelCauseFunc(nil))
	m.Set(FieldLoading, false)
	return nil
}

// Task is a typed handle on a task model.
type Task[T any] struct {
	m *model.Model
}

// New builds a task model. With a loader the task loads on first access.
func New[T any](loader Loader, opts ...Option) *Task[T] {
	return &Task[T]{m: model.New(DefWith(loader, opts...))}
}

// Of wraps an existing task model.
func Of[T any](m *model.Model) *Task[T] {
	return &Task[T]{m: m}
}

// Model returns the underlying model.
func (t *Task[T]) Model() *model.Model { return t.m }

// Load starts a load with loader (the forever-pending loader when nil),
// cancelling the current one. A positive timeout fails the load with
// future.ErrTimeout once it elapses.
func (t *Task[T]) Load(loader Loader, timeout time.Duration) *future.Future {
	f, _ := t.m.Invoke(MethodLoad, loader, timeout).(*future.Future)
	return f
}

// Cancel abandons the in-flight load.
func (t *Task[T]) Cancel() { t.m.Invoke(MethodCancel) }

// Data returns the last loaded data.
func (t *Task[T]) Data() T { return model.Value[T](t.m, FieldData) }

// Err returns the error of the last failed load.
func (t *Task[T]) Err() error {
	err, _ := t.m.Get(FieldError).(error)
	return err
}

// Loading reports whether a load is in flight.
func (t *Task[T]) Loading() bool { return t.m.Bool(FieldLoading) }

// Future returns the future of the current load, if any.
func (t *Task[T]) Future() *future.Future {
	f, _ := t.m.Private(privFuture).(*future.Future)
	return f
}

// SetParams replaces the loader params, which reloads the task.
func (t *Task[T]) SetParams(params ...any) { t.m.Set(FieldParams, params) }
