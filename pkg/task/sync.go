package task

import (
	"github.com/vango-dev/livemodel/pkg/future"
	"github.com/vango-dev/livemodel/pkg/model"
)

// Status is the state of a Result.
type Status int

const (
	Ready Status = iota
	Pending
	Failed
)

func (s Status) String() string {
	switch s {
	case Ready:
		return "ready"
	case Pending:
		return "pending"
	case Failed:
		return "failed"
	}
	return "unknown"
}

// Result is the outcome of reading one or more tasks.
type Result struct {
	Status Status
	Data   any
	Err    error

	// Pending settles when every loading task has settled.
	Pending *future.Future
}

// Must returns Data when the result is ready and panics otherwise, with
// Err for a failed result or with the Pending future.
func (r Result) Must() any {
	switch r.Status {
	case Failed:
		panic(r.Err)
	case Pending:
		panic(r.Pending)
	}
	return r.Data
}

// Source is anything backed by a task model: a *model.Model built from
// Def, or a *Task.
type Source interface {
	Model() *model.Model
}

type syncOptions struct {
	selector   func(data any) any
	def        any
	hasDefault bool
}

// SyncOption configures Sync and SyncAll.
type SyncOption func(*syncOptions)

// WithDefault makes a pending or failed read ready with v.
func WithDefault(v any) SyncOption {
	return func(o *syncOptions) {
		o.def = v
		o.hasDefault = true
	}
}

// WithSelector projects the data of a ready read. SyncAll passes the
// positional []any of every task's data.
func WithSelector(fn func(data any) any) SyncOption {
	return func(o *syncOptions) { o.selector = fn }
}

// Sync reads a single task.
func Sync(src Source, opts ...SyncOption) Result {
	return read([]Source{src}, false, opts)
}

// SyncAll reads several tasks. The first failed task, then the first
// loading task, in order, decides a non-ready result.
func SyncAll(srcs []Source, opts ...SyncOption) Result {
	return read(srcs, true, opts)
}

func read(srcs []Source, multiple bool, opts []SyncOption) Result {
	o := syncOptions{}
	for _, opt := range opts {
		opt(&o)
	}

	models := make([]*model.Model, len(srcs))
	for i, src := range srcs {
		models[i] = src.Model()
	}

	for _, m := range models {
		if err, _ := m.Get(FieldError).(error); err != nil {
			if o.hasDefault {
				return Result{Status: Ready, Data: o.def}
			}
			return Result{Status: Failed, Err: err}
		}
	}

	for _, m := range models {
		if loading, _ := m.Get(FieldLoading).(bool); !loading {
			continue
		}
		if o.hasDefault {
			return Result{Status: Ready, Data: o.def}
		}
		if !multiple {
			return Result{Status: Pending, Pending: pendingOf(m)}
		}
		futures := make([]*future.Future, len(models))
		for i, x := range models {
			futures[i] = pendingOf(x)
		}
		return Result{Status: Pending, Pending: future.All(futures...)}
	}

	var data any
	if multiple {
		all := make([]any, len(models))
		for i, m := range models {
			all[i] = m.Get(FieldData)
		}
		data = all
	} else {
		data = models[0].Get(FieldData)
	}
	if o.selector != nil {
		data = o.selector(data)
	}
	return Result{Status: Ready, Data: data}
}

func pendingOf(m *model.Model) *future.Future {
	f, _ := m.Private(privFuture).(*future.Future)
	return f
}
