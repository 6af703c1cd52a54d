package middleware

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	lmerrors "github.com/vango-dev/livemodel/internal/errors"
	"github.com/vango-dev/livemodel/pkg/future"
	"github.com/vango-dev/livemodel/pkg/model"
)

func counterProps() model.Props {
	return model.Props{
		model.NameProp: "counter",
		"count":        0,
		"increment": func(m *model.Model, _ ...any) any {
			m.Set("count", m.Int("count")+1)
			return nil
		},
		"fail": func(m *model.Model, _ ...any) any {
			return lmerrors.New("E211")
		},
		"boom": func(m *model.Model, _ ...any) any {
			panic("boom")
		},
	}
}

func withMetrics(t *testing.T, fn func(reg *prometheus.Registry)) {
	t.Helper()
	reg := prometheus.NewRegistry()
	model.WithInjectors([]model.Injector{Prometheus(WithRegistry(reg))}, func() {
		fn(reg)
	})
}

func TestPrometheusCountsCallsAndChanges(t *testing.T) {
	withMetrics(t, func(reg *prometheus.Registry) {
		mt := metricsFor(MetricsConfig{Registry: reg})
		m := model.Create(counterProps())

		m.Invoke("increment")
		m.Invoke("increment")

		assert.Equal(t, 1.0, testutil.ToFloat64(mt.modelsCreated.WithLabelValues("counter")))
		assert.Equal(t, 2.0, testutil.ToFloat64(mt.methodCalls.WithLabelValues("counter", "increment", "success")))
		assert.Equal(t, 2.0, testutil.ToFloat64(mt.changes.WithLabelValues("counter")))
		assert.Equal(t, 1, testutil.CollectAndCount(mt.methodDuration))
	})
}

func TestPrometheusRecordsErrorsByCategory(t *testing.T) {
	withMetrics(t, func(reg *prometheus.Registry) {
		mt := metricsFor(MetricsConfig{Registry: reg})
		m := model.Create(counterProps())

		result := m.Invoke("fail")
		require.Error(t, result.(error))
		assert.Panics(t, func() { m.Invoke("boom") })

		assert.Equal(t, 1.0, testutil.ToFloat64(mt.methodCalls.WithLabelValues("counter", "fail", "error")))
		assert.Equal(t, 1.0, testutil.ToFloat64(mt.methodErrors.WithLabelValues("counter", "fail", "async")))
		assert.Equal(t, 1.0, testutil.ToFloat64(mt.methodErrors.WithLabelValues("counter", "boom", "panic")))
		assert.Equal(t, 0.0, testutil.ToFloat64(mt.changes.WithLabelValues("counter")))
	})
}

func TestPrometheusCountsFuturesWhenSettled(t *testing.T) {
	withMetrics(t, func(reg *prometheus.Registry) {
		mt := metricsFor(MetricsConfig{Registry: reg})
		f := future.New(nil)
		m := model.Create(model.Props{
			"start": func(*model.Model, ...any) any { return f },
		})

		m.Invoke("start")
		calls := mt.methodCalls.WithLabelValues("model", "start", "error")
		assert.Equal(t, 0.0, testutil.ToFloat64(calls))

		f.Cancel()
		assert.Equal(t, 1.0, testutil.ToFloat64(calls))
		assert.Equal(t, 1.0, testutil.ToFloat64(mt.methodErrors.WithLabelValues("model", "start", "cancelled")))
	})
}

func TestPrometheusCountsFamilyRemovals(t *testing.T) {
	withMetrics(t, func(reg *prometheus.Registry) {
		mt := metricsFor(MetricsConfig{Registry: reg})
		todos := model.New(model.Def{
			Props: model.Props{model.NameProp: "todo", "id": 0, "done": false},
			Key:   "id",
		})

		todos.Family(1).Remove()
		todos.Family(2)

		assert.Equal(t, 3.0, testutil.ToFloat64(mt.modelsCreated.WithLabelValues("todo")))
		assert.Equal(t, 1.0, testutil.ToFloat64(mt.removals.WithLabelValues("todo")))
	})
}

func TestPrometheusReusesCollectorsPerRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	assert.NotPanics(t, func() {
		Prometheus(WithRegistry(reg))
		Prometheus(WithRegistry(reg))
	})
	assert.Same(t, metricsFor(MetricsConfig{Registry: reg}), metricsFor(MetricsConfig{Registry: reg}))
}

func TestCategorizeError(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{future.ErrCancelled, "cancelled"},
		{future.ErrTimeout, "timeout"},
		{lmerrors.New("E101"), "access"},
		{panicError("boom"), "panic"},
		{errors.New("plain"), "internal"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, categorizeError(tt.err), tt.err.Error())
	}
}
