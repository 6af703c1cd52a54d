package middleware

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	lmerrors "github.com/vango-dev/livemodel/internal/errors"
	"github.com/vango-dev/livemodel/pkg/future"
	"github.com/vango-dev/livemodel/pkg/model"
)

// MetricsConfig configures the Prometheus metrics injector.
type MetricsConfig struct {
	// Namespace is the metrics namespace (default: "livemodel").
	Namespace string

	// Subsystem is the metrics subsystem (default: "").
	Subsystem string

	// ConstLabels are constant labels added to all metrics.
	ConstLabels prometheus.Labels

	// Buckets are the histogram buckets for method duration.
	// Default: prometheus.DefBuckets
	Buckets []float64

	// Registry is the Prometheus registry to use.
	// Default: prometheus.DefaultRegisterer
	Registry prometheus.Registerer
}

// MetricsOption configures the Prometheus metrics injector.
type MetricsOption func(*MetricsConfig)

// WithNamespace sets the metrics namespace.
func WithNamespace(namespace string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Namespace = namespace
	}
}

// WithSubsystem sets the metrics subsystem.
func WithSubsystem(subsystem string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Subsystem = subsystem
	}
}

// WithConstLabels sets constant labels for all metrics.
func WithConstLabels(labels prometheus.Labels) MetricsOption {
	return func(c *MetricsConfig) {
		c.ConstLabels = labels
	}
}

// WithBuckets sets the histogram buckets.
func WithBuckets(buckets []float64) MetricsOption {
	return func(c *MetricsConfig) {
		c.Buckets = buckets
	}
}

// WithRegistry sets the Prometheus registry.
func WithRegistry(registry prometheus.Registerer) MetricsOption {
	return func(c *MetricsConfig) {
		c.Registry = registry
	}
}

func defaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Namespace: "livemodel",
		Buckets:   prometheus.DefBuckets,
		Registry:  prometheus.DefaultRegisterer,
	}
}

// Metrics holds the collectors of one registry.
type Metrics struct {
	modelsCreated  *prometheus.CounterVec
	methodCalls    *prometheus.CounterVec
	methodDuration *prometheus.HistogramVec
	methodErrors   *prometheus.CounterVec
	changes        *prometheus.CounterVec
	removals       *prometheus.CounterVec
}

// Collectors are registered once per registry; a second Prometheus call
// with the same registry reuses them.
var (
	registered   = make(map[prometheus.Registerer]*Metrics)
	registeredMu sync.Mutex
)

func metricsFor(config MetricsConfig) *Metrics {
	registeredMu.Lock()
	defer registeredMu.Unlock()
	if m, ok := registered[config.Registry]; ok {
		return m
	}
	m := initMetrics(config)
	registered[config.Registry] = m
	return m
}

func initMetrics(config MetricsConfig) *Metrics {
	factory := promauto.With(config.Registry)

	return &Metrics{
		modelsCreated: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "models_created_total",
			Help:        "Total number of models constructed",
			ConstLabels: config.ConstLabels,
		}, []string{"model"}),

		methodCalls: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "method_calls_total",
			Help:        "Total number of model method calls by outcome",
			ConstLabels: config.ConstLabels,
		}, []string{"model", "method", "status"}),

		methodDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "method_duration_seconds",
			Help:        "Synchronous part of model method calls in seconds",
			ConstLabels: config.ConstLabels,
			Buckets:     config.Buckets,
		}, []string{"model", "method"}),

		methodErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "method_errors_total",
			Help:        "Total number of failed model method calls by error type",
			ConstLabels: config.ConstLabels,
		}, []string{"model", "method", "error_type"}),

		changes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "changes_total",
			Help:        "Total number of change notifications",
			ConstLabels: config.ConstLabels,
		}, []string{"model"}),

		removals: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "family_removals_total",
			Help:        "Total number of family members removed",
			ConstLabels: config.ConstLabels,
		}, []string{"model"}),
	}
}

// Prometheus returns an injector that counts constructions, method calls,
// method errors and change notifications of every model built while it is
// installed, labelled with the model's name.
//
// Metrics collected:
//   - livemodel_models_created_total{model}
//   - livemodel_method_calls_total{model,method,status}
//   - livemodel_method_duration_seconds{model,method}
//   - livemodel_method_errors_total{model,method,error_type}
//   - livemodel_changes_total{model}
//   - livemodel_family_removals_total{model}
//
// Example:
//
//	model.Inject(middleware.Prometheus(middleware.WithNamespace("myapp")))
//	http.Handle("/metrics", promhttp.Handler())
//
// A method fails when it panics or returns an error. A method that returns
// a *future.Future is counted when the future settles.
func Prometheus(opts ...MetricsOption) model.Injector {
	config := defaultMetricsConfig()
	for _, opt := range opts {
		opt(&config)
	}
	mt := metricsFor(config)

	return func(m *model.Model, _ model.Props) func() {
		name := m.Name()
		m.Wrap(func(next model.Method, _ *model.Model) model.Method {
			return mt.instrument(name, next)
		})
		return func() {
			mt.modelsCreated.WithLabelValues(name).Inc()
			m.Subscribe(func() {
				mt.changes.WithLabelValues(name).Inc()
			})
			m.Observe(func(a model.Activity) {
				if a.Type == model.ActivityRemove {
					mt.removals.WithLabelValues(name).Inc()
				}
			})
		}
	}
}

// instrument wraps one method. Wrappers do not receive the method name, so
// it is read from the model while the body runs.
func (mt *Metrics) instrument(name string, next model.Method) model.Method {
	return func(m *model.Model, args ...any) (result any) {
		method := m.Invoking()
		start := time.Now()

		defer func() {
			mt.methodDuration.WithLabelValues(name, method).Observe(time.Since(start).Seconds())
			if r := recover(); r != nil {
				mt.record(name, method, panicError(r))
				panic(r)
			}
			if f, ok := result.(*future.Future); ok {
				f.Then(func(_ any, err error) { mt.record(name, method, err) })
				return
			}
			err, _ := result.(error)
			mt.record(name, method, err)
		}()

		return next(m, args...)
	}
}

func (mt *Metrics) record(name, method string, err error) {
	status := "success"
	if err != nil {
		status = "error"
		mt.methodErrors.WithLabelValues(name, method, categorizeError(err)).Inc()
	}
	mt.methodCalls.WithLabelValues(name, method, status).Inc()
}

type panicValue struct{ value any }

func (p panicValue) Error() string { return "panic" }

func panicError(r any) error {
	if err, ok := r.(error); ok {
		return err
	}
	return panicValue{r}
}

// categorizeError returns a low-cardinality label for err.
func categorizeError(err error) string {
	var coded *lmerrors.Error
	switch {
	case errors.Is(err, future.ErrCancelled), errors.Is(err, context.Canceled):
		return "cancelled"
	case errors.Is(err, future.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.As(err, &coded) && coded.Category != "":
		return string(coded.Category)
	case errors.As(err, new(panicValue)):
		return "panic"
	default:
		return "internal"
	}
}
