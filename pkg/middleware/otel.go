package middleware

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/vango-dev/livemodel/pkg/future"
	"github.com/vango-dev/livemodel/pkg/model"
)

// Default tracer name for livemodel instrumentation.
const defaultTracerName = "livemodel"

// OTelConfig configures the OpenTelemetry injector.
type OTelConfig struct {
	// TracerName is the name of the tracer (default: "livemodel").
	TracerName string

	// TracerProvider supplies the tracer. Defaults to the global provider.
	TracerProvider trace.TracerProvider

	// IncludeWrites records every field write inside a method as a span event.
	// Enabled by default.
	IncludeWrites bool

	// Filter determines which method calls to trace.
	// If nil, all calls are traced.
	Filter func(m *model.Model, method string) bool

	// AttributeExtractor extracts custom attributes from a call.
	AttributeExtractor func(m *model.Model, method string, args []any) []attribute.KeyValue

	tracer trace.Tracer
}

// OTelOption configures the OpenTelemetry injector.
type OTelOption func(*OTelConfig)

// WithTracerName sets the tracer name.
func WithTracerName(name string) OTelOption {
	return func(c *OTelConfig) {
		c.TracerName = name
	}
}

// WithTracerProvider sets the tracer provider.
func WithTracerProvider(tp trace.TracerProvider) OTelOption {
	return func(c *OTelConfig) {
		c.TracerProvider = tp
	}
}

// WithIncludeWrites enables/disables write events on spans.
func WithIncludeWrites(include bool) OTelOption {
	return func(c *OTelConfig) {
		c.IncludeWrites = include
	}
}

// WithMethodFilter sets a filter function for method calls.
func WithMethodFilter(filter func(m *model.Model, method string) bool) OTelOption {
	return func(c *OTelConfig) {
		c.Filter = filter
	}
}

// WithAttributeExtractor sets a custom attribute extractor.
func WithAttributeExtractor(extractor func(m *model.Model, method string, args []any) []attribute.KeyValue) OTelOption {
	return func(c *OTelConfig) {
		c.AttributeExtractor = extractor
	}
}

func defaultOTelConfig() OTelConfig {
	return OTelConfig{
		TracerName:    defaultTracerName,
		IncludeWrites: true,
	}
}

// OpenTelemetry returns an injector that traces every method call of the
// models built while it is installed.
//
// The injector:
//   - Creates a span per call named "<model>.<method>"
//   - Nests spans of methods called from other methods
//   - Records writes made by the method as span events
//   - Records panics and error results and sets span status
//   - Ends the span of a method returning a *future.Future when it settles
//
// Example:
//
//	tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exporter))
//	otel.SetTracerProvider(tp)
//	model.Inject(middleware.OpenTelemetry(middleware.WithTracerName("my-app")))
func OpenTelemetry(opts ...OTelOption) model.Injector {
	config := defaultOTelConfig()
	for _, opt := range opts {
		opt(&config)
	}

	provider := config.TracerProvider
	if provider == nil {
		provider = otel.GetTracerProvider()
	}
	config.tracer = provider.Tracer(config.TracerName)

	return func(m *model.Model, _ model.Props) func() {
		t := &tracedModel{config: &config}
		m.Wrap(func(next model.Method, _ *model.Model) model.Method {
			return t.trace(next)
		})
		if !config.IncludeWrites {
			return nil
		}
		return func() {
			m.Observe(t.observe)
		}
	}
}

// tracedModel keeps the spans of the calls in progress on one model.
// Methods run under the model lock, so the stack needs no lock of its own.
type tracedModel struct {
	config *OTelConfig
	stack  []context.Context
}

func (t *tracedModel) trace(next model.Method) model.Method {
	return func(m *model.Model, args ...any) (result any) {
		method := m.Invoking()
		if t.config.Filter != nil && !t.config.Filter(m, method) {
			return next(m, args...)
		}

		attrs := []attribute.KeyValue{
			attribute.String("livemodel.model", m.Name()),
			attribute.String("livemodel.method", method),
			attribute.Int("livemodel.args", len(args)),
		}
		if m.IsMember() {
			attrs = append(attrs, attribute.String("livemodel.key", fmt.Sprintf("%v", m.Key())))
		}
		if t.config.AttributeExtractor != nil {
			attrs = append(attrs, t.config.AttributeExtractor(m, method, args)...)
		}

		parent := context.Background()
		if n := len(t.stack); n > 0 {
			parent = t.stack[n-1]
		}
		ctx, span := t.config.tracer.Start(parent, m.Name()+"."+method,
			trace.WithSpanKind(trace.SpanKindInternal),
			trace.WithAttributes(attrs...),
		)
		t.stack = append(t.stack, ctx)

		defer func() {
			t.stack = t.stack[:len(t.stack)-1]
			if r := recover(); r != nil {
				end(span, panicError(r))
				panic(r)
			}
			if f, ok := result.(*future.Future); ok && f != nil {
				span.AddEvent("pending")
				f.Then(func(_ any, err error) { end(span, err) })
				return
			}
			err, _ := result.(error)
			end(span, err)
		}()

		return next(m, args...)
	}
}

func (t *tracedModel) observe(a model.Activity) {
	if a.Type != model.ActivityWrite || len(t.stack) == 0 {
		return
	}
	span := trace.SpanFromContext(t.stack[len(t.stack)-1])
	span.AddEvent("write", trace.WithAttributes(
		attribute.String("livemodel.prop", a.Prop),
		attribute.String("livemodel.value", fmt.Sprintf("%v", a.Value)),
	))
}

func end(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}
