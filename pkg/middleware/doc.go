// Package middleware provides model injectors for production observability.
//
// This package includes:
//   - OpenTelemetry tracing of model method calls
//   - Prometheus metrics for constructions, calls, errors and changes
//
// Both are model.Injector values. Install them before building models:
//
//	model.Inject(
//	    middleware.Prometheus(middleware.WithNamespace("myapp")),
//	    middleware.OpenTelemetry(middleware.WithTracerName("myapp")),
//	)
//
// Models are labelled by their model.NameProp prop:
//
//	todo := model.Create(model.Props{model.NameProp: "todo", "title": ""})
//
// # OpenTelemetry
//
// Every bound method call becomes a span named "<model>.<method>". Calls
// made from inside another method become child spans, and writes made by
// the method are recorded as span events. A method returning a
// *future.Future keeps its span open until the future settles.
//
// # Prometheus
//
// Expose the collected metrics with promhttp:
//
//	http.Handle("/metrics", promhttp.Handler())
package middleware
