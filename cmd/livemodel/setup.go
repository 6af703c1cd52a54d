package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/vango-dev/livemodel/internal/config"
	"github.com/vango-dev/livemodel/pkg/loader"
	"github.com/vango-dev/livemodel/pkg/model"
	"github.com/vango-dev/livemodel/pkg/task"
)

// loadConfig reads --config, or livemodel.yaml when present, and applies
// environment overrides.
func (o *rootOptions) loadConfig() (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	switch {
	case o.configPath != "":
		cfg, err = config.LoadFile(o.configPath)
	case config.Exists("."):
		cfg, err = config.Load(".")
	default:
		cfg = config.New()
	}
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newLogger(cfg *config.Config, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.SlogLevel()}
	var handler slog.Handler
	if cfg.Log.Format == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler).With("process", cfg.Devtools.Name)
}

// configureEngine applies the engine settings of cfg and returns a function
// restoring the previous ones.
func configureEngine(cfg *config.Config, log *slog.Logger) (restore func()) {
	model.SetLogger(log)
	scheduler := model.GoScheduler
	if cfg.Engine.Scheduler == "sync" {
		scheduler = model.SyncScheduler
	}
	prev := model.SetScheduler(scheduler)
	return func() {
		model.SetScheduler(prev)
		model.SetLogger(nil)
	}
}

// tracerProvider returns a provider that logs finished spans, or a no-op
// provider when tracing is disabled.
func tracerProvider(cfg *config.Config, log *slog.Logger) (trace.TracerProvider, func(context.Context) error) {
	if !cfg.Tracing.Enabled {
		return noop.NewTracerProvider(), func(context.Context) error { return nil }
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSyncer(&logExporter{log: log}),
		sdktrace.WithResource(resource.NewSchemaless(
			attribute.String("service.name", cfg.Devtools.Name),
		)),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)
	return tp, tp.Shutdown
}

// logExporter writes finished spans to a slog logger.
type logExporter struct {
	log *slog.Logger
}

func (e *logExporter) ExportSpans(ctx context.Context, spans []sdktrace.ReadOnlySpan) error {
	for _, s := range spans {
		attrs := []any{
			"trace", s.SpanContext().TraceID().String(),
			"span", s.SpanContext().SpanID().String(),
			"duration", s.EndTime().Sub(s.StartTime()),
			"status", s.Status().Code.String(),
		}
		if s.Parent().IsValid() {
			attrs = append(attrs, "parent", s.Parent().SpanID().String())
		}
		e.log.DebugContext(ctx, "span "+s.Name(), attrs...)
	}
	return nil
}

func (e *logExporter) Shutdown(context.Context) error { return nil }

// newLoader returns the S3 loader when a bucket is configured and the file
// loader otherwise.
func newLoader(cfg *config.Config) task.Loader {
	if cfg.Loader.Bucket == "" {
		return loader.File(cfg.Loader.Dir, loader.WithMaxSize(cfg.Loader.MaxSize))
	}
	client := s3.New(s3.Options{
		Region:      cfg.Loader.Region,
		Credentials: aws.NewCredentialsCache(aws.CredentialsProviderFunc(envCredentials)),
	})
	return loader.S3(client, cfg.Loader.Bucket,
		loader.WithPrefix(cfg.Loader.Prefix),
		loader.WithMaxSize(cfg.Loader.MaxSize),
	)
}

// envCredentials reads static credentials from the standard AWS variables.
func envCredentials(context.Context) (aws.Credentials, error) {
	creds := aws.Credentials{
		AccessKeyID:     os.Getenv("AWS_ACCESS_KEY_ID"),
		SecretAccessKey: os.Getenv("AWS_SECRET_ACCESS_KEY"),
		SessionToken:    os.Getenv("AWS_SESSION_TOKEN"),
		Source:          "environment",
	}
	if creds.AccessKeyID == "" || creds.SecretAccessKey == "" {
		return aws.Credentials{}, errors.New("AWS_ACCESS_KEY_ID and AWS_SECRET_ACCESS_KEY must be set to load from S3")
	}
	return creds, nil
}
