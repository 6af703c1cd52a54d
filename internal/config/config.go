package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/vango-dev/livemodel/internal/errors"
	"github.com/vango-dev/livemodel/pkg/compare"
)

const (
	// ConfigFileName is the name of the configuration file.
	ConfigFileName = "livemodel.yaml"

	// EnvPrefix prefixes every environment override.
	EnvPrefix = "LIVEMODEL_"

	// DefaultDevtoolsAddr is the default devtools server address.
	DefaultDevtoolsAddr = "localhost:7357"

	// DefaultNamespace is the default metrics namespace.
	DefaultNamespace = "livemodel"

	// DefaultTracerName is the default OpenTelemetry tracer name.
	DefaultTracerName = "livemodel"
)

// Config represents the complete livemodel.yaml configuration.
type Config struct {
	// Devtools contains the devtools server configuration.
	Devtools DevtoolsConfig `yaml:"devtools" envPrefix:"DEVTOOLS_"`

	// Log contains logging configuration.
	Log LogConfig `yaml:"log" envPrefix:"LOG_"`

	// Metrics contains Prometheus configuration.
	Metrics MetricsConfig `yaml:"metrics" envPrefix:"METRICS_"`

	// Tracing contains OpenTelemetry configuration.
	Tracing TracingConfig `yaml:"tracing" envPrefix:"TRACING_"`

	// Engine contains model engine defaults.
	Engine EngineConfig `yaml:"engine" envPrefix:"ENGINE_"`

	// Loader contains defaults for task loaders.
	Loader LoaderConfig `yaml:"loader" envPrefix:"LOADER_"`

	// configPath stores the path where the config was loaded from.
	configPath string
}

// DevtoolsConfig contains devtools server settings.
type DevtoolsConfig struct {
	// Addr is the address the devtools server listens on.
	Addr string `yaml:"addr,omitempty" env:"ADDR"`

	// Name labels the models registered by this process.
	Name string `yaml:"name,omitempty" env:"NAME"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	// Level is one of debug, info, warn or error.
	Level string `yaml:"level,omitempty" env:"LEVEL"`

	// Format is text or json.
	Format string `yaml:"format,omitempty" env:"FORMAT"`
}

// MetricsConfig contains Prometheus settings.
type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled" env:"ENABLED"`
	Namespace string `yaml:"namespace,omitempty" env:"NAMESPACE"`
}

// TracingConfig contains OpenTelemetry settings.
type TracingConfig struct {
	Enabled    bool   `yaml:"enabled" env:"ENABLED"`
	TracerName string `yaml:"tracerName,omitempty" env:"TRACER_NAME"`
}

// EngineConfig contains model engine defaults.
type EngineConfig struct {
	// KeyCompare matches composite family keys: strict or shallow.
	KeyCompare string `yaml:"keyCompare,omitempty" env:"KEY_COMPARE"`

	// Scheduler runs lazy notifications: goroutine or sync.
	Scheduler string `yaml:"scheduler,omitempty" env:"SCHEDULER"`
}

// LoaderConfig contains task loader defaults.
type LoaderConfig struct {
	// Dir is the root of the file loader.
	Dir string `yaml:"dir,omitempty" env:"DIR"`

	// Bucket and Prefix select objects of the S3 loader in Region.
	Bucket string `yaml:"bucket,omitempty" env:"BUCKET"`
	Prefix string `yaml:"prefix,omitempty" env:"PREFIX"`
	Region string `yaml:"region,omitempty" env:"REGION"`

	// MaxSize rejects larger objects (0 = no limit).
	MaxSize int64 `yaml:"maxSize,omitempty" env:"MAX_SIZE"`

	// Timeout fails loads running longer (0 = no timeout).
	Timeout time.Duration `yaml:"timeout,omitempty" env:"TIMEOUT"`
}

// New creates a new Config with default values.
func New() *Config {
	c := &Config{}
	c.applyDefaults()
	return c
}

// Load reads livemodel.yaml from dir.
func Load(dir string) (*Config, error) {
	return LoadFile(filepath.Join(dir, ConfigFileName))
}

// LoadFile reads configuration from the specified file path.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.New("E301").
				WithDetail("No " + ConfigFileName + " found in " + filepath.Dir(path)).
				WithSuggestion("Run 'livemodel config init' or pass --config")
		}
		return nil, errors.New("E300").Wrap(err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.New("E300").
			WithDetail("Failed to parse " + filepath.Base(path) + ": " + err.Error()).
			WithSuggestion("Check that the file is valid YAML")
	}

	cfg.configPath = path
	cfg.applyDefaults()

	return cfg, nil
}

// ApplyEnv overrides fields from LIVEMODEL_* environment variables, e.g.
// LIVEMODEL_LOG_LEVEL or LIVEMODEL_DEVTOOLS_ADDR. Unset variables keep the
// current value.
func (c *Config) ApplyEnv() error {
	return c.applyEnv(env.Options{Prefix: EnvPrefix})
}

func (c *Config) applyEnv(opts env.Options) error {
	if err := env.ParseWithOptions(c, opts); err != nil {
		return errors.New("E300").
			WithDetail("Failed to parse environment overrides").
			Wrap(err)
	}
	c.applyDefaults()
	return nil
}

// SaveTo writes the configuration to the specified path.
func (c *Config) SaveTo(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return errors.New("E300").Wrap(err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return errors.New("E300").Wrap(err)
	}
	c.configPath = path
	return nil
}

// Path returns the path where the config was loaded from.
func (c *Config) Path() string {
	return c.configPath
}

// applyDefaults fills in default values for empty fields.
func (c *Config) applyDefaults() {
	if c.Devtools.Addr == "" {
		c.Devtools.Addr = DefaultDevtoolsAddr
	}
	if c.Devtools.Name == "" {
		c.Devtools.Name = "livemodel"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
	if c.Metrics.Namespace == "" {
		c.Metrics.Namespace = DefaultNamespace
	}
	if c.Tracing.TracerName == "" {
		c.Tracing.TracerName = DefaultTracerName
	}
	if c.Engine.KeyCompare == "" {
		c.Engine.KeyCompare = "shallow"
	}
	if c.Engine.Scheduler == "" {
		c.Engine.Scheduler = "goroutine"
	}
	if c.Loader.Dir == "" {
		c.Loader.Dir = "."
	}
	if c.Loader.Region == "" {
		c.Loader.Region = "us-east-1"
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	invalid := func(format string, args ...any) error {
		return errors.New("E300").WithDetail(fmt.Sprintf(format, args...))
	}
	if _, ok := parseLevel(c.Log.Level); !ok {
		return invalid("log.level %q is not one of debug, info, warn, error", c.Log.Level)
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		return invalid("log.format %q is not one of text, json", c.Log.Format)
	}
	if _, ok := compare.ByName(c.Engine.KeyCompare); !ok {
		return invalid("engine.keyCompare %q is not one of strict, shallow", c.Engine.KeyCompare)
	}
	if c.Engine.Scheduler != "goroutine" && c.Engine.Scheduler != "sync" {
		return invalid("engine.scheduler %q is not one of goroutine, sync", c.Engine.Scheduler)
	}
	if c.Loader.MaxSize < 0 {
		return invalid("loader.maxSize must not be negative")
	}
	if c.Loader.Timeout < 0 {
		return invalid("loader.timeout must not be negative")
	}
	return nil
}

// SlogLevel returns the configured log level.
func (c *Config) SlogLevel() slog.Level {
	level, _ := parseLevel(c.Log.Level)
	return level
}

// KeyCompare returns the configured family key comparer.
func (c *Config) KeyCompare() compare.Func {
	cmp, ok := compare.ByName(c.Engine.KeyCompare)
	if !ok {
		return compare.Shallow
	}
	return cmp
}

func parseLevel(s string) (slog.Level, bool) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, true
	case "info":
		return slog.LevelInfo, true
	case "warn", "warning":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	}
	return slog.LevelInfo, false
}

// Exists checks if a config file exists in the given directory.
func Exists(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, ConfigFileName))
	return err == nil
}
