package config

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/randalmurphal/stepgraph/pkg/stepgraph/recovery"
)

// Store backends accepted by StoreConfig.Backend.
const (
	BackendMemory   = "memory"
	BackendFile     = "file"
	BackendSQLite   = "sqlite"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

var (
	backends   = []string{BackendMemory, BackendFile, BackendSQLite, BackendRedis, BackendPostgres}
	logLevels  = []string{"debug", "info", "warn", "error"}
	logFormats = []string{"text", "json"}
)

// ErrInvalid is matched by every validation failure.
var ErrInvalid = errors.New("invalid config")

// Config is the stepgraph CLI and server configuration.
type Config struct {
	Engine EngineConfig `mapstructure:"engine" json:"engine" yaml:"engine"`
	Store  StoreConfig  `mapstructure:"store" json:"store" yaml:"store"`
	LLM    LLMConfig    `mapstructure:"llm" json:"llm" yaml:"llm"`
	Log    LogConfig    `mapstructure:"log" json:"log" yaml:"log"`
	Server ServerConfig `mapstructure:"server" json:"server" yaml:"server"`
}

// EngineConfig bounds runs and configures recovery.
type EngineConfig struct {
	// MaxSteps bounds step executions per run. 0 disables the bound.
	MaxSteps     int           `mapstructure:"max_steps" json:"max_steps" yaml:"max_steps"`
	MaxRetries   int           `mapstructure:"max_retries" json:"max_retries" yaml:"max_retries"`
	MaxRollbacks int           `mapstructure:"max_rollbacks" json:"max_rollbacks" yaml:"max_rollbacks"`
	Timeout      time.Duration `mapstructure:"timeout" json:"timeout" yaml:"timeout"`
	Backoff      BackoffConfig `mapstructure:"backoff" json:"backoff" yaml:"backoff"`
}

// BackoffConfig spaces out retries.
type BackoffConfig struct {
	Initial time.Duration `mapstructure:"initial" json:"initial" yaml:"initial"`
	Max     time.Duration `mapstructure:"max" json:"max" yaml:"max"`
	Factor  float64       `mapstructure:"factor" json:"factor" yaml:"factor"`
	Jitter  float64       `mapstructure:"jitter" json:"jitter" yaml:"jitter"`
}

// StoreConfig selects and configures the checkpoint store.
type StoreConfig struct {
	Backend string `mapstructure:"backend" json:"backend" yaml:"backend"`
	// Path is the directory for the file backend and the database file for sqlite.
	Path     string         `mapstructure:"path" json:"path" yaml:"path"`
	Redis    RedisConfig    `mapstructure:"redis" json:"redis" yaml:"redis"`
	Postgres PostgresConfig `mapstructure:"postgres" json:"postgres" yaml:"postgres"`
}

// RedisConfig configures the redis backend.
type RedisConfig struct {
	Addr     string        `mapstructure:"addr" json:"addr" yaml:"addr"`
	Password string        `mapstructure:"password" json:"password" yaml:"password"`
	DB       int           `mapstructure:"db" json:"db" yaml:"db"`
	Prefix   string        `mapstructure:"prefix" json:"prefix" yaml:"prefix"`
	TTL      time.Duration `mapstructure:"ttl" json:"ttl" yaml:"ttl"`
}

// PostgresConfig configures the postgres backend.
type PostgresConfig struct {
	DSN   string `mapstructure:"dsn" json:"dsn" yaml:"dsn"`
	Table string `mapstructure:"table" json:"table" yaml:"table"`
}

// LLMConfig configures the OpenAI-compatible completion client.
type LLMConfig struct {
	BaseURL string        `mapstructure:"base_url" json:"base_url" yaml:"base_url"`
	APIKey  string        `mapstructure:"api_key" json:"api_key" yaml:"api_key"`
	Model   string        `mapstructure:"model" json:"model" yaml:"model"`
	Timeout time.Duration `mapstructure:"timeout" json:"timeout" yaml:"timeout"`
}

// LogConfig configures the slog handler.
type LogConfig struct {
	Level  string `mapstructure:"level" json:"level" yaml:"level"`
	Format string `mapstructure:"format" json:"format" yaml:"format"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Addr string `mapstructure:"addr" json:"addr" yaml:"addr"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Engine: EngineConfig{
			MaxSteps:   1000,
			MaxRetries: recovery.DefaultMaxRetries,
		},
		Store: StoreConfig{
			Backend: BackendMemory,
			Path:    "stepgraph.db",
			Redis:   RedisConfig{Addr: "localhost:6379", Prefix: "stepgraph:"},
			Postgres: PostgresConfig{
				Table: "thread_checkpoints",
			},
		},
		LLM: LLMConfig{
			BaseURL: "http://localhost:11434/v1",
			APIKey:  "ollama",
			Model:   "llama3.2:1b",
			Timeout: 60 * time.Second,
		},
		Log:    LogConfig{Level: "info", Format: "text"},
		Server: ServerConfig{Addr: ":8080"},
	}
}

// Validate reports every out-of-range or unknown setting.
func (c Config) Validate() error {
	var errs []error
	fail := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalid}, args...)...))
	}

	if c.Engine.MaxSteps < 0 {
		fail("engine.max_steps must be >= 0, got %d", c.Engine.MaxSteps)
	}
	if c.Engine.Timeout < 0 {
		fail("engine.timeout must be >= 0, got %v", c.Engine.Timeout)
	}
	if err := c.Policy().Validate(); err != nil {
		errs = append(errs, fmt.Errorf("%w: engine: %w", ErrInvalid, err))
	}

	if !slices.Contains(backends, c.Store.Backend) {
		fail("store.backend %q (want one of %v)", c.Store.Backend, backends)
	}
	switch c.Store.Backend {
	case BackendFile, BackendSQLite:
		if c.Store.Path == "" {
			fail("store.path is required for the %s backend", c.Store.Backend)
		}
	case BackendRedis:
		if c.Store.Redis.Addr == "" {
			fail("store.redis.addr is required for the redis backend")
		}
	case BackendPostgres:
		if c.Store.Postgres.DSN == "" {
			fail("store.postgres.dsn is required for the postgres backend")
		}
	}

	if !slices.Contains(logLevels, c.Log.Level) {
		fail("log.level %q (want one of %v)", c.Log.Level, logLevels)
	}
	if !slices.Contains(logFormats, c.Log.Format) {
		fail("log.format %q (want one of %v)", c.Log.Format, logFormats)
	}

	return errors.Join(errs...)
}

// Policy returns the recovery policy described by the engine section.
func (c Config) Policy() recovery.Policy {
	return recovery.Policy{
		MaxRetries:   c.Engine.MaxRetries,
		MaxRollbacks: c.Engine.MaxRollbacks,
		Backoff: recovery.Backoff{
			Initial: c.Engine.Backoff.Initial,
			Max:     c.Engine.Backoff.Max,
			Factor:  c.Engine.Backoff.Factor,
			Jitter:  c.Engine.Backoff.Jitter,
		},
	}
}
