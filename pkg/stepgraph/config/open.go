package config

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/randalmurphal/stepgraph/pkg/stepgraph"
	"github.com/randalmurphal/stepgraph/pkg/stepgraph/checkpoint"
	"github.com/randalmurphal/stepgraph/pkg/stepgraph/llm"
)

// Open creates the configured checkpoint store.
// The redis backend connects lazily; postgres connects and creates its
// table before returning.
func (s StoreConfig) Open(ctx context.Context) (checkpoint.Store, error) {
	switch s.Backend {
	case BackendMemory, "":
		return checkpoint.NewMemoryStore(), nil
	case BackendFile:
		return checkpoint.NewFileStore(s.Path)
	case BackendSQLite:
		return checkpoint.NewSQLiteStore(s.Path)
	case BackendRedis:
		return checkpoint.NewRedisStore(checkpoint.RedisOptions{
			Addr:     s.Redis.Addr,
			Password: s.Redis.Password,
			DB:       s.Redis.DB,
			Prefix:   s.Redis.Prefix,
			TTL:      s.Redis.TTL,
		}), nil
	case BackendPostgres:
		return checkpoint.NewPostgresStore(ctx, checkpoint.PostgresOptions{
			ConnString: s.Postgres.DSN,
			TableName:  s.Postgres.Table,
		})
	default:
		return nil, fmt.Errorf("%w: unknown store backend %q", ErrInvalid, s.Backend)
	}
}

// NewLogger builds a text or JSON slog logger writing to w.
func (l LogConfig) NewLogger(w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: l.level()}
	if l.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func (l LogConfig) level() slog.Level {
	switch l.Level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewClient builds the OpenAI-compatible completion client.
func (c LLMConfig) NewClient() *llm.OpenAIClient {
	return llm.NewOpenAIClient(c.BaseURL, c.APIKey, c.Model, llm.WithTimeout(c.Timeout))
}

// RunOptions turns the engine section into run options: the step bound,
// the recovery policy, and the timeout when one is set.
func (c Config) RunOptions() []stepgraph.RunOption {
	opts := []stepgraph.RunOption{
		stepgraph.WithMaxSteps(c.Engine.MaxSteps),
		stepgraph.WithRecovery(c.Policy()),
	}
	if c.Engine.Timeout > 0 {
		opts = append(opts, stepgraph.WithTimeout(c.Engine.Timeout))
	}
	return opts
}
