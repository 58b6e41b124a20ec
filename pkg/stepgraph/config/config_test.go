package config_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/randalmurphal/stepgraph/pkg/stepgraph"
	"github.com/randalmurphal/stepgraph/pkg/stepgraph/checkpoint"
	"github.com/randalmurphal/stepgraph/pkg/stepgraph/config"
	"github.com/randalmurphal/stepgraph/pkg/stepgraph/recovery"
	"github.com/randalmurphal/stepgraph/pkg/stepgraph/state"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envMap(vars map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := vars[key]
		return v, ok
	}
}

// TestDefault verifies the defaults are valid and match the engine defaults.
func TestDefault(t *testing.T) {
	cfg := config.Default()

	require.NoError(t, cfg.Validate())
	assert.Equal(t, 1000, cfg.Engine.MaxSteps)
	assert.Equal(t, recovery.DefaultMaxRetries, cfg.Engine.MaxRetries)
	assert.Equal(t, config.BackendMemory, cfg.Store.Backend)
	assert.Equal(t, "http://localhost:11434/v1", cfg.LLM.BaseURL)
	assert.Equal(t, "llama3.2:1b", cfg.LLM.Model)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, recovery.DefaultPolicy(), cfg.Policy())
}

// TestFromYAML verifies YAML decoding over the defaults.
func TestFromYAML(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
		check   func(*testing.T, config.Config)
	}{
		{
			name: "partial file keeps defaults",
			yaml: `
engine:
  max_retries: 2
store:
  backend: sqlite
  path: ./threads.db
`,
			check: func(t *testing.T, cfg config.Config) {
				assert.Equal(t, 2, cfg.Engine.MaxRetries)
				assert.Equal(t, 1000, cfg.Engine.MaxSteps)
				assert.Equal(t, config.BackendSQLite, cfg.Store.Backend)
				assert.Equal(t, "./threads.db", cfg.Store.Path)
				assert.Equal(t, "info", cfg.Log.Level)
			},
		},
		{
			name: "durations as strings and seconds",
			yaml: `
engine:
  timeout: 5m
  backoff:
    initial: 100ms
    max: 2
    factor: 2
    jitter: 0.1
llm:
  timeout: 1.5
store:
  redis:
    ttl: 1h
`,
			check: func(t *testing.T, cfg config.Config) {
				assert.Equal(t, 5*time.Minute, cfg.Engine.Timeout)
				assert.Equal(t, 100*time.Millisecond, cfg.Engine.Backoff.Initial)
				assert.Equal(t, 2*time.Second, cfg.Engine.Backoff.Max)
				assert.Equal(t, 2.0, cfg.Engine.Backoff.Factor)
				assert.Equal(t, 0.1, cfg.Engine.Backoff.Jitter)
				assert.Equal(t, 1500*time.Millisecond, cfg.LLM.Timeout)
				assert.Equal(t, time.Hour, cfg.Store.Redis.TTL)
			},
		},
		{
			name: "empty document",
			yaml: "",
			check: func(t *testing.T, cfg config.Config) {
				assert.Equal(t, config.Default(), cfg)
			},
		},
		{
			name:    "unknown key",
			yaml:    "engine:\n  max_loops: 3\n",
			wantErr: "max_loops",
		},
		{
			name:    "bad duration",
			yaml:    "engine:\n  timeout: soon\n",
			wantErr: "parse duration",
		},
		{
			name:    "invalid yaml",
			yaml:    "engine: [unclosed",
			wantErr: "parse yaml",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := config.FromYAML([]byte(tt.yaml))
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			tt.check(t, cfg)
		})
	}
}

// TestFromJSON verifies JSON decoding over the defaults.
func TestFromJSON(t *testing.T) {
	cfg, err := config.FromJSON([]byte(`{
		"engine": {"max_steps": 50, "timeout": 30},
		"log": {"level": "debug", "format": "json"},
		"server": {"addr": "127.0.0.1:9000"}
	}`))
	require.NoError(t, err)

	assert.Equal(t, 50, cfg.Engine.MaxSteps)
	assert.Equal(t, 30*time.Second, cfg.Engine.Timeout)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "127.0.0.1:9000", cfg.Server.Addr)

	_, err = config.FromJSON([]byte(`{"engine":`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse json")
}

// TestFromFile verifies extension detection.
func TestFromFile(t *testing.T) {
	tmpDir := t.TempDir()
	write := func(name, content string) string {
		path := filepath.Join(tmpDir, name)
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
		return path
	}

	yamlPath := write("config.yaml", "server:\n  addr: \":1\"\n")
	ymlPath := write("config.YML", "server:\n  addr: \":2\"\n")
	jsonPath := write("config.json", `{"server": {"addr": ":3"}}`)
	txtPath := write("config.txt", "content")

	tests := []struct {
		name    string
		path    string
		addr    string
		wantErr string
	}{
		{"yaml file", yamlPath, ":1", ""},
		{"yml file, uppercase extension", ymlPath, ":2", ""},
		{"json file", jsonPath, ":3", ""},
		{"unsupported extension", txtPath, "", "unsupported config file extension"},
		{"file not found", filepath.Join(tmpDir, "missing.yaml"), "", "read config file"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := config.FromFile(tt.path)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.addr, cfg.Server.Addr)
		})
	}
}

// TestValidate verifies each validation failure.
func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
		errMsg string
	}{
		{"negative max steps", func(c *config.Config) { c.Engine.MaxSteps = -1 }, "engine.max_steps"},
		{"negative timeout", func(c *config.Config) { c.Engine.Timeout = -time.Second }, "engine.timeout"},
		{"negative retries", func(c *config.Config) { c.Engine.MaxRetries = -1 }, "max retries"},
		{"jitter out of range", func(c *config.Config) { c.Engine.Backoff.Jitter = 2 }, "jitter"},
		{"unknown backend", func(c *config.Config) { c.Store.Backend = "etcd" }, "store.backend"},
		{"file without path", func(c *config.Config) { c.Store.Backend = "file"; c.Store.Path = "" }, "store.path"},
		{"redis without addr", func(c *config.Config) { c.Store.Backend = "redis"; c.Store.Redis.Addr = "" }, "store.redis.addr"},
		{"postgres without dsn", func(c *config.Config) { c.Store.Backend = "postgres" }, "store.postgres.dsn"},
		{"bad log level", func(c *config.Config) { c.Log.Level = "loud" }, "log.level"},
		{"bad log format", func(c *config.Config) { c.Log.Format = "xml" }, "log.format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.ErrorIs(t, err, config.ErrInvalid)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

// TestValidate_JoinsErrors verifies all failures are reported together.
func TestValidate_JoinsErrors(t *testing.T) {
	cfg := config.Default()
	cfg.Log.Level = "loud"
	cfg.Log.Format = "xml"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "log.level")
	assert.Contains(t, err.Error(), "log.format")
}

// TestApplyEnv verifies environment overrides.
func TestApplyEnv(t *testing.T) {
	cfg := config.Default()
	err := cfg.ApplyEnv(envMap(map[string]string{
		"STEPGRAPH_MAX_STEPS":   "25",
		"STEPGRAPH_MAX_RETRIES": "0",
		"STEPGRAPH_TIMEOUT":     "90s",
		"STEPGRAPH_STORE":       "redis",
		"STEPGRAPH_REDIS_ADDR":  "cache:6379",
		"STEPGRAPH_LLM_MODEL":   "qwen2.5",
		"STEPGRAPH_LOG_FORMAT":  "json",
		"STEPGRAPH_ADDR":        ":9090",
		"UNRELATED":             "x",
	}))
	require.NoError(t, err)

	assert.Equal(t, 25, cfg.Engine.MaxSteps)
	assert.Equal(t, 0, cfg.Engine.MaxRetries)
	assert.Equal(t, 90*time.Second, cfg.Engine.Timeout)
	assert.Equal(t, "redis", cfg.Store.Backend)
	assert.Equal(t, "cache:6379", cfg.Store.Redis.Addr)
	assert.Equal(t, "qwen2.5", cfg.LLM.Model)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, ":9090", cfg.Server.Addr)
}

// TestApplyEnv_Invalid verifies unparseable overrides are errors.
func TestApplyEnv_Invalid(t *testing.T) {
	cfg := config.Default()
	err := cfg.ApplyEnv(envMap(map[string]string{"STEPGRAPH_MAX_STEPS": "many"}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "STEPGRAPH_MAX_STEPS")

	err = cfg.ApplyEnv(envMap(map[string]string{"STEPGRAPH_TIMEOUT": "later"}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "STEPGRAPH_TIMEOUT")
}

// TestLoad verifies file, environment, and validation together.
func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stepgraph.yaml")
	require.NoError(t, os.WriteFile(path, []byte("engine:\n  max_steps: 10\n"), 0o644))
	t.Setenv("STEPGRAPH_MAX_RETRIES", "1")

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, 10, cfg.Engine.MaxSteps)
	assert.Equal(t, 1, cfg.Engine.MaxRetries)

	t.Setenv("STEPGRAPH_LOG_LEVEL", "loud")
	_, err = config.Load("")
	assert.ErrorIs(t, err, config.ErrInvalid)
}

// TestPolicy verifies the engine section maps onto recovery.Policy.
func TestPolicy(t *testing.T) {
	cfg := config.Default()
	cfg.Engine.MaxRetries = 2
	cfg.Engine.MaxRollbacks = 1
	cfg.Engine.Backoff = config.BackoffConfig{Initial: time.Second, Max: time.Minute, Factor: 3, Jitter: 0.2}

	p := cfg.Policy()
	assert.Equal(t, 2, p.MaxRetries)
	assert.Equal(t, 1, p.MaxRollbacks)
	assert.Equal(t, recovery.Backoff{Initial: time.Second, Max: time.Minute, Factor: 3, Jitter: 0.2}, p.Backoff)
}

// TestStoreConfig_Open verifies each local backend opens.
func TestStoreConfig_Open(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)

	tests := []struct {
		name  string
		store config.StoreConfig
		want  any
	}{
		{"memory", config.StoreConfig{Backend: config.BackendMemory}, &checkpoint.MemoryStore{}},
		{"file", config.StoreConfig{Backend: config.BackendFile, Path: filepath.Join(t.TempDir(), "threads")}, &checkpoint.FileStore{}},
		{"sqlite", config.StoreConfig{Backend: config.BackendSQLite, Path: filepath.Join(t.TempDir(), "t.db")}, &checkpoint.SQLiteStore{}},
		{"redis", config.StoreConfig{Backend: config.BackendRedis, Redis: config.RedisConfig{Addr: mr.Addr()}}, &checkpoint.RedisStore{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, err := tt.store.Open(ctx)
			require.NoError(t, err)
			defer store.Close()
			assert.IsType(t, tt.want, store)

			require.NoError(t, store.Save(ctx, "alice", []byte(`{"v":1}`)))
			data, err := store.Load(ctx, "alice")
			require.NoError(t, err)
			assert.Equal(t, []byte(`{"v":1}`), data)
		})
	}

	_, err := config.StoreConfig{Backend: "etcd"}.Open(ctx)
	assert.ErrorIs(t, err, config.ErrInvalid)
}

// TestLogConfig_NewLogger verifies format and level selection.
func TestLogConfig_NewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := config.LogConfig{Level: "warn", Format: "json"}.NewLogger(&buf)

	logger.Info("hidden")
	logger.Warn("shown", "k", "v")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.True(t, strings.HasPrefix(out, "{"))
	assert.Contains(t, out, `"msg":"shown"`)

	buf.Reset()
	config.LogConfig{Level: "debug", Format: "text"}.NewLogger(&buf).Debug("visible")
	assert.Contains(t, buf.String(), "msg=visible")
}

// TestLLMConfig_NewClient verifies the client carries the configured model.
func TestLLMConfig_NewClient(t *testing.T) {
	client := config.Default().LLM.NewClient()
	assert.Equal(t, "llama3.2:1b", client.Model())
}

func TestRunOptions(t *testing.T) {
	schema := state.MustSchema(state.Field{Name: "n", Default: 0})
	step := func(_ stepgraph.Context, s state.State) (state.Update, error) {
		return state.Update{"n": s.Int("n") + 1}, nil
	}
	graph, err := stepgraph.NewGraph(schema).
		AddStep("a", step).
		AddStep("b", step).
		AddEdge("a", "b").
		AddEdge("b", stepgraph.END).
		SetEntry("a").
		Compile()
	require.NoError(t, err)

	cfg := config.Default()
	assert.Len(t, cfg.RunOptions(), 2)

	cfg.Engine.MaxSteps = 1
	cfg.Engine.Timeout = time.Minute
	opts := cfg.RunOptions()
	assert.Len(t, opts, 3)

	_, err = graph.Run(stepgraph.NewContext(context.Background()), nil, opts...)
	var maxSteps *stepgraph.MaxStepsError
	assert.ErrorAs(t, err, &maxSteps)
}
