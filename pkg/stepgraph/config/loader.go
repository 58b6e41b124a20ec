package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "STEPGRAPH_"

// FromFile loads configuration from a file, auto-detecting format by extension.
// Supported extensions: .yaml, .yml, .json
// Keys missing from the file keep their Default values.
func FromFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		return FromYAML(data)
	case ".json":
		return FromJSON(data)
	default:
		return Config{}, fmt.Errorf("unsupported config file extension: %s", ext)
	}
}

// FromYAML parses YAML data over the defaults.
func FromYAML(data []byte) (Config, error) {
	var m map[string]any
	if err := yaml.Unmarshal(data, &m); err != nil {
		return Config{}, fmt.Errorf("parse yaml: %w", err)
	}
	return FromMap(m)
}

// FromJSON parses JSON data over the defaults.
func FromJSON(data []byte) (Config, error) {
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return Config{}, fmt.Errorf("parse json: %w", err)
	}
	return FromMap(m)
}

// FromMap decodes a generic map over the defaults. Unknown keys are errors.
//
// Durations accept:
//   - string: parsed with time.ParseDuration ("30s", "1h30m")
//   - int/int64/float64: interpreted as seconds
func FromMap(m map[string]any) (Config, error) {
	cfg := Default()
	if m == nil {
		return cfg, nil
	}

	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:  durationHook,
		ErrorUnused: true,
		Result:      &cfg,
	})
	if err != nil {
		return Config{}, fmt.Errorf("create decoder: %w", err)
	}
	if err := dec.Decode(m); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	return cfg, nil
}

var durationType = reflect.TypeOf(time.Duration(0))

func durationHook(from, to reflect.Type, data any) (any, error) {
	if to != durationType {
		return data, nil
	}
	switch v := data.(type) {
	case string:
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("parse duration %q: %w", v, err)
		}
		return d, nil
	case int:
		return time.Duration(v) * time.Second, nil
	case int64:
		return time.Duration(v) * time.Second, nil
	case float64:
		return time.Duration(v * float64(time.Second)), nil
	}
	return data, nil
}

// ApplyEnv overlays STEPGRAPH_* variables found by lookup, normally
// os.LookupEnv. Unparseable values are errors.
//
//	STEPGRAPH_MAX_STEPS, STEPGRAPH_MAX_RETRIES, STEPGRAPH_TIMEOUT,
//	STEPGRAPH_STORE, STEPGRAPH_STORE_PATH, STEPGRAPH_REDIS_ADDR,
//	STEPGRAPH_POSTGRES_DSN, STEPGRAPH_LLM_BASE_URL, STEPGRAPH_LLM_API_KEY,
//	STEPGRAPH_LLM_MODEL, STEPGRAPH_LOG_LEVEL, STEPGRAPH_LOG_FORMAT,
//	STEPGRAPH_ADDR
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	strs := map[string]*string{
		"STORE":        &c.Store.Backend,
		"STORE_PATH":   &c.Store.Path,
		"REDIS_ADDR":   &c.Store.Redis.Addr,
		"POSTGRES_DSN": &c.Store.Postgres.DSN,
		"LLM_BASE_URL": &c.LLM.BaseURL,
		"LLM_API_KEY":  &c.LLM.APIKey,
		"LLM_MODEL":    &c.LLM.Model,
		"LOG_LEVEL":    &c.Log.Level,
		"LOG_FORMAT":   &c.Log.Format,
		"ADDR":         &c.Server.Addr,
	}
	for key, dst := range strs {
		if v, ok := lookup(EnvPrefix + key); ok {
			*dst = v
		}
	}

	ints := map[string]*int{
		"MAX_STEPS":   &c.Engine.MaxSteps,
		"MAX_RETRIES": &c.Engine.MaxRetries,
	}
	for key, dst := range ints {
		v, ok := lookup(EnvPrefix + key)
		if !ok {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s%s: %w", EnvPrefix, key, err)
		}
		*dst = n
	}

	if v, ok := lookup(EnvPrefix + "TIMEOUT"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%sTIMEOUT: %w", EnvPrefix, err)
		}
		c.Engine.Timeout = d
	}
	return nil
}

// Load reads path (if non-empty) over the defaults, applies the
// environment, and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		var err error
		if cfg, err = FromFile(path); err != nil {
			return Config{}, err
		}
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
