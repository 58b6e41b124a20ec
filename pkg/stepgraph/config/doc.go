/*
Package config loads the stepgraph CLI and server configuration.

# Overview

A Config has five sections: engine (step bound, recovery, timeout), store
(checkpoint backend), llm (completion endpoint), log, and server. Files are
decoded over Default, so a file only names what it changes; unknown keys
are errors.

# File Loading

Load configuration from YAML or JSON files:

	cfg, err := config.FromFile("stepgraph.yaml")
	if err != nil {
	    log.Fatal(err)
	}

	// Or load from bytes
	cfg, err = config.FromYAML(yamlBytes)
	cfg, err = config.FromJSON(jsonBytes)

A typical file:

	engine:
	  max_retries: 2
	  timeout: 5m
	  backoff:
	    initial: 100ms
	    factor: 2
	store:
	  backend: sqlite
	  path: ./threads.db
	llm:
	  model: llama3.2:1b

# Durations

Duration fields accept:
  - string: parsed with time.ParseDuration ("30s", "1h30m")
  - int/float64: interpreted as seconds

# Environment

ApplyEnv overlays STEPGRAPH_* variables after the file. Load does file,
environment, and Validate in one call.

# Wiring

StoreConfig.Open, LogConfig.NewLogger, LLMConfig.NewClient, and
Config.Policy turn sections into the objects the engine takes.
*/
package config
