package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/randalmurphal/stepgraph/internal/workflows"
	"github.com/randalmurphal/stepgraph/pkg/stepgraph/checkpoint"
	"github.com/randalmurphal/stepgraph/pkg/stepgraph/config"
)

// app holds the state shared by every subcommand.
type app struct {
	configPath   string
	storeBackend string
	storePath    string
	logLevel     string
	useLLM       bool

	cfg     config.Config
	logger  *slog.Logger
	store   checkpoint.Store
	catalog *workflows.Catalog
}

func newRootCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "stepgraph",
		Short:         "Run step graphs with checkpointed threads",
		Long:          `stepgraph runs the bundled workflows against a checkpoint store, resumes paused threads, and serves the same operations over HTTP.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
	}

	f := cmd.PersistentFlags()
	f.StringVar(&a.configPath, "config", "", "config file (.yaml, .yml or .json)")
	f.StringVar(&a.storeBackend, "store", "", "checkpoint store: memory, file, sqlite, redis or postgres")
	f.StringVar(&a.storePath, "store-path", "", "directory for the file store, database file for sqlite")
	f.StringVar(&a.logLevel, "log-level", "", "log level: debug, info, warn or error")
	f.BoolVar(&a.useLLM, "llm", false, "send model steps to the configured completion endpoint")

	cmd.AddCommand(
		newRunCmd(a),
		newSignalCmd(a),
		newServeCmd(a),
		newThreadsCmd(a),
		newWorkflowsCmd(a),
		newVersionCmd(),
	)
	return cmd
}

// setup loads the configuration, applies flag overrides, and opens the
// store.
func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if a.storeBackend != "" {
		cfg.Store.Backend = a.storeBackend
	}
	if a.storePath != "" {
		cfg.Store.Path = a.storePath
	}
	if a.logLevel != "" {
		cfg.Log.Level = a.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	a.cfg = cfg
	a.logger = cfg.Log.NewLogger(cmd.ErrOrStderr())

	if a.catalog, err = workflows.NewCatalog(); err != nil {
		return err
	}
	if a.store, err = cfg.Store.Open(cmd.Context()); err != nil {
		return fmt.Errorf("open %s store: %w", cfg.Store.Backend, err)
	}
	a.logger.Debug("store opened", "backend", cfg.Store.Backend)
	return nil
}

func (a *app) close() error {
	if a.store == nil {
		return nil
	}
	err := a.store.Close()
	a.store = nil
	return err
}

func (a *app) runner() *workflows.Runner {
	r := &workflows.Runner{
		Catalog: a.catalog,
		Store:   a.store,
		Logger:  a.logger,
		Options: a.cfg.RunOptions(),
	}
	if a.useLLM {
		r.LLM = a.cfg.LLM.NewClient()
	}
	return r
}

// parsePairs splits key=value flags.
func parsePairs(pairs []string) (map[string]string, error) {
	out := make(map[string]string, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok || strings.TrimSpace(k) == "" {
			return nil, fmt.Errorf("input %q: want key=value", p)
		}
		out[strings.TrimSpace(k)] = v
	}
	return out, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
