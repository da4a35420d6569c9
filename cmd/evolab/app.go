package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/nvandessel/evolab/internal/config"
	"github.com/nvandessel/evolab/internal/logging"
	"github.com/nvandessel/evolab/internal/simulation"
	"github.com/nvandessel/evolab/internal/store"
)

// app bundles what most commands need: config, store and a loaded lab.
type app struct {
	cfg    *config.EvolabConfig
	root   string
	store  store.Store
	lab    *simulation.Lab
	logger *slog.Logger
	events *logging.EventLog
}

// loadConfig reads --config (or the default file) plus env overrides, then
// applies command-level overrides.
func loadConfig(cmd *cobra.Command, overrides ...func(*config.EvolabConfig)) (*config.EvolabConfig, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadPath(path)
	if err != nil {
		return nil, err
	}
	for _, o := range overrides {
		o(cfg)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func openStore(cfg *config.EvolabConfig, root string) (store.Store, error) {
	switch cfg.Store.Backend {
	case "memory":
		return store.NewMemoryStore(), nil
	default:
		if cfg.Store.Path != "" {
			return store.OpenSQLiteStore(cfg.Store.Path)
		}
		return store.NewSQLiteStore(root)
	}
}

// openApp loads config, opens the store and loads the lab population.
// Callers must Close the app.
func openApp(cmd *cobra.Command, overrides ...func(*config.EvolabConfig)) (*app, error) {
	cfg, err := loadConfig(cmd, overrides...)
	if err != nil {
		return nil, err
	}

	root, _ := cmd.Flags().GetString("root")
	logger := logging.NewLogger(cfg.Logging.Level, cmd.ErrOrStderr())

	st, err := openStore(cfg, root)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	events := logging.NewEventLog(store.LocalEvolabPath(root), cfg.Logging.Level)
	lab, err := simulation.NewLab(simulation.LabOptions{
		Config: cfg,
		Store:  st,
		Logger: logger,
		Events: events.Sink(),
	})
	if err != nil {
		events.Close()
		st.Close()
		return nil, err
	}
	if err := lab.Load(cmd.Context()); err != nil {
		events.Close()
		st.Close()
		return nil, err
	}

	return &app{cfg: cfg, root: root, store: st, lab: lab, logger: logger, events: events}, nil
}

// Close releases the store and event log.
func (a *app) Close() error {
	a.events.Close()
	return a.store.Close()
}

func jsonFlag(cmd *cobra.Command) bool {
	v, _ := cmd.Flags().GetBool("json")
	return v
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// commandContext returns a context cancelled on SIGINT/SIGTERM.
func commandContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithCancel(ctx)

	sigChan := make(chan os.Signal, 1)
	notifySignals(sigChan)
	go func() {
		select {
		case <-sigChan:
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, func() {
		stopSignals(sigChan)
		cancel()
	}
}

// stopSignals releases a channel registered by notifySignals.
var stopSignals = signal.Stop

func evolabDir(root string) string {
	return filepath.Join(root, store.DirName)
}
