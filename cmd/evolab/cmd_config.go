package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/nvandessel/evolab/internal/config"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage evolab configuration",
		Long: `View and modify evolab configuration settings.

Configuration is stored in ~/.evolab/config.yaml, or the file named by --config.
EVOLAB_* environment variables override file values at load time.

Examples:
  evolab config list                              # Show all settings
  evolab config get simulation.rounds             # Get a setting
  evolab config set simulation.rounds 200         # Set a setting
  evolab config set simulation.agents a,b,c       # Set the default population`,
	}

	cmd.AddCommand(newConfigListCmd(), newConfigGetCmd(), newConfigSetCmd())
	return cmd
}

// configFilePath returns --config or the default config file path.
func configFilePath(cmd *cobra.Command) (string, error) {
	if path, _ := cmd.Flags().GetString("config"); path != "" {
		return path, nil
	}
	return config.DefaultPath()
}

// loadConfigFile reads the config file without env overrides, so saving
// never persists values that came from the environment.
func loadConfigFile(path string) (*config.EvolabConfig, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return config.Default(), nil
	}
	return config.LoadFromFile(path)
}

func newConfigListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all configuration settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			if jsonFlag(cmd) {
				return writeJSON(cmd.OutOrStdout(), cfg)
			}
			data, err := yaml.Marshal(cfg)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
}

func newConfigGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Get a configuration value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := args[0]
			cfg, err := loadConfig(cmd)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			value, found := getConfigValue(cfg, key)
			if !found {
				return fmt.Errorf("unknown configuration key: %s", key)
			}
			if jsonFlag(cmd) {
				return writeJSON(cmd.OutOrStdout(), map[string]interface{}{
					"key":   key,
					"value": value,
				})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s = %v\n", key, value)
			return nil
		},
	}
}

func newConfigSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a configuration value",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, value := args[0], args[1]

			path, err := configFilePath(cmd)
			if err != nil {
				return err
			}
			cfg, err := loadConfigFile(path)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			if err := setConfigValue(cfg, key, value); err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid value for %s: %w", key, err)
			}
			if err := cfg.Save(path); err != nil {
				return fmt.Errorf("failed to save config: %w", err)
			}

			if jsonFlag(cmd) {
				return writeJSON(cmd.OutOrStdout(), map[string]interface{}{
					"status": "updated",
					"key":    key,
					"value":  value,
					"path":   path,
				})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Set %s = %s\n", key, value)
			return nil
		},
	}
}

// getConfigValue retrieves a configuration value by dot-notation key.
func getConfigValue(cfg *config.EvolabConfig, key string) (interface{}, bool) {
	switch key {
	case "simulation.rounds":
		return cfg.Simulation.Rounds, true
	case "simulation.analysis_interval":
		return cfg.Simulation.AnalysisInterval, true
	case "simulation.seed":
		return cfg.Simulation.Seed, true
	case "simulation.agents":
		return strings.Join(cfg.Simulation.Agents, ","), true
	case "convergence.window_size":
		return cfg.Convergence.WindowSize, true
	case "convergence.threshold":
		return cfg.Convergence.Threshold, true
	case "convergence.analysis_window":
		return cfg.Convergence.AnalysisWindow, true
	case "feedback.rating_threshold":
		return cfg.Feedback.RatingThreshold, true
	case "feedback.default_topic":
		return cfg.Feedback.DefaultTopic, true
	case "isolation.max_consecutive_failures":
		return cfg.Isolation.MaxConsecutiveFailures, true
	case "isolation.open_rounds":
		return cfg.Isolation.OpenRounds, true
	case "store.backend":
		return cfg.Store.Backend, true
	case "store.path":
		return cfg.Store.Path, true
	case "logging.level":
		return cfg.Logging.Level, true
	default:
		return nil, false
	}
}

// setConfigValue sets a configuration value by dot-notation key.
func setConfigValue(cfg *config.EvolabConfig, key, value string) error {
	var err error
	switch key {
	case "simulation.rounds":
		cfg.Simulation.Rounds, err = strconv.Atoi(value)
	case "simulation.analysis_interval":
		cfg.Simulation.AnalysisInterval, err = strconv.Atoi(value)
	case "simulation.seed":
		cfg.Simulation.Seed, err = strconv.ParseInt(value, 10, 64)
	case "simulation.agents":
		var names []string
		for _, name := range strings.Split(value, ",") {
			if name = strings.TrimSpace(name); name != "" {
				names = append(names, name)
			}
		}
		cfg.Simulation.Agents = names
	case "convergence.window_size":
		cfg.Convergence.WindowSize, err = strconv.Atoi(value)
	case "convergence.threshold":
		cfg.Convergence.Threshold, err = strconv.ParseFloat(value, 64)
	case "convergence.analysis_window":
		cfg.Convergence.AnalysisWindow, err = strconv.Atoi(value)
	case "feedback.rating_threshold":
		cfg.Feedback.RatingThreshold, err = strconv.ParseFloat(value, 64)
	case "feedback.default_topic":
		cfg.Feedback.DefaultTopic = value
	case "isolation.max_consecutive_failures":
		var n uint64
		n, err = strconv.ParseUint(value, 10, 32)
		cfg.Isolation.MaxConsecutiveFailures = uint32(n)
	case "isolation.open_rounds":
		cfg.Isolation.OpenRounds, err = strconv.Atoi(value)
	case "store.backend":
		cfg.Store.Backend = value
	case "store.path":
		cfg.Store.Path = value
	case "logging.level":
		cfg.Logging.Level = value
	default:
		return fmt.Errorf("unknown configuration key: %s", key)
	}
	if err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	return nil
}
