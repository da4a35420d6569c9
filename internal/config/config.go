// Package config provides unified configuration loading for evolab.
// It supports loading from YAML files and environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/nvandessel/evolab/internal/constants"
	"github.com/nvandessel/evolab/internal/diffusion"
	"github.com/nvandessel/evolab/internal/sanitize"
	"github.com/nvandessel/evolab/internal/scoring"
)

// FileName is the config file name inside the global .evolab directory.
const FileName = "config.yaml"

// EvolabConfig contains all evolab configuration settings.
type EvolabConfig struct {
	Simulation  SimulationConfig  `json:"simulation" yaml:"simulation"`
	Scoring     scoring.Config    `json:"scoring" yaml:"scoring"`
	Convergence ConvergenceConfig `json:"convergence" yaml:"convergence"`
	Feedback    FeedbackConfig    `json:"feedback" yaml:"feedback"`
	Diffusion   diffusion.Config  `json:"diffusion" yaml:"diffusion"`
	Isolation   IsolationConfig   `json:"isolation" yaml:"isolation"`
	Store       StoreConfig       `json:"store" yaml:"store"`
	MCP         MCPConfig         `json:"mcp" yaml:"mcp"`
	Logging     LoggingConfig     `json:"logging" yaml:"logging"`
}

// SimulationConfig configures the simulation loop and the population.
type SimulationConfig struct {
	// Rounds is the default round count for simulate requests.
	Rounds int `json:"rounds" yaml:"rounds"`

	// AnalysisInterval runs a system analysis every N rounds.
	AnalysisInterval int `json:"analysis_interval" yaml:"analysis_interval"`

	// Seed fixes all randomness when non-zero. Zero seeds from the clock.
	Seed int64 `json:"seed" yaml:"seed"`

	// Agents names the population created when none is stored.
	Agents []string `json:"agents" yaml:"agents"`
}

// ConvergenceConfig configures trend analysis.
type ConvergenceConfig struct {
	// WindowSize is the half-width of the windowed convergence scan.
	WindowSize int `json:"window_size" yaml:"window_size"`

	// Threshold is the slope magnitude treated as flat.
	Threshold float64 `json:"threshold" yaml:"threshold"`

	// AnalysisWindow is how many scores the initial/final means cover.
	AnalysisWindow int `json:"analysis_window" yaml:"analysis_window"`
}

// FeedbackConfig configures feedback integration.
type FeedbackConfig struct {
	// RatingThreshold is the mean rating below which agents and topics
	// are strengthened. Ratings use the feedback store's 1-5 scale.
	RatingThreshold float64 `json:"rating_threshold" yaml:"rating_threshold"`

	// DefaultTopic is assigned to text that matches no topic keyword.
	DefaultTopic string `json:"default_topic" yaml:"default_topic"`

	// Topics replaces the built-in keyword table when non-empty.
	// Earlier topics win ties.
	Topics []TopicConfig `json:"topics,omitempty" yaml:"topics,omitempty"`
}

// TopicConfig maps a topic to its keywords.
type TopicConfig struct {
	Name     string   `json:"name" yaml:"name"`
	Keywords []string `json:"keywords" yaml:"keywords"`
}

// IsolationConfig configures per-agent failure isolation.
type IsolationConfig struct {
	// MaxConsecutiveFailures opens an agent's breaker after this many
	// failed steps in a row.
	MaxConsecutiveFailures uint32 `json:"max_consecutive_failures" yaml:"max_consecutive_failures"`

	// OpenRounds is how many rounds an open breaker skips the agent
	// before it is tried again.
	OpenRounds int `json:"open_rounds" yaml:"open_rounds"`
}

// StoreConfig selects the persistence backend.
type StoreConfig struct {
	// Backend is "sqlite" (default) or "memory".
	Backend string `json:"backend" yaml:"backend"`

	// Path overrides the database file. Supports ${VAR} expansion.
	// Empty means <root>/.evolab/evolab.db.
	Path string `json:"path,omitempty" yaml:"path,omitempty"`
}

// MCPConfig configures the MCP tool server.
type MCPConfig struct {
	// RateLimits overrides the per-tool call limits by tool name.
	RateLimits map[string]RateLimit `json:"rate_limits,omitempty" yaml:"rate_limits,omitempty"`
}

// RateLimit is a token bucket allowance.
type RateLimit struct {
	PerMinute int `json:"per_minute" yaml:"per_minute"`
	Burst     int `json:"burst" yaml:"burst"`
}

// LoggingConfig configures evolab's logging behavior.
type LoggingConfig struct {
	// Level sets the log verbosity: "warn", "info" (default), "debug", or "trace".
	// "debug" and "trace" also write engine events to .evolab/events.jsonl.
	Level string `json:"level" yaml:"level"`
}

// Default returns an EvolabConfig with the reference defaults.
func Default() *EvolabConfig {
	return &EvolabConfig{
		Simulation: SimulationConfig{
			Rounds:           constants.DefaultRounds,
			AnalysisInterval: constants.DefaultAnalysisInterval,
			Agents:           append([]string(nil), constants.DefaultAgentNames...),
		},
		Scoring: scoring.DefaultConfig(),
		Convergence: ConvergenceConfig{
			WindowSize:     constants.DefaultConvergenceWindow,
			Threshold:      constants.DefaultConvergenceThreshold,
			AnalysisWindow: constants.AnalysisWindow,
		},
		Feedback: FeedbackConfig{
			RatingThreshold: constants.FeedbackRatingThreshold,
			DefaultTopic:    constants.DefaultTopic,
		},
		Diffusion: diffusion.DefaultConfig(),
		Isolation: IsolationConfig{
			MaxConsecutiveFailures: 3,
			OpenRounds:             5,
		},
		Store: StoreConfig{
			Backend: "sqlite",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// DefaultPath returns ~/.evolab/config.yaml.
func DefaultPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}
	return filepath.Join(homeDir, ".evolab", FileName), nil
}

// Load loads configuration from the default locations and environment variables.
// Order: defaults -> ~/.evolab/config.yaml -> environment variables
func Load() (*EvolabConfig, error) {
	return LoadPath("")
}

// LoadPath is Load with an explicit config file. An empty path uses the
// default file when it exists; an explicit path must exist.
func LoadPath(path string) (*EvolabConfig, error) {
	config := Default()

	if path == "" {
		if p, err := DefaultPath(); err == nil {
			if _, statErr := os.Stat(p); statErr == nil {
				path = p
			}
		}
	}

	if path != "" {
		fileConfig, err := LoadFromFile(path)
		if err != nil {
			return nil, fmt.Errorf("loading config file: %w", err)
		}
		config = fileConfig
	}

	applyEnvOverrides(config)
	return config, nil
}

// LoadFromFile loads configuration from a specific YAML file.
// Fields missing from the file keep their defaults.
func LoadFromFile(path string) (*EvolabConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	config.Store.Path = expandEnvVars(config.Store.Path)
	return config, nil
}

// Save writes the configuration as YAML to path, creating parent
// directories as needed.
func (c *EvolabConfig) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}

// Validate checks that the configuration is valid.
func (c *EvolabConfig) Validate() error {
	sim := c.Simulation
	if sim.Rounds < 0 {
		return fmt.Errorf("simulation.rounds must be non-negative, got %d", sim.Rounds)
	}
	if sim.AnalysisInterval <= 0 {
		return fmt.Errorf("simulation.analysis_interval must be positive, got %d", sim.AnalysisInterval)
	}
	seen := make(map[string]bool, len(sim.Agents))
	for _, name := range sim.Agents {
		if strings.TrimSpace(name) == "" {
			return fmt.Errorf("simulation.agents contains an empty name")
		}
		if !sanitize.ValidName(name) {
			return fmt.Errorf("simulation.agents: invalid name %q (use letters, digits, '-' and '_')", name)
		}
		if seen[name] {
			return fmt.Errorf("simulation.agents contains duplicate name %q", name)
		}
		seen[name] = true
	}

	sc := c.Scoring
	if sc.QualityWeight < 0 || sc.LatencyWeight < 0 || sc.CompletionWeight < 0 {
		return fmt.Errorf("scoring weights must be non-negative")
	}
	if sc.QualityWeight+sc.LatencyWeight+sc.CompletionWeight == 0 {
		return fmt.Errorf("scoring weights must not all be zero")
	}
	for name, r := range map[string]scoring.Range{"quality": sc.Quality, "latency": sc.Latency, "completion": sc.Completion} {
		if r.Min > r.Max {
			return fmt.Errorf("scoring.%s range is inverted: [%g, %g]", name, r.Min, r.Max)
		}
	}
	if sc.Latency.Span() == 0 {
		return fmt.Errorf("scoring.latency range must not be empty")
	}

	conv := c.Convergence
	if conv.WindowSize <= 0 {
		return fmt.Errorf("convergence.window_size must be positive, got %d", conv.WindowSize)
	}
	if conv.Threshold <= 0 {
		return fmt.Errorf("convergence.threshold must be positive, got %g", conv.Threshold)
	}
	if conv.AnalysisWindow <= 0 {
		return fmt.Errorf("convergence.analysis_window must be positive, got %d", conv.AnalysisWindow)
	}

	if c.Feedback.RatingThreshold <= 0 {
		return fmt.Errorf("feedback.rating_threshold must be positive, got %g", c.Feedback.RatingThreshold)
	}
	for _, topic := range c.Feedback.Topics {
		if topic.Name == "" {
			return fmt.Errorf("feedback.topics entry has no name")
		}
	}

	if c.Diffusion.FalsePositiveRate <= 0 || c.Diffusion.FalsePositiveRate >= 1 {
		return fmt.Errorf("diffusion.false_positive_rate must be between 0 and 1, got %g", c.Diffusion.FalsePositiveRate)
	}
	if c.Diffusion.ExpectedItems == 0 {
		return fmt.Errorf("diffusion.expected_items must be positive")
	}

	if c.Isolation.MaxConsecutiveFailures == 0 {
		return fmt.Errorf("isolation.max_consecutive_failures must be positive")
	}
	if c.Isolation.OpenRounds < 1 {
		return fmt.Errorf("isolation.open_rounds must be at least 1, got %d", c.Isolation.OpenRounds)
	}

	validBackends := map[string]bool{"sqlite": true, "memory": true}
	if !validBackends[c.Store.Backend] {
		return fmt.Errorf("invalid store backend: %s (valid: sqlite, memory)", c.Store.Backend)
	}

	for tool, rl := range c.MCP.RateLimits {
		if rl.PerMinute <= 0 || rl.Burst <= 0 {
			return fmt.Errorf("mcp.rate_limits.%s: per_minute and burst must be positive", tool)
		}
	}

	validLevels := map[string]bool{"warn": true, "info": true, "debug": true, "trace": true}
	if c.Logging.Level != "" && !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s (valid: warn, info, debug, trace, or empty for default)", c.Logging.Level)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides to the config.
func applyEnvOverrides(config *EvolabConfig) {
	if v := os.Getenv("EVOLAB_ROUNDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.Simulation.Rounds = n
		}
	}
	if v := os.Getenv("EVOLAB_ANALYSIS_INTERVAL"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.Simulation.AnalysisInterval = n
		}
	}
	if v := os.Getenv("EVOLAB_SEED"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			config.Simulation.Seed = n
		}
	}
	if v := os.Getenv("EVOLAB_AGENTS"); v != "" {
		var names []string
		for _, name := range strings.Split(v, ",") {
			if name = strings.TrimSpace(name); name != "" {
				names = append(names, name)
			}
		}
		config.Simulation.Agents = names
	}

	if v := os.Getenv("EVOLAB_CONVERGENCE_WINDOW"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.Convergence.WindowSize = n
		}
	}
	if v := os.Getenv("EVOLAB_CONVERGENCE_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			config.Convergence.Threshold = f
		}
	}

	if v := os.Getenv("EVOLAB_FEEDBACK_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			config.Feedback.RatingThreshold = f
		}
	}

	if v := os.Getenv("EVOLAB_STORE_BACKEND"); v != "" {
		config.Store.Backend = v
	}
	if v := os.Getenv("EVOLAB_STORE_PATH"); v != "" {
		config.Store.Path = expandEnvVars(v)
	}

	if v := os.Getenv("EVOLAB_LOG_LEVEL"); v != "" {
		config.Logging.Level = v
	}
}

// expandEnvVars expands ${VAR} patterns in a string with environment variable values.
func expandEnvVars(s string) string {
	if !strings.Contains(s, "${") {
		return s
	}
	return os.Expand(s, os.Getenv)
}
