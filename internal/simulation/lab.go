package simulation

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nvandessel/evolab/internal/agent"
	"github.com/nvandessel/evolab/internal/analysis"
	"github.com/nvandessel/evolab/internal/config"
	"github.com/nvandessel/evolab/internal/constants"
	"github.com/nvandessel/evolab/internal/diffusion"
	"github.com/nvandessel/evolab/internal/learning"
	"github.com/nvandessel/evolab/internal/logging"
	"github.com/nvandessel/evolab/internal/models"
	"github.com/nvandessel/evolab/internal/sanitize"
	"github.com/nvandessel/evolab/internal/scoring"
	"github.com/nvandessel/evolab/internal/store"
	"github.com/nvandessel/evolab/internal/trend"
)

// EvaluatorFactory builds the evaluator of a new agent. seed is stable for
// a given lab seed and agent position.
type EvaluatorFactory func(name string, seed int64) scoring.Evaluator

// LabOptions configures a Lab. Zero values pick defaults.
type LabOptions struct {
	// Config supplies every tunable. Default: config.Default().
	Config *config.EvolabConfig

	// Store persists agents, feedback and runs. Default: in memory.
	Store store.Store

	Logger *slog.Logger
	Events models.EventSink

	// NewEvaluator defaults to a random scoring model per agent.
	NewEvaluator EvaluatorFactory
}

// SimulateResult is the outcome of Lab.Simulate.
type SimulateResult struct {
	Run    models.RunRecord      `json:"run"`
	Result RunResult             `json:"result"`
	Agents []models.AgentSummary `json:"agents"`
	Report analysis.SystemReport `json:"report"`
}

// Lab is one explicitly constructed run context. Its methods are safe for
// concurrent use; they are serialized.
type Lab struct {
	mu sync.Mutex

	cfg          *config.EvolabConfig
	store        store.Store
	logger       *slog.Logger
	events       models.EventSink
	seed         int64
	newEvaluator EvaluatorFactory

	pop        *Population
	runner     *Runner
	integrator *learning.Integrator
	analyzer   *analysis.Analyzer
	now        func() time.Time
}

// NewLab wires the engine components from the options. The population
// starts empty; call Load to fill it.
func NewLab(opts LabOptions) (*Lab, error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	st := opts.Store
	if st == nil {
		st = store.NewMemoryStore()
	}
	logger := logging.OrDiscard(opts.Logger)
	events := opts.Events
	if events == nil {
		events = models.DiscardEvents{}
	}

	seed := cfg.Simulation.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	newEvaluator := opts.NewEvaluator
	if newEvaluator == nil {
		scoringCfg := cfg.Scoring
		newEvaluator = func(_ string, seed int64) scoring.Evaluator {
			return scoring.NewModel(scoringCfg, nil, seed)
		}
	}

	analyzer := analysis.NewAnalyzer(trend.Detector{
		WindowSize: cfg.Convergence.WindowSize,
		Threshold:  cfg.Convergence.Threshold,
	}, cfg.Convergence.AnalysisWindow, logger)

	coordinator := diffusion.NewCoordinator(cfg.Diffusion, rand.New(rand.NewSource(seed)), logger, events)

	runner := NewRunner(RunnerConfig{
		AnalysisInterval:       cfg.Simulation.AnalysisInterval,
		MaxConsecutiveFailures: cfg.Isolation.MaxConsecutiveFailures,
		OpenRounds:             cfg.Isolation.OpenRounds,
	}, coordinator, analyzer, logger, events)

	var rules []learning.TopicRule
	for _, t := range cfg.Feedback.Topics {
		rules = append(rules, learning.TopicRule{Name: t.Name, Keywords: t.Keywords})
	}
	integrator := learning.NewIntegrator(learning.NewTopicExtractor(rules, cfg.Feedback.DefaultTopic), logger)

	pop, _ := NewPopulation()
	return &Lab{
		cfg:          cfg,
		store:        st,
		logger:       logger,
		events:       events,
		seed:         seed,
		newEvaluator: newEvaluator,
		pop:          pop,
		runner:       runner,
		integrator:   integrator,
		analyzer:     analyzer,
		now:          time.Now,
	}, nil
}

// Seed returns the seed all lab randomness derives from.
func (l *Lab) Seed() int64 { return l.seed }

// Store returns the lab's store.
func (l *Lab) Store() store.Store { return l.store }

// Population returns the current population.
func (l *Lab) Population() *Population {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.pop
}

func (l *Lab) agentOptions(name string, position int) agent.Options {
	seed := l.seed + int64(position+1)*7919
	return agent.Options{
		Evaluator:         l.newEvaluator(name, seed),
		Rand:              rand.New(rand.NewSource(seed)),
		Logger:            l.logger,
		Events:            l.events,
		FeedbackThreshold: l.cfg.Feedback.RatingThreshold,
	}
}

// Load replaces the population with the stored one. When nothing is
// stored, the configured agent names (or the default six) are created.
func (l *Lab) Load(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	states, err := l.store.LoadAgents(ctx)
	if err != nil {
		return fmt.Errorf("loading agents: %w", err)
	}

	pop, _ := NewPopulation()
	if len(states) == 0 {
		names := l.cfg.Simulation.Agents
		if len(names) == 0 {
			names = constants.DefaultAgentNames
		}
		for i, name := range names {
			if err := pop.Add(agent.New(name, l.agentOptions(name, i))); err != nil {
				return err
			}
		}
		l.logger.Info("created population", "agents", len(names))
	} else {
		for i, state := range states {
			if err := pop.Add(agent.FromState(state, l.agentOptions(state.Name, i))); err != nil {
				return err
			}
		}
		l.logger.Debug("loaded population", "agents", len(states))
	}

	l.pop = pop
	return nil
}

// AddAgent appends a new agent at the minimum level.
func (l *Lab) AddAgent(ctx context.Context, name string) (models.AgentSummary, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	name = strings.TrimSpace(name)
	if name == "" {
		return models.AgentSummary{}, fmt.Errorf("agent name is required")
	}
	if !sanitize.ValidName(name) {
		return models.AgentSummary{}, fmt.Errorf("invalid agent name %q: use letters, digits, '-' and '_'", name)
	}
	a := agent.New(name, l.agentOptions(name, l.pop.Len()))
	if err := l.pop.Add(a); err != nil {
		return models.AgentSummary{}, err
	}
	if err := l.saveLocked(ctx); err != nil {
		return models.AgentSummary{}, err
	}
	return a.Summary(), nil
}

// ImproveAgent runs topic-driven improvement on one agent and persists the
// population. It returns the acquired skill.
func (l *Lab) ImproveAgent(ctx context.Context, name string) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	a, err := l.pop.Get(name)
	if err != nil {
		return "", err
	}
	skill := a.Improve()
	if err := l.saveLocked(ctx); err != nil {
		return "", err
	}
	return skill, nil
}

// Save persists the population.
func (l *Lab) Save(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.saveLocked(ctx)
}

func (l *Lab) saveLocked(ctx context.Context) error {
	if err := l.store.SaveAgents(ctx, l.pop.States()); err != nil {
		return fmt.Errorf("saving agents: %w", err)
	}
	return nil
}

// Simulate runs rounds over the population, then stores the run record and
// the evolved population. Non-positive rounds use the configured default.
// A cancelled run is still recorded, with its error.
func (l *Lab) Simulate(ctx context.Context, rounds int) (SimulateResult, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if rounds <= 0 {
		rounds = l.cfg.Simulation.Rounds
	}

	started := l.now()
	result, runErr := l.runner.Run(ctx, l.pop, rounds)
	report := l.analyzer.AnalyzeSystem(l.pop.Agents(), l.pop.Snapshots())

	record := models.RunRecord{
		ID:              uuid.NewString(),
		StartedAt:       started,
		FinishedAt:      l.now(),
		RoundsRequested: rounds,
		RoundsCompleted: result.RoundsCompleted,
		Seed:            l.seed,
		Failures:        result.Failures,
	}
	if data, err := json.Marshal(report); err == nil {
		record.Report = data
	}
	if runErr != nil {
		record.Error = runErr.Error()
	}

	out := SimulateResult{Run: record, Result: result, Agents: l.pop.Summaries(), Report: report}

	// Persist with a fresh context so a cancelled run is still recorded.
	saveCtx := context.WithoutCancel(ctx)
	if err := l.store.SaveRun(saveCtx, record); err != nil {
		return out, fmt.Errorf("saving run: %w", err)
	}
	if err := l.saveLocked(saveCtx); err != nil {
		return out, err
	}

	if runErr != nil {
		return out, fmt.Errorf("simulation interrupted after %d rounds: %w", result.RoundsCompleted, runErr)
	}
	return out, nil
}

// AddFeedback stores a rated exchange and records it as an interaction on
// every agent it rates.
func (l *Lab) AddFeedback(ctx context.Context, entry models.FeedbackEntry) (models.FeedbackEntry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry.Input = sanitize.Text(entry.Input)
	entry.Response = sanitize.Text(entry.Response)
	entry.SessionID = sanitize.Name(entry.SessionID)
	if entry.Input == "" {
		return entry, fmt.Errorf("feedback input is required")
	}
	if len(entry.Ratings) == 0 {
		return entry, fmt.Errorf("feedback needs at least one rating")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = l.now().UTC()
	}

	id, err := l.store.AddFeedback(ctx, entry)
	if err != nil {
		return entry, fmt.Errorf("storing feedback: %w", err)
	}
	entry.ID = id

	l.integrator.RecordInteractions(l.pop.Agents(), entry)
	if err := l.saveLocked(ctx); err != nil {
		return entry, err
	}
	return entry, nil
}

// FeedbackAnalysis aggregates all stored feedback.
func (l *Lab) FeedbackAnalysis(ctx context.Context) (models.FeedbackAnalysis, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.feedbackAnalysisLocked(ctx)
}

func (l *Lab) feedbackAnalysisLocked(ctx context.Context) (models.FeedbackAnalysis, error) {
	entries, err := l.store.ListFeedback(ctx)
	if err != nil {
		return models.FeedbackAnalysis{}, fmt.Errorf("listing feedback: %w", err)
	}
	return l.integrator.Analyze(entries), nil
}

// IntegrateFeedback rebuilds the feedback analysis from the store, lets
// every agent learn from it and persists the population.
func (l *Lab) IntegrateFeedback(ctx context.Context) (learning.IntegrationResult, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	fa, err := l.feedbackAnalysisLocked(ctx)
	if err != nil {
		return learning.IntegrationResult{}, err
	}
	result := l.integrator.Integrate(l.pop.Agents(), fa)
	if err := l.saveLocked(ctx); err != nil {
		return result, err
	}
	return result, nil
}

// ApplyRatings records direct ratings as evaluations. Unknown agent names
// are reported in the result.
func (l *Lab) ApplyRatings(ratings map[string]models.Rating) learning.RatingResult {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.integrator.ApplyRatings(l.pop.Agents(), ratings)
}

// Summaries returns the per-agent summaries in population order.
func (l *Lab) Summaries() []models.AgentSummary {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.pop.Summaries()
}

// States returns the full agent states in population order.
func (l *Lab) States() []models.AgentState {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.pop.States()
}

// Analyze builds a system report over the current population and every
// snapshot recorded in this lab.
func (l *Lab) Analyze() analysis.SystemReport {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.analyzer.AnalyzeSystem(l.pop.Agents(), l.pop.Snapshots())
}

// AnalyzeAgent reports on one agent. ok is false when its history is too
// short.
func (l *Lab) AnalyzeAgent(name string) (report analysis.AgentReport, ok bool, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	a, err := l.pop.Get(name)
	if err != nil {
		return analysis.AgentReport{}, false, err
	}
	report, ok = l.analyzer.AnalyzeAgent(a)
	return report, ok, nil
}

// Runs lists stored runs, newest first.
func (l *Lab) Runs(ctx context.Context, limit int) ([]models.RunRecord, error) {
	return l.store.ListRuns(ctx, limit)
}

// Topic returns the topic the lab's extractor assigns to text.
func (l *Lab) Topic(text string) string {
	return l.integrator.Extractor().Extract(text)
}
