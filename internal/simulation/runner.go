package simulation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"

	"github.com/nvandessel/evolab/internal/agent"
	"github.com/nvandessel/evolab/internal/analysis"
	"github.com/nvandessel/evolab/internal/constants"
	"github.com/nvandessel/evolab/internal/diffusion"
	"github.com/nvandessel/evolab/internal/logging"
	"github.com/nvandessel/evolab/internal/models"
)

// RunnerConfig holds tunable parameters for the simulation loop.
type RunnerConfig struct {
	// AnalysisInterval builds a system report when round % interval == 0.
	// Default: 10.
	AnalysisInterval int

	// MaxConsecutiveFailures opens an agent's breaker. Default: 3.
	MaxConsecutiveFailures uint32

	// OpenRounds is how many rounds an open breaker skips its agent before
	// a fresh breaker lets it run again. Default: 5.
	OpenRounds int
}

// Breakers reopen by round count. The wall-clock timeout only has to
// outlast any run.
const breakerTimeout = 24 * time.Hour

// DefaultRunnerConfig returns the default loop configuration.
func DefaultRunnerConfig() RunnerConfig {
	return RunnerConfig{
		AnalysisInterval:       constants.DefaultAnalysisInterval,
		MaxConsecutiveFailures: 3,
		OpenRounds:             5,
	}
}

// RunResult collects what one Run produced.
type RunResult struct {
	RoundsRequested int `json:"rounds_requested"`
	RoundsCompleted int `json:"rounds_completed"`

	// Snapshots are the evaluations recorded by this run, in order.
	Snapshots []models.Snapshot `json:"snapshots"`

	// Reports are the periodic system reports, oldest first.
	Reports []analysis.SystemReport `json:"reports"`

	Diffusion diffusion.RoundStats `json:"diffusion"`

	Advanced int `json:"advanced"`
	Refined  int `json:"refined"`

	// Failures counts agent steps that failed; Skipped counts steps not
	// attempted because the agent's breaker was open.
	Failures int `json:"failures"`
	Skipped  int `json:"skipped"`
}

// Runner drives simulation rounds.
type Runner struct {
	config      RunnerConfig
	coordinator *diffusion.Coordinator
	analyzer    *analysis.Analyzer
	logger      *slog.Logger
	events      models.EventSink
	breakers    map[string]*agentBreaker
}

type agentBreaker struct {
	cb *gobreaker.CircuitBreaker
	// openedAt is the round the breaker tripped, or -1 while closed.
	openedAt int
}

// NewRunner creates a Runner. Zero config fields take defaults.
func NewRunner(config RunnerConfig, coordinator *diffusion.Coordinator, analyzer *analysis.Analyzer, logger *slog.Logger, events models.EventSink) *Runner {
	def := DefaultRunnerConfig()
	if config.AnalysisInterval <= 0 {
		config.AnalysisInterval = def.AnalysisInterval
	}
	if config.MaxConsecutiveFailures == 0 {
		config.MaxConsecutiveFailures = def.MaxConsecutiveFailures
	}
	if config.OpenRounds <= 0 {
		config.OpenRounds = def.OpenRounds
	}
	if events == nil {
		events = models.DiscardEvents{}
	}
	return &Runner{
		config:      config,
		coordinator: coordinator,
		analyzer:    analyzer,
		logger:      logging.OrDiscard(logger),
		events:      events,
		breakers:    make(map[string]*agentBreaker),
	}
}

// Run executes rounds 0..rounds-1 over the population. Rounds run strictly
// in order and agents in population order. The context is checked between
// rounds only; on cancellation the partial result is returned with the
// context's error and every snapshot recorded so far stays valid.
func (r *Runner) Run(ctx context.Context, pop *Population, rounds int) (RunResult, error) {
	result := RunResult{RoundsRequested: rounds, Snapshots: []models.Snapshot{}, Reports: []analysis.SystemReport{}}

	r.logger.Info("simulation started", "rounds", rounds, "agents", pop.Len())
	for round := 0; round < rounds; round++ {
		if err := ctx.Err(); err != nil {
			r.logger.Warn("simulation cancelled", "round", round, "error", err)
			return result, err
		}

		agents := pop.Agents()
		for _, a := range agents {
			r.step(pop, a, round, &result)
		}

		stats := r.coordinator.ShareRound(agents)
		result.Diffusion.Add(stats)

		if round%r.config.AnalysisInterval == 0 {
			report := r.analyzer.AnalyzeSystem(agents, pop.Snapshots())
			report.Round = round
			r.analyzer.Log(report)
			result.Reports = append(result.Reports, report)
		}

		result.RoundsCompleted++
	}

	r.logger.Info("simulation finished",
		"rounds", result.RoundsCompleted,
		"snapshots", len(result.Snapshots),
		"failures", result.Failures)
	return result, nil
}

// step evaluates and evolves one agent behind its breaker. A score that was
// recorded before a later failure still gets its snapshot.
func (r *Runner) step(pop *Population, a *agent.Agent, round int, result *RunResult) {
	var (
		score  float64
		scored bool
	)

	br := r.breaker(a.Name(), round)
	out, err := br.cb.Execute(func() (out interface{}, err error) {
		defer func() {
			if p := recover(); p != nil {
				err = fmt.Errorf("agent panicked: %v", p)
			}
		}()

		score = a.Evaluate()
		scored = true
		return a.EvolveWith(score), nil
	})

	if scored {
		snap := models.Snapshot{AgentName: a.Name(), Round: round, Score: score}
		pop.record(snap)
		result.Snapshots = append(result.Snapshots, snap)
	}

	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		result.Skipped++
		r.logger.Debug("agent skipped", "agent", a.Name(), "round", round)
		return
	case err != nil:
		result.Failures++
		if br.openedAt < 0 && br.cb.State() == gobreaker.StateOpen {
			br.openedAt = round
		}
		r.logger.Error("agent step failed", "agent", a.Name(), "round", round, "error", err)
		r.events.Record(models.Event{
			Kind:    models.EventAgentFailed,
			Agent:   a.Name(),
			Subject: err.Error(),
			Round:   round,
		})
		return
	}

	switch out.(agent.Outcome) {
	case agent.OutcomeAdvanced:
		result.Advanced++
	case agent.OutcomeRefined:
		result.Refined++
	}
}

// breaker returns the agent's breaker for round. A breaker that has been
// open for more than OpenRounds rounds is replaced by a closed one.
func (r *Runner) breaker(name string, round int) *agentBreaker {
	br, ok := r.breakers[name]
	if ok && (br.openedAt < 0 || round-br.openedAt <= r.config.OpenRounds) {
		return br
	}
	if ok {
		r.logger.Info("agent breaker reset", "agent", name, "round", round, "opened_at", br.openedAt)
	}

	maxFailures := r.config.MaxConsecutiveFailures
	br = &agentBreaker{
		openedAt: -1,
		cb: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    name,
			Timeout: breakerTimeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= maxFailures
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				r.logger.Warn("agent breaker state changed", "agent", name, "from", from.String(), "to", to.String())
			},
		}),
	}
	r.breakers[name] = br
	return br
}
