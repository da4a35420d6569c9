package simulation

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nvandessel/evolab/internal/agent"
	"github.com/nvandessel/evolab/internal/analysis"
	"github.com/nvandessel/evolab/internal/diffusion"
	"github.com/nvandessel/evolab/internal/models"
	"github.com/nvandessel/evolab/internal/scoring"
	"github.com/nvandessel/evolab/internal/trend"
)

type recorder struct {
	events []models.Event
}

func (r *recorder) Record(e models.Event) { r.events = append(r.events, e) }

func (r *recorder) count(kind models.EventKind) int {
	n := 0
	for _, e := range r.events {
		if e.Kind == kind {
			n++
		}
	}
	return n
}

// panicking is an evaluator that always fails.
type panicking struct{}

func (panicking) Evaluate() float64 { panic("evaluator exploded") }

// flaky panics on its first failFor calls, then scores steadily.
type flaky struct {
	failFor int
	calls   int
}

func (f *flaky) Evaluate() float64 {
	f.calls++
	if f.calls <= f.failFor {
		panic("transient failure")
	}
	return 0.9
}

func newAgent(name string, eval scoring.Evaluator) *agent.Agent {
	return agent.New(name, agent.Options{Evaluator: eval, Rand: rand.New(rand.NewSource(1))})
}

func newPopulation(t *testing.T, agents ...*agent.Agent) *Population {
	t.Helper()
	pop, err := NewPopulation(agents...)
	require.NoError(t, err)
	return pop
}

func newRunner(config RunnerConfig, events models.EventSink) *Runner {
	coordinator := diffusion.NewCoordinator(diffusion.DefaultConfig(), rand.New(rand.NewSource(7)), nil, events)
	analyzer := analysis.NewAnalyzer(trend.DefaultDetector(), 0, nil)
	return NewRunner(config, coordinator, analyzer, nil, events)
}

func isolation(failures uint32) RunnerConfig {
	return RunnerConfig{AnalysisInterval: 10, MaxConsecutiveFailures: failures, OpenRounds: 100}
}

func isolationFor(failures uint32, openRounds int) RunnerConfig {
	return RunnerConfig{AnalysisInterval: 10, MaxConsecutiveFailures: failures, OpenRounds: openRounds}
}
