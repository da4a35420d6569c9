package simulation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nvandessel/evolab/internal/constants"
	"github.com/nvandessel/evolab/internal/models"
	"github.com/nvandessel/evolab/internal/scoring"
)

// cancelAfter cancels its context on the nth evaluation.
type cancelAfter struct {
	n      int
	calls  int
	cancel context.CancelFunc
}

func (c *cancelAfter) Evaluate() float64 {
	c.calls++
	if c.calls == c.n {
		c.cancel()
	}
	return 0.5
}

func TestRun_HighScoresReachMaxLevel(t *testing.T) {
	pop := newPopulation(t,
		newAgent("a", scoring.Fixed(0.9)),
		newAgent("b", scoring.Fixed(0.9)),
		newAgent("c", scoring.Fixed(0.9)),
	)
	r := newRunner(DefaultRunnerConfig(), nil)

	result, err := r.Run(context.Background(), pop, 20)
	require.NoError(t, err)

	assert.Equal(t, 20, result.RoundsRequested)
	assert.Equal(t, 20, result.RoundsCompleted)
	assert.Len(t, result.Snapshots, 60)
	assert.Equal(t, 12, result.Advanced)
	assert.Zero(t, result.Failures)

	for _, a := range pop.Agents() {
		assert.Equal(t, constants.MaxEvolutionLevel, a.Level(), a.Name())
		assert.Len(t, a.PerformanceHistory(), 20, a.Name())
	}

	require.Len(t, result.Reports, 2)
	assert.Equal(t, 0, result.Reports[0].Round)
	assert.Equal(t, 10, result.Reports[1].Round)
}

func TestRun_SnapshotOrder(t *testing.T) {
	pop := newPopulation(t,
		newAgent("first", scoring.NewSequence(0.1, 0.2)),
		newAgent("second", scoring.NewSequence(0.3, 0.4)),
	)
	r := newRunner(DefaultRunnerConfig(), nil)

	result, err := r.Run(context.Background(), pop, 2)
	require.NoError(t, err)

	want := []models.Snapshot{
		{AgentName: "first", Round: 0, Score: 0.1},
		{AgentName: "second", Round: 0, Score: 0.3},
		{AgentName: "first", Round: 1, Score: 0.2},
		{AgentName: "second", Round: 1, Score: 0.4},
	}
	assert.Equal(t, want, result.Snapshots)
	assert.Equal(t, want, pop.Snapshots())
}

func TestRun_ZeroRounds(t *testing.T) {
	pop := newPopulation(t, newAgent("a", scoring.Fixed(0.9)))
	result, err := newRunner(DefaultRunnerConfig(), nil).Run(context.Background(), pop, 0)
	require.NoError(t, err)
	assert.Zero(t, result.RoundsCompleted)
	assert.Empty(t, result.Snapshots)
	assert.Empty(t, result.Reports)
}

func TestRun_FailingAgentIsIsolated(t *testing.T) {
	rec := &recorder{}
	pop := newPopulation(t,
		newAgent("broken", panicking{}),
		newAgent("steady", scoring.Fixed(0.5)),
	)
	r := newRunner(isolation(3), rec)

	result, err := r.Run(context.Background(), pop, 10)
	require.NoError(t, err)

	assert.Equal(t, 10, result.RoundsCompleted)
	assert.Equal(t, 3, result.Failures)
	assert.Equal(t, 7, result.Skipped)
	assert.Equal(t, 3, rec.count(models.EventAgentFailed))

	steady, err := pop.Get("steady")
	require.NoError(t, err)
	assert.Len(t, steady.PerformanceHistory(), 10)

	broken, err := pop.Get("broken")
	require.NoError(t, err)
	assert.Empty(t, broken.PerformanceHistory())
	assert.Len(t, result.Snapshots, 10)
}

func TestRun_RecoveredAgentResumes(t *testing.T) {
	eval := &flaky{failFor: 3}
	pop := newPopulation(t,
		newAgent("flaky", eval),
		newAgent("steady", scoring.Fixed(0.5)),
	)
	r := newRunner(isolationFor(3, 2), nil)

	result, err := r.Run(context.Background(), pop, 20)
	require.NoError(t, err)

	// Rounds 0-2 fail and trip the breaker, rounds 3-4 are skipped, and
	// from round 5 on the agent runs again.
	assert.Equal(t, 3, result.Failures)
	assert.Equal(t, 2, result.Skipped)
	assert.Equal(t, 18, eval.calls)

	a, err := pop.Get("flaky")
	require.NoError(t, err)
	assert.Len(t, a.PerformanceHistory(), 15)
	assert.Equal(t, constants.MaxEvolutionLevel, a.Level())

	var first int
	for _, snap := range result.Snapshots {
		if snap.AgentName == "flaky" {
			first = snap.Round
			break
		}
	}
	assert.Equal(t, 5, first)
}

func TestRun_BreakerRetripsWhileFailing(t *testing.T) {
	pop := newPopulation(t, newAgent("broken", panicking{}))
	r := newRunner(isolationFor(2, 3), nil)

	result, err := r.Run(context.Background(), pop, 12)
	require.NoError(t, err)

	// fail 0-1, skip 2-4, fail 5-6, skip 7-9, fail 10-11
	assert.Equal(t, 6, result.Failures)
	assert.Equal(t, 6, result.Skipped)
}

func TestRun_CancelledBeforeStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	pop := newPopulation(t, newAgent("a", scoring.Fixed(0.5)))
	result, err := newRunner(DefaultRunnerConfig(), nil).Run(ctx, pop, 5)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, result.RoundsCompleted)
}

func TestRun_CancelledMidRunKeepsPartialResult(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	eval := &cancelAfter{n: 5, cancel: cancel}
	pop := newPopulation(t, newAgent("a", eval))

	result, err := newRunner(DefaultRunnerConfig(), nil).Run(ctx, pop, 20)
	assert.ErrorIs(t, err, context.Canceled)

	// The round that triggered cancellation still completes.
	assert.Equal(t, 5, result.RoundsCompleted)
	assert.Len(t, result.Snapshots, 5)
	assert.Len(t, pop.Snapshots(), 5)
}

func TestRun_SnapshotsAccumulateAcrossRuns(t *testing.T) {
	pop := newPopulation(t, newAgent("a", scoring.Fixed(0.5)))
	r := newRunner(DefaultRunnerConfig(), nil)

	first, err := r.Run(context.Background(), pop, 3)
	require.NoError(t, err)
	second, err := r.Run(context.Background(), pop, 2)
	require.NoError(t, err)

	assert.Len(t, first.Snapshots, 3)
	assert.Len(t, second.Snapshots, 2)
	assert.Equal(t, 0, second.Snapshots[0].Round)
	assert.Len(t, pop.Snapshots(), 5)
}
