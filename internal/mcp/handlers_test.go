package mcp

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nvandessel/evolab/internal/config"
	"github.com/nvandessel/evolab/internal/constants"
	"github.com/nvandessel/evolab/internal/ratelimit"
	"github.com/nvandessel/evolab/internal/scoring"
	"github.com/nvandessel/evolab/internal/simulation"
	"github.com/nvandessel/evolab/internal/store"
)

func newTestLab(t *testing.T, score float64) *simulation.Lab {
	t.Helper()
	cfg := config.Default()
	cfg.Simulation.Seed = 7

	lab, err := simulation.NewLab(simulation.LabOptions{
		Config: cfg,
		Store:  store.NewMemoryStore(),
		NewEvaluator: func(string, int64) scoring.Evaluator {
			return scoring.Fixed(score)
		},
	})
	require.NoError(t, err)
	require.NoError(t, lab.Load(context.Background()))
	return lab
}

func setupServer(t *testing.T, limits map[string]ratelimit.Limit) (*Server, string) {
	t.Helper()
	dir := t.TempDir()
	server, err := NewServer(&Config{
		Name:       "test-server",
		Version:    "v1.0.0",
		Lab:        newTestLab(t, 0.9),
		RateLimits: limits,
		AuditDir:   dir,
	})
	require.NoError(t, err)
	t.Cleanup(func() { server.Close() })
	return server, dir
}

func setupTestServer(t *testing.T) (*Server, string) {
	return setupServer(t, nil)
}

func TestNewServer_RequiresLab(t *testing.T) {
	_, err := NewServer(&Config{Name: "x"})
	assert.Error(t, err)
}

func TestHandleAgents(t *testing.T) {
	server, _ := setupTestServer(t)
	ctx := context.Background()

	_, out, err := server.handleAgents(ctx, nil, AgentsInput{})
	require.NoError(t, err)
	assert.Equal(t, len(constants.DefaultAgentNames), out.Count)
	assert.Empty(t, out.Details)

	_, out, err = server.handleAgents(ctx, nil, AgentsInput{Detail: true})
	require.NoError(t, err)
	require.Len(t, out.Details, len(constants.DefaultAgentNames))
	assert.Equal(t, constants.DefaultAgentNames[0], out.Details[0].Name)
}

func TestHandleSimulate(t *testing.T) {
	server, _ := setupTestServer(t)
	ctx := context.Background()

	_, _, err := server.handleSimulate(ctx, nil, SimulateInput{Rounds: -1})
	assert.Error(t, err)

	_, out, err := server.handleSimulate(ctx, nil, SimulateInput{Rounds: 5})
	require.NoError(t, err)
	assert.NotEmpty(t, out.RunID)
	assert.Equal(t, 5, out.RoundsCompleted)
	assert.Equal(t, 4*len(constants.DefaultAgentNames), out.Advanced)
	for _, a := range out.Agents {
		assert.Equal(t, constants.MaxEvolutionLevel, a.EvolutionLevel)
	}
	assert.Contains(t, out.Message, "Simulated 5 rounds")

	_, runs, err := server.handleRuns(ctx, nil, RunsInput{})
	require.NoError(t, err)
	require.Equal(t, 1, runs.Count)
	assert.Equal(t, out.RunID, runs.Runs[0].ID)
	assert.NotEmpty(t, runs.Runs[0].StartedAt)
}

func TestHandleAnalyze(t *testing.T) {
	server, _ := setupTestServer(t)
	ctx := context.Background()
	name := constants.DefaultAgentNames[0]

	_, out, err := server.handleAnalyze(ctx, nil, AnalyzeInput{Agent: name})
	require.NoError(t, err)
	assert.False(t, out.Available)
	assert.Nil(t, out.Agent)

	_, _, err = server.handleAnalyze(ctx, nil, AnalyzeInput{Agent: "ghost"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "agent not found")

	_, _, err = server.handleSimulate(ctx, nil, SimulateInput{Rounds: 12})
	require.NoError(t, err)

	_, out, err = server.handleAnalyze(ctx, nil, AnalyzeInput{Agent: name})
	require.NoError(t, err)
	require.True(t, out.Available)
	require.NotNil(t, out.Agent)
	assert.Equal(t, name, out.Agent.Name)

	_, out, err = server.handleAnalyze(ctx, nil, AnalyzeInput{})
	require.NoError(t, err)
	require.NotNil(t, out.System)
	assert.Len(t, out.System.Agents, len(constants.DefaultAgentNames))
}

func TestHandleFeedbackAndIntegrate(t *testing.T) {
	server, _ := setupTestServer(t)
	ctx := context.Background()
	name := constants.DefaultAgentNames[0]

	_, _, err := server.handleFeedback(ctx, nil, FeedbackInput{Ratings: map[string]float64{name: 2}})
	assert.Error(t, err)
	_, _, err = server.handleFeedback(ctx, nil, FeedbackInput{Input: "x"})
	assert.Error(t, err)

	_, fb, err := server.handleFeedback(ctx, nil, FeedbackInput{
		Input:   "Check the hazard and safety risk first",
		Ratings: map[string]float64{name: 2},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, fb.ID)
	assert.Equal(t, "safety", fb.Topic)
	assert.Equal(t, 1, fb.Rated)

	_, out, err := server.handleIntegrate(ctx, nil, IntegrateInput{})
	require.NoError(t, err)
	assert.Equal(t, []string{"safety"}, out.Strengthened[name])
	assert.Equal(t, name, out.Specialists["safety"])
	assert.Contains(t, out.Message, name)
}

func TestHandleRate(t *testing.T) {
	server, _ := setupTestServer(t)
	ctx := context.Background()
	name := constants.DefaultAgentNames[1]

	_, _, err := server.handleRate(ctx, nil, RateInput{})
	assert.Error(t, err)

	_, out, err := server.handleRate(ctx, nil, RateInput{Ratings: map[string]any{
		name:    "good",
		"ghost": 0.3,
	}})
	require.NoError(t, err)
	assert.InDelta(t, 0.8, out.Scores[name], 1e-9)
	assert.Equal(t, []string{"ghost"}, out.Unknown)
	assert.Contains(t, out.Message, "ghost")
}

func TestHandleRuns_NegativeLimit(t *testing.T) {
	server, _ := setupTestServer(t)
	_, _, err := server.handleRuns(context.Background(), nil, RunsInput{Limit: -1})
	assert.Error(t, err)
}

func TestHandleSimulate_RateLimited(t *testing.T) {
	server, _ := setupServer(t, map[string]ratelimit.Limit{
		"evolab_simulate": {PerMinute: 1, Burst: 1},
	})
	ctx := context.Background()

	_, _, err := server.handleSimulate(ctx, nil, SimulateInput{Rounds: 1})
	require.NoError(t, err)

	_, _, err = server.handleSimulate(ctx, nil, SimulateInput{Rounds: 1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limit exceeded")
}

func TestRenderAgents(t *testing.T) {
	server, _ := setupTestServer(t)
	text := renderAgents(server.lab.Summaries())
	assert.Contains(t, text, "| "+constants.DefaultAgentNames[0]+" | 1 | - |")
	assert.Contains(t, renderAgents(nil), "No agents.")
}
