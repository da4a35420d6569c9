package learning

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nvandessel/evolab/internal/agent"
	"github.com/nvandessel/evolab/internal/models"
	"github.com/nvandessel/evolab/internal/scoring"
)

func TestTopicExtractor_Extract(t *testing.T) {
	e := NewTopicExtractor(nil, "")

	tests := []struct {
		name string
		text string
		want string
	}{
		{"single match", "Is this a safety issue?", "safety"},
		{"most hits wins", "safety hazard and risk in the analysis", "safety"},
		{"case insensitive", "PROTOCOL SETUP", "procedure"},
		{"tie goes to earlier rule", "analysis of the experiment", "analysis"},
		{"no match", "hello there", "general"},
		{"empty", "", "general"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, e.Extract(tt.text))
		})
	}
}

func TestTopicExtractor_CustomRules(t *testing.T) {
	e := NewTopicExtractor([]TopicRule{
		{Name: "kinetics", Keywords: []string{" Rate ", "order"}},
		{Name: "", Keywords: []string{"ignored"}},
	}, "misc")

	assert.Equal(t, "kinetics", e.Extract("first ORDER reaction"))
	assert.Equal(t, "misc", e.Extract("ignored"))
}

func feedbackEntries() []models.FeedbackEntry {
	return []models.FeedbackEntry{
		{Input: "safety check", Ratings: map[string]float64{"A": 2, "B": 4}},
		{Input: "safety risk", Ratings: map[string]float64{"A": 1}},
		{Input: "hello", Ratings: map[string]float64{"A": 1, "B": 5}},
		{Input: "hello", Ratings: map[string]float64{}},
	}
}

func TestAnalyze(t *testing.T) {
	analysis := Analyze(feedbackEntries(), nil)

	assert.Equal(t, []float64{2, 1, 1}, analysis.AgentRatings["A"])
	assert.Equal(t, []float64{4, 5}, analysis.AgentRatings["B"])
	assert.Equal(t, []float64{2, 4, 1}, analysis.TopicRatings["safety"])
	assert.Equal(t, []float64{1, 5}, analysis.TopicRatings["general"])

	require.Len(t, analysis.ImprovementAreas, 1)
	assert.Equal(t, "A", analysis.ImprovementAreas[0].Agent)
	assert.InDelta(t, -0.5, analysis.ImprovementAreas[0].Trend, 1e-12)
}

func TestAnalyze_Empty(t *testing.T) {
	analysis := Analyze(nil, nil)
	assert.Empty(t, analysis.AgentRatings)
	assert.Empty(t, analysis.TopicRatings)
	assert.NotNil(t, analysis.ImprovementAreas)
	assert.Empty(t, analysis.ImprovementAreas)
}

func TestAnalyze_SingleRatingHasNoTrend(t *testing.T) {
	analysis := Analyze([]models.FeedbackEntry{
		{Input: "x", Ratings: map[string]float64{"A": 1}},
	}, nil)
	assert.Empty(t, analysis.ImprovementAreas)
}

func newPopulation(names ...string) []*agent.Agent {
	pop := make([]*agent.Agent, 0, len(names))
	for _, n := range names {
		pop = append(pop, agent.New(n, agent.Options{Evaluator: scoring.Fixed(0.6)}))
	}
	return pop
}

func TestIntegrator_Integrate(t *testing.T) {
	in := NewIntegrator(nil, nil)
	pop := newPopulation("A", "B")

	result := in.Integrate(pop, in.Analyze(feedbackEntries()))

	assert.Equal(t, map[string][]string{"A": {"general", "safety"}}, result.Strengthened)
	assert.Equal(t, map[string]string{"general": "B", "safety": "B"}, result.Specialists)
	require.Len(t, result.ImprovementAreas, 1)

	assert.Equal(t, []string{"Advanced_general", "Advanced_safety"}, pop[0].Skills())
	assert.Equal(t, []string{"Improved_general_expertise", "Improved_safety_expertise"}, pop[0].Knowledge())
	assert.Empty(t, pop[1].Skills())
}

func TestIntegrator_LowRatedAgentStrengthensTopic(t *testing.T) {
	pop := newPopulation("A")
	analysis := models.NewFeedbackAnalysis()
	analysis.AgentRatings["A"] = []float64{1, 2, 1, 2}
	analysis.TopicRatings["safety"] = []float64{1, 2}

	NewIntegrator(nil, nil).Integrate(pop, analysis)

	assert.True(t, pop[0].HasSkill("Advanced_safety"))
	assert.True(t, pop[0].Knows("Improved_safety_expertise"))
}

func TestSpecialists(t *testing.T) {
	assert.Empty(t, Specialists(models.NewFeedbackAnalysis()))

	analysis := models.NewFeedbackAnalysis()
	analysis.AgentRatings["B"] = []float64{3}
	analysis.AgentRatings["A"] = []float64{3}
	analysis.AgentRatings["C"] = nil
	analysis.TopicRatings["safety"] = []float64{3}
	assert.Equal(t, map[string]string{"safety": "A"}, Specialists(analysis))
}

func TestIntegrator_RecordInteractions(t *testing.T) {
	in := NewIntegrator(nil, nil)
	pop := newPopulation("A", "B")
	pop[0].AcquireSkill("Safety")
	created := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	recorded := in.RecordInteractions(pop, models.FeedbackEntry{
		Input:     "what safety gear?",
		Response:  "goggles",
		Ratings:   map[string]float64{"A": 4, "Z": 1},
		CreatedAt: created,
	})
	assert.Equal(t, []string{"A"}, recorded)

	history := pop[0].Interactions()
	require.Len(t, history, 1)
	assert.Equal(t, "safety", history[0].Topic)
	assert.Equal(t, []string{"Safety"}, history[0].SkillsUsed)
	assert.Equal(t, created, history[0].Timestamp)
	assert.Empty(t, pop[1].Interactions())
}

func TestIntegrator_ApplyRatings(t *testing.T) {
	in := NewIntegrator(nil, nil)
	pop := newPopulation("A", "B")

	result := in.ApplyRatings(pop, map[string]models.Rating{
		"A": models.ParseRating("good"),
		"B": models.NumericRating(0.3),
		"Z": models.ParseRating("poor"),
	})

	assert.Equal(t, map[string]float64{"A": 0.8, "B": 0.3}, result.Scores)
	assert.Equal(t, []string{"Z"}, result.Unknown)
	assert.Equal(t, []float64{0.8}, pop[0].PerformanceHistory())
}
