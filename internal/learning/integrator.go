// Package learning turns external feedback into agent changes. It
// aggregates rated exchanges into a FeedbackAnalysis, strengthens weak
// topics on every agent, records rated exchanges as interactions and
// applies direct ratings as evaluations.
package learning

import (
	"log/slog"
	"sort"

	"github.com/nvandessel/evolab/internal/agent"
	"github.com/nvandessel/evolab/internal/logging"
	"github.com/nvandessel/evolab/internal/models"
	"github.com/nvandessel/evolab/internal/trend"
)

// IntegrationResult describes what one integration changed.
type IntegrationResult struct {
	// Strengthened maps agent name to the topics it was strengthened on.
	Strengthened map[string][]string `json:"strengthened"`

	// Specialists maps each rated topic to the best-rated agent.
	Specialists map[string]string `json:"specialists"`

	// ImprovementAreas is copied from the analysis.
	ImprovementAreas []models.ImprovementArea `json:"improvement_areas"`
}

// RatingResult describes the outcome of ApplyRatings.
type RatingResult struct {
	// Scores maps agent name to the score appended to its history.
	Scores map[string]float64 `json:"scores"`

	// Unknown lists rated names that match no agent, sorted.
	Unknown []string `json:"unknown,omitempty"`
}

// Integrator applies feedback to a population.
type Integrator struct {
	extractor TopicExtractor
	logger    *slog.Logger
}

// NewIntegrator creates an Integrator. A nil extractor uses the default
// keyword table.
func NewIntegrator(extractor TopicExtractor, logger *slog.Logger) *Integrator {
	if extractor == nil {
		extractor = NewTopicExtractor(nil, "")
	}
	return &Integrator{extractor: extractor, logger: logging.OrDiscard(logger)}
}

// Extractor returns the integrator's topic extractor.
func (in *Integrator) Extractor() TopicExtractor { return in.extractor }

// Analyze aggregates entries with the integrator's extractor.
func (in *Integrator) Analyze(entries []models.FeedbackEntry) models.FeedbackAnalysis {
	return Analyze(entries, in.extractor)
}

// Integrate lets every agent learn from the analysis and picks a specialist
// for each rated topic.
func (in *Integrator) Integrate(population []*agent.Agent, analysis models.FeedbackAnalysis) IntegrationResult {
	result := IntegrationResult{
		Strengthened:     make(map[string][]string),
		Specialists:      Specialists(analysis),
		ImprovementAreas: append([]models.ImprovementArea{}, analysis.ImprovementAreas...),
	}

	for _, a := range population {
		if topics := a.LearnFromFeedback(analysis); len(topics) > 0 {
			result.Strengthened[a.Name()] = topics
		}
	}

	in.logger.Info("feedback integrated",
		"agents", len(population),
		"strengthened", len(result.Strengthened),
		"improvement_areas", len(result.ImprovementAreas))
	return result
}

// Specialists assigns every rated topic to the agent with the highest mean
// rating. Ties go to the lexically smaller name. Topic ratings are not
// attributed to agents, so every topic gets the same specialist.
func Specialists(analysis models.FeedbackAnalysis) map[string]string {
	specialists := make(map[string]string)

	best, bestMean, found := "", 0.0, false
	for name, ratings := range analysis.AgentRatings {
		mean, ok := trend.Mean(ratings)
		if !ok {
			continue
		}
		if !found || mean > bestMean || (mean == bestMean && name < best) {
			best, bestMean, found = name, mean, true
		}
	}
	if !found {
		return specialists
	}

	for topic := range analysis.TopicRatings {
		specialists[topic] = best
	}
	return specialists
}

// RecordInteractions appends the entry as an interaction to every agent it
// rates. The topic is extracted from the input. It returns the names of the
// agents that recorded it, in population order.
func (in *Integrator) RecordInteractions(population []*agent.Agent, entry models.FeedbackEntry) []string {
	topic := in.extractor.Extract(entry.Input)

	var recorded []string
	for _, a := range population {
		if _, ok := entry.Ratings[a.Name()]; !ok {
			continue
		}
		a.RecordInteraction(models.Interaction{
			Input:     entry.Input,
			Response:  entry.Response,
			Topic:     topic,
			Timestamp: entry.CreatedAt,
		})
		recorded = append(recorded, a.Name())
	}

	in.logger.Debug("recorded interactions", "topic", topic, "agents", recorded)
	return recorded
}

// ApplyRatings records each rating as an evaluation of the named agent.
// Names matching no agent are reported in the result, not treated as errors.
func (in *Integrator) ApplyRatings(population []*agent.Agent, ratings map[string]models.Rating) RatingResult {
	byName := make(map[string]*agent.Agent, len(population))
	for _, a := range population {
		byName[a.Name()] = a
	}

	result := RatingResult{Scores: make(map[string]float64, len(ratings))}
	for name, r := range ratings {
		a, ok := byName[name]
		if !ok {
			result.Unknown = append(result.Unknown, name)
			continue
		}
		result.Scores[name] = a.EvaluateFeedback(r)
	}
	sort.Strings(result.Unknown)

	if len(result.Unknown) > 0 {
		in.logger.Warn("ratings for unknown agents ignored", "agents", result.Unknown)
	}
	return result
}
