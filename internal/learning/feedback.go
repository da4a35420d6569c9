package learning

import (
	"sort"

	"github.com/nvandessel/evolab/internal/constants"
	"github.com/nvandessel/evolab/internal/models"
	"github.com/nvandessel/evolab/internal/trend"
)

// Analyze aggregates feedback entries into a FeedbackAnalysis.
//
// Each agent's ratings are kept in entry order. Every rating of an entry is
// also appended to the topic extracted from the entry's input. Agents with at
// least constants.MinRatingsForTrend ratings and a negative fitted trend are
// reported as improvement areas, sorted by agent name. Entries without
// ratings are ignored.
func Analyze(entries []models.FeedbackEntry, extractor TopicExtractor) models.FeedbackAnalysis {
	if extractor == nil {
		extractor = NewTopicExtractor(nil, "")
	}

	analysis := models.NewFeedbackAnalysis()
	for _, entry := range entries {
		if len(entry.Ratings) == 0 {
			continue
		}

		topic := extractor.Extract(entry.Input)
		for _, name := range ratedAgents(entry) {
			rating := entry.Ratings[name]
			analysis.AgentRatings[name] = append(analysis.AgentRatings[name], rating)
			analysis.TopicRatings[topic] = append(analysis.TopicRatings[topic], rating)
		}
	}

	names := make([]string, 0, len(analysis.AgentRatings))
	for name := range analysis.AgentRatings {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		ratings := analysis.AgentRatings[name]
		if len(ratings) < constants.MinRatingsForTrend {
			continue
		}
		if slope := trend.Slope(ratings); slope < 0 {
			analysis.ImprovementAreas = append(analysis.ImprovementAreas, models.ImprovementArea{
				Agent: name,
				Trend: slope,
			})
		}
	}
	return analysis
}

// ratedAgents returns the agent names of an entry's ratings, sorted.
func ratedAgents(entry models.FeedbackEntry) []string {
	names := make([]string, 0, len(entry.Ratings))
	for name := range entry.Ratings {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
