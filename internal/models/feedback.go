package models

import "time"

// FeedbackEntry is one rated exchange supplied by the transcript-feedback
// store. Ratings use the store's own scale (1-5 in practice), which differs
// from the [0,1] scale of Rating.
type FeedbackEntry struct {
	ID        string             `json:"id"`
	SessionID string             `json:"session_id,omitempty"`
	Input     string             `json:"input"`
	Response  string             `json:"response,omitempty"`
	Ratings   map[string]float64 `json:"ratings"`
	CreatedAt time.Time          `json:"created_at"`
}

// ImprovementArea flags an agent whose ratings trend downward.
type ImprovementArea struct {
	Agent string  `json:"agent"`
	Trend float64 `json:"trend"`
}

// FeedbackAnalysis aggregates feedback entries. It is rebuilt from stored
// feedback on every integration and never kept as engine state.
type FeedbackAnalysis struct {
	AgentRatings     map[string][]float64 `json:"agent_ratings"`
	TopicRatings     map[string][]float64 `json:"topic_ratings"`
	ImprovementAreas []ImprovementArea    `json:"improvement_areas"`
}

// NewFeedbackAnalysis returns an empty analysis with initialized maps.
func NewFeedbackAnalysis() FeedbackAnalysis {
	return FeedbackAnalysis{
		AgentRatings:     make(map[string][]float64),
		TopicRatings:     make(map[string][]float64),
		ImprovementAreas: []ImprovementArea{},
	}
}
