package mcp

import (
	"github.com/nvandessel/evolab/internal/analysis"
	"github.com/nvandessel/evolab/internal/models"
)

// SimulateInput defines the input for evolab_simulate tool.
type SimulateInput struct {
	Rounds int `json:"rounds,omitempty" jsonschema:"Number of rounds to run; omitted or zero uses the configured default"`
}

// SimulateOutput defines the output for evolab_simulate tool.
type SimulateOutput struct {
	RunID           string                `json:"run_id" jsonschema:"ID of the stored run record"`
	RoundsRequested int                   `json:"rounds_requested"`
	RoundsCompleted int                   `json:"rounds_completed"`
	Advanced        int                   `json:"advanced" jsonschema:"Number of level advancements during the run"`
	Refined         int                   `json:"refined" jsonschema:"Number of skill refinements during the run"`
	Transfers       int                   `json:"transfers" jsonschema:"Knowledge items newly learned through sharing"`
	Failures        int                   `json:"failures"`
	Skipped         int                   `json:"skipped" jsonschema:"Agent steps skipped while an agent was isolated after failures"`
	Agents          []models.AgentSummary `json:"agents"`
	Report          analysis.SystemReport `json:"report" jsonschema:"System report over every snapshot recorded so far"`
	Message         string                `json:"message" jsonschema:"Human-readable result message"`
}

// AgentsInput defines the input for evolab_agents tool.
type AgentsInput struct {
	Detail bool `json:"detail,omitempty" jsonschema:"Include knowledge and performance history per agent"`
}

// AgentsOutput defines the output for evolab_agents tool.
type AgentsOutput struct {
	Agents  []models.AgentSummary `json:"agents"`
	Details []AgentDetail         `json:"details,omitempty"`
	Count   int                   `json:"count"`
}

// AgentDetail is the full view of one agent.
type AgentDetail struct {
	Name               string    `json:"name"`
	EvolutionLevel     int       `json:"evolutionLevel"`
	Skills             []string  `json:"skills"`
	Knowledge          []string  `json:"knowledge"`
	Interactions       int       `json:"interactions"`
	PerformanceHistory []float64 `json:"performance_history"`
}

// AnalyzeInput defines the input for evolab_analyze tool.
type AnalyzeInput struct {
	Agent string `json:"agent,omitempty" jsonschema:"Analyze only this agent; omitted analyzes the whole system"`
}

// AnalyzeOutput defines the output for evolab_analyze tool.
type AnalyzeOutput struct {
	System    *analysis.SystemReport `json:"system,omitempty"`
	Agent     *analysis.AgentReport  `json:"agent,omitempty"`
	Available bool                   `json:"available" jsonschema:"False when the agent's history is too short to analyze"`
	Message   string                 `json:"message"`
}

// FeedbackInput defines the input for evolab_feedback tool.
type FeedbackInput struct {
	Input     string             `json:"input" jsonschema:"The request that was answered"`
	Response  string             `json:"response,omitempty" jsonschema:"The answer that was rated"`
	SessionID string             `json:"session_id,omitempty"`
	Ratings   map[string]float64 `json:"ratings" jsonschema:"Agent name to rating on a 1-5 scale"`
}

// FeedbackOutput defines the output for evolab_feedback tool.
type FeedbackOutput struct {
	ID      string `json:"id" jsonschema:"ID of the stored feedback entry"`
	Topic   string `json:"topic" jsonschema:"Topic extracted from the input"`
	Rated   int    `json:"rated" jsonschema:"Number of ratings stored"`
	Message string `json:"message"`
}

// RateInput defines the input for evolab_rate tool.
type RateInput struct {
	Ratings map[string]any `json:"ratings" jsonschema:"Agent name to rating: a number in [0,1] or one of excellent, good, average, poor, very poor"`
}

// RateOutput defines the output for evolab_rate tool.
type RateOutput struct {
	Scores  map[string]float64 `json:"scores" jsonschema:"Score appended to each rated agent's performance history"`
	Unknown []string           `json:"unknown,omitempty" jsonschema:"Rated names that match no agent"`
	Message string             `json:"message"`
}

// IntegrateInput defines the input for evolab_integrate tool.
type IntegrateInput struct{}

// IntegrateOutput defines the output for evolab_integrate tool.
type IntegrateOutput struct {
	Strengthened     map[string][]string      `json:"strengthened" jsonschema:"Agent name to the topics it was strengthened on"`
	Specialists      map[string]string        `json:"specialists" jsonschema:"Topic to the best-rated agent"`
	ImprovementAreas []models.ImprovementArea `json:"improvement_areas"`
	Message          string                   `json:"message"`
}

// RunsInput defines the input for evolab_runs tool.
type RunsInput struct {
	Limit int `json:"limit,omitempty" jsonschema:"Maximum number of runs to list, newest first; zero lists all"`
}

// RunsOutput defines the output for evolab_runs tool.
type RunsOutput struct {
	Runs  []RunItem `json:"runs"`
	Count int       `json:"count"`
}

// RunItem summarizes a stored run.
type RunItem struct {
	ID              string `json:"id"`
	StartedAt       string `json:"started_at"`
	FinishedAt      string `json:"finished_at"`
	RoundsRequested int    `json:"rounds_requested"`
	RoundsCompleted int    `json:"rounds_completed"`
	Seed            int64  `json:"seed"`
	Failures        int    `json:"failures"`
	Error           string `json:"error,omitempty"`
}
