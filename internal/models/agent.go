// Package models defines the data shapes shared across the evolab engine:
// agent summaries and persisted state, interactions, performance snapshots,
// feedback, events and run records.
package models

// AgentSummary is the compact per-agent view reported to callers.
type AgentSummary struct {
	Name           string   `json:"name"`
	EvolutionLevel int      `json:"evolutionLevel"`
	Skills         []string `json:"skills"`
}

// AgentState is the persisted form of an agent.
// Performance history is run-scoped and intentionally absent.
type AgentState struct {
	Name           string        `json:"name"`
	EvolutionLevel int           `json:"evolution_level"`
	Skills         []string      `json:"skills"`
	Knowledge      []string      `json:"knowledge"`
	Interactions   []Interaction `json:"interactions,omitempty"`
}

// Snapshot records one agent evaluation inside a simulation round.
type Snapshot struct {
	AgentName string  `json:"agent"`
	Round     int     `json:"round"`
	Score     float64 `json:"score"`
}

// NotConverged is the ConvergenceResult index used when no stable point exists.
const NotConverged = -1

// ConvergenceResult reports the earliest stable point of a performance series.
type ConvergenceResult struct {
	Index     int  `json:"index"`
	Converged bool `json:"converged"`
}

// NoConvergence returns the "not converged" result.
func NoConvergence() ConvergenceResult {
	return ConvergenceResult{Index: NotConverged}
}

// ConvergedAt returns a converged result at index i.
func ConvergedAt(i int) ConvergenceResult {
	return ConvergenceResult{Index: i, Converged: true}
}
