package agent

import (
	"sort"

	"github.com/nvandessel/evolab/internal/models"
)

// Skills returns the agent's skills, sorted.
func (a *Agent) Skills() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return sortedKeys(a.skills)
}

// Knowledge returns the agent's knowledge items, sorted.
func (a *Agent) Knowledge() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return sortedKeys(a.knowledge)
}

// HasSkill reports whether the agent holds skill.
func (a *Agent) HasSkill(skill string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, ok := a.skills[skill]
	return ok
}

// Knows reports whether item is in the knowledge base.
func (a *Agent) Knows(item string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, ok := a.knowledge[item]
	return ok
}

// KnowledgeSize returns the number of knowledge items.
func (a *Agent) KnowledgeSize() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.knowledge)
}

// PerformanceHistory returns a copy of the recorded scores, oldest first.
func (a *Agent) PerformanceHistory() []float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]float64(nil), a.performance...)
}

// Interactions returns a copy of the interaction history, oldest first.
func (a *Agent) Interactions() []models.Interaction {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]models.Interaction(nil), a.interactions...)
}

// Summary returns the externally visible view of the agent.
func (a *Agent) Summary() models.AgentSummary {
	a.mu.Lock()
	defer a.mu.Unlock()
	return models.AgentSummary{
		Name:           a.name,
		EvolutionLevel: a.level,
		Skills:         sortedKeys(a.skills),
	}
}

// State returns the persistable form of the agent. Performance history is
// not part of it.
func (a *Agent) State() models.AgentState {
	a.mu.Lock()
	defer a.mu.Unlock()
	return models.AgentState{
		Name:           a.name,
		EvolutionLevel: a.level,
		Skills:         sortedKeys(a.skills),
		Knowledge:      sortedKeys(a.knowledge),
		Interactions:   append([]models.Interaction(nil), a.interactions...),
	}
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func tail(interactions []models.Interaction, n int) []models.Interaction {
	if len(interactions) <= n {
		return interactions
	}
	return interactions[len(interactions)-n:]
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
