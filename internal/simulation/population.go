package simulation

import (
	"errors"
	"fmt"
	"sync"

	"github.com/nvandessel/evolab/internal/agent"
	"github.com/nvandessel/evolab/internal/models"
)

var (
	// ErrDuplicateAgent is returned when adding an agent whose name is taken.
	ErrDuplicateAgent = errors.New("duplicate agent name")

	// ErrUnknownAgent is returned when no agent has the requested name.
	ErrUnknownAgent = errors.New("unknown agent")
)

// Population is an ordered set of uniquely named agents plus the
// append-only list of snapshots recorded by runs over it.
type Population struct {
	mu        sync.RWMutex
	agents    []*agent.Agent
	byName    map[string]*agent.Agent
	snapshots []models.Snapshot
}

// NewPopulation creates a population from agents in order.
func NewPopulation(agents ...*agent.Agent) (*Population, error) {
	p := &Population{byName: make(map[string]*agent.Agent, len(agents))}
	for _, a := range agents {
		if err := p.Add(a); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// Add appends an agent.
func (p *Population) Add(a *agent.Agent) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.byName[a.Name()]; ok {
		return fmt.Errorf("%s: %w", a.Name(), ErrDuplicateAgent)
	}
	p.agents = append(p.agents, a)
	p.byName[a.Name()] = a
	return nil
}

// Agents returns the agents in population order. The slice is a copy.
func (p *Population) Agents() []*agent.Agent {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]*agent.Agent(nil), p.agents...)
}

// Get returns the named agent.
func (p *Population) Get(name string) (*agent.Agent, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	a, ok := p.byName[name]
	if !ok {
		return nil, fmt.Errorf("%s: %w", name, ErrUnknownAgent)
	}
	return a, nil
}

// Len returns the number of agents.
func (p *Population) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.agents)
}

// Snapshots returns a copy of every snapshot recorded so far, in insertion
// order.
func (p *Population) Snapshots() []models.Snapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]models.Snapshot(nil), p.snapshots...)
}

func (p *Population) record(s models.Snapshot) {
	p.mu.Lock()
	p.snapshots = append(p.snapshots, s)
	p.mu.Unlock()
}

// Summaries returns the per-agent summaries in population order.
func (p *Population) Summaries() []models.AgentSummary {
	agents := p.Agents()
	out := make([]models.AgentSummary, len(agents))
	for i, a := range agents {
		out[i] = a.Summary()
	}
	return out
}

// States returns the persistable state of every agent in population order.
func (p *Population) States() []models.AgentState {
	agents := p.Agents()
	out := make([]models.AgentState, len(agents))
	for i, a := range agents {
		out[i] = a.State()
	}
	return out
}
