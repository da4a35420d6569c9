package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nvandessel/evolab/internal/models"
)

// MemoryStore implements Store in memory for tests and one-shot runs.
type MemoryStore struct {
	mu       sync.RWMutex
	agents   []models.AgentState
	feedback []models.FeedbackEntry
	ids      map[string]struct{}
	runs     map[string]models.RunRecord
	now      func() time.Time
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		ids:  make(map[string]struct{}),
		runs: make(map[string]models.RunRecord),
		now:  time.Now,
	}
}

// SaveAgents implements Store.
func (s *MemoryStore) SaveAgents(ctx context.Context, agents []models.AgentState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.agents = make([]models.AgentState, len(agents))
	for i, a := range agents {
		s.agents[i] = copyAgent(a)
	}
	return nil
}

// LoadAgents implements Store.
func (s *MemoryStore) LoadAgents(ctx context.Context) ([]models.AgentState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.AgentState, len(s.agents))
	for i, a := range s.agents {
		out[i] = copyAgent(a)
	}
	return out, nil
}

// AddFeedback implements Store.
func (s *MemoryStore) AddFeedback(ctx context.Context, entry models.FeedbackEntry) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if _, ok := s.ids[entry.ID]; ok {
		return "", fmt.Errorf("feedback %s: %w", entry.ID, ErrExists)
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = s.now()
	}

	s.ids[entry.ID] = struct{}{}
	s.feedback = append(s.feedback, copyFeedback(entry))
	return entry.ID, nil
}

// ListFeedback implements Store.
func (s *MemoryStore) ListFeedback(ctx context.Context) ([]models.FeedbackEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.FeedbackEntry, len(s.feedback))
	for i, e := range s.feedback {
		out[i] = copyFeedback(e)
	}
	return out, nil
}

// SaveRun implements Store.
func (s *MemoryStore) SaveRun(ctx context.Context, run models.RunRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if run.ID == "" {
		return fmt.Errorf("run ID is required")
	}
	run.Report = append(json.RawMessage(nil), run.Report...)
	s.runs[run.ID] = run
	return nil
}

// GetRun implements Store.
func (s *MemoryStore) GetRun(ctx context.Context, id string) (*models.RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, ok := s.runs[id]
	if !ok {
		return nil, fmt.Errorf("run %s: %w", id, ErrNotFound)
	}
	return &run, nil
}

// ListRuns implements Store.
func (s *MemoryStore) ListRuns(ctx context.Context, limit int) ([]models.RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	runs := make([]models.RunRecord, 0, len(s.runs))
	for _, r := range s.runs {
		runs = append(runs, r)
	}
	sort.Slice(runs, func(i, j int) bool {
		if !runs[i].StartedAt.Equal(runs[j].StartedAt) {
			return runs[i].StartedAt.After(runs[j].StartedAt)
		}
		return runs[i].ID < runs[j].ID
	})
	if limit > 0 && len(runs) > limit {
		runs = runs[:limit]
	}
	return runs, nil
}

// Clear implements Store.
func (s *MemoryStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.agents = nil
	s.feedback = nil
	s.ids = make(map[string]struct{})
	s.runs = make(map[string]models.RunRecord)
	return nil
}

// Close implements Store.
func (s *MemoryStore) Close() error { return nil }

func copyAgent(a models.AgentState) models.AgentState {
	a.Skills = append([]string{}, a.Skills...)
	a.Knowledge = append([]string{}, a.Knowledge...)
	if a.Interactions != nil {
		interactions := make([]models.Interaction, len(a.Interactions))
		for i, in := range a.Interactions {
			in.SkillsUsed = append([]string{}, in.SkillsUsed...)
			interactions[i] = in
		}
		a.Interactions = interactions
	}
	return a
}

func copyFeedback(e models.FeedbackEntry) models.FeedbackEntry {
	ratings := make(map[string]float64, len(e.Ratings))
	for k, v := range e.Ratings {
		ratings[k] = v
	}
	e.Ratings = ratings
	return e
}
