package store

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nvandessel/evolab/internal/models"
)

func stores(t *testing.T) map[string]Store {
	t.Helper()

	sqlite, err := NewSQLiteStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { sqlite.Close() })

	return map[string]Store{
		"memory": NewMemoryStore(),
		"sqlite": sqlite,
	}
}

func TestStore_Agents(t *testing.T) {
	ts := time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC)
	agents := []models.AgentState{
		{
			Name:           "Lab_Director",
			EvolutionLevel: 3,
			Skills:         []string{"Advanced_safety", "Planning"},
			Knowledge:      []string{"Improved_safety_expertise"},
			Interactions: []models.Interaction{
				{Input: "safety?", Response: "goggles", Topic: "safety", SkillsUsed: []string{"Planning"}, Timestamp: ts},
				{Input: "next", Topic: "general", SkillsUsed: []string{}, Timestamp: ts.Add(time.Minute)},
			},
		},
		{Name: "Data_Analyst", EvolutionLevel: 1, Skills: []string{}, Knowledge: []string{}},
	}

	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			empty, err := s.LoadAgents(ctx)
			require.NoError(t, err)
			assert.Empty(t, empty)

			require.NoError(t, s.SaveAgents(ctx, agents))
			got, err := s.LoadAgents(ctx)
			require.NoError(t, err)
			require.Len(t, got, 2)

			assert.Equal(t, "Lab_Director", got[0].Name, "saved order is kept")
			assert.Equal(t, 3, got[0].EvolutionLevel)
			assert.Equal(t, agents[0].Skills, got[0].Skills)
			assert.Equal(t, agents[0].Knowledge, got[0].Knowledge)
			require.Len(t, got[0].Interactions, 2)
			assert.Equal(t, "goggles", got[0].Interactions[0].Response)
			assert.Equal(t, []string{"Planning"}, got[0].Interactions[0].SkillsUsed)
			assert.True(t, ts.Equal(got[0].Interactions[0].Timestamp))
			assert.Equal(t, "Data_Analyst", got[1].Name)
			assert.Empty(t, got[1].Interactions)

			// Saving replaces the population.
			require.NoError(t, s.SaveAgents(ctx, agents[1:]))
			got, err = s.LoadAgents(ctx)
			require.NoError(t, err)
			require.Len(t, got, 1)
			assert.Equal(t, "Data_Analyst", got[0].Name)
		})
	}
}

func TestStore_Feedback(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			id1, err := s.AddFeedback(ctx, models.FeedbackEntry{
				Input:   "is this safe?",
				Ratings: map[string]float64{"A": 2, "B": 5},
			})
			require.NoError(t, err)
			assert.NotEmpty(t, id1)

			id2, err := s.AddFeedback(ctx, models.FeedbackEntry{
				ID:        "fixed-id",
				SessionID: "s1",
				Input:     "second",
				Response:  "answer",
				Ratings:   map[string]float64{"A": 4},
			})
			require.NoError(t, err)
			assert.Equal(t, "fixed-id", id2)

			_, err = s.AddFeedback(ctx, models.FeedbackEntry{ID: "fixed-id", Input: "dup"})
			assert.True(t, errors.Is(err, ErrExists))

			entries, err := s.ListFeedback(ctx)
			require.NoError(t, err)
			require.Len(t, entries, 2)
			assert.Equal(t, id1, entries[0].ID)
			assert.Equal(t, map[string]float64{"A": 2, "B": 5}, entries[0].Ratings)
			assert.False(t, entries[0].CreatedAt.IsZero())
			assert.Equal(t, "s1", entries[1].SessionID)
			assert.Equal(t, "answer", entries[1].Response)
		})
	}
}

func TestStore_Runs(t *testing.T) {
	base := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			assert.Error(t, s.SaveRun(ctx, models.RunRecord{}))

			for i, id := range []string{"r1", "r2", "r3"} {
				require.NoError(t, s.SaveRun(ctx, models.RunRecord{
					ID:              id,
					StartedAt:       base.Add(time.Duration(i) * time.Hour),
					FinishedAt:      base.Add(time.Duration(i)*time.Hour + time.Minute),
					RoundsRequested: 20,
					RoundsCompleted: 20,
					Seed:            int64(i),
					Report:          json.RawMessage(`{"round":19}`),
				}))
			}

			run, err := s.GetRun(ctx, "r2")
			require.NoError(t, err)
			assert.Equal(t, int64(1), run.Seed)
			assert.JSONEq(t, `{"round":19}`, string(run.Report))
			assert.True(t, base.Add(time.Hour+time.Minute).Equal(run.FinishedAt))

			_, err = s.GetRun(ctx, "missing")
			assert.True(t, errors.Is(err, ErrNotFound))

			runs, err := s.ListRuns(ctx, 2)
			require.NoError(t, err)
			require.Len(t, runs, 2)
			assert.Equal(t, "r3", runs[0].ID)
			assert.Equal(t, "r2", runs[1].ID)

			all, err := s.ListRuns(ctx, 0)
			require.NoError(t, err)
			assert.Len(t, all, 3)

			// Saving an existing ID replaces it.
			require.NoError(t, s.SaveRun(ctx, models.RunRecord{ID: "r1", StartedAt: base, Error: "cancelled"}))
			run, err = s.GetRun(ctx, "r1")
			require.NoError(t, err)
			assert.Equal(t, "cancelled", run.Error)
		})
	}
}

func TestStore_Clear(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, s.SaveAgents(ctx, []models.AgentState{{Name: "A", EvolutionLevel: 1}}))
			_, err := s.AddFeedback(ctx, models.FeedbackEntry{Input: "x", Ratings: map[string]float64{"A": 1}})
			require.NoError(t, err)
			require.NoError(t, s.SaveRun(ctx, models.RunRecord{ID: "r", StartedAt: time.Now()}))

			require.NoError(t, s.Clear(ctx))

			agents, err := s.LoadAgents(ctx)
			require.NoError(t, err)
			assert.Empty(t, agents)
			entries, err := s.ListFeedback(ctx)
			require.NoError(t, err)
			assert.Empty(t, entries)
			runs, err := s.ListRuns(ctx, 0)
			require.NoError(t, err)
			assert.Empty(t, runs)
		})
	}
}

func TestNewSQLiteStore_CreatesDatabase(t *testing.T) {
	root := t.TempDir()
	s, err := NewSQLiteStore(root)
	require.NoError(t, err)
	defer s.Close()

	assert.Equal(t, filepath.Join(root, DirName, DBFile), s.Path())
	_, err = os.Stat(s.Path())
	assert.NoError(t, err)
}

func TestNewSQLiteStore_Reopen(t *testing.T) {
	root := t.TempDir()
	ctx := context.Background()

	s, err := NewSQLiteStore(root)
	require.NoError(t, err)
	require.NoError(t, s.SaveAgents(ctx, []models.AgentState{{Name: "A", EvolutionLevel: 2, Skills: []string{"x"}}}))
	require.NoError(t, s.Close())

	s, err = NewSQLiteStore(root)
	require.NoError(t, err)
	defer s.Close()

	agents, err := s.LoadAgents(ctx)
	require.NoError(t, err)
	require.Len(t, agents, 1)
	assert.Equal(t, 2, agents[0].EvolutionLevel)
	assert.Equal(t, []string{"x"}, agents[0].Skills)
}

func TestSQLiteStore_RejectsInvalidLevel(t *testing.T) {
	s, err := NewSQLiteStore(t.TempDir())
	require.NoError(t, err)
	defer s.Close()

	err = s.SaveAgents(context.Background(), []models.AgentState{{Name: "A", EvolutionLevel: 9}})
	assert.Error(t, err)
}
