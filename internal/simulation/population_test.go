package simulation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nvandessel/evolab/internal/models"
	"github.com/nvandessel/evolab/internal/scoring"
)

func TestNewPopulation_DuplicateName(t *testing.T) {
	_, err := NewPopulation(newAgent("a", scoring.Fixed(0.5)), newAgent("a", scoring.Fixed(0.5)))
	assert.ErrorIs(t, err, ErrDuplicateAgent)
}

func TestPopulation_Order(t *testing.T) {
	pop := newPopulation(t, newAgent("c", nil), newAgent("a", nil))
	require.NoError(t, pop.Add(newAgent("b", nil)))

	var names []string
	for _, a := range pop.Agents() {
		names = append(names, a.Name())
	}
	assert.Equal(t, []string{"c", "a", "b"}, names)
	assert.Equal(t, 3, pop.Len())

	summaries := pop.Summaries()
	require.Len(t, summaries, 3)
	assert.Equal(t, "c", summaries[0].Name)
	assert.Equal(t, 1, summaries[0].EvolutionLevel)
}

func TestPopulation_Get(t *testing.T) {
	pop := newPopulation(t, newAgent("Lab_Director", nil))

	a, err := pop.Get("Lab_Director")
	require.NoError(t, err)
	assert.Equal(t, "Lab_Director", a.Name())

	_, err = pop.Get("ghost")
	assert.ErrorIs(t, err, ErrUnknownAgent)
}

func TestPopulation_SnapshotsAreCopies(t *testing.T) {
	pop := newPopulation(t)
	pop.record(models.Snapshot{AgentName: "a", Round: 0, Score: 0.5})

	snaps := pop.Snapshots()
	snaps[0].Score = 1
	assert.Equal(t, 0.5, pop.Snapshots()[0].Score)
}
