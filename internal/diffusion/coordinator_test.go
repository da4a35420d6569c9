package diffusion

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nvandessel/evolab/internal/agent"
	"github.com/nvandessel/evolab/internal/models"
	"github.com/nvandessel/evolab/internal/scoring"
)

type recorder struct {
	events []models.Event
}

func (r *recorder) Record(e models.Event) { r.events = append(r.events, e) }

func population(names ...string) []*agent.Agent {
	out := make([]*agent.Agent, 0, len(names))
	for _, n := range names {
		out = append(out, agent.New(n, agent.Options{Evaluator: scoring.Fixed(0.6)}))
	}
	return out
}

func newCoordinator(seed int64, events models.EventSink) *Coordinator {
	return NewCoordinator(DefaultConfig(), rand.New(rand.NewSource(seed)), nil, events)
}

func TestShareRound_SmallPopulationsAreNoop(t *testing.T) {
	c := newCoordinator(1, nil)
	assert.Equal(t, RoundStats{}, c.ShareRound(nil))

	solo := population("a")
	solo[0].Learn("x")
	assert.Equal(t, RoundStats{}, c.ShareRound(solo))
	assert.Equal(t, []string{"x"}, solo[0].Knowledge())
}

func TestShareRound_TwoAgents(t *testing.T) {
	rec := &recorder{}
	c := newCoordinator(1, rec)
	pop := population("a", "b")
	pop[0].Learn("x")

	stats := c.ShareRound(pop)
	assert.Equal(t, 2, stats.Attempts)
	assert.Equal(t, 1, stats.Transfers)
	assert.Equal(t, 1, stats.Novel)
	assert.Equal(t, 1, stats.FirstCirculation)

	assert.Equal(t, []string{"x"}, pop[0].Knowledge(), "sender keeps its knowledge")
	assert.Equal(t, []string{"x"}, pop[1].Knowledge())

	require.Len(t, rec.events, 1)
	assert.Equal(t, models.EventKnowledgeShared, rec.events[0].Kind)
	assert.Equal(t, "a", rec.events[0].Agent)
	assert.Equal(t, "b", rec.events[0].Peer)
	assert.Equal(t, "x", rec.events[0].Subject)
}

func TestShareRound_NeverSelfOrInvent(t *testing.T) {
	rec := &recorder{}
	c := newCoordinator(7, rec)
	pop := population("a", "b", "c", "d")
	pop[0].Learn("k1")
	pop[2].Learn("k2")

	for round := 0; round < 50; round++ {
		c.ShareRound(pop)
	}

	for _, e := range rec.events {
		assert.NotEqual(t, e.Agent, e.Peer)
	}
	for _, a := range pop {
		for _, item := range a.Knowledge() {
			assert.Contains(t, []string{"k1", "k2"}, item)
		}
	}
	assert.Equal(t, []string{"k1"}, pop[0].Knowledge()[:1])
}

func TestShareRound_KnowledgeOnlyGrows(t *testing.T) {
	c := newCoordinator(3, nil)
	pop := population("a", "b", "c")
	pop[0].Learn("x")
	pop[1].Learn("y")

	sizes := make([]int, len(pop))
	var total RoundStats
	for round := 0; round < 30; round++ {
		total.Add(c.ShareRound(pop))
		for i, a := range pop {
			require.GreaterOrEqual(t, a.KnowledgeSize(), sizes[i])
			sizes[i] = a.KnowledgeSize()
		}
	}

	assert.Equal(t, 90, total.Attempts)
	assert.LessOrEqual(t, total.Novel, total.Transfers)
	assert.LessOrEqual(t, total.FirstCirculation, 2)
	assert.True(t, c.Circulated("x") || c.Circulated("y"))
}

func TestShareRound_PartnerUniform(t *testing.T) {
	rec := &recorder{}
	c := newCoordinator(11, rec)
	pop := population("a", "b", "c")
	pop[0].Learn("x")

	counts := map[string]int{}
	for round := 0; round < 3000; round++ {
		rec.events = rec.events[:0]
		c.ShareRound(pop)
		for _, e := range rec.events {
			if e.Agent == "a" {
				counts[e.Peer]++
			}
		}
	}

	assert.Zero(t, counts["a"])
	assert.InDelta(t, 1500, counts["b"], 150)
	assert.InDelta(t, 1500, counts["c"], 150)
}
