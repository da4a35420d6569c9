// Package diffusion spreads knowledge between agents of a population.
// Each round every agent offers one random item of its knowledge to one
// random peer. Items are copied, never moved, and never invented.
package diffusion

import (
	"context"
	"log/slog"
	"math/rand"
	"sync"

	"github.com/bits-and-blooms/bloom/v3"

	"github.com/nvandessel/evolab/internal/agent"
	"github.com/nvandessel/evolab/internal/logging"
	"github.com/nvandessel/evolab/internal/models"
)

// Config holds tunables for the circulation filter.
type Config struct {
	// ExpectedItems sizes the filter that tracks items already in
	// circulation. Default: 10000.
	ExpectedItems uint `yaml:"expected_items" json:"expected_items"`

	// FalsePositiveRate is the filter's target error rate. Default: 0.01.
	FalsePositiveRate float64 `yaml:"false_positive_rate" json:"false_positive_rate"`
}

// DefaultConfig returns the default diffusion configuration.
func DefaultConfig() Config {
	return Config{
		ExpectedItems:     10000,
		FalsePositiveRate: 0.01,
	}
}

// RoundStats summarizes one sharing round.
type RoundStats struct {
	// Attempts is the number of agents that took a sharing turn.
	Attempts int `json:"attempts"`
	// Transfers is the number of items offered to a peer.
	Transfers int `json:"transfers"`
	// Novel is the number of transfers the recipient did not already know.
	Novel int `json:"novel"`
	// FirstCirculation estimates how many transferred items were shared
	// for the first time in this coordinator's lifetime.
	FirstCirculation int `json:"first_circulation"`
}

// Add accumulates o into s.
func (s *RoundStats) Add(o RoundStats) {
	s.Attempts += o.Attempts
	s.Transfers += o.Transfers
	s.Novel += o.Novel
	s.FirstCirculation += o.FirstCirculation
}

// Coordinator runs sharing rounds. It is not safe for concurrent ShareRound
// calls; the simulation loop drives it from one goroutine.
type Coordinator struct {
	rng    *rand.Rand
	logger *slog.Logger
	events models.EventSink

	seenMu sync.Mutex
	seen   *bloom.BloomFilter
}

// NewCoordinator creates a coordinator drawing partners and items from rng.
func NewCoordinator(config Config, rng *rand.Rand, logger *slog.Logger, events models.EventSink) *Coordinator {
	def := DefaultConfig()
	if config.ExpectedItems == 0 {
		config.ExpectedItems = def.ExpectedItems
	}
	if config.FalsePositiveRate <= 0 || config.FalsePositiveRate >= 1 {
		config.FalsePositiveRate = def.FalsePositiveRate
	}
	if events == nil {
		events = models.DiscardEvents{}
	}
	return &Coordinator{
		rng:    rng,
		logger: logging.OrDiscard(logger),
		events: events,
		seen:   bloom.NewWithEstimates(config.ExpectedItems, config.FalsePositiveRate),
	}
}

// ShareRound gives every agent, in order, one turn to share a random
// knowledge item with a uniformly chosen peer other than itself.
// Populations smaller than two are left untouched.
func (c *Coordinator) ShareRound(population []*agent.Agent) RoundStats {
	var stats RoundStats
	n := len(population)
	if n < 2 {
		return stats
	}

	for i, from := range population {
		stats.Attempts++

		j := c.rng.Intn(n - 1)
		if j >= i {
			j++
		}
		to := population[j]

		item, ok := from.RandomKnowledge(c.rng)
		if !ok {
			continue
		}
		stats.Transfers++

		if c.firstSeen(item) {
			stats.FirstCirculation++
		}
		if to.Learn(item) {
			stats.Novel++
		}

		c.logger.Log(context.Background(), logging.LevelTrace, "knowledge shared",
			"from", from.Name(), "to", to.Name(), "knowledge", item)
		c.events.Record(models.Event{
			Kind:    models.EventKnowledgeShared,
			Agent:   from.Name(),
			Peer:    to.Name(),
			Subject: item,
		})
	}

	c.logger.Debug("sharing round complete",
		"attempts", stats.Attempts, "transfers", stats.Transfers, "novel", stats.Novel)
	return stats
}

// Circulated reports whether item has probably been shared before.
// False positives are possible, false negatives are not.
func (c *Coordinator) Circulated(item string) bool {
	c.seenMu.Lock()
	defer c.seenMu.Unlock()
	return c.seen.TestString(item)
}

func (c *Coordinator) firstSeen(item string) bool {
	c.seenMu.Lock()
	defer c.seenMu.Unlock()
	return !c.seen.TestAndAddString(item)
}
