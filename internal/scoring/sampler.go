package scoring

import (
	"math/rand"
	"sync"
)

// Sampler supplies the factors a Model scores.
type Sampler interface {
	Sample() Factors
}

// RandomSampler draws each factor uniformly from its configured range.
// It is safe for concurrent use.
type RandomSampler struct {
	mu         sync.Mutex
	rng        *rand.Rand
	quality    Range
	latency    Range
	completion Range
}

// NewRandomSampler creates a sampler over the ranges in config.
func NewRandomSampler(config Config, rng *rand.Rand) *RandomSampler {
	return &RandomSampler{
		rng:        rng,
		quality:    config.Quality,
		latency:    config.Latency,
		completion: config.Completion,
	}
}

// Sample implements Sampler.
func (s *RandomSampler) Sample() Factors {
	s.mu.Lock()
	defer s.mu.Unlock()

	return Factors{
		Quality:    s.uniform(s.quality),
		Latency:    s.uniform(s.latency),
		Completion: s.uniform(s.completion),
	}
}

func (s *RandomSampler) uniform(r Range) float64 {
	return r.Min + s.rng.Float64()*r.Span()
}

// FixedSampler always returns the same factors.
type FixedSampler struct {
	Factors Factors
}

// Sample implements Sampler.
func (s FixedSampler) Sample() Factors { return s.Factors }
