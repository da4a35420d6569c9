// Package scoring computes bounded performance scores for agents.
//
// A Model combines three weighted factors (quality, latency, completion)
// into a score in [0,1]. Where the factors come from is pluggable: a
// RandomSampler stands in for real measurement, and FixedSampler or Fixed
// give tests deterministic values.
package scoring

import (
	"math"
	"math/rand"
	"sync"

	"github.com/nvandessel/evolab/internal/constants"
	"github.com/nvandessel/evolab/internal/models"
)

// Evaluator produces one performance score per call.
type Evaluator interface {
	Evaluate() float64
}

// Factors are the raw measurements behind a score.
type Factors struct {
	Quality    float64 // 0.5-1.0 in the reference ranges
	Latency    float64 // seconds, 0.5-2.0 in the reference ranges
	Completion float64 // 0.7-1.0 in the reference ranges
}

// Range is an inclusive [Min, Max] interval.
type Range struct {
	Min float64 `json:"min" yaml:"min"`
	Max float64 `json:"max" yaml:"max"`
}

// Span returns Max - Min.
func (r Range) Span() float64 { return r.Max - r.Min }

// Config holds the weights and factor ranges of a Model.
type Config struct {
	QualityWeight    float64 `json:"quality_weight" yaml:"quality_weight"`
	LatencyWeight    float64 `json:"latency_weight" yaml:"latency_weight"`
	CompletionWeight float64 `json:"completion_weight" yaml:"completion_weight"`

	Quality    Range `json:"quality" yaml:"quality"`
	Latency    Range `json:"latency" yaml:"latency"`
	Completion Range `json:"completion" yaml:"completion"`
}

// DefaultConfig returns the reference weights 0.5/0.3/0.2 and ranges.
func DefaultConfig() Config {
	return Config{
		QualityWeight:    0.5,
		LatencyWeight:    0.3,
		CompletionWeight: 0.2,
		Quality:          Range{Min: 0.5, Max: 1.0},
		Latency:          Range{Min: 0.5, Max: 2.0},
		Completion:       Range{Min: 0.7, Max: 1.0},
	}
}

// Model scores agents from sampled factors.
type Model struct {
	config  Config
	sampler Sampler
}

// NewModel creates a scoring model. A nil sampler is replaced by a
// RandomSampler over the configured ranges seeded from seed.
func NewModel(config Config, sampler Sampler, seed int64) *Model {
	if sampler == nil {
		sampler = NewRandomSampler(config, rand.New(rand.NewSource(seed)))
	}
	return &Model{config: config, sampler: sampler}
}

// Evaluate samples factors and scores them.
func (m *Model) Evaluate() float64 {
	return m.Score(m.sampler.Sample())
}

// Score combines factors into a score in [0,1]. Latency is normalized so
// the fastest configured latency maps to 1 and the slowest to 0.
func (m *Model) Score(f Factors) float64 {
	normalizedLatency := 1.0
	if span := m.config.Latency.Span(); span > 0 {
		normalizedLatency = 1 - (f.Latency-m.config.Latency.Min)/span
	}
	normalizedLatency = Clamp(normalizedLatency)

	score := m.config.QualityWeight*f.Quality +
		m.config.LatencyWeight*normalizedLatency +
		m.config.CompletionWeight*f.Completion
	return Clamp(score)
}

// Clamp bounds v to [0,1]. NaN maps to the neutral score.
func Clamp(v float64) float64 {
	if math.IsNaN(v) {
		return constants.NeutralScore
	}
	return math.Min(math.Max(v, 0), 1)
}

// categoryScores maps feedback grades onto the [0,1] score scale.
var categoryScores = map[models.Category]float64{
	models.CategoryExcellent: 1.0,
	models.CategoryGood:      0.8,
	models.CategoryAverage:   0.6,
	models.CategoryPoor:      0.4,
	models.CategoryVeryPoor:  0.2,
}

// FeedbackToScore resolves a rating to a score. Numeric ratings are clamped
// to [0,1]; categories use the fixed grade table; anything unrecognized
// scores the neutral 0.5.
func FeedbackToScore(r models.Rating) float64 {
	if v, ok := r.Numeric(); ok {
		return Clamp(v)
	}
	c, _ := r.Category()
	if score, ok := categoryScores[c]; ok {
		return score
	}
	return constants.NeutralScore
}

// Fixed is an Evaluator that always returns the same (clamped) score.
type Fixed float64

// Evaluate implements Evaluator.
func (f Fixed) Evaluate() float64 { return Clamp(float64(f)) }

// Sequence is an Evaluator that replays scores in order and then repeats
// the last one. It is safe for concurrent use.
type Sequence struct {
	mu     sync.Mutex
	scores []float64
	next   int
}

// NewSequence creates a Sequence over scores. An empty sequence evaluates
// to the neutral score.
func NewSequence(scores ...float64) *Sequence {
	return &Sequence{scores: append([]float64(nil), scores...)}
}

// Evaluate implements Evaluator.
func (s *Sequence) Evaluate() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.scores) == 0 {
		return constants.NeutralScore
	}
	i := s.next
	if i >= len(s.scores) {
		i = len(s.scores) - 1
	} else {
		s.next++
	}
	return Clamp(s.scores[i])
}
