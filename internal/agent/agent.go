// Package agent holds the mutable state of one simulated agent and the
// operations that evolve it: evaluation, level advancement, skill
// refinement, topic-driven improvement and feedback-driven strengthening.
//
// Every method is safe for concurrent use. The simulation loop is
// single-threaded, but diffusion writes into other agents' knowledge and
// the per-agent lock keeps that sound if rounds are ever parallelised.
package agent

import (
	"context"
	"log/slog"
	"math/rand"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/nvandessel/evolab/internal/constants"
	"github.com/nvandessel/evolab/internal/logging"
	"github.com/nvandessel/evolab/internal/models"
	"github.com/nvandessel/evolab/internal/scoring"
	"github.com/nvandessel/evolab/internal/trend"
)

// Outcome describes what an evolve step did.
type Outcome int

const (
	// OutcomeStable means the score fell in the stable band.
	OutcomeStable Outcome = iota
	// OutcomeAdvanced means the evolution level went up by one.
	OutcomeAdvanced
	// OutcomeRefined means skill refinement ran.
	OutcomeRefined
	// OutcomeCapped means the score would have advanced the agent but it is
	// already at the maximum level.
	OutcomeCapped
)

// String returns the outcome name.
func (o Outcome) String() string {
	switch o {
	case OutcomeAdvanced:
		return "advanced"
	case OutcomeRefined:
		return "refined"
	case OutcomeCapped:
		return "capped"
	default:
		return "stable"
	}
}

// Options configures a new Agent. Zero values pick defaults.
type Options struct {
	// Evaluator scores the agent. Default: a random scoring model.
	Evaluator scoring.Evaluator

	// Rand drives topic and fallback choices in Improve.
	Rand *rand.Rand

	// Logger receives operational logs. Default: discard.
	Logger *slog.Logger

	// Events receives observable engine events. Default: discard.
	Events models.EventSink

	// FeedbackThreshold is the mean rating below which feedback
	// strengthening applies. Default: constants.FeedbackRatingThreshold.
	FeedbackThreshold float64
}

// Agent is a simulated actor with evolving skills, knowledge and histories.
type Agent struct {
	name string

	mu           sync.Mutex
	level        int
	skills       map[string]struct{}
	knowledge    map[string]struct{}
	performance  []float64
	interactions []models.Interaction

	evaluator         scoring.Evaluator
	rng               *rand.Rand
	logger            *slog.Logger
	events            models.EventSink
	feedbackThreshold float64
	now               func() time.Time
}

// New creates an agent at the minimum evolution level with no skills,
// knowledge or history.
func New(name string, opts Options) *Agent {
	if opts.Evaluator == nil {
		opts.Evaluator = scoring.NewModel(scoring.DefaultConfig(), nil, time.Now().UnixNano())
	}
	if opts.Rand == nil {
		opts.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if opts.Events == nil {
		opts.Events = models.DiscardEvents{}
	}
	if opts.FeedbackThreshold <= 0 {
		opts.FeedbackThreshold = constants.FeedbackRatingThreshold
	}

	return &Agent{
		name:              name,
		level:             constants.MinEvolutionLevel,
		skills:            make(map[string]struct{}),
		knowledge:         make(map[string]struct{}),
		evaluator:         opts.Evaluator,
		rng:               opts.Rand,
		logger:            logging.OrDiscard(opts.Logger).With("agent", name),
		events:            opts.Events,
		feedbackThreshold: opts.FeedbackThreshold,
		now:               time.Now,
	}
}

// FromState rebuilds an agent from persisted state. The level is clamped to
// the valid range; performance history starts empty.
func FromState(state models.AgentState, opts Options) *Agent {
	a := New(state.Name, opts)
	a.level = clampLevel(state.EvolutionLevel)
	for _, s := range state.Skills {
		a.skills[s] = struct{}{}
	}
	for _, k := range state.Knowledge {
		a.knowledge[k] = struct{}{}
	}
	a.interactions = append(a.interactions, state.Interactions...)
	return a
}

func clampLevel(level int) int {
	if level < constants.MinEvolutionLevel {
		return constants.MinEvolutionLevel
	}
	if level > constants.MaxEvolutionLevel {
		return constants.MaxEvolutionLevel
	}
	return level
}

// Name returns the agent's unique name.
func (a *Agent) Name() string { return a.name }

// Level returns the current evolution level.
func (a *Agent) Level() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.level
}

// Evaluate scores the agent with its evaluator and appends the score to
// the performance history.
func (a *Agent) Evaluate() float64 {
	score := scoring.Clamp(a.evaluator.Evaluate())

	a.mu.Lock()
	a.performance = append(a.performance, score)
	a.mu.Unlock()

	a.logger.Log(context.Background(), logging.LevelTrace, "evaluated", "score", score)
	return score
}

// EvaluateFeedback maps an external rating to a score and appends it to
// the performance history.
func (a *Agent) EvaluateFeedback(r models.Rating) float64 {
	score := scoring.FeedbackToScore(r)

	a.mu.Lock()
	a.performance = append(a.performance, score)
	a.mu.Unlock()

	a.logger.Debug("applied feedback", "rating", r.String(), "score", score)
	return score
}

// Evolve evaluates the agent and applies the evolution rule to the score.
func (a *Agent) Evolve() Outcome {
	return a.EvolveWith(a.Evaluate())
}

// EvolveWith applies the evolution rule to an already recorded score:
// above constants.AdvanceThreshold the level rises (up to the maximum),
// below constants.RefineThreshold skills are refined, otherwise nothing
// changes.
func (a *Agent) EvolveWith(score float64) Outcome {
	a.mu.Lock()
	defer a.mu.Unlock()

	switch {
	case score > constants.AdvanceThreshold && a.level >= constants.MaxEvolutionLevel:
		return OutcomeCapped
	case score > constants.AdvanceThreshold:
		a.level++
		a.logger.Info("agent evolved", "level", a.level, "score", score)
		a.emit(models.Event{Kind: models.EventLevelAdvanced, Level: a.level})
		return OutcomeAdvanced
	case score < constants.RefineThreshold:
		a.refineLocked()
		return OutcomeRefined
	default:
		return OutcomeStable
	}
}

// AcquireSkill adds a skill. It returns true, and emits an event, only
// the first time the skill is added.
func (a *Agent) AcquireSkill(skill string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.acquireLocked(skill)
}

func (a *Agent) acquireLocked(skill string) bool {
	if _, ok := a.skills[skill]; ok {
		return false
	}
	a.skills[skill] = struct{}{}
	a.logger.Info("agent acquired new skill", "skill", skill)
	a.emit(models.Event{Kind: models.EventSkillAcquired, Subject: skill})
	return true
}

// Learn adds a knowledge item and reports whether it was new.
// The knowledge base never shrinks.
func (a *Agent) Learn(item string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.learnLocked(item)
}

func (a *Agent) learnLocked(item string) bool {
	if _, ok := a.knowledge[item]; ok {
		return false
	}
	a.knowledge[item] = struct{}{}
	a.logger.Debug("agent learned", "knowledge", item)
	a.emit(models.Event{Kind: models.EventKnowledgeLearned, Subject: item})
	return true
}

// RefineSkills replaces the least-used skill with "Refined_<skill>".
// Ties are broken by skill name. It returns the removed and added names
// and false when there were no skills to refine.
func (a *Agent) RefineSkills() (removed, added string, ok bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.refineLocked()
}

func (a *Agent) refineLocked() (string, string, bool) {
	if len(a.skills) == 0 {
		return "", "", false
	}

	var leastUsed string
	leastCount := -1
	for _, skill := range sortedKeys(a.skills) {
		count := a.usageLocked(skill)
		if leastCount < 0 || count < leastCount {
			leastUsed, leastCount = skill, count
		}
	}

	delete(a.skills, leastUsed)
	added := constants.RefinedPrefix + leastUsed
	a.acquireLocked(added)

	a.logger.Info("agent refined skills", "removed", leastUsed, "added", added, "usage", leastCount)
	a.emit(models.Event{Kind: models.EventSkillRefined, Subject: added, Replaced: leastUsed})
	return leastUsed, added, true
}

// SkillUsageCount returns how many of the last constants.SkillUsageWindow
// interactions used the skill, either by name in the recorded skills or by
// case-insensitive mention in the input or response.
func (a *Agent) SkillUsageCount(skill string) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.usageLocked(skill)
}

func (a *Agent) usageLocked(skill string) int {
	needle := strings.ToLower(skill)
	count := 0
	for _, in := range tail(a.interactions, constants.SkillUsageWindow) {
		if containsString(in.SkillsUsed, skill) ||
			strings.Contains(strings.ToLower(in.Input), needle) ||
			strings.Contains(strings.ToLower(in.Response), needle) {
			count++
		}
	}
	return count
}

// Improve acquires a skill derived from a random recent topic, or from the
// fallback vocabulary when there are no recent topics. It returns the skill.
func (a *Agent) Improve() string {
	a.mu.Lock()
	defer a.mu.Unlock()

	var skill string
	if topics := a.recentTopicsLocked(); len(topics) > 0 {
		skill = constants.AdvancedPrefix + topics[a.rng.Intn(len(topics))]
	} else {
		choice := constants.FallbackTopics[a.rng.Intn(len(constants.FallbackTopics))]
		skill = constants.ImprovedPrefix + choice + constants.ImprovedSkillSuffix
	}

	a.acquireLocked(skill)
	a.logger.Info("agent improved", "skill", skill)
	return skill
}

// RecentTopics returns the distinct topics of the last
// constants.TopicWindow interactions, sorted.
func (a *Agent) RecentTopics() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.recentTopicsLocked()
}

func (a *Agent) recentTopicsLocked() []string {
	seen := make(map[string]struct{})
	for _, in := range tail(a.interactions, constants.TopicWindow) {
		if in.Topic != "" {
			seen[in.Topic] = struct{}{}
		}
	}
	return sortedKeys(seen)
}

// LearnFromFeedback strengthens weak topics when the agent's own mean
// rating is below the feedback threshold. A topic is weak when it has
// ratings and their mean is below the threshold. It returns the topics
// strengthened, sorted.
func (a *Agent) LearnFromFeedback(analysis models.FeedbackAnalysis) []string {
	mean, ok := trend.Mean(analysis.AgentRatings[a.name])
	if !ok || mean >= a.feedbackThreshold {
		return nil
	}

	topics := make([]string, 0, len(analysis.TopicRatings))
	for topic := range analysis.TopicRatings {
		topics = append(topics, topic)
	}
	sort.Strings(topics)

	a.mu.Lock()
	defer a.mu.Unlock()

	var strengthened []string
	for _, topic := range topics {
		topicMean, ok := trend.Mean(analysis.TopicRatings[topic])
		if !ok || topicMean >= a.feedbackThreshold {
			continue
		}
		a.strengthenLocked(topic)
		strengthened = append(strengthened, topic)
	}

	if len(strengthened) > 0 {
		a.logger.Info("agent learned from feedback", "mean_rating", mean, "topics", strengthened)
	}
	return strengthened
}

// StrengthenTopic acquires "Advanced_<topic>" and learns
// "Improved_<topic>_expertise".
func (a *Agent) StrengthenTopic(topic string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.strengthenLocked(topic)
}

func (a *Agent) strengthenLocked(topic string) {
	a.acquireLocked(constants.AdvancedPrefix + topic)
	a.learnLocked(constants.ImprovedPrefix + topic + constants.ImprovedKnowledgeSuffix)
}

// RecordInteraction appends an interaction. When SkillsUsed is nil it is
// filled with the current skills mentioned in the input or response; an
// empty topic becomes constants.DefaultTopic. The stored record is returned.
func (a *Agent) RecordInteraction(in models.Interaction) models.Interaction {
	a.mu.Lock()
	defer a.mu.Unlock()

	if in.Topic == "" {
		in.Topic = constants.DefaultTopic
	}
	if in.SkillsUsed == nil {
		in.SkillsUsed = a.skillsMentionedLocked(in.Input, in.Response)
	} else {
		in.SkillsUsed = append([]string(nil), in.SkillsUsed...)
	}
	if in.Timestamp.IsZero() {
		in.Timestamp = a.now().UTC()
	}

	a.interactions = append(a.interactions, in)
	return in
}

func (a *Agent) skillsMentionedLocked(input, response string) []string {
	input, response = strings.ToLower(input), strings.ToLower(response)
	used := []string{}
	for _, skill := range sortedKeys(a.skills) {
		needle := strings.ToLower(skill)
		if strings.Contains(input, needle) || strings.Contains(response, needle) {
			used = append(used, skill)
		}
	}
	return used
}

// RandomKnowledge picks a knowledge item uniformly at random using rng.
// It returns false when the knowledge base is empty.
func (a *Agent) RandomKnowledge(rng *rand.Rand) (string, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if len(a.knowledge) == 0 {
		return "", false
	}
	items := sortedKeys(a.knowledge)
	return items[rng.Intn(len(items))], true
}

func (a *Agent) emit(e models.Event) {
	e.Agent = a.name
	a.events.Record(e)
}
