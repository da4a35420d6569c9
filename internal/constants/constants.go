// Package constants provides named constants used throughout the evolab engine.
// This centralizes thresholds and window sizes so the engine, the analyzers
// and the tests agree on them.
package constants

// Evolution level bounds.
const (
	// MinEvolutionLevel is the level every agent starts at.
	MinEvolutionLevel = 1

	// MaxEvolutionLevel caps level advancement.
	MaxEvolutionLevel = 5
)

// Evolution thresholds applied to the score of each Evolve call.
const (
	// AdvanceThreshold: scores strictly above this advance the level.
	AdvanceThreshold = 0.7

	// RefineThreshold: scores strictly below this trigger skill refinement.
	RefineThreshold = 0.5
)

// Sliding windows over agent histories.
const (
	// TopicWindow is how many recent interactions Improve inspects.
	TopicWindow = 10

	// SkillUsageWindow is how many recent interactions count toward skill usage.
	SkillUsageWindow = 20

	// AnalysisWindow is the size of the initial/final performance means.
	// Histories must be strictly longer than this to be analyzed.
	AnalysisWindow = 10
)

// Convergence detection defaults.
const (
	// DefaultConvergenceWindow is the half-width of the windowed slope scan.
	DefaultConvergenceWindow = 20

	// DefaultConvergenceThreshold is the slope magnitude treated as flat.
	DefaultConvergenceThreshold = 0.001
)

// Feedback scoring.
const (
	// NeutralScore is used for unrecognized feedback values.
	NeutralScore = 0.5

	// FeedbackRatingThreshold is the mean rating below which an agent, and a
	// topic, is considered weak. It applies to the feedback store's scale,
	// not to the [0,1] score scale.
	FeedbackRatingThreshold = 4.0

	// MinRatingsForTrend is the fewest ratings an improvement trend is fitted on.
	MinRatingsForTrend = 2
)

// Simulation defaults.
const (
	// DefaultAnalysisInterval runs a system analysis every N rounds.
	DefaultAnalysisInterval = 10

	// DefaultRounds is the round count used when none is requested.
	DefaultRounds = 20
)

// Skill and knowledge name prefixes.
const (
	AdvancedPrefix = "Advanced_"
	ImprovedPrefix = "Improved_"
	RefinedPrefix  = "Refined_"

	ImprovedSkillSuffix     = "_Skills"
	ImprovedKnowledgeSuffix = "_expertise"
)

// FallbackTopics are used by Improve when no recent topics exist.
var FallbackTopics = []string{"Research", "Analysis", "Safety", "Experimentation", "Documentation"}

// DefaultAgentNames is the population created when none is configured.
var DefaultAgentNames = []string{
	"Lab_Director",
	"Senior_Chemist",
	"Lab_Manager",
	"Safety_Officer",
	"Analytical_Chemist",
	"Data_Analyst",
}

// DefaultTopic is assigned to interactions that match no topic keyword.
const DefaultTopic = "general"
