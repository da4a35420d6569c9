// Package analysis builds performance reports for agents and for the whole
// population. Reports are plain JSON-tagged data for a display layer;
// building one never changes simulation state.
package analysis

import (
	"fmt"
	"log/slog"

	"github.com/nvandessel/evolab/internal/agent"
	"github.com/nvandessel/evolab/internal/constants"
	"github.com/nvandessel/evolab/internal/logging"
	"github.com/nvandessel/evolab/internal/models"
	"github.com/nvandessel/evolab/internal/trend"
)

// PerformanceAnalysis summarizes one performance history.
type PerformanceAnalysis struct {
	InitialPerformance float64 `json:"initial_performance"`
	FinalPerformance   float64 `json:"final_performance"`
	ImprovementRate    float64 `json:"improvement_rate"`

	// ConvergencePoint uses the single global slope; -1 when not converged.
	ConvergencePoint int `json:"convergence_point"`
}

// AgentReport is the per-agent section of a report.
type AgentReport struct {
	Name              string              `json:"name"`
	EvolutionLevel    int                 `json:"evolution_level"`
	KnowledgeBaseSize int                 `json:"knowledge_base_size"`
	Performance       PerformanceAnalysis `json:"performance"`

	// Convergence is the windowed detector's result over the history.
	Convergence models.ConvergenceResult `json:"convergence"`

	// TimeToConvergence is set only when Convergence converged, counting
	// one evaluation as one time unit.
	TimeToConvergence *int `json:"time_to_convergence,omitempty"`
}

// Unavailable explains why an agent has no report section.
type Unavailable struct {
	Agent  string `json:"agent"`
	Reason string `json:"reason"`
}

// SystemReport covers the whole population.
type SystemReport struct {
	Round       int           `json:"round"`
	Agents      []AgentReport `json:"agents"`
	Unavailable []Unavailable `json:"unavailable,omitempty"`
	Snapshots   int           `json:"snapshots"`

	// ImprovementRate is nil when fewer than two snapshots exist.
	ImprovementRate   *float64                 `json:"improvement_rate"`
	Convergence       models.ConvergenceResult `json:"convergence"`
	TimeToConvergence *int                     `json:"time_to_convergence,omitempty"`

	TotalKnowledgeBaseSize int `json:"total_knowledge_base_size"`
}

// AnalyzeHistory summarizes a performance history. Histories of
// constants.AnalysisWindow scores or fewer return false.
func AnalyzeHistory(history []float64) (PerformanceAnalysis, bool) {
	return analyzeHistory(history, constants.AnalysisWindow)
}

func analyzeHistory(history []float64, window int) (PerformanceAnalysis, bool) {
	if len(history) <= window {
		return PerformanceAnalysis{}, false
	}

	initial, _ := trend.Mean(history[:window])
	final, _ := trend.Mean(history[len(history)-window:])
	rate := trend.Slope(history)
	conv := trend.GlobalConvergence(history, window, rate, constants.DefaultConvergenceThreshold)

	return PerformanceAnalysis{
		InitialPerformance: initial,
		FinalPerformance:   final,
		ImprovementRate:    rate,
		ConvergencePoint:   conv.Index,
	}, true
}

// Analyzer builds reports with a configured convergence detector.
type Analyzer struct {
	detector trend.Detector
	window   int
	logger   *slog.Logger
}

// NewAnalyzer creates an Analyzer. A non-positive window uses
// constants.AnalysisWindow.
func NewAnalyzer(detector trend.Detector, window int, logger *slog.Logger) *Analyzer {
	if window <= 0 {
		window = constants.AnalysisWindow
	}
	return &Analyzer{detector: detector, window: window, logger: logging.OrDiscard(logger)}
}

// AnalyzeAgent reports on one agent. It returns false when the agent's
// history is too short.
func (an *Analyzer) AnalyzeAgent(a *agent.Agent) (AgentReport, bool) {
	history := a.PerformanceHistory()
	perf, ok := analyzeHistory(history, an.window)
	if !ok {
		return AgentReport{}, false
	}

	report := AgentReport{
		Name:              a.Name(),
		EvolutionLevel:    a.Level(),
		KnowledgeBaseSize: a.KnowledgeSize(),
		Performance:       perf,
		Convergence:       an.detector.Detect(history),
	}
	if report.Convergence.Converged {
		t := report.Convergence.Index
		report.TimeToConvergence = &t
	}
	return report, true
}

// AnalyzeSystem reports on every agent plus the concatenated snapshot
// scores in insertion order.
func (an *Analyzer) AnalyzeSystem(population []*agent.Agent, snapshots []models.Snapshot) SystemReport {
	report := SystemReport{
		Agents:      []AgentReport{},
		Snapshots:   len(snapshots),
		Convergence: models.NoConvergence(),
	}
	if len(snapshots) > 0 {
		report.Round = snapshots[len(snapshots)-1].Round
	}

	for _, a := range population {
		report.TotalKnowledgeBaseSize += a.KnowledgeSize()

		ar, ok := an.AnalyzeAgent(a)
		if !ok {
			report.Unavailable = append(report.Unavailable, Unavailable{
				Agent:  a.Name(),
				Reason: fmt.Sprintf("insufficient history: need more than %d scores", an.window),
			})
			continue
		}
		report.Agents = append(report.Agents, ar)
	}

	scores := make([]float64, len(snapshots))
	for i, s := range snapshots {
		scores[i] = s.Score
	}
	if len(scores) >= 2 {
		rate := trend.Slope(scores)
		report.ImprovementRate = &rate
	}
	report.Convergence = an.detector.Detect(scores)
	if report.Convergence.Converged {
		t := report.Convergence.Index
		report.TimeToConvergence = &t
	}
	return report
}

// Log writes a report summary at info level and per-agent detail at debug.
func (an *Analyzer) Log(report SystemReport) {
	attrs := []any{
		"round", report.Round,
		"agents", len(report.Agents),
		"unavailable", len(report.Unavailable),
		"total_knowledge", report.TotalKnowledgeBaseSize,
		"converged", report.Convergence.Converged,
	}
	if report.ImprovementRate != nil {
		attrs = append(attrs, "improvement_rate", *report.ImprovementRate)
	}
	an.logger.Info("system performance", attrs...)

	for _, ar := range report.Agents {
		an.logger.Debug("agent performance",
			"agent", ar.Name,
			"level", ar.EvolutionLevel,
			"initial", ar.Performance.InitialPerformance,
			"final", ar.Performance.FinalPerformance,
			"improvement_rate", ar.Performance.ImprovementRate,
			"knowledge", ar.KnowledgeBaseSize,
			"convergence_point", ar.Convergence.Index)
	}
}
