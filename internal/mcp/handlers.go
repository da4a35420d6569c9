package mcp

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/nvandessel/evolab/internal/models"
	"github.com/nvandessel/evolab/internal/ratelimit"
	"github.com/nvandessel/evolab/internal/simulation"
)

const agentsResourceURI = "evolab://agents"

// registerTools registers all evolab MCP tools with the server.
func (s *Server) registerTools() {
	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "evolab_simulate",
		Description: "Run simulation rounds over the agent population and report the result",
	}, s.handleSimulate)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "evolab_agents",
		Description: "List agents with their evolution level and skills",
	}, s.handleAgents)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "evolab_analyze",
		Description: "Analyze performance trends and convergence for one agent or the whole system",
	}, s.handleAnalyze)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "evolab_feedback",
		Description: "Store a rated exchange (1-5 per agent) for later feedback integration",
	}, s.handleFeedback)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "evolab_rate",
		Description: "Record direct ratings as agent evaluations (numbers in [0,1] or grades like 'good')",
	}, s.handleRate)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "evolab_integrate",
		Description: "Integrate all stored feedback: strengthen weak topics and pick topic specialists",
	}, s.handleIntegrate)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "evolab_runs",
		Description: "List stored simulation runs, newest first",
	}, s.handleRuns)
}

// registerResources registers MCP resources for auto-loading into context.
func (s *Server) registerResources() {
	s.server.AddResource(&sdk.Resource{
		URI:         agentsResourceURI,
		Name:        "evolab-agents",
		Description: "Current agent population with evolution levels and skills.",
		MIMEType:    "text/markdown",
	}, s.handleAgentsResource)
}

// handleAgentsResource renders the population as a markdown table.
func (s *Server) handleAgentsResource(ctx context.Context, req *sdk.ReadResourceRequest) (*sdk.ReadResourceResult, error) {
	return &sdk.ReadResourceResult{
		Contents: []*sdk.ResourceContents{
			{
				URI:      agentsResourceURI,
				MIMEType: "text/markdown",
				Text:     renderAgents(s.lab.Summaries()),
			},
		},
	}, nil
}

func renderAgents(agents []models.AgentSummary) string {
	var sb strings.Builder
	sb.WriteString("# Agents\n\n")
	if len(agents) == 0 {
		sb.WriteString("No agents.\n")
		return sb.String()
	}
	sb.WriteString("| Agent | Level | Skills |\n|---|---|---|\n")
	for _, a := range agents {
		skills := strings.Join(a.Skills, ", ")
		if skills == "" {
			skills = "-"
		}
		fmt.Fprintf(&sb, "| %s | %d | %s |\n", a.Name, a.EvolutionLevel, skills)
	}
	return sb.String()
}

// handleSimulate implements the evolab_simulate tool.
func (s *Server) handleSimulate(ctx context.Context, req *sdk.CallToolRequest, args SimulateInput) (_ *sdk.CallToolResult, _ SimulateOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool("evolab_simulate", start, retErr, sanitizeToolParams("evolab_simulate", map[string]interface{}{
			"rounds": args.Rounds,
		}))
	}()

	if err := ratelimit.CheckLimit(s.toolLimiters, "evolab_simulate"); err != nil {
		return nil, SimulateOutput{}, err
	}
	if args.Rounds < 0 {
		return nil, SimulateOutput{}, fmt.Errorf("'rounds' must be non-negative, got %d", args.Rounds)
	}

	out, err := s.lab.Simulate(ctx, args.Rounds)
	if err != nil {
		return nil, SimulateOutput{}, fmt.Errorf("simulation failed: %w", err)
	}

	r := out.Result
	return nil, SimulateOutput{
		RunID:           out.Run.ID,
		RoundsRequested: r.RoundsRequested,
		RoundsCompleted: r.RoundsCompleted,
		Advanced:        r.Advanced,
		Refined:         r.Refined,
		Transfers:       r.Diffusion.Transfers,
		Failures:        r.Failures,
		Skipped:         r.Skipped,
		Agents:          out.Agents,
		Report:          out.Report,
		Message: fmt.Sprintf("Simulated %d rounds over %d agents: %d advancements, %d refinements",
			r.RoundsCompleted, len(out.Agents), r.Advanced, r.Refined),
	}, nil
}

// handleAgents implements the evolab_agents tool.
func (s *Server) handleAgents(ctx context.Context, req *sdk.CallToolRequest, args AgentsInput) (_ *sdk.CallToolResult, _ AgentsOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool("evolab_agents", start, retErr, sanitizeToolParams("evolab_agents", map[string]interface{}{
			"detail": args.Detail,
		}))
	}()

	if err := ratelimit.CheckLimit(s.toolLimiters, "evolab_agents"); err != nil {
		return nil, AgentsOutput{}, err
	}

	summaries := s.lab.Summaries()
	out := AgentsOutput{Agents: summaries, Count: len(summaries)}
	if args.Detail {
		for _, a := range s.lab.Population().Agents() {
			out.Details = append(out.Details, AgentDetail{
				Name:               a.Name(),
				EvolutionLevel:     a.Level(),
				Skills:             a.Skills(),
				Knowledge:          a.Knowledge(),
				Interactions:       len(a.Interactions()),
				PerformanceHistory: a.PerformanceHistory(),
			})
		}
	}
	return nil, out, nil
}

// handleAnalyze implements the evolab_analyze tool.
func (s *Server) handleAnalyze(ctx context.Context, req *sdk.CallToolRequest, args AnalyzeInput) (_ *sdk.CallToolResult, _ AnalyzeOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool("evolab_analyze", start, retErr, sanitizeToolParams("evolab_analyze", map[string]interface{}{
			"agent": args.Agent,
		}))
	}()

	if err := ratelimit.CheckLimit(s.toolLimiters, "evolab_analyze"); err != nil {
		return nil, AnalyzeOutput{}, err
	}

	if args.Agent == "" {
		report := s.lab.Analyze()
		msg := fmt.Sprintf("Analyzed %d agents over %d snapshots", len(report.Agents), report.Snapshots)
		if len(report.Unavailable) > 0 {
			msg += fmt.Sprintf("; %d without enough history", len(report.Unavailable))
		}
		return nil, AnalyzeOutput{System: &report, Available: true, Message: msg}, nil
	}

	report, ok, err := s.lab.AnalyzeAgent(args.Agent)
	if errors.Is(err, simulation.ErrUnknownAgent) {
		return nil, AnalyzeOutput{}, fmt.Errorf("agent not found: %s", args.Agent)
	}
	if err != nil {
		return nil, AnalyzeOutput{}, err
	}
	if !ok {
		return nil, AnalyzeOutput{
			Available: false,
			Message:   fmt.Sprintf("Not enough performance history for %s; run more rounds", args.Agent),
		}, nil
	}
	return nil, AnalyzeOutput{
		Agent:     &report,
		Available: true,
		Message:   fmt.Sprintf("%s: level %d, improvement rate %.4f", report.Name, report.EvolutionLevel, report.Performance.ImprovementRate),
	}, nil
}

// handleFeedback implements the evolab_feedback tool.
func (s *Server) handleFeedback(ctx context.Context, req *sdk.CallToolRequest, args FeedbackInput) (_ *sdk.CallToolResult, _ FeedbackOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool("evolab_feedback", start, retErr, sanitizeToolParams("evolab_feedback", map[string]interface{}{
			"input": args.Input, "response": args.Response, "session_id": args.SessionID, "ratings": len(args.Ratings),
		}))
	}()

	if err := ratelimit.CheckLimit(s.toolLimiters, "evolab_feedback"); err != nil {
		return nil, FeedbackOutput{}, err
	}
	if args.Input == "" {
		return nil, FeedbackOutput{}, fmt.Errorf("'input' parameter is required")
	}
	if len(args.Ratings) == 0 {
		return nil, FeedbackOutput{}, fmt.Errorf("'ratings' parameter is required")
	}

	entry, err := s.lab.AddFeedback(ctx, models.FeedbackEntry{
		SessionID: args.SessionID,
		Input:     args.Input,
		Response:  args.Response,
		Ratings:   args.Ratings,
	})
	if err != nil {
		return nil, FeedbackOutput{}, fmt.Errorf("failed to store feedback: %w", err)
	}

	topic := s.lab.Topic(entry.Input)
	return nil, FeedbackOutput{
		ID:      entry.ID,
		Topic:   topic,
		Rated:   len(entry.Ratings),
		Message: fmt.Sprintf("Feedback stored: %d ratings on topic %q", len(entry.Ratings), topic),
	}, nil
}

// handleRate implements the evolab_rate tool.
func (s *Server) handleRate(ctx context.Context, req *sdk.CallToolRequest, args RateInput) (_ *sdk.CallToolResult, _ RateOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool("evolab_rate", start, retErr, sanitizeToolParams("evolab_rate", map[string]interface{}{
			"ratings": len(args.Ratings),
		}))
	}()

	if err := ratelimit.CheckLimit(s.toolLimiters, "evolab_rate"); err != nil {
		return nil, RateOutput{}, err
	}
	if len(args.Ratings) == 0 {
		return nil, RateOutput{}, fmt.Errorf("'ratings' parameter is required")
	}

	ratings := make(map[string]models.Rating, len(args.Ratings))
	for name, v := range args.Ratings {
		ratings[name] = models.RatingFromAny(v)
	}

	result := s.lab.ApplyRatings(ratings)
	msg := fmt.Sprintf("Applied %d ratings", len(result.Scores))
	if len(result.Unknown) > 0 {
		msg += fmt.Sprintf("; ignored unknown agents: %s", strings.Join(result.Unknown, ", "))
	}
	return nil, RateOutput{Scores: result.Scores, Unknown: result.Unknown, Message: msg}, nil
}

// handleIntegrate implements the evolab_integrate tool.
func (s *Server) handleIntegrate(ctx context.Context, req *sdk.CallToolRequest, args IntegrateInput) (_ *sdk.CallToolResult, _ IntegrateOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool("evolab_integrate", start, retErr, nil)
	}()

	if err := ratelimit.CheckLimit(s.toolLimiters, "evolab_integrate"); err != nil {
		return nil, IntegrateOutput{}, err
	}

	result, err := s.lab.IntegrateFeedback(ctx)
	if err != nil {
		return nil, IntegrateOutput{}, fmt.Errorf("integration failed: %w", err)
	}

	names := make([]string, 0, len(result.Strengthened))
	for name := range result.Strengthened {
		names = append(names, name)
	}
	sort.Strings(names)

	msg := "Feedback integrated: no agent needed strengthening"
	if len(names) > 0 {
		msg = fmt.Sprintf("Feedback integrated: strengthened %s", strings.Join(names, ", "))
	}
	return nil, IntegrateOutput{
		Strengthened:     result.Strengthened,
		Specialists:      result.Specialists,
		ImprovementAreas: result.ImprovementAreas,
		Message:          msg,
	}, nil
}

// handleRuns implements the evolab_runs tool.
func (s *Server) handleRuns(ctx context.Context, req *sdk.CallToolRequest, args RunsInput) (_ *sdk.CallToolResult, _ RunsOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool("evolab_runs", start, retErr, sanitizeToolParams("evolab_runs", map[string]interface{}{
			"limit": args.Limit,
		}))
	}()

	if err := ratelimit.CheckLimit(s.toolLimiters, "evolab_runs"); err != nil {
		return nil, RunsOutput{}, err
	}
	if args.Limit < 0 {
		return nil, RunsOutput{}, fmt.Errorf("'limit' must be non-negative, got %d", args.Limit)
	}

	runs, err := s.lab.Runs(ctx, args.Limit)
	if err != nil {
		return nil, RunsOutput{}, fmt.Errorf("failed to list runs: %w", err)
	}

	items := make([]RunItem, 0, len(runs))
	for _, r := range runs {
		items = append(items, RunItem{
			ID:              r.ID,
			StartedAt:       r.StartedAt.UTC().Format(time.RFC3339),
			FinishedAt:      r.FinishedAt.UTC().Format(time.RFC3339),
			RoundsRequested: r.RoundsRequested,
			RoundsCompleted: r.RoundsCompleted,
			Seed:            r.Seed,
			Failures:        r.Failures,
			Error:           r.Error,
		})
	}
	return nil, RunsOutput{Runs: items, Count: len(items)}, nil
}
