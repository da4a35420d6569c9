package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/nvandessel/evolab/internal/analysis"
	"github.com/nvandessel/evolab/internal/config"
	"github.com/nvandessel/evolab/internal/models"
)

func newSimulateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Run simulation rounds over the stored population",
		Long: `Run simulation rounds: every round each agent is evaluated and evolves,
then agents share knowledge with random peers. The evolved population and a
run record are stored.

Performance history only lives for the duration of one run, so the report
covers this run's snapshots.

Examples:
  evolab simulate              # Run the configured number of rounds
  evolab simulate --rounds 50  # Run 50 rounds
  evolab simulate --seed 7     # Reproducible run`,
		RunE: func(cmd *cobra.Command, args []string) error {
			rounds, _ := cmd.Flags().GetInt("rounds")
			if rounds < 0 {
				return fmt.Errorf("--rounds must be non-negative, got %d", rounds)
			}
			var overrides []func(*config.EvolabConfig)
			if cmd.Flags().Changed("seed") {
				seed, _ := cmd.Flags().GetInt64("seed")
				overrides = append(overrides, func(cfg *config.EvolabConfig) { cfg.Simulation.Seed = seed })
			}

			a, err := openApp(cmd, overrides...)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, cancel := commandContext(cmd)
			defer cancel()

			out, runErr := a.lab.Simulate(ctx, rounds)
			if runErr != nil && out.Run.ID == "" {
				return runErr
			}

			if jsonFlag(cmd) {
				if err := writeJSON(cmd.OutOrStdout(), out); err != nil {
					return err
				}
				return runErr
			}

			w := cmd.OutOrStdout()
			r := out.Result
			fmt.Fprintf(w, "Run %s: %d/%d rounds, %d agents, %s snapshots (seed %d)\n",
				out.Run.ID, r.RoundsCompleted, r.RoundsRequested, len(out.Agents),
				humanize.Comma(int64(len(r.Snapshots))), out.Run.Seed)
			fmt.Fprintf(w, "  advanced %d, refined %d, knowledge transfers %s, failures %d, skipped %d\n\n",
				r.Advanced, r.Refined, humanize.Comma(int64(r.Diffusion.Transfers)), r.Failures, r.Skipped)
			printAgents(w, out.Agents)
			fmt.Fprintln(w)
			printSystemReport(w, out.Report)
			return runErr
		},
	}

	cmd.Flags().Int("rounds", 0, "Number of rounds (default: simulation.rounds from config)")
	cmd.Flags().Int64("seed", 0, "Seed for all randomness (default: simulation.seed, or the clock)")
	return cmd
}

func printAgents(w io.Writer, agents []models.AgentSummary) {
	fmt.Fprintf(w, "%-20s %-6s %s\n", "AGENT", "LEVEL", "SKILLS")
	for _, a := range agents {
		skills := strings.Join(a.Skills, ", ")
		if skills == "" {
			skills = "-"
		}
		fmt.Fprintf(w, "%-20s %-6d %s\n", a.Name, a.EvolutionLevel, skills)
	}
}

func printSystemReport(w io.Writer, report analysis.SystemReport) {
	fmt.Fprintf(w, "System report (round %d, %s snapshots, %s knowledge items)\n",
		report.Round, humanize.Comma(int64(report.Snapshots)), humanize.Comma(int64(report.TotalKnowledgeBaseSize)))

	if report.ImprovementRate != nil {
		fmt.Fprintf(w, "  improvement rate: %+.5f\n", *report.ImprovementRate)
	} else {
		fmt.Fprintln(w, "  improvement rate: n/a")
	}
	if report.Convergence.Converged {
		fmt.Fprintf(w, "  converged at snapshot %d\n", report.Convergence.Index)
	} else {
		fmt.Fprintln(w, "  not converged")
	}

	for _, ar := range report.Agents {
		conv := "no"
		if ar.TimeToConvergence != nil {
			conv = fmt.Sprintf("at %d", *ar.TimeToConvergence)
		}
		fmt.Fprintf(w, "  %-20s level %d  initial %.3f  final %.3f  rate %+.5f  converged %s\n",
			ar.Name, ar.EvolutionLevel, ar.Performance.InitialPerformance, ar.Performance.FinalPerformance,
			ar.Performance.ImprovementRate, conv)
	}
	for _, u := range report.Unavailable {
		fmt.Fprintf(w, "  %-20s %s\n", u.Agent, u.Reason)
	}
}
