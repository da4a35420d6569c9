package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nvandessel/evolab/internal/analysis"
	"github.com/nvandessel/evolab/internal/models"
)

func newAnalyzeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Show the system report of a stored run",
		Long: `Show the system report recorded by a simulate run. Defaults to the most
recent run.

Examples:
  evolab analyze                # Latest run
  evolab analyze --run <id>     # A specific run`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx := cmd.Context()
			runID, _ := cmd.Flags().GetString("run")

			var run *models.RunRecord
			if runID != "" {
				run, err = a.store.GetRun(ctx, runID)
				if err != nil {
					return err
				}
				if run == nil {
					return fmt.Errorf("run not found: %s", runID)
				}
			} else {
				runs, err := a.store.ListRuns(ctx, 1)
				if err != nil {
					return err
				}
				if len(runs) == 0 {
					return fmt.Errorf("no runs recorded; run 'evolab simulate' first")
				}
				run = &runs[0]
			}

			if len(run.Report) == 0 {
				return fmt.Errorf("run %s has no report", run.ID)
			}
			var report analysis.SystemReport
			if err := json.Unmarshal(run.Report, &report); err != nil {
				return fmt.Errorf("decoding report of run %s: %w", run.ID, err)
			}

			if jsonFlag(cmd) {
				return writeJSON(cmd.OutOrStdout(), map[string]interface{}{
					"run_id": run.ID,
					"report": report,
				})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Run %s\n", run.ID)
			printSystemReport(cmd.OutOrStdout(), report)
			return nil
		},
	}

	cmd.Flags().String("run", "", "Run ID (default: latest)")
	return cmd
}
