package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func newRunsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recorded simulation runs, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			limit, _ := cmd.Flags().GetInt("limit")

			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			runs, err := a.lab.Runs(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if jsonFlag(cmd) {
				return writeJSON(cmd.OutOrStdout(), map[string]interface{}{
					"runs":  runs,
					"count": len(runs),
				})
			}

			w := cmd.OutOrStdout()
			if len(runs) == 0 {
				fmt.Fprintln(w, "No runs recorded.")
				return nil
			}
			fmt.Fprintf(w, "%-36s  %-16s  %-9s  %-8s  %s\n", "ID", "STARTED", "ROUNDS", "FAILURES", "ERROR")
			for _, r := range runs {
				errText := r.Error
				if errText == "" {
					errText = "-"
				}
				fmt.Fprintf(w, "%-36s  %-16s  %4d/%-4d  %-8d  %s\n",
					r.ID, humanize.Time(r.StartedAt), r.RoundsCompleted, r.RoundsRequested, r.Failures, errText)
			}
			return nil
		},
	}

	cmd.Flags().Int("limit", 20, "Maximum runs to list (0 for all)")
	return cmd
}
