package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/nvandessel/evolab/internal/store"
)

var version = "0.1.0-dev"

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "evolab",
		Short: "Evolab - a simulated lab of self-improving agents",
		Long: `evolab simulates a population of lab agents that evolve through
performance scoring, skill refinement, knowledge sharing and user feedback.

State lives in .evolab/ under the project root.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().Bool("json", false, "Output as JSON (for agent consumption)")
	rootCmd.PersistentFlags().String("root", ".", "Project root directory")
	rootCmd.PersistentFlags().String("config", "", "Config file (default: ~/.evolab/config.yaml)")

	rootCmd.AddCommand(
		newVersionCmd(),
		newInitCmd(),
		newSimulateCmd(),
		newAgentsCmd(),
		newAnalyzeCmd(),
		newFeedbackCmd(),
		newIntegrateCmd(),
		newRunsCmd(),
		newBackupCmd(),
		newRestoreCmd(),
		newConfigCmd(),
		newMCPServerCmd(),
	)
	return rootCmd
}

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			if jsonFlag(cmd) {
				return writeJSON(cmd.OutOrStdout(), map[string]string{"version": version})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "evolab version %s\n", version)
			return nil
		},
	}
}

func newInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize .evolab/ and the starting population",
		RunE: func(cmd *cobra.Command, args []string) error {
			root, _ := cmd.Flags().GetString("root")
			dir := evolabDir(root)
			if err := store.EnsureDir(dir); err != nil {
				return err
			}

			manifestPath := filepath.Join(dir, "manifest.yaml")
			if _, err := os.Stat(manifestPath); os.IsNotExist(err) {
				manifest := `# Evolab Manifest
version: "1.0"
created: %s

# Agent state, feedback and runs are stored in evolab.db
# Run 'evolab simulate' to evolve the population
# Run 'evolab agents' to see it
`
				content := fmt.Sprintf(manifest, time.Now().Format(time.RFC3339))
				if err := os.WriteFile(manifestPath, []byte(content), 0644); err != nil {
					return fmt.Errorf("failed to create manifest.yaml: %w", err)
				}
			}

			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()
			if err := a.lab.Save(cmd.Context()); err != nil {
				return err
			}

			agents := a.lab.Summaries()
			if jsonFlag(cmd) {
				return writeJSON(cmd.OutOrStdout(), map[string]interface{}{
					"status": "initialized",
					"path":   dir,
					"agents": len(agents),
				})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Initialized .evolab/ in %s with %d agents\n", root, len(agents))
			return nil
		},
	}
}
