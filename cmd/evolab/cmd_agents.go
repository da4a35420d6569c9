package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/nvandessel/evolab/internal/constants"
)

func newAgentsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "agents",
		Short: "List agents with their evolution level and skills",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			agents := a.lab.Summaries()
			if jsonFlag(cmd) {
				return writeJSON(cmd.OutOrStdout(), map[string]interface{}{
					"agents": agents,
					"count":  len(agents),
				})
			}
			printAgents(cmd.OutOrStdout(), agents)
			return nil
		},
	}

	cmd.AddCommand(newAgentsAddCmd(), newAgentsShowCmd(), newAgentsImproveCmd())
	return cmd
}

func newAgentsAddCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "add <name>",
		Short: "Add an agent at the minimum level",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			summary, err := a.lab.AddAgent(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if jsonFlag(cmd) {
				return writeJSON(cmd.OutOrStdout(), summary)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added agent %s (level %d)\n", summary.Name, summary.EvolutionLevel)
			return nil
		},
	}
}

func newAgentsImproveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "improve <name>",
		Short: "Acquire a skill from the agent's recent interaction topics",
		Long: `Picks one of the agent's recent interaction topics and acquires
"Advanced_<topic>". With no recent topics a fallback area is used instead.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			skill, err := a.lab.ImproveAgent(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if jsonFlag(cmd) {
				return writeJSON(cmd.OutOrStdout(), map[string]string{
					"agent": args[0],
					"skill": skill,
				})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s acquired %s\n", args[0], skill)
			return nil
		},
	}
}

func newAgentsShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <name>",
		Short: "Show an agent's skills, knowledge and recent interactions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			ag, err := a.lab.Population().Get(args[0])
			if err != nil {
				return err
			}
			state := ag.State()
			if jsonFlag(cmd) {
				return writeJSON(cmd.OutOrStdout(), state)
			}

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "%s (level %d/%d)\n", state.Name, state.EvolutionLevel, constants.MaxEvolutionLevel)
			fmt.Fprintf(w, "Skills (%d):\n", len(state.Skills))
			for _, s := range state.Skills {
				fmt.Fprintf(w, "  - %s\n", s)
			}
			fmt.Fprintf(w, "Knowledge (%d):\n", len(state.Knowledge))
			for _, k := range state.Knowledge {
				fmt.Fprintf(w, "  - %s\n", k)
			}

			recent := state.Interactions
			if len(recent) > constants.TopicWindow {
				recent = recent[len(recent)-constants.TopicWindow:]
			}
			fmt.Fprintf(w, "Interactions (%d, showing %d):\n", len(state.Interactions), len(recent))
			for _, in := range recent {
				fmt.Fprintf(w, "  [%s] %s: %s\n", humanize.Time(in.Timestamp), in.Topic, in.Input)
			}
			return nil
		},
	}
}
