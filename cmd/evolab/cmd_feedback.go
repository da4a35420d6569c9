package main

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/nvandessel/evolab/internal/models"
)

func newFeedbackCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "feedback",
		Short: "Record and inspect rated exchanges",
	}
	cmd.AddCommand(newFeedbackAddCmd(), newFeedbackRateCmd(), newFeedbackListCmd(), newFeedbackAnalyzeCmd())
	return cmd
}

func newFeedbackAddCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Store a rated exchange",
		Long: `Store a rated exchange. Ratings use a 1-5 scale and are given per agent.
The exchange is recorded as an interaction on every rated agent.

Examples:
  evolab feedback add --input "Is this safe?" --rating Lab_Director=2
  evolab feedback add --input "..." --response "..." --rating a=4 --rating b=5`,
		RunE: func(cmd *cobra.Command, args []string) error {
			input, _ := cmd.Flags().GetString("input")
			response, _ := cmd.Flags().GetString("response")
			session, _ := cmd.Flags().GetString("session")
			raw, _ := cmd.Flags().GetStringArray("rating")

			ratings, err := parseRatingFlags(raw)
			if err != nil {
				return err
			}

			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			entry, err := a.lab.AddFeedback(cmd.Context(), models.FeedbackEntry{
				SessionID: session,
				Input:     input,
				Response:  response,
				Ratings:   ratings,
			})
			if err != nil {
				return err
			}
			if jsonFlag(cmd) {
				return writeJSON(cmd.OutOrStdout(), map[string]interface{}{
					"entry": entry,
					"topic": a.lab.Topic(entry.Input),
				})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Stored feedback %s (topic %s, %d ratings)\n",
				entry.ID, a.lab.Topic(entry.Input), len(entry.Ratings))
			return nil
		},
	}

	cmd.Flags().String("input", "", "User input of the exchange (required)")
	cmd.Flags().String("response", "", "Response that was rated")
	cmd.Flags().String("session", "", "Session ID")
	cmd.Flags().StringArray("rating", nil, "Agent rating as name=value (repeatable)")
	cmd.MarkFlagRequired("input")
	return cmd
}

// parseRatingFlags turns name=value pairs into a rating map.
func parseRatingFlags(raw []string) (map[string]float64, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("at least one --rating name=value is required")
	}
	ratings := make(map[string]float64, len(raw))
	for _, r := range raw {
		name, value, ok := strings.Cut(r, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid rating %q: expected name=value", r)
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid rating %q: %w", r, err)
		}
		ratings[name] = v
	}
	return ratings, nil
}

func newFeedbackRateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rate",
		Short: "Convert direct ratings into evaluation scores",
		Long: `Apply direct ratings as evaluations. A rating is a number in [0,1] or one
of excellent, good, average, poor, very poor (case-insensitive).
Unrecognized text scores as neutral.

Scores join the performance history of this process only. Use the MCP
server's evolab_rate tool to rate agents within a long-lived session.

Examples:
  evolab feedback rate --rating Lab_Director=0.8 --rating Data_Analyst=good`,
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, _ := cmd.Flags().GetStringArray("rating")
			if len(raw) == 0 {
				return fmt.Errorf("at least one --rating name=value is required")
			}
			ratings := make(map[string]models.Rating, len(raw))
			for _, r := range raw {
				name, value, ok := strings.Cut(r, "=")
				name = strings.TrimSpace(name)
				if !ok || name == "" {
					return fmt.Errorf("invalid rating %q: expected name=value", r)
				}
				ratings[name] = models.ParseRating(strings.TrimSpace(value))
			}

			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			result := a.lab.ApplyRatings(ratings)
			if jsonFlag(cmd) {
				return writeJSON(cmd.OutOrStdout(), result)
			}
			w := cmd.OutOrStdout()
			for _, name := range sortedNames(result.Scores) {
				fmt.Fprintf(w, "%-20s %.2f\n", name, result.Scores[name])
			}
			for _, name := range result.Unknown {
				fmt.Fprintf(w, "%-20s unknown agent\n", name)
			}
			return nil
		},
	}

	cmd.Flags().StringArray("rating", nil, "Agent rating as name=value (repeatable)")
	return cmd
}

func newFeedbackListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored feedback",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			entries, err := a.store.ListFeedback(cmd.Context())
			if err != nil {
				return err
			}
			if jsonFlag(cmd) {
				return writeJSON(cmd.OutOrStdout(), map[string]interface{}{
					"feedback": entries,
					"count":    len(entries),
				})
			}

			w := cmd.OutOrStdout()
			if len(entries) == 0 {
				fmt.Fprintln(w, "No feedback stored.")
				return nil
			}
			for _, e := range entries {
				fmt.Fprintf(w, "%s  %s  [%s] %s\n", e.ID, humanize.Time(e.CreatedAt), a.lab.Topic(e.Input), e.Input)
				for _, name := range sortedNames(e.Ratings) {
					fmt.Fprintf(w, "    %s=%g\n", name, e.Ratings[name])
				}
			}
			return nil
		},
	}
}

func newFeedbackAnalyzeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "analyze",
		Short: "Aggregate stored feedback per agent and topic",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			fa, err := a.lab.FeedbackAnalysis(cmd.Context())
			if err != nil {
				return err
			}
			if jsonFlag(cmd) {
				return writeJSON(cmd.OutOrStdout(), fa)
			}

			w := cmd.OutOrStdout()
			fmt.Fprintln(w, "Agents:")
			for _, name := range sortedNames(fa.AgentRatings) {
				fmt.Fprintf(w, "  %-20s mean %.2f over %d\n", name, mean(fa.AgentRatings[name]), len(fa.AgentRatings[name]))
			}
			fmt.Fprintln(w, "Topics:")
			for _, topic := range sortedNames(fa.TopicRatings) {
				fmt.Fprintf(w, "  %-20s mean %.2f over %d\n", topic, mean(fa.TopicRatings[topic]), len(fa.TopicRatings[topic]))
			}
			if len(fa.ImprovementAreas) > 0 {
				fmt.Fprintln(w, "Declining:")
				for _, ia := range fa.ImprovementAreas {
					fmt.Fprintf(w, "  %-20s trend %+.3f\n", ia.Agent, ia.Trend)
				}
			}
			return nil
		},
	}
}

func newIntegrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "integrate",
		Short: "Let agents learn from all stored feedback",
		Long: `Rebuild the feedback analysis from the store and integrate it: agents and
topics rated below the threshold are strengthened, and every rated topic's
best agent becomes its specialist.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			result, err := a.lab.IntegrateFeedback(cmd.Context())
			if err != nil {
				return err
			}
			if jsonFlag(cmd) {
				return writeJSON(cmd.OutOrStdout(), result)
			}

			w := cmd.OutOrStdout()
			if len(result.Strengthened) == 0 {
				fmt.Fprintln(w, "Nothing to strengthen.")
			}
			for _, name := range sortedNames(result.Strengthened) {
				fmt.Fprintf(w, "Strengthened %s on %s\n", name, strings.Join(result.Strengthened[name], ", "))
			}
			for _, topic := range sortedNames(result.Specialists) {
				fmt.Fprintf(w, "Specialist for %s: %s\n", topic, result.Specialists[topic])
			}
			return nil
		},
	}
}

func sortedNames[V any](m map[string]V) []string {
	names := make([]string, 0, len(m))
	for k := range m {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}
