package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nvandessel/evolab/internal/config"
	"github.com/nvandessel/evolab/internal/mcp"
	"github.com/nvandessel/evolab/internal/ratelimit"
)

func newMCPServerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp-server",
		Short: "Serve evolab tools over MCP (stdio)",
		Long: `Run an MCP server on stdin/stdout exposing the lab as tools:
evolab_simulate, evolab_agents, evolab_analyze, evolab_feedback, evolab_rate,
evolab_integrate and evolab_runs, plus the evolab://agents resource.

The population stays loaded for the whole session, so performance history
and direct ratings accumulate across tool calls. Tool calls are audited to
.evolab/audit.jsonl.

Logs go to stderr; stdout carries the protocol.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			server, err := mcp.NewServer(&mcp.Config{
				Name:       "evolab",
				Version:    version,
				Lab:        a.lab,
				RateLimits: rateLimits(a.cfg.MCP),
				AuditDir:   evolabDir(a.root),
				Logger:     a.logger,
			})
			if err != nil {
				return fmt.Errorf("failed to create MCP server: %w", err)
			}
			defer server.Close()

			return server.Run(cmd.Context())
		},
	}
}

func rateLimits(cfg config.MCPConfig) map[string]ratelimit.Limit {
	if len(cfg.RateLimits) == 0 {
		return nil
	}
	limits := make(map[string]ratelimit.Limit, len(cfg.RateLimits))
	for tool, rl := range cfg.RateLimits {
		limits[tool] = ratelimit.Limit{PerMinute: rl.PerMinute, Burst: rl.Burst}
	}
	return limits
}
