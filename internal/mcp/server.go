// Package mcp provides an MCP (Model Context Protocol) server for evolab.
package mcp

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/nvandessel/evolab/internal/logging"
	"github.com/nvandessel/evolab/internal/ratelimit"
	"github.com/nvandessel/evolab/internal/simulation"
)

// Server wraps the MCP SDK server around a simulation lab.
type Server struct {
	server       *sdk.Server
	lab          *simulation.Lab
	toolLimiters ratelimit.ToolLimiters
	auditLogger  *AuditLogger
	logger       *slog.Logger
}

// Config holds server configuration.
type Config struct {
	Name    string // Server name (e.g., "evolab")
	Version string // Server version

	// Lab is the loaded lab the tools operate on. Required.
	Lab *simulation.Lab

	// RateLimits overrides the per-tool defaults.
	RateLimits map[string]ratelimit.Limit

	// AuditDir receives audit.jsonl. Empty disables auditing.
	AuditDir string

	Logger *slog.Logger
}

// NewServer creates a new MCP server with evolab tools.
func NewServer(cfg *Config) (*Server, error) {
	if cfg.Lab == nil {
		return nil, fmt.Errorf("mcp server needs a lab")
	}

	limiters, err := ratelimit.NewToolLimiters(cfg.RateLimits)
	if err != nil {
		return nil, fmt.Errorf("failed to create rate limiters: %w", err)
	}

	logger := logging.OrDiscard(cfg.Logger)
	mcpServer := sdk.NewServer(&sdk.Implementation{
		Name:    cfg.Name,
		Version: cfg.Version,
	}, &sdk.ServerOptions{
		InitializedHandler: func(ctx context.Context, req *sdk.InitializedRequest) {
			logger.Debug("mcp client initialized")
		},
	})

	s := &Server{
		server:       mcpServer,
		lab:          cfg.Lab,
		toolLimiters: limiters,
		logger:       logger,
	}
	if cfg.AuditDir != "" {
		s.auditLogger = NewAuditLogger(cfg.AuditDir)
	}

	s.registerTools()
	s.registerResources()
	return s, nil
}

// Run starts the MCP server over stdio transport.
// This blocks until the client disconnects or the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	notifySignals(sigChan)
	go func() {
		select {
		case <-sigChan:
			cancel()
		case <-ctx.Done():
		}
	}()

	s.logger.Info("mcp server started", "transport", "stdio")
	err := s.server.Run(ctx, &sdk.StdioTransport{})
	s.logger.Info("mcp server stopped")
	return err
}

// Connect serves a single session over transport. It is used by tests and
// embedders that bring their own transport.
func (s *Server) Connect(ctx context.Context, transport sdk.Transport) (*sdk.ServerSession, error) {
	return s.server.Connect(ctx, transport, nil)
}

// Close releases the audit log. The lab and its store belong to the caller.
func (s *Server) Close() error {
	return s.auditLogger.Close()
}
