// Package mcpserver exposes the tool registry over the Model Context
// Protocol so external agent orchestrators can call the health-check and
// entity-store tools. This is plumbing only: every tool's behavior lives
// behind the registry.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"service-ninja/internal/adapter/tool"
	"service-ninja/internal/infra/config"
)

// Server bridges the tool registry to an MCP server over stdio.
type Server struct {
	mcp      *server.MCPServer
	registry *tool.Registry
	logger   *slog.Logger
}

// New creates an MCP server and registers every tool from the registry.
func New(cfg config.ServerConfig, registry *tool.Registry, logger *slog.Logger) *Server {
	s := server.NewMCPServer(
		cfg.Name,
		cfg.Version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
	)

	srv := &Server{mcp: s, registry: registry, logger: logger}

	schemas := registry.Schemas()
	for _, schema := range schemas {
		s.AddTool(
			mcp.NewToolWithRawSchema(schema.Name, schema.Description, schema.Parameters),
			srv.handlerFor(schema.Name),
		)
	}
	logger.Info("mcp tools registered", "count", len(schemas))

	return srv
}

// handlerFor adapts one registered tool to the MCP call signature. Tool
// failures come back as MCP error results, never as Go errors, so the
// orchestrator always receives serializable data.
func (s *Server) handlerFor(name string) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		t, err := s.registry.Get(name)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("unknown tool %q", name)), nil
		}

		params, err := json.Marshal(req.GetArguments())
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid arguments: %v", err)), nil
		}

		result, err := t.Execute(ctx, params)
		if err != nil {
			s.logger.Error("tool execution failed", "tool", name, "error", err)
			return mcp.NewToolResultError(err.Error()), nil
		}
		if result.IsError {
			return mcp.NewToolResultError(result.Content), nil
		}
		return mcp.NewToolResultText(result.Content), nil
	}
}

// ServeStdio blocks serving MCP requests on stdin/stdout until the stream
// closes or ctx is canceled.
func (s *Server) ServeStdio(ctx context.Context) error {
	s.logger.Info("mcp server listening on stdio")

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ServeStdio(s.mcp)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}
