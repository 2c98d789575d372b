// Package mcp exposes fieldmark's capabilities, workflows and evidence
// ledger to MCP clients over stdio.
package mcp

import (
	"log/slog"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/ashita-ai/fieldmark/internal/orchestrator"
	"github.com/ashita-ai/fieldmark/internal/storage"
)

// Server wraps the mcp-go server with the engine and ledger.
type Server struct {
	mcpServer  *mcpserver.MCPServer
	engine     *orchestrator.Engine
	ledger     storage.Ledger
	logger     *slog.Logger
	rootsCache *rootsCache
}

// New creates and configures a new MCP server with all resources, tools
// and prompts registered.
func New(engine *orchestrator.Engine, ledger storage.Ledger, logger *slog.Logger, version string) *Server {
	s := &Server{
		engine:     engine,
		ledger:     ledger,
		logger:     logger.With("component", "mcp"),
		rootsCache: newRootsCache(),
	}

	s.mcpServer = mcpserver.NewMCPServer(
		"fieldmark",
		version,
		mcpserver.WithResourceCapabilities(false, true),
		mcpserver.WithToolCapabilities(true),
		mcpserver.WithPromptCapabilities(false),
	)

	s.registerResources()
	s.registerTools()
	s.registerPrompts()

	return s
}

// MCPServer returns the underlying mcp-go server for transport setup.
func (s *Server) MCPServer() *mcpserver.MCPServer {
	return s.mcpServer
}

// ServeStdio blocks serving MCP over stdin/stdout.
func (s *Server) ServeStdio() error {
	return mcpserver.ServeStdio(s.mcpServer)
}
