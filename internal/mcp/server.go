// Package mcp exposes the Agent Supervisor's health, snapshot, leak, and
// alert surfaces as Model Context Protocol tools, so an AI coding agent
// can query a running memguard instance the same way a human would poll
// its CLI or event stream.
package mcp

import (
	"context"
	"os"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/dmitriimaksimovdevelop/memguard/internal/agent"
)

// Server wraps the MCP server instance, bound to a single running
// Supervisor.
type Server struct {
	mcpServer *server.MCPServer
	sup       *agent.Supervisor
}

// NewServer creates an MCP server with tools registered against sup.
func NewServer(version string, sup *agent.Supervisor) *Server {
	s := server.NewMCPServer("memguard", version, server.WithLogging())

	srv := &Server{mcpServer: s, sup: sup}
	srv.registerTools()
	return srv
}

// Start runs the server in stdio mode (blocking).
func (s *Server) Start(ctx context.Context) error {
	stdioServer := server.NewStdioServer(s.mcpServer)
	return stdioServer.Listen(ctx, os.Stdin, os.Stdout)
}

func (s *Server) registerTools() {
	healthTool := mcp.NewTool("get_health",
		mcp.WithDescription("Return the Agent Supervisor's current health snapshot: status, uptime, samples collected, active alerts/hotspots, queue depth, and self-overhead."),
	)
	s.mcpServer.AddTool(healthTool, s.handleGetHealth)

	snapshotTool := mcp.NewTool("snapshot",
		mcp.WithDescription("Capture a heap profile plus the most recent sample, and summarize heap utilization and GC count. Set gcBeforeCapture to force a GC run immediately before capture."),
		mcp.WithBoolean("gcBeforeCapture",
			mcp.Description("Run runtime.GC() immediately before capturing the heap profile"),
		),
	)
	s.mcpServer.AddTool(snapshotTool, s.handleSnapshot)

	leaksTool := mcp.NewTool("get_leaks",
		mcp.WithDescription("Return currently active leak alerts raised by the Leak Detector (source=detector), most severe first."),
	)
	s.mcpServer.AddTool(leaksTool, s.handleGetLeaks)

	alertsTool := mcp.NewTool("get_active_alerts",
		mcp.WithDescription("Return all currently active alerts, optionally filtered by level. Alerts are raised from Leak Detector verdicts; hotspots are not turned into alerts."),
		mcp.WithString("level",
			mcp.Description("Filter by alert level: info, warning, error, critical"),
		),
	)
	s.mcpServer.AddTool(alertsTool, s.handleGetActiveAlerts)
}
