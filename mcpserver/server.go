// Package mcpserver exposes a read-only Model Context Protocol surface over
// the control plane's own state, so external operator tooling can inspect
// agents, health, and alerts without reaching into any component directly.
package mcpserver

import (
	"context"

	gomcp "github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/orchestrace/control-plane/agent"
	"github.com/orchestrace/control-plane/alert"
	"github.com/orchestrace/control-plane/health"
	"github.com/orchestrace/control-plane/log"
)

const serverInstructions = "You are connected to an agent orchestration control plane. " +
	"These tools are read-only: they let you inspect which agents are running, " +
	"how healthy they are, and what alerts are currently active. They cannot " +
	"create, modify, or stop anything."

// Server wraps an MCP server bound to the control plane's read models.
// Every tool it registers is read-only (§1: the MCP client role stays out
// of scope; this is the control plane acting as the server instead).
type Server struct {
	mcp    *mcpserver.MCPServer
	agents *agent.Manager
	health *health.Monitor
	alerts *alert.Engine

	done chan struct{}
}

// New builds a Server with its three read-only tools registered.
func New(agents *agent.Manager, healthMonitor *health.Monitor, alerts *alert.Engine) *Server {
	m := mcpserver.NewMCPServer(
		"orchestratord",
		"0.1.0",
		mcpserver.WithInstructions(serverInstructions),
	)

	s := &Server{mcp: m, agents: agents, health: healthMonitor, alerts: alerts, done: make(chan struct{})}
	s.registerTools()
	return s
}

func (s *Server) registerTools() {
	listAgents := gomcp.NewTool("list_agents",
		gomcp.WithDescription("List every tracked agent with its status, health score, and current task load."),
		gomcp.WithReadOnlyHintAnnotation(true),
	)
	s.mcp.AddTool(listAgents, handleListAgents(s.agents))

	getAgentHealth := gomcp.NewTool("get_agent_health",
		gomcp.WithDescription("Get the health score breakdown and recent trend for one agent."),
		gomcp.WithString("agent_id", gomcp.Required(), gomcp.Description("The agent id to inspect.")),
		gomcp.WithReadOnlyHintAnnotation(true),
	)
	s.mcp.AddTool(getAgentHealth, handleGetAgentHealth(s.agents, s.health))

	getActiveAlerts := gomcp.NewTool("get_active_alerts",
		gomcp.WithDescription("List every currently unresolved alert."),
		gomcp.WithReadOnlyHintAnnotation(true),
	)
	s.mcp.AddTool(getActiveAlerts, handleGetActiveAlerts(s.alerts))
}

// Start serves the MCP server over stdio in its own goroutine. ServeStdio
// blocks reading from stdin until it errs or the transport closes; there is
// no cooperative way to interrupt an in-flight read, so Stop does not wait
// on it (see DESIGN.md).
func (s *Server) Start(ctx context.Context) error {
	go func() {
		defer close(s.done)
		if err := mcpserver.ServeStdio(s.mcp); err != nil {
			log.WarningLog.Printf("mcp server: stdio serve ended: %v", err)
		}
	}()
	return nil
}

// Stop is best-effort: stdio transports in mark3labs/mcp-go have no
// graceful-shutdown hook, so this returns immediately rather than blocking
// shutdown on a read that may never unblock.
func (s *Server) Stop(ctx context.Context) error {
	return nil
}
