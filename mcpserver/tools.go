package mcpserver

import (
	"context"
	"encoding/json"

	gomcp "github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/orchestrace/control-plane/agent"
	"github.com/orchestrace/control-plane/alert"
	"github.com/orchestrace/control-plane/health"
)

// agentView is the JSON shape returned by list_agents.
type agentView struct {
	ID               string  `json:"id"`
	TemplateType     string  `json:"templateType"`
	Status           string  `json:"status"`
	Health           float64 `json:"health"`
	CurrentTaskCount int     `json:"currentTaskCount"`
	TasksCompleted   int64   `json:"tasksCompleted"`
	TasksFailed      int64   `json:"tasksFailed"`
}

func handleListAgents(agents *agent.Manager) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req gomcp.CallToolRequest) (*gomcp.CallToolResult, error) {
		views := make([]agentView, 0)
		for _, a := range agents.List() {
			views = append(views, agentView{
				ID:               a.ID,
				TemplateType:     a.TemplateType,
				Status:           string(a.Status),
				Health:           a.Health,
				CurrentTaskCount: a.CurrentTaskCount,
				TasksCompleted:   a.TasksCompleted,
				TasksFailed:      a.TasksFailed,
			})
		}

		if len(views) == 0 {
			return gomcp.NewToolResultText("No agents are currently tracked."), nil
		}

		data, err := json.MarshalIndent(views, "", "  ")
		if err != nil {
			return gomcp.NewToolResultError("failed to marshal agents: " + err.Error()), nil
		}
		return gomcp.NewToolResultText(string(data)), nil
	}
}

// agentHealthView is the JSON shape returned by get_agent_health.
type agentHealthView struct {
	AgentID string        `json:"agentId"`
	Scores  health.Scores `json:"scores"`
	Trend   string        `json:"trend"`
}

func handleGetAgentHealth(agents *agent.Manager, monitor *health.Monitor) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req gomcp.CallToolRequest) (*gomcp.CallToolResult, error) {
		agentID := req.GetString("agent_id", "")
		if agentID == "" {
			return gomcp.NewToolResultError("missing required parameter: agent_id"), nil
		}

		if _, ok := agents.Get(agentID); !ok {
			return gomcp.NewToolResultError("unknown agent: " + agentID), nil
		}

		records := monitor.History(agentID, 1)
		view := agentHealthView{AgentID: agentID, Trend: monitor.Trend(agentID, 10)}
		if len(records) > 0 {
			view.Scores = records[0].Scores
		}

		data, err := json.MarshalIndent(view, "", "  ")
		if err != nil {
			return gomcp.NewToolResultError("failed to marshal health: " + err.Error()), nil
		}
		return gomcp.NewToolResultText(string(data)), nil
	}
}

func handleGetActiveAlerts(alerts *alert.Engine) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req gomcp.CallToolRequest) (*gomcp.CallToolResult, error) {
		active := alerts.ActiveAlerts()
		if len(active) == 0 {
			return gomcp.NewToolResultText("No active alerts."), nil
		}

		data, err := json.MarshalIndent(active, "", "  ")
		if err != nil {
			return gomcp.NewToolResultError("failed to marshal alerts: " + err.Error()), nil
		}
		return gomcp.NewToolResultText(string(data)), nil
	}
}
