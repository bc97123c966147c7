package mcpserver

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	gomcp "github.com/mark3labs/mcp-go/mcp"

	"github.com/orchestrace/control-plane/agent"
	"github.com/orchestrace/control-plane/alert"
	"github.com/orchestrace/control-plane/config"
	"github.com/orchestrace/control-plane/eventbus"
	"github.com/orchestrace/control-plane/health"
	"github.com/orchestrace/control-plane/metrics"
)

// resultText extracts the text string from a CallToolResult, assuming it
// holds exactly one TextContent item.
func resultText(t *testing.T, result *gomcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, result.Content)
	tc, ok := gomcp.AsTextContent(result.Content[0])
	require.True(t, ok, "content[0] is not TextContent: %T", result.Content[0])
	return tc.Text
}

func testAgentManager(t *testing.T) *agent.Manager {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.MaxAgents = 5
	return agent.New(cfg, eventbus.New(), nil)
}

func TestHandleListAgents(t *testing.T) {
	t.Run("no agents returns message", func(t *testing.T) {
		mgr := testAgentManager(t)
		handler := handleListAgents(mgr)

		result, err := handler(context.Background(), gomcp.CallToolRequest{})
		require.NoError(t, err)
		assert.Equal(t, "No agents are currently tracked.", resultText(t, result))
	})

	t.Run("returns tracked agents as JSON", func(t *testing.T) {
		mgr := testAgentManager(t)
		id, err := mgr.CreateAgent("researcher", nil)
		require.NoError(t, err)

		handler := handleListAgents(mgr)
		result, err := handler(context.Background(), gomcp.CallToolRequest{})
		require.NoError(t, err)

		var views []agentView
		require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), &views))
		require.Len(t, views, 1)
		assert.Equal(t, id, views[0].ID)
		assert.Equal(t, "researcher", views[0].TemplateType)
		assert.Equal(t, string(agent.StatusInitializing), views[0].Status)
	})
}

func TestHandleGetAgentHealth(t *testing.T) {
	t.Run("missing agent_id is an error", func(t *testing.T) {
		mgr := testAgentManager(t)
		monitor := health.New(health.Config{}, eventbus.New(), nil, nil)
		handler := handleGetAgentHealth(mgr, monitor)

		result, err := handler(context.Background(), gomcp.CallToolRequest{})
		require.NoError(t, err)
		assert.True(t, result.IsError)
	})

	t.Run("unknown agent is an error", func(t *testing.T) {
		mgr := testAgentManager(t)
		monitor := health.New(health.Config{}, eventbus.New(), nil, nil)
		handler := handleGetAgentHealth(mgr, monitor)

		req := gomcp.CallToolRequest{}
		req.Params.Arguments = map[string]interface{}{"agent_id": "nonexistent"}

		result, err := handler(context.Background(), req)
		require.NoError(t, err)
		assert.True(t, result.IsError)
	})

	t.Run("known agent with no history returns empty scores", func(t *testing.T) {
		mgr := testAgentManager(t)
		id, err := mgr.CreateAgent("researcher", nil)
		require.NoError(t, err)
		monitor := health.New(health.Config{}, eventbus.New(), nil, nil)
		handler := handleGetAgentHealth(mgr, monitor)

		req := gomcp.CallToolRequest{}
		req.Params.Arguments = map[string]interface{}{"agent_id": id}

		result, err := handler(context.Background(), req)
		require.NoError(t, err)
		assert.False(t, result.IsError)

		var view agentHealthView
		require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), &view))
		assert.Equal(t, id, view.AgentID)
		assert.Equal(t, health.Scores{}, view.Scores)
	})
}

func TestHandleGetActiveAlerts(t *testing.T) {
	t.Run("no alerts returns message", func(t *testing.T) {
		engine := alert.NewEngine()
		handler := handleGetActiveAlerts(engine)

		result, err := handler(context.Background(), gomcp.CallToolRequest{})
		require.NoError(t, err)
		assert.Equal(t, "No active alerts.", resultText(t, result))
	})

	t.Run("active alert appears in output", func(t *testing.T) {
		engine := alert.NewEngine()
		engine.RegisterAction("log", alert.LogAction)
		engine.AddRule(alert.Rule{
			ID: "queue-depth", Metric: "queue.depth", Condition: alert.ConditionGT,
			Threshold: 0, Severity: alert.LevelWarning, Actions: []string{"log"}, Enabled: true,
		})

		store := metrics.NewStore(time.Minute)
		engine.AttachToStore(store)
		store.Record("queue.depth", 5, nil)
		store.Flush()

		handler := handleGetActiveAlerts(engine)
		result, err := handler(context.Background(), gomcp.CallToolRequest{})
		require.NoError(t, err)

		text := resultText(t, result)
		if !strings.Contains(text, "queue-depth") {
			t.Errorf("expected alert rule id in output, got: %s", text)
		}
	})
}
