package capability

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindBestAgentsEmpty(t *testing.T) {
	m := NewMatcher()
	matches := m.FindBestAgents(TaskRequirements{RequiredCapabilities: []string{"codeGeneration"}}, nil, 5)
	assert.Empty(t, matches)
}

func TestFindBestAgentsPrefersRequiredMatch(t *testing.T) {
	m := NewMatcher()
	agents := []AgentSnapshot{
		{ID: "analyst-1", Capabilities: Capabilities{Analysis: true, Reliability: 0.9}, Health: 1, Workload: 0},
		{ID: "coder-1", Capabilities: Capabilities{CodeGeneration: true, Languages: []string{"typescript"}, Reliability: 0.8}, Health: 1, Workload: 0},
	}
	req := TaskRequirements{RequiredCapabilities: []string{"codeGeneration"}, Languages: []string{"typescript"}}

	matches := m.FindBestAgents(req, agents, 2)
	require.Len(t, matches, 2)
	assert.Equal(t, "coder-1", matches[0].AgentID)
	assert.Greater(t, matches[0].Score, matches[1].Score)
}

func TestInferRequirementsFromDescription(t *testing.T) {
	req := InferRequirements("please write a function that validates input")
	assert.Contains(t, req.RequiredCapabilities, "codeGeneration")
}

func TestTieBreakByLowerAgentID(t *testing.T) {
	m := NewMatcher()
	agents := []AgentSnapshot{
		{ID: "b", Capabilities: Capabilities{Reliability: 0.5}, Health: 0.5, Workload: 0.5},
		{ID: "a", Capabilities: Capabilities{Reliability: 0.5}, Health: 0.5, Workload: 0.5},
	}
	matches := m.FindBestAgents(TaskRequirements{}, agents, 2)
	require.Len(t, matches, 2)
	assert.Equal(t, "a", matches[0].AgentID)
}
