package eventbus

// Topic names from the event topic catalogue (§6). Payload shapes are
// contracts between publisher and subscriber; the bus itself is untyped.
const (
	TopicAgentReady         = "agent:ready"
	TopicAgentHeartbeat     = "agent:heartbeat"
	TopicAgentError         = "agent:error"
	TopicAgentStatusChanged = "agent:status-changed"
	TopicAgentProcessExit   = "agent:process-exit"

	TopicTaskCreated   = "task:created"
	TopicTaskAssigned  = "task:assigned"
	TopicTaskStarted   = "task:started"
	TopicTaskCompleted = "task:completed"
	TopicTaskFailed    = "task:failed"
	TopicTaskCancelled = "task:cancelled"

	TopicResourceUsage      = "resource:usage"
	TopicSwarmMetricsUpdate = "swarm:metrics-update"

	TopicPoolCreated = "pool:created"
	TopicPoolScaled  = "pool:scaled"

	TopicAlertCreated      = "alert:created"
	TopicAlertResolved     = "alert:resolved"
	TopicAlertAcknowledged = "alert:acknowledged"

	TopicSystemReady    = "system:ready"
	TopicSystemShutdown = "system:shutdown"
	TopicSystemError    = "system:error"
	TopicDeadlockDetected = "deadlock:detected"

	TopicHeartbeatTimeout = "heartbeat-timeout"
)

// AgentReadyPayload is emitted once a spawned agent has signalled readiness.
type AgentReadyPayload struct {
	AgentID string `json:"agentId"`
}

// AgentHeartbeatPayload is emitted by a live agent at least every
// heartbeatInterval.
type AgentHeartbeatPayload struct {
	AgentID   string         `json:"agentId"`
	Timestamp int64          `json:"timestamp"`
	Metrics   map[string]any `json:"metrics"`
}

// AgentErrorPayload reports an agent-level fault.
type AgentErrorPayload struct {
	AgentID string `json:"agentId"`
	Error   string `json:"error"`
}

// AgentStatusChangedPayload reports a lifecycle transition.
type AgentStatusChangedPayload struct {
	AgentID string `json:"agentId"`
	From    string `json:"from"`
	To      string `json:"to"`
}

// ResourceUsagePayload is emitted periodically by an agent.
type ResourceUsagePayload struct {
	AgentID string  `json:"agentId"`
	CPUFrac float64 `json:"cpuFrac"`
	MemoryBytes int64 `json:"memoryBytes"`
	DiskBytes   int64 `json:"diskBytes"`
}

// DeadlockDetectedPayload names the agents and resources of a reported
// deadlock (§4.8/§4.9).
type DeadlockDetectedPayload struct {
	Agents    []string `json:"agents"`
	Resources []string `json:"resources"`
}

// HeartbeatTimeoutPayload is emitted when an agent's last heartbeat is older
// than heartbeatInterval*3 (§4.5).
type HeartbeatTimeoutPayload struct {
	AgentID       string `json:"agentId"`
	LastHeartbeat int64  `json:"lastHeartbeat"`
}

// TaskCreatedPayload announces a newly submitted task.
type TaskCreatedPayload struct {
	TaskID   string `json:"taskId"`
	Type     string `json:"type"`
	Priority int    `json:"priority"`
}

// TaskAssignedPayload reports a task handed off to an agent.
type TaskAssignedPayload struct {
	TaskID  string `json:"taskId"`
	AgentID string `json:"agentId"`
}

// TaskStartedPayload is emitted by the agent runtime when it begins a task.
type TaskStartedPayload struct {
	TaskID  string `json:"taskId"`
	AgentID string `json:"agentId"`
}

// TaskCompletedPayload is emitted by the agent runtime on success.
type TaskCompletedPayload struct {
	TaskID        string         `json:"taskId"`
	AgentID       string         `json:"agentId"`
	Result        any            `json:"result,omitempty"`
	ExecutionTime int64          `json:"executionTime"`
	Metrics       map[string]any `json:"metrics,omitempty"`
}

// TaskFailedPayload is emitted by the agent runtime on failure.
type TaskFailedPayload struct {
	TaskID  string `json:"taskId"`
	AgentID string `json:"agentId"`
	Error   string `json:"error"`
}

// TaskCancelledPayload reports a task removed before completion.
type TaskCancelledPayload struct {
	TaskID string `json:"taskId"`
	Reason string `json:"reason"`
}

// PoolCreatedPayload announces a newly registered agent pool.
type PoolCreatedPayload struct {
	Pool string `json:"pool"`
}

// PoolScaledPayload reports a pool resize, before and after.
type PoolScaledPayload struct {
	Pool     string `json:"pool"`
	FromSize int    `json:"fromSize"`
	ToSize   int    `json:"toSize"`
}
