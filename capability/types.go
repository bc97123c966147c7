// Package capability implements the Capability Registry & Matcher (C2,
// §4.2): scoring agents against a task's required/preferred capabilities,
// language/framework/domain tags, health, and workload, to pick the best
// available agent for a task.
package capability

// Capabilities is the boolean-flag + tagged-set + numeric-cap + quality-
// scalar bundle attached to every AgentTemplate and Agent (§3).
type Capabilities struct {
	CodeGeneration bool
	CodeReview     bool
	Testing        bool
	Documentation  bool
	Research       bool
	Analysis       bool
	WebSearch      bool
	APIIntegration bool
	FileSystem     bool
	TerminalAccess bool

	Languages  []string
	Frameworks []string
	Domains    []string
	Tools      []string

	MaxConcurrentTasks int
	MaxMemoryUsage     int64
	MaxExecutionTime   int64

	Reliability float64
	Speed       float64
	Quality     float64
}

// flagNames enumerates the boolean capability flags in a stable order, used
// both for required/preferred matching and for complexity-level derivation.
var flagNames = []string{
	"codeGeneration", "codeReview", "testing", "documentation",
	"research", "analysis", "webSearch", "apiIntegration",
	"fileSystem", "terminalAccess",
}

// flag returns the boolean value of capability name c, and whether c names a
// known boolean flag at all.
func (c Capabilities) flag(name string) (bool, bool) {
	switch name {
	case "codeGeneration":
		return c.CodeGeneration, true
	case "codeReview":
		return c.CodeReview, true
	case "testing":
		return c.Testing, true
	case "documentation":
		return c.Documentation, true
	case "research":
		return c.Research, true
	case "analysis":
		return c.Analysis, true
	case "webSearch":
		return c.WebSearch, true
	case "apiIntegration":
		return c.APIIntegration, true
	case "fileSystem":
		return c.FileSystem, true
	case "terminalAccess":
		return c.TerminalAccess, true
	default:
		return false, false
	}
}

// breadth counts how many boolean flags are set, used by complexityLevel.
func (c Capabilities) breadth() int {
	n := 0
	for _, name := range flagNames {
		if v, _ := c.flag(name); v {
			n++
		}
	}
	return n
}

// complexityLevel derives the agent's complexity tier (1-4) from capability
// breadth and reliability, per §4.2's "complexity alignment" scoring term.
func (c Capabilities) complexityLevel() int {
	score := float64(c.breadth()) + c.Reliability*3
	switch {
	case score >= 8:
		return 4
	case score >= 6:
		return 3
	case score >= 3:
		return 2
	default:
		return 1
	}
}

// AgentSnapshot is the read-only view of an agent the Matcher scores
// against. It is a snapshot, not a reference into the Agent Manager's live
// map — cross-component reads must go through read-only copies (§5).
type AgentSnapshot struct {
	ID           string
	Capabilities Capabilities
	Health       float64 // [0,1]
	Workload     float64 // [0,1]
}

// TaskRequirements is built from a task's explicit fields, or inferred from
// its free-text description when those fields are empty (§4.2).
type TaskRequirements struct {
	RequiredCapabilities  []string
	PreferredCapabilities []string
	Languages             []string
	Frameworks            []string
	Domains               []string
	Tools                 []string
	// Complexity is the task's complexity tier (1-4); 0 means "unspecified",
	// in which case complexity alignment scoring is skipped.
	Complexity int
}

// RankedMatch is one scored candidate returned by FindBestAgents, ordered
// best-first.
type RankedMatch struct {
	AgentID    string
	Score      float64 // normalized 0-100
	Confidence float64 // matched / (matched + missing), penalized by critical misses
	Reason     string  // "excellent" | "good" | "partial" | "poor"

	// reliability and workload carry tie-break inputs through sorting in
	// FindBestAgents; they are cleared before the slice is returned.
	reliability float64
	workload    float64
}
