package agent

import "github.com/orchestrace/control-plane/capability"

// Template is an AgentTemplate (§4.6): the capability/runtime defaults a
// createAgent call starts from before overrides are applied.
type Template struct {
	Type          string
	Capabilities  capability.Capabilities
	AutonomyLevel float64
}

// defaultTemplates are the eleven built-in templates the manager ships
// (§4.6's contract): capability flags, languages, and domains per spawned
// worker type. No built-in template sets Frameworks or Tools; those fields
// are filled only from createAgent overrides.
var defaultTemplates = map[string]Template{
	"researcher": {
		Type: "researcher",
		Capabilities: capability.Capabilities{
			Research: true, WebSearch: true, Analysis: true,
			Domains:            []string{"research"},
			MaxConcurrentTasks: 3, Reliability: 0.85, Speed: 0.6, Quality: 0.9,
		},
		AutonomyLevel: 0.7,
	},
	"coder": {
		Type: "coder",
		Capabilities: capability.Capabilities{
			CodeGeneration: true, FileSystem: true,
			Languages:          []string{"go", "typescript", "python"},
			MaxConcurrentTasks: 2, Reliability: 0.8, Speed: 0.75, Quality: 0.8,
		},
		AutonomyLevel: 0.6,
	},
	"analyst": {
		Type: "analyst",
		Capabilities: capability.Capabilities{
			Analysis: true, CodeReview: true,
			Domains:            []string{"analysis"},
			MaxConcurrentTasks: 3, Reliability: 0.85, Speed: 0.65, Quality: 0.9,
		},
		AutonomyLevel: 0.6,
	},
	"requirements-engineer": {
		Type: "requirements-engineer",
		Capabilities: capability.Capabilities{
			Documentation: true, Analysis: true,
			Domains:            []string{"requirements"},
			MaxConcurrentTasks: 2, Reliability: 0.85, Speed: 0.6, Quality: 0.85,
		},
		AutonomyLevel: 0.5,
	},
	"design-architect": {
		Type: "design-architect",
		Capabilities: capability.Capabilities{
			Analysis: true, Documentation: true,
			Domains:            []string{"architecture"},
			MaxConcurrentTasks: 2, Reliability: 0.85, Speed: 0.55, Quality: 0.9,
		},
		AutonomyLevel: 0.6,
	},
	"task-planner": {
		Type: "task-planner",
		Capabilities: capability.Capabilities{
			Analysis: true,
			Domains:            []string{"planning"},
			MaxConcurrentTasks: 4, Reliability: 0.8, Speed: 0.7, Quality: 0.8,
		},
		AutonomyLevel: 0.5,
	},
	"developer": {
		Type: "developer",
		Capabilities: capability.Capabilities{
			CodeGeneration: true, Testing: true, FileSystem: true, TerminalAccess: true,
			Languages:          []string{"go", "typescript", "python", "rust"},
			MaxConcurrentTasks: 2, Reliability: 0.8, Speed: 0.7, Quality: 0.8,
		},
		AutonomyLevel: 0.65,
	},
	"system-architect": {
		Type: "system-architect",
		Capabilities: capability.Capabilities{
			Analysis: true, Documentation: true, APIIntegration: true,
			Domains:            []string{"architecture", "backend"},
			MaxConcurrentTasks: 2, Reliability: 0.85, Speed: 0.55, Quality: 0.9,
		},
		AutonomyLevel: 0.6,
	},
	"tester": {
		Type: "tester",
		Capabilities: capability.Capabilities{
			Testing: true, CodeReview: true, TerminalAccess: true,
			MaxConcurrentTasks: 3, Reliability: 0.85, Speed: 0.7, Quality: 0.85,
		},
		AutonomyLevel: 0.55,
	},
	"reviewer": {
		Type: "reviewer",
		Capabilities: capability.Capabilities{
			CodeReview: true, Analysis: true,
			MaxConcurrentTasks: 3, Reliability: 0.9, Speed: 0.65, Quality: 0.9,
		},
		AutonomyLevel: 0.5,
	},
	"steering-author": {
		Type: "steering-author",
		Capabilities: capability.Capabilities{
			Documentation: true,
			Domains:            []string{"governance"},
			MaxConcurrentTasks: 2, Reliability: 0.85, Speed: 0.6, Quality: 0.85,
		},
		AutonomyLevel: 0.55,
	},
}

// applyOverrides replaces individual keys in base with the non-zero fields
// present in overrides, per §4.6's "overrides fully replace individual keys
// but preserve unspecified ones". A zero-value capability.Capabilities field
// is indistinguishable from "not overridden", which is the same contract the
// spec describes.
func applyOverrides(base Template, overrides *Template) Template {
	if overrides == nil {
		return base
	}
	merged := base
	if overrides.AutonomyLevel != 0 {
		merged.AutonomyLevel = overrides.AutonomyLevel
	}
	c := overrides.Capabilities
	if c.CodeGeneration {
		merged.Capabilities.CodeGeneration = true
	}
	if c.CodeReview {
		merged.Capabilities.CodeReview = true
	}
	if c.Testing {
		merged.Capabilities.Testing = true
	}
	if c.Documentation {
		merged.Capabilities.Documentation = true
	}
	if c.Research {
		merged.Capabilities.Research = true
	}
	if c.Analysis {
		merged.Capabilities.Analysis = true
	}
	if c.WebSearch {
		merged.Capabilities.WebSearch = true
	}
	if c.APIIntegration {
		merged.Capabilities.APIIntegration = true
	}
	if c.FileSystem {
		merged.Capabilities.FileSystem = true
	}
	if c.TerminalAccess {
		merged.Capabilities.TerminalAccess = true
	}
	if len(c.Languages) > 0 {
		merged.Capabilities.Languages = c.Languages
	}
	if len(c.Frameworks) > 0 {
		merged.Capabilities.Frameworks = c.Frameworks
	}
	if len(c.Domains) > 0 {
		merged.Capabilities.Domains = c.Domains
	}
	if len(c.Tools) > 0 {
		merged.Capabilities.Tools = c.Tools
	}
	if c.MaxConcurrentTasks != 0 {
		merged.Capabilities.MaxConcurrentTasks = c.MaxConcurrentTasks
	}
	if c.MaxMemoryUsage != 0 {
		merged.Capabilities.MaxMemoryUsage = c.MaxMemoryUsage
	}
	if c.MaxExecutionTime != 0 {
		merged.Capabilities.MaxExecutionTime = c.MaxExecutionTime
	}
	if c.Reliability != 0 {
		merged.Capabilities.Reliability = c.Reliability
	}
	if c.Speed != 0 {
		merged.Capabilities.Speed = c.Speed
	}
	if c.Quality != 0 {
		merged.Capabilities.Quality = c.Quality
	}
	return merged
}
