package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/orchestrace/control-plane/log"
)

const ConfigFileName = "config.json"

// ResourceLimits are the denominators used by the health monitor's
// resourceUsage score: usage/limit, clamped to [0,1].
type ResourceLimits struct {
	Memory int64 `json:"memory"`
	CPU    int64 `json:"cpu"`
	Disk   int64 `json:"disk"`
}

// AgentDefaults are inherited by every AgentTemplate unless overridden.
type AgentDefaults struct {
	AutonomyLevel     float64 `json:"autonomyLevel"`
	LearningEnabled   bool    `json:"learningEnabled"`
	AdaptationEnabled bool    `json:"adaptationEnabled"`
}

// EnvironmentDefaults seed the environment block of a spawned AgentProcess.
type EnvironmentDefaults struct {
	Runtime         string `json:"runtime"`
	WorkingDirectory string `json:"workingDirectory"`
	TempDirectory    string `json:"tempDirectory"`
	LogDirectory     string `json:"logDirectory"`
}

// AlertThreshold carries the warning/critical bands for one metric name.
type AlertThreshold struct {
	Warning  float64 `json:"warning"`
	Critical float64 `json:"critical"`
}

// Config is the orchestrator's full set of recognized tunables (§6).
type Config struct {
	MaxAgents           int  `json:"maxAgents"`
	DefaultTimeoutMs    int  `json:"defaultTimeout"`
	HeartbeatIntervalMs int  `json:"heartbeatInterval"`
	HealthCheckIntervalMs int `json:"healthCheckInterval"`
	AutoRestart         bool `json:"autoRestart"`

	ResourceLimits      ResourceLimits      `json:"resourceLimits"`
	AgentDefaults       AgentDefaults       `json:"agentDefaults"`
	EnvironmentDefaults EnvironmentDefaults `json:"environmentDefaults"`

	TaskQueueSize          int `json:"taskQueueSize"`
	TaskMaxRetries         int `json:"taskMaxRetries"`
	SessionRetentionMs     int `json:"sessionRetentionMs"`
	TaskHistoryRetentionMs int `json:"taskHistoryRetentionMs"`
	MaintenanceIntervalMs  int `json:"maintenanceInterval"`
	MetricsIntervalMs      int `json:"metricsInterval"`
	ShutdownTimeoutMs      int `json:"shutdownTimeout"`

	AlertThresholds map[string]AlertThreshold `json:"alertThresholds"`
}

// GetConfigDir returns the path to the orchestrator's configuration directory.
func GetConfigDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get config home directory: %w", err)
	}
	return filepath.Join(homeDir, ".orchestratord"), nil
}

// DefaultConfig returns the built-in configuration used when no config file
// is present, or as the base that LoadConfig falls back onto per-field.
func DefaultConfig() *Config {
	return &Config{
		MaxAgents:             10,
		DefaultTimeoutMs:      30_000,
		HeartbeatIntervalMs:   10_000,
		HealthCheckIntervalMs: 15_000,
		AutoRestart:           true,
		ResourceLimits: ResourceLimits{
			Memory: 512 * 1024 * 1024,
			CPU:    100,
			Disk:   1024 * 1024 * 1024,
		},
		AgentDefaults: AgentDefaults{
			AutonomyLevel:     0.5,
			LearningEnabled:   false,
			AdaptationEnabled: false,
		},
		EnvironmentDefaults: EnvironmentDefaults{
			Runtime:          "node",
			WorkingDirectory: os.TempDir(),
			TempDirectory:    os.TempDir(),
			LogDirectory:     os.TempDir(),
		},
		TaskQueueSize:          1000,
		TaskMaxRetries:         3,
		SessionRetentionMs:     24 * 60 * 60 * 1000,
		TaskHistoryRetentionMs: 24 * 60 * 60 * 1000,
		MaintenanceIntervalMs:  300_000,
		MetricsIntervalMs:      60_000,
		ShutdownTimeoutMs:      30_000,
		AlertThresholds: map[string]AlertThreshold{
			"cpu":             {Warning: 0.7, Critical: 0.9},
			"memory":          {Warning: 0.75, Critical: 0.9},
			"disk":            {Warning: 0.8, Critical: 0.95},
			"errorRate":       {Warning: 0.05, Critical: 0.15},
			"responseTime":    {Warning: 2000, Critical: 5000},
			"queueDepth":      {Warning: 50, Critical: 100},
			"agentHealth":     {Warning: 0.5, Critical: 0.3},
			"swarmUtilization": {Warning: 0.8, Critical: 0.95},
		},
	}
}

// LoadConfig reads the config file, falling back to defaults if it does not
// exist. A malformed file is reported; a missing file is not an error.
func LoadConfig() *Config {
	cfg := DefaultConfig()

	configDir, err := GetConfigDir()
	if err != nil {
		log.ErrorLog.Printf("failed to get config dir, using defaults: %v", err)
		return cfg
	}

	data, err := os.ReadFile(filepath.Join(configDir, ConfigFileName))
	if err != nil {
		if !os.IsNotExist(err) {
			log.ErrorLog.Printf("failed to read config file, using defaults: %v", err)
		}
		return cfg
	}

	if err := json.Unmarshal(data, cfg); err != nil {
		log.ErrorLog.Printf("failed to parse config file, using defaults: %v", err)
		return DefaultConfig()
	}

	return cfg
}

// SaveConfig persists cfg to the config file atomically.
func SaveConfig(cfg *Config) error {
	configDir, err := GetConfigDir()
	if err != nil {
		return fmt.Errorf("failed to get config dir: %w", err)
	}

	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	return AtomicWriteFile(filepath.Join(configDir, ConfigFileName), data, 0644)
}
