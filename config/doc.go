// Package config handles orchestrator configuration loading and management.
//
// Configuration is stored in ~/.orchestratord/config.json and includes the
// tunables that govern agent limits, timeouts, resource thresholds, and
// retention windows for the control plane.
package config
