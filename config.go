// This file re-exports configuration types and functions from the config
// package so callers can configure a scheduler without importing subpackages.
package promptulate

import (
	"github.com/longsihua2026/promptulate/config"
	"github.com/longsihua2026/promptulate/utils"
)

// Re-export core configuration types for easier access
type (
	// Config represents the complete scheduler configuration. See
	// config.Config for detailed field documentation.
	Config = config.Config

	// ConfigOption is a function type that modifies a Config instance.
	//
	// Example usage:
	//   sched, err := promptulate.New(promptulate.SetMaxAttempts(5))
	ConfigOption = config.ConfigOption

	// LogLevel defines the verbosity of logging output.
	LogLevel = utils.LogLevel
)

// Re-export core configuration functions
var (
	LoadConfig   = config.LoadConfig
	NewConfig    = config.NewConfig
	ApplyOptions = config.ApplyOptions
)

// Re-export ConfigOption functions for configuration modification.
var (
	// Dispatch behavior
	SetMaxAttempts   = config.SetMaxAttempts   // Bounds the failover loop per dispatch
	SetModelFallback = config.SetModelFallback // Opt-in cross-model fallback after exhaustion

	// Cooldown policy
	SetCooldownBase = config.SetCooldownBase // Scales the exponential backoff window
	SetCooldownMax  = config.SetCooldownMax  // Absolute bound on the backoff window
	SetCooldownCap  = config.SetCooldownCap  // Cap on the doubling exponent

	// Persistence
	SetStatePath    = config.SetStatePath    // JSON state file location
	SetSQLitePath   = config.SetSQLitePath   // Switch to the SQLite backend
	SetWriteThrough = config.SetWriteThrough // Flush after every state change
	SetSeed         = config.SetSeed         // First-run credential seed

	// Runtime configuration
	SetLogLevel = config.SetLogLevel // Sets logging verbosity
)

// LogLevel constants define available logging verbosity levels
const (
	LogLevelOff   = utils.LogLevelOff
	LogLevelError = utils.LogLevelError
	LogLevelWarn  = utils.LogLevelWarn
	LogLevelInfo  = utils.LogLevelInfo
	LogLevelDebug = utils.LogLevelDebug
)
