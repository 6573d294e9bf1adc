package runner

import (
	"github.com/agentary-ai/agentary-go/pkg/model"
)

// RunOptions configures a run
type RunOptions struct {
	// Input is the user prompt that seeds the run's memory
	Input string

	// Hooks are lifecycle hooks for the run
	Hooks RunHooks

	// RunConfig is global configuration
	RunConfig *RunConfig
}

// RunConfig configures global settings
type RunConfig struct {
	// Model is a model override (string name or model.Model)
	Model interface{}

	// ModelProvider is the provider for resolving model names
	ModelProvider model.Provider

	// ModelSettings are global model settings applied to every request
	ModelSettings *model.Settings

	// TracingDisabled indicates whether tracing is disabled
	TracingDisabled bool

	// TracingConfig is tracing configuration
	TracingConfig *TracingConfig
}

// TracingConfig configures tracing
type TracingConfig struct {
	// TraceID is a custom trace ID
	TraceID string

	// Metadata is additional metadata
	Metadata map[string]interface{}
}
