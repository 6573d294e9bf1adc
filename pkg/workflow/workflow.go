// Package workflow defines the declarative description of a multi-step
// agentic workflow: the ordered step list, per-step metadata, the tools
// available to the run, and memory/bounds configuration. Definitions are
// built once by the caller and never mutated by the engine.
package workflow

import (
	"fmt"
	"strings"
	"time"

	"github.com/agentary-ai/agentary-go/pkg/model"
	"github.com/agentary-ai/agentary-go/pkg/tool"
)

// StepType identifies the kind of work a step performs
type StepType string

const (
	// StepThink produces free-form reasoning about the task
	StepThink StepType = "think"

	// StepAct produces a tool call and folds its result into memory
	StepAct StepType = "act"

	// StepDecide produces a decision used for branch routing
	StepDecide StepType = "decide"

	// StepRespond produces the user-facing response
	StepRespond StepType = "respond"
)

// Profile describes how a step type executes: the generation task hint
// sent to the provider, the result tag stamped on the completion event,
// and whether the step may call tools.
type Profile struct {
	GenerationTask string
	ResultType     string
	AllowsTools    bool
}

// profiles is the single lookup table for step-type behavior. Adding a
// step type means adding a row here, not a switch arm elsewhere.
var profiles = map[StepType]Profile{
	StepThink:   {GenerationTask: model.TaskReasoning, ResultType: "thinking", AllowsTools: false},
	StepAct:     {GenerationTask: model.TaskToolUse, ResultType: "tool_call", AllowsTools: true},
	StepDecide:  {GenerationTask: model.TaskDecision, ResultType: "decision", AllowsTools: false},
	StepRespond: {GenerationTask: model.TaskChat, ResultType: "response", AllowsTools: false},
}

// Profile returns the execution profile for the step type
func (t StepType) Profile() (Profile, bool) {
	p, ok := profiles[t]
	return p, ok
}

// Valid reports whether the step type is one of the known variants
func (t StepType) Valid() bool {
	_, ok := profiles[t]
	return ok
}

// NextStep is one branch target. When is a case-insensitive substring
// condition evaluated against the step's cleaned output; an empty When
// always matches.
type NextStep struct {
	When   string `yaml:"when,omitempty"`
	Target string `yaml:"target"`
}

// Matches reports whether this branch applies to the given step output
func (n NextStep) Matches(output string) bool {
	if n.When == "" {
		return true
	}
	return strings.Contains(strings.ToLower(output), strings.ToLower(n.When))
}

// Step is one unit of workflow execution
type Step struct {
	// ID uniquely identifies the step within its workflow
	ID string `yaml:"id"`

	// Type selects the step's execution profile
	Type StepType `yaml:"type"`

	// Description is folded into the step's prompts
	Description string `yaml:"description"`

	// Tools names the registered tools available to this step. Empty
	// means all registered tools, for steps whose type allows tools.
	Tools []string `yaml:"tools,omitempty"`

	// NextSteps routes to a follow-up step; evaluated in order, first
	// matching branch wins
	NextSteps []NextStep `yaml:"next,omitempty"`

	// MaxAttempts bounds retries for this step (default 3)
	MaxAttempts int `yaml:"max_attempts,omitempty"`
}

// ResolveNext returns the id of the step this step routes to for the
// given output, or "" when no branch matches.
func (s *Step) ResolveNext(output string) string {
	for _, next := range s.NextSteps {
		if next.Matches(output) {
			return next.Target
		}
	}
	return ""
}

// MemoryConfig controls conversational memory behavior for a run
type MemoryConfig struct {
	// EnablePruning allows the state manager to evict old messages
	// under token pressure
	EnablePruning bool `yaml:"enable_pruning"`

	// EnableSummarization folds evicted messages into a summary note
	// instead of dropping them outright
	EnableSummarization bool `yaml:"enable_summarization"`

	// StoreToolResults keeps tool results in memory keyed by step
	StoreToolResults bool `yaml:"store_tool_results"`

	// MaxTokenLimit overrides the default token budget (600)
	MaxTokenLimit int `yaml:"max_token_limit,omitempty"`

	// WarningThreshold overrides the default pressure threshold (0.8)
	WarningThreshold float64 `yaml:"warning_threshold,omitempty"`
}

// Definition is the static, immutable description of a workflow
type Definition struct {
	// ID identifies the workflow
	ID string `yaml:"id"`

	// SystemPrompt seeds the run's memory; empty gets a generic default
	SystemPrompt string `yaml:"system_prompt,omitempty"`

	// Context is shared data folded into every step's prompts
	Context map[string]interface{} `yaml:"context,omitempty"`

	// Steps is the ordered step sequence
	Steps []Step `yaml:"steps"`

	// MaxIterations bounds the total number of step executions
	// (default 10)
	MaxIterations int `yaml:"max_iterations,omitempty"`

	// TimeoutMS bounds the run's wall-clock duration (default 60000)
	TimeoutMS int `yaml:"timeout_ms,omitempty"`

	// Memory configures pruning, summarization and tool-result storage
	Memory MemoryConfig `yaml:"memory,omitempty"`

	// Tools are registered programmatically, not declared in YAML
	Tools []tool.Tool `yaml:"-"`
}

// Timeout returns the configured timeout as a duration, 0 if unset
func (d *Definition) Timeout() time.Duration {
	return time.Duration(d.TimeoutMS) * time.Millisecond
}

// StepByID returns the step with the given id, or nil
func (d *Definition) StepByID(id string) *Step {
	for i := range d.Steps {
		if d.Steps[i].ID == id {
			return &d.Steps[i]
		}
	}
	return nil
}

// StepIndex returns the declaration-order index of the step, or -1
func (d *Definition) StepIndex(id string) int {
	for i := range d.Steps {
		if d.Steps[i].ID == id {
			return i
		}
	}
	return -1
}

// Validate checks the definition for structural errors: missing or
// duplicate step ids, unknown step types, and branch targets that don't
// exist.
func (d *Definition) Validate() error {
	if d.ID == "" {
		return fmt.Errorf("workflow has no id")
	}
	if len(d.Steps) == 0 {
		return fmt.Errorf("workflow %q has no steps", d.ID)
	}

	seen := make(map[string]bool, len(d.Steps))
	for i := range d.Steps {
		step := &d.Steps[i]
		if step.ID == "" {
			return fmt.Errorf("workflow %q: step %d has no id", d.ID, i)
		}
		if seen[step.ID] {
			return fmt.Errorf("workflow %q: duplicate step id %q", d.ID, step.ID)
		}
		seen[step.ID] = true

		if !step.Type.Valid() {
			return fmt.Errorf("workflow %q: step %q has unknown type %q", d.ID, step.ID, step.Type)
		}
		if step.MaxAttempts < 0 {
			return fmt.Errorf("workflow %q: step %q has negative max_attempts", d.ID, step.ID)
		}
	}

	for i := range d.Steps {
		for _, next := range d.Steps[i].NextSteps {
			if !seen[next.Target] {
				return fmt.Errorf("workflow %q: step %q routes to unknown step %q",
					d.ID, d.Steps[i].ID, next.Target)
			}
		}
	}
	return nil
}
