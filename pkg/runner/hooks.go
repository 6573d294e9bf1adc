package runner

import (
	"context"

	"github.com/agentary-ai/agentary-go/pkg/result"
	"github.com/agentary-ai/agentary-go/pkg/workflow"
)

// RunHooks defines lifecycle hooks for a run. Hook errors abort the
// run.
type RunHooks interface {
	// OnRunStart is called when the run starts
	OnRunStart(ctx context.Context, def *workflow.Definition, input string) error

	// OnStepStart is called before each step execution attempt
	OnStepStart(ctx context.Context, step *workflow.Step, attempt int) error

	// OnStepEnd is called after each step execution attempt
	OnStepEnd(ctx context.Context, step *workflow.Step, stepResult *result.StepResult) error

	// OnRunEnd is called when the run ends
	OnRunEnd(ctx context.Context, runResult *result.RunResult) error
}

// DefaultRunHooks provides a default implementation of RunHooks
type DefaultRunHooks struct{}

// OnRunStart is called when the run starts
func (h *DefaultRunHooks) OnRunStart(ctx context.Context, def *workflow.Definition, input string) error {
	return nil
}

// OnStepStart is called before each step execution attempt
func (h *DefaultRunHooks) OnStepStart(ctx context.Context, step *workflow.Step, attempt int) error {
	return nil
}

// OnStepEnd is called after each step execution attempt
func (h *DefaultRunHooks) OnStepEnd(ctx context.Context, step *workflow.Step, stepResult *result.StepResult) error {
	return nil
}

// OnRunEnd is called when the run ends
func (h *DefaultRunHooks) OnRunEnd(ctx context.Context, runResult *result.RunResult) error {
	return nil
}
