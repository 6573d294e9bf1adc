package runner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/agentary-ai/agentary-go/pkg/model"
	"github.com/agentary-ai/agentary-go/pkg/result"
	"github.com/agentary-ai/agentary-go/pkg/state"
	"github.com/agentary-ai/agentary-go/pkg/tool"
	"github.com/agentary-ai/agentary-go/pkg/tracing"
	"github.com/agentary-ai/agentary-go/pkg/workflow"
)

// Terminal error messages surfaced on the stream when a run exhausts
// its budgets
const (
	timeoutErrMsg       = "workflow execution timed out"
	maxIterationsErrMsg = "maximum iterations exceeded"
)

// RunWorkflow executes a workflow and streams step events back to the
// caller. The returned StreamedRunResult's embedded RunResult fields
// are populated when the stream closes.
func (r *Runner) RunWorkflow(ctx context.Context, def *workflow.Definition, opts *RunOptions) (*result.StreamedRunResult, error) {
	if opts == nil {
		opts = &RunOptions{}
	}
	if opts.RunConfig == nil {
		opts.RunConfig = &RunConfig{}
	}
	if opts.Hooks == nil {
		opts.Hooks = &DefaultRunHooks{}
	}

	if def == nil {
		return nil, errors.New("no workflow definition provided")
	}
	if err := def.Validate(); err != nil {
		return nil, fmt.Errorf("invalid workflow: %w", err)
	}

	mdl, err := r.resolveModel(opts.RunConfig)
	if err != nil {
		return nil, err
	}

	// Fresh state per run: concurrent runs never share memory
	r.mu.RLock()
	mgr := state.NewManager(r.estimator).
		WithLogger(r.logger).
		WithArchive(r.archive).
		WithSummarizer(r.summarizer)
	r.mu.RUnlock()
	mgr.InitializeState(opts.Input, def)

	// Set up tracing unless disabled
	var tracer tracing.Tracer
	if !opts.RunConfig.TracingDisabled {
		fileTracer, traceErr := tracing.TraceForWorkflow(def.ID)
		if traceErr != nil {
			r.logger.Warn("failed to create tracer, continuing without",
				"workflow_id", def.ID, "error", traceErr)
		} else {
			tracer = fileTracer
			ctx = tracing.WithTracer(ctx, tracer)
		}
	}

	eventCh := make(chan result.StepResult)
	streamed := &result.StreamedRunResult{
		RunResult: &result.RunResult{
			RunID:      mgr.RunID(),
			WorkflowID: def.ID,
		},
		Stream: eventCh,
	}

	go r.runLoop(ctx, def, opts, mgr, mdl, tracer, eventCh, streamed)

	return streamed, nil
}

// RunWorkflowSync executes a workflow, drains the stream, and returns
// the final result.
func (r *Runner) RunWorkflowSync(ctx context.Context, def *workflow.Definition, opts *RunOptions) (*result.RunResult, error) {
	streamed, err := r.RunWorkflow(ctx, def, opts)
	if err != nil {
		return nil, err
	}
	for range streamed.Stream {
	}
	if streamed.State == result.StateFailed {
		return streamed.RunResult, errors.New(streamed.Error)
	}
	return streamed.RunResult, nil
}

// runLoop drives one workflow run to completion on its own goroutine,
// closing eventCh when the run ends.
func (r *Runner) runLoop(ctx context.Context, def *workflow.Definition, opts *RunOptions,
	mgr *state.Manager, mdl model.Model, tracer tracing.Tracer,
	eventCh chan<- result.StepResult, streamed *result.StreamedRunResult) {

	start := time.Now()
	registry := tool.NewRegistry(def.Tools...)

	finish := func(runState result.RunState, finalOutput string, runErr error) {
		streamed.State = runState
		streamed.FinalOutput = finalOutput
		streamed.Iterations = mgr.Iteration() - 1
		streamed.Duration = time.Since(start)
		if runErr != nil {
			streamed.Error = runErr.Error()
		}
		streamed.IsComplete = true

		tracing.RunEnd(ctx, def.ID, mgr.RunID(), string(runState), streamed.Iterations)
		if err := opts.Hooks.OnRunEnd(ctx, streamed.RunResult); err != nil {
			r.logger.Warn("run end hook failed", "workflow_id", def.ID, "error", err)
		}
	}

	defer close(eventCh)
	defer func() {
		if tracer != nil {
			tracer.Flush()
			tracer.Close()
		}
	}()
	defer func() {
		if rec := recover(); rec != nil {
			err := fmt.Errorf("workflow run panicked: %v", rec)
			r.logger.Error("run panicked", "workflow_id", def.ID, "panic", rec)
			tracing.Error(ctx, def.ID, "", "workflow run panicked", err)
			r.emit(ctx, eventCh, result.StepResult{
				Type:       result.TypeError,
				IsComplete: true,
				Error:      err.Error(),
			})
			finish(result.StateFailed, "", err)
		}
	}()

	tracing.RunStart(ctx, def.ID, mgr.RunID(), opts.Input)
	if err := opts.Hooks.OnRunStart(ctx, def, opts.Input); err != nil {
		finish(result.StateFailed, "", fmt.Errorf("run start hook: %w", err))
		return
	}

	var finalOutput string
	var pendingHint string

	for {
		if err := ctx.Err(); err != nil {
			finish(result.StateFailed, finalOutput, fmt.Errorf("run canceled: %w", err))
			return
		}

		if mgr.IsTimeout() {
			r.emit(ctx, eventCh, result.StepResult{
				Type:       result.TypeError,
				IsComplete: true,
				Error:      timeoutErrMsg,
			})
			finish(result.StateTimedOut, finalOutput, errors.New(timeoutErrMsg))
			return
		}

		if mgr.IsMaxIterationsReached() {
			r.emit(ctx, eventCh, result.StepResult{
				Type:       result.TypeError,
				IsComplete: true,
				Error:      maxIterationsErrMsg,
			})
			finish(result.StateMaxIterations, finalOutput, errors.New(maxIterationsErrMsg))
			return
		}

		// A branch hint from the previous step takes priority, but only
		// while the target is still eligible; otherwise fall back to the
		// declaration-order scan.
		var step *workflow.Step
		if pendingHint != "" {
			if st := mgr.StepState(pendingHint); st != nil && st.Eligible() {
				step = def.StepByID(pendingHint)
			}
			pendingHint = ""
		}
		if step == nil {
			step = mgr.FindNextStep()
		}
		if step == nil {
			finish(result.StateCompleted, finalOutput, nil)
			return
		}

		attempt, err := mgr.RecordAttempt(step.ID)
		if err != nil {
			finish(result.StateFailed, finalOutput, err)
			return
		}

		tracing.StepStart(ctx, def.ID, step.ID, attempt)
		if err := opts.Hooks.OnStepStart(ctx, step, attempt); err != nil {
			finish(result.StateFailed, finalOutput, fmt.Errorf("step start hook: %w", err))
			return
		}

		// Snapshot so a failed step leaves no partial messages behind
		messageCount := mgr.MessageCount()

		stepResult := r.executeStep(ctx, def, step, mgr, mdl, registry, opts.RunConfig.ModelSettings, eventCh)

		if stepResult.Error != "" {
			tracing.StepEnd(ctx, def.ID, step.ID, false, errors.New(stepResult.Error))
			if rbErr := mgr.RollbackMessagesToCount(messageCount); rbErr != nil {
				r.logger.Warn("rollback failed", "step_id", step.ID, "error", rbErr)
			}
			if hcErr := mgr.HandleStepCompletion(step.ID, false, ""); hcErr != nil {
				finish(result.StateFailed, finalOutput, hcErr)
				return
			}
		} else {
			tracing.StepEnd(ctx, def.ID, step.ID, true, nil)
			if hcErr := mgr.HandleStepCompletion(step.ID, true, stepResult.Content); hcErr != nil {
				finish(result.StateFailed, finalOutput, hcErr)
				return
			}
			finalOutput = stepResult.Content
			pendingHint = stepResult.NextStepID
		}

		if err := opts.Hooks.OnStepEnd(ctx, step, &stepResult); err != nil {
			finish(result.StateFailed, finalOutput, fmt.Errorf("step end hook: %w", err))
			return
		}

		mgr.AdvanceIteration()
	}
}

// emit delivers an event unless the caller's context is gone
func (r *Runner) emit(ctx context.Context, ch chan<- result.StepResult, event result.StepResult) {
	select {
	case ch <- event:
	case <-ctx.Done():
	}
}
