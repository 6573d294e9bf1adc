package tracing

import (
	"context"
	"time"
)

// RunStart records a workflow run start event
func RunStart(ctx context.Context, workflowID string, runID string, input interface{}) {
	RecordEventContext(ctx, Event{
		Type:       EventTypeRunStart,
		WorkflowID: workflowID,
		Timestamp:  time.Now(),
		Details: map[string]interface{}{
			"run_id": runID,
			"input":  input,
		},
	})
}

// RunEnd records a workflow run end event
func RunEnd(ctx context.Context, workflowID string, runID string, state string, iterations int) {
	RecordEventContext(ctx, Event{
		Type:       EventTypeRunEnd,
		WorkflowID: workflowID,
		Timestamp:  time.Now(),
		Details: map[string]interface{}{
			"run_id":     runID,
			"state":      state,
			"iterations": iterations,
		},
	})
}

// StepStart records a step start event
func StepStart(ctx context.Context, workflowID string, stepID string, attempt int) {
	RecordEventContext(ctx, Event{
		Type:       EventTypeStepStart,
		WorkflowID: workflowID,
		StepID:     stepID,
		Timestamp:  time.Now(),
		Details: map[string]interface{}{
			"attempt": attempt,
		},
	})
}

// StepEnd records a step end event
func StepEnd(ctx context.Context, workflowID string, stepID string, complete bool, err error) {
	event := Event{
		Type:       EventTypeStepEnd,
		WorkflowID: workflowID,
		StepID:     stepID,
		Timestamp:  time.Now(),
		Details: map[string]interface{}{
			"complete": complete,
		},
	}
	if err != nil {
		event.Error = err.Error()
	}

	RecordEventContext(ctx, event)
}

// ToolCall records a tool call event
func ToolCall(ctx context.Context, workflowID string, stepID string, toolName string, args interface{}) {
	RecordEventContext(ctx, Event{
		Type:       EventTypeToolCall,
		WorkflowID: workflowID,
		StepID:     stepID,
		Timestamp:  time.Now(),
		Details: map[string]interface{}{
			"tool_name": toolName,
			"args":      args,
		},
	})
}

// ToolResult records a tool result event
func ToolResult(ctx context.Context, workflowID string, stepID string, toolName string, result interface{}, err error) {
	event := Event{
		Type:       EventTypeToolResult,
		WorkflowID: workflowID,
		StepID:     stepID,
		Timestamp:  time.Now(),
		Details: map[string]interface{}{
			"tool_name": toolName,
			"result":    result,
		},
	}
	if err != nil {
		event.Error = err.Error()
	}

	RecordEventContext(ctx, event)
}

// ModelRequest records a model request event
func ModelRequest(ctx context.Context, workflowID string, stepID string, task string, tools int) {
	RecordEventContext(ctx, Event{
		Type:       EventTypeModelRequest,
		WorkflowID: workflowID,
		StepID:     stepID,
		Timestamp:  time.Now(),
		Details: map[string]interface{}{
			"task":  task,
			"tools": tools,
		},
	})
}

// ModelResponse records a model response event
func ModelResponse(ctx context.Context, workflowID string, stepID string, chars int, err error) {
	event := Event{
		Type:       EventTypeModelResponse,
		WorkflowID: workflowID,
		StepID:     stepID,
		Timestamp:  time.Now(),
		Details: map[string]interface{}{
			"chars": chars,
		},
	}
	if err != nil {
		event.Error = err.Error()
	}

	RecordEventContext(ctx, event)
}

// MemoryPrune records a memory prune event
func MemoryPrune(ctx context.Context, workflowID string, evicted int, tokensAfter int) {
	RecordEventContext(ctx, Event{
		Type:       EventTypeMemoryPrune,
		WorkflowID: workflowID,
		Timestamp:  time.Now(),
		Details: map[string]interface{}{
			"evicted":      evicted,
			"tokens_after": tokensAfter,
		},
	})
}

// Error records an error event
func Error(ctx context.Context, workflowID string, stepID string, message string, err error) {
	event := Event{
		Type:       EventTypeError,
		WorkflowID: workflowID,
		StepID:     stepID,
		Timestamp:  time.Now(),
		Details: map[string]interface{}{
			"message": message,
		},
	}
	if err != nil {
		event.Error = err.Error()
	}

	RecordEventContext(ctx, event)
}
