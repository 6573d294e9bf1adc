// Package result defines the values the engine reports back to callers:
// per-step streamed events and the final run outcome.
package result

import "time"

// ResultType tags a streamed step event
type ResultType string

const (
	// TypeThinking signals that a step has started working
	TypeThinking ResultType = "thinking"

	// TypeToolCall carries a tool invocation or its result
	TypeToolCall ResultType = "tool_call"

	// TypeDecision carries a decision step's completed output
	TypeDecision ResultType = "decision"

	// TypeResponse carries a chat/response step's completed output
	TypeResponse ResultType = "response"

	// TypeError carries a step failure
	TypeError ResultType = "error"
)

// ToolCallRecord captures one tool invocation
type ToolCallRecord struct {
	// Name is the tool that was called
	Name string `json:"name"`

	// Args are the named arguments passed to the tool
	Args map[string]interface{} `json:"args,omitempty"`

	// Result is the tool's output, empty on the invocation event
	Result interface{} `json:"result,omitempty"`
}

// StepResult is one event on a run's stream. A step emits a thinking
// event when it starts, zero or more tool_call events, and exactly one
// terminal event: its profile's result type on success or an error
// event on failure.
type StepResult struct {
	// StepID is the step this event belongs to
	StepID string `json:"step_id"`

	// Type tags the event
	Type ResultType `json:"type"`

	// Content is the event's payload text
	Content string `json:"content,omitempty"`

	// IsComplete marks the step's terminal event
	IsComplete bool `json:"is_complete"`

	// NextStepID is the branch hint resolved from the step's output,
	// set only on the terminal event when a branch matched
	NextStepID string `json:"next_step_id,omitempty"`

	// ToolCall is set on tool_call events, and carried again on the
	// terminal event when the step dispatched a tool
	ToolCall *ToolCallRecord `json:"tool_call,omitempty"`

	// Error is set on error events
	Error string `json:"error,omitempty"`

	// Metadata carries ancillary detail such as duration, run id and
	// stripped thinking content
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// NewThinking creates the step-start event
func NewThinking(stepID, content string) StepResult {
	return StepResult{StepID: stepID, Type: TypeThinking, Content: content}
}

// NewToolCall creates a tool invocation or tool result event
func NewToolCall(stepID string, record ToolCallRecord) StepResult {
	rec := record
	return StepResult{StepID: stepID, Type: TypeToolCall, ToolCall: &rec}
}

// NewError creates a terminal error event
func NewError(stepID string, err error) StepResult {
	return StepResult{StepID: stepID, Type: TypeError, IsComplete: true, Error: err.Error()}
}

// RunState describes how a run ended
type RunState string

const (
	// StateCompleted means every step finished or was exhausted and the
	// run produced a final output
	StateCompleted RunState = "completed"

	// StateTimedOut means the run hit its wall-clock budget
	StateTimedOut RunState = "timed_out"

	// StateMaxIterations means the run hit its iteration budget
	StateMaxIterations RunState = "max_iterations_exceeded"

	// StateFailed means the run aborted on an internal error
	StateFailed RunState = "failed"
)

// RunResult is the final outcome of one workflow run. It is populated
// when the stream closes; read IsComplete on the StreamedRunResult
// first.
type RunResult struct {
	// RunID uniquely identifies the run
	RunID string `json:"run_id"`

	// WorkflowID is the workflow that ran
	WorkflowID string `json:"workflow_id"`

	// State describes how the run ended
	State RunState `json:"state"`

	// FinalOutput is the last completed step's content
	FinalOutput string `json:"final_output,omitempty"`

	// Iterations is the number of step executions performed
	Iterations int `json:"iterations"`

	// Duration is the run's wall-clock time
	Duration time.Duration `json:"duration"`

	// Error is set when State is failed
	Error string `json:"error,omitempty"`
}

// StreamedRunResult couples the live event stream with the final run
// outcome. The embedded RunResult fields are valid once the stream is
// drained and IsComplete is true.
type StreamedRunResult struct {
	*RunResult

	// Stream delivers step events as they happen; closed when the run
	// ends
	Stream <-chan StepResult

	// IsComplete is set by the engine just before Stream closes
	IsComplete bool
}
