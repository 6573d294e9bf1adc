// Package state owns the mutable execution state for one workflow run:
// conversational memory, token accounting and pruning, and per-step
// attempt/completion bookkeeping. All mutation goes through a Manager;
// one Manager serves exactly one run.
package state

import (
	"time"

	"github.com/agentary-ai/agentary-go/pkg/workflow"
)

// Message is one entry in conversational memory
type Message struct {
	// Role is the speaker: system, user, assistant or tool
	Role string `json:"role"`

	// Content is the message text
	Content string `json:"content"`
}

// StepState tracks one step's execution bookkeeping. A step is eligible
// for execution iff !Complete && Attempts < MaxAttempts.
type StepState struct {
	ID          string
	Description string
	Complete    bool
	Attempts    int
	MaxAttempts int
	Result      string
}

// Eligible reports whether the step may still be executed
func (s *StepState) Eligible() bool {
	return !s.Complete && s.Attempts < s.MaxAttempts
}

// MemoryMetrics summarizes memory health; recomputed after every
// message-list mutation.
type MemoryMetrics struct {
	MessageCount       int
	EstimatedTokens    int
	PruneCount         int
	SummarizationCount int
	AvgStepResultSize  int
	MaxTokenLimit      int
	WarningThreshold   float64
}

// Memory is the conversational memory for one run. The message list
// always begins with the system message and the seed user prompt; those
// two survive every prune.
type Memory struct {
	Messages    []Message
	ToolResults map[string]interface{}
	Steps       map[string]*StepState
}

// ExecutionState is the single mutable root for one workflow run
type ExecutionState struct {
	// RunID uniquely identifies this run
	RunID string

	// Workflow is the immutable definition being executed
	Workflow *workflow.Definition

	// StartTime anchors the timeout check
	StartTime time.Time

	// Iteration counts step executions, starting at 1
	Iteration int

	// CompletedSteps holds the ids of successfully completed steps
	CompletedSteps map[string]bool

	// Memory is the run's conversational memory
	Memory Memory

	// Metrics summarizes memory health
	Metrics MemoryMetrics

	// CurrentTokens is the estimated token cost of Memory.Messages
	CurrentTokens int
}
