package state

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/agentary-ai/agentary-go/pkg/workflow"
)

// Defaults applied when the workflow definition leaves a bound unset
const (
	DefaultMaxIterations    = 10
	DefaultTimeout          = 60 * time.Second
	DefaultMaxTokenLimit    = 600
	DefaultWarningThreshold = 0.8
	DefaultMaxAttempts      = 3

	// pruneTargetRatio scales the token limit into the prune target
	pruneTargetRatio = 0.6

	// preservedHead is the number of leading messages (system + seed
	// user prompt) that survive every prune
	preservedHead = 2
)

// ErrNotInitialized is returned when state is accessed before
// InitializeState has run.
var ErrNotInitialized = errors.New("execution state not initialized")

// defaultSystemPrompt seeds memory when the workflow declares none
const defaultSystemPrompt = "You are a helpful assistant executing a multi-step workflow. " +
	"Work through each step carefully and use the available tools when they help."

// Summarizer folds evicted messages into a summary note during pruning
type Summarizer interface {
	Summarize(messages []Message) (string, error)
}

// Archiver receives messages evicted by pruning and stored tool
// results, so pruning is lossy only for the prompt window.
type Archiver interface {
	ArchiveMessages(runID string, messages []Message) error
	ArchiveToolResult(runID, key, result string) error
}

// Manager is the single source of truth for one workflow run's memory
// and progress. It is not safe for concurrent runs: construct one
// Manager per run.
type Manager struct {
	estimator  TokenEstimator
	logger     *slog.Logger
	archive    Archiver
	summarizer Summarizer

	state *ExecutionState

	// Bounds derived from the workflow at initialization
	maxIterations    int
	timeout          time.Duration
	maxTokenLimit    int
	warningThreshold float64
	memCfg           workflow.MemoryConfig
}

// NewManager creates a state manager using the given token estimator.
// A nil estimator falls back to the character heuristic.
func NewManager(estimator TokenEstimator) *Manager {
	if estimator == nil {
		estimator = HeuristicEstimator{}
	}
	return &Manager{
		estimator: estimator,
		logger:    slog.Default(),
	}
}

// WithLogger sets the logger for the manager
func (m *Manager) WithLogger(logger *slog.Logger) *Manager {
	if logger != nil {
		m.logger = logger
	}
	return m
}

// WithArchive sets an archive for evicted messages and tool results
func (m *Manager) WithArchive(archive Archiver) *Manager {
	m.archive = archive
	return m
}

// WithSummarizer sets the summarizer used when the workflow's memory
// config enables summarization
func (m *Manager) WithSummarizer(summarizer Summarizer) *Manager {
	m.summarizer = summarizer
	return m
}

// InitializeState builds the execution state for a new run: seed
// messages, per-step bookkeeping, and the bounds derived from the
// workflow definition.
func (m *Manager) InitializeState(userPrompt string, wf *workflow.Definition) *ExecutionState {
	systemPrompt := wf.SystemPrompt
	if systemPrompt == "" {
		systemPrompt = defaultSystemPrompt
	}

	steps := make(map[string]*StepState, len(wf.Steps))
	for i := range wf.Steps {
		def := &wf.Steps[i]
		maxAttempts := def.MaxAttempts
		if maxAttempts <= 0 {
			maxAttempts = DefaultMaxAttempts
		}
		steps[def.ID] = &StepState{
			ID:          def.ID,
			Description: def.Description,
			MaxAttempts: maxAttempts,
		}
	}

	m.maxIterations = wf.MaxIterations
	if m.maxIterations <= 0 {
		m.maxIterations = DefaultMaxIterations
	}
	m.timeout = wf.Timeout()
	if m.timeout <= 0 {
		m.timeout = DefaultTimeout
	}
	m.maxTokenLimit = wf.Memory.MaxTokenLimit
	if m.maxTokenLimit <= 0 {
		m.maxTokenLimit = DefaultMaxTokenLimit
	}
	m.warningThreshold = wf.Memory.WarningThreshold
	if m.warningThreshold <= 0 {
		m.warningThreshold = DefaultWarningThreshold
	}
	m.memCfg = wf.Memory

	m.state = &ExecutionState{
		RunID:          uuid.NewString(),
		Workflow:       wf,
		StartTime:      time.Now(),
		Iteration:      1,
		CompletedSteps: make(map[string]bool),
		Memory: Memory{
			Messages: []Message{
				{Role: "system", Content: systemPrompt},
				{Role: "user", Content: userPrompt},
			},
			ToolResults: make(map[string]interface{}),
			Steps:       steps,
		},
	}
	m.recomputeMetrics()
	return m.state
}

// State returns the current execution state, nil before initialization
func (m *Manager) State() *ExecutionState {
	return m.state
}

// RunID returns the current run's identifier
func (m *Manager) RunID() string {
	if m.state == nil {
		return ""
	}
	return m.state.RunID
}

// Messages returns a copy of the current message list
func (m *Manager) Messages() []Message {
	if m.state == nil {
		return nil
	}
	out := make([]Message, len(m.state.Memory.Messages))
	copy(out, m.state.Memory.Messages)
	return out
}

// MessageCount returns the current message list length
func (m *Manager) MessageCount() int {
	if m.state == nil {
		return 0
	}
	return len(m.state.Memory.Messages)
}

// Metrics returns the current memory metrics
func (m *Manager) Metrics() MemoryMetrics {
	if m.state == nil {
		return MemoryMetrics{}
	}
	return m.state.Metrics
}

// AddMessagesToMemory appends messages, recomputes the token estimate,
// and checks memory pressure. Pruning is skipped for the workflow's
// final step, where truncating history buys nothing.
func (m *Manager) AddMessagesToMemory(messages []Message, skipPruning bool) error {
	if m.state == nil {
		return ErrNotInitialized
	}

	m.state.Memory.Messages = append(m.state.Memory.Messages, messages...)
	m.recomputeMetrics()

	if !skipPruning {
		m.checkMemoryPressure()
	}
	return nil
}

// checkMemoryPressure warns when estimated tokens cross the threshold
// and prunes when the workflow's memory config allows it.
func (m *Manager) checkMemoryPressure() {
	threshold := int(float64(m.maxTokenLimit) * m.warningThreshold)
	if m.state.CurrentTokens <= threshold {
		return
	}

	m.logger.Warn("memory pressure",
		"run_id", m.state.RunID,
		"estimated_tokens", m.state.CurrentTokens,
		"max_token_limit", m.maxTokenLimit,
		"threshold", threshold,
	)

	if m.memCfg.EnablePruning {
		m.pruneToTarget(int(float64(m.maxTokenLimit) * pruneTargetRatio))
	}
}

// pruneToTarget evicts middle messages until the estimate fits under
// target. The first two messages (system + seed user prompt) are always
// retained verbatim; the newest suffix that fits the remaining budget
// survives, re-assembled in chronological order. Pruning when already
// under target is a no-op.
func (m *Manager) pruneToTarget(target int) {
	if m.state.CurrentTokens <= target {
		return
	}
	if len(m.state.Memory.Messages) <= preservedHead {
		return
	}

	head := m.state.Memory.Messages[:preservedHead]
	rest := m.state.Memory.Messages[preservedHead:]

	budget := target
	for _, msg := range head {
		budget -= m.estimator.EstimateTokens(msg.Content)
	}

	// Walk newest to oldest, keeping the suffix that fits.
	keepFrom := len(rest)
	used := 0
	for i := len(rest) - 1; i >= 0; i-- {
		cost := m.estimator.EstimateTokens(rest[i].Content)
		if used+cost > budget {
			break
		}
		used += cost
		keepFrom = i
	}

	evicted := rest[:keepFrom]
	if len(evicted) == 0 {
		return
	}

	kept := make([]Message, 0, preservedHead+1+len(rest)-keepFrom)
	kept = append(kept, head...)

	if m.memCfg.EnableSummarization && m.summarizer != nil {
		note, err := m.summarizer.Summarize(evicted)
		if err != nil {
			m.logger.Warn("summarization failed, pruning without summary",
				"run_id", m.state.RunID, "error", err)
		} else if note != "" {
			kept = append(kept, Message{Role: "system", Content: note})
			m.state.Metrics.SummarizationCount++
		}
	}
	kept = append(kept, rest[keepFrom:]...)

	if m.archive != nil {
		archived := make([]Message, len(evicted))
		copy(archived, evicted)
		if err := m.archive.ArchiveMessages(m.state.RunID, archived); err != nil {
			m.logger.Warn("failed to archive evicted messages",
				"run_id", m.state.RunID, "error", err)
		}
	}

	before := m.state.CurrentTokens
	m.state.Memory.Messages = kept
	m.state.Metrics.PruneCount++
	m.recomputeMetrics()

	m.logger.Info("pruned memory",
		"run_id", m.state.RunID,
		"evicted_messages", len(evicted),
		"tokens_before", before,
		"tokens_after", m.state.CurrentTokens,
		"target", target,
	)
}

// RollbackMessagesToCount truncates the message list back to a prior
// length, undoing speculative additions after a failed step. No-op if
// already at or below the target count.
func (m *Manager) RollbackMessagesToCount(targetCount int) error {
	if m.state == nil {
		return ErrNotInitialized
	}
	if targetCount < 0 || len(m.state.Memory.Messages) <= targetCount {
		return nil
	}
	m.state.Memory.Messages = m.state.Memory.Messages[:targetCount]
	m.recomputeMetrics()
	return nil
}

// AddToolResultToMemory stores a tool result under "step_<id>" when the
// workflow's memory config enables tool-result storage.
func (m *Manager) AddToolResultToMemory(stepID string, result interface{}) error {
	if m.state == nil {
		return ErrNotInitialized
	}
	if !m.memCfg.StoreToolResults {
		return nil
	}

	key := "step_" + stepID
	m.state.Memory.ToolResults[key] = result

	if m.archive != nil {
		if err := m.archive.ArchiveToolResult(m.state.RunID, key, fmt.Sprintf("%v", result)); err != nil {
			m.logger.Warn("failed to archive tool result",
				"run_id", m.state.RunID, "step_id", stepID, "error", err)
		}
	}
	return nil
}

// FindNextStep returns the first step in declaration order that is
// neither complete nor out of attempts, or nil when none remain.
// Declaration order is authoritative; no priority graph is consulted.
func (m *Manager) FindNextStep() *workflow.Step {
	if m.state == nil {
		return nil
	}
	for i := range m.state.Workflow.Steps {
		def := &m.state.Workflow.Steps[i]
		if st := m.state.Memory.Steps[def.ID]; st != nil && st.Eligible() {
			return def
		}
	}
	return nil
}

// RecordAttempt increments the step's attempt counter and returns the
// new attempt number. The workflow executor calls this before every
// execution attempt, so retry eligibility needs no caller involvement.
func (m *Manager) RecordAttempt(stepID string) (int, error) {
	if m.state == nil {
		return 0, ErrNotInitialized
	}
	st, ok := m.state.Memory.Steps[stepID]
	if !ok {
		return 0, fmt.Errorf("unknown step %q", stepID)
	}
	st.Attempts++
	return st.Attempts, nil
}

// HandleStepCompletion records a step's outcome. The step joins
// CompletedSteps only when complete is true; a failed step stays
// eligible for the next scan while attempts remain.
func (m *Manager) HandleStepCompletion(stepID string, complete bool, result string) error {
	if m.state == nil {
		return ErrNotInitialized
	}
	st, ok := m.state.Memory.Steps[stepID]
	if !ok {
		return fmt.Errorf("unknown step %q", stepID)
	}

	st.Complete = complete
	st.Result = result
	if complete {
		m.state.CompletedSteps[stepID] = true
	}
	m.recomputeMetrics()
	return nil
}

// StepState returns the bookkeeping record for a step, or nil
func (m *Manager) StepState(stepID string) *StepState {
	if m.state == nil {
		return nil
	}
	return m.state.Memory.Steps[stepID]
}

// IsTimeout reports whether the run's wall-clock budget is exhausted
func (m *Manager) IsTimeout() bool {
	if m.state == nil {
		return false
	}
	return time.Since(m.state.StartTime) > m.timeout
}

// IsMaxIterationsReached reports whether the iteration budget is
// exhausted. Iterations count from 1, so a budget of n allows exactly n
// step executions.
func (m *Manager) IsMaxIterationsReached() bool {
	if m.state == nil {
		return false
	}
	return m.state.Iteration > m.maxIterations
}

// AdvanceIteration moves the run to the next iteration
func (m *Manager) AdvanceIteration() {
	if m.state == nil {
		return
	}
	m.state.Iteration++
}

// Iteration returns the current iteration number
func (m *Manager) Iteration() int {
	if m.state == nil {
		return 0
	}
	return m.state.Iteration
}

// MaxIterations returns the derived iteration budget
func (m *Manager) MaxIterations() int {
	return m.maxIterations
}

// IsLastStep reports whether no step after stepID in declaration order
// remains both incomplete and retry-eligible.
func (m *Manager) IsLastStep(stepID string) bool {
	if m.state == nil {
		return false
	}
	idx := m.state.Workflow.StepIndex(stepID)
	if idx < 0 {
		return false
	}
	for i := idx + 1; i < len(m.state.Workflow.Steps); i++ {
		if st := m.state.Memory.Steps[m.state.Workflow.Steps[i].ID]; st != nil && st.Eligible() {
			return false
		}
	}
	return true
}

// recomputeMetrics refreshes counts and the token estimate after any
// message-list mutation.
func (m *Manager) recomputeMetrics() {
	tokens := 0
	for _, msg := range m.state.Memory.Messages {
		tokens += m.estimator.EstimateTokens(msg.Content)
	}

	resultBytes, resultCount := 0, 0
	for _, st := range m.state.Memory.Steps {
		if st.Result != "" {
			resultBytes += len(st.Result)
			resultCount++
		}
	}
	avg := 0
	if resultCount > 0 {
		avg = resultBytes / resultCount
	}

	m.state.CurrentTokens = tokens
	m.state.Metrics.MessageCount = len(m.state.Memory.Messages)
	m.state.Metrics.EstimatedTokens = tokens
	m.state.Metrics.AvgStepResultSize = avg
	m.state.Metrics.MaxTokenLimit = m.maxTokenLimit
	m.state.Metrics.WarningThreshold = m.warningThreshold
}
