package tracing

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Event types for tracing
const (
	EventTypeRunStart      = "run_start"
	EventTypeRunEnd        = "run_end"
	EventTypeStepStart     = "step_start"
	EventTypeStepEnd       = "step_end"
	EventTypeToolCall      = "tool_call"
	EventTypeToolResult    = "tool_result"
	EventTypeModelRequest  = "model_request"
	EventTypeModelResponse = "model_response"
	EventTypeMemoryPrune   = "memory_prune"
	EventTypeError         = "error"
)

// Event is a trace event
type Event struct {
	Type       string                 `json:"type"`
	WorkflowID string                 `json:"workflow_id,omitempty"`
	StepID     string                 `json:"step_id,omitempty"`
	Timestamp  time.Time              `json:"timestamp"`
	Details    map[string]interface{} `json:"details,omitempty"`
	Error      string                 `json:"error,omitempty"`
}

// Tracer is the interface for tracing
type Tracer interface {
	// RecordEvent records an event
	RecordEvent(ctx context.Context, event Event)

	// Flush flushes any buffered events
	Flush() error

	// Close closes the tracer
	Close() error
}

// FileTracer is a tracer that logs to a file
type FileTracer struct {
	filePath string
	file     *os.File
	mu       sync.Mutex
}

// NewFileTracer creates a new file tracer for a workflow
func NewFileTracer(workflowID string) (*FileTracer, error) {
	// Sanitize workflow id to prevent directory traversal
	sanitized := strings.ReplaceAll(workflowID, "/", "_")
	sanitized = strings.ReplaceAll(sanitized, "\\", "_")
	sanitized = strings.ReplaceAll(sanitized, "..", "_")
	sanitized = strings.ReplaceAll(sanitized, ":", "_")

	fileName := fmt.Sprintf("trace_%s.log", sanitized)

	currentDir, err := filepath.Abs(".")
	if err != nil {
		return nil, fmt.Errorf("failed to get current directory: %w", err)
	}

	filePath := filepath.Clean(filepath.Join(currentDir, fileName))

	// Verify path is within the current directory
	if !strings.HasPrefix(filePath, currentDir) {
		return nil, fmt.Errorf("invalid file path: path escapes the intended directory")
	}

	file, err := os.OpenFile(filePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to open file %s: %w", filePath, err)
	}

	return &FileTracer{
		filePath: filePath,
		file:     file,
	}, nil
}

// RecordEvent records an event to the file
func (t *FileTracer) RecordEvent(ctx context.Context, event Event) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	data, err := json.Marshal(event)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to marshal event: %v\n", err)
		return
	}

	if _, err := t.file.Write(append(data, '\n')); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to write event: %v\n", err)
	}
}

// Flush flushes any buffered events
func (t *FileTracer) Flush() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.file.Sync()
}

// Close closes the tracer
func (t *FileTracer) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.file.Close()
}

// NoopTracer is a tracer that does nothing
type NoopTracer struct{}

// RecordEvent does nothing
func (t *NoopTracer) RecordEvent(ctx context.Context, event Event) {}

// Flush does nothing
func (t *NoopTracer) Flush() error { return nil }

// Close does nothing
func (t *NoopTracer) Close() error { return nil }

// Global tracer
var globalTracer Tracer = &NoopTracer{}
var globalTracerMu sync.Mutex

// SetGlobalTracer sets the global tracer
func SetGlobalTracer(tracer Tracer) {
	globalTracerMu.Lock()
	defer globalTracerMu.Unlock()

	globalTracer = tracer
}

// GetGlobalTracer gets the global tracer
func GetGlobalTracer() Tracer {
	globalTracerMu.Lock()
	defer globalTracerMu.Unlock()

	return globalTracer
}

// RecordEvent records an event to the global tracer
func RecordEvent(ctx context.Context, event Event) {
	GetGlobalTracer().RecordEvent(ctx, event)
}

// TraceForWorkflow creates a tracer for a workflow
func TraceForWorkflow(workflowID string) (Tracer, error) {
	return NewFileTracer(workflowID)
}
