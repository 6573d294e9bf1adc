package tool

import (
	"context"
	"errors"
	"sync"
)

// ErrNoImplementation is returned when a tool is executed but no handler
// function was registered for it.
var ErrNoImplementation = errors.New("tool has no implementation")

// Tool defines the interface for tools callable by a workflow step
type Tool interface {
	// GetName returns the tool's name
	GetName() string

	// GetDescription returns a human-readable description of the tool
	GetDescription() string

	// GetParametersSchema returns the JSON schema for the tool's parameters
	GetParametersSchema() map[string]interface{}

	// Execute invokes the tool with the parsed argument map. Arguments
	// are passed by name; tools look them up by key, never by position.
	Execute(ctx context.Context, args map[string]interface{}) (interface{}, error)
}

// ExecuteFunc is the signature of a tool implementation
type ExecuteFunc func(ctx context.Context, args map[string]interface{}) (interface{}, error)

// FunctionTool wraps a Go function as a Tool
type FunctionTool struct {
	// Name is the tool's name
	Name string

	// Description is a human-readable description of the tool
	Description string

	// Schema is the JSON schema for the tool's parameters
	Schema map[string]interface{}

	// Internal state
	executeFn ExecuteFunc
	mu        sync.RWMutex
}

// NewFunctionTool creates a new function tool
func NewFunctionTool(name, description string, fn ExecuteFunc) *FunctionTool {
	return &FunctionTool{
		Name:        name,
		Description: description,
		executeFn:   fn,
	}
}

// WithSchema sets the parameters schema for the tool
func (t *FunctionTool) WithSchema(schema map[string]interface{}) *FunctionTool {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Schema = schema
	return t
}

// GetName returns the tool's name
func (t *FunctionTool) GetName() string {
	return t.Name
}

// GetDescription returns the tool's description
func (t *FunctionTool) GetDescription() string {
	return t.Description
}

// GetParametersSchema returns the tool's parameters schema
func (t *FunctionTool) GetParametersSchema() map[string]interface{} {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.Schema == nil {
		// A tool without a declared schema accepts any object
		return map[string]interface{}{
			"type":       "object",
			"properties": map[string]interface{}{},
		}
	}
	return t.Schema
}

// Execute invokes the tool's implementation with the parsed arguments
func (t *FunctionTool) Execute(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	t.mu.RLock()
	fn := t.executeFn
	t.mu.RUnlock()

	if fn == nil {
		return nil, ErrNoImplementation
	}
	return fn(ctx, args)
}

// HasImplementation reports whether the tool can actually be executed.
// Tools may be declared schema-only so the model can see them while the
// host handles dispatch elsewhere.
func (t *FunctionTool) HasImplementation() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.executeFn != nil
}
