package model

import (
	"context"
)

// Generation task hints passed through to providers. A provider may use
// the hint to pick sampling presets or prompt scaffolding; it may also
// ignore it entirely.
const (
	TaskReasoning = "reasoning"
	TaskToolUse   = "tool_use"
	TaskDecision  = "decision"
	TaskChat      = "chat"
)

// Request represents a generation request sent to a model
type Request struct {
	// SystemInstructions is the rendered system prompt
	SystemInstructions string

	// Input is the user input: a string, or a list of message maps
	// ({"type": "message", "role": ..., "content": ...})
	Input interface{}

	// Tools are tool schemas in OpenAI function format. Only schemas
	// cross this boundary; tool implementations never do.
	Tools []interface{}

	// GenerationTask is a hint describing the kind of output wanted
	GenerationTask string

	// Settings are sampling parameters
	Settings *Settings
}

// Response represents a complete, non-streamed response from a model
type Response struct {
	Content string
	Usage   *Usage
}

// Usage represents token usage information
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// Chunk is a single unit of streamed model output. The terminal chunk
// has IsLast set and carries no token.
type Chunk struct {
	Token   string
	IsFirst bool
	IsLast  bool
	Error   error
}

// Settings configures model-specific sampling parameters
type Settings struct {
	Temperature *float64
	TopP        *float64
	MaxTokens   *int
}

// Model defines the interface for interacting with LLMs
type Model interface {
	// GetResponse gets a single, complete response from the model
	GetResponse(ctx context.Context, request *Request) (*Response, error)

	// StreamResponse streams a response from the model as token chunks
	StreamResponse(ctx context.Context, request *Request) (<-chan Chunk, error)
}

// Provider is responsible for looking up Models by name
type Provider interface {
	// GetModel returns a model by name
	GetModel(modelName string) (Model, error)
}
