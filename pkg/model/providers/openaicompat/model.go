package openaicompat

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/agentary-ai/agentary-go/pkg/model"
)

// Model implements model.Model against a chat-completions endpoint
type Model struct {
	// Configuration
	ModelName string
	Provider  *Provider
}

// ChatMessage represents a message in a chat
type ChatMessage struct {
	Role      string                `json:"role"`
	Content   string                `json:"content,omitempty"`
	Name      string                `json:"name,omitempty"`
	ToolCalls []ChatMessageToolCall `json:"tool_calls,omitempty"`
}

// ChatMessageToolCall represents a tool call in a chat message
type ChatMessageToolCall struct {
	ID       string                      `json:"id"`
	Type     string                      `json:"type"`
	Function ChatMessageToolCallFunction `json:"function"`
}

// ChatMessageToolCallFunction represents a function in a tool call
type ChatMessageToolCallFunction struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// ChatTool represents a tool in a chat
type ChatTool struct {
	Type     string           `json:"type"`
	Function ChatToolFunction `json:"function"`
}

// ChatToolFunction represents a function in a tool
type ChatToolFunction struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	Parameters  map[string]interface{} `json:"parameters"`
}

// ChatCompletionRequest represents a request to the chat completions API
type ChatCompletionRequest struct {
	Model       string        `json:"model"`
	Messages    []ChatMessage `json:"messages"`
	Tools       []ChatTool    `json:"tools,omitempty"`
	Temperature float64       `json:"temperature,omitempty"`
	TopP        float64       `json:"top_p,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Stream      bool          `json:"stream,omitempty"`
}

// ChatCompletionResponse represents a response from the chat completions API
type ChatCompletionResponse struct {
	ID      string                 `json:"id"`
	Object  string                 `json:"object"`
	Created int64                  `json:"created"`
	Model   string                 `json:"model"`
	Choices []ChatCompletionChoice `json:"choices"`
	Usage   ChatCompletionUsage    `json:"usage"`
}

// ChatCompletionChoice represents a choice in a chat completion response
type ChatCompletionChoice struct {
	Index        int         `json:"index"`
	Message      ChatMessage `json:"message"`
	FinishReason string      `json:"finish_reason"`
}

// ChatCompletionUsage represents usage information in a chat completion response
type ChatCompletionUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// GetResponse gets a single response from the model
func (m *Model) GetResponse(ctx context.Context, request *model.Request) (*model.Response, error) {
	chatRequest := m.constructRequest(request)

	requestBody, err := json.Marshal(chatRequest)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpResponse, err := m.send(ctx, requestBody)
	if err != nil {
		return nil, err
	}
	defer httpResponse.Body.Close()

	if httpResponse.StatusCode != http.StatusOK {
		return nil, m.handleError(httpResponse)
	}

	responseBody, err := io.ReadAll(httpResponse.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var chatResponse ChatCompletionResponse
	if err := json.Unmarshal(responseBody, &chatResponse); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	return m.parseResponse(&chatResponse)
}

// StreamResponse streams a response from the model as token chunks.
// Structured tool calls from the API are serialized into tagged
// tool-call text so downstream parsing is uniform.
func (m *Model) StreamResponse(ctx context.Context, request *model.Request) (<-chan model.Chunk, error) {
	chatRequest := m.constructRequest(request)
	chatRequest.Stream = true

	requestBody, err := json.Marshal(chatRequest)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpResponse, err := m.send(ctx, requestBody)
	if err != nil {
		return nil, err
	}

	if httpResponse.StatusCode != http.StatusOK {
		defer httpResponse.Body.Close()
		return nil, m.handleError(httpResponse)
	}

	chunkChan := make(chan model.Chunk)

	go func() {
		defer httpResponse.Body.Close()
		defer close(chunkChan)

		scanner := bufio.NewScanner(httpResponse.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

		first := true
		toolCalls := make(map[int]*ChatMessageToolCallFunction)

		emit := func(chunk model.Chunk) bool {
			select {
			case chunkChan <- chunk:
				return true
			case <-ctx.Done():
				return false
			}
		}

		for scanner.Scan() {
			line := scanner.Text()

			if line == "" || !strings.HasPrefix(line, "data: ") {
				continue
			}
			data := strings.TrimPrefix(line, "data: ")

			if data == "[DONE]" {
				break
			}

			var chunk struct {
				Choices []struct {
					Delta struct {
						Content   string `json:"content"`
						ToolCalls []struct {
							Index    int    `json:"index"`
							Function struct {
								Name      string `json:"name"`
								Arguments string `json:"arguments"`
							} `json:"function"`
						} `json:"tool_calls"`
					} `json:"delta"`
					FinishReason string `json:"finish_reason"`
				} `json:"choices"`
			}

			if err := json.Unmarshal([]byte(data), &chunk); err != nil {
				emit(model.Chunk{Error: fmt.Errorf("failed to parse chunk: %w", err)})
				return
			}

			if len(chunk.Choices) == 0 {
				continue
			}
			choice := chunk.Choices[0]

			if choice.Delta.Content != "" {
				if !emit(model.Chunk{Token: choice.Delta.Content, IsFirst: first}) {
					return
				}
				first = false
			}

			// Accumulate structured tool-call fragments per index
			for _, tc := range choice.Delta.ToolCalls {
				acc, ok := toolCalls[tc.Index]
				if !ok {
					acc = &ChatMessageToolCallFunction{}
					toolCalls[tc.Index] = acc
				}
				if tc.Function.Name != "" {
					acc.Name = tc.Function.Name
				}
				acc.Arguments += tc.Function.Arguments
			}

			if choice.FinishReason != "" {
				break
			}
		}

		if err := scanner.Err(); err != nil {
			emit(model.Chunk{Error: fmt.Errorf("error reading stream: %w", err)})
			return
		}

		// Flush accumulated tool calls as tagged text
		for i := 0; i < len(toolCalls); i++ {
			acc, ok := toolCalls[i]
			if !ok || acc.Name == "" {
				continue
			}
			if !emit(model.Chunk{Token: serializeToolCall(acc), IsFirst: first}) {
				return
			}
			first = false
		}

		emit(model.Chunk{IsLast: true})
	}()

	return chunkChan, nil
}

// send posts the request body to the chat-completions endpoint
func (m *Model) send(ctx context.Context, body []byte) (*http.Response, error) {
	httpRequest, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		fmt.Sprintf("%s/chat/completions", m.Provider.BaseURL),
		bytes.NewReader(body),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}

	httpRequest.Header.Set("Content-Type", "application/json")
	if m.Provider.APIKey != "" {
		httpRequest.Header.Set("Authorization", fmt.Sprintf("Bearer %s", m.Provider.APIKey))
	}

	httpResponse, err := m.Provider.HTTPClient.Do(httpRequest)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	return httpResponse, nil
}

// constructRequest constructs a chat completion request from a model request
func (m *Model) constructRequest(request *model.Request) *ChatCompletionRequest {
	chatRequest := &ChatCompletionRequest{
		Model:    m.ModelName,
		Messages: make([]ChatMessage, 0),
	}

	// Add system message if provided
	if request.SystemInstructions != "" {
		chatRequest.Messages = append(chatRequest.Messages, ChatMessage{
			Role:    "system",
			Content: request.SystemInstructions,
		})
	}

	// Add input messages
	switch input := request.Input.(type) {
	case string:
		chatRequest.Messages = append(chatRequest.Messages, ChatMessage{
			Role:    "user",
			Content: input,
		})
	case []interface{}:
		for _, item := range input {
			message, ok := item.(map[string]interface{})
			if !ok || message["type"] != "message" {
				continue
			}
			role, _ := message["role"].(string)
			content, _ := message["content"].(string)
			if role == "" {
				continue
			}

			chatMessage := ChatMessage{Role: role, Content: content}
			if name, ok := message["name"].(string); ok && name != "" {
				chatMessage.Name = name
			}
			chatRequest.Messages = append(chatRequest.Messages, chatMessage)
		}
	}

	// Add tools if provided
	for _, t := range request.Tools {
		openAITool, ok := t.(map[string]interface{})
		if !ok || openAITool["type"] != "function" || openAITool["function"] == nil {
			continue
		}
		function, ok := openAITool["function"].(map[string]interface{})
		if !ok {
			continue
		}
		name, _ := function["name"].(string)
		description, _ := function["description"].(string)
		parameters, _ := function["parameters"].(map[string]interface{})
		if name == "" {
			continue
		}

		chatRequest.Tools = append(chatRequest.Tools, ChatTool{
			Type: "function",
			Function: ChatToolFunction{
				Name:        name,
				Description: description,
				Parameters:  parameters,
			},
		})
	}

	// Apply model settings if provided
	if request.Settings != nil {
		if request.Settings.Temperature != nil {
			chatRequest.Temperature = *request.Settings.Temperature
		}
		if request.Settings.TopP != nil {
			chatRequest.TopP = *request.Settings.TopP
		}
		if request.Settings.MaxTokens != nil {
			chatRequest.MaxTokens = *request.Settings.MaxTokens
		}
	}

	return chatRequest
}

// parseResponse parses a chat completion response into a model response
func (m *Model) parseResponse(chatResponse *ChatCompletionResponse) (*model.Response, error) {
	if len(chatResponse.Choices) == 0 {
		return nil, fmt.Errorf("no choices in response")
	}

	choice := chatResponse.Choices[0]
	content := choice.Message.Content

	// Fold structured tool calls into tagged text
	for i := range choice.Message.ToolCalls {
		if content != "" {
			content += "\n"
		}
		content += serializeToolCall(&choice.Message.ToolCalls[i].Function)
	}

	return &model.Response{
		Content: content,
		Usage: &model.Usage{
			PromptTokens:     chatResponse.Usage.PromptTokens,
			CompletionTokens: chatResponse.Usage.CompletionTokens,
			TotalTokens:      chatResponse.Usage.TotalTokens,
		},
	}, nil
}

// serializeToolCall renders a structured tool call as tagged text
func serializeToolCall(fn *ChatMessageToolCallFunction) string {
	args := json.RawMessage(fn.Arguments)
	if !json.Valid(args) {
		encoded, _ := json.Marshal(fn.Arguments)
		args = encoded
	}
	if len(args) == 0 {
		args = json.RawMessage("{}")
	}

	payload, _ := json.Marshal(map[string]interface{}{
		"name":      fn.Name,
		"arguments": args,
	})
	return fmt.Sprintf("<tool_call>%s</tool_call>", payload)
}

// handleError handles an error response from the API
func (m *Model) handleError(response *http.Response) error {
	body, err := io.ReadAll(response.Body)
	if err != nil {
		return fmt.Errorf("failed to read error response: %w", err)
	}

	var errorResponse struct {
		Error struct {
			Message string `json:"message"`
			Type    string `json:"type"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &errorResponse); err == nil && errorResponse.Error.Message != "" {
		return fmt.Errorf("API error (%s): %s", errorResponse.Error.Type, errorResponse.Error.Message)
	}

	return fmt.Errorf("API error: %s", response.Status)
}
