package runner

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/agentary-ai/agentary-go/pkg/model"
	"github.com/agentary-ai/agentary-go/pkg/parser"
	"github.com/agentary-ai/agentary-go/pkg/result"
	"github.com/agentary-ai/agentary-go/pkg/state"
	"github.com/agentary-ai/agentary-go/pkg/tool"
	"github.com/agentary-ai/agentary-go/pkg/tracing"
	"github.com/agentary-ai/agentary-go/pkg/workflow"
)

// defaultTemperature keeps step generations focused; workflow steps
// want consistency, not creativity
const defaultTemperature = 0.2

var thinkRe = regexp.MustCompile(`(?s)<think>(.*?)</think>`)

// executeStep runs one step against the model: render prompts, stream
// the generation, dispatch at most one tool call, fold the exchange
// into memory, and emit the step's events. The returned StepResult is
// the step's terminal event.
func (r *Runner) executeStep(ctx context.Context, def *workflow.Definition, step *workflow.Step,
	mgr *state.Manager, mdl model.Model, registry *tool.Registry,
	settings *model.Settings, eventCh chan<- result.StepResult) (res result.StepResult) {

	// A panicking tool or model must not take the run down
	defer func() {
		if rec := recover(); rec != nil {
			err := fmt.Errorf("step %s panicked: %v", step.ID, rec)
			tracing.Error(ctx, def.ID, step.ID, "step panicked", err)
			res = result.NewError(step.ID, err)
			r.emit(ctx, eventCh, res)
		}
	}()

	start := time.Now()

	profile, ok := step.Type.Profile()
	if !ok {
		res = result.NewError(step.ID, fmt.Errorf("step %s has unknown type %q", step.ID, step.Type))
		r.emit(ctx, eventCh, res)
		return res
	}

	r.emit(ctx, eventCh, result.NewThinking(step.ID, fmt.Sprintf("Working on: %s", step.Description)))

	// Tools are only offered to step types that allow them
	var tools []tool.Tool
	if profile.AllowsTools {
		tools = registry.Resolve(step.Tools)
	}

	systemPrompt, err := r.renderer.RenderSystem(def, step, tools)
	if err != nil {
		res = result.NewError(step.ID, err)
		r.emit(ctx, eventCh, res)
		return res
	}
	userPrompt, err := r.renderer.RenderUser(def, step)
	if err != nil {
		res = result.NewError(step.ID, err)
		r.emit(ctx, eventCh, res)
		return res
	}

	if settings == nil {
		temp := defaultTemperature
		settings = &model.Settings{Temperature: &temp}
	}

	req := &model.Request{
		SystemInstructions: systemPrompt,
		Input:              buildInput(mgr.Messages(), userPrompt),
		Tools:              tool.Schemas(tools),
		GenerationTask:     profile.GenerationTask,
		Settings:           settings,
	}

	tracing.ModelRequest(ctx, def.ID, step.ID, profile.GenerationTask, len(tools))

	raw, err := r.generate(ctx, mdl, req)
	tracing.ModelResponse(ctx, def.ID, step.ID, len(raw), err)
	if err != nil {
		res = result.NewError(step.ID, fmt.Errorf("model generation failed: %w", err))
		r.emit(ctx, eventCh, res)
		return res
	}

	thinking, cleaned := stripThinking(raw)
	content := cleaned

	// At most one tool call per step execution
	var toolRecord *result.ToolCallRecord
	if call := parser.Parse(cleaned); call != nil && profile.AllowsTools {
		if t := findTool(tools, call.Name); t != nil && hasImplementation(t) {
			r.emit(ctx, eventCh, result.NewToolCall(step.ID, result.ToolCallRecord{
				Name: call.Name,
				Args: call.Args,
			}))
			tracing.ToolCall(ctx, def.ID, step.ID, call.Name, call.Args)

			out, execErr := t.Execute(ctx, call.Args)
			tracing.ToolResult(ctx, def.ID, step.ID, call.Name, out, execErr)
			if execErr != nil {
				res = result.NewError(step.ID, fmt.Errorf("tool %s failed: %w", call.Name, execErr))
				r.emit(ctx, eventCh, res)
				return res
			}

			toolRecord = &result.ToolCallRecord{
				Name:   call.Name,
				Args:   call.Args,
				Result: out,
			}
			r.emit(ctx, eventCh, result.NewToolCall(step.ID, *toolRecord))

			if storeErr := mgr.AddToolResultToMemory(step.ID, out); storeErr != nil {
				r.logger.Warn("failed to store tool result",
					"step_id", step.ID, "error", storeErr)
			}
			content = fmt.Sprintf("Tool %s returned: %v", call.Name, out)
		}
		// A call naming an unknown or schema-only tool is treated as
		// ordinary output
	}

	nextID := step.ResolveNext(cleaned)

	// Fold the exchange into memory. Pruning is pointless on the final
	// step: there is no later generation to make room for.
	messages := []state.Message{
		{Role: "user", Content: userPrompt},
		{Role: "assistant", Content: cleaned},
	}
	before := mgr.Metrics()
	if err := mgr.AddMessagesToMemory(messages, mgr.IsLastStep(step.ID)); err != nil {
		res = result.NewError(step.ID, err)
		r.emit(ctx, eventCh, res)
		return res
	}
	if after := mgr.Metrics(); after.PruneCount > before.PruneCount {
		evicted := before.MessageCount + len(messages) - after.MessageCount
		tracing.MemoryPrune(ctx, def.ID, evicted, after.EstimatedTokens)
	}

	metadata := map[string]interface{}{
		"run_id":      mgr.RunID(),
		"duration_ms": time.Since(start).Milliseconds(),
	}
	if thinking != "" {
		metadata["thinking"] = thinking
	}

	res = result.StepResult{
		StepID:     step.ID,
		Type:       result.ResultType(profile.ResultType),
		Content:    content,
		IsComplete: true,
		NextStepID: nextID,
		ToolCall:   toolRecord,
		Metadata:   metadata,
	}
	r.emit(ctx, eventCh, res)
	return res
}

// generate streams the model's response and concatenates the tokens,
// falling back to the non-streaming path when streaming is unavailable.
func (r *Runner) generate(ctx context.Context, mdl model.Model, req *model.Request) (string, error) {
	chunks, err := mdl.StreamResponse(ctx, req)
	if err != nil {
		resp, respErr := mdl.GetResponse(ctx, req)
		if respErr != nil {
			return "", respErr
		}
		return resp.Content, nil
	}

	var b strings.Builder
	for chunk := range chunks {
		if chunk.Error != nil {
			return "", chunk.Error
		}
		if !chunk.IsLast {
			b.WriteString(chunk.Token)
		}
	}
	return b.String(), nil
}

// buildInput converts memory into the message-map input the model
// expects, replacing the leading system message (carried separately as
// system instructions) and appending the step's user prompt.
func buildInput(messages []state.Message, userPrompt string) []interface{} {
	input := make([]interface{}, 0, len(messages)+1)
	for i, msg := range messages {
		if i == 0 && msg.Role == "system" {
			continue
		}
		input = append(input, map[string]interface{}{
			"type":    "message",
			"role":    msg.Role,
			"content": msg.Content,
		})
	}
	input = append(input, map[string]interface{}{
		"type":    "message",
		"role":    "user",
		"content": userPrompt,
	})
	return input
}

// stripThinking removes <think> blocks from a generation, returning the
// stripped reasoning and the cleaned text separately.
func stripThinking(raw string) (thinking, cleaned string) {
	matches := thinkRe.FindAllStringSubmatch(raw, -1)
	parts := make([]string, 0, len(matches))
	for _, m := range matches {
		if inner := strings.TrimSpace(m[1]); inner != "" {
			parts = append(parts, inner)
		}
	}
	thinking = strings.Join(parts, "\n")
	cleaned = strings.TrimSpace(thinkRe.ReplaceAllString(raw, ""))
	return thinking, cleaned
}

func findTool(tools []tool.Tool, name string) tool.Tool {
	for _, t := range tools {
		if t.GetName() == name {
			return t
		}
	}
	return nil
}

// hasImplementation reports whether the tool can actually run. Tools
// not exposing the check are assumed executable.
func hasImplementation(t tool.Tool) bool {
	if h, ok := t.(interface{ HasImplementation() bool }); ok {
		return h.HasImplementation()
	}
	return true
}
