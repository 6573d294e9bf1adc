package runner_test

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/agentary-ai/agentary-go/pkg/model"
	"github.com/agentary-ai/agentary-go/pkg/result"
	"github.com/agentary-ai/agentary-go/pkg/runner"
	"github.com/agentary-ai/agentary-go/pkg/tool"
	"github.com/agentary-ai/agentary-go/pkg/tracing"
	"github.com/agentary-ai/agentary-go/pkg/workflow"
)

// scriptedModel replays canned responses in order, streaming each one
// as a handful of chunks.
type scriptedModel struct {
	mu        sync.Mutex
	responses []string
	calls     int
	delay     time.Duration
}

func (m *scriptedModel) next() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.calls >= len(m.responses) {
		m.calls++
		return "out of script"
	}
	response := m.responses[m.calls]
	m.calls++
	return response
}

func (m *scriptedModel) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func (m *scriptedModel) GetResponse(ctx context.Context, request *model.Request) (*model.Response, error) {
	time.Sleep(m.delay)
	return &model.Response{Content: m.next()}, nil
}

func (m *scriptedModel) StreamResponse(ctx context.Context, request *model.Request) (<-chan model.Chunk, error) {
	response := m.next()
	ch := make(chan model.Chunk)
	go func() {
		defer close(ch)
		time.Sleep(m.delay)

		// Split roughly in half so concatenation is actually exercised
		mid := len(response) / 2
		ch <- model.Chunk{Token: response[:mid], IsFirst: true}
		ch <- model.Chunk{Token: response[mid:]}
		ch <- model.Chunk{IsLast: true}
	}()
	return ch, nil
}

type scriptedProvider struct {
	model model.Model
}

func (p *scriptedProvider) GetModel(name string) (model.Model, error) {
	return p.model, nil
}

func newTestRunner(m model.Model) *runner.Runner {
	return runner.NewRunner().WithDefaultProvider(&scriptedProvider{model: m})
}

// testOpts disables tracing so tests don't leave trace files behind
func testOpts(input string) *runner.RunOptions {
	return &runner.RunOptions{
		Input:     input,
		RunConfig: &runner.RunConfig{TracingDisabled: true},
	}
}

func drain(t *testing.T, streamed *result.StreamedRunResult) []result.StepResult {
	t.Helper()
	var events []result.StepResult
	for event := range streamed.Stream {
		events = append(events, event)
	}
	if !streamed.IsComplete {
		t.Fatal("stream closed without completing the run result")
	}
	return events
}

func terminalEvents(events []result.StepResult) []result.StepResult {
	var out []result.StepResult
	for _, event := range events {
		if event.IsComplete {
			out = append(out, event)
		}
	}
	return out
}

func TestRunWorkflowCompletesAllSteps(t *testing.T) {
	m := &scriptedModel{responses: []string{
		"I should add the numbers first.",
		"The answer is 42.",
	}}

	def := &workflow.Definition{
		ID: "two-step",
		Steps: []workflow.Step{
			{ID: "plan", Type: workflow.StepThink, Description: "plan"},
			{ID: "answer", Type: workflow.StepRespond, Description: "answer"},
		},
	}

	streamed, err := newTestRunner(m).RunWorkflow(context.Background(), def, testOpts("what is 40 + 2?"))
	if err != nil {
		t.Fatal(err)
	}
	events := drain(t, streamed)

	terminals := terminalEvents(events)
	if len(terminals) != 2 {
		t.Fatalf("terminal events = %d, want 2: %+v", len(terminals), terminals)
	}
	if terminals[0].StepID != "plan" || terminals[0].Type != result.TypeThinking {
		t.Errorf("first terminal = %+v", terminals[0])
	}
	if terminals[1].StepID != "answer" || terminals[1].Type != result.TypeResponse {
		t.Errorf("second terminal = %+v", terminals[1])
	}

	if streamed.State != result.StateCompleted {
		t.Errorf("State = %s, want completed", streamed.State)
	}
	if streamed.FinalOutput != "The answer is 42." {
		t.Errorf("FinalOutput = %q", streamed.FinalOutput)
	}
	if streamed.Iterations != 2 {
		t.Errorf("Iterations = %d, want 2", streamed.Iterations)
	}
	if streamed.RunID == "" {
		t.Error("missing run id")
	}
}

func TestRunWorkflowMaxIterations(t *testing.T) {
	m := &scriptedModel{responses: []string{"step one output", "never reached"}}

	def := &workflow.Definition{
		ID:            "budgeted",
		MaxIterations: 1,
		Steps: []workflow.Step{
			{ID: "first", Type: workflow.StepThink},
			{ID: "second", Type: workflow.StepRespond},
		},
	}

	streamed, err := newTestRunner(m).RunWorkflow(context.Background(), def, testOpts("go"))
	if err != nil {
		t.Fatal(err)
	}
	events := drain(t, streamed)

	// One step completes, then the budget trips
	terminals := terminalEvents(events)
	if len(terminals) != 2 {
		t.Fatalf("terminal events = %d, want 2: %+v", len(terminals), terminals)
	}
	if terminals[0].StepID != "first" || terminals[0].Error != "" {
		t.Errorf("first terminal = %+v", terminals[0])
	}
	if terminals[1].Type != result.TypeError || !strings.Contains(terminals[1].Error, "maximum iterations") {
		t.Errorf("second terminal = %+v, want max-iterations error", terminals[1])
	}

	if streamed.State != result.StateMaxIterations {
		t.Errorf("State = %s, want max_iterations_exceeded", streamed.State)
	}
	if streamed.Iterations != 1 {
		t.Errorf("Iterations = %d, want 1", streamed.Iterations)
	}
}

func TestRunWorkflowDispatchesToolCall(t *testing.T) {
	m := &scriptedModel{responses: []string{
		`<tool_call>{"name": "add", "arguments": {"a": 1, "b": 2}}</tool_call>`,
	}}

	add := tool.NewFunctionTool("add", "Add two numbers",
		func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
			a, _ := args["a"].(float64)
			b, _ := args["b"].(float64)
			return a + b, nil
		})

	def := &workflow.Definition{
		ID: "tool-flow",
		Steps: []workflow.Step{
			{ID: "compute", Type: workflow.StepAct, Tools: []string{"add"}},
		},
		Memory: workflow.MemoryConfig{StoreToolResults: true},
		Tools:  []tool.Tool{add},
	}

	streamed, err := newTestRunner(m).RunWorkflow(context.Background(), def, testOpts("add 1 and 2"))
	if err != nil {
		t.Fatal(err)
	}
	events := drain(t, streamed)

	var toolEvents []result.StepResult
	for _, event := range events {
		if event.Type == result.TypeToolCall && !event.IsComplete {
			toolEvents = append(toolEvents, event)
		}
	}
	if len(toolEvents) != 2 {
		t.Fatalf("tool events = %d, want invocation + result: %+v", len(toolEvents), toolEvents)
	}
	if toolEvents[0].ToolCall.Name != "add" || toolEvents[0].ToolCall.Result != nil {
		t.Errorf("invocation event = %+v", toolEvents[0])
	}
	if toolEvents[1].ToolCall.Result != 3.0 {
		t.Errorf("result event = %+v, want 3", toolEvents[1])
	}

	terminals := terminalEvents(events)
	if len(terminals) != 1 || terminals[0].Type != result.TypeToolCall {
		t.Fatalf("terminals = %+v", terminals)
	}
	if !strings.Contains(terminals[0].Content, "3") {
		t.Errorf("terminal content = %q, want tool result embedded", terminals[0].Content)
	}

	// The terminal event carries the dispatched call with its result
	if terminals[0].ToolCall == nil {
		t.Fatal("terminal event is missing the tool call")
	}
	if terminals[0].ToolCall.Name != "add" || terminals[0].ToolCall.Result != 3.0 {
		t.Errorf("terminal tool call = %+v, want add with result 3", terminals[0].ToolCall)
	}
	if streamed.State != result.StateCompleted {
		t.Errorf("State = %s", streamed.State)
	}
}

func TestRunWorkflowRetriesFailedStep(t *testing.T) {
	m := &scriptedModel{responses: []string{
		`<tool_call>{"name": "flaky", "arguments": {}}</tool_call>`,
		`<tool_call>{"name": "flaky", "arguments": {}}</tool_call>`,
	}}

	flaky := tool.NewFunctionTool("flaky", "Always fails",
		func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
			return nil, fmt.Errorf("backend unavailable")
		})

	def := &workflow.Definition{
		ID: "retry-flow",
		Steps: []workflow.Step{
			{ID: "call", Type: workflow.StepAct, MaxAttempts: 2},
		},
		Tools: []tool.Tool{flaky},
	}

	streamed, err := newTestRunner(m).RunWorkflow(context.Background(), def, testOpts("go"))
	if err != nil {
		t.Fatal(err)
	}
	events := drain(t, streamed)

	var errorEvents int
	for _, event := range events {
		if event.Type == result.TypeError && event.StepID == "call" {
			errorEvents++
		}
	}
	if errorEvents != 2 {
		t.Errorf("error events = %d, want one per attempt", errorEvents)
	}
	if m.callCount() != 2 {
		t.Errorf("model calls = %d, want 2", m.callCount())
	}

	// Attempts exhausted without completion: the run ends with no
	// remaining eligible steps and no final output
	if streamed.State != result.StateCompleted {
		t.Errorf("State = %s", streamed.State)
	}
	if streamed.FinalOutput != "" {
		t.Errorf("FinalOutput = %q, want empty", streamed.FinalOutput)
	}
}

func TestRunWorkflowBranchRouting(t *testing.T) {
	m := &scriptedModel{responses: []string{
		"we should skip ahead to the final answer",
		"final answer",
		"middle answer",
	}}

	def := &workflow.Definition{
		ID: "branchy",
		Steps: []workflow.Step{
			{ID: "triage", Type: workflow.StepDecide, NextSteps: []workflow.NextStep{
				{When: "skip ahead", Target: "final"},
			}},
			{ID: "middle", Type: workflow.StepRespond},
			{ID: "final", Type: workflow.StepRespond},
		},
	}

	streamed, err := newTestRunner(m).RunWorkflow(context.Background(), def, testOpts("go"))
	if err != nil {
		t.Fatal(err)
	}
	events := drain(t, streamed)

	var order []string
	for _, event := range terminalEvents(events) {
		order = append(order, event.StepID)
	}

	// The branch hint jumps the queue; the skipped step is picked up by
	// the declaration-order scan afterwards
	want := []string{"triage", "final", "middle"}
	if len(order) != len(want) {
		t.Fatalf("terminal order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("terminal order = %v, want %v", order, want)
		}
	}

	if terminalEvents(events)[0].NextStepID != "final" {
		t.Errorf("decide terminal NextStepID = %q, want final", terminalEvents(events)[0].NextStepID)
	}
}

func TestRunWorkflowTimeout(t *testing.T) {
	m := &scriptedModel{
		responses: []string{"slow output", "never reached"},
		delay:     20 * time.Millisecond,
	}

	def := &workflow.Definition{
		ID:        "slow",
		TimeoutMS: 1,
		Steps: []workflow.Step{
			{ID: "first", Type: workflow.StepThink},
			{ID: "second", Type: workflow.StepRespond},
		},
	}

	streamed, err := newTestRunner(m).RunWorkflow(context.Background(), def, testOpts("go"))
	if err != nil {
		t.Fatal(err)
	}
	events := drain(t, streamed)

	if streamed.State != result.StateTimedOut {
		t.Fatalf("State = %s, want timed_out", streamed.State)
	}

	last := events[len(events)-1]
	if last.Type != result.TypeError || !strings.Contains(last.Error, "timed out") {
		t.Errorf("last event = %+v, want timeout error", last)
	}
}

func TestRunWorkflowStripsThinking(t *testing.T) {
	m := &scriptedModel{responses: []string{
		"<think>the user wants brevity</think>Short answer.",
	}}

	def := &workflow.Definition{
		ID:    "think-strip",
		Steps: []workflow.Step{{ID: "answer", Type: workflow.StepRespond}},
	}

	streamed, err := newTestRunner(m).RunWorkflow(context.Background(), def, testOpts("go"))
	if err != nil {
		t.Fatal(err)
	}
	events := drain(t, streamed)

	terminals := terminalEvents(events)
	if len(terminals) != 1 {
		t.Fatalf("terminals = %+v", terminals)
	}
	if terminals[0].Content != "Short answer." {
		t.Errorf("Content = %q, want reasoning stripped", terminals[0].Content)
	}
	if terminals[0].Metadata["thinking"] != "the user wants brevity" {
		t.Errorf("Metadata[thinking] = %v", terminals[0].Metadata["thinking"])
	}
}

func TestRunWorkflowValidation(t *testing.T) {
	r := newTestRunner(&scriptedModel{})

	if _, err := r.RunWorkflow(context.Background(), nil, nil); err == nil {
		t.Error("expected error for nil definition")
	}

	bad := &workflow.Definition{ID: "bad", Steps: []workflow.Step{{ID: "x", Type: "ponder"}}}
	if _, err := r.RunWorkflow(context.Background(), bad, nil); err == nil {
		t.Error("expected validation error")
	}

	noProvider := runner.NewRunner()
	good := &workflow.Definition{ID: "ok", Steps: []workflow.Step{{ID: "x", Type: workflow.StepThink}}}
	if _, err := noProvider.RunWorkflow(context.Background(), good, nil); err == nil {
		t.Error("expected error without a provider")
	}
}

func TestRunWorkflowSync(t *testing.T) {
	m := &scriptedModel{responses: []string{"done"}}
	def := &workflow.Definition{
		ID:    "sync",
		Steps: []workflow.Step{{ID: "only", Type: workflow.StepRespond}},
	}

	res, err := newTestRunner(m).RunWorkflowSync(context.Background(), def, testOpts("go"))
	if err != nil {
		t.Fatal(err)
	}
	if res.State != result.StateCompleted || res.FinalOutput != "done" {
		t.Errorf("result = %+v", res)
	}
}

func TestRunWorkflowHooks(t *testing.T) {
	m := &scriptedModel{responses: []string{"done"}}
	def := &workflow.Definition{
		ID:    "hooked",
		Steps: []workflow.Step{{ID: "only", Type: workflow.StepRespond}},
	}

	hooks := &countingHooks{}
	streamed, err := newTestRunner(m).RunWorkflow(context.Background(), def, &runner.RunOptions{
		Input:     "go",
		Hooks:     hooks,
		RunConfig: &runner.RunConfig{TracingDisabled: true},
	})
	if err != nil {
		t.Fatal(err)
	}
	drain(t, streamed)

	if hooks.runStarts != 1 || hooks.runEnds != 1 {
		t.Errorf("run hooks = %d/%d, want 1/1", hooks.runStarts, hooks.runEnds)
	}
	if hooks.stepStarts != 1 || hooks.stepEnds != 1 {
		t.Errorf("step hooks = %d/%d, want 1/1", hooks.stepStarts, hooks.stepEnds)
	}
}

type countingHooks struct {
	runner.DefaultRunHooks
	mu         sync.Mutex
	runStarts  int
	runEnds    int
	stepStarts int
	stepEnds   int
}

func (h *countingHooks) OnRunStart(ctx context.Context, def *workflow.Definition, input string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.runStarts++
	return nil
}

func (h *countingHooks) OnStepStart(ctx context.Context, step *workflow.Step, attempt int) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.stepStarts++
	return nil
}

func (h *countingHooks) OnStepEnd(ctx context.Context, step *workflow.Step, stepResult *result.StepResult) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.stepEnds++
	return nil
}

func (h *countingHooks) OnRunEnd(ctx context.Context, runResult *result.RunResult) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.runEnds++
	return nil
}

// recordingTracer captures trace events so tests can inspect what the
// run emitted.
type recordingTracer struct {
	mu     sync.Mutex
	events []tracing.Event
}

func (t *recordingTracer) RecordEvent(ctx context.Context, event tracing.Event) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.events = append(t.events, event)
}

func (t *recordingTracer) Flush() error { return nil }
func (t *recordingTracer) Close() error { return nil }

func (t *recordingTracer) byType(eventType string) []tracing.Event {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []tracing.Event
	for _, e := range t.events {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}

func TestRunWorkflowTracesMemoryPrune(t *testing.T) {
	chatty := strings.Repeat("Detailed findings with plenty of filler text. ", 8)
	m := &scriptedModel{responses: []string{chatty, chatty, "Done."}}

	def := &workflow.Definition{
		ID: "prune-trace-flow",
		Steps: []workflow.Step{
			{ID: "first", Type: workflow.StepThink, Description: "Gather everything you know."},
			{ID: "second", Type: workflow.StepThink, Description: "Dig further into the details."},
			{ID: "last", Type: workflow.StepRespond, Description: "Summarize."},
		},
		Memory: workflow.MemoryConfig{
			EnablePruning:    true,
			MaxTokenLimit:    120,
			WarningThreshold: 0.5,
		},
	}

	tracer := &recordingTracer{}
	ctx := tracing.WithTracer(context.Background(), tracer)

	res, err := newTestRunner(m).RunWorkflowSync(ctx, def, testOpts("go"))
	if err != nil {
		t.Fatal(err)
	}
	if res.State != result.StateCompleted {
		t.Fatalf("State = %s, want completed", res.State)
	}

	prunes := tracer.byType(tracing.EventTypeMemoryPrune)
	if len(prunes) == 0 {
		t.Fatal("no memory_prune trace events recorded")
	}
	for _, event := range prunes {
		if event.WorkflowID != "prune-trace-flow" {
			t.Errorf("WorkflowID = %q", event.WorkflowID)
		}
		if event.Details["tokens_after"] == nil || event.Details["evicted"] == nil {
			t.Errorf("Details = %+v, want evicted and tokens_after", event.Details)
		}
	}
}

func TestRunWorkflowTracesStepPanic(t *testing.T) {
	m := &scriptedModel{responses: []string{
		`<tool_call>{"name": "explode", "arguments": {}}</tool_call>`,
	}}

	explode := tool.NewFunctionTool("explode", "Always panics",
		func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
			panic("kaboom")
		})

	def := &workflow.Definition{
		ID: "panic-flow",
		Steps: []workflow.Step{
			{ID: "boom", Type: workflow.StepAct, Tools: []string{"explode"}, MaxAttempts: 1},
		},
		Tools: []tool.Tool{explode},
	}

	tracer := &recordingTracer{}
	ctx := tracing.WithTracer(context.Background(), tracer)

	res, err := newTestRunner(m).RunWorkflowSync(ctx, def, testOpts("go"))
	if err != nil {
		t.Fatal(err)
	}
	if res.State != result.StateCompleted {
		t.Fatalf("State = %s, want completed after exhausting the step", res.State)
	}

	errorEvents := tracer.byType(tracing.EventTypeError)
	if len(errorEvents) != 1 {
		t.Fatalf("error trace events = %d, want 1: %+v", len(errorEvents), errorEvents)
	}
	if errorEvents[0].StepID != "boom" || !strings.Contains(errorEvents[0].Error, "kaboom") {
		t.Errorf("error event = %+v", errorEvents[0])
	}
}
