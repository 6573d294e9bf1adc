// Package prompt renders the per-step prompts sent to the model: the
// system instructions describing the workflow and available tools, and
// the user message describing the current step.
package prompt

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"text/template"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/agentary-ai/agentary-go/pkg/tool"
	"github.com/agentary-ai/agentary-go/pkg/workflow"
)

// Renderer produces the prompts for one step execution
type Renderer interface {
	// RenderSystem renders the system instructions for a step, including
	// tool-call guidance when tools are available
	RenderSystem(def *workflow.Definition, step *workflow.Step, tools []tool.Tool) (string, error)

	// RenderUser renders the user message asking the model to perform
	// the step
	RenderUser(def *workflow.Definition, step *workflow.Step) (string, error)
}

const systemTemplateText = `{{ .SystemPrompt }}

You are executing step "{{ .StepTitle }}" of workflow "{{ .WorkflowID }}".
{{- if .Context }}

Shared context:
{{- range .Context }}
- {{ .Key }}: {{ .Value }}
{{- end }}
{{- end }}
{{- if .Tools }}

You have access to the following tools:
{{- range .Tools }}
- {{ .Name }}: {{ .Description }}
  Parameters: {{ .Schema }}
{{- end }}

To call a tool, respond with exactly one tool call wrapped in tags:
<tool_call>{"name": "tool_name", "arguments": {"arg": "value"}}</tool_call>
If no tool is needed, respond normally.
{{- end }}`

const userTemplateText = `## {{ .StepTitle }}

{{ .Description }}`

type contextEntry struct {
	Key   string
	Value interface{}
}

type toolEntry struct {
	Name        string
	Description string
	Schema      string
}

type systemData struct {
	SystemPrompt string
	WorkflowID   string
	StepTitle    string
	Context      []contextEntry
	Tools        []toolEntry
}

type userData struct {
	StepTitle   string
	Description string
}

// TemplateRenderer renders prompts from text templates. The zero value
// is not usable; construct with NewTemplateRenderer.
type TemplateRenderer struct {
	system *template.Template
	user   *template.Template
	titler cases.Caser
}

// NewTemplateRenderer creates a renderer with the default templates
func NewTemplateRenderer() *TemplateRenderer {
	return &TemplateRenderer{
		system: template.Must(template.New("system").Parse(systemTemplateText)),
		user:   template.Must(template.New("user").Parse(userTemplateText)),
		titler: cases.Title(language.English),
	}
}

// RenderSystem renders the system instructions for a step
func (r *TemplateRenderer) RenderSystem(def *workflow.Definition, step *workflow.Step, tools []tool.Tool) (string, error) {
	data := systemData{
		SystemPrompt: def.SystemPrompt,
		WorkflowID:   def.ID,
		StepTitle:    r.stepTitle(step),
		Context:      sortedContext(def.Context),
	}
	if data.SystemPrompt == "" {
		data.SystemPrompt = "You are a helpful assistant executing a multi-step workflow."
	}

	for _, t := range tools {
		schema, err := json.Marshal(t.GetParametersSchema())
		if err != nil {
			return "", fmt.Errorf("marshal schema for tool %s: %w", t.GetName(), err)
		}
		data.Tools = append(data.Tools, toolEntry{
			Name:        t.GetName(),
			Description: t.GetDescription(),
			Schema:      string(schema),
		})
	}

	var b strings.Builder
	if err := r.system.Execute(&b, data); err != nil {
		return "", fmt.Errorf("render system prompt: %w", err)
	}
	return b.String(), nil
}

// RenderUser renders the user message for a step
func (r *TemplateRenderer) RenderUser(def *workflow.Definition, step *workflow.Step) (string, error) {
	data := userData{
		StepTitle:   r.stepTitle(step),
		Description: step.Description,
	}
	if data.Description == "" {
		data.Description = "Perform this step of the workflow."
	}

	var b strings.Builder
	if err := r.user.Execute(&b, data); err != nil {
		return "", fmt.Errorf("render user prompt: %w", err)
	}
	return b.String(), nil
}

// stepTitle turns a snake_case step id into a heading
func (r *TemplateRenderer) stepTitle(step *workflow.Step) string {
	return r.titler.String(strings.ReplaceAll(step.ID, "_", " "))
}

func sortedContext(ctx map[string]interface{}) []contextEntry {
	if len(ctx) == 0 {
		return nil
	}
	keys := make([]string, 0, len(ctx))
	for k := range ctx {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]contextEntry, 0, len(keys))
	for _, k := range keys {
		out = append(out, contextEntry{Key: k, Value: ctx[k]})
	}
	return out
}
