package main

import (
	"context"
	"fmt"
	"log"

	"github.com/agentary-ai/agentary-go/pkg/model/providers/openaicompat"
	"github.com/agentary-ai/agentary-go/pkg/result"
	"github.com/agentary-ai/agentary-go/pkg/runner"
	"github.com/agentary-ai/agentary-go/pkg/tool"
	"github.com/agentary-ai/agentary-go/pkg/workflow"
)

func main() {
	// Create a provider pointing at a local OpenAI-compatible server
	provider := openaicompat.NewProvider("http://127.0.0.1:1234/v1")
	provider.WithDefaultModel("gemma-3-4b-it")

	// A simple calculator tool the workflow's act step can call
	calculator := tool.NewFunctionTool(
		"calculate",
		"Perform a basic arithmetic operation on two numbers",
		func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
			op, _ := args["operation"].(string)
			a, aOK := args["a"].(float64)
			b, bOK := args["b"].(float64)
			if !aOK || !bOK {
				return nil, fmt.Errorf("arguments a and b must be numbers")
			}

			switch op {
			case "add":
				return a + b, nil
			case "subtract":
				return a - b, nil
			case "multiply":
				return a * b, nil
			case "divide":
				if b == 0 {
					return nil, fmt.Errorf("division by zero")
				}
				return a / b, nil
			default:
				return nil, fmt.Errorf("unknown operation %q", op)
			}
		},
	).WithSchema(map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"operation": map[string]interface{}{
				"type":        "string",
				"enum":        []string{"add", "subtract", "multiply", "divide"},
				"description": "The arithmetic operation to perform",
			},
			"a": map[string]interface{}{"type": "number"},
			"b": map[string]interface{}{"type": "number"},
		},
		"required": []string{"operation", "a", "b"},
	})

	// Define a small think/act/respond workflow
	def := &workflow.Definition{
		ID:           "math-helper",
		SystemPrompt: "You are a careful math assistant. Use the calculator tool for arithmetic instead of computing in your head.",
		Steps: []workflow.Step{
			{
				ID:          "analyze_question",
				Type:        workflow.StepThink,
				Description: "Break the user's question down into the arithmetic it requires.",
			},
			{
				ID:          "run_calculation",
				Type:        workflow.StepAct,
				Description: "Call the calculator tool with the operation and operands.",
				Tools:       []string{"calculate"},
			},
			{
				ID:          "answer_user",
				Type:        workflow.StepRespond,
				Description: "Explain the result to the user in one or two sentences.",
			},
		},
		MaxIterations: 6,
		TimeoutMS:     120000,
		Memory: workflow.MemoryConfig{
			EnablePruning:    true,
			StoreToolResults: true,
		},
		Tools: []tool.Tool{calculator},
	}

	r := runner.NewRunner().WithDefaultProvider(provider)

	fmt.Println("Running workflow...")
	streamed, err := r.RunWorkflow(context.Background(), def, &RunOptions{
		Input: "What is 1337 multiplied by 42?",
	})
	if err != nil {
		log.Fatalf("Error starting workflow: %v", err)
	}

	// Print events as they stream in
	for event := range streamed.Stream {
		switch event.Type {
		case result.TypeThinking:
			fmt.Printf("[%s] %s\n", event.StepID, event.Content)
		case result.TypeToolCall:
			if event.ToolCall != nil && event.ToolCall.Result != nil {
				fmt.Printf("[%s] %s -> %v\n", event.StepID, event.ToolCall.Name, event.ToolCall.Result)
			}
		case result.TypeError:
			fmt.Printf("[%s] error: %s\n", event.StepID, event.Error)
		default:
			fmt.Printf("[%s] %s\n", event.StepID, event.Content)
		}
	}

	fmt.Println("\nFinal output:")
	fmt.Println(streamed.FinalOutput)
	fmt.Printf("(state=%s iterations=%d duration=%s)\n",
		streamed.State, streamed.Iterations, streamed.Duration)
}
