package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"github.com/muesli/termenv"

	"github.com/agentary-ai/agentary-go/pkg/model/providers/openaicompat"
	"github.com/agentary-ai/agentary-go/pkg/result"
	"github.com/agentary-ai/agentary-go/pkg/runner"
	"github.com/agentary-ai/agentary-go/pkg/state"
	"github.com/agentary-ai/agentary-go/pkg/workflow"
)

func main() {
	configureLogging()
	log.SetLevel(log.InfoLevel)

	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	switch os.Args[1] {
	case "run":
		runCmd(os.Args[2:])
	case "validate":
		validateCmd(os.Args[2:])
	case "steps":
		stepsCmd(os.Args[2:])
	case "-h", "--help", "help":
		usage()
	default:
		log.Error("unknown command", "command", os.Args[1])
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Print(`agentary - multi-step agentic workflow runner

Usage:
  agentary run --workflow <file> --prompt <text> [flags]
  agentary validate --workflow <file>
  agentary steps --workflow <file>
`)
}

func runCmd(args []string) {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	workflowPath := fs.String("workflow", "", "workflow YAML file")
	prompt := fs.String("prompt", "", "user prompt seeding the run")
	modelName := fs.String("model", "", "model name")
	baseURL := fs.String("base-url", "", "OpenAI-compatible API base URL")
	apiKey := fs.String("api-key", os.Getenv("AGENTARY_API_KEY"), "API key")
	archivePath := fs.String("archive", "", "SQLite archive for pruned messages")
	noTrace := fs.Bool("no-trace", false, "disable trace file output")
	verbose := fs.Bool("verbose", false, "verbose logging")
	fs.Parse(args)

	if *verbose {
		log.SetLevel(log.DebugLevel)
	}
	if *workflowPath == "" {
		exitErr(fmt.Errorf("--workflow is required"))
	}
	if *prompt == "" {
		exitErr(fmt.Errorf("--prompt is required"))
	}

	def, err := workflow.Load(*workflowPath)
	if err != nil {
		exitErr(err)
	}

	provider := openaicompat.NewProvider(*baseURL)
	if *apiKey != "" {
		provider.WithAPIKey(*apiKey)
	}
	if *modelName != "" {
		provider.WithDefaultModel(*modelName)
	}

	r := runner.NewRunner().WithDefaultProvider(provider)

	if *archivePath != "" {
		archive, err := state.NewSQLiteArchive(*archivePath)
		if err != nil {
			exitErr(err)
		}
		defer archive.Close()
		r.WithArchive(archive)
	}

	streamed, err := r.RunWorkflow(context.Background(), def, &runner.RunOptions{
		Input: *prompt,
		RunConfig: &runner.RunConfig{
			TracingDisabled: *noTrace,
		},
	})
	if err != nil {
		exitErr(err)
	}

	for event := range streamed.Stream {
		printEvent(event)
	}

	log.Info("run finished",
		"run_id", streamed.RunID,
		"state", streamed.State,
		"iterations", streamed.Iterations,
		"duration", streamed.Duration,
	)
	if streamed.FinalOutput != "" {
		fmt.Println(streamed.FinalOutput)
	}
	if streamed.State != result.StateCompleted {
		os.Exit(1)
	}
}

func validateCmd(args []string) {
	fs := flag.NewFlagSet("validate", flag.ExitOnError)
	workflowPath := fs.String("workflow", "", "workflow YAML file")
	fs.Parse(args)

	if *workflowPath == "" {
		exitErr(fmt.Errorf("--workflow is required"))
	}

	def, err := workflow.Load(*workflowPath)
	if err != nil {
		exitErr(err)
	}

	log.Info("workflow is valid", "id", def.ID, "steps", len(def.Steps))
}

func stepsCmd(args []string) {
	fs := flag.NewFlagSet("steps", flag.ExitOnError)
	workflowPath := fs.String("workflow", "", "workflow YAML file")
	fs.Parse(args)

	if *workflowPath == "" {
		exitErr(fmt.Errorf("--workflow is required"))
	}

	def, err := workflow.Load(*workflowPath)
	if err != nil {
		exitErr(err)
	}

	for _, step := range def.Steps {
		fmt.Printf("%s\t%s\t%s\n", step.ID, step.Type, step.Description)
	}
}

func printEvent(event result.StepResult) {
	switch event.Type {
	case result.TypeThinking:
		log.Debug("step started", "step", event.StepID, "detail", event.Content)
	case result.TypeToolCall:
		if event.ToolCall != nil && event.ToolCall.Result != nil {
			log.Info("tool result", "step", event.StepID,
				"tool", event.ToolCall.Name, "result", event.ToolCall.Result)
		} else if event.ToolCall != nil {
			log.Info("tool call", "step", event.StepID,
				"tool", event.ToolCall.Name, "args", event.ToolCall.Args)
		}
	case result.TypeError:
		log.Error("step failed", "step", event.StepID, "error", event.Error)
	default:
		log.Info("step completed", "step", event.StepID,
			"type", event.Type, "content", event.Content)
	}
}

func exitErr(err error) {
	log.Error(err.Error())
	os.Exit(1)
}

func configureLogging() {
	log.SetReportTimestamp(true)
	log.SetTimeFormat("15:04:05")
	log.SetPrefix("agentary")
	log.SetColorProfile(termenv.TrueColor)

	styles := log.DefaultStyles()
	styles.Levels[log.DebugLevel] = styles.Levels[log.DebugLevel].Foreground(lipgloss.Color("69")).Bold(true)
	styles.Levels[log.InfoLevel] = styles.Levels[log.InfoLevel].Foreground(lipgloss.Color("86")).Bold(true)
	styles.Levels[log.WarnLevel] = styles.Levels[log.WarnLevel].Foreground(lipgloss.Color("220")).Bold(true)
	styles.Levels[log.ErrorLevel] = styles.Levels[log.ErrorLevel].Foreground(lipgloss.Color("196")).Bold(true)
	styles.Prefix = styles.Prefix.Foreground(lipgloss.Color("245")).Bold(true)
	styles.Key = styles.Key.Foreground(lipgloss.Color("244"))
	log.SetStyles(styles)
}
