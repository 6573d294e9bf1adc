package main

import (
	"github.com/agentary-ai/agentary-go/pkg/runner"
)

// RunOptions configures a workflow run.
// Type alias to help with import resolution.
type RunOptions = runner.RunOptions

// RunConfig configures runner-level defaults for a run.
// Type alias to help with import resolution.
type RunConfig = runner.RunConfig
