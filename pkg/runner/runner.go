// Package runner executes workflow definitions: it drives the
// iteration loop, executes individual steps against a model, routes
// branches, and streams step events back to the caller.
package runner

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/agentary-ai/agentary-go/pkg/model"
	"github.com/agentary-ai/agentary-go/pkg/prompt"
	"github.com/agentary-ai/agentary-go/pkg/state"
)

// Runner executes workflows
type Runner struct {
	// Default configuration
	defaultProvider model.Provider
	defaultModel    string

	renderer   prompt.Renderer
	estimator  state.TokenEstimator
	archive    state.Archiver
	summarizer state.Summarizer
	logger     *slog.Logger

	// Internal state
	mu sync.RWMutex
}

// NewRunner creates a new runner with default configuration
func NewRunner() *Runner {
	return &Runner{
		renderer:   prompt.NewTemplateRenderer(),
		estimator:  state.HeuristicEstimator{},
		summarizer: state.ExtractiveSummarizer{},
		logger:     slog.Default(),
	}
}

// WithDefaultProvider sets the default model provider
func (r *Runner) WithDefaultProvider(provider model.Provider) *Runner {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.defaultProvider = provider
	return r
}

// WithDefaultModel sets the default model name
func (r *Runner) WithDefaultModel(name string) *Runner {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.defaultModel = name
	return r
}

// WithRenderer sets the prompt renderer
func (r *Runner) WithRenderer(renderer prompt.Renderer) *Runner {
	r.mu.Lock()
	defer r.mu.Unlock()
	if renderer != nil {
		r.renderer = renderer
	}
	return r
}

// WithTokenEstimator sets the token estimator used for memory pruning
func (r *Runner) WithTokenEstimator(estimator state.TokenEstimator) *Runner {
	r.mu.Lock()
	defer r.mu.Unlock()
	if estimator != nil {
		r.estimator = estimator
	}
	return r
}

// WithArchive sets the archive receiving pruned messages and tool
// results
func (r *Runner) WithArchive(archive state.Archiver) *Runner {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.archive = archive
	return r
}

// WithSummarizer sets the summarizer used during pruning
func (r *Runner) WithSummarizer(summarizer state.Summarizer) *Runner {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.summarizer = summarizer
	return r
}

// WithLogger sets the logger
func (r *Runner) WithLogger(logger *slog.Logger) *Runner {
	r.mu.Lock()
	defer r.mu.Unlock()
	if logger != nil {
		r.logger = logger
	}
	return r
}

// resolveModel resolves the model for a run from the run config and
// runner defaults.
func (r *Runner) resolveModel(config *RunConfig) (model.Model, error) {
	r.mu.RLock()
	provider := r.defaultProvider
	name := r.defaultModel
	r.mu.RUnlock()

	if config != nil {
		if config.ModelProvider != nil {
			provider = config.ModelProvider
		}
		switch m := config.Model.(type) {
		case nil:
		case string:
			name = m
		case model.Model:
			return m, nil
		default:
			return nil, fmt.Errorf("unsupported model override type %T", config.Model)
		}
	}

	if provider == nil {
		return nil, errors.New("no model provider available")
	}

	resolved, err := provider.GetModel(name)
	if err != nil {
		return nil, fmt.Errorf("resolve model %q: %w", name, err)
	}
	return resolved, nil
}
