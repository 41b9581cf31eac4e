package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
)

// Generator produces text completions from a langchaingo model.
type Generator struct {
	model llms.Model
}

// NewGenerator wraps model.
func NewGenerator(model llms.Model) *Generator {
	return &Generator{model: model}
}

// Complete sends prompt as a single human message and returns the trimmed
// completion text.
func (g *Generator) Complete(ctx context.Context, prompt string, opts Options) (string, error) {
	callOpts := []llms.CallOption{llms.WithTemperature(opts.Temperature)}
	if opts.MaxTokens > 0 {
		callOpts = append(callOpts, llms.WithMaxTokens(opts.MaxTokens))
	}

	out, err := llms.GenerateFromSinglePrompt(ctx, g.model, prompt, callOpts...)
	if err != nil {
		return "", fmt.Errorf("llm: complete: %w", classify(err))
	}
	out = strings.TrimSpace(out)
	if out == "" {
		return "", ErrEmptyCompletion
	}
	return out, nil
}
