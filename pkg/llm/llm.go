// Package llm adapts langchaingo models to the small completion and
// embedding contracts the answer pipeline consumes.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
)

// Supported providers.
const (
	ProviderOllama = "ollama"
	ProviderOpenAI = "openai"
)

var ErrUnknownProvider = errors.New("llm: unknown provider")

// Config selects and configures a model backend.
type Config struct {
	Provider       string `yaml:"provider"`
	BaseURL        string `yaml:"base_url"`
	Model          string `yaml:"model"`
	EmbeddingModel string `yaml:"embedding_model"`
	APIKey         string `yaml:"api_key"`
}

// Options tunes a single completion call.
type Options struct {
	Temperature float64
	MaxTokens   int
}

// Client is a langchaingo model that can also produce embeddings.
type Client interface {
	llms.Model
	CreateEmbedding(ctx context.Context, texts []string) ([][]float32, error)
}

// NewClient builds the langchaingo client for cfg.Provider.
func NewClient(cfg Config) (Client, error) {
	switch strings.ToLower(cfg.Provider) {
	case "", ProviderOllama:
		opts := []ollama.Option{ollama.WithModel(cfg.Model)}
		if cfg.BaseURL != "" {
			opts = append(opts, ollama.WithServerURL(cfg.BaseURL))
		}
		c, err := ollama.New(opts...)
		if err != nil {
			return nil, fmt.Errorf("llm: ollama: %w", err)
		}
		return c, nil
	case ProviderOpenAI:
		opts := []openai.Option{
			openai.WithModel(cfg.Model),
			openai.WithToken(strings.TrimPrefix(cfg.APIKey, "Bearer ")),
		}
		if cfg.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
		}
		if cfg.EmbeddingModel != "" {
			opts = append(opts, openai.WithEmbeddingModel(cfg.EmbeddingModel))
		}
		c, err := openai.New(opts...)
		if err != nil {
			return nil, fmt.Errorf("llm: openai: %w", err)
		}
		return c, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, cfg.Provider)
	}
}

// NewEmbeddingClient builds a client whose CreateEmbedding uses
// cfg.EmbeddingModel. Ollama binds one model per client, so the embedding
// model replaces the completion model there.
func NewEmbeddingClient(cfg Config) (Client, error) {
	if cfg.EmbeddingModel != "" && (cfg.Provider == "" || strings.EqualFold(cfg.Provider, ProviderOllama)) {
		cfg.Model = cfg.EmbeddingModel
	}
	return NewClient(cfg)
}
