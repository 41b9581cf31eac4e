package config

import (
	"time"

	"github.com/physai/bookrag/pkg/llm"
)

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.CORSOrigins == "" {
		cfg.Server.CORSOrigins = "*"
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 15 * time.Second
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 10 * time.Second
	}
	if cfg.RateLimit.Rate == 0 {
		cfg.RateLimit.Rate = 0.5
	}
	if cfg.RateLimit.Burst == 0 {
		cfg.RateLimit.Burst = 5
	}
	if cfg.RateLimit.IdleTTL == 0 {
		cfg.RateLimit.IdleTTL = 10 * time.Minute
	}
	if cfg.Index.Backend == "" {
		cfg.Index.Backend = BackendQdrant
	}
	if cfg.Index.QdrantURL == "" {
		cfg.Index.QdrantURL = "localhost:6334"
	}
	if cfg.Index.Collection == "" {
		cfg.Index.Collection = "textbook_chunks"
	}
	if cfg.Index.Dimensions == 0 {
		cfg.Index.Dimensions = 768
	}
	if cfg.Embedding.Provider == "" {
		cfg.Embedding.Provider = llm.ProviderOllama
	}
	if cfg.Embedding.BaseURL == "" {
		cfg.Embedding.BaseURL = "http://localhost:11434"
	}
	if cfg.Embedding.Model == "" {
		cfg.Embedding.Model = "nomic-embed-text"
	}
	if cfg.Generation.Provider == "" {
		cfg.Generation.Provider = llm.ProviderOllama
	}
	if cfg.Generation.Model == "" {
		cfg.Generation.Model = "llama3.1"
	}
	if cfg.RAG.TopK == 0 {
		cfg.RAG.TopK = 5
	}
	if cfg.RAG.ContextLimit == 0 {
		cfg.RAG.ContextLimit = 3
	}
	if cfg.RAG.ExcerptMaxChars == 0 {
		cfg.RAG.ExcerptMaxChars = 1000
	}
	if cfg.RAG.MaxQueryLength == 0 {
		cfg.RAG.MaxQueryLength = 2000
	}
	if cfg.RAG.Threshold == 0 {
		cfg.RAG.Threshold = 0.75
	}
	if cfg.RAG.SecondaryThreshold == 0 {
		cfg.RAG.SecondaryThreshold = 0.6
	}
	if cfg.RAG.CorroborationBonus == 0 {
		cfg.RAG.CorroborationBonus = 0.02
	}
	if cfg.RAG.MaxBonus == 0 {
		cfg.RAG.MaxBonus = 0.06
	}
	if cfg.RAG.Temperature == nil {
		cfg.RAG.Temperature = ptr(0.3)
	}
	if cfg.RAG.FallbackTemperature == nil {
		cfg.RAG.FallbackTemperature = ptr(0.7)
	}
	if cfg.RAG.MaxTokens == 0 {
		cfg.RAG.MaxTokens = 1024
	}
	if cfg.RAG.EmbedTimeout == 0 {
		cfg.RAG.EmbedTimeout = 10 * time.Second
	}
	if cfg.RAG.SearchTimeout == 0 {
		cfg.RAG.SearchTimeout = 5 * time.Second
	}
	if cfg.RAG.GenerateTimeout == 0 {
		cfg.RAG.GenerateTimeout = 30 * time.Second
	}
	if cfg.RAG.RetryAttempts == 0 {
		cfg.RAG.RetryAttempts = 2
	}
	// Derived from the RAG timeouts so a retried answer can still be written.
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = cfg.RAG.Budget() + 10*time.Second
	}
	if cfg.Breaker.FailThreshold == 0 {
		cfg.Breaker.FailThreshold = 5
	}
	if cfg.Breaker.Timeout == 0 {
		cfg.Breaker.Timeout = 30 * time.Second
	}
	if cfg.Breaker.HalfOpenMax == 0 {
		cfg.Breaker.HalfOpenMax = 1
	}
	if cfg.Neo4j.User == "" {
		cfg.Neo4j.User = "neo4j"
	}
}

func ptr(v float64) *float64 { return &v }
