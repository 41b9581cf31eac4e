// Package config loads the service configuration from an optional YAML file
// with environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/physai/bookrag/pkg/llm"
)

// Index backends.
const (
	BackendQdrant = "qdrant"
	BackendMemory = "memory"
)

// Config holds all configuration for the service and the CLI.
type Config struct {
	Debug      bool            `yaml:"debug"`
	Server     ServerConfig    `yaml:"server"`
	RateLimit  RateLimitConfig `yaml:"rate_limit"`
	Index      IndexConfig     `yaml:"index"`
	Embedding  EmbeddingConfig `yaml:"embedding"`
	Generation llm.Config      `yaml:"generation"`
	RAG        RAGConfig       `yaml:"rag"`
	Breaker    BreakerConfig   `yaml:"breaker"`
	Neo4j      Neo4jConfig     `yaml:"neo4j"`
	NATS       NATSConfig      `yaml:"nats"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	CORSOrigins     string        `yaml:"cors_origins"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// Addr is the listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// RateLimitConfig bounds requests per client. A zero rate disables limiting.
type RateLimitConfig struct {
	Rate    float64       `yaml:"rate"`
	Burst   int           `yaml:"burst"`
	IdleTTL time.Duration `yaml:"idle_ttl"`
}

// IndexConfig selects the vector index.
type IndexConfig struct {
	Backend    string  `yaml:"backend"`
	QdrantURL  string  `yaml:"qdrant_url"`
	Collection string  `yaml:"collection"`
	MemoryPath string  `yaml:"memory_path"`
	ScoreFloor float32 `yaml:"score_floor"`
	// SeedFile is a JSON lines file of pre-embedded chunks loaded into the
	// memory backend at startup.
	SeedFile string `yaml:"seed_file"`
	// Dimensions is the embedding size used when the collection is created.
	Dimensions int `yaml:"dimensions"`
}

// EmbeddingConfig selects the query embedder. The ollama provider uses the
// native /api/embeddings client; openai goes through langchaingo.
type EmbeddingConfig struct {
	Provider string `yaml:"provider"`
	BaseURL  string `yaml:"base_url"`
	Model    string `yaml:"model"`
	APIKey   string `yaml:"api_key"`
}

// RAGConfig mirrors the answer pipeline options.
type RAGConfig struct {
	TopK                int           `yaml:"top_k"`
	ContextLimit        int           `yaml:"context_limit"`
	ExcerptMaxChars     int           `yaml:"excerpt_max_chars"`
	MaxQueryLength      int           `yaml:"max_query_length"`
	Threshold           float64       `yaml:"threshold"`
	SecondaryThreshold  float64       `yaml:"secondary_threshold"`
	CorroborationBonus  float64       `yaml:"corroboration_bonus"`
	MaxBonus            float64       `yaml:"max_bonus"`
	Temperature         *float64      `yaml:"temperature"`
	FallbackTemperature *float64      `yaml:"fallback_temperature"`
	MaxTokens           int           `yaml:"max_tokens"`
	EmbedTimeout        time.Duration `yaml:"embed_timeout"`
	SearchTimeout       time.Duration `yaml:"search_timeout"`
	GenerateTimeout     time.Duration `yaml:"generate_timeout"`
	RetryAttempts       int           `yaml:"retry_attempts"`
}

// BreakerConfig configures one circuit breaker per external dependency.
type BreakerConfig struct {
	Enabled       bool          `yaml:"enabled"`
	FailThreshold int           `yaml:"fail_threshold"`
	Timeout       time.Duration `yaml:"timeout"`
	HalfOpenMax   int           `yaml:"half_open_max"`
}

// Neo4jConfig points at the chapter catalog. An empty URL disables it.
type Neo4jConfig struct {
	URL      string `yaml:"url"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
}

// NATSConfig points at the event broker. An empty URL disables events.
type NATSConfig struct {
	URL string `yaml:"url"`
}

// Load reads the YAML file at path (if any), applies defaults and then
// environment overrides, and validates the result.
func Load(path string) (*Config, error) {
	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}
	ApplyDefaults(&cfg)
	if err := ApplyEnv(&cfg, os.Getenv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ApplyEnv overrides cfg from the environment. getenv is os.Getenv outside tests.
func ApplyEnv(cfg *Config, getenv func(string) string) error {
	envOr := func(key, fallback string) string {
		if v := getenv(key); v != "" {
			return v
		}
		return fallback
	}

	cfg.Server.Host = envOr("BOOKRAG_HOST", cfg.Server.Host)
	cfg.Server.CORSOrigins = envOr("CORS_ORIGIN", cfg.Server.CORSOrigins)
	cfg.Index.Backend = strings.ToLower(envOr("BOOKRAG_INDEX_BACKEND", cfg.Index.Backend))
	cfg.Index.QdrantURL = envOr("QDRANT_URL", cfg.Index.QdrantURL)
	cfg.Index.Collection = envOr("QDRANT_COLLECTION", cfg.Index.Collection)
	cfg.Index.MemoryPath = envOr("BOOKRAG_MEMORY_PATH", cfg.Index.MemoryPath)
	cfg.Index.SeedFile = envOr("BOOKRAG_SEED_FILE", cfg.Index.SeedFile)
	cfg.Embedding.Provider = envOr("EMBEDDING_PROVIDER", cfg.Embedding.Provider)
	cfg.Embedding.BaseURL = envOr("OLLAMA_URL", cfg.Embedding.BaseURL)
	cfg.Embedding.Model = envOr("EMBEDDING_MODEL", cfg.Embedding.Model)
	cfg.Generation.Provider = envOr("LLM_PROVIDER", cfg.Generation.Provider)
	cfg.Generation.BaseURL = envOr("LLM_BASE_URL", cfg.Generation.BaseURL)
	cfg.Generation.Model = envOr("LLM_MODEL", cfg.Generation.Model)
	cfg.Generation.APIKey = envOr("LLM_API_KEY", envOr("OPENAI_API_KEY", cfg.Generation.APIKey))
	cfg.Embedding.APIKey = envOr("EMBEDDING_API_KEY", cfg.Embedding.APIKey)
	cfg.Neo4j.URL = envOr("NEO4J_URL", cfg.Neo4j.URL)
	cfg.Neo4j.User = envOr("NEO4J_USER", cfg.Neo4j.User)
	cfg.Neo4j.Password = envOr("NEO4J_PASS", cfg.Neo4j.Password)
	cfg.NATS.URL = envOr("NATS_URL", cfg.NATS.URL)

	var errs []error
	if v := envOr("PORT", getenv("BOOKRAG_PORT")); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("config: PORT: %w", err))
		} else {
			cfg.Server.Port = port
		}
	}
	if v := getenv("BOOKRAG_DEBUG"); v != "" {
		debug, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("config: BOOKRAG_DEBUG: %w", err))
		} else {
			cfg.Debug = debug
		}
	}
	if v := getenv("BOOKRAG_THRESHOLD"); v != "" {
		th, err := strconv.ParseFloat(v, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("config: BOOKRAG_THRESHOLD: %w", err))
		} else {
			cfg.RAG.Threshold = th
		}
	}
	return errors.Join(errs...)
}

// MaxRetryAttempts caps attempts per external call: one call plus one retry.
const MaxRetryAttempts = 2

// retryBackoffMax bounds the pause between two attempts of one call.
const retryBackoffMax = time.Second

// Budget is the longest a single answer can take when every call times out
// and is retried.
func (r RAGConfig) Budget() time.Duration {
	attempts := r.RetryAttempts
	if attempts <= 0 || attempts > MaxRetryAttempts {
		attempts = MaxRetryAttempts
	}
	perAttempt := r.EmbedTimeout + r.SearchTimeout + r.GenerateTimeout
	return time.Duration(attempts)*perAttempt + time.Duration(attempts-1)*3*retryBackoffMax
}

func inRange(v *float64, lo, hi float64) bool {
	return v == nil || (*v >= lo && *v <= hi)
}

// Validate checks ranges and backend choices.
func (c *Config) Validate() error {
	var errs []error
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("config: server.port %d out of range", c.Server.Port))
	}
	switch c.Index.Backend {
	case BackendQdrant:
		if c.Index.QdrantURL == "" {
			errs = append(errs, errors.New("config: index.qdrant_url is required for the qdrant backend"))
		}
	case BackendMemory:
	default:
		errs = append(errs, fmt.Errorf("config: index.backend %q must be %q or %q", c.Index.Backend, BackendQdrant, BackendMemory))
	}
	if c.Index.Dimensions <= 0 {
		errs = append(errs, fmt.Errorf("config: index.dimensions %d must be positive", c.Index.Dimensions))
	}
	if c.Index.ScoreFloor < 0 || c.Index.ScoreFloor >= 1 {
		errs = append(errs, fmt.Errorf("config: index.score_floor %v must be in [0,1)", c.Index.ScoreFloor))
	}
	switch strings.ToLower(c.Embedding.Provider) {
	case llm.ProviderOllama, llm.ProviderOpenAI:
	default:
		errs = append(errs, fmt.Errorf("config: embedding.provider %q unsupported", c.Embedding.Provider))
	}
	switch strings.ToLower(c.Generation.Provider) {
	case llm.ProviderOllama:
	case llm.ProviderOpenAI:
		if c.Generation.APIKey == "" {
			errs = append(errs, errors.New("config: generation.api_key is required for the openai provider"))
		}
	default:
		errs = append(errs, fmt.Errorf("config: generation.provider %q unsupported", c.Generation.Provider))
	}
	r := c.RAG
	if r.Threshold <= 0 || r.Threshold > 1 {
		errs = append(errs, fmt.Errorf("config: rag.threshold %v must be in (0,1]", r.Threshold))
	}
	if r.SecondaryThreshold <= 0 || r.SecondaryThreshold > r.Threshold {
		errs = append(errs, fmt.Errorf("config: rag.secondary_threshold %v must be in (0, threshold]", r.SecondaryThreshold))
	}
	if r.TopK > 50 {
		errs = append(errs, fmt.Errorf("config: rag.top_k %d exceeds 50", r.TopK))
	}
	if !inRange(r.Temperature, 0, 2) || !inRange(r.FallbackTemperature, 0, 2) {
		errs = append(errs, errors.New("config: rag temperatures must be in [0,2]"))
	}
	if r.RetryAttempts < 0 || r.RetryAttempts > MaxRetryAttempts {
		errs = append(errs, fmt.Errorf("config: rag.retry_attempts %d must be in [1,%d]", r.RetryAttempts, MaxRetryAttempts))
	}
	if budget := r.Budget(); c.Server.WriteTimeout > 0 && c.Server.WriteTimeout <= budget {
		errs = append(errs, fmt.Errorf("config: server.write_timeout %s must exceed the worst-case answer time %s", c.Server.WriteTimeout, budget))
	}
	if c.RateLimit.Rate < 0 {
		errs = append(errs, fmt.Errorf("config: rate_limit.rate %v is negative", c.RateLimit.Rate))
	}
	return errors.Join(errs...)
}
