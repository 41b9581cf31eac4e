// Package app wires the configured backends into a ready answer pipeline.
// Both the HTTP server and the CLI build through it.
package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"

	"github.com/physai/bookrag/engine/catalog"
	"github.com/physai/bookrag/engine/domain"
	"github.com/physai/bookrag/engine/events"
	"github.com/physai/bookrag/engine/rag"
	"github.com/physai/bookrag/engine/semantic"
	"github.com/physai/bookrag/pkg/config"
	"github.com/physai/bookrag/pkg/fn"
	"github.com/physai/bookrag/pkg/llm"
	"github.com/physai/bookrag/pkg/logging"
	"github.com/physai/bookrag/pkg/metrics"
	"github.com/physai/bookrag/pkg/natsutil"
	"github.com/physai/bookrag/pkg/ollama"
	"github.com/physai/bookrag/pkg/resilience"
)

// Index is a vector index that can also report its size.
type Index interface {
	rag.VectorIndex
	Count(ctx context.Context) (uint64, error)
	Collection() string
}

// Catalog is the chapter catalog surface used by the API.
type Catalog interface {
	List(ctx context.Context, module, limit, offset int) (catalog.Page, error)
	Get(ctx context.Context, id string) (domain.Chapter, error)
	Ping(ctx context.Context) error
}

// App is the assembled service graph.
type App struct {
	Config   *config.Config
	Logger   *zap.Logger
	RAG      *rag.Service
	Embedder rag.Embedder
	Index    Index
	Catalog  Catalog // nil when no Neo4j is configured
	Events   *events.Publisher
	Metrics  *metrics.Registry

	closers []func(context.Context) error
}

// Build connects every configured backend. Optional backends (Neo4j, NATS)
// that cannot be reached are logged and left disabled.
func Build(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	logger = logging.OrNop(logger)
	a := &App{Config: cfg, Logger: logger, Metrics: metrics.New()}

	index, err := a.openIndex(ctx, cfg.Index)
	if err != nil {
		return nil, err
	}
	a.Index = index

	embedder, err := newEmbedder(cfg.Embedding)
	if err != nil {
		a.Close(ctx)
		return nil, err
	}
	a.Embedder = embedder
	client, err := llm.NewClient(cfg.Generation)
	if err != nil {
		a.Close(ctx)
		return nil, fmt.Errorf("app: generator: %w", err)
	}

	a.RAG = rag.New(embedder, index, llm.NewGenerator(client), RAGOptions(cfg.RAG), logger).
		WithRecorder(metrics.NewPipeline(a.Metrics))
	if cfg.Breaker.Enabled {
		a.RAG.WithBreakers(NewBreakers(cfg.Breaker))
	}

	a.Catalog = a.openCatalog(ctx, cfg.Neo4j)
	a.Events = events.NewPublisher(a.openNATS(cfg.NATS), logger)

	cctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	ensureCollection(cctx, index, cfg.Index.Dimensions, logger)
	if n, err := index.Count(cctx); err != nil {
		logger.Warn("app: vector index not reachable at startup", zap.String("collection", index.Collection()), zap.Error(err))
	} else {
		logger.Info("app: vector index ready", zap.String("collection", index.Collection()), zap.Uint64("vectors", n))
	}
	return a, nil
}

func (a *App) openIndex(ctx context.Context, cfg config.IndexConfig) (Index, error) {
	switch cfg.Backend {
	case config.BackendMemory:
		store, err := semantic.NewMemoryStore(cfg.MemoryPath, cfg.Collection)
		if err != nil {
			return nil, fmt.Errorf("app: memory index: %w", err)
		}
		if cfg.SeedFile != "" {
			if err := seedMemory(ctx, store, cfg.SeedFile); err != nil {
				return nil, err
			}
			a.Logger.Info("app: memory index seeded", zap.String("file", cfg.SeedFile))
		}
		return store.WithScoreFloor(cfg.ScoreFloor), nil
	default:
		store, err := semantic.New(cfg.QdrantURL, cfg.Collection)
		if err != nil {
			return nil, fmt.Errorf("app: qdrant connect: %w", err)
		}
		a.closers = append(a.closers, func(context.Context) error { return store.Close() })
		return store.WithScoreFloor(cfg.ScoreFloor), nil
	}
}

// seedMemory loads pre-embedded chunk records from a JSON lines file.
func seedMemory(ctx context.Context, store *semantic.MemoryStore, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("app: seed file: %w", err)
	}
	defer f.Close()
	records, err := semantic.ReadRecords(f)
	if err != nil {
		return fmt.Errorf("app: seed file %s: %w", path, err)
	}
	return store.Upsert(ctx, records)
}

type collectionEnsurer interface {
	EnsureCollection(ctx context.Context, dims int) error
}

// ensureCollection creates a missing Qdrant collection at startup. An
// unreachable index is only logged; searches then fall back.
func ensureCollection(ctx context.Context, index Index, dims int, logger *zap.Logger) {
	e, ok := index.(collectionEnsurer)
	if !ok {
		return
	}
	if err := e.EnsureCollection(ctx, dims); err != nil {
		logger.Warn("app: ensure collection", zap.String("collection", index.Collection()), zap.Int("dims", dims), zap.Error(err))
	}
}

func newEmbedder(cfg config.EmbeddingConfig) (rag.Embedder, error) {
	if strings.EqualFold(cfg.Provider, llm.ProviderOpenAI) {
		client, err := llm.NewEmbeddingClient(llm.Config{
			Provider:       llm.ProviderOpenAI,
			BaseURL:        cfg.BaseURL,
			EmbeddingModel: cfg.Model,
			APIKey:         cfg.APIKey,
		})
		if err != nil {
			return nil, fmt.Errorf("app: embedder: %w", err)
		}
		return llm.NewEmbedder(client)
	}
	return ollama.NewEmbedClient(cfg.BaseURL, cfg.Model), nil
}

func (a *App) openCatalog(ctx context.Context, cfg config.Neo4jConfig) Catalog {
	if cfg.URL == "" {
		return nil
	}
	driver, err := neo4j.NewDriverWithContext(cfg.URL, neo4j.BasicAuth(cfg.User, cfg.Password, ""))
	if err != nil {
		a.Logger.Warn("app: neo4j driver, chapter catalog disabled", zap.Error(err))
		return nil
	}
	a.closers = append(a.closers, driver.Close)
	c := catalog.New(driver, cfg.Database)
	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := c.Ping(pctx); err != nil {
		a.Logger.Warn("app: neo4j not reachable at startup", zap.String("url", cfg.URL), zap.Error(err))
	}
	return c
}

func (a *App) openNATS(cfg config.NATSConfig) *nats.Conn {
	if cfg.URL == "" {
		return nil
	}
	nc, err := natsutil.Connect(cfg.URL, "bookrag", a.Logger)
	if err != nil {
		a.Logger.Warn("app: nats connect, chat events disabled", zap.String("url", cfg.URL), zap.Error(err))
		return nil
	}
	a.closers = append(a.closers, func(context.Context) error {
		nc.Close()
		return nil
	})
	return nc
}

// Answer runs the pipeline and publishes the chat event for a served answer.
// Event failures are logged by the publisher and never fail the answer.
func (a *App) Answer(ctx context.Context, q domain.Query) (*domain.Answer, error) {
	ans, err := a.RAG.Answer(ctx, q)
	if err != nil {
		return nil, err
	}
	_ = a.Events.ChatAnswered(ctx, q, ans)
	return ans, nil
}

// Close releases backend connections in reverse order of opening.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i](ctx))
	}
	a.closers = nil
	return errors.Join(errs...)
}

// RAGOptions converts the rag config section to pipeline options.
func RAGOptions(c config.RAGConfig) rag.Options {
	retry := fn.SingleRetry
	if c.RetryAttempts > 0 {
		retry.MaxAttempts = min(c.RetryAttempts, rag.MaxRetryAttempts)
	}
	return rag.Options{
		TopK:                c.TopK,
		ContextLimit:        c.ContextLimit,
		ExcerptMaxChars:     c.ExcerptMaxChars,
		MaxQueryLength:      c.MaxQueryLength,
		Threshold:           c.Threshold,
		SecondaryThreshold:  c.SecondaryThreshold,
		CorroborationBonus:  c.CorroborationBonus,
		MaxBonus:            c.MaxBonus,
		Temperature:         c.Temperature,
		FallbackTemperature: c.FallbackTemperature,
		MaxTokens:           c.MaxTokens,
		EmbedTimeout:        c.EmbedTimeout,
		SearchTimeout:       c.SearchTimeout,
		GenerateTimeout:     c.GenerateTimeout,
		Retry:               retry,
	}
}

// NewBreakers creates one breaker per dependency. Only transient failures
// count towards tripping.
func NewBreakers(c config.BreakerConfig) rag.Breakers {
	opts := resilience.BreakerOpts{
		FailThreshold: c.FailThreshold,
		Timeout:       c.Timeout,
		HalfOpenMax:   c.HalfOpenMax,
		Trip:          resilience.IsTransient,
	}
	return rag.Breakers{
		Embed:    resilience.NewBreaker(opts),
		Search:   resilience.NewBreaker(opts),
		Generate: resilience.NewBreaker(opts),
	}
}
