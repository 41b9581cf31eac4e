package main

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/physai/bookrag/engine/app"
	"github.com/physai/bookrag/engine/domain"
	"github.com/physai/bookrag/pkg/metrics"
	"github.com/physai/bookrag/pkg/mid"
	"github.com/physai/bookrag/pkg/resilience"
)

type answerer interface {
	Answer(ctx context.Context, q domain.Query) (*domain.Answer, error)
}

type searcher interface {
	Search(ctx context.Context, q domain.Query, limit int) ([]domain.SearchHit, error)
}

type indexStats interface {
	Count(ctx context.Context) (uint64, error)
	Collection() string
}

type pinger interface {
	Ping(ctx context.Context) error
}

type eventStatus interface {
	Enabled() bool
	Connected() bool
}

// server holds the handler dependencies. catalog may be nil.
type server struct {
	answers  answerer
	search   searcher
	index    indexStats
	embedder pinger // nil when the embedder cannot be probed
	catalog  app.Catalog
	events   eventStatus
	reg      *metrics.Registry
	limiter  *resilience.KeyedLimiter
	cors     string
	logger   *zap.Logger
	// answerTimeout bounds a chat request so an error can still be written
	// before the server's write deadline. Zero disables it.
	answerTimeout time.Duration
}

// writeMargin is kept free at the end of the write deadline for the response.
const writeMargin = 2 * time.Second

func newServer(a *app.App) *server {
	s := &server{
		answers: a,
		search:  a.RAG,
		index:   a.Index,
		catalog: a.Catalog,
		events:  a.Events,
		reg:     a.Metrics,
		cors:    a.Config.Server.CORSOrigins,
		logger:  a.Logger,
	}
	if wt := a.Config.Server.WriteTimeout; wt > writeMargin {
		s.answerTimeout = wt - writeMargin
	}
	if p, ok := a.Embedder.(pinger); ok {
		s.embedder = p
	}
	if rl := a.Config.RateLimit; rl.Rate > 0 {
		s.limiter = resilience.NewKeyedLimiter(resilience.LimiterOpts{Rate: rl.Rate, Burst: rl.Burst, IdleTTL: rl.IdleTTL})
	}
	return s
}

func (s *server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(mid.Metrics(s.reg, routePattern))

	r.Get("/api/health", s.handleHealth)
	r.Get("/api/vector-stats", s.handleVectorStats)
	r.Get("/api/chapters", s.handleChapters)
	r.Get("/api/chapters/{id}", s.handleChapter)
	r.Method(http.MethodGet, "/metrics", s.reg.Handler())

	r.Group(func(r chi.Router) {
		if s.limiter != nil {
			r.Use(mid.RateLimit(s.limiter, mid.ClientIP))
		}
		r.Post("/api/chat", s.handleChat)
		r.Post("/api/search", s.handleSearch)
	})

	// CORS sits outside the router so preflight requests never reach it.
	return mid.Chain(r,
		mid.Recover(s.logger),
		mid.RequestID(),
		mid.Logger(s.logger),
		mid.CORS(s.cors),
		mid.OTel("bookrag-api"),
	)
}

// routePattern names a request by its chi route so ids do not become labels.
func routePattern(r *http.Request) string {
	if rc := chi.RouteContext(r.Context()); rc != nil {
		if p := rc.RoutePattern(); p != "" {
			return p
		}
	}
	return "unmatched"
}
