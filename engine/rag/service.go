// Package rag answers textbook questions: it embeds the query, retrieves
// nearby chunks, decides whether they are trustworthy and then asks the
// generator for either a grounded, cited answer or a disclaimed
// general-knowledge one.
//
// Retrieval fails soft: any embedding or index failure routes the query to
// the fallback answer. Generation fails loud: its error reaches the caller
// and no partial answer is returned.
package rag

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/physai/bookrag/engine/domain"
	"github.com/physai/bookrag/pkg/fn"
	"github.com/physai/bookrag/pkg/llm"
)

// Stage names used for spans, logs and metrics.
const (
	StageValidate = "validate"
	StageEmbed    = "embed"
	StageSearch   = "search"
	StageAssess   = "assess"
	StageGenerate = "generate"
)

// Recorder receives pipeline outcomes. pkg/metrics.Pipeline implements it.
type Recorder interface {
	AnswerServed(source string, confidence float64, took time.Duration)
	StageFailed(stage string)
}

type nopRecorder struct{}

func (nopRecorder) AnswerServed(string, float64, time.Duration) {}
func (nopRecorder) StageFailed(string)                          {}

// Service is the answer pipeline. It holds no per-request state and is safe
// for concurrent use.
type Service struct {
	rawEmbed Embedder
	rawIndex VectorIndex
	rawGen   Generator

	embed  Embedder
	index  VectorIndex
	gen    Generator
	scorer Scorer
	opts   Options
	logger *zap.Logger
	rec    Recorder
	now    func() time.Time
}

// New creates a Service over the three external capabilities.
func New(embed Embedder, index VectorIndex, gen Generator, opts Options, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	opts = opts.withDefaults()
	s := &Service{
		rawEmbed: embed,
		rawIndex: index,
		rawGen:   gen,
		scorer:   opts.Scorer(),
		opts:     opts,
		logger:   logger,
		rec:      nopRecorder{},
		now:      time.Now,
	}
	s.wire(Breakers{})
	return s
}

// WithBreakers puts a circuit breaker in front of each non-nil dependency.
func (s *Service) WithBreakers(b Breakers) *Service {
	s.wire(b)
	return s
}

// WithRecorder reports outcomes to r.
func (s *Service) WithRecorder(r Recorder) *Service {
	if r != nil {
		s.rec = r
	}
	return s
}

// Options returns the effective options.
func (s *Service) Options() Options { return s.opts }

func (s *Service) wire(b Breakers) {
	s.embed = guardedEmbedder{inner: s.rawEmbed, g: newGuard(s.opts.EmbedTimeout, s.opts.Retry, b.Embed, domain.ErrEmbeddingUnavailable)}
	s.index = guardedIndex{inner: s.rawIndex, g: newGuard(s.opts.SearchTimeout, s.opts.Retry, b.Search, domain.ErrIndexUnavailable)}
	s.gen = guardedGenerator{inner: s.rawGen, g: newGuard(s.opts.GenerateTimeout, s.opts.Retry, b.Generate, domain.ErrGenerationUnavailable)}
}

// retrieval carries a query through embedding and search. A degraded stage
// is recorded rather than returned so the pipeline can fall back.
type retrieval struct {
	query    domain.Query
	vec      []float32
	hits     []domain.SearchHit
	degraded string
	err      error
}

// plan is the branch decision handed to generation.
type plan struct {
	query      domain.Query
	assessment domain.ConfidenceAssessment
	context    domain.AssembledContext
}

// Answer runs the full pipeline for q. It returns an error only for invalid
// input, generation failure or cancellation of ctx.
func (s *Service) Answer(ctx context.Context, q domain.Query) (*domain.Answer, error) {
	start := s.now()

	q, err := fn.TracedStage("rag.validate", s.validate)(ctx, q).Unwrap()
	if err != nil {
		return nil, err
	}

	r, err := s.retrieve(ctx, q)
	if err != nil {
		return nil, err
	}

	p, _ := fn.TracedStage("rag.assess", fn.MapStage(s.assess))(ctx, r).Unwrap()

	ans, err := fn.TracedStage("rag.generate", s.generate)(ctx, p).Unwrap()
	if err != nil {
		s.rec.StageFailed(StageGenerate)
		s.logger.Error("rag: generation failed",
			zap.String("query", logQuery(q.Text)),
			zap.String("source", string(p.assessment.Source)),
			zap.Error(err))
		return nil, err
	}

	ans.QueryTime = s.now().Sub(start)
	s.rec.AnswerServed(string(ans.Source), ans.Confidence, ans.QueryTime)
	s.logger.Info("rag: answered",
		zap.String("query", logQuery(q.Text)),
		zap.String("user_id", q.UserID),
		zap.String("source", string(ans.Source)),
		zap.Float64("confidence", ans.Confidence),
		zap.Int("result_count", ans.ResultCount),
		zap.Strings("citations", ans.Citations),
		zap.Duration("took", ans.QueryTime))
	return ans, nil
}

// Search runs validation, embedding and retrieval only. Retrieval failures
// yield an empty result; only invalid input and cancellation are errors.
func (s *Service) Search(ctx context.Context, q domain.Query, limit int) ([]domain.SearchHit, error) {
	q, err := s.validate(ctx, q).Unwrap()
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = s.opts.TopK
	}
	r, err := s.retrieveN(ctx, q, limit)
	if err != nil {
		return nil, err
	}
	return r.hits, nil
}

func (s *Service) validate(_ context.Context, q domain.Query) fn.Result[domain.Query] {
	if err := domain.ValidateQuery(q, s.opts.MaxQueryLength); err != nil {
		return fn.Err[domain.Query](err)
	}
	return fn.Ok(q)
}

func (s *Service) retrieve(ctx context.Context, q domain.Query) (retrieval, error) {
	return s.retrieveN(ctx, q, s.opts.TopK)
}

func (s *Service) retrieveN(ctx context.Context, q domain.Query, topK int) (retrieval, error) {
	embed := fn.TracedStage("rag.embed", s.embedStage)
	search := fn.TracedStage("rag.search", func(ctx context.Context, r retrieval) fn.Result[retrieval] {
		return s.searchStage(ctx, r, topK)
	})

	r, err := fn.Then(embed, search)(ctx, q).Unwrap()
	if err != nil {
		return retrieval{}, err
	}
	if r.err != nil {
		s.rec.StageFailed(r.degraded)
		s.logger.Warn("rag: retrieval degraded, falling back",
			zap.String("stage", r.degraded),
			zap.String("query", logQuery(q.Text)),
			zap.Error(r.err))
	}
	return r, nil
}

// embedStage absorbs embedding failures unless the caller has gone away.
func (s *Service) embedStage(ctx context.Context, q domain.Query) fn.Result[retrieval] {
	vec, err := s.embed.Embed(ctx, q.Text)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fn.Err[retrieval](fmt.Errorf("rag: embed: %w", ctxErr))
		}
		return fn.Ok(retrieval{query: q, hits: []domain.SearchHit{}, degraded: StageEmbed, err: err})
	}
	return fn.Ok(retrieval{query: q, vec: vec})
}

// searchStage absorbs index failures unless the caller has gone away.
func (s *Service) searchStage(ctx context.Context, r retrieval, topK int) fn.Result[retrieval] {
	if r.err != nil {
		return fn.Ok(r)
	}
	hits, err := s.index.Search(ctx, r.vec, topK, domain.Filter{Chapter: r.query.Chapter})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fn.Err[retrieval](fmt.Errorf("rag: search: %w", ctxErr))
		}
		r.hits, r.degraded, r.err = []domain.SearchHit{}, StageSearch, err
		return fn.Ok(r)
	}
	r.hits = hits
	return fn.Ok(r)
}

func (s *Service) assess(r retrieval) plan {
	a := s.scorer.Score(r.hits)
	p := plan{query: r.query, assessment: a}
	if a.Source == domain.SourceGrounded {
		p.context = Assemble(s.scorer.Relevant(r.hits), s.opts.ContextLimit, s.opts.ExcerptMaxChars)
	}
	return p
}

func (s *Service) generate(ctx context.Context, p plan) fn.Result[*domain.Answer] {
	if p.assessment.Source == domain.SourceGrounded {
		text, err := s.gen.Complete(ctx, groundedPrompt(p.query.Text, p.context), llm.Options{
			Temperature: *s.opts.Temperature,
			MaxTokens:   s.opts.MaxTokens,
		})
		if err != nil {
			return fn.Err[*domain.Answer](fmt.Errorf("rag: grounded generation: %w", err))
		}
		return fn.Ok(&domain.Answer{
			Text:        text,
			Confidence:  p.assessment.Score,
			Source:      domain.SourceGrounded,
			ResultCount: p.assessment.ResultCount,
			Citations:   p.context.Citations(),
		})
	}

	text, err := s.gen.Complete(ctx, fallbackPrompt(p.query.Text), llm.Options{
		Temperature: *s.opts.FallbackTemperature,
		MaxTokens:   s.opts.MaxTokens,
	})
	if err != nil {
		return fn.Err[*domain.Answer](fmt.Errorf("rag: fallback generation: %w", err))
	}
	return fn.Ok(&domain.Answer{
		Text:        withDisclaimer(text),
		Confidence:  0,
		Source:      domain.SourceFallback,
		ResultCount: p.assessment.ResultCount,
		Citations:   []string{},
	})
}

// IsUnavailable reports whether err means an external dependency could not serve.
func IsUnavailable(err error) bool {
	return errors.Is(err, domain.ErrGenerationUnavailable) ||
		errors.Is(err, domain.ErrEmbeddingUnavailable) ||
		errors.Is(err, domain.ErrIndexUnavailable)
}

const logQueryMax = 100

func logQuery(q string) string {
	if utf8.RuneCountInString(q) <= logQueryMax {
		return q
	}
	return string([]rune(q)[:logQueryMax]) + "..."
}
