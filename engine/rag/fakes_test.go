package rag

import (
	"context"
	"sync"
	"time"

	"github.com/physai/bookrag/engine/domain"
	"github.com/physai/bookrag/pkg/fn"
	"github.com/physai/bookrag/pkg/llm"
)

type fakeEmbedder struct {
	mu    sync.Mutex
	vec   []float32
	errs  []error
	calls int
}

func (f *fakeEmbedder) Embed(ctx context.Context, _ string) ([]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		if err != nil {
			return nil, err
		}
	}
	if f.vec == nil {
		return []float32{0.1, 0.2, 0.3}, nil
	}
	return f.vec, nil
}

type fakeIndex struct {
	mu         sync.Mutex
	hits       []domain.SearchHit
	errs       []error
	block      bool
	calls      int
	lastTopK   int
	lastFilter domain.Filter
}

func (f *fakeIndex) Search(ctx context.Context, _ []float32, topK int, filter domain.Filter) ([]domain.SearchHit, error) {
	f.mu.Lock()
	f.calls++
	f.lastTopK, f.lastFilter = topK, filter
	block := f.block
	var err error
	if len(f.errs) > 0 {
		err = f.errs[0]
		f.errs = f.errs[1:]
	}
	f.mu.Unlock()

	if block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if err != nil {
		return nil, err
	}
	return f.hits, nil
}

type fakeGenerator struct {
	mu      sync.Mutex
	reply   string
	errs    []error
	prompts []string
	opts    []llm.Options
}

func (f *fakeGenerator) Complete(_ context.Context, prompt string, opts llm.Options) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prompts = append(f.prompts, prompt)
	f.opts = append(f.opts, opts)
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		if err != nil {
			return "", err
		}
	}
	return f.reply, nil
}

func (f *fakeGenerator) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.prompts)
}

type fakeRecorder struct {
	mu      sync.Mutex
	served  []string
	failed  []string
	lastDur time.Duration
}

func (r *fakeRecorder) AnswerServed(source string, _ float64, took time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.served = append(r.served, source)
	r.lastDur = took
}

func (r *fakeRecorder) StageFailed(stage string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failed = append(r.failed, stage)
}

type httpErr int

func (e httpErr) Error() string   { return "upstream status" }
func (e httpErr) HTTPStatus() int { return int(e) }

func hit(chapter int, section, text string, score float32, rank int) domain.SearchHit {
	return domain.SearchHit{
		Chunk: domain.ContentChunk{
			ID:      section,
			Chapter: chapter,
			Section: section,
			Text:    text,
		},
		Score: score,
		Rank:  rank,
	}
}

func testOptions() Options {
	o := DefaultOptions()
	o.Retry = fn.RetryOpts{MaxAttempts: 2, InitialWait: time.Millisecond, MaxWait: 2 * time.Millisecond}
	return o
}
