package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/physai/bookrag/engine/domain"
	"github.com/physai/bookrag/pkg/mid"
)

const (
	defaultSearchResults = 5
	maxSearchResults     = 20
	maxSearchQuery       = 500
	defaultSearchFloor   = 0.7
	snippetChars         = 200
	maxBodyBytes         = 64 << 10
)

// ChatRequest is the JSON body for POST /api/chat.
type ChatRequest struct {
	Query     string `json:"query"`
	UserID    string `json:"user_id,omitempty"`
	ChapterID string `json:"chapter_id,omitempty"`
}

// ChatResponse is the JSON response for POST /api/chat.
type ChatResponse struct {
	Answer      string   `json:"answer"`
	Confidence  float64  `json:"confidence_score"`
	Source      string   `json:"source_type"`
	ResultCount int      `json:"result_count"`
	Citations   []string `json:"citations"`
	QueryTimeMS int64    `json:"query_time_ms"`
}

// SearchRequest is the JSON body for POST /api/search.
type SearchRequest struct {
	Query      string   `json:"query"`
	MaxResults int      `json:"max_results,omitempty"`
	Threshold  *float64 `json:"threshold,omitempty"`
	ChapterID  string   `json:"chapter_id,omitempty"`
}

// SearchResult is one retrieved chunk.
type SearchResult struct {
	ChapterID       string  `json:"chapter_id"`
	ChapterNumber   int     `json:"chapter_number"`
	ChapterTitle    string  `json:"chapter_title,omitempty"`
	Section         string  `json:"section,omitempty"`
	Module          string  `json:"module,omitempty"`
	ContentSnippet  string  `json:"content_snippet"`
	SimilarityScore float64 `json:"similarity_score"`
}

// SearchResponse is the JSON response for POST /api/search.
type SearchResponse struct {
	Results    []SearchResult `json:"results"`
	TotalCount int            `json:"total_count"`
}

func (s *server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := decodeBody(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	chapter, err := domain.ParseChapterID(req.ChapterID)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	ctx := r.Context()
	if s.answerTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.answerTimeout)
		defer cancel()
	}
	ans, err := s.answers.Answer(ctx, domain.Query{Text: req.Query, UserID: req.UserID, Chapter: chapter})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, ChatResponse{
		Answer:      ans.Text,
		Confidence:  ans.Confidence,
		Source:      string(ans.Source),
		ResultCount: ans.ResultCount,
		Citations:   ans.Citations,
		QueryTimeMS: ans.QueryTime.Milliseconds(),
	})
}

func (s *server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	if err := decodeBody(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if utf8.RuneCountInString(req.Query) > maxSearchQuery {
		respondError(w, http.StatusBadRequest, "query must be at most 500 characters")
		return
	}
	switch {
	case req.MaxResults == 0:
		req.MaxResults = defaultSearchResults
	case req.MaxResults < 1 || req.MaxResults > maxSearchResults:
		respondError(w, http.StatusBadRequest, "max_results must be between 1 and 20")
		return
	}
	floor := defaultSearchFloor
	if req.Threshold != nil {
		if *req.Threshold < 0 || *req.Threshold > 1 {
			respondError(w, http.StatusBadRequest, "threshold must be between 0 and 1")
			return
		}
		floor = *req.Threshold
	}
	chapter, err := domain.ParseChapterID(req.ChapterID)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	hits, err := s.search.Search(r.Context(), domain.Query{Text: req.Query, Chapter: chapter}, req.MaxResults)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	results := make([]SearchResult, 0, len(hits))
	for _, h := range hits {
		if float64(h.Score) < floor {
			continue
		}
		results = append(results, SearchResult{
			ChapterID:       domain.ChapterID(h.Chunk.Chapter),
			ChapterNumber:   h.Chunk.Chapter,
			ChapterTitle:    h.Chunk.ChapterTitle,
			Section:         h.Chunk.Section,
			Module:          h.Chunk.Module,
			ContentSnippet:  snippet(h.Chunk.Text),
			SimilarityScore: float64(h.Score),
		})
	}
	respondJSON(w, http.StatusOK, SearchResponse{Results: results, TotalCount: len(results)})
}

// HealthResponse reports dependency status.
type HealthResponse struct {
	Status   string            `json:"status"`
	Services map[string]string `json:"services"`
	Time     time.Time         `json:"timestamp"`
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	resp := HealthResponse{Status: "healthy", Services: map[string]string{}, Time: time.Now().UTC()}
	if _, err := s.index.Count(ctx); err != nil {
		resp.Status = "degraded"
		resp.Services["vector_index"] = "unavailable"
	} else {
		resp.Services["vector_index"] = "ok"
	}

	switch {
	case s.embedder == nil:
		resp.Services["embedder"] = "unknown"
	case s.embedder.Ping(ctx) != nil:
		resp.Status = "degraded"
		resp.Services["embedder"] = "unavailable"
	default:
		resp.Services["embedder"] = "ok"
	}

	switch {
	case s.catalog == nil:
		resp.Services["catalog"] = "disabled"
	case s.catalog.Ping(ctx) != nil:
		resp.Status = "degraded"
		resp.Services["catalog"] = "unavailable"
	default:
		resp.Services["catalog"] = "ok"
	}

	switch {
	case !s.events.Enabled():
		resp.Services["events"] = "disabled"
	case !s.events.Connected():
		resp.Services["events"] = "reconnecting"
	default:
		resp.Services["events"] = "ok"
	}
	respondJSON(w, http.StatusOK, resp)
}

// VectorStats describes the vector index.
type VectorStats struct {
	TotalVectors   uint64 `json:"total_vectors"`
	CollectionName string `json:"collection_name"`
	Status         string `json:"status"`
}

func (s *server) handleVectorStats(w http.ResponseWriter, r *http.Request) {
	stats := VectorStats{CollectionName: s.index.Collection(), Status: "connected"}
	n, err := s.index.Count(r.Context())
	if err != nil {
		s.logger.Warn("vector stats: count failed", zap.Error(err))
		stats.Status = "disconnected"
	}
	stats.TotalVectors = n
	respondJSON(w, http.StatusOK, stats)
}

func (s *server) handleChapters(w http.ResponseWriter, r *http.Request) {
	if s.catalog == nil {
		respondError(w, http.StatusServiceUnavailable, "chapter catalog is not configured")
		return
	}
	q := r.URL.Query()
	module, err1 := queryInt(q.Get("module"))
	limit, err2 := queryInt(q.Get("limit"))
	offset, err3 := queryInt(q.Get("offset"))
	if err := errors.Join(err1, err2, err3); err != nil {
		respondError(w, http.StatusBadRequest, "module, limit and offset must be integers")
		return
	}
	page, err := s.catalog.List(r.Context(), module, limit, offset)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, page)
}

func (s *server) handleChapter(w http.ResponseWriter, r *http.Request) {
	if s.catalog == nil {
		respondError(w, http.StatusServiceUnavailable, "chapter catalog is not configured")
		return
	}
	ch, err := s.catalog.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, ch)
}

// fail maps err to a status and writes it. A cancelled request gets no body.
func (s *server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == 0 {
		s.logger.Debug("request cancelled", zap.String("path", r.URL.Path))
		return
	}
	msg := err.Error()
	if status >= 500 {
		s.logger.Error("request failed",
			zap.String("path", r.URL.Path),
			zap.String("request_id", mid.RequestIDFrom(r.Context())),
			zap.Int("status", status),
			zap.Error(err))
		msg = publicMessage(status)
	}
	respondError(w, status, msg)
}

// statusFor maps pipeline errors to HTTP statuses. Zero means the client is
// gone and nothing should be written.
func statusFor(err error) int {
	switch {
	case errors.Is(err, context.Canceled):
		return 0
	case domain.IsValidation(err):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrChapterNotFound):
		return http.StatusNotFound
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, domain.ErrGenerationUnavailable), errors.Is(err, domain.ErrCatalogUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func publicMessage(status int) string {
	switch status {
	case http.StatusServiceUnavailable:
		return "the answer service is temporarily unavailable, please try again"
	case http.StatusGatewayTimeout:
		return "the request timed out, please try again"
	default:
		return "an error occurred while processing your request"
	}
}

func snippet(text string) string {
	if utf8.RuneCountInString(text) <= snippetChars {
		return text
	}
	return string([]rune(text)[:snippetChars]) + "..."
}

func queryInt(v string) (int, error) {
	if strings.TrimSpace(v) == "" {
		return 0, nil
	}
	return strconv.Atoi(v)
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	return json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v)
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{"error": msg})
}
