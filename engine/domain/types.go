// Package domain defines the core types shared by the retrieval, scoring and
// generation stages of the textbook question-answering pipeline, along with
// query validation and the error taxonomy the pipeline reports.
package domain

import (
	"fmt"
	"time"

	"github.com/physai/bookrag/pkg/fn"
)

// Query is a single user question. Chapter is an optional 1-based chapter hint;
// zero means the whole book is searched.
type Query struct {
	Text    string `json:"text"`
	UserID  string `json:"user_id,omitempty"`
	Chapter int    `json:"chapter,omitempty"`
}

// ContentChunk is a pre-indexed unit of textbook content. The vector itself
// lives in the index and is never needed at query time.
type ContentChunk struct {
	ID           string `json:"id"`
	Chapter      int    `json:"chapter_number"`
	ChapterTitle string `json:"chapter_title,omitempty"`
	Section      string `json:"section_title"`
	Module       string `json:"module,omitempty"`
	Text         string `json:"content"`
}

// SearchHit is one nearest-neighbour result. Score is cosine similarity in
// [0,1]; Rank is the zero-based position the index returned it at.
type SearchHit struct {
	Chunk ContentChunk `json:"chunk"`
	Score float32      `json:"score"`
	Rank  int          `json:"rank"`
}

// Filter narrows a vector search by chunk metadata. Zero values are ignored.
type Filter struct {
	Chapter int
}

// IsZero reports whether the filter has no conditions.
func (f Filter) IsZero() bool {
	return f.Chapter == 0
}

// ContextEntry is one citable excerpt handed to the generator.
type ContextEntry struct {
	Chapter      int     `json:"chapter_number"`
	ChapterTitle string  `json:"chapter_title,omitempty"`
	Module       string  `json:"module,omitempty"`
	Section      string  `json:"section_title"`
	Excerpt      string  `json:"excerpt"`
	Relevance    float64 `json:"relevance"`
}

// AssembledContext is the ordered, truncated context block plus the chapters
// it cites, deduplicated in order of first appearance.
type AssembledContext struct {
	Entries  []ContextEntry `json:"entries"`
	Chapters []int          `json:"chapters"`
}

// Citations renders the cited chapters as "Chapter N" labels. The result is
// never nil.
func (c AssembledContext) Citations() []string {
	return fn.Map(c.Chapters, ChapterLabel)
}

// ChapterLabel formats a chapter number the way answers cite it.
func ChapterLabel(chapter int) string {
	return fmt.Sprintf("Chapter %d", chapter)
}

// Source classifies where an answer's content came from.
type Source string

const (
	SourceGrounded Source = "grounded"
	SourceFallback Source = "fallback"
)

// ConfidenceAssessment summarises retrieval quality for one hit set.
type ConfidenceAssessment struct {
	Score       float64 `json:"score"`
	Source      Source  `json:"source"`
	ResultCount int     `json:"result_count"`
}

// Answer is the final output of the pipeline.
type Answer struct {
	Text        string        `json:"answer"`
	Confidence  float64       `json:"confidence_score"`
	Source      Source        `json:"source_type"`
	ResultCount int           `json:"result_count"`
	Citations   []string      `json:"citations"`
	QueryTime   time.Duration `json:"-"`
}

// FallbackDisclaimer is attached to every answer that is not grounded in the
// textbook.
const FallbackDisclaimer = "Note: this answer is based on general knowledge and is not sourced from the textbook."

// Chapter is a catalog entry describing one textbook chapter.
type Chapter struct {
	ID          string `json:"id"`
	Number      int    `json:"number"`
	Title       string `json:"title"`
	Module      int    `json:"module"`
	Description string `json:"description,omitempty"`
}

// Corpus bounds.
const (
	ChapterCount = 37
	ModuleCount  = 4
)
