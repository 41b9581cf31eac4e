package rag

import (
	"math"
	"sort"
	"unicode/utf8"

	"github.com/physai/bookrag/engine/domain"
	"github.com/physai/bookrag/pkg/fn"
)

// Assembly defaults.
const (
	DefaultContextLimit    = 3
	DefaultExcerptMaxChars = 1000
)

// Assemble selects the top hits and shapes them into a citable context block.
// Hits are ordered by score descending, ties broken by rank and then by
// input position. The input slice is not modified. Chunks without a known
// chapter still give context but are never cited.
func Assemble(hits []domain.SearchHit, limit, maxChars int) domain.AssembledContext {
	if limit <= 0 {
		limit = DefaultContextLimit
	}
	if maxChars <= 0 {
		maxChars = DefaultExcerptMaxChars
	}

	sorted := make([]domain.SearchHit, len(hits))
	copy(sorted, hits)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Score != sorted[j].Score {
			return sorted[i].Score > sorted[j].Score
		}
		return sorted[i].Rank < sorted[j].Rank
	})
	if len(sorted) > limit {
		sorted = sorted[:limit]
	}

	return domain.AssembledContext{
		Entries: fn.Map(sorted, func(h domain.SearchHit) domain.ContextEntry {
			return domain.ContextEntry{
				Chapter:      h.Chunk.Chapter,
				ChapterTitle: h.Chunk.ChapterTitle,
				Module:       h.Chunk.Module,
				Section:      h.Chunk.Section,
				Excerpt:      truncateRunes(h.Chunk.Text, maxChars),
				Relevance:    round2(float64(h.Score)),
			}
		}),
		Chapters: fn.Unique(fn.Filter(
			fn.Map(sorted, func(h domain.SearchHit) int { return h.Chunk.Chapter }),
			func(ch int) bool { return ch > 0 },
		)),
	}
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n])
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
