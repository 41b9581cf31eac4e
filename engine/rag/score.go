package rag

import (
	"math"

	"github.com/physai/bookrag/engine/domain"
	"github.com/physai/bookrag/pkg/fn"
)

// Scorer turns a hit set into a confidence assessment.
//
// The score is the top similarity plus a small bonus for every other hit at
// or above SecondaryThreshold, capped at MaxBonus and at 1. Only the top
// similarity decides the classification: grounded iff it reaches Threshold.
type Scorer struct {
	Threshold          float64
	SecondaryThreshold float64
	CorroborationBonus float64
	MaxBonus           float64
}

// DefaultScorer uses the production thresholds.
func DefaultScorer() Scorer { return DefaultOptions().Scorer() }

// Score assesses hits. It never fails and performs no I/O.
func (s Scorer) Score(hits []domain.SearchHit) domain.ConfidenceAssessment {
	if len(hits) == 0 {
		return domain.ConfidenceAssessment{Score: 0, Source: domain.SourceFallback, ResultCount: 0}
	}

	top := 0
	for i, h := range hits {
		if h.Score > hits[top].Score {
			top = i
		}
	}
	best := clamp01(float64(hits[top].Score))

	corroborating := 0
	for i, h := range hits {
		if i != top && float64(h.Score) >= s.SecondaryThreshold {
			corroborating++
		}
	}
	bonus := math.Min(s.MaxBonus, float64(corroborating)*s.CorroborationBonus)
	score := math.Min(1, best+math.Max(0, bonus))

	src := domain.SourceFallback
	if best >= s.Threshold {
		src = domain.SourceGrounded
	}
	return domain.ConfidenceAssessment{Score: score, Source: src, ResultCount: len(hits)}
}

// Relevant returns the hits whose score reaches the threshold, in input order.
func (s Scorer) Relevant(hits []domain.SearchHit) []domain.SearchHit {
	return fn.Filter(hits, func(h domain.SearchHit) bool { return float64(h.Score) >= s.Threshold })
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
