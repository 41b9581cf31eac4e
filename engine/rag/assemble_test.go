package rag

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/physai/bookrag/engine/domain"
)

func TestAssemble_OrdersAndLimits(t *testing.T) {
	hits := []domain.SearchHit{
		hit(4, "d", "four", 0.70, 3),
		hit(2, "a", "two", 0.95, 0),
		hit(5, "c", "five", 0.81, 2),
		hit(2, "b", "two again", 0.88, 1),
	}
	ac := Assemble(hits, 3, 1000)

	require.Len(t, ac.Entries, 3)
	assert.Equal(t, []string{"a", "b", "c"}, []string{ac.Entries[0].Section, ac.Entries[1].Section, ac.Entries[2].Section})
	assert.Equal(t, []int{2, 5}, ac.Chapters)
	assert.Equal(t, []string{"Chapter 2", "Chapter 5"}, ac.Citations())
}

func TestAssemble_TiesByRankThenPosition(t *testing.T) {
	hits := []domain.SearchHit{
		hit(1, "late-rank", "", 0.8, 5),
		hit(2, "first-pos", "", 0.8, 1),
		hit(3, "second-pos", "", 0.8, 1),
	}
	ac := Assemble(hits, 3, 0)
	assert.Equal(t, "first-pos", ac.Entries[0].Section)
	assert.Equal(t, "second-pos", ac.Entries[1].Section)
	assert.Equal(t, "late-rank", ac.Entries[2].Section)
}

func TestAssemble_DoesNotMutateInput(t *testing.T) {
	hits := []domain.SearchHit{hit(1, "x", "", 0.1, 0), hit(2, "y", "", 0.9, 1)}
	before := append([]domain.SearchHit(nil), hits...)
	Assemble(hits, 1, 10)
	assert.Equal(t, before, hits)
}

func TestAssemble_Deterministic(t *testing.T) {
	hits := []domain.SearchHit{
		hit(3, "a", "alpha", 0.77, 0),
		hit(1, "b", "beta", 0.77, 0),
		hit(3, "c", "gamma", 0.91, 2),
	}
	first := Assemble(hits, 3, 100)
	for i := 0; i < 20; i++ {
		assert.Equal(t, first, Assemble(hits, 3, 100))
	}
}

func TestAssemble_NoDuplicateChapters(t *testing.T) {
	hits := []domain.SearchHit{
		hit(2, "a", "", 0.9, 0),
		hit(2, "b", "", 0.85, 1),
		hit(2, "c", "", 0.8, 2),
	}
	ac := Assemble(hits, 3, 0)
	assert.Equal(t, []int{2}, ac.Chapters)
	assert.Len(t, ac.Entries, 3)
}

func TestAssemble_UnknownChapterIsNotCited(t *testing.T) {
	hits := []domain.SearchHit{
		hit(0, "orphan", "chunk with no chapter payload", 0.95, 0),
		hit(4, "Nodes", "rclpy nodes", 0.8, 1),
	}
	ac := Assemble(hits, 3, 0)
	assert.Len(t, ac.Entries, 2)
	assert.Equal(t, []int{4}, ac.Chapters)
	assert.Equal(t, []string{"Chapter 4"}, ac.Citations())

	p := groundedPrompt("what is a node", ac)
	assert.NotContains(t, p, "Chapter 0")
	assert.Contains(t, p, "=== Textbook excerpt ===")
}

func TestAssemble_TruncatesByRunesAndRounds(t *testing.T) {
	text := strings.Repeat("ü", 20)
	ac := Assemble([]domain.SearchHit{hit(9, "s", text, 0.876, 0)}, 0, 5)

	require.Len(t, ac.Entries, 1)
	assert.Equal(t, "üüüüü", ac.Entries[0].Excerpt)
	assert.Equal(t, 0.88, ac.Entries[0].Relevance)
}

func TestAssemble_DefaultsAndEmpty(t *testing.T) {
	hits := make([]domain.SearchHit, 0, 6)
	for i := 0; i < 6; i++ {
		hits = append(hits, hit(i+1, "s", strings.Repeat("x", 1500), 0.9, i))
	}
	ac := Assemble(hits, 0, 0)
	assert.Len(t, ac.Entries, DefaultContextLimit)
	assert.Len(t, ac.Entries[0].Excerpt, DefaultExcerptMaxChars)

	empty := Assemble(nil, 3, 100)
	assert.NotNil(t, empty.Entries)
	assert.NotNil(t, empty.Citations())
	assert.Empty(t, empty.Chapters)
}

func TestGroundedPromptHeaders(t *testing.T) {
	ac := domain.AssembledContext{
		Entries: []domain.ContextEntry{
			{Chapter: 2, ChapterTitle: "ROS 2 Fundamentals", Module: "Module 1", Section: "Workspaces", Excerpt: "colcon build"},
			{Chapter: 9, Excerpt: "isaac"},
		},
		Chapters: []int{2, 9},
	}
	p := groundedPrompt("how?", ac)
	assert.Contains(t, p, "=== Chapter 2: ROS 2 Fundamentals (Module 1) ===\nSection: Workspaces\ncolcon build")
	assert.Contains(t, p, "=== Chapter 9 ===\nisaac")
	assert.True(t, strings.HasSuffix(p, "Question: how?\n\nAnswer:"))
}

func TestWithDisclaimer(t *testing.T) {
	assert.Equal(t, domain.FallbackDisclaimer, withDisclaimer("  "))
	assert.Equal(t, "hi\n\n"+domain.FallbackDisclaimer, withDisclaimer("hi\n"))
	already := "x " + domain.FallbackDisclaimer
	assert.Equal(t, already, withDisclaimer(already))
}
