package domain

import "testing"

func TestAssembledContextCitations(t *testing.T) {
	c := AssembledContext{Chapters: []int{2, 5}}
	got := c.Citations()
	if len(got) != 2 || got[0] != "Chapter 2" || got[1] != "Chapter 5" {
		t.Fatalf("unexpected citations: %v", got)
	}
}

func TestAssembledContextCitations_EmptyIsNonNil(t *testing.T) {
	got := AssembledContext{}.Citations()
	if got == nil || len(got) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", got)
	}
}

func TestFilterIsZero(t *testing.T) {
	if !(Filter{}).IsZero() {
		t.Fatal("empty filter should be zero")
	}
	if (Filter{Chapter: 3}).IsZero() {
		t.Fatal("chapter filter should not be zero")
	}
}
