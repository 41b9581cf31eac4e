package rag

import (
	"fmt"
	"strings"

	"github.com/physai/bookrag/engine/domain"
)

const groundedInstruction = `You are a teaching assistant for the Physical AI & Humanoid Robotics textbook.
Answer the question using only the provided context. If the context does not
contain the answer, say so clearly. Cite the chapter numbers you rely on
(for example "In Chapter 2...").`

const fallbackInstruction = `You are a teaching assistant for the Physical AI & Humanoid Robotics textbook.
The textbook does not cover this question. Answer from general knowledge,
briefly and accurately, and end with this exact sentence on its own line:
%s`

// groundedPrompt builds the constrained prompt from the assembled context.
func groundedPrompt(query string, ac domain.AssembledContext) string {
	var b strings.Builder
	b.WriteString(groundedInstruction)
	b.WriteString("\n\nContext:\n")
	for _, e := range ac.Entries {
		b.WriteString("=== ")
		if e.Chapter > 0 {
			b.WriteString(domain.ChapterLabel(e.Chapter))
		} else {
			b.WriteString("Textbook excerpt")
		}
		if e.ChapterTitle != "" {
			b.WriteString(": ")
			b.WriteString(e.ChapterTitle)
		}
		if e.Module != "" {
			fmt.Fprintf(&b, " (%s)", e.Module)
		}
		b.WriteString(" ===\n")
		if e.Section != "" {
			fmt.Fprintf(&b, "Section: %s\n", e.Section)
		}
		b.WriteString(e.Excerpt)
		b.WriteString("\n\n")
	}
	fmt.Fprintf(&b, "Question: %s\n\nAnswer:", query)
	return b.String()
}

// fallbackPrompt builds the unconstrained general-knowledge prompt.
func fallbackPrompt(query string) string {
	return fmt.Sprintf(fallbackInstruction, domain.FallbackDisclaimer) +
		fmt.Sprintf("\n\nQuestion: %s\n\nAnswer:", query)
}

// withDisclaimer appends the fallback disclaimer unless the text already has it.
func withDisclaimer(text string) string {
	if strings.Contains(text, domain.FallbackDisclaimer) {
		return text
	}
	text = strings.TrimRight(text, " \n")
	if text == "" {
		return domain.FallbackDisclaimer
	}
	return text + "\n\n" + domain.FallbackDisclaimer
}
