package domain

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"
)

// DefaultMaxQueryLength caps query text, in runes, when no limit is configured.
const DefaultMaxQueryLength = 2000

// chapter ids are either "ch_007" or a bare number.
var chapterIDRegex = regexp.MustCompile(`^(?:ch_)?(\d{1,3})$`)

// ValidateQuery rejects empty queries and queries longer than maxLen runes.
// A non-positive maxLen means DefaultMaxQueryLength. These are the only hard
// preconditions of the pipeline.
func ValidateQuery(q Query, maxLen int) error {
	if maxLen <= 0 {
		maxLen = DefaultMaxQueryLength
	}
	if strings.TrimSpace(q.Text) == "" {
		return NewValidationError("text", q.Text, ErrEmptyQuery)
	}
	if n := utf8.RuneCountInString(q.Text); n > maxLen {
		return NewValidationError("text", truncateForError(q.Text), fmt.Errorf("%w: %d > %d runes", ErrQueryTooLong, n, maxLen))
	}
	if q.Chapter < 0 || q.Chapter > ChapterCount {
		return NewValidationError("chapter", strconv.Itoa(q.Chapter), ErrInvalidChapter)
	}
	return nil
}

// ParseChapterID turns "ch_002", "2" or "" into a chapter number. The empty
// string yields 0 (no hint).
func ParseChapterID(id string) (int, error) {
	id = strings.TrimSpace(strings.ToLower(id))
	if id == "" {
		return 0, nil
	}
	m := chapterIDRegex.FindStringSubmatch(id)
	if m == nil {
		return 0, NewValidationError("chapter_id", id, ErrInvalidChapter)
	}
	n, _ := strconv.Atoi(m[1])
	if n < 1 || n > ChapterCount {
		return 0, NewValidationError("chapter_id", id, ErrInvalidChapter)
	}
	return n, nil
}

// ChapterID formats a chapter number as a catalog id ("ch_002").
func ChapterID(n int) string {
	return fmt.Sprintf("ch_%03d", n)
}

// ValidateModule checks a module number is within the book's four modules.
func ValidateModule(m int) error {
	if m < 1 || m > ModuleCount {
		return NewValidationError("module", strconv.Itoa(m), ErrInvalidModule)
	}
	return nil
}

func truncateForError(s string) string {
	const max = 64
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	return string([]rune(s)[:max]) + "..."
}
