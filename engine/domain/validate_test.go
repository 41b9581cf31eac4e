package domain

import (
	"errors"
	"strings"
	"testing"
)

func TestValidateQuery_Valid(t *testing.T) {
	cases := []Query{
		{Text: "How do I set up ROS 2 workspace?"},
		{Text: "x"},
		{Text: "What is URDF?", UserID: "user_abc", Chapter: 5},
		{Text: strings.Repeat("a", DefaultMaxQueryLength)},
	}
	for _, q := range cases {
		if err := ValidateQuery(q, 0); err != nil {
			t.Errorf("expected valid for %q, got %v", q.Text, err)
		}
	}
}

func TestValidateQuery_Empty(t *testing.T) {
	for _, text := range []string{"", "   ", "\n\t"} {
		err := ValidateQuery(Query{Text: text}, 0)
		if !errors.Is(err, ErrEmptyQuery) {
			t.Errorf("expected ErrEmptyQuery for %q, got %v", text, err)
		}
		if !IsValidation(err) {
			t.Errorf("expected ValidationError for %q", text)
		}
	}
}

func TestValidateQuery_TooLong(t *testing.T) {
	err := ValidateQuery(Query{Text: strings.Repeat("b", 11)}, 10)
	if !errors.Is(err, ErrQueryTooLong) {
		t.Fatalf("expected ErrQueryTooLong, got %v", err)
	}
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected *ValidationError, got %T", err)
	}
	if ve.Field != "text" {
		t.Errorf("expected field text, got %s", ve.Field)
	}
}

func TestValidateQuery_CountsRunes(t *testing.T) {
	// 10 multi-byte runes fit a 10 rune limit.
	if err := ValidateQuery(Query{Text: strings.Repeat("ロ", 10)}, 10); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateQuery_ChapterRange(t *testing.T) {
	if err := ValidateQuery(Query{Text: "q", Chapter: ChapterCount + 1}, 0); !errors.Is(err, ErrInvalidChapter) {
		t.Fatalf("expected ErrInvalidChapter, got %v", err)
	}
	if err := ValidateQuery(Query{Text: "q", Chapter: -1}, 0); !errors.Is(err, ErrInvalidChapter) {
		t.Fatalf("expected ErrInvalidChapter, got %v", err)
	}
}

func TestParseChapterID(t *testing.T) {
	tests := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{"", 0, false},
		{"ch_002", 2, false},
		{"CH_037", 37, false},
		{"12", 12, false},
		{"ch_000", 0, true},
		{"ch_038", 0, true},
		{"chapter-2", 0, true},
		{"ch_2a", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseChapterID(tt.in)
		if tt.wantErr {
			if !errors.Is(err, ErrInvalidChapter) {
				t.Errorf("ParseChapterID(%q): expected ErrInvalidChapter, got %v", tt.in, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseChapterID(%q): unexpected error %v", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("ParseChapterID(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestChapterID(t *testing.T) {
	if got := ChapterID(7); got != "ch_007" {
		t.Fatalf("got %s", got)
	}
}

func TestValidateModule(t *testing.T) {
	for m := 1; m <= ModuleCount; m++ {
		if err := ValidateModule(m); err != nil {
			t.Errorf("module %d: %v", m, err)
		}
	}
	if err := ValidateModule(5); !errors.Is(err, ErrInvalidModule) {
		t.Errorf("expected ErrInvalidModule, got %v", err)
	}
}

func TestValidationErrorMessage(t *testing.T) {
	err := NewValidationError("text", "", ErrEmptyQuery)
	if !strings.Contains(err.Error(), "query is empty") {
		t.Fatalf("unexpected message: %s", err.Error())
	}
}
