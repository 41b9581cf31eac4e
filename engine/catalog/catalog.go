// Package catalog serves the textbook's chapter list from Neo4j, where each
// chapter is a (:Chapter {id, number, title, module, description}) node.
package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/physai/bookrag/engine/domain"
	"github.com/physai/bookrag/pkg/repo"
)

const chapterLabel = "Chapter"

// DefaultLimit returns the whole book in one page.
const DefaultLimit = domain.ChapterCount

// Catalog lists and resolves chapters.
type Catalog struct {
	chapters reader
}

type reader interface {
	repo.Reader[domain.Chapter, string]
	Ping(ctx context.Context) error
}

// New creates a Catalog backed by the given driver.
func New(driver neo4j.DriverWithContext, database string) *Catalog {
	return &Catalog{chapters: repo.NewNeo4jRepo[domain.Chapter, string](
		driver, chapterLabel, chapterFromRecord,
		repo.WithDatabase[domain.Chapter, string](database),
	)}
}

// Page is one page of the chapter listing.
type Page struct {
	Chapters []domain.Chapter `json:"chapters"`
	Total    int64            `json:"total_count"`
	Limit    int              `json:"limit"`
	Offset   int              `json:"offset"`
}

// List returns chapters ordered by number. A zero module lists every module;
// otherwise it must be 1..4.
func (c *Catalog) List(ctx context.Context, module, limit, offset int) (Page, error) {
	var filter map[string]any
	if module != 0 {
		if err := domain.ValidateModule(module); err != nil {
			return Page{}, err
		}
		filter = map[string]any{"module": int64(module)}
	}
	if limit <= 0 || limit > DefaultLimit {
		limit = DefaultLimit
	}
	offset = max(offset, 0)

	chapters, err := c.chapters.List(ctx, repo.ListOpts{
		Offset:  offset,
		Limit:   limit,
		OrderBy: "number",
		Filter:  filter,
	})
	if err != nil {
		return Page{}, fmt.Errorf("%w: %w", domain.ErrCatalogUnavailable, err)
	}
	total, err := c.chapters.Count(ctx, filter)
	if err != nil {
		return Page{}, fmt.Errorf("%w: %w", domain.ErrCatalogUnavailable, err)
	}
	return Page{Chapters: chapters, Total: total, Limit: limit, Offset: offset}, nil
}

// Get resolves a chapter by id ("ch_002" or "2").
func (c *Catalog) Get(ctx context.Context, id string) (domain.Chapter, error) {
	n, err := domain.ParseChapterID(id)
	if err != nil {
		return domain.Chapter{}, err
	}
	if n == 0 {
		return domain.Chapter{}, domain.NewValidationError("chapter_id", id, domain.ErrInvalidChapter)
	}
	ch, err := c.chapters.Get(ctx, domain.ChapterID(n))
	switch {
	case errors.Is(err, repo.ErrNotFound):
		return domain.Chapter{}, fmt.Errorf("%w: %s", domain.ErrChapterNotFound, domain.ChapterID(n))
	case err != nil:
		return domain.Chapter{}, fmt.Errorf("%w: %w", domain.ErrCatalogUnavailable, err)
	}
	return ch, nil
}

// Ping reports whether Neo4j is reachable.
func (c *Catalog) Ping(ctx context.Context) error {
	return c.chapters.Ping(ctx)
}

func chapterFromRecord(rec *neo4j.Record) (domain.Chapter, error) {
	props, err := repo.NodeProps(rec, "n")
	if err != nil {
		return domain.Chapter{}, err
	}
	ch := domain.Chapter{
		ID:          stringProp(props, "id"),
		Number:      intProp(props, "number"),
		Title:       stringProp(props, "title"),
		Module:      intProp(props, "module"),
		Description: stringProp(props, "description"),
	}
	if ch.ID == "" && ch.Number > 0 {
		ch.ID = domain.ChapterID(ch.Number)
	}
	if ch.ID == "" {
		return domain.Chapter{}, fmt.Errorf("catalog: chapter node without id or number")
	}
	return ch, nil
}

func stringProp(props map[string]any, key string) string {
	s, _ := props[key].(string)
	return s
}

func intProp(props map[string]any, key string) int {
	switch v := props[key].(type) {
	case int64:
		return int(v)
	case int:
		return v
	case float64:
		return int(v)
	default:
		return 0
	}
}
