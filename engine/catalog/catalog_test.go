package catalog

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/physai/bookrag/engine/domain"
	"github.com/physai/bookrag/pkg/repo"
)

type fakeReader struct {
	chapters []domain.Chapter
	err      error
	lastOpts repo.ListOpts
	lastID   string
}

func (f *fakeReader) Get(_ context.Context, id string) (domain.Chapter, error) {
	f.lastID = id
	if f.err != nil {
		return domain.Chapter{}, f.err
	}
	for _, ch := range f.chapters {
		if ch.ID == id {
			return ch, nil
		}
	}
	return domain.Chapter{}, fmt.Errorf("%w: Chapter %s", repo.ErrNotFound, id)
}

func (f *fakeReader) List(_ context.Context, opts repo.ListOpts) ([]domain.Chapter, error) {
	f.lastOpts = opts
	if f.err != nil {
		return nil, f.err
	}
	out := []domain.Chapter{}
	for _, ch := range f.chapters {
		if m, ok := opts.Filter["module"]; ok && int64(ch.Module) != m.(int64) {
			continue
		}
		out = append(out, ch)
	}
	return out, nil
}

func (f *fakeReader) Count(ctx context.Context, filter map[string]any) (int64, error) {
	items, err := f.List(ctx, repo.ListOpts{Filter: filter})
	return int64(len(items)), err
}

func (f *fakeReader) Ping(context.Context) error { return f.err }

func testCatalog() (*Catalog, *fakeReader) {
	f := &fakeReader{chapters: []domain.Chapter{
		{ID: "ch_001", Number: 1, Title: "Introduction to Physical AI", Module: 1},
		{ID: "ch_002", Number: 2, Title: "ROS 2 Fundamentals", Module: 1},
		{ID: "ch_010", Number: 10, Title: "Gazebo Simulation", Module: 2},
	}}
	return &Catalog{chapters: f}, f
}

func TestList(t *testing.T) {
	c, f := testCatalog()
	page, err := c.List(context.Background(), 1, 0, -1)
	require.NoError(t, err)
	assert.Len(t, page.Chapters, 2)
	assert.Equal(t, int64(2), page.Total)
	assert.Equal(t, DefaultLimit, page.Limit)
	assert.Equal(t, 0, page.Offset)
	assert.Equal(t, "number", f.lastOpts.OrderBy)
}

func TestListAllModules(t *testing.T) {
	c, f := testCatalog()
	page, err := c.List(context.Background(), 0, 5, 0)
	require.NoError(t, err)
	assert.Len(t, page.Chapters, 3)
	assert.Nil(t, f.lastOpts.Filter)
}

func TestListInvalidModule(t *testing.T) {
	c, _ := testCatalog()
	_, err := c.List(context.Background(), 5, 0, 0)
	assert.ErrorIs(t, err, domain.ErrInvalidModule)
	assert.True(t, domain.IsValidation(err))
}

func TestListUnavailable(t *testing.T) {
	c, f := testCatalog()
	f.err = errors.New("connection refused")
	_, err := c.List(context.Background(), 0, 0, 0)
	assert.ErrorIs(t, err, domain.ErrCatalogUnavailable)
}

func TestGet(t *testing.T) {
	c, f := testCatalog()
	ch, err := c.Get(context.Background(), "2")
	require.NoError(t, err)
	assert.Equal(t, "ROS 2 Fundamentals", ch.Title)
	assert.Equal(t, "ch_002", f.lastID)

	_, err = c.Get(context.Background(), "ch_030")
	assert.ErrorIs(t, err, domain.ErrChapterNotFound)

	_, err = c.Get(context.Background(), "ch_099")
	assert.True(t, domain.IsValidation(err))

	_, err = c.Get(context.Background(), "")
	assert.True(t, domain.IsValidation(err))

	f.err = errors.New("down")
	_, err = c.Get(context.Background(), "ch_001")
	assert.ErrorIs(t, err, domain.ErrCatalogUnavailable)
}

func TestChapterFromRecord(t *testing.T) {
	rec := &neo4j.Record{
		Keys: []string{"n"},
		Values: []any{neo4j.Node{Props: map[string]any{
			"number": int64(7), "title": "Sensors", "module": int64(2), "description": "Perception",
		}}},
	}
	ch, err := chapterFromRecord(rec)
	require.NoError(t, err)
	assert.Equal(t, domain.Chapter{ID: "ch_007", Number: 7, Title: "Sensors", Module: 2, Description: "Perception"}, ch)

	empty := &neo4j.Record{Keys: []string{"n"}, Values: []any{neo4j.Node{Props: map[string]any{}}}}
	_, err = chapterFromRecord(empty)
	assert.Error(t, err)
}
