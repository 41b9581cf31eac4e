package semantic

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strconv"

	"github.com/philippgille/chromem-go"

	"github.com/physai/bookrag/engine/domain"
)

var errNoTextEmbedding = errors.New("semantic: memory store only accepts precomputed embeddings")

// MemoryStore is a chromem-go backed index for local runs and tests. It
// stores the same metadata keys as the Qdrant payload.
type MemoryStore struct {
	db         *chromem.DB
	coll       *chromem.Collection
	scoreFloor float32
}

// NewMemoryStore opens a chromem-go collection. An empty path keeps the
// index in memory; otherwise it is persisted under path.
func NewMemoryStore(path, collection string) (*MemoryStore, error) {
	var (
		db  *chromem.DB
		err error
	)
	if path == "" {
		db = chromem.NewDB()
	} else {
		db, err = chromem.NewPersistentDB(path, false)
		if err != nil {
			return nil, fmt.Errorf("semantic: open chromem db %s: %w", path, err)
		}
	}

	embed := func(context.Context, string) ([]float32, error) { return nil, errNoTextEmbedding }
	coll, err := db.GetOrCreateCollection(collection, nil, embed)
	if err != nil {
		return nil, fmt.Errorf("semantic: collection %s: %w", collection, err)
	}
	return &MemoryStore{db: db, coll: coll}, nil
}

// WithScoreFloor drops hits below floor. Zero disables it.
func (m *MemoryStore) WithScoreFloor(floor float32) *MemoryStore {
	m.scoreFloor = floor
	return m
}

// Collection returns the collection name.
func (m *MemoryStore) Collection() string { return m.coll.Name }

// Upsert adds chunk records; an existing chunk id is overwritten.
func (m *MemoryStore) Upsert(ctx context.Context, records []ChunkRecord) error {
	if len(records) == 0 {
		return nil
	}
	docs := make([]chromem.Document, len(records))
	for i, r := range records {
		docs[i] = chromem.Document{
			ID:        r.Chunk.ID,
			Metadata:  encodeMetadata(r.Chunk),
			Embedding: r.Embedding,
			Content:   r.Chunk.Text,
		}
	}
	if err := m.coll.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
		return fmt.Errorf("semantic: add %d documents: %w", len(docs), err)
	}
	return nil
}

// Search performs k-NN similarity search narrowed by filter.
func (m *MemoryStore) Search(ctx context.Context, embedding []float32, topK int, filter domain.Filter) ([]domain.SearchHit, error) {
	n := min(topK, m.coll.Count())
	if n <= 0 {
		return []domain.SearchHit{}, nil
	}

	var where map[string]string
	if filter.Chapter > 0 {
		where = map[string]string{KeyChapter: strconv.Itoa(filter.Chapter)}
	}

	res, err := m.coll.QueryEmbedding(ctx, embedding, n, where, nil)
	if err != nil {
		return nil, fmt.Errorf("semantic: query: %w", err)
	}

	hits := make([]domain.SearchHit, 0, len(res))
	for _, r := range res {
		if r.Similarity < m.scoreFloor {
			continue
		}
		hits = append(hits, domain.SearchHit{
			Chunk: decodeMetadata(r.ID, r.Content, r.Metadata),
			Score: clampScore(r.Similarity),
			Rank:  len(hits),
		})
	}
	return hits, nil
}

// Count returns the number of stored chunks.
func (m *MemoryStore) Count(context.Context) (uint64, error) {
	return uint64(m.coll.Count()), nil
}

func encodeMetadata(c domain.ContentChunk) map[string]string {
	return map[string]string{
		KeyChapter:      strconv.Itoa(c.Chapter),
		KeyChapterTitle: c.ChapterTitle,
		KeySection:      c.Section,
		KeyModule:       c.Module,
		KeyChunkID:      c.ID,
	}
}

func decodeMetadata(id, content string, meta map[string]string) domain.ContentChunk {
	c := domain.ContentChunk{
		ID:           meta[KeyChunkID],
		Chapter:      parseChapter(meta[KeyChapter]),
		ChapterTitle: meta[KeyChapterTitle],
		Section:      meta[KeySection],
		Module:       meta[KeyModule],
		Text:         content,
	}
	if c.ID == "" {
		c.ID = id
	}
	return c
}
