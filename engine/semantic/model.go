// Package semantic owns the vector index: nearest-neighbour search over
// textbook chunks in Qdrant, with an in-process chromem-go alternative for
// local runs and tests.
package semantic

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/physai/bookrag/engine/domain"
)

// Payload keys shared by every backend.
const (
	KeyChapter      = "chapter_number"
	KeyChapterTitle = "chapter_title"
	KeySection      = "section_title"
	KeyModule       = "module"
	KeyContent      = "content"
	KeyChunkID      = "chunk_id"
)

// ChunkRecord is a chunk with its embedding, as loaded into the index.
type ChunkRecord struct {
	Chunk     domain.ContentChunk `json:"chunk"`
	Embedding []float32           `json:"embedding"`
}

// ReadRecords decodes a stream of JSON chunk records, one object after
// another (JSON lines). Records without an id or embedding are rejected.
func ReadRecords(r io.Reader) ([]ChunkRecord, error) {
	dec := json.NewDecoder(r)
	var out []ChunkRecord
	for n := 1; ; n++ {
		var rec ChunkRecord
		if err := dec.Decode(&rec); err != nil {
			if errors.Is(err, io.EOF) {
				return out, nil
			}
			return nil, fmt.Errorf("semantic: record %d: %w", n, err)
		}
		if rec.Chunk.ID == "" || len(rec.Embedding) == 0 {
			return nil, fmt.Errorf("semantic: record %d: id and embedding are required", n)
		}
		out = append(out, rec)
	}
}

func clampScore(s float32) float32 {
	switch {
	case s < 0:
		return 0
	case s > 1:
		return 1
	default:
		return s
	}
}
