//go:build integration

package semantic

import (
	"context"
	"fmt"
	"os"
	"testing"

	pb "github.com/qdrant/go-client/qdrant"

	"github.com/physai/bookrag/engine/domain"
)

func qdrantAddr() string {
	if v := os.Getenv("QDRANT_URL"); v != "" {
		return v
	}
	return "localhost:6334"
}

func testStore(t *testing.T, collection string) *VectorStore {
	t.Helper()
	vs, err := New(qdrantAddr(), collection)
	if err != nil {
		t.Fatalf("connect qdrant: %v", err)
	}
	t.Cleanup(func() {
		pb.NewCollectionsClient(vs.conn).Delete(context.Background(), &pb.DeleteCollection{CollectionName: collection})
		vs.Close()
	})
	return vs
}

// seed writes records straight through the Qdrant API with numeric point ids.
func seed(t *testing.T, vs *VectorStore, records []ChunkRecord) {
	t.Helper()
	points := make([]*pb.PointStruct, len(records))
	for i, r := range records {
		points[i] = &pb.PointStruct{
			Id:      &pb.PointId{PointIdOptions: &pb.PointId_Num{Num: uint64(i + 1)}},
			Vectors: &pb.Vectors{VectorsOptions: &pb.Vectors_Vector{Vector: &pb.Vector{Data: r.Embedding}}},
			Payload: map[string]*pb.Value{
				KeyChapter:      {Kind: &pb.Value_IntegerValue{IntegerValue: int64(r.Chunk.Chapter)}},
				KeySection:      {Kind: &pb.Value_StringValue{StringValue: r.Chunk.Section}},
				KeyContent:      {Kind: &pb.Value_StringValue{StringValue: r.Chunk.Text}},
				KeyChunkID:      {Kind: &pb.Value_StringValue{StringValue: r.Chunk.ID}},
				KeyModule:       {Kind: &pb.Value_StringValue{StringValue: r.Chunk.Module}},
				KeyChapterTitle: {Kind: &pb.Value_StringValue{StringValue: fmt.Sprintf("Chapter %d", r.Chunk.Chapter)}},
			},
		}
	}
	wait := true
	_, err := pb.NewPointsClient(vs.conn).Upsert(context.Background(), &pb.UpsertPoints{
		CollectionName: vs.collection,
		Wait:           &wait,
		Points:         points,
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
}

func TestQdrant_EnsureCollection(t *testing.T) {
	vs := testStore(t, "test_ensure")
	ctx := context.Background()

	if err := vs.EnsureCollection(ctx, 4); err != nil {
		t.Fatalf("EnsureCollection: %v", err)
	}
	if err := vs.EnsureCollection(ctx, 4); err != nil {
		t.Fatalf("EnsureCollection (idempotent): %v", err)
	}
	if n, err := vs.Count(ctx); err != nil || n != 0 {
		t.Fatalf("Count on fresh collection = %d, %v", n, err)
	}
}

func TestQdrant_SearchCount(t *testing.T) {
	vs := testStore(t, "test_search")
	ctx := context.Background()

	if err := vs.EnsureCollection(ctx, 4); err != nil {
		t.Fatalf("EnsureCollection: %v", err)
	}
	seed(t, vs, []ChunkRecord{
		{Chunk: domain.ContentChunk{ID: "ch02_0", Chapter: 2, Section: "Workspaces", Text: "colcon workspaces"}, Embedding: []float32{1, 0, 0, 0}},
		{Chunk: domain.ContentChunk{ID: "ch05_0", Chapter: 5, Section: "URDF", Text: "robot description"}, Embedding: []float32{0, 1, 0, 0}},
		{Chunk: domain.ContentChunk{ID: "ch02_1", Chapter: 2, Section: "Packages", Text: "ament packages"}, Embedding: []float32{0.9, 0.1, 0, 0}},
	})

	hits, err := vs.Search(ctx, []float32{1, 0, 0, 0}, 3, domain.Filter{})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 3 || hits[0].Chunk.ID != "ch02_0" {
		t.Fatalf("unexpected hits %+v", hits)
	}

	hits, err = vs.Search(ctx, []float32{1, 0, 0, 0}, 3, domain.Filter{Chapter: 5})
	if err != nil {
		t.Fatalf("Search filtered: %v", err)
	}
	if len(hits) != 1 || hits[0].Chunk.Chapter != 5 {
		t.Fatalf("expected only chapter 5, got %+v", hits)
	}

	n, err := vs.Count(ctx)
	if err != nil || n != 3 {
		t.Fatalf("Count = %d, %v", n, err)
	}
}
