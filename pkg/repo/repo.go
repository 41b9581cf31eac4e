// Package repo defines a generic read-only repository over Neo4j nodes.
package repo

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get when no node has the requested id.
var ErrNotFound = errors.New("repo: not found")

// Reader is a generic read-only repository.
type Reader[T any, ID comparable] interface {
	Get(ctx context.Context, id ID) (T, error)
	List(ctx context.Context, opts ListOpts) ([]T, error)
	Count(ctx context.Context, filter map[string]any) (int64, error)
}

// ListOpts controls pagination, ordering and equality filtering for List.
type ListOpts struct {
	Offset  int
	Limit   int
	OrderBy string
	Filter  map[string]any
}
