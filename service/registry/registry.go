package registry

import (
	"context"
)

// Service is a generic store for goal bookkeeping entities keyed by a
// comparable ID. The server keeps one record per goal in it and sweeps
// terminal records past their retention window with Evict.
type Service[K comparable, T any] interface {
	Save(ctx context.Context, t *T) error

	Load(ctx context.Context, id K) (*T, error)

	Delete(ctx context.Context, id K) error

	List(ctx context.Context, parameters ...*Parameter) ([]*T, error)

	// Evict deletes every record matching the predicate and returns the
	// number removed.
	Evict(ctx context.Context, predicate func(*T) bool) (int, error)
}
