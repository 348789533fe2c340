package repository

import (
	"context"
)

// Repository defines the identity-mapped repository interface for entity E
type Repository[E any] interface {
	// Table lifecycle
	CreateTable(ctx context.Context) error
	DropTable(ctx context.Context) error

	// Queries (identity map first, then row cache, then database)
	FindByID(ctx context.Context, id int64) (E, error)
	GetAll(ctx context.Context) ([]E, error)
	FindWhere(ctx context.Context, query string, args ...interface{}) ([]E, error)
	First(ctx context.Context, query string, args ...interface{}) (E, error)
	Count(ctx context.Context) (int64, error)
	Exists(ctx context.Context, id int64) (bool, error)

	// Commands
	Save(ctx context.Context, entity E) error
	Update(ctx context.Context, entity E) error
	Delete(ctx context.Context, entity E) error

	// Identity map
	Cached(id int64) (E, bool)
	Reset()
}

// RowCache is the second-level cache consulted after the identity map.
// *redis.Manager implements it.
type RowCache interface {
	GetValue(ctx context.Context, key string, target interface{}) error
	SetValue(ctx context.Context, key string, value interface{}) error
	InvalidatePattern(ctx context.Context, pattern string) error
}
