package storage

import (
	"context"
	"time"

	"github.com/bodii/foodsearch/pkg/types"
)

// Cache sizing and retention defaults
const (
	// DefaultMaxEntries caps how many cached items survive an eviction sweep
	DefaultMaxEntries = 500

	// DefaultMaxAge is how long a cached item may live before the
	// age-based eviction phase removes it
	DefaultMaxAge = 30 * 24 * time.Hour
)

// Storage defines the interface for the bounded local food cache
type Storage interface {
	// UpsertFoods inserts the given items, updating in place any
	// existing record that shares a non-empty external code. Returns
	// the number of newly inserted records. An empty input is a no-op.
	UpsertFoods(ctx context.Context, items []types.FoodItem) (int, error)

	// FindByExternalCode looks up the single item carrying the given
	// remote database code. Returns ErrNotFound when absent.
	FindByExternalCode(ctx context.Context, code string) (*types.FoodItem, error)

	// SearchByName returns items whose name contains the given
	// substring, case-insensitively, ordered by search count
	// descending. Expired entries are purged before matching.
	SearchByName(ctx context.Context, substring string, limit int) ([]types.FoodItem, error)

	// TouchAccess bumps the item's search count and last-accessed
	// time. A missing id is not an error.
	TouchAccess(ctx context.Context, id string) error

	// Evict runs the two-phase sweep: age-based removal followed by
	// least-recently-accessed removal down to maxCount. User-defined
	// items are never evicted. Returns the number of deleted records.
	// Non-positive arguments fall back to the package defaults.
	Evict(ctx context.Context, maxCount int, maxAge time.Duration) (int, error)

	// Count returns the number of stored items
	Count(ctx context.Context) (int, error)

	// Database operations
	Close() error
	BeginTx(ctx context.Context) (Tx, error)
}

// Tx represents a database transaction
type Tx interface {
	Commit() error
	Rollback() error
	Storage // Embed Storage interface for transaction operations
}
