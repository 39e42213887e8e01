// Package localindex resolves queries against the local cache and
// applies a stable priority ordering favoring domestically sourced,
// frequently used items.
package localindex

import (
	"context"
	"log/slog"
	"sort"
	"strings"

	"github.com/bodii/foodsearch/internal/storage"
	"github.com/bodii/foodsearch/pkg/types"
)

// SearchLimit caps how many cached candidates a single query loads
const SearchLimit = 100

// Priority buckets, lower sorts first
const (
	bucketGovFrequent = iota
	bucketGov
	bucketFrequent
	bucketOther
)

// ActivityTracker supplies the caller's frequently used food ids for
// ranking. Implementations live outside this module.
type ActivityTracker interface {
	FrequentFoodIDs(ctx context.Context, userID string) (map[string]struct{}, error)
}

// NoopTracker treats nothing as frequent. It is the default when no
// activity tracking service is wired in.
type NoopTracker struct{}

// FrequentFoodIDs always returns an empty set
func (NoopTracker) FrequentFoodIDs(context.Context, string) (map[string]struct{}, error) {
	return nil, nil
}

// Index queries the cache store and orders candidates
type Index struct {
	store    storage.Storage
	activity ActivityTracker
	logger   *slog.Logger
}

// Option configures an Index
type Option func(*Index)

// WithActivityTracker wires in a frequency source for ranking.
// Default is NoopTracker.
func WithActivityTracker(tracker ActivityTracker) Option {
	return func(ix *Index) {
		if tracker == nil {
			tracker = NoopTracker{}
		}
		ix.activity = tracker
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(ix *Index) {
		if logger == nil {
			logger = slog.Default()
		}
		ix.logger = logger
	}
}

// New creates a local search index over the given store
func New(store storage.Storage, opts ...Option) *Index {
	ix := &Index{
		store:    store,
		activity: NoopTracker{},
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(ix)
	}
	return ix
}

// Search returns cached items matching the query, best candidates
// first. A blank query returns nothing. Store failures propagate so
// the orchestrator can degrade to remote-only results.
func (ix *Index) Search(ctx context.Context, query, userID string) ([]types.FoodItem, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}

	items, err := ix.store.SearchByName(ctx, query, SearchLimit)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, nil
	}

	frequent := ix.frequentIDs(ctx, userID)

	// Stable sort keeps the store's search-count ordering within each
	// bucket
	sort.SliceStable(items, func(i, j int) bool {
		return priorityBucket(&items[i], frequent) < priorityBucket(&items[j], frequent)
	})
	return items, nil
}

// frequentIDs loads the caller's frequent set, degrading to empty when
// the activity collaborator is absent or failing
func (ix *Index) frequentIDs(ctx context.Context, userID string) map[string]struct{} {
	frequent, err := ix.activity.FrequentFoodIDs(ctx, userID)
	if err != nil {
		ix.logger.Warn("activity tracker unavailable, ranking without frequency",
			"user_id", userID, "err", err)
		return nil
	}
	return frequent
}

func priorityBucket(item *types.FoodItem, frequent map[string]struct{}) int {
	_, isFrequent := frequent[item.ID]
	isGov := item.Source == types.SourceGovernmentAPI || item.Source == types.SourceCacheImported

	switch {
	case isGov && isFrequent:
		return bucketGovFrequent
	case isGov:
		return bucketGov
	case isFrequent:
		return bucketFrequent
	default:
		return bucketOther
	}
}
