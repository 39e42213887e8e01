package foodsearch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/bodii/foodsearch/internal/importer"
	"github.com/bodii/foodsearch/internal/localindex"
	"github.com/bodii/foodsearch/internal/remote"
	"github.com/bodii/foodsearch/internal/searcher"
	"github.com/bodii/foodsearch/internal/storage"
	"github.com/bodii/foodsearch/internal/synonym"
	"github.com/bodii/foodsearch/pkg/types"
)

// Engine is the top-level food search facade. It owns the SQLite
// store, the hybrid searcher, and the dump importer.
type Engine struct {
	store    *storage.SQLiteStorage
	searcher *searcher.Searcher
	importer *importer.Importer
	logger   *slog.Logger

	maxEntries int
	maxAge     time.Duration

	evictStop chan struct{}
	evictWg   sync.WaitGroup
	evictOnce sync.Once
}

// Option configures an Engine.
type Option func(*engineOptions)

type engineOptions struct {
	logger     *slog.Logger
	tracker    localindex.ActivityTracker
	client     remote.Client
	serviceKey string
	maxEntries int
	maxAge     time.Duration
}

// WithLogger sets the logger for all components
func WithLogger(logger *slog.Logger) Option {
	return func(o *engineOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithActivityTracker supplies per-user food frequency data used to
// prioritize local results
func WithActivityTracker(tracker localindex.ActivityTracker) Option {
	return func(o *engineOptions) {
		if tracker != nil {
			o.tracker = tracker
		}
	}
}

// WithRemoteClient overrides the remote database client, mainly for
// tests and offline deployments
func WithRemoteClient(client remote.Client) Option {
	return func(o *engineOptions) {
		if client != nil {
			o.client = client
		}
	}
}

// WithServiceKey enables the government database client with the
// given data.go.kr service key
func WithServiceKey(key string) Option {
	return func(o *engineOptions) {
		o.serviceKey = key
	}
}

// WithEvictionLimits overrides the cache retention policy
func WithEvictionLimits(maxEntries int, maxAge time.Duration) Option {
	return func(o *engineOptions) {
		if maxEntries > 0 {
			o.maxEntries = maxEntries
		}
		if maxAge > 0 {
			o.maxAge = maxAge
		}
	}
}

// NewEngine opens the store at dbPath and wires the search pipeline.
// Without WithServiceKey or WithRemoteClient the engine runs
// local-only.
func NewEngine(dbPath string, opts ...Option) (*Engine, error) {
	options := &engineOptions{
		logger:     slog.Default(),
		tracker:    localindex.NoopTracker{},
		client:     remote.NoopClient{},
		maxEntries: storage.DefaultMaxEntries,
		maxAge:     storage.DefaultMaxAge,
	}
	for _, opt := range opts {
		opt(options)
	}

	if options.serviceKey != "" {
		client, err := remote.NewKFDAClient(options.serviceKey)
		if err != nil {
			return nil, err
		}
		options.client = client
	}

	store, err := storage.NewSQLiteStorage(dbPath)
	if err != nil {
		return nil, err
	}

	expander := synonym.NewExpander()
	index := localindex.New(store,
		localindex.WithActivityTracker(options.tracker),
		localindex.WithLogger(options.logger),
	)
	fetcher := remote.NewFetcher(options.client, expander,
		remote.WithLogger(options.logger),
	)

	search, err := searcher.NewSearcher(index, fetcher, expander, store,
		searcher.WithLogger(options.logger),
	)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	return &Engine{
		store:      store,
		searcher:   search,
		importer:   importer.New(store, importer.WithLogger(options.logger)),
		logger:     options.logger,
		maxEntries: options.maxEntries,
		maxAge:     options.maxAge,
		evictStop:  make(chan struct{}),
	}, nil
}

// Search runs a hybrid lookup for the query. The userID scopes
// frequent-food prioritization and may be empty.
func (e *Engine) Search(ctx context.Context, query, userID string) (*searcher.SearchResponse, error) {
	return e.searcher.Search(ctx, searcher.SearchRequest{
		Query:    query,
		UserID:   userID,
		UseCache: true,
	})
}

// AddFood stores a user-defined food. User items are never evicted
// and win deduplication against remote copies of the same name.
func (e *Engine) AddFood(ctx context.Context, name string, nutrition types.Nutrition, servingSize float64, servingUnit string) (types.FoodItem, error) {
	item := types.NewFoodItem(name, nutrition, servingSize, servingUnit, types.SourceUserDefined)
	if err := item.Validate(); err != nil {
		return types.FoodItem{}, err
	}
	if _, err := e.store.UpsertFoods(ctx, []types.FoodItem{item}); err != nil {
		return types.FoodItem{}, fmt.Errorf("failed to save food: %w", err)
	}
	e.searcher.InvalidateCache()
	return item, nil
}

// RecordAccess bumps a food's usage counter after the caller picks it
// from a result set
func (e *Engine) RecordAccess(ctx context.Context, foodID string) error {
	return e.store.TouchAccess(ctx, foodID)
}

// Import bulk-loads a nutrition dump from the reader
func (e *Engine) Import(ctx context.Context, r io.Reader) (*importer.Statistics, error) {
	stats, err := e.importer.Import(ctx, r)
	if err != nil {
		return nil, err
	}
	e.searcher.InvalidateCache()
	return stats, nil
}

// ImportFile bulk-loads a nutrition dump from disk
func (e *Engine) ImportFile(ctx context.Context, path string) (*importer.Statistics, error) {
	stats, err := e.importer.ImportFile(ctx, path)
	if err != nil {
		return nil, err
	}
	e.searcher.InvalidateCache()
	return stats, nil
}

// Evict applies the retention policy once, returning the number of
// foods removed
func (e *Engine) Evict(ctx context.Context) (int, error) {
	return e.store.Evict(ctx, e.maxEntries, e.maxAge)
}

// StartEvictionLoop applies the retention policy on the given
// interval until Close. Safe to call once per engine.
func (e *Engine) StartEvictionLoop(interval time.Duration) {
	e.evictWg.Add(1)
	go func() {
		defer e.evictWg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
				removed, err := e.Evict(ctx)
				cancel()
				if err != nil {
					e.logger.Warn("eviction failed", "error", err)
				} else if removed > 0 {
					e.logger.Info("evicted cached foods", "count", removed)
				}
			case <-e.evictStop:
				return
			}
		}
	}()
}

// Close stops background work and closes the store
func (e *Engine) Close() error {
	e.evictOnce.Do(func() { close(e.evictStop) })
	e.evictWg.Wait()
	if err := e.searcher.Close(); err != nil {
		e.logger.Error("error closing searcher", "err", err)
	}
	return e.store.Close()
}
