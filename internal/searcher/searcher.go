package searcher

import (
	"context"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/panjf2000/ants/v2"

	"github.com/bodii/foodsearch/internal/scorer"
	"github.com/bodii/foodsearch/internal/storage"
	"github.com/bodii/foodsearch/internal/synonym"
	"github.com/bodii/foodsearch/pkg/types"
)

const (
	// PageSize is the maximum number of results returned per search
	PageSize = 50

	responseCacheSize = 1000
	defaultCacheTTL   = 5 * time.Minute

	// writeBackTimeout bounds each background persistence task
	writeBackTimeout  = 10 * time.Second
	writeBackPoolSize = 4
)

// SearchRequest contains parameters for a search operation
type SearchRequest struct {
	Query    string
	UserID   string
	UseCache bool
	CacheTTL time.Duration
}

// SearchResponse contains merged, ranked results and metadata
type SearchResponse struct {
	Results     []types.SearchResult
	Warning     string
	Duration    time.Duration
	CacheHit    bool
	LocalCount  int
	RemoteCount int
}

// cacheEntry is a cached search response with its expiration time
type cacheEntry struct {
	response  *SearchResponse
	expiresAt time.Time
}

// LocalSearcher serves cached and user-defined foods
type LocalSearcher interface {
	Search(ctx context.Context, query, userID string) ([]types.FoodItem, error)
}

// RemoteFetcher serves the government database, degrading to a
// warning instead of an error
type RemoteFetcher interface {
	Fetch(ctx context.Context, query string) ([]types.FoodItem, string)
}

// Searcher coordinates concurrent local and remote lookups, merges
// and ranks the results, and persists remote hits in the background.
type Searcher struct {
	local    LocalSearcher
	remote   RemoteFetcher
	expander *synonym.Expander
	store    storage.Storage
	cache    *lru.Cache[[32]byte, *cacheEntry]
	cacheMu  sync.RWMutex
	pool     *ants.Pool
	wg       sync.WaitGroup
	logger   *slog.Logger
}

// Option configures a Searcher
type Option func(*Searcher)

// WithLogger sets the logger used for degraded-path reporting
func WithLogger(logger *slog.Logger) Option {
	return func(s *Searcher) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewSearcher creates a searcher over the given local index, remote
// fetcher, and backing store
func NewSearcher(local LocalSearcher, remote RemoteFetcher, expander *synonym.Expander, store storage.Storage, opts ...Option) (*Searcher, error) {
	cache, err := lru.New[[32]byte, *cacheEntry](responseCacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create response cache: %w", err)
	}

	pool, err := ants.NewPool(writeBackPoolSize, ants.WithNonblocking(false))
	if err != nil {
		return nil, fmt.Errorf("failed to create write-back pool: %w", err)
	}

	s := &Searcher{
		local:    local,
		remote:   remote,
		expander: expander,
		store:    store,
		cache:    cache,
		pool:     pool,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Search runs local and remote lookups concurrently, merges them with
// local results winning duplicate keys, and ranks the merged set.
func (s *Searcher) Search(ctx context.Context, req SearchRequest) (*SearchResponse, error) {
	startTime := time.Now()

	// Blank queries are not an error: the search surface never fails
	// on user input
	req.Query = strings.TrimSpace(req.Query)
	if req.Query == "" {
		return &SearchResponse{Duration: time.Since(startTime)}, nil
	}
	if req.CacheTTL == 0 {
		req.CacheTTL = defaultCacheTTL
	}

	if req.UseCache {
		if cached := s.checkCache(req); cached != nil {
			cached.CacheHit = true
			cached.Duration = time.Since(startTime)
			return cached, nil
		}
	}

	localChan := make(chan localResult, 1)
	remoteChan := make(chan remoteResult, 1)

	go s.runLocalSearch(ctx, req, localChan)
	go s.runRemoteSearch(ctx, req, remoteChan)

	var localRes localResult
	var remoteRes remoteResult
	var localDone, remoteDone bool
	for !localDone || !remoteDone {
		select {
		case localRes = <-localChan:
			localDone = true
		case remoteRes = <-remoteChan:
			remoteDone = true
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	// local failure degrades to remote-only rather than failing the
	// whole search
	if localRes.err != nil {
		s.logger.Warn("local search failed", "query", req.Query, "error", localRes.err)
		localRes.items = nil
	}

	merged, remoteNew := mergeResults(localRes.items, remoteRes.items)

	response := &SearchResponse{
		Warning:     remoteRes.warning,
		LocalCount:  len(localRes.items),
		RemoteCount: len(remoteRes.items),
	}

	if len(remoteRes.items) == 0 {
		// local-only result sets keep the index's priority order
		response.Results = s.scoreInOrder(localRes.items, req.Query)
	} else {
		synonyms := s.expander.Synonyms(req.Query)
		response.Results = scorer.Rank(merged, req.Query, synonyms)
	}
	if len(response.Results) > PageSize {
		response.Results = response.Results[:PageSize]
	}

	if len(remoteNew) > 0 {
		s.scheduleWriteBack(remoteNew)
	}

	response.Duration = time.Since(startTime)

	if req.UseCache && len(response.Results) > 0 {
		s.storeInCache(req, response)
	}
	return response, nil
}

type localResult struct {
	items []types.FoodItem
	err   error
}

type remoteResult struct {
	items   []types.FoodItem
	warning string
}

func (s *Searcher) runLocalSearch(ctx context.Context, req SearchRequest, out chan<- localResult) {
	var res localResult
	res.items, res.err = s.local.Search(ctx, req.Query, req.UserID)
	select {
	case out <- res:
	case <-ctx.Done():
	}
}

func (s *Searcher) runRemoteSearch(ctx context.Context, req SearchRequest, out chan<- remoteResult) {
	var res remoteResult
	res.items, res.warning = s.remote.Fetch(ctx, req.Query)
	select {
	case out <- res:
	case <-ctx.Done():
	}
}

// mergeResults combines both sources with local items winning
// duplicate keys. The second return value holds the remote items that
// were not already known locally, for background persistence.
func mergeResults(local, remote []types.FoodItem) (merged, remoteNew []types.FoodItem) {
	merged = make([]types.FoodItem, 0, len(local)+len(remote))
	seen := make(map[string]struct{}, len(local)+len(remote))

	for _, item := range local {
		key := item.DedupKey()
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		merged = append(merged, item)
	}
	for _, item := range remote {
		key := item.DedupKey()
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		merged = append(merged, item)
		remoteNew = append(remoteNew, item)
	}
	return merged, remoteNew
}

// scoreInOrder builds results that keep the given item order, scoring
// each item without re-sorting
func (s *Searcher) scoreInOrder(items []types.FoodItem, query string) []types.SearchResult {
	synonyms := s.expander.Synonyms(query)
	results := make([]types.SearchResult, len(items))
	for i, item := range items {
		results[i] = types.SearchResult{
			Item:           item,
			Rank:           i + 1,
			RelevanceScore: scorer.Score(item.Name, query, synonyms),
		}
	}
	return results
}

// scheduleWriteBack persists newly fetched remote items on the worker
// pool so searches never wait on storage writes
func (s *Searcher) scheduleWriteBack(items []types.FoodItem) {
	batch := make([]types.FoodItem, len(items))
	copy(batch, items)

	s.wg.Add(1)
	err := s.pool.Submit(func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), writeBackTimeout)
		defer cancel()
		if _, err := s.store.UpsertFoods(ctx, batch); err != nil {
			s.logger.Warn("write-back failed", "count", len(batch), "error", err)
		}
	})
	if err != nil {
		s.wg.Done()
		s.logger.Warn("write-back submit failed", "count", len(batch), "error", err)
	}
}

// checkCache returns a copy of a fresh cached response, or nil
func (s *Searcher) checkCache(req SearchRequest) *SearchResponse {
	hash := computeQueryHash(req)
	now := time.Now()

	s.cacheMu.RLock()
	entry, found := s.cache.Get(hash)
	if !found {
		s.cacheMu.RUnlock()
		return nil
	}
	if now.After(entry.expiresAt) {
		s.cacheMu.RUnlock()
		s.removeIfCurrent(hash, entry)
		return nil
	}
	response := copyResponse(entry.response)
	s.cacheMu.RUnlock()
	return response
}

// removeIfCurrent evicts an expired entry only while it is still the
// one cached under the hash. A concurrent store may have replaced it
// between the read unlock and here; the replacement must survive.
func (s *Searcher) removeIfCurrent(hash [32]byte, entry *cacheEntry) {
	s.cacheMu.Lock()
	if current, ok := s.cache.Peek(hash); ok && current == entry {
		s.cache.Remove(hash)
	}
	s.cacheMu.Unlock()
}

func (s *Searcher) storeInCache(req SearchRequest, response *SearchResponse) {
	entry := &cacheEntry{
		response:  copyResponse(response),
		expiresAt: time.Now().Add(req.CacheTTL),
	}

	s.cacheMu.Lock()
	s.cache.Add(computeQueryHash(req), entry)
	s.cacheMu.Unlock()
}

// InvalidateCache drops all cached responses. Called after imports
// and manual food edits change the underlying data.
func (s *Searcher) InvalidateCache() {
	s.cacheMu.Lock()
	s.cache.Purge()
	s.cacheMu.Unlock()
}

// Flush blocks until pending write-back tasks complete. Intended for
// tests and shutdown.
func (s *Searcher) Flush() {
	s.wg.Wait()
}

// Close releases the write-back pool after draining pending tasks
func (s *Searcher) Close() error {
	s.wg.Wait()
	s.pool.Release()
	return nil
}

// copyResponse creates a copy safe to hand to callers while the
// cached original stays untouched
func copyResponse(src *SearchResponse) *SearchResponse {
	if src == nil {
		return nil
	}
	dst := &SearchResponse{
		Warning:     src.Warning,
		Duration:    src.Duration,
		CacheHit:    src.CacheHit,
		LocalCount:  src.LocalCount,
		RemoteCount: src.RemoteCount,
		Results:     make([]types.SearchResult, len(src.Results)),
	}
	copy(dst.Results, src.Results)
	return dst
}

// computeQueryHash builds a deterministic key over the fields that
// change what a search returns
func computeQueryHash(req SearchRequest) [32]byte {
	var data strings.Builder
	data.WriteString(req.Query)
	data.WriteString("|")
	data.WriteString(req.UserID)
	return sha256.Sum256([]byte(data.String()))
}
