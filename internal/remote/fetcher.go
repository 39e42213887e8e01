package remote

import (
	"context"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/bodii/foodsearch/internal/synonym"
	"github.com/bodii/foodsearch/pkg/types"
)

// Query expansion thresholds
const (
	// shortQueryMaxRunes marks queries broad enough to warrant a
	// larger remote page
	shortQueryMaxRunes   = 2
	shortQueryFetchLimit = 1000
	defaultFetchLimit    = 100

	// expansionFetchLimit caps each follow-up query issued during
	// synonym and split expansion
	expansionFetchLimit = 50

	// sparseResultThreshold is the primary result count below which
	// expansion queries are issued
	sparseResultThreshold = 5

	// minSplitQueryRunes is the shortest query eligible for word
	// splitting; minSplitPartRunes is the shortest half produced
	minSplitQueryRunes = 3
	minSplitPartRunes  = 2
)

// WarningRemoteUnavailable is surfaced to callers when the primary
// remote query fails and only cached results can be shown.
const WarningRemoteUnavailable = "remote search unavailable, showing cached results only"

// Fetcher runs remote searches with synonym and split-word expansion
// for sparse result sets.
type Fetcher struct {
	client   Client
	expander *synonym.Expander
	logger   *slog.Logger
}

// FetcherOption configures a Fetcher
type FetcherOption func(*Fetcher)

// WithLogger sets the logger used for degraded-path reporting
func WithLogger(logger *slog.Logger) FetcherOption {
	return func(f *Fetcher) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// NewFetcher creates a fetcher over the given remote client
func NewFetcher(client Client, expander *synonym.Expander, opts ...FetcherOption) *Fetcher {
	f := &Fetcher{
		client:   client,
		expander: expander,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch runs the primary remote query and, when results are sparse,
// follow-up queries for synonyms and word splits. A primary failure
// degrades to no results plus a caller-visible warning instead of an
// error; expansion failures are logged and skipped.
func (f *Fetcher) Fetch(ctx context.Context, query string) ([]types.FoodItem, string) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ""
	}

	limit := defaultFetchLimit
	if utf8.RuneCountInString(query) <= shortQueryMaxRunes {
		limit = shortQueryFetchLimit
	}

	items, err := f.client.Search(ctx, query, limit)
	if err != nil {
		f.logger.Warn("remote search failed", "query", query, "error", err)
		return nil, WarningRemoteUnavailable
	}

	if len(items) >= sparseResultThreshold {
		return items, ""
	}

	seen := make(map[string]struct{}, len(items))
	for _, item := range items {
		seen[item.DedupKey()] = struct{}{}
	}

	items = f.expandWith(ctx, f.synonymQueries(query), items, seen)
	if len(items) < sparseResultThreshold {
		items = f.expandWith(ctx, f.splitQueries(query), items, seen)
	}
	return items, ""
}

// expandWith issues follow-up queries and appends results not already
// seen. Failures are logged and skipped.
func (f *Fetcher) expandWith(ctx context.Context, queries []string, items []types.FoodItem, seen map[string]struct{}) []types.FoodItem {
	for _, expanded := range queries {
		extra, err := f.client.Search(ctx, expanded, expansionFetchLimit)
		if err != nil {
			f.logger.Warn("expansion search failed", "query", expanded, "error", err)
			continue
		}
		for _, item := range extra {
			key := item.DedupKey()
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			items = append(items, item)
		}
	}
	return items
}

func (f *Fetcher) synonymQueries(query string) []string {
	var queries []string
	for _, syn := range f.expander.Synonyms(query) {
		if syn != "" && syn != query {
			queries = append(queries, syn)
		}
	}
	return queries
}

func (f *Fetcher) splitQueries(query string) []string {
	var queries []string
	for _, part := range splitQuery(query, f.expander) {
		if part != query {
			queries = append(queries, part)
		}
	}
	return queries
}

// splitQuery produces sub-word fragments of a compound query: every
// two-way split where both halves meet the minimum length, plus
// splits at known synonym-member boundaries so fragments like the
// filling of a compound snack name survive even when short.
func splitQuery(query string, expander *synonym.Expander) []string {
	runes := []rune(query)
	if len(runes) < minSplitQueryRunes {
		return nil
	}

	var parts []string
	seen := make(map[string]struct{})
	add := func(p string) {
		if _, ok := seen[p]; ok {
			return
		}
		seen[p] = struct{}{}
		parts = append(parts, p)
	}

	for i := minSplitPartRunes; i <= len(runes)-minSplitPartRunes; i++ {
		add(string(runes[:i]))
		add(string(runes[i:]))
	}

	for _, member := range expander.ContainedMembers(query) {
		if member == query {
			continue
		}
		add(member)
		if rest := strings.Replace(query, member, "", 1); rest != "" && rest != query {
			add(rest)
		}
	}
	return parts
}
