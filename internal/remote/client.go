package remote

import (
	"context"
	"errors"

	"github.com/bodii/foodsearch/pkg/types"
)

// Common errors
var (
	ErrMissingServiceKey = errors.New("service key not configured")
	ErrAPIStatus         = errors.New("remote API returned error status")
	ErrMalformedResponse = errors.New("malformed remote API response")
)

// Client is the remote nutrition database collaborator. It issues a
// single search call without retries; all retry and expansion logic
// lives in the Fetcher.
type Client interface {
	Search(ctx context.Context, query string, limit int) ([]types.FoodItem, error)
}

// NoopClient is the default when no remote source is configured. It
// reports no results and no failure, so searches quietly become
// local-only.
type NoopClient struct{}

// Search always returns nothing
func (NoopClient) Search(context.Context, string, int) ([]types.FoodItem, error) {
	return nil, nil
}
