// Package remote provides the government nutrition database client
// and the fetcher that expands sparse queries with synonyms and
// split-word fragments.
package remote
