// Package searcher coordinates hybrid food lookups: the local index
// and the remote government database are queried concurrently, the
// result sets are merged with local items winning duplicate keys, and
// the merged set is ranked by name relevance. Responses are cached in
// a bounded LRU with per-entry TTLs, and newly fetched remote items
// are persisted by a background worker pool so searches never block
// on writes.
package searcher
