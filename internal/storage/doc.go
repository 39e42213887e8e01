// Package storage provides SQLite-based persistence for the local food cache.
//
// The storage layer manages:
//   - Cached food items (remote imports and user-defined entries)
//   - Substring lookup over normalized names
//   - Access counters used for frequency ranking and LRU eviction
//   - Time-based expiry and size capping
//
// # Database Schema
//
// A single foods table holds every cached item. Remote-sourced rows
// carry an external_code (the remote database's FOOD_CD) constrained
// by a unique index, which makes re-imports update in place instead of
// duplicating.
//
// # Basic Usage
//
//	store, err := storage.NewSQLiteStorage("~/.foodsearch/cache.db")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer store.Close()
//
//	inserted, err := store.UpsertFoods(ctx, items)
//
// # Eviction
//
// Evict runs a two-phase sweep: first every evictable record older
// than the age limit is removed, then the least recently accessed
// records are dropped until the store fits the size cap. User-defined
// items survive both phases.
//
//	deleted, err := store.Evict(ctx, storage.DefaultMaxEntries, storage.DefaultMaxAge)
//
// # Failure Semantics
//
// All store errors wrap one of the package sentinels (ErrFetchFailed,
// ErrSaveFailed, ErrUpdateFailed, ErrDeleteFailed) and are recoverable:
// a failed cache read degrades to "no local results" upstream.
package storage
