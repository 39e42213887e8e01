// Package importer bulk-loads nutrition database dumps into local
// storage using batched transactions.
package importer
