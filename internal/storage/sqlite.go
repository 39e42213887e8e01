package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/bodii/foodsearch/pkg/types"
)

// SQLiteStorage implements the Storage interface using SQLite
type SQLiteStorage struct {
	db *sql.DB
}

// openDatabase opens a SQLite database with appropriate settings
func openDatabase(dbPath string) (*sql.DB, error) {
	db, err := sql.Open(DriverName, dbPath)
	if err != nil {
		return nil, err
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	// Set connection pool settings
	db.SetMaxOpenConns(1) // SQLite benefits from single writer
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	return db, nil
}

// NewSQLiteStorage creates a new SQLite storage instance
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	db, err := openDatabase(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Apply migrations
	if err := ApplyMigrations(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

// Close closes the database connection
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// BeginTx starts a new transaction
func (s *SQLiteStorage) BeginTx(ctx context.Context) (Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &sqliteTx{tx: tx, storage: s}, nil
}

// querier is an interface that both *sql.DB and *sql.Tx implement
type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// sqliteTx wraps a SQL transaction
type sqliteTx struct {
	tx      *sql.Tx
	storage *SQLiteStorage
}

func (t *sqliteTx) Commit() error {
	return t.tx.Commit()
}

func (t *sqliteTx) Rollback() error {
	return t.tx.Rollback()
}

// querier returns the transaction querier
func (t *sqliteTx) querier() querier {
	return t.tx
}

// querier returns the DB querier
func (s *SQLiteStorage) querier() querier {
	return s.db
}

// normalizeName lowercases and trims a name for variant-insensitive matching
func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// escapeLike escapes LIKE wildcards in user input. Compound food names
// contain underscores, which LIKE treats as a single-char wildcard.
func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	s = strings.ReplaceAll(s, `_`, `\_`)
	return s
}

const foodColumns = `id, name, calories, carbohydrates, protein, fat, sodium, fiber, sugar,
       serving_size, serving_unit, source, external_code, search_count,
       last_accessed_at, created_at`

// rowScanner abstracts *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanFood(row rowScanner) (*types.FoodItem, error) {
	var item types.FoodItem
	var sodium, fiber, sugar sql.NullFloat64
	var externalCode sql.NullString

	err := row.Scan(
		&item.ID, &item.Name,
		&item.Nutrition.Calories, &item.Nutrition.Carbohydrates,
		&item.Nutrition.Protein, &item.Nutrition.Fat,
		&sodium, &fiber, &sugar,
		&item.ServingSize, &item.ServingUnit,
		(*string)(&item.Source), &externalCode, &item.SearchCount,
		&item.LastAccessedAt, &item.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if sodium.Valid {
		item.Nutrition.Sodium = &sodium.Float64
	}
	if fiber.Valid {
		item.Nutrition.Fiber = &fiber.Float64
	}
	if sugar.Valid {
		item.Nutrition.Sugar = &sugar.Float64
	}
	if externalCode.Valid {
		item.ExternalCode = externalCode.String
	}
	return &item, nil
}

// nullableCode maps an empty external code to NULL so the unique index
// only constrains items that actually carry a remote code
func nullableCode(code string) interface{} {
	if code == "" {
		return nil
	}
	return code
}

// Upsert operations

// upsertFoodsWithQuerier is the internal implementation that uses a querier
func (s *SQLiteStorage) upsertFoodsWithQuerier(ctx context.Context, q querier, items []types.FoodItem) (int, error) {
	if len(items) == 0 {
		return 0, nil
	}

	now := time.Now()
	inserted := 0

	for i := range items {
		item := &items[i]
		if err := item.Validate(); err != nil {
			return inserted, fmt.Errorf("%w: %v", ErrSaveFailed, err)
		}

		if item.ExternalCode != "" {
			var exists bool
			err := q.QueryRowContext(ctx,
				"SELECT EXISTS(SELECT 1 FROM foods WHERE external_code = ?)",
				item.ExternalCode).Scan(&exists)
			if err != nil {
				return inserted, fmt.Errorf("%w: %v", ErrFetchFailed, err)
			}

			if exists {
				// Update mutable fields in place; identity and
				// creation time are preserved
				_, err := q.ExecContext(ctx, `
					UPDATE foods SET
						name = ?, name_norm = ?,
						calories = ?, carbohydrates = ?, protein = ?, fat = ?,
						sodium = ?, fiber = ?, sugar = ?,
						serving_size = ?, serving_unit = ?,
						last_accessed_at = ?, expires_at = ?
					WHERE external_code = ?
				`,
					item.Name, normalizeName(item.Name),
					item.Nutrition.Calories, item.Nutrition.Carbohydrates,
					item.Nutrition.Protein, item.Nutrition.Fat,
					item.Nutrition.Sodium, item.Nutrition.Fiber, item.Nutrition.Sugar,
					item.ServingSize, item.ServingUnit,
					now, now.Add(DefaultMaxAge),
					item.ExternalCode,
				)
				if err != nil {
					return inserted, fmt.Errorf("%w: %v", ErrUpdateFailed, err)
				}
				continue
			}
		}

		if item.ID == "" {
			item.ID = uuid.NewString()
		}
		item.SearchCount = 0
		item.LastAccessedAt = now
		if item.CreatedAt.IsZero() {
			item.CreatedAt = now
		}

		// The unique index on external_code backstops concurrent
		// imports of the same remote record
		_, err := q.ExecContext(ctx, `
			INSERT INTO foods (
				id, name, name_norm, calories, carbohydrates, protein, fat,
				sodium, fiber, sugar, serving_size, serving_unit, source,
				external_code, search_count, last_accessed_at, created_at, expires_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0, ?, ?, ?)
			ON CONFLICT(external_code) DO UPDATE SET
				name = excluded.name,
				name_norm = excluded.name_norm,
				calories = excluded.calories,
				carbohydrates = excluded.carbohydrates,
				protein = excluded.protein,
				fat = excluded.fat,
				sodium = excluded.sodium,
				fiber = excluded.fiber,
				sugar = excluded.sugar,
				serving_size = excluded.serving_size,
				serving_unit = excluded.serving_unit,
				last_accessed_at = excluded.last_accessed_at,
				expires_at = excluded.expires_at
		`,
			item.ID, item.Name, normalizeName(item.Name),
			item.Nutrition.Calories, item.Nutrition.Carbohydrates,
			item.Nutrition.Protein, item.Nutrition.Fat,
			item.Nutrition.Sodium, item.Nutrition.Fiber, item.Nutrition.Sugar,
			item.ServingSize, item.ServingUnit, string(item.Source),
			nullableCode(item.ExternalCode),
			item.LastAccessedAt, item.CreatedAt, item.CreatedAt.Add(DefaultMaxAge),
		)
		if err != nil {
			return inserted, fmt.Errorf("%w: %v", ErrSaveFailed, err)
		}
		inserted++
	}

	return inserted, nil
}

// UpsertFoods applies the batch atomically in a single transaction
func (s *SQLiteStorage) UpsertFoods(ctx context.Context, items []types.FoodItem) (int, error) {
	if len(items) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrSaveFailed, err)
	}
	defer func() { _ = tx.Rollback() }()

	inserted, err := s.upsertFoodsWithQuerier(ctx, tx, items)
	if err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrSaveFailed, err)
	}
	return inserted, nil
}

// Lookup operations

// findByExternalCodeWithQuerier is the internal implementation that uses a querier
func (s *SQLiteStorage) findByExternalCodeWithQuerier(ctx context.Context, q querier, code string) (*types.FoodItem, error) {
	if code == "" {
		return nil, ErrNotFound
	}

	query := `SELECT ` + foodColumns + ` FROM foods WHERE external_code = ?`
	item, err := scanFood(q.QueryRowContext(ctx, query, code))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}
	return item, nil
}

func (s *SQLiteStorage) FindByExternalCode(ctx context.Context, code string) (*types.FoodItem, error) {
	return s.findByExternalCodeWithQuerier(ctx, s.querier(), code)
}

// searchByNameWithQuerier is the internal implementation that uses a querier
func (s *SQLiteStorage) searchByNameWithQuerier(ctx context.Context, q querier, substring string, limit int) ([]types.FoodItem, error) {
	substring = normalizeName(substring)
	if substring == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = DefaultMaxEntries
	}

	// Lazy purge: expired cached entries are removed on access
	if err := s.purgeExpiredWithQuerier(ctx, q, time.Now()); err != nil {
		return nil, err
	}

	query := `
		SELECT ` + foodColumns + `
		FROM foods
		WHERE name_norm LIKE '%' || ? || '%' ESCAPE '\'
		ORDER BY search_count DESC, created_at ASC
		LIMIT ?
	`
	rows, err := q.QueryContext(ctx, query, escapeLike(substring), limit)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}
	defer func() { _ = rows.Close() }()

	items := make([]types.FoodItem, 0)
	for rows.Next() {
		item, err := scanFood(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrFetchFailed, err)
		}
		items = append(items, *item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}
	return items, nil
}

func (s *SQLiteStorage) SearchByName(ctx context.Context, substring string, limit int) ([]types.FoodItem, error) {
	return s.searchByNameWithQuerier(ctx, s.querier(), substring, limit)
}

// purgeExpiredWithQuerier removes cached entries past their expiry.
// User-defined items never expire.
func (s *SQLiteStorage) purgeExpiredWithQuerier(ctx context.Context, q querier, now time.Time) error {
	_, err := q.ExecContext(ctx, `
		DELETE FROM foods
		WHERE expires_at IS NOT NULL AND expires_at <= ? AND source != ?
	`, now, string(types.SourceUserDefined))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDeleteFailed, err)
	}
	return nil
}

// Access tracking

// touchAccessWithQuerier is the internal implementation that uses a querier
func (s *SQLiteStorage) touchAccessWithQuerier(ctx context.Context, q querier, id string) error {
	// Zero rows affected means the id is absent, which is not an error
	_, err := q.ExecContext(ctx, `
		UPDATE foods
		SET search_count = search_count + 1, last_accessed_at = ?
		WHERE id = ?
	`, time.Now(), id)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUpdateFailed, err)
	}
	return nil
}

func (s *SQLiteStorage) TouchAccess(ctx context.Context, id string) error {
	return s.touchAccessWithQuerier(ctx, s.querier(), id)
}

// Eviction

// evictWithQuerier is the internal implementation that uses a querier
func (s *SQLiteStorage) evictWithQuerier(ctx context.Context, q querier, maxCount int, maxAge time.Duration) (int, error) {
	if maxCount <= 0 {
		maxCount = DefaultMaxEntries
	}
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}

	now := time.Now()
	deleted := 0

	// Phase 1: remove everything past its age limit or expiry,
	// protecting user-defined items
	result, err := q.ExecContext(ctx, `
		DELETE FROM foods
		WHERE source != ?
		  AND (created_at <= ? OR (expires_at IS NOT NULL AND expires_at <= ?))
	`, string(types.SourceUserDefined), now.Add(-maxAge), now)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrDeleteFailed, err)
	}
	if n, err := result.RowsAffected(); err == nil {
		deleted += int(n)
	}

	// Phase 2: cap the remaining count, dropping the least recently
	// accessed evictable items first
	var count int
	if err := q.QueryRowContext(ctx, "SELECT COUNT(*) FROM foods").Scan(&count); err != nil {
		return deleted, fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}
	if count <= maxCount {
		return deleted, nil
	}

	result, err = q.ExecContext(ctx, `
		DELETE FROM foods
		WHERE id IN (
			SELECT id FROM foods
			WHERE source != ?
			ORDER BY last_accessed_at ASC, created_at ASC
			LIMIT ?
		)
	`, string(types.SourceUserDefined), count-maxCount)
	if err != nil {
		return deleted, fmt.Errorf("%w: %v", ErrDeleteFailed, err)
	}
	if n, err := result.RowsAffected(); err == nil {
		deleted += int(n)
	}

	return deleted, nil
}

// Evict runs both sweep phases atomically
func (s *SQLiteStorage) Evict(ctx context.Context, maxCount int, maxAge time.Duration) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrDeleteFailed, err)
	}
	defer func() { _ = tx.Rollback() }()

	deleted, err := s.evictWithQuerier(ctx, tx, maxCount, maxAge)
	if err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrDeleteFailed, err)
	}
	return deleted, nil
}

// countWithQuerier is the internal implementation that uses a querier
func (s *SQLiteStorage) countWithQuerier(ctx context.Context, q querier) (int, error) {
	var count int
	if err := q.QueryRowContext(ctx, "SELECT COUNT(*) FROM foods").Scan(&count); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}
	return count, nil
}

func (s *SQLiteStorage) Count(ctx context.Context) (int, error) {
	return s.countWithQuerier(ctx, s.querier())
}

// Transaction implementations

func (t *sqliteTx) UpsertFoods(ctx context.Context, items []types.FoodItem) (int, error) {
	return t.storage.upsertFoodsWithQuerier(ctx, t.querier(), items)
}

func (t *sqliteTx) FindByExternalCode(ctx context.Context, code string) (*types.FoodItem, error) {
	return t.storage.findByExternalCodeWithQuerier(ctx, t.querier(), code)
}

func (t *sqliteTx) SearchByName(ctx context.Context, substring string, limit int) ([]types.FoodItem, error) {
	return t.storage.searchByNameWithQuerier(ctx, t.querier(), substring, limit)
}

func (t *sqliteTx) TouchAccess(ctx context.Context, id string) error {
	return t.storage.touchAccessWithQuerier(ctx, t.querier(), id)
}

func (t *sqliteTx) Evict(ctx context.Context, maxCount int, maxAge time.Duration) (int, error) {
	return t.storage.evictWithQuerier(ctx, t.querier(), maxCount, maxAge)
}

func (t *sqliteTx) Count(ctx context.Context) (int, error) {
	return t.storage.countWithQuerier(ctx, t.querier())
}

func (t *sqliteTx) Close() error {
	// Transactions don't close the underlying connection
	return nil
}

func (t *sqliteTx) BeginTx(ctx context.Context) (Tx, error) {
	// SQLite does not support true nested transactions
	return nil, errors.New("nested transactions not supported")
}
