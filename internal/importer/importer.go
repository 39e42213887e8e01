package importer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/bodii/foodsearch/internal/storage"
	"github.com/bodii/foodsearch/pkg/types"
)

const (
	// SupportedDumpVersion is the dump format this importer reads
	SupportedDumpVersion = 1

	defaultBatchSize = 500
)

// ErrUnsupportedVersion is returned for dump files written in a
// format this importer does not understand.
var ErrUnsupportedVersion = errors.New("unsupported dump version")

// Importer loads a nutrition database dump into local storage
type Importer struct {
	store     storage.Storage
	batchSize int
	logger    *slog.Logger
}

// Option configures an Importer
type Option func(*Importer)

// WithBatchSize sets the number of foods committed per transaction
func WithBatchSize(size int) Option {
	return func(imp *Importer) {
		if size > 0 {
			imp.batchSize = size
		}
	}
}

// WithLogger sets the logger used for per-row failure reporting
func WithLogger(logger *slog.Logger) Option {
	return func(imp *Importer) {
		if logger != nil {
			imp.logger = logger
		}
	}
}

// New creates an importer writing to the given store
func New(store storage.Storage, opts ...Option) *Importer {
	imp := &Importer{
		store:     store,
		batchSize: defaultBatchSize,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(imp)
	}
	return imp
}

// Statistics describes one import run
type Statistics struct {
	TotalRows     int
	Imported      int
	Refreshed     int
	Skipped       int
	Duration      time.Duration
	ErrorMessages []string
}

// dump mirrors the on-disk format produced by the bulk download job
type dump struct {
	Version     int        `json:"version"`
	GeneratedAt time.Time  `json:"generatedAt"`
	TotalCount  int        `json:"totalCount"`
	Foods       []dumpFood `json:"foods"`
}

type dumpFood struct {
	FoodCode      string   `json:"foodCd"`
	Name          string   `json:"name"`
	Calories      float64  `json:"calories"`
	Protein       float64  `json:"protein"`
	Fat           float64  `json:"fat"`
	Carbohydrates float64  `json:"carbohydrates"`
	Sodium        *float64 `json:"sodium"`
	Fiber         *float64 `json:"fiber"`
	Sugar         *float64 `json:"sugar"`
	ServingSize   float64  `json:"servingSize"`
	ServingUnit   string   `json:"servingUnit"`
	GroupName     string   `json:"groupName"`
	MakerName     string   `json:"makerName"`
}

// WriteDump serializes foods in the format Import reads
func WriteDump(w io.Writer, items []types.FoodItem) error {
	d := dump{
		Version:     SupportedDumpVersion,
		GeneratedAt: time.Now().UTC(),
		TotalCount:  len(items),
		Foods:       make([]dumpFood, 0, len(items)),
	}
	for _, item := range items {
		d.Foods = append(d.Foods, dumpFood{
			FoodCode:      item.ExternalCode,
			Name:          item.Name,
			Calories:      item.Nutrition.Calories,
			Protein:       item.Nutrition.Protein,
			Fat:           item.Nutrition.Fat,
			Carbohydrates: item.Nutrition.Carbohydrates,
			Sodium:        item.Nutrition.Sodium,
			Fiber:         item.Nutrition.Fiber,
			Sugar:         item.Nutrition.Sugar,
			ServingSize:   item.ServingSize,
			ServingUnit:   item.ServingUnit,
		})
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(d)
}

// ImportFile loads a dump from disk. See Import.
func (imp *Importer) ImportFile(ctx context.Context, path string) (*Statistics, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open dump file: %w", err)
	}
	defer func() { _ = file.Close() }()
	return imp.Import(ctx, file)
}

// Import reads a dump and upserts its foods in concurrent batched
// transactions. Rows that fail validation are skipped and reported in
// the statistics rather than aborting the run.
func (imp *Importer) Import(ctx context.Context, r io.Reader) (*Statistics, error) {
	startTime := time.Now()

	var d dump
	if err := json.NewDecoder(r).Decode(&d); err != nil {
		return nil, fmt.Errorf("failed to decode dump: %w", err)
	}
	if d.Version != SupportedDumpVersion {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, d.Version)
	}

	stats := &Statistics{
		TotalRows:     len(d.Foods),
		ErrorMessages: make([]string, 0),
	}

	items := make([]types.FoodItem, 0, len(d.Foods))
	for _, row := range d.Foods {
		item, err := row.toFoodItem()
		if err != nil {
			stats.Skipped++
			stats.ErrorMessages = append(stats.ErrorMessages, fmt.Sprintf("%s: %v", row.FoodCode, err))
			continue
		}
		items = append(items, item)
	}

	var imported int64
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	for start := 0; start < len(items); start += imp.batchSize {
		end := start + imp.batchSize
		if end > len(items) {
			end = len(items)
		}
		batch := items[start:end]

		g.Go(func() error {
			inserted, err := imp.importBatch(gctx, batch)
			if err != nil {
				return err
			}
			atomic.AddInt64(&imported, int64(inserted))
			mu.Lock()
			stats.Refreshed += len(batch) - inserted
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	stats.Imported = int(imported)
	stats.Duration = time.Since(startTime)
	return stats, nil
}

// importBatch upserts one batch within a transaction
func (imp *Importer) importBatch(ctx context.Context, batch []types.FoodItem) (int, error) {
	tx, err := imp.store.BeginTx(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	inserted, err := tx.UpsertFoods(ctx, batch)
	if err != nil {
		return 0, fmt.Errorf("failed to upsert batch: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit batch: %w", err)
	}
	return inserted, nil
}

// toFoodItem converts a dump row, rejecting rows the engine cannot
// serve
func (row *dumpFood) toFoodItem() (types.FoodItem, error) {
	if row.FoodCode == "" {
		return types.FoodItem{}, fmt.Errorf("missing food code")
	}

	nutrition := types.Nutrition{
		Calories:      row.Calories,
		Carbohydrates: row.Carbohydrates,
		Protein:       row.Protein,
		Fat:           row.Fat,
		Sodium:        row.Sodium,
		Fiber:         row.Fiber,
		Sugar:         row.Sugar,
	}

	item := types.NewFoodItem(row.Name, nutrition, row.ServingSize, row.ServingUnit, types.SourceCacheImported)
	item.ExternalCode = row.FoodCode
	if err := item.Validate(); err != nil {
		return types.FoodItem{}, err
	}
	return item, nil
}
