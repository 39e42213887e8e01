package importer

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bodii/foodsearch/internal/storage"
	"github.com/bodii/foodsearch/pkg/types"
)

func newTestStore(t *testing.T) *storage.SQLiteStorage {
	t.Helper()
	store, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func dumpJSON(foods ...map[string]any) string {
	payload := map[string]any{
		"version":     1,
		"generatedAt": "2026-08-01T00:00:00Z",
		"totalCount":  len(foods),
		"foods":       foods,
	}
	data, err := json.Marshal(payload)
	if err != nil {
		panic(err)
	}
	return string(data)
}

func dumpRow(code, name string, calories float64) map[string]any {
	return map[string]any{
		"foodCd":      code,
		"name":        name,
		"calories":    calories,
		"protein":     5.0,
		"fat":         2.0,
		"carbohydrates": 20.0,
		"servingSize": 100.0,
		"servingUnit": "g",
	}
}

func TestImport(t *testing.T) {
	store := newTestStore(t)
	imp := New(store)

	input := dumpJSON(
		dumpRow("D1", "현미밥", 130),
		dumpRow("D2", "잡곡밥", 140),
		dumpRow("D3", "김치찌개", 90),
	)

	stats, err := imp.Import(context.Background(), strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, 3, stats.TotalRows)
	assert.Equal(t, 3, stats.Imported)
	assert.Equal(t, 0, stats.Skipped)

	count, err := store.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	item, err := store.FindByExternalCode(context.Background(), "D1")
	require.NoError(t, err)
	assert.Equal(t, "현미밥", item.Name)
	assert.Equal(t, types.SourceCacheImported, item.Source)
	assert.InDelta(t, 130.0, item.Nutrition.Calories, 0.001)
}

func TestImport_SkipsInvalidRows(t *testing.T) {
	store := newTestStore(t)
	imp := New(store)

	input := dumpJSON(
		dumpRow("D1", "현미밥", 130),
		dumpRow("", "코드없음", 100),
		dumpRow("D3", "   ", 100),
	)

	stats, err := imp.Import(context.Background(), strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Imported)
	assert.Equal(t, 2, stats.Skipped)
	assert.Len(t, stats.ErrorMessages, 2)
}

func TestImport_ReimportRefreshes(t *testing.T) {
	store := newTestStore(t)
	imp := New(store)

	first := dumpJSON(dumpRow("D1", "현미밥", 130))
	_, err := imp.Import(context.Background(), strings.NewReader(first))
	require.NoError(t, err)

	second := dumpJSON(dumpRow("D1", "현미밥", 135))
	stats, err := imp.Import(context.Background(), strings.NewReader(second))
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Imported)
	assert.Equal(t, 1, stats.Refreshed)

	item, err := store.FindByExternalCode(context.Background(), "D1")
	require.NoError(t, err)
	assert.InDelta(t, 135.0, item.Nutrition.Calories, 0.001)

	count, err := store.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestImport_BatchesLargeDump(t *testing.T) {
	store := newTestStore(t)
	imp := New(store, WithBatchSize(10))

	rows := make([]map[string]any, 0, 45)
	for i := 0; i < 45; i++ {
		rows = append(rows, dumpRow(fmt.Sprintf("D%03d", i), fmt.Sprintf("음식%d", i), 100))
	}

	stats, err := imp.Import(context.Background(), strings.NewReader(dumpJSON(rows...)))
	require.NoError(t, err)
	assert.Equal(t, 45, stats.Imported)

	count, err := store.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 45, count)
}

func TestImport_RejectsUnknownVersion(t *testing.T) {
	store := newTestStore(t)
	imp := New(store)

	input := `{"version": 9, "foods": []}`
	_, err := imp.Import(context.Background(), strings.NewReader(input))
	assert.ErrorIs(t, err, ErrUnsupportedVersion)
}

func TestWriteDump_RoundTrip(t *testing.T) {
	store := newTestStore(t)
	imp := New(store)

	item := types.NewFoodItem("현미밥", types.Nutrition{Calories: 130, Carbohydrates: 28}, 210, "g", types.SourceGovernmentAPI)
	item.ExternalCode = "D1"

	var buf strings.Builder
	require.NoError(t, WriteDump(&buf, []types.FoodItem{item}))

	stats, err := imp.Import(context.Background(), strings.NewReader(buf.String()))
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Imported)

	loaded, err := store.FindByExternalCode(context.Background(), "D1")
	require.NoError(t, err)
	assert.Equal(t, "현미밥", loaded.Name)
	assert.InDelta(t, 28.0, loaded.Nutrition.Carbohydrates, 0.001)
}

func TestImport_MalformedJSON(t *testing.T) {
	store := newTestStore(t)
	imp := New(store)

	_, err := imp.Import(context.Background(), strings.NewReader("{not json"))
	assert.Error(t, err)
}
