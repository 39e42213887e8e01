package foodsearch

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bodii/foodsearch/pkg/types"
)

type fakeRemoteClient struct {
	items []types.FoodItem
	calls int
}

func (c *fakeRemoteClient) Search(context.Context, string, int) ([]types.FoodItem, error) {
	c.calls++
	return c.items, nil
}

func newTestEngine(t *testing.T, opts ...Option) *Engine {
	t.Helper()
	engine, err := NewEngine(":memory:", opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = engine.Close() })
	return engine
}

func TestEngine_AddAndSearch(t *testing.T) {
	engine := newTestEngine(t)

	item, err := engine.AddFood(context.Background(), "단호박죽", types.Nutrition{Calories: 80, Carbohydrates: 18}, 250, "g")
	require.NoError(t, err)
	assert.NotEmpty(t, item.ID)
	assert.Equal(t, types.SourceUserDefined, item.Source)

	resp, err := engine.Search(context.Background(), "단호박", "")
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "단호박죽", resp.Results[0].Item.Name)
	assert.Empty(t, resp.Warning)
}

func TestEngine_BlankQueryNeverFails(t *testing.T) {
	engine := newTestEngine(t)

	resp, err := engine.Search(context.Background(), "   ", "")
	require.NoError(t, err)
	require.NotNil(t, resp)
	assert.Empty(t, resp.Results)
}

func TestEngine_AddFoodValidates(t *testing.T) {
	engine := newTestEngine(t)

	_, err := engine.AddFood(context.Background(), "  ", types.Nutrition{}, 100, "g")
	assert.ErrorIs(t, err, types.ErrEmptyName)
}

func TestEngine_RemoteResultsPersisted(t *testing.T) {
	gov := types.NewFoodItem("생꿀", types.Nutrition{Calories: 294}, 100, "g", types.SourceGovernmentAPI)
	gov.ExternalCode = "H1"
	client := &fakeRemoteClient{items: []types.FoodItem{gov}}
	engine := newTestEngine(t, WithRemoteClient(client))

	resp, err := engine.Search(context.Background(), "생꿀", "")
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, 1, resp.RemoteCount)

	// the remote hit lands in local storage shortly after the search
	assert.Eventually(t, func() bool {
		item, err := engine.store.FindByExternalCode(context.Background(), "H1")
		return err == nil && item.Name == "생꿀"
	}, time.Second, 10*time.Millisecond)
}

func TestEngine_RecordAccess(t *testing.T) {
	engine := newTestEngine(t)

	item, err := engine.AddFood(context.Background(), "현미밥", types.Nutrition{Calories: 130}, 210, "g")
	require.NoError(t, err)

	require.NoError(t, engine.RecordAccess(context.Background(), item.ID))
}

func TestEngine_Import(t *testing.T) {
	engine := newTestEngine(t)

	dump := `{
		"version": 1,
		"generatedAt": "2026-08-01T00:00:00Z",
		"totalCount": 1,
		"foods": [
			{"foodCd": "D1", "name": "현미밥", "calories": 130, "carbohydrates": 28, "protein": 2.7, "fat": 1, "servingSize": 210, "servingUnit": "g"}
		]
	}`

	stats, err := engine.Import(context.Background(), strings.NewReader(dump))
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Imported)

	resp, err := engine.Search(context.Background(), "현미밥", "")
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, types.SourceCacheImported, resp.Results[0].Item.Source)
}

func TestEngine_Evict(t *testing.T) {
	engine := newTestEngine(t, WithEvictionLimits(1, time.Hour))

	dump := `{
		"version": 1,
		"generatedAt": "2026-08-01T00:00:00Z",
		"totalCount": 2,
		"foods": [
			{"foodCd": "D1", "name": "현미밥", "calories": 130, "servingSize": 210, "servingUnit": "g"},
			{"foodCd": "D2", "name": "잡곡밥", "calories": 140, "servingSize": 210, "servingUnit": "g"}
		]
	}`
	_, err := engine.Import(context.Background(), strings.NewReader(dump))
	require.NoError(t, err)

	removed, err := engine.Evict(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
}

func TestEngine_PersistentPath(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "foods.db")

	engine, err := NewEngine(dbPath)
	require.NoError(t, err)
	_, err = engine.AddFood(context.Background(), "단호박죽", types.Nutrition{Calories: 80}, 250, "g")
	require.NoError(t, err)
	require.NoError(t, engine.Close())

	reopened, err := NewEngine(dbPath)
	require.NoError(t, err)
	defer func() { _ = reopened.Close() }()

	resp, err := reopened.Search(context.Background(), "단호박죽", "")
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)
}

func TestEngine_DefaultIsLocalOnly(t *testing.T) {
	engine := newTestEngine(t)

	resp, err := engine.Search(context.Background(), "없는음식", "")
	require.NoError(t, err)
	assert.Empty(t, resp.Results)
	assert.Empty(t, resp.Warning)
}
