package localindex

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bodii/foodsearch/internal/storage"
	"github.com/bodii/foodsearch/pkg/types"
)

type fakeTracker struct {
	ids map[string]struct{}
	err error
}

func (f fakeTracker) FrequentFoodIDs(context.Context, string) (map[string]struct{}, error) {
	return f.ids, f.err
}

func newTestStore(t *testing.T) *storage.SQLiteStorage {
	t.Helper()
	store, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func seed(t *testing.T, store storage.Storage, items ...types.FoodItem) []types.FoodItem {
	t.Helper()
	_, err := store.UpsertFoods(context.Background(), items)
	require.NoError(t, err)

	stored, err := store.SearchByName(context.Background(), "꿀", SearchLimit)
	require.NoError(t, err)
	return stored
}

func TestSearch_BlankQueryReturnsNothing(t *testing.T) {
	ix := New(newTestStore(t))

	items, err := ix.Search(context.Background(), "   ", "user-1")
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestSearch_PriorityBuckets(t *testing.T) {
	store := newTestStore(t)

	gov := types.NewFoodItem("정부출처꿀", types.Nutrition{}, 100, "g", types.SourceGovernmentAPI)
	gov.ExternalCode = "L101"
	govFrequent := types.NewFoodItem("자주먹는꿀", types.Nutrition{}, 100, "g", types.SourceGovernmentAPI)
	govFrequent.ExternalCode = "L102"
	user := types.NewFoodItem("직접입력꿀", types.Nutrition{}, 100, "g", types.SourceUserDefined)
	userFrequent := types.NewFoodItem("자주먹는수제꿀", types.Nutrition{}, 100, "g", types.SourceUserDefined)

	stored := seed(t, store, gov, govFrequent, user, userFrequent)
	require.Len(t, stored, 4)

	frequent := map[string]struct{}{}
	for _, item := range stored {
		if item.Name == "자주먹는꿀" || item.Name == "자주먹는수제꿀" {
			frequent[item.ID] = struct{}{}
		}
	}

	ix := New(store, WithActivityTracker(fakeTracker{ids: frequent}))
	results, err := ix.Search(context.Background(), "꿀", "user-1")
	require.NoError(t, err)
	require.Len(t, results, 4)

	assert.Equal(t, "자주먹는꿀", results[0].Name, "government + frequent ranks first")
	assert.Equal(t, "정부출처꿀", results[1].Name, "government-only ranks second")
	assert.Equal(t, "자주먹는수제꿀", results[2].Name, "frequent-only ranks third")
	assert.Equal(t, "직접입력꿀", results[3].Name)
}

func TestSearch_TrackerFailureDegradesToNoFrequency(t *testing.T) {
	store := newTestStore(t)

	gov := types.NewFoodItem("정부출처꿀", types.Nutrition{}, 100, "g", types.SourceGovernmentAPI)
	gov.ExternalCode = "L201"
	user := types.NewFoodItem("직접입력꿀", types.Nutrition{}, 100, "g", types.SourceUserDefined)
	seed(t, store, gov, user)

	ix := New(store, WithActivityTracker(fakeTracker{err: errors.New("service down")}))
	results, err := ix.Search(context.Background(), "꿀", "user-1")
	require.NoError(t, err, "tracker failure must not fail the search")
	require.Len(t, results, 2)
	assert.Equal(t, "정부출처꿀", results[0].Name)
}

func TestSearch_DefaultTrackerTreatsNothingAsFrequent(t *testing.T) {
	store := newTestStore(t)

	user := types.NewFoodItem("직접입력꿀", types.Nutrition{}, 100, "g", types.SourceUserDefined)
	seed(t, store, user)

	ix := New(store)
	results, err := ix.Search(context.Background(), "꿀", "")
	require.NoError(t, err)
	assert.Len(t, results, 1)
}
