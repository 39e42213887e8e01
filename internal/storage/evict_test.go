package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bodii/foodsearch/pkg/types"
)

// backdate rewrites an item's timestamps so eviction tests don't have
// to wait for wall-clock time to pass
func backdate(t *testing.T, store *SQLiteStorage, code string, createdAt, lastAccessedAt time.Time) {
	t.Helper()
	_, err := store.db.Exec(
		"UPDATE foods SET created_at = ?, last_accessed_at = ?, expires_at = ? WHERE external_code = ?",
		createdAt, lastAccessedAt, createdAt.Add(DefaultMaxAge), code,
	)
	require.NoError(t, err)
}

func TestEvict_AgeSweepRemovesOldItems(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.UpsertFoods(ctx, []types.FoodItem{
		govFood("오래된 항목", "E101"),
		govFood("최근 항목", "E102"),
	})
	require.NoError(t, err)

	old := time.Now().Add(-31 * 24 * time.Hour)
	backdate(t, store, "E101", old, old)

	deleted, err := store.Evict(ctx, DefaultMaxEntries, DefaultMaxAge)
	require.NoError(t, err)
	assert.Equal(t, 1, deleted)

	_, err = store.FindByExternalCode(ctx, "E101")
	assert.ErrorIs(t, err, ErrNotFound, "no expired item may survive the sweep")

	_, err = store.FindByExternalCode(ctx, "E102")
	assert.NoError(t, err)
}

func TestEvict_AgeSweepProtectsUserDefined(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	userItem := types.NewFoodItem("할머니 김치", types.Nutrition{Calories: 30}, 100, "g", types.SourceUserDefined)
	_, err := store.UpsertFoods(ctx, []types.FoodItem{userItem})
	require.NoError(t, err)

	old := time.Now().Add(-90 * 24 * time.Hour)
	_, err = store.db.Exec("UPDATE foods SET created_at = ?, last_accessed_at = ?", old, old)
	require.NoError(t, err)

	deleted, err := store.Evict(ctx, DefaultMaxEntries, DefaultMaxAge)
	require.NoError(t, err)
	assert.Zero(t, deleted, "user-defined items never age out")
}

// Three fresh evictable items with maxCount=1 drops the two with the
// oldest access times
func TestEvict_CapacitySweep(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.UpsertFoods(ctx, []types.FoodItem{
		govFood("항목 A", "E201"),
		govFood("항목 B", "E202"),
		govFood("항목 C", "E203"),
	})
	require.NoError(t, err)

	now := time.Now()
	backdate(t, store, "E201", now, now.Add(-3*time.Hour))
	backdate(t, store, "E202", now, now.Add(-1*time.Hour))
	backdate(t, store, "E203", now, now.Add(-2*time.Hour))

	deleted, err := store.Evict(ctx, 1, DefaultMaxAge)
	require.NoError(t, err)
	assert.Equal(t, 2, deleted)

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	// The most recently accessed item survives
	_, err = store.FindByExternalCode(ctx, "E202")
	assert.NoError(t, err)
}

func TestEvict_CapacitySweepProtectsUserDefined(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	userA := types.NewFoodItem("집밥 A", types.Nutrition{}, 100, "g", types.SourceUserDefined)
	userB := types.NewFoodItem("집밥 B", types.Nutrition{}, 100, "g", types.SourceUserDefined)
	_, err := store.UpsertFoods(ctx, []types.FoodItem{userA, userB, govFood("정부 항목", "E301")})
	require.NoError(t, err)

	deleted, err := store.Evict(ctx, 1, DefaultMaxAge)
	require.NoError(t, err)
	assert.Equal(t, 1, deleted, "only the evictable item may be dropped")

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count, "excess beyond maxCount is accounted for by protected items")
}

func TestSearchByName_LazilyPurgesExpired(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.UpsertFoods(ctx, []types.FoodItem{govFood("만료된 꿀", "E401")})
	require.NoError(t, err)

	expired := time.Now().Add(-time.Hour)
	_, err = store.db.Exec("UPDATE foods SET expires_at = ? WHERE external_code = ?", expired, "E401")
	require.NoError(t, err)

	items, err := store.SearchByName(ctx, "꿀", 10)
	require.NoError(t, err)
	assert.Empty(t, items, "expired entries are purged on access")

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
}
