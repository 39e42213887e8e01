package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewFoodItem(t *testing.T) {
	item := NewFoodItem("  생꿀  ", Nutrition{Calories: 304}, 100, "g", SourceUserDefined)

	assert.NotEmpty(t, item.ID)
	assert.Equal(t, "생꿀", item.Name, "name should be trimmed")
	assert.Equal(t, SourceUserDefined, item.Source)
	assert.Zero(t, item.SearchCount)
	assert.False(t, item.CreatedAt.IsZero())
}

func TestFoodItemValidate(t *testing.T) {
	item := NewFoodItem("사과", Nutrition{Calories: 52}, 100, "g", SourceUserDefined)
	require.NoError(t, item.Validate())

	blank := FoodItem{Name: "   "}
	assert.ErrorIs(t, blank.Validate(), ErrEmptyName)

	negative := FoodItem{Name: "사과", ServingSize: -1}
	assert.ErrorIs(t, negative.Validate(), ErrNegativeServingSize)
}

func TestDedupKey(t *testing.T) {
	withCode := FoodItem{Name: "아카시아꿀", ExternalCode: "X1"}
	withoutCode := FoodItem{Name: "아카시아꿀"}

	assert.Equal(t, "code:X1", withCode.DedupKey())
	assert.Equal(t, "name:아카시아꿀", withoutCode.DedupKey())
	assert.NotEqual(t, withCode.DedupKey(), withoutCode.DedupKey())
}

func TestNutritionFor(t *testing.T) {
	sodium := 10.0
	item := FoodItem{
		Name:        "플레인요거트",
		ServingSize: 100,
		Nutrition: Nutrition{
			Calories:      60,
			Carbohydrates: 8,
			Protein:       4,
			Fat:           2,
			Sodium:        &sodium,
		},
	}

	half := item.NutritionFor(50)
	assert.InDelta(t, 30, half.Calories, 0.001)
	assert.InDelta(t, 4, half.Carbohydrates, 0.001)
	assert.InDelta(t, 2, half.Protein, 0.001)
	assert.InDelta(t, 1, half.Fat, 0.001)
	require.NotNil(t, half.Sodium)
	assert.InDelta(t, 5, *half.Sodium, 0.001)
	assert.Nil(t, half.Fiber)
}

func TestNutritionForZeroServingSize(t *testing.T) {
	item := FoodItem{Name: "알수없음", Nutrition: Nutrition{Calories: 100}}

	scaled := item.NutritionFor(50)
	assert.Zero(t, scaled.Calories, "zero serving size must yield zero values, not a division fault")
	assert.Nil(t, scaled.Sodium)
}
