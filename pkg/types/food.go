package types

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Source identifies where a food item originated
type Source string

const (
	// SourceUserDefined marks items created directly by a user
	SourceUserDefined Source = "user_defined"
	// SourceGovernmentAPI marks items imported from the KFDA open-data API
	SourceGovernmentAPI Source = "government_api"
	// SourceCacheImported marks items loaded from a bundled dataset dump
	SourceCacheImported Source = "cache_imported"
)

// Nutrition holds nutrient amounts scaled to one serving
type Nutrition struct {
	Calories      float64
	Carbohydrates float64
	Protein       float64
	Fat           float64

	// Optional nutrients - nil when the source did not report them
	Sodium *float64
	Fiber  *float64
	Sugar  *float64
}

// FoodItem represents a nutrition database entry.
//
// Names may be simple ("생꿀") or follow the remote database's
// "<category>_<product>" compound convention
// ("요구르트(액상)_플레인요거트").
type FoodItem struct {
	ID   string
	Name string

	Nutrition   Nutrition
	ServingSize float64
	ServingUnit string

	Source Source

	// ExternalCode is the remote database's stable identifier (FOOD_CD).
	// Empty for user-defined items. When present it is the primary
	// deduplication key.
	ExternalCode string

	SearchCount    int
	LastAccessedAt time.Time
	CreatedAt      time.Time
}

// NewFoodItem creates a food item with a fresh ID
func NewFoodItem(name string, nutrition Nutrition, servingSize float64, servingUnit string, source Source) FoodItem {
	now := time.Now()
	return FoodItem{
		ID:             uuid.NewString(),
		Name:           strings.TrimSpace(name),
		Nutrition:      nutrition,
		ServingSize:    servingSize,
		ServingUnit:    servingUnit,
		Source:         source,
		LastAccessedAt: now,
		CreatedAt:      now,
	}
}

// Validate checks structural invariants before persistence
func (f *FoodItem) Validate() error {
	if strings.TrimSpace(f.Name) == "" {
		return ErrEmptyName
	}
	if f.ServingSize < 0 {
		return ErrNegativeServingSize
	}
	return nil
}

// DedupKey returns the identity used to decide whether two items
// represent the same nutritional entity: the external code when
// present, otherwise the display name.
func (f *FoodItem) DedupKey() string {
	if f.ExternalCode != "" {
		return "code:" + f.ExternalCode
	}
	return "name:" + f.Name
}

// NutritionFor scales the per-serving nutrition to the given amount in
// serving units. A zero serving size yields zero values rather than a
// division fault.
func (f *FoodItem) NutritionFor(amount float64) Nutrition {
	if f.ServingSize == 0 {
		return Nutrition{}
	}
	ratio := amount / f.ServingSize
	scaled := Nutrition{
		Calories:      f.Nutrition.Calories * ratio,
		Carbohydrates: f.Nutrition.Carbohydrates * ratio,
		Protein:       f.Nutrition.Protein * ratio,
		Fat:           f.Nutrition.Fat * ratio,
	}
	scaled.Sodium = scaleOptional(f.Nutrition.Sodium, ratio)
	scaled.Fiber = scaleOptional(f.Nutrition.Fiber, ratio)
	scaled.Sugar = scaleOptional(f.Nutrition.Sugar, ratio)
	return scaled
}

func scaleOptional(v *float64, ratio float64) *float64 {
	if v == nil {
		return nil
	}
	scaled := *v * ratio
	return &scaled
}
