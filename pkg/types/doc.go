// Package types provides shared type definitions for the foodsearch engine.
//
// This package defines domain types used across multiple components:
// food items, nutrition values, result sources, and search results.
//
// # Core Types
//
// FoodItem represents a nutrition database entry. Items imported from
// the remote government database carry an ExternalCode (the remote
// FOOD_CD identifier), which serves as the primary deduplication key:
//
//	item := types.NewFoodItem("생꿀", types.Nutrition{Calories: 304},
//	    100, "g", types.SourceUserDefined)
//
// SearchResult pairs an item with its computed relevance score for a
// single response:
//
//	result := types.SearchResult{Item: item, Rank: 1, RelevanceScore: 100}
//
// # Name Conventions
//
// The remote database names foods either with a simple name ("생꿀")
// or with a "<category>_<product>" compound ("요구르트(액상)_플레인요거트").
// Relevance scoring distinguishes the two forms; see the scorer package.
package types
