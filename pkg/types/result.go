package types

// SearchResult pairs a food item with its computed relevance score.
// Results are ephemeral: they exist only to order a single response
// and are never persisted.
type SearchResult struct {
	Item FoodItem

	// Rank is the 1-based position in the final result set
	Rank int

	// RelevanceScore is the deterministic rule-based score (0-100)
	RelevanceScore int
}

// Validate checks if the search result is valid
func (sr *SearchResult) Validate() error {
	if sr.Rank < 1 {
		return ErrInvalidRank
	}
	if sr.RelevanceScore < 0 || sr.RelevanceScore > 100 {
		return ErrInvalidRelevanceScore
	}
	return sr.Item.Validate()
}
