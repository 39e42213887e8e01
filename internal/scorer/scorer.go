// Package scorer assigns deterministic relevance scores to candidate
// food names and orders merged result sets.
//
// The remote database names foods as "<category>_<product>". The rule
// table ranks product-level matches above category-only matches, and
// prefers short simple names (likely a raw ingredient) over long
// compound ones at equal match quality.
package scorer

import (
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/bodii/foodsearch/pkg/types"
)

// Score bands, evaluated in order; first match wins
const (
	scoreExactName       = 100
	scorePrefixName      = 95
	scoreSimpleClose     = 90
	scoreProductExact    = 85
	scoreProductPrefix   = 80
	scoreSimpleNear      = 75
	scoreCategoryShort   = 70
	scoreCategoryLong    = 65
	scoreSimpleFar       = 60
	scoreProductContains = 50
	scoreSimpleLoose     = 40
	scoreCategoryPartial = 30
	scoreSlashedName     = 15
	scoreNoMatch         = 0
)

// Length slack constants, empirically tuned for the Korean
// compound-food-name convention. Kept as-is pending domain review.
const (
	simpleCloseSlack = 3
	simpleNearSlack  = 8
	simpleFarSlack   = 15

	// longProductRunes separates short product parts (likely a
	// concrete food) from verbose ones
	longProductRunes = 15
)

const (
	compoundSep = "_"
	variantSep  = "/"
)

// splitCompound splits a "<category>_<product>" name. ok is false for
// simple names without a separator.
func splitCompound(name string) (category, product string, ok bool) {
	idx := strings.Index(name, compoundSep)
	if idx < 0 {
		return "", "", false
	}
	return name[:idx], name[idx+len(compoundSep):], true
}

// partialOverlap reports whether any two-rune window of the query
// appears in the category part. It catches loose category relations
// like "빵류" against "팥빵".
func partialOverlap(category, query string) bool {
	runes := []rune(query)
	if len(runes) < 2 {
		return false
	}
	for i := 0; i+2 <= len(runes); i++ {
		if strings.Contains(category, string(runes[i:i+2])) {
			return true
		}
	}
	return false
}

// Score computes the relevance of a candidate name against a query and
// its synonym set. Rules are evaluated in order across all candidate
// terms; the first rule any term satisfies decides the score.
func Score(name, query string, synonyms []string) int {
	terms := make([]string, 0, 1+len(synonyms))
	if query = strings.TrimSpace(query); query != "" {
		terms = append(terms, query)
	}
	for _, s := range synonyms {
		if s = strings.TrimSpace(s); s != "" && s != query {
			terms = append(terms, s)
		}
	}
	if name == "" || len(terms) == 0 {
		return scoreNoMatch
	}

	nameLen := utf8.RuneCountInString(name)
	category, product, compound := splitCompound(name)
	slashed := strings.Contains(name, variantSep)

	type rule func(term string) bool
	rules := []struct {
		match rule
		score int
	}{
		{func(t string) bool { return name == t }, scoreExactName},
		{func(t string) bool { return strings.HasPrefix(name, t) }, scorePrefixName},
		{func(t string) bool {
			return !compound && strings.Contains(name, t) &&
				nameLen <= utf8.RuneCountInString(t)+simpleCloseSlack
		}, scoreSimpleClose},
		{func(t string) bool { return compound && product == t }, scoreProductExact},
		{func(t string) bool { return compound && strings.HasPrefix(product, t) }, scoreProductPrefix},
		{func(t string) bool {
			return !compound && strings.Contains(name, t) &&
				nameLen <= utf8.RuneCountInString(t)+simpleNearSlack
		}, scoreSimpleNear},
		{func(t string) bool {
			return compound && strings.Contains(category, t) &&
				utf8.RuneCountInString(product) <= longProductRunes
		}, scoreCategoryShort},
		{func(t string) bool {
			return compound && strings.Contains(category, t) &&
				utf8.RuneCountInString(product) > longProductRunes
		}, scoreCategoryLong},
		{func(t string) bool {
			return !compound && strings.Contains(name, t) &&
				nameLen <= utf8.RuneCountInString(t)+simpleFarSlack
		}, scoreSimpleFar},
		{func(t string) bool { return compound && strings.Contains(product, t) }, scoreProductContains},
		{func(t string) bool { return !compound && !slashed && strings.Contains(name, t) }, scoreSimpleLoose},
		{func(t string) bool { return compound && partialOverlap(category, t) }, scoreCategoryPartial},
		{func(t string) bool { return slashed && strings.Contains(name, t) }, scoreSlashedName},
	}

	for _, r := range rules {
		for _, term := range terms {
			if r.match(term) {
				return r.score
			}
		}
	}
	return scoreNoMatch
}

// Rank scores every item against the query and returns results ordered
// by score descending, then name length ascending (a shorter name is
// more likely a base ingredient). Ties beyond that keep discovery
// order, making the final ordering deterministic for a fixed input.
func Rank(items []types.FoodItem, query string, synonyms []string) []types.SearchResult {
	results := make([]types.SearchResult, len(items))
	for i, item := range items {
		results[i] = types.SearchResult{
			Item:           item,
			RelevanceScore: Score(item.Name, query, synonyms),
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].RelevanceScore != results[j].RelevanceScore {
			return results[i].RelevanceScore > results[j].RelevanceScore
		}
		return utf8.RuneCountInString(results[i].Item.Name) < utf8.RuneCountInString(results[j].Item.Name)
	})

	for i := range results {
		results[i].Rank = i + 1
	}
	return results
}
