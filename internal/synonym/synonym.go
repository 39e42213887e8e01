// Package synonym expands a raw food query into the set of equivalent
// query strings used by the local and remote search paths.
//
// Groups cover spelling and transliteration variants common in
// Korean food names (요거트/요구르트, 도너츠/도넛/도나쓰). A query that
// exactly matches a group member expands to the whole group; a query
// that merely contains a member ("팥도너츠") expands to variants with
// that member substituted ("팥도나쓰").
package synonym

import "strings"

// Group is a small set of interchangeable query terms
type Group []string

// defaultGroups is the fixed synonym table. Groups stay small (at most
// five members) so expansion cost is negligible.
var defaultGroups = []Group{
	{"요거트", "요구르트", "yogurt"},
	{"도너츠", "도넛", "도나쓰"},
	{"계란", "달걀"},
	{"소고기", "쇠고기"},
	{"고추장아찌", "고추장아치"},
	{"주스", "쥬스", "juice"},
	{"케이크", "케익", "cake"},
	{"카스텔라", "카스테라"},
	{"바베큐", "바비큐"},
	{"초콜릿", "초콜렛", "chocolate"},
}

// Expander produces equivalent query strings from an immutable,
// precomputed synonym table.
type Expander struct {
	groups  []Group
	indexOf map[string]int // member term -> group index
}

// NewExpander builds an expander over the default synonym table
func NewExpander() *Expander {
	return newExpander(defaultGroups)
}

func newExpander(groups []Group) *Expander {
	indexOf := make(map[string]int)
	for i, group := range groups {
		for _, term := range group {
			indexOf[term] = i
		}
	}
	return &Expander{groups: groups, indexOf: indexOf}
}

// Expand returns the deduplicated set of query strings equivalent to
// the given query. The query itself is always included and always
// first. A blank query expands to nothing.
func (e *Expander) Expand(query string) []string {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil
	}

	// An exact member hit expands to the entire group
	if idx, ok := e.indexOf[query]; ok {
		result := make([]string, 0, len(e.groups[idx]))
		result = append(result, query)
		for _, term := range e.groups[idx] {
			if term != query {
				result = append(result, term)
			}
		}
		return result
	}

	// Otherwise substitute any member found inside the query, which
	// handles compound queries like "팥도너츠" containing "도너츠"
	result := []string{query}
	seen := map[string]struct{}{query: {}}
	for _, group := range e.groups {
		for _, term := range group {
			if !strings.Contains(query, term) {
				continue
			}
			for _, variant := range group {
				if variant == term {
					continue
				}
				candidate := strings.ReplaceAll(query, term, variant)
				if _, dup := seen[candidate]; dup {
					continue
				}
				seen[candidate] = struct{}{}
				result = append(result, candidate)
			}
		}
	}
	return result
}

// ContainedMembers returns the table members that appear inside the
// query, in table order. Used to split compound queries at known word
// boundaries ("팥도너츠" → "도너츠").
func (e *Expander) ContainedMembers(query string) []string {
	var members []string
	seen := map[string]struct{}{}
	for _, group := range e.groups {
		for _, term := range group {
			if _, dup := seen[term]; dup {
				continue
			}
			if strings.Contains(query, term) {
				seen[term] = struct{}{}
				members = append(members, term)
			}
		}
	}
	return members
}

// Synonyms returns the expansion without the original query, in the
// order additional remote lookups should be issued
func (e *Expander) Synonyms(query string) []string {
	expanded := e.Expand(query)
	if len(expanded) <= 1 {
		return nil
	}
	return expanded[1:]
}
