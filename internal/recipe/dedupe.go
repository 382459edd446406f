package recipe

import (
	"strings"

	"github.com/antzucaro/matchr"
)

// similarityThreshold is the Jaro-Winkler score above which two ingredient
// names are considered the same item even without a substring relationship
// ("tomatos" vs "tomatoes").
const similarityThreshold = 0.92

// Merge returns the subset of candidates that are not already covered by an
// existing item, in candidate order. A candidate is suppressed when, against
// any existing text (case-insensitive):
//
//   - either string is a substring of the other ("flour" covers
//     "all-purpose flour"), or
//   - the Jaro-Winkler similarity exceeds the near-duplicate threshold.
//
// This is a deliberately loose fuzzy match: distinct items are occasionally
// conflated and near-duplicates occasionally kept separate. Both failure
// modes are accepted approximations.
func Merge(existing []string, candidates []string) []string {
	added := make([]string, 0, len(candidates))
	seen := make([]string, 0, len(existing)+len(candidates))
	for _, e := range existing {
		seen = append(seen, strings.ToLower(strings.TrimSpace(e)))
	}

	for _, cand := range candidates {
		c := strings.ToLower(strings.TrimSpace(cand))
		if c == "" {
			continue
		}
		if covered(seen, c) {
			continue
		}
		added = append(added, cand)
		seen = append(seen, c)
	}
	return added
}

// covered reports whether c duplicates any entry of seen.
func covered(seen []string, c string) bool {
	for _, s := range seen {
		if s == "" {
			continue
		}
		if strings.Contains(s, c) || strings.Contains(c, s) {
			return true
		}
		if matchr.JaroWinkler(s, c, true) >= similarityThreshold {
			return true
		}
	}
	return false
}
