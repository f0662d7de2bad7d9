package util

import (
	"sort"
	"strings"

	"github.com/agnivade/levenshtein"
)

// maxSuggestionDistance is the largest edit distance for which a name is still offered as a suggestion
const maxSuggestionDistance = 3

// ClosestMatches returns the candidates that look like a misspelling of name,
// closest first. Ties are broken alphabetically so the output is deterministic.
func ClosestMatches(name string, candidates []string) []string {
	type scored struct {
		name string
		dist int
	}
	lowered := strings.ToLower(name)
	var matches []scored
	for _, candidate := range SortedUniq(append([]string(nil), candidates...)) {
		dist := levenshtein.ComputeDistance(lowered, strings.ToLower(candidate))
		limit := maxSuggestionDistance
		if len(name) < 4 {
			limit = 1
		}
		if dist <= limit {
			matches = append(matches, scored{candidate, dist})
		}
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].dist < matches[j].dist
	})
	out := make([]string, len(matches))
	for i, m := range matches {
		out[i] = m.name
	}
	return out
}

// DidYouMean renders suggestions as a hint suffix, or the empty string when there are none
func DidYouMean(suggestions []string) string {
	if len(suggestions) == 0 {
		return ""
	}
	quoted := make([]string, len(suggestions))
	for i, s := range suggestions {
		quoted[i] = "'" + s + "'"
	}
	return " (did you mean " + strings.Join(quoted, ", ") + "?)"
}
