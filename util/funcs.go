package util

import (
	"sort"

	xset "github.com/xtgo/set"
)

// SortedUniq sorts names in place and returns the prefix holding each name once
func SortedUniq(names []string) []string {
	sort.Strings(names)
	n := xset.Uniq(sort.StringSlice(names))
	return names[:n]
}
