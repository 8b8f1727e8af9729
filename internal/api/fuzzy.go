package api

import (
	"github.com/sahilm/fuzzy"
)

// fuzzyLimit is how many candidates a fuzzy search returns.
const fuzzyLimit = 5

// fuzzyTop returns the indexes of the best matches of pattern in names,
// best first. An empty pattern matches the first names in order.
func fuzzyTop(pattern string, names []string) []int {
	if pattern == "" {
		n := min(len(names), fuzzyLimit)
		idx := make([]int, n)
		for i := range idx {
			idx[i] = i
		}
		return idx
	}

	matches := fuzzy.Find(pattern, names)
	idx := make([]int, 0, fuzzyLimit)
	for _, m := range matches {
		if len(idx) == fuzzyLimit {
			break
		}
		idx = append(idx, m.Index)
	}
	return idx
}
