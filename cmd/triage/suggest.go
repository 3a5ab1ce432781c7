package main

import (
	"sort"
	"strings"

	"github.com/ancients-collective/triage/internal/types"
)

// levenshtein computes the edit distance between two strings.
func levenshtein(a, b string) int {
	la, lb := len(a), len(b)
	if la == 0 {
		return lb
	}
	if lb == 0 {
		return la
	}

	if la < lb {
		a, b = b, a
		la, lb = lb, la
	}

	prev := make([]int, lb+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= la; i++ {
		curr := make([]int, lb+1)
		curr[0] = i
		for j := 1; j <= lb; j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = min(curr[j-1]+1, prev[j]+1, prev[j-1]+cost)
		}
		prev = curr
	}
	return prev[lb]
}

// suggestSections returns up to 3 section titles closest to the input by
// case-insensitive edit distance.
func suggestSections(input string, sections []types.Section) []string {
	type candidate struct {
		title string
		dist  int
	}

	needle := strings.ToLower(input)
	maxDist := max(len(needle)/2, 3)

	var candidates []candidate
	for _, s := range sections {
		d := levenshtein(needle, strings.ToLower(s.Title))
		if d <= maxDist && d > 0 {
			candidates = append(candidates, candidate{title: s.Title, dist: d})
		}
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].dist != candidates[j].dist {
			return candidates[i].dist < candidates[j].dist
		}
		return candidates[i].title < candidates[j].title
	})

	limit := min(len(candidates), 3)
	result := make([]string, limit)
	for i := range limit {
		result[i] = candidates[i].title
	}
	return result
}
