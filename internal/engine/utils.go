// Completion: 100% - Utility module complete
package engine

import (
	"fmt"
	"sort"
	"strings"
)

// utils.go - name matching helpers for diagnostics
//
// Used by the listing assembler and the CLI to turn a misspelled opcode,
// label or command into a "did you mean" hint.

// suggestionThreshold is the largest edit distance still offered as a hint.
const suggestionThreshold = 3

// Levenshtein calculates the edit distance between two strings
func Levenshtein(s1, s2 string) int {
	if len(s1) == 0 {
		return len(s2)
	}
	if len(s2) == 0 {
		return len(s1)
	}

	prev := make([]int, len(s2)+1)
	cur := make([]int, len(s2)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(s1); i++ {
		cur[0] = i
		for j := 1; j <= len(s2); j++ {
			cost := 1
			if s1[i-1] == s2[j-1] {
				cost = 0
			}
			cur[j] = min(prev[j]+1, cur[j-1]+1, prev[j-1]+cost)
		}
		prev, cur = cur, prev
	}
	return prev[len(s2)]
}

// SuggestSimilar returns up to limit candidates close to name, closest first.
// Matching ignores case, so "load_fast" finds "LOAD_FAST".
func SuggestSimilar(name string, candidates []string, limit int) []string {
	type suggestion struct {
		name     string
		distance int
	}

	var suggestions []suggestion
	lower := strings.ToLower(name)
	for _, candidate := range candidates {
		dist := Levenshtein(lower, strings.ToLower(candidate))
		if candidate != name && dist <= suggestionThreshold {
			suggestions = append(suggestions, suggestion{candidate, dist})
		}
	}

	sort.Slice(suggestions, func(i, j int) bool {
		if suggestions[i].distance == suggestions[j].distance {
			return suggestions[i].name < suggestions[j].name
		}
		return suggestions[i].distance < suggestions[j].distance
	})

	result := make([]string, 0, limit)
	for i := 0; i < len(suggestions) && i < limit; i++ {
		result = append(result, suggestions[i].name)
	}
	return result
}

// DidYouMean formats the best suggestion as a sentence suffix, or returns
// an empty string.
func DidYouMean(name string, candidates []string) string {
	s := SuggestSimilar(name, candidates, 1)
	if len(s) == 0 {
		return ""
	}
	return fmt.Sprintf(" (did you mean %q?)", s[0])
}
