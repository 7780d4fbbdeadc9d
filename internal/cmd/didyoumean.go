package cmd

import "strings"

// maxSuggestDistance is the largest edit distance still offered as a suggestion.
const maxSuggestDistance = 3

// levenshtein computes the edit distance between a and b over bytes.
func levenshtein(a, b string) int {
	if a == "" {
		return len(b)
	}
	if b == "" {
		return len(a)
	}
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}

func closest(input string, candidates []string, key func(string) string) string {
	best, bestDist := "", maxSuggestDistance+1
	for _, c := range candidates {
		if d := levenshtein(input, key(c)); d < bestDist {
			best, bestDist = c, d
		}
	}
	return best
}

// suggestCommand returns the command name nearest to unknown, or "".
func suggestCommand(unknown string, commands []string) string {
	return closest(strings.ToLower(unknown), commands, strings.ToLower)
}

// suggestFlag returns the flag nearest to unknown, compared without dashes
// but returned with its original prefix.
func suggestFlag(unknown string, flagNames []string) string {
	stripped := strings.ToLower(strings.TrimLeft(unknown, "-"))
	if stripped == "" {
		return ""
	}
	return closest(stripped, flagNames, func(f string) string {
		return strings.ToLower(strings.TrimLeft(f, "-"))
	})
}
