package synonym

import (
	"github.com/lithammer/fuzzysearch/fuzzy"
)

// similarity calculates a 0-100 score from the Levenshtein distance,
// falling back to subsequence ranking for abbreviations.
func similarity(s1, s2 string) int {
	if s1 == s2 {
		return 100
	}

	maxLen := len(s1)
	if len(s2) > maxLen {
		maxLen = len(s2)
	}
	if maxLen == 0 {
		return 0
	}

	distance := fuzzy.LevenshteinDistance(s1, s2)
	levenshteinScore := 100 * (maxLen - distance) / maxLen

	// "qty shpd" is a subsequence of "qty shipped"
	rankScore := 0
	if len(s1) < len(s2) {
		if rank := fuzzy.RankMatch(s1, s2); rank >= 0 {
			rankScore = 100 - (rank * 100 / len(s2))
		}
	}

	if levenshteinScore > rankScore {
		return levenshteinScore
	}
	return rankScore
}
