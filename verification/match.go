package verification

import (
	"math"
	"strings"
	"unicode"

	"github.com/agnivade/levenshtein"
)

// corporate suffixes carry no signal when comparing employer names.
var nameNoise = map[string]bool{
	"inc": true, "incorporated": true, "llc": true, "ltd": true,
	"corp": true, "corporation": true, "co": true, "company": true,
}

// MatchScore compares the employer name on file with the one the employer
// reported. 1 is an exact match after normalization, 0 means unrelated or unknown.
func MatchScore(expected, reported string) float64 {
	a, b := normalizeName(expected), normalizeName(reported)
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 1
	}

	longest := len([]rune(a))
	if n := len([]rune(b)); n > longest {
		longest = n
	}
	score := 1 - float64(levenshtein.ComputeDistance(a, b))/float64(longest)
	if score < 0 {
		score = 0
	}
	return math.Round(score*100) / 100
}

func normalizeName(s string) string {
	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return unicode.ToLower(r)
		}
		return ' '
	}, s)

	words := strings.Fields(cleaned)
	kept := words[:0]
	for _, w := range words {
		if !nameNoise[w] {
			kept = append(kept, w)
		}
	}
	return strings.Join(kept, " ")
}
