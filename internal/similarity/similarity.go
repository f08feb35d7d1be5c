// Package similarity scores how closely scraped name candidates match a
// target string using edit distance and token overlap.
package similarity

import (
	"strings"
	"unicode/utf8"

	"github.com/agext/levenshtein"
)

// NameMatchThreshold is the minimum Levenshtein similarity a candidate must
// reach before BestNameMatch will suggest it as a correction.
const NameMatchThreshold = 0.6

// wordMatchThreshold is the per-pair similarity above which two words count
// as the same word.
const wordMatchThreshold = 0.8

// emptyEvidenceConfidence is returned when there are no candidates at all.
// Absence from a source is weak negative evidence, not disproof.
const emptyEvidenceConfidence = 0.1

// Levenshtein returns 1 - editDistance(a, b) / max(len(a), len(b)), measured
// in runes. Two empty strings are identical.
func Levenshtein(a, b string) float64 {
	longest := max(utf8.RuneCountInString(a), utf8.RuneCountInString(b))
	if longest == 0 {
		return 1
	}
	d := levenshtein.Distance(a, b, nil)
	return 1 - float64(d)/float64(longest)
}

// WordMatch counts word pairs whose similarity exceeds 0.8 and divides by the
// longer word list.
func WordMatch(words1, words2 []string) float64 {
	longest := max(len(words1), len(words2))
	if longest == 0 {
		return 0
	}
	matches := 0
	for _, w1 := range words1 {
		for _, w2 := range words2 {
			if Levenshtein(w1, w2) > wordMatchThreshold {
				matches++
			}
		}
	}
	return float64(matches) / float64(longest)
}

// blended scores one candidate: 0.7 character similarity + 0.3 word overlap.
func blended(target, candidate string) (score, lev float64) {
	lev = Levenshtein(target, candidate)
	score = 0.7*lev + 0.3*WordMatch(strings.Fields(target), strings.Fields(candidate))
	return score, lev
}

// NameMatchConfidence returns the best blended score of target against the
// candidates, clamped to 1. An empty candidate list yields 0.1.
func NameMatchConfidence(target string, candidates []string) float64 {
	if len(candidates) == 0 {
		return emptyEvidenceConfidence
	}
	t := strings.ToLower(strings.TrimSpace(target))
	best := 0.0
	for _, c := range candidates {
		score, _ := blended(t, strings.ToLower(strings.TrimSpace(c)))
		if score > best {
			best = score
		}
	}
	return min(best, 1.0)
}

// BestNameMatch returns the highest-scoring candidate, but only when its raw
// Levenshtein similarity exceeds NameMatchThreshold. The stricter check keeps
// spurious corrections out even when the blended score is decent.
func BestNameMatch(target string, candidates []string) (string, bool) {
	t := strings.ToLower(strings.TrimSpace(target))
	var (
		best      string
		bestScore = -1.0
		bestLev   float64
	)
	for _, c := range candidates {
		score, lev := blended(t, strings.ToLower(strings.TrimSpace(c)))
		if score > bestScore {
			best, bestScore, bestLev = c, score, lev
		}
	}
	if bestScore < 0 || bestLev <= NameMatchThreshold {
		return "", false
	}
	return strings.TrimSpace(best), true
}
