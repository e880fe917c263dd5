package search

import (
	"sort"
	"unicode/utf8"
)

// MaxEditDistance caps the edits allowed for a single query term
const MaxEditDistance = 4

// LevenshteinDistance calculates the edit distance between two strings
func LevenshteinDistance(a, b string) int {
	aRunes := []rune(a)
	bRunes := []rune(b)

	lenA := len(aRunes)
	lenB := len(bRunes)

	// Quick exit for empty strings
	if lenA == 0 {
		return lenB
	}
	if lenB == 0 {
		return lenA
	}

	// We only need to track the previous row
	prev := make([]int, lenB+1)
	curr := make([]int, lenB+1)

	for j := 0; j <= lenB; j++ {
		prev[j] = j
	}

	for i := 1; i <= lenA; i++ {
		curr[0] = i

		for j := 1; j <= lenB; j++ {
			cost := 1
			if aRunes[i-1] == bRunes[j-1] {
				cost = 0
			}

			// Minimum of insert, delete, replace
			insert := curr[j-1] + 1
			delete := prev[j] + 1
			replace := prev[j-1] + cost

			curr[j] = min3(insert, delete, replace)
		}

		prev, curr = curr, prev
	}

	return prev[lenB]
}

// allowedEdits is the edit budget for a term under the given threshold
func allowedEdits(term string, threshold float64) int {
	n := int(threshold * float64(utf8.RuneCountInString(term)))
	if n > MaxEditDistance {
		return MaxEditDistance
	}
	if n < 0 {
		return 0
	}
	return n
}

// FuzzyMatch reports the edit distance between term and target when it is
// within maxDist.
func FuzzyMatch(term, target string, maxDist int) (int, bool) {
	// Quick length check - if length difference > maxDist, can't match
	diff := utf8.RuneCountInString(term) - utf8.RuneCountInString(target)
	if diff < 0 {
		diff = -diff
	}
	if diff > maxDist {
		return 0, false
	}

	d := LevenshteinDistance(term, target)
	return d, d <= maxDist
}

// candidate is a vocabulary token close enough to a query term
type candidate struct {
	token string
	dist  int
}

// expand finds vocabulary tokens within maxDist of term. Exhaustive mode
// checks the whole vocabulary; otherwise only tokens sharing a trigram with
// the term are considered, which can miss heavily edited short words.
func (idx *Index) expand(term string, maxDist int, exhaustive bool) []candidate {
	var out []candidate

	check := func(tok string) {
		if tok == term {
			return
		}
		if d, ok := FuzzyMatch(term, tok, maxDist); ok {
			out = append(out, candidate{token: tok, dist: d})
		}
	}

	if exhaustive {
		for _, tok := range idx.vocab {
			check(tok)
		}
		return out
	}

	seen := make(map[string]bool)
	for _, tg := range generateTrigrams(term) {
		for _, tok := range idx.trigrams[tg] {
			if !seen[tok] {
				seen[tok] = true
				check(tok)
			}
		}
	}
	return out
}

// generateTrigrams creates trigram (3-character) sequences from a word
func generateTrigrams(word string) []string {
	runes := []rune(word)
	n := len(runes)
	if n < 3 {
		return []string{word}
	}

	trigrams := make([]string, 0, n-2)
	for i := 0; i <= n-3; i++ {
		trigrams = append(trigrams, string(runes[i:i+3]))
	}
	return trigrams
}

// buildNgramIndex builds a trigram index for fast fuzzy lookups. Lists are
// sorted so the structure does not depend on map iteration order.
func buildNgramIndex(vocab []string) map[string][]string {
	ngramIndex := make(map[string][]string)

	for _, term := range vocab {
		seen := make(map[string]bool)
		for _, tg := range generateTrigrams(term) {
			if seen[tg] {
				continue
			}
			seen[tg] = true
			ngramIndex[tg] = append(ngramIndex[tg], term)
		}
	}

	for tg := range ngramIndex {
		sort.Strings(ngramIndex[tg])
	}
	return ngramIndex
}

// min3 returns the minimum of three integers
func min3(a, b, c int) int {
	if a < b {
		if a < c {
			return a
		}
		return c
	}
	if b < c {
		return b
	}
	return c
}
