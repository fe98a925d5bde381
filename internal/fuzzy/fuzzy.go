// Package fuzzy implements the string-similarity primitives used for
// typo-tolerant entity lookup.
package fuzzy

import (
	"sort"
	"strings"
)

// Compound score policy. These weights are fixed; tests pin them.
const (
	JaroWinklerWeight = 0.45
	LevenshteinWeight = 0.30
	NgramWeight       = 0.25

	// MaxContainmentBonus is scaled by len(query)/len(candidate)
	MaxContainmentBonus = 0.10

	// CaseInsensitiveScore is returned for equal strings differing only in case
	CaseInsensitiveScore = 0.95

	winklerPrefixLimit = 4
	winklerScale       = 0.1

	// DefaultNgramSize is the gram length used by CompoundScore
	DefaultNgramSize = 2
)

// LevenshteinDistance returns the edit distance between a and b.
// It keeps a single DP row sized to the shorter string.
func LevenshteinDistance(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	if len(ra) < len(rb) {
		ra, rb = rb, ra
	}

	row := make([]int, len(rb)+1)
	for j := range row {
		row[j] = j
	}

	for i := 1; i <= len(ra); i++ {
		diag := row[0]
		row[0] = i
		for j := 1; j <= len(rb); j++ {
			above := row[j]
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			row[j] = min(above+1, row[j-1]+1, diag+cost)
			diag = above
		}
	}

	return row[len(rb)]
}

// JaroWinklerSimilarity returns the Jaro-Winkler similarity in [0, 1]
func JaroWinklerSimilarity(a, b string) float64 {
	if a == b {
		return 1.0
	}

	ra, rb := []rune(a), []rune(b)
	la, lb := len(ra), len(rb)
	if la == 0 || lb == 0 {
		return 0
	}

	window := max(la, lb)/2 - 1
	if window < 0 {
		window = 0
	}

	matchedA := make([]bool, la)
	matchedB := make([]bool, lb)
	matches := 0
	for i := 0; i < la; i++ {
		lo := max(0, i-window)
		hi := min(lb-1, i+window)
		for j := lo; j <= hi; j++ {
			if matchedB[j] || ra[i] != rb[j] {
				continue
			}
			matchedA[i] = true
			matchedB[j] = true
			matches++
			break
		}
	}
	if matches == 0 {
		return 0
	}

	// Count matched characters that appear in a different order
	outOfOrder := 0
	k := 0
	for i := 0; i < la; i++ {
		if !matchedA[i] {
			continue
		}
		for !matchedB[k] {
			k++
		}
		if ra[i] != rb[k] {
			outOfOrder++
		}
		k++
	}

	m := float64(matches)
	t := float64(outOfOrder) / 2
	jaro := (m/float64(la) + m/float64(lb) + (m-t)/m) / 3

	prefix := 0
	for i := 0; i < min(winklerPrefixLimit, la, lb); i++ {
		if ra[i] != rb[i] {
			break
		}
		prefix++
	}

	return jaro + float64(prefix)*winklerScale*(1-jaro)
}

// NgramSimilarity returns the Dice coefficient over the character n-gram sets
// of a and b. Strings shorter than n score 0.
func NgramSimilarity(a, b string, n int) float64 {
	if n <= 0 {
		n = DefaultNgramSize
	}
	ga, gb := ngrams(a, n), ngrams(b, n)
	if len(ga) == 0 || len(gb) == 0 {
		return 0
	}

	shared := 0
	for g := range ga {
		if _, ok := gb[g]; ok {
			shared++
		}
	}
	return 2 * float64(shared) / float64(len(ga)+len(gb))
}

func ngrams(s string, n int) map[string]struct{} {
	r := []rune(s)
	if len(r) < n {
		return nil
	}
	set := make(map[string]struct{}, len(r)-n+1)
	for i := 0; i+n <= len(r); i++ {
		set[string(r[i:i+n])] = struct{}{}
	}
	return set
}

// CompoundScore blends the three metrics into a single score in [0, 1].
// Exact matches score 1.0 and case-insensitive matches 0.95; everything else
// is compared case-folded.
func CompoundScore(query, candidate string) float64 {
	if query == candidate {
		return 1.0
	}
	q, c := strings.ToLower(query), strings.ToLower(candidate)
	if q == c {
		return CaseInsensitiveScore
	}

	qLen, cLen := len([]rune(q)), len([]rune(c))
	maxLen := max(qLen, cLen)

	editScore := 0.0
	if maxLen > 0 {
		editScore = 1 - float64(LevenshteinDistance(q, c))/float64(maxLen)
	}

	score := JaroWinklerWeight*JaroWinklerSimilarity(q, c) +
		LevenshteinWeight*editScore +
		NgramWeight*NgramSimilarity(q, c, DefaultNgramSize)

	if qLen > 0 && cLen > 0 && strings.Contains(c, q) {
		score += MaxContainmentBonus * float64(qLen) / float64(cLen)
	}

	if score > 1.0 {
		score = 1.0
	}
	if score < 0 {
		score = 0
	}
	return score
}

// Match is one ranked candidate
type Match struct {
	Candidate string
	Score     float64
	Index     int // position in the candidate slice
}

// BestMatches scores every candidate against query and returns those at or
// above threshold, best first. Ties keep candidate order. limit <= 0 means no limit.
func BestMatches(query string, candidates []string, threshold float64, limit int) []Match {
	matches := make([]Match, 0)
	for i, c := range candidates {
		score := CompoundScore(query, c)
		if score >= threshold {
			matches = append(matches, Match{Candidate: c, Score: score, Index: i})
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})

	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	return matches
}
