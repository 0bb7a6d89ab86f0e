package fuzzy

import (
	"strings"
	"unicode"
)

// LevenshteinAlgorithm scores by normalized edit distance:
// 1 - distance/max(len). Good at catching typos and small edits.
type LevenshteinAlgorithm struct{}

func (LevenshteinAlgorithm) Name() string             { return AlgorithmLevenshtein }
func (LevenshteinAlgorithm) NeedsPreprocessing() bool { return true }

func (LevenshteinAlgorithm) Similarity(a, b string) float64 {
	if a == b {
		return 1.0
	}
	if a == "" || b == "" {
		return 0.0
	}

	ra, rb := []rune(a), []rune(b)
	dist := levenshteinDistance(ra, rb)
	maxLen := len(ra)
	if len(rb) > maxLen {
		maxLen = len(rb)
	}
	return 1.0 - float64(dist)/float64(maxLen)
}

// levenshteinDistance computes edit distance with a two-row table.
func levenshteinDistance(a, b []rune) int {
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
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
			curr[j] = min3(
				prev[j]+1,      // deletion
				curr[j-1]+1,    // insertion
				prev[j-1]+cost, // substitution
			)
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}

func min3(a, b, c int) int {
	m := a
	if b < m {
		m = b
	}
	if c < m {
		m = c
	}
	return m
}

// JaroWinklerAlgorithm scores by character matches within a sliding
// window, with a bonus for shared prefixes. Favors strings that agree
// at the start, which suits column headers.
type JaroWinklerAlgorithm struct{}

func (JaroWinklerAlgorithm) Name() string             { return AlgorithmJaroWinkler }
func (JaroWinklerAlgorithm) NeedsPreprocessing() bool { return true }

func (JaroWinklerAlgorithm) Similarity(a, b string) float64 {
	if a == b {
		return 1.0
	}
	if a == "" || b == "" {
		return 0.0
	}

	ra, rb := []rune(a), []rune(b)
	jaro := jaroSimilarity(ra, rb)

	// Prefix bonus only kicks in above the Winkler threshold
	if jaro < 0.7 {
		return jaro
	}

	prefix := 0
	for prefix < len(ra) && prefix < len(rb) && prefix < 4 && ra[prefix] == rb[prefix] {
		prefix++
	}
	return jaro + 0.1*float64(prefix)*(1.0-jaro)
}

func jaroSimilarity(a, b []rune) float64 {
	maxLen := len(a)
	if len(b) > maxLen {
		maxLen = len(b)
	}
	window := maxLen/2 - 1
	if window < 0 {
		window = 0
	}

	aMatched := make([]bool, len(a))
	bMatched := make([]bool, len(b))
	matches := 0

	for i := range a {
		lo := i - window
		if lo < 0 {
			lo = 0
		}
		hi := i + window + 1
		if hi > len(b) {
			hi = len(b)
		}
		for j := lo; j < hi; j++ {
			if bMatched[j] || a[i] != b[j] {
				continue
			}
			aMatched[i] = true
			bMatched[j] = true
			matches++
			break
		}
	}

	if matches == 0 {
		return 0.0
	}

	// Count transpositions among matched characters
	transpositions := 0
	j := 0
	for i := range a {
		if !aMatched[i] {
			continue
		}
		for !bMatched[j] {
			j++
		}
		if a[i] != b[j] {
			transpositions++
		}
		j++
	}

	m := float64(matches)
	t := float64(transpositions) / 2.0
	return (m/float64(len(a)) + m/float64(len(b)) + (m-t)/m) / 3.0
}

// NgramAlgorithm scores by Jaccard similarity over character n-gram
// multisets. Robust to word reordering.
type NgramAlgorithm struct {
	N int
}

// NewNgramAlgorithm returns an n-gram scorer; n below 1 falls back to
// bigrams.
func NewNgramAlgorithm(n int) NgramAlgorithm {
	if n < 1 {
		n = 2
	}
	return NgramAlgorithm{N: n}
}

func (NgramAlgorithm) Name() string             { return AlgorithmNgram }
func (NgramAlgorithm) NeedsPreprocessing() bool { return true }

func (g NgramAlgorithm) Similarity(a, b string) float64 {
	if a == "" && b == "" {
		return 1.0
	}
	if a == "" || b == "" {
		return 0.0
	}

	ha := g.histogram(a)
	hb := g.histogram(b)

	// Jaccard over multisets: sum of per-gram minima over maxima
	intersection, union := 0, 0
	for gram, ca := range ha {
		cb := hb[gram]
		if ca < cb {
			intersection += ca
			union += cb
		} else {
			intersection += cb
			union += ca
		}
	}
	for gram, cb := range hb {
		if _, seen := ha[gram]; !seen {
			union += cb
		}
	}

	if union == 0 {
		return 0.0
	}
	return float64(intersection) / float64(union)
}

// histogram counts n-gram occurrences. A string shorter than n is a
// single gram of itself.
func (g NgramAlgorithm) histogram(s string) map[string]int {
	runes := []rune(s)
	h := make(map[string]int)
	if len(runes) < g.N {
		h[s] = 1
		return h
	}
	for i := 0; i+g.N <= len(runes); i++ {
		h[string(runes[i:i+g.N])]++
	}
	return h
}

// SoundexAlgorithm scores by phonetic code agreement. Works on raw
// text so it can catch misspellings the cleaned form would hide.
type SoundexAlgorithm struct{}

func (SoundexAlgorithm) Name() string             { return AlgorithmSoundex }
func (SoundexAlgorithm) NeedsPreprocessing() bool { return false }

func (SoundexAlgorithm) Similarity(a, b string) float64 {
	if a == b {
		return 1.0
	}
	if a == "" || b == "" {
		return 0.0
	}

	codeA := soundexCode(a)
	codeB := soundexCode(b)
	if codeA == "" || codeB == "" {
		return 0.0
	}
	if codeA == codeB {
		return 0.8
	}

	// Partial credit for positional digit agreement
	matches := 0
	for i := 0; i < 4; i++ {
		if codeA[i] == codeB[i] {
			matches++
		}
	}
	return float64(matches) / 4.0 * 0.6
}

// soundexCode produces a classic four-character soundex code, or ""
// when the input has no leading letter.
func soundexCode(s string) string {
	var letters []rune
	for _, r := range strings.ToUpper(s) {
		if unicode.IsLetter(r) && r < 128 {
			letters = append(letters, r)
		}
	}
	if len(letters) == 0 {
		return ""
	}

	code := []byte{byte(letters[0])}
	prev := soundexDigit(letters[0])
	for _, r := range letters[1:] {
		d := soundexDigit(r)
		if d != 0 && d != prev {
			code = append(code, '0'+d)
			if len(code) == 4 {
				break
			}
		}
		prev = d
	}
	for len(code) < 4 {
		code = append(code, '0')
	}
	return string(code)
}

func soundexDigit(r rune) byte {
	switch r {
	case 'B', 'F', 'P', 'V':
		return 1
	case 'C', 'G', 'J', 'K', 'Q', 'S', 'X', 'Z':
		return 2
	case 'D', 'T':
		return 3
	case 'L':
		return 4
	case 'M', 'N':
		return 5
	case 'R':
		return 6
	default:
		return 0
	}
}
