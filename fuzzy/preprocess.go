package fuzzy

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// defaultAbbreviations maps common column-header shorthand to its
// expanded form. Applied token-by-token after cleaning.
var defaultAbbreviations = map[string]string{
	"poc":    "point of contact",
	"ip":     "internet protocol",
	"id":     "identifier",
	"poam":   "plan of action and milestones",
	"ssp":    "system security plan",
	"vuln":   "vulnerability",
	"config": "configuration",
	"num":    "number",
	"desc":   "description",
	"org":    "organization",
	"impl":   "implementation",
	"mgmt":   "management",
	"env":    "environment",
	"os":     "operating system",
	"addr":   "address",
	"info":   "information",
}

// defaultStopWords are removed from headers before matching; they carry
// no discriminating signal between column names.
var defaultStopWords = map[string]struct{}{
	"the": {}, "a": {}, "an": {}, "and": {}, "or": {},
	"of": {}, "for": {}, "in": {}, "on": {}, "at": {}, "to": {},
}

// Preprocessor normalizes raw header text into a canonical form before
// similarity scoring. The pipeline is idempotent: running it twice
// yields the same output as running it once.
type Preprocessor struct {
	abbreviations map[string]string
	stopWords     map[string]struct{}
}

// PreprocessResult carries the processed text plus the names of the
// pipeline steps that actually changed it.
type PreprocessResult struct {
	Original  string   `json:"original"`
	Processed string   `json:"processed"`
	Steps     []string `json:"steps"`
}

// NewPreprocessor returns a preprocessor with the default abbreviation
// dictionary and stop-word list.
func NewPreprocessor() *Preprocessor {
	return &Preprocessor{
		abbreviations: defaultAbbreviations,
		stopWords:     defaultStopWords,
	}
}

// NewPreprocessorWith returns a preprocessor using custom dictionaries.
// Nil maps fall back to the defaults.
func NewPreprocessorWith(abbreviations map[string]string, stopWords []string) *Preprocessor {
	p := NewPreprocessor()
	if abbreviations != nil {
		p.abbreviations = abbreviations
	}
	if stopWords != nil {
		set := make(map[string]struct{}, len(stopWords))
		for _, w := range stopWords {
			set[strings.ToLower(w)] = struct{}{}
		}
		p.stopWords = set
	}
	return p
}

// Preprocess runs the full pipeline: unicode NFC normalization,
// lowercasing, punctuation removal, abbreviation expansion, and
// stop-word removal.
func (p *Preprocessor) Preprocess(input string) PreprocessResult {
	result := PreprocessResult{Original: input}
	text := input

	if !norm.NFC.IsNormalString(text) {
		text = norm.NFC.String(text)
		result.Steps = append(result.Steps, "unicode_normalize")
	}

	if lowered := strings.ToLower(text); lowered != text {
		text = lowered
		result.Steps = append(result.Steps, "lowercase")
	}

	if cleaned := cleanText(text); cleaned != text {
		text = cleaned
		result.Steps = append(result.Steps, "clean")
	}

	if expanded := p.expandAbbreviations(text); expanded != text {
		text = expanded
		result.Steps = append(result.Steps, "expand_abbreviations")
	}

	if stripped := p.removeStopWords(text); stripped != text {
		text = stripped
		result.Steps = append(result.Steps, "remove_stop_words")
	}

	result.Processed = text
	return result
}

// QuickPreprocess is a cheap single-pass variant: lowercase, drop
// non-alphanumerics, collapse whitespace. No dictionaries consulted.
func QuickPreprocess(input string) string {
	var b strings.Builder
	b.Grow(len(input))
	lastSpace := true
	for _, r := range strings.ToLower(input) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			lastSpace = false
		} else if !lastSpace {
			b.WriteRune(' ')
			lastSpace = true
		}
	}
	return strings.TrimSpace(b.String())
}

// AreEquivalent reports whether two strings preprocess to the same
// canonical form.
func (p *Preprocessor) AreEquivalent(a, b string) bool {
	return p.Preprocess(a).Processed == p.Preprocess(b).Processed
}

// cleanText replaces every non-alphanumeric rune with a space and
// collapses runs of whitespace.
func cleanText(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	lastSpace := true
	for _, r := range text {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			lastSpace = false
		} else if !lastSpace {
			b.WriteRune(' ')
			lastSpace = true
		}
	}
	return strings.TrimSpace(b.String())
}

func (p *Preprocessor) expandAbbreviations(text string) string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return text
	}
	out := make([]string, 0, len(words))
	for _, w := range words {
		if expansion, ok := p.abbreviations[w]; ok {
			out = append(out, expansion)
		} else {
			out = append(out, w)
		}
	}
	return strings.Join(out, " ")
}

func (p *Preprocessor) removeStopWords(text string) string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return text
	}
	out := make([]string, 0, len(words))
	for _, w := range words {
		if _, stop := p.stopWords[w]; !stop {
			out = append(out, w)
		}
	}
	// A header made entirely of stop words keeps its text rather than
	// collapsing to the empty string
	if len(out) == 0 {
		return text
	}
	return strings.Join(out, " ")
}
