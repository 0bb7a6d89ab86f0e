// Package fuzzy provides string similarity algorithms and a weighted
// ensemble matcher for comparing column headers against known aliases.
package fuzzy

import (
	"fmt"
	"sort"
	"time"
)

// Algorithm names used in configuration and explanations.
const (
	AlgorithmLevenshtein = "levenshtein"
	AlgorithmJaroWinkler = "jaro_winkler"
	AlgorithmNgram       = "ngram"
	AlgorithmSoundex     = "soundex"
)

// Algorithm computes a similarity score between two strings.
// Scores are always in [0.0, 1.0] with 1.0 meaning identical.
type Algorithm interface {
	// Similarity returns the similarity between a and b
	Similarity(a, b string) float64
	// Name returns the algorithm's configuration name
	Name() string
	// NeedsPreprocessing reports whether inputs should be preprocessed first
	NeedsPreprocessing() bool
}

// Config controls matcher behavior: which algorithms run, how their
// scores are weighted, and how results are filtered.
type Config struct {
	Weights        map[string]float64 `mapstructure:"weights" json:"weights"`
	MinConfidence  float64            `mapstructure:"min_confidence" json:"min_confidence"`
	MaxResults     int                `mapstructure:"max_results" json:"max_results"`
	CacheSize      int                `mapstructure:"cache_size" json:"cache_size"`
	Explain        bool               `mapstructure:"explain" json:"explain"`
	NgramSize      int                `mapstructure:"ngram_size" json:"ngram_size"`
	CaseSensitive  bool               `mapstructure:"case_sensitive" json:"case_sensitive"`
	PreprocessOnce bool               `mapstructure:"preprocess_once" json:"preprocess_once"`
}

// DefaultConfig returns the general-purpose matcher configuration.
func DefaultConfig() Config {
	return Config{
		Weights: map[string]float64{
			AlgorithmLevenshtein: 0.30,
			AlgorithmJaroWinkler: 0.30,
			AlgorithmNgram:       0.25,
			AlgorithmSoundex:     0.15,
		},
		MinConfidence:  0.6,
		MaxResults:     10,
		CacheSize:      1000,
		NgramSize:      2,
		PreprocessOnce: true,
	}
}

// ColumnMatchingConfig returns a configuration tuned for spreadsheet
// column headers: short strings where shared prefixes matter more than
// phonetic similarity.
func ColumnMatchingConfig() Config {
	return Config{
		Weights: map[string]float64{
			AlgorithmLevenshtein: 0.25,
			AlgorithmJaroWinkler: 0.45,
			AlgorithmNgram:       0.25,
			AlgorithmSoundex:     0.05,
		},
		MinConfidence:  0.6,
		MaxResults:     5,
		CacheSize:      1000,
		NgramSize:      2,
		PreprocessOnce: true,
	}
}

// hash returns a stable fingerprint of the config used for cache keying.
// Any change to weights or thresholds produces a different hash, so
// entries cached under an old config become unreachable.
func (c Config) hash() string {
	names := make([]string, 0, len(c.Weights))
	for name := range c.Weights {
		names = append(names, name)
	}
	sort.Strings(names)
	s := fmt.Sprintf("mc=%.4f|mr=%d|n=%d|cs=%t", c.MinConfidence, c.MaxResults, c.NgramSize, c.CaseSensitive)
	for _, name := range names {
		s += fmt.Sprintf("|%s=%.4f", name, c.Weights[name])
	}
	return s
}

// Match is a single scored candidate returned by the matcher.
type Match struct {
	Target      string       `json:"target"`
	Confidence  float64      `json:"confidence"`
	Exact       bool         `json:"exact"`
	Explanation *Explanation `json:"explanation,omitempty"`
}

// Explanation breaks a confidence score down per algorithm.
type Explanation struct {
	Source        string                  `json:"source"`
	Target        string                  `json:"target"`
	SourceSteps   []string                `json:"source_steps,omitempty"`
	TargetSteps   []string                `json:"target_steps,omitempty"`
	Contributions []AlgorithmContribution `json:"contributions"`
	TotalDuration time.Duration           `json:"total_duration"`
}

// AlgorithmContribution records one algorithm's share of an ensemble score.
type AlgorithmContribution struct {
	Algorithm     string        `json:"algorithm"`
	RawScore      float64       `json:"raw_score"`
	Weight        float64       `json:"weight"`
	WeightedScore float64       `json:"weighted_score"`
	Duration      time.Duration `json:"duration"`
}

// CacheStats reports matcher cache effectiveness.
type CacheStats struct {
	Hits   uint64 `json:"hits"`
	Misses uint64 `json:"misses"`
	Size   int    `json:"size"`
}

// HitRate returns the fraction of lookups served from cache.
func (s CacheStats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}
