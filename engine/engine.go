// Package engine holds runtime settings for the mapping engine,
// loaded from tabula.toml and the environment via viper.
package engine

import (
	"github.com/teranos/tabula/errors"
	"github.com/teranos/tabula/fuzzy"
)

// Config is the full runtime settings tree.
type Config struct {
	Matching MatchingConfig `mapstructure:"matching"`
	Mapping  MappingConfig  `mapstructure:"mapping"`
	Loader   LoaderConfig   `mapstructure:"loader"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// MatchingConfig tunes the fuzzy matcher ensemble.
type MatchingConfig struct {
	// Per-algorithm weights; zero disables an algorithm
	LevenshteinWeight float64 `mapstructure:"levenshtein_weight"`
	JaroWinklerWeight float64 `mapstructure:"jaro_winkler_weight"`
	NgramWeight       float64 `mapstructure:"ngram_weight"`
	SoundexWeight     float64 `mapstructure:"soundex_weight"`

	MinConfidence float64 `mapstructure:"min_confidence"`
	MaxResults    int     `mapstructure:"max_results"`
	CacheSize     int     `mapstructure:"cache_size"`
	NgramSize     int     `mapstructure:"ngram_size"`
	// Explain attaches per-algorithm score breakdowns to results
	Explain bool `mapstructure:"explain"`
}

// MappingConfig tunes column resolution.
type MappingConfig struct {
	// FuzzyThreshold is the minimum confidence accepted as a mapping
	FuzzyThreshold float64 `mapstructure:"fuzzy_threshold"`
	// SuggestionCount caps review suggestions per unmapped header
	SuggestionCount int `mapstructure:"suggestion_count"`
}

// LoaderConfig tunes configuration loading.
type LoaderConfig struct {
	// BaseDir is the root of the mappings/ and schema/ directories
	BaseDir string `mapstructure:"base_dir"`
	// HotReload watches configuration files for changes
	HotReload bool `mapstructure:"hot_reload"`
	// DebounceMs batches rapid changes before reloading
	DebounceMs int `mapstructure:"debounce_ms"`
	// RequireVersions rejects configs without valid semver versions
	RequireVersions bool `mapstructure:"require_versions"`
}

// LoggingConfig tunes log output.
type LoggingConfig struct {
	// JSON switches to machine-readable structured output
	JSON bool `mapstructure:"json"`
}

// MatcherConfig converts settings into a fuzzy matcher configuration.
func (c *Config) MatcherConfig() fuzzy.Config {
	return fuzzy.Config{
		Weights: map[string]float64{
			fuzzy.AlgorithmLevenshtein: c.Matching.LevenshteinWeight,
			fuzzy.AlgorithmJaroWinkler: c.Matching.JaroWinklerWeight,
			fuzzy.AlgorithmNgram:       c.Matching.NgramWeight,
			fuzzy.AlgorithmSoundex:     c.Matching.SoundexWeight,
		},
		MinConfidence: c.Matching.MinConfidence,
		MaxResults:    c.Matching.MaxResults,
		CacheSize:     c.Matching.CacheSize,
		NgramSize:     c.Matching.NgramSize,
		Explain:       c.Matching.Explain,
	}
}

// Validate checks settings for values the engine cannot run with.
func (c *Config) Validate() error {
	weightTotal := c.Matching.LevenshteinWeight + c.Matching.JaroWinklerWeight +
		c.Matching.NgramWeight + c.Matching.SoundexWeight
	if weightTotal <= 0 {
		return errors.New("matching: all algorithm weights are zero")
	}
	for name, w := range map[string]float64{
		"levenshtein_weight":  c.Matching.LevenshteinWeight,
		"jaro_winkler_weight": c.Matching.JaroWinklerWeight,
		"ngram_weight":        c.Matching.NgramWeight,
		"soundex_weight":      c.Matching.SoundexWeight,
	} {
		if w < 0 {
			return errors.Newf("matching: %s is negative", name)
		}
	}

	if c.Matching.MinConfidence < 0 || c.Matching.MinConfidence > 1 {
		return errors.Newf("matching: min_confidence %f outside [0, 1]", c.Matching.MinConfidence)
	}
	if c.Matching.MaxResults <= 0 {
		return errors.New("matching: max_results must be positive")
	}
	if c.Matching.CacheSize <= 0 {
		return errors.New("matching: cache_size must be positive")
	}
	if c.Matching.NgramSize < 1 {
		return errors.New("matching: ngram_size must be at least 1")
	}

	if c.Mapping.FuzzyThreshold <= 0 || c.Mapping.FuzzyThreshold > 1 {
		return errors.Newf("mapping: fuzzy_threshold %f outside (0, 1]", c.Mapping.FuzzyThreshold)
	}
	if c.Mapping.SuggestionCount < 0 {
		return errors.New("mapping: suggestion_count is negative")
	}

	if c.Loader.DebounceMs < 0 {
		return errors.New("loader: debounce_ms is negative")
	}

	return nil
}
