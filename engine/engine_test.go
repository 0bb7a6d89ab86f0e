package engine

import (
	"testing"

	"github.com/spf13/viper"
)

func defaultsConfig(t *testing.T) *Config {
	t.Helper()
	v := viper.New()
	SetDefaults(v)
	config, err := LoadWithViper(v)
	if err != nil {
		t.Fatalf("LoadWithViper: %v", err)
	}
	return config
}

func TestDefaults(t *testing.T) {
	config := defaultsConfig(t)

	if got := config.Matching.LevenshteinWeight; got != 0.30 {
		t.Errorf("levenshtein_weight = %f, want 0.30", got)
	}
	if got := config.Matching.JaroWinklerWeight; got != 0.30 {
		t.Errorf("jaro_winkler_weight = %f, want 0.30", got)
	}
	if got := config.Matching.NgramWeight; got != 0.25 {
		t.Errorf("ngram_weight = %f, want 0.25", got)
	}
	if got := config.Matching.SoundexWeight; got != 0.15 {
		t.Errorf("soundex_weight = %f, want 0.15", got)
	}
	if got := config.Matching.MinConfidence; got != 0.6 {
		t.Errorf("min_confidence = %f, want 0.6", got)
	}
	if got := config.Matching.MaxResults; got != 10 {
		t.Errorf("max_results = %d, want 10", got)
	}
	if got := config.Matching.CacheSize; got != 1000 {
		t.Errorf("cache_size = %d, want 1000", got)
	}
	if got := config.Mapping.FuzzyThreshold; got != 0.7 {
		t.Errorf("fuzzy_threshold = %f, want 0.7", got)
	}
	if got := config.Loader.DebounceMs; got != 100 {
		t.Errorf("debounce_ms = %d, want 100", got)
	}
}

func TestDefaultsValidate(t *testing.T) {
	config := defaultsConfig(t)
	if err := config.Validate(); err != nil {
		t.Fatalf("default config must validate: %v", err)
	}
}

func TestValidateRejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"all weights zero", func(c *Config) {
			c.Matching.LevenshteinWeight = 0
			c.Matching.JaroWinklerWeight = 0
			c.Matching.NgramWeight = 0
			c.Matching.SoundexWeight = 0
		}},
		{"negative weight", func(c *Config) { c.Matching.NgramWeight = -0.1 }},
		{"min_confidence above one", func(c *Config) { c.Matching.MinConfidence = 1.5 }},
		{"zero max_results", func(c *Config) { c.Matching.MaxResults = 0 }},
		{"zero cache_size", func(c *Config) { c.Matching.CacheSize = 0 }},
		{"zero ngram_size", func(c *Config) { c.Matching.NgramSize = 0 }},
		{"zero fuzzy_threshold", func(c *Config) { c.Mapping.FuzzyThreshold = 0 }},
		{"negative debounce", func(c *Config) { c.Loader.DebounceMs = -1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := defaultsConfig(t)
			tt.mutate(config)
			if err := config.Validate(); err == nil {
				t.Error("expected validation error, got nil")
			}
		})
	}
}

func TestMatcherConfig(t *testing.T) {
	config := defaultsConfig(t)
	mc := config.MatcherConfig()

	if len(mc.Weights) != 4 {
		t.Fatalf("matcher weights = %d entries, want 4", len(mc.Weights))
	}
	if mc.MinConfidence != 0.6 {
		t.Errorf("min confidence = %f, want 0.6", mc.MinConfidence)
	}
	if mc.CacheSize != 1000 {
		t.Errorf("cache size = %d, want 1000", mc.CacheSize)
	}
}

func TestReset(t *testing.T) {
	Reset()
	first, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	Reset()
	second, err := Load()
	if err != nil {
		t.Fatalf("Load after Reset: %v", err)
	}
	if first == second {
		t.Error("Reset must clear the cached configuration")
	}
}
