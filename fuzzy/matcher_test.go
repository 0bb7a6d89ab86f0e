package fuzzy_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/tabula/fuzzy"
)

func TestNewMatcher(t *testing.T) {
	m, err := fuzzy.NewMatcher(fuzzy.DefaultConfig())
	require.NoError(t, err)
	require.NotNil(t, m)
}

func TestNewMatcherRejectsBadConfig(t *testing.T) {
	_, err := fuzzy.NewMatcher(fuzzy.Config{})
	assert.Error(t, err, "empty weights must be rejected")

	_, err = fuzzy.NewMatcher(fuzzy.Config{
		Weights: map[string]float64{"metaphone": 1.0},
	})
	assert.Error(t, err, "unknown algorithm must be rejected")

	_, err = fuzzy.NewMatcher(fuzzy.Config{
		Weights: map[string]float64{fuzzy.AlgorithmLevenshtein: -0.5},
	})
	assert.Error(t, err, "negative weight must be rejected")
}

func TestExactMatchShortCircuits(t *testing.T) {
	m, err := fuzzy.NewMatcher(fuzzy.DefaultConfig())
	require.NoError(t, err)

	results := m.Match("asset_name", []string{"asset_name", "asset_id"})
	require.NotEmpty(t, results)
	assert.Equal(t, "asset_name", results[0].Target)
	assert.Equal(t, 1.0, results[0].Confidence)
	assert.True(t, results[0].Exact)
}

func TestMatchRanksAndFilters(t *testing.T) {
	m, err := fuzzy.NewMatcher(fuzzy.ColumnMatchingConfig())
	require.NoError(t, err)

	targets := []string{"asset_name", "ip_addr", "risk_level", "state", "unrelated_zzz"}
	results := m.Match("Asset Name", targets)

	require.NotEmpty(t, results)
	assert.Equal(t, "asset_name", results[0].Target)
	assert.GreaterOrEqual(t, results[0].Confidence, 0.6)

	for i := 1; i < len(results); i++ {
		assert.LessOrEqual(t, results[i].Confidence, results[i-1].Confidence,
			"results must be sorted by confidence")
	}
	for _, r := range results {
		assert.GreaterOrEqual(t, r.Confidence, 0.6, "results below min confidence must be dropped")
		assert.LessOrEqual(t, r.Confidence, 1.0)
	}
}

func TestScoreBounded(t *testing.T) {
	m, err := fuzzy.NewMatcher(fuzzy.DefaultConfig())
	require.NoError(t, err)

	pairs := [][2]string{
		{"Severity", "risk_level"},
		{"", "anything"},
		{"Status", "state"},
		{"completely different", "zzz"},
	}
	for _, p := range pairs {
		score := m.Score(p[0], p[1])
		assert.GreaterOrEqual(t, score, 0.0)
		assert.LessOrEqual(t, score, 1.0)
	}
}

func TestMaxResultsTruncation(t *testing.T) {
	cfg := fuzzy.DefaultConfig()
	cfg.MaxResults = 2
	cfg.MinConfidence = 0.0
	m, err := fuzzy.NewMatcher(cfg)
	require.NoError(t, err)

	results := m.Match("status", []string{"status_a", "status_b", "status_c", "status_d"})
	assert.Len(t, results, 2)
}

func TestExplainContributions(t *testing.T) {
	m, err := fuzzy.NewMatcher(fuzzy.DefaultConfig())
	require.NoError(t, err)

	match := m.Explain("Asset Name", "asset_name")
	require.NotNil(t, match.Explanation)
	assert.Len(t, match.Explanation.Contributions, 4)

	var weightedSum, weightTotal float64
	for _, c := range match.Explanation.Contributions {
		assert.InDelta(t, c.RawScore*c.Weight, c.WeightedScore, 0.0001)
		weightedSum += c.WeightedScore
		weightTotal += c.Weight
	}
	assert.InDelta(t, weightedSum/weightTotal, match.Confidence, 0.0001,
		"confidence must equal the normalized weighted sum")
}

func TestExplainRecordsPreprocessingSteps(t *testing.T) {
	m, err := fuzzy.NewMatcher(fuzzy.DefaultConfig())
	require.NoError(t, err)

	match := m.Explain("POC_Email", "point contact email")
	require.NotNil(t, match.Explanation)
	assert.Contains(t, match.Explanation.SourceSteps, "lowercase")
	assert.Contains(t, match.Explanation.SourceSteps, "expand_abbreviations")
	assert.Empty(t, match.Explanation.TargetSteps,
		"an already-normalized target records no steps")
}

func TestCacheHits(t *testing.T) {
	m, err := fuzzy.NewMatcher(fuzzy.DefaultConfig())
	require.NoError(t, err)

	m.Score("Asset Name", "asset_name")
	m.Score("Asset Name", "asset_name")

	stats := m.Stats()
	assert.GreaterOrEqual(t, stats.Hits, uint64(1))
	assert.Greater(t, stats.HitRate(), 0.0)
}

func TestSetConfigInvalidatesCache(t *testing.T) {
	m, err := fuzzy.NewMatcher(fuzzy.DefaultConfig())
	require.NoError(t, err)

	before := m.Score("Severity", "risk_level")

	cfg := fuzzy.ColumnMatchingConfig()
	require.NoError(t, m.SetConfig(cfg))

	after := m.Score("Severity", "risk_level")
	// Different weights produce a different ensemble score; a stale
	// cache entry would return the old one
	assert.NotEqual(t, before, after)
}

func TestBatchMatchingLargeTargetSet(t *testing.T) {
	m, err := fuzzy.NewMatcher(fuzzy.ColumnMatchingConfig())
	require.NoError(t, err)

	targets := make([]string, 0, 200)
	for i := 0; i < 199; i++ {
		targets = append(targets, fmt.Sprintf("noise_column_%03d", i))
	}
	targets = append(targets, "asset_name")

	results := m.Match("Asset Name", targets)
	require.NotEmpty(t, results)
	assert.Equal(t, "asset_name", results[0].Target)
}

func TestTargetIndexCandidates(t *testing.T) {
	targets := []string{"asset_name", "ip_addr", "aaa", "state", "severity"}
	idx := fuzzy.NewTargetIndex(targets)

	assert.Equal(t, 5, idx.Len())

	candidates := idx.Candidates("asset_name")
	assert.Contains(t, candidates, "asset_name")

	// Unmatchable source falls back to the full set
	all := idx.Candidates("")
	assert.Len(t, all, 5)
}
