package fuzzy

import (
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/teranos/tabula/errors"
	"github.com/teranos/tabula/logger"
)

// batchThreshold is the target count above which Match switches to the
// indexed candidate-pruning path.
const batchThreshold = 100

// Matcher scores a source string against candidate targets using a
// weighted ensemble of similarity algorithms. Safe for concurrent use.
type Matcher struct {
	mu         sync.RWMutex
	config     Config
	configHash string
	algorithms []Algorithm
	pre        *Preprocessor

	cache  *lru.Cache[cacheKey, float64]
	hits   atomic.Uint64
	misses atomic.Uint64
}

type cacheKey struct {
	source     string
	target     string
	configHash string
}

// NewMatcher creates a matcher from config. Algorithms are enabled by
// giving them a positive weight; unknown weight names are rejected.
func NewMatcher(config Config) (*Matcher, error) {
	if len(config.Weights) == 0 {
		return nil, errors.New("matcher config has no algorithm weights")
	}

	algorithms := make([]Algorithm, 0, len(config.Weights))
	for name, weight := range config.Weights {
		if weight < 0 {
			return nil, errors.Newf("negative weight %f for algorithm %q", weight, name)
		}
		if weight == 0 {
			continue
		}
		switch name {
		case AlgorithmLevenshtein:
			algorithms = append(algorithms, LevenshteinAlgorithm{})
		case AlgorithmJaroWinkler:
			algorithms = append(algorithms, JaroWinklerAlgorithm{})
		case AlgorithmNgram:
			algorithms = append(algorithms, NewNgramAlgorithm(config.NgramSize))
		case AlgorithmSoundex:
			algorithms = append(algorithms, SoundexAlgorithm{})
		default:
			return nil, errors.Newf("unknown algorithm %q in matcher config", name)
		}
	}
	if len(algorithms) == 0 {
		return nil, errors.New("matcher config enables no algorithms")
	}

	// Deterministic evaluation order
	sort.Slice(algorithms, func(i, j int) bool {
		return algorithms[i].Name() < algorithms[j].Name()
	})

	cacheSize := config.CacheSize
	if cacheSize <= 0 {
		cacheSize = DefaultConfig().CacheSize
	}
	cache, err := lru.New[cacheKey, float64](cacheSize)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create match cache")
	}

	return &Matcher{
		config:     config,
		configHash: config.hash(),
		algorithms: algorithms,
		pre:        NewPreprocessor(),
		cache:      cache,
	}, nil
}

// Config returns a copy of the current configuration.
func (m *Matcher) Config() Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.config
}

// SetConfig swaps the matcher configuration. Cached scores keyed under
// the old config hash become unreachable and age out of the LRU.
func (m *Matcher) SetConfig(config Config) error {
	replacement, err := NewMatcher(config)
	if err != nil {
		return err
	}

	m.mu.Lock()
	m.config = replacement.config
	m.configHash = replacement.configHash
	m.algorithms = replacement.algorithms
	m.mu.Unlock()

	logger.Debugw("Matcher configuration updated",
		"algorithms", len(replacement.algorithms),
		"min_confidence", config.MinConfidence)
	return nil
}

// Score computes the ensemble confidence for a single pair. Identical
// raw strings short-circuit to 1.0 without scoring.
func (m *Matcher) Score(source, target string) float64 {
	match := m.scorePair(source, target, m.pre.Preprocess(source), false)
	return match.Confidence
}

// Explain computes the confidence for a single pair with per-algorithm
// contributions, regardless of the config's Explain flag.
func (m *Matcher) Explain(source, target string) Match {
	return m.scorePair(source, target, m.pre.Preprocess(source), true)
}

// Match scores source against every target and returns candidates at
// or above MinConfidence, sorted by confidence, truncated to
// MaxResults. Target sets above the batch threshold go through the
// candidate index with early termination.
func (m *Matcher) Match(source string, targets []string) []Match {
	if len(targets) > batchThreshold {
		return m.matchBatch(source, targets)
	}
	return m.matchAll(source, targets)
}

// MatchIndexed scores source against a prebuilt index.
func (m *Matcher) MatchIndexed(source string, idx *TargetIndex) []Match {
	return m.matchAll(source, idx.Candidates(source))
}

func (m *Matcher) matchAll(source string, targets []string) []Match {
	m.mu.RLock()
	minConfidence := m.config.MinConfidence
	maxResults := m.config.MaxResults
	explain := m.config.Explain
	m.mu.RUnlock()

	processedSource := m.pre.Preprocess(source)

	results := make([]Match, 0, len(targets))
	for _, target := range targets {
		match := m.scorePair(source, target, processedSource, explain)
		if match.Confidence >= minConfidence {
			results = append(results, match)
		}
	}

	return finishResults(source, results, maxResults)
}

// matchBatch prunes candidates through the index and stops scoring
// once enough strong candidates have accumulated.
func (m *Matcher) matchBatch(source string, targets []string) []Match {
	m.mu.RLock()
	minConfidence := m.config.MinConfidence
	maxResults := m.config.MaxResults
	explain := m.config.Explain
	m.mu.RUnlock()

	idx := NewTargetIndex(targets)
	candidates := idx.Candidates(source)
	processedSource := m.pre.Preprocess(source)

	enough := maxResults * 2
	results := make([]Match, 0, enough)
	for _, target := range candidates {
		match := m.scorePair(source, target, processedSource, explain)
		if match.Confidence >= minConfidence {
			results = append(results, match)
			if match.Exact || len(results) >= enough {
				break
			}
		}
	}

	return finishResults(source, results, maxResults)
}

// finishResults ranks by confidence, breaking ties by the number of
// source tokens the candidate shares, then by target name.
func finishResults(source string, results []Match, maxResults int) []Match {
	sourceTokens := tokenSet(source)
	overlaps := make(map[string]int, len(results))
	for _, r := range results {
		overlaps[r.Target] = sharedTokens(sourceTokens, r.Target)
	}
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Confidence != results[j].Confidence {
			return results[i].Confidence > results[j].Confidence
		}
		if overlaps[results[i].Target] != overlaps[results[j].Target] {
			return overlaps[results[i].Target] > overlaps[results[j].Target]
		}
		return results[i].Target < results[j].Target
	})
	if maxResults > 0 && len(results) > maxResults {
		results = results[:maxResults]
	}
	return results
}

func tokenSet(s string) map[string]struct{} {
	tokens := make(map[string]struct{})
	for _, tok := range strings.Fields(QuickPreprocess(s)) {
		tokens[tok] = struct{}{}
	}
	return tokens
}

func sharedTokens(sourceTokens map[string]struct{}, target string) int {
	n := 0
	for _, tok := range strings.Fields(QuickPreprocess(target)) {
		if _, ok := sourceTokens[tok]; ok {
			n++
		}
	}
	return n
}

// scorePair computes one source/target confidence, consulting the
// cache on the non-explain path.
func (m *Matcher) scorePair(source, target string, processedSource PreprocessResult, explain bool) Match {
	if source == target {
		return Match{Target: target, Confidence: 1.0, Exact: true}
	}

	m.mu.RLock()
	hash := m.configHash
	algorithms := m.algorithms
	weights := m.config.Weights
	m.mu.RUnlock()

	key := cacheKey{source: source, target: target, configHash: hash}
	if !explain {
		if score, ok := m.cache.Get(key); ok {
			m.hits.Add(1)
			return Match{Target: target, Confidence: score}
		}
		m.misses.Add(1)
	}

	processedTarget := m.pre.Preprocess(target)

	start := time.Now()
	var contributions []AlgorithmContribution
	if explain {
		contributions = make([]AlgorithmContribution, 0, len(algorithms))
	}

	weightedSum, weightTotal := 0.0, 0.0
	for _, alg := range algorithms {
		a, b := source, target
		if alg.NeedsPreprocessing() {
			a, b = processedSource.Processed, processedTarget.Processed
		}

		algStart := time.Now()
		raw := alg.Similarity(a, b)
		weight := weights[alg.Name()]
		weightedSum += raw * weight
		weightTotal += weight

		if explain {
			contributions = append(contributions, AlgorithmContribution{
				Algorithm:     alg.Name(),
				RawScore:      raw,
				Weight:        weight,
				WeightedScore: raw * weight,
				Duration:      time.Since(algStart),
			})
		}
	}

	confidence := 0.0
	if weightTotal > 0 {
		confidence = weightedSum / weightTotal
	}

	m.cache.Add(key, confidence)

	match := Match{Target: target, Confidence: confidence}
	if explain {
		match.Explanation = &Explanation{
			Source:        source,
			Target:        target,
			SourceSteps:   processedSource.Steps,
			TargetSteps:   processedTarget.Steps,
			Contributions: contributions,
			TotalDuration: time.Since(start),
		}
	}
	return match
}

// Stats reports cache effectiveness since the matcher was created.
func (m *Matcher) Stats() CacheStats {
	return CacheStats{
		Hits:   m.hits.Load(),
		Misses: m.misses.Load(),
		Size:   m.cache.Len(),
	}
}

// ClearCache drops all cached scores.
func (m *Matcher) ClearCache() {
	m.cache.Purge()
}
