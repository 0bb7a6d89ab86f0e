package mapping

import (
	"sync"
	"time"

	"github.com/teranos/tabula/errors"
	"github.com/teranos/tabula/fuzzy"
	"github.com/teranos/tabula/logger"
	"github.com/teranos/tabula/overrides"
)

// MappingSource records which resolution stage produced a mapping.
type MappingSource string

const (
	SourceExact    MappingSource = "exact"
	SourceOverride MappingSource = "override"
	SourceFuzzy    MappingSource = "fuzzy"
)

// DefaultFuzzyThreshold is the minimum fuzzy confidence accepted as a
// column mapping.
const DefaultFuzzyThreshold = 0.7

// ResolvedColumn is the resolution of one header.
type ResolvedColumn struct {
	Header      string        `json:"header"`
	TargetField string        `json:"target_field"`
	Confidence  float64       `json:"confidence"`
	Source      MappingSource `json:"source"`
	MatchedVia  string        `json:"matched_via,omitempty"`
	DataType    string        `json:"data_type,omitempty"`
	Required    bool          `json:"required"`
}

// Suggestion is a below-threshold candidate offered for review.
type Suggestion struct {
	Header     string  `json:"header"`
	Candidate  string  `json:"candidate"`
	Target     string  `json:"target"`
	Confidence float64 `json:"confidence"`
}

// Result is the outcome of mapping one header row.
type Result struct {
	Mappings        []ResolvedColumn     `json:"mappings"`
	Unmapped        []string             `json:"unmapped,omitempty"`
	MissingRequired []string             `json:"missing_required,omitempty"`
	Suggestions     []Suggestion         `json:"suggestions,omitempty"`
	Conflicts       []overrides.Conflict `json:"conflicts,omitempty"`
	QualityScore    float64              `json:"quality_score"`
	Duration        time.Duration        `json:"duration"`
}

// MapperOptions tune a ColumnMapper.
type MapperOptions struct {
	FuzzyThreshold  float64
	SuggestionCount int
	MatcherConfig   fuzzy.Config
}

// DefaultMapperOptions returns the standard tuning.
func DefaultMapperOptions() MapperOptions {
	return MapperOptions{
		FuzzyThreshold:  DefaultFuzzyThreshold,
		SuggestionCount: 3,
		MatcherConfig:   fuzzy.ColumnMatchingConfig(),
	}
}

// ColumnMapper resolves header rows against the loaded configuration.
// Resolution order per header: exact normalized lookup, override
// rules, fuzzy matching, unmapped. Safe for concurrent use; UpdateLookup
// swaps the lookup pointer on configuration reload.
type ColumnMapper struct {
	mu        sync.RWMutex
	lookup    *Lookup
	matcher   *fuzzy.Matcher
	engine    *overrides.Engine
	options   MapperOptions
	suggester *fuzzy.Matcher
}

// NewColumnMapper builds a mapper over a configuration. The overrides
// engine may be nil when no operator rules are in play.
func NewColumnMapper(config *Configuration, engine *overrides.Engine, options MapperOptions) (*ColumnMapper, error) {
	if options.FuzzyThreshold <= 0 {
		options.FuzzyThreshold = DefaultFuzzyThreshold
	}
	if options.SuggestionCount <= 0 {
		options.SuggestionCount = DefaultMapperOptions().SuggestionCount
	}
	if len(options.MatcherConfig.Weights) == 0 {
		options.MatcherConfig = fuzzy.ColumnMatchingConfig()
	}

	matcher, err := fuzzy.NewMatcher(options.MatcherConfig)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create column matcher")
	}

	// Suggestions look below the acceptance threshold
	suggestCfg := options.MatcherConfig
	suggestCfg.MinConfidence = 0.3
	suggestCfg.MaxResults = options.SuggestionCount
	suggester, err := fuzzy.NewMatcher(suggestCfg)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create suggestion matcher")
	}

	return &ColumnMapper{
		lookup:    NewLookup(config),
		matcher:   matcher,
		engine:    engine,
		options:   options,
		suggester: suggester,
	}, nil
}

// UpdateLookup rebuilds the lookup from a freshly loaded configuration.
func (m *ColumnMapper) UpdateLookup(config *Configuration) {
	lookup := NewLookup(config)
	m.mu.Lock()
	m.lookup = lookup
	m.mu.Unlock()
	logger.Infow("Column lookup rebuilt",
		"aliases", lookup.Size(),
		"required_fields", len(lookup.RequiredFields()))
}

// MapColumns resolves a header row. Headers that resolve nowhere land
// in Unmapped with suggestions; they are not errors.
func (m *ColumnMapper) MapColumns(headers []string, ctx *overrides.Context) Result {
	start := time.Now()

	m.mu.RLock()
	lookup := m.lookup
	m.mu.RUnlock()

	result := Result{Mappings: make([]ResolvedColumn, 0, len(headers))}
	mappedTargets := make(map[string]struct{})

	for i, header := range headers {
		headerCtx := ctx
		if headerCtx != nil {
			// Position is per-header; copy so callers' context survives
			c := *headerCtx
			headerCtx = c.WithPosition(i, len(headers))
		}

		resolved, conflicts, ok := m.resolveHeader(lookup, header, headerCtx)
		result.Conflicts = append(result.Conflicts, conflicts...)
		if !ok {
			result.Unmapped = append(result.Unmapped, header)
			result.Suggestions = append(result.Suggestions, m.suggest(lookup, header)...)
			continue
		}
		result.Mappings = append(result.Mappings, resolved)
		mappedTargets[resolved.TargetField] = struct{}{}
	}

	result.MissingRequired = missingRequired(lookup, mappedTargets)

	result.QualityScore = qualityScore(result, len(headers))
	result.Duration = time.Since(start)

	logger.Debugw("Mapped header row",
		"headers", len(headers),
		"mapped", len(result.Mappings),
		"unmapped", len(result.Unmapped),
		"missing_required", len(result.MissingRequired),
		"quality", result.QualityScore)
	return result
}

func (m *ColumnMapper) resolveHeader(lookup *Lookup, header string, ctx *overrides.Context) (ResolvedColumn, []overrides.Conflict, bool) {
	// Exact lookup on the normalized header
	if entry, ok := lookup.Resolve(header); ok {
		return ResolvedColumn{
			Header:      header,
			TargetField: entry.TargetField,
			Confidence:  1.0,
			Source:      SourceExact,
			DataType:    entry.DataType,
			Required:    entry.Required,
		}, nil, true
	}

	// Operator override rules
	if m.engine != nil {
		decision := m.engine.Apply(header, ctx)
		if decision.Matched {
			resolved := ResolvedColumn{
				Header:      header,
				TargetField: decision.TargetField,
				Confidence:  decision.Confidence,
				Source:      SourceOverride,
			}
			if decision.Rule != nil {
				resolved.MatchedVia = decision.Rule.Name
			}
			if entry, ok := lookup.TargetFor(decision.TargetField); ok {
				resolved.DataType = entry.DataType
				resolved.Required = entry.Required
			}
			return resolved, decision.Conflicts, true
		}
	}

	// Fuzzy match against known aliases
	matches := m.matcher.Match(header, lookup.Aliases())
	for _, match := range matches {
		if match.Confidence < m.options.FuzzyThreshold {
			break
		}
		entry, ok := lookup.TargetFor(match.Target)
		if !ok {
			continue
		}
		return ResolvedColumn{
			Header:      header,
			TargetField: entry.TargetField,
			Confidence:  match.Confidence,
			Source:      SourceFuzzy,
			MatchedVia:  match.Target,
			DataType:    entry.DataType,
			Required:    entry.Required,
		}, nil, true
	}

	return ResolvedColumn{}, nil, false
}

// ResolveColumn resolves a single header. The boolean reports whether
// any source produced a mapping; override conflicts are discarded, use
// MapColumns to collect them.
func (m *ColumnMapper) ResolveColumn(header string, ctx *overrides.Context) (ResolvedColumn, bool) {
	m.mu.RLock()
	lookup := m.lookup
	m.mu.RUnlock()

	resolved, _, ok := m.resolveHeader(lookup, header, ctx)
	return resolved, ok
}

// ValidateRequiredMappings returns the required target fields that no
// resolved column covers.
func (m *ColumnMapper) ValidateRequiredMappings(mappings []ResolvedColumn) []string {
	m.mu.RLock()
	lookup := m.lookup
	m.mu.RUnlock()

	mappedTargets := make(map[string]struct{}, len(mappings))
	for _, resolved := range mappings {
		mappedTargets[resolved.TargetField] = struct{}{}
	}
	return missingRequired(lookup, mappedTargets)
}

func missingRequired(lookup *Lookup, mappedTargets map[string]struct{}) []string {
	var missing []string
	for _, required := range lookup.RequiredFields() {
		if _, ok := mappedTargets[required]; !ok {
			missing = append(missing, required)
		}
	}
	return missing
}

// suggest returns below-threshold candidates for an unmapped header.
func (m *ColumnMapper) suggest(lookup *Lookup, header string) []Suggestion {
	matches := m.suggester.Match(header, lookup.Aliases())
	suggestions := make([]Suggestion, 0, len(matches))
	for _, match := range matches {
		if match.Confidence >= m.options.FuzzyThreshold {
			// Would have been accepted by resolveHeader; a suggestion
			// here means the alias resolves to nothing
			continue
		}
		entry, ok := lookup.TargetFor(match.Target)
		if !ok {
			continue
		}
		suggestions = append(suggestions, Suggestion{
			Header:     header,
			Candidate:  match.Target,
			Target:     entry.TargetField,
			Confidence: match.Confidence,
		})
	}
	return suggestions
}

// qualityScore rates a mapping outcome in [0, 1]: coverage of the
// header row, boosted a little for exact and high-confidence mappings,
// penalized for missing required fields.
func qualityScore(result Result, totalHeaders int) float64 {
	if totalHeaders == 0 {
		return 0
	}

	coverage := float64(len(result.Mappings)) / float64(totalHeaders)

	var exactBoost, confidenceBoost float64
	for _, mapped := range result.Mappings {
		if mapped.Source == SourceExact {
			exactBoost += 0.02
		} else if mapped.Confidence >= 0.9 {
			confidenceBoost += 0.01
		}
	}

	score := coverage + exactBoost + confidenceBoost
	score -= 0.1 * float64(len(result.MissingRequired))

	if score > 1.0 {
		score = 1.0
	}
	if score < 0.0 {
		score = 0.0
	}
	return score
}
