// Package overrides implements operator-defined column mapping rules
// that take precedence over fuzzy matching. Rules carry a type, scope,
// priority, and optional conditions; conflicting rules are detected
// and resolved by a configurable strategy.
package overrides

import (
	"time"

	"github.com/google/uuid"
)

// RuleType identifies how a rule's pattern is matched against a header.
type RuleType string

const (
	RuleTypeExact        RuleType = "exact"
	RuleTypeRegex        RuleType = "regex"
	RuleTypeFuzzy        RuleType = "fuzzy"
	RuleTypeContains     RuleType = "contains"
	RuleTypePrefixSuffix RuleType = "prefix_suffix"
	RuleTypePositional   RuleType = "positional"
	RuleTypeConditional  RuleType = "conditional"
)

// Scope bounds where a rule applies. Narrower scopes are more specific
// and win under the most_specific resolution strategy.
type Scope string

const (
	ScopeGlobal       Scope = "global"
	ScopeDocumentType Scope = "document_type"
	ScopeOrganization Scope = "organization"
	ScopeUser         Scope = "user"
	ScopeSession      Scope = "session"
	ScopeProject      Scope = "project"
)

// Priority bounds. Zero is neutral; negative priorities deliberately
// rank below the default.
const (
	MinPriority = -1000
	MaxPriority = 1000
)

// Rule maps headers matching a pattern to a target field.
type Rule struct {
	ID            uuid.UUID  `json:"id"`
	Name          string     `json:"name"`
	Type          RuleType   `json:"type"`
	Pattern       string     `json:"pattern"`
	TargetField   string     `json:"target_field"`
	Priority      int        `json:"priority"`
	Scope         Scope      `json:"scope"`
	ScopeValue    string     `json:"scope_value,omitempty"`
	Conditions    Conditions `json:"conditions,omitempty"`
	CaseSensitive bool       `json:"case_sensitive,omitempty"`
	WholeWord     bool       `json:"whole_word,omitempty"`
	// FuzzyThreshold applies to fuzzy rules only
	FuzzyThreshold float64   `json:"fuzzy_threshold,omitempty"`
	Enabled        bool      `json:"enabled"`
	Description    string    `json:"description,omitempty"`
	CreatedBy      string    `json:"created_by,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// NewRule returns an enabled rule with a fresh id and timestamps.
func NewRule(name string, ruleType RuleType, pattern, targetField string) Rule {
	now := time.Now().UTC()
	return Rule{
		ID:          uuid.New(),
		Name:        name,
		Type:        ruleType,
		Pattern:     pattern,
		TargetField: targetField,
		Scope:       ScopeGlobal,
		Enabled:     true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// Conditions gate a rule on the evaluation context. All required
// conditions must hold; when optional conditions exist, at least one
// must hold as well.
type Conditions struct {
	Required []Condition `json:"required,omitempty"`
	Optional []Condition `json:"optional,omitempty"`
}

// Empty reports whether no conditions are configured.
func (c Conditions) Empty() bool {
	return len(c.Required) == 0 && len(c.Optional) == 0
}

// Count returns the total number of conditions.
func (c Conditions) Count() int {
	return len(c.Required) + len(c.Optional)
}

// ConditionKind names the context attribute a condition inspects.
type ConditionKind string

const (
	ConditionDocumentType   ConditionKind = "document_type"
	ConditionOrganization   ConditionKind = "organization"
	ConditionUser           ConditionKind = "user"
	ConditionWorksheet      ConditionKind = "worksheet"
	ConditionHeaderPosition ConditionKind = "header_position"
	ConditionTotalColumns   ConditionKind = "total_columns"
	ConditionMetadata       ConditionKind = "metadata"
)

// Operator compares a context attribute against a condition's value.
type Operator string

const (
	OpEquals             Operator = "equals"
	OpNotEquals          Operator = "not_equals"
	OpContains           Operator = "contains"
	OpNotContains        Operator = "not_contains"
	OpMatches            Operator = "matches"
	OpNotMatches         Operator = "not_matches"
	OpGreaterThan        Operator = "greater_than"
	OpLessThan           Operator = "less_than"
	OpGreaterThanOrEqual Operator = "greater_than_or_equal"
	OpLessThanOrEqual    Operator = "less_than_or_equal"
	OpIn                 Operator = "in"
	OpNotIn              Operator = "not_in"
)

// Condition is a single predicate over the evaluation context. An
// empty Operator means equals. Set-membership operators compare
// against Values; positional kinds (header_position, total_columns)
// may use Min/Max as an equals-range shorthand. MetadataKey selects
// the entry for metadata conditions.
type Condition struct {
	Kind        ConditionKind `json:"kind"`
	Operator    Operator      `json:"operator,omitempty"`
	Value       string        `json:"value,omitempty"`
	Values      []string      `json:"values,omitempty"`
	MetadataKey string        `json:"metadata_key,omitempty"`
	Min         *int          `json:"min,omitempty"`
	Max         *int          `json:"max,omitempty"`
	// Required marks the condition AND-required in flat rule files
	Required bool `json:"required,omitempty"`
}

// ConflictType classifies why two rules collide.
type ConflictType string

const (
	ConflictPatternOverlap         ConflictType = "pattern_overlap"
	ConflictPriorityTie            ConflictType = "priority_tie"
	ConflictCircularDependency     ConflictType = "circular_dependency"
	ConflictContradictoryCondition ConflictType = "contradictory_conditions"
	ConflictScopeOverlap           ConflictType = "scope_overlap"
)

// Conflict records two rules that both matched a header but disagree.
type Conflict struct {
	Type        ConflictType `json:"type"`
	RuleA       uuid.UUID    `json:"rule_a"`
	RuleB       uuid.UUID    `json:"rule_b"`
	Header      string       `json:"header"`
	Description string       `json:"description"`
}

// ResolutionStrategy selects the winner among conflicting rules.
type ResolutionStrategy string

const (
	// ResolveHighestPriority picks the rule with the largest priority
	ResolveHighestPriority ResolutionStrategy = "highest_priority"
	// ResolveMostRecent picks the most recently updated rule
	ResolveMostRecent ResolutionStrategy = "most_recent"
	// ResolveMostSpecific picks the rule with the highest specificity score
	ResolveMostSpecific ResolutionStrategy = "most_specific"
	// ResolveCombine falls back to highest priority; combining targets
	// is not meaningful for single-field mappings
	ResolveCombine ResolutionStrategy = "combine"
	// ResolveReportAndFallback picks the highest priority and flags the
	// result for operator review
	ResolveReportAndFallback ResolutionStrategy = "report_and_fallback"
)

// Decision is the outcome of applying the rule set to one header.
type Decision struct {
	Matched     bool       `json:"matched"`
	TargetField string     `json:"target_field,omitempty"`
	Rule        *Rule      `json:"rule,omitempty"`
	Confidence  float64    `json:"confidence,omitempty"`
	Conflicts   []Conflict `json:"conflicts,omitempty"`
	// Alternatives are the matching rules the resolution strategy
	// passed over, best-ranked first
	Alternatives []Rule `json:"alternatives,omitempty"`
	NeedsReview  bool   `json:"needs_review,omitempty"`
}

// Metrics aggregates rule engine activity. Latency is an exponential
// moving average weighted 0.9 old / 0.1 new.
type Metrics struct {
	Evaluations    uint64            `json:"evaluations"`
	Matches        uint64            `json:"matches"`
	Conflicts      uint64            `json:"conflicts"`
	AvgLatency     time.Duration     `json:"avg_latency"`
	HitCountByRule map[uuid.UUID]int `json:"hit_count_by_rule"`
}
