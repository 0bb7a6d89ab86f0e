package overrides_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/tabula/overrides"
)

func exactRule(name, pattern, target string, priority int) overrides.Rule {
	r := overrides.NewRule(name, overrides.RuleTypeExact, pattern, target)
	r.Priority = priority
	return r
}

func TestApplyNoRules(t *testing.T) {
	e, err := overrides.NewEngine(overrides.ResolveHighestPriority)
	require.NoError(t, err)

	decision := e.Apply("Asset Name", nil)
	assert.False(t, decision.Matched)
}

func TestApplySingleRule(t *testing.T) {
	e, err := overrides.NewEngine(overrides.ResolveHighestPriority,
		exactRule("asset", "asset name", "asset_name", 0))
	require.NoError(t, err)

	decision := e.Apply("Asset Name", nil)
	require.True(t, decision.Matched)
	assert.Equal(t, "asset_name", decision.TargetField)
	assert.Equal(t, 1.0, decision.Confidence)
	assert.Empty(t, decision.Conflicts)
}

func TestHigherPriorityWinsAndConflictReported(t *testing.T) {
	low := exactRule("low", "severity", "severity", 10)
	high := exactRule("high", "severity", "risk_level", 20)

	e, err := overrides.NewEngine(overrides.ResolveHighestPriority, low, high)
	require.NoError(t, err)

	decision := e.Apply("Severity", nil)
	require.True(t, decision.Matched)
	assert.Equal(t, "risk_level", decision.TargetField)
	assert.NotEmpty(t, decision.Conflicts, "overlapping rules must be reported")

	var sawOverlap bool
	for _, c := range decision.Conflicts {
		if c.Type == overrides.ConflictPatternOverlap {
			sawOverlap = true
		}
	}
	assert.True(t, sawOverlap)

	require.Len(t, decision.Alternatives, 1, "the losing rule must be surfaced")
	assert.Equal(t, low.ID, decision.Alternatives[0].ID)
}

func TestSameTargetOverlapStillReported(t *testing.T) {
	a := exactRule("a", "severity", "severity", 10)
	b := overrides.NewRule("b", overrides.RuleTypeContains, "sever", "severity")
	b.Priority = 20

	e, err := overrides.NewEngine(overrides.ResolveHighestPriority, a, b)
	require.NoError(t, err)

	decision := e.Apply("severity", nil)
	require.True(t, decision.Matched)

	var sawOverlap bool
	for _, c := range decision.Conflicts {
		if c.Type == overrides.ConflictPatternOverlap {
			sawOverlap = true
		}
	}
	assert.True(t, sawOverlap,
		"two matching rules in the same scope conflict even when they agree on the target")
}

func TestPriorityTieReported(t *testing.T) {
	a := exactRule("a", "status", "status", 5)
	b := exactRule("b", "status", "state", 5)

	e, err := overrides.NewEngine(overrides.ResolveHighestPriority, a, b)
	require.NoError(t, err)

	decision := e.Apply("status", nil)
	require.True(t, decision.Matched)

	var sawTie bool
	for _, c := range decision.Conflicts {
		if c.Type == overrides.ConflictPriorityTie {
			sawTie = true
		}
	}
	assert.True(t, sawTie, "equal priorities must report a tie")
}

func TestPriorityTieReportedWithSameTarget(t *testing.T) {
	a := exactRule("a", "status", "status", 5)
	b := overrides.NewRule("b", overrides.RuleTypeContains, "stat", "status")
	b.Priority = 5

	e, err := overrides.NewEngine(overrides.ResolveHighestPriority, a, b)
	require.NoError(t, err)

	decision := e.Apply("status", nil)
	require.True(t, decision.Matched)

	var sawTie bool
	for _, c := range decision.Conflicts {
		if c.Type == overrides.ConflictPriorityTie {
			sawTie = true
		}
	}
	assert.True(t, sawTie, "ties are reported regardless of target agreement")
}

func TestScopedRuleRequiresContext(t *testing.T) {
	scoped := exactRule("org-scoped", "poc", "point_of_contact", 0)
	scoped.Scope = overrides.ScopeOrganization
	scoped.ScopeValue = "acme"

	e, err := overrides.NewEngine(overrides.ResolveHighestPriority, scoped)
	require.NoError(t, err)

	assert.False(t, e.Apply("POC", overrides.NewContext()).Matched,
		"scoped rule must not fire without matching context")

	ctx := overrides.NewContext().WithOrganization("acme")
	assert.True(t, e.Apply("POC", ctx).Matched)

	other := overrides.NewContext().WithOrganization("globex")
	assert.False(t, e.Apply("POC", other).Matched)
}

func TestConditionsRequiredAndOptional(t *testing.T) {
	rule := overrides.NewRule("conditional", overrides.RuleTypeConditional, "id", "identifier")
	rule.Conditions = overrides.Conditions{
		Required: []overrides.Condition{
			{Kind: overrides.ConditionDocumentType, Value: "inventory"},
		},
		Optional: []overrides.Condition{
			{Kind: overrides.ConditionWorksheet, Value: "assets"},
			{Kind: overrides.ConditionWorksheet, Value: "hardware"},
		},
	}

	e, err := overrides.NewEngine(overrides.ResolveHighestPriority, rule)
	require.NoError(t, err)

	// Required holds, no optional holds
	ctx := overrides.NewContext().WithDocumentType("inventory").WithWorksheet("network")
	assert.False(t, e.Apply("id", ctx).Matched)

	// Required holds, one optional holds
	ctx = overrides.NewContext().WithDocumentType("inventory").WithWorksheet("assets")
	assert.True(t, e.Apply("id", ctx).Matched)

	// Required fails
	ctx = overrides.NewContext().WithDocumentType("poam").WithWorksheet("assets")
	assert.False(t, e.Apply("id", ctx).Matched)
}

func TestConditionOperatorsGateRule(t *testing.T) {
	rule := overrides.NewRule("ops", overrides.RuleTypeConditional, "vuln id", "vulnerability_id")
	rule.Conditions = overrides.Conditions{
		Required: []overrides.Condition{
			{Kind: overrides.ConditionDocumentType, Operator: overrides.OpContains, Value: "poam"},
			{Kind: overrides.ConditionTotalColumns, Operator: overrides.OpGreaterThan, Value: "5"},
			{Kind: overrides.ConditionOrganization, Operator: overrides.OpIn, Values: []string{"acme", "globex"}},
		},
	}

	e, err := overrides.NewEngine(overrides.ResolveHighestPriority, rule)
	require.NoError(t, err)

	ctx := overrides.NewContext().
		WithDocumentType("fedramp poam v3").
		WithOrganization("ACME").
		WithPosition(0, 10)
	assert.True(t, e.Apply("vuln id", ctx).Matched)

	narrow := overrides.NewContext().
		WithDocumentType("fedramp poam v3").
		WithOrganization("ACME").
		WithPosition(0, 4)
	assert.False(t, e.Apply("vuln id", narrow).Matched,
		"greater_than condition must fail on a narrow sheet")

	other := overrides.NewContext().
		WithDocumentType("fedramp poam v3").
		WithOrganization("initech").
		WithPosition(0, 10)
	assert.False(t, e.Apply("vuln id", other).Matched,
		"in condition must reject organizations outside the set")
}

func TestMostRecentStrategy(t *testing.T) {
	older := exactRule("older", "status", "status", 50)
	older.UpdatedAt = time.Now().Add(-time.Hour)
	newer := exactRule("newer", "status", "state", 5)
	newer.UpdatedAt = time.Now()

	e, err := overrides.NewEngine(overrides.ResolveMostRecent, older, newer)
	require.NoError(t, err)

	decision := e.Apply("status", nil)
	require.True(t, decision.Matched)
	assert.Equal(t, "state", decision.TargetField,
		"most_recent must beat higher priority")
}

func TestMostSpecificStrategy(t *testing.T) {
	broad := overrides.NewRule("broad", overrides.RuleTypeContains, "name", "generic_name")
	broad.Priority = 100

	narrow := exactRule("narrow", "asset name", "asset_name", 0)
	narrow.Scope = overrides.ScopeSession
	narrow.ScopeValue = "s1"

	e, err := overrides.NewEngine(overrides.ResolveMostSpecific, broad, narrow)
	require.NoError(t, err)

	ctx := overrides.NewContext().WithSession("s1")
	decision := e.Apply("asset name", ctx)
	require.True(t, decision.Matched)
	assert.Equal(t, "asset_name", decision.TargetField)
}

func TestReportAndFallbackFlagsReview(t *testing.T) {
	a := exactRule("a", "severity", "severity", 10)
	b := exactRule("b", "severity", "risk_level", 20)

	e, err := overrides.NewEngine(overrides.ResolveReportAndFallback, a, b)
	require.NoError(t, err)

	decision := e.Apply("severity", nil)
	require.True(t, decision.Matched)
	assert.Equal(t, "risk_level", decision.TargetField)
	assert.True(t, decision.NeedsReview)
}

func TestRegexAndFuzzyRules(t *testing.T) {
	re := overrides.NewRule("ip-cols", overrides.RuleTypeRegex, `^ip[ _-]?addr(ess)?$`, "ip_address")
	fz := overrides.NewRule("fuzzy-sev", overrides.RuleTypeFuzzy, "severity", "severity")
	fz.FuzzyThreshold = 0.7

	e, err := overrides.NewEngine(overrides.ResolveHighestPriority, re, fz)
	require.NoError(t, err)

	decision := e.Apply("IP_Address", nil)
	require.True(t, decision.Matched)
	assert.Equal(t, "ip_address", decision.TargetField)

	decision = e.Apply("Severity", nil)
	require.True(t, decision.Matched)
	assert.Equal(t, "severity", decision.TargetField)
	assert.GreaterOrEqual(t, decision.Confidence, 0.7)
}

func TestDisabledRuleSkipped(t *testing.T) {
	rule := exactRule("off", "status", "status", 0)
	rule.Enabled = false

	e, err := overrides.NewEngine(overrides.ResolveHighestPriority, rule)
	require.NoError(t, err)
	assert.False(t, e.Apply("status", nil).Matched)
}

func TestMetrics(t *testing.T) {
	rule := exactRule("m", "status", "status", 0)
	e, err := overrides.NewEngine(overrides.ResolveHighestPriority, rule)
	require.NoError(t, err)

	e.Apply("status", nil)
	e.Apply("status", nil)
	e.Apply("nothing", nil)

	m := e.Metrics()
	assert.Equal(t, uint64(3), m.Evaluations)
	assert.Equal(t, uint64(2), m.Matches)
	assert.Equal(t, 2, m.HitCountByRule[rule.ID])
	assert.Greater(t, m.AvgLatency, time.Duration(0))
}

func TestRemoveRule(t *testing.T) {
	rule := exactRule("r", "status", "status", 0)
	e, err := overrides.NewEngine(overrides.ResolveHighestPriority, rule)
	require.NoError(t, err)

	require.NoError(t, e.RemoveRule(rule.ID))
	assert.False(t, e.Apply("status", nil).Matched)
	assert.Error(t, e.RemoveRule(rule.ID))
}
