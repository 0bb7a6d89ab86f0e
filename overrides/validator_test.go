package overrides

import (
	"strings"
	"testing"
)

func TestValidateRule(t *testing.T) {
	intPtr := func(v int) *int { return &v }

	valid := NewRule("ok", RuleTypeExact, "asset name", "asset_name")

	fuzzyOK := NewRule("fz", RuleTypeFuzzy, "severity", "severity")
	fuzzyOK.FuzzyThreshold = 0.8

	positionalOK := NewRule("pos", RuleTypePositional, "", "first_column")
	positionalOK.Conditions = Conditions{
		Required: []Condition{{Kind: ConditionHeaderPosition, Min: intPtr(0), Max: intPtr(0)}},
	}

	tests := []struct {
		name    string
		mutate  func(Rule) Rule
		base    Rule
		wantErr string
	}{
		{"valid exact", func(r Rule) Rule { return r }, valid, ""},
		{"valid fuzzy", func(r Rule) Rule { return r }, fuzzyOK, ""},
		{"valid positional", func(r Rule) Rule { return r }, positionalOK, ""},
		{"no name", func(r Rule) Rule { r.Name = ""; return r }, valid, "no name"},
		{"no target", func(r Rule) Rule { r.TargetField = ""; return r }, valid, "no target field"},
		{"empty pattern", func(r Rule) Rule { r.Pattern = ""; return r }, valid, "empty pattern"},
		{"priority too high", func(r Rule) Rule { r.Priority = 1001; return r }, valid, "outside"},
		{"priority too low", func(r Rule) Rule { r.Priority = -1001; return r }, valid, "outside"},
		{"bad regex", func(r Rule) Rule { r.Type = RuleTypeRegex; r.Pattern = "("; return r }, valid, "does not compile"},
		{"catch-all regex", func(r Rule) Rule { r.Type = RuleTypeRegex; r.Pattern = ".*"; return r }, valid, "catch-all"},
		{"anchored catch-all", func(r Rule) Rule { r.Type = RuleTypeRegex; r.Pattern = "^.*$"; return r }, valid, "catch-all"},
		{"fuzzy no threshold", func(r Rule) Rule { r.FuzzyThreshold = 0; return r }, fuzzyOK, "threshold"},
		{"fuzzy threshold above one", func(r Rule) Rule { r.FuzzyThreshold = 1.5; return r }, fuzzyOK, "threshold"},
		{"positional no constraints", func(r Rule) Rule { r.Conditions = Conditions{}; return r }, positionalOK, "no position constraints"},
		{"unknown type", func(r Rule) Rule { r.Type = "glob"; return r }, valid, "unknown type"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateRule(tt.mutate(tt.base))
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not mention %q", err.Error(), tt.wantErr)
			}
		})
	}
}

func TestValidateConditionBounds(t *testing.T) {
	lo, hi := 5, 2
	rule := NewRule("bad-range", RuleTypePositional, "", "x")
	rule.Conditions = Conditions{
		Required: []Condition{{Kind: ConditionHeaderPosition, Min: &lo, Max: &hi}},
	}
	if err := ValidateRule(rule); err == nil {
		t.Fatal("min above max must be rejected")
	}
}

func TestConditionalRequiresConditions(t *testing.T) {
	rule := NewRule("cond", RuleTypeConditional, "id", "identifier")
	if err := ValidateRule(rule); err == nil {
		t.Fatal("conditional rule without conditions must be rejected")
	}
}

func TestDetectRuleSetConflictsCircular(t *testing.T) {
	a := NewRule("a", RuleTypeExact, "status", "state")
	b := NewRule("b", RuleTypeExact, "state", "status")
	c := NewRule("c", RuleTypeExact, "severity", "risk_level")

	conflicts := DetectRuleSetConflicts([]Rule{a, b, c})
	if len(conflicts) != 1 {
		t.Fatalf("expected 1 circular conflict, got %d", len(conflicts))
	}
	if conflicts[0].Type != ConflictCircularDependency {
		t.Errorf("conflict type = %s, want %s", conflicts[0].Type, ConflictCircularDependency)
	}
}

func TestParseRules(t *testing.T) {
	data := []byte(`[
		{"name": "sev", "type": "exact", "pattern": "severity", "target_field": "severity", "priority": 10, "enabled": true},
		{"name": "ip", "type": "regex", "pattern": "^ip", "target_field": "ip_address", "enabled": true}
	]`)

	rules, err := ParseRules(data)
	if err != nil {
		t.Fatalf("ParseRules: %v", err)
	}
	if len(rules) != 2 {
		t.Fatalf("got %d rules, want 2", len(rules))
	}
	for _, r := range rules {
		if r.ID.String() == "00000000-0000-0000-0000-000000000000" {
			t.Errorf("rule %q did not get an id assigned", r.Name)
		}
	}

	if _, err := ParseRules([]byte("{not json")); err == nil {
		t.Error("malformed JSON must error")
	}
}

func TestSpecificityOrdering(t *testing.T) {
	broad := NewRule("broad", RuleTypeFuzzy, "name", "name")
	broad.FuzzyThreshold = 0.7

	narrow := NewRule("narrow", RuleTypeExact, "asset name", "asset_name")
	narrow.Scope = ScopeSession
	narrow.CaseSensitive = true
	narrow.WholeWord = true
	narrow.Conditions = Conditions{
		Required: []Condition{{Kind: ConditionDocumentType, Value: "inventory"}},
	}

	if Specificity(narrow) <= Specificity(broad) {
		t.Errorf("narrow rule (%f) must outrank broad rule (%f)",
			Specificity(narrow), Specificity(broad))
	}
}
