package overrides

import (
	"fmt"
	"strings"
)

// scopeSpecificity ranks scopes from broadest to narrowest.
var scopeSpecificity = map[Scope]float64{
	ScopeGlobal:       1,
	ScopeDocumentType: 2,
	ScopeOrganization: 3,
	ScopeProject:      4,
	ScopeUser:         5,
	ScopeSession:      6,
}

// typeSpecificity ranks rule types from loosest to tightest pattern.
var typeSpecificity = map[RuleType]float64{
	RuleTypeFuzzy:        1,
	RuleTypeContains:     2,
	RuleTypePrefixSuffix: 3,
	RuleTypeRegex:        4,
	RuleTypePositional:   5,
	RuleTypeConditional:  6,
	RuleTypeExact:        6,
}

// Specificity scores how narrowly a rule is targeted. Used by the
// most_specific resolution strategy and reported by the linter.
func Specificity(rule Rule) float64 {
	score := scopeSpecificity[rule.Scope] + typeSpecificity[rule.Type]
	score += 0.5 * float64(rule.Conditions.Count())
	if rule.CaseSensitive {
		score += 0.5
	}
	if rule.WholeWord {
		score += 0.5
	}
	return score
}

// detectConflicts examines every pair of rules that matched the same
// header and classifies their disagreements.
func detectConflicts(header string, matched []matchedRule) []Conflict {
	var conflicts []Conflict
	for i := 0; i < len(matched); i++ {
		for j := i + 1; j < len(matched); j++ {
			a, b := matched[i].rule, matched[j].rule
			conflicts = append(conflicts, classifyPair(header, a, b)...)
		}
	}
	return conflicts
}

func classifyPair(header string, a, b Rule) []Conflict {
	var conflicts []Conflict

	if a.Scope == b.Scope {
		detail := fmt.Sprintf("both map to %q", a.TargetField)
		if a.TargetField != b.TargetField {
			detail = fmt.Sprintf("map to %q vs %q", a.TargetField, b.TargetField)
		}
		conflicts = append(conflicts, Conflict{
			Type:   ConflictPatternOverlap,
			RuleA:  a.ID,
			RuleB:  b.ID,
			Header: header,
			Description: fmt.Sprintf("rules %q and %q both match; %s",
				a.Name, b.Name, detail),
		})
	} else {
		conflicts = append(conflicts, Conflict{
			Type:   ConflictScopeOverlap,
			RuleA:  a.ID,
			RuleB:  b.ID,
			Header: header,
			Description: fmt.Sprintf("rules %q and %q both match across scopes %s and %s",
				a.Name, b.Name, a.Scope, b.Scope),
		})
	}

	if a.Priority == b.Priority {
		conflicts = append(conflicts, Conflict{
			Type:   ConflictPriorityTie,
			RuleA:  a.ID,
			RuleB:  b.ID,
			Header: header,
			Description: fmt.Sprintf("rules %q and %q tie at priority %d",
				a.Name, b.Name, a.Priority),
		})
	}

	if contradictoryConditions(a.Conditions, b.Conditions) {
		conflicts = append(conflicts, Conflict{
			Type:   ConflictContradictoryCondition,
			RuleA:  a.ID,
			RuleB:  b.ID,
			Header: header,
			Description: fmt.Sprintf("rules %q and %q require contradictory conditions",
				a.Name, b.Name),
		})
	}

	return conflicts
}

func equalityOperator(op Operator) bool {
	return op == "" || op == OpEquals
}

// contradictoryConditions reports whether two required-condition sets
// demand different values for the same attribute.
func contradictoryConditions(a, b Conditions) bool {
	for _, ca := range a.Required {
		for _, cb := range b.Required {
			if ca.Kind != cb.Kind || ca.MetadataKey != cb.MetadataKey {
				continue
			}
			switch ca.Kind {
			case ConditionHeaderPosition, ConditionTotalColumns:
				// Disjoint ranges contradict
				if ca.Max != nil && cb.Min != nil && *ca.Max < *cb.Min {
					return true
				}
				if cb.Max != nil && ca.Min != nil && *cb.Max < *ca.Min {
					return true
				}
			default:
				// Only plain equality demands point toward a single
				// value; other operators can overlap
				if !equalityOperator(ca.Operator) || !equalityOperator(cb.Operator) {
					continue
				}
				if !strings.EqualFold(ca.Value, cb.Value) {
					return true
				}
			}
		}
	}
	return false
}

// resolveConflicts picks the winning rule per strategy. Ties fall back
// in order: priority, specificity, most recent update.
func resolveConflicts(matched []matchedRule, strategy ResolutionStrategy) matchedRule {
	switch strategy {
	case ResolveMostRecent:
		return pickBy(matched, func(a, b matchedRule) bool {
			return a.rule.UpdatedAt.After(b.rule.UpdatedAt)
		})
	case ResolveMostSpecific:
		return pickBy(matched, func(a, b matchedRule) bool {
			sa, sb := Specificity(a.rule), Specificity(b.rule)
			if sa != sb {
				return sa > sb
			}
			return a.rule.Priority > b.rule.Priority
		})
	default:
		// highest_priority, combine, and report_and_fallback all pick
		// by priority
		return pickBy(matched, func(a, b matchedRule) bool {
			if a.rule.Priority != b.rule.Priority {
				return a.rule.Priority > b.rule.Priority
			}
			sa, sb := Specificity(a.rule), Specificity(b.rule)
			if sa != sb {
				return sa > sb
			}
			return a.rule.UpdatedAt.After(b.rule.UpdatedAt)
		})
	}
}

func pickBy(matched []matchedRule, better func(a, b matchedRule) bool) matchedRule {
	winner := matched[0]
	for _, m := range matched[1:] {
		if better(m, winner) {
			winner = m
		}
	}
	return winner
}

// DetectRuleSetConflicts analyzes a whole rule set statically: exact
// rules whose target field is another exact rule's pattern form a
// rename cycle that would never settle.
func DetectRuleSetConflicts(rules []Rule) []Conflict {
	var conflicts []Conflict
	for i := 0; i < len(rules); i++ {
		for j := i + 1; j < len(rules); j++ {
			a, b := rules[i], rules[j]
			if a.Type != RuleTypeExact || b.Type != RuleTypeExact {
				continue
			}
			if strings.EqualFold(a.TargetField, b.Pattern) &&
				strings.EqualFold(b.TargetField, a.Pattern) {
				conflicts = append(conflicts, Conflict{
					Type:  ConflictCircularDependency,
					RuleA: a.ID,
					RuleB: b.ID,
					Description: fmt.Sprintf("rules %q and %q rename each other's targets",
						a.Name, b.Name),
				})
			}
		}
	}
	return conflicts
}
