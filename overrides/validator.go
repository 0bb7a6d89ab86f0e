package overrides

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/teranos/tabula/errors"
)

// ValidateRule checks a single rule for structural problems. Returned
// errors wrap ErrInvalidRule.
func ValidateRule(rule Rule) error {
	if rule.Name == "" {
		return errors.NewInvalidRuleError("rule has no name")
	}
	if rule.TargetField == "" {
		return errors.NewInvalidRuleError("rule %q has no target field", rule.Name)
	}
	if rule.Priority < MinPriority || rule.Priority > MaxPriority {
		return errors.NewInvalidRuleError("rule %q priority %d outside [%d, %d]",
			rule.Name, rule.Priority, MinPriority, MaxPriority)
	}

	switch rule.Type {
	case RuleTypeExact, RuleTypeContains, RuleTypePrefixSuffix, RuleTypeConditional:
		if rule.Pattern == "" {
			return errors.NewInvalidRuleError("rule %q has an empty pattern", rule.Name)
		}

	case RuleTypeRegex:
		if rule.Pattern == "" {
			return errors.NewInvalidRuleError("rule %q has an empty pattern", rule.Name)
		}
		if _, err := regexp.Compile(rule.Pattern); err != nil {
			return errors.Wrap(errors.ErrInvalidRule,
				errors.Wrapf(err, "rule %q regex does not compile", rule.Name).Error())
		}
		if isCatchAll(rule.Pattern) {
			return errors.NewInvalidRuleError(
				"rule %q uses a catch-all pattern that matches every header", rule.Name)
		}

	case RuleTypeFuzzy:
		if rule.Pattern == "" {
			return errors.NewInvalidRuleError("rule %q has an empty pattern", rule.Name)
		}
		if rule.FuzzyThreshold <= 0 || rule.FuzzyThreshold > 1 {
			return errors.NewInvalidRuleError(
				"fuzzy rule %q needs a threshold in (0, 1], got %f",
				rule.Name, rule.FuzzyThreshold)
		}

	case RuleTypePositional:
		if !hasPositionalConditions(rule.Conditions) {
			return errors.NewInvalidRuleError(
				"positional rule %q has no position constraints", rule.Name)
		}

	default:
		return errors.NewInvalidRuleError("rule %q has unknown type %q", rule.Name, rule.Type)
	}

	if rule.Type == RuleTypeConditional && rule.Conditions.Empty() {
		return errors.NewInvalidRuleError(
			"conditional rule %q has no conditions", rule.Name)
	}

	for _, cond := range append(append([]Condition{}, rule.Conditions.Required...), rule.Conditions.Optional...) {
		if err := validateCondition(rule.Name, cond); err != nil {
			return err
		}
	}

	return nil
}

// isCatchAll flags patterns that would match every header, such as a
// bare or unanchored ".*".
func isCatchAll(pattern string) bool {
	stripped := strings.TrimPrefix(pattern, "^")
	stripped = strings.TrimSuffix(stripped, "$")
	if stripped == ".*" || stripped == ".+" || stripped == ".*?" {
		// Anchoring a catch-all does not make it narrower
		return true
	}
	// Unanchored patterns that start and end with .* match everything
	// their inner pattern touches anywhere; flag the fully-greedy form
	return pattern == ".*" || (strings.HasPrefix(pattern, ".*") && strings.HasSuffix(pattern, ".*") && len(pattern) <= 6)
}

func hasPositionalConditions(conditions Conditions) bool {
	for _, c := range append(append([]Condition{}, conditions.Required...), conditions.Optional...) {
		if c.Kind == ConditionHeaderPosition || c.Kind == ConditionTotalColumns {
			return true
		}
	}
	return false
}

func validateCondition(ruleName string, cond Condition) error {
	switch cond.Kind {
	case ConditionDocumentType, ConditionOrganization, ConditionUser, ConditionWorksheet:
		if cond.Value == "" && len(cond.Values) == 0 {
			return errors.NewInvalidRuleError(
				"rule %q has a %s condition with no value", ruleName, cond.Kind)
		}
	case ConditionMetadata:
		if cond.MetadataKey == "" {
			return errors.NewInvalidRuleError(
				"rule %q has a metadata condition with no key", ruleName)
		}
	case ConditionHeaderPosition, ConditionTotalColumns:
		if cond.Min == nil && cond.Max == nil && cond.Value == "" && len(cond.Values) == 0 {
			return errors.NewInvalidRuleError(
				"rule %q has a %s condition with no bounds", ruleName, cond.Kind)
		}
		if cond.Min != nil && cond.Max != nil && *cond.Min > *cond.Max {
			return errors.NewInvalidRuleError(
				"rule %q has a %s condition with min above max", ruleName, cond.Kind)
		}
	default:
		return errors.NewInvalidRuleError(
			"rule %q has a condition of unknown kind %q", ruleName, cond.Kind)
	}
	return validateOperator(ruleName, cond)
}

func validateOperator(ruleName string, cond Condition) error {
	switch cond.Operator {
	case "", OpEquals, OpNotEquals, OpContains, OpNotContains:

	case OpMatches, OpNotMatches:
		if _, err := regexp.Compile(cond.Value); err != nil {
			return errors.Wrap(errors.ErrInvalidRule,
				errors.Wrapf(err, "rule %q has a %s condition whose pattern does not compile",
					ruleName, cond.Operator).Error())
		}

	case OpGreaterThan, OpLessThan, OpGreaterThanOrEqual, OpLessThanOrEqual:
		if _, err := strconv.ParseFloat(cond.Value, 64); err != nil {
			return errors.NewInvalidRuleError(
				"rule %q has a %s condition with non-numeric value %q",
				ruleName, cond.Operator, cond.Value)
		}

	case OpIn, OpNotIn:
		if len(cond.Values) == 0 {
			return errors.NewInvalidRuleError(
				"rule %q has a %s condition with no values", ruleName, cond.Operator)
		}

	default:
		return errors.NewInvalidRuleError(
			"rule %q has a condition with unknown operator %q", ruleName, cond.Operator)
	}
	return nil
}

// ValidateRules checks every rule plus set-level problems. All issues
// are collected rather than failing on the first.
func ValidateRules(rules []Rule) []error {
	var problems []error
	for _, rule := range rules {
		if err := ValidateRule(rule); err != nil {
			problems = append(problems, err)
		}
	}
	for _, conflict := range DetectRuleSetConflicts(rules) {
		problems = append(problems, errors.Wrap(errors.ErrRuleConflict, conflict.Description))
	}
	return problems
}

// ParseRules decodes a JSON rule file. Rules missing an id get one
// assigned so they can be tracked through metrics and conflicts.
func ParseRules(data []byte) ([]Rule, error) {
	var rules []Rule
	if err := json.Unmarshal(data, &rules); err != nil {
		return nil, errors.Wrap(err, "failed to parse rules file")
	}
	for i := range rules {
		if rules[i].ID == uuid.Nil {
			rules[i].ID = uuid.New()
		}
	}
	return rules, nil
}
