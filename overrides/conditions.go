package overrides

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Rule files written against the flat condition layout use different
// kind names for some attributes.
var kindAliases = map[ConditionKind]ConditionKind{
	"column_count":    ConditionTotalColumns,
	"custom_metadata": ConditionMetadata,
	"user_role":       ConditionUser,
}

// UnmarshalJSON accepts both layouts: the grouped object form
// {"required": [...], "optional": [...]} and the flat array form
// where each condition carries its own required flag.
func (c *Conditions) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var flat []Condition
		if err := json.Unmarshal(trimmed, &flat); err != nil {
			return err
		}
		*c = Conditions{}
		for _, cond := range flat {
			if cond.Required {
				c.Required = append(c.Required, cond)
			} else {
				c.Optional = append(c.Optional, cond)
			}
		}
		return nil
	}

	type plain Conditions
	var p plain
	if err := json.Unmarshal(trimmed, &p); err != nil {
		return err
	}
	*c = Conditions(p)
	return nil
}

// UnmarshalJSON tolerates the flat layout's field names ("type" for
// the kind, "field" for the metadata key) and non-string values
// (numbers, booleans, arrays for set membership).
func (cond *Condition) UnmarshalJSON(data []byte) error {
	var raw struct {
		Kind        ConditionKind   `json:"kind"`
		Type        ConditionKind   `json:"type"`
		Operator    Operator        `json:"operator"`
		Value       json.RawMessage `json:"value"`
		Values      []string        `json:"values"`
		MetadataKey string          `json:"metadata_key"`
		Field       string          `json:"field"`
		Min         *int            `json:"min"`
		Max         *int            `json:"max"`
		Required    bool            `json:"required"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	kind := raw.Kind
	if kind == "" {
		kind = raw.Type
	}
	if canonical, ok := kindAliases[kind]; ok {
		kind = canonical
	}

	key := raw.MetadataKey
	if key == "" {
		key = raw.Field
	}

	value, values, err := decodeConditionValue(raw.Value)
	if err != nil {
		return err
	}
	if len(raw.Values) > 0 {
		values = raw.Values
	}

	*cond = Condition{
		Kind:        kind,
		Operator:    raw.Operator,
		Value:       value,
		Values:      values,
		MetadataKey: key,
		Min:         raw.Min,
		Max:         raw.Max,
		Required:    raw.Required,
	}
	return nil
}

// decodeConditionValue flattens a JSON value to the condition's string
// form: scalars become their text, arrays become the Values list.
func decodeConditionValue(raw json.RawMessage) (string, []string, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return "", nil, nil
	}

	if trimmed[0] == '[' {
		var items []any
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return "", nil, err
		}
		values := make([]string, 0, len(items))
		for _, item := range items {
			values = append(values, scalarString(item))
		}
		return "", values, nil
	}

	var scalar any
	if err := json.Unmarshal(trimmed, &scalar); err != nil {
		return "", nil, err
	}
	return scalarString(scalar), nil, nil
}

func scalarString(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(s)
	default:
		return fmt.Sprintf("%v", v)
	}
}

// evalConditions checks required (all) and optional (at least one,
// when any exist) conditions against the context.
func evalConditions(conditions Conditions, ctx *Context) bool {
	for _, cond := range conditions.Required {
		if !evalCondition(cond, ctx) {
			return false
		}
	}
	if len(conditions.Optional) == 0 {
		return true
	}
	for _, cond := range conditions.Optional {
		if evalCondition(cond, ctx) {
			return true
		}
	}
	return false
}

func evalCondition(cond Condition, ctx *Context) bool {
	switch cond.Kind {
	case ConditionHeaderPosition:
		return evalNumeric(cond, ctx.HeaderPosition)
	case ConditionTotalColumns:
		return evalNumeric(cond, ctx.TotalColumns)
	case ConditionDocumentType:
		return evalString(cond, ctx.DocumentType, true)
	case ConditionOrganization:
		return evalString(cond, ctx.Organization, true)
	case ConditionWorksheet:
		return evalString(cond, ctx.Worksheet, true)
	case ConditionUser:
		return evalString(cond, ctx.User, false)
	case ConditionMetadata:
		return evalString(cond, ctx.Metadata[cond.MetadataKey], false)
	default:
		return false
	}
}

// evalString applies the condition's operator to a textual attribute.
// fold selects case-insensitive comparison for attributes that come
// from document content rather than identity.
func evalString(cond Condition, actual string, fold bool) bool {
	a, v := actual, cond.Value
	if fold {
		a, v = strings.ToLower(a), strings.ToLower(v)
	}

	switch cond.Operator {
	case "", OpEquals:
		return a == v
	case OpNotEquals:
		return a != v
	case OpContains:
		return strings.Contains(a, v)
	case OpNotContains:
		return !strings.Contains(a, v)
	case OpMatches:
		re, err := regexp.Compile(cond.Value)
		return err == nil && re.MatchString(actual)
	case OpNotMatches:
		re, err := regexp.Compile(cond.Value)
		return err == nil && !re.MatchString(actual)
	case OpGreaterThan, OpLessThan, OpGreaterThanOrEqual, OpLessThanOrEqual:
		an, err1 := strconv.ParseFloat(actual, 64)
		vn, err2 := strconv.ParseFloat(cond.Value, 64)
		if err1 != nil || err2 != nil {
			return false
		}
		return compareNumeric(cond.Operator, an, vn)
	case OpIn:
		return inValues(cond.Values, a, fold)
	case OpNotIn:
		return !inValues(cond.Values, a, fold)
	default:
		return false
	}
}

// evalNumeric applies the condition's operator to an integer
// attribute. Min/Max act as an equals-range shorthand when no
// operator is set.
func evalNumeric(cond Condition, actual int) bool {
	if cond.Operator == "" || cond.Operator == OpEquals {
		if cond.Min != nil || cond.Max != nil {
			return inRange(actual, cond.Min, cond.Max)
		}
		n, err := strconv.Atoi(cond.Value)
		return err == nil && actual == n
	}

	switch cond.Operator {
	case OpNotEquals:
		n, err := strconv.Atoi(cond.Value)
		return err == nil && actual != n
	case OpGreaterThan, OpLessThan, OpGreaterThanOrEqual, OpLessThanOrEqual:
		n, err := strconv.ParseFloat(cond.Value, 64)
		return err == nil && compareNumeric(cond.Operator, float64(actual), n)
	case OpIn:
		return inValues(cond.Values, strconv.Itoa(actual), false)
	case OpNotIn:
		return !inValues(cond.Values, strconv.Itoa(actual), false)
	default:
		return false
	}
}

func compareNumeric(op Operator, actual, value float64) bool {
	switch op {
	case OpGreaterThan:
		return actual > value
	case OpLessThan:
		return actual < value
	case OpGreaterThanOrEqual:
		return actual >= value
	case OpLessThanOrEqual:
		return actual <= value
	default:
		return false
	}
}

func inValues(values []string, actual string, fold bool) bool {
	for _, v := range values {
		if fold {
			v = strings.ToLower(v)
		}
		if v == actual {
			return true
		}
	}
	return false
}

func inRange(v int, min, max *int) bool {
	if min != nil && v < *min {
		return false
	}
	if max != nil && v > *max {
		return false
	}
	return true
}
