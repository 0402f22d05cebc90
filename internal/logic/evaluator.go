// Package logic interprets flow-level conditional rules against the
// responses collected so far. Evaluation is pure: it is safe to rerun
// on every response change.
package logic

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/hausmatch/leadflow/internal/schema"
)

// Result is the outcome of evaluating a rule set: which steps and
// fields the rules explicitly showed, hid, enabled or disabled. An
// entity absent from all four sets keeps its default state (visible,
// enabled).
type Result struct {
	VisibleSteps   map[string]bool
	HiddenSteps    map[string]bool
	EnabledFields  map[string]bool
	DisabledFields map[string]bool
}

func newResult() Result {
	return Result{
		VisibleSteps:   map[string]bool{},
		HiddenSteps:    map[string]bool{},
		EnabledFields:  map[string]bool{},
		DisabledFields: map[string]bool{},
	}
}

// StepHidden reports whether a rule hid the given step.
func (r Result) StepHidden(stepID string) bool { return r.HiddenSteps[stepID] }

// FieldDisabled reports whether a rule disabled the given field.
func (r Result) FieldDisabled(fieldID string) bool { return r.DisabledFields[fieldID] }

// Evaluate runs every rule in declaration order against the response
// bag (keyed by field_name). Rules whose conditions hold apply their
// action; when several rules target the same entity, the last one wins.
// A condition whose source field has not been answered evaluates false.
func Evaluate(rules []schema.LogicRule, responses map[string]any) Result {
	result := newResult()

	for _, rule := range rules {
		if !conditionsHold(rule, responses) {
			continue
		}
		switch rule.Action {
		case schema.ActionShow:
			result.VisibleSteps[rule.Target.ID] = true
			delete(result.HiddenSteps, rule.Target.ID)
		case schema.ActionHide:
			result.HiddenSteps[rule.Target.ID] = true
			delete(result.VisibleSteps, rule.Target.ID)
		case schema.ActionEnable:
			result.EnabledFields[rule.Target.ID] = true
			delete(result.DisabledFields, rule.Target.ID)
		case schema.ActionDisable:
			result.DisabledFields[rule.Target.ID] = true
			delete(result.EnabledFields, rule.Target.ID)
		}
	}

	return result
}

func conditionsHold(rule schema.LogicRule, responses map[string]any) bool {
	if len(rule.Conditions) == 0 {
		return false
	}

	if rule.Join == schema.JoinOr {
		for _, cond := range rule.Conditions {
			if evalCondition(cond, responses) {
				return true
			}
		}
		return false
	}

	// AND is the default join.
	for _, cond := range rule.Conditions {
		if !evalCondition(cond, responses) {
			return false
		}
	}
	return true
}

func evalCondition(cond schema.Condition, responses map[string]any) bool {
	actual, answered := responses[cond.SourceID]
	if !answered {
		return false
	}

	switch cond.Operator {
	case schema.OpEquals:
		return valuesEqual(actual, cond.Value)
	case schema.OpNotEquals:
		return !valuesEqual(actual, cond.Value)
	case schema.OpContains:
		return contains(actual, cond.Value)
	case schema.OpGreater:
		a, aOK := toNumber(actual)
		b, bOK := toNumber(cond.Value)
		return aOK && bOK && a > b
	case schema.OpLess:
		a, aOK := toNumber(actual)
		b, bOK := toNumber(cond.Value)
		return aOK && bOK && a < b
	case schema.OpIn:
		return in(actual, cond.Value)
	default:
		return false
	}
}

// valuesEqual compares numerically when both sides are numbers, and by
// string rendering otherwise, so "5" and 5.0 collected from different
// input types still match.
func valuesEqual(a, b any) bool {
	if an, aOK := toNumber(a); aOK {
		if bn, bOK := toNumber(b); bOK {
			return an == bn
		}
	}
	return stringify(a) == stringify(b)
}

// contains checks substring containment for string responses and
// membership for multi-valued responses (checkbox fields).
func contains(actual, expected any) bool {
	switch v := actual.(type) {
	case string:
		return strings.Contains(v, stringify(expected))
	case []any:
		for _, item := range v {
			if valuesEqual(item, expected) {
				return true
			}
		}
		return false
	case []string:
		for _, item := range v {
			if item == stringify(expected) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

// in checks whether the response is a member of the rule value, which
// may be an array or a comma-delimited string.
func in(actual, expected any) bool {
	switch v := expected.(type) {
	case []any:
		for _, item := range v {
			if valuesEqual(actual, item) {
				return true
			}
		}
		return false
	case []string:
		for _, item := range v {
			if valuesEqual(actual, item) {
				return true
			}
		}
		return false
	case string:
		for _, item := range strings.Split(v, ",") {
			if valuesEqual(actual, strings.TrimSpace(item)) {
				return true
			}
		}
		return false
	default:
		return valuesEqual(actual, expected)
	}
}

func toNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func stringify(v any) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}
