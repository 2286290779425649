package models

import (
	"fmt"
	"strconv"
	"strings"
)

// BranchOperator compares a context field against a rule value.
type BranchOperator string

const (
	OperatorEquals      BranchOperator = "equals"
	OperatorNotEquals   BranchOperator = "not_equals"
	OperatorContains    BranchOperator = "contains"
	OperatorGreaterThan BranchOperator = "greater_than"
	OperatorLessThan    BranchOperator = "less_than"
	OperatorExists      BranchOperator = "exists"
)

// BranchRule is one conditional jump. Field addresses the evaluation
// context: "lead.<attr>" reads a lead attribute, "output.<order>.<key>"
// reads a prior task's output by display order, and a bare name reads the
// most recent completed output.
type BranchRule struct {
	Field     string         `json:"field"      validate:"required"`
	Operator  BranchOperator `json:"operator"   validate:"required,oneof=equals not_equals contains greater_than less_than exists"`
	Value     any            `json:"value,omitempty"`
	NextOrder int            `json:"next_order" validate:"min=1"`
}

// BranchContext is the read-only state branch rules evaluate against.
type BranchContext struct {
	// Lead holds the lead's attributes plus its built-in fields.
	Lead map[string]any
	// Outputs maps a task's display order to its recorded output.
	Outputs map[int]map[string]any
	// LastOrder is the display order of the most recently completed task,
	// 0 when nothing has completed yet.
	LastOrder int
}

// SelectBranch evaluates rules in declared order against ctx and returns
// the display order of the first matching rule. ok is false when no rule
// matches, in which case the caller falls back to the next sequential task.
// Evaluation is pure and deterministic: the same context always selects the
// same branch, so the engine may safely re-evaluate after a retried
// advancement.
func SelectBranch(rules []BranchRule, ctx BranchContext) (next int, ok bool) {
	for _, rule := range rules {
		value, found := ctx.resolve(rule.Field)
		if matchRule(rule, value, found) {
			return rule.NextOrder, true
		}
	}

	return 0, false
}

func (c BranchContext) resolve(field string) (any, bool) {
	switch {
	case strings.HasPrefix(field, "lead."):
		value, found := c.Lead[strings.TrimPrefix(field, "lead.")]

		return value, found
	case strings.HasPrefix(field, "output."):
		rest := strings.TrimPrefix(field, "output.")

		idx := strings.Index(rest, ".")
		if idx < 0 {
			return nil, false
		}

		order, err := strconv.Atoi(rest[:idx])
		if err != nil {
			return nil, false
		}

		output, found := c.Outputs[order]
		if !found {
			return nil, false
		}

		value, found := output[rest[idx+1:]]

		return value, found
	default:
		output, found := c.Outputs[c.LastOrder]
		if !found {
			return nil, false
		}

		value, found := output[field]

		return value, found
	}
}

func matchRule(rule BranchRule, value any, found bool) bool {
	if rule.Operator == OperatorExists {
		return found
	}

	if !found {
		return false
	}

	switch rule.Operator {
	case OperatorEquals:
		return stringify(value) == stringify(rule.Value)
	case OperatorNotEquals:
		return stringify(value) != stringify(rule.Value)
	case OperatorContains:
		return strings.Contains(stringify(value), stringify(rule.Value))
	case OperatorGreaterThan:
		left, right, numeric := toFloats(value, rule.Value)

		return numeric && left > right
	case OperatorLessThan:
		left, right, numeric := toFloats(value, rule.Value)

		return numeric && left < right
	default:
		return false
	}
}

func stringify(v any) string {
	switch value := v.(type) {
	case nil:
		return ""
	case string:
		return value
	case float64:
		return strconv.FormatFloat(value, 'f', -1, 64)
	case int:
		return strconv.Itoa(value)
	case bool:
		return strconv.FormatBool(value)
	default:
		return fmt.Sprintf("%v", value)
	}
}

func toFloats(a, b any) (left, right float64, ok bool) {
	left, okA := toFloat(a)
	right, okB := toFloat(b)

	return left, right, okA && okB
}

func toFloat(v any) (float64, bool) {
	switch value := v.(type) {
	case float64:
		return value, true
	case float32:
		return float64(value), true
	case int:
		return float64(value), true
	case int64:
		return float64(value), true
	case string:
		parsed, err := strconv.ParseFloat(value, 64)

		return parsed, err == nil
	default:
		return 0, false
	}
}
