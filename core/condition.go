package core

import (
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
)

// ConditionOperator is one of the closed set of predicate operators. The
// engine never evaluates caller-supplied expressions.
type ConditionOperator string

const (
	// OpExists is true when the field path resolves at all.
	OpExists ConditionOperator = "exists"
	// OpEq compares the resolved field to the literal for equality.
	OpEq ConditionOperator = "eq"
	// OpNe is the negation of OpEq.
	OpNe ConditionOperator = "ne"
	// OpContains checks list membership, or substring match for strings.
	OpContains ConditionOperator = "contains"
	// OpGt is a numeric greater-than; falls back to string ordering when
	// either operand is not numeric.
	OpGt ConditionOperator = "gt"
	// OpLt is the numeric (or string-ordered) less-than.
	OpLt ConditionOperator = "lt"
)

// Condition gates a step on a predicate over the execution context. Field is
// a context path; Value is a literal compared against the resolved field.
type Condition struct {
	Field    string            `json:"field"`
	Operator ConditionOperator `json:"operator"`
	Value    any               `json:"value,omitempty"`
}

// Evaluate resolves Field against ctx and applies Operator. An unresolved
// field is false for every operator except ne, which is true (the field
// differs from any literal by virtue of being absent).
func (c Condition) Evaluate(ctx *ExecutionContext) (bool, error) {
	r := ctx.resolve(c.Field)

	switch c.Operator {
	case OpExists:
		return r.Exists(), nil

	case OpEq:
		if !r.Exists() {
			return false, nil
		}
		return looseEqual(r, c.Value), nil

	case OpNe:
		if !r.Exists() {
			return true, nil
		}
		return !looseEqual(r, c.Value), nil

	case OpContains:
		if !r.Exists() {
			return false, nil
		}
		if r.IsArray() {
			for _, el := range r.Array() {
				if looseEqual(el, c.Value) {
					return true, nil
				}
			}
			return false, nil
		}
		if r.Type == gjson.String {
			return strings.Contains(r.Str, fmt.Sprintf("%v", c.Value)), nil
		}
		return false, fmt.Errorf("%w: contains requires a list or string at %q", ErrConditionEval, c.Field)

	case OpGt, OpLt:
		if !r.Exists() {
			return false, nil
		}
		cmp, err := looseCompare(r, c.Value)
		if err != nil {
			return false, fmt.Errorf("%w: %v", ErrConditionEval, err)
		}
		if c.Operator == OpGt {
			return cmp > 0, nil
		}
		return cmp < 0, nil

	default:
		return false, fmt.Errorf("%w: unknown operator %q", ErrConditionEval, c.Operator)
	}
}

// looseEqual compares a resolved context value to a literal with tolerant
// numeric semantics: 5 and 5.0 are equal, as are "5" and 5 when the literal
// is numeric.
func looseEqual(r gjson.Result, literal any) bool {
	if f, ok := toFloat(literal); ok && (r.Type == gjson.Number || numericString(r)) {
		return r.Float() == f
	}
	if b, ok := literal.(bool); ok {
		return r.IsBool() && r.Bool() == b
	}
	if literal == nil {
		return r.Type == gjson.Null
	}
	return r.String() == fmt.Sprintf("%v", literal)
}

// looseCompare orders the resolved value against the literal: numerically
// when both sides are numbers, otherwise lexically over their string forms.
func looseCompare(r gjson.Result, literal any) (int, error) {
	if f, ok := toFloat(literal); ok && (r.Type == gjson.Number || numericString(r)) {
		switch rf := r.Float(); {
		case rf > f:
			return 1, nil
		case rf < f:
			return -1, nil
		default:
			return 0, nil
		}
	}
	return strings.Compare(r.String(), fmt.Sprintf("%v", literal)), nil
}

func numericString(r gjson.Result) bool {
	if r.Type != gjson.String || r.Str == "" {
		return false
	}
	for i, ch := range r.Str {
		if ch >= '0' && ch <= '9' {
			continue
		}
		if ch == '.' || (i == 0 && ch == '-') {
			continue
		}
		return false
	}
	return true
}

func toFloat(v any) (float64, bool) {
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
	default:
		return 0, false
	}
}
