package ir

import "fmt"

type ConstraintLevel uint8

const (
	Assert ConstraintLevel = iota + 1
	Check
)

func (l ConstraintLevel) String() string {
	switch l {
	case Assert:
		return "assert"
	case Check:
		return "check"
	default:
		return "invalid"
	}
}

// Constraint is a boolean expression attached with @assert or @check.
// Expression is kept as written, without the surrounding {{ }}.
type Constraint struct {
	Level      ConstraintLevel
	Expression string
	// Label is required for checks and optional for asserts
	Label string
}

func (c Constraint) String() string {
	if c.Label == "" {
		return fmt.Sprintf("@%s({{ %s }})", c.Level, c.Expression)
	}
	return fmt.Sprintf("@%s(%s, {{ %s }})", c.Level, c.Label, c.Expression)
}

func equalConstraints(a, b []Constraint) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// DistributeConstraints separates t from the constraints that apply to it.
// Nested Constrained wrappers are flattened with the outer constraints first,
// and the constraints declared on a class or enum are appended after the ones
// written at the use site. The returned type is never a Constrained.
func (r *IntermediateRepr) DistributeConstraints(t FieldType) (FieldType, []Constraint) {
	switch t := t.(type) {
	case Class:
		if c, err := r.FindClass(t.Name); err == nil {
			return t, c.Constraints
		}
		return t, nil
	case Enum:
		if e, err := r.FindEnum(t.Name); err == nil {
			return t, e.Constraints
		}
		return t, nil
	case Constrained:
		base, inner := r.DistributeConstraints(t.Base)
		merged := make([]Constraint, 0, len(t.Constraints)+len(inner))
		merged = append(merged, t.Constraints...)
		merged = append(merged, inner...)
		return base, merged
	default:
		return t, nil
	}
}

// TypeHasConstraints reports whether t carries any constraint, including the ones of the class or enum it names
func (r *IntermediateRepr) TypeHasConstraints(t FieldType) bool {
	_, constraints := r.DistributeConstraints(t)
	return len(constraints) > 0
}

// TypeHasChecks reports whether any constraint applying to t is a @check
func (r *IntermediateRepr) TypeHasChecks(t FieldType) bool {
	_, constraints := r.DistributeConstraints(t)
	for _, c := range constraints {
		if c.Level == Check {
			return true
		}
	}
	return false
}
