package ir

import (
	"github.com/benbjohnson/immutable"
)

// IsSubtype reports whether a value of type base can always be used where other is expected.
//
// Subtyping is structural: literals refine their primitive, T is a subtype of T?,
// lists and unions are covariant, map keys are contravariant, and constraints
// are ignored unless both sides carry them.
func (r *IntermediateRepr) IsSubtype(base, other FieldType) bool {
	return r.isSubtype(base, other, immutable.NewSet[string](nil))
}

// assumed holds the pairs of recursive aliases being compared further up the
// stack, which are taken to be related so that unfolding terminates
func (r *IntermediateRepr) isSubtype(base, other FieldType, assumed immutable.Set[string]) bool {
	if Equal(base, other) {
		return true
	}

	if u, ok := other.(Union); ok {
		for _, item := range u.Items {
			if r.isSubtype(base, item, assumed) {
				return true
			}
		}
	}

	baseAlias, baseIsAlias := base.(RecursiveTypeAlias)
	otherAlias, otherIsAlias := other.(RecursiveTypeAlias)
	if baseIsAlias || otherIsAlias {
		key := base.String() + " <: " + other.String()
		if assumed.Has(key) {
			return true
		}
		assumed = assumed.Add(key)
		if baseIsAlias {
			resolved, ok := r.ResolveRecursiveAlias(baseAlias.Name)
			if !ok {
				return false
			}
			return r.isSubtype(resolved, other, assumed)
		}
		resolved, ok := r.ResolveRecursiveAlias(otherAlias.Name)
		if !ok {
			return false
		}
		return r.isSubtype(base, resolved, assumed)
	}

	switch b := base.(type) {
	case Primitive:
		if _, ok := other.(Optional); ok && b.Kind == KindNull {
			return true
		}
	case Optional:
		if o, ok := other.(Optional); ok {
			return r.isSubtype(b.Inner, o.Inner, assumed)
		}
	}
	if o, ok := other.(Optional); ok {
		return r.isSubtype(base, o.Inner, assumed)
	}
	if _, ok := base.(Optional); ok {
		return false
	}

	switch b := base.(type) {
	case List:
		if o, ok := other.(List); ok {
			return r.isSubtype(b.Elem, o.Elem, assumed)
		}
		if _, ok := other.(Constrained); !ok {
			return false
		}
	case Map:
		if o, ok := other.(Map); ok {
			return r.isSubtype(o.Key, b.Key, assumed) && r.isSubtype(b.Value, o.Value, assumed)
		}
		if _, ok := other.(Constrained); !ok {
			return false
		}
	}

	baseConstrained, baseIsConstrained := base.(Constrained)
	otherConstrained, otherIsConstrained := other.(Constrained)
	switch {
	case baseIsConstrained && otherIsConstrained:
		return equalConstraints(baseConstrained.Constraints, otherConstrained.Constraints) &&
			r.isSubtype(baseConstrained.Base, otherConstrained.Base, assumed)
	case baseIsConstrained:
		return r.isSubtype(baseConstrained.Base, other, assumed)
	case otherIsConstrained:
		return r.isSubtype(base, otherConstrained.Base, assumed)
	}

	switch b := base.(type) {
	case Literal:
		return r.isSubtype(b.Primitive(), other, assumed)
	case Union:
		for _, item := range b.Items {
			if !r.isSubtype(item, other, assumed) {
				return false
			}
		}
		return true
	case Tuple:
		o, ok := other.(Tuple)
		if !ok || len(o.Items) != len(b.Items) {
			return false
		}
		for i := range b.Items {
			if !r.isSubtype(b.Items[i], o.Items[i], assumed) {
				return false
			}
		}
		return true
	}
	// primitives, enums and classes are only subtypes of themselves,
	// which the equality check above already covered
	return false
}
