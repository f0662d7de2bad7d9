package ir

import (
	"fmt"
	"iter"

	"github.com/cottand/bamlc/util"
)

// TypedValue is a Value where every node is annotated with the FieldType that justified it
type TypedValue struct {
	Value Value
	Type  FieldType
	// Items holds the elements of a ListValue
	Items []*TypedValue
	// Fields holds the entries of a MapValue or the fields of a ClassValue
	Fields []util.Pair[string, *TypedValue]
}

// All iterates over the tree depth first, starting with the root
func (t *TypedValue) All() iter.Seq[*TypedValue] {
	return func(yield func(*TypedValue) bool) {
		t.walk(yield)
	}
}

func (t *TypedValue) walk(yield func(*TypedValue) bool) bool {
	if !yield(t) {
		return false
	}
	for _, item := range t.Items {
		if !item.walk(yield) {
			return false
		}
	}
	for _, f := range t.Fields {
		if !f.Snd.walk(yield) {
			return false
		}
	}
	return true
}

// UnifyError is returned by DistributeType when a value does not fit a type
type UnifyError struct {
	Value  string
	Type   FieldType
	Reason string
}

func (e *UnifyError) Error() string {
	msg := fmt.Sprintf("could not unify %s with %s", e.Value, e.Type)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

func unifyError(v Value, t FieldType, reasonFormat string, args ...any) *UnifyError {
	return &UnifyError{Value: Describe(v), Type: t, Reason: fmt.Sprintf(reasonFormat, args...)}
}

// InferType returns the most specific type of v. Empty containers,
// or containers where no element type can be inferred, have no type.
func InferType(v Value) (FieldType, bool) {
	switch v := v.(type) {
	case StringValue:
		return String, true
	case IntValue:
		return Int, true
	case FloatValue:
		return Float, true
	case BoolValue:
		return Bool, true
	case NullValue:
		return Null, true
	case MediaValue:
		return Primitive{Kind: v.Kind}, true
	case EnumValue:
		return Enum{Name: v.Name}, true
	case ClassValue:
		return Class{Name: v.Name}, true
	case ListValue:
		elem, ok := inferElements(v)
		if !ok {
			return nil, false
		}
		return List{Elem: elem}, true
	case MapValue:
		values := make([]Value, len(v))
		for i, e := range v {
			values[i] = e.Snd
		}
		elem, ok := inferElements(values)
		if !ok {
			return nil, false
		}
		return Map{Key: String, Value: elem}, true
	}
	return nil, false
}

// inferElements unions the distinct types of values, in the order they are first seen
func inferElements(values []Value) (FieldType, bool) {
	var types []FieldType
	for _, v := range values {
		t, ok := InferType(v)
		if !ok {
			continue
		}
		seen := false
		for _, existing := range types {
			if Equal(existing, t) {
				seen = true
				break
			}
		}
		if !seen {
			types = append(types, t)
		}
	}
	switch len(types) {
	case 0:
		return nil, false
	case 1:
		return types[0], true
	default:
		return Union{Items: types}, true
	}
}

// DistributeType annotates every node of v with a type, checking at each level
// that the value is compatible with target.
//
// Containers are annotated with target, and their elements with the type
// inferred from the elements themselves, provided the inferred container type
// is a subtype of target. Class fields are annotated with their declared type.
func (r *IntermediateRepr) DistributeType(v Value, target FieldType) (*TypedValue, error) {
	leaf := func(natural ...FieldType) (*TypedValue, error) {
		for _, t := range natural {
			if r.IsSubtype(t, target) {
				return &TypedValue{Value: v, Type: target}, nil
			}
		}
		return nil, unifyError(v, target, "")
	}

	switch v := v.(type) {
	case StringValue:
		return leaf(LiteralString(string(v)), String)
	case IntValue:
		return leaf(LiteralInt(int64(v)), Int)
	case BoolValue:
		return leaf(LiteralBool(bool(v)), Bool)
	case FloatValue:
		return leaf(Float)
	case NullValue:
		return leaf(Null)
	case MediaValue:
		return leaf(Primitive{Kind: v.Kind})
	case EnumValue:
		if e, err := r.FindEnum(v.Name); err == nil && !e.Elem.HasValue(v.Value) {
			return nil, unifyError(v, target, "'%s' is not a value of enum %s", v.Value, v.Name)
		}
		return leaf(Enum{Name: v.Name})
	case ListValue:
		return r.distributeList(v, target)
	case MapValue:
		return r.distributeMap(v, target)
	case ClassValue:
		return r.distributeClass(v, target)
	}
	return nil, unifyError(v, target, "unsupported value")
}

func (r *IntermediateRepr) distributeList(v ListValue, target FieldType) (*TypedValue, error) {
	if len(v) == 0 {
		return &TypedValue{Value: v, Type: target}, nil
	}
	elem, ok := inferElements(v)
	if !ok {
		if elem, ok = r.listElemOf(target); !ok {
			return nil, unifyError(v, target, "cannot infer the type of its elements")
		}
	}
	if !r.IsSubtype(List{Elem: elem}, target) {
		return nil, unifyError(v, target, "inferred %s", List{Elem: elem})
	}
	typed := &TypedValue{Value: v, Type: target, Items: make([]*TypedValue, len(v))}
	for i, item := range v {
		typedItem, err := r.DistributeType(item, elem)
		if err != nil {
			return nil, err
		}
		typed.Items[i] = typedItem
	}
	return typed, nil
}

func (r *IntermediateRepr) distributeMap(v MapValue, target FieldType) (*TypedValue, error) {
	if len(v) == 0 {
		return &TypedValue{Value: v, Type: target}, nil
	}
	var key FieldType = String
	if targetMap, ok := r.mapOf(target); ok {
		if e, isEnum := targetMap.Key.(Enum); isEnum {
			key = e
			// keys must be declared values of the enum, which the subtype check below cannot see
			if def, err := r.FindEnum(e.Name); err == nil {
				for _, entry := range v {
					if !def.Elem.HasValue(entry.Fst) {
						return nil, unifyError(v, target, "key '%s' is not a value of enum %s", entry.Fst, e.Name)
					}
				}
			}
		}
	}
	values := make([]Value, len(v))
	for i, e := range v {
		values[i] = e.Snd
	}
	elem, ok := inferElements(values)
	if !ok {
		targetMap, isMap := r.mapOf(target)
		if !isMap {
			return nil, unifyError(v, target, "cannot infer the type of its values")
		}
		elem = targetMap.Value
	}
	candidate := Map{Key: key, Value: elem}
	if !r.IsSubtype(candidate, target) {
		return nil, unifyError(v, target, "inferred %s", candidate)
	}
	typed := &TypedValue{Value: v, Type: target, Fields: make([]util.Pair[string, *TypedValue], len(v))}
	for i, e := range v {
		typedValue, err := r.DistributeType(e.Snd, elem)
		if err != nil {
			return nil, err
		}
		typed.Fields[i] = util.NewPair(e.Fst, typedValue)
	}
	return typed, nil
}

func (r *IntermediateRepr) distributeClass(v ClassValue, target FieldType) (*TypedValue, error) {
	if !r.IsSubtype(Class{Name: v.Name}, target) {
		return nil, unifyError(v, target, "")
	}
	class, _ := r.FindClass(v.Name)
	typed := &TypedValue{Value: v, Type: target, Fields: make([]util.Pair[string, *TypedValue], len(v.Fields))}
	for i, f := range v.Fields {
		var fieldType FieldType
		if class != nil {
			if declared, ok := class.Elem.Field(f.Fst); ok {
				fieldType = declared.Elem.Type
			}
		}
		if fieldType == nil {
			// fields that are not declared belong to dynamic classes
			inferred, ok := InferType(f.Snd)
			if !ok {
				inferred = Null
			}
			fieldType = inferred
		}
		typedField, err := r.DistributeType(f.Snd, fieldType)
		if err != nil {
			return nil, err
		}
		typed.Fields[i] = util.NewPair(f.Fst, typedField)
	}
	return typed, nil
}

// listElemOf finds the element type of the list target stands for, if any
func (r *IntermediateRepr) listElemOf(target FieldType) (FieldType, bool) {
	found, ok := r.findShape(target, func(t FieldType) bool {
		_, isList := t.(List)
		return isList
	}, 0)
	if !ok {
		return nil, false
	}
	return found.(List).Elem, true
}

func (r *IntermediateRepr) mapOf(target FieldType) (Map, bool) {
	found, ok := r.findShape(target, func(t FieldType) bool {
		_, isMap := t.(Map)
		return isMap
	}, 0)
	if !ok {
		return Map{}, false
	}
	return found.(Map), true
}

// findShape looks through optionals, constraints, unions and recursive aliases for a type matching want
func (r *IntermediateRepr) findShape(t FieldType, want func(FieldType) bool, depth int) (FieldType, bool) {
	if depth > 32 {
		return nil, false
	}
	if want(t) {
		return t, true
	}
	switch t := t.(type) {
	case Optional:
		return r.findShape(t.Inner, want, depth+1)
	case Constrained:
		return r.findShape(t.Base, want, depth+1)
	case Union:
		for _, item := range t.Items {
			if found, ok := r.findShape(item, want, depth+1); ok {
				return found, true
			}
		}
	case RecursiveTypeAlias:
		if resolved, ok := r.ResolveRecursiveAlias(t.Name); ok {
			return r.findShape(resolved, want, depth+1)
		}
	}
	return nil, false
}
