package ir

import (
	"strconv"
	"strings"
)

// FieldType is the resolved type of a field, parameter or alias.
//
// The set of implementations is closed: Primitive, Literal, List, Map,
// Tuple, Union, Optional, Class, Enum, RecursiveTypeAlias and Constrained.
// Code switching over a FieldType should handle all of them.
type FieldType interface {
	String() string
	fieldType()
}

var (
	_ FieldType = Primitive{}
	_ FieldType = Literal{}
	_ FieldType = List{}
	_ FieldType = Map{}
	_ FieldType = Tuple{}
	_ FieldType = Union{}
	_ FieldType = Optional{}
	_ FieldType = Class{}
	_ FieldType = Enum{}
	_ FieldType = RecursiveTypeAlias{}
	_ FieldType = Constrained{}
)

type PrimitiveKind uint8

const (
	KindInt PrimitiveKind = iota + 1
	KindFloat
	KindBool
	KindString
	KindNull
	KindImage
	KindAudio
)

func (k PrimitiveKind) String() string {
	switch k {
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindBool:
		return "bool"
	case KindString:
		return "string"
	case KindNull:
		return "null"
	case KindImage:
		return "image"
	case KindAudio:
		return "audio"
	default:
		return "invalid"
	}
}

// IsMedia is true for image and audio
func (k PrimitiveKind) IsMedia() bool { return k == KindImage || k == KindAudio }

type Primitive struct {
	Kind PrimitiveKind
}

var (
	Int    = Primitive{KindInt}
	Float  = Primitive{KindFloat}
	Bool   = Primitive{KindBool}
	String = Primitive{KindString}
	Null   = Primitive{KindNull}
	Image  = Primitive{KindImage}
	Audio  = Primitive{KindAudio}
)

func (Primitive) fieldType()         {}
func (p Primitive) String() string { return p.Kind.String() }

// Literal permits a single value. Value is a bool, an int64 or a string
type Literal struct {
	Value any
}

func LiteralString(s string) Literal { return Literal{Value: s} }
func LiteralInt(i int64) Literal     { return Literal{Value: i} }
func LiteralBool(b bool) Literal     { return Literal{Value: b} }

func (Literal) fieldType() {}
func (l Literal) String() string {
	switch v := l.Value.(type) {
	case string:
		return strconv.Quote(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case bool:
		return strconv.FormatBool(v)
	default:
		return "<invalid literal>"
	}
}

// Primitive returns the primitive a literal refines
func (l Literal) Primitive() Primitive {
	switch l.Value.(type) {
	case string:
		return String
	case int64:
		return Int
	case bool:
		return Bool
	default:
		return Null
	}
}

type List struct {
	Elem FieldType
}

func (List) fieldType()         {}
func (l List) String() string { return wrapUnion(l.Elem) + "[]" }

type Map struct {
	Key, Value FieldType
}

func (Map) fieldType() {}
func (m Map) String() string {
	return "map<" + m.Key.String() + ", " + m.Value.String() + ">"
}

type Tuple struct {
	Items []FieldType
}

func (Tuple) fieldType() {}
func (t Tuple) String() string {
	return "(" + joinTypes(t.Items, ", ") + ")"
}

type Union struct {
	Items []FieldType
}

func (Union) fieldType()         {}
func (u Union) String() string { return joinTypes(u.Items, " | ") }

type Optional struct {
	Inner FieldType
}

func (Optional) fieldType()         {}
func (o Optional) String() string { return wrapUnion(o.Inner) + "?" }

// Class references a class of the IntermediateRepr by name
type Class struct {
	Name string
}

func (Class) fieldType()         {}
func (c Class) String() string { return c.Name }

// Enum references an enum of the IntermediateRepr by name
type Enum struct {
	Name string
}

func (Enum) fieldType()         {}
func (e Enum) String() string { return e.Name }

// RecursiveTypeAlias references an alias that is part of a structural
// recursive cycle (one that goes through a list or a map).
// It is resolved through IntermediateRepr.StructuralRecursiveAliasCycles.
type RecursiveTypeAlias struct {
	Name string
}

func (RecursiveTypeAlias) fieldType()         {}
func (r RecursiveTypeAlias) String() string { return r.Name }

// Constrained attaches @assert and @check constraints to Base
type Constrained struct {
	Base        FieldType
	Constraints []Constraint
}

func (Constrained) fieldType() {}
func (c Constrained) String() string {
	sb := strings.Builder{}
	sb.WriteString(wrapUnion(c.Base))
	for _, constraint := range c.Constraints {
		sb.WriteString(" ")
		sb.WriteString(constraint.String())
	}
	return sb.String()
}

func joinTypes(types []FieldType, sep string) string {
	parts := make([]string, len(types))
	for i, t := range types {
		parts[i] = t.String()
	}
	return strings.Join(parts, sep)
}

func wrapUnion(t FieldType) string {
	if _, ok := t.(Union); ok {
		return "(" + t.String() + ")"
	}
	return t.String()
}

// Equal is structural equality over FieldType
func Equal(a, b FieldType) bool {
	switch a := a.(type) {
	case Primitive:
		b, ok := b.(Primitive)
		return ok && a.Kind == b.Kind
	case Literal:
		b, ok := b.(Literal)
		return ok && a.Value == b.Value
	case List:
		b, ok := b.(List)
		return ok && Equal(a.Elem, b.Elem)
	case Map:
		b, ok := b.(Map)
		return ok && Equal(a.Key, b.Key) && Equal(a.Value, b.Value)
	case Tuple:
		b, ok := b.(Tuple)
		return ok && equalAll(a.Items, b.Items)
	case Union:
		b, ok := b.(Union)
		return ok && equalAll(a.Items, b.Items)
	case Optional:
		b, ok := b.(Optional)
		return ok && Equal(a.Inner, b.Inner)
	case Class:
		b, ok := b.(Class)
		return ok && a.Name == b.Name
	case Enum:
		b, ok := b.(Enum)
		return ok && a.Name == b.Name
	case RecursiveTypeAlias:
		b, ok := b.(RecursiveTypeAlias)
		return ok && a.Name == b.Name
	case Constrained:
		b, ok := b.(Constrained)
		return ok && Equal(a.Base, b.Base) && equalConstraints(a.Constraints, b.Constraints)
	case nil:
		return b == nil
	}
	return false
}

func equalAll(a, b []FieldType) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !Equal(a[i], b[i]) {
			return false
		}
	}
	return true
}

// IsOptional reports whether a value of t may be null or missing
func IsOptional(t FieldType) bool {
	switch t := t.(type) {
	case Optional:
		return true
	case Primitive:
		return t.Kind == KindNull
	case Union:
		for _, item := range t.Items {
			if IsOptional(item) {
				return true
			}
		}
		return false
	case Constrained:
		return IsOptional(t.Base)
	default:
		return false
	}
}

// Children returns the types directly nested in t
func Children(t FieldType) []FieldType {
	switch t := t.(type) {
	case List:
		return []FieldType{t.Elem}
	case Map:
		return []FieldType{t.Key, t.Value}
	case Tuple:
		return t.Items
	case Union:
		return t.Items
	case Optional:
		return []FieldType{t.Inner}
	case Constrained:
		return []FieldType{t.Base}
	default:
		return nil
	}
}

// Walk calls f for t and every type nested in it, depth first.
// Named types are not followed.
func Walk(t FieldType, f func(FieldType) bool) {
	if !f(t) {
		return
	}
	for _, child := range Children(t) {
		Walk(child, f)
	}
}
