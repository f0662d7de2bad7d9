package ast

import (
	"strconv"
	"strings"
)

// Type is a type expression as written in the schema, before names are resolved
type Type interface {
	Positioner
	Attrs() []Attribute
	String() string
	typeNode()
}

var (
	_ Type = (*PrimitiveType)(nil)
	_ Type = (*LiteralType)(nil)
	_ Type = (*SymbolType)(nil)
	_ Type = (*ListType)(nil)
	_ Type = (*MapType)(nil)
	_ Type = (*UnionType)(nil)
	_ Type = (*TupleType)(nil)
	_ Type = (*OptionalType)(nil)
)

// Primitive type names
const (
	PrimInt    = "int"
	PrimFloat  = "float"
	PrimBool   = "bool"
	PrimString = "string"
	PrimNull   = "null"
	PrimImage  = "image"
	PrimAudio  = "audio"
)

var primitiveNames = map[string]bool{
	PrimInt: true, PrimFloat: true, PrimBool: true, PrimString: true,
	PrimNull: true, PrimImage: true, PrimAudio: true,
}

func IsPrimitiveName(name string) bool { return primitiveNames[name] }

type PrimitiveType struct {
	Range
	Attributed
	Name string
}

func (*PrimitiveType) typeNode()         {}
func (t *PrimitiveType) String() string { return t.Name + showAttrs(t.Attributes) }

// LiteralType is a single permitted value. Value is a bool, int64 or string
type LiteralType struct {
	Range
	Attributed
	Value any
}

func (*LiteralType) typeNode() {}
func (t *LiteralType) String() string {
	var s string
	switch v := t.Value.(type) {
	case string:
		s = strconv.Quote(v)
	case int64:
		s = strconv.FormatInt(v, 10)
	case bool:
		s = strconv.FormatBool(v)
	}
	return s + showAttrs(t.Attributes)
}

// SymbolType references a class, an enum or a type alias by name
type SymbolType struct {
	Range
	Attributed
	Name string
}

func (*SymbolType) typeNode()         {}
func (t *SymbolType) String() string { return t.Name + showAttrs(t.Attributes) }

type ListType struct {
	Range
	Attributed
	Elem Type
}

func (*ListType) typeNode() {}
func (t *ListType) String() string {
	return wrapComposite(t.Elem) + "[]" + showAttrs(t.Attributes)
}

type MapType struct {
	Range
	Attributed
	Key, Value Type
}

func (*MapType) typeNode() {}
func (t *MapType) String() string {
	return "map<" + t.Key.String() + ", " + t.Value.String() + ">" + showAttrs(t.Attributes)
}

type UnionType struct {
	Range
	Attributed
	Items []Type
}

func (*UnionType) typeNode() {}
func (t *UnionType) String() string {
	parts := make([]string, len(t.Items))
	for i, item := range t.Items {
		parts[i] = item.String()
	}
	s := strings.Join(parts, " | ")
	if len(t.Attributes) > 0 {
		return "(" + s + ")" + showAttrs(t.Attributes)
	}
	return s
}

type TupleType struct {
	Range
	Attributed
	Items []Type
}

func (*TupleType) typeNode() {}
func (t *TupleType) String() string {
	parts := make([]string, len(t.Items))
	for i, item := range t.Items {
		parts[i] = item.String()
	}
	return "(" + strings.Join(parts, ", ") + ")" + showAttrs(t.Attributes)
}

type OptionalType struct {
	Range
	Attributed
	Inner Type
}

func (*OptionalType) typeNode() {}
func (t *OptionalType) String() string {
	return wrapComposite(t.Inner) + "?" + showAttrs(t.Attributes)
}

func wrapComposite(t Type) string {
	if u, ok := t.(*UnionType); ok && len(u.Attributes) == 0 {
		return "(" + u.String() + ")"
	}
	return t.String()
}

func showAttrs(attrs []Attribute) string {
	if len(attrs) == 0 {
		return ""
	}
	sb := strings.Builder{}
	for _, attr := range attrs {
		sb.WriteString(" ")
		sb.WriteString(attr.String())
	}
	return sb.String()
}

// Inspect traverses t depth-first, calling f for every node. Children are skipped when f returns false
func Inspect(t Type, f func(Type) bool) {
	if t == nil || !f(t) {
		return
	}
	switch t := t.(type) {
	case *ListType:
		Inspect(t.Elem, f)
	case *MapType:
		Inspect(t.Key, f)
		Inspect(t.Value, f)
	case *UnionType:
		for _, item := range t.Items {
			Inspect(item, f)
		}
	case *TupleType:
		for _, item := range t.Items {
			Inspect(item, f)
		}
	case *OptionalType:
		Inspect(t.Inner, f)
	}
}
