package ast

import "strings"

// Attribute is an annotation written as @name(args) on a type or field,
// or @@name(args) on a whole class or enum declaration
type Attribute struct {
	Range
	Name string
	// Label is the first argument of @assert and @check, it may be empty for @assert
	Label string
	// Value is the string argument of @alias/@description, or the raw
	// expression (without the surrounding {{ }}) of @assert/@check
	Value string
	// Block is true for @@ attributes
	Block bool
}

// Well-known attribute names
const (
	AttrAlias       = "alias"
	AttrDescription = "description"
	AttrSkip        = "skip"
	AttrDynamic     = "dynamic"
	AttrAssert      = "assert"
	AttrCheck       = "check"
)

func (a Attribute) IsConstraint() bool {
	return a.Name == AttrAssert || a.Name == AttrCheck
}

func (a Attribute) String() string {
	sb := strings.Builder{}
	sb.WriteString("@")
	if a.Block {
		sb.WriteString("@")
	}
	sb.WriteString(a.Name)
	switch {
	case a.IsConstraint():
		sb.WriteString("(")
		if a.Label != "" {
			sb.WriteString(a.Label + ", ")
		}
		sb.WriteString("{{ " + a.Value + " }})")
	case a.Value != "":
		sb.WriteString("(\"" + a.Value + "\")")
	}
	return sb.String()
}

// Attributed is embedded by every node that can carry attributes
type Attributed struct {
	Attributes []Attribute
}

func (a Attributed) Attrs() []Attribute { return a.Attributes }

// Attr returns the last attribute with the given name, as later attributes override earlier ones
func (a Attributed) Attr(name string) (Attribute, bool) {
	for i := len(a.Attributes) - 1; i >= 0; i-- {
		if a.Attributes[i].Name == name {
			return a.Attributes[i], true
		}
	}
	return Attribute{}, false
}

func (a Attributed) HasAttr(name string) bool {
	_, ok := a.Attr(name)
	return ok
}

// Constraints returns the @assert and @check attributes in declaration order
func (a Attributed) Constraints() []Attribute {
	var out []Attribute
	for _, attr := range a.Attributes {
		if attr.IsConstraint() {
			out = append(out, attr)
		}
	}
	return out
}
