package ir

import (
	"github.com/cottand/bamlc/frontend/ast"
)

// Attributes are the non-constraint attributes of a declaration, a field or an enum value
type Attributes struct {
	Alias       string
	Description string
	Dynamic     bool
	Skip        bool
	// Meta holds attributes that are not understood by the compiler,
	// which are only kept when Config.Strict is false
	Meta map[string]string
}

// Node wraps every entity of the IntermediateRepr with its attributes,
// its constraints and where it was declared
type Node[T any] struct {
	Elem        T
	Attributes  Attributes
	Constraints []Constraint
	Span        ast.Range
}

type EnumDef struct {
	Name   string
	Values []*Node[EnumMember]
}

// ValueNames returns the names of the enum's values, skipped ones included
func (e EnumDef) ValueNames() []string {
	names := make([]string, len(e.Values))
	for i, v := range e.Values {
		names[i] = v.Elem.Name
	}
	return names
}

// HasValue reports whether name is one of the enum's values
func (e EnumDef) HasValue(name string) bool {
	for _, v := range e.Values {
		if v.Elem.Name == name {
			return true
		}
	}
	return false
}

type EnumMember struct {
	Name string
}

type ClassDef struct {
	Name   string
	Fields []*Node[Field]
}

// Field returns the field called name
func (c ClassDef) Field(name string) (*Node[Field], bool) {
	for _, f := range c.Fields {
		if f.Elem.Name == name {
			return f, true
		}
	}
	return nil, false
}

type Field struct {
	Name string
	Type FieldType
}

type Param struct {
	Name string
	Type FieldType
}

type FunctionDef struct {
	Name   string
	Inputs []Param
	Output FieldType
	Client string
	Prompt string
	Tests  []*Node[TestCaseDef]
}

type ClientDef struct {
	Name        string
	Provider    string
	RetryPolicy string
	Options     map[string]any
}

type RetryStrategy struct {
	Type       string
	DelayMs    int
	Multiplier float64
	MaxDelayMs int
}

type RetryPolicyDef struct {
	Name       string
	MaxRetries int
	Strategy   RetryStrategy
	Options    map[string]any
}

type TemplateStringDef struct {
	Name    string
	Params  []Param
	Content string
}

// TestArg is a named argument of a test case, decoded from the schema as a Value
type TestArg struct {
	Name  string
	Value Value
}

// TestCaseDef runs Functions with Args. Its Node's constraints are evaluated against each result
type TestCaseDef struct {
	Name      string
	Functions []string
	Args      []TestArg
}

// ArgsMap returns the arguments keyed by name
func (t TestCaseDef) ArgsMap() map[string]Value {
	m := make(map[string]Value, len(t.Args))
	for _, a := range t.Args {
		m[a.Name] = a.Value
	}
	return m
}
