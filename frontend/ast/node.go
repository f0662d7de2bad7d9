package ast

import (
	"go/token"
)

// DeclKind identifies what a top-level name denotes
type DeclKind uint8

const (
	_ DeclKind = iota
	KindClass
	KindEnum
	KindTypeAlias
	KindFunction
	KindClient
	KindRetryPolicy
	KindTemplateString
	KindTestCase
)

func (k DeclKind) String() string {
	switch k {
	case KindClass:
		return "class"
	case KindEnum:
		return "enum"
	case KindTypeAlias:
		return "type alias"
	case KindFunction:
		return "function"
	case KindClient:
		return "client"
	case KindRetryPolicy:
		return "retry policy"
	case KindTemplateString:
		return "template string"
	case KindTestCase:
		return "test"
	default:
		return "invalid"
	}
}

// Declaration is implemented by every top-level node of a Schema
type Declaration interface {
	Positioner
	DeclName() string
	Kind() DeclKind
}

type Class struct {
	Range
	Attributed
	Name   string
	Fields []Field
}

func (c *Class) DeclName() string { return c.Name }
func (c *Class) Kind() DeclKind   { return KindClass }

type Field struct {
	Range
	Attributed
	Name string
	Type Type
}

type Enum struct {
	Range
	Attributed
	Name   string
	Values []EnumValue
}

func (e *Enum) DeclName() string { return e.Name }
func (e *Enum) Kind() DeclKind   { return KindEnum }

type EnumValue struct {
	Range
	Attributed
	Name string
}

type TypeAlias struct {
	Range
	Attributed
	Name string
	Type Type
}

func (a *TypeAlias) DeclName() string { return a.Name }
func (a *TypeAlias) Kind() DeclKind   { return KindTypeAlias }

type Param struct {
	Range
	Name string
	Type Type
}

type Function struct {
	Range
	Name   string
	Params []Param
	Return Type
	// Client is the name of the Client declaration used to call this function
	Client string
	Prompt string
}

func (f *Function) DeclName() string { return f.Name }
func (f *Function) Kind() DeclKind   { return KindFunction }

type Client struct {
	Range
	Name        string
	Provider    string
	RetryPolicy string // may be empty
	Options     map[string]any
}

func (c *Client) DeclName() string { return c.Name }
func (c *Client) Kind() DeclKind   { return KindClient }

// RetryStrategy is either a constant delay or an exponential backoff
type RetryStrategy struct {
	Type       string // "constant_delay" or "exponential_backoff"
	DelayMs    int
	Multiplier float64
	MaxDelayMs int
}

const (
	StrategyConstantDelay      = "constant_delay"
	StrategyExponentialBackoff = "exponential_backoff"
)

type RetryPolicy struct {
	Range
	Name       string
	MaxRetries int
	Strategy   RetryStrategy
	Options    map[string]any
}

func (r *RetryPolicy) DeclName() string { return r.Name }
func (r *RetryPolicy) Kind() DeclKind   { return KindRetryPolicy }

type TemplateString struct {
	Range
	Name    string
	Params  []Param
	Content string
}

func (t *TemplateString) DeclName() string { return t.Name }
func (t *TemplateString) Kind() DeclKind   { return KindTemplateString }

// TestArg is a single named argument of a TestCase, kept in declaration order
type TestArg struct {
	Range
	Name  string
	Value any
}

type TestCase struct {
	Range
	Attributed
	Name      string
	Functions []string
	Args      []TestArg
}

func (t *TestCase) DeclName() string { return t.Name }
func (t *TestCase) Kind() DeclKind   { return KindTestCase }

// Schema is a validated syntax tree for one or more schema files.
// It is read-only for every pass after loading.
type Schema struct {
	Fset            *token.FileSet
	Classes         []*Class
	Enums           []*Enum
	Aliases         []*TypeAlias
	Functions       []*Function
	Clients         []*Client
	RetryPolicies   []*RetryPolicy
	TemplateStrings []*TemplateString
	Tests           []*TestCase
}

// Declarations returns every top-level declaration, grouped by kind in a fixed order
func (s *Schema) Declarations() []Declaration {
	var out []Declaration
	for _, d := range s.Classes {
		out = append(out, d)
	}
	for _, d := range s.Enums {
		out = append(out, d)
	}
	for _, d := range s.Aliases {
		out = append(out, d)
	}
	for _, d := range s.Functions {
		out = append(out, d)
	}
	for _, d := range s.Clients {
		out = append(out, d)
	}
	for _, d := range s.RetryPolicies {
		out = append(out, d)
	}
	for _, d := range s.TemplateStrings {
		out = append(out, d)
	}
	for _, d := range s.Tests {
		out = append(out, d)
	}
	return out
}

// Resolve reports whether name denotes a type (class, enum or type alias) and which one.
// If a name is declared more than once, the first declaration wins.
func (s *Schema) Resolve(name string) (DeclKind, bool) {
	for _, c := range s.Classes {
		if c.Name == name {
			return KindClass, true
		}
	}
	for _, e := range s.Enums {
		if e.Name == name {
			return KindEnum, true
		}
	}
	for _, a := range s.Aliases {
		if a.Name == name {
			return KindTypeAlias, true
		}
	}
	return 0, false
}

// TypeNames returns the names of every class, enum and type alias
func (s *Schema) TypeNames() []string {
	var names []string
	for _, c := range s.Classes {
		names = append(names, c.Name)
	}
	for _, e := range s.Enums {
		names = append(names, e.Name)
	}
	for _, a := range s.Aliases {
		names = append(names, a.Name)
	}
	return names
}

func (s *Schema) Class(name string) *Class {
	for _, c := range s.Classes {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func (s *Schema) Enum(name string) *Enum {
	for _, e := range s.Enums {
		if e.Name == name {
			return e
		}
	}
	return nil
}

func (s *Schema) Alias(name string) *TypeAlias {
	for _, a := range s.Aliases {
		if a.Name == name {
			return a
		}
	}
	return nil
}

// Position renders p as file:line:col when the Schema knows about its file
func (s *Schema) Position(p Positioner) token.Position {
	if s == nil || s.Fset == nil || p == nil || !p.Pos().IsValid() {
		return token.Position{}
	}
	return s.Fset.Position(p.Pos())
}
