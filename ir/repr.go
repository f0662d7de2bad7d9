package ir

import (
	"fmt"
	"slices"

	"github.com/benbjohnson/immutable"
	"github.com/cottand/bamlc/frontend/ast"
	"github.com/cottand/bamlc/internal/log"
	"github.com/cottand/bamlc/util"
	"github.com/hashicorp/go-set/v3"
)

var logger = log.DefaultLogger.With("section", "ir")

// Config controls how strictly FromSchema validates a schema
type Config struct {
	// Strict makes unknown attributes an error. When false they are kept in Attributes.Meta
	Strict bool
}

// IntermediateRepr is the compiled form of a schema.
// It is immutable once built, and safe to share between goroutines.
type IntermediateRepr struct {
	Enums           []*Node[EnumDef]
	Classes         []*Node[ClassDef]
	Functions       []*Node[FunctionDef]
	Clients         []*Node[ClientDef]
	RetryPolicies   []*Node[RetryPolicyDef]
	TemplateStrings []*Node[TemplateStringDef]

	// FiniteRecursiveCycles are clusters of classes that reference each other
	// through optional, list or map fields
	FiniteRecursiveCycles []*set.Set[string]
	// StructuralRecursiveAliasCycles are clusters of aliases that reference each other
	// through lists or maps. Members are referenced as RecursiveTypeAlias
	StructuralRecursiveAliasCycles []*AliasCycle

	// kinds maps every class, enum and recursive alias name to what it denotes
	kinds *immutable.Map[string, ast.DeclKind]
}

// AliasCycle maps the aliases of one structural recursive cycle to their resolved types,
// in the order the aliases were discovered
type AliasCycle struct {
	names []string
	types map[string]FieldType
}

func newAliasCycle() *AliasCycle {
	return &AliasCycle{types: make(map[string]FieldType)}
}

func (c *AliasCycle) set(name string, t FieldType) {
	if _, ok := c.types[name]; !ok {
		c.names = append(c.names, name)
	}
	c.types[name] = t
}

func (c *AliasCycle) Get(name string) (FieldType, bool) {
	t, ok := c.types[name]
	return t, ok
}

func (c *AliasCycle) Names() []string { return slices.Clone(c.names) }

func (c *AliasCycle) Len() int { return len(c.names) }

// ResolveRecursiveAlias returns the type a RecursiveTypeAlias stands for
func (r *IntermediateRepr) ResolveRecursiveAlias(name string) (FieldType, bool) {
	for _, cycle := range r.StructuralRecursiveAliasCycles {
		if t, ok := cycle.Get(name); ok {
			return t, true
		}
	}
	return nil, false
}

// IsRecursiveAlias reports whether name is part of a structural recursive alias cycle
func (r *IntermediateRepr) IsRecursiveAlias(name string) bool {
	_, ok := r.ResolveRecursiveAlias(name)
	return ok
}

// IsRecursiveClass reports whether name belongs to a finite recursive cycle of classes
func (r *IntermediateRepr) IsRecursiveClass(name string) bool {
	for _, cycle := range r.FiniteRecursiveCycles {
		if cycle.Contains(name) {
			return true
		}
	}
	return false
}

// Kind reports whether name is a class, an enum or a recursive type alias
func (r *IntermediateRepr) Kind(name string) (ast.DeclKind, bool) {
	if r.kinds == nil {
		return 0, false
	}
	return r.kinds.Get(name)
}

func (r *IntermediateRepr) indexNames() {
	kinds := immutable.NewMap[string, ast.DeclKind](nil)
	for _, c := range r.Classes {
		kinds = kinds.Set(c.Elem.Name, ast.KindClass)
	}
	for _, e := range r.Enums {
		kinds = kinds.Set(e.Elem.Name, ast.KindEnum)
	}
	for _, cycle := range r.StructuralRecursiveAliasCycles {
		for _, name := range cycle.names {
			kinds = kinds.Set(name, ast.KindTypeAlias)
		}
	}
	r.kinds = kinds
}

// NotFoundError is returned by the Find methods when nothing has the requested name
type NotFoundError struct {
	Kind        ast.DeclKind
	Name        string
	Suggestions []string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s '%s' not found%s", e.Kind, e.Name, util.DidYouMean(e.Suggestions))
}

func find[T any](kind ast.DeclKind, nodes []*Node[T], name string, nameOf func(T) string) (*Node[T], error) {
	for _, n := range nodes {
		if nameOf(n.Elem) == name {
			return n, nil
		}
	}
	candidates := make([]string, len(nodes))
	for i, n := range nodes {
		candidates[i] = nameOf(n.Elem)
	}
	return nil, &NotFoundError{Kind: kind, Name: name, Suggestions: util.ClosestMatches(name, candidates)}
}

func (r *IntermediateRepr) FindClass(name string) (*Node[ClassDef], error) {
	return find(ast.KindClass, r.Classes, name, func(c ClassDef) string { return c.Name })
}

func (r *IntermediateRepr) FindEnum(name string) (*Node[EnumDef], error) {
	return find(ast.KindEnum, r.Enums, name, func(e EnumDef) string { return e.Name })
}

func (r *IntermediateRepr) FindFunction(name string) (*Node[FunctionDef], error) {
	return find(ast.KindFunction, r.Functions, name, func(f FunctionDef) string { return f.Name })
}

func (r *IntermediateRepr) FindClient(name string) (*Node[ClientDef], error) {
	return find(ast.KindClient, r.Clients, name, func(c ClientDef) string { return c.Name })
}

func (r *IntermediateRepr) FindRetryPolicy(name string) (*Node[RetryPolicyDef], error) {
	return find(ast.KindRetryPolicy, r.RetryPolicies, name, func(p RetryPolicyDef) string { return p.Name })
}

func (r *IntermediateRepr) FindTemplateString(name string) (*Node[TemplateStringDef], error) {
	return find(ast.KindTemplateString, r.TemplateStrings, name, func(t TemplateStringDef) string { return t.Name })
}

// FindTest looks for a test case of the given function
func (r *IntermediateRepr) FindTest(function, test string) (*Node[FunctionDef], *Node[TestCaseDef], error) {
	fn, err := r.FindFunction(function)
	if err != nil {
		return nil, nil, err
	}
	tc, err := find(ast.KindTestCase, fn.Elem.Tests, test, func(t TestCaseDef) string { return t.Name })
	if err != nil {
		return nil, nil, err
	}
	return fn, tc, nil
}
