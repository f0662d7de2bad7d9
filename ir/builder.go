package ir

import (
	"cmp"
	"go/token"
	"slices"

	"github.com/cottand/bamlc/frontend/ast"
	"github.com/cottand/bamlc/frontend/ilerr"
	"github.com/cottand/bamlc/jinja"
	"github.com/cottand/bamlc/util"
	"github.com/hashicorp/go-set/v3"
)

type attrTarget string

const (
	onClass     attrTarget = "a class"
	onField     attrTarget = "a field"
	onEnum      attrTarget = "an enum"
	onEnumValue attrTarget = "an enum value"
	onType      attrTarget = "a type"
	onTestCase  attrTarget = "a test"
)

var allowedAttributes = map[attrTarget]*set.Set[string]{
	onClass:     set.From([]string{ast.AttrAlias, ast.AttrDescription, ast.AttrDynamic, ast.AttrAssert, ast.AttrCheck}),
	onField:     set.From([]string{ast.AttrAlias, ast.AttrDescription, ast.AttrSkip, ast.AttrAssert, ast.AttrCheck}),
	onEnum:      set.From([]string{ast.AttrAlias, ast.AttrDescription, ast.AttrDynamic, ast.AttrAssert, ast.AttrCheck}),
	onEnumValue: set.From([]string{ast.AttrAlias, ast.AttrDescription, ast.AttrSkip}),
	onType:      set.From([]string{ast.AttrAssert, ast.AttrCheck}),
	onTestCase:  set.From([]string{ast.AttrAssert, ast.AttrCheck}),
}

// builder holds the state of a single FromSchema call
type builder struct {
	schema *ast.Schema
	config Config
	errs   *ilerr.Errors

	recursiveAliases *set.Set[string]
	aliasTypes       map[string]FieldType
	expanding        *set.Set[string]
}

// FromSchema validates schema and compiles it into an IntermediateRepr.
//
// Name and attribute validation runs first. Cycle validation only runs when
// that found no problems, and the IntermediateRepr is only returned when
// there are no errors at all.
func FromSchema(schema *ast.Schema, config Config) (*IntermediateRepr, *ilerr.Errors) {
	b := newBuilder(schema, config)

	b.validateNames()
	b.validateTypes()
	b.validateReferences()
	if b.errs.HasError() {
		return nil, b.errs
	}

	for _, cycle := range infiniteAliasCycles(schema) {
		b.errs = b.errs.With(ilerr.New(ilerr.NewAliasCycle{
			Positioner: schema.Alias(cycle[0]).Range,
			Names:      cycle,
		}))
	}
	if b.errs.HasError() {
		return nil, b.errs
	}

	repr := &IntermediateRepr{}
	structural := structuralAliasCycles(schema)
	for _, cycle := range structural {
		b.recursiveAliases.InsertSlice(cycle)
	}
	for _, cycle := range structural {
		table := newAliasCycle()
		for _, name := range cycle {
			table.set(name, b.fieldType(schema.Alias(name).Type))
		}
		repr.StructuralRecursiveAliasCycles = append(repr.StructuralRecursiveAliasCycles, table)
	}

	for _, e := range schema.Enums {
		repr.Enums = append(repr.Enums, b.enum(e))
	}
	for _, c := range schema.Classes {
		repr.Classes = append(repr.Classes, b.class(c))
	}
	sortByName(repr.Enums, func(e EnumDef) string { return e.Name })
	sortByName(repr.Classes, func(c ClassDef) string { return c.Name })
	repr.indexNames()

	required, all := repr.classGraphs()
	for _, cycle := range tarjan(required) {
		class, _ := repr.FindClass(cycle[0])
		b.errs = b.errs.With(ilerr.New(ilerr.NewClassCycle{
			Positioner: class.Span,
			Names:      cycle,
		}))
	}
	for _, cycle := range tarjan(all) {
		repr.FiniteRecursiveCycles = append(repr.FiniteRecursiveCycles, set.From(cycle))
	}

	for _, f := range schema.Functions {
		repr.Functions = append(repr.Functions, b.function(f))
	}
	for _, c := range schema.Clients {
		repr.Clients = append(repr.Clients, &Node[ClientDef]{
			Elem: ClientDef{Name: c.Name, Provider: c.Provider, RetryPolicy: c.RetryPolicy, Options: c.Options},
			Span: c.Range,
		})
	}
	for _, p := range schema.RetryPolicies {
		repr.RetryPolicies = append(repr.RetryPolicies, &Node[RetryPolicyDef]{
			Elem: RetryPolicyDef{
				Name:       p.Name,
				MaxRetries: p.MaxRetries,
				Strategy:   RetryStrategy(p.Strategy),
				Options:    p.Options,
			},
			Span: p.Range,
		})
	}
	for _, t := range schema.TemplateStrings {
		repr.TemplateStrings = append(repr.TemplateStrings, &Node[TemplateStringDef]{
			Elem: TemplateStringDef{Name: t.Name, Params: b.params(t.Params), Content: t.Content},
			Span: t.Range,
		})
	}
	for _, tc := range schema.Tests {
		b.attachTest(repr, tc)
	}
	sortByName(repr.Functions, func(f FunctionDef) string { return f.Name })
	sortByName(repr.Clients, func(c ClientDef) string { return c.Name })
	sortByName(repr.RetryPolicies, func(p RetryPolicyDef) string { return p.Name })
	sortByName(repr.TemplateStrings, func(t TemplateStringDef) string { return t.Name })

	if b.errs.HasError() {
		return nil, b.errs
	}
	logger.Debug("built IR", "classes", len(repr.Classes), "enums", len(repr.Enums),
		"functions", len(repr.Functions), "recursiveAliasCycles", len(repr.StructuralRecursiveAliasCycles),
		"finiteClassCycles", len(repr.FiniteRecursiveCycles))
	return repr, nil
}

func newBuilder(schema *ast.Schema, config Config) *builder {
	return &builder{
		schema:           schema,
		config:           config,
		recursiveAliases: set.New[string](0),
		aliasTypes:       make(map[string]FieldType),
		expanding:        set.New[string](0),
	}
}

// ParseFieldType resolves a type expression like `Foo[]` or `map<string, int>`
// against schema, which must be the one the IntermediateRepr was built from
func ParseFieldType(schema *ast.Schema, src string) (FieldType, error) {
	t, err := ast.ParseType(src, token.NoPos)
	if err != nil {
		return nil, err
	}
	b := newBuilder(schema, Config{})
	b.checkType(t)
	if b.errs.HasError() {
		return nil, b.errs
	}
	for _, cycle := range structuralAliasCycles(schema) {
		b.recursiveAliases.InsertSlice(cycle)
	}
	return b.fieldType(t), nil
}

func sortByName[T any](nodes []*Node[T], name func(T) string) {
	slices.SortStableFunc(nodes, func(a, b *Node[T]) int {
		return cmp.Compare(name(a.Elem), name(b.Elem))
	})
}

// validateNames reports declarations sharing a name. Tests have their own namespace
func (b *builder) validateNames() {
	seen := make(map[string]ast.DeclKind)
	seenTests := set.New[string](len(b.schema.Tests))
	for _, decl := range b.schema.Declarations() {
		if decl.Kind() == ast.KindTestCase {
			if !seenTests.Insert(decl.DeclName()) {
				b.errs = b.errs.With(ilerr.New(ilerr.NewDuplicateName{
					Positioner: decl, Name: decl.DeclName(), Kind: ast.KindTestCase, First: ast.KindTestCase,
				}))
			}
			continue
		}
		if first, ok := seen[decl.DeclName()]; ok {
			b.errs = b.errs.With(ilerr.New(ilerr.NewDuplicateName{
				Positioner: decl, Name: decl.DeclName(), Kind: decl.Kind(), First: first,
			}))
			continue
		}
		seen[decl.DeclName()] = decl.Kind()
	}
}

// validateTypes reports undefined type names and invalid map keys in every type expression
func (b *builder) validateTypes() {
	check := b.checkType
	for _, c := range b.schema.Classes {
		b.attributes(c.Attributes, onClass)
		for _, f := range c.Fields {
			b.attributes(f.Attributes, onField)
			check(f.Type)
		}
	}
	for _, e := range b.schema.Enums {
		b.attributes(e.Attributes, onEnum)
		for _, v := range e.Values {
			b.attributes(v.Attributes, onEnumValue)
		}
	}
	for _, a := range b.schema.Aliases {
		check(a.Type)
	}
	for _, f := range b.schema.Functions {
		for _, p := range f.Params {
			check(p.Type)
		}
		check(f.Return)
	}
	for _, t := range b.schema.TemplateStrings {
		for _, p := range t.Params {
			check(p.Type)
		}
	}
	for _, tc := range b.schema.Tests {
		b.attributes(tc.Attributes, onTestCase)
	}
}

func (b *builder) checkType(t ast.Type) {
	ast.Inspect(t, func(t ast.Type) bool {
		switch t := t.(type) {
		case *ast.SymbolType:
			if _, ok := b.schema.Resolve(t.Name); !ok {
				b.errs = b.errs.With(ilerr.New(ilerr.NewUndefinedType{
					Positioner:  t.Range,
					Name:        t.Name,
					Suggestions: util.ClosestMatches(t.Name, b.schema.TypeNames()),
				}))
			}
		case *ast.MapType:
			if !b.validMapKey(t.Key, set.New[string](0)) {
				b.errs = b.errs.With(ilerr.New(ilerr.NewInvalidMapKey{Positioner: t.Key, KeyType: t.Key.String()}))
			}
		}
		b.attributes(t.Attrs(), onType)
		return true
	})
}

// validMapKey accepts string, enums, string literals and unions of those literals
func (b *builder) validMapKey(t ast.Type, seenAliases *set.Set[string]) bool {
	switch t := t.(type) {
	case *ast.PrimitiveType:
		return t.Name == ast.PrimString
	case *ast.LiteralType:
		_, isString := t.Value.(string)
		return isString
	case *ast.UnionType:
		for _, item := range t.Items {
			if _, isLiteral := item.(*ast.LiteralType); !isLiteral {
				if _, isUnion := item.(*ast.UnionType); !isUnion {
					return false
				}
			}
			if !b.validMapKey(item, seenAliases) {
				return false
			}
		}
		return true
	case *ast.SymbolType:
		kind, ok := b.schema.Resolve(t.Name)
		switch {
		case !ok:
			// reported as an undefined type
			return true
		case kind == ast.KindEnum:
			return true
		case kind == ast.KindTypeAlias && seenAliases.Insert(t.Name):
			return b.validMapKey(b.schema.Alias(t.Name).Type, seenAliases)
		}
	}
	return false
}

// validateReferences reports functions, clients and tests that point at missing declarations
func (b *builder) validateReferences() {
	names := func(decls []ast.Declaration) []string {
		out := make([]string, len(decls))
		for i, d := range decls {
			out[i] = d.DeclName()
		}
		return out
	}
	var clients, policies, functions []ast.Declaration
	for _, c := range b.schema.Clients {
		clients = append(clients, c)
	}
	for _, p := range b.schema.RetryPolicies {
		policies = append(policies, p)
	}
	for _, f := range b.schema.Functions {
		functions = append(functions, f)
	}
	missing := func(at ast.Positioner, kind ast.DeclKind, name, from string, candidates []ast.Declaration) {
		if slices.Contains(names(candidates), name) {
			return
		}
		b.errs = b.errs.With(ilerr.New(ilerr.NewUndefinedReference{
			Positioner:  at,
			Name:        name,
			Kind:        kind,
			From:        from,
			Suggestions: util.ClosestMatches(name, names(candidates)),
		}))
	}

	for _, f := range b.schema.Functions {
		if f.Client != "" {
			missing(f, ast.KindClient, f.Client, f.Name, clients)
		}
	}
	for _, c := range b.schema.Clients {
		if c.RetryPolicy != "" {
			missing(c, ast.KindRetryPolicy, c.RetryPolicy, c.Name, policies)
		}
	}
	for _, tc := range b.schema.Tests {
		for _, fn := range tc.Functions {
			missing(tc, ast.KindFunction, fn, tc.Name, functions)
		}
	}
	for _, p := range b.schema.RetryPolicies {
		invalid := func(reason string) {
			b.errs = b.errs.With(ilerr.New(ilerr.NewInvalidRetryPolicy{Positioner: p, Name: p.Name, Reason: reason}))
		}
		switch {
		case p.MaxRetries < 0:
			invalid("max_retries cannot be negative")
		case p.Strategy.Type != ast.StrategyConstantDelay && p.Strategy.Type != ast.StrategyExponentialBackoff:
			invalid("unknown strategy '" + p.Strategy.Type + "'")
		case p.Strategy.DelayMs < 0 || p.Strategy.MaxDelayMs < 0:
			invalid("delays cannot be negative")
		case p.Strategy.Type == ast.StrategyExponentialBackoff && p.Strategy.Multiplier <= 0:
			invalid("multiplier must be positive")
		}
	}
}

// attributes reports the attributes that are not allowed on target and the invalid constraints.
// It runs once per declaration, during validation.
func (b *builder) attributes(attrs []ast.Attribute, target attrTarget) {
	for _, attr := range attrs {
		if !allowedAttributes[target].Contains(attr.Name) {
			if b.config.Strict {
				b.errs = b.errs.With(ilerr.New(ilerr.NewUnknownAttribute{Positioner: attr.Range, Name: attr.Name, On: string(target)}))
				continue
			}
			logger.Debug("keeping unknown attribute as metadata", "name", attr.Name, "on", target)
			continue
		}
		if attr.IsConstraint() {
			b.constraint(attr)
		}
	}
}

// attributesOf converts attrs that were validated already. The ones not allowed on target are kept as metadata.
func attributesOf(attrs []ast.Attribute, target attrTarget) Attributes {
	var out Attributes
	for _, attr := range attrs {
		if !allowedAttributes[target].Contains(attr.Name) {
			if out.Meta == nil {
				out.Meta = make(map[string]string)
			}
			out.Meta[attr.Name] = attr.Value
			continue
		}
		switch attr.Name {
		case ast.AttrAlias:
			out.Alias = attr.Value
		case ast.AttrDescription:
			out.Description = attr.Value
		case ast.AttrDynamic:
			out.Dynamic = true
		case ast.AttrSkip:
			out.Skip = true
		}
	}
	return out
}

func (b *builder) constraint(attr ast.Attribute) (Constraint, bool) {
	if attr.Value == "" {
		b.errs = b.errs.With(ilerr.New(ilerr.NewEmptyConstraint{Positioner: attr.Range, Attribute: attr.Name}))
		return Constraint{}, false
	}
	if _, err := jinja.Compile(attr.Value); err != nil {
		b.errs = b.errs.With(ilerr.New(ilerr.NewInvalidExpression{Positioner: attr.Range, Attribute: attr.Name, Cause: err}))
		return Constraint{}, false
	}
	c := Constraint{Level: Assert, Expression: attr.Value, Label: attr.Label}
	if attr.Name == ast.AttrCheck {
		c.Level = Check
		if attr.Label == "" {
			b.errs = b.errs.With(ilerr.New(ilerr.NewCheckWithoutLabel{Positioner: attr.Range, Expression: attr.Value}))
			return Constraint{}, false
		}
	}
	return c, true
}

// constraintsOf converts only the constraints of attrs, as they were validated already
func constraintsOf(attrs []ast.Attribute) []Constraint {
	var out []Constraint
	for _, attr := range attrs {
		if !attr.IsConstraint() || attr.Value == "" {
			continue
		}
		c := Constraint{Level: Assert, Expression: attr.Value, Label: attr.Label}
		if attr.Name == ast.AttrCheck {
			c.Level = Check
		}
		out = append(out, c)
	}
	return out
}

func primitiveKind(name string) PrimitiveKind {
	switch name {
	case ast.PrimInt:
		return KindInt
	case ast.PrimFloat:
		return KindFloat
	case ast.PrimBool:
		return KindBool
	case ast.PrimString:
		return KindString
	case ast.PrimImage:
		return KindImage
	case ast.PrimAudio:
		return KindAudio
	default:
		return KindNull
	}
}

// fieldType resolves a type expression. Aliases outside of recursive cycles are
// replaced by what they stand for, so only RecursiveTypeAlias remains by name.
func (b *builder) fieldType(t ast.Type) FieldType {
	var ft FieldType
	switch t := t.(type) {
	case *ast.PrimitiveType:
		ft = Primitive{Kind: primitiveKind(t.Name)}
	case *ast.LiteralType:
		ft = Literal{Value: t.Value}
	case *ast.SymbolType:
		ft = b.symbol(t.Name)
	case *ast.ListType:
		ft = List{Elem: b.fieldType(t.Elem)}
	case *ast.MapType:
		ft = Map{Key: b.fieldType(t.Key), Value: b.fieldType(t.Value)}
	case *ast.UnionType:
		items := make([]FieldType, len(t.Items))
		for i, item := range t.Items {
			items[i] = b.fieldType(item)
		}
		ft = Union{Items: items}
	case *ast.TupleType:
		items := make([]FieldType, len(t.Items))
		for i, item := range t.Items {
			items[i] = b.fieldType(item)
		}
		ft = Tuple{Items: items}
	case *ast.OptionalType:
		ft = Optional{Inner: b.fieldType(t.Inner)}
	default:
		ft = Null
	}
	if constraints := constraintsOf(t.Attrs()); len(constraints) > 0 {
		ft = Constrained{Base: ft, Constraints: constraints}
	}
	return ft
}

func (b *builder) symbol(name string) FieldType {
	kind, _ := b.schema.Resolve(name)
	switch kind {
	case ast.KindClass:
		return Class{Name: name}
	case ast.KindEnum:
		return Enum{Name: name}
	case ast.KindTypeAlias:
		if b.recursiveAliases.Contains(name) {
			return RecursiveTypeAlias{Name: name}
		}
		if resolved, ok := b.aliasTypes[name]; ok {
			return resolved
		}
		if !b.expanding.Insert(name) {
			// unreachable once alias cycles were rejected
			return Null
		}
		resolved := b.fieldType(b.schema.Alias(name).Type)
		b.expanding.Remove(name)
		b.aliasTypes[name] = resolved
		return resolved
	}
	return Null
}

func (b *builder) enum(e *ast.Enum) *Node[EnumDef] {
	attrs := attributesOf(e.Attributes, onEnum)
	node := &Node[EnumDef]{
		Elem:        EnumDef{Name: e.Name},
		Attributes:  attrs,
		Constraints: constraintsOf(e.Attributes),
		Span:        e.Range,
	}
	for _, v := range e.Values {
		valueAttrs := attributesOf(v.Attributes, onEnumValue)
		node.Elem.Values = append(node.Elem.Values, &Node[EnumMember]{
			Elem:       EnumMember{Name: v.Name},
			Attributes: valueAttrs,
			Span:       v.Range,
		})
	}
	return node
}

func (b *builder) class(c *ast.Class) *Node[ClassDef] {
	attrs := attributesOf(c.Attributes, onClass)
	node := &Node[ClassDef]{
		Elem:        ClassDef{Name: c.Name},
		Attributes:  attrs,
		Constraints: constraintsOf(c.Attributes),
		Span:        c.Range,
	}
	for _, f := range c.Fields {
		fieldAttrs := attributesOf(f.Attributes, onField)
		t := b.fieldType(f.Type)
		// constraints written after the field apply to its whole type
		if constraints := constraintsOf(f.Attributes); len(constraints) > 0 {
			t = Constrained{Base: t, Constraints: constraints}
		}
		node.Elem.Fields = append(node.Elem.Fields, &Node[Field]{
			Elem:       Field{Name: f.Name, Type: t},
			Attributes: fieldAttrs,
			Span:       f.Range,
		})
	}
	return node
}

func (b *builder) params(params []ast.Param) []Param {
	out := make([]Param, len(params))
	for i, p := range params {
		out[i] = Param{Name: p.Name, Type: b.fieldType(p.Type)}
	}
	return out
}

func (b *builder) function(f *ast.Function) *Node[FunctionDef] {
	return &Node[FunctionDef]{
		Elem: FunctionDef{
			Name:   f.Name,
			Inputs: b.params(f.Params),
			Output: b.fieldType(f.Return),
			Client: f.Client,
			Prompt: f.Prompt,
		},
		Span: f.Range,
	}
}

// attachTest adds the test case to every function it runs
func (b *builder) attachTest(repr *IntermediateRepr, tc *ast.TestCase) {
	def := TestCaseDef{Name: tc.Name, Functions: tc.Functions}
	for _, arg := range tc.Args {
		v, err := FromAny(arg.Value)
		if err != nil {
			b.errs = b.errs.With(ilerr.New(ilerr.Unclassified{From: err, Positioner: arg.Range}))
			continue
		}
		def.Args = append(def.Args, TestArg{Name: arg.Name, Value: v})
	}
	for _, name := range tc.Functions {
		for _, fn := range repr.Functions {
			if fn.Elem.Name != name {
				continue
			}
			fn.Elem.Tests = append(fn.Elem.Tests, &Node[TestCaseDef]{
				Elem:        def,
				Constraints: constraintsOf(tc.Attributes),
				Span:        tc.Range,
			})
		}
	}
}
