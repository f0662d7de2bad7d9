package ir

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"github.com/cottand/bamlc/frontend"
	"github.com/cottand/bamlc/frontend/ilerr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func compileWith(t *testing.T, src string, config Config) (*IntermediateRepr, *ilerr.Errors) {
	t.Helper()
	schema, errs, err := frontend.NewSchemaFromBytes([]byte(src))
	require.NoError(t, err)
	require.False(t, errs.HasError(), "schema should load: %v", errs)
	return FromSchema(schema, config)
}

func compile(t *testing.T, src string) *IntermediateRepr {
	t.Helper()
	repr, errs := compileWith(t, src, Config{Strict: true})
	require.False(t, errs.HasError(), "unexpected errors: %v", errs)
	require.NotNil(t, repr)
	return repr
}

func compileErrors(t *testing.T, src string, shouldContain ...string) *ilerr.Errors {
	t.Helper()
	repr, errs := compileWith(t, src, Config{Strict: true})
	assert.Nil(t, repr)
	require.True(t, errs.HasError())
	msg := errs.Error()
	for _, s := range shouldContain {
		assert.Contains(t, msg, s)
	}
	t.Log("error message:\n" + msg)
	return errs
}

const fooSchema = `
classes:
  Foo:
    fields:
      f_int: int
      f_int_string: int | string
      f_list: int[]
`

func TestFromSchemaSortsByName(t *testing.T) {
	repr := compile(t, `
classes:
  Zeta:
    fields: {a: int}
  Alpha:
    fields: {b: Zeta}
enums:
  Mode:
    values: [ON, OFF]
  Colour:
    values: [RED]
functions:
  Second: {returns: int}
  First: {returns: Alpha}
`)
	require.Len(t, repr.Classes, 2)
	assert.Equal(t, "Alpha", repr.Classes[0].Elem.Name)
	assert.Equal(t, "Zeta", repr.Classes[1].Elem.Name)
	assert.Equal(t, "Colour", repr.Enums[0].Elem.Name)
	assert.Equal(t, "First", repr.Functions[0].Elem.Name)
	assert.Equal(t, Class{Name: "Alpha"}, repr.Functions[0].Elem.Output)

	kind, ok := repr.Kind("Mode")
	assert.True(t, ok)
	assert.Equal(t, "enum", kind.String())
}

func TestFromSchemaAttributes(t *testing.T) {
	repr := compile(t, `
classes:
  Person:
    alias: human
    dynamic: true
    attributes: '@@assert(named, {{ this.name|length > 0 }})'
    fields:
      name: string @alias("full_name") @description("their name")
      age: int? @check(adult, {{ this >= 18 }})
      secret:
        type: string
        skip: true
enums:
  Mood:
    values:
      - HAPPY @alias("glad")
      - SAD
`)
	person, err := repr.FindClass("Person")
	require.NoError(t, err)
	assert.Equal(t, "human", person.Attributes.Alias)
	assert.True(t, person.Attributes.Dynamic)
	assert.Equal(t, []Constraint{{Level: Assert, Label: "named", Expression: "this.name|length > 0"}}, person.Constraints)

	name, ok := person.Elem.Field("name")
	require.True(t, ok)
	assert.Equal(t, "full_name", name.Attributes.Alias)
	assert.Equal(t, "their name", name.Attributes.Description)
	assert.Equal(t, String, name.Elem.Type)

	age, _ := person.Elem.Field("age")
	assert.Equal(t, Constrained{
		Base:        Optional{Inner: Int},
		Constraints: []Constraint{{Level: Check, Label: "adult", Expression: "this >= 18"}},
	}, age.Elem.Type)

	secret, _ := person.Elem.Field("secret")
	assert.True(t, secret.Attributes.Skip)

	mood, err := repr.FindEnum("Mood")
	require.NoError(t, err)
	assert.Equal(t, []string{"HAPPY", "SAD"}, mood.Elem.ValueNames())
	assert.Equal(t, "glad", mood.Elem.Values[0].Attributes.Alias)
}

func TestFromSchemaInlinesAliases(t *testing.T) {
	repr := compile(t, `
types:
  Score: int @assert(positive, {{ this > 0 }})
  Scores: Score[]
classes:
  Result:
    fields:
      scores: Scores
`)
	result, err := repr.FindClass("Result")
	require.NoError(t, err)
	scores, _ := result.Elem.Field("scores")
	assert.Equal(t, List{Elem: Constrained{
		Base:        Int,
		Constraints: []Constraint{{Level: Assert, Label: "positive", Expression: "this > 0"}},
	}}, scores.Elem.Type)
	assert.Empty(t, repr.StructuralRecursiveAliasCycles)
}

func TestFromSchemaRecursiveAliases(t *testing.T) {
	repr := compile(t, `
types:
  A: A[]
  Json: int | string | bool | null | Json[] | map<string, Json>
  Nested: map<string, Nested> | Json
`)
	assert.True(t, repr.IsRecursiveAlias("A"))
	resolved, ok := repr.ResolveRecursiveAlias("A")
	require.True(t, ok)
	assert.Equal(t, List{Elem: RecursiveTypeAlias{Name: "A"}}, resolved)

	json, ok := repr.ResolveRecursiveAlias("Json")
	require.True(t, ok)
	assert.Equal(t, "int | string | bool | null | Json[] | map<string, Json>", json.String())

	// Nested only references Json, it is not part of its cycle
	require.Len(t, repr.StructuralRecursiveAliasCycles, 3)
	for _, cycle := range repr.StructuralRecursiveAliasCycles {
		assert.Equal(t, 1, cycle.Len())
	}
	kind, ok := repr.Kind("Json")
	assert.True(t, ok)
	assert.Equal(t, "type alias", kind.String())
}

func TestFromSchemaFiniteClassCycles(t *testing.T) {
	repr := compile(t, `
classes:
  Node:
    fields:
      value: int
      next: Node?
  Tree:
    fields:
      children: Forest
  Forest:
    fields:
      trees: Tree[]
  Leaf:
    fields:
      value: int
`)
	require.Len(t, repr.FiniteRecursiveCycles, 2)
	assert.True(t, repr.IsRecursiveClass("Node"))
	assert.True(t, repr.IsRecursiveClass("Tree"))
	assert.True(t, repr.IsRecursiveClass("Forest"))
	assert.False(t, repr.IsRecursiveClass("Leaf"))
}

func TestFromSchemaUnionEscapesClassCycle(t *testing.T) {
	compile(t, `
classes:
  Expr:
    fields:
      lhs: Expr | Lit
  Lit:
    fields:
      value: int
`)
	compileErrors(t, `
classes:
  A:
    fields:
      next: A | B
  B:
    fields:
      back: A
`, "these classes form a dependency cycle: A -> B -> A")
}

func TestFromSchemaTests(t *testing.T) {
	repr := compile(t, fooSchema+`
functions:
  MakeFoo:
    params:
      text: string
    returns: Foo
tests:
  Basic:
    functions: [MakeFoo]
    args:
      text: hello
    attributes: '@@check(has_int, {{ this.f_int > 0 }}) @@assert({{ this.f_list|length > 0 }})'
`)
	fn, tc, err := repr.FindTest("MakeFoo", "Basic")
	require.NoError(t, err)
	assert.Equal(t, "MakeFoo", fn.Elem.Name)
	assert.Equal(t, []TestArg{{Name: "text", Value: StringValue("hello")}}, tc.Elem.Args)
	assert.Len(t, tc.Constraints, 2)

	_, _, err = repr.FindTest("MakeFoo", "Basik")
	assert.ErrorContains(t, err, "did you mean 'Basic'")
}

func TestCompileErrors(t *testing.T) {
	cases := map[string]struct {
		src      string
		code     ilerr.ErrCode
		contains []string
	}{
		"self alias": {
			src:      "types:\n  A: A\n",
			code:     ilerr.AliasCycle,
			contains: []string{"these aliases form a dependency cycle: A -> A"},
		},
		"alias cycle through union": {
			src:      "types:\n  A: B | int\n  B: A?\n",
			code:     ilerr.AliasCycle,
			contains: []string{"these aliases form a dependency cycle: A -> B -> A"},
		},
		"class cycle": {
			src:      "classes:\n  A:\n    fields: {b: B}\n  B:\n    fields: {a: A}\n",
			code:     ilerr.ClassCycle,
			contains: []string{"these classes form a dependency cycle: A -> B -> A"},
		},
		"undefined type": {
			src:      "classes:\n  Person:\n    fields: {pet: Animl}\n  Animal:\n    fields: {name: string}\n",
			code:     ilerr.UndefinedType,
			contains: []string{"type 'Animl' is not defined", "did you mean 'Animal'"},
		},
		"duplicate": {
			src:      "classes:\n  A:\n    fields: {x: int}\nenums:\n  A:\n    values: [X]\n",
			code:     ilerr.DuplicateName,
			contains: []string{"enum 'A' has the same name as an existing class"},
		},
		"check without label": {
			src:      "types:\n  A: 'int @check({{ this > 1 }})'\n",
			code:     ilerr.CheckWithoutLabel,
			contains: []string{"needs a label"},
		},
		"map key": {
			src:      "types:\n  A: map<int, string>\n",
			code:     ilerr.InvalidMapKey,
			contains: []string{"map keys must be", "'int'"},
		},
		"unknown attribute": {
			src:      "classes:\n  A:\n    fields:\n      x: int @tag(\"v\")\n",
			code:     ilerr.UnknownAttribute,
			contains: []string{"'@tag' is not allowed on a field"},
		},
		"missing client": {
			src:      "functions:\n  F:\n    returns: int\n    client: Fats\nclients:\n  Fast: {provider: openai}\n",
			code:     ilerr.UndefinedReference,
			contains: []string{"client 'Fats' referenced by 'F' is not defined", "did you mean 'Fast'"},
		},
		"retry policy": {
			src:      "retry_policies:\n  P:\n    max_retries: -1\n",
			code:     ilerr.InvalidRetryPolicy,
			contains: []string{"max_retries cannot be negative"},
		},
		"bad expression": {
			src:      "types:\n  A: 'int @assert(ok, {{ this > }})'\n",
			code:     ilerr.InvalidExpression,
			contains: []string{"invalid expression in @assert", "could not parse 'this >'"},
		},
		"empty constraint": {
			src:      "types:\n  A: 'int @assert({{ }})'\n",
			code:     ilerr.EmptyConstraint,
			contains: []string{"@assert has an empty expression"},
		},
	}

	for name, c := range cases {
		t.Run(name, func(t *testing.T) {
			errs := compileErrors(t, c.src, c.contains...)
			assert.True(t, errs.HasCode(c.code), "expected code E%03d", c.code)
		})
	}
}

func TestCycleValidationNeedsCleanSchema(t *testing.T) {
	errs := compileErrors(t, "types:\n  A: A\n  B: Missing\n", "type 'Missing' is not defined")
	assert.False(t, errs.HasCode(ilerr.AliasCycle))
}

func TestUnknownAttributesKeptWhenNotStrict(t *testing.T) {
	repr, errs := compileWith(t, "classes:\n  A:\n    fields:\n      x: int @tag(\"v\")\n", Config{})
	require.False(t, errs.HasError())
	a, err := repr.FindClass("A")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"tag": "v"}, a.Elem.Fields[0].Attributes.Meta)
}

func TestUnknownAttributesReportedOnce(t *testing.T) {
	out := &bytes.Buffer{}
	previous := logger
	logger = slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{Level: slog.LevelDebug}))
	t.Cleanup(func() { logger = previous })

	src := "classes:\n  A:\n    attributes: '@@tag(\"c\")'\n    fields:\n      x: int @tag(\"v\")\n"
	_, errs := compileWith(t, src, Config{})
	require.False(t, errs.HasError())
	assert.Equal(t, 2, strings.Count(out.String(), "keeping unknown attribute as metadata"), out.String())

	_, errs = compileWith(t, src, Config{Strict: true})
	unknown := 0
	for _, err := range errs.Errors() {
		if err.Code() == ilerr.UnknownAttribute {
			unknown++
		}
	}
	assert.Equal(t, 2, unknown)
}

func TestErrorPositions(t *testing.T) {
	src := "classes:\n  Person:\n    fields:\n      pet: Animl\n"
	schema, _, err := frontend.NewSchemaFromBytes([]byte(src))
	require.NoError(t, err)
	_, errs := FromSchema(schema, Config{})
	require.True(t, errs.HasError())

	formatted := ilerr.FormatWithSource(errs.Errors()[0], schema)
	assert.True(t, strings.HasPrefix(formatted, "test.yaml:4:12:"), formatted)
}

func TestParseFieldType(t *testing.T) {
	schema, errs, err := frontend.NewSchemaFromBytes([]byte(fooSchema + "types:\n  A: A[]\n"))
	require.NoError(t, err)
	require.False(t, errs.HasError())

	typ, err := ParseFieldType(schema, "map<string, Foo[]> | A")
	require.NoError(t, err)
	assert.Equal(t, Union{Items: []FieldType{
		Map{Key: String, Value: List{Elem: Class{Name: "Foo"}}},
		RecursiveTypeAlias{Name: "A"},
	}}, typ)

	_, err = ParseFieldType(schema, "Fooo")
	assert.ErrorContains(t, err, "did you mean 'Foo'")
	_, err = ParseFieldType(schema, "int[")
	assert.Error(t, err)
}
