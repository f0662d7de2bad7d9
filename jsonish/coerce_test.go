package jsonish

import (
	"errors"
	"math"
	"testing"

	"github.com/cottand/bamlc/constraints"
	"github.com/cottand/bamlc/frontend"
	"github.com/cottand/bamlc/ir"
	"github.com/cottand/bamlc/jinja"
	"github.com/cottand/bamlc/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func compile(t *testing.T, src string) *ir.IntermediateRepr {
	t.Helper()
	schema, errs, err := frontend.NewSchemaFromBytes([]byte(src))
	require.NoError(t, err)
	require.False(t, errs.HasError(), "schema should load: %v", errs)
	repr, errs := ir.FromSchema(schema, ir.Config{Strict: true})
	require.False(t, errs.HasError(), "schema should compile: %v", errs)
	return repr
}

func kinds(v *ValueWithFlags) []FlagKind {
	var ks []FlagKind
	for _, c := range v.Conditions() {
		ks = append(ks, c.Flag.Kind)
	}
	return ks
}

func class(name string, kvs ...any) ir.ClassValue {
	c := ir.ClassValue{Name: name}
	for i := 0; i < len(kvs); i += 2 {
		c.Fields = append(c.Fields, util.NewPair(kvs[i].(string), kvs[i+1].(ir.Value)))
	}
	return c
}

func TestCoerceRequiredFieldFails(t *testing.T) {
	repr := compile(t, `
classes:
  Strict:
    fields:
      a: int
      b: int
  Lenient:
    fields:
      a: int
      b: int?
`)
	ctx := NewContext(repr, nil)
	value := obj("a", num("1"), "b", String("oops"))

	_, err := Coerce(ctx, ir.Class{Name: "Strict"}, value)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `b: expected an int, found string "oops"`)
	var perr *ParsingError
	require.True(t, errors.As(err, &perr))
	require.Len(t, perr.Causes, 1)
	assert.Equal(t, []string{"b"}, perr.Causes[0].Scope)

	result, err := Coerce(ctx, ir.Class{Name: "Lenient"}, value)
	require.NoError(t, err)
	assert.Equal(t, class("Lenient", "a", ir.IntValue(1), "b", ir.NullValue{}), result.Value)
	assert.Equal(t, []Condition{{
		Path: "b",
		Flag: Flag{Kind: DefaultButHadUnparseableValue, Detail: `expected an int, found string "oops"`},
	}}, result.Conditions())
	assert.Equal(t, 2, result.Score())
}

func TestCoerceRecursiveAlias(t *testing.T) {
	repr := compile(t, "types:\n  A: A[]\n")
	ctx := NewContext(repr, nil)
	target := ir.RecursiveTypeAlias{Name: "A"}

	result, err := Coerce(ctx, target, Array{Array{}, Array{}, Array{Array{}}})
	require.NoError(t, err)
	assert.Equal(t, ir.ListValue{ir.ListValue{}, ir.ListValue{}, ir.ListValue{ir.ListValue{}}}, result.Value)
	assert.Zero(t, result.Score())

	parsed, err := Parse(ctx, target, "[[], [], [[]]]")
	require.NoError(t, err)
	assert.Equal(t, result.Value, parsed.Value)

	// a scalar would be wrapped into a list of A forever
	_, err = Coerce(ctx, target, num("1"))
	assert.ErrorContains(t, err, "circular reference")
}

func TestCoerceRecursiveClass(t *testing.T) {
	repr := compile(t, `
classes:
  Node:
    fields:
      value: int
      next: Node?
`)
	ctx := NewContext(repr, nil)
	result, err := Coerce(ctx, ir.Class{Name: "Node"}, obj("value", num("1"), "next", obj("value", num("2"), "next", Null{})))
	require.NoError(t, err)
	assert.Equal(t,
		class("Node", "value", ir.IntValue(1), "next", class("Node", "value", ir.IntValue(2), "next", ir.NullValue{})),
		result.Value)
	assert.Empty(t, result.Conditions())
}

func TestCoerceScalars(t *testing.T) {
	cases := map[string]struct {
		target ir.FieldType
		value  Value
		want   ir.Value
		flags  []FlagKind
	}{
		"int":               {ir.Int, num("3"), ir.IntValue(3), nil},
		"float to int":      {ir.Int, num("2.6"), ir.IntValue(3), []FlagKind{FloatToInt}},
		"int from prose":    {ir.Int, String("1,000"), ir.IntValue(1000), []FlagKind{StringToNumber}},
		"smallest int":      {ir.Int, num("-9223372036854775808"), ir.IntValue(math.MinInt64), nil},
		"float":             {ir.Float, num("1e3"), ir.FloatValue(1000), nil},
		"fraction":          {ir.Float, String("1/2"), ir.FloatValue(0.5), []FlagKind{StringToNumber}},
		"bool":              {ir.Bool, Bool(false), ir.BoolValue(false), nil},
		"bool from string":  {ir.Bool, String("True."), ir.BoolValue(true), []FlagKind{StringToBool}},
		"string":            {ir.String, String("x"), ir.StringValue("x"), nil},
		"number to string":  {ir.String, num("5"), ir.StringValue("5"), []FlagKind{JSONToString}},
		"object to string":  {ir.String, obj("a", num("1")), ir.StringValue(`{"a":1}`), []FlagKind{JSONToString}},
		"null":              {ir.Null, Null{}, ir.NullValue{}, nil},
		"null from string":  {ir.Null, String("None"), ir.NullValue{}, []FlagKind{StringToNull}},
		"missing optional":  {ir.Optional{Inner: ir.Int}, nil, ir.NullValue{}, []FlagKind{OptionalDefaultFromNoValue}},
		"bad optional":      {ir.Optional{Inner: ir.Int}, Bool(true), ir.NullValue{}, []FlagKind{DefaultButHadUnparseableValue}},
		"string literal":    {ir.LiteralString("yes"), String("YES"), ir.StringValue("yes"), []FlagKind{CaseInsensitiveMatch}},
		"int literal":       {ir.LiteralInt(2), num("2"), ir.IntValue(2), nil},
		"bool literal":      {ir.LiteralBool(true), String("true"), ir.BoolValue(true), []FlagKind{StringToBool}},
		"single to array":   {ir.List{Elem: ir.Int}, num("4"), ir.ListValue{ir.IntValue(4)}, []FlagKind{SingleToArray}},
		"bad items dropped": {ir.List{Elem: ir.Int}, Array{num("1"), String("x"), num("3")}, ir.ListValue{ir.IntValue(1), ir.IntValue(3)}, []FlagKind{ArrayItemParseError}},
		"tuple":             {ir.Tuple{Items: []ir.FieldType{ir.Int, ir.String}}, Array{num("1"), String("a")}, ir.ListValue{ir.IntValue(1), ir.StringValue("a")}, nil},
		"image url": {
			ir.Image, String("https://example.com/cat.png"),
			ir.MediaValue{Kind: ir.KindImage, URL: "https://example.com/cat.png"}, nil,
		},
		"audio data uri": {
			ir.Audio, String("data:audio/mp3;base64,AAAA"),
			ir.MediaValue{Kind: ir.KindAudio, MediaType: "audio/mp3", Base64: "AAAA"}, nil,
		},
	}
	ctx := NewContext(&ir.IntermediateRepr{}, nil)
	for name, c := range cases {
		t.Run(name, func(t *testing.T) {
			result, err := Coerce(ctx, c.target, c.value)
			require.NoError(t, err)
			assert.Equal(t, c.want, result.Value)
			assert.Equal(t, c.flags, kinds(result))
		})
	}
}

func TestCoerceScalarErrors(t *testing.T) {
	cases := map[string]struct {
		target ir.FieldType
		value  Value
		reason string
	}{
		"bool to int":      {ir.Int, Bool(true), "expected an int, found bool true"},
		"word to float":    {ir.Float, String("many"), `expected a float, found string "many"`},
		"null to string":   {ir.String, Null{}, "expected a string, found null"},
		"missing":          {ir.Int, nil, "expected int, but the value is missing"},
		"other literal":    {ir.LiteralInt(2), num("3"), "expected 2, found number 3"},
		"tuple arity":      {ir.Tuple{Items: []ir.FieldType{ir.Int}}, Array{}, "expected 1 items for (int), found 0"},
		"list of nothing":  {ir.List{Elem: ir.Int}, String("x"), "expected int[], found string \"x\""},
		"list from null":   {ir.List{Elem: ir.Int}, Null{}, "expected int[], found null"},
		"no union member":  {ir.Union{Items: []ir.FieldType{ir.Int, ir.Bool}}, obj(), "object with 0 keys matches no member of int | bool"},
		"invalid map key":  {ir.Map{Key: ir.Int, Value: ir.Int}, obj(), "int cannot be used as a map key"},
		"map from a list":  {ir.Map{Key: ir.String, Value: ir.Int}, Array{}, "expected map<string, int>, found array of 0"},
		"all entries fail": {ir.Map{Key: ir.String, Value: ir.Int}, obj("a", Bool(true)), "no entry of object with 1 keys could be coerced"},
		"all items fail":   {ir.List{Elem: ir.Int}, Array{String("a"), String("b")}, "no item of array of 2 could be coerced into int[]"},
		"int overflow":     {ir.Int, num("9223372036854775808"), "expected an int, found number 9223372036854775808"},
		"float overflow":   {ir.Int, num("1e19"), "expected an int, found number 1e19"},
	}
	ctx := NewContext(&ir.IntermediateRepr{}, nil)
	for name, c := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Coerce(ctx, c.target, c.value)
			require.Error(t, err)
			assert.Contains(t, err.Error(), c.reason)
		})
	}
}

func TestCoerceUnion(t *testing.T) {
	ctx := NewContext(&ir.IntermediateRepr{}, nil)
	intOrString := ir.Union{Items: []ir.FieldType{ir.Int, ir.String}}

	result, err := Coerce(ctx, intOrString, num("1"))
	require.NoError(t, err)
	assert.Equal(t, ir.IntValue(1), result.Value)
	assert.Equal(t, ir.Int, result.Type)
	assert.Equal(t, []Condition{{Path: "<root>", Flag: Flag{Kind: UnionMatch, Detail: "0: int"}}}, result.Conditions())

	result, err = Coerce(ctx, intOrString, String("hello"))
	require.NoError(t, err)
	assert.Equal(t, ir.StringValue("hello"), result.Value)

	// the member needing the fewest repairs wins, whatever its position
	stringOrInt := ir.Union{Items: []ir.FieldType{ir.String, ir.Int}}
	result, err = Coerce(ctx, stringOrInt, num("7"))
	require.NoError(t, err)
	assert.Equal(t, ir.IntValue(7), result.Value)

	// a list none of whose items fit is not a match
	intsOrString := ir.Union{Items: []ir.FieldType{ir.List{Elem: ir.Int}, ir.String}}
	result, err = Coerce(ctx, intsOrString, Array{String("a"), String("b")})
	require.NoError(t, err)
	assert.Equal(t, ir.StringValue(`["a","b"]`), result.Value)
	assert.Equal(t, ir.String, result.Type)
}

const sentimentSchema = `
enums:
  Sentiment:
    values:
      - POSITIVE @alias("good")
      - NEGATIVE
      - NEUTRAL @skip
`

func TestCoerceEnum(t *testing.T) {
	ctx := NewContext(compile(t, sentimentSchema), nil)
	target := ir.Enum{Name: "Sentiment"}
	cases := map[string]struct {
		text  string
		want  string
		flags []FlagKind
	}{
		"exact":              {"POSITIVE", "POSITIVE", nil},
		"alias":              {"good", "POSITIVE", nil},
		"case":               {" negative ", "NEGATIVE", []FlagKind{CaseInsensitiveMatch}},
		"punctuation":        {"**Negative**", "NEGATIVE", []FlagKind{StrippedNonAlphaNumeric}},
		"mentioned":          {"I would say the review is positive overall", "POSITIVE", []FlagKind{SubstringMatch}},
		"mentioned by alias": {"it was good", "POSITIVE", []FlagKind{SubstringMatch}},
	}
	for name, c := range cases {
		t.Run(name, func(t *testing.T) {
			result, err := Coerce(ctx, target, String(c.text))
			require.NoError(t, err)
			assert.Equal(t, ir.EnumValue{Name: "Sentiment", Value: c.want}, result.Value)
			assert.Equal(t, c.flags, kinds(result))
		})
	}

	for _, text := range []string{"NEUTRAL", "positive or negative", "no idea", ""} {
		_, err := Coerce(ctx, target, String(text))
		assert.ErrorContains(t, err, "is not a value of enum Sentiment", text)
	}

	result, err := Parse(ctx, target, "The answer is NEGATIVE.")
	require.NoError(t, err)
	assert.Equal(t, ir.EnumValue{Name: "Sentiment", Value: "NEGATIVE"}, result.Value)
}

func TestCoerceMap(t *testing.T) {
	ctx := NewContext(compile(t, sentimentSchema), nil)

	result, err := Coerce(ctx, ir.Map{Key: ir.String, Value: ir.Int}, obj("a", num("1"), "b", String("x"), "c", String("2")))
	require.NoError(t, err)
	assert.Equal(t, ir.MapValue{
		util.NewPair[string, ir.Value]("a", ir.IntValue(1)),
		util.NewPair[string, ir.Value]("c", ir.IntValue(2)),
	}, result.Value)
	assert.Equal(t, []FlagKind{MapValueParseError, StringToNumber}, kinds(result))

	byEnum := ir.Map{Key: ir.Enum{Name: "Sentiment"}, Value: ir.Int}
	result, err = Coerce(ctx, byEnum, obj("good", num("1"), "MEH", num("2")))
	require.NoError(t, err)
	assert.Equal(t, ir.MapValue{util.NewPair[string, ir.Value]("POSITIVE", ir.IntValue(1))}, result.Value)
	assert.Equal(t, []FlagKind{MapKeyParseError}, kinds(result))

	byLiteral := ir.Map{Key: ir.Union{Items: []ir.FieldType{ir.LiteralString("x"), ir.LiteralString("y")}}, Value: ir.Bool}
	result, err = Coerce(ctx, byLiteral, obj("y", Bool(true)))
	require.NoError(t, err)
	assert.Equal(t, ir.MapValue{util.NewPair[string, ir.Value]("y", ir.BoolValue(true))}, result.Value)

	result, err = Coerce(ctx, byLiteral, obj())
	require.NoError(t, err)
	assert.Equal(t, ir.MapValue{}, result.Value)
}

func TestCoerceClassKeys(t *testing.T) {
	ctx := NewContext(compile(t, `
classes:
  Person:
    fields:
      name: string @alias("full_name")
      age: int?
      tags: string[]
      secret:
        type: string
        skip: true
  Wrapper:
    fields:
      items: int[]
  Bag:
    dynamic: true
    fields:
      id: int
`), nil)

	result, err := Coerce(ctx, ir.Class{Name: "Person"}, obj("full_name", String("Ada"), "mood", String("fine")))
	require.NoError(t, err)
	assert.Equal(t, class("Person", "name", ir.StringValue("Ada"), "age", ir.NullValue{}, "tags", ir.ListValue{}), result.Value)
	assert.Equal(t, []Condition{
		{Path: "<root>", Flag: Flag{Kind: ExtraKey, Detail: "mood"}},
		{Path: "age", Flag: Flag{Kind: OptionalDefaultFromNoValue}},
		{Path: "tags", Flag: Flag{Kind: DefaultFromNoValue}},
	}, result.Conditions())

	result, err = Coerce(ctx, ir.Class{Name: "Person"}, obj("Full Name", String("Ada"), "tags", String("x")))
	require.NoError(t, err)
	assert.Equal(t, class("Person", "name", ir.StringValue("Ada"), "age", ir.NullValue{}, "tags", ir.ListValue{ir.StringValue("x")}), result.Value)
	assert.Contains(t, result.Conditions(), Condition{Path: "name", Flag: Flag{Kind: StrippedNonAlphaNumeric, Detail: "Full Name"}})
	exact, err := Coerce(ctx, ir.Class{Name: "Person"}, obj("full_name", String("Ada"), "tags", String("x")))
	require.NoError(t, err)
	assert.Greater(t, result.Score(), exact.Score())

	_, err = Coerce(ctx, ir.Class{Name: "Person"}, obj("age", num("3")))
	assert.ErrorContains(t, err, "name: missing required field of type string")

	result, err = Coerce(ctx, ir.Class{Name: "Wrapper"}, Array{num("1"), num("2")})
	require.NoError(t, err)
	assert.Equal(t, class("Wrapper", "items", ir.ListValue{ir.IntValue(1), ir.IntValue(2)}), result.Value)
	assert.Equal(t, []FlagKind{ImpliedKey}, kinds(result))

	result, err = Coerce(ctx, ir.Class{Name: "Bag"}, obj("id", num("1"), "color", String("red"), "sizes", Array{num("2")}))
	require.NoError(t, err)
	assert.Equal(t, class("Bag",
		"id", ir.IntValue(1),
		"color", ir.StringValue("red"),
		"sizes", ir.ListValue{ir.IntValue(2)},
	), result.Value)
	assert.Empty(t, result.Conditions())
	assert.Equal(t, ir.List{Elem: ir.Int}, result.Fields[2].Snd.Type)
}

func TestCoerceConstraints(t *testing.T) {
	repr := compile(t, `
classes:
  Person:
    attributes: '@@assert(adult, {{ this.age >= 18 }})'
    fields:
      name: string
      age: int @check(young, {{ this < 30 }})
types:
  Positive: int @assert(positive, {{ this > 0 }})
`)
	ctx := NewContext(repr, jinja.NewEvaluator())
	person := ir.Class{Name: "Person"}

	result, err := Coerce(ctx, person, obj("name", String("Ada"), "age", num("25")))
	require.NoError(t, err)
	assert.Equal(t, []Condition{{
		Path: "age",
		Flag: Flag{Kind: ConstraintResults, Checks: []constraints.CheckResult{{Name: "young", Expression: "this < 30", Passed: true}}},
	}}, result.Conditions())

	result, err = Coerce(ctx, person, obj("name", String("Ada"), "age", num("40")))
	require.NoError(t, err)
	assert.False(t, result.Conditions()[0].Flag.Checks[0].Passed)

	_, err = Coerce(ctx, person, obj("name", String("Ada"), "age", num("12")))
	assert.ErrorContains(t, err, "assertion failed: @assert(adult, {{ this.age >= 18 }})")

	// without an evaluator constraints are not looked at
	result, err = Coerce(NewContext(repr, nil), person, obj("name", String("Ada"), "age", num("12")))
	require.NoError(t, err)
	assert.Empty(t, result.Conditions())

	positiveOrString := ir.Union{Items: []ir.FieldType{
		ir.Constrained{Base: ir.Int, Constraints: []ir.Constraint{{Level: ir.Assert, Label: "positive", Expression: "this > 0"}}},
		ir.String,
	}}
	result, err = Coerce(ctx, positiveOrString, num("-1"))
	require.NoError(t, err)
	assert.Equal(t, ir.StringValue("-1"), result.Value)
	result, err = Coerce(ctx, positiveOrString, num("1"))
	require.NoError(t, err)
	assert.Equal(t, ir.IntValue(1), result.Value)
}

func TestCoerceConstrainedMapKey(t *testing.T) {
	repr := compile(t, `
classes:
  Scores:
    fields:
      by_name: 'map<string @assert(short, {{ this|length < 5 }}), int>'
`)
	ctx := NewContext(repr, jinja.NewEvaluator())
	scores := ir.Class{Name: "Scores"}

	result, err := Coerce(ctx, scores, obj("by_name", obj("ada", num("1"), "margaret", num("2"))))
	require.NoError(t, err)
	assert.Equal(t, class("Scores", "by_name", ir.MapValue{
		util.NewPair[string, ir.Value]("ada", ir.IntValue(1)),
	}), result.Value)
	assert.Equal(t, []FlagKind{MapKeyParseError}, kinds(result))

	_, err = Coerce(ctx, scores, obj("by_name", obj("margaret", num("2"))))
	assert.ErrorContains(t, err, "no entry of object with 1 keys could be coerced")
}

func TestParse(t *testing.T) {
	repr := compile(t, `
classes:
  Person:
    fields:
      name: string
      age: int
`)
	ctx := NewContext(repr, nil)
	person := ir.Class{Name: "Person"}
	want := class("Person", "name", ir.StringValue("Ada"), "age", ir.IntValue(25))

	result, err := Parse(ctx, person, "Here you go:\n```json\n{\"name\": \"Ada\", \"age\": 25}\n```")
	require.NoError(t, err)
	assert.Equal(t, want, result.Value)
	assert.Equal(t, []FlagKind{ObjectFromMarkdown}, kinds(result))

	result, err = Parse(ctx, person, "{name: 'Ada', age: '25',}")
	require.NoError(t, err)
	assert.Equal(t, want, result.Value)
	assert.True(t, result.HasFlag(ObjectFromFixedJSON))
	assert.True(t, result.HasFlag(StringToNumber))

	_, err = Parse(ctx, person, "I don't know")
	assert.ErrorContains(t, err, "expected an object for class Person")

	text, err := Parse(ctx, ir.String, `"quoted"`)
	require.NoError(t, err)
	assert.Equal(t, ir.StringValue("quoted"), text.Value)

	text, err = Parse(ctx, ir.String, "just prose, {not json")
	require.NoError(t, err)
	assert.Equal(t, ir.StringValue("just prose, {not json"), text.Value)
}
