package jsonish

import (
	"testing"

	"github.com/cottand/bamlc/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func obj(kvs ...any) Object {
	o := Object{}
	for i := 0; i < len(kvs); i += 2 {
		o = append(o, util.NewPair(kvs[i].(string), kvs[i+1].(Value)))
	}
	return o
}

func num(raw string) Number { return Number{Raw: raw} }

func TestParseFlexible(t *testing.T) {
	cases := map[string]struct {
		raw  string
		want []Value
	}{
		"valid json": {
			raw:  `{"a": 1, "b": [true, null, "x"]}`,
			want: []Value{obj("a", num("1"), "b", Array{Bool(true), Null{}, String("x")})},
		},
		"json string": {
			raw:  `"hello"`,
			want: []Value{String("hello")},
		},
		"fenced block": {
			raw:  "Here you go:\n```json\n{\"a\": 1.5}\n```\nAnything else?",
			want: []Value{Markdown{Tag: "json", Inner: obj("a", num("1.5"))}},
		},
		"two fenced blocks": {
			raw: "```\n[1]\n```\nor\n```yaml\n[2]\n```",
			want: []Value{
				Markdown{Tag: "", Inner: Array{num("1")}},
				Markdown{Tag: "yaml", Inner: Array{num("2")}},
			},
		},
		"json in prose": {
			raw:  `Sure! {"a": "}"} hope this helps`,
			want: []Value{obj("a", String("}"))},
		},
		"repairs": {
			raw: `{'name': 'Ada', age: 3, /* years */ tags: ["x",],}`,
			want: []Value{FixedJSON{
				Inner: obj("name", String("Ada"), "age", num("3"), "tags", Array{String("x")}),
				Fixes: []string{"removed comments", "converted single quoted strings", "quoted object keys", "removed trailing commas"},
			}},
		},
		"truncated": {
			raw: `{"a": [1, 2`,
			want: []Value{FixedJSON{
				Inner: obj("a", Array{num("1"), num("2")}),
				Fixes: []string{"closed unbalanced brackets"},
			}},
		},
		"unterminated string": {
			raw: `["abc`,
			want: []Value{FixedJSON{
				Inner: Array{String("abc")},
				Fixes: []string{"closed unbalanced brackets"},
			}},
		},
		"smart quotes": {
			raw: `{“a”: “b”}`,
			want: []Value{FixedJSON{
				Inner: obj("a", String("b")),
				Fixes: []string{"normalized smart quotes"},
			}},
		},
		"prose": {
			raw:  "The answer is 42",
			want: nil,
		},
	}
	for name, c := range cases {
		t.Run(name, func(t *testing.T) {
			v, err := ParseFlexible(c.raw)
			require.NoError(t, err)
			anyOf, ok := v.(AnyOf)
			require.True(t, ok, "got %#v", v)
			assert.Equal(t, c.raw, anyOf.Raw)
			assert.Equal(t, c.want, anyOf.Candidates)
		})
	}
}

func TestParseFlexibleEmpty(t *testing.T) {
	_, err := ParseFlexible(" \n\t")
	assert.ErrorContains(t, err, "empty")
}

func TestRepairSteps(t *testing.T) {
	cases := []struct {
		name    string
		fix     func(string) (string, bool)
		in, out string
	}{
		{"comment in string kept", stripComments, `{"url": "http://x"} // done`, `{"url": "http://x"} `},
		{"block comment", stripComments, `[1, /* two */ 3]`, `[1,  3]`},
		{"escaped quote", singleToDoubleQuoted, `['it\'s', 'say "hi"']`, `["it's", "say \"hi\""]`},
		{"nested closers", balanceAndClose, `{"a": [1, 2}`, `{"a": [1, 2]}`},
		{"stray closer", balanceAndClose, `[1]]`, `[1]`},
		{"trailing commas", dropTrailingCommas, "[1, 2, ]", "[1, 2 ]"},
		{"unquoted keys", quoteUnquotedKeys, "{a: 1, b_c: 2}", `{"a": 1, "b_c": 2}`},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			out, changed := c.fix(c.in)
			assert.Equal(t, c.out, out)
			assert.Equal(t, c.in != c.out, changed)
		})
	}
}
