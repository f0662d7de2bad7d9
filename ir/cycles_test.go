package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTarjan(t *testing.T) {
	cases := map[string]struct {
		g    graph
		want [][]string
	}{
		"acyclic": {
			g: graph{"a": {"b"}, "b": {"c"}, "c": nil},
		},
		"self loop": {
			g:    graph{"a": {"a"}, "b": {"a"}},
			want: [][]string{{"a"}},
		},
		"two cycles": {
			g: graph{
				"d": {"c"}, "c": {"d"},
				"a": {"b"}, "b": {"a", "c"},
			},
			want: [][]string{{"a", "b"}, {"c", "d"}},
		},
		"discovery order": {
			g:    graph{"a": {"c"}, "c": {"b"}, "b": {"a"}},
			want: [][]string{{"a", "c", "b"}},
		},
		"duplicate edges": {
			g:    graph{"a": {"b", "b"}, "b": {"a", "a"}},
			want: [][]string{{"a", "b"}},
		},
	}
	for name, c := range cases {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, c.want, tarjan(c.g))
		})
	}
}

func TestRequiredClassDeps(t *testing.T) {
	cases := map[string]struct {
		typ     FieldType
		deps    []string
		escapes bool
	}{
		"class":      {typ: Class{Name: "B"}, deps: []string{"B"}},
		"optional":   {typ: Optional{Inner: Class{Name: "B"}}, escapes: true},
		"list":       {typ: List{Elem: Class{Name: "B"}}, escapes: true},
		"primitive":  {typ: Int, escapes: true},
		"constraint": {typ: Constrained{Base: Class{Name: "B"}, Constraints: []Constraint{positive}}, deps: []string{"B"}},
		"tuple":      {typ: Tuple{Items: []FieldType{Int, Class{Name: "B"}}}, deps: []string{"B"}},
		"union with way out": {
			typ:     Union{Items: []FieldType{Class{Name: "A"}, Null}},
			escapes: true,
		},
		"union of self and other": {
			typ:  Union{Items: []FieldType{Class{Name: "A"}, Class{Name: "B"}}},
			deps: []string{"B"},
		},
		"union of self": {
			typ:  Union{Items: []FieldType{Class{Name: "A"}, Class{Name: "A"}}},
			deps: []string{"A", "A"},
		},
	}
	for name, c := range cases {
		t.Run(name, func(t *testing.T) {
			deps, escapes := requiredClassDeps("A", c.typ)
			assert.Equal(t, c.deps, deps)
			assert.Equal(t, c.escapes, escapes)
		})
	}
}
