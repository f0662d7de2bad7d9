package bamlc

import (
	"testing"
	"testing/fstest"
	"time"

	"github.com/cottand/bamlc/constraints"
	"github.com/cottand/bamlc/frontend/ilerr"
	"github.com/cottand/bamlc/ir"
	"github.com/cottand/bamlc/jsonish"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const resumeProject = `
classes:
  Resume:
    fields:
      name: string @alias("full_name")
      years: int? @check(reasonable, {{ this < 80 }})
      skills: Skill[]
enums:
  Skill:
    values:
      - GO
      - RUST @alias("rust-lang")
types:
  Json: int | string | Json[] | map<string, Json>
  Skills: Skill[]
functions:
  ExtractResume:
    params:
      text: string
    returns: Resume
    client: Fast
    prompt: |
      Extract {{ text }}
clients:
  Fast:
    provider: openai
tests:
  Jane:
    functions: [ExtractResume]
    args:
      text: "Jane, 10 years of Go"
    attributes: '@@check(named, {{ _.result.name == "Jane" }})'
  Quick:
    functions: [ExtractResume]
    args:
      text: "Jane, 10 years of Go"
    attributes: '@@assert(fast, {{ _.latency_ms < 1000 }})'
`

func testProject(t *testing.T) *Project {
	t.Helper()
	p, errs, err := NewProjectFromBytes([]byte(resumeProject))
	require.NoError(t, err)
	require.False(t, errs.HasError(), errs.Error())
	require.NotNil(t, p.IR)
	return p
}

func TestLoadProject(t *testing.T) {
	fsys := fstest.MapFS{
		"schema/a.yaml": &fstest.MapFile{Data: []byte("classes:\n  A:\n    fields:\n      b: B\n")},
		"schema/b.yml":  &fstest.MapFile{Data: []byte("classes:\n  B:\n    fields:\n      x: int\n")},
		"schema/c.txt":  &fstest.MapFile{Data: []byte("not a schema")},
	}
	p, err := LoadProject(fsys, LoadSettings{Dir: "schema", Strict: true})
	require.NoError(t, err)
	require.False(t, p.Errors().HasError(), p.FormatErrors())
	assert.Len(t, p.IR.Classes, 2)

	_, err = LoadProject(fsys, LoadSettings{Dir: "nowhere"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load schema")
}

func TestProjectWithErrors(t *testing.T) {
	p, errs, err := NewProjectFromBytes([]byte("classes:\n  A:\n    fields:\n      b: Missing\n"))
	require.NoError(t, err)
	require.True(t, errs.HasCode(ilerr.UndefinedType))
	assert.Nil(t, p.IR)
	assert.Contains(t, p.FormatErrors(), "type 'Missing' is not defined")

	_, err = p.Parse("A", `{"b": 1}`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "the schema has errors")
}

func TestResolveType(t *testing.T) {
	p := testProject(t)
	cases := map[string]ir.FieldType{
		"Resume[]":           ir.List{Elem: ir.Class{Name: "Resume"}},
		"map<string, Skill>": ir.Map{Key: ir.String, Value: ir.Enum{Name: "Skill"}},
		"int?":               ir.Optional{Inner: ir.Int},
		"Json":               ir.RecursiveTypeAlias{Name: "Json"},
	}
	for expr, want := range cases {
		t.Run(expr, func(t *testing.T) {
			got, err := p.ResolveType(expr)
			require.NoError(t, err)
			assert.True(t, ir.Equal(want, got), "got %s", got)
		})
	}

	_, err := p.ResolveType("Resumee")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "resolve type 'Resumee'")
}

func TestProjectParse(t *testing.T) {
	p := testProject(t)
	raw := "Here you go:\n```json\n{\"full_name\": \"Jane\", \"years\": \"10\", \"skills\": [\"go\", \"rust-lang\"]}\n```"

	result, err := p.Parse("Resume", raw)
	require.NoError(t, err)
	resume, ok := result.Value.(ir.ClassValue)
	require.True(t, ok, "got %#v", result.Value)
	name, _ := resume.Field("name")
	assert.Equal(t, ir.StringValue("Jane"), name)
	years, _ := resume.Field("years")
	assert.Equal(t, ir.IntValue(10), years)
	skills, _ := resume.Field("skills")
	assert.Equal(t, ir.ListValue{
		ir.EnumValue{Name: "Skill", Value: "GO"},
		ir.EnumValue{Name: "Skill", Value: "RUST"},
	}, skills)
	assert.True(t, result.HasFlag(jsonish.ObjectFromMarkdown))
	assert.True(t, result.HasFlag(jsonish.StringToNumber))
	assert.True(t, result.HasFlag(jsonish.ConstraintResults))
}

func TestRunTest(t *testing.T) {
	p := testProject(t)
	jane := `{"name": "Jane", "years": 10, "skills": []}`

	run, err := p.RunTest("ExtractResume", "Jane", jane, 0)
	require.NoError(t, err)
	assert.Equal(t, "ExtractResume", run.Function)
	assert.Equal(t, "Jane", run.Test)
	completed, ok := run.Result.(constraints.Completed)
	require.True(t, ok, "got %#v", run.Result)
	assert.True(t, completed.Passed())
	assert.Equal(t, []constraints.CheckResult{
		{Name: "named", Expression: `_.result.name == "Jane"`, Passed: true},
	}, completed.Checks)

	run, err = p.RunTest("ExtractResume", "Jane", `{"name": "John", "years": 3, "skills": []}`, 0)
	require.NoError(t, err)
	completed = run.Result.(constraints.Completed)
	assert.Nil(t, completed.FailedAssert, "failed checks do not stop the test")
	assert.False(t, completed.Passed())
	assert.False(t, completed.Checks[0].Passed)

	run, err = p.RunTest("ExtractResume", "Quick", jane, 2*time.Second)
	require.NoError(t, err)
	completed = run.Result.(constraints.Completed)
	require.NotNil(t, completed.FailedAssert)
	assert.Equal(t, "fast", *completed.FailedAssert)

	_, err = p.RunTest("ExtractResume", "Nobody", jane, 0)
	require.Error(t, err)

	_, err = p.RunTest("ExtractResume", "Jane", "no resume here", 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse output of ExtractResume")
}

func TestDisplayTypes(t *testing.T) {
	p := testProject(t)
	out, err := p.DisplayTypes()
	require.NoError(t, err)
	assert.Contains(t, out, "class Resume { ")
	assert.Contains(t, out, "enum Skill { GO, RUST }")
	assert.Contains(t, out, "type Json = ")
	assert.Contains(t, out, "(recursive)")
	assert.Contains(t, out, "type Skills = Skill[]")
}

func TestLoadProjectSingleFile(t *testing.T) {
	fsys := fstest.MapFS{
		"a.yaml": &fstest.MapFile{Data: []byte("classes:\n  A:\n    fields:\n      x: int\n")},
		"b.yaml": &fstest.MapFile{Data: []byte("classes:\n  B:\n    fields:\n      x: Missing\n")},
	}
	p, err := LoadProject(fsys, LoadSettings{File: "a.yaml"})
	require.NoError(t, err)
	require.False(t, p.Errors().HasError(), p.FormatErrors())
	require.Len(t, p.IR.Classes, 1)
	assert.Equal(t, "A", p.IR.Classes[0].Elem.Name)
}

func TestParseSkipsConstraintsOfAbsentOptionals(t *testing.T) {
	p := testProject(t)
	result, err := p.Parse("Resume", `{"name": "Jane", "skills": ["GO"]}`)
	require.NoError(t, err)
	years, ok := result.Value.(ir.ClassValue).Field("years")
	require.True(t, ok)
	assert.Equal(t, ir.NullValue{}, years)
	assert.False(t, result.HasFlag(jsonish.ConstraintResults))
}
