// Package bamlc ties the schema loader, the IR, the lenient parser and the
// constraint evaluator together into a Project.
package bamlc

import (
	"fmt"
	"io/fs"
	"slices"
	"strings"
	"testing/fstest"
	"time"

	"github.com/cottand/bamlc/constraints"
	"github.com/cottand/bamlc/frontend"
	"github.com/cottand/bamlc/frontend/ast"
	"github.com/cottand/bamlc/frontend/ilerr"
	"github.com/cottand/bamlc/internal/log"
	"github.com/cottand/bamlc/ir"
	"github.com/cottand/bamlc/jinja"
	"github.com/cottand/bamlc/jsonish"
	"github.com/pkg/errors"
)

var projectLogger = log.DefaultLogger.With("section", "project")

// Project is a schema together with its IntermediateRepr.
// A Project with errors has no IR.
type Project struct {
	Schema *ast.Schema
	IR     *ir.IntermediateRepr
	errors *ilerr.Errors
}

type LoadSettings struct {
	// Dir is the path of the folder in the filesystem where the schema files are located.
	// The default is `.`
	Dir string
	// Extensions are the file suffixes considered schema files
	Extensions []string
	// File restricts loading to a single file of Dir
	File string
	// Strict rejects attributes the compiler does not understand
	Strict bool
}

// LoadProject loads and compiles the schema files in fsys.
// Problems with the schema are reported by Project.Errors, while the returned
// error is only set when the files could not be read at all.
func LoadProject(fsys fs.FS, settings LoadSettings) (*Project, error) {
	schema, errs, err := frontend.LoadSchema(fsys, frontend.LoadSettings{
		Dir:        settings.Dir,
		Extensions: settings.Extensions,
		File:       settings.File,
	})
	if err != nil {
		return nil, errors.Wrap(err, "load schema")
	}

	p := &Project{Schema: schema, errors: errs}
	if errs.HasError() {
		projectLogger.Debug("schema has errors, not building the IR", "errors", errs)
		return p, nil
	}
	repr, irErrs := ir.FromSchema(schema, ir.Config{Strict: settings.Strict})
	p.errors = p.errors.Merge(irErrs)
	p.IR = repr
	projectLogger.Info("loaded project", "classes", len(schema.Classes), "errors", p.errors)
	return p, nil
}

// NewProjectFromBytes loads a single file, meant for testing
func NewProjectFromBytes(data []byte) (*Project, *ilerr.Errors, error) {
	filesystem := fstest.MapFS{
		"test.yaml": &fstest.MapFile{
			Data: data,
		},
	}
	p, err := LoadProject(filesystem, LoadSettings{Strict: true})
	if err != nil {
		return nil, nil, err
	}
	return p, p.errors, nil
}

func (p *Project) Errors() *ilerr.Errors {
	return p.errors
}

// FormatErrors renders every error with its code and file:line:col, one per line
func (p *Project) FormatErrors() string {
	sb := &strings.Builder{}
	for _, e := range p.errors.Errors() {
		sb.WriteString(ilerr.FormatWithSource(e, p.Schema))
		sb.WriteString("\n")
	}
	return sb.String()
}

func (p *Project) checkCompiled() error {
	if p.IR == nil {
		return fmt.Errorf("the schema has errors:\n%s", p.FormatErrors())
	}
	return nil
}

// ResolveType parses a type expression, like `Person[]` or `map<string, int>`, against the schema
func (p *Project) ResolveType(expr string) (ir.FieldType, error) {
	if err := p.checkCompiled(); err != nil {
		return nil, err
	}
	t, err := ir.ParseFieldType(p.Schema, expr)
	if err != nil {
		return nil, errors.Wrapf(err, "resolve type '%s'", expr)
	}
	return t, nil
}

// Parse coerces raw model output into the type written as typeExpr, evaluating its constraints
func (p *Project) Parse(typeExpr, raw string) (*jsonish.ValueWithFlags, error) {
	t, err := p.ResolveType(typeExpr)
	if err != nil {
		return nil, err
	}
	return jsonish.Parse(jsonish.NewContext(p.IR, jinja.NewEvaluator()), t, raw)
}

// TestRun is the outcome of running the constraints of a test case against a function's output
type TestRun struct {
	Function string
	Test     string
	Output   *jsonish.ValueWithFlags
	Result   constraints.TestResult
}

// RunTest coerces raw, the output of function for the given test case, into the function's
// return type, then evaluates the test case's constraints against it
func (p *Project) RunTest(function, test, raw string, latency time.Duration) (*TestRun, error) {
	if err := p.checkCompiled(); err != nil {
		return nil, err
	}
	fn, tc, err := p.IR.FindTest(function, test)
	if err != nil {
		return nil, err
	}
	evaluator := jinja.NewEvaluator()
	output, err := jsonish.Parse(jsonish.NewContext(p.IR, evaluator), fn.Elem.Output, raw)
	if err != nil {
		return nil, errors.Wrapf(err, "parse output of %s", function)
	}
	result := constraints.EvaluateTestConstraints(
		evaluator,
		tc.Elem.ArgsMap(),
		output.Value,
		constraints.Response{Latency: latency},
		tc.Constraints,
	)
	return &TestRun{Function: fn.Elem.Name, Test: tc.Elem.Name, Output: output, Result: result}, nil
}

// DisplayTypes lists the declared types, one per line, followed by the recursive ones
func (p *Project) DisplayTypes() (string, error) {
	if err := p.checkCompiled(); err != nil {
		return "", err
	}
	sb := &strings.Builder{}
	for _, c := range p.IR.Classes {
		fields := make([]string, len(c.Elem.Fields))
		for i, f := range c.Elem.Fields {
			fields[i] = f.Elem.Name + ": " + f.Elem.Type.String()
		}
		fmt.Fprintf(sb, "class %s { %s }\n", c.Elem.Name, strings.Join(fields, ", "))
	}
	for _, e := range p.IR.Enums {
		fmt.Fprintf(sb, "enum %s { %s }\n", e.Elem.Name, strings.Join(e.Elem.ValueNames(), ", "))
	}
	aliases := make([]string, 0, len(p.Schema.Aliases))
	for _, a := range p.Schema.Aliases {
		aliases = append(aliases, a.Name)
	}
	slices.Sort(aliases)
	for _, name := range aliases {
		if resolved, ok := p.IR.ResolveRecursiveAlias(name); ok {
			fmt.Fprintf(sb, "type %s = %s (recursive)\n", name, resolved)
			continue
		}
		t, err := ir.ParseFieldType(p.Schema, name)
		if err != nil {
			return "", errors.Wrapf(err, "resolve alias %s", name)
		}
		fmt.Fprintf(sb, "type %s = %s\n", name, t)
	}
	for _, cycle := range p.IR.FiniteRecursiveCycles {
		members := cycle.Slice()
		slices.Sort(members)
		fmt.Fprintf(sb, "recursive classes: %s\n", strings.Join(members, ", "))
	}
	return sb.String(), nil
}
