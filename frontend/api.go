package frontend

import (
	"bytes"
	"errors"
	"fmt"
	"go/token"
	"io"
	"strings"

	"github.com/cottand/bamlc/frontend/ast"
	"github.com/cottand/bamlc/frontend/ilerr"
	"github.com/cottand/bamlc/internal/log"
	"gopkg.in/yaml.v3"
)

var loaderLogger = log.DefaultLogger.With("section", "loader")

// ParseSchemaFile parses a single (possibly multi-document) YAML schema file.
// The file is registered in fset so positions in the returned
// ast.Schema can be resolved back to file:line:col.
//
// Problems with the content of the schema are returned as *ilerr.Errors,
// while err is only set when data is not valid YAML at all.
func ParseSchemaFile(fset *token.FileSet, name string, data []byte) (*ast.Schema, *ilerr.Errors, error) {
	file := fset.AddFile(name, -1, len(data))
	file.SetLinesForContent(data)

	l := &schemaLoader{
		file:   file,
		schema: &ast.Schema{Fset: fset},
	}
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	for {
		var doc yaml.Node
		err := decoder.Decode(&doc)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("parse %s: %w", name, err)
		}
		if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
			continue
		}
		l.document(doc.Content[0])
	}
	loaderLogger.Debug("parsed schema file", "name", name,
		"classes", len(l.schema.Classes), "enums", len(l.schema.Enums), "errors", l.errs)
	return l.schema, l.errs, nil
}

// MergeSchemas appends the declarations of every schema into the first one
func MergeSchemas(schemas ...*ast.Schema) *ast.Schema {
	if len(schemas) == 0 {
		return &ast.Schema{Fset: token.NewFileSet()}
	}
	into := schemas[0]
	for _, s := range schemas[1:] {
		into.Classes = append(into.Classes, s.Classes...)
		into.Enums = append(into.Enums, s.Enums...)
		into.Aliases = append(into.Aliases, s.Aliases...)
		into.Functions = append(into.Functions, s.Functions...)
		into.Clients = append(into.Clients, s.Clients...)
		into.RetryPolicies = append(into.RetryPolicies, s.RetryPolicies...)
		into.TemplateStrings = append(into.TemplateStrings, s.TemplateStrings...)
		into.Tests = append(into.Tests, s.Tests...)
	}
	return into
}

type schemaLoader struct {
	file   *token.File
	schema *ast.Schema
	errs   *ilerr.Errors
}

func (l *schemaLoader) pos(n *yaml.Node) token.Pos {
	if n == nil || n.Line < 1 || n.Line > l.file.LineCount() {
		return token.NoPos
	}
	return l.file.LineStart(n.Line) + token.Pos(n.Column-1)
}

func (l *schemaLoader) rangeOf(n *yaml.Node) ast.Range {
	start := l.pos(n)
	if !start.IsValid() {
		return ast.Range{}
	}
	return ast.Range{PosStart: start, PosEnd: start + token.Pos(len(n.Value))}
}

// contentPos is the position of the first character of a scalar's value, skipping quotes
func (l *schemaLoader) contentPos(n *yaml.Node) token.Pos {
	p := l.pos(n)
	if !p.IsValid() {
		return p
	}
	if n.Style&(yaml.DoubleQuotedStyle|yaml.SingleQuotedStyle) != 0 {
		return p + 1
	}
	if n.Style&(yaml.LiteralStyle|yaml.FoldedStyle) != 0 {
		// block scalars start on the following line, and we do not know the indentation
		return token.NoPos
	}
	return p
}

func (l *schemaLoader) errorf(n *yaml.Node, format string, args ...any) {
	l.errs = l.errs.With(ilerr.New(ilerr.NewParse{
		Positioner:    l.rangeOf(n),
		ParserMessage: fmt.Sprintf(format, args...),
	}))
}

func (l *schemaLoader) syntaxError(err error) {
	var syntaxErr *ast.SyntaxError
	if errors.As(err, &syntaxErr) {
		l.errs = l.errs.With(ilerr.New(ilerr.NewParse{
			Positioner:    syntaxErr.Range,
			ParserMessage: syntaxErr.Msg,
		}))
		return
	}
	l.errs = l.errs.With(ilerr.New(ilerr.Unclassified{From: err}))
}

// entries calls f for each key-value pair of mapping node n, in order
func (l *schemaLoader) entries(n *yaml.Node, what string, f func(key, value *yaml.Node)) {
	if n.Kind == yaml.ScalarNode && n.Tag == "!!null" {
		return
	}
	if n.Kind != yaml.MappingNode {
		l.errorf(n, "%s must be a mapping", what)
		return
	}
	for i := 0; i+1 < len(n.Content); i += 2 {
		f(n.Content[i], n.Content[i+1])
	}
}

func (l *schemaLoader) scalar(n *yaml.Node, what string) (string, bool) {
	if n.Kind != yaml.ScalarNode {
		l.errorf(n, "%s must be a scalar", what)
		return "", false
	}
	return n.Value, true
}

func (l *schemaLoader) document(root *yaml.Node) {
	l.entries(root, "schema document", func(key, value *yaml.Node) {
		switch key.Value {
		case "classes":
			l.entries(value, key.Value, l.class)
		case "enums":
			l.entries(value, key.Value, l.enum)
		case "types":
			l.entries(value, key.Value, l.alias)
		case "functions":
			l.entries(value, key.Value, l.function)
		case "clients":
			l.entries(value, key.Value, l.client)
		case "retry_policies":
			l.entries(value, key.Value, l.retryPolicy)
		case "template_strings":
			l.entries(value, key.Value, l.templateString)
		case "tests":
			l.entries(value, key.Value, l.testCase)
		default:
			l.errorf(key, "unknown section '%s'", key.Value)
		}
	})
}

// declAttributes reads the keys shared by classes and enums into block attributes.
// It returns false for keys it does not know about.
func (l *schemaLoader) declAttributes(into *ast.Attributed, key, value *yaml.Node, block bool) bool {
	switch key.Value {
	case "description", "alias":
		if s, ok := l.scalar(value, key.Value); ok {
			into.Attributes = append(into.Attributes, ast.Attribute{Range: l.rangeOf(value), Name: key.Value, Value: s, Block: block})
		}
	case "skip", "dynamic":
		var on bool
		if err := value.Decode(&on); err != nil {
			l.errorf(value, "%s must be true or false", key.Value)
		} else if on {
			into.Attributes = append(into.Attributes, ast.Attribute{Range: l.rangeOf(key), Name: key.Value, Block: block})
		}
	case "attributes":
		if s, ok := l.scalar(value, key.Value); ok {
			attrs, err := ast.ParseAttributes(s, l.contentPos(value))
			if err != nil {
				l.syntaxError(err)
				return true
			}
			for _, a := range attrs {
				if a.Block != block {
					l.errorf(value, "attribute %v must be written with %s", a, map[bool]string{true: "@@", false: "@"}[block])
				}
			}
			into.Attributes = append(into.Attributes, attrs...)
		}
	default:
		return false
	}
	return true
}

func (l *schemaLoader) typeExpr(n *yaml.Node, what string) ast.Type {
	s, ok := l.scalar(n, what)
	if !ok {
		return nil
	}
	t, err := ast.ParseType(s, l.contentPos(n))
	if err != nil {
		l.syntaxError(err)
		return nil
	}
	return t
}

// fieldAttributes moves the attributes that trail a field's type onto the field:
// `int | string @alias("x")` attaches @alias to the field, not to string
func fieldAttributes(t ast.Type) []ast.Attribute {
	target := t
	if u, ok := t.(*ast.UnionType); ok && len(u.Items) > 0 && len(u.Attributes) == 0 {
		target = u.Items[len(u.Items)-1]
	}
	attrs := ast.AttributesOf(target)
	moved := attrs.Attributes
	attrs.Attributes = nil
	return moved
}

func (l *schemaLoader) class(key, value *yaml.Node) {
	c := &ast.Class{Range: l.rangeOf(key), Name: key.Value}
	l.entries(value, "class "+key.Value, func(k, v *yaml.Node) {
		if l.declAttributes(&c.Attributed, k, v, true) {
			return
		}
		if k.Value != "fields" {
			l.errorf(k, "unknown key '%s' in class %s", k.Value, c.Name)
			return
		}
		l.entries(v, "fields of "+c.Name, func(fk, fv *yaml.Node) {
			if f, ok := l.field(fk, fv); ok {
				c.Fields = append(c.Fields, f)
			}
		})
	})
	l.schema.Classes = append(l.schema.Classes, c)
}

func (l *schemaLoader) field(key, value *yaml.Node) (ast.Field, bool) {
	f := ast.Field{Range: l.rangeOf(key), Name: key.Value}
	if value.Kind == yaml.ScalarNode {
		f.Type = l.typeExpr(value, "field "+key.Value)
		if f.Type == nil {
			return f, false
		}
		f.Attributes = fieldAttributes(f.Type)
		return f, true
	}
	l.entries(value, "field "+key.Value, func(k, v *yaml.Node) {
		if l.declAttributes(&f.Attributed, k, v, false) {
			return
		}
		if k.Value != "type" {
			l.errorf(k, "unknown key '%s' in field %s", k.Value, f.Name)
			return
		}
		f.Type = l.typeExpr(v, "type of "+f.Name)
	})
	if f.Type == nil {
		l.errorf(key, "field %s has no type", f.Name)
		return f, false
	}
	return f, true
}

func (l *schemaLoader) enum(key, value *yaml.Node) {
	e := &ast.Enum{Range: l.rangeOf(key), Name: key.Value}
	l.entries(value, "enum "+key.Value, func(k, v *yaml.Node) {
		if l.declAttributes(&e.Attributed, k, v, true) {
			return
		}
		if k.Value != "values" {
			l.errorf(k, "unknown key '%s' in enum %s", k.Value, e.Name)
			return
		}
		if v.Kind != yaml.SequenceNode {
			l.errorf(v, "values of enum %s must be a list", e.Name)
			return
		}
		for _, item := range v.Content {
			if ev, ok := l.enumValue(item); ok {
				e.Values = append(e.Values, ev)
			}
		}
	})
	l.schema.Enums = append(l.schema.Enums, e)
}

// enumValue accepts either `NAME @alias("x")` or a mapping with a name key
func (l *schemaLoader) enumValue(n *yaml.Node) (ast.EnumValue, bool) {
	if n.Kind == yaml.ScalarNode {
		name, rest, _ := strings.Cut(strings.TrimSpace(n.Value), " ")
		ev := ast.EnumValue{Range: l.rangeOf(n), Name: name}
		if rest = strings.TrimSpace(rest); rest != "" {
			base := l.contentPos(n)
			if base.IsValid() {
				base += token.Pos(strings.Index(n.Value, rest))
			}
			attrs, err := ast.ParseAttributes(rest, base)
			if err != nil {
				l.syntaxError(err)
				return ev, false
			}
			ev.Attributes = attrs
		}
		return ev, name != ""
	}
	ev := ast.EnumValue{Range: l.rangeOf(n)}
	l.entries(n, "enum value", func(k, v *yaml.Node) {
		if l.declAttributes(&ev.Attributed, k, v, false) {
			return
		}
		if k.Value != "name" {
			l.errorf(k, "unknown key '%s' in enum value", k.Value)
			return
		}
		if s, ok := l.scalar(v, "name"); ok {
			ev.Name = s
			ev.Range = l.rangeOf(v)
		}
	})
	if ev.Name == "" {
		l.errorf(n, "enum value has no name")
		return ev, false
	}
	return ev, true
}

func (l *schemaLoader) alias(key, value *yaml.Node) {
	t := l.typeExpr(value, "type "+key.Value)
	if t == nil {
		return
	}
	l.schema.Aliases = append(l.schema.Aliases, &ast.TypeAlias{Range: l.rangeOf(key), Name: key.Value, Type: t})
}

func (l *schemaLoader) params(n *yaml.Node, of string) []ast.Param {
	var params []ast.Param
	l.entries(n, "params of "+of, func(k, v *yaml.Node) {
		if t := l.typeExpr(v, "param "+k.Value); t != nil {
			params = append(params, ast.Param{Range: l.rangeOf(k), Name: k.Value, Type: t})
		}
	})
	return params
}

func (l *schemaLoader) function(key, value *yaml.Node) {
	f := &ast.Function{Range: l.rangeOf(key), Name: key.Value}
	l.entries(value, "function "+key.Value, func(k, v *yaml.Node) {
		switch k.Value {
		case "params":
			f.Params = l.params(v, f.Name)
		case "returns":
			f.Return = l.typeExpr(v, "return type of "+f.Name)
		case "client":
			f.Client, _ = l.scalar(v, "client")
		case "prompt":
			f.Prompt, _ = l.scalar(v, "prompt")
		default:
			l.errorf(k, "unknown key '%s' in function %s", k.Value, f.Name)
		}
	})
	if f.Return == nil {
		l.errorf(key, "function %s has no return type", f.Name)
		return
	}
	l.schema.Functions = append(l.schema.Functions, f)
}

func (l *schemaLoader) options(n *yaml.Node) map[string]any {
	var raw any
	if err := n.Decode(&raw); err != nil {
		l.errorf(n, "invalid options: %v", err)
		return nil
	}
	opts, ok := normalizeYAML(raw).(map[string]any)
	if !ok && raw != nil {
		l.errorf(n, "options must be a mapping")
	}
	return opts
}

func (l *schemaLoader) client(key, value *yaml.Node) {
	c := &ast.Client{Range: l.rangeOf(key), Name: key.Value}
	l.entries(value, "client "+key.Value, func(k, v *yaml.Node) {
		switch k.Value {
		case "provider":
			c.Provider, _ = l.scalar(v, "provider")
		case "retry_policy":
			c.RetryPolicy, _ = l.scalar(v, "retry_policy")
		case "options":
			c.Options = l.options(v)
		default:
			l.errorf(k, "unknown key '%s' in client %s", k.Value, c.Name)
		}
	})
	l.schema.Clients = append(l.schema.Clients, c)
}

type retryStrategyYAML struct {
	Type       string  `yaml:"type"`
	DelayMs    int     `yaml:"delay_ms"`
	Multiplier float64 `yaml:"multiplier"`
	MaxDelayMs int     `yaml:"max_delay_ms"`
}

func (l *schemaLoader) retryPolicy(key, value *yaml.Node) {
	r := &ast.RetryPolicy{
		Range: l.rangeOf(key),
		Name:  key.Value,
		Strategy: ast.RetryStrategy{
			Type:    ast.StrategyConstantDelay,
			DelayMs: 200,
		},
	}
	l.entries(value, "retry policy "+key.Value, func(k, v *yaml.Node) {
		switch k.Value {
		case "max_retries":
			if err := v.Decode(&r.MaxRetries); err != nil {
				l.errorf(v, "max_retries must be an integer")
			}
		case "strategy":
			var s retryStrategyYAML
			if err := v.Decode(&s); err != nil {
				l.errorf(v, "invalid strategy: %v", err)
				return
			}
			r.Strategy = ast.RetryStrategy(s)
		case "options":
			r.Options = l.options(v)
		default:
			l.errorf(k, "unknown key '%s' in retry policy %s", k.Value, r.Name)
		}
	})
	l.schema.RetryPolicies = append(l.schema.RetryPolicies, r)
}

func (l *schemaLoader) templateString(key, value *yaml.Node) {
	t := &ast.TemplateString{Range: l.rangeOf(key), Name: key.Value}
	l.entries(value, "template string "+key.Value, func(k, v *yaml.Node) {
		switch k.Value {
		case "params":
			t.Params = l.params(v, t.Name)
		case "content":
			t.Content, _ = l.scalar(v, "content")
		default:
			l.errorf(k, "unknown key '%s' in template string %s", k.Value, t.Name)
		}
	})
	l.schema.TemplateStrings = append(l.schema.TemplateStrings, t)
}

func (l *schemaLoader) testCase(key, value *yaml.Node) {
	tc := &ast.TestCase{Range: l.rangeOf(key), Name: key.Value}
	l.entries(value, "test "+key.Value, func(k, v *yaml.Node) {
		switch k.Value {
		case "functions":
			switch v.Kind {
			case yaml.ScalarNode:
				tc.Functions = append(tc.Functions, v.Value)
			case yaml.SequenceNode:
				for _, fn := range v.Content {
					if s, ok := l.scalar(fn, "function name"); ok {
						tc.Functions = append(tc.Functions, s)
					}
				}
			default:
				l.errorf(v, "functions must be a name or a list of names")
			}
		case "args":
			l.entries(v, "args", func(ak, av *yaml.Node) {
				var raw any
				if err := av.Decode(&raw); err != nil {
					l.errorf(av, "invalid value for arg %s: %v", ak.Value, err)
					return
				}
				tc.Args = append(tc.Args, ast.TestArg{Range: l.rangeOf(ak), Name: ak.Value, Value: normalizeYAML(raw)})
			})
		case "attributes":
			l.declAttributes(&tc.Attributed, k, v, true)
		default:
			l.errorf(k, "unknown key '%s' in test %s", k.Value, tc.Name)
		}
	})
	l.schema.Tests = append(l.schema.Tests, tc)
}

// normalizeYAML converts map[any]any (produced for non-string keys) into map[string]any, recursively
func normalizeYAML(v any) any {
	switch v := v.(type) {
	case map[string]any:
		for k, inner := range v {
			v[k] = normalizeYAML(inner)
		}
		return v
	case map[any]any:
		out := make(map[string]any, len(v))
		for k, inner := range v {
			out[fmt.Sprint(k)] = normalizeYAML(inner)
		}
		return out
	case []any:
		for i, inner := range v {
			v[i] = normalizeYAML(inner)
		}
		return v
	default:
		return v
	}
}
