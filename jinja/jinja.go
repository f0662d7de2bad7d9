// Package jinja evaluates the Jinja expressions of @assert and @check
// constraints, like `this|length > 0 and this.name != ""`, by rendering
// them as `{{ expr }}` templates with gonja.
package jinja

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/cottand/bamlc/internal/log"
	"github.com/nikolalohinski/gonja/v2"
	"github.com/nikolalohinski/gonja/v2/exec"
)

var logger = log.DefaultLogger.With("section", "jinja")

// Expr is a compiled expression
type Expr struct {
	src      string
	template *exec.Template
}

// Compile parses src. The surrounding {{ }} are optional.
func Compile(src string) (*Expr, error) {
	trimmed := strings.TrimSpace(src)
	if strings.HasPrefix(trimmed, "{{") && strings.HasSuffix(trimmed, "}}") {
		trimmed = strings.TrimSpace(trimmed[2 : len(trimmed)-2])
	}
	if trimmed == "" {
		return nil, errors.New("empty expression")
	}
	template, err := gonja.FromString("{{ " + trimmed + " }}")
	if err != nil {
		return nil, fmt.Errorf("could not parse '%s': %w", trimmed, err)
	}
	return &Expr{src: trimmed, template: template}, nil
}

func (x *Expr) String() string { return x.src }

// Render evaluates the expression against vars, whose values are plain Go values:
// strings, integers, floats, bools, nil, slices and string-keyed maps of those.
// Booleans render as `true` and `false`.
func (x *Expr) Render(vars map[string]any) (string, error) {
	out, err := x.template.ExecuteToString(exec.NewContext(vars))
	if err != nil {
		return "", fmt.Errorf("could not evaluate '%s': %w", x.src, err)
	}
	switch out {
	case "True":
		return "true", nil
	case "False":
		return "false", nil
	}
	return out, nil
}

// Evaluator renders expressions, caching their compiled form.
// It is safe for concurrent use.
type Evaluator struct {
	mu    sync.Mutex
	cache map[string]*Expr
}

func NewEvaluator() *Evaluator {
	return &Evaluator{cache: make(map[string]*Expr)}
}

func (ev *Evaluator) compile(expr string) (*Expr, error) {
	ev.mu.Lock()
	defer ev.mu.Unlock()
	if compiled, ok := ev.cache[expr]; ok {
		return compiled, nil
	}
	compiled, err := Compile(expr)
	if err != nil {
		return nil, err
	}
	if ev.cache == nil {
		ev.cache = make(map[string]*Expr)
	}
	ev.cache[expr] = compiled
	return compiled, nil
}

func (ev *Evaluator) Evaluate(expr string, vars map[string]any) (string, error) {
	compiled, err := ev.compile(expr)
	if err != nil {
		return "", err
	}
	out, err := compiled.Render(vars)
	logger.Debug("evaluated expression", "expr", expr, "result", out, "err", err)
	return out, err
}
