// Package constraints evaluates the @assert and @check constraints of a schema
// against values, both while coercing model output and when running test cases.
package constraints

import (
	"fmt"
	"time"

	"github.com/cottand/bamlc/internal/log"
	"github.com/cottand/bamlc/ir"
)

var logger = log.DefaultLogger.With("section", "constraints")

// Evaluator renders an expression against a set of variables.
// jinja.Evaluator is the usual implementation.
type Evaluator interface {
	Evaluate(expr string, vars map[string]any) (string, error)
}

// CheckResult is the outcome of a single @check
type CheckResult struct {
	Name       string `json:"name"`
	Expression string `json:"expression"`
	Passed     bool   `json:"passed"`
}

// Outcome is the result of evaluating the constraints attached to a value
type Outcome struct {
	Checks []CheckResult
	// FailedAssert is the first assert that did not hold, if any
	FailedAssert *ir.Constraint
}

// EvaluateConstraints evaluates constraints against value, exposed to expressions as `this`.
// Evaluation stops at the first failing assert. Expressions that cannot be
// rendered, or that do not render to a boolean, are errors.
func EvaluateConstraints(ev Evaluator, value ir.Value, constraints []ir.Constraint) (Outcome, error) {
	var out Outcome
	vars := map[string]any{"this": ir.ToAny(value)}
	for _, c := range constraints {
		passed, err := evaluate(ev, c, vars)
		if err != nil {
			return Outcome{}, err
		}
		switch c.Level {
		case ir.Check:
			out.Checks = append(out.Checks, CheckResult{Name: c.Label, Expression: c.Expression, Passed: passed})
		case ir.Assert:
			if !passed {
				failed := c
				out.FailedAssert = &failed
				return out, nil
			}
		}
	}
	return out, nil
}

func evaluate(ev Evaluator, c ir.Constraint, vars map[string]any) (bool, error) {
	rendered, err := ev.Evaluate(c.Expression, vars)
	if err != nil {
		return false, fmt.Errorf("%s: %w", c, err)
	}
	switch rendered {
	case "true", "True":
		return true, nil
	case "false", "False":
		return false, nil
	}
	return false, fmt.Errorf("%s: expected true or false, got '%s'", c, rendered)
}

// Response carries what the expressions of a test case can see about the call
// that produced the value, under the reserved `_` namespace
type Response struct {
	Latency time.Duration
}

// TestResult is either Completed or InternalError
type TestResult interface {
	testResult()
}

// Completed means every constraint could be evaluated, or an assert failed
type Completed struct {
	Checks []CheckResult
	// FailedAssert is the label of the assert that failed, empty when it had none
	FailedAssert *string
}

// InternalError means an expression could not be evaluated, which is a bug in
// the schema rather than a problem with the value
type InternalError struct {
	Details string
}

func (Completed) testResult()     {}
func (InternalError) testResult() {}

// Passed reports whether no assert failed and every check held
func (c Completed) Passed() bool {
	if c.FailedAssert != nil {
		return false
	}
	for _, check := range c.Checks {
		if !check.Passed {
			return false
		}
	}
	return true
}

// EvaluateTestConstraints folds over constraints in order.
//
// Expressions see the function arguments by name, `this` (the value),
// `checks` (the results of the checks evaluated so far, by label) and
// `_.result`, `_.checks` and `_.latency_ms`.
// A failing assert stops the fold but keeps the checks gathered until then.
func EvaluateTestConstraints(
	ev Evaluator,
	args map[string]ir.Value,
	value ir.Value,
	response Response,
	constraints []ir.Constraint,
) TestResult {
	result := Completed{}
	checks := make(map[string]any)

	for _, c := range constraints {
		if c.Level == ir.Check && c.Label == "" {
			logger.Warn("ignoring check without a label", "expr", c.Expression)
			continue
		}

		vars := make(map[string]any, len(args)+3)
		for name, arg := range args {
			vars[name] = ir.ToAny(arg)
		}
		this := ir.ToAny(value)
		vars["this"] = this
		vars["checks"] = checks
		vars["_"] = map[string]any{
			"result":     this,
			"checks":     checks,
			"latency_ms": response.Latency.Milliseconds(),
		}

		passed, err := evaluate(ev, c, vars)
		if err != nil {
			return InternalError{Details: err.Error()}
		}
		if c.Level == ir.Check {
			result.Checks = append(result.Checks, CheckResult{Name: c.Label, Expression: c.Expression, Passed: passed})
			checks[c.Label] = passed
			continue
		}
		if !passed {
			label := c.Label
			result.FailedAssert = &label
			logger.Debug("assert failed", "label", label, "expr", c.Expression)
			return result
		}
	}
	return result
}
