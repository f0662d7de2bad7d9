// Package jsonish coerces loosely structured model output into values of the types of an ir.IntermediateRepr.
//
// Coercion never silently drops information: every approximation it makes is
// recorded as a Flag on the resulting ValueWithFlags, and callers decide which
// flags they are willing to accept, usually by looking at the Score.
package jsonish

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/benbjohnson/immutable"
	"github.com/cottand/bamlc/constraints"
	"github.com/cottand/bamlc/ir"
)

// Coerce converts value into target. A nil value means the value is missing altogether.
// Errors are *ParsingError.
func Coerce(ctx *Context, target ir.FieldType, value Value) (*ValueWithFlags, error) {
	c := *ctx
	c.scope = nil
	c.visited = immutable.NewSet[string](nil)
	result, err := c.coerce(target, value)
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Parse leniently parses raw model output and coerces it into target
func Parse(ctx *Context, target ir.FieldType, raw string) (*ValueWithFlags, error) {
	value, err := ParseFlexible(raw)
	if err != nil {
		return nil, err
	}
	return Coerce(ctx, target, value)
}

func indexScope(i int) string {
	return "[" + strconv.Itoa(i) + "]"
}

func (c *Context) coerce(target ir.FieldType, value Value) (*ValueWithFlags, *ParsingError) {
	switch v := value.(type) {
	case AnyOf:
		return c.coerceAnyOf(target, v)
	case Markdown:
		result, err := c.coerce(target, v.Inner)
		if err != nil {
			return nil, err
		}
		return result.addFlags(flag(ObjectFromMarkdown, "%s", v.Tag)), nil
	case FixedJSON:
		result, err := c.coerce(target, v.Inner)
		if err != nil {
			return nil, err
		}
		return result.addFlags(Flag{Kind: ObjectFromFixedJSON, Detail: strings.Join(v.Fixes, ", ")}), nil
	}

	switch t := target.(type) {
	case ir.Primitive:
		return c.coercePrimitive(t, value)
	case ir.Literal:
		return c.coerceLiteral(t, value)
	case ir.Optional:
		return c.coerceOptional(t, value)
	case ir.List:
		return c.coerceList(t, value)
	case ir.Tuple:
		return c.coerceTuple(t, value)
	case ir.Map:
		return c.coerceMap(t, value)
	case ir.Union:
		return c.coerceUnion(t, value)
	case ir.Class:
		return c.coerceClass(t, value)
	case ir.Enum:
		return c.coerceEnum(t, value)
	case ir.RecursiveTypeAlias:
		return c.coerceAlias(t, value)
	case ir.Constrained:
		return c.coerceConstrained(t, value)
	}
	return nil, c.errorf("cannot coerce into %s", target)
}

// wantsText reports whether the raw text itself is worth trying for target,
// which is the case for scalars that may be written in prose, like enums
func (c *Context) wantsText(target ir.FieldType) bool {
	switch t := target.(type) {
	case ir.Primitive:
		return !t.Kind.IsMedia()
	case ir.Literal, ir.Enum:
		return true
	case ir.Optional:
		return c.wantsText(t.Inner)
	case ir.Constrained:
		return c.wantsText(t.Base)
	}
	return false
}

// coerceAnyOf tries every interpretation of the raw output and keeps the best one
func (c *Context) coerceAnyOf(target ir.FieldType, v AnyOf) (*ValueWithFlags, *ParsingError) {
	candidates := v.Candidates
	if len(candidates) == 0 || c.wantsText(target) {
		candidates = append(candidates[:len(candidates):len(candidates)], String(v.Raw))
	}
	var best *ValueWithFlags
	var causes []*ParsingError
	for _, candidate := range candidates {
		result, err := c.coerce(target, candidate)
		if err != nil {
			causes = append(causes, err)
			continue
		}
		if best == nil || result.Score() < best.Score() {
			best = result
		}
	}
	if best == nil {
		if len(causes) == 1 {
			return nil, causes[0]
		}
		return nil, c.errorWithCauses(causes, "no interpretation of the output is a %s", target)
	}
	return best, nil
}

func (c *Context) coerceOptional(t ir.Optional, value Value) (*ValueWithFlags, *ParsingError) {
	switch value.(type) {
	case nil:
		return leaf(ir.NullValue{}, t, Flag{Kind: OptionalDefaultFromNoValue}), nil
	case Null:
		return leaf(ir.NullValue{}, t), nil
	}
	result, err := c.coerce(t.Inner, value)
	if err != nil {
		return leaf(ir.NullValue{}, t, flag(DefaultButHadUnparseableValue, "%s", err.Reason)), nil
	}
	return result, nil
}

func (c *Context) coerceUnion(t ir.Union, value Value) (*ValueWithFlags, *ParsingError) {
	var best *ValueWithFlags
	bestIndex := -1
	var causes []*ParsingError
	for i, item := range t.Items {
		result, err := c.enter(fmt.Sprintf("<%s>", item)).coerce(item, value)
		if err != nil {
			causes = append(causes, err)
			continue
		}
		if best == nil || result.Score() < best.Score() {
			best, bestIndex = result, i
		}
	}
	if best == nil {
		return nil, c.errorWithCauses(causes, "%s matches no member of %s", describe(value), t)
	}
	logger.Debug("picked union member", "union", t, "member", t.Items[bestIndex], "score", best.Score())
	return best.addFlags(flag(UnionMatch, "%d: %s", bestIndex, t.Items[bestIndex])), nil
}

func (c *Context) coerceAlias(t ir.RecursiveTypeAlias, value Value) (*ValueWithFlags, *ParsingError) {
	resolved, ok := c.IR.ResolveRecursiveAlias(t.Name)
	if !ok {
		return nil, c.errorf("type alias %s is not part of any recursive cycle", t.Name)
	}
	next, ok := c.visit(t.Name, value)
	if !ok {
		return nil, c.errorf("circular reference: %s refers back to itself for %s", t.Name, describe(value))
	}
	return next.coerce(resolved, value)
}

// coerceConstrained coerces into the base type, then evaluates the constraints written at this use site.
// The constraints of a class or enum declaration are evaluated by coerceClass and coerceEnum.
func (c *Context) coerceConstrained(t ir.Constrained, value Value) (*ValueWithFlags, *ParsingError) {
	var base ir.FieldType = t
	var cs []ir.Constraint
	for {
		constrained, ok := base.(ir.Constrained)
		if !ok {
			break
		}
		cs = append(cs, constrained.Constraints...)
		base = constrained.Base
	}
	result, err := c.coerce(base, value)
	if err != nil {
		return nil, err
	}
	// an absent optional has nothing to check
	if _, isNull := result.Value.(ir.NullValue); isNull && ir.IsOptional(base) {
		return result, nil
	}
	return c.applyConstraints(result, cs)
}

// applyConstraints fails on the first assert that does not hold and records the results of checks
func (c *Context) applyConstraints(result *ValueWithFlags, cs []ir.Constraint) (*ValueWithFlags, *ParsingError) {
	if c.Evaluator == nil || len(cs) == 0 {
		return result, nil
	}
	outcome, err := constraints.EvaluateConstraints(c.Evaluator, result.Value, cs)
	if err != nil {
		return nil, c.errorf("could not evaluate constraints: %v", err)
	}
	if outcome.FailedAssert != nil {
		return nil, c.errorf("assertion failed: %s", outcome.FailedAssert)
	}
	if len(outcome.Checks) > 0 {
		result.addFlags(Flag{Kind: ConstraintResults, Checks: outcome.Checks})
	}
	return result, nil
}
