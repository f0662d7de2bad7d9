package jsonish

import (
	"strconv"

	"github.com/cottand/bamlc/ir"
	"github.com/cottand/bamlc/util"
)

func (c *Context) coerceClass(t ir.Class, value Value) (*ValueWithFlags, *ParsingError) {
	def, err := c.IR.FindClass(t.Name)
	if err != nil {
		return nil, c.errorf("%v", err)
	}
	next, ok := c.visit(t.Name, value)
	if !ok {
		return nil, c.errorf("circular reference: class %s refers back to itself for %s", t.Name, describe(value))
	}

	var fields []*ir.Node[ir.Field]
	for _, f := range def.Elem.Fields {
		if !f.Attributes.Skip {
			fields = append(fields, f)
		}
	}

	var result *ValueWithFlags
	var perr *ParsingError
	switch v := value.(type) {
	case Object:
		result, perr = next.classFromObject(t, def, fields, v)
	case nil:
		return nil, c.errorf("expected class %s, but the value is missing", t.Name)
	default:
		if len(fields) != 1 {
			return nil, c.errorf("expected an object for class %s, found %s", t.Name, describe(value))
		}
		result, perr = next.classFromImpliedKey(t, fields[0], value)
	}
	if perr != nil {
		return nil, perr
	}
	return next.applyConstraints(result, def.Constraints)
}

// classFromImpliedKey treats value as the value of the only field of the class
func (c *Context) classFromImpliedKey(t ir.Class, field *ir.Node[ir.Field], value Value) (*ValueWithFlags, *ParsingError) {
	coerced, err := c.enter(field.Elem.Name).coerce(field.Elem.Type, value)
	if err != nil {
		return nil, c.errorWithCauses([]*ParsingError{err}, "could not coerce %s into class %s", describe(value), t.Name)
	}
	return &ValueWithFlags{
		Value: ir.ClassValue{Name: t.Name, Fields: []util.Pair[string, ir.Value]{
			util.NewPair(field.Elem.Name, coerced.Value),
		}},
		Type:   t,
		Flags:  []Flag{flag(ImpliedKey, "%s", field.Elem.Name)},
		Fields: []util.Pair[string, *ValueWithFlags]{util.NewPair(field.Elem.Name, coerced)},
	}, nil
}

func (c *Context) classFromObject(t ir.Class, def *ir.Node[ir.ClassDef], fields []*ir.Node[ir.Field], obj Object) (*ValueWithFlags, *ParsingError) {
	used := make([]bool, len(obj))
	// exact keys win over keys that only match when ignoring case and punctuation,
	// and the latter are flagged
	find := func(names []string) (Value, []Flag, bool) {
		for _, name := range names {
			for i, e := range obj {
				if !used[i] && e.Fst == name {
					used[i] = true
					return e.Snd, nil, true
				}
			}
		}
		for _, name := range names {
			for i, e := range obj {
				if !used[i] && stripNonAlphaNumeric(e.Fst) == stripNonAlphaNumeric(name) {
					used[i] = true
					return e.Snd, []Flag{flag(StrippedNonAlphaNumeric, "%s", e.Fst)}, true
				}
			}
		}
		return nil, nil, false
	}

	result := &ValueWithFlags{Type: t}
	class := ir.ClassValue{Name: t.Name}
	var causes []*ParsingError
	for _, f := range fields {
		names := []string{f.Elem.Name}
		if alias := f.Attributes.Alias; alias != "" && alias != f.Elem.Name {
			names = []string{alias, f.Elem.Name}
		}
		fieldCtx := c.enter(f.Elem.Name)
		var coerced *ValueWithFlags
		var err *ParsingError
		if raw, keyFlags, found := find(names); found {
			coerced, err = fieldCtx.coerce(f.Elem.Type, raw)
			if err == nil {
				coerced.addFlags(keyFlags...)
			}
		} else {
			coerced, err = fieldCtx.missingField(f.Elem.Type)
		}
		if err != nil {
			causes = append(causes, err)
			continue
		}
		class.Fields = append(class.Fields, util.NewPair(f.Elem.Name, coerced.Value))
		result.Fields = append(result.Fields, util.NewPair(f.Elem.Name, coerced))
	}
	if len(causes) > 0 {
		return nil, c.errorWithCauses(causes, "could not coerce %s into class %s", describe(obj), t.Name)
	}

	for i, e := range obj {
		if used[i] {
			continue
		}
		if !def.Attributes.Dynamic {
			result.addFlags(flag(ExtraKey, "%s", e.Fst))
			continue
		}
		// dynamic classes keep the keys they do not declare, typed by their content
		extra := plainValue(e.Snd)
		extraType, ok := ir.InferType(extra)
		if !ok {
			extraType = ir.Null
		}
		class.Fields = append(class.Fields, util.NewPair(e.Fst, extra))
		result.Fields = append(result.Fields, util.NewPair(e.Fst, leaf(extra, extraType)))
	}
	result.Value = class
	return result, nil
}

// missingField gives optional fields null and list fields an empty list.
// Every other field is required.
func (c *Context) missingField(t ir.FieldType) (*ValueWithFlags, *ParsingError) {
	if ir.IsOptional(t) {
		return c.coerce(t, nil)
	}
	base := t
	for {
		constrained, ok := base.(ir.Constrained)
		if !ok {
			break
		}
		base = constrained.Base
	}
	if _, isList := base.(ir.List); isList {
		return leaf(ir.ListValue{}, t, Flag{Kind: DefaultFromNoValue}), nil
	}
	return nil, c.errorf("missing required field of type %s", t)
}

// plainValue converts v without a target type: numbers become ints when they can be
func plainValue(v Value) ir.Value {
	switch v := v.(type) {
	case String:
		return ir.StringValue(v)
	case Number:
		if i, err := strconv.ParseInt(v.Raw, 10, 64); err == nil {
			return ir.IntValue(i)
		}
		f, _ := strconv.ParseFloat(v.Raw, 64)
		return ir.FloatValue(f)
	case Bool:
		return ir.BoolValue(v)
	case Array:
		list := make(ir.ListValue, len(v))
		for i, item := range v {
			list[i] = plainValue(item)
		}
		return list
	case Object:
		m := make(ir.MapValue, len(v))
		for i, e := range v {
			m[i] = util.NewPair(e.Fst, plainValue(e.Snd))
		}
		return m
	case Markdown:
		return plainValue(v.Inner)
	case FixedJSON:
		return plainValue(v.Inner)
	case AnyOf:
		if len(v.Candidates) > 0 {
			return plainValue(v.Candidates[0])
		}
		return ir.StringValue(v.Raw)
	}
	return ir.NullValue{}
}
