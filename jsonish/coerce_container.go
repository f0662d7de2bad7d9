package jsonish

import (
	"github.com/cottand/bamlc/ir"
	"github.com/cottand/bamlc/util"
)

// coerceList coerces every element, dropping (and flagging) the ones that fail.
// It only fails when there were elements and none of them could be kept.
// A value that is not an array is taken as a list of one.
func (c *Context) coerceList(t ir.List, value Value) (*ValueWithFlags, *ParsingError) {
	switch v := value.(type) {
	case nil:
		return nil, c.errorf("expected %s, but the value is missing", t)
	case Null:
		return nil, c.errorf("expected %s, found null", t)
	case Array:
		result := &ValueWithFlags{Type: t}
		items := make(ir.ListValue, 0, len(v))
		var causes []*ParsingError
		for i, item := range v {
			coerced, err := c.enter(indexScope(i)).coerce(t.Elem, item)
			if err != nil {
				result.addFlags(flag(ArrayItemParseError, "%d: %s", i, err.Reason))
				causes = append(causes, err)
				continue
			}
			items = append(items, coerced.Value)
			result.Items = append(result.Items, coerced)
		}
		if len(v) > 0 && len(items) == 0 {
			return nil, c.errorWithCauses(causes, "no item of %s could be coerced into %s", describe(value), t)
		}
		result.Value = items
		return result, nil
	}

	item, err := c.coerce(t.Elem, value)
	if err != nil {
		return nil, c.errorWithCauses([]*ParsingError{err}, "expected %s, found %s", t, describe(value))
	}
	return &ValueWithFlags{
		Value: ir.ListValue{item.Value},
		Type:  t,
		Flags: []Flag{flag(SingleToArray, "%s", describe(value))},
		Items: []*ValueWithFlags{item},
	}, nil
}

func (c *Context) coerceTuple(t ir.Tuple, value Value) (*ValueWithFlags, *ParsingError) {
	arr, ok := value.(Array)
	if !ok {
		return nil, c.errorf("expected %s, found %s", t, describe(value))
	}
	if len(arr) != len(t.Items) {
		return nil, c.errorf("expected %d items for %s, found %d", len(t.Items), t, len(arr))
	}
	result := &ValueWithFlags{Type: t, Items: make([]*ValueWithFlags, len(arr))}
	items := make(ir.ListValue, len(arr))
	var causes []*ParsingError
	for i, item := range arr {
		coerced, err := c.enter(indexScope(i)).coerce(t.Items[i], item)
		if err != nil {
			causes = append(causes, err)
			continue
		}
		items[i] = coerced.Value
		result.Items[i] = coerced
	}
	if len(causes) > 0 {
		return nil, c.errorWithCauses(causes, "could not coerce %s into %s", describe(value), t)
	}
	result.Value = items
	return result, nil
}

// validMapKey reports whether t may key a map: strings, enums, string
// literals, or unions made only of string literals, possibly constrained.
// Key constraints are evaluated when the key is coerced.
func validMapKey(t ir.FieldType) bool {
	switch t := t.(type) {
	case ir.Constrained:
		return validMapKey(t.Base)
	case ir.Primitive:
		return t.Kind == ir.KindString
	case ir.Enum:
		return true
	}
	return onlyStringLiterals(t)
}

func onlyStringLiterals(t ir.FieldType) bool {
	switch t := t.(type) {
	case ir.Literal:
		_, ok := t.Value.(string)
		return ok
	case ir.Union:
		for _, item := range t.Items {
			if !onlyStringLiterals(item) {
				return false
			}
		}
		return len(t.Items) > 0
	}
	return false
}

// coerceMap keeps every entry whose key and value both coerce, flagging the
// others. It only fails when there were entries and none of them could be kept.
func (c *Context) coerceMap(t ir.Map, value Value) (*ValueWithFlags, *ParsingError) {
	if !validMapKey(t.Key) {
		return nil, c.errorf("%s cannot be used as a map key, only strings, enums and string literals can", t.Key)
	}
	obj, ok := value.(Object)
	if !ok {
		return nil, c.errorf("expected %s, found %s", t, describe(value))
	}

	result := &ValueWithFlags{Type: t}
	entries := make(ir.MapValue, 0, len(obj))
	var causes []*ParsingError
	for _, e := range obj {
		entryCtx := c.enter(e.Fst)
		key, err := entryCtx.coerce(t.Key, String(e.Fst))
		if err != nil {
			result.addFlags(flag(MapKeyParseError, "%s: %s", e.Fst, err.Reason))
			causes = append(causes, err)
			continue
		}
		coerced, err := entryCtx.coerce(t.Value, e.Snd)
		if err != nil {
			result.addFlags(flag(MapValueParseError, "%s: %s", e.Fst, err.Reason))
			causes = append(causes, err)
			continue
		}
		keyText := e.Fst
		switch k := key.Value.(type) {
		case ir.EnumValue:
			keyText = k.Value
		case ir.StringValue:
			keyText = string(k)
		}
		result.addFlags(key.Flags...)
		entries = append(entries, util.NewPair[string, ir.Value](keyText, coerced.Value))
		result.Fields = append(result.Fields, util.NewPair(keyText, coerced))
	}
	if len(obj) > 0 && len(entries) == 0 {
		return nil, c.errorWithCauses(causes, "no entry of %s could be coerced into %s", describe(value), t)
	}
	result.Value = entries
	return result, nil
}
