package jsonish

import (
	"math"
	"strconv"
	"strings"

	"github.com/cottand/bamlc/ir"
)

func (c *Context) coercePrimitive(t ir.Primitive, value Value) (*ValueWithFlags, *ParsingError) {
	if value == nil {
		if t.Kind == ir.KindNull {
			return leaf(ir.NullValue{}, t), nil
		}
		return nil, c.errorf("expected %s, but the value is missing", t)
	}
	switch t.Kind {
	case ir.KindString:
		return c.coerceString(t, value)
	case ir.KindInt:
		return c.coerceInt(t, value)
	case ir.KindFloat:
		return c.coerceFloat(t, value)
	case ir.KindBool:
		return c.coerceBool(t, value)
	case ir.KindNull:
		return c.coerceNull(t, value)
	case ir.KindImage, ir.KindAudio:
		return c.coerceMedia(t, value)
	}
	return nil, c.errorf("cannot coerce into %s", t)
}

func (c *Context) coerceString(t ir.Primitive, value Value) (*ValueWithFlags, *ParsingError) {
	switch v := value.(type) {
	case String:
		return leaf(ir.StringValue(v), t), nil
	case Number:
		return leaf(ir.StringValue(v.Raw), t, flag(JSONToString, "number")), nil
	case Bool:
		return leaf(ir.StringValue(strconv.FormatBool(bool(v))), t, flag(JSONToString, "bool")), nil
	case Array, Object:
		return leaf(ir.StringValue(toJSON(v)), t, flag(JSONToString, "%s", describe(v))), nil
	}
	return nil, c.errorf("expected a string, found %s", describe(value))
}

// numericText cleans up how numbers are commonly written in prose, like "1,000" or "$ 3.5"
func numericText(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "$")
	s = strings.TrimSuffix(s, "%")
	s = strings.TrimSuffix(s, ",")
	s = strings.TrimSuffix(s, ".")
	return strings.ReplaceAll(strings.TrimSpace(s), ",", "")
}

func (c *Context) coerceInt(t ir.Primitive, value Value) (*ValueWithFlags, *ParsingError) {
	var text string
	var flags []Flag
	switch v := value.(type) {
	case Number:
		text = v.Raw
	case String:
		text = numericText(string(v))
		flags = append(flags, flag(StringToNumber, "%q", string(v)))
	default:
		return nil, c.errorf("expected an int, found %s", describe(value))
	}
	if i, err := strconv.ParseInt(text, 10, 64); err == nil {
		return leaf(ir.IntValue(i), t, flags...), nil
	}
	f, err := strconv.ParseFloat(text, 64)
	if err != nil || math.IsNaN(f) || f >= math.MaxInt64 || f < math.MinInt64 {
		return nil, c.errorf("expected an int, found %s", describe(value))
	}
	rounded := math.Round(f)
	flags = append(flags, flag(FloatToInt, "%s", text))
	return leaf(ir.IntValue(int64(rounded)), t, flags...), nil
}

func (c *Context) coerceFloat(t ir.Primitive, value Value) (*ValueWithFlags, *ParsingError) {
	var text string
	var flags []Flag
	switch v := value.(type) {
	case Number:
		text = v.Raw
	case String:
		text = numericText(string(v))
		flags = append(flags, flag(StringToNumber, "%q", string(v)))
	default:
		return nil, c.errorf("expected a float, found %s", describe(value))
	}
	if num, den, ok := strings.Cut(text, "/"); ok {
		n, errN := strconv.ParseFloat(strings.TrimSpace(num), 64)
		d, errD := strconv.ParseFloat(strings.TrimSpace(den), 64)
		if errN == nil && errD == nil && d != 0 {
			return leaf(ir.FloatValue(n/d), t, flags...), nil
		}
	}
	f, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return nil, c.errorf("expected a float, found %s", describe(value))
	}
	return leaf(ir.FloatValue(f), t, flags...), nil
}

func (c *Context) coerceBool(t ir.Primitive, value Value) (*ValueWithFlags, *ParsingError) {
	switch v := value.(type) {
	case Bool:
		return leaf(ir.BoolValue(v), t), nil
	case String:
		switch strings.ToLower(strings.Trim(strings.TrimSpace(string(v)), ".!\"'`")) {
		case "true":
			return leaf(ir.BoolValue(true), t, flag(StringToBool, "%q", string(v))), nil
		case "false":
			return leaf(ir.BoolValue(false), t, flag(StringToBool, "%q", string(v))), nil
		}
	}
	return nil, c.errorf("expected a bool, found %s", describe(value))
}

func (c *Context) coerceNull(t ir.Primitive, value Value) (*ValueWithFlags, *ParsingError) {
	switch v := value.(type) {
	case Null:
		return leaf(ir.NullValue{}, t), nil
	case String:
		switch strings.ToLower(strings.TrimSpace(string(v))) {
		case "null", "none", "nil":
			return leaf(ir.NullValue{}, t, flag(StringToNull, "%q", string(v))), nil
		}
	}
	return nil, c.errorf("expected null, found %s", describe(value))
}

// coerceMedia accepts a URL or data URI, or an object with url, base64 and media_type keys
func (c *Context) coerceMedia(t ir.Primitive, value Value) (*ValueWithFlags, *ParsingError) {
	media := ir.MediaValue{Kind: t.Kind}
	switch v := value.(type) {
	case String:
		s := strings.TrimSpace(string(v))
		if rest, ok := strings.CutPrefix(s, "data:"); ok {
			mediaType, payload, found := strings.Cut(rest, ";base64,")
			if !found {
				return nil, c.errorf("expected a base64 data URI for %s", t)
			}
			media.MediaType, media.Base64 = mediaType, payload
		} else {
			media.URL = s
		}
	case Object:
		for _, e := range v {
			s, ok := e.Snd.(String)
			if !ok {
				continue
			}
			switch e.Fst {
			case "url":
				media.URL = string(s)
			case "base64":
				media.Base64 = string(s)
			case "media_type":
				media.MediaType = string(s)
			}
		}
		if media.URL == "" && media.Base64 == "" {
			return nil, c.errorf("expected an object with a url or base64 key for %s", t)
		}
	default:
		return nil, c.errorf("expected %s, found %s", t, describe(value))
	}
	return leaf(media, t), nil
}

func (c *Context) coerceLiteral(t ir.Literal, value Value) (*ValueWithFlags, *ParsingError) {
	switch want := t.Value.(type) {
	case string:
		s, ok := value.(String)
		if !ok {
			return nil, c.errorf("expected %s, found %s", t, describe(value))
		}
		matched, flags, ok := matchText(string(s), []string{want})
		if !ok || matched != want {
			return nil, c.errorf("expected %s, found %s", t, describe(value))
		}
		return leaf(ir.StringValue(want), t, flags...), nil
	case int64:
		result, err := c.coerceInt(ir.Int, value)
		if err != nil {
			return nil, c.errorf("expected %s, found %s", t, describe(value))
		}
		if result.Value != ir.IntValue(want) {
			return nil, c.errorf("expected %s, found %s", t, describe(value))
		}
		result.Type = t
		return result, nil
	case bool:
		result, err := c.coerceBool(ir.Bool, value)
		if err != nil {
			return nil, c.errorf("expected %s, found %s", t, describe(value))
		}
		if result.Value != ir.BoolValue(want) {
			return nil, c.errorf("expected %s, found %s", t, describe(value))
		}
		result.Type = t
		return result, nil
	}
	return nil, c.errorf("unsupported literal %s", t)
}
