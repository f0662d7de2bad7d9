package jsonish

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/cottand/bamlc/util"
)

// Value is model output parsed as leniently as possible, before it is checked against any type.
//
// String, Number, Bool, Null, Array and Object mirror JSON. Markdown, FixedJSON and
// AnyOf record how the value was obtained from the raw text, so coercion can
// flag it and prefer the candidates that needed the fewest repairs.
type Value interface {
	jsonishValue()
}

type (
	String string
	// Number keeps the literal text so that ints and floats are told apart only once the target type is known
	Number struct {
		Raw string
	}
	Bool  bool
	Null  struct{}
	Array []Value
	// Object keeps its keys in the order they were written, duplicates included
	Object []util.Pair[string, Value]

	// Markdown is a value found inside a fenced code block, tagged with the block's language
	Markdown struct {
		Tag   string
		Inner Value
	}

	// FixedJSON is a value that only parsed after the listed repairs
	FixedJSON struct {
		Inner Value
		Fixes []string
	}

	// AnyOf holds every interpretation of Raw, in order of preference
	AnyOf struct {
		Candidates []Value
		Raw        string
	}
)

func (String) jsonishValue()    {}
func (Number) jsonishValue()    {}
func (Bool) jsonishValue()      {}
func (Null) jsonishValue()      {}
func (Array) jsonishValue()     {}
func (Object) jsonishValue()    {}
func (Markdown) jsonishValue()  {}
func (FixedJSON) jsonishValue() {}
func (AnyOf) jsonishValue()     {}

// Get returns the first value for key
func (o Object) Get(key string) (Value, bool) {
	for _, e := range o {
		if e.Fst == key {
			return e.Snd, true
		}
	}
	return nil, false
}

func describe(v Value) string {
	switch v := v.(type) {
	case nil:
		return "nothing"
	case String:
		s := string(v)
		if len(s) > 32 {
			s = s[:29] + "..."
		}
		return "string " + strconv.Quote(s)
	case Number:
		return "number " + v.Raw
	case Bool:
		return "bool " + strconv.FormatBool(bool(v))
	case Null:
		return "null"
	case Array:
		return fmt.Sprintf("array of %d", len(v))
	case Object:
		return fmt.Sprintf("object with %d keys", len(v))
	case Markdown:
		return "markdown block containing " + describe(v.Inner)
	case FixedJSON:
		return describe(v.Inner)
	case AnyOf:
		return fmt.Sprintf("one of %d interpretations", len(v.Candidates))
	}
	return fmt.Sprintf("%T", v)
}

// fingerprint identifies v for the cycle guard. Markers are transparent
// except AnyOf, whose raw text is what distinguishes it.
func fingerprint(v Value) string {
	return toJSON(v)
}

// writeJSON renders v as compact JSON
func writeJSON(sb *strings.Builder, v Value) {
	switch v := v.(type) {
	case nil, Null:
		sb.WriteString("null")
	case String:
		sb.WriteString(strconv.Quote(string(v)))
	case Number:
		sb.WriteString(v.Raw)
	case Bool:
		sb.WriteString(strconv.FormatBool(bool(v)))
	case Array:
		sb.WriteByte('[')
		for i, item := range v {
			if i > 0 {
				sb.WriteByte(',')
			}
			writeJSON(sb, item)
		}
		sb.WriteByte(']')
	case Object:
		sb.WriteByte('{')
		for i, e := range v {
			if i > 0 {
				sb.WriteByte(',')
			}
			sb.WriteString(strconv.Quote(e.Fst))
			sb.WriteByte(':')
			writeJSON(sb, e.Snd)
		}
		sb.WriteByte('}')
	case Markdown:
		writeJSON(sb, v.Inner)
	case FixedJSON:
		writeJSON(sb, v.Inner)
	case AnyOf:
		sb.WriteString(strconv.Quote(v.Raw))
	}
}

// toJSON renders v as compact JSON text, which is how structured values
// are turned into strings when a string is wanted
func toJSON(v Value) string {
	sb := &strings.Builder{}
	writeJSON(sb, v)
	return sb.String()
}
