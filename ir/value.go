package ir

import (
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"

	"github.com/cottand/bamlc/util"
)

// Value is a generic value checked against, or produced for, a FieldType.
//
// The set of implementations is closed: StringValue, IntValue, FloatValue,
// BoolValue, NullValue, MediaValue, EnumValue, ClassValue, ListValue and MapValue.
type Value interface {
	value()
}

type (
	StringValue string
	IntValue    int64
	FloatValue  float64
	BoolValue   bool
	NullValue   struct{}

	// MediaValue is an image or an audio file, either by URL or base64-encoded
	MediaValue struct {
		Kind      PrimitiveKind
		URL       string
		Base64    string
		MediaType string
	}

	EnumValue struct {
		Name  string
		Value string
	}

	// ClassValue keeps its fields in declaration order
	ClassValue struct {
		Name   string
		Fields []util.Pair[string, Value]
	}

	ListValue []Value

	// MapValue keeps its entries in insertion order
	MapValue []util.Pair[string, Value]
)

func (StringValue) value() {}
func (IntValue) value()    {}
func (FloatValue) value()  {}
func (BoolValue) value()   {}
func (NullValue) value()   {}
func (MediaValue) value()  {}
func (EnumValue) value()   {}
func (ClassValue) value()  {}
func (ListValue) value()   {}
func (MapValue) value()    {}

// Field returns the value of a class field
func (c ClassValue) Field(name string) (Value, bool) {
	for _, f := range c.Fields {
		if f.Fst == name {
			return f.Snd, true
		}
	}
	return nil, false
}

// Get returns the value of a map entry
func (m MapValue) Get(key string) (Value, bool) {
	for _, e := range m {
		if e.Fst == key {
			return e.Snd, true
		}
	}
	return nil, false
}

// Describe renders the shape of v for error messages, like `string "abc"` or `list of 3`
func Describe(v Value) string {
	switch v := v.(type) {
	case StringValue:
		s := string(v)
		if len(s) > 32 {
			s = s[:29] + "..."
		}
		return "string " + strconv.Quote(s)
	case IntValue:
		return "int " + strconv.FormatInt(int64(v), 10)
	case FloatValue:
		return "float " + strconv.FormatFloat(float64(v), 'g', -1, 64)
	case BoolValue:
		return "bool " + strconv.FormatBool(bool(v))
	case NullValue:
		return "null"
	case MediaValue:
		return v.Kind.String()
	case EnumValue:
		return fmt.Sprintf("enum %s.%s", v.Name, v.Value)
	case ClassValue:
		return "class " + v.Name
	case ListValue:
		return fmt.Sprintf("list of %d", len(v))
	case MapValue:
		return fmt.Sprintf("map of %d", len(v))
	case nil:
		return "nothing"
	}
	return fmt.Sprintf("%T", v)
}

// FromAny converts decoded JSON or YAML into a Value.
// Map keys are sorted since Go maps are unordered.
func FromAny(v any) (Value, error) {
	switch v := v.(type) {
	case nil:
		return NullValue{}, nil
	case Value:
		return v, nil
	case string:
		return StringValue(v), nil
	case bool:
		return BoolValue(v), nil
	case int:
		return IntValue(v), nil
	case int64:
		return IntValue(v), nil
	case uint64:
		if v > math.MaxInt64 {
			return FloatValue(v), nil
		}
		return IntValue(v), nil
	case float64:
		return FloatValue(v), nil
	case float32:
		return FloatValue(v), nil
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return IntValue(i), nil
		}
		f, err := v.Float64()
		if err != nil {
			return nil, fmt.Errorf("invalid number %s", v)
		}
		return FloatValue(f), nil
	case []any:
		list := make(ListValue, 0, len(v))
		for _, item := range v {
			converted, err := FromAny(item)
			if err != nil {
				return nil, err
			}
			list = append(list, converted)
		}
		return list, nil
	case map[string]any:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		slices.Sort(keys)
		m := make(MapValue, 0, len(v))
		for _, k := range keys {
			converted, err := FromAny(v[k])
			if err != nil {
				return nil, err
			}
			m = append(m, util.NewPair(k, converted))
		}
		return m, nil
	}
	return nil, fmt.Errorf("unsupported value of type %T", v)
}

// ToAny converts v into plain Go values: string, int64, float64, bool, nil,
// []any and map[string]any. Enums become their value, media their URL or payload.
func ToAny(v Value) any {
	switch v := v.(type) {
	case StringValue:
		return string(v)
	case IntValue:
		return int64(v)
	case FloatValue:
		return float64(v)
	case BoolValue:
		return bool(v)
	case NullValue, nil:
		return nil
	case MediaValue:
		if v.URL != "" {
			return v.URL
		}
		return v.Base64
	case EnumValue:
		return v.Value
	case ClassValue:
		m := make(map[string]any, len(v.Fields))
		for _, f := range v.Fields {
			m[f.Fst] = ToAny(f.Snd)
		}
		return m
	case ListValue:
		list := make([]any, len(v))
		for i, item := range v {
			list[i] = ToAny(item)
		}
		return list
	case MapValue:
		m := make(map[string]any, len(v))
		for _, e := range v {
			m[e.Fst] = ToAny(e.Snd)
		}
		return m
	}
	return nil
}

// Fingerprint is a stable textual identity of v, used to detect when a
// recursive coercion comes back to the same value
func Fingerprint(v Value) string {
	sb := strings.Builder{}
	writeFingerprint(&sb, v)
	return sb.String()
}

func writeFingerprint(sb *strings.Builder, v Value) {
	switch v := v.(type) {
	case StringValue:
		sb.WriteString(strconv.Quote(string(v)))
	case IntValue:
		sb.WriteString(strconv.FormatInt(int64(v), 10))
	case FloatValue:
		sb.WriteString(strconv.FormatFloat(float64(v), 'g', -1, 64))
	case BoolValue:
		sb.WriteString(strconv.FormatBool(bool(v)))
	case NullValue, nil:
		sb.WriteString("null")
	case MediaValue:
		sb.WriteString(v.Kind.String() + "(" + v.URL + v.Base64 + ")")
	case EnumValue:
		sb.WriteString(v.Name + "." + v.Value)
	case ClassValue:
		sb.WriteString(v.Name + "{")
		for _, f := range v.Fields {
			sb.WriteString(strconv.Quote(f.Fst) + ":")
			writeFingerprint(sb, f.Snd)
			sb.WriteString(",")
		}
		sb.WriteString("}")
	case ListValue:
		sb.WriteString("[")
		for _, item := range v {
			writeFingerprint(sb, item)
			sb.WriteString(",")
		}
		sb.WriteString("]")
	case MapValue:
		sb.WriteString("{")
		for _, e := range v {
			sb.WriteString(strconv.Quote(e.Fst) + ":")
			writeFingerprint(sb, e.Snd)
			sb.WriteString(",")
		}
		sb.WriteString("}")
	}
}
