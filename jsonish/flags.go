package jsonish

import (
	"fmt"
	"strings"

	"github.com/cottand/bamlc/constraints"
)

// FlagKind names a repair or an approximation made while coercing a value
type FlagKind uint8

const (
	ObjectFromMarkdown FlagKind = iota + 1
	ObjectFromFixedJSON
	OptionalDefaultFromNoValue
	DefaultFromNoValue
	DefaultButHadUnparseableValue
	ImpliedKey
	ExtraKey
	SingleToArray
	ArrayItemParseError
	MapKeyParseError
	MapValueParseError
	StringToBool
	StringToNull
	StringToNumber
	FloatToInt
	JSONToString
	CaseInsensitiveMatch
	StrippedNonAlphaNumeric
	SubstringMatch
	UnionMatch
	ConstraintResults
)

func (k FlagKind) String() string {
	switch k {
	case ObjectFromMarkdown:
		return "ObjectFromMarkdown"
	case ObjectFromFixedJSON:
		return "ObjectFromFixedJSON"
	case OptionalDefaultFromNoValue:
		return "OptionalDefaultFromNoValue"
	case DefaultFromNoValue:
		return "DefaultFromNoValue"
	case DefaultButHadUnparseableValue:
		return "DefaultButHadUnparseableValue"
	case ImpliedKey:
		return "ImpliedKey"
	case ExtraKey:
		return "ExtraKey"
	case SingleToArray:
		return "SingleToArray"
	case ArrayItemParseError:
		return "ArrayItemParseError"
	case MapKeyParseError:
		return "MapKeyParseError"
	case MapValueParseError:
		return "MapValueParseError"
	case StringToBool:
		return "StringToBool"
	case StringToNull:
		return "StringToNull"
	case StringToNumber:
		return "StringToNumber"
	case FloatToInt:
		return "FloatToInt"
	case JSONToString:
		return "JSONToString"
	case CaseInsensitiveMatch:
		return "CaseInsensitiveMatch"
	case StrippedNonAlphaNumeric:
		return "StrippedNonAlphaNumeric"
	case SubstringMatch:
		return "SubstringMatch"
	case UnionMatch:
		return "UnionMatch"
	case ConstraintResults:
		return "ConstraintResults"
	}
	return fmt.Sprintf("FlagKind(%d)", k)
}

// Flag is attached to the node of a ValueWithFlags where the repair happened
type Flag struct {
	Kind FlagKind
	// Detail says what was repaired, like the name of an extra key or the reason an item was dropped
	Detail string
	// Checks are the results of the @check constraints, for ConstraintResults
	Checks []constraints.CheckResult
}

func (f Flag) String() string {
	switch {
	case len(f.Checks) > 0:
		results := make([]string, len(f.Checks))
		for i, c := range f.Checks {
			results[i] = fmt.Sprintf("%s=%t", c.Name, c.Passed)
		}
		return fmt.Sprintf("%s(%s)", f.Kind, strings.Join(results, ", "))
	case f.Detail != "":
		return fmt.Sprintf("%s(%s)", f.Kind, f.Detail)
	default:
		return f.Kind.String()
	}
}

func flag(kind FlagKind, detailFormat string, args ...any) Flag {
	return Flag{Kind: kind, Detail: fmt.Sprintf(detailFormat, args...)}
}
