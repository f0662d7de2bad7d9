package jsonish

import (
	"iter"

	"github.com/cottand/bamlc/ir"
	"github.com/cottand/bamlc/util"
)

// ValueWithFlags is a coerced value whose tree follows the target type,
// every node carrying the flags of the repairs made to produce it
type ValueWithFlags struct {
	Value ir.Value
	// Type is the type the node was coerced into. For unions it is the member that won.
	Type  ir.FieldType
	Flags []Flag
	// Items holds the elements of lists and tuples
	Items []*ValueWithFlags
	// Fields holds the fields of classes and the entries of maps
	Fields []util.Pair[string, *ValueWithFlags]
}

func leaf(v ir.Value, t ir.FieldType, flags ...Flag) *ValueWithFlags {
	return &ValueWithFlags{Value: v, Type: t, Flags: flags}
}

func (v *ValueWithFlags) addFlags(flags ...Flag) *ValueWithFlags {
	v.Flags = append(v.Flags, flags...)
	return v
}

// All iterates over the tree depth first, starting with the root
func (v *ValueWithFlags) All() iter.Seq[*ValueWithFlags] {
	return func(yield func(*ValueWithFlags) bool) {
		v.walk(yield)
	}
}

func (v *ValueWithFlags) walk(yield func(*ValueWithFlags) bool) bool {
	if !yield(v) {
		return false
	}
	for _, item := range v.Items {
		if !item.walk(yield) {
			return false
		}
	}
	for _, f := range v.Fields {
		if !f.Snd.walk(yield) {
			return false
		}
	}
	return true
}

// Condition is a flag together with where in the value it was raised
type Condition struct {
	Path string
	Flag Flag
}

// Conditions lists every flag of the tree with its path, depth first
func (v *ValueWithFlags) Conditions() []Condition {
	var conditions []Condition
	v.conditions(nil, &conditions)
	return conditions
}

func (v *ValueWithFlags) conditions(path []string, into *[]Condition) {
	for _, f := range v.Flags {
		*into = append(*into, Condition{Path: scopeString(path), Flag: f})
	}
	for i, item := range v.Items {
		item.conditions(append(path[:len(path):len(path)], indexScope(i)), into)
	}
	for _, f := range v.Fields {
		f.Snd.conditions(append(path[:len(path):len(path)], f.Fst), into)
	}
}

// HasFlag reports whether any node of the tree carries a flag of kind
func (v *ValueWithFlags) HasFlag(kind FlagKind) bool {
	for node := range v.All() {
		for _, f := range node.Flags {
			if f.Kind == kind {
				return true
			}
		}
	}
	return false
}
