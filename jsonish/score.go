package jsonish

// penalty is how far a flag takes a value from what was asked for.
// Union members and AnyOf candidates are ranked by the sum over the whole tree.
func (k FlagKind) penalty() int {
	switch k {
	case ObjectFromMarkdown, ObjectFromFixedJSON, UnionMatch, ConstraintResults:
		return 0
	case OptionalDefaultFromNoValue, ExtraKey, SingleToArray, ArrayItemParseError,
		MapKeyParseError, MapValueParseError, StringToBool, StringToNull,
		StringToNumber, FloatToInt, CaseInsensitiveMatch:
		return 1
	case DefaultButHadUnparseableValue, ImpliedKey, JSONToString, SubstringMatch:
		return 2
	case StrippedNonAlphaNumeric:
		return 3
	case DefaultFromNoValue:
		return 100
	}
	return 1
}

// Score sums the penalties of every flag in the tree. Lower is better, and 0 means no repairs were needed
// beyond extracting the value from markdown or fixing its syntax.
func (v *ValueWithFlags) Score() int {
	score := 0
	for node := range v.All() {
		for _, f := range node.Flags {
			score += f.Kind.penalty()
		}
	}
	return score
}
