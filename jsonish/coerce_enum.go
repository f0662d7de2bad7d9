package jsonish

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/cottand/bamlc/ir"
)

func (c *Context) coerceEnum(t ir.Enum, value Value) (*ValueWithFlags, *ParsingError) {
	def, err := c.IR.FindEnum(t.Name)
	if err != nil {
		return nil, c.errorf("%v", err)
	}
	var text string
	switch v := value.(type) {
	case String:
		text = string(v)
	case Number:
		text = v.Raw
	default:
		return nil, c.errorf("expected a value of enum %s, found %s", t.Name, describe(value))
	}

	var candidates []string
	owner := make(map[string]string)
	for _, member := range def.Elem.Values {
		if member.Attributes.Skip {
			continue
		}
		for _, name := range []string{member.Elem.Name, member.Attributes.Alias} {
			if _, seen := owner[name]; name == "" || seen {
				continue
			}
			owner[name] = member.Elem.Name
			candidates = append(candidates, name)
		}
	}
	matched, flags, ok := matchText(text, candidates)
	if !ok {
		return nil, c.errorf("%s is not a value of enum %s", describe(value), t.Name)
	}
	result := leaf(ir.EnumValue{Name: t.Name, Value: owner[matched]}, t, flags...)
	return c.applyConstraints(result, def.Constraints)
}

// matchText finds the candidate that text stands for, trying progressively looser matches:
// exact, case-insensitive, ignoring punctuation, and finally the candidate mentioned
// most often in text. Every match but the exact one is flagged.
func matchText(text string, candidates []string) (string, []Flag, bool) {
	trimmed := strings.TrimSpace(text)
	for _, cand := range candidates {
		if trimmed == cand {
			return cand, nil, true
		}
	}
	for _, cand := range candidates {
		if strings.EqualFold(trimmed, cand) {
			return cand, []Flag{flag(CaseInsensitiveMatch, "%s", cand)}, true
		}
	}
	stripped := stripNonAlphaNumeric(trimmed)
	for _, cand := range candidates {
		if s := stripNonAlphaNumeric(cand); s != "" && s == stripped {
			return cand, []Flag{flag(StrippedNonAlphaNumeric, "%s", cand)}, true
		}
	}

	best, bestCount, tie := "", 0, false
	for _, cand := range candidates {
		n := countMentions(text, cand)
		switch {
		case n > bestCount:
			best, bestCount, tie = cand, n, false
		case n > 0 && n == bestCount:
			tie = true
		}
	}
	if bestCount == 0 || tie {
		return "", nil, false
	}
	return best, []Flag{flag(SubstringMatch, "%s", best)}, true
}

func stripNonAlphaNumeric(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return unicode.ToLower(r)
		}
		return -1
	}, s)
}

// countMentions counts case-insensitive occurrences of cand in text as a whole word
func countMentions(text, cand string) int {
	if strings.TrimSpace(cand) == "" {
		return 0
	}
	pattern := regexp.QuoteMeta(cand)
	if isWordRune(firstRune(cand)) {
		pattern = `\b` + pattern
	}
	if isWordRune(lastRune(cand)) {
		pattern += `\b`
	}
	re, err := regexp.Compile("(?i)" + pattern)
	if err != nil {
		return 0
	}
	return len(re.FindAllStringIndex(text, -1))
}

func isWordRune(r rune) bool {
	return r == '_' || ('a' <= r && r <= 'z') || ('A' <= r && r <= 'Z') || ('0' <= r && r <= '9')
}

func firstRune(s string) rune {
	for _, r := range s {
		return r
	}
	return 0
}

func lastRune(s string) rune {
	runes := []rune(s)
	if len(runes) == 0 {
		return 0
	}
	return runes[len(runes)-1]
}
