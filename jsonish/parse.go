package jsonish

import (
	"errors"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/cottand/bamlc/util"
	"github.com/goccy/go-json"
)

// ParseFlexible interprets raw model output as a Value.
//
// Input that is valid JSON is decoded as is. Otherwise every fenced code block
// is parsed (as a Markdown value), then the first balanced {...} or [...] region
// of the surrounding prose, and finally the whole text after repairs (as FixedJSON).
// The result is always an AnyOf that also keeps raw, so that string targets can
// receive the text exactly as it was written.
func ParseFlexible(raw string) (Value, error) {
	src := strings.TrimPrefix(raw, "\uFEFF")
	src = strings.ReplaceAll(src, "\r\n", "\n")
	trimmed := strings.TrimSpace(src)
	if trimmed == "" {
		return nil, errors.New("nothing to parse: the output is empty")
	}
	if !utf8.ValidString(trimmed) {
		trimmed = strings.ToValidUTF8(trimmed, "\uFFFD")
	}

	result := AnyOf{Raw: raw}
	if json.Valid([]byte(trimmed)) {
		if v, err := decodeOne(trimmed); err == nil {
			result.Candidates = append(result.Candidates, v)
			return result, nil
		}
	}

	for _, block := range fencedBlocks(trimmed) {
		if v, ok := parseRepaired(block.Snd); ok {
			result.Candidates = append(result.Candidates, Markdown{Tag: block.Fst, Inner: v})
		}
	}
	if len(result.Candidates) > 0 {
		return result, nil
	}

	if region, ok := extractBalanced(trimmed); ok && region != trimmed {
		if v, ok := parseRepaired(region); ok {
			result.Candidates = append(result.Candidates, v)
		}
	}
	if len(result.Candidates) == 0 && looksStructured(trimmed) {
		if v, ok := parseRepaired(trimmed); ok {
			result.Candidates = append(result.Candidates, v)
		}
	}
	logger.Debug("parsed output leniently", "candidates", len(result.Candidates))
	return result, nil
}

// looksStructured avoids repairing prose into JSON: bare words would otherwise become strings
func looksStructured(s string) bool {
	return strings.ContainsAny(s, "{[")
}

// parseRepaired decodes s, repairing it first if it is not valid JSON.
// Several top level documents are returned as an Array.
func parseRepaired(s string) (Value, bool) {
	s = strings.TrimSpace(s)
	if json.Valid([]byte(s)) {
		v, err := decodeOne(s)
		return v, err == nil
	}
	fixed, fixes := repair(s)
	values, err := decodeAll(fixed)
	if err != nil || len(values) == 0 {
		logger.Debug("could not repair output", "err", err, "fixes", fixes)
		return nil, false
	}
	var v Value = Array(values)
	if len(values) == 1 {
		v = values[0]
	} else {
		fixes = append(fixes, "wrapped multiple documents in an array")
	}
	if len(fixes) == 0 {
		return v, true
	}
	return FixedJSON{Inner: v, Fixes: fixes}, true
}

var (
	reFence      = regexp.MustCompile("(?s)```([A-Za-z0-9_-]*)[ \t]*\n?(.*?)```")
	reUnqKey     = regexp.MustCompile(`([{\s,])([A-Za-z_][A-Za-z0-9_\-\.]*)\s*:`)
	reTrailComma = regexp.MustCompile(`,(\s*[}\]])`)
)

// fencedBlocks returns the language tag and the body of every ``` block
func fencedBlocks(s string) []util.Pair[string, string] {
	var blocks []util.Pair[string, string]
	for _, m := range reFence.FindAllStringSubmatch(s, -1) {
		body := strings.TrimSpace(m[2])
		if body == "" {
			continue
		}
		blocks = append(blocks, util.NewPair(strings.ToLower(m[1]), body))
	}
	return blocks
}

// extractBalanced returns the first balanced {...} or [...] region of s.
// An opener that is never closed yields the rest of s, which repairs may still fix.
func extractBalanced(s string) (string, bool) {
	start := -1
	var stack []rune
	inStr, escape := false, false
	for i, r := range s {
		if start < 0 {
			if r == '{' || r == '[' {
				start = i
				stack = []rune{r}
			}
			continue
		}
		if inStr {
			switch {
			case escape:
				escape = false
			case r == '\\':
				escape = true
			case r == '"':
				inStr = false
			}
			continue
		}
		switch r {
		case '"':
			inStr = true
		case '{', '[':
			stack = append(stack, r)
		case '}', ']':
			top := stack[len(stack)-1]
			if (top == '{' && r == '}') || (top == '[' && r == ']') {
				stack = stack[:len(stack)-1]
				if len(stack) == 0 {
					return s[start : i+1], true
				}
			}
		}
	}
	if start >= 0 {
		return s[start:], true
	}
	return "", false
}

// repair applies each fix in turn and names the ones that changed something
func repair(s string) (string, []string) {
	var fixes []string
	steps := []struct {
		name string
		fix  func(string) (string, bool)
	}{
		{"removed comments", stripComments},
		{"normalized smart quotes", normalizeSmartQuotes},
		{"converted single quoted strings", singleToDoubleQuoted},
		{"quoted object keys", quoteUnquotedKeys},
		{"removed trailing commas", dropTrailingCommas},
		{"closed unbalanced brackets", balanceAndClose},
	}
	for _, step := range steps {
		if fixed, changed := step.fix(s); changed {
			s = fixed
			fixes = append(fixes, step.name)
		}
	}
	return s, fixes
}

// stripComments removes // and /* */ comments outside of strings
func stripComments(s string) (string, bool) {
	var b strings.Builder
	inStr, escape, changed := false, false, false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inStr {
			b.WriteByte(c)
			switch {
			case escape:
				escape = false
			case c == '\\':
				escape = true
			case c == '"':
				inStr = false
			}
			continue
		}
		switch {
		case c == '"':
			inStr = true
			b.WriteByte(c)
		case c == '/' && i+1 < len(s) && s[i+1] == '/':
			changed = true
			for i < len(s) && s[i] != '\n' {
				i++
			}
			if i < len(s) {
				b.WriteByte('\n')
			}
		case c == '/' && i+1 < len(s) && s[i+1] == '*':
			changed = true
			i += 2
			for i+1 < len(s) && !(s[i] == '*' && s[i+1] == '/') {
				i++
			}
			i++
		default:
			b.WriteByte(c)
		}
	}
	return b.String(), changed
}

var smartQuotes = strings.NewReplacer(
	"“", `"`, "”", `"`, "„", `"`,
	"‘", `'`, "’", `'`, "‚", `'`,
)

func normalizeSmartQuotes(s string) (string, bool) {
	out := smartQuotes.Replace(s)
	return out, out != s
}

// singleToDoubleQuoted rewrites 'strings' as "strings", escaping the double quotes they contain
func singleToDoubleQuoted(s string) (string, bool) {
	var b strings.Builder
	inDq, inSq, escape, changed := false, false, false, false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inDq {
			b.WriteByte(c)
			switch {
			case escape:
				escape = false
			case c == '\\':
				escape = true
			case c == '"':
				inDq = false
			}
			continue
		}
		if inSq {
			switch {
			case escape:
				escape = false
				if c == '\'' {
					// \' needs no escaping inside double quotes
					b.WriteByte(c)
					continue
				}
				b.WriteByte('\\')
				b.WriteByte(c)
			case c == '\\':
				escape = true
			case c == '\'':
				b.WriteByte('"')
				inSq = false
			case c == '"':
				b.WriteString(`\"`)
			default:
				b.WriteByte(c)
			}
			continue
		}
		switch c {
		case '"':
			inDq = true
		case '\'':
			inSq = true
			changed = true
			c = '"'
		}
		b.WriteByte(c)
	}
	if inSq {
		b.WriteByte('"')
	}
	return b.String(), changed
}

func quoteUnquotedKeys(s string) (string, bool) {
	out := reUnqKey.ReplaceAllString(s, `${1}"${2}":`)
	return out, out != s
}

func dropTrailingCommas(s string) (string, bool) {
	out := reTrailComma.ReplaceAllString(s, `$1`)
	return out, out != s
}

// balanceAndClose closes an unterminated string and any bracket left open,
// and closes inner brackets that a mismatched closer skips over
func balanceAndClose(s string) (string, bool) {
	var out strings.Builder
	var stack []rune
	inStr, escape, changed := false, false, false
	closer := func(r rune) rune {
		if r == '{' {
			return '}'
		}
		return ']'
	}
	for _, r := range s {
		if inStr {
			out.WriteRune(r)
			switch {
			case escape:
				escape = false
			case r == '\\':
				escape = true
			case r == '"':
				inStr = false
			}
			continue
		}
		switch r {
		case '"':
			inStr = true
		case '{', '[':
			stack = append(stack, r)
		case '}', ']':
			for len(stack) > 0 && closer(stack[len(stack)-1]) != r {
				out.WriteRune(closer(stack[len(stack)-1]))
				stack = stack[:len(stack)-1]
				changed = true
			}
			if len(stack) == 0 {
				// a closer with nothing to close
				changed = true
				continue
			}
			stack = stack[:len(stack)-1]
		}
		out.WriteRune(r)
	}
	if inStr {
		out.WriteRune('"')
		changed = true
	}
	for i := len(stack) - 1; i >= 0; i-- {
		out.WriteRune(closer(stack[i]))
		changed = true
	}
	return out.String(), changed
}

// decodeOne decodes exactly one JSON document
func decodeOne(s string) (Value, error) {
	values, err := decodeAll(s)
	if err != nil {
		return nil, err
	}
	if len(values) != 1 {
		return nil, fmt.Errorf("expected one document, found %d", len(values))
	}
	return values[0], nil
}

// decodeAll decodes consecutive JSON documents, keeping numbers as their literal text
func decodeAll(s string) ([]Value, error) {
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()
	var values []Value
	for {
		v, err := decodeValue(dec)
		if errors.Is(err, io.EOF) {
			return values, nil
		}
		if err != nil {
			return nil, err
		}
		values = append(values, v)
	}
}

func decodeValue(dec *json.Decoder) (Value, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			obj := Object{}
			for dec.More() {
				keyTok, err := dec.Token()
				if err != nil {
					return nil, err
				}
				key, ok := keyTok.(string)
				if !ok {
					return nil, fmt.Errorf("expected an object key, found %v", keyTok)
				}
				v, err := decodeValue(dec)
				if err != nil {
					return nil, unexpectedEOF(err)
				}
				obj = append(obj, util.NewPair(key, v))
			}
			if _, err := dec.Token(); err != nil {
				return nil, unexpectedEOF(err)
			}
			return obj, nil
		case '[':
			arr := Array{}
			for dec.More() {
				v, err := decodeValue(dec)
				if err != nil {
					return nil, unexpectedEOF(err)
				}
				arr = append(arr, v)
			}
			if _, err := dec.Token(); err != nil {
				return nil, unexpectedEOF(err)
			}
			return arr, nil
		}
		return nil, fmt.Errorf("unexpected %c", rune(t))
	case string:
		return String(t), nil
	case json.Number:
		return Number{Raw: string(t)}, nil
	case float64:
		return Number{Raw: strconv.FormatFloat(t, 'g', -1, 64)}, nil
	case bool:
		return Bool(t), nil
	case nil:
		return Null{}, nil
	}
	return nil, fmt.Errorf("unexpected token %v", tok)
}

// unexpectedEOF keeps a truncated document from looking like the end of the input
func unexpectedEOF(err error) error {
	if errors.Is(err, io.EOF) {
		return io.ErrUnexpectedEOF
	}
	return err
}
