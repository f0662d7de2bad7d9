package ast

import (
	"fmt"
	"go/token"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// SyntaxError is returned when a type expression or an attribute list cannot be parsed
type SyntaxError struct {
	Range
	Msg string
}

func (e *SyntaxError) Error() string { return e.Msg }

type tokKind uint8

const (
	tokEOF tokKind = iota
	tokIdent
	tokString
	tokInt
	tokExpr // {{ ... }}
	tokLBrack
	tokRBrack
	tokLParen
	tokRParen
	tokLAngle
	tokRAngle
	tokComma
	tokPipe
	tokQuestion
	tokAt
	tokAtAt
)

func (k tokKind) String() string {
	switch k {
	case tokEOF:
		return "end of input"
	case tokIdent:
		return "identifier"
	case tokString:
		return "string"
	case tokInt:
		return "integer"
	case tokExpr:
		return "{{ expression }}"
	case tokLBrack:
		return "'['"
	case tokRBrack:
		return "']'"
	case tokLParen:
		return "'('"
	case tokRParen:
		return "')'"
	case tokLAngle:
		return "'<'"
	case tokRAngle:
		return "'>'"
	case tokComma:
		return "','"
	case tokPipe:
		return "'|'"
	case tokQuestion:
		return "'?'"
	case tokAt:
		return "'@'"
	case tokAtAt:
		return "'@@'"
	default:
		return "unknown token"
	}
}

type tok struct {
	kind       tokKind
	text       string
	start, end int
}

type typeLexer struct {
	src  string
	base token.Pos
	off  int
}

func (l *typeLexer) rng(start, end int) Range {
	if !l.base.IsValid() {
		return Range{}
	}
	return Range{PosStart: l.base + token.Pos(start), PosEnd: l.base + token.Pos(end)}
}

func (l *typeLexer) errorf(start, end int, format string, args ...any) *SyntaxError {
	return &SyntaxError{Range: l.rng(start, end), Msg: fmt.Sprintf(format, args...)}
}

func (l *typeLexer) next() (tok, error) {
	for l.off < len(l.src) {
		r, w := utf8.DecodeRuneInString(l.src[l.off:])
		if !unicode.IsSpace(r) {
			break
		}
		l.off += w
	}
	start := l.off
	if l.off >= len(l.src) {
		return tok{kind: tokEOF, start: start, end: start}, nil
	}
	single := func(kind tokKind) (tok, error) {
		l.off++
		return tok{kind: kind, text: l.src[start:l.off], start: start, end: l.off}, nil
	}
	c := l.src[l.off]
	switch c {
	case '[':
		return single(tokLBrack)
	case ']':
		return single(tokRBrack)
	case '(':
		return single(tokLParen)
	case ')':
		return single(tokRParen)
	case '<':
		return single(tokLAngle)
	case '>':
		return single(tokRAngle)
	case ',':
		return single(tokComma)
	case '|':
		return single(tokPipe)
	case '?':
		return single(tokQuestion)
	case '@':
		if strings.HasPrefix(l.src[l.off:], "@@") {
			l.off += 2
			return tok{kind: tokAtAt, text: "@@", start: start, end: l.off}, nil
		}
		return single(tokAt)
	case '{':
		if !strings.HasPrefix(l.src[l.off:], "{{") {
			return tok{}, l.errorf(start, start+1, "unexpected '{', expressions are written as {{ expr }}")
		}
		closing := strings.Index(l.src[l.off+2:], "}}")
		if closing < 0 {
			return tok{}, l.errorf(start, len(l.src), "unterminated expression, missing '}}'")
		}
		body := l.src[l.off+2 : l.off+2+closing]
		l.off += 2 + closing + 2
		return tok{kind: tokExpr, text: strings.TrimSpace(body), start: start, end: l.off}, nil
	case '"':
		end := l.off + 1
		escaped := false
		for ; end < len(l.src); end++ {
			if escaped {
				escaped = false
				continue
			}
			if l.src[end] == '\\' {
				escaped = true
				continue
			}
			if l.src[end] == '"' {
				break
			}
		}
		if end >= len(l.src) {
			return tok{}, l.errorf(start, len(l.src), "unterminated string literal")
		}
		raw := l.src[l.off : end+1]
		unquoted, err := strconv.Unquote(raw)
		if err != nil {
			return tok{}, l.errorf(start, end+1, "invalid string literal %s", raw)
		}
		l.off = end + 1
		return tok{kind: tokString, text: unquoted, start: start, end: l.off}, nil
	}
	if c == '-' || (c >= '0' && c <= '9') {
		end := l.off + 1
		for end < len(l.src) && l.src[end] >= '0' && l.src[end] <= '9' {
			end++
		}
		if c == '-' && end == l.off+1 {
			return tok{}, l.errorf(start, end, "unexpected '-'")
		}
		l.off = end
		return tok{kind: tokInt, text: l.src[start:end], start: start, end: end}, nil
	}
	r, _ := utf8.DecodeRuneInString(l.src[l.off:])
	if r == '_' || unicode.IsLetter(r) {
		end := l.off
		for end < len(l.src) {
			r, w := utf8.DecodeRuneInString(l.src[end:])
			if r != '_' && !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '.' {
				break
			}
			end += w
		}
		l.off = end
		return tok{kind: tokIdent, text: l.src[start:end], start: start, end: end}, nil
	}
	return tok{}, l.errorf(start, start+1, "unexpected character %q", r)
}

type typeParser struct {
	lex  *typeLexer
	cur  tok
	peek *tok
}

func newTypeParser(src string, base token.Pos) (*typeParser, error) {
	p := &typeParser{lex: &typeLexer{src: src, base: base}}
	if err := p.advance(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *typeParser) advance() error {
	if p.peek != nil {
		p.cur = *p.peek
		p.peek = nil
		return nil
	}
	t, err := p.lex.next()
	if err != nil {
		return err
	}
	p.cur = t
	return nil
}

func (p *typeParser) lookahead() (tok, error) {
	if p.peek == nil {
		t, err := p.lex.next()
		if err != nil {
			return tok{}, err
		}
		p.peek = &t
	}
	return *p.peek, nil
}

func (p *typeParser) expect(kind tokKind) (tok, error) {
	if p.cur.kind != kind {
		return tok{}, p.lex.errorf(p.cur.start, p.cur.end, "expected %v, found %v", kind, p.cur.kind)
	}
	t := p.cur
	return t, p.advance()
}

// ParseType parses a type expression such as `map<string, Foo[]> | null` or
// `int @assert(positive, {{ this > 0 }})`. base is the position of the first
// character of src, and may be token.NoPos.
func ParseType(src string, base token.Pos) (Type, error) {
	p, err := newTypeParser(src, base)
	if err != nil {
		return nil, err
	}
	t, err := p.parseUnion()
	if err != nil {
		return nil, err
	}
	if p.cur.kind != tokEOF {
		return nil, p.lex.errorf(p.cur.start, p.cur.end, "unexpected %v after type", p.cur.kind)
	}
	return t, nil
}

// ParseAttributes parses a whitespace-separated list of attributes, like `@@dynamic @@alias("x")`
func ParseAttributes(src string, base token.Pos) ([]Attribute, error) {
	p, err := newTypeParser(src, base)
	if err != nil {
		return nil, err
	}
	var attrs []Attribute
	for p.cur.kind == tokAt || p.cur.kind == tokAtAt {
		attr, err := p.parseAttribute()
		if err != nil {
			return nil, err
		}
		attrs = append(attrs, attr)
	}
	if p.cur.kind != tokEOF {
		return nil, p.lex.errorf(p.cur.start, p.cur.end, "expected attribute, found %v", p.cur.kind)
	}
	return attrs, nil
}

func (p *typeParser) parseUnion() (Type, error) {
	start := p.cur.start
	first, err := p.parsePostfix()
	if err != nil {
		return nil, err
	}
	items := []Type{first}
	for p.cur.kind == tokPipe {
		if err := p.advance(); err != nil {
			return nil, err
		}
		item, err := p.parsePostfix()
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if len(items) == 1 {
		return first, nil
	}
	return &UnionType{Range: p.lex.rng(start, p.cur.start), Items: items}, nil
}

func (p *typeParser) parsePostfix() (Type, error) {
	start := p.cur.start
	t, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	for {
		switch p.cur.kind {
		case tokLBrack:
			if err := p.advance(); err != nil {
				return nil, err
			}
			end, err := p.expect(tokRBrack)
			if err != nil {
				return nil, err
			}
			t = &ListType{Range: p.lex.rng(start, end.end), Elem: t}
		case tokQuestion:
			end := p.cur.end
			if err := p.advance(); err != nil {
				return nil, err
			}
			t = &OptionalType{Range: p.lex.rng(start, end), Inner: t}
		case tokAt:
			attr, err := p.parseAttribute()
			if err != nil {
				return nil, err
			}
			AttributesOf(t).Attributes = append(AttributesOf(t).Attributes, attr)
		default:
			return t, nil
		}
	}
}

// AttributesOf returns the attribute list of a type node so it can be modified in place
func AttributesOf(t Type) *Attributed {
	switch t := t.(type) {
	case *PrimitiveType:
		return &t.Attributed
	case *LiteralType:
		return &t.Attributed
	case *SymbolType:
		return &t.Attributed
	case *ListType:
		return &t.Attributed
	case *MapType:
		return &t.Attributed
	case *UnionType:
		return &t.Attributed
	case *TupleType:
		return &t.Attributed
	case *OptionalType:
		return &t.Attributed
	}
	panic(fmt.Sprintf("unreachable: unknown type node %T", t))
}

func (p *typeParser) parsePrimary() (Type, error) {
	t := p.cur
	switch t.kind {
	case tokIdent:
		if t.text == "map" {
			if next, err := p.lookahead(); err != nil {
				return nil, err
			} else if next.kind == tokLAngle {
				return p.parseMap()
			}
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
		r := p.lex.rng(t.start, t.end)
		switch {
		case t.text == "true" || t.text == "false":
			return &LiteralType{Range: r, Value: t.text == "true"}, nil
		case IsPrimitiveName(t.text):
			return &PrimitiveType{Range: r, Name: t.text}, nil
		default:
			return &SymbolType{Range: r, Name: t.text}, nil
		}
	case tokString:
		if err := p.advance(); err != nil {
			return nil, err
		}
		return &LiteralType{Range: p.lex.rng(t.start, t.end), Value: t.text}, nil
	case tokInt:
		v, err := strconv.ParseInt(t.text, 10, 64)
		if err != nil {
			return nil, p.lex.errorf(t.start, t.end, "integer literal %s out of range", t.text)
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
		return &LiteralType{Range: p.lex.rng(t.start, t.end), Value: v}, nil
	case tokLParen:
		if err := p.advance(); err != nil {
			return nil, err
		}
		var items []Type
		for {
			item, err := p.parseUnion()
			if err != nil {
				return nil, err
			}
			items = append(items, item)
			if p.cur.kind != tokComma {
				break
			}
			if err := p.advance(); err != nil {
				return nil, err
			}
		}
		end, err := p.expect(tokRParen)
		if err != nil {
			return nil, err
		}
		if len(items) == 1 {
			return items[0], nil
		}
		return &TupleType{Range: p.lex.rng(t.start, end.end), Items: items}, nil
	default:
		return nil, p.lex.errorf(t.start, t.end, "expected a type, found %v", t.kind)
	}
}

func (p *typeParser) parseMap() (Type, error) {
	start := p.cur.start
	if err := p.advance(); err != nil { // map
		return nil, err
	}
	if _, err := p.expect(tokLAngle); err != nil {
		return nil, err
	}
	key, err := p.parseUnion()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(tokComma); err != nil {
		return nil, err
	}
	value, err := p.parseUnion()
	if err != nil {
		return nil, err
	}
	end, err := p.expect(tokRAngle)
	if err != nil {
		return nil, err
	}
	return &MapType{Range: p.lex.rng(start, end.end), Key: key, Value: value}, nil
}

func (p *typeParser) parseAttribute() (Attribute, error) {
	start := p.cur.start
	block := p.cur.kind == tokAtAt
	if err := p.advance(); err != nil {
		return Attribute{}, err
	}
	name, err := p.expect(tokIdent)
	if err != nil {
		return Attribute{}, err
	}
	attr := Attribute{Name: name.text, Block: block}
	end := name.end
	if p.cur.kind == tokLParen {
		if err := p.advance(); err != nil {
			return Attribute{}, err
		}
		var args []tok
		for p.cur.kind != tokRParen {
			switch p.cur.kind {
			case tokIdent, tokString, tokExpr, tokInt:
				args = append(args, p.cur)
			default:
				return Attribute{}, p.lex.errorf(p.cur.start, p.cur.end, "unexpected %v in arguments of @%s", p.cur.kind, name.text)
			}
			if err := p.advance(); err != nil {
				return Attribute{}, err
			}
			if p.cur.kind == tokComma {
				if err := p.advance(); err != nil {
					return Attribute{}, err
				}
			}
		}
		end = p.cur.end
		if err := p.advance(); err != nil {
			return Attribute{}, err
		}
		if err := fillAttributeArgs(&attr, args, p.lex.errorf); err != nil {
			return Attribute{}, err
		}
	}
	attr.Range = p.lex.rng(start, end)
	return attr, nil
}

func fillAttributeArgs(attr *Attribute, args []tok, errorf func(int, int, string, ...any) *SyntaxError) error {
	if !attr.IsConstraint() {
		switch len(args) {
		case 0:
		case 1:
			attr.Value = args[0].text
		default:
			return errorf(args[1].start, args[len(args)-1].end, "@%s takes a single argument", attr.Name)
		}
		return nil
	}
	switch len(args) {
	case 1:
		if args[0].kind != tokExpr {
			return errorf(args[0].start, args[0].end, "@%s expects an expression written as {{ expr }}", attr.Name)
		}
		attr.Value = args[0].text
	case 2:
		if args[0].kind != tokIdent && args[0].kind != tokString {
			return errorf(args[0].start, args[0].end, "the label of @%s must be an identifier", attr.Name)
		}
		if args[1].kind != tokExpr {
			return errorf(args[1].start, args[1].end, "@%s expects an expression written as {{ expr }}", attr.Name)
		}
		attr.Label = args[0].text
		attr.Value = args[1].text
	default:
		return errorf(0, 0, "@%s takes a label and an expression", attr.Name)
	}
	return nil
}
