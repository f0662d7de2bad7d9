package jsonish

import (
	"fmt"
	"strings"
)

// ParsingError explains why a value could not be coerced into a type.
// Causes hold the failures of the alternatives that were tried, like the
// members of a union or the fields of a class.
type ParsingError struct {
	// Scope is the path from the root value, like ["people", "[2]", "name"]
	Scope  []string
	Reason string
	Causes []*ParsingError
}

func (e *ParsingError) Error() string {
	sb := &strings.Builder{}
	e.write(sb, 0)
	return sb.String()
}

func (e *ParsingError) write(sb *strings.Builder, depth int) {
	sb.WriteString(strings.Repeat("  ", depth))
	sb.WriteString(scopeString(e.Scope))
	sb.WriteString(": ")
	sb.WriteString(e.Reason)
	for _, cause := range e.Causes {
		sb.WriteString("\n")
		cause.write(sb, depth+1)
	}
}

func scopeString(scope []string) string {
	if len(scope) == 0 {
		return "<root>"
	}
	sb := &strings.Builder{}
	for i, s := range scope {
		if i > 0 && !strings.HasPrefix(s, "[") {
			sb.WriteByte('.')
		}
		sb.WriteString(s)
	}
	return sb.String()
}

func (c *Context) errorf(format string, args ...any) *ParsingError {
	return &ParsingError{Scope: c.scope, Reason: fmt.Sprintf(format, args...)}
}

func (c *Context) errorWithCauses(causes []*ParsingError, format string, args ...any) *ParsingError {
	err := c.errorf(format, args...)
	err.Causes = causes
	return err
}
