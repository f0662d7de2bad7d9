package jsonish

import (
	"slices"

	"github.com/benbjohnson/immutable"
	"github.com/cottand/bamlc/constraints"
	"github.com/cottand/bamlc/internal/log"
	"github.com/cottand/bamlc/ir"
)

var logger = log.DefaultLogger.With("section", "jsonish")

// Context is the state of one coercion. It is passed down by value, so
// every branch of the value sees only the scope and the visited pairs of its own ancestors.
type Context struct {
	IR *ir.IntermediateRepr
	// Evaluator checks @assert and @check constraints. When nil, constraints are not evaluated.
	Evaluator constraints.Evaluator

	scope   []string
	visited immutable.Set[string]
}

func NewContext(r *ir.IntermediateRepr, evaluator constraints.Evaluator) *Context {
	return &Context{
		IR:        r,
		Evaluator: evaluator,
		visited:   immutable.NewSet[string](nil),
	}
}

// enter returns a copy of c one level deeper into the value
func (c *Context) enter(scope string) *Context {
	next := *c
	next.scope = append(slices.Clip(c.scope), scope)
	return &next
}

// visit records that v is being coerced into the named class or alias.
// It returns false if an ancestor is already doing the same, which means
// coercion would go around in circles without consuming any input.
func (c *Context) visit(name string, v Value) (*Context, bool) {
	key := name + ":" + fingerprint(v)
	if c.visited.Has(key) {
		return c, false
	}
	next := *c
	next.visited = c.visited.Add(key)
	return &next, true
}
