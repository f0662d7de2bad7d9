package ir

import (
	"fmt"
	"slices"
	"strings"

	"github.com/cottand/bamlc/util"
)

// ArgumentsError lists every problem found by CheckFunctionParams
type ArgumentsError struct {
	Function string
	Issues   []string
}

func (e *ArgumentsError) Error() string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("invalid arguments for function %s:", e.Function))
	for _, issue := range e.Issues {
		b.WriteString("\n- ")
		b.WriteString(issue)
	}
	return b.String()
}

// CheckFunctionParams checks args against the parameters of fn.
// Missing optional parameters are fine, while missing required ones,
// unknown names and values that do not fit their parameter's type are not.
func (r *IntermediateRepr) CheckFunctionParams(fn *Node[FunctionDef], args map[string]Value) error {
	errs := &ArgumentsError{Function: fn.Elem.Name}
	declared := make([]string, len(fn.Elem.Inputs))
	for i, p := range fn.Elem.Inputs {
		declared[i] = p.Name
		v, ok := args[p.Name]
		if !ok {
			if !IsOptional(p.Type) {
				errs.Issues = append(errs.Issues, fmt.Sprintf("missing required argument '%s'", p.Name))
			}
			continue
		}
		if _, err := r.DistributeType(v, p.Type); err != nil {
			errs.Issues = append(errs.Issues, fmt.Sprintf("argument '%s': %v", p.Name, err))
		}
	}
	for _, name := range util.SortedUniq(mapKeys(args)) {
		if !slices.Contains(declared, name) {
			errs.Issues = append(errs.Issues, fmt.Sprintf("unknown argument '%s'%s", name, util.DidYouMean(util.ClosestMatches(name, declared))))
		}
	}
	if len(errs.Issues) > 0 {
		return errs
	}
	return nil
}

func mapKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	return keys
}
