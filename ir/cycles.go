package ir

import (
	"slices"

	"github.com/cottand/bamlc/frontend/ast"
	"github.com/cottand/bamlc/internal/log"
	"github.com/cottand/bamlc/util"
	"github.com/hashicorp/go-set/v3"
)

var cyclesLogger = log.DefaultLogger.With("section", "cycles")

// graph is an adjacency list keyed by declaration name
type graph map[string][]string

func (g graph) addEdge(from string, to ...string) {
	g[from] = append(g[from], to...)
}

// nodes returns every node with outgoing edges, sorted
func (g graph) nodes() []string {
	nodes := make([]string, 0, len(g))
	for n := range g {
		nodes = append(nodes, n)
	}
	slices.Sort(nodes)
	return nodes
}

// tarjan returns the strongly connected components of g that are cycles,
// meaning components of more than one node or a node with an edge to itself.
//
// Members of a component are in discovery order, and components are sorted
// by their first member, so the output only depends on the graph.
func tarjan(g graph) [][]string {
	t := &tarjanState{
		g:       g,
		index:   make(map[string]int),
		lowLink: make(map[string]int),
		onStack: set.New[string](len(g)),
	}
	for _, n := range g.nodes() {
		if _, visited := t.index[n]; !visited {
			t.connect(n)
		}
	}
	slices.SortFunc(t.components, func(a, b []string) int {
		return slices.Compare(a, b)
	})
	return t.components
}

type tarjanState struct {
	g          graph
	next       int
	index      map[string]int
	lowLink    map[string]int
	stack      util.Stack[string]
	onStack    *set.Set[string]
	components [][]string
}

func (t *tarjanState) connect(n string) {
	t.index[n] = t.next
	t.lowLink[n] = t.next
	t.next++
	t.stack.Push(n)
	t.onStack.Insert(n)

	for _, succ := range util.SortedUniq(slices.Clone(t.g[n])) {
		if _, visited := t.index[succ]; !visited {
			t.connect(succ)
			t.lowLink[n] = min(t.lowLink[n], t.lowLink[succ])
		} else if t.onStack.Contains(succ) {
			t.lowLink[n] = min(t.lowLink[n], t.index[succ])
		}
	}

	if t.lowLink[n] != t.index[n] {
		return
	}
	var component []string
	for {
		member, _ := t.stack.Pop()
		t.onStack.Remove(member)
		component = append(component, member)
		if member == n {
			break
		}
	}
	slices.SortFunc(component, func(a, b string) int {
		return t.index[a] - t.index[b]
	})
	if len(component) > 1 || slices.Contains(t.g[n], n) {
		t.components = append(t.components, component)
	}
}

// aliasGraph links each alias to the aliases it references.
// When throughContainers is false, references inside lists and maps are not edges:
// those provide the indirection that makes a recursive alias finite.
func aliasGraph(schema *ast.Schema, throughContainers bool) graph {
	g := make(graph)
	for _, alias := range schema.Aliases {
		g.addEdge(alias.Name)
		ast.Inspect(alias.Type, func(t ast.Type) bool {
			switch t := t.(type) {
			case *ast.SymbolType:
				if kind, ok := schema.Resolve(t.Name); ok && kind == ast.KindTypeAlias {
					g.addEdge(alias.Name, t.Name)
				}
			case *ast.ListType, *ast.MapType:
				return throughContainers
			}
			return true
		})
	}
	return g
}

// infiniteAliasCycles are alias cycles that never go through a list or a map,
// so no value could ever satisfy them
func infiniteAliasCycles(schema *ast.Schema) [][]string {
	return tarjan(aliasGraph(schema, false))
}

// structuralAliasCycles are alias cycles broken by a list or a map.
// They are only meaningful once infiniteAliasCycles found nothing.
func structuralAliasCycles(schema *ast.Schema) [][]string {
	cycles := tarjan(aliasGraph(schema, true))
	cyclesLogger.Debug("found structural alias cycles", "count", len(cycles))
	return cycles
}

// requiredClassDeps returns the classes a value of t cannot be built without,
// and whether t can be satisfied without depending on any class at all
func requiredClassDeps(self string, t FieldType) (deps []string, escapes bool) {
	switch t := t.(type) {
	case Class:
		return []string{t.Name}, false
	case Constrained:
		return requiredClassDeps(self, t.Base)
	case Tuple:
		for _, item := range t.Items {
			itemDeps, _ := requiredClassDeps(self, item)
			deps = append(deps, itemDeps...)
		}
		return deps, len(deps) == 0
	case Union:
		var all, nonSelf []string
		for _, arm := range t.Items {
			armDeps, armEscapes := requiredClassDeps(self, arm)
			if armEscapes {
				return nil, true
			}
			all = append(all, armDeps...)
			if !slices.Contains(armDeps, self) {
				nonSelf = append(nonSelf, armDeps...)
			}
		}
		// a union of classes only depends on itself when there is no other way out
		if len(nonSelf) > 0 {
			return nonSelf, false
		}
		return all, false
	default:
		// optionals, lists, maps and recursive aliases can all be empty
		return nil, true
	}
}

// referencedClasses returns every class reachable from t, following recursive aliases
func (r *IntermediateRepr) referencedClasses(t FieldType, seenAliases *set.Set[string]) []string {
	var classes []string
	Walk(t, func(t FieldType) bool {
		switch t := t.(type) {
		case Class:
			classes = append(classes, t.Name)
		case RecursiveTypeAlias:
			if seenAliases.Insert(t.Name) {
				if resolved, ok := r.ResolveRecursiveAlias(t.Name); ok {
					classes = append(classes, r.referencedClasses(resolved, seenAliases)...)
				}
			}
		}
		return true
	})
	return classes
}

// classGraphs builds the graph of required fields, whose cycles are errors,
// and the graph of all fields, whose cycles are finite recursive classes
func (r *IntermediateRepr) classGraphs() (required, all graph) {
	required, all = make(graph), make(graph)
	for _, c := range r.Classes {
		name := c.Elem.Name
		required.addEdge(name)
		all.addEdge(name)
		for _, f := range c.Elem.Fields {
			deps, _ := requiredClassDeps(name, f.Elem.Type)
			required.addEdge(name, deps...)
			all.addEdge(name, r.referencedClasses(f.Elem.Type, set.New[string](0))...)
		}
	}
	return required, all
}
