package cache

import (
	"github.com/google/uuid"

	"github.com/plutolang/pluto/internal/ast"
	"github.com/plutolang/pluto/internal/typecheck"
	"github.com/plutolang/pluto/internal/types"
)

// EdgeKind classifies a dependency edge. The kind is recorded with each
// edge; Affected propagates an API change along every edge, whatever its
// kind.
type EdgeKind int

const (
	// EdgeCalls is a call edge: caller depends on callee's signature.
	EdgeCalls EdgeKind = iota
	// EdgeUses is a type reference: a field or signature names the type.
	EdgeUses
	// EdgeExtends is a trait implementation edge.
	EdgeExtends
)

// Edge is one directed dependency to a target declaration.
type Edge struct {
	To   uuid.UUID `msgpack:"to"`
	Kind EdgeKind  `msgpack:"kind"`
}

// ChangeKind says how a declaration changed for affected-set propagation.
type ChangeKind int

const (
	// ChangeImplOnly invalidates the declaration itself, not its
	// dependents.
	ChangeImplOnly ChangeKind = iota
	// ChangeAPIAndImpl invalidates the declaration and every transitive
	// dependent.
	ChangeAPIAndImpl
)

// DependencyGraph records who depends on whom, keyed by declaration uuid.
type DependencyGraph struct {
	Nodes map[uuid.UUID]bool   `msgpack:"nodes"`
	Edges map[uuid.UUID][]Edge `msgpack:"edges"`
}

func NewDependencyGraph() *DependencyGraph {
	return &DependencyGraph{Nodes: map[uuid.UUID]bool{}, Edges: map[uuid.UUID][]Edge{}}
}

func (g *DependencyGraph) AddNode(id uuid.UUID) {
	g.Nodes[id] = true
}

func (g *DependencyGraph) AddEdge(from, to uuid.UUID, kind EdgeKind) {
	g.Nodes[from] = true
	g.Nodes[to] = true
	for _, e := range g.Edges[from] {
		if e.To == to && e.Kind == kind {
			return
		}
	}
	g.Edges[from] = append(g.Edges[from], Edge{To: to, Kind: kind})
}

// Affected computes the set of declarations that must be re-checked given
// the changed set: every changed declaration, plus (for API changes) every
// transitive dependent reached through reversed edges.
func (g *DependencyGraph) Affected(changed map[uuid.UUID]ChangeKind) map[uuid.UUID]bool {
	affected := map[uuid.UUID]bool{}
	reverse := map[uuid.UUID][]uuid.UUID{}
	for from, edges := range g.Edges {
		for _, e := range edges {
			reverse[e.To] = append(reverse[e.To], from)
		}
	}
	var stack []uuid.UUID
	for id, kind := range changed {
		affected[id] = true
		if kind == ChangeAPIAndImpl {
			stack = append(stack, id)
		}
	}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, dep := range reverse[id] {
			if !affected[dep] {
				affected[dep] = true
				stack = append(stack, dep)
			}
		}
	}
	return affected
}

// BuildDependencyGraph derives the graph from the checked program: call
// edges via recorded method resolutions and call expressions, type-use
// edges from fields and signatures, and extends edges from impl_traits.
func BuildDependencyGraph(program *ast.Program, env *typecheck.Env, keyMap *DeclKeyMap) *DependencyGraph {
	g := NewDependencyGraph()

	// Resolve a callable name (free fn or Class$method) to its decl uuid.
	fnIDs := map[string]uuid.UUID{}
	typeIDs := map[string]uuid.UUID{}
	for _, f := range program.Functions {
		fnIDs[f.Name.Value] = f.ID
	}
	for _, c := range program.Classes {
		typeIDs[c.Name.Value] = c.ID
		for _, m := range c.Methods {
			fnIDs[types.MangleMethod(c.Name.Value, m.Name.Value)] = m.ID
		}
	}
	for _, t := range program.Traits {
		typeIDs[t.Name.Value] = t.ID
	}
	for _, e := range program.Enums {
		typeIDs[e.Name.Value] = e.ID
	}
	for _, e := range program.Errors {
		typeIDs[e.Name.Value] = e.ID
	}
	for _, e := range program.ExternFns {
		fnIDs[e.Name.Value] = e.ID
	}
	if program.App != nil {
		typeIDs[program.App.Name.Value] = program.App.ID
		for _, m := range program.App.Methods {
			fnIDs[types.MangleMethod(program.App.Name.Value, m.Name.Value)] = m.ID
		}
	}
	for _, s := range program.Stages {
		typeIDs[s.Name.Value] = s.ID
		for _, m := range s.Methods {
			fnIDs[types.MangleMethod(s.Name.Value, m.Name.Value)] = m.ID
		}
	}

	for id := range keyMap.UUIDToKey {
		g.AddNode(id)
	}

	addCallEdges := func(fromID uuid.UUID, currentFn string, body *ast.Block) {
		ast.Inspect(body, func(n ast.Node) bool {
			switch n := n.(type) {
			case *ast.Call:
				if to, ok := fnIDs[n.FuncName.Value]; ok {
					g.AddEdge(fromID, to, EdgeCalls)
				}
			case *ast.MethodCall:
				res, ok := env.MethodResolutions[typecheck.FnSpanKey{Fn: currentFn, Start: n.Method.Sp.Start}]
				if ok && res.Kind == typecheck.ResolveClass {
					if to, found := fnIDs[res.MangledName]; found {
						g.AddEdge(fromID, to, EdgeCalls)
					}
				}
			}
			return true
		})
	}
	addTypeEdge := func(fromID uuid.UUID, te ast.TypeExpr) {
		if te == nil {
			return
		}
		if named, ok := te.(*ast.NamedType); ok {
			if to, found := typeIDs[named.Name]; found {
				g.AddEdge(fromID, to, EdgeUses)
			}
		}
	}

	for _, f := range program.Functions {
		for _, p := range f.Params {
			addTypeEdge(f.ID, p.Type)
		}
		addTypeEdge(f.ID, f.ReturnType)
		addCallEdges(f.ID, f.Name.Value, f.Body)
	}
	for _, c := range program.Classes {
		for _, f := range c.Fields {
			addTypeEdge(c.ID, f.Type)
		}
		for _, traitName := range c.ImplTraits {
			if to, ok := typeIDs[traitName.Value]; ok {
				g.AddEdge(c.ID, to, EdgeExtends)
			}
		}
		for _, m := range c.Methods {
			g.AddEdge(m.ID, c.ID, EdgeUses)
			for _, p := range m.Params {
				addTypeEdge(m.ID, p.Type)
			}
			addTypeEdge(m.ID, m.ReturnType)
			addCallEdges(m.ID, types.MangleMethod(c.Name.Value, m.Name.Value), m.Body)
		}
	}
	if program.App != nil {
		for _, f := range program.App.InjectFields {
			addTypeEdge(program.App.ID, f.Type)
		}
		for _, m := range program.App.Methods {
			g.AddEdge(m.ID, program.App.ID, EdgeUses)
			addCallEdges(m.ID, types.MangleMethod(program.App.Name.Value, m.Name.Value), m.Body)
		}
	}
	for _, s := range program.Stages {
		for _, f := range s.Fields {
			addTypeEdge(s.ID, f.Type)
		}
		for _, m := range s.Methods {
			g.AddEdge(m.ID, s.ID, EdgeUses)
			for _, p := range m.Params {
				addTypeEdge(m.ID, p.Type)
			}
			addTypeEdge(m.ID, m.ReturnType)
			addCallEdges(m.ID, types.MangleMethod(s.Name.Value, m.Name.Value), m.Body)
		}
	}
	return g
}
