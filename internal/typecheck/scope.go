package typecheck

import (
	"sort"

	"github.com/plutolang/pluto/internal/ast"
	"github.com/plutolang/pluto/internal/diagnostics"
	"github.com/plutolang/pluto/internal/types"
)

// checkScopeStmt resolves a scope block: validates the seeds and bindings,
// discovers the transitively needed scoped classes, topologically sorts
// them into a creation order, computes every field wiring, and stores the
// ScopeResolution for codegen. The body is then checked with the bindings
// in scope and a taint stack that keeps capturing closures inside the block.
func checkScopeStmt(s *ast.Scope, env *Env, returnType types.Type) *diagnostics.CompileError {
	// 1. Seeds must be scoped-class instances.
	type seedEntry struct {
		class string
		index int
	}
	var seeds []seedEntry
	seedClasses := map[string]bool{}
	for i, seed := range s.Seeds {
		ty, err := inferExpr(seed, env)
		if err != nil {
			return err
		}
		cls, ok := ty.(types.Class)
		if !ok {
			return diagnostics.ScopeErrf(seed.Span(), "scope seed must be a class instance, found %s", ty)
		}
		info, ok := env.Classes[cls.Name]
		if !ok {
			return diagnostics.ScopeErrf(seed.Span(), "unknown class '%s' in scope seed", cls.Name)
		}
		if info.Lifecycle != ast.Scoped {
			return diagnostics.ScopeErrf(seed.Span(),
				"scope seed must be a scoped class, but '%s' has lifecycle '%s'; add 'scoped' keyword: scoped class %s { ... }",
				cls.Name, info.Lifecycle, cls.Name)
		}
		seeds = append(seeds, seedEntry{class: cls.Name, index: i})
		seedClasses[cls.Name] = true
	}

	// 2. Binding types must be known classes.
	type bindingEntry struct {
		class string
		ty    types.Type
	}
	var bindings []bindingEntry
	for _, b := range s.Bindings {
		ty, err := ResolveType(b.Type, env)
		if err != nil {
			return err
		}
		cls, ok := ty.(types.Class)
		if !ok {
			return diagnostics.ScopeErrf(b.Type.Span(), "scope binding must be a class type, found %s", ty)
		}
		if _, known := env.Classes[cls.Name]; !known {
			return diagnostics.ScopeErrf(b.Type.Span(), "unknown class '%s' in scope binding", cls.Name)
		}
		bindings = append(bindings, bindingEntry{class: cls.Name, ty: ty})
	}

	// 3. BFS through injected fields to find every scoped class needed.
	needed := map[string]bool{}
	var queue []string
	push := func(name string) {
		if !needed[name] {
			needed[name] = true
			queue = append(queue, name)
		}
	}
	for _, b := range bindings {
		push(b.class)
	}
	for _, seed := range seeds {
		push(seed.class)
	}
	for len(queue) > 0 {
		className := queue[0]
		queue = queue[1:]
		info, ok := env.Classes[className]
		if !ok {
			continue
		}
		for _, f := range info.Fields {
			if !f.IsInjected {
				continue
			}
			depClass, isClass := f.Type.(types.Class)
			if !isClass {
				continue
			}
			if depInfo, known := env.Classes[depClass.Name]; known && depInfo.Lifecycle == ast.Scoped {
				push(depClass.Name)
			}
		}
	}

	// 4. Auto-created scoped classes must be fully injected; anything with
	// a plain field needs a seed to supply the value.
	for className := range needed {
		if seedClasses[className] {
			continue
		}
		info := env.Classes[className]
		if info == nil {
			return diagnostics.ScopeErrf(s.Sp, "scope: unknown class '%s'", className)
		}
		if info.Lifecycle != ast.Scoped {
			continue
		}
		for _, f := range info.Fields {
			if !f.IsInjected {
				return diagnostics.ScopeErrf(s.Sp,
					"scoped class '%s' has non-injected fields and must be provided as a seed; provide it as a seed expression: scope(%s { field: val }) |...| { ... }",
					className, className)
			}
		}
	}

	// 5. Topologically sort the classes to create (seeds are provided).
	var toCreate []string
	for className := range needed {
		if seedClasses[className] {
			continue
		}
		if info := env.Classes[className]; info != nil && info.Lifecycle == ast.Scoped {
			toCreate = append(toCreate, className)
		}
	}
	sort.Strings(toCreate)
	seedNames := make([]string, len(seeds))
	for i, seed := range seeds {
		seedNames[i] = seed.class
	}
	creationOrder, cycle := topoSortScoped(toCreate, seedNames, env)
	if len(cycle) > 0 {
		return diagnostics.ScopeErrf(s.Sp,
			"scope block: circular dependency detected among scoped classes: %s", joinCycle(cycle))
	}

	// 6. Field wirings for every created class.
	fieldWirings := map[string][]NamedWiring{}
	createSet := map[string]bool{}
	for _, c := range creationOrder {
		createSet[c] = true
	}
	seedIndex := func(class string) (int, bool) {
		for _, seed := range seeds {
			if seed.class == class {
				return seed.index, true
			}
		}
		return 0, false
	}
	for _, className := range creationOrder {
		info := env.Classes[className]
		var wirings []NamedWiring
		for _, f := range info.Fields {
			if !f.IsInjected {
				continue
			}
			depClass, isClass := f.Type.(types.Class)
			if !isClass {
				continue
			}
			depName := depClass.Name
			depInfo := env.Classes[depName]
			var wiring FieldWiring
			if idx, isSeed := seedIndex(depName); isSeed {
				wiring = FieldWiring{Kind: WireSeed, SeedIndex: idx}
			} else if depInfo != nil && depInfo.Lifecycle == ast.Singleton {
				wiring = FieldWiring{Kind: WireSingleton, ClassName: depName}
			} else if createSet[depName] || seedClasses[depName] {
				wiring = FieldWiring{Kind: WireScopedInstance, ClassName: depName}
			} else {
				return diagnostics.ScopeErrf(s.Sp,
					"scope block: cannot wire field '%s' of class '%s': dependency '%s' is not available as a seed, singleton, or scoped instance; make '%s' a seed, or ensure it is a singleton or scoped class in the DI graph",
					f.Name, className, depName, depName)
			}
			wirings = append(wirings, NamedWiring{Field: f.Name, Wiring: wiring})
		}
		fieldWirings[className] = wirings
	}

	// 7. Binding sources.
	var bindingSources []FieldWiring
	for _, b := range bindings {
		if idx, isSeed := seedIndex(b.class); isSeed {
			bindingSources = append(bindingSources, FieldWiring{Kind: WireSeed, SeedIndex: idx})
		} else if createSet[b.class] {
			bindingSources = append(bindingSources, FieldWiring{Kind: WireScopedInstance, ClassName: b.class})
		} else {
			return diagnostics.ScopeErrf(s.Sp,
				"scope block: binding type '%s' is not reachable from seeds; add a seed for '%s' or one of its transitive scoped dependencies",
				b.class, b.class)
		}
	}

	// 8. Store the resolution keyed by the scope statement's span.
	env.ScopeResolutions[s.Sp.Key()] = &ScopeResolution{
		CreationOrder:  creationOrder,
		FieldWirings:   fieldWirings,
		BindingSources: bindingSources,
	}

	// 9. Check the body with bindings in scope and the taint stack active.
	bindingNames := make([]string, len(s.Bindings))
	for i, b := range s.Bindings {
		bindingNames[i] = b.Name.Value
	}
	env.PushScopeBlock(bindingNames)
	env.PushScope()
	for i, b := range s.Bindings {
		env.Define(b.Name.Value, bindings[i].ty)
	}
	err := checkBlock(s.Body, env, returnType)
	env.PopScope()
	env.PopScopeBlock()
	return err
}

// topoSortScoped runs Kahn's algorithm over the restricted scoped-dep graph.
// Edge A → B means A has an injected field of scoped class B; B is created
// first. Returns the creation order, or the leftover nodes when a cycle
// blocks completion.
func topoSortScoped(toCreate, seedNames []string, env *Env) ([]string, []string) {
	createSet := map[string]bool{}
	for _, c := range toCreate {
		createSet[c] = true
	}
	nodes := append([]string(nil), toCreate...)
	nodes = append(nodes, seedNames...)
	sort.Strings(nodes)

	deps := map[string][]string{}
	for _, className := range toCreate {
		info := env.Classes[className]
		for _, f := range info.Fields {
			if !f.IsInjected {
				continue
			}
			if depClass, ok := f.Type.(types.Class); ok && createSet[depClass.Name] {
				deps[className] = append(deps[className], depClass.Name)
			}
		}
	}

	inDegree := map[string]int{}
	for _, n := range nodes {
		inDegree[n] = len(deps[n])
	}
	var queue []string
	for _, n := range nodes {
		if inDegree[n] == 0 {
			queue = append(queue, n)
		}
	}
	var order []string
	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		if createSet[node] {
			order = append(order, node)
		}
		for _, n := range nodes {
			for _, d := range deps[n] {
				if d == node {
					inDegree[n]--
					if inDegree[n] == 0 {
						queue = append(queue, n)
					}
				}
			}
		}
	}
	if len(order) != len(toCreate) {
		ordered := map[string]bool{}
		for _, o := range order {
			ordered[o] = true
		}
		var cycle []string
		for _, c := range toCreate {
			if !ordered[c] {
				cycle = append(cycle, c)
			}
		}
		return nil, cycle
	}
	return order, nil
}

func joinCycle(names []string) string {
	out := ""
	for i, n := range names {
		if i > 0 {
			out += " -> "
		}
		out += n
	}
	return out
}
