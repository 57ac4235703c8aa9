package typecheck

import (
	"sort"
	"strings"

	"github.com/plutolang/pluto/internal/ast"
	"github.com/plutolang/pluto/internal/diagnostics"
	"github.com/plutolang/pluto/internal/source"
	"github.com/plutolang/pluto/internal/types"
)

// ValidateDIGraph validates `uses` clauses, builds the inject-edge graph,
// rejects cycles, computes the DI topological order, propagates lifecycles
// (a dependent is never longer-lived than its dependencies), and applies
// app-level lifecycle overrides, which may only shorten.
func ValidateDIGraph(program *ast.Program, env *Env) *diagnostics.CompileError {
	if err := validateUses(program, env); err != nil {
		return err
	}

	// Inject-edge adjacency: class → dep classes.
	graph := map[string][]string{}
	diClasses := map[string]bool{}
	classNames := sortedClassNames(env)
	for _, className := range classNames {
		info := env.Classes[className]
		var deps []string
		for _, f := range info.Fields {
			if !f.IsInjected {
				continue
			}
			if cls, ok := f.Type.(types.Class); ok {
				deps = append(deps, cls.Name)
			}
		}
		if len(deps) > 0 {
			diClasses[className] = true
			for _, d := range deps {
				diClasses[d] = true
			}
			graph[className] = deps
		}
	}
	for c := range diClasses {
		if _, ok := graph[c]; !ok {
			graph[c] = nil
		}
	}

	// Every injected type must be a known class.
	for _, className := range sortedKeys(graph) {
		for _, dep := range graph[className] {
			if _, ok := env.Classes[dep]; !ok {
				return diagnostics.TypeErrf(declSpanFor(program, className),
					"injected dependency '%s' in class '%s' is not a known class; check spelling or ensure '%s' is declared with pub visibility if imported",
					dep, className, dep)
			}
		}
	}

	if len(diClasses) > 0 {
		order, cycle := kahnOrder(graph)
		if len(cycle) > 0 {
			span := source.Dummy()
			if program.App != nil {
				span = program.App.Sp
			} else if len(program.Classes) > 0 {
				span = program.Classes[0].Sp
			}
			return diagnostics.TypeErrf(span, "circular dependency detected: %s", strings.Join(cycle, " -> "))
		}

		// Lifecycle inference in topological order: deps resolve before
		// dependents.
		for _, className := range order {
			inferred := env.Classes[className].Lifecycle
			for _, dep := range graph[className] {
				if depInfo, ok := env.Classes[dep]; ok {
					inferred = ast.MinLifecycle(inferred, depInfo.Lifecycle)
				}
			}
			env.Classes[className].Lifecycle = inferred
		}

		// The app wires itself separately; keep it out of the DI order.
		env.DIOrder = nil
		for _, n := range order {
			if env.App == nil || n != env.App.Name {
				if program.App == nil || n != program.App.Name.Value {
					env.DIOrder = append(env.DIOrder, n)
				}
			}
		}
	}

	return applyLifecycleOverrides(program, env)
}

func validateUses(program *ast.Program, env *Env) *diagnostics.CompileError {
	for _, c := range program.Classes {
		if len(c.Uses) == 0 {
			continue
		}
		if program.App == nil {
			return diagnostics.TypeErrf(c.Sp, "class '%s' uses ambient types, but no app declaration exists", c.Name.Value)
		}
		for _, used := range c.Uses {
			if !env.AmbientTypes[used.Value] {
				return diagnostics.TypeErrf(used.Sp,
					"class '%s' uses ambient type '%s', but '%s' is not declared ambient in the app",
					c.Name.Value, used.Value, used.Value)
			}
		}
	}
	return nil
}

// applyLifecycleOverrides applies app lifecycle overrides (shorten-only),
// re-propagates lifecycles, and removes overridden classes from the
// app-bracket DI order: the app must reach them through scope blocks.
func applyLifecycleOverrides(program *ast.Program, env *Env) *diagnostics.CompileError {
	if program.App == nil {
		return nil
	}
	for _, ov := range program.App.LifecycleOverrides {
		info, ok := env.Classes[ov.ClassName.Value]
		if !ok {
			return diagnostics.TypeErrf(ov.ClassName.Sp, "lifecycle override: unknown class '%s'", ov.ClassName.Value)
		}
		if ov.Target > info.Lifecycle {
			return diagnostics.TypeErrf(ov.ClassName.Sp,
				"lifecycle override: cannot lengthen lifecycle of '%s' from %s to %s; overrides can only shorten lifecycle (singleton -> scoped -> transient)",
				ov.ClassName.Value, info.Lifecycle, ov.Target)
		}
		info.Lifecycle = ov.Target
		env.LifecycleOverridden[ov.ClassName.Value] = true
	}

	// Re-propagate so dependents of overridden classes shorten too.
	for _, className := range env.DIOrder {
		info, ok := env.Classes[className]
		if !ok {
			continue
		}
		inferred := info.Lifecycle
		for _, f := range info.Fields {
			if !f.IsInjected {
				continue
			}
			if cls, isClass := f.Type.(types.Class); isClass {
				if depInfo, known := env.Classes[cls.Name]; known {
					inferred = ast.MinLifecycle(inferred, depInfo.Lifecycle)
				}
			}
		}
		if inferred != info.Lifecycle {
			info.Lifecycle = inferred
			env.LifecycleOverridden[className] = true
		}
	}

	// App bracket deps live for the whole program run: overridden or
	// non-singleton classes must be reached through scope blocks instead.
	for _, f := range program.App.InjectFields {
		named, ok := f.Type.(*ast.NamedType)
		if !ok {
			continue
		}
		if env.LifecycleOverridden[named.Name] {
			return diagnostics.TypeErrf(f.Type.Span(),
				"app bracket dependency '%s' has overridden lifecycle; use scope blocks to access scoped/transient instances",
				f.Name.Value)
		}
		if info, known := env.Classes[named.Name]; known && info.Lifecycle != ast.Singleton {
			return diagnostics.TypeErrf(f.Type.Span(),
				"app bracket dependency '%s' has %s lifecycle; use scope blocks to access scoped/transient instances",
				f.Name.Value, info.Lifecycle)
		}
	}

	filtered := env.DIOrder[:0]
	for _, n := range env.DIOrder {
		if !env.LifecycleOverridden[n] {
			filtered = append(filtered, n)
		}
	}
	env.DIOrder = filtered
	return nil
}

// kahnOrder topologically sorts the DI graph; edge A → B means A depends on
// B, so B comes first. On a cycle it returns the remnant nodes.
func kahnOrder(graph map[string][]string) ([]string, []string) {
	nodes := sortedKeys(graph)
	inDegree := map[string]int{}
	for _, n := range nodes {
		inDegree[n] = len(graph[n])
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
		order = append(order, node)
		for _, n := range nodes {
			for _, dep := range graph[n] {
				if dep == node {
					inDegree[n]--
					if inDegree[n] == 0 {
						queue = append(queue, n)
					}
				}
			}
		}
	}
	if len(order) != len(nodes) {
		ordered := map[string]bool{}
		for _, o := range order {
			ordered[o] = true
		}
		var cycle []string
		for _, n := range nodes {
			if !ordered[n] {
				cycle = append(cycle, n)
			}
		}
		return nil, cycle
	}
	return order, nil
}

func sortedClassNames(env *Env) []string {
	names := make([]string, 0, len(env.Classes))
	for n := range env.Classes {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func declSpanFor(program *ast.Program, className string) source.Span {
	for _, c := range program.Classes {
		if c.Name.Value == className {
			return c.Sp
		}
	}
	if program.App != nil {
		return program.App.Sp
	}
	return source.Dummy()
}
