package typecheck

import (
	"strings"

	"github.com/plutolang/pluto/internal/ast"
	"github.com/plutolang/pluto/internal/types"
)

// InferSynchronization finds singleton classes touched from more than one
// thread (transitively reachable from both the main control flow and some
// spawned task) and marks each of their methods read-guarded (false) or
// write-guarded (true) in SyncMethods. Codegen wraps marked methods with
// the appropriate rwlock acquisition; typing is unchanged.
func InferSynchronization(program *ast.Program, env *Env) {
	callees := buildCallGraph(program, env)

	// Thread entries are every recorded spawn target; main entries are the
	// top-level main or the app's methods.
	threadEntries := map[string]bool{}
	for _, fn := range env.SpawnTargetFns {
		threadEntries[fn] = true
	}
	if len(threadEntries) == 0 {
		return
	}
	mainEntries := map[string]bool{}
	if program.App != nil {
		for _, m := range program.App.Methods {
			mainEntries[types.MangleMethod(program.App.Name.Value, m.Name.Value)] = true
		}
	} else {
		mainEntries["main"] = true
	}

	mainReach := reachable(mainEntries, callees)
	threadReach := reachable(threadEntries, callees)

	// A singleton is shared when both sides touch it: not necessarily
	// through the same method.
	shared := map[string]bool{}
	for _, className := range sortedClassNames(env) {
		info := env.Classes[className]
		if info.Lifecycle != ast.Singleton {
			continue
		}
		touchedMain, touchedThread := false, false
		for _, method := range info.Methods {
			mangled := types.MangleMethod(className, method)
			if mainReach[mangled] {
				touchedMain = true
			}
			if threadReach[mangled] {
				touchedThread = true
			}
		}
		if touchedMain && touchedThread {
			shared[className] = true
		}
	}

	for className := range shared {
		markGuards(className, env, callees)
	}
}

// markGuards classifies each method of a shared singleton: write-guarded
// when it declares `mut self` or transitively calls a write-guarded method
// of the same class, read-guarded otherwise.
func markGuards(className string, env *Env, callees map[string]map[string]bool) {
	info := env.Classes[className]
	prefix := className + "$"
	write := map[string]bool{}
	for _, method := range info.Methods {
		mangled := types.MangleMethod(className, method)
		if env.MutSelfMethods[mangled] {
			write[mangled] = true
		}
	}
	for {
		changed := false
		for _, method := range info.Methods {
			mangled := types.MangleMethod(className, method)
			if write[mangled] {
				continue
			}
			for callee := range callees[mangled] {
				if strings.HasPrefix(callee, prefix) && write[callee] {
					write[mangled] = true
					changed = true
					break
				}
			}
		}
		if !changed {
			break
		}
	}
	for _, method := range info.Methods {
		mangled := types.MangleMethod(className, method)
		env.SyncMethods[mangled] = write[mangled]
	}
}

// buildCallGraph collects static call edges per function, resolving method
// calls through the recorded resolutions. Spawn closures are excluded: the
// spawned callee is a thread entry, not a same-thread callee.
func buildCallGraph(program *ast.Program, env *Env) map[string]map[string]bool {
	graph := map[string]map[string]bool{}
	add := func(name string, body *ast.Block) {
		set := map[string]bool{}
		collectCallees(body, name, env, set)
		graph[name] = set
	}
	for _, fn := range program.Functions {
		if fn.IsGeneric() {
			continue
		}
		add(fn.Name.Value, fn.Body)
	}
	for _, c := range program.Classes {
		if c.IsGeneric() {
			continue
		}
		for _, m := range c.Methods {
			add(types.MangleMethod(c.Name.Value, m.Name.Value), m.Body)
		}
	}
	if program.App != nil {
		for _, m := range program.App.Methods {
			add(types.MangleMethod(program.App.Name.Value, m.Name.Value), m.Body)
		}
	}
	for _, s := range program.Stages {
		for _, m := range s.Methods {
			add(types.MangleMethod(s.Name.Value, m.Name.Value), m.Body)
		}
	}
	return graph
}

func collectCallees(n ast.Node, currentFn string, env *Env, into map[string]bool) {
	ast.Inspect(n, func(n ast.Node) bool {
		switch n := n.(type) {
		case *ast.Spawn:
			return false
		case *ast.Call:
			into[n.FuncName.Value] = true
		case *ast.MethodCall:
			res, ok := env.MethodResolutions[FnSpanKey{Fn: currentFn, Start: n.Method.Sp.Start}]
			if !ok {
				return true
			}
			switch res.Kind {
			case ResolveClass:
				into[res.MangledName] = true
			case ResolveTraitDynamic:
				for _, className := range sortedClassNames(env) {
					if env.Classes[className].ImplementsTrait(res.TraitName) {
						into[types.MangleMethod(className, res.MethodName)] = true
					}
				}
			}
		}
		return true
	})
}

func reachable(entries map[string]bool, callees map[string]map[string]bool) map[string]bool {
	seen := map[string]bool{}
	var stack []string
	for e := range entries {
		if !seen[e] {
			seen[e] = true
			stack = append(stack, e)
		}
	}
	for len(stack) > 0 {
		fn := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for callee := range callees[fn] {
			if !seen[callee] {
				seen[callee] = true
				stack = append(stack, callee)
			}
		}
	}
	return seen
}
