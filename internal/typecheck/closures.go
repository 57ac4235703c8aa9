package typecheck

import (
	"github.com/plutolang/pluto/internal/ast"
	"github.com/plutolang/pluto/internal/diagnostics"
	"github.com/plutolang/pluto/internal/types"
)

// inferClosure types a closure expression: a fresh scope for the parameters,
// the body checked against the annotated-or-inferred return type, and the
// capture set recorded for the lifting pass.
func inferClosure(e *ast.Closure, env *Env) (types.Type, *diagnostics.CompileError) {
	outerDepth := env.ScopeDepth()
	env.PushScope()
	defer env.PopScope()

	paramTypes := make([]types.Type, 0, len(e.Params))
	paramNames := map[string]bool{}
	for _, p := range e.Params {
		ty, err := ResolveType(p.Type, env)
		if err != nil {
			return nil, err
		}
		env.Define(p.Name.Value, ty)
		paramNames[p.Name.Value] = true
		paramTypes = append(paramTypes, ty)
	}

	var retType types.Type
	if e.ReturnType != nil {
		r, err := ResolveType(e.ReturnType, env)
		if err != nil {
			return nil, err
		}
		retType = r
	} else {
		// The inference pass binds the body's locals in a throwaway scope
		// so checkBlock below can declare them afresh.
		env.PushScope()
		r, err := inferClosureReturnType(e.Body, env)
		env.PopScope()
		if err != nil {
			return nil, err
		}
		retType = r
	}

	// break/continue inside a closure cannot escape to an enclosing loop.
	savedLoopDepth := env.LoopDepth
	env.LoopDepth = 0
	err := checkBlock(e.Body, env, retType)
	env.LoopDepth = savedLoopDepth
	if err != nil {
		return nil, err
	}

	// Free variables resolving from scopes strictly outside the closure
	// entry depth form the capture set.
	var captures []Capture
	seen := map[string]bool{}
	collectFreeVars(e.Body, paramNames, outerDepth, env, &captures, seen)
	env.ClosureCaptures[e.Sp.Key()] = captures
	env.ClosureReturnTypes[e.Sp.Key()] = retType

	// A closure that references a scope binding is scope-tainted and must
	// not escape the block.
	if env.InScopeBlock() {
		idents := map[string]bool{}
		ast.CollectIdents(e.Body, idents)
		for name := range idents {
			if env.IsScopeBinding(name) {
				env.ScopeTaintedClosures[e.Sp.Key()] = true
				break
			}
		}
	}

	return types.Fn{Params: paramTypes, Return: retType}, nil
}

// inferClosureReturnType infers an unannotated closure's return type from
// the first return-with-value, executing let bindings along the way so the
// returned expression sees its locals. Bodies without such a return are
// void.
func inferClosureReturnType(b *ast.Block, env *Env) (types.Type, *diagnostics.CompileError) {
	for _, stmt := range b.Stmts {
		switch s := stmt.(type) {
		case *ast.Let:
			val, err := inferExpr(s.Value, env)
			if err != nil {
				return nil, err
			}
			if s.Type != nil {
				declared, err := ResolveType(s.Type, env)
				if err != nil {
					return nil, err
				}
				env.Define(s.Name.Value, declared)
			} else {
				env.Define(s.Name.Value, val)
			}
		case *ast.LetChan:
			elem, err := ResolveType(s.ElemType, env)
			if err != nil {
				return nil, err
			}
			env.Define(s.Sender.Value, types.Sender{Elem: elem})
			env.Define(s.Receiver.Value, types.Receiver{Elem: elem})
		case *ast.Return:
			if s.Value != nil {
				return inferExpr(s.Value, env)
			}
			return types.Void{}, nil
		}
	}
	return types.Void{}, nil
}

// collectFreeVars walks the closure body collecting identifiers whose
// defining scope depth is strictly less than the closure's entry depth.
// Function names and builtins are not captures; nested closure bodies are
// scanned too, since their captures propagate upward.
func collectFreeVars(n ast.Node, paramNames map[string]bool, outerDepth int, env *Env, captures *[]Capture, seen map[string]bool) {
	ast.Inspect(n, func(n ast.Node) bool {
		ident, ok := n.(*ast.Ident)
		if !ok {
			return true
		}
		name := ident.Name
		if paramNames[name] || seen[name] {
			return true
		}
		if _, isFn := env.Functions[name]; isFn {
			return true
		}
		if env.Builtins[name] {
			return true
		}
		if ty, depth, found := env.LookupWithDepth(name); found && depth < outerDepth {
			seen[name] = true
			*captures = append(*captures, Capture{Name: name, Type: ty})
		}
		return true
	})
}
