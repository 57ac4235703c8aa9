package typecheck

import (
	"github.com/plutolang/pluto/internal/ast"
	"github.com/plutolang/pluto/internal/diagnostics"
	"github.com/plutolang/pluto/internal/types"
)

// CheckFunctionContracts type-checks one function's contract clauses; the
// incremental driver re-checks affected declarations through it.
func CheckFunctionContracts(fn *ast.Function, env *Env, className string) *diagnostics.CompileError {
	return checkFunctionContracts(fn, env, className)
}

// checkFunctionContracts type-checks a function or method's requires and
// ensures clauses. Clauses see all parameters (self typed as the enclosing
// class); ensures additionally binds `result` for non-void returns and
// enables old(expr). Every clause must be Bool. Runtime checks are emitted
// by codegen; this pass only types them.
func checkFunctionContracts(fn *ast.Function, env *Env, className string) *diagnostics.CompileError {
	if len(fn.Contracts) == 0 {
		return nil
	}
	defineParams := func() *diagnostics.CompileError {
		for _, p := range fn.Params {
			if p.Name.Value == "self" {
				env.Define("self", types.Class{Name: className})
				continue
			}
			ty, err := ResolveType(p.Type, env)
			if err != nil {
				return err
			}
			env.Define(p.Name.Value, ty)
		}
		return nil
	}

	lookupName := fn.Name.Value
	if className != "" {
		lookupName = types.MangleMethod(className, fn.Name.Value)
	}
	var returnType types.Type = types.Void{}
	if sig, ok := env.Functions[lookupName]; ok {
		returnType = sig.Return
	}

	for _, contract := range fn.Contracts {
		switch contract.Kind {
		case ast.Requires:
			env.PushScope()
			err := defineParams()
			if err == nil {
				var ty types.Type
				ty, err = inferExpr(contract.Expr, env)
				if err == nil && !isBool(ty) {
					err = diagnostics.TypeErrf(contract.Expr.Span(), "requires expression must be bool, found %s", ty)
				}
			}
			env.PopScope()
			if err != nil {
				return err
			}
		case ast.Ensures:
			env.PushScope()
			err := defineParams()
			if err == nil {
				if _, isVoid := returnType.(types.Void); !isVoid {
					env.Define("result", returnType)
				}
				saved := env.InEnsuresContext
				env.InEnsuresContext = true
				var ty types.Type
				ty, err = inferExpr(contract.Expr, env)
				env.InEnsuresContext = saved
				if err == nil && !isBool(ty) {
					err = diagnostics.TypeErrf(contract.Expr.Span(), "ensures expression must be bool, found %s", ty)
				}
			}
			env.PopScope()
			if err != nil {
				return err
			}
		case ast.Invariant:
			return diagnostics.TypeErr("invariant clauses belong on classes, not functions", contract.Sp)
		}
	}
	return nil
}

// checkClassInvariants types each invariant clause with self in scope.
func checkClassInvariants(c *ast.ClassDecl, env *Env) *diagnostics.CompileError {
	if len(c.Invariants) == 0 {
		return nil
	}
	env.PushScope()
	defer env.PopScope()
	env.Define("self", types.Class{Name: c.Name.Value})
	for _, inv := range c.Invariants {
		ty, err := inferExpr(inv.Expr, env)
		if err != nil {
			return err
		}
		if !isBool(ty) {
			return diagnostics.TypeErrf(inv.Expr.Span(), "invariant expression must be bool, found %s", ty)
		}
	}
	return nil
}

// checkTraitMethodContracts types requires/ensures on abstract trait
// methods. Self has no concrete type yet, so it is bound with type void;
// the clauses can make real use only of the remaining parameters (and
// result).
func checkTraitMethodContracts(program *ast.Program, env *Env) *diagnostics.CompileError {
	for _, t := range program.Traits {
		for _, m := range t.Methods {
			if len(m.Contracts) == 0 {
				continue
			}
			type namedParam struct {
				name string
				ty   types.Type
			}
			var params []namedParam
			for _, p := range m.Params {
				if p.Name.Value == "self" {
					params = append(params, namedParam{name: "self", ty: types.Void{}})
					continue
				}
				ty, err := ResolveType(p.Type, env)
				if err != nil {
					return err
				}
				params = append(params, namedParam{name: p.Name.Value, ty: ty})
			}
			var returnType types.Type = types.Void{}
			if m.ReturnType != nil {
				r, err := ResolveType(m.ReturnType, env)
				if err != nil {
					return err
				}
				returnType = r
			}
			for _, contract := range m.Contracts {
				env.PushScope()
				for _, p := range params {
					env.Define(p.name, p.ty)
				}
				var err *diagnostics.CompileError
				switch contract.Kind {
				case ast.Requires:
					var ty types.Type
					ty, err = inferExpr(contract.Expr, env)
					if err == nil && !isBool(ty) {
						err = diagnostics.TypeErrf(contract.Expr.Span(), "requires expression must be bool, found %s", ty)
					}
				case ast.Ensures:
					if _, isVoid := returnType.(types.Void); !isVoid {
						env.Define("result", returnType)
					}
					saved := env.InEnsuresContext
					env.InEnsuresContext = true
					var ty types.Type
					ty, err = inferExpr(contract.Expr, env)
					env.InEnsuresContext = saved
					if err == nil && !isBool(ty) {
						err = diagnostics.TypeErrf(contract.Expr.Span(), "ensures expression must be bool, found %s", ty)
					}
				}
				env.PopScope()
				if err != nil {
					return err
				}
			}
		}
	}
	return nil
}
