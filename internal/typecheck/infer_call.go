package typecheck

import (
	"github.com/plutolang/pluto/internal/ast"
	"github.com/plutolang/pluto/internal/diagnostics"
	"github.com/plutolang/pluto/internal/types"
)

// floatUnaryBuiltins take one float and return float.
var floatUnaryBuiltins = map[string]bool{
	"sqrt": true, "floor": true, "ceil": true, "round": true,
	"sin": true, "cos": true, "tan": true, "log": true,
}

// inferCall dispatches a named call: old() inside ensures, builtins,
// closure-valued variables, generic functions (explicit or inferred type
// args), then monomorphic functions.
func inferCall(e *ast.Call, env *Env) (types.Type, *diagnostics.CompileError) {
	name := e.FuncName.Value

	// old(expr) is only meaningful inside an ensures clause and has the
	// type of its inner expression.
	if name == "old" && len(e.Args) == 1 && env.InEnsuresContext {
		return inferExpr(e.Args[0], env)
	}

	if env.Builtins[name] {
		if len(e.TypeArgs) > 0 {
			return nil, diagnostics.TypeErrf(e.Sp, "builtin function '%s' does not accept type arguments", name)
		}
		return inferBuiltinCall(e, env)
	}

	// Closure-valued variable.
	if ty, ok := env.Lookup(name); ok {
		if fnType, isFn := ty.(types.Fn); isFn {
			// Record the read like any identifier use.
			if _, depth, found := env.LookupWithDepth(name); found {
				env.VariableReads[VarKey{Name: name, Depth: depth}] = true
			}
			if len(e.Args) != len(fnType.Params) {
				return nil, diagnostics.TypeErrf(e.Sp, "'%s' expects %d arguments, got %d", name, len(fnType.Params), len(e.Args))
			}
			for i, arg := range e.Args {
				actual, err := inferExpr(arg, env)
				if err != nil {
					return nil, err
				}
				if !typesCompatible(actual, fnType.Params[i], env) {
					return nil, diagnostics.TypeErrf(arg.Span(), "argument %d of '%s': expected %s, found %s",
						i+1, name, fnType.Params[i], actual)
				}
			}
			return fnType.Return, nil
		}
	}

	if gen, ok := env.GenericFunctions[name]; ok {
		return inferGenericCall(e, gen, env)
	}

	if len(e.TypeArgs) > 0 {
		return nil, diagnostics.TypeErrf(e.Sp, "function '%s' is not generic and does not accept type arguments", name)
	}

	sig, ok := env.Functions[name]
	if !ok {
		return nil, diagnostics.TypeErrf(e.FuncName.Sp, "undefined function '%s'", name)
	}
	if len(e.Args) != len(sig.Params) {
		return nil, diagnostics.TypeErrf(e.Sp, "function '%s' expects %d arguments, got %d", name, len(sig.Params), len(e.Args))
	}
	for i, arg := range e.Args {
		actual, err := inferExpr(arg, env)
		if err != nil {
			return nil, err
		}
		if !typesCompatible(actual, sig.Params[i], env) {
			return nil, diagnostics.TypeErrf(arg.Span(), "argument %d of '%s': expected %s, found %s",
				i+1, name, sig.Params[i], actual)
		}
	}
	return sig.Return, nil
}

// inferGenericCall resolves a generic call site: explicit type arguments or
// unification against the argument types, bound validation, eager
// instantiation, and a generic_rewrites entry for monomorphization.
func inferGenericCall(e *ast.Call, gen *GenericFuncSig, env *Env) (types.Type, *diagnostics.CompileError) {
	name := e.FuncName.Value
	if len(e.Args) != len(gen.Params) {
		return nil, diagnostics.TypeErrf(e.Sp, "function '%s' expects %d arguments, got %d", name, len(gen.Params), len(e.Args))
	}
	var typeArgs []types.Type
	if len(e.TypeArgs) > 0 {
		if len(e.TypeArgs) != len(gen.TypeParams) {
			return nil, diagnostics.TypeErrf(e.Sp, "function '%s' expects %d type arguments, got %d",
				name, len(gen.TypeParams), len(e.TypeArgs))
		}
		for _, arg := range e.Args {
			if _, err := inferExpr(arg, env); err != nil {
				return nil, err
			}
		}
		typeArgs = make([]types.Type, len(e.TypeArgs))
		for i, ta := range e.TypeArgs {
			ty, err := ResolveType(ta, env)
			if err != nil {
				return nil, err
			}
			typeArgs[i] = ty
		}
	} else {
		argTypes := make([]types.Type, len(e.Args))
		for i, arg := range e.Args {
			ty, err := inferExpr(arg, env)
			if err != nil {
				return nil, err
			}
			argTypes[i] = ty
		}
		bindings := map[string]types.Type{}
		for i, param := range gen.Params {
			if !types.Unify(param, argTypes[i], bindings) {
				return nil, diagnostics.TypeErrf(e.Sp, "cannot infer type parameters for '%s'", name)
			}
		}
		typeArgs = make([]types.Type, len(gen.TypeParams))
		for i, tp := range gen.TypeParams {
			bound, ok := bindings[tp]
			if !ok {
				return nil, diagnostics.TypeErrf(e.Sp, "cannot infer type parameter '%s' for '%s'", tp, name)
			}
			typeArgs[i] = bound
		}
	}
	if err := validateTypeBounds(gen.TypeParams, typeArgs, gen.Bounds, env, e.Sp, name); err != nil {
		return nil, err
	}
	mangled := ensureGenericFuncInstantiated(name, typeArgs, env)
	env.GenericRewrites[e.Sp.Key()] = mangled
	sig, ok := env.Functions[mangled]
	if !ok {
		return nil, diagnostics.Internalf(e.Sp, "generic function '%s' not registered after instantiation", mangled)
	}
	return sig.Return, nil
}

// inferBuiltinCall checks the fixed arity/type rules of each builtin.
func inferBuiltinCall(e *ast.Call, env *Env) (types.Type, *diagnostics.CompileError) {
	name := e.FuncName.Value
	argc := len(e.Args)
	switch {
	case name == "print":
		if argc != 1 {
			return nil, diagnostics.TypeErrf(e.Sp, "print() expects 1 argument, got %d", argc)
		}
		ty, err := inferExpr(e.Args[0], env)
		if err != nil {
			return nil, err
		}
		switch ty.(type) {
		case types.Int, types.Float, types.Bool, types.String, types.Byte:
		default:
			return nil, diagnostics.TypeErrf(e.Args[0].Span(), "print() does not support type %s", ty)
		}
		return types.Void{}, nil
	case name == "time_ns" || name == "gc_heap_size":
		if argc != 0 {
			return nil, diagnostics.TypeErrf(e.Sp, "%s() expects 0 arguments, got %d", name, argc)
		}
		return types.Int{}, nil
	case name == "bytes_new":
		if argc != 0 {
			return nil, diagnostics.TypeErrf(e.Sp, "bytes_new() expects 0 arguments, got %d", argc)
		}
		return types.Bytes{}, nil
	case name == "abs":
		if argc != 1 {
			return nil, diagnostics.TypeErrf(e.Sp, "abs() expects 1 argument, got %d", argc)
		}
		ty, err := inferExpr(e.Args[0], env)
		if err != nil {
			return nil, err
		}
		if !types.IsNumeric(ty) {
			return nil, diagnostics.TypeErrf(e.Args[0].Span(), "abs() expects int or float, found %s", ty)
		}
		return ty, nil
	case name == "min" || name == "max":
		if argc != 2 {
			return nil, diagnostics.TypeErrf(e.Sp, "%s() expects 2 arguments, got %d", name, argc)
		}
		left, err := inferExpr(e.Args[0], env)
		if err != nil {
			return nil, err
		}
		right, err := inferExpr(e.Args[1], env)
		if err != nil {
			return nil, err
		}
		if !types.Equal(left, right) {
			return nil, diagnostics.TypeErrf(e.Sp, "%s() requires matching argument types, found %s and %s", name, left, right)
		}
		if !types.IsNumeric(left) {
			return nil, diagnostics.TypeErrf(e.Sp, "%s() expects int or float arguments, found %s", name, left)
		}
		return left, nil
	case name == "pow":
		if argc != 2 {
			return nil, diagnostics.TypeErrf(e.Sp, "pow() expects 2 arguments, got %d", argc)
		}
		base, err := inferExpr(e.Args[0], env)
		if err != nil {
			return nil, err
		}
		exp, err := inferExpr(e.Args[1], env)
		if err != nil {
			return nil, err
		}
		if !types.Equal(base, exp) {
			return nil, diagnostics.TypeErrf(e.Sp, "pow() requires matching argument types, found %s and %s", base, exp)
		}
		switch base.(type) {
		case types.Int:
			// Integer pow overflows: fallible, raises MathError.
			if env.CurrentFn != "" {
				env.FallibleBuiltinCalls[FnSpanKey{Fn: env.CurrentFn, Start: e.FuncName.Sp.Start}] = true
			}
			return types.Int{}, nil
		case types.Float:
			return types.Float{}, nil
		}
		return nil, diagnostics.TypeErrf(e.Sp, "pow() expects int,int or float,float, found %s", base)
	case floatUnaryBuiltins[name]:
		if argc != 1 {
			return nil, diagnostics.TypeErrf(e.Sp, "%s() expects 1 argument, got %d", name, argc)
		}
		ty, err := inferExpr(e.Args[0], env)
		if err != nil {
			return nil, err
		}
		if _, ok := ty.(types.Float); !ok {
			return nil, diagnostics.TypeErrf(e.Args[0].Span(), "%s() expects float, found %s", name, ty)
		}
		return types.Float{}, nil
	case name == "expect":
		if argc != 1 {
			return nil, diagnostics.TypeErrf(e.Sp, "expect() takes exactly 1 argument, got %d", argc)
		}
		// Passthrough: the assertion method on the result does the check.
		return inferExpr(e.Args[0], env)
	}
	return nil, diagnostics.TypeErrf(e.FuncName.Sp, "unknown builtin '%s'", name)
}

// inferStaticTraitCall types Trait::method(args) for static trait methods.
func inferStaticTraitCall(e *ast.StaticTraitCall, env *Env) (types.Type, *diagnostics.CompileError) {
	info, ok := env.Traits[e.TraitName.Value]
	if !ok {
		return nil, diagnostics.TypeErrf(e.TraitName.Sp, "unknown trait '%s'", e.TraitName.Value)
	}
	sig := info.Method(e.MethodName.Value)
	if sig == nil {
		return nil, diagnostics.TypeErrf(e.MethodName.Sp, "trait '%s' has no method '%s'", e.TraitName.Value, e.MethodName.Value)
	}
	if !info.StaticMethods[e.MethodName.Value] {
		return nil, diagnostics.TypeErrf(e.MethodName.Sp,
			"method '%s' on trait '%s' is not a static method (requires self parameter)", e.MethodName.Value, e.TraitName.Value)
	}
	if len(e.Args) != len(sig.Sig.Params) {
		return nil, diagnostics.TypeErrf(e.Sp, "static method '%s::%s' expects %d arguments, got %d",
			e.TraitName.Value, e.MethodName.Value, len(sig.Sig.Params), len(e.Args))
	}
	for i, arg := range e.Args {
		actual, err := inferExpr(arg, env)
		if err != nil {
			return nil, err
		}
		if !types.Equal(actual, sig.Sig.Params[i]) {
			return nil, diagnostics.TypeErrf(arg.Span(), "static method '%s::%s' argument %d has type %s, expected %s",
				e.TraitName.Value, e.MethodName.Value, i+1, actual, sig.Sig.Params[i])
		}
	}
	return sig.Sig.Return, nil
}
