package typecheck

import (
	"github.com/plutolang/pluto/internal/ast"
	"github.com/plutolang/pluto/internal/diagnostics"
	"github.com/plutolang/pluto/internal/types"
)

// inferMethodCall dispatches obj.method(args) with a fixed priority:
// expect() assertion intrinsics, built-in methods on containers/strings/
// bytes/tasks/channels, trait dynamic dispatch, then class-mangled static
// dispatch. Every resolution is recorded in MethodResolutions for codegen
// and the effect pass.
func inferMethodCall(e *ast.MethodCall, env *Env) (types.Type, *diagnostics.CompileError) {
	if call, ok := e.Object.(*ast.Call); ok && call.FuncName.Value == "expect" && len(call.Args) == 1 {
		return inferAssertion(e, call, env)
	}

	objType, err := inferExpr(e.Object, env)
	if err != nil {
		return nil, err
	}

	switch t := objType.(type) {
	case types.Array:
		return inferArrayMethod(e, t, env)
	case types.Map:
		return inferMapMethod(e, t, env)
	case types.Set:
		return inferSetMethod(e, t, env)
	case types.Task:
		return inferTaskMethod(e, t, env)
	case types.Bytes:
		return inferBytesMethod(e, env)
	case types.Sender:
		return inferSenderMethod(e, t, env)
	case types.Receiver:
		return inferReceiverMethod(e, t, env)
	case types.String:
		return inferStringMethod(e, env)
	case types.Trait:
		return inferTraitMethodCall(e, t, env)
	case types.Class:
		return inferClassMethodCall(e, t, env)
	}
	return nil, diagnostics.TypeErrf(e.Object.Span(), "method call on non-class type %s", objType)
}

// recordResolution stores a method resolution for the current call site.
func recordResolution(e *ast.MethodCall, env *Env, res MethodResolution) {
	if env.CurrentFn != "" {
		env.MethodResolutions[FnSpanKey{Fn: env.CurrentFn, Start: e.Method.Sp.Start}] = res
	}
}

func recordBuiltin(e *ast.MethodCall, env *Env) {
	recordResolution(e, env, MethodResolution{Kind: ResolveBuiltin})
}

func (e *Env) checkArgs(call *ast.MethodCall, expected []types.Type) *diagnostics.CompileError {
	name := call.Method.Value
	if len(call.Args) != len(expected) {
		return diagnostics.TypeErrf(call.Sp, "%s() expects %d arguments, got %d", name, len(expected), len(call.Args))
	}
	for i, arg := range call.Args {
		actual, err := inferExpr(arg, e)
		if err != nil {
			return err
		}
		if !types.Equal(actual, expected[i]) {
			return diagnostics.TypeErrf(arg.Span(), "%s(): expected %s, found %s", name, expected[i], actual)
		}
	}
	return nil
}

// inferAssertion types expect(x).to_equal(y) / .to_be_true() / .to_be_false().
func inferAssertion(e *ast.MethodCall, expectCall *ast.Call, env *Env) (types.Type, *diagnostics.CompileError) {
	inner, err := inferExpr(expectCall.Args[0], env)
	if err != nil {
		return nil, err
	}
	recordBuiltin(e, env)
	switch e.Method.Value {
	case "to_equal":
		if len(e.Args) != 1 {
			return nil, diagnostics.TypeErrf(e.Sp, "to_equal() expects 1 argument, got %d", len(e.Args))
		}
		if isBytes(inner) {
			return nil, diagnostics.TypeErr("cannot use to_equal() with bytes; compare elements individually", e.Sp)
		}
		expected, err := inferExpr(e.Args[0], env)
		if err != nil {
			return nil, err
		}
		if !types.Equal(inner, expected) {
			return nil, diagnostics.TypeErrf(e.Sp, "to_equal: expected type %s but expect() wraps %s", expected, inner)
		}
		return types.Void{}, nil
	case "to_be_true", "to_be_false":
		if len(e.Args) != 0 {
			return nil, diagnostics.TypeErrf(e.Sp, "%s() expects 0 arguments, got %d", e.Method.Value, len(e.Args))
		}
		if !isBool(inner) {
			return nil, diagnostics.TypeErrf(e.Sp, "%s requires bool, found %s", e.Method.Value, inner)
		}
		return types.Void{}, nil
	}
	return nil, diagnostics.TypeErrf(e.Method.Sp, "unknown assertion method: %s", e.Method.Value)
}

func inferArrayMethod(e *ast.MethodCall, arr types.Array, env *Env) (types.Type, *diagnostics.CompileError) {
	switch e.Method.Value {
	case "len":
		if err := env.checkArgs(e, nil); err != nil {
			return nil, err
		}
		recordBuiltin(e, env)
		return types.Int{}, nil
	case "push":
		if err := env.checkArgs(e, []types.Type{arr.Elem}); err != nil {
			return nil, err
		}
		recordBuiltin(e, env)
		return types.Void{}, nil
	case "pop", "last", "first":
		if err := env.checkArgs(e, nil); err != nil {
			return nil, err
		}
		recordBuiltin(e, env)
		return arr.Elem, nil
	case "is_empty":
		if err := env.checkArgs(e, nil); err != nil {
			return nil, err
		}
		recordBuiltin(e, env)
		return types.Bool{}, nil
	case "clear", "reverse":
		if err := env.checkArgs(e, nil); err != nil {
			return nil, err
		}
		recordBuiltin(e, env)
		return types.Void{}, nil
	case "remove_at":
		if err := env.checkArgs(e, []types.Type{types.Int{}}); err != nil {
			return nil, err
		}
		recordBuiltin(e, env)
		return arr.Elem, nil
	case "insert_at":
		if err := env.checkArgs(e, []types.Type{types.Int{}, arr.Elem}); err != nil {
			return nil, err
		}
		recordBuiltin(e, env)
		return types.Void{}, nil
	case "slice":
		if err := env.checkArgs(e, []types.Type{types.Int{}, types.Int{}}); err != nil {
			return nil, err
		}
		recordBuiltin(e, env)
		return arr, nil
	case "contains":
		if err := env.checkArgs(e, []types.Type{arr.Elem}); err != nil {
			return nil, err
		}
		recordBuiltin(e, env)
		return types.Bool{}, nil
	case "index_of":
		if err := env.checkArgs(e, []types.Type{arr.Elem}); err != nil {
			return nil, err
		}
		recordBuiltin(e, env)
		return types.Int{}, nil
	}
	return nil, diagnostics.TypeErrf(e.Method.Sp, "array has no method '%s'", e.Method.Value)
}

func inferMapMethod(e *ast.MethodCall, m types.Map, env *Env) (types.Type, *diagnostics.CompileError) {
	switch e.Method.Value {
	case "len":
		if err := env.checkArgs(e, nil); err != nil {
			return nil, err
		}
		recordBuiltin(e, env)
		return types.Int{}, nil
	case "contains":
		if err := env.checkArgs(e, []types.Type{m.Key}); err != nil {
			return nil, err
		}
		recordBuiltin(e, env)
		return types.Bool{}, nil
	case "insert":
		if err := env.checkArgs(e, []types.Type{m.Key, m.Value}); err != nil {
			return nil, err
		}
		recordBuiltin(e, env)
		return types.Void{}, nil
	case "remove":
		if err := env.checkArgs(e, []types.Type{m.Key}); err != nil {
			return nil, err
		}
		recordBuiltin(e, env)
		return types.Void{}, nil
	case "keys":
		if err := env.checkArgs(e, nil); err != nil {
			return nil, err
		}
		recordBuiltin(e, env)
		return types.Array{Elem: m.Key}, nil
	case "values":
		if err := env.checkArgs(e, nil); err != nil {
			return nil, err
		}
		recordBuiltin(e, env)
		return types.Array{Elem: m.Value}, nil
	}
	return nil, diagnostics.TypeErrf(e.Method.Sp, "Map has no method '%s'", e.Method.Value)
}

func inferSetMethod(e *ast.MethodCall, s types.Set, env *Env) (types.Type, *diagnostics.CompileError) {
	switch e.Method.Value {
	case "len":
		if err := env.checkArgs(e, nil); err != nil {
			return nil, err
		}
		recordBuiltin(e, env)
		return types.Int{}, nil
	case "contains":
		if err := env.checkArgs(e, []types.Type{s.Elem}); err != nil {
			return nil, err
		}
		recordBuiltin(e, env)
		return types.Bool{}, nil
	case "insert", "remove":
		if err := env.checkArgs(e, []types.Type{s.Elem}); err != nil {
			return nil, err
		}
		recordBuiltin(e, env)
		return types.Void{}, nil
	case "to_array":
		if err := env.checkArgs(e, nil); err != nil {
			return nil, err
		}
		recordBuiltin(e, env)
		return types.Array{Elem: s.Elem}, nil
	}
	return nil, diagnostics.TypeErrf(e.Method.Sp, "Set has no method '%s'", e.Method.Value)
}

func inferTaskMethod(e *ast.MethodCall, task types.Task, env *Env) (types.Type, *diagnostics.CompileError) {
	switch e.Method.Value {
	case "get":
		if err := env.checkArgs(e, nil); err != nil {
			return nil, err
		}
		// Track the spawn origin through the task variable so .get()
		// fallibility can follow the callee; non-ident objects stay
		// unknown and are conservatively fallible.
		spawnedFn := ""
		if ident, ok := e.Object.(*ast.Ident); ok {
			if fn, found := env.LookupTaskOrigin(ident.Name); found {
				spawnedFn = fn
			}
		}
		recordResolution(e, env, MethodResolution{Kind: ResolveTaskGet, SpawnedFn: spawnedFn})
		return task.Elem, nil
	case "detach":
		if err := env.checkArgs(e, nil); err != nil {
			return nil, err
		}
		recordResolution(e, env, MethodResolution{Kind: ResolveTaskDetach})
		return types.Void{}, nil
	case "cancel":
		if err := env.checkArgs(e, nil); err != nil {
			return nil, err
		}
		recordResolution(e, env, MethodResolution{Kind: ResolveTaskCancel})
		return types.Void{}, nil
	}
	return nil, diagnostics.TypeErrf(e.Method.Sp, "Task has no method '%s'", e.Method.Value)
}

func inferBytesMethod(e *ast.MethodCall, env *Env) (types.Type, *diagnostics.CompileError) {
	switch e.Method.Value {
	case "len":
		if err := env.checkArgs(e, nil); err != nil {
			return nil, err
		}
		recordBuiltin(e, env)
		return types.Int{}, nil
	case "push":
		if err := env.checkArgs(e, []types.Type{types.Byte{}}); err != nil {
			return nil, err
		}
		recordBuiltin(e, env)
		return types.Void{}, nil
	case "to_string":
		if err := env.checkArgs(e, nil); err != nil {
			return nil, err
		}
		recordBuiltin(e, env)
		return types.String{}, nil
	}
	return nil, diagnostics.TypeErrf(e.Method.Sp, "bytes has no method '%s'", e.Method.Value)
}

func inferSenderMethod(e *ast.MethodCall, s types.Sender, env *Env) (types.Type, *diagnostics.CompileError) {
	switch e.Method.Value {
	case "send":
		if err := env.checkArgs(e, []types.Type{s.Elem}); err != nil {
			return nil, err
		}
		recordResolution(e, env, MethodResolution{Kind: ResolveChannelSend})
		return types.Void{}, nil
	case "try_send":
		if err := env.checkArgs(e, []types.Type{s.Elem}); err != nil {
			return nil, err
		}
		recordResolution(e, env, MethodResolution{Kind: ResolveChannelTrySend})
		return types.Void{}, nil
	case "close":
		if err := env.checkArgs(e, nil); err != nil {
			return nil, err
		}
		recordBuiltin(e, env)
		return types.Void{}, nil
	}
	return nil, diagnostics.TypeErrf(e.Method.Sp, "Sender has no method '%s'", e.Method.Value)
}

func inferReceiverMethod(e *ast.MethodCall, r types.Receiver, env *Env) (types.Type, *diagnostics.CompileError) {
	switch e.Method.Value {
	case "recv":
		if err := env.checkArgs(e, nil); err != nil {
			return nil, err
		}
		recordResolution(e, env, MethodResolution{Kind: ResolveChannelRecv})
		return r.Elem, nil
	case "try_recv":
		if err := env.checkArgs(e, nil); err != nil {
			return nil, err
		}
		recordResolution(e, env, MethodResolution{Kind: ResolveChannelTryRecv})
		return r.Elem, nil
	}
	return nil, diagnostics.TypeErrf(e.Method.Sp, "Receiver has no method '%s'", e.Method.Value)
}

func inferStringMethod(e *ast.MethodCall, env *Env) (types.Type, *diagnostics.CompileError) {
	str := types.String{}
	switch e.Method.Value {
	case "len":
		if err := env.checkArgs(e, nil); err != nil {
			return nil, err
		}
		recordBuiltin(e, env)
		return types.Int{}, nil
	case "trim", "trim_start", "trim_end", "to_upper", "to_lower":
		if err := env.checkArgs(e, nil); err != nil {
			return nil, err
		}
		recordBuiltin(e, env)
		return str, nil
	case "contains", "starts_with", "ends_with":
		if err := env.checkArgs(e, []types.Type{str}); err != nil {
			return nil, err
		}
		recordBuiltin(e, env)
		return types.Bool{}, nil
	case "index_of", "last_index_of", "count":
		if err := env.checkArgs(e, []types.Type{str}); err != nil {
			return nil, err
		}
		recordBuiltin(e, env)
		return types.Int{}, nil
	case "char_at":
		if err := env.checkArgs(e, []types.Type{types.Int{}}); err != nil {
			return nil, err
		}
		recordBuiltin(e, env)
		return str, nil
	case "byte_at":
		if err := env.checkArgs(e, []types.Type{types.Int{}}); err != nil {
			return nil, err
		}
		recordBuiltin(e, env)
		return types.Int{}, nil
	case "substring":
		if err := env.checkArgs(e, []types.Type{types.Int{}, types.Int{}}); err != nil {
			return nil, err
		}
		recordBuiltin(e, env)
		return str, nil
	case "replace":
		if err := env.checkArgs(e, []types.Type{str, str}); err != nil {
			return nil, err
		}
		recordBuiltin(e, env)
		return str, nil
	case "split":
		if err := env.checkArgs(e, []types.Type{str}); err != nil {
			return nil, err
		}
		recordBuiltin(e, env)
		return types.Array{Elem: str}, nil
	case "repeat":
		if err := env.checkArgs(e, []types.Type{types.Int{}}); err != nil {
			return nil, err
		}
		recordBuiltin(e, env)
		return str, nil
	case "to_int":
		if err := env.checkArgs(e, nil); err != nil {
			return nil, err
		}
		recordBuiltin(e, env)
		return types.Nullable{Inner: types.Int{}}, nil
	case "to_float":
		if err := env.checkArgs(e, nil); err != nil {
			return nil, err
		}
		recordBuiltin(e, env)
		return types.Nullable{Inner: types.Float{}}, nil
	case "to_bytes":
		if err := env.checkArgs(e, nil); err != nil {
			return nil, err
		}
		recordBuiltin(e, env)
		return types.Bytes{}, nil
	case "is_empty", "is_whitespace":
		if err := env.checkArgs(e, nil); err != nil {
			return nil, err
		}
		recordBuiltin(e, env)
		return types.Bool{}, nil
	}
	return nil, diagnostics.TypeErrf(e.Method.Sp, "string has no method '%s'", e.Method.Value)
}

func inferTraitMethodCall(e *ast.MethodCall, tr types.Trait, env *Env) (types.Type, *diagnostics.CompileError) {
	info, ok := env.Traits[tr.Name]
	if !ok {
		return nil, diagnostics.TypeErrf(e.Object.Span(), "unknown trait '%s'", tr.Name)
	}
	sig := info.Method(e.Method.Value)
	if sig == nil {
		return nil, diagnostics.TypeErrf(e.Method.Sp, "trait '%s' has no method '%s'", tr.Name, e.Method.Value)
	}
	expected := sig.Sig.Params[1:]
	if len(e.Args) != len(expected) {
		return nil, diagnostics.TypeErrf(e.Sp, "method '%s' expects %d arguments, got %d", e.Method.Value, len(expected), len(e.Args))
	}
	for i, arg := range e.Args {
		actual, err := inferExpr(arg, env)
		if err != nil {
			return nil, err
		}
		if !typesCompatible(actual, expected[i], env) {
			return nil, diagnostics.TypeErrf(arg.Span(), "argument %d of '%s': expected %s, found %s",
				i+1, e.Method.Value, expected[i], actual)
		}
	}
	recordResolution(e, env, MethodResolution{
		Kind:       ResolveTraitDynamic,
		TraitName:  tr.Name,
		MethodName: e.Method.Value,
	})
	if info.MutSelfMethods[e.Method.Value] {
		if err := checkReceiverMutable(e, env); err != nil {
			return nil, err
		}
	}
	return sig.Sig.Return, nil
}

func inferClassMethodCall(e *ast.MethodCall, cls types.Class, env *Env) (types.Type, *diagnostics.CompileError) {
	mangled := types.MangleMethod(cls.Name, e.Method.Value)
	recordResolution(e, env, MethodResolution{Kind: ResolveClass, MangledName: mangled})
	if env.MutSelfMethods[mangled] {
		if err := checkReceiverMutable(e, env); err != nil {
			return nil, err
		}
	}
	sig, ok := env.Functions[mangled]
	if !ok {
		return nil, diagnostics.TypeErrf(e.Method.Sp, "class '%s' has no method '%s'", cls.Name, e.Method.Value)
	}
	expected := sig.Params[1:]
	if len(e.Args) != len(expected) {
		return nil, diagnostics.TypeErrf(e.Sp, "method '%s' expects %d arguments, got %d", e.Method.Value, len(expected), len(e.Args))
	}
	for i, arg := range e.Args {
		actual, err := inferExpr(arg, env)
		if err != nil {
			return nil, err
		}
		if !typesCompatible(actual, expected[i], env) {
			return nil, diagnostics.TypeErrf(arg.Span(), "argument %d of '%s': expected %s, found %s",
				i+1, e.Method.Value, expected[i], actual)
		}
	}
	return sig.Return, nil
}

// checkReceiverMutable rejects calling a `mut self` method through an
// immutable binding. The receiver root is the deepest Ident through field
// accesses; self is always allowed here (mut-self enforcement handles it).
func checkReceiverMutable(e *ast.MethodCall, env *Env) *diagnostics.CompileError {
	root, ok := rootVariable(e.Object)
	if !ok || root == "self" {
		return nil
	}
	if env.IsImmutable(root) {
		return diagnostics.TypeErrf(e.Method.Sp,
			"cannot call mutating method '%s' on immutable variable '%s'; declare with 'let mut' to allow mutation",
			e.Method.Value, root)
	}
	return nil
}

// rootVariable extracts the root variable of nested field accesses:
// x.inner.val → x. Calls and other expressions have no root.
func rootVariable(e ast.Expr) (string, bool) {
	switch e := e.(type) {
	case *ast.Ident:
		return e.Name, true
	case *ast.FieldAccess:
		return rootVariable(e.Object)
	}
	return "", false
}
