package typecheck

import (
	"github.com/plutolang/pluto/internal/ast"
	"github.com/plutolang/pluto/internal/diagnostics"
	"github.com/plutolang/pluto/internal/types"
)

// CheckFunction type-checks one function or method body against its
// registered signature. className is "" for free functions. The mangled
// current-function name scopes every side-table entry recorded while the
// body is checked.
func CheckFunction(fn *ast.Function, env *Env, className string) *diagnostics.CompileError {
	prevFn := env.CurrentFn
	if className != "" {
		env.CurrentFn = types.MangleMethod(className, fn.Name.Value)
	} else {
		env.CurrentFn = fn.Name.Value
	}
	err := checkFunctionBody(fn, env, className)
	env.CurrentFn = prevFn
	return err
}

func checkFunctionBody(fn *ast.Function, env *Env, className string) *diagnostics.CompileError {
	clear(env.InvalidatedTaskVars)
	env.PushScope()
	defer env.PopScope()

	for _, p := range fn.Params {
		var ty types.Type
		if p.Name.Value == "self" {
			if className == "" {
				return diagnostics.TypeErr("'self' used outside of class method", p.Name.Sp)
			}
			ty = types.Class{Name: className}
		} else {
			resolved, err := ResolveType(p.Type, env)
			if err != nil {
				return err
			}
			ty = resolved
		}
		env.Define(p.Name.Value, ty)
	}

	lookupName := fn.Name.Value
	if className != "" {
		lookupName = types.MangleMethod(className, fn.Name.Value)
	}
	sig, ok := env.Functions[lookupName]
	if !ok {
		return diagnostics.TypeErrf(fn.Name.Sp, "unknown function '%s'", lookupName)
	}
	expectedReturn := sig.Return

	// Generators type-check with effective return void; yields validate
	// against the stream element.
	prevGenElem := env.CurrentGeneratorElem
	effectiveReturn := expectedReturn
	if stream, isStream := expectedReturn.(types.Stream); isStream {
		env.CurrentGeneratorElem = stream.Elem
		effectiveReturn = types.Void{}
	} else {
		env.CurrentGeneratorElem = nil
	}
	defer func() { env.CurrentGeneratorElem = prevGenElem }()

	if err := checkBlock(fn.Body, env, effectiveReturn); err != nil {
		return err
	}

	// A non-void function whose body has no statement that could provide a
	// return path is always wrong; catch the straight-line case here.
	if _, isVoid := effectiveReturn.(types.Void); !isVoid && !hasPotentialReturnPath(fn.Body) {
		return diagnostics.TypeErrf(fn.Body.Sp, "missing return statement in function with return type %s", effectiveReturn)
	}
	return nil
}

// hasPotentialReturnPath conservatively reports whether any statement could
// provide a return (return, raise, or control flow containing one).
func hasPotentialReturnPath(b *ast.Block) bool {
	for _, stmt := range b.Stmts {
		switch stmt.(type) {
		case *ast.Return, *ast.Raise, *ast.If, *ast.Match, *ast.While, *ast.For:
			return true
		}
	}
	return false
}

func checkBlock(b *ast.Block, env *Env, returnType types.Type) *diagnostics.CompileError {
	for _, stmt := range b.Stmts {
		if err := checkStmt(stmt, env, returnType); err != nil {
			return err
		}
	}
	return nil
}

func checkStmt(stmt ast.Stmt, env *Env, returnType types.Type) *diagnostics.CompileError {
	switch s := stmt.(type) {
	case *ast.Let:
		return checkLet(s, env)
	case *ast.Return:
		return checkReturn(s, env, returnType)
	case *ast.Assign:
		return checkAssign(s, env)
	case *ast.FieldAssign:
		return checkFieldAssign(s, env)
	case *ast.IndexAssign:
		return checkIndexAssign(s, env)
	case *ast.If:
		condType, err := inferExpr(s.Cond, env)
		if err != nil {
			return err
		}
		if !isBool(condType) {
			return diagnostics.TypeErrf(s.Cond.Span(), "condition must be bool, found %s", condType)
		}
		env.PushScope()
		err = checkBlock(s.Then, env, returnType)
		env.PopScope()
		if err != nil {
			return err
		}
		if s.Else != nil {
			env.PushScope()
			err = checkBlock(s.Else, env, returnType)
			env.PopScope()
			if err != nil {
				return err
			}
		}
		return nil
	case *ast.While:
		condType, err := inferExpr(s.Cond, env)
		if err != nil {
			return err
		}
		if !isBool(condType) {
			return diagnostics.TypeErrf(s.Cond.Span(), "while condition must be bool, found %s", condType)
		}
		env.PushScope()
		env.LoopDepth++
		err = checkBlock(s.Body, env, returnType)
		env.LoopDepth--
		env.PopScope()
		return err
	case *ast.For:
		iterType, err := inferExpr(s.Iterable, env)
		if err != nil {
			return err
		}
		var elemType types.Type
		switch t := iterType.(type) {
		case types.Array:
			elemType = t.Elem
		case types.Range:
			elemType = types.Int{}
		case types.String:
			elemType = types.String{}
		case types.Bytes:
			elemType = types.Byte{}
		case types.Receiver:
			elemType = t.Elem
		case types.Stream:
			elemType = t.Elem
		default:
			return diagnostics.TypeErrf(s.Iterable.Span(),
				"for loop requires array, range, string, bytes, receiver, or stream, found %s", iterType)
		}
		env.PushScope()
		env.Define(s.Var.Value, elemType)
		env.LoopDepth++
		err = checkBlock(s.Body, env, returnType)
		env.LoopDepth--
		env.PopScope()
		return err
	case *ast.Match:
		return checkMatchStmt(s, env, returnType)
	case *ast.Raise:
		return checkRaise(s, env)
	case *ast.Assert:
		ty, err := inferExpr(s.Cond, env)
		if err != nil {
			return err
		}
		if !isBool(ty) {
			return diagnostics.TypeErrf(s.Cond.Span(), "assert expression must be bool, found %s", ty)
		}
		return nil
	case *ast.Break:
		if env.LoopDepth == 0 {
			return diagnostics.TypeErr("'break' can only be used inside a loop", s.Sp)
		}
		return nil
	case *ast.Continue:
		if env.LoopDepth == 0 {
			return diagnostics.TypeErr("'continue' can only be used inside a loop", s.Sp)
		}
		return nil
	case *ast.ExprStmt:
		exprType, err := inferExpr(s.Value, env)
		if err != nil {
			return err
		}
		// A bare expect() forgot its assertion method.
		if call, ok := s.Value.(*ast.Call); ok && call.FuncName.Value == "expect" {
			return diagnostics.TypeErr(
				"expect() must be followed by an assertion method like .to_equal(), .to_be_true(), or .to_be_false()",
				s.Value.Span())
		}
		// Tasks are must-use: dropping the handle silently loses the
		// task's result and error.
		if _, isTask := exprType.(types.Task); isTask {
			return diagnostics.TypeErr(
				"Task handle must be used -- call .get(), .detach(), or assign to a variable",
				s.Value.Span())
		}
		return nil
	case *ast.LetChan:
		elem, err := ResolveType(s.ElemType, env)
		if err != nil {
			return err
		}
		if s.Capacity != nil {
			capType, err := inferExpr(s.Capacity, env)
			if err != nil {
				return err
			}
			if !isInt(capType) {
				return diagnostics.TypeErrf(s.Capacity.Span(), "channel capacity must be int, found %s", capType)
			}
		}
		env.Define(s.Sender.Value, types.Sender{Elem: elem})
		env.Define(s.Receiver.Value, types.Receiver{Elem: elem})
		return nil
	case *ast.Select:
		return checkSelect(s, env, returnType)
	case *ast.Scope:
		return checkScopeStmt(s, env, returnType)
	case *ast.Yield:
		if env.CurrentGeneratorElem == nil {
			return diagnostics.TypeErr(
				"yield can only be used inside a generator function (one that returns stream T)", s.Sp)
		}
		valType, err := inferExpr(s.Value, env)
		if err != nil {
			return err
		}
		if !typesCompatible(valType, env.CurrentGeneratorElem, env) {
			return diagnostics.TypeErrf(s.Value.Span(), "yield type mismatch: expected %s, found %s",
				env.CurrentGeneratorElem, valType)
		}
		return nil
	}
	return diagnostics.TypeErr("unsupported statement", stmt.Span())
}

func checkLet(s *ast.Let, env *Env) *diagnostics.CompileError {
	// Empty array literals need the annotation to name the element type.
	var valType types.Type
	if arr, ok := s.Value.(*ast.ArrayLit); ok && len(arr.Elements) == 0 {
		if s.Type == nil {
			return diagnostics.TypeErr("cannot infer type of empty array literal; add a type annotation", s.Value.Span())
		}
		expected, err := ResolveType(s.Type, env)
		if err != nil {
			return err
		}
		if _, isArray := expected.(types.Array); !isArray {
			return diagnostics.TypeErrf(s.Value.Span(), "type mismatch: expected %s, found empty array", expected)
		}
		valType = expected
	} else {
		ty, err := inferExpr(s.Value, env)
		if err != nil {
			return err
		}
		valType = ty
	}

	currentDepth := env.ScopeDepth() - 1
	if _, depth, exists := env.LookupWithDepth(s.Name.Value); exists && depth == currentDepth {
		return diagnostics.TypeErrf(s.Name.Sp, "variable '%s' is already declared in this scope", s.Name.Value)
	}
	if s.Type != nil {
		expected, err := ResolveType(s.Type, env)
		if err != nil {
			return err
		}
		if !typesCompatible(valType, expected, env) {
			return diagnostics.TypeErrf(s.Value.Span(), "type mismatch: expected %s, found %s", expected, valType)
		}
		env.Define(s.Name.Value, expected)
	} else {
		env.Define(s.Name.Value, valType)
	}
	if !s.IsMut {
		env.MarkImmutable(s.Name.Value)
	}
	env.VariableDecls[VarKey{Name: s.Name.Value, Depth: env.ScopeDepth() - 1}] = s.Name.Sp

	// Spawn results remember their origin for .get() fallibility.
	if _, isSpawn := s.Value.(*ast.Spawn); isSpawn {
		if fn, ok := env.SpawnTargetFns[s.Value.Span().Key()]; ok {
			env.DefineTaskOrigin(s.Name.Value, fn)
		}
	}
	// Taint propagates through bindings of tainted closures.
	if env.InScopeBlock() && isScopeTaintedExpr(s.Value, env) {
		env.MarkScopeTaintedVar(s.Name.Value)
	}
	return nil
}

func checkReturn(s *ast.Return, env *Env, returnType types.Type) *diagnostics.CompileError {
	// Generators may only bare-return; yield produces their elements.
	if env.CurrentGeneratorElem != nil {
		if s.Value != nil {
			return diagnostics.TypeErr(
				"return with a value is not allowed in generator functions; use yield instead", s.Value.Span())
		}
		return nil
	}
	var actual types.Type = types.Void{}
	if s.Value != nil {
		ty, err := inferExpr(s.Value, env)
		if err != nil {
			return err
		}
		actual = ty
	}
	if !typesCompatible(actual, returnType, env) {
		span := s.Sp
		if s.Value != nil {
			span = s.Value.Span()
		}
		return diagnostics.TypeErrf(span, "return type mismatch: expected %s, found %s", returnType, actual)
	}
	if s.Value != nil && env.InScopeBlock() && isScopeTaintedExpr(s.Value, env) {
		return diagnostics.ScopeErrf(s.Value.Span(),
			"closure capturing scope binding cannot escape scope block via return")
	}
	return nil
}

func checkAssign(s *ast.Assign, env *Env) *diagnostics.CompileError {
	varType, ok := env.Lookup(s.Target.Value)
	if !ok {
		return diagnostics.TypeErrf(s.Target.Sp, "undefined variable '%s'", s.Target.Value)
	}
	switch varType.(type) {
	case types.Sender, types.Receiver:
		return diagnostics.TypeErr("cannot reassign channel sender/receiver variable", s.Target.Sp)
	}
	if env.IsImmutable(s.Target.Value) {
		return diagnostics.TypeErrf(s.Target.Sp, "cannot assign to immutable variable '%s'", s.Target.Value)
	}
	valType, err := inferExpr(s.Value, env)
	if err != nil {
		return err
	}
	if !typesCompatible(valType, varType, env) {
		return diagnostics.TypeErrf(s.Value.Span(), "type mismatch in assignment: expected %s, found %s", varType, valType)
	}
	// Reassignment loses the recorded spawn origin for good.
	if _, isTask := varType.(types.Task); isTask {
		env.InvalidatedTaskVars[s.Target.Value] = true
	}
	// Tainted closures may not escape to variables outside the block.
	if env.InScopeBlock() && isScopeTaintedExpr(s.Value, env) {
		if scopeDepth, ok := env.ScopeBodyDepth(); ok {
			if _, varDepth, found := env.LookupWithDepth(s.Target.Value); found && varDepth < scopeDepth {
				return diagnostics.ScopeErrf(s.Value.Span(),
					"closure capturing scope binding cannot escape scope block via assignment to outer variable")
			}
		}
	}
	return nil
}

func checkFieldAssign(s *ast.FieldAssign, env *Env) *diagnostics.CompileError {
	// The root of the access chain must be mutable.
	if root, ok := rootVariable(s.Object); ok && root != "self" && env.IsImmutable(root) {
		return diagnostics.TypeErrf(s.Object.Span(),
			"cannot assign to field of immutable variable '%s'; declare with 'let mut' to allow mutation", root)
	}
	objType, err := inferExpr(s.Object, env)
	if err != nil {
		return err
	}
	cls, ok := objType.(types.Class)
	if !ok {
		return diagnostics.TypeErrf(s.Object.Span(), "field assignment on non-class type %s", objType)
	}
	info, ok := env.Classes[cls.Name]
	if !ok {
		return diagnostics.TypeErrf(s.Object.Span(), "unknown class '%s'", cls.Name)
	}
	field := info.Field(s.Field.Value)
	if field == nil {
		return diagnostics.TypeErrf(s.Field.Sp, "class '%s' has no field '%s'", cls.Name, s.Field.Value)
	}
	valType, err := inferExpr(s.Value, env)
	if err != nil {
		return err
	}
	if !types.Equal(valType, field.Type) {
		return diagnostics.TypeErrf(s.Value.Span(), "field '%s': expected %s, found %s", s.Field.Value, field.Type, valType)
	}
	return nil
}

func checkIndexAssign(s *ast.IndexAssign, env *Env) *diagnostics.CompileError {
	objType, err := inferExpr(s.Object, env)
	if err != nil {
		return err
	}
	switch t := objType.(type) {
	case types.Array:
		idxType, err := inferExpr(s.Idx, env)
		if err != nil {
			return err
		}
		if !isInt(idxType) {
			return diagnostics.TypeErrf(s.Idx.Span(), "array index must be int, found %s", idxType)
		}
		valType, err := inferExpr(s.Value, env)
		if err != nil {
			return err
		}
		if !types.Equal(valType, t.Elem) {
			return diagnostics.TypeErrf(s.Value.Span(), "index assignment: expected %s, found %s", t.Elem, valType)
		}
	case types.Map:
		idxType, err := inferExpr(s.Idx, env)
		if err != nil {
			return err
		}
		if !types.Equal(idxType, t.Key) {
			return diagnostics.TypeErrf(s.Idx.Span(), "map key type mismatch: expected %s, found %s", t.Key, idxType)
		}
		valType, err := inferExpr(s.Value, env)
		if err != nil {
			return err
		}
		if !types.Equal(valType, t.Value) {
			return diagnostics.TypeErrf(s.Value.Span(), "map value type mismatch: expected %s, found %s", t.Value, valType)
		}
	case types.Bytes:
		idxType, err := inferExpr(s.Idx, env)
		if err != nil {
			return err
		}
		if !isInt(idxType) {
			return diagnostics.TypeErrf(s.Idx.Span(), "bytes index must be int, found %s", idxType)
		}
		valType, err := inferExpr(s.Value, env)
		if err != nil {
			return err
		}
		if _, isByte := valType.(types.Byte); !isByte {
			return diagnostics.TypeErrf(s.Value.Span(), "bytes index assignment: expected byte, found %s", valType)
		}
	default:
		return diagnostics.TypeErrf(s.Object.Span(), "index assignment on non-indexable type %s", objType)
	}
	return nil
}

func checkMatchStmt(s *ast.Match, env *Env, returnType types.Type) *diagnostics.CompileError {
	scrutinee, err := inferExpr(s.Scrutinee, env)
	if err != nil {
		return err
	}
	enumType, ok := scrutinee.(types.Enum)
	if !ok {
		return diagnostics.TypeErrf(s.Scrutinee.Span(), "match requires enum type, found %s", scrutinee)
	}
	info, ok := env.Enums[enumType.Name]
	if !ok {
		return diagnostics.TypeErrf(s.Scrutinee.Span(), "unknown enum '%s'", enumType.Name)
	}
	covered := map[string]bool{}
	for _, arm := range s.Arms {
		variant, err := checkMatchArmHead(arm.EnumName, arm.Variant, arm.Bindings, enumType.Name, info, covered, env)
		if err != nil {
			return err
		}
		env.PushScope()
		bindMatchFields(arm.Bindings, variant, env)
		blockErr := checkBlock(arm.Body, env, returnType)
		env.PopScope()
		if blockErr != nil {
			return blockErr
		}
	}
	return checkMatchExhaustive(info, covered, s.Sp)
}

func checkRaise(s *ast.Raise, env *Env) *diagnostics.CompileError {
	info, ok := env.Errors[s.ErrorName.Value]
	if !ok {
		return diagnostics.TypeErrf(s.ErrorName.Sp, "unknown error type '%s'", s.ErrorName.Value)
	}
	if len(s.Fields) != len(info.Fields) {
		return diagnostics.TypeErrf(s.Sp, "error '%s' has %d fields, but %d were provided",
			s.ErrorName.Value, len(info.Fields), len(s.Fields))
	}
	for _, init := range s.Fields {
		var fieldType types.Type
		for _, f := range info.Fields {
			if f.Name == init.Name.Value {
				fieldType = f.Type
				break
			}
		}
		if fieldType == nil {
			return diagnostics.TypeErrf(init.Name.Sp, "error '%s' has no field '%s'", s.ErrorName.Value, init.Name.Value)
		}
		valType, err := inferExpr(init.Value, env)
		if err != nil {
			return err
		}
		if !types.Equal(valType, fieldType) {
			return diagnostics.TypeErrf(init.Value.Span(), "field '%s': expected %s, found %s", init.Name.Value, fieldType, valType)
		}
	}
	return nil
}

func checkSelect(s *ast.Select, env *Env, returnType types.Type) *diagnostics.CompileError {
	for _, arm := range s.Arms {
		switch op := arm.Op.(type) {
		case *ast.SelectRecv:
			chanType, err := inferExpr(op.Channel, env)
			if err != nil {
				return err
			}
			recv, ok := chanType.(types.Receiver)
			if !ok {
				return diagnostics.TypeErrf(op.Channel.Span(), "select recv arm requires a Receiver, found %s", chanType)
			}
			env.PushScope()
			env.Define(op.Binding.Value, recv.Elem)
			err = checkBlock(arm.Body, env, returnType)
			env.PopScope()
			if err != nil {
				return err
			}
		case *ast.SelectSend:
			chanType, err := inferExpr(op.Channel, env)
			if err != nil {
				return err
			}
			send, ok := chanType.(types.Sender)
			if !ok {
				return diagnostics.TypeErrf(op.Channel.Span(), "select send arm requires a Sender, found %s", chanType)
			}
			valType, err := inferExpr(op.Value, env)
			if err != nil {
				return err
			}
			if !types.Equal(valType, send.Elem) {
				return diagnostics.TypeErrf(op.Value.Span(), "select send expects %s, found %s", send.Elem, valType)
			}
			if err := checkBlock(arm.Body, env, returnType); err != nil {
				return err
			}
		}
	}
	if s.Default != nil {
		return checkBlock(s.Default, env, returnType)
	}
	return nil
}

// isScopeTaintedExpr reports whether an expression is a scope-tainted
// closure, directly or through a variable that holds one.
func isScopeTaintedExpr(e ast.Expr, env *Env) bool {
	if _, isClosure := e.(*ast.Closure); isClosure && env.ScopeTaintedClosures[e.Span().Key()] {
		return true
	}
	if ident, ok := e.(*ast.Ident); ok {
		return env.IsScopeTaintedVar(ident.Name)
	}
	return false
}
