package typecheck

import (
	"github.com/plutolang/pluto/internal/ast"
	"github.com/plutolang/pluto/internal/diagnostics"
	"github.com/plutolang/pluto/internal/source"
	"github.com/plutolang/pluto/internal/types"
)

// inferExpr produces the type of an expression, recording side-table
// entries (variable reads, method resolutions, captures, rewrites) as it
// goes. Checking is deterministic: identical input yields identical
// environments.
func inferExpr(e ast.Expr, env *Env) (types.Type, *diagnostics.CompileError) {
	switch e := e.(type) {
	case *ast.IntLit:
		return types.Int{}, nil
	case *ast.FloatLit:
		return types.Float{}, nil
	case *ast.BoolLit:
		return types.Bool{}, nil
	case *ast.StringLit:
		return types.String{}, nil
	case *ast.NoneLit:
		// Sentinel; context (let annotation, return type) widens it.
		return types.None(), nil
	case *ast.StringInterp:
		for _, part := range e.Parts {
			if part.Expr == nil {
				continue
			}
			ty, err := inferExpr(part.Expr, env)
			if err != nil {
				return nil, err
			}
			switch ty.(type) {
			case types.Int, types.Float, types.Bool, types.String, types.Byte:
			default:
				return nil, diagnostics.TypeErrf(part.Expr.Span(), "cannot interpolate %s into string", ty)
			}
		}
		return types.String{}, nil
	case *ast.Ident:
		if ty, depth, ok := env.LookupWithDepth(e.Name); ok {
			env.VariableReads[VarKey{Name: e.Name, Depth: depth}] = true
			return ty, nil
		}
		return nil, diagnostics.TypeErrf(e.Sp, "undefined variable '%s'", e.Name)
	case *ast.BinOp:
		return inferBinOp(e, env)
	case *ast.UnaryOp:
		return inferUnaryOp(e, env)
	case *ast.Cast:
		return inferCast(e, env)
	case *ast.Call:
		return inferCall(e, env)
	case *ast.MethodCall:
		return inferMethodCall(e, env)
	case *ast.StaticTraitCall:
		return inferStaticTraitCall(e, env)
	case *ast.FieldAccess:
		return inferFieldAccess(e, env)
	case *ast.StructLit:
		return inferStructLit(e, env)
	case *ast.ArrayLit:
		return inferArrayLit(e, env)
	case *ast.MapLit:
		return inferMapLit(e, env)
	case *ast.SetLit:
		return inferSetLit(e, env)
	case *ast.Index:
		return inferIndex(e, env)
	case *ast.EnumUnit:
		return inferEnumUnit(e, env)
	case *ast.EnumData:
		return inferEnumData(e, env)
	case *ast.RangeExpr:
		return inferRange(e, env)
	case *ast.Closure:
		return inferClosure(e, env)
	case *ast.ClosureCreate:
		return types.Void{}, nil
	case *ast.Propagate:
		return inferExpr(e.Value, env)
	case *ast.NullPropagate:
		inner, err := inferExpr(e.Value, env)
		if err != nil {
			return nil, err
		}
		if n, ok := inner.(types.Nullable); ok {
			return n.Inner, nil
		}
		return nil, diagnostics.TypeErrf(e.Sp, "'?' applied to non-nullable type %s", inner)
	case *ast.Catch:
		return inferCatch(e, env)
	case *ast.Spawn:
		return inferSpawn(e, env)
	case *ast.IfExpr:
		return inferIfExpr(e, env)
	case *ast.MatchExpr:
		return inferMatchExpr(e, env)
	}
	return nil, diagnostics.TypeErr("unsupported expression", e.Span())
}

func inferBinOp(e *ast.BinOp, env *Env) (types.Type, *diagnostics.CompileError) {
	lt, err := inferExpr(e.LHS, env)
	if err != nil {
		return nil, err
	}
	rt, err := inferExpr(e.RHS, env)
	if err != nil {
		return nil, err
	}
	switch e.Op {
	case ast.Add, ast.Sub, ast.Mul, ast.Div, ast.Mod:
		if !types.Equal(lt, rt) {
			return nil, diagnostics.TypeErrf(e.Sp, "operand type mismatch: %s vs %s", lt, rt)
		}
		if e.Op == ast.Add {
			if _, ok := lt.(types.String); ok {
				return types.String{}, nil
			}
		}
		if types.IsNumeric(lt) {
			return lt, nil
		}
		return nil, diagnostics.TypeErrf(e.Sp, "operator not supported for type %s", lt)
	case ast.Eq, ast.Neq:
		if isBytes(lt) || isBytes(rt) {
			return nil, diagnostics.TypeErr("cannot compare bytes with ==; use element-wise comparison", e.Sp)
		}
		_, lNullable := lt.(types.Nullable)
		_, rNullable := rt.(types.Nullable)
		compatible := types.Equal(lt, rt) ||
			(lNullable && types.IsNone(rt)) ||
			(types.IsNone(lt) && rNullable)
		if !compatible {
			return nil, diagnostics.TypeErrf(e.Sp, "cannot compare %s with %s", lt, rt)
		}
		return types.Bool{}, nil
	case ast.Lt, ast.Gt, ast.LtEq, ast.GtEq:
		if !types.Equal(lt, rt) {
			return nil, diagnostics.TypeErrf(e.Sp, "cannot compare %s with %s", lt, rt)
		}
		switch lt.(type) {
		case types.Int, types.Float, types.Byte:
			return types.Bool{}, nil
		}
		return nil, diagnostics.TypeErrf(e.Sp, "comparison not supported for type %s", lt)
	case ast.And, ast.Or:
		if !isBool(lt) || !isBool(rt) {
			return nil, diagnostics.TypeErrf(e.Sp, "logical operators require bool operands, found %s and %s", lt, rt)
		}
		return types.Bool{}, nil
	case ast.BitAnd, ast.BitOr, ast.BitXor, ast.Shl, ast.Shr:
		if !isInt(lt) || !isInt(rt) {
			return nil, diagnostics.TypeErrf(e.Sp, "bitwise operators require int operands, found %s and %s", lt, rt)
		}
		return types.Int{}, nil
	}
	return nil, diagnostics.TypeErr("unknown binary operator", e.Sp)
}

func inferUnaryOp(e *ast.UnaryOp, env *Env) (types.Type, *diagnostics.CompileError) {
	ty, err := inferExpr(e.Operand, env)
	if err != nil {
		return nil, err
	}
	switch e.Op {
	case ast.Neg:
		if types.IsNumeric(ty) {
			return ty, nil
		}
		return nil, diagnostics.TypeErrf(e.Sp, "cannot negate type %s", ty)
	case ast.Not:
		if !isBool(ty) {
			return nil, diagnostics.TypeErrf(e.Sp, "cannot apply '!' to type %s", ty)
		}
		return types.Bool{}, nil
	case ast.BitNot:
		if !isInt(ty) {
			return nil, diagnostics.TypeErrf(e.Sp, "cannot apply '~' to type %s", ty)
		}
		return types.Int{}, nil
	}
	return nil, diagnostics.TypeErr("unknown unary operator", e.Sp)
}

// inferCast permits the documented primitive-to-primitive pairs only.
func inferCast(e *ast.Cast, env *Env) (types.Type, *diagnostics.CompileError) {
	src, err := inferExpr(e.Value, env)
	if err != nil {
		return nil, err
	}
	target, cerr := ResolveType(e.Target, env)
	if cerr != nil {
		return nil, cerr
	}
	type pair struct{ from, to string }
	allowed := map[pair]bool{
		{"int", "float"}: true, {"float", "int"}: true,
		{"int", "bool"}: true, {"bool", "int"}: true,
		{"int", "byte"}: true, {"byte", "int"}: true,
	}
	if allowed[pair{src.String(), target.String()}] {
		return target, nil
	}
	return nil, diagnostics.TypeErrf(e.Sp, "cannot cast from %s to %s", src, target)
}

func inferFieldAccess(e *ast.FieldAccess, env *Env) (types.Type, *diagnostics.CompileError) {
	objType, err := inferExpr(e.Object, env)
	if err != nil {
		return nil, err
	}
	switch t := objType.(type) {
	case types.Class:
		info, ok := env.Classes[t.Name]
		if !ok {
			return nil, diagnostics.TypeErrf(e.Object.Span(), "unknown class '%s'", t.Name)
		}
		if f := info.Field(e.Field.Value); f != nil {
			return f.Type, nil
		}
		return nil, diagnostics.TypeErrf(e.Field.Sp, "class '%s' has no field '%s'", t.Name, e.Field.Value)
	case types.Error:
		// The caught error value exposes its message.
		if e.Field.Value == "message" {
			return types.String{}, nil
		}
	}
	return nil, diagnostics.TypeErrf(e.Object.Span(), "field access on non-class type %s", objType)
}

func inferArrayLit(e *ast.ArrayLit, env *Env) (types.Type, *diagnostics.CompileError) {
	if len(e.Elements) == 0 {
		return nil, diagnostics.TypeErr("cannot infer type of empty array literal; add a type annotation", e.Sp)
	}
	first, err := inferExpr(e.Elements[0], env)
	if err != nil {
		return nil, err
	}
	for _, elem := range e.Elements[1:] {
		ty, err := inferExpr(elem, env)
		if err != nil {
			return nil, err
		}
		if !types.Equal(ty, first) {
			return nil, diagnostics.TypeErrf(elem.Span(), "array element type mismatch: expected %s, found %s", first, ty)
		}
	}
	return types.Array{Elem: first}, nil
}

func inferMapLit(e *ast.MapLit, env *Env) (types.Type, *diagnostics.CompileError) {
	kt, err := ResolveType(e.KeyType, env)
	if err != nil {
		return nil, err
	}
	vt, err := ResolveType(e.ValueType, env)
	if err != nil {
		return nil, err
	}
	if !types.IsHashable(kt) {
		return nil, diagnostics.TypeErrf(e.KeyType.Span(),
			"type %s cannot be used as a map/set key (must be int, float, bool, string, byte, or enum)", kt)
	}
	for _, entry := range e.Entries {
		ak, err2 := inferExpr(entry.Key, env)
		if err2 != nil {
			return nil, err2
		}
		if !types.Equal(ak, kt) {
			return nil, diagnostics.TypeErrf(entry.Key.Span(), "map key type mismatch: expected %s, found %s", kt, ak)
		}
		av, err2 := inferExpr(entry.Value, env)
		if err2 != nil {
			return nil, err2
		}
		if !types.Equal(av, vt) {
			return nil, diagnostics.TypeErrf(entry.Value.Span(), "map value type mismatch: expected %s, found %s", vt, av)
		}
	}
	return types.Map{Key: kt, Value: vt}, nil
}

func inferSetLit(e *ast.SetLit, env *Env) (types.Type, *diagnostics.CompileError) {
	et, err := ResolveType(e.ElemType, env)
	if err != nil {
		return nil, err
	}
	if !types.IsHashable(et) {
		return nil, diagnostics.TypeErrf(e.ElemType.Span(),
			"type %s cannot be used as a map/set key (must be int, float, bool, string, byte, or enum)", et)
	}
	for _, elem := range e.Elements {
		ty, err2 := inferExpr(elem, env)
		if err2 != nil {
			return nil, err2
		}
		if !types.Equal(ty, et) {
			return nil, diagnostics.TypeErrf(elem.Span(), "set element type mismatch: expected %s, found %s", et, ty)
		}
	}
	return types.Set{Elem: et}, nil
}

func inferIndex(e *ast.Index, env *Env) (types.Type, *diagnostics.CompileError) {
	objType, err := inferExpr(e.Object, env)
	if err != nil {
		return nil, err
	}
	idxType, err := inferExpr(e.Idx, env)
	if err != nil {
		return nil, err
	}
	switch t := objType.(type) {
	case types.Array:
		if !isInt(idxType) {
			return nil, diagnostics.TypeErrf(e.Idx.Span(), "array index must be int, found %s", idxType)
		}
		return t.Elem, nil
	case types.Map:
		if !types.Equal(idxType, t.Key) {
			return nil, diagnostics.TypeErrf(e.Idx.Span(), "map key type mismatch: expected %s, found %s", t.Key, idxType)
		}
		return t.Value, nil
	case types.String:
		if !isInt(idxType) {
			return nil, diagnostics.TypeErrf(e.Idx.Span(), "string index must be int, found %s", idxType)
		}
		return types.String{}, nil
	case types.Bytes:
		if !isInt(idxType) {
			return nil, diagnostics.TypeErrf(e.Idx.Span(), "bytes index must be int, found %s", idxType)
		}
		return types.Byte{}, nil
	}
	return nil, diagnostics.TypeErrf(e.Object.Span(), "index on non-indexable type %s", objType)
}

func inferRange(e *ast.RangeExpr, env *Env) (types.Type, *diagnostics.CompileError) {
	st, err := inferExpr(e.Start, env)
	if err != nil {
		return nil, err
	}
	if !isInt(st) {
		return nil, diagnostics.TypeErrf(e.Start.Span(), "range start must be int, found %s", st)
	}
	et, err := inferExpr(e.End, env)
	if err != nil {
		return nil, err
	}
	if !isInt(et) {
		return nil, diagnostics.TypeErrf(e.End.Span(), "range end must be int, found %s", et)
	}
	return types.Range{}, nil
}

// inferStructLit checks class construction. Classes with injected fields
// cannot be built with struct literals: the DI container wires them.
func inferStructLit(e *ast.StructLit, env *Env) (types.Type, *diagnostics.CompileError) {
	className := e.ClassName.Value
	if len(e.TypeArgs) > 0 {
		gen, ok := env.GenericClasses[className]
		if !ok {
			return nil, diagnostics.TypeErrf(e.ClassName.Sp, "class '%s' is not generic and does not accept type arguments", className)
		}
		if len(e.TypeArgs) != len(gen.TypeParams) {
			return nil, diagnostics.TypeErrf(e.Sp, "class '%s' expects %d type arguments, got %d", className, len(gen.TypeParams), len(e.TypeArgs))
		}
		args := make([]types.Type, len(e.TypeArgs))
		for i, ta := range e.TypeArgs {
			ty, err := ResolveType(ta, env)
			if err != nil {
				return nil, err
			}
			args[i] = ty
		}
		if err := validateTypeBounds(gen.TypeParams, args, gen.Bounds, env, e.Sp, className); err != nil {
			return nil, err
		}
		className = ensureGenericClassInstantiated(e.ClassName.Value, args, env)
	} else if _, isGeneric := env.GenericClasses[className]; isGeneric {
		return nil, diagnostics.TypeErrf(e.Sp, "generic class '%s' requires explicit type arguments", className)
	}

	info, ok := env.Classes[className]
	if !ok {
		return nil, diagnostics.TypeErrf(e.ClassName.Sp, "unknown class '%s'", e.ClassName.Value)
	}
	for _, f := range info.Fields {
		if f.IsInjected {
			return nil, diagnostics.TypeErrf(e.Sp,
				"classes with injected dependencies cannot be constructed with struct literals; '%s' is wired by the DI container", e.ClassName.Value)
		}
	}
	seen := map[string]bool{}
	for _, init := range e.Fields {
		field := info.Field(init.Name.Value)
		if field == nil {
			return nil, diagnostics.TypeErrf(init.Name.Sp, "class '%s' has no field '%s'", e.ClassName.Value, init.Name.Value)
		}
		if seen[init.Name.Value] {
			return nil, diagnostics.TypeErrf(init.Name.Sp, "duplicate field '%s' in struct literal", init.Name.Value)
		}
		seen[init.Name.Value] = true
		ty, err := inferExpr(init.Value, env)
		if err != nil {
			return nil, err
		}
		if !typesCompatible(ty, field.Type, env) {
			return nil, diagnostics.TypeErrf(init.Value.Span(), "field '%s': expected %s, found %s", init.Name.Value, field.Type, ty)
		}
	}
	for _, f := range info.Fields {
		if !f.IsInjected && !seen[f.Name] {
			return nil, diagnostics.TypeErrf(e.Sp, "missing field '%s' in struct literal for '%s'", f.Name, e.ClassName.Value)
		}
	}
	return types.Class{Name: className}, nil
}

// resolveEnumLitName resolves the concrete enum an EnumUnit/EnumData literal
// constructs, instantiating generics when type arguments are explicit.
func resolveEnumLitName(name ast.Name, typeArgs []ast.TypeExpr, span source.Span, env *Env) (string, *diagnostics.CompileError) {
	enumName := name.Value
	if len(typeArgs) > 0 {
		gen, ok := env.GenericEnums[enumName]
		if !ok {
			return "", diagnostics.TypeErrf(name.Sp, "enum '%s' is not generic and does not accept type arguments", enumName)
		}
		if len(typeArgs) != len(gen.TypeParams) {
			return "", diagnostics.TypeErrf(span, "enum '%s' expects %d type arguments, got %d", enumName, len(gen.TypeParams), len(typeArgs))
		}
		args := make([]types.Type, len(typeArgs))
		for i, ta := range typeArgs {
			ty, err := ResolveType(ta, env)
			if err != nil {
				return "", err
			}
			args[i] = ty
		}
		if err := validateTypeBounds(gen.TypeParams, args, gen.Bounds, env, span, enumName); err != nil {
			return "", err
		}
		return ensureGenericEnumInstantiated(enumName, args, env), nil
	}
	if _, isGeneric := env.GenericEnums[enumName]; isGeneric {
		return "", diagnostics.TypeErrf(span, "generic enum '%s' requires explicit type arguments", enumName)
	}
	if _, ok := env.Enums[enumName]; !ok {
		return "", diagnostics.TypeErrf(name.Sp, "unknown enum '%s'", enumName)
	}
	return enumName, nil
}

func inferEnumUnit(e *ast.EnumUnit, env *Env) (types.Type, *diagnostics.CompileError) {
	enumName, err := resolveEnumLitName(e.EnumName, e.TypeArgs, e.Sp, env)
	if err != nil {
		return nil, err
	}
	info := env.Enums[enumName]
	variant := info.Variant(e.Variant.Value)
	if variant == nil {
		return nil, diagnostics.TypeErrf(e.Variant.Sp, "enum '%s' has no variant '%s'", enumName, e.Variant.Value)
	}
	if len(variant.Fields) != 0 {
		return nil, diagnostics.TypeErrf(e.Variant.Sp, "variant '%s' has fields; use %s.%s{...}", e.Variant.Value, e.EnumName.Value, e.Variant.Value)
	}
	return types.Enum{Name: enumName}, nil
}

func inferEnumData(e *ast.EnumData, env *Env) (types.Type, *diagnostics.CompileError) {
	enumName, err := resolveEnumLitName(e.EnumName, e.TypeArgs, e.Sp, env)
	if err != nil {
		return nil, err
	}
	info := env.Enums[enumName]
	variant := info.Variant(e.Variant.Value)
	if variant == nil {
		return nil, diagnostics.TypeErrf(e.Variant.Sp, "enum '%s' has no variant '%s'", enumName, e.Variant.Value)
	}
	if len(e.Fields) != len(variant.Fields) {
		return nil, diagnostics.TypeErrf(e.Sp, "variant '%s' has %d fields, but %d were provided",
			e.Variant.Value, len(variant.Fields), len(e.Fields))
	}
	for _, init := range e.Fields {
		var fieldType types.Type
		for _, f := range variant.Fields {
			if f.Name == init.Name.Value {
				fieldType = f.Type
				break
			}
		}
		if fieldType == nil {
			return nil, diagnostics.TypeErrf(init.Name.Sp, "variant '%s' has no field '%s'", e.Variant.Value, init.Name.Value)
		}
		ty, err2 := inferExpr(init.Value, env)
		if err2 != nil {
			return nil, err2
		}
		if !typesCompatible(ty, fieldType, env) {
			return nil, diagnostics.TypeErrf(init.Value.Span(), "field '%s': expected %s, found %s", init.Name.Value, fieldType, ty)
		}
	}
	return types.Enum{Name: enumName}, nil
}

func inferCatch(e *ast.Catch, env *Env) (types.Type, *diagnostics.CompileError) {
	inner, err := inferExpr(e.Value, env)
	if err != nil {
		return nil, err
	}
	switch h := e.Handler.(type) {
	case *ast.CatchShorthand:
		fb, err := inferExpr(h.Fallback, env)
		if err != nil {
			return nil, err
		}
		return unifyBranchTypes(inner, fb, e.Sp)
	case *ast.CatchWildcard:
		env.PushScope()
		env.Define(h.ErrName.Value, types.Error{})
		body, err := inferExpr(h.Body, env)
		env.PopScope()
		if err != nil {
			return nil, err
		}
		return unifyBranchTypes(inner, body, e.Sp)
	}
	return inner, nil
}

// inferSpawn types `spawn f(...)`. After desugaring, e.Call is a Closure
// enclosing the original call; the result is Task<T> of the callee's return.
func inferSpawn(e *ast.Spawn, env *Env) (types.Type, *diagnostics.CompileError) {
	closureType, err := inferExpr(e.Call, env)
	if err != nil {
		return nil, err
	}
	fnType, ok := closureType.(types.Fn)
	if !ok {
		return nil, diagnostics.TypeErr("spawn requires a function call", e.Sp)
	}
	if closure, isClosure := e.Call.(*ast.Closure); isClosure {
		for _, stmt := range closure.Body.Stmts {
			ret, isRet := stmt.(*ast.Return)
			if !isRet || ret.Value == nil {
				continue
			}
			switch callee := ret.Value.(type) {
			case *ast.Call:
				env.SpawnTargetFns[e.Sp.Key()] = callee.FuncName.Value
			case *ast.MethodCall:
				objType, err2 := inferExpr(callee.Object, env)
				if err2 != nil {
					return nil, err2
				}
				if cls, isClass := objType.(types.Class); isClass {
					env.SpawnTargetFns[e.Sp.Key()] = types.MangleMethod(cls.Name, callee.Method.Value)
				}
				// Non-class targets stay unrecorded; .get() is then
				// conservatively fallible.
			}
		}
		// A task must not close over scope bindings: it may outlive the
		// block that owns them.
		if env.InScopeBlock() {
			idents := map[string]bool{}
			ast.CollectIdents(closure.Body, idents)
			for name := range idents {
				if env.IsScopeBinding(name) {
					return nil, diagnostics.ScopeErrf(e.Sp,
						"cannot spawn inside scope block: task would capture scope binding '%s'", name)
				}
			}
		}
	}
	return types.Task{Elem: fnType.Return}, nil
}

func inferIfExpr(e *ast.IfExpr, env *Env) (types.Type, *diagnostics.CompileError) {
	condType, err := inferExpr(e.Cond, env)
	if err != nil {
		return nil, err
	}
	if !isBool(condType) {
		return nil, diagnostics.TypeErrf(e.Cond.Span(), "if condition must be bool, found %s", condType)
	}
	env.PushScope()
	thenType, err := inferBlockType(e.Then, env)
	env.PopScope()
	if err != nil {
		return nil, err
	}
	env.PushScope()
	elseType, err := inferBlockType(e.Else, env)
	env.PopScope()
	if err != nil {
		return nil, err
	}
	return unifyBranchTypes(thenType, elseType, e.Sp)
}

func inferMatchExpr(e *ast.MatchExpr, env *Env) (types.Type, *diagnostics.CompileError) {
	scrutinee, err := inferExpr(e.Scrutinee, env)
	if err != nil {
		return nil, err
	}
	enumType, ok := scrutinee.(types.Enum)
	if !ok {
		return nil, diagnostics.TypeErrf(e.Scrutinee.Span(), "match requires enum type, found %s", scrutinee)
	}
	info, ok := env.Enums[enumType.Name]
	if !ok {
		return nil, diagnostics.TypeErrf(e.Scrutinee.Span(), "unknown enum '%s'", enumType.Name)
	}
	if len(e.Arms) == 0 {
		return nil, diagnostics.TypeErr("match expression must have at least one arm", e.Sp)
	}
	covered := map[string]bool{}
	var unified types.Type
	for i, arm := range e.Arms {
		variant, err := checkMatchArmHead(arm.EnumName, arm.Variant, arm.Bindings, enumType.Name, info, covered, env)
		if err != nil {
			return nil, err
		}
		env.PushScope()
		bindMatchFields(arm.Bindings, variant, env)
		armType, err2 := inferExpr(arm.Value, env)
		env.PopScope()
		if err2 != nil {
			return nil, err2
		}
		if i == 0 {
			unified = armType
			continue
		}
		unified, err2 = unifyBranchTypes(unified, armType, arm.Value.Span())
		if err2 != nil {
			return nil, err2
		}
	}
	if err := checkMatchExhaustive(info, covered, e.Sp); err != nil {
		return nil, err
	}
	return unified, nil
}

// checkMatchArmHead validates the arm's enum name (accepting the generic
// base of a mangled scrutinee), variant existence, duplicate coverage, and
// binding arity.
func checkMatchArmHead(armEnum, armVariant ast.Name, bindings []ast.MatchBinding, enumName string, info *EnumInfo, covered map[string]bool, env *Env) (*VariantInfo, *diagnostics.CompileError) {
	matches := armEnum.Value == enumName
	if !matches {
		_, isGenericBase := env.GenericEnums[armEnum.Value]
		matches = isGenericBase && types.IsMangledInstanceOf(enumName, armEnum.Value)
	}
	if !matches {
		return nil, diagnostics.TypeErrf(armEnum.Sp, "match arm enum '%s' does not match scrutinee enum '%s'", armEnum.Value, enumName)
	}
	variant := info.Variant(armVariant.Value)
	if variant == nil {
		return nil, diagnostics.TypeErrf(armVariant.Sp, "enum '%s' has no variant '%s'", enumName, armVariant.Value)
	}
	if covered[armVariant.Value] {
		return nil, diagnostics.TypeErrf(armVariant.Sp, "duplicate match arm for variant '%s'", armVariant.Value)
	}
	covered[armVariant.Value] = true
	if len(bindings) != len(variant.Fields) {
		return nil, diagnostics.TypeErrf(armVariant.Sp, "variant '%s' has %d fields, but %d bindings provided",
			armVariant.Value, len(variant.Fields), len(bindings))
	}
	for _, b := range bindings {
		found := false
		for _, f := range variant.Fields {
			if f.Name == b.Field.Value {
				found = true
				break
			}
		}
		if !found {
			return nil, diagnostics.TypeErrf(b.Field.Sp, "variant '%s' has no field '%s'", armVariant.Value, b.Field.Value)
		}
	}
	return variant, nil
}

func bindMatchFields(bindings []ast.MatchBinding, variant *VariantInfo, env *Env) {
	for _, b := range bindings {
		for _, f := range variant.Fields {
			if f.Name != b.Field.Value {
				continue
			}
			name := b.Field.Value
			if b.Rename != nil {
				name = b.Rename.Value
			}
			env.Define(name, f.Type)
		}
	}
}

func checkMatchExhaustive(info *EnumInfo, covered map[string]bool, span source.Span) *diagnostics.CompileError {
	for _, v := range info.Variants {
		if !covered[v.Name] {
			return diagnostics.TypeErrf(span, "non-exhaustive match: missing variant '%s'", v.Name)
		}
	}
	return nil
}

// inferBlockType types a block in expression position: the value of its
// final expression statement, or void. Lets execute so later statements see
// their bindings.
func inferBlockType(b *ast.Block, env *Env) (types.Type, *diagnostics.CompileError) {
	var last types.Type = types.Void{}
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
			last = types.Void{}
		case *ast.ExprStmt:
			ty, err := inferExpr(s.Value, env)
			if err != nil {
				return nil, err
			}
			last = ty
		case *ast.Return:
			if s.Value != nil {
				return inferExpr(s.Value, env)
			}
			return types.Void{}, nil
		default:
			last = types.Void{}
		}
	}
	return last, nil
}

// unifyBranchTypes merges the types of two branches. The none sentinel
// widens against any nullable, and a bare T merges with none into T?.
func unifyBranchTypes(a, b types.Type, span source.Span) (types.Type, *diagnostics.CompileError) {
	if types.Equal(a, b) {
		return a, nil
	}
	if types.IsNone(a) {
		if _, ok := b.(types.Nullable); ok {
			return b, nil
		}
		if _, void := b.(types.Void); !void {
			return types.Nullable{Inner: b}, nil
		}
	}
	if types.IsNone(b) {
		if _, ok := a.(types.Nullable); ok {
			return a, nil
		}
		if _, void := a.(types.Void); !void {
			return types.Nullable{Inner: a}, nil
		}
	}
	if an, ok := a.(types.Nullable); ok && types.Equal(an.Inner, b) {
		return a, nil
	}
	if bn, ok := b.(types.Nullable); ok && types.Equal(bn.Inner, a) {
		return b, nil
	}
	return nil, diagnostics.TypeErrf(span, "branch types do not unify: %s vs %s", a, b)
}

func isBool(t types.Type) bool {
	_, ok := t.(types.Bool)
	return ok
}

func isInt(t types.Type) bool {
	_, ok := t.(types.Int)
	return ok
}

func isBytes(t types.Type) bool {
	_, ok := t.(types.Bytes)
	return ok
}
