package typecheck

import (
	"github.com/plutolang/pluto/internal/ast"
	"github.com/plutolang/pluto/internal/diagnostics"
	"github.com/plutolang/pluto/internal/source"
	"github.com/plutolang/pluto/internal/types"
)

// resolveBuiltinGeneric handles the five built-in generic heads. Returns
// (type, handled, err); handled=false means the head is user-defined.
func resolveBuiltinGeneric(name string, args []types.Type, span source.Span) (types.Type, bool, *diagnostics.CompileError) {
	switch name {
	case "Map":
		if len(args) != 2 {
			return nil, true, diagnostics.TypeErrf(span, "Map expects 2 type arguments, got %d", len(args))
		}
		return types.Map{Key: args[0], Value: args[1]}, true, nil
	case "Set", "Task", "Sender", "Receiver":
		if len(args) != 1 {
			return nil, true, diagnostics.TypeErrf(span, "%s expects 1 type argument, got %d", name, len(args))
		}
		switch name {
		case "Set":
			return types.Set{Elem: args[0]}, true, nil
		case "Task":
			return types.Task{Elem: args[0]}, true, nil
		case "Sender":
			return types.Sender{Elem: args[0]}, true, nil
		default:
			return types.Receiver{Elem: args[0]}, true, nil
		}
	}
	return nil, false, nil
}

// ResolveType lowers a TypeExpr to the semantic lattice. User-defined
// generic heads with all-concrete arguments are eagerly instantiated.
func ResolveType(te ast.TypeExpr, env *Env) (types.Type, *diagnostics.CompileError) {
	return resolveType(te, env, nil)
}

// ResolveTypeWithParams is ResolveType inside a generic declaration: names
// in typeParams resolve to TypeParam, and user-defined generic heads whose
// arguments still mention type parameters stay as GenericInstance.
func ResolveTypeWithParams(te ast.TypeExpr, env *Env, typeParams map[string]bool) (types.Type, *diagnostics.CompileError) {
	return resolveType(te, env, typeParams)
}

func resolveType(te ast.TypeExpr, env *Env, typeParams map[string]bool) (types.Type, *diagnostics.CompileError) {
	switch te := te.(type) {
	case *ast.NamedType:
		if typeParams != nil && typeParams[te.Name] {
			return types.TypeParam{Name: te.Name}, nil
		}
		switch te.Name {
		case "int":
			return types.Int{}, nil
		case "float":
			return types.Float{}, nil
		case "bool":
			return types.Bool{}, nil
		case "string":
			return types.String{}, nil
		case "void":
			return types.Void{}, nil
		case "byte":
			return types.Byte{}, nil
		case "bytes":
			return types.Bytes{}, nil
		case "range":
			return types.Range{}, nil
		case "error":
			return types.Error{}, nil
		}
		if _, ok := env.Classes[te.Name]; ok {
			return types.Class{Name: te.Name}, nil
		}
		if _, ok := env.Traits[te.Name]; ok {
			return types.Trait{Name: te.Name}, nil
		}
		if _, ok := env.Enums[te.Name]; ok {
			return types.Enum{Name: te.Name}, nil
		}
		return nil, diagnostics.TypeErrf(te.Sp, "unknown type '%s'", te.Name)
	case *ast.ArrayType:
		elem, err := resolveType(te.Elem, env, typeParams)
		if err != nil {
			return nil, err
		}
		return types.Array{Elem: elem}, nil
	case *ast.FnType:
		params := make([]types.Type, len(te.Params))
		for i, p := range te.Params {
			ty, err := resolveType(p, env, typeParams)
			if err != nil {
				return nil, err
			}
			params[i] = ty
		}
		var ret types.Type = types.Void{}
		if te.ReturnType != nil {
			r, err := resolveType(te.ReturnType, env, typeParams)
			if err != nil {
				return nil, err
			}
			ret = r
		}
		return types.Fn{Params: params, Return: ret}, nil
	case *ast.GenericType:
		args := make([]types.Type, len(te.TypeArgs))
		for i, a := range te.TypeArgs {
			ty, err := resolveType(a, env, typeParams)
			if err != nil {
				return nil, err
			}
			args[i] = ty
		}
		if ty, handled, err := resolveBuiltinGeneric(te.Name, args, te.Sp); handled {
			return ty, err
		}
		anyParam := false
		for _, a := range args {
			if types.ContainsTypeParam(a) {
				anyParam = true
				break
			}
		}
		if anyParam {
			// Keep as a placeholder until substitution binds everything.
			if _, ok := env.GenericClasses[te.Name]; ok {
				return types.GenericInstance{Kind: types.GenericClass, Name: te.Name, Args: args}, nil
			}
			if _, ok := env.GenericEnums[te.Name]; ok {
				return types.GenericInstance{Kind: types.GenericEnum, Name: te.Name, Args: args}, nil
			}
			return nil, diagnostics.TypeErrf(te.Sp, "unknown generic type '%s'", te.Name)
		}
		mangled := types.MangleName(te.Name, args)
		if _, ok := env.Classes[mangled]; ok {
			return types.Class{Name: mangled}, nil
		}
		if _, ok := env.Enums[mangled]; ok {
			return types.Enum{Name: mangled}, nil
		}
		if gen, ok := env.GenericClasses[te.Name]; ok {
			if err := validateTypeBounds(gen.TypeParams, args, gen.Bounds, env, te.Sp, te.Name); err != nil {
				return nil, err
			}
			return types.Class{Name: ensureGenericClassInstantiated(te.Name, args, env)}, nil
		}
		if gen, ok := env.GenericEnums[te.Name]; ok {
			if err := validateTypeBounds(gen.TypeParams, args, gen.Bounds, env, te.Sp, te.Name); err != nil {
				return nil, err
			}
			return types.Enum{Name: ensureGenericEnumInstantiated(te.Name, args, env)}, nil
		}
		return nil, diagnostics.TypeErrf(te.Sp, "unknown generic type '%s'", te.Name)
	case *ast.NullableType:
		inner, err := resolveType(te.Inner, env, typeParams)
		if err != nil {
			return nil, err
		}
		switch inner.(type) {
		case types.Nullable:
			return nil, diagnostics.TypeErr("nested nullable types (T??) are not allowed", te.Sp)
		case types.Void:
			return nil, diagnostics.TypeErr("void? is not allowed", te.Sp)
		}
		return types.Nullable{Inner: inner}, nil
	case *ast.StreamType:
		elem, err := resolveType(te.Elem, env, typeParams)
		if err != nil {
			return nil, err
		}
		return types.Stream{Elem: elem}, nil
	}
	return nil, diagnostics.TypeErr("unsupported type expression", te.Span())
}

// validateTypeBounds confirms each concrete argument satisfies the trait
// bounds declared on its type parameter. Arguments that still contain type
// parameters are deferred to their own instantiation.
func validateTypeBounds(typeParams []string, args []types.Type, bounds map[string][]string, env *Env, span source.Span, name string) *diagnostics.CompileError {
	for i, tp := range typeParams {
		if i >= len(args) {
			break
		}
		required := bounds[tp]
		if len(required) == 0 || types.ContainsTypeParam(args[i]) {
			continue
		}
		for _, traitName := range required {
			cls, ok := args[i].(types.Class)
			if !ok || !env.ClassImplementsTrait(cls.Name, traitName) {
				return diagnostics.TypeErrf(span,
					"type argument %s for '%s' of '%s' does not implement required trait '%s'",
					args[i], tp, name, traitName)
			}
		}
	}
	return nil
}

// substituteType replaces bound type parameters, eagerly instantiating any
// user-defined generic whose arguments become fully concrete so that the
// resulting mangled name is always registered.
func substituteType(t types.Type, bindings map[string]types.Type, env *Env) types.Type {
	switch t := t.(type) {
	case types.TypeParam:
		if bound, ok := bindings[t.Name]; ok {
			return bound
		}
		return t
	case types.Array:
		return types.Array{Elem: substituteType(t.Elem, bindings, env)}
	case types.Map:
		return types.Map{Key: substituteType(t.Key, bindings, env), Value: substituteType(t.Value, bindings, env)}
	case types.Set:
		return types.Set{Elem: substituteType(t.Elem, bindings, env)}
	case types.Task:
		return types.Task{Elem: substituteType(t.Elem, bindings, env)}
	case types.Sender:
		return types.Sender{Elem: substituteType(t.Elem, bindings, env)}
	case types.Receiver:
		return types.Receiver{Elem: substituteType(t.Elem, bindings, env)}
	case types.Nullable:
		return types.Nullable{Inner: substituteType(t.Inner, bindings, env)}
	case types.Stream:
		return types.Stream{Elem: substituteType(t.Elem, bindings, env)}
	case types.Fn:
		params := make([]types.Type, len(t.Params))
		for i, p := range t.Params {
			params[i] = substituteType(p, bindings, env)
		}
		return types.Fn{Params: params, Return: substituteType(t.Return, bindings, env)}
	case types.GenericInstance:
		args := make([]types.Type, len(t.Args))
		concrete := true
		for i, a := range t.Args {
			args[i] = substituteType(a, bindings, env)
			if types.ContainsTypeParam(args[i]) {
				concrete = false
			}
		}
		if !concrete {
			return types.GenericInstance{Kind: t.Kind, Name: t.Name, Args: args}
		}
		if t.Kind == types.GenericEnum {
			return types.Enum{Name: ensureGenericEnumInstantiated(t.Name, args, env)}
		}
		return types.Class{Name: ensureGenericClassInstantiated(t.Name, args, env)}
	}
	return t
}

// ensureGenericFuncInstantiated registers the concrete signature of a
// generic function instantiation and records it on the monomorphization
// worklist. Idempotent per mangled name.
func ensureGenericFuncInstantiated(name string, args []types.Type, env *Env) string {
	mangled := types.MangleName(name, args)
	if _, ok := env.Functions[mangled]; ok {
		return mangled
	}
	gen, ok := env.GenericFunctions[name]
	if !ok {
		return mangled
	}
	bindings := bindTypeParams(gen.TypeParams, args)
	params := make([]types.Type, len(gen.Params))
	for i, p := range gen.Params {
		params[i] = substituteType(p, bindings, env)
	}
	env.Functions[mangled] = FuncSig{
		Params: params,
		Return: substituteType(gen.Return, bindings, env),
	}
	env.RecordInstantiation(InstFunction, name, args)
	return mangled
}

// ensureGenericClassInstantiated registers the concrete shape of a generic
// class instantiation (fields, method signatures, mut-self set) and records
// it on the monomorphization worklist. Idempotent per mangled name.
func ensureGenericClassInstantiated(name string, args []types.Type, env *Env) string {
	mangled := types.MangleName(name, args)
	if _, ok := env.Classes[mangled]; ok {
		return mangled
	}
	gen, ok := env.GenericClasses[name]
	if !ok {
		return mangled
	}
	// Register the placeholder before substituting fields: recursive
	// generics (class Node<T> { next: Node<T>? }) hit this name again.
	info := &ClassInfo{
		Methods:    append([]string(nil), gen.Methods...),
		ImplTraits: append([]string(nil), gen.ImplTraits...),
		Lifecycle:  gen.Lifecycle,
	}
	env.Classes[mangled] = info
	env.RecordInstantiation(InstClass, name, args)

	bindings := bindTypeParams(gen.TypeParams, args)
	fields := make([]FieldInfo, len(gen.Fields))
	for i, f := range gen.Fields {
		fields[i] = FieldInfo{
			Name:       f.Name,
			Type:       substituteType(f.Type, bindings, env),
			IsInjected: f.IsInjected,
		}
	}
	info.Fields = fields

	for methodName, sig := range gen.MethodSigs {
		params := make([]types.Type, len(sig.Params))
		for i, p := range sig.Params {
			// The template records self as Class(base); rebind it to
			// the concrete instance.
			if i == 0 {
				if cls, isClass := p.(types.Class); isClass && cls.Name == name {
					params[i] = types.Class{Name: mangled}
					continue
				}
			}
			params[i] = substituteType(p, bindings, env)
		}
		methodMangled := types.MangleMethod(mangled, methodName)
		env.Functions[methodMangled] = FuncSig{
			Params: params,
			Return: substituteType(sig.Return, bindings, env),
		}
		if gen.MutSelfMethods[methodName] {
			env.MutSelfMethods[methodMangled] = true
		}
	}
	return mangled
}

// ensureGenericEnumInstantiated registers the concrete shape of a generic
// enum instantiation and records it on the monomorphization worklist.
func ensureGenericEnumInstantiated(name string, args []types.Type, env *Env) string {
	mangled := types.MangleName(name, args)
	if _, ok := env.Enums[mangled]; ok {
		return mangled
	}
	gen, ok := env.GenericEnums[name]
	if !ok {
		return mangled
	}
	info := &EnumInfo{}
	env.Enums[mangled] = info
	env.RecordInstantiation(InstEnum, name, args)

	bindings := bindTypeParams(gen.TypeParams, args)
	variants := make([]VariantInfo, len(gen.Variants))
	for i, v := range gen.Variants {
		fields := make([]FieldInfo, len(v.Fields))
		for j, f := range v.Fields {
			fields[j] = FieldInfo{Name: f.Name, Type: substituteType(f.Type, bindings, env)}
		}
		variants[i] = VariantInfo{Name: v.Name, Fields: fields}
	}
	info.Variants = variants
	return mangled
}

func bindTypeParams(typeParams []string, args []types.Type) map[string]types.Type {
	bindings := make(map[string]types.Type, len(typeParams))
	for i, tp := range typeParams {
		if i < len(args) {
			bindings[tp] = args[i]
		}
	}
	return bindings
}

// typesCompatible implements assignment compatibility: equality; a class
// where its trait is expected; T where T? is expected; the none sentinel
// where any nullable is expected; structural Fn compatibility.
func typesCompatible(actual, expected types.Type, env *Env) bool {
	if types.Equal(actual, expected) {
		return true
	}
	if cls, ok := actual.(types.Class); ok {
		if tr, ok := expected.(types.Trait); ok {
			return env.ClassImplementsTrait(cls.Name, tr.Name)
		}
	}
	if aFn, ok := actual.(types.Fn); ok {
		if eFn, ok := expected.(types.Fn); ok {
			if len(aFn.Params) != len(eFn.Params) {
				return false
			}
			for i := range aFn.Params {
				if !typesCompatible(aFn.Params[i], eFn.Params[i], env) {
					return false
				}
			}
			return typesCompatible(aFn.Return, eFn.Return, env)
		}
	}
	if eNull, ok := expected.(types.Nullable); ok {
		if types.IsNone(actual) {
			return true
		}
		if typesCompatible(actual, eNull.Inner, env) {
			return true
		}
	}
	return false
}
