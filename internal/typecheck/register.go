package typecheck

import (
	"github.com/plutolang/pluto/internal/ast"
	"github.com/plutolang/pluto/internal/diagnostics"
	"github.com/plutolang/pluto/internal/types"
)

// Registration runs in two phases. Phase 0 inserts name placeholders only,
// so that phase 1 can resolve type expressions that mention any declared
// name regardless of declaration order.

// registerTraitNames inserts empty trait placeholders.
func registerTraitNames(program *ast.Program, env *Env) *diagnostics.CompileError {
	for _, t := range program.Traits {
		env.Traits[t.Name.Value] = &TraitInfo{
			DefaultMethods:  map[string]bool{},
			StaticMethods:   map[string]bool{},
			MutSelfMethods:  map[string]bool{},
			MethodContracts: map[string][]*ast.Contract{},
		}
	}
	return nil
}

// registerEnumNames inserts empty enum placeholders for concrete enums.
func registerEnumNames(program *ast.Program, env *Env) *diagnostics.CompileError {
	for _, e := range program.Enums {
		if e.IsGeneric() {
			continue
		}
		env.Enums[e.Name.Value] = &EnumInfo{}
	}
	return nil
}

// registerAppPlaceholder registers the app as a class so method mangling and
// self resolution work identically, and rejects a top-level main alongside
// an app.
func registerAppPlaceholder(program *ast.Program, env *Env) *diagnostics.CompileError {
	if program.App == nil {
		return nil
	}
	for _, f := range program.Functions {
		if f.Name.Value == "main" {
			return diagnostics.TypeErr(
				"cannot have both an app declaration and a top-level main function",
				program.App.Sp,
			)
		}
	}
	env.Classes[program.App.Name.Value] = &ClassInfo{Lifecycle: ast.Singleton}
	return nil
}

// registerStagePlaceholders registers each stage as a class placeholder.
func registerStagePlaceholders(program *ast.Program, env *Env) *diagnostics.CompileError {
	for _, s := range program.Stages {
		info := &ClassInfo{Lifecycle: ast.Singleton}
		env.Classes[s.Name.Value] = info
		env.Stages[s.Name.Value] = info
	}
	return nil
}

// registerErrorNames inserts error placeholders. Field types resolve in
// phase 1.
func registerErrorNames(program *ast.Program, env *Env) *diagnostics.CompileError {
	for _, e := range program.Errors {
		if _, ok := env.Errors[e.Name.Value]; !ok {
			env.Errors[e.Name.Value] = &ErrorInfo{}
		}
	}
	return nil
}

// registerClassNames inserts placeholders for concrete classes.
func registerClassNames(program *ast.Program, env *Env) *diagnostics.CompileError {
	for _, c := range program.Classes {
		if c.IsGeneric() {
			continue
		}
		env.Classes[c.Name.Value] = &ClassInfo{Lifecycle: c.Lifecycle}
	}
	return nil
}

// resolveErrorFields resolves declared error field types.
func resolveErrorFields(program *ast.Program, env *Env) *diagnostics.CompileError {
	for _, e := range program.Errors {
		fields := make([]FieldInfo, 0, len(e.Fields))
		for _, f := range e.Fields {
			ty, err := ResolveType(f.Type, env)
			if err != nil {
				return err
			}
			fields = append(fields, FieldInfo{Name: f.Name.Value, Type: ty})
		}
		env.Errors[e.Name.Value] = &ErrorInfo{Fields: fields}
	}
	return nil
}

// resolveTraitSignatures resolves trait method signatures, default-method
// and mut-self sets, and per-method contracts.
func resolveTraitSignatures(program *ast.Program, env *Env) *diagnostics.CompileError {
	for _, t := range program.Traits {
		info := env.Traits[t.Name.Value]
		for _, m := range t.Methods {
			params := make([]types.Type, 0, len(m.Params))
			for _, p := range m.Params {
				if p.Name.Value == "self" {
					// Placeholder; replaced by the implementing class.
					params = append(params, types.Void{})
					continue
				}
				ty, err := ResolveType(p.Type, env)
				if err != nil {
					return err
				}
				params = append(params, ty)
			}
			var ret types.Type = types.Void{}
			if m.ReturnType != nil {
				r, err := ResolveType(m.ReturnType, env)
				if err != nil {
					return err
				}
				ret = r
			}
			info.Methods = append(info.Methods, TraitMethodSig{
				Name: m.Name.Value,
				Sig:  FuncSig{Params: params, Return: ret},
			})
			if m.Body != nil {
				info.DefaultMethods[m.Name.Value] = true
			}
			if m.IsStatic {
				info.StaticMethods[m.Name.Value] = true
			}
			if len(m.Params) > 0 && m.Params[0].Name.Value == "self" && m.Params[0].IsMut {
				info.MutSelfMethods[m.Name.Value] = true
			}
			if len(m.Contracts) > 0 {
				info.MethodContracts[m.Name.Value] = m.Contracts
			}
		}
	}
	return nil
}

// resolveEnumFields resolves variant field types. Generic enums register as
// templates with TypeParam placeholders and validated bounds.
func resolveEnumFields(program *ast.Program, env *Env) *diagnostics.CompileError {
	for _, e := range program.Enums {
		if e.IsGeneric() {
			tpNames, bounds, err := collectTypeParams(e.TypeParams, env)
			if err != nil {
				return err
			}
			variants := make([]VariantInfo, 0, len(e.Variants))
			for _, v := range e.Variants {
				fields := make([]FieldInfo, 0, len(v.Fields))
				for _, f := range v.Fields {
					ty, err := ResolveTypeWithParams(f.Type, env, tpNames)
					if err != nil {
						return err
					}
					fields = append(fields, FieldInfo{Name: f.Name.Value, Type: ty})
				}
				variants = append(variants, VariantInfo{Name: v.Name.Value, Fields: fields})
			}
			env.GenericEnums[e.Name.Value] = &GenericEnumInfo{
				TypeParams: typeParamNames(e.TypeParams),
				Bounds:     bounds,
				Variants:   variants,
			}
			continue
		}
		variants := make([]VariantInfo, 0, len(e.Variants))
		for _, v := range e.Variants {
			fields := make([]FieldInfo, 0, len(v.Fields))
			for _, f := range v.Fields {
				ty, err := ResolveType(f.Type, env)
				if err != nil {
					return err
				}
				fields = append(fields, FieldInfo{Name: f.Name.Value, Type: ty})
			}
			variants = append(variants, VariantInfo{Name: v.Name.Value, Fields: fields})
		}
		env.Enums[e.Name.Value].Variants = variants
	}
	return nil
}

// resolveClassFields resolves concrete class fields and impl_traits, and
// registers generic classes as templates. Duplicate member names fail at
// their own span.
func resolveClassFields(program *ast.Program, env *Env) *diagnostics.CompileError {
	for _, c := range program.Classes {
		if err := checkDuplicateMembers(c); err != nil {
			return err
		}
		if c.IsGeneric() {
			if err := registerGenericClass(c, env); err != nil {
				return err
			}
			continue
		}
		fields := make([]FieldInfo, 0, len(c.Fields))
		for _, f := range c.Fields {
			ty, err := ResolveType(f.Type, env)
			if err != nil {
				return err
			}
			fields = append(fields, FieldInfo{Name: f.Name.Value, Type: ty, IsInjected: f.IsInjected})
		}
		implTraits := make([]string, 0, len(c.ImplTraits))
		for _, tn := range c.ImplTraits {
			if _, ok := env.Traits[tn.Value]; !ok {
				return diagnostics.TypeErrf(tn.Sp, "unknown trait '%s'", tn.Value)
			}
			implTraits = append(implTraits, tn.Value)
		}
		info := env.Classes[c.Name.Value]
		info.Fields = fields
		info.ImplTraits = implTraits
	}
	return nil
}

func checkDuplicateMembers(c *ast.ClassDecl) *diagnostics.CompileError {
	seenFields := map[string]bool{}
	for _, f := range c.Fields {
		if seenFields[f.Name.Value] {
			return diagnostics.TypeErrf(f.Name.Sp, "duplicate field '%s' in class '%s'", f.Name.Value, c.Name.Value)
		}
		seenFields[f.Name.Value] = true
	}
	seenMethods := map[string]bool{}
	for _, m := range c.Methods {
		if seenMethods[m.Name.Value] {
			return diagnostics.TypeErrf(m.Name.Sp, "duplicate method '%s' in class '%s'", m.Name.Value, c.Name.Value)
		}
		seenMethods[m.Name.Value] = true
	}
	return nil
}

func registerGenericClass(c *ast.ClassDecl, env *Env) *diagnostics.CompileError {
	for _, tn := range c.ImplTraits {
		if _, ok := env.Traits[tn.Value]; !ok {
			return diagnostics.TypeErrf(tn.Sp, "unknown trait '%s'", tn.Value)
		}
	}
	tpNames, bounds, err := collectTypeParams(c.TypeParams, env)
	if err != nil {
		return err
	}
	fields := make([]FieldInfo, 0, len(c.Fields))
	for _, f := range c.Fields {
		ty, err := ResolveTypeWithParams(f.Type, env, tpNames)
		if err != nil {
			return err
		}
		fields = append(fields, FieldInfo{Name: f.Name.Value, Type: ty, IsInjected: f.IsInjected})
	}
	methodNames := make([]string, 0, len(c.Methods))
	methodSigs := map[string]FuncSig{}
	mutSelf := map[string]bool{}
	for _, m := range c.Methods {
		methodNames = append(methodNames, m.Name.Value)
		params := make([]types.Type, 0, len(m.Params))
		for _, p := range m.Params {
			if p.Name.Value == "self" {
				// Rebound to the concrete instance at instantiation.
				params = append(params, types.Class{Name: c.Name.Value})
				continue
			}
			ty, err := ResolveTypeWithParams(p.Type, env, tpNames)
			if err != nil {
				return err
			}
			params = append(params, ty)
		}
		var ret types.Type = types.Void{}
		if m.ReturnType != nil {
			r, err := ResolveTypeWithParams(m.ReturnType, env, tpNames)
			if err != nil {
				return err
			}
			ret = r
		}
		methodSigs[m.Name.Value] = FuncSig{Params: params, Return: ret}
		if m.HasMutSelf() {
			mutSelf[m.Name.Value] = true
		}
	}
	implTraits := make([]string, 0, len(c.ImplTraits))
	for _, tn := range c.ImplTraits {
		implTraits = append(implTraits, tn.Value)
	}
	env.GenericClasses[c.Name.Value] = &GenericClassInfo{
		TypeParams:     typeParamNames(c.TypeParams),
		Bounds:         bounds,
		Fields:         fields,
		Methods:        methodNames,
		MethodSigs:     methodSigs,
		ImplTraits:     implTraits,
		MutSelfMethods: mutSelf,
		Lifecycle:      c.Lifecycle,
	}
	return nil
}

func typeParamNames(tps []ast.TypeParam) []string {
	names := make([]string, len(tps))
	for i, tp := range tps {
		names[i] = tp.Name.Value
	}
	return names
}

func collectTypeParams(tps []ast.TypeParam, env *Env) (map[string]bool, map[string][]string, *diagnostics.CompileError) {
	names := map[string]bool{}
	bounds := map[string][]string{}
	for _, tp := range tps {
		names[tp.Name.Value] = true
		for _, b := range tp.Bounds {
			if _, ok := env.Traits[b.Value]; !ok {
				return nil, nil, diagnostics.TypeErrf(b.Sp, "unknown trait '%s' in type bound for '%s'", b.Value, tp.Name.Value)
			}
			bounds[tp.Name.Value] = append(bounds[tp.Name.Value], b.Value)
		}
	}
	return names, bounds, nil
}

// registerExternFns registers foreign functions, restricted to primitive
// and array-of-primitive signatures.
func registerExternFns(program *ast.Program, env *Env) *diagnostics.CompileError {
	externOK := func(ty types.Type) bool {
		switch ty.(type) {
		case types.Int, types.Float, types.Bool, types.String, types.Void, types.Array:
			return true
		}
		return false
	}
	for _, e := range program.ExternFns {
		params := make([]types.Type, 0, len(e.Params))
		for _, p := range e.Params {
			ty, err := ResolveType(p.Type, env)
			if err != nil {
				return err
			}
			if !externOK(ty) {
				return diagnostics.TypeErrf(p.Type.Span(),
					"extern functions only support primitive types and arrays (int, float, bool, string, array), got '%s'", ty)
			}
			params = append(params, ty)
		}
		var ret types.Type = types.Void{}
		if e.ReturnType != nil {
			r, err := ResolveType(e.ReturnType, env)
			if err != nil {
				return err
			}
			if !externOK(r) {
				return diagnostics.TypeErrf(e.ReturnType.Span(),
					"extern functions only support primitive types and arrays (int, float, bool, string, array), got '%s'", r)
			}
			ret = r
		}
		env.Functions[e.Name.Value] = FuncSig{Params: params, Return: ret}
		env.ExternFns[e.Name.Value] = true
	}
	return nil
}

// registerFunctions registers free function signatures; generic templates
// go to GenericFunctions. Builtin shadowing and extern duplicates fail.
func registerFunctions(program *ast.Program, env *Env) *diagnostics.CompileError {
	for _, f := range program.Functions {
		if env.Builtins[f.Name.Value] {
			return diagnostics.TypeErrf(f.Name.Sp, "function '%s' cannot shadow builtin '%s'", f.Name.Value, f.Name.Value)
		}
		if env.ExternFns[f.Name.Value] {
			return diagnostics.TypeErrf(f.Name.Sp, "duplicate function name '%s': defined as both fn and extern fn", f.Name.Value)
		}
		if f.IsGeneric() {
			tpNames, bounds, err := collectTypeParams(f.TypeParams, env)
			if err != nil {
				return err
			}
			params := make([]types.Type, 0, len(f.Params))
			for _, p := range f.Params {
				ty, err := ResolveTypeWithParams(p.Type, env, tpNames)
				if err != nil {
					return err
				}
				params = append(params, ty)
			}
			var ret types.Type = types.Void{}
			if f.ReturnType != nil {
				r, err := ResolveTypeWithParams(f.ReturnType, env, tpNames)
				if err != nil {
					return err
				}
				ret = r
			}
			env.GenericFunctions[f.Name.Value] = &GenericFuncSig{
				TypeParams: typeParamNames(f.TypeParams),
				Bounds:     bounds,
				Params:     params,
				Return:     ret,
			}
			continue
		}
		params := make([]types.Type, 0, len(f.Params))
		for _, p := range f.Params {
			ty, err := ResolveType(p.Type, env)
			if err != nil {
				return err
			}
			params = append(params, ty)
		}
		var ret types.Type = types.Void{}
		if f.ReturnType != nil {
			r, err := ResolveType(f.ReturnType, env)
			if err != nil {
				return err
			}
			ret = r
		}
		env.Functions[f.Name.Value] = FuncSig{Params: params, Return: ret}
	}
	return nil
}

// registerMethodSigs registers class method signatures under mangled names
// and fills each ClassInfo's method list.
func registerMethodSigs(program *ast.Program, env *Env) *diagnostics.CompileError {
	for _, c := range program.Classes {
		if c.IsGeneric() {
			continue
		}
		className := c.Name.Value
		methodNames := make([]string, 0, len(c.Methods))
		for _, m := range c.Methods {
			if err := registerOwnedMethod(m, className, env); err != nil {
				return err
			}
			methodNames = append(methodNames, m.Name.Value)
		}
		env.Classes[className].Methods = methodNames
	}
	return nil
}

// registerOwnedMethod registers one method of a class, app, or stage.
func registerOwnedMethod(m *ast.Function, owner string, env *Env) *diagnostics.CompileError {
	mangled := types.MangleMethod(owner, m.Name.Value)
	params := make([]types.Type, 0, len(m.Params))
	for _, p := range m.Params {
		if p.Name.Value == "self" {
			params = append(params, types.Class{Name: owner})
			continue
		}
		ty, err := ResolveType(p.Type, env)
		if err != nil {
			return err
		}
		params = append(params, ty)
	}
	var ret types.Type = types.Void{}
	if m.ReturnType != nil {
		r, err := ResolveType(m.ReturnType, env)
		if err != nil {
			return err
		}
		ret = r
	}
	if m.HasMutSelf() {
		env.MutSelfMethods[mangled] = true
	}
	env.Functions[mangled] = FuncSig{Params: params, Return: ret}
	return nil
}

// registerAppFieldsAndMethods resolves the app's inject fields, ambient
// types, and methods, and enforces the main-method invariants.
func registerAppFieldsAndMethods(program *ast.Program, env *Env) *diagnostics.CompileError {
	if program.App == nil {
		return nil
	}
	app := program.App
	appName := app.Name.Value

	fields := make([]FieldInfo, 0, len(app.InjectFields))
	for _, f := range app.InjectFields {
		ty, err := ResolveType(f.Type, env)
		if err != nil {
			return err
		}
		fields = append(fields, FieldInfo{Name: f.Name.Value, Type: ty, IsInjected: f.IsInjected})
	}
	info := env.Classes[appName]
	info.Fields = fields

	for _, amb := range app.AmbientTypes {
		if _, ok := env.Classes[amb.Value]; !ok {
			return diagnostics.TypeErrf(amb.Sp, "ambient type '%s' is not a known class", amb.Value)
		}
		env.AmbientTypes[amb.Value] = true
	}

	hasMain := false
	methodNames := make([]string, 0, len(app.Methods))
	for _, m := range app.Methods {
		methodNames = append(methodNames, m.Name.Value)
		if m.Name.Value == "main" {
			hasMain = true
			if !m.HasSelf() {
				return diagnostics.TypeErr("app main method must take 'self' as first parameter", m.Name.Sp)
			}
			if m.ReturnType != nil {
				return diagnostics.TypeErr("app main method must not have a return type", m.Name.Sp)
			}
		}
		if err := registerOwnedMethod(m, appName, env); err != nil {
			return err
		}
	}
	if !hasMain {
		return diagnostics.TypeErr("app must have a 'main' method", app.Name.Sp)
	}
	info.Methods = methodNames
	env.App = &AppInfo{Name: appName, Info: info}
	return nil
}

// registerStageFieldsAndMethods resolves stage fields and methods.
func registerStageFieldsAndMethods(program *ast.Program, env *Env) *diagnostics.CompileError {
	for _, s := range program.Stages {
		stageName := s.Name.Value
		info := env.Stages[stageName]
		fields := make([]FieldInfo, 0, len(s.Fields))
		for _, f := range s.Fields {
			ty, err := ResolveType(f.Type, env)
			if err != nil {
				return err
			}
			fields = append(fields, FieldInfo{Name: f.Name.Value, Type: ty, IsInjected: f.IsInjected})
		}
		info.Fields = fields
		methodNames := make([]string, 0, len(s.Methods))
		for _, m := range s.Methods {
			if err := registerOwnedMethod(m, stageName, env); err != nil {
				return err
			}
			methodNames = append(methodNames, m.Name.Value)
		}
		info.Methods = methodNames
	}
	return nil
}
