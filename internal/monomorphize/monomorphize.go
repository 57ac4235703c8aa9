// Package monomorphize replaces every generic function, class, and enum
// with per-type-argument concrete copies, rewrites generic call sites to
// the mangled instance names, and finally removes the generic templates.
//
// The pass is a fixed point: re-checking an instantiated body may discover
// new instantiations, which the next iteration processes. Each clone's
// spans are offset into a disjoint virtual range so every span-keyed side
// table (captures, resolutions, rewrites) stays collision-free.
package monomorphize

import (
	"sort"

	"github.com/google/uuid"

	"github.com/plutolang/pluto/internal/ast"
	"github.com/plutolang/pluto/internal/diagnostics"
	"github.com/plutolang/pluto/internal/source"
	"github.com/plutolang/pluto/internal/typecheck"
	"github.com/plutolang/pluto/internal/types"
)

// spanOffsetStride is the per-instantiation span shift. It must exceed any
// plausible source size so clone spans never collide with original spans or
// with other clones.
const spanOffsetStride = 10_000_000

// Monomorphize runs the fixed-point instantiation loop over program,
// rewrites call sites, resolves leftover generic type annotations, and
// drops the templates. Idempotent: a program without generics is untouched.
func Monomorphize(program *ast.Program, env *typecheck.Env) *diagnostics.CompileError {
	processed := map[string]bool{}
	iteration := 0

	for {
		var pending []typecheck.Instantiation
		for _, mangled := range sortedInstKeys(env) {
			if !processed[mangled] {
				pending = append(pending, env.Instantiations[mangled])
			}
		}
		if len(pending) == 0 {
			break
		}
		for _, inst := range pending {
			iteration++
			offset := iteration * spanOffsetStride
			mangled := inst.Mangled()
			switch inst.Kind {
			case typecheck.InstFunction:
				if err := instantiateFunction(program, env, inst, mangled, offset); err != nil {
					return err
				}
			case typecheck.InstClass:
				if err := instantiateClass(program, env, inst, mangled, offset); err != nil {
					return err
				}
			case typecheck.InstEnum:
				instantiateEnum(program, inst, mangled, offset)
			}
			processed[mangled] = true
		}
	}

	rewriteCallSites(program, env)
	if err := resolveRemainingGenericTypeExprs(program, env); err != nil {
		return err
	}
	dropTemplates(program)
	return nil
}

func sortedInstKeys(env *typecheck.Env) []string {
	keys := make([]string, 0, len(env.Instantiations))
	for k := range env.Instantiations {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func instantiateFunction(program *ast.Program, env *typecheck.Env, inst typecheck.Instantiation, mangled string, offset int) *diagnostics.CompileError {
	for _, f := range program.Functions {
		if f.Name.Value == mangled {
			// Already cloned by an earlier run over this program.
			return nil
		}
	}
	var template *ast.Function
	for _, f := range program.Functions {
		if f.Name.Value == inst.Name && f.IsGeneric() {
			template = f
			break
		}
	}
	if template == nil {
		return diagnostics.Internalf(source.Dummy(), "generic function '%s' not found", inst.Name)
	}
	bindings := buildTypeExprBindings(template.TypeParams, inst.Args)

	fn := cloneFunction(template)
	fn.ID = uuid.New()
	fn.Name = ast.Name{Value: mangled, Sp: template.Name.Sp}
	fn.TypeParams = nil
	substituteInFunction(fn, bindings)
	offsetFunctionSpans(fn, offset)
	fn.Sp = template.Sp.Offset(offset)

	program.Functions = append(program.Functions, fn)

	// Re-check under the substituted types: new instantiations recorded
	// here feed the next fixed-point iteration.
	return typecheck.CheckFunction(fn, env, "")
}

func instantiateClass(program *ast.Program, env *typecheck.Env, inst typecheck.Instantiation, mangled string, offset int) *diagnostics.CompileError {
	var template *ast.ClassDecl
	for _, c := range program.Classes {
		if c.Name.Value == inst.Name && c.IsGeneric() {
			template = c
			break
		}
	}
	if template == nil {
		// Instantiations recorded from signatures alone (no template in
		// this program) have nothing to clone; the registry entry from
		// eager instantiation suffices.
		return nil
	}
	bindings := buildTypeExprBindings(template.TypeParams, inst.Args)

	cls := cloneClass(template)
	cls.ID = uuid.New()
	cls.Name = ast.Name{Value: mangled, Sp: template.Name.Sp}
	cls.TypeParams = nil
	substituteInClass(cls, bindings)
	offsetClassSpans(cls, offset)
	cls.Sp = template.Sp.Offset(offset)

	program.Classes = append(program.Classes, cls)

	registerDefaultMethods(cls, mangled, env)

	for _, m := range cls.Methods {
		if err := typecheck.CheckFunction(m, env, mangled); err != nil {
			return err
		}
	}
	return nil
}

// registerDefaultMethods gives a monomorphized class the default methods of
// its traits, with the self parameter rebound to the concrete instance.
func registerDefaultMethods(cls *ast.ClassDecl, mangled string, env *typecheck.Env) {
	ownMethods := map[string]bool{}
	for _, m := range cls.Methods {
		ownMethods[m.Name.Value] = true
	}
	info := env.Classes[mangled]
	for _, traitName := range cls.ImplTraits {
		traitInfo, ok := env.Traits[traitName.Value]
		if !ok {
			continue
		}
		for _, tm := range traitInfo.Methods {
			if ownMethods[tm.Name] || !traitInfo.DefaultMethods[tm.Name] {
				continue
			}
			methodMangled := types.MangleMethod(mangled, tm.Name)
			if _, exists := env.Functions[methodMangled]; exists {
				continue
			}
			params := append([]types.Type(nil), tm.Sig.Params...)
			if len(params) > 0 {
				params[0] = types.Class{Name: mangled}
			}
			env.Functions[methodMangled] = typecheck.FuncSig{Params: params, Return: tm.Sig.Return}
			if traitInfo.MutSelfMethods[tm.Name] {
				env.MutSelfMethods[methodMangled] = true
			}
			if info != nil && !info.HasMethod(tm.Name) {
				info.Methods = append(info.Methods, tm.Name)
			}
		}
	}
}

func instantiateEnum(program *ast.Program, inst typecheck.Instantiation, mangled string, offset int) {
	var template *ast.EnumDecl
	for _, e := range program.Enums {
		if e.Name.Value == inst.Name && e.IsGeneric() {
			template = e
			break
		}
	}
	if template == nil {
		return
	}
	bindings := buildTypeExprBindings(template.TypeParams, inst.Args)

	decl := cloneEnum(template)
	decl.ID = uuid.New()
	decl.Name = ast.Name{Value: mangled, Sp: template.Name.Sp}
	decl.TypeParams = nil
	substituteInEnum(decl, bindings)
	offsetEnumSpans(decl, offset)
	decl.Sp = template.Sp.Offset(offset)

	program.Enums = append(program.Enums, decl)
}

// buildTypeExprBindings maps type-parameter names to concrete TypeExpr
// forms of the instantiation arguments.
func buildTypeExprBindings(typeParams []ast.TypeParam, args []types.Type) map[string]ast.TypeExpr {
	bindings := make(map[string]ast.TypeExpr, len(typeParams))
	for i, tp := range typeParams {
		if i < len(args) {
			bindings[tp.Name.Value] = types.ToTypeExpr(args[i])
		}
	}
	return bindings
}

// rewriteCallSites renames every generic call listed in GenericRewrites to
// its mangled instance and clears the explicit type-argument list.
func rewriteCallSites(program *ast.Program, env *typecheck.Env) {
	rewrite := func(e ast.Expr) {
		call, ok := e.(*ast.Call)
		if !ok {
			return
		}
		if mangled, found := env.GenericRewrites[call.Sp.Key()]; found {
			call.FuncName.Value = mangled
			call.TypeArgs = nil
		}
	}
	forEachBody(program, func(b *ast.Block) {
		ast.Inspect(b, func(n ast.Node) bool {
			if e, ok := n.(ast.Expr); ok {
				rewrite(e)
			}
			return true
		})
	})
}

// resolveRemainingGenericTypeExprs rewrites user-defined GenericType
// annotations left in non-generic code to their mangled concrete names.
func resolveRemainingGenericTypeExprs(program *ast.Program, env *typecheck.Env) *diagnostics.CompileError {
	var firstErr *diagnostics.CompileError
	resolve := func(te *ast.TypeExpr) {
		if firstErr != nil || te == nil || *te == nil {
			return
		}
		resolveGenericTE(te, env, &firstErr)
	}
	for _, f := range program.Functions {
		if f.IsGeneric() {
			continue
		}
		resolveFunctionTypeExprs(f, resolve)
	}
	for _, c := range program.Classes {
		if c.IsGeneric() {
			continue
		}
		for i := range c.Fields {
			resolve(&c.Fields[i].Type)
		}
		for _, m := range c.Methods {
			resolveFunctionTypeExprs(m, resolve)
		}
	}
	if program.App != nil {
		for i := range program.App.InjectFields {
			resolve(&program.App.InjectFields[i].Type)
		}
		for _, m := range program.App.Methods {
			resolveFunctionTypeExprs(m, resolve)
		}
	}
	for _, s := range program.Stages {
		for i := range s.Fields {
			resolve(&s.Fields[i].Type)
		}
		for _, m := range s.Methods {
			resolveFunctionTypeExprs(m, resolve)
		}
	}
	return firstErr
}

func resolveFunctionTypeExprs(f *ast.Function, resolve func(*ast.TypeExpr)) {
	for i := range f.Params {
		if f.Params[i].Type != nil {
			resolve(&f.Params[i].Type)
		}
	}
	if f.ReturnType != nil {
		resolve(&f.ReturnType)
	}
	walkBlockTypeExprs(f.Body, resolve)
}

func walkBlockTypeExprs(b *ast.Block, resolve func(*ast.TypeExpr)) {
	ast.Inspect(b, func(n ast.Node) bool {
		switch s := n.(type) {
		case *ast.Let:
			if s.Type != nil {
				resolve(&s.Type)
			}
		case *ast.LetChan:
			resolve(&s.ElemType)
		case *ast.Scope:
			for i := range s.Bindings {
				resolve(&s.Bindings[i].Type)
			}
		case *ast.Closure:
			for i := range s.Params {
				if s.Params[i].Type != nil {
					resolve(&s.Params[i].Type)
				}
			}
			if s.ReturnType != nil {
				resolve(&s.ReturnType)
			}
		case *ast.Cast:
			resolve(&s.Target)
		}
		return true
	})
}

// resolveGenericTE resolves one annotation. Built-in generic heads keep
// their arguments resolved in place; user-defined heads become Named
// mangled types.
func resolveGenericTE(te *ast.TypeExpr, env *typecheck.Env, firstErr **diagnostics.CompileError) {
	switch t := (*te).(type) {
	case *ast.GenericType:
		for i := range t.TypeArgs {
			resolveGenericTE(&t.TypeArgs[i], env, firstErr)
		}
		switch t.Name {
		case "Map", "Set", "Task", "Sender", "Receiver":
			return
		}
		ty, err := typecheck.ResolveType(t, env)
		if err != nil {
			if *firstErr == nil {
				*firstErr = err
			}
			return
		}
		switch resolved := ty.(type) {
		case types.Class:
			*te = &ast.NamedType{Name: resolved.Name, Sp: t.Sp}
		case types.Enum:
			*te = &ast.NamedType{Name: resolved.Name, Sp: t.Sp}
		}
	case *ast.ArrayType:
		resolveGenericTE(&t.Elem, env, firstErr)
	case *ast.NullableType:
		resolveGenericTE(&t.Inner, env, firstErr)
	case *ast.StreamType:
		resolveGenericTE(&t.Elem, env, firstErr)
	case *ast.FnType:
		for i := range t.Params {
			resolveGenericTE(&t.Params[i], env, firstErr)
		}
		if t.ReturnType != nil {
			resolveGenericTE(&t.ReturnType, env, firstErr)
		}
	}
}

// dropTemplates removes every generic template from the program. Applying
// monomorphization again afterward is a no-op.
func dropTemplates(program *ast.Program) {
	fns := program.Functions[:0]
	for _, f := range program.Functions {
		if !f.IsGeneric() {
			fns = append(fns, f)
		}
	}
	program.Functions = fns

	classes := program.Classes[:0]
	for _, c := range program.Classes {
		if !c.IsGeneric() {
			classes = append(classes, c)
		}
	}
	program.Classes = classes

	enums := program.Enums[:0]
	for _, e := range program.Enums {
		if !e.IsGeneric() {
			enums = append(enums, e)
		}
	}
	program.Enums = enums
}

func forEachBody(program *ast.Program, f func(*ast.Block)) {
	for _, fn := range program.Functions {
		f(fn.Body)
	}
	for _, c := range program.Classes {
		for _, m := range c.Methods {
			f(m.Body)
		}
	}
	if program.App != nil {
		for _, m := range program.App.Methods {
			f(m.Body)
		}
	}
	for _, s := range program.Stages {
		for _, m := range s.Methods {
			f(m.Body)
		}
	}
}
