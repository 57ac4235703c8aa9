package typecheck

import (
	"github.com/plutolang/pluto/internal/ast"
	"github.com/plutolang/pluto/internal/diagnostics"
	"github.com/plutolang/pluto/internal/types"
)

// InferErrorSets computes per-function error-effect sets by fixed-point
// dataflow: direct raises seed the sets, and propagation edges (calls under
// `!`) union callee sets into callers until nothing changes. Pre-seeded
// entries (fallible extern functions) survive and propagate.
func InferErrorSets(program *ast.Program, env *Env) {
	directErrors := map[string]map[string]bool{}
	propagationEdges := map[string]map[string]bool{}

	collect := func(name string, body *ast.Block) {
		directs := map[string]bool{}
		edges := map[string]bool{}
		for _, stmt := range body.Stmts {
			collectStmtEffects(stmt, directs, edges, name, env)
		}
		directErrors[name] = directs
		propagationEdges[name] = edges
	}

	for _, fn := range program.Functions {
		if fn.IsGeneric() {
			continue
		}
		collect(fn.Name.Value, fn.Body)
	}
	for _, c := range program.Classes {
		if c.IsGeneric() {
			continue
		}
		for _, m := range c.Methods {
			collect(types.MangleMethod(c.Name.Value, m.Name.Value), m.Body)
		}
	}
	// Inherited default bodies contribute under the inheriting class's
	// mangled name.
	for _, c := range program.Classes {
		if c.IsGeneric() {
			continue
		}
		ownMethods := map[string]bool{}
		for _, m := range c.Methods {
			ownMethods[m.Name.Value] = true
		}
		for _, traitName := range c.ImplTraits {
			for _, t := range program.Traits {
				if t.Name.Value != traitName.Value {
					continue
				}
				for _, tm := range t.Methods {
					if tm.Body != nil && !ownMethods[tm.Name.Value] {
						collect(types.MangleMethod(c.Name.Value, tm.Name.Value), tm.Body)
					}
				}
			}
		}
	}
	if program.App != nil {
		for _, m := range program.App.Methods {
			collect(types.MangleMethod(program.App.Name.Value, m.Name.Value), m.Body)
		}
	}
	for _, s := range program.Stages {
		for _, m := range s.Methods {
			collect(types.MangleMethod(s.Name.Value, m.Name.Value), m.Body)
		}
	}

	// Seed from pre-existing fn_errors (extern fallibles), then add the
	// collected direct raises.
	fnErrors := env.FnErrors
	for _, name := range sortedKeys(directErrors) {
		set := fnErrors[name]
		if set == nil {
			set = map[string]bool{}
			fnErrors[name] = set
		}
		for e := range directErrors[name] {
			set[e] = true
		}
	}

	// Fixed point over the propagation edges.
	fnNames := sortedKeys(propagationEdges)
	for {
		changed := false
		for _, fnName := range fnNames {
			set := fnErrors[fnName]
			if set == nil {
				set = map[string]bool{}
				fnErrors[fnName] = set
			}
			for callee := range propagationEdges[fnName] {
				for e := range fnErrors[callee] {
					if !set[e] {
						set[e] = true
						changed = true
					}
				}
			}
		}
		if !changed {
			break
		}
	}
}

func collectBlockEffects(b *ast.Block, directs, edges map[string]bool, currentFn string, env *Env) {
	for _, stmt := range b.Stmts {
		collectStmtEffects(stmt, directs, edges, currentFn, env)
	}
}

func collectStmtEffects(stmt ast.Stmt, directs, edges map[string]bool, currentFn string, env *Env) {
	switch s := stmt.(type) {
	case *ast.Raise:
		directs[s.ErrorName.Value] = true
		for _, f := range s.Fields {
			collectExprEffects(f.Value, directs, edges, currentFn, env)
		}
	case *ast.Select:
		for _, arm := range s.Arms {
			switch op := arm.Op.(type) {
			case *ast.SelectRecv:
				collectExprEffects(op.Channel, directs, edges, currentFn, env)
			case *ast.SelectSend:
				collectExprEffects(op.Channel, directs, edges, currentFn, env)
				collectExprEffects(op.Value, directs, edges, currentFn, env)
			}
			collectBlockEffects(arm.Body, directs, edges, currentFn, env)
		}
		if s.Default != nil {
			collectBlockEffects(s.Default, directs, edges, currentFn, env)
		} else {
			// Without a default, a fully-closed channel set raises.
			directs["ChannelClosed"] = true
		}
	case *ast.Let:
		collectExprEffects(s.Value, directs, edges, currentFn, env)
	case *ast.ExprStmt:
		collectExprEffects(s.Value, directs, edges, currentFn, env)
	case *ast.Return:
		if s.Value != nil {
			collectExprEffects(s.Value, directs, edges, currentFn, env)
		}
	case *ast.Assign:
		collectExprEffects(s.Value, directs, edges, currentFn, env)
	case *ast.FieldAssign:
		collectExprEffects(s.Object, directs, edges, currentFn, env)
		collectExprEffects(s.Value, directs, edges, currentFn, env)
	case *ast.IndexAssign:
		collectExprEffects(s.Object, directs, edges, currentFn, env)
		collectExprEffects(s.Idx, directs, edges, currentFn, env)
		collectExprEffects(s.Value, directs, edges, currentFn, env)
	case *ast.If:
		collectExprEffects(s.Cond, directs, edges, currentFn, env)
		collectBlockEffects(s.Then, directs, edges, currentFn, env)
		if s.Else != nil {
			collectBlockEffects(s.Else, directs, edges, currentFn, env)
		}
	case *ast.While:
		collectExprEffects(s.Cond, directs, edges, currentFn, env)
		collectBlockEffects(s.Body, directs, edges, currentFn, env)
	case *ast.For:
		collectExprEffects(s.Iterable, directs, edges, currentFn, env)
		collectBlockEffects(s.Body, directs, edges, currentFn, env)
	case *ast.Match:
		collectExprEffects(s.Scrutinee, directs, edges, currentFn, env)
		for _, arm := range s.Arms {
			collectBlockEffects(arm.Body, directs, edges, currentFn, env)
		}
	case *ast.Assert:
		collectExprEffects(s.Cond, directs, edges, currentFn, env)
	case *ast.LetChan:
		if s.Capacity != nil {
			collectExprEffects(s.Capacity, directs, edges, currentFn, env)
		}
	case *ast.Scope:
		for _, seed := range s.Seeds {
			collectExprEffects(seed, directs, edges, currentFn, env)
		}
		collectBlockEffects(s.Body, directs, edges, currentFn, env)
	case *ast.Yield:
		collectExprEffects(s.Value, directs, edges, currentFn, env)
	}
}

func collectExprEffects(e ast.Expr, directs, edges map[string]bool, currentFn string, env *Env) {
	switch e := e.(type) {
	case *ast.Propagate:
		switch inner := e.Value.(type) {
		case *ast.Call:
			if inner.FuncName.Value == "pow" &&
				env.FallibleBuiltinCalls[FnSpanKey{Fn: currentFn, Start: inner.FuncName.Sp.Start}] {
				directs["MathError"] = true
			} else {
				edges[inner.FuncName.Value] = true
			}
			for _, arg := range inner.Args {
				collectExprEffects(arg, directs, edges, currentFn, env)
			}
		case *ast.MethodCall:
			collectExprEffects(inner.Object, directs, edges, currentFn, env)
			for _, arg := range inner.Args {
				collectExprEffects(arg, directs, edges, currentFn, env)
			}
			res, ok := env.MethodResolutions[FnSpanKey{Fn: currentFn, Start: inner.Method.Sp.Start}]
			if !ok {
				return
			}
			switch res.Kind {
			case ResolveClass:
				edges[res.MangledName] = true
			case ResolveTraitDynamic:
				// Fan out to every implementer.
				for _, className := range sortedClassNames(env) {
					if env.Classes[className].ImplementsTrait(res.TraitName) {
						edges[types.MangleMethod(className, res.MethodName)] = true
					}
				}
			case ResolveTaskGet:
				if res.SpawnedFn != "" {
					edges[res.SpawnedFn] = true
				} else {
					// Unknown origin: any declared error may surface.
					for errName := range env.Errors {
						directs[errName] = true
					}
				}
			case ResolveChannelSend, ResolveChannelRecv:
				directs["ChannelClosed"] = true
			case ResolveChannelTrySend:
				directs["ChannelClosed"] = true
				directs["ChannelFull"] = true
			case ResolveChannelTryRecv:
				directs["ChannelClosed"] = true
				directs["ChannelEmpty"] = true
			}
		default:
			collectExprEffects(inner, directs, edges, currentFn, env)
		}
	case *ast.Catch:
		// The handler stops propagation; only argument and handler
		// expressions contribute.
		switch inner := e.Value.(type) {
		case *ast.Call:
			for _, arg := range inner.Args {
				collectExprEffects(arg, directs, edges, currentFn, env)
			}
		case *ast.MethodCall:
			collectExprEffects(inner.Object, directs, edges, currentFn, env)
			for _, arg := range inner.Args {
				collectExprEffects(arg, directs, edges, currentFn, env)
			}
		default:
			collectExprEffects(inner, directs, edges, currentFn, env)
		}
		switch h := e.Handler.(type) {
		case *ast.CatchShorthand:
			collectExprEffects(h.Fallback, directs, edges, currentFn, env)
		case *ast.CatchWildcard:
			collectExprEffects(h.Body, directs, edges, currentFn, env)
		}
	case *ast.Spawn:
		// Spawn is opaque to the error system: the task's errors surface
		// at .get(), not here. Only spawn argument expressions contribute.
		if closure, ok := e.Call.(*ast.Closure); ok {
			for _, stmt := range closure.Body.Stmts {
				if ret, isRet := stmt.(*ast.Return); isRet && ret.Value != nil {
					if call, isCall := ret.Value.(*ast.Call); isCall {
						for _, arg := range call.Args {
							collectExprEffects(arg, directs, edges, currentFn, env)
						}
					}
				}
			}
		}
	case *ast.Closure:
		collectBlockEffects(e.Body, directs, edges, currentFn, env)
	case *ast.BinOp:
		collectExprEffects(e.LHS, directs, edges, currentFn, env)
		collectExprEffects(e.RHS, directs, edges, currentFn, env)
	case *ast.UnaryOp:
		collectExprEffects(e.Operand, directs, edges, currentFn, env)
	case *ast.Cast:
		collectExprEffects(e.Value, directs, edges, currentFn, env)
	case *ast.Call:
		for _, arg := range e.Args {
			collectExprEffects(arg, directs, edges, currentFn, env)
		}
	case *ast.MethodCall:
		collectExprEffects(e.Object, directs, edges, currentFn, env)
		for _, arg := range e.Args {
			collectExprEffects(arg, directs, edges, currentFn, env)
		}
	case *ast.StructLit:
		for _, f := range e.Fields {
			collectExprEffects(f.Value, directs, edges, currentFn, env)
		}
	case *ast.FieldAccess:
		collectExprEffects(e.Object, directs, edges, currentFn, env)
	case *ast.ArrayLit:
		for _, el := range e.Elements {
			collectExprEffects(el, directs, edges, currentFn, env)
		}
	case *ast.Index:
		collectExprEffects(e.Object, directs, edges, currentFn, env)
		collectExprEffects(e.Idx, directs, edges, currentFn, env)
	case *ast.EnumData:
		for _, f := range e.Fields {
			collectExprEffects(f.Value, directs, edges, currentFn, env)
		}
	case *ast.StringInterp:
		for _, p := range e.Parts {
			if p.Expr != nil {
				collectExprEffects(p.Expr, directs, edges, currentFn, env)
			}
		}
	case *ast.MapLit:
		for _, entry := range e.Entries {
			collectExprEffects(entry.Key, directs, edges, currentFn, env)
			collectExprEffects(entry.Value, directs, edges, currentFn, env)
		}
	case *ast.SetLit:
		for _, el := range e.Elements {
			collectExprEffects(el, directs, edges, currentFn, env)
		}
	case *ast.RangeExpr:
		collectExprEffects(e.Start, directs, edges, currentFn, env)
		collectExprEffects(e.End, directs, edges, currentFn, env)
	case *ast.NullPropagate:
		collectExprEffects(e.Value, directs, edges, currentFn, env)
	case *ast.IfExpr:
		collectExprEffects(e.Cond, directs, edges, currentFn, env)
		collectBlockEffects(e.Then, directs, edges, currentFn, env)
		collectBlockEffects(e.Else, directs, edges, currentFn, env)
	case *ast.MatchExpr:
		collectExprEffects(e.Scrutinee, directs, edges, currentFn, env)
		for _, arm := range e.Arms {
			collectExprEffects(arm.Value, directs, edges, currentFn, env)
		}
	}
}

// EnforceErrorHandling rejects bare calls to fallible callees (they need !
// or catch), ! or catch on infallible callees, and ! inside spawn
// arguments.
func EnforceErrorHandling(program *ast.Program, env *Env) *diagnostics.CompileError {
	enforceOwner := func(owner string, methods []*ast.Function) *diagnostics.CompileError {
		for _, m := range methods {
			if err := enforceBlock(m.Body, types.MangleMethod(owner, m.Name.Value), env); err != nil {
				return err
			}
		}
		return nil
	}
	for _, fn := range program.Functions {
		if fn.IsGeneric() {
			continue
		}
		if err := enforceBlock(fn.Body, fn.Name.Value, env); err != nil {
			return err
		}
	}
	for _, c := range program.Classes {
		if c.IsGeneric() {
			continue
		}
		if err := enforceOwner(c.Name.Value, c.Methods); err != nil {
			return err
		}
		ownMethods := map[string]bool{}
		for _, m := range c.Methods {
			ownMethods[m.Name.Value] = true
		}
		for _, traitName := range c.ImplTraits {
			for _, t := range program.Traits {
				if t.Name.Value != traitName.Value {
					continue
				}
				for _, tm := range t.Methods {
					if tm.Body != nil && !ownMethods[tm.Name.Value] {
						if err := enforceBlock(tm.Body, types.MangleMethod(c.Name.Value, tm.Name.Value), env); err != nil {
							return err
						}
					}
				}
			}
		}
	}
	if program.App != nil {
		if err := enforceOwner(program.App.Name.Value, program.App.Methods); err != nil {
			return err
		}
	}
	for _, s := range program.Stages {
		if err := enforceOwner(s.Name.Value, s.Methods); err != nil {
			return err
		}
	}
	return nil
}

func enforceBlock(b *ast.Block, currentFn string, env *Env) *diagnostics.CompileError {
	for _, stmt := range b.Stmts {
		if err := enforceStmt(stmt, currentFn, env); err != nil {
			return err
		}
	}
	return nil
}

func enforceStmt(stmt ast.Stmt, currentFn string, env *Env) *diagnostics.CompileError {
	switch s := stmt.(type) {
	case *ast.Let:
		return enforceExpr(s.Value, currentFn, env)
	case *ast.ExprStmt:
		return enforceExpr(s.Value, currentFn, env)
	case *ast.Return:
		if s.Value != nil {
			return enforceExpr(s.Value, currentFn, env)
		}
		return nil
	case *ast.Assign:
		return enforceExpr(s.Value, currentFn, env)
	case *ast.FieldAssign:
		if err := enforceExpr(s.Object, currentFn, env); err != nil {
			return err
		}
		return enforceExpr(s.Value, currentFn, env)
	case *ast.IndexAssign:
		if err := enforceExpr(s.Object, currentFn, env); err != nil {
			return err
		}
		if err := enforceExpr(s.Idx, currentFn, env); err != nil {
			return err
		}
		return enforceExpr(s.Value, currentFn, env)
	case *ast.If:
		if err := enforceExpr(s.Cond, currentFn, env); err != nil {
			return err
		}
		if err := enforceBlock(s.Then, currentFn, env); err != nil {
			return err
		}
		if s.Else != nil {
			return enforceBlock(s.Else, currentFn, env)
		}
		return nil
	case *ast.While:
		if err := enforceExpr(s.Cond, currentFn, env); err != nil {
			return err
		}
		return enforceBlock(s.Body, currentFn, env)
	case *ast.For:
		if err := enforceExpr(s.Iterable, currentFn, env); err != nil {
			return err
		}
		return enforceBlock(s.Body, currentFn, env)
	case *ast.Match:
		if err := enforceExpr(s.Scrutinee, currentFn, env); err != nil {
			return err
		}
		for _, arm := range s.Arms {
			if err := enforceBlock(arm.Body, currentFn, env); err != nil {
				return err
			}
		}
		return nil
	case *ast.Raise:
		for _, f := range s.Fields {
			if err := enforceExpr(f.Value, currentFn, env); err != nil {
				return err
			}
		}
		return nil
	case *ast.Assert:
		return enforceExpr(s.Cond, currentFn, env)
	case *ast.LetChan:
		if s.Capacity != nil {
			return enforceExpr(s.Capacity, currentFn, env)
		}
		return nil
	case *ast.Select:
		for _, arm := range s.Arms {
			switch op := arm.Op.(type) {
			case *ast.SelectRecv:
				if err := enforceExpr(op.Channel, currentFn, env); err != nil {
					return err
				}
			case *ast.SelectSend:
				if err := enforceExpr(op.Channel, currentFn, env); err != nil {
					return err
				}
				if err := enforceExpr(op.Value, currentFn, env); err != nil {
					return err
				}
			}
			if err := enforceBlock(arm.Body, currentFn, env); err != nil {
				return err
			}
		}
		if s.Default != nil {
			return enforceBlock(s.Default, currentFn, env)
		}
		return nil
	case *ast.Scope:
		for _, seed := range s.Seeds {
			if err := enforceExpr(seed, currentFn, env); err != nil {
				return err
			}
		}
		return enforceBlock(s.Body, currentFn, env)
	case *ast.Yield:
		return enforceExpr(s.Value, currentFn, env)
	}
	return nil
}

func enforceExpr(e ast.Expr, currentFn string, env *Env) *diagnostics.CompileError {
	switch e := e.(type) {
	case *ast.Call:
		for _, arg := range e.Args {
			if err := enforceExpr(arg, currentFn, env); err != nil {
				return err
			}
		}
		if isFallibleCall(e, currentFn, env) {
			return diagnostics.EffectErrf(e.Sp,
				"call to fallible function '%s' must be handled with ! or catch", e.FuncName.Value)
		}
		return nil
	case *ast.MethodCall:
		if err := enforceExpr(e.Object, currentFn, env); err != nil {
			return err
		}
		for _, arg := range e.Args {
			if err := enforceExpr(arg, currentFn, env); err != nil {
				return err
			}
		}
		fallible, resolved := env.ResolveMethodFallibility(currentFn, e.Method.Sp.Start)
		if !resolved {
			return diagnostics.Internalf(e.Method.Sp,
				"unresolved method resolution at span %d in fn '%s'", e.Method.Sp.Start, currentFn)
		}
		if fallible {
			return diagnostics.EffectErrf(e.Sp,
				"call to fallible method '%s' must be handled with ! or catch", e.Method.Value)
		}
		return nil
	case *ast.Propagate:
		switch inner := e.Value.(type) {
		case *ast.Call:
			for _, arg := range inner.Args {
				if err := enforceExpr(arg, currentFn, env); err != nil {
					return err
				}
			}
			if !isFallibleCall(inner, currentFn, env) {
				return diagnostics.EffectErrf(e.Sp, "'!' applied to infallible function '%s'", inner.FuncName.Value)
			}
			return nil
		case *ast.MethodCall:
			if err := enforceExpr(inner.Object, currentFn, env); err != nil {
				return err
			}
			for _, arg := range inner.Args {
				if err := enforceExpr(arg, currentFn, env); err != nil {
					return err
				}
			}
			fallible, resolved := env.ResolveMethodFallibility(currentFn, inner.Method.Sp.Start)
			if !resolved {
				return diagnostics.Internalf(inner.Method.Sp,
					"unresolved method resolution at span %d in fn '%s'", inner.Method.Sp.Start, currentFn)
			}
			if !fallible {
				return diagnostics.EffectErrf(e.Sp, "'!' applied to infallible method '%s'", inner.Method.Value)
			}
			return nil
		}
		return diagnostics.EffectErrf(e.Value.Span(), "! can only be applied to function calls")
	case *ast.Catch:
		switch inner := e.Value.(type) {
		case *ast.Call:
			for _, arg := range inner.Args {
				if err := enforceExpr(arg, currentFn, env); err != nil {
					return err
				}
			}
			if !isFallibleCall(inner, currentFn, env) {
				return diagnostics.EffectErrf(e.Sp, "catch applied to infallible function '%s'", inner.FuncName.Value)
			}
		case *ast.MethodCall:
			if err := enforceExpr(inner.Object, currentFn, env); err != nil {
				return err
			}
			for _, arg := range inner.Args {
				if err := enforceExpr(arg, currentFn, env); err != nil {
					return err
				}
			}
			fallible, resolved := env.ResolveMethodFallibility(currentFn, inner.Method.Sp.Start)
			if !resolved {
				return diagnostics.Internalf(inner.Method.Sp,
					"unresolved method resolution at span %d in fn '%s'", inner.Method.Sp.Start, currentFn)
			}
			if !fallible {
				return diagnostics.EffectErrf(e.Sp, "catch applied to infallible method '%s'", inner.Method.Value)
			}
		default:
			return diagnostics.EffectErrf(e.Value.Span(), "catch can only be applied to function calls")
		}
		switch h := e.Handler.(type) {
		case *ast.CatchShorthand:
			return enforceExpr(h.Fallback, currentFn, env)
		case *ast.CatchWildcard:
			return enforceExpr(h.Body, currentFn, env)
		}
		return nil
	case *ast.Spawn:
		// Enforce spawn arg expressions and reject ! inside them: the
		// propagation would need handling at spawn time, which has no
		// caller to propagate to. The inner call itself is not enforced -
		// its errors surface at .get().
		if closure, ok := e.Call.(*ast.Closure); ok {
			for _, stmt := range closure.Body.Stmts {
				ret, isRet := stmt.(*ast.Return)
				if !isRet || ret.Value == nil {
					continue
				}
				if call, isCall := ret.Value.(*ast.Call); isCall {
					for _, arg := range call.Args {
						if err := enforceExpr(arg, currentFn, env); err != nil {
							return err
						}
						if ast.ContainsPropagate(arg) {
							return diagnostics.EffectErrf(arg.Span(),
								"error propagation (!) is not allowed in spawn arguments; evaluate before spawn")
						}
					}
				}
			}
		}
		return nil
	case *ast.BinOp:
		if err := enforceExpr(e.LHS, currentFn, env); err != nil {
			return err
		}
		return enforceExpr(e.RHS, currentFn, env)
	case *ast.UnaryOp:
		return enforceExpr(e.Operand, currentFn, env)
	case *ast.Cast:
		return enforceExpr(e.Value, currentFn, env)
	case *ast.StructLit:
		for _, f := range e.Fields {
			if err := enforceExpr(f.Value, currentFn, env); err != nil {
				return err
			}
		}
		return nil
	case *ast.FieldAccess:
		return enforceExpr(e.Object, currentFn, env)
	case *ast.ArrayLit:
		for _, el := range e.Elements {
			if err := enforceExpr(el, currentFn, env); err != nil {
				return err
			}
		}
		return nil
	case *ast.Index:
		if err := enforceExpr(e.Object, currentFn, env); err != nil {
			return err
		}
		return enforceExpr(e.Idx, currentFn, env)
	case *ast.EnumData:
		for _, f := range e.Fields {
			if err := enforceExpr(f.Value, currentFn, env); err != nil {
				return err
			}
		}
		return nil
	case *ast.StringInterp:
		for _, p := range e.Parts {
			if p.Expr != nil {
				if err := enforceExpr(p.Expr, currentFn, env); err != nil {
					return err
				}
			}
		}
		return nil
	case *ast.Closure:
		return enforceBlock(e.Body, currentFn, env)
	case *ast.MapLit:
		for _, entry := range e.Entries {
			if err := enforceExpr(entry.Key, currentFn, env); err != nil {
				return err
			}
			if err := enforceExpr(entry.Value, currentFn, env); err != nil {
				return err
			}
		}
		return nil
	case *ast.SetLit:
		for _, el := range e.Elements {
			if err := enforceExpr(el, currentFn, env); err != nil {
				return err
			}
		}
		return nil
	case *ast.RangeExpr:
		if err := enforceExpr(e.Start, currentFn, env); err != nil {
			return err
		}
		return enforceExpr(e.End, currentFn, env)
	case *ast.NullPropagate:
		return enforceExpr(e.Value, currentFn, env)
	case *ast.IfExpr:
		if err := enforceExpr(e.Cond, currentFn, env); err != nil {
			return err
		}
		if err := enforceBlock(e.Then, currentFn, env); err != nil {
			return err
		}
		return enforceBlock(e.Else, currentFn, env)
	case *ast.MatchExpr:
		if err := enforceExpr(e.Scrutinee, currentFn, env); err != nil {
			return err
		}
		for _, arm := range e.Arms {
			if err := enforceExpr(arm.Value, currentFn, env); err != nil {
				return err
			}
		}
		return nil
	}
	return nil
}

// isFallibleCall reports whether a named call is fallible: the fallible-pow
// case or a function with a non-empty error set.
func isFallibleCall(call *ast.Call, currentFn string, env *Env) bool {
	if call.FuncName.Value == "pow" &&
		env.FallibleBuiltinCalls[FnSpanKey{Fn: currentFn, Start: call.FuncName.Sp.Start}] {
		return true
	}
	return env.IsFnFallible(call.FuncName.Value)
}
