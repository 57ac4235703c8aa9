package monomorphize

import "github.com/plutolang/pluto/internal/ast"

// Type-parameter substitution over TypeExpr annotations in a clone. A bare
// Named("T") with a binding is replaced wholesale; compound forms recurse.

func substituteTypeExpr(te ast.TypeExpr, bindings map[string]ast.TypeExpr) ast.TypeExpr {
	if te == nil {
		return nil
	}
	switch t := te.(type) {
	case *ast.NamedType:
		if replacement, ok := bindings[t.Name]; ok {
			return cloneTypeExpr(replacement)
		}
		return t
	case *ast.ArrayType:
		t.Elem = substituteTypeExpr(t.Elem, bindings)
		return t
	case *ast.FnType:
		for i := range t.Params {
			t.Params[i] = substituteTypeExpr(t.Params[i], bindings)
		}
		t.ReturnType = substituteTypeExpr(t.ReturnType, bindings)
		return t
	case *ast.GenericType:
		for i := range t.TypeArgs {
			t.TypeArgs[i] = substituteTypeExpr(t.TypeArgs[i], bindings)
		}
		return t
	case *ast.NullableType:
		t.Inner = substituteTypeExpr(t.Inner, bindings)
		return t
	case *ast.StreamType:
		t.Elem = substituteTypeExpr(t.Elem, bindings)
		return t
	}
	return te
}

func substituteInFunction(f *ast.Function, bindings map[string]ast.TypeExpr) {
	for i := range f.Params {
		f.Params[i].Type = substituteTypeExpr(f.Params[i].Type, bindings)
	}
	f.ReturnType = substituteTypeExpr(f.ReturnType, bindings)
	substituteInBlock(f.Body, bindings)
}

func substituteInClass(c *ast.ClassDecl, bindings map[string]ast.TypeExpr) {
	for i := range c.Fields {
		c.Fields[i].Type = substituteTypeExpr(c.Fields[i].Type, bindings)
	}
	for _, m := range c.Methods {
		substituteInFunction(m, bindings)
	}
	for _, inv := range c.Invariants {
		substituteInExpr(inv.Expr, bindings)
	}
}

func substituteInEnum(e *ast.EnumDecl, bindings map[string]ast.TypeExpr) {
	for i := range e.Variants {
		for j := range e.Variants[i].Fields {
			e.Variants[i].Fields[j].Type = substituteTypeExpr(e.Variants[i].Fields[j].Type, bindings)
		}
	}
}

func substituteInBlock(b *ast.Block, bindings map[string]ast.TypeExpr) {
	if b == nil {
		return
	}
	for _, stmt := range b.Stmts {
		substituteInStmt(stmt, bindings)
	}
}

func substituteInStmt(stmt ast.Stmt, bindings map[string]ast.TypeExpr) {
	switch s := stmt.(type) {
	case *ast.Let:
		s.Type = substituteTypeExpr(s.Type, bindings)
		substituteInExpr(s.Value, bindings)
	case *ast.Assign:
		substituteInExpr(s.Value, bindings)
	case *ast.FieldAssign:
		substituteInExpr(s.Object, bindings)
		substituteInExpr(s.Value, bindings)
	case *ast.IndexAssign:
		substituteInExpr(s.Object, bindings)
		substituteInExpr(s.Idx, bindings)
		substituteInExpr(s.Value, bindings)
	case *ast.Return:
		substituteInExpr(s.Value, bindings)
	case *ast.If:
		substituteInExpr(s.Cond, bindings)
		substituteInBlock(s.Then, bindings)
		substituteInBlock(s.Else, bindings)
	case *ast.While:
		substituteInExpr(s.Cond, bindings)
		substituteInBlock(s.Body, bindings)
	case *ast.For:
		substituteInExpr(s.Iterable, bindings)
		substituteInBlock(s.Body, bindings)
	case *ast.Match:
		substituteInExpr(s.Scrutinee, bindings)
		for _, arm := range s.Arms {
			substituteInBlock(arm.Body, bindings)
		}
	case *ast.Raise:
		for _, f := range s.Fields {
			substituteInExpr(f.Value, bindings)
		}
	case *ast.Assert:
		substituteInExpr(s.Cond, bindings)
	case *ast.ExprStmt:
		substituteInExpr(s.Value, bindings)
	case *ast.LetChan:
		s.ElemType = substituteTypeExpr(s.ElemType, bindings)
		substituteInExpr(s.Capacity, bindings)
	case *ast.Select:
		for _, arm := range s.Arms {
			switch op := arm.Op.(type) {
			case *ast.SelectRecv:
				substituteInExpr(op.Channel, bindings)
			case *ast.SelectSend:
				substituteInExpr(op.Channel, bindings)
				substituteInExpr(op.Value, bindings)
			}
			substituteInBlock(arm.Body, bindings)
		}
		substituteInBlock(s.Default, bindings)
	case *ast.Scope:
		for _, seed := range s.Seeds {
			substituteInExpr(seed, bindings)
		}
		for i := range s.Bindings {
			s.Bindings[i].Type = substituteTypeExpr(s.Bindings[i].Type, bindings)
		}
		substituteInBlock(s.Body, bindings)
	case *ast.Yield:
		substituteInExpr(s.Value, bindings)
	}
}

func substituteInExpr(e ast.Expr, bindings map[string]ast.TypeExpr) {
	if e == nil {
		return
	}
	switch e := e.(type) {
	case *ast.BinOp:
		substituteInExpr(e.LHS, bindings)
		substituteInExpr(e.RHS, bindings)
	case *ast.UnaryOp:
		substituteInExpr(e.Operand, bindings)
	case *ast.Cast:
		e.Target = substituteTypeExpr(e.Target, bindings)
		substituteInExpr(e.Value, bindings)
	case *ast.Call:
		for i := range e.TypeArgs {
			e.TypeArgs[i] = substituteTypeExpr(e.TypeArgs[i], bindings)
		}
		for _, a := range e.Args {
			substituteInExpr(a, bindings)
		}
	case *ast.MethodCall:
		substituteInExpr(e.Object, bindings)
		for _, a := range e.Args {
			substituteInExpr(a, bindings)
		}
	case *ast.StaticTraitCall:
		for i := range e.TypeArgs {
			e.TypeArgs[i] = substituteTypeExpr(e.TypeArgs[i], bindings)
		}
		for _, a := range e.Args {
			substituteInExpr(a, bindings)
		}
	case *ast.FieldAccess:
		substituteInExpr(e.Object, bindings)
	case *ast.StructLit:
		for i := range e.TypeArgs {
			e.TypeArgs[i] = substituteTypeExpr(e.TypeArgs[i], bindings)
		}
		for _, f := range e.Fields {
			substituteInExpr(f.Value, bindings)
		}
	case *ast.ArrayLit:
		for _, el := range e.Elements {
			substituteInExpr(el, bindings)
		}
	case *ast.MapLit:
		e.KeyType = substituteTypeExpr(e.KeyType, bindings)
		e.ValueType = substituteTypeExpr(e.ValueType, bindings)
		for _, entry := range e.Entries {
			substituteInExpr(entry.Key, bindings)
			substituteInExpr(entry.Value, bindings)
		}
	case *ast.SetLit:
		e.ElemType = substituteTypeExpr(e.ElemType, bindings)
		for _, el := range e.Elements {
			substituteInExpr(el, bindings)
		}
	case *ast.Index:
		substituteInExpr(e.Object, bindings)
		substituteInExpr(e.Idx, bindings)
	case *ast.EnumUnit:
		for i := range e.TypeArgs {
			e.TypeArgs[i] = substituteTypeExpr(e.TypeArgs[i], bindings)
		}
	case *ast.EnumData:
		for i := range e.TypeArgs {
			e.TypeArgs[i] = substituteTypeExpr(e.TypeArgs[i], bindings)
		}
		for _, f := range e.Fields {
			substituteInExpr(f.Value, bindings)
		}
	case *ast.RangeExpr:
		substituteInExpr(e.Start, bindings)
		substituteInExpr(e.End, bindings)
	case *ast.Closure:
		for i := range e.Params {
			e.Params[i].Type = substituteTypeExpr(e.Params[i].Type, bindings)
		}
		e.ReturnType = substituteTypeExpr(e.ReturnType, bindings)
		substituteInBlock(e.Body, bindings)
	case *ast.Propagate:
		substituteInExpr(e.Value, bindings)
	case *ast.NullPropagate:
		substituteInExpr(e.Value, bindings)
	case *ast.Catch:
		substituteInExpr(e.Value, bindings)
		switch h := e.Handler.(type) {
		case *ast.CatchShorthand:
			substituteInExpr(h.Fallback, bindings)
		case *ast.CatchWildcard:
			substituteInExpr(h.Body, bindings)
		}
	case *ast.Spawn:
		substituteInExpr(e.Call, bindings)
	case *ast.StringInterp:
		for _, p := range e.Parts {
			substituteInExpr(p.Expr, bindings)
		}
	case *ast.IfExpr:
		substituteInExpr(e.Cond, bindings)
		substituteInBlock(e.Then, bindings)
		substituteInBlock(e.Else, bindings)
	case *ast.MatchExpr:
		substituteInExpr(e.Scrutinee, bindings)
		for _, arm := range e.Arms {
			substituteInExpr(arm.Value, bindings)
		}
	}
}
