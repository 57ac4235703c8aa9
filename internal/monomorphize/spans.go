package monomorphize

import "github.com/plutolang/pluto/internal/ast"

// Span offsetting moves every span of a clone into its own virtual range so
// span-keyed side tables never collide between instantiations (or with the
// template).

func offsetFunctionSpans(f *ast.Function, offset int) {
	f.Name.Sp = f.Name.Sp.Offset(offset)
	for i := range f.Params {
		f.Params[i].Name.Sp = f.Params[i].Name.Sp.Offset(offset)
		offsetTypeExprSpans(f.Params[i].Type, offset)
	}
	offsetTypeExprSpans(f.ReturnType, offset)
	for _, c := range f.Contracts {
		c.Sp = c.Sp.Offset(offset)
		offsetExprSpans(c.Expr, offset)
	}
	offsetBlockSpans(f.Body, offset)
}

func offsetClassSpans(c *ast.ClassDecl, offset int) {
	c.Name.Sp = c.Name.Sp.Offset(offset)
	for i := range c.Fields {
		c.Fields[i].Name.Sp = c.Fields[i].Name.Sp.Offset(offset)
		offsetTypeExprSpans(c.Fields[i].Type, offset)
	}
	for _, m := range c.Methods {
		offsetFunctionSpans(m, offset)
		m.Sp = m.Sp.Offset(offset)
	}
	for _, inv := range c.Invariants {
		inv.Sp = inv.Sp.Offset(offset)
		offsetExprSpans(inv.Expr, offset)
	}
}

func offsetEnumSpans(e *ast.EnumDecl, offset int) {
	e.Name.Sp = e.Name.Sp.Offset(offset)
	for i := range e.Variants {
		e.Variants[i].Name.Sp = e.Variants[i].Name.Sp.Offset(offset)
		for j := range e.Variants[i].Fields {
			e.Variants[i].Fields[j].Name.Sp = e.Variants[i].Fields[j].Name.Sp.Offset(offset)
			offsetTypeExprSpans(e.Variants[i].Fields[j].Type, offset)
		}
	}
}

func offsetTypeExprSpans(te ast.TypeExpr, offset int) {
	if te == nil {
		return
	}
	switch t := te.(type) {
	case *ast.NamedType:
		t.Sp = t.Sp.Offset(offset)
	case *ast.ArrayType:
		t.Sp = t.Sp.Offset(offset)
		offsetTypeExprSpans(t.Elem, offset)
	case *ast.FnType:
		t.Sp = t.Sp.Offset(offset)
		for _, p := range t.Params {
			offsetTypeExprSpans(p, offset)
		}
		offsetTypeExprSpans(t.ReturnType, offset)
	case *ast.GenericType:
		t.Sp = t.Sp.Offset(offset)
		for _, a := range t.TypeArgs {
			offsetTypeExprSpans(a, offset)
		}
	case *ast.NullableType:
		t.Sp = t.Sp.Offset(offset)
		offsetTypeExprSpans(t.Inner, offset)
	case *ast.StreamType:
		t.Sp = t.Sp.Offset(offset)
		offsetTypeExprSpans(t.Elem, offset)
	}
}

func offsetBlockSpans(b *ast.Block, offset int) {
	if b == nil {
		return
	}
	b.Sp = b.Sp.Offset(offset)
	for _, stmt := range b.Stmts {
		offsetStmtSpans(stmt, offset)
	}
}

func offsetStmtSpans(stmt ast.Stmt, offset int) {
	switch s := stmt.(type) {
	case *ast.Let:
		s.Sp = s.Sp.Offset(offset)
		s.Name.Sp = s.Name.Sp.Offset(offset)
		offsetTypeExprSpans(s.Type, offset)
		offsetExprSpans(s.Value, offset)
	case *ast.Assign:
		s.Sp = s.Sp.Offset(offset)
		s.Target.Sp = s.Target.Sp.Offset(offset)
		offsetExprSpans(s.Value, offset)
	case *ast.FieldAssign:
		s.Sp = s.Sp.Offset(offset)
		s.Field.Sp = s.Field.Sp.Offset(offset)
		offsetExprSpans(s.Object, offset)
		offsetExprSpans(s.Value, offset)
	case *ast.IndexAssign:
		s.Sp = s.Sp.Offset(offset)
		offsetExprSpans(s.Object, offset)
		offsetExprSpans(s.Idx, offset)
		offsetExprSpans(s.Value, offset)
	case *ast.Return:
		s.Sp = s.Sp.Offset(offset)
		offsetExprSpans(s.Value, offset)
	case *ast.If:
		s.Sp = s.Sp.Offset(offset)
		offsetExprSpans(s.Cond, offset)
		offsetBlockSpans(s.Then, offset)
		offsetBlockSpans(s.Else, offset)
	case *ast.While:
		s.Sp = s.Sp.Offset(offset)
		offsetExprSpans(s.Cond, offset)
		offsetBlockSpans(s.Body, offset)
	case *ast.For:
		s.Sp = s.Sp.Offset(offset)
		s.Var.Sp = s.Var.Sp.Offset(offset)
		offsetExprSpans(s.Iterable, offset)
		offsetBlockSpans(s.Body, offset)
	case *ast.Match:
		s.Sp = s.Sp.Offset(offset)
		offsetExprSpans(s.Scrutinee, offset)
		for i := range s.Arms {
			s.Arms[i].EnumName.Sp = s.Arms[i].EnumName.Sp.Offset(offset)
			s.Arms[i].Variant.Sp = s.Arms[i].Variant.Sp.Offset(offset)
			offsetBlockSpans(s.Arms[i].Body, offset)
		}
	case *ast.Raise:
		s.Sp = s.Sp.Offset(offset)
		s.ErrorName.Sp = s.ErrorName.Sp.Offset(offset)
		for i := range s.Fields {
			s.Fields[i].Name.Sp = s.Fields[i].Name.Sp.Offset(offset)
			offsetExprSpans(s.Fields[i].Value, offset)
		}
	case *ast.Assert:
		s.Sp = s.Sp.Offset(offset)
		offsetExprSpans(s.Cond, offset)
	case *ast.Break:
		s.Sp = s.Sp.Offset(offset)
	case *ast.Continue:
		s.Sp = s.Sp.Offset(offset)
	case *ast.ExprStmt:
		s.Sp = s.Sp.Offset(offset)
		offsetExprSpans(s.Value, offset)
	case *ast.LetChan:
		s.Sp = s.Sp.Offset(offset)
		s.Sender.Sp = s.Sender.Sp.Offset(offset)
		s.Receiver.Sp = s.Receiver.Sp.Offset(offset)
		offsetTypeExprSpans(s.ElemType, offset)
		offsetExprSpans(s.Capacity, offset)
	case *ast.Select:
		s.Sp = s.Sp.Offset(offset)
		for i := range s.Arms {
			switch op := s.Arms[i].Op.(type) {
			case *ast.SelectRecv:
				op.Binding.Sp = op.Binding.Sp.Offset(offset)
				offsetExprSpans(op.Channel, offset)
			case *ast.SelectSend:
				offsetExprSpans(op.Channel, offset)
				offsetExprSpans(op.Value, offset)
			}
			offsetBlockSpans(s.Arms[i].Body, offset)
		}
		offsetBlockSpans(s.Default, offset)
	case *ast.Scope:
		s.Sp = s.Sp.Offset(offset)
		for _, seed := range s.Seeds {
			offsetExprSpans(seed, offset)
		}
		for i := range s.Bindings {
			s.Bindings[i].Name.Sp = s.Bindings[i].Name.Sp.Offset(offset)
			offsetTypeExprSpans(s.Bindings[i].Type, offset)
		}
		offsetBlockSpans(s.Body, offset)
	case *ast.Yield:
		s.Sp = s.Sp.Offset(offset)
		offsetExprSpans(s.Value, offset)
	}
}

func offsetExprSpans(e ast.Expr, offset int) {
	if e == nil {
		return
	}
	switch e := e.(type) {
	case *ast.IntLit:
		e.Sp = e.Sp.Offset(offset)
	case *ast.FloatLit:
		e.Sp = e.Sp.Offset(offset)
	case *ast.BoolLit:
		e.Sp = e.Sp.Offset(offset)
	case *ast.StringLit:
		e.Sp = e.Sp.Offset(offset)
	case *ast.NoneLit:
		e.Sp = e.Sp.Offset(offset)
	case *ast.Ident:
		e.Sp = e.Sp.Offset(offset)
	case *ast.StringInterp:
		e.Sp = e.Sp.Offset(offset)
		for _, p := range e.Parts {
			offsetExprSpans(p.Expr, offset)
		}
	case *ast.BinOp:
		e.Sp = e.Sp.Offset(offset)
		offsetExprSpans(e.LHS, offset)
		offsetExprSpans(e.RHS, offset)
	case *ast.UnaryOp:
		e.Sp = e.Sp.Offset(offset)
		offsetExprSpans(e.Operand, offset)
	case *ast.Cast:
		e.Sp = e.Sp.Offset(offset)
		offsetExprSpans(e.Value, offset)
		offsetTypeExprSpans(e.Target, offset)
	case *ast.Call:
		e.Sp = e.Sp.Offset(offset)
		e.FuncName.Sp = e.FuncName.Sp.Offset(offset)
		for _, ta := range e.TypeArgs {
			offsetTypeExprSpans(ta, offset)
		}
		for _, a := range e.Args {
			offsetExprSpans(a, offset)
		}
	case *ast.MethodCall:
		e.Sp = e.Sp.Offset(offset)
		e.Method.Sp = e.Method.Sp.Offset(offset)
		offsetExprSpans(e.Object, offset)
		for _, a := range e.Args {
			offsetExprSpans(a, offset)
		}
	case *ast.StaticTraitCall:
		e.Sp = e.Sp.Offset(offset)
		e.TraitName.Sp = e.TraitName.Sp.Offset(offset)
		e.MethodName.Sp = e.MethodName.Sp.Offset(offset)
		for _, ta := range e.TypeArgs {
			offsetTypeExprSpans(ta, offset)
		}
		for _, a := range e.Args {
			offsetExprSpans(a, offset)
		}
	case *ast.FieldAccess:
		e.Sp = e.Sp.Offset(offset)
		e.Field.Sp = e.Field.Sp.Offset(offset)
		offsetExprSpans(e.Object, offset)
	case *ast.StructLit:
		e.Sp = e.Sp.Offset(offset)
		e.ClassName.Sp = e.ClassName.Sp.Offset(offset)
		for _, ta := range e.TypeArgs {
			offsetTypeExprSpans(ta, offset)
		}
		for i := range e.Fields {
			e.Fields[i].Name.Sp = e.Fields[i].Name.Sp.Offset(offset)
			offsetExprSpans(e.Fields[i].Value, offset)
		}
	case *ast.ArrayLit:
		e.Sp = e.Sp.Offset(offset)
		for _, el := range e.Elements {
			offsetExprSpans(el, offset)
		}
	case *ast.MapLit:
		e.Sp = e.Sp.Offset(offset)
		offsetTypeExprSpans(e.KeyType, offset)
		offsetTypeExprSpans(e.ValueType, offset)
		for _, entry := range e.Entries {
			offsetExprSpans(entry.Key, offset)
			offsetExprSpans(entry.Value, offset)
		}
	case *ast.SetLit:
		e.Sp = e.Sp.Offset(offset)
		offsetTypeExprSpans(e.ElemType, offset)
		for _, el := range e.Elements {
			offsetExprSpans(el, offset)
		}
	case *ast.Index:
		e.Sp = e.Sp.Offset(offset)
		offsetExprSpans(e.Object, offset)
		offsetExprSpans(e.Idx, offset)
	case *ast.EnumUnit:
		e.Sp = e.Sp.Offset(offset)
		e.EnumName.Sp = e.EnumName.Sp.Offset(offset)
		e.Variant.Sp = e.Variant.Sp.Offset(offset)
		for _, ta := range e.TypeArgs {
			offsetTypeExprSpans(ta, offset)
		}
	case *ast.EnumData:
		e.Sp = e.Sp.Offset(offset)
		e.EnumName.Sp = e.EnumName.Sp.Offset(offset)
		e.Variant.Sp = e.Variant.Sp.Offset(offset)
		for _, ta := range e.TypeArgs {
			offsetTypeExprSpans(ta, offset)
		}
		for i := range e.Fields {
			e.Fields[i].Name.Sp = e.Fields[i].Name.Sp.Offset(offset)
			offsetExprSpans(e.Fields[i].Value, offset)
		}
	case *ast.RangeExpr:
		e.Sp = e.Sp.Offset(offset)
		offsetExprSpans(e.Start, offset)
		offsetExprSpans(e.End, offset)
	case *ast.Closure:
		e.Sp = e.Sp.Offset(offset)
		for i := range e.Params {
			e.Params[i].Name.Sp = e.Params[i].Name.Sp.Offset(offset)
			offsetTypeExprSpans(e.Params[i].Type, offset)
		}
		offsetTypeExprSpans(e.ReturnType, offset)
		offsetBlockSpans(e.Body, offset)
	case *ast.ClosureCreate:
		e.Sp = e.Sp.Offset(offset)
	case *ast.Propagate:
		e.Sp = e.Sp.Offset(offset)
		offsetExprSpans(e.Value, offset)
	case *ast.NullPropagate:
		e.Sp = e.Sp.Offset(offset)
		offsetExprSpans(e.Value, offset)
	case *ast.Catch:
		e.Sp = e.Sp.Offset(offset)
		offsetExprSpans(e.Value, offset)
		switch h := e.Handler.(type) {
		case *ast.CatchShorthand:
			offsetExprSpans(h.Fallback, offset)
		case *ast.CatchWildcard:
			h.ErrName.Sp = h.ErrName.Sp.Offset(offset)
			offsetExprSpans(h.Body, offset)
		}
	case *ast.Spawn:
		e.Sp = e.Sp.Offset(offset)
		offsetExprSpans(e.Call, offset)
	case *ast.IfExpr:
		e.Sp = e.Sp.Offset(offset)
		offsetExprSpans(e.Cond, offset)
		offsetBlockSpans(e.Then, offset)
		offsetBlockSpans(e.Else, offset)
	case *ast.MatchExpr:
		e.Sp = e.Sp.Offset(offset)
		offsetExprSpans(e.Scrutinee, offset)
		for i := range e.Arms {
			e.Arms[i].EnumName.Sp = e.Arms[i].EnumName.Sp.Offset(offset)
			e.Arms[i].Variant.Sp = e.Arms[i].Variant.Sp.Offset(offset)
			offsetExprSpans(e.Arms[i].Value, offset)
		}
	}
}
