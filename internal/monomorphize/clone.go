package monomorphize

import (
	"github.com/google/uuid"

	"github.com/plutolang/pluto/internal/ast"
)

// Deep clones for the instantiation templates. Every nested declaration
// identity is reassigned so clones never alias the template's ids.

func cloneFunction(f *ast.Function) *ast.Function {
	out := &ast.Function{
		ID:          f.ID,
		Name:        f.Name,
		Params:      cloneParams(f.Params),
		ReturnType:  cloneTypeExpr(f.ReturnType),
		Body:        cloneBlock(f.Body),
		IsPub:       f.IsPub,
		IsOverride:  f.IsOverride,
		IsGenerator: f.IsGenerator,
		Sp:          f.Sp,
	}
	for _, tp := range f.TypeParams {
		out.TypeParams = append(out.TypeParams, ast.TypeParam{
			Name:   tp.Name,
			Bounds: append([]ast.Name(nil), tp.Bounds...),
		})
	}
	for _, c := range f.Contracts {
		out.Contracts = append(out.Contracts, &ast.Contract{Kind: c.Kind, Expr: cloneExpr(c.Expr), Sp: c.Sp})
	}
	return out
}

func cloneClass(c *ast.ClassDecl) *ast.ClassDecl {
	out := &ast.ClassDecl{
		ID:         c.ID,
		Name:       c.Name,
		Fields:     cloneFields(c.Fields),
		ImplTraits: append([]ast.Name(nil), c.ImplTraits...),
		Uses:       append([]ast.Name(nil), c.Uses...),
		Lifecycle:  c.Lifecycle,
		Sp:         c.Sp,
	}
	for _, tp := range c.TypeParams {
		out.TypeParams = append(out.TypeParams, ast.TypeParam{
			Name:   tp.Name,
			Bounds: append([]ast.Name(nil), tp.Bounds...),
		})
	}
	for _, m := range c.Methods {
		cloned := cloneFunction(m)
		cloned.ID = uuid.New()
		out.Methods = append(out.Methods, cloned)
	}
	for _, inv := range c.Invariants {
		out.Invariants = append(out.Invariants, &ast.Contract{Kind: inv.Kind, Expr: cloneExpr(inv.Expr), Sp: inv.Sp})
	}
	return out
}

func cloneEnum(e *ast.EnumDecl) *ast.EnumDecl {
	out := &ast.EnumDecl{ID: e.ID, Name: e.Name, Sp: e.Sp}
	for _, tp := range e.TypeParams {
		out.TypeParams = append(out.TypeParams, ast.TypeParam{
			Name:   tp.Name,
			Bounds: append([]ast.Name(nil), tp.Bounds...),
		})
	}
	for _, v := range e.Variants {
		variant := ast.Variant{Name: v.Name}
		for _, f := range v.Fields {
			variant.Fields = append(variant.Fields, ast.VariantField{Name: f.Name, Type: cloneTypeExpr(f.Type)})
		}
		out.Variants = append(out.Variants, variant)
	}
	return out
}

func cloneParams(params []ast.Param) []ast.Param {
	out := make([]ast.Param, len(params))
	for i, p := range params {
		out[i] = ast.Param{ID: uuid.New(), Name: p.Name, Type: cloneTypeExpr(p.Type), IsMut: p.IsMut}
	}
	return out
}

func cloneFields(fields []ast.Field) []ast.Field {
	out := make([]ast.Field, len(fields))
	for i, f := range fields {
		out[i] = ast.Field{ID: uuid.New(), Name: f.Name, Type: cloneTypeExpr(f.Type), IsInjected: f.IsInjected}
	}
	return out
}

func cloneTypeExpr(te ast.TypeExpr) ast.TypeExpr {
	if te == nil {
		return nil
	}
	switch t := te.(type) {
	case *ast.NamedType:
		out := *t
		return &out
	case *ast.ArrayType:
		return &ast.ArrayType{Elem: cloneTypeExpr(t.Elem), Sp: t.Sp}
	case *ast.FnType:
		params := make([]ast.TypeExpr, len(t.Params))
		for i, p := range t.Params {
			params[i] = cloneTypeExpr(p)
		}
		return &ast.FnType{Params: params, ReturnType: cloneTypeExpr(t.ReturnType), Sp: t.Sp}
	case *ast.GenericType:
		args := make([]ast.TypeExpr, len(t.TypeArgs))
		for i, a := range t.TypeArgs {
			args[i] = cloneTypeExpr(a)
		}
		return &ast.GenericType{Name: t.Name, TypeArgs: args, Sp: t.Sp}
	case *ast.NullableType:
		return &ast.NullableType{Inner: cloneTypeExpr(t.Inner), Sp: t.Sp}
	case *ast.StreamType:
		return &ast.StreamType{Elem: cloneTypeExpr(t.Elem), Sp: t.Sp}
	}
	return te
}

func cloneBlock(b *ast.Block) *ast.Block {
	if b == nil {
		return nil
	}
	out := &ast.Block{Sp: b.Sp}
	for _, stmt := range b.Stmts {
		out.Stmts = append(out.Stmts, cloneStmt(stmt))
	}
	return out
}

func cloneStmt(stmt ast.Stmt) ast.Stmt {
	switch s := stmt.(type) {
	case *ast.Let:
		return &ast.Let{Name: s.Name, Type: cloneTypeExpr(s.Type), Value: cloneExpr(s.Value), IsMut: s.IsMut, Sp: s.Sp}
	case *ast.Assign:
		return &ast.Assign{Target: s.Target, Value: cloneExpr(s.Value), Sp: s.Sp}
	case *ast.FieldAssign:
		return &ast.FieldAssign{Object: cloneExpr(s.Object), Field: s.Field, Value: cloneExpr(s.Value), Sp: s.Sp}
	case *ast.IndexAssign:
		return &ast.IndexAssign{Object: cloneExpr(s.Object), Idx: cloneExpr(s.Idx), Value: cloneExpr(s.Value), Sp: s.Sp}
	case *ast.Return:
		return &ast.Return{Value: cloneExpr(s.Value), Sp: s.Sp}
	case *ast.If:
		return &ast.If{Cond: cloneExpr(s.Cond), Then: cloneBlock(s.Then), Else: cloneBlock(s.Else), Sp: s.Sp}
	case *ast.While:
		return &ast.While{Cond: cloneExpr(s.Cond), Body: cloneBlock(s.Body), Sp: s.Sp}
	case *ast.For:
		return &ast.For{Var: s.Var, Iterable: cloneExpr(s.Iterable), Body: cloneBlock(s.Body), Sp: s.Sp}
	case *ast.Match:
		out := &ast.Match{Scrutinee: cloneExpr(s.Scrutinee), Sp: s.Sp}
		for _, arm := range s.Arms {
			out.Arms = append(out.Arms, ast.MatchArm{
				EnumName: arm.EnumName,
				Variant:  arm.Variant,
				Bindings: append([]ast.MatchBinding(nil), arm.Bindings...),
				Body:     cloneBlock(arm.Body),
			})
		}
		return out
	case *ast.Raise:
		return &ast.Raise{ErrorName: s.ErrorName, Fields: cloneFieldInits(s.Fields), Sp: s.Sp}
	case *ast.Assert:
		return &ast.Assert{Cond: cloneExpr(s.Cond), Sp: s.Sp}
	case *ast.Break:
		return &ast.Break{Sp: s.Sp}
	case *ast.Continue:
		return &ast.Continue{Sp: s.Sp}
	case *ast.ExprStmt:
		return &ast.ExprStmt{Value: cloneExpr(s.Value), Sp: s.Sp}
	case *ast.LetChan:
		return &ast.LetChan{Sender: s.Sender, Receiver: s.Receiver, ElemType: cloneTypeExpr(s.ElemType), Capacity: cloneExpr(s.Capacity), Sp: s.Sp}
	case *ast.Select:
		out := &ast.Select{Default: cloneBlock(s.Default), Sp: s.Sp}
		for _, arm := range s.Arms {
			var op ast.SelectOp
			switch o := arm.Op.(type) {
			case *ast.SelectRecv:
				op = &ast.SelectRecv{Binding: o.Binding, Channel: cloneExpr(o.Channel)}
			case *ast.SelectSend:
				op = &ast.SelectSend{Channel: cloneExpr(o.Channel), Value: cloneExpr(o.Value)}
			}
			out.Arms = append(out.Arms, ast.SelectArm{Op: op, Body: cloneBlock(arm.Body)})
		}
		return out
	case *ast.Scope:
		out := &ast.Scope{Body: cloneBlock(s.Body), Sp: s.Sp}
		for _, seed := range s.Seeds {
			out.Seeds = append(out.Seeds, cloneExpr(seed))
		}
		for _, b := range s.Bindings {
			out.Bindings = append(out.Bindings, ast.ScopeBinding{Name: b.Name, Type: cloneTypeExpr(b.Type)})
		}
		return out
	case *ast.Yield:
		return &ast.Yield{Value: cloneExpr(s.Value), Sp: s.Sp}
	}
	return stmt
}

func cloneFieldInits(fields []ast.FieldInit) []ast.FieldInit {
	out := make([]ast.FieldInit, len(fields))
	for i, f := range fields {
		out[i] = ast.FieldInit{Name: f.Name, Value: cloneExpr(f.Value)}
	}
	return out
}

func cloneExpr(e ast.Expr) ast.Expr {
	if e == nil {
		return nil
	}
	switch e := e.(type) {
	case *ast.IntLit:
		out := *e
		return &out
	case *ast.FloatLit:
		out := *e
		return &out
	case *ast.BoolLit:
		out := *e
		return &out
	case *ast.StringLit:
		out := *e
		return &out
	case *ast.NoneLit:
		out := *e
		return &out
	case *ast.Ident:
		out := *e
		return &out
	case *ast.StringInterp:
		out := &ast.StringInterp{Sp: e.Sp}
		for _, p := range e.Parts {
			out.Parts = append(out.Parts, ast.StringInterpPart{Text: p.Text, Expr: cloneExpr(p.Expr)})
		}
		return out
	case *ast.BinOp:
		return &ast.BinOp{Op: e.Op, LHS: cloneExpr(e.LHS), RHS: cloneExpr(e.RHS), Sp: e.Sp}
	case *ast.UnaryOp:
		return &ast.UnaryOp{Op: e.Op, Operand: cloneExpr(e.Operand), Sp: e.Sp}
	case *ast.Cast:
		return &ast.Cast{Value: cloneExpr(e.Value), Target: cloneTypeExpr(e.Target), Sp: e.Sp}
	case *ast.Call:
		out := &ast.Call{FuncName: e.FuncName, Sp: e.Sp}
		for _, ta := range e.TypeArgs {
			out.TypeArgs = append(out.TypeArgs, cloneTypeExpr(ta))
		}
		for _, a := range e.Args {
			out.Args = append(out.Args, cloneExpr(a))
		}
		return out
	case *ast.MethodCall:
		out := &ast.MethodCall{Object: cloneExpr(e.Object), Method: e.Method, Sp: e.Sp}
		for _, a := range e.Args {
			out.Args = append(out.Args, cloneExpr(a))
		}
		return out
	case *ast.StaticTraitCall:
		out := &ast.StaticTraitCall{TraitName: e.TraitName, MethodName: e.MethodName, Sp: e.Sp}
		for _, ta := range e.TypeArgs {
			out.TypeArgs = append(out.TypeArgs, cloneTypeExpr(ta))
		}
		for _, a := range e.Args {
			out.Args = append(out.Args, cloneExpr(a))
		}
		return out
	case *ast.FieldAccess:
		return &ast.FieldAccess{Object: cloneExpr(e.Object), Field: e.Field, Sp: e.Sp}
	case *ast.StructLit:
		out := &ast.StructLit{ClassName: e.ClassName, Fields: cloneFieldInits(e.Fields), Sp: e.Sp}
		for _, ta := range e.TypeArgs {
			out.TypeArgs = append(out.TypeArgs, cloneTypeExpr(ta))
		}
		return out
	case *ast.ArrayLit:
		out := &ast.ArrayLit{Sp: e.Sp}
		for _, el := range e.Elements {
			out.Elements = append(out.Elements, cloneExpr(el))
		}
		return out
	case *ast.MapLit:
		out := &ast.MapLit{KeyType: cloneTypeExpr(e.KeyType), ValueType: cloneTypeExpr(e.ValueType), Sp: e.Sp}
		for _, entry := range e.Entries {
			out.Entries = append(out.Entries, ast.MapEntry{Key: cloneExpr(entry.Key), Value: cloneExpr(entry.Value)})
		}
		return out
	case *ast.SetLit:
		out := &ast.SetLit{ElemType: cloneTypeExpr(e.ElemType), Sp: e.Sp}
		for _, el := range e.Elements {
			out.Elements = append(out.Elements, cloneExpr(el))
		}
		return out
	case *ast.Index:
		return &ast.Index{Object: cloneExpr(e.Object), Idx: cloneExpr(e.Idx), Sp: e.Sp}
	case *ast.EnumUnit:
		out := &ast.EnumUnit{EnumName: e.EnumName, Variant: e.Variant, Sp: e.Sp}
		for _, ta := range e.TypeArgs {
			out.TypeArgs = append(out.TypeArgs, cloneTypeExpr(ta))
		}
		return out
	case *ast.EnumData:
		out := &ast.EnumData{EnumName: e.EnumName, Variant: e.Variant, Fields: cloneFieldInits(e.Fields), Sp: e.Sp}
		for _, ta := range e.TypeArgs {
			out.TypeArgs = append(out.TypeArgs, cloneTypeExpr(ta))
		}
		return out
	case *ast.RangeExpr:
		return &ast.RangeExpr{Start: cloneExpr(e.Start), End: cloneExpr(e.End), Inclusive: e.Inclusive, Sp: e.Sp}
	case *ast.Closure:
		return &ast.Closure{Params: cloneParams(e.Params), ReturnType: cloneTypeExpr(e.ReturnType), Body: cloneBlock(e.Body), Sp: e.Sp}
	case *ast.ClosureCreate:
		out := &ast.ClosureCreate{FnName: e.FnName, Captures: append([]string(nil), e.Captures...), Sp: e.Sp}
		return out
	case *ast.Propagate:
		return &ast.Propagate{Value: cloneExpr(e.Value), Sp: e.Sp}
	case *ast.NullPropagate:
		return &ast.NullPropagate{Value: cloneExpr(e.Value), Sp: e.Sp}
	case *ast.Catch:
		out := &ast.Catch{Value: cloneExpr(e.Value), Sp: e.Sp}
		switch h := e.Handler.(type) {
		case *ast.CatchShorthand:
			out.Handler = &ast.CatchShorthand{Fallback: cloneExpr(h.Fallback)}
		case *ast.CatchWildcard:
			out.Handler = &ast.CatchWildcard{ErrName: h.ErrName, Body: cloneExpr(h.Body)}
		}
		return out
	case *ast.Spawn:
		return &ast.Spawn{Call: cloneExpr(e.Call), Sp: e.Sp}
	case *ast.IfExpr:
		return &ast.IfExpr{Cond: cloneExpr(e.Cond), Then: cloneBlock(e.Then), Else: cloneBlock(e.Else), Sp: e.Sp}
	case *ast.MatchExpr:
		out := &ast.MatchExpr{Scrutinee: cloneExpr(e.Scrutinee), Sp: e.Sp}
		for _, arm := range e.Arms {
			out.Arms = append(out.Arms, ast.MatchExprArm{
				EnumName: arm.EnumName,
				Variant:  arm.Variant,
				Bindings: append([]ast.MatchBinding(nil), arm.Bindings...),
				Value:    cloneExpr(arm.Value),
			})
		}
		return out
	}
	return e
}
