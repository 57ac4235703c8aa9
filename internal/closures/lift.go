// Package closures lifts closure expressions out of function and method
// bodies into top-level functions. Each Closure becomes a fresh
// __closure_N function whose first parameter is the environment pointer
// (typed int), and the expression itself is replaced with a ClosureCreate
// naming the lifted function and its captured variables. Codegen later
// materializes the create as a (function address, capture record) pair.
package closures

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/plutolang/pluto/internal/ast"
	"github.com/plutolang/pluto/internal/diagnostics"
	"github.com/plutolang/pluto/internal/source"
	"github.com/plutolang/pluto/internal/typecheck"
	"github.com/plutolang/pluto/internal/types"
)

// Lift rewrites every closure in program. Nested closures lift first (the
// rewrite is post-order), so an outer lifted body only ever contains
// ClosureCreate nodes. A program without closures is untouched.
func Lift(program *ast.Program, env *typecheck.Env) *diagnostics.CompileError {
	counter := 0
	var lifted []*ast.Function

	forBodies := func(methods []*ast.Function) *diagnostics.CompileError {
		for _, m := range methods {
			if err := liftInBlock(m.Body, env, &counter, &lifted); err != nil {
				return err
			}
		}
		return nil
	}

	if err := forBodies(program.Functions); err != nil {
		return err
	}
	for _, c := range program.Classes {
		if err := forBodies(c.Methods); err != nil {
			return err
		}
	}
	if program.App != nil {
		if err := forBodies(program.App.Methods); err != nil {
			return err
		}
	}
	for _, s := range program.Stages {
		if err := forBodies(s.Methods); err != nil {
			return err
		}
	}

	program.Functions = append(program.Functions, lifted...)
	return nil
}

func liftInBlock(b *ast.Block, env *typecheck.Env, counter *int, lifted *[]*ast.Function) *diagnostics.CompileError {
	for _, stmt := range b.Stmts {
		if err := liftInStmt(stmt, env, counter, lifted); err != nil {
			return err
		}
	}
	return nil
}

func liftInStmt(stmt ast.Stmt, env *typecheck.Env, counter *int, lifted *[]*ast.Function) *diagnostics.CompileError {
	switch s := stmt.(type) {
	case *ast.Let:
		return liftInExpr(&s.Value, env, counter, lifted)
	case *ast.Assign:
		return liftInExpr(&s.Value, env, counter, lifted)
	case *ast.FieldAssign:
		if err := liftInExpr(&s.Object, env, counter, lifted); err != nil {
			return err
		}
		return liftInExpr(&s.Value, env, counter, lifted)
	case *ast.IndexAssign:
		if err := liftInExpr(&s.Object, env, counter, lifted); err != nil {
			return err
		}
		if err := liftInExpr(&s.Idx, env, counter, lifted); err != nil {
			return err
		}
		return liftInExpr(&s.Value, env, counter, lifted)
	case *ast.Return:
		if s.Value != nil {
			return liftInExpr(&s.Value, env, counter, lifted)
		}
		return nil
	case *ast.If:
		if err := liftInExpr(&s.Cond, env, counter, lifted); err != nil {
			return err
		}
		if err := liftInBlock(s.Then, env, counter, lifted); err != nil {
			return err
		}
		if s.Else != nil {
			return liftInBlock(s.Else, env, counter, lifted)
		}
		return nil
	case *ast.While:
		if err := liftInExpr(&s.Cond, env, counter, lifted); err != nil {
			return err
		}
		return liftInBlock(s.Body, env, counter, lifted)
	case *ast.For:
		if err := liftInExpr(&s.Iterable, env, counter, lifted); err != nil {
			return err
		}
		return liftInBlock(s.Body, env, counter, lifted)
	case *ast.Match:
		if err := liftInExpr(&s.Scrutinee, env, counter, lifted); err != nil {
			return err
		}
		for _, arm := range s.Arms {
			if err := liftInBlock(arm.Body, env, counter, lifted); err != nil {
				return err
			}
		}
		return nil
	case *ast.Raise:
		for i := range s.Fields {
			if err := liftInExpr(&s.Fields[i].Value, env, counter, lifted); err != nil {
				return err
			}
		}
		return nil
	case *ast.Assert:
		return liftInExpr(&s.Cond, env, counter, lifted)
	case *ast.ExprStmt:
		return liftInExpr(&s.Value, env, counter, lifted)
	case *ast.LetChan:
		if s.Capacity != nil {
			return liftInExpr(&s.Capacity, env, counter, lifted)
		}
		return nil
	case *ast.Select:
		for _, arm := range s.Arms {
			switch op := arm.Op.(type) {
			case *ast.SelectRecv:
				if err := liftInExpr(&op.Channel, env, counter, lifted); err != nil {
					return err
				}
			case *ast.SelectSend:
				if err := liftInExpr(&op.Channel, env, counter, lifted); err != nil {
					return err
				}
				if err := liftInExpr(&op.Value, env, counter, lifted); err != nil {
					return err
				}
			}
			if err := liftInBlock(arm.Body, env, counter, lifted); err != nil {
				return err
			}
		}
		if s.Default != nil {
			return liftInBlock(s.Default, env, counter, lifted)
		}
		return nil
	case *ast.Scope:
		for i := range s.Seeds {
			if err := liftInExpr(&s.Seeds[i], env, counter, lifted); err != nil {
				return err
			}
		}
		return liftInBlock(s.Body, env, counter, lifted)
	case *ast.Yield:
		return liftInExpr(&s.Value, env, counter, lifted)
	}
	return nil
}

func liftInExpr(slot *ast.Expr, env *typecheck.Env, counter *int, lifted *[]*ast.Function) *diagnostics.CompileError {
	switch e := (*slot).(type) {
	case *ast.Closure:
		return liftClosure(slot, e, env, counter, lifted)
	case *ast.BinOp:
		if err := liftInExpr(&e.LHS, env, counter, lifted); err != nil {
			return err
		}
		return liftInExpr(&e.RHS, env, counter, lifted)
	case *ast.UnaryOp:
		return liftInExpr(&e.Operand, env, counter, lifted)
	case *ast.Cast:
		return liftInExpr(&e.Value, env, counter, lifted)
	case *ast.Call:
		for i := range e.Args {
			if err := liftInExpr(&e.Args[i], env, counter, lifted); err != nil {
				return err
			}
		}
		return nil
	case *ast.MethodCall:
		if err := liftInExpr(&e.Object, env, counter, lifted); err != nil {
			return err
		}
		for i := range e.Args {
			if err := liftInExpr(&e.Args[i], env, counter, lifted); err != nil {
				return err
			}
		}
		return nil
	case *ast.StaticTraitCall:
		for i := range e.Args {
			if err := liftInExpr(&e.Args[i], env, counter, lifted); err != nil {
				return err
			}
		}
		return nil
	case *ast.FieldAccess:
		return liftInExpr(&e.Object, env, counter, lifted)
	case *ast.StructLit:
		for i := range e.Fields {
			if err := liftInExpr(&e.Fields[i].Value, env, counter, lifted); err != nil {
				return err
			}
		}
		return nil
	case *ast.ArrayLit:
		for i := range e.Elements {
			if err := liftInExpr(&e.Elements[i], env, counter, lifted); err != nil {
				return err
			}
		}
		return nil
	case *ast.MapLit:
		for i := range e.Entries {
			if err := liftInExpr(&e.Entries[i].Key, env, counter, lifted); err != nil {
				return err
			}
			if err := liftInExpr(&e.Entries[i].Value, env, counter, lifted); err != nil {
				return err
			}
		}
		return nil
	case *ast.SetLit:
		for i := range e.Elements {
			if err := liftInExpr(&e.Elements[i], env, counter, lifted); err != nil {
				return err
			}
		}
		return nil
	case *ast.Index:
		if err := liftInExpr(&e.Object, env, counter, lifted); err != nil {
			return err
		}
		return liftInExpr(&e.Idx, env, counter, lifted)
	case *ast.EnumData:
		for i := range e.Fields {
			if err := liftInExpr(&e.Fields[i].Value, env, counter, lifted); err != nil {
				return err
			}
		}
		return nil
	case *ast.StringInterp:
		for i := range e.Parts {
			if e.Parts[i].Expr != nil {
				if err := liftInExpr(&e.Parts[i].Expr, env, counter, lifted); err != nil {
					return err
				}
			}
		}
		return nil
	case *ast.RangeExpr:
		if err := liftInExpr(&e.Start, env, counter, lifted); err != nil {
			return err
		}
		return liftInExpr(&e.End, env, counter, lifted)
	case *ast.Propagate:
		return liftInExpr(&e.Value, env, counter, lifted)
	case *ast.NullPropagate:
		return liftInExpr(&e.Value, env, counter, lifted)
	case *ast.Catch:
		if err := liftInExpr(&e.Value, env, counter, lifted); err != nil {
			return err
		}
		switch h := e.Handler.(type) {
		case *ast.CatchShorthand:
			return liftInExpr(&h.Fallback, env, counter, lifted)
		case *ast.CatchWildcard:
			return liftInExpr(&h.Body, env, counter, lifted)
		}
		return nil
	case *ast.Spawn:
		return liftInExpr(&e.Call, env, counter, lifted)
	case *ast.IfExpr:
		if err := liftInExpr(&e.Cond, env, counter, lifted); err != nil {
			return err
		}
		if err := liftInBlock(e.Then, env, counter, lifted); err != nil {
			return err
		}
		return liftInBlock(e.Else, env, counter, lifted)
	case *ast.MatchExpr:
		if err := liftInExpr(&e.Scrutinee, env, counter, lifted); err != nil {
			return err
		}
		for i := range e.Arms {
			if err := liftInExpr(&e.Arms[i].Value, env, counter, lifted); err != nil {
				return err
			}
		}
		return nil
	}
	return nil
}

func liftClosure(slot *ast.Expr, closure *ast.Closure, env *typecheck.Env, counter *int, lifted *[]*ast.Function) *diagnostics.CompileError {
	fnName := fmt.Sprintf("__closure_%d", *counter)
	*counter++

	key := closure.Sp.Key()
	captures := env.ClosureCaptures[key]
	captureNames := make([]string, len(captures))
	for i, c := range captures {
		captureNames[i] = c.Name
	}

	// The environment pointer is typed int: codegen does address arithmetic
	// against the capture record through it.
	envParam := ast.Param{
		ID:   uuid.New(),
		Name: ast.Name{Value: "__env", Sp: source.Dummy()},
		Type: &ast.NamedType{Name: "int", Sp: source.Dummy()},
	}
	allParams := append([]ast.Param{envParam}, closure.Params...)

	sigParams := []types.Type{types.Int{}}
	for _, p := range closure.Params {
		ty, err := typecheck.ResolveType(p.Type, env)
		if err != nil {
			return err
		}
		sigParams = append(sigParams, ty)
	}
	retType, ok := env.ClosureReturnTypes[key]
	if !ok {
		retType = types.Void{}
	}
	env.Functions[fnName] = typecheck.FuncSig{Params: sigParams, Return: retType}
	env.ClosureFns[fnName] = captures

	// Nested closures lift first so the body we keep holds only
	// ClosureCreate nodes.
	body := closure.Body
	if err := liftInBlock(body, env, counter, lifted); err != nil {
		return err
	}

	var retTypeExpr ast.TypeExpr
	if _, isVoid := retType.(types.Void); !isVoid {
		retTypeExpr = types.ToTypeExpr(retType)
	}
	*lifted = append(*lifted, &ast.Function{
		ID:         uuid.New(),
		Name:       ast.Name{Value: fnName, Sp: source.Dummy()},
		Params:     allParams,
		ReturnType: retTypeExpr,
		Body:       body,
		Sp:         closure.Sp,
	})

	*slot = &ast.ClosureCreate{FnName: fnName, Captures: captureNames, Sp: closure.Sp}
	return nil
}
