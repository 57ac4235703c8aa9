package typecheck

import (
	"github.com/plutolang/pluto/internal/ast"
	"github.com/plutolang/pluto/internal/diagnostics"
	"github.com/plutolang/pluto/internal/types"
)

// EnforceMutSelf walks every non-`mut self` method body and fails on any
// mutation rooted at self: a field assignment, an index assignment through
// self, or a call to a `mut self` method on self. Closure bodies are not
// entered: closures take a by-value copy of self.
func EnforceMutSelf(program *ast.Program, env *Env) *diagnostics.CompileError {
	checkOwner := func(owner string, methods []*ast.Function) *diagnostics.CompileError {
		for _, m := range methods {
			if !m.HasSelf() || m.HasMutSelf() {
				continue
			}
			if err := checkBodyForSelfMutation(m.Body, owner, env); err != nil {
				return err
			}
		}
		return nil
	}
	for _, c := range program.Classes {
		if c.IsGeneric() {
			continue
		}
		if err := checkOwner(c.Name.Value, c.Methods); err != nil {
			return err
		}
	}
	if program.App != nil {
		if err := checkOwner(program.App.Name.Value, program.App.Methods); err != nil {
			return err
		}
	}
	for _, s := range program.Stages {
		if err := checkOwner(s.Name.Value, s.Methods); err != nil {
			return err
		}
	}
	return nil
}

func checkBodyForSelfMutation(b *ast.Block, className string, env *Env) *diagnostics.CompileError {
	var found *diagnostics.CompileError
	for _, stmt := range b.Stmts {
		walkStmtForSelfMutation(stmt, className, env, &found)
		if found != nil {
			return found
		}
	}
	return nil
}

func walkStmtForSelfMutation(stmt ast.Stmt, className string, env *Env, found **diagnostics.CompileError) {
	if *found != nil {
		return
	}
	switch s := stmt.(type) {
	case *ast.FieldAssign:
		if ident, ok := s.Object.(*ast.Ident); ok && ident.Name == "self" {
			*found = diagnostics.TypeErrf(s.Sp,
				"cannot assign to 'self.%s' in a non-mut method; declare 'mut self' to modify fields", s.Field.Value)
			return
		}
	case *ast.IndexAssign:
		if isMutationOnSelf(s.Object) {
			*found = diagnostics.TypeErrf(s.Sp,
				"cannot mutate self's data in a non-mut method; declare 'mut self'")
			return
		}
	case *ast.ExprStmt:
		*found = checkExprForMutMethodCall(s.Value, className, env)
	case *ast.Let:
		*found = checkExprForMutMethodCall(s.Value, className, env)
	case *ast.Return:
		if s.Value != nil {
			*found = checkExprForMutMethodCall(s.Value, className, env)
		}
	}
	if *found != nil {
		return
	}
	// Recurse into nested blocks.
	switch s := stmt.(type) {
	case *ast.If:
		walkBlockForSelfMutation(s.Then, className, env, found)
		if s.Else != nil {
			walkBlockForSelfMutation(s.Else, className, env, found)
		}
	case *ast.While:
		walkBlockForSelfMutation(s.Body, className, env, found)
	case *ast.For:
		walkBlockForSelfMutation(s.Body, className, env, found)
	case *ast.Match:
		for _, arm := range s.Arms {
			walkBlockForSelfMutation(arm.Body, className, env, found)
		}
	case *ast.Select:
		for _, arm := range s.Arms {
			walkBlockForSelfMutation(arm.Body, className, env, found)
		}
		if s.Default != nil {
			walkBlockForSelfMutation(s.Default, className, env, found)
		}
	case *ast.Scope:
		walkBlockForSelfMutation(s.Body, className, env, found)
	}
}

func walkBlockForSelfMutation(b *ast.Block, className string, env *Env, found **diagnostics.CompileError) {
	for _, stmt := range b.Stmts {
		if *found != nil {
			return
		}
		walkStmtForSelfMutation(stmt, className, env, found)
	}
}

// isMutationOnSelf detects access chains rooted at self (self.field[i],
// self[i], self.a.b[i]).
func isMutationOnSelf(e ast.Expr) bool {
	switch e := e.(type) {
	case *ast.Ident:
		return e.Name == "self"
	case *ast.FieldAccess:
		return isMutationOnSelf(e.Object)
	case *ast.Index:
		return isMutationOnSelf(e.Object)
	}
	return false
}

// checkExprForMutMethodCall finds `mut self` method calls on self inside an
// expression. Closure bodies are deliberately skipped.
func checkExprForMutMethodCall(e ast.Expr, className string, env *Env) *diagnostics.CompileError {
	switch e := e.(type) {
	case *ast.MethodCall:
		if ident, ok := e.Object.(*ast.Ident); ok && ident.Name == "self" {
			mangled := types.MangleMethod(className, e.Method.Value)
			if env.MutSelfMethods[mangled] {
				return diagnostics.TypeErrf(e.Sp,
					"cannot call 'mut self' method '%s' on self in a non-mut method; declare 'mut self'", e.Method.Value)
			}
		}
		for _, arg := range e.Args {
			if err := checkExprForMutMethodCall(arg, className, env); err != nil {
				return err
			}
		}
		return checkExprForMutMethodCall(e.Object, className, env)
	case *ast.Propagate:
		return checkExprForMutMethodCall(e.Value, className, env)
	case *ast.Cast:
		return checkExprForMutMethodCall(e.Value, className, env)
	case *ast.Spawn:
		return checkExprForMutMethodCall(e.Call, className, env)
	case *ast.Catch:
		if err := checkExprForMutMethodCall(e.Value, className, env); err != nil {
			return err
		}
		if sh, ok := e.Handler.(*ast.CatchShorthand); ok {
			return checkExprForMutMethodCall(sh.Fallback, className, env)
		}
		return nil
	case *ast.Call:
		for _, arg := range e.Args {
			if err := checkExprForMutMethodCall(arg, className, env); err != nil {
				return err
			}
		}
		return nil
	case *ast.BinOp:
		if err := checkExprForMutMethodCall(e.LHS, className, env); err != nil {
			return err
		}
		return checkExprForMutMethodCall(e.RHS, className, env)
	case *ast.UnaryOp:
		return checkExprForMutMethodCall(e.Operand, className, env)
	case *ast.Index:
		if err := checkExprForMutMethodCall(e.Object, className, env); err != nil {
			return err
		}
		return checkExprForMutMethodCall(e.Idx, className, env)
	case *ast.FieldAccess:
		return checkExprForMutMethodCall(e.Object, className, env)
	}
	return nil
}
