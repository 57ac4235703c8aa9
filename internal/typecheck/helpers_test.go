package typecheck

import (
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/plutolang/pluto/internal/ast"
	"github.com/plutolang/pluto/internal/diagnostics"
	"github.com/plutolang/pluto/internal/source"
)

// Test programs are built directly as ASTs (parsing happens upstream of
// this package). The builders below hand out strictly increasing spans so
// span-keyed side tables stay collision-free, like real parser output.

var spanCursor int

func nsp() source.Span {
	spanCursor += 16
	return source.NewSpan(spanCursor, spanCursor+8)
}

func nm(s string) ast.Name {
	return ast.Name{Value: s, Sp: nsp()}
}

func tNamed(name string) ast.TypeExpr {
	return &ast.NamedType{Name: name, Sp: nsp()}
}

func tArr(elem ast.TypeExpr) ast.TypeExpr {
	return &ast.ArrayType{Elem: elem, Sp: nsp()}
}

func tNullable(inner ast.TypeExpr) ast.TypeExpr {
	return &ast.NullableType{Inner: inner, Sp: nsp()}
}

func tGeneric(name string, args ...ast.TypeExpr) ast.TypeExpr {
	return &ast.GenericType{Name: name, TypeArgs: args, Sp: nsp()}
}

func tFn(params []ast.TypeExpr, ret ast.TypeExpr) ast.TypeExpr {
	return &ast.FnType{Params: params, ReturnType: ret, Sp: nsp()}
}

func tStream(elem ast.TypeExpr) ast.TypeExpr {
	return &ast.StreamType{Elem: elem, Sp: nsp()}
}

func eInt(v int64) ast.Expr          { return &ast.IntLit{Value: v, Sp: nsp()} }
func eFloat(v float64) ast.Expr      { return &ast.FloatLit{Value: v, Sp: nsp()} }
func eBool(v bool) ast.Expr          { return &ast.BoolLit{Value: v, Sp: nsp()} }
func eStr(v string) ast.Expr         { return &ast.StringLit{Value: v, Sp: nsp()} }
func eNone() ast.Expr                { return &ast.NoneLit{Sp: nsp()} }
func eIdent(name string) ast.Expr    { return &ast.Ident{Name: name, Sp: nsp()} }
func eProp(inner ast.Expr) ast.Expr  { return &ast.Propagate{Value: inner, Sp: nsp()} }
func eNullProp(inner ast.Expr) ast.Expr {
	return &ast.NullPropagate{Value: inner, Sp: nsp()}
}

func eBin(op ast.BinOpKind, lhs, rhs ast.Expr) ast.Expr {
	return &ast.BinOp{Op: op, LHS: lhs, RHS: rhs, Sp: nsp()}
}

func eCall(name string, args ...ast.Expr) *ast.Call {
	return &ast.Call{FuncName: nm(name), Args: args, Sp: nsp()}
}

func eCallT(name string, typeArgs []ast.TypeExpr, args ...ast.Expr) *ast.Call {
	return &ast.Call{FuncName: nm(name), TypeArgs: typeArgs, Args: args, Sp: nsp()}
}

func eMethod(obj ast.Expr, method string, args ...ast.Expr) *ast.MethodCall {
	return &ast.MethodCall{Object: obj, Method: nm(method), Args: args, Sp: nsp()}
}

func eField(obj ast.Expr, field string) ast.Expr {
	return &ast.FieldAccess{Object: obj, Field: nm(field), Sp: nsp()}
}

func fi(name string, value ast.Expr) ast.FieldInit {
	return ast.FieldInit{Name: nm(name), Value: value}
}

func eStruct(class string, fields ...ast.FieldInit) ast.Expr {
	return &ast.StructLit{ClassName: nm(class), Fields: fields, Sp: nsp()}
}

func eStructT(class string, typeArgs []ast.TypeExpr, fields ...ast.FieldInit) ast.Expr {
	return &ast.StructLit{ClassName: nm(class), TypeArgs: typeArgs, Fields: fields, Sp: nsp()}
}

func eEnumUnit(enum, variant string, typeArgs ...ast.TypeExpr) ast.Expr {
	return &ast.EnumUnit{EnumName: nm(enum), Variant: nm(variant), TypeArgs: typeArgs, Sp: nsp()}
}

func eEnumData(enum, variant string, typeArgs []ast.TypeExpr, fields ...ast.FieldInit) ast.Expr {
	return &ast.EnumData{EnumName: nm(enum), Variant: nm(variant), TypeArgs: typeArgs, Fields: fields, Sp: nsp()}
}

func eClosure(params []ast.Param, ret ast.TypeExpr, stmts ...ast.Stmt) *ast.Closure {
	return &ast.Closure{Params: params, ReturnType: ret, Body: blk(stmts...), Sp: nsp()}
}

func eCatchShorthand(value ast.Expr, fallback ast.Expr) ast.Expr {
	return &ast.Catch{Value: value, Handler: &ast.CatchShorthand{Fallback: fallback}, Sp: nsp()}
}

func eSpawnOf(call *ast.Call) *ast.Spawn {
	// Spawn desugars to a closure whose body returns the original call.
	closure := &ast.Closure{
		Body: blk(&ast.Return{Value: call, Sp: nsp()}),
		Sp:   nsp(),
	}
	return &ast.Spawn{Call: closure, Sp: nsp()}
}

func param(name string, ty ast.TypeExpr) ast.Param {
	return ast.Param{ID: uuid.New(), Name: nm(name), Type: ty}
}

func selfParam() ast.Param {
	return ast.Param{ID: uuid.New(), Name: nm("self")}
}

func mutSelfParam() ast.Param {
	return ast.Param{ID: uuid.New(), Name: nm("self"), IsMut: true}
}

func blk(stmts ...ast.Stmt) *ast.Block {
	return &ast.Block{Stmts: stmts, Sp: nsp()}
}

func sLet(name string, ty ast.TypeExpr, value ast.Expr) ast.Stmt {
	return &ast.Let{Name: nm(name), Type: ty, Value: value, Sp: nsp()}
}

func sLetMut(name string, ty ast.TypeExpr, value ast.Expr) ast.Stmt {
	return &ast.Let{Name: nm(name), Type: ty, Value: value, IsMut: true, Sp: nsp()}
}

func sAssign(name string, value ast.Expr) ast.Stmt {
	return &ast.Assign{Target: nm(name), Value: value, Sp: nsp()}
}

func sRet(value ast.Expr) ast.Stmt {
	return &ast.Return{Value: value, Sp: nsp()}
}

func sExpr(value ast.Expr) ast.Stmt {
	return &ast.ExprStmt{Value: value, Sp: nsp()}
}

func sRaise(errName string, fields ...ast.FieldInit) ast.Stmt {
	return &ast.Raise{ErrorName: nm(errName), Fields: fields, Sp: nsp()}
}

func sIf(cond ast.Expr, then *ast.Block, els *ast.Block) ast.Stmt {
	return &ast.If{Cond: cond, Then: then, Else: els, Sp: nsp()}
}

func mkFn(name string, params []ast.Param, ret ast.TypeExpr, stmts ...ast.Stmt) *ast.Function {
	return &ast.Function{
		ID:         uuid.New(),
		Name:       nm(name),
		Params:     params,
		ReturnType: ret,
		Body:       blk(stmts...),
		Sp:         nsp(),
	}
}

func mkGenericFn(name string, typeParams []string, params []ast.Param, ret ast.TypeExpr, stmts ...ast.Stmt) *ast.Function {
	fn := mkFn(name, params, ret, stmts...)
	for _, tp := range typeParams {
		fn.TypeParams = append(fn.TypeParams, ast.TypeParam{Name: nm(tp)})
	}
	return fn
}

func mkField(name string, ty ast.TypeExpr) ast.Field {
	return ast.Field{ID: uuid.New(), Name: nm(name), Type: ty}
}

func mkInjectField(name string, ty ast.TypeExpr) ast.Field {
	return ast.Field{ID: uuid.New(), Name: nm(name), Type: ty, IsInjected: true}
}

func mkClass(name string, fields []ast.Field, methods ...*ast.Function) *ast.ClassDecl {
	return &ast.ClassDecl{
		ID:        uuid.New(),
		Name:      nm(name),
		Fields:    fields,
		Methods:   methods,
		Lifecycle: ast.Singleton,
		Sp:        nsp(),
	}
}

func mkVariant(name string, fields ...ast.VariantField) ast.Variant {
	return ast.Variant{Name: nm(name), Fields: fields}
}

func vField(name string, ty ast.TypeExpr) ast.VariantField {
	return ast.VariantField{Name: nm(name), Type: ty}
}

func mkEnum(name string, variants ...ast.Variant) *ast.EnumDecl {
	return &ast.EnumDecl{ID: uuid.New(), Name: nm(name), Variants: variants, Sp: nsp()}
}

func mkError(name string, fields ...ast.VariantField) *ast.ErrorDecl {
	return &ast.ErrorDecl{ID: uuid.New(), Name: nm(name), Fields: fields, Sp: nsp()}
}

func mkTraitMethod(name string, params []ast.Param, ret ast.TypeExpr) *ast.TraitMethod {
	return &ast.TraitMethod{Name: nm(name), Params: params, ReturnType: ret}
}

func mkTrait(name string, methods ...*ast.TraitMethod) *ast.TraitDecl {
	return &ast.TraitDecl{ID: uuid.New(), Name: nm(name), Methods: methods, Sp: nsp()}
}

func mkApp(name string, injectFields []ast.Field, methods ...*ast.Function) *ast.AppDecl {
	return &ast.AppDecl{
		ID:           uuid.New(),
		Name:         nm(name),
		InjectFields: injectFields,
		Methods:      methods,
		Sp:           nsp(),
	}
}

// check runs the type-check pipeline over a program.
func check(t *testing.T, program *ast.Program) (*Env, *diagnostics.CompileError) {
	t.Helper()
	env := NewEnv()
	err := CheckProgram(program, env)
	return env, err
}

// expectOK fails the test when checking errors.
func expectOK(t *testing.T, program *ast.Program) *Env {
	t.Helper()
	env, err := check(t, program)
	if err != nil {
		t.Fatalf("expected success, got: %v", err)
	}
	return env
}

// expectErr fails the test unless checking errors with a message containing
// substr.
func expectErr(t *testing.T, program *ast.Program, substr string) *diagnostics.CompileError {
	t.Helper()
	_, err := check(t, program)
	if err == nil {
		t.Fatalf("expected error containing %q, got none", substr)
	}
	if substr != "" && !strings.Contains(err.Msg, substr) {
		t.Fatalf("expected error containing %q, got: %s", substr, err.Msg)
	}
	return err
}
