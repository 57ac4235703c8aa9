package monomorphize

import (
	"testing"

	"github.com/google/uuid"

	"github.com/plutolang/pluto/internal/ast"
	"github.com/plutolang/pluto/internal/source"
	"github.com/plutolang/pluto/internal/typecheck"
	"github.com/plutolang/pluto/internal/types"
)

var spanCursor int

func nsp() source.Span {
	spanCursor += 16
	return source.NewSpan(spanCursor, spanCursor+8)
}

func nm(s string) ast.Name { return ast.Name{Value: s, Sp: nsp()} }

func named(n string) ast.TypeExpr { return &ast.NamedType{Name: n, Sp: nsp()} }

func intLit(v int64) ast.Expr { return &ast.IntLit{Value: v, Sp: nsp()} }

func strLit(v string) ast.Expr { return &ast.StringLit{Value: v, Sp: nsp()} }

func ident(n string) ast.Expr { return &ast.Ident{Name: n, Sp: nsp()} }

func call(name string, args ...ast.Expr) *ast.Call {
	return &ast.Call{FuncName: nm(name), Args: args, Sp: nsp()}
}

func ret(v ast.Expr) ast.Stmt { return &ast.Return{Value: v, Sp: nsp()} }

func let(name string, ty ast.TypeExpr, v ast.Expr) ast.Stmt {
	return &ast.Let{Name: nm(name), Type: ty, Value: v, Sp: nsp()}
}

func exprStmt(v ast.Expr) ast.Stmt { return &ast.ExprStmt{Value: v, Sp: nsp()} }

func block(stmts ...ast.Stmt) *ast.Block { return &ast.Block{Stmts: stmts, Sp: nsp()} }

func fn(name string, params []ast.Param, retType ast.TypeExpr, stmts ...ast.Stmt) *ast.Function {
	return &ast.Function{ID: uuid.New(), Name: nm(name), Params: params, ReturnType: retType, Body: block(stmts...), Sp: nsp()}
}

func genericIdentityProgram() (*ast.Program, *ast.Call, *ast.Call) {
	identity := fn("identity",
		[]ast.Param{{ID: uuid.New(), Name: nm("x"), Type: named("T")}},
		named("T"),
		ret(ident("x")))
	identity.TypeParams = []ast.TypeParam{{Name: nm("T")}}
	callInt := call("identity", intLit(42))
	callStr := call("identity", strLit("hi"))
	main := fn("main", nil, nil,
		let("a", named("int"), callInt),
		let("b", named("string"), callStr),
		exprStmt(call("print", ident("a"))),
		exprStmt(call("print", ident("b"))))
	return &ast.Program{Functions: []*ast.Function{identity, main}}, callInt, callStr
}

// Scenario: after monomorphization, identity$$int and identity$$string
// exist with concrete signatures, the template is gone, and both call sites
// in main are rewritten to the mangled names.
func TestMonomorphizeIdentityScenario(t *testing.T) {
	program, callInt, callStr := genericIdentityProgram()
	env := typecheck.NewEnv()
	if err := typecheck.CheckProgram(program, env); err != nil {
		t.Fatalf("typecheck failed: %v", err)
	}
	warnings := typecheck.GenerateWarnings(program, env)
	if len(warnings) != 0 {
		t.Errorf("expected empty warning list, got %+v", warnings)
	}
	if err := Monomorphize(program, env); err != nil {
		t.Fatalf("monomorphize failed: %v", err)
	}

	sigInt, ok := env.Functions["identity$$int"]
	if !ok {
		t.Fatal("identity$$int missing from env")
	}
	if !types.Equal(sigInt.Params[0], types.Int{}) || !types.Equal(sigInt.Return, types.Int{}) {
		t.Errorf("identity$$int = %+v, want (int) -> int", sigInt)
	}
	sigStr, ok := env.Functions["identity$$string"]
	if !ok {
		t.Fatal("identity$$string missing from env")
	}
	if !types.Equal(sigStr.Params[0], types.String{}) || !types.Equal(sigStr.Return, types.String{}) {
		t.Errorf("identity$$string = %+v, want (string) -> string", sigStr)
	}

	names := map[string]bool{}
	for _, f := range program.Functions {
		names[f.Name.Value] = true
		if f.IsGeneric() {
			t.Errorf("generic template %s survived monomorphization", f.Name.Value)
		}
	}
	for _, want := range []string{"identity$$int", "identity$$string", "main"} {
		if !names[want] {
			t.Errorf("program missing %s after monomorphization", want)
		}
	}
	if names["identity"] {
		t.Error("generic template identity still present")
	}
	if callInt.FuncName.Value != "identity$$int" {
		t.Errorf("int call site rewritten to %q", callInt.FuncName.Value)
	}
	if callStr.FuncName.Value != "identity$$string" {
		t.Errorf("string call site rewritten to %q", callStr.FuncName.Value)
	}
	if len(callInt.TypeArgs) != 0 {
		t.Error("explicit type args should be cleared on rewrite")
	}
}

// Instantiated copies must occupy span ranges disjoint from the template
// and from each other.
func TestMonomorphizeSpanDisjointness(t *testing.T) {
	program, _, _ := genericIdentityProgram()
	env := typecheck.NewEnv()
	if err := typecheck.CheckProgram(program, env); err != nil {
		t.Fatalf("typecheck failed: %v", err)
	}
	if err := Monomorphize(program, env); err != nil {
		t.Fatalf("monomorphize failed: %v", err)
	}
	var spans [][2]int
	for _, f := range program.Functions {
		if f.Name.Value == "main" {
			continue
		}
		spans = append(spans, [2]int{f.Sp.Start, f.Sp.End})
	}
	for i := range spans {
		for j := i + 1; j < len(spans); j++ {
			a, b := spans[i], spans[j]
			if a[0] < b[1] && b[0] < a[1] {
				t.Errorf("instantiation spans overlap: %v vs %v", a, b)
			}
		}
	}
}

// Applying monomorphization twice is a no-op.
func TestMonomorphizeIdempotent(t *testing.T) {
	program, _, _ := genericIdentityProgram()
	env := typecheck.NewEnv()
	if err := typecheck.CheckProgram(program, env); err != nil {
		t.Fatalf("typecheck failed: %v", err)
	}
	if err := Monomorphize(program, env); err != nil {
		t.Fatalf("first monomorphize failed: %v", err)
	}
	countBefore := len(program.Functions)
	if err := Monomorphize(program, env); err != nil {
		t.Fatalf("second monomorphize failed: %v", err)
	}
	if len(program.Functions) != countBefore {
		t.Errorf("second run changed function count: %d -> %d", countBefore, len(program.Functions))
	}
}

// Generic class instantiation clones methods and registers them under the
// mangled class name.
func TestMonomorphizeGenericClass(t *testing.T) {
	getter := fn("get", []ast.Param{{ID: uuid.New(), Name: nm("self")}}, named("T"),
		ret(&ast.FieldAccess{Object: ident("self"), Field: nm("value"), Sp: nsp()}))
	box := &ast.ClassDecl{
		ID:         uuid.New(),
		Name:       nm("Box"),
		TypeParams: []ast.TypeParam{{Name: nm("T")}},
		Fields:     []ast.Field{{ID: uuid.New(), Name: nm("value"), Type: named("T")}},
		Methods:    []*ast.Function{getter},
		Lifecycle:  ast.Singleton,
		Sp:         nsp(),
	}
	main := fn("main", nil, nil,
		let("b", nil, &ast.StructLit{
			ClassName: nm("Box"),
			TypeArgs:  []ast.TypeExpr{named("int")},
			Fields:    []ast.FieldInit{{Name: nm("value"), Value: intLit(42)}},
			Sp:        nsp(),
		}),
		let("v", nil, &ast.MethodCall{Object: ident("b"), Method: nm("get"), Sp: nsp()}),
		exprStmt(call("print", ident("v"))))
	program := &ast.Program{Classes: []*ast.ClassDecl{box}, Functions: []*ast.Function{main}}

	env := typecheck.NewEnv()
	if err := typecheck.CheckProgram(program, env); err != nil {
		t.Fatalf("typecheck failed: %v", err)
	}
	if err := Monomorphize(program, env); err != nil {
		t.Fatalf("monomorphize failed: %v", err)
	}

	var concrete *ast.ClassDecl
	for _, c := range program.Classes {
		if c.IsGeneric() {
			t.Errorf("generic class template %s survived", c.Name.Value)
		}
		if c.Name.Value == "Box$$int" {
			concrete = c
		}
	}
	if concrete == nil {
		t.Fatal("Box$$int not appended to the program")
	}
	sig, ok := env.Functions["Box$$int$get"]
	if !ok {
		t.Fatal("Box$$int$get not registered")
	}
	if !types.Equal(sig.Return, types.Int{}) {
		t.Errorf("Box$$int$get returns %s, want int", sig.Return)
	}
	if !types.Equal(sig.Params[0], types.Class{Name: "Box$$int"}) {
		t.Errorf("self param = %s, want Box$$int", sig.Params[0])
	}
}
