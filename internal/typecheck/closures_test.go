package typecheck

import (
	"testing"

	"github.com/plutolang/pluto/internal/ast"
	"github.com/plutolang/pluto/internal/types"
)

func TestClosureBasicType(t *testing.T) {
	expectOK(t, &ast.Program{Functions: []*ast.Function{
		mkFn("main", nil, nil,
			sLet("f", nil, eClosure(
				[]ast.Param{param("x", tNamed("int"))}, nil,
				sRet(eBin(ast.Add, eIdent("x"), eInt(1))))),
			sLet("r", nil, eCall("f", eInt(5))),
			sExpr(eCall("print", eIdent("r")))),
	}})
}

func TestClosureAnnotatedReturnMismatchRejected(t *testing.T) {
	expectErr(t, &ast.Program{Functions: []*ast.Function{
		mkFn("main", nil, nil,
			sLet("f", nil, eClosure(
				[]ast.Param{param("x", tNamed("int"))}, tNamed("int"),
				sRet(eBool(true))))),
	}}, "return type mismatch")
}

func TestClosureWrongArgCountRejected(t *testing.T) {
	expectErr(t, &ast.Program{Functions: []*ast.Function{
		mkFn("main", nil, nil,
			sLet("f", nil, eClosure(
				[]ast.Param{param("x", tNamed("int"))}, nil,
				sRet(eBin(ast.Add, eIdent("x"), eInt(1))))),
			sLet("r", nil, eCall("f", eInt(1), eInt(2)))),
	}}, "expects 1 arguments")
}

func TestClosureFnTypeAnnotation(t *testing.T) {
	expectOK(t, &ast.Program{Functions: []*ast.Function{
		mkFn("main", nil, nil,
			sLet("f", tFn([]ast.TypeExpr{tNamed("int")}, tNamed("int")),
				eClosure([]ast.Param{param("x", tNamed("int"))}, nil,
					sRet(eBin(ast.Add, eIdent("x"), eInt(1))))),
			sLet("r", nil, eCall("f", eInt(5))),
			sExpr(eCall("print", eIdent("r")))),
	}})
}

func TestClosureAsFnParam(t *testing.T) {
	expectOK(t, &ast.Program{Functions: []*ast.Function{
		mkFn("apply",
			[]ast.Param{
				param("f", tFn([]ast.TypeExpr{tNamed("int")}, tNamed("int"))),
				param("x", tNamed("int")),
			},
			tNamed("int"),
			sRet(eCall("f", eIdent("x")))),
		mkFn("main", nil, nil,
			sLet("r", nil, eCall("apply",
				eClosure([]ast.Param{param("x", tNamed("int"))}, nil,
					sRet(eBin(ast.Add, eIdent("x"), eInt(1)))),
				eInt(5))),
			sExpr(eCall("print", eIdent("r")))),
	}})
}

// Scenario: y is free in the closure and defined one scope out: it becomes
// the capture set, keyed by the closure's span.
func TestClosureCaptureRecorded(t *testing.T) {
	closure := eClosure(
		[]ast.Param{param("x", tNamed("int"))}, nil,
		sRet(eBin(ast.Add, eIdent("x"), eIdent("y"))))
	env := expectOK(t, &ast.Program{Functions: []*ast.Function{
		mkFn("main", nil, nil,
			sLet("y", nil, eInt(10)),
			sLet("f", nil, closure),
			sLet("r", nil, eCall("f", eInt(5))),
			sExpr(eCall("print", eIdent("r")))),
	}})
	captures := env.ClosureCaptures[closure.Sp.Key()]
	if len(captures) != 1 || captures[0].Name != "y" {
		t.Fatalf("captures = %+v, want [y]", captures)
	}
	if !types.Equal(captures[0].Type, types.Int{}) {
		t.Errorf("capture type = %s, want int", captures[0].Type)
	}
	ret, ok := env.ClosureReturnTypes[closure.Sp.Key()]
	if !ok || !types.Equal(ret, types.Int{}) {
		t.Errorf("closure return type = %v, want int", ret)
	}
}

func TestClosureParamsNotCaptured(t *testing.T) {
	closure := eClosure(
		[]ast.Param{param("x", tNamed("int"))}, nil,
		sRet(eIdent("x")))
	env := expectOK(t, &ast.Program{Functions: []*ast.Function{
		mkFn("main", nil, nil,
			sLet("f", nil, closure),
			sLet("r", nil, eCall("f", eInt(1))),
			sExpr(eCall("print", eIdent("r")))),
	}})
	if captures := env.ClosureCaptures[closure.Sp.Key()]; len(captures) != 0 {
		t.Errorf("params must not be captured, got %+v", captures)
	}
}

func TestClosureLocalsNotCaptured(t *testing.T) {
	closure := eClosure(nil, nil,
		sLet("local", nil, eInt(3)),
		sRet(eIdent("local")))
	env := expectOK(t, &ast.Program{Functions: []*ast.Function{
		mkFn("main", nil, nil,
			sLet("f", nil, closure),
			sLet("r", nil, eCall("f")),
			sExpr(eCall("print", eIdent("r")))),
	}})
	if captures := env.ClosureCaptures[closure.Sp.Key()]; len(captures) != 0 {
		t.Errorf("locals must not be captured, got %+v", captures)
	}
}

// break inside a closure cannot target a loop outside it.
func TestClosureResetsLoopDepth(t *testing.T) {
	expectErr(t, &ast.Program{Functions: []*ast.Function{
		mkFn("main", nil, nil,
			&ast.While{
				Cond: eBool(true),
				Body: blk(
					sLet("f", nil, eClosure(nil, nil, &ast.Break{Sp: nsp()}))),
				Sp: nsp(),
			}),
	}}, "'break' can only be used inside a loop")
}

// ── Generics ────────────────────────────────────────────────────────────────

func identityFn() *ast.Function {
	return mkGenericFn("identity", []string{"T"},
		[]ast.Param{param("x", tNamed("T"))}, tNamed("T"),
		sRet(eIdent("x")))
}

// Scenario: identity(42) and identity("hi") register identity$$int and
// identity$$string, and both call sites get generic_rewrites entries.
func TestGenericFunctionInference(t *testing.T) {
	callInt := eCall("identity", eInt(42))
	callStr := eCall("identity", eStr("hi"))
	env := expectOK(t, &ast.Program{Functions: []*ast.Function{
		identityFn(),
		mkFn("main", nil, nil,
			sLet("a", tNamed("int"), callInt),
			sLet("b", tNamed("string"), callStr),
			sExpr(eCall("print", eIdent("a"))),
			sExpr(eCall("print", eIdent("b")))),
	}})
	if _, ok := env.GenericFunctions["identity"]; !ok {
		t.Error("generic template not registered")
	}
	sigInt, ok := env.Functions["identity$$int"]
	if !ok {
		t.Fatal("identity$$int not instantiated")
	}
	if !types.Equal(sigInt.Params[0], types.Int{}) || !types.Equal(sigInt.Return, types.Int{}) {
		t.Errorf("identity$$int sig = %+v", sigInt)
	}
	sigStr, ok := env.Functions["identity$$string"]
	if !ok {
		t.Fatal("identity$$string not instantiated")
	}
	if !types.Equal(sigStr.Return, types.String{}) {
		t.Errorf("identity$$string sig = %+v", sigStr)
	}
	if env.GenericRewrites[callInt.Sp.Key()] != "identity$$int" {
		t.Errorf("rewrite for int call = %q", env.GenericRewrites[callInt.Sp.Key()])
	}
	if env.GenericRewrites[callStr.Sp.Key()] != "identity$$string" {
		t.Errorf("rewrite for string call = %q", env.GenericRewrites[callStr.Sp.Key()])
	}
}

func TestGenericWrongArgCountRejected(t *testing.T) {
	expectErr(t, &ast.Program{Functions: []*ast.Function{
		identityFn(),
		mkFn("main", nil, nil, sLet("x", nil, eCall("identity", eInt(1), eInt(2)))),
	}}, "expects 1 arguments")
}

func TestGenericExplicitTypeArgs(t *testing.T) {
	env := expectOK(t, &ast.Program{Functions: []*ast.Function{
		identityFn(),
		mkFn("main", nil, nil,
			sLet("x", tNamed("int"), eCallT("identity", []ast.TypeExpr{tNamed("int")}, eInt(1))),
			sExpr(eCall("print", eIdent("x")))),
	}})
	if _, ok := env.Functions["identity$$int"]; !ok {
		t.Error("explicit instantiation not registered")
	}
}

func TestGenericInferenceConflictRejected(t *testing.T) {
	pair := mkGenericFn("same", []string{"T"},
		[]ast.Param{param("a", tNamed("T")), param("b", tNamed("T"))}, tNamed("T"),
		sRet(eIdent("a")))
	expectErr(t, &ast.Program{Functions: []*ast.Function{
		pair,
		mkFn("main", nil, nil, sLet("x", nil, eCall("same", eInt(1), eStr("x")))),
	}}, "cannot infer type parameters")
}

func TestGenericTwoTypeParams(t *testing.T) {
	first := mkGenericFn("first", []string{"A", "B"},
		[]ast.Param{param("a", tNamed("A")), param("b", tNamed("B"))}, tNamed("A"),
		sRet(eIdent("a")))
	env := expectOK(t, &ast.Program{Functions: []*ast.Function{
		first,
		mkFn("main", nil, nil,
			sLet("x", tNamed("int"), eCall("first", eInt(42), eStr("hello"))),
			sExpr(eCall("print", eIdent("x")))),
	}})
	if _, ok := env.Functions["first$$int$string"]; !ok {
		t.Error("first$$int$string not instantiated")
	}
}

func TestGenericClassInstantiation(t *testing.T) {
	box := &ast.ClassDecl{
		ID:         [16]byte{},
		Name:       nm("Box"),
		TypeParams: []ast.TypeParam{{Name: nm("T")}},
		Fields:     []ast.Field{mkField("value", tNamed("T"))},
		Lifecycle:  ast.Singleton,
		Sp:         nsp(),
	}
	env := expectOK(t, &ast.Program{
		Classes: []*ast.ClassDecl{box},
		Functions: []*ast.Function{
			mkFn("main", nil, nil,
				sLet("b", nil, eStructT("Box", []ast.TypeExpr{tNamed("int")}, fi("value", eInt(42))))),
		},
	})
	if _, ok := env.GenericClasses["Box"]; !ok {
		t.Error("generic class template not registered")
	}
	info, ok := env.Classes["Box$$int"]
	if !ok {
		t.Fatal("Box$$int not instantiated")
	}
	if !types.Equal(info.Fields[0].Type, types.Int{}) {
		t.Errorf("Box$$int field type = %s", info.Fields[0].Type)
	}
}

func TestGenericClassWrongArityRejected(t *testing.T) {
	box := &ast.ClassDecl{
		Name:       nm("Box"),
		TypeParams: []ast.TypeParam{{Name: nm("T")}},
		Fields:     []ast.Field{mkField("value", tNamed("T"))},
		Lifecycle:  ast.Singleton,
		Sp:         nsp(),
	}
	expectErr(t, &ast.Program{
		Classes: []*ast.ClassDecl{box},
		Functions: []*ast.Function{
			mkFn("main", nil, nil,
				sLet("b", nil, eStructT("Box",
					[]ast.TypeExpr{tNamed("int"), tNamed("string")},
					fi("value", eInt(42))))),
		},
	}, "expects 1 type arguments")
}

func TestGenericEnumInstantiation(t *testing.T) {
	option := &ast.EnumDecl{
		Name:       nm("Option"),
		TypeParams: []ast.TypeParam{{Name: nm("T")}},
		Variants: []ast.Variant{
			mkVariant("Some", vField("value", tNamed("T"))),
			mkVariant("None"),
		},
		Sp: nsp(),
	}
	env := expectOK(t, &ast.Program{
		Enums: []*ast.EnumDecl{option},
		Functions: []*ast.Function{
			mkFn("main", nil, nil,
				sLet("o", nil, eEnumData("Option", "Some", []ast.TypeExpr{tNamed("int")}, fi("value", eInt(42))))),
		},
	})
	if _, ok := env.GenericEnums["Option"]; !ok {
		t.Error("generic enum template not registered")
	}
	info, ok := env.Enums["Option$$int"]
	if !ok {
		t.Fatal("Option$$int not instantiated")
	}
	if !types.Equal(info.Variants[0].Fields[0].Type, types.Int{}) {
		t.Errorf("Option$$int Some field = %s", info.Variants[0].Fields[0].Type)
	}
}

func TestGenericEnumMatchBaseName(t *testing.T) {
	option := &ast.EnumDecl{
		Name:       nm("Option"),
		TypeParams: []ast.TypeParam{{Name: nm("T")}},
		Variants: []ast.Variant{
			mkVariant("Some", vField("value", tNamed("T"))),
			mkVariant("None"),
		},
		Sp: nsp(),
	}
	expectOK(t, &ast.Program{
		Enums: []*ast.EnumDecl{option},
		Functions: []*ast.Function{
			mkFn("main", nil, nil,
				sLet("o", nil, eEnumData("Option", "Some", []ast.TypeExpr{tNamed("int")}, fi("value", eInt(42)))),
				&ast.Match{
					Scrutinee: eIdent("o"),
					Arms: []ast.MatchArm{
						{EnumName: nm("Option"), Variant: nm("Some"),
							Bindings: []ast.MatchBinding{{Field: nm("value"), Rename: ptrName(nm("v"))}},
							Body:     blk(sExpr(eCall("print", eIdent("v"))))},
						{EnumName: nm("Option"), Variant: nm("None"), Body: blk(sExpr(eCall("print", eInt(0))))},
					},
					Sp: nsp(),
				}),
		},
	})
}

func ptrName(n ast.Name) *ast.Name { return &n }

func TestGenericTypeInAnnotation(t *testing.T) {
	box := &ast.ClassDecl{
		Name:       nm("Box"),
		TypeParams: []ast.TypeParam{{Name: nm("T")}},
		Fields:     []ast.Field{mkField("value", tNamed("T"))},
		Lifecycle:  ast.Singleton,
		Sp:         nsp(),
	}
	env := expectOK(t, &ast.Program{
		Classes: []*ast.ClassDecl{box},
		Functions: []*ast.Function{
			mkFn("main", nil, nil,
				sLet("b", tGeneric("Box", tNamed("int")),
					eStructT("Box", []ast.TypeExpr{tNamed("int")}, fi("value", eInt(42))))),
		},
	})
	if _, ok := env.Classes["Box$$int"]; !ok {
		t.Error("annotation did not instantiate Box$$int")
	}
}

func TestTraitBoundValidated(t *testing.T) {
	show := mkTrait("Show",
		mkTraitMethod("show", []ast.Param{selfParam()}, tNamed("string")))
	render := mkGenericFn("render", []string{"T"},
		[]ast.Param{param("x", tNamed("T"))}, tNamed("int"),
		sRet(eInt(0)))
	render.TypeParams[0].Bounds = []ast.Name{nm("Show")}

	plain := mkClass("Plain", []ast.Field{mkField("x", tNamed("int"))})
	expectErr(t, &ast.Program{
		Traits:  []*ast.TraitDecl{show},
		Classes: []*ast.ClassDecl{plain},
		Functions: []*ast.Function{
			render,
			mkFn("main", nil, nil,
				sLet("p", nil, eStruct("Plain", fi("x", eInt(1)))),
				sLet("r", nil, eCall("render", eIdent("p")))),
		},
	}, "does not implement required trait 'Show'")

	good := mkClass("Good", []ast.Field{mkField("x", tNamed("int"))},
		mkFn("show", []ast.Param{selfParam()}, tNamed("string"), sRet(eStr("good"))))
	good.ImplTraits = []ast.Name{nm("Show")}
	expectOK(t, &ast.Program{
		Traits:  []*ast.TraitDecl{show},
		Classes: []*ast.ClassDecl{good},
		Functions: []*ast.Function{
			render,
			mkFn("main", nil, nil,
				sLet("g", nil, eStruct("Good", fi("x", eInt(1)))),
				sLet("r", nil, eCall("render", eIdent("g"))),
				sExpr(eCall("print", eIdent("r")))),
		},
	})
}

// ── Unused-variable warnings ────────────────────────────────────────────────

func TestUnusedVariableWarning(t *testing.T) {
	program := &ast.Program{Functions: []*ast.Function{
		mkFn("main", nil, nil,
			sLet("used", nil, eInt(1)),
			sLet("unused", nil, eInt(2)),
			sLet("_ignored", nil, eInt(3)),
			sExpr(eCall("print", eIdent("used")))),
	}}
	env := expectOK(t, program)
	warnings := GenerateWarnings(program, env)
	if len(warnings) != 1 {
		t.Fatalf("warnings = %+v, want exactly one", warnings)
	}
	if warnings[0].Msg != "unused variable 'unused'" {
		t.Errorf("warning msg = %q", warnings[0].Msg)
	}
}
