package typecheck

import (
	"testing"

	"github.com/plutolang/pluto/internal/ast"
)

func oopsError() *ast.ErrorDecl {
	return mkError("Oops", vField("msg", tNamed("string")))
}

func TestErrorDeclRegistered(t *testing.T) {
	env := expectOK(t, &ast.Program{Errors: []*ast.ErrorDecl{oopsError()}})
	info, ok := env.Errors["Oops"]
	if !ok || len(info.Fields) != 1 {
		t.Fatalf("error Oops not registered: %+v", info)
	}
}

func TestBuiltinErrorsSeeded(t *testing.T) {
	env := NewEnv()
	for _, name := range []string{
		"MathError", "RustError", "ChannelClosed", "ChannelFull",
		"ChannelEmpty", "TaskCancelled", "NetworkError", "TimeoutError",
		"ServiceUnavailable",
	} {
		if _, ok := env.Errors[name]; !ok {
			t.Errorf("builtin error %s not pre-seeded", name)
		}
	}
	if env.Errors["TimeoutError"].Fields[0].Name != "millis" {
		t.Error("TimeoutError should carry a millis field")
	}
	if env.Errors["ServiceUnavailable"].Fields[0].Name != "service" {
		t.Error("ServiceUnavailable should carry a service field")
	}
}

func TestRaiseValid(t *testing.T) {
	expectOK(t, &ast.Program{
		Errors: []*ast.ErrorDecl{oopsError()},
		Functions: []*ast.Function{
			mkFn("fail", nil, nil, sRaise("Oops", fi("msg", eStr("bad")))),
		},
	})
}

func TestRaiseUnknownErrorRejected(t *testing.T) {
	expectErr(t, &ast.Program{Functions: []*ast.Function{
		mkFn("main", nil, nil, sRaise("Oops", fi("msg", eStr("bad")))),
	}}, "unknown error type 'Oops'")
}

func TestRaiseWrongFieldTypeRejected(t *testing.T) {
	expectErr(t, &ast.Program{
		Errors: []*ast.ErrorDecl{oopsError()},
		Functions: []*ast.Function{
			mkFn("main", nil, nil, sRaise("Oops", fi("msg", eInt(42)))),
		},
	}, "expected string, found int")
}

// Scenario: fn_errors["a"] = {E}, fn_errors["b"] = {E} via propagation, and
// main handling with catch stays clean.
func TestErrorEffectPropagationScenario(t *testing.T) {
	env := expectOK(t, &ast.Program{
		Errors: []*ast.ErrorDecl{mkError("E", vField("m", tNamed("string")))},
		Functions: []*ast.Function{
			mkFn("a", nil, tNamed("int"),
				sRaise("E", fi("m", eStr("x"))),
				sRet(eInt(0))),
			mkFn("b", nil, tNamed("int"),
				sRet(eProp(eCall("a")))),
			mkFn("main", nil, nil,
				sLet("x", nil, eCatchShorthand(eCall("b"), eInt(0))),
				sExpr(eCall("print", eIdent("x")))),
		},
	})
	if !env.FnErrors["a"]["E"] {
		t.Errorf("fn_errors[a] = %v, want {E}", env.FnErrors["a"])
	}
	if !env.FnErrors["b"]["E"] {
		t.Errorf("fn_errors[b] = %v, want {E}", env.FnErrors["b"])
	}
	if env.IsFnFallible("main") {
		t.Errorf("main should be infallible, got %v", env.FnErrors["main"])
	}
}

func TestBareFallibleCallRejected(t *testing.T) {
	expectErr(t, &ast.Program{
		Errors: []*ast.ErrorDecl{oopsError()},
		Functions: []*ast.Function{
			mkFn("fail", nil, nil, sRaise("Oops", fi("msg", eStr("bad")))),
			mkFn("main", nil, nil, sExpr(eCall("fail"))),
		},
	}, "must be handled with ! or catch")
}

func TestPropagateOnInfallibleRejected(t *testing.T) {
	expectErr(t, &ast.Program{Functions: []*ast.Function{
		mkFn("safe", nil, nil),
		mkFn("main", nil, nil, sExpr(eProp(eCall("safe")))),
	}}, "'!' applied to infallible function")
}

func TestCatchOnInfallibleRejected(t *testing.T) {
	expectErr(t, &ast.Program{Functions: []*ast.Function{
		mkFn("safe", nil, tNamed("int"), sRet(eInt(42))),
		mkFn("main", nil, nil,
			sLet("x", nil, eCatchShorthand(eCall("safe"), eInt(0)))),
	}}, "catch applied to infallible function")
}

func TestCatchStopsPropagation(t *testing.T) {
	env := expectOK(t, &ast.Program{
		Errors: []*ast.ErrorDecl{oopsError()},
		Functions: []*ast.Function{
			mkFn("a", nil, tNamed("int"),
				sRaise("Oops", fi("msg", eStr("a"))),
				sRet(eInt(0))),
			mkFn("b", nil, nil,
				sLet("x", nil, eCatchShorthand(eCall("a"), eInt(0))),
				sExpr(eCall("print", eIdent("x")))),
			mkFn("main", nil, nil, sExpr(eCall("b"))),
		},
	})
	if !env.IsFnFallible("a") {
		t.Error("a should be fallible")
	}
	if env.IsFnFallible("b") {
		t.Error("b handled the error and should be infallible")
	}
}

func TestTransitivePropagation(t *testing.T) {
	env := expectOK(t, &ast.Program{
		Errors: []*ast.ErrorDecl{oopsError()},
		Functions: []*ast.Function{
			mkFn("a", nil, nil, sRaise("Oops", fi("msg", eStr("a")))),
			mkFn("b", nil, nil, sExpr(eProp(eCall("a")))),
			mkFn("c", nil, nil, sExpr(eProp(eCall("b")))),
			mkFn("main", nil, nil, sExpr(eProp(eCall("c")))),
		},
	})
	for _, fn := range []string{"a", "b", "c", "main"} {
		if !env.FnErrors[fn]["Oops"] {
			t.Errorf("fn_errors[%s] should contain Oops, got %v", fn, env.FnErrors[fn])
		}
	}
}

// Callee error sets are always subsets of propagating callers.
func TestErrorSetSubsetInvariant(t *testing.T) {
	env := expectOK(t, &ast.Program{
		Errors: []*ast.ErrorDecl{
			mkError("E1", vField("m", tNamed("string"))),
			mkError("E2", vField("m", tNamed("string"))),
		},
		Functions: []*ast.Function{
			mkFn("f1", nil, nil, sRaise("E1", fi("m", eStr("x")))),
			mkFn("f2", nil, nil,
				sRaise("E2", fi("m", eStr("y"))),
				sExpr(eProp(eCall("f1")))),
			mkFn("top", nil, nil, sExpr(eProp(eCall("f2")))),
		},
	})
	for e := range env.FnErrors["f2"] {
		if !env.FnErrors["top"][e] {
			t.Errorf("fn_errors[f2] ⊄ fn_errors[top]: missing %s", e)
		}
	}
	if !env.FnErrors["f2"]["E1"] || !env.FnErrors["f2"]["E2"] {
		t.Errorf("fn_errors[f2] = %v, want {E1, E2}", env.FnErrors["f2"])
	}
}

func TestFalliblePowRequiresHandling(t *testing.T) {
	expectErr(t, &ast.Program{Functions: []*ast.Function{
		mkFn("main", nil, nil,
			sLet("x", nil, eCall("pow", eInt(2), eInt(10)))),
	}}, "must be handled")
	// Float pow is infallible.
	expectOK(t, &ast.Program{Functions: []*ast.Function{
		mkFn("main", nil, nil,
			sLet("x", nil, eCall("pow", eFloat(2), eFloat(10))),
			sExpr(eCall("print", eIdent("x")))),
	}})
}

func TestFallibleExternSeedsRustError(t *testing.T) {
	env := expectOK(t, &ast.Program{
		ExternFns: []*ast.ExternFn{{
			Name:       nm("ffi_work"),
			Params:     []ast.Param{param("x", tNamed("int"))},
			ReturnType: tNamed("int"),
			Sp:         nsp(),
		}},
		FallibleExternFns: []string{"ffi_work"},
		Functions: []*ast.Function{
			mkFn("main", nil, nil,
				sLet("x", nil, eProp(eCall("ffi_work", eInt(1)))),
				sExpr(eCall("print", eIdent("x")))),
		},
	})
	if !env.FnErrors["ffi_work"]["RustError"] {
		t.Errorf("ffi_work should raise RustError, got %v", env.FnErrors["ffi_work"])
	}
	if !env.FnErrors["main"]["RustError"] {
		t.Errorf("RustError should propagate to main, got %v", env.FnErrors["main"])
	}
}

func TestExternNonPrimitiveRejected(t *testing.T) {
	expectErr(t, &ast.Program{
		Classes: []*ast.ClassDecl{mkClass("P", nil)},
		ExternFns: []*ast.ExternFn{{
			Name:   nm("bad"),
			Params: []ast.Param{param("p", tNamed("P"))},
			Sp:     nsp(),
		}},
	}, "extern functions only support primitive types")
}

// ── Channels, select, spawn ────────────────────────────────────────────────

func TestChannelOpsFallibility(t *testing.T) {
	env := expectOK(t, &ast.Program{Functions: []*ast.Function{
		mkFn("worker", nil, nil,
			&ast.LetChan{Sender: nm("tx"), Receiver: nm("rx"), ElemType: tNamed("int"), Capacity: eInt(4), Sp: nsp()},
			sExpr(eProp(eMethod(eIdent("tx"), "send", eInt(1)))),
			sLet("v", nil, eProp(eMethod(eIdent("rx"), "recv"))),
			sExpr(eCall("print", eIdent("v")))),
	}})
	if !env.FnErrors["worker"]["ChannelClosed"] {
		t.Errorf("worker should carry ChannelClosed, got %v", env.FnErrors["worker"])
	}
}

func TestTrySendErrors(t *testing.T) {
	env := expectOK(t, &ast.Program{Functions: []*ast.Function{
		mkFn("worker", nil, nil,
			&ast.LetChan{Sender: nm("tx"), Receiver: nm("rx"), ElemType: tNamed("int"), Sp: nsp()},
			sExpr(eProp(eMethod(eIdent("tx"), "try_send", eInt(1)))),
			sLet("v", nil, eProp(eMethod(eIdent("rx"), "try_recv"))),
			sExpr(eCall("print", eIdent("v")))),
	}})
	for _, e := range []string{"ChannelClosed", "ChannelFull", "ChannelEmpty"} {
		if !env.FnErrors["worker"][e] {
			t.Errorf("worker should carry %s, got %v", e, env.FnErrors["worker"])
		}
	}
}

func TestBareChannelSendRejected(t *testing.T) {
	expectErr(t, &ast.Program{Functions: []*ast.Function{
		mkFn("worker", nil, nil,
			&ast.LetChan{Sender: nm("tx"), Receiver: nm("rx"), ElemType: tNamed("int"), Sp: nsp()},
			sExpr(eMethod(eIdent("tx"), "send", eInt(1)))),
	}}, "fallible method 'send'")
}

func TestSelectWithoutDefaultAddsChannelClosed(t *testing.T) {
	env := expectOK(t, &ast.Program{Functions: []*ast.Function{
		mkFn("worker", nil, nil,
			&ast.LetChan{Sender: nm("tx"), Receiver: nm("rx"), ElemType: tNamed("int"), Sp: nsp()},
			&ast.Select{
				Arms: []ast.SelectArm{{
					Op:   &ast.SelectRecv{Binding: nm("v"), Channel: eIdent("rx")},
					Body: blk(sExpr(eCall("print", eIdent("v")))),
				}},
				Sp: nsp(),
			}),
	}})
	if !env.FnErrors["worker"]["ChannelClosed"] {
		t.Errorf("select without default should add ChannelClosed, got %v", env.FnErrors["worker"])
	}
}

func TestSelectWithDefaultStaysClean(t *testing.T) {
	env := expectOK(t, &ast.Program{Functions: []*ast.Function{
		mkFn("worker", nil, nil,
			&ast.LetChan{Sender: nm("tx"), Receiver: nm("rx"), ElemType: tNamed("int"), Sp: nsp()},
			&ast.Select{
				Arms: []ast.SelectArm{{
					Op:   &ast.SelectRecv{Binding: nm("v"), Channel: eIdent("rx")},
					Body: blk(sExpr(eCall("print", eIdent("v")))),
				}},
				Default: blk(),
				Sp:      nsp(),
			}),
	}})
	if env.IsFnFallible("worker") {
		t.Errorf("select with default should not be fallible, got %v", env.FnErrors["worker"])
	}
}

func TestSpawnProducesTask(t *testing.T) {
	env := expectOK(t, &ast.Program{Functions: []*ast.Function{
		mkFn("compute", nil, tNamed("int"), sRet(eInt(7))),
		mkFn("main", nil, nil,
			sLet("task", nil, eSpawnOf(eCall("compute"))),
			sLet("v", nil, eMethod(eIdent("task"), "get")),
			sExpr(eCall("print", eIdent("v")))),
	}})
	found := false
	for _, target := range env.SpawnTargetFns {
		if target == "compute" {
			found = true
		}
	}
	if !found {
		t.Errorf("spawn target not recorded: %v", env.SpawnTargetFns)
	}
}

func TestBareTaskStatementRejected(t *testing.T) {
	expectErr(t, &ast.Program{Functions: []*ast.Function{
		mkFn("compute", nil, tNamed("int"), sRet(eInt(7))),
		mkFn("main", nil, nil, sExpr(eSpawnOf(eCall("compute")))),
	}}, "Task handle must be used")
}

func TestTaskGetKnownOriginFollowsCallee(t *testing.T) {
	// compute is infallible → task.get() is infallible and bare use is OK.
	expectOK(t, &ast.Program{Functions: []*ast.Function{
		mkFn("compute", nil, tNamed("int"), sRet(eInt(7))),
		mkFn("main", nil, nil,
			sLet("task", nil, eSpawnOf(eCall("compute"))),
			sLet("v", nil, eMethod(eIdent("task"), "get")),
			sExpr(eCall("print", eIdent("v")))),
	}})
}

func TestTaskGetFallibleOriginNeedsHandling(t *testing.T) {
	expectErr(t, &ast.Program{
		Errors: []*ast.ErrorDecl{oopsError()},
		Functions: []*ast.Function{
			mkFn("compute", nil, tNamed("int"),
				sRaise("Oops", fi("msg", eStr("x"))),
				sRet(eInt(7))),
			mkFn("main", nil, nil,
				sLet("task", nil, eSpawnOf(eCall("compute"))),
				sLet("v", nil, eMethod(eIdent("task"), "get"))),
		},
	}, "fallible method 'get'")
}

func TestTaskReassignmentInvalidatesOrigin(t *testing.T) {
	// After reassignment, the origin is unknown; .get() is conservatively
	// fallible even though compute never raises.
	expectErr(t, &ast.Program{Functions: []*ast.Function{
		mkFn("compute", nil, tNamed("int"), sRet(eInt(7))),
		mkFn("main", nil, nil,
			sLetMut("task", nil, eSpawnOf(eCall("compute"))),
			sAssign("task", eSpawnOf(eCall("compute"))),
			sLet("v", nil, eMethod(eIdent("task"), "get"))),
	}}, "fallible method 'get'")
}

func TestTaskDetachAndCancelInfallible(t *testing.T) {
	expectOK(t, &ast.Program{Functions: []*ast.Function{
		mkFn("compute", nil, tNamed("int"), sRet(eInt(7))),
		mkFn("main", nil, nil,
			sLet("t1", nil, eSpawnOf(eCall("compute"))),
			sExpr(eMethod(eIdent("t1"), "detach")),
			sLet("t2", nil, eSpawnOf(eCall("compute"))),
			sExpr(eMethod(eIdent("t2"), "cancel"))),
	}})
}

func TestPropagateInSpawnArgsRejected(t *testing.T) {
	expectErr(t, &ast.Program{
		Errors: []*ast.ErrorDecl{oopsError()},
		Functions: []*ast.Function{
			mkFn("risky", nil, tNamed("int"),
				sRaise("Oops", fi("msg", eStr("x"))),
				sRet(eInt(1))),
			mkFn("compute", []ast.Param{param("x", tNamed("int"))}, tNamed("int"),
				sRet(eIdent("x"))),
			mkFn("main", nil, nil,
				sLet("t", nil, eSpawnOf(eCall("compute", eProp(eCall("risky")))))),
		},
	}, "not allowed in spawn arguments")
}
