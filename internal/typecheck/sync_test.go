package typecheck

import (
	"testing"

	"github.com/plutolang/pluto/internal/ast"
)

// counterClass is a singleton touched by both the main flow and a spawned
// worker in the fixtures below.
func counterClass() *ast.ClassDecl {
	return mkClass("Counter",
		[]ast.Field{mkField("n", tNamed("int"))},
		mkFn("get", []ast.Param{selfParam()}, tNamed("int"),
			sRet(eField(eIdent("self"), "n"))),
		mkFn("incr", []ast.Param{mutSelfParam()}, nil,
			&ast.FieldAssign{
				Object: eIdent("self"),
				Field:  nm("n"),
				Value:  eBin(ast.Add, eField(eIdent("self"), "n"), eInt(1)),
				Sp:     nsp(),
			}),
		mkFn("peek", []ast.Param{selfParam()}, tNamed("int"),
			sRet(eMethod(eIdent("self"), "get"))))
}

func sharedCounterProgram() *ast.Program {
	return &ast.Program{
		Classes: []*ast.ClassDecl{counterClass()},
		Functions: []*ast.Function{
			mkFn("worker", []ast.Param{param("c", tNamed("Counter"))}, tNamed("int"),
				sRet(eMethod(eIdent("c"), "get"))),
			mkFn("main", nil, nil,
				sLetMut("c", nil, eStruct("Counter", fi("n", eInt(0)))),
				sLet("t", nil, eSpawnOf(eCall("worker", eIdent("c")))),
				sExpr(eMethod(eIdent("t"), "detach")),
				sExpr(eMethod(eIdent("c"), "incr"))),
		},
	}
}

func TestSyncInferenceMarksSharedSingleton(t *testing.T) {
	env := expectOK(t, sharedCounterProgram())
	// incr mutates: write-guarded. get reads: read-guarded. peek calls
	// only get: read-guarded.
	write, ok := env.SyncMethods["Counter$incr"]
	if !ok || !write {
		t.Errorf("Counter$incr guard = %v,%v, want write-guarded", write, ok)
	}
	read, ok := env.SyncMethods["Counter$get"]
	if !ok || read {
		t.Errorf("Counter$get guard = %v,%v, want read-guarded", read, ok)
	}
	peek, ok := env.SyncMethods["Counter$peek"]
	if !ok || peek {
		t.Errorf("Counter$peek guard = %v,%v, want read-guarded", peek, ok)
	}
}

func TestSyncInferenceWriteGuardPropagates(t *testing.T) {
	// A non-mut method that calls a write-guarded method of the same class
	// (through another instance) is itself write-guarded.
	cls := mkClass("Store",
		[]ast.Field{mkField("n", tNamed("int"))},
		mkFn("set", []ast.Param{mutSelfParam()}, nil,
			&ast.FieldAssign{Object: eIdent("self"), Field: nm("n"), Value: eInt(1), Sp: nsp()}),
		mkFn("read", []ast.Param{selfParam()}, tNamed("int"),
			sRet(eField(eIdent("self"), "n"))),
		mkFn("sync_from", []ast.Param{selfParam(), param("other", tNamed("Store"))}, nil,
			sExpr(eMethod(eIdent("other"), "set"))))
	env := expectOK(t, &ast.Program{
		Classes: []*ast.ClassDecl{cls},
		Functions: []*ast.Function{
			mkFn("worker", []ast.Param{param("s", tNamed("Store"))}, tNamed("int"),
				sRet(eMethod(eIdent("s"), "read"))),
			mkFn("main", nil, nil,
				sLetMut("s", nil, eStruct("Store", fi("n", eInt(0)))),
				sLet("t", nil, eSpawnOf(eCall("worker", eIdent("s")))),
				sExpr(eMethod(eIdent("t"), "detach")),
				sExpr(eMethod(eIdent("s"), "sync_from", eIdent("s")))),
		},
	})
	if write := env.SyncMethods["Store$set"]; !write {
		t.Errorf("Store$set should be write-guarded, got %v", env.SyncMethods)
	}
	if write := env.SyncMethods["Store$sync_from"]; !write {
		t.Errorf("Store$sync_from should be write-guarded transitively, got %v", env.SyncMethods)
	}
	if write := env.SyncMethods["Store$read"]; write {
		t.Errorf("Store$read should be read-guarded, got %v", env.SyncMethods)
	}
}

func TestSyncInferenceNoSpawnNoMarks(t *testing.T) {
	env := expectOK(t, &ast.Program{
		Classes: []*ast.ClassDecl{counterClass()},
		Functions: []*ast.Function{
			mkFn("main", nil, nil,
				sLetMut("c", nil, eStruct("Counter", fi("n", eInt(0)))),
				sExpr(eMethod(eIdent("c"), "incr"))),
		},
	})
	if len(env.SyncMethods) != 0 {
		t.Errorf("no spawns: SyncMethods should be empty, got %v", env.SyncMethods)
	}
}

func TestSyncInferenceThreadOnlyTouchNotShared(t *testing.T) {
	// Only the spawned side touches the singleton: no locking needed.
	env := expectOK(t, &ast.Program{
		Classes: []*ast.ClassDecl{counterClass()},
		Functions: []*ast.Function{
			mkFn("worker", []ast.Param{param("c", tNamed("Counter"))}, tNamed("int"),
				sRet(eMethod(eIdent("c"), "get"))),
			mkFn("main", nil, nil,
				sLet("c", nil, eStruct("Counter", fi("n", eInt(0)))),
				sLet("t", nil, eSpawnOf(eCall("worker", eIdent("c")))),
				sExpr(eMethod(eIdent("t"), "detach"))),
		},
	})
	if len(env.SyncMethods) != 0 {
		t.Errorf("thread-only touch: SyncMethods should be empty, got %v", env.SyncMethods)
	}
}
