package typecheck

import (
	"testing"

	"github.com/plutolang/pluto/internal/ast"
)

func appWith(injectFields []ast.Field, methods ...*ast.Function) *ast.AppDecl {
	if len(methods) == 0 {
		methods = []*ast.Function{mkFn("main", []ast.Param{selfParam()}, nil)}
	}
	return mkApp("MyApp", injectFields, methods...)
}

func TestAppBasicRegistration(t *testing.T) {
	env := expectOK(t, &ast.Program{App: appWith(nil)})
	if env.App == nil || env.App.Name != "MyApp" {
		t.Fatalf("app not registered: %+v", env.App)
	}
}

func TestAppWithDeps(t *testing.T) {
	db := mkClass("Database", nil,
		mkFn("query", []ast.Param{selfParam()}, tNamed("string"), sRet(eStr("result"))))
	env := expectOK(t, &ast.Program{
		Classes: []*ast.ClassDecl{db},
		App: appWith(
			[]ast.Field{mkInjectField("db", tNamed("Database"))},
			mkFn("main", []ast.Param{selfParam()}, nil,
				sLet("r", nil, eMethod(eField(eIdent("self"), "db"), "query")),
				sExpr(eCall("print", eIdent("r"))))),
	})
	if len(env.DIOrder) != 1 || env.DIOrder[0] != "Database" {
		t.Fatalf("DIOrder = %v, want [Database]", env.DIOrder)
	}
}

func TestDICycleRejected(t *testing.T) {
	a := mkClass("A", []ast.Field{mkInjectField("b", tNamed("B"))})
	b := mkClass("B", []ast.Field{mkInjectField("a", tNamed("A"))})
	expectErr(t, &ast.Program{
		Classes: []*ast.ClassDecl{a, b},
		App:     appWith([]ast.Field{mkInjectField("a", tNamed("A"))}),
	}, "circular dependency detected")
}

func TestAppAndTopLevelMainRejected(t *testing.T) {
	expectErr(t, &ast.Program{
		Functions: []*ast.Function{mkFn("main", nil, nil)},
		App:       appWith(nil),
	}, "cannot have both")
}

func TestAppMissingMainRejected(t *testing.T) {
	expectErr(t, &ast.Program{
		App: mkApp("MyApp", nil, mkFn("other", []ast.Param{selfParam()}, nil)),
	}, "must have a 'main' method")
}

func TestAppMainWithoutSelfRejected(t *testing.T) {
	expectErr(t, &ast.Program{
		App: mkApp("MyApp", nil, mkFn("main", nil, nil)),
	}, "must take 'self'")
}

func TestAppMainWithReturnTypeRejected(t *testing.T) {
	expectErr(t, &ast.Program{
		App: mkApp("MyApp", nil,
			mkFn("main", []ast.Param{selfParam()}, tNamed("int"), sRet(eInt(0)))),
	}, "must not have a return type")
}

func TestLifecyclePropagation(t *testing.T) {
	dep := mkClass("Dep", []ast.Field{mkField("x", tNamed("int"))})
	dep.Lifecycle = ast.Scoped
	svc := mkClass("Svc", []ast.Field{mkInjectField("d", tNamed("Dep"))})
	svc.Lifecycle = ast.Singleton
	env := expectOK(t, &ast.Program{Classes: []*ast.ClassDecl{dep, svc}})
	// Svc depends on a scoped class, so it cannot outlive it.
	if env.Classes["Svc"].Lifecycle != ast.Scoped {
		t.Errorf("Svc lifecycle = %s, want scoped", env.Classes["Svc"].Lifecycle)
	}
}

// Lifecycle invariant: a class never outlives its injected dependencies.
func TestLifecycleInvariantHolds(t *testing.T) {
	transient := mkClass("T1", []ast.Field{mkField("x", tNamed("int"))})
	transient.Lifecycle = ast.Transient
	mid := mkClass("Mid", []ast.Field{mkInjectField("t", tNamed("T1"))})
	mid.Lifecycle = ast.Scoped
	top := mkClass("Top", []ast.Field{mkInjectField("m", tNamed("Mid"))})
	top.Lifecycle = ast.Singleton
	env := expectOK(t, &ast.Program{Classes: []*ast.ClassDecl{transient, mid, top}})
	for _, name := range []string{"Mid", "Top"} {
		info := env.Classes[name]
		for _, f := range info.Fields {
			if !f.IsInjected {
				continue
			}
			if depName, ok := f.Type.(interface{ String() string }); ok {
				dep := env.Classes[depName.String()]
				if dep != nil && info.Lifecycle > dep.Lifecycle {
					t.Errorf("%s (%s) outlives dep %s (%s)", name, info.Lifecycle, depName, dep.Lifecycle)
				}
			}
		}
	}
}

// Scenario: app bracket-injecting a scoped class fails; going through a
// scope block passes.
func TestScopedBracketDepScenario(t *testing.T) {
	mkProgram := func(useScope bool) *ast.Program {
		dep := mkClass("Dep", []ast.Field{mkField("x", tNamed("int"))})
		svc := mkClass("Svc", []ast.Field{mkInjectField("d", tNamed("Dep"))})
		svc.Lifecycle = ast.Scoped
		var appMain *ast.Function
		var injects []ast.Field
		if useScope {
			appMain = mkFn("main", []ast.Param{selfParam()}, nil,
				&ast.Scope{
					Bindings: []ast.ScopeBinding{{Name: nm("s"), Type: tNamed("Svc")}},
					Body:     blk(),
					Sp:       nsp(),
				})
		} else {
			injects = []ast.Field{mkInjectField("s", tNamed("Svc"))}
			appMain = mkFn("main", []ast.Param{selfParam()}, nil)
		}
		return &ast.Program{
			Classes: []*ast.ClassDecl{dep, svc},
			App:     mkApp("A", injects, appMain),
		}
	}
	expectErr(t, mkProgram(false), "use scope blocks")
	expectOK(t, mkProgram(true))
}

func TestLifecycleOverrideShortenOnly(t *testing.T) {
	dep := mkClass("Cache", []ast.Field{mkField("x", tNamed("int"))})
	dep.Lifecycle = ast.Scoped
	app := appWith(nil)
	app.LifecycleOverrides = []ast.LifecycleOverride{{ClassName: nm("Cache"), Target: ast.Singleton}}
	expectErr(t, &ast.Program{
		Classes: []*ast.ClassDecl{dep},
		App:     app,
	}, "can only shorten")
}

func TestLifecycleOverrideApplied(t *testing.T) {
	dep := mkClass("Cache", []ast.Field{mkField("x", tNamed("int"))})
	dep.Lifecycle = ast.Singleton
	app := appWith(nil)
	app.LifecycleOverrides = []ast.LifecycleOverride{{ClassName: nm("Cache"), Target: ast.Scoped}}
	env := expectOK(t, &ast.Program{
		Classes: []*ast.ClassDecl{dep},
		App:     app,
	})
	if env.Classes["Cache"].Lifecycle != ast.Scoped {
		t.Errorf("Cache lifecycle = %s, want scoped", env.Classes["Cache"].Lifecycle)
	}
	if !env.LifecycleOverridden["Cache"] {
		t.Error("Cache should be marked lifecycle-overridden")
	}
}

func TestOverriddenBracketDepRejected(t *testing.T) {
	dep := mkClass("Cache", []ast.Field{mkField("x", tNamed("int"))})
	dep.Lifecycle = ast.Singleton
	app := appWith([]ast.Field{mkInjectField("c", tNamed("Cache"))})
	app.LifecycleOverrides = []ast.LifecycleOverride{{ClassName: nm("Cache"), Target: ast.Scoped}}
	expectErr(t, &ast.Program{
		Classes: []*ast.ClassDecl{dep},
		App:     app,
	}, "use scope blocks")
}

func TestUsesRequiresAmbientDeclaration(t *testing.T) {
	helper := mkClass("Helper", []ast.Field{mkField("x", tNamed("int"))})
	user := mkClass("User", nil)
	user.Uses = []ast.Name{nm("Helper")}
	expectErr(t, &ast.Program{
		Classes: []*ast.ClassDecl{helper, user},
		App:     appWith(nil),
	}, "not declared ambient")

	app := appWith(nil)
	app.AmbientTypes = []ast.Name{nm("Helper")}
	expectOK(t, &ast.Program{
		Classes: []*ast.ClassDecl{helper, user},
		App:     app,
	})
}

// ── Scope blocks ────────────────────────────────────────────────────────────

func scopedClass(name string, fields ...ast.Field) *ast.ClassDecl {
	c := mkClass(name, fields)
	c.Lifecycle = ast.Scoped
	return c
}

func TestScopeBlockBasicResolution(t *testing.T) {
	// Repo (scoped, fully injected deps: none) auto-creates; Svc binds.
	repo := scopedClass("Repo")
	svc := scopedClass("Svc", mkInjectField("r", tNamed("Repo")))
	scopeStmt := &ast.Scope{
		Bindings: []ast.ScopeBinding{{Name: nm("s"), Type: tNamed("Svc")}},
		Body:     blk(),
		Sp:       nsp(),
	}
	env := expectOK(t, &ast.Program{
		Classes: []*ast.ClassDecl{repo, svc},
		Functions: []*ast.Function{
			mkFn("main", nil, nil, scopeStmt),
		},
	})
	res := env.ScopeResolutions[scopeStmt.Sp.Key()]
	if res == nil {
		t.Fatal("scope resolution not recorded")
	}
	// Repo must be created before Svc.
	if len(res.CreationOrder) != 2 || res.CreationOrder[0] != "Repo" || res.CreationOrder[1] != "Svc" {
		t.Errorf("creation order = %v, want [Repo Svc]", res.CreationOrder)
	}
	if len(res.BindingSources) != 1 || res.BindingSources[0].Kind != WireScopedInstance {
		t.Errorf("binding sources = %+v", res.BindingSources)
	}
	wirings := res.FieldWirings["Svc"]
	if len(wirings) != 1 || wirings[0].Field != "r" || wirings[0].Wiring.Kind != WireScopedInstance {
		t.Errorf("Svc wirings = %+v", wirings)
	}
}

func TestScopeSeedWiring(t *testing.T) {
	cfg := scopedClass("Config", mkField("path", tNamed("string")))
	svc := scopedClass("Svc", mkInjectField("c", tNamed("Config")))
	scopeStmt := &ast.Scope{
		Seeds:    []ast.Expr{eStruct("Config", fi("path", eStr("/tmp")))},
		Bindings: []ast.ScopeBinding{{Name: nm("s"), Type: tNamed("Svc")}},
		Body:     blk(),
		Sp:       nsp(),
	}
	env := expectOK(t, &ast.Program{
		Classes: []*ast.ClassDecl{cfg, svc},
		Functions: []*ast.Function{
			mkFn("main", nil, nil, scopeStmt),
		},
	})
	res := env.ScopeResolutions[scopeStmt.Sp.Key()]
	wirings := res.FieldWirings["Svc"]
	if len(wirings) != 1 || wirings[0].Wiring.Kind != WireSeed || wirings[0].Wiring.SeedIndex != 0 {
		t.Errorf("Svc wirings = %+v, want seed 0", wirings)
	}
}

func TestScopeSingletonWiring(t *testing.T) {
	logger := mkClass("Logger", nil) // singleton
	svc := scopedClass("Svc", mkInjectField("log", tNamed("Logger")))
	scopeStmt := &ast.Scope{
		Bindings: []ast.ScopeBinding{{Name: nm("s"), Type: tNamed("Svc")}},
		Body:     blk(),
		Sp:       nsp(),
	}
	env := expectOK(t, &ast.Program{
		Classes: []*ast.ClassDecl{logger, svc},
		Functions: []*ast.Function{
			mkFn("main", nil, nil, scopeStmt),
		},
	})
	wirings := env.ScopeResolutions[scopeStmt.Sp.Key()].FieldWirings["Svc"]
	if len(wirings) != 1 || wirings[0].Wiring.Kind != WireSingleton || wirings[0].Wiring.ClassName != "Logger" {
		t.Errorf("Svc wirings = %+v, want singleton Logger", wirings)
	}
}

func TestScopeNonScopedSeedRejected(t *testing.T) {
	plain := mkClass("Plain", []ast.Field{mkField("x", tNamed("int"))})
	expectErr(t, &ast.Program{
		Classes: []*ast.ClassDecl{plain},
		Functions: []*ast.Function{
			mkFn("main", nil, nil, &ast.Scope{
				Seeds: []ast.Expr{eStruct("Plain", fi("x", eInt(1)))},
				Body:  blk(),
				Sp:    nsp(),
			}),
		},
	}, "scope seed must be a scoped class")
}

func TestScopeNonInjectedFieldsNeedSeed(t *testing.T) {
	cfg := scopedClass("Config", mkField("path", tNamed("string")))
	svc := scopedClass("Svc", mkInjectField("c", tNamed("Config")))
	expectErr(t, &ast.Program{
		Classes: []*ast.ClassDecl{cfg, svc},
		Functions: []*ast.Function{
			mkFn("main", nil, nil, &ast.Scope{
				Bindings: []ast.ScopeBinding{{Name: nm("s"), Type: tNamed("Svc")}},
				Body:     blk(),
				Sp:       nsp(),
			}),
		},
	}, "must be provided as a seed")
}

func TestScopeTaintedClosureCannotEscapeViaReturn(t *testing.T) {
	repo := scopedClass("Repo")
	expectErr(t, &ast.Program{
		Classes: []*ast.ClassDecl{repo},
		Functions: []*ast.Function{
			mkFn("leak", nil, tFn(nil, tNamed("int")),
				&ast.Scope{
					Bindings: []ast.ScopeBinding{{Name: nm("r"), Type: tNamed("Repo")}},
					Body: blk(
						sLet("f", nil, eClosure(nil, tNamed("int"),
							sLet("x", nil, eIdent("r")),
							sRet(eInt(1)))),
						sRet(eIdent("f"))),
					Sp: nsp(),
				}),
		},
	}, "cannot escape scope block via return")
}

func TestSpawnCapturingScopeBindingRejected(t *testing.T) {
	repo := scopedClass("Repo")
	expectErr(t, &ast.Program{
		Classes: []*ast.ClassDecl{repo},
		Functions: []*ast.Function{
			mkFn("use_repo", []ast.Param{param("r", tNamed("Repo"))}, tNamed("int"),
				sRet(eInt(1))),
			mkFn("main", nil, nil,
				&ast.Scope{
					Bindings: []ast.ScopeBinding{{Name: nm("r"), Type: tNamed("Repo")}},
					Body: blk(
						sLet("t", nil, eSpawnOf(eCall("use_repo", eIdent("r"))))),
					Sp: nsp(),
				}),
		},
	}, "task would capture scope binding")
}
