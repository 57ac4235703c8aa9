package cache

import (
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/tools/txtar"

	"github.com/plutolang/pluto/internal/ast"
	"github.com/plutolang/pluto/internal/source"
	"github.com/plutolang/pluto/internal/typecheck"
	"github.com/plutolang/pluto/internal/types"
)

// fixtureSourceMap builds a source map from a txtar archive, one file per
// archive entry. Tests construct their tiny programs directly and use the
// archive only for raw source text.
func fixtureSourceMap(t *testing.T, archive string) *source.Map {
	t.Helper()
	ar := txtar.Parse([]byte(archive))
	sm := source.NewMap()
	for _, f := range ar.Files {
		sm.AddFile(f.Name, string(f.Data))
	}
	return sm
}

// mkFnAt builds a function whose span covers [start, end) in file 0 and
// whose body starts at bodyStart.
func mkFnAt(name string, start, end, bodyStart int) *ast.Function {
	return &ast.Function{
		ID:   uuid.New(),
		Name: ast.Name{Value: name, Sp: source.NewSpan(start, start+len(name))},
		Body: &ast.Block{Sp: source.NewSpan(bodyStart, end)},
		Sp:   source.NewSpan(start, end),
	}
}

func TestDeclKeyMapRoundTrip(t *testing.T) {
	sm := fixtureSourceMap(t, "-- main.pluto --\nfn a() {}\nfn b() {}\n")
	program := &ast.Program{Functions: []*ast.Function{
		mkFnAt("a", 0, 9, 7),
		mkFnAt("b", 10, 19, 17),
	}}
	m := BuildDeclKeyMap(program, sm)
	keyA, ok := m.Key(program.Functions[0].ID)
	require.True(t, ok)
	assert.Equal(t, DeclKey{File: "main.pluto", Kind: "fn", Name: "a"}, keyA)
	id, ok := m.UUID(keyA)
	require.True(t, ok)
	assert.Equal(t, program.Functions[0].ID, id)
}

func TestFnErrorsKey(t *testing.T) {
	assert.Equal(t, "a", FnErrorsKey(DeclKey{Kind: "fn", Name: "a"}))
	assert.Equal(t, "Svc$run", FnErrorsKey(DeclKey{Kind: "method", Name: "Svc.run"}))
}

func TestHashSplitsAPIAndImpl(t *testing.T) {
	// Same signature, different body: API hash equal, impl hash differs.
	sm1 := fixtureSourceMap(t, "-- main.pluto --\nfn a() int { return 1 }\n")
	sm2 := fixtureSourceMap(t, "-- main.pluto --\nfn a() int { return 2 }\n")
	// "fn a() int " is bytes 0..11 of the file; the spans below start one
	// byte later, so the API region is [1,12) and the body starts at 12.
	fn1 := mkFnAt("a", 1, 24, 12)
	fn2 := mkFnAt("a", 1, 24, 12)
	h1 := hashDecl(sm1, fn1.Sp, fn1.Body)
	h2 := hashDecl(sm2, fn2.Sp, fn2.Body)
	assert.Equal(t, h1.APIHash, h2.APIHash, "API hashes should match")
	assert.NotEqual(t, h1.ImplHash, h2.ImplHash, "impl hashes should differ")
}

func TestDetectChangesClassification(t *testing.T) {
	src1 := "-- main.pluto --\nfn a() int { return 1 }\nfn b() int { return 9 }\n"
	src2 := "-- main.pluto --\nfn a() int { return 2 }\nfn b() int { return 9 }\nfn c() {}\n"
	sm1 := fixtureSourceMap(t, src1)
	sm2 := fixtureSourceMap(t, src2)

	p1 := &ast.Program{Functions: []*ast.Function{
		mkFnAt("a", 1, 24, 12),
		mkFnAt("b", 25, 48, 36),
	}}
	p2 := &ast.Program{Functions: []*ast.Function{
		mkFnAt("a", 1, 24, 12),
		mkFnAt("b", 25, 48, 36),
		mkFnAt("c", 49, 58, 57),
	}}

	old := NewCompilationCache()
	km1 := BuildDeclKeyMap(p1, sm1)
	Update(old, km1, ComputeHashes(p1, sm1), NewDependencyGraph(), nil, nil)

	km2 := BuildDeclKeyMap(p2, sm2)
	cs := DetectChanges(old, km2, ComputeHashes(p2, sm2))

	assert.True(t, cs.ImplChanged["main.pluto:fn:a"], "a changed body only: %+v", cs)
	assert.False(t, cs.APIChanged["main.pluto:fn:a"])
	assert.False(t, cs.ImplChanged["main.pluto:fn:b"], "b unchanged")
	assert.True(t, cs.Added["main.pluto:fn:c"])
	assert.True(t, cs.Affected["main.pluto:fn:a"])
	assert.False(t, cs.Affected["main.pluto:fn:b"], "impl change must not affect callers")
}

func TestAPIChangeAffectsCallers(t *testing.T) {
	// b calls a; an API change to a marks b affected.
	idA := uuid.New()
	idB := uuid.New()
	keyA := DeclKey{File: "m", Kind: "fn", Name: "a"}
	keyB := DeclKey{File: "m", Kind: "fn", Name: "b"}

	old := NewCompilationCache()
	old.OldKeyMap.Add(idA, keyA)
	old.OldKeyMap.Add(idB, keyB)
	old.DepGraph.AddEdge(idB, idA, EdgeCalls)
	old.DeclHashes[keyA.String()] = DeclHashes{APIHash: ContentHash{1}, ImplHash: ContentHash{1}}
	old.DeclHashes[keyB.String()] = DeclHashes{APIHash: ContentHash{2}, ImplHash: ContentHash{2}}

	newMap := NewDeclKeyMap()
	newIDA, newIDB := uuid.New(), uuid.New()
	newMap.Add(newIDA, keyA)
	newMap.Add(newIDB, keyB)
	newHashes := map[uuid.UUID]DeclHashes{
		newIDA: {APIHash: ContentHash{9}, ImplHash: ContentHash{9}}, // API changed
		newIDB: {APIHash: ContentHash{2}, ImplHash: ContentHash{2}},
	}
	cs := DetectChanges(old, newMap, newHashes)
	assert.True(t, cs.APIChanged[keyA.String()])
	assert.True(t, cs.Affected[keyB.String()], "caller b must be affected by a's API change")
}

func TestRemovedDeclsDetected(t *testing.T) {
	keyA := DeclKey{File: "m", Kind: "fn", Name: "a"}
	old := NewCompilationCache()
	oldID := uuid.New()
	old.OldKeyMap.Add(oldID, keyA)
	old.DeclHashes[keyA.String()] = DeclHashes{}
	cs := DetectChanges(old, NewDeclKeyMap(), nil)
	assert.True(t, cs.Removed[keyA.String()])
}

func TestBodyEffectsCaptureRestoreRoundTrip(t *testing.T) {
	env := typecheck.NewEnv()
	env.MethodResolutions[typecheck.FnSpanKey{Fn: "worker", Start: 120}] = typecheck.MethodResolution{
		Kind: typecheck.ResolveClass, MangledName: "Svc$run",
	}
	env.SpawnTargetFns[[2]int{130, 150}] = "compute"
	env.ClosureCaptures[[2]int{140, 160}] = []typecheck.Capture{{Name: "y", Type: types.Int{}}}
	env.ClosureReturnTypes[[2]int{140, 160}] = types.Map{Key: types.String{}, Value: types.Int{}}
	env.GenericRewrites[[2]int{170, 180}] = "identity$$int"
	env.FallibleBuiltinCalls[typecheck.FnSpanKey{Fn: "worker", Start: 111}] = true
	env.ScopeResolutions[[2]int{100, 200}] = &typecheck.ScopeResolution{
		CreationOrder: []string{"Repo", "Svc"},
		FieldWirings: map[string][]typecheck.NamedWiring{
			"Svc": {{Field: "r", Wiring: typecheck.FieldWiring{Kind: typecheck.WireScopedInstance, ClassName: "Repo"}}},
		},
		BindingSources: []typecheck.FieldWiring{{Kind: typecheck.WireSeed, SeedIndex: 0}},
	}

	effects := CaptureBodyEffects(env, "worker", 100, 200)
	require.Len(t, effects.MethodResolutions, 1)
	require.Len(t, effects.ClosureCaptures, 1)

	fresh := typecheck.NewEnv()
	key := DeclKey{File: "m", Kind: "fn", Name: "worker"}
	RestoreBodyEffects(
		map[string]*CachedBodyEffects{key.String(): effects},
		map[string]bool{key.String(): true},
		fresh,
	)
	res := fresh.MethodResolutions[typecheck.FnSpanKey{Fn: "worker", Start: 120}]
	assert.Equal(t, typecheck.ResolveClass, res.Kind)
	assert.Equal(t, "Svc$run", res.MangledName)
	assert.Equal(t, "compute", fresh.SpawnTargetFns[[2]int{130, 150}])
	caps := fresh.ClosureCaptures[[2]int{140, 160}]
	require.Len(t, caps, 1)
	assert.True(t, types.Equal(caps[0].Type, types.Int{}))
	assert.True(t, types.Equal(fresh.ClosureReturnTypes[[2]int{140, 160}], types.Map{Key: types.String{}, Value: types.Int{}}))
	assert.Equal(t, "identity$$int", fresh.GenericRewrites[[2]int{170, 180}])
	assert.True(t, fresh.FallibleBuiltinCalls[typecheck.FnSpanKey{Fn: "worker", Start: 111}])
	sr := fresh.ScopeResolutions[[2]int{100, 200}]
	require.NotNil(t, sr)
	assert.Equal(t, []string{"Repo", "Svc"}, sr.CreationOrder)
}

func TestStoreSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	store, err := OpenStore(filepath.Join(dir, "pluto-cache.db"))
	require.NoError(t, err)
	defer store.Close()

	c := NewCompilationCache()
	id := uuid.New()
	key := DeclKey{File: "main.pluto", Kind: "fn", Name: "a"}
	c.OldKeyMap.Add(id, key)
	c.DepGraph.AddEdge(id, id, EdgeCalls)
	c.DeclHashes[key.String()] = DeclHashes{APIHash: ContentHash{1, 2}, ImplHash: ContentHash{3, 4}}
	c.BodyEffects[key.String()] = &CachedBodyEffects{
		GenericRewrites: []SpanStringEntry{{Start: 1, End: 2, Value: "f$$int"}},
	}
	c.FnErrorSets[key.String()] = []string{"Oops"}

	require.NoError(t, store.Save(c))

	loaded, derr := store.Load()
	require.Nil(t, derr)
	assert.Equal(t, c.DeclHashes[key.String()], loaded.DeclHashes[key.String()])
	gotID, ok := loaded.OldKeyMap.UUID(key)
	require.True(t, ok)
	assert.Equal(t, id, gotID)
	assert.Len(t, loaded.DepGraph.Edges[id], 1)
	require.Contains(t, loaded.BodyEffects, key.String())
	assert.Equal(t, "f$$int", loaded.BodyEffects[key.String()].GenericRewrites[0].Value)
	assert.Equal(t, []string{"Oops"}, loaded.FnErrorSets[key.String()])
}

func TestStoreLoadEmpty(t *testing.T) {
	dir := t.TempDir()
	store, err := OpenStore(filepath.Join(dir, "pluto-cache.db"))
	require.NoError(t, err)
	defer store.Close()
	c, derr := store.Load()
	require.Nil(t, derr)
	assert.True(t, c.IsEmpty())
}

func TestStoreCorruptBlobRecoverable(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pluto-cache.db")
	store, err := OpenStore(path)
	require.NoError(t, err)
	_, err = store.db.Exec(`INSERT INTO cache_blobs (section, data) VALUES ('cache', ?)`, []byte("not msgpack"))
	require.NoError(t, err)
	_, derr := store.Load()
	require.NotNil(t, derr, "corrupt blob must surface an incremental error")
	store.Close()
}
