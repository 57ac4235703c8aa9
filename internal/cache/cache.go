package cache

import (
	"github.com/google/uuid"

	"github.com/plutolang/pluto/internal/typecheck"
)

// CompilationCache is everything persisted between builds, keyed by
// DeclKey (in string form) for stability across re-parses.
type CompilationCache struct {
	// DeclHashes holds last build's content hashes.
	DeclHashes map[string]DeclHashes `msgpack:"decl_hashes"`
	// DepGraph is last build's dependency graph, over last build's uuids.
	DepGraph *DependencyGraph `msgpack:"dep_graph"`
	// OldKeyMap maps last build's uuids to DeclKeys and back.
	OldKeyMap *DeclKeyMap `msgpack:"old_key_map"`
	// BodyEffects holds the cached env side effects per declaration body.
	BodyEffects map[string]*CachedBodyEffects `msgpack:"body_effects"`
	// FnErrorSets holds the inferred error set per declaration.
	FnErrorSets map[string][]string `msgpack:"fn_error_sets"`

	keyIndex map[string]DeclKey
}

func NewCompilationCache() *CompilationCache {
	return &CompilationCache{
		DeclHashes:  map[string]DeclHashes{},
		DepGraph:    NewDependencyGraph(),
		OldKeyMap:   NewDeclKeyMap(),
		BodyEffects: map[string]*CachedBodyEffects{},
		FnErrorSets: map[string][]string{},
		keyIndex:    map[string]DeclKey{},
	}
}

// IsEmpty reports whether the cache holds no previous build.
func (c *CompilationCache) IsEmpty() bool {
	return len(c.DeclHashes) == 0
}

// ResolutionEntry is one method-resolution side-table row.
type ResolutionEntry struct {
	Fn    string         `msgpack:"fn"`
	Start int            `msgpack:"start"`
	Res   WireResolution `msgpack:"res"`
}

// SpanStringEntry is one span-keyed string row (spawn targets, rewrites).
type SpanStringEntry struct {
	Start int    `msgpack:"start"`
	End   int    `msgpack:"end"`
	Value string `msgpack:"value"`
}

// CapturesEntry is one closure-capture row.
type CapturesEntry struct {
	Start    int           `msgpack:"start"`
	End      int           `msgpack:"end"`
	Captures []WireCapture `msgpack:"captures"`
}

// ReturnTypeEntry is one closure-return-type row.
type ReturnTypeEntry struct {
	Start int      `msgpack:"start"`
	End   int      `msgpack:"end"`
	Type  WireType `msgpack:"type"`
}

// FallibleCallEntry is one fallible-builtin-call row.
type FallibleCallEntry struct {
	Fn    string `msgpack:"fn"`
	Start int    `msgpack:"start"`
}

// ScopeResEntry is one scope-resolution row.
type ScopeResEntry struct {
	Start int                 `msgpack:"start"`
	End   int                 `msgpack:"end"`
	Res   WireScopeResolution `msgpack:"res"`
}

// CachedBodyEffects is the subset of env side tables attributable to one
// function or method body: restoring them replaces what re-checking the
// body would have produced.
type CachedBodyEffects struct {
	MethodResolutions    []ResolutionEntry   `msgpack:"method_resolutions"`
	SpawnTargetFns       []SpanStringEntry   `msgpack:"spawn_target_fns"`
	ClosureCaptures      []CapturesEntry     `msgpack:"closure_captures"`
	ClosureReturnTypes   []ReturnTypeEntry   `msgpack:"closure_return_types"`
	GenericRewrites      []SpanStringEntry   `msgpack:"generic_rewrites"`
	FallibleBuiltinCalls []FallibleCallEntry `msgpack:"fallible_builtin_calls"`
	ScopeResolutions     []ScopeResEntry     `msgpack:"scope_resolutions"`
}

// ChangeSet classifies how the new program differs from the cached build.
type ChangeSet struct {
	ImplChanged map[string]bool
	APIChanged  map[string]bool
	Added       map[string]bool
	Removed     map[string]bool
	// Affected is everything needing a re-check: the changes plus their
	// transitive API dependents.
	Affected map[string]bool
}

func newChangeSet() *ChangeSet {
	return &ChangeSet{
		ImplChanged: map[string]bool{},
		APIChanged:  map[string]bool{},
		Added:       map[string]bool{},
		Removed:     map[string]bool{},
		Affected:    map[string]bool{},
	}
}

// Stats summarizes an incremental build.
type Stats struct {
	TotalDecls    int
	ChangedDecls  int
	AffectedDecls int
	SkippedDecls  int
	CacheHit      bool
}

// DetectChanges compares the old cache against new hashes. Added decls have
// no old entry; removed decls have no new entry; otherwise the API hash
// decides between api_changed and impl_changed. The affected set propagates
// API changes to callers through the old dependency graph; impl changes
// affect only the decl itself.
func DetectChanges(old *CompilationCache, newKeyMap *DeclKeyMap, newHashes map[uuid.UUID]DeclHashes) *ChangeSet {
	cs := newChangeSet()

	newKeys := map[string]bool{}
	for id, key := range newKeyMap.UUIDToKey {
		ks := key.String()
		newKeys[ks] = true
		oldHashes, cached := old.DeclHashes[ks]
		if !cached {
			cs.Added[ks] = true
			continue
		}
		if newH, ok := newHashes[id]; ok {
			if oldHashes.APIHash != newH.APIHash {
				cs.APIChanged[ks] = true
			} else if oldHashes.ImplHash != newH.ImplHash {
				cs.ImplChanged[ks] = true
			}
		}
	}
	for ks := range old.DeclHashes {
		if !newKeys[ks] {
			cs.Removed[ks] = true
		}
	}

	changedUUIDs := map[uuid.UUID]ChangeKind{}
	markOld := func(ks string, kind ChangeKind) {
		if key, ok := old.keyFromString(ks); ok {
			if id, found := old.OldKeyMap.UUID(key); found {
				if existing, has := changedUUIDs[id]; !has || kind > existing {
					changedUUIDs[id] = kind
				}
			}
		}
	}
	for ks := range cs.APIChanged {
		markOld(ks, ChangeAPIAndImpl)
	}
	for ks := range cs.Removed {
		markOld(ks, ChangeAPIAndImpl)
	}
	for ks := range cs.ImplChanged {
		markOld(ks, ChangeImplOnly)
	}

	for id := range old.DepGraph.Affected(changedUUIDs) {
		if key, ok := old.OldKeyMap.Key(id); ok {
			cs.Affected[key.String()] = true
		}
	}
	for ks := range cs.APIChanged {
		cs.Affected[ks] = true
	}
	for ks := range cs.ImplChanged {
		cs.Affected[ks] = true
	}
	for ks := range cs.Added {
		cs.Affected[ks] = true
	}
	return cs
}

// keyFromString recovers a DeclKey from its serialized string form.
func (c *CompilationCache) keyFromString(s string) (DeclKey, bool) {
	if c.keyIndex == nil || len(c.keyIndex) == 0 {
		c.keyIndex = map[string]DeclKey{}
		for _, key := range c.OldKeyMap.UUIDToKey {
			c.keyIndex[key.String()] = key
		}
	}
	k, ok := c.keyIndex[s]
	return k, ok
}

// KeyIndex exposes the string→DeclKey index for the current key map.
func KeyIndex(m *DeclKeyMap) map[string]DeclKey {
	out := map[string]DeclKey{}
	for _, key := range m.UUIDToKey {
		out[key.String()] = key
	}
	return out
}

// CaptureBodyEffects extracts the env entries produced by checking one
// body, identified by its mangled function name and span range.
func CaptureBodyEffects(env *typecheck.Env, fnMangledName string, spanStart, spanEnd int) *CachedBodyEffects {
	effects := &CachedBodyEffects{}
	within := func(key [2]int) bool {
		return key[0] >= spanStart && key[1] <= spanEnd
	}
	for key, res := range env.MethodResolutions {
		if key.Fn == fnMangledName {
			effects.MethodResolutions = append(effects.MethodResolutions, ResolutionEntry{
				Fn: key.Fn, Start: key.Start, Res: resolutionToWire(res),
			})
		}
	}
	for key, fn := range env.SpawnTargetFns {
		if within(key) {
			effects.SpawnTargetFns = append(effects.SpawnTargetFns, SpanStringEntry{Start: key[0], End: key[1], Value: fn})
		}
	}
	for key, caps := range env.ClosureCaptures {
		if within(key) {
			effects.ClosureCaptures = append(effects.ClosureCaptures, CapturesEntry{Start: key[0], End: key[1], Captures: capturesToWire(caps)})
		}
	}
	for key, ret := range env.ClosureReturnTypes {
		if within(key) {
			effects.ClosureReturnTypes = append(effects.ClosureReturnTypes, ReturnTypeEntry{Start: key[0], End: key[1], Type: toWire(ret)})
		}
	}
	for key, name := range env.GenericRewrites {
		if within(key) {
			effects.GenericRewrites = append(effects.GenericRewrites, SpanStringEntry{Start: key[0], End: key[1], Value: name})
		}
	}
	for key := range env.FallibleBuiltinCalls {
		if key.Fn == fnMangledName {
			effects.FallibleBuiltinCalls = append(effects.FallibleBuiltinCalls, FallibleCallEntry{Fn: key.Fn, Start: key.Start})
		}
	}
	for key, res := range env.ScopeResolutions {
		if within(key) {
			effects.ScopeResolutions = append(effects.ScopeResolutions, ScopeResEntry{Start: key[0], End: key[1], Res: scopeResolutionToWire(res)})
		}
	}
	return effects
}

// RestoreBodyEffects folds cached effects for the given unaffected keys
// back into the env, replacing what body checking would have produced.
func RestoreBodyEffects(cached map[string]*CachedBodyEffects, unaffected map[string]bool, env *typecheck.Env) {
	for ks := range unaffected {
		effects, ok := cached[ks]
		if !ok {
			continue
		}
		for _, entry := range effects.MethodResolutions {
			env.MethodResolutions[typecheck.FnSpanKey{Fn: entry.Fn, Start: entry.Start}] = resolutionFromWire(entry.Res)
		}
		for _, entry := range effects.SpawnTargetFns {
			env.SpawnTargetFns[[2]int{entry.Start, entry.End}] = entry.Value
		}
		for _, entry := range effects.ClosureCaptures {
			env.ClosureCaptures[[2]int{entry.Start, entry.End}] = capturesFromWire(entry.Captures)
		}
		for _, entry := range effects.ClosureReturnTypes {
			env.ClosureReturnTypes[[2]int{entry.Start, entry.End}] = fromWire(entry.Type)
		}
		for _, entry := range effects.GenericRewrites {
			env.GenericRewrites[[2]int{entry.Start, entry.End}] = entry.Value
		}
		for _, entry := range effects.FallibleBuiltinCalls {
			env.FallibleBuiltinCalls[typecheck.FnSpanKey{Fn: entry.Fn, Start: entry.Start}] = true
		}
		for _, entry := range effects.ScopeResolutions {
			env.ScopeResolutions[[2]int{entry.Start, entry.End}] = scopeResolutionFromWire(entry.Res)
		}
	}
}

// RestoreFnErrors seeds the env's error sets from the cache for unaffected
// declarations, so the fixed point starts from known-correct sets.
func RestoreFnErrors(cached map[string][]string, unaffected map[string]bool, keyIndex map[string]DeclKey, env *typecheck.Env) {
	for ks := range unaffected {
		errs, ok := cached[ks]
		if !ok || len(errs) == 0 {
			continue
		}
		key, known := keyIndex[ks]
		if !known {
			continue
		}
		mangled := FnErrorsKey(key)
		set := env.FnErrors[mangled]
		if set == nil {
			set = map[string]bool{}
			env.FnErrors[mangled] = set
		}
		for _, e := range errs {
			set[e] = true
		}
	}
}

// Update replaces the cache with the results of the current build: new
// hashes, graph, and key map wholesale; body effects and error sets merged
// so unaffected entries survive; removed declarations dropped.
func Update(c *CompilationCache, newKeyMap *DeclKeyMap, newHashes map[uuid.UUID]DeclHashes, newGraph *DependencyGraph, newEffects map[string]*CachedBodyEffects, newFnErrors map[string][]string) {
	c.DepGraph = newGraph
	c.OldKeyMap = newKeyMap

	c.DeclHashes = map[string]DeclHashes{}
	c.keyIndex = map[string]DeclKey{}
	for id, key := range newKeyMap.UUIDToKey {
		if h, ok := newHashes[id]; ok {
			ks := key.String()
			c.DeclHashes[ks] = h
			c.keyIndex[ks] = key
		}
	}
	for ks, effects := range newEffects {
		c.BodyEffects[ks] = effects
	}
	for ks, errs := range newFnErrors {
		c.FnErrorSets[ks] = errs
	}
	for ks := range c.BodyEffects {
		if _, ok := c.DeclHashes[ks]; !ok {
			delete(c.BodyEffects, ks)
		}
	}
	for ks := range c.FnErrorSets {
		if _, ok := c.DeclHashes[ks]; !ok {
			delete(c.FnErrorSets, ks)
		}
	}
}
