// Package pipeline orchestrates the compiler core: one mutable type
// environment threaded through every pass, in the order the passes depend
// on each other's side tables. The pipeline is single-threaded by design -
// span-keyed tables require serialized writes.
package pipeline

import (
	"sort"

	"go.uber.org/zap"

	"github.com/plutolang/pluto/internal/ast"
	"github.com/plutolang/pluto/internal/cache"
	"github.com/plutolang/pluto/internal/closures"
	"github.com/plutolang/pluto/internal/coverage"
	"github.com/plutolang/pluto/internal/diagnostics"
	"github.com/plutolang/pluto/internal/monomorphize"
	"github.com/plutolang/pluto/internal/source"
	"github.com/plutolang/pluto/internal/typecheck"
	"github.com/plutolang/pluto/internal/types"
)

// Options selects optional pipeline features.
type Options struct {
	// Incremental enables change detection against Cache and selective
	// body re-checking.
	Incremental bool
	// Cache is the previous build's cache; ignored unless Incremental.
	Cache *cache.CompilationCache
	// Coverage emits a coverage map for the entry file.
	Coverage bool
	// Logger receives per-pass debug events; nil means no logging.
	Logger *zap.Logger
}

// Result is a successful compilation.
type Result struct {
	Env      *typecheck.Env
	Warnings []diagnostics.Warning
	// Cache is the updated cache (set when Incremental).
	Cache *cache.CompilationCache
	Stats cache.Stats
	// CoverageMap is set when Coverage was requested.
	CoverageMap *coverage.Map
}

// Compile runs the full middle-end over program. The program is rewritten
// in place: generic templates are instantiated and removed, closures are
// lifted. On error the program may be partially rewritten and must be
// re-parsed before another attempt.
func Compile(program *ast.Program, sm *source.Map, opts Options) (*Result, *diagnostics.CompileError) {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	env := typecheck.NewEnv()
	result := &Result{Env: env}

	if opts.Incremental && opts.Cache != nil && !opts.Cache.IsEmpty() {
		if err := compileIncremental(program, sm, env, opts, result, log); err != nil {
			return nil, err
		}
	} else {
		log.Debug("full check")
		if err := typecheck.CheckProgram(program, env); err != nil {
			return nil, err
		}
		if opts.Incremental {
			result.Cache = rebuildCache(program, sm, env, opts.Cache)
			result.Stats = cache.Stats{TotalDecls: len(result.Cache.DeclHashes)}
		}
	}

	log.Debug("monomorphize", zap.Int("instantiations", len(env.Instantiations)))
	if err := monomorphize.Monomorphize(program, env); err != nil {
		return nil, err
	}
	log.Debug("lift closures")
	if err := closures.Lift(program, env); err != nil {
		return nil, err
	}
	log.Debug("validate serializability", zap.Int("stages", len(program.Stages)))
	if err := typecheck.ValidateSerializableTypes(program, env); err != nil {
		return nil, err
	}

	result.Warnings = typecheck.GenerateWarnings(program, env)
	if opts.Coverage {
		result.CoverageMap = coverage.BuildMap(program, sm)
		log.Debug("coverage map", zap.Int("points", result.CoverageMap.NumPoints()))
	}
	return result, nil
}

// compileIncremental runs registration fully (cheap, and every signature
// must exist), then re-checks only affected bodies, restoring cached side
// effects for everything else.
func compileIncremental(program *ast.Program, sm *source.Map, env *typecheck.Env, opts Options, result *Result, log *zap.Logger) *diagnostics.CompileError {
	keyMap := cache.BuildDeclKeyMap(program, sm)
	hashes := cache.ComputeHashes(program, sm)
	cs := cache.DetectChanges(opts.Cache, keyMap, hashes)

	unaffected := map[string]bool{}
	total := 0
	for _, key := range keyMap.Keys() {
		total++
		ks := key.String()
		if !cs.Affected[ks] {
			unaffected[ks] = true
		}
	}
	log.Debug("changeset",
		zap.Int("total", total),
		zap.Int("affected", len(cs.Affected)),
		zap.Int("added", len(cs.Added)),
		zap.Int("removed", len(cs.Removed)))

	// Registration, DI, and conformance always run: they are signature-
	// level and every later pass needs the full registries.
	if err := typecheck.CheckSignatures(program, env); err != nil {
		return err
	}

	// Restore side effects before body checking so downstream passes see
	// the union of cached and fresh tables.
	cache.RestoreBodyEffects(opts.Cache.BodyEffects, unaffected, env)
	keyIndex := cache.KeyIndex(keyMap)
	cache.RestoreFnErrors(opts.Cache.FnErrorSets, unaffected, keyIndex, env)

	checked := 0
	err := forEachBodyDecl(program, keyMap, func(key cache.DeclKey, fn *ast.Function, owner string) *diagnostics.CompileError {
		if !cs.Affected[key.String()] {
			return nil
		}
		checked++
		if err := typecheck.CheckFunction(fn, env, owner); err != nil {
			return err
		}
		return typecheck.CheckFunctionContracts(fn, env, owner)
	})
	if err != nil {
		return err
	}
	log.Debug("incremental bodies", zap.Int("rechecked", checked), zap.Int("skipped", total-checked))

	if err := finishChecks(program, env); err != nil {
		return err
	}

	// Fold this build back into the cache.
	newEffects := map[string]*cache.CachedBodyEffects{}
	newErrors := map[string][]string{}
	collectErr := forEachBodyDecl(program, keyMap, func(key cache.DeclKey, fn *ast.Function, owner string) *diagnostics.CompileError {
		ks := key.String()
		if !cs.Affected[ks] {
			return nil
		}
		mangled := fn.Name.Value
		if owner != "" {
			mangled = types.MangleMethod(owner, fn.Name.Value)
		}
		newEffects[ks] = cache.CaptureBodyEffects(env, mangled, fn.Sp.Start, fn.Sp.End)
		newErrors[ks] = sortedSet(env.FnErrors[mangled])
		return nil
	})
	if collectErr != nil {
		return collectErr
	}
	cache.Update(opts.Cache, keyMap, hashes, cache.BuildDependencyGraph(program, env, keyMap), newEffects, newErrors)
	result.Cache = opts.Cache
	result.Stats = cache.Stats{
		TotalDecls:    total,
		ChangedDecls:  len(cs.APIChanged) + len(cs.ImplChanged) + len(cs.Added),
		AffectedDecls: len(cs.Affected),
		SkippedDecls:  total - checked,
		CacheHit:      true,
	}
	return nil
}

// finishChecks runs the post-body passes of an incremental build; a full
// build runs the same passes inside typecheck.CheckProgram.
func finishChecks(program *ast.Program, env *typecheck.Env) *diagnostics.CompileError {
	if err := typecheck.EnforceMutSelf(program, env); err != nil {
		return err
	}
	for _, fnName := range program.FallibleExternFns {
		set := env.FnErrors[fnName]
		if set == nil {
			set = map[string]bool{}
			env.FnErrors[fnName] = set
		}
		set["RustError"] = true
	}
	typecheck.InferErrorSets(program, env)
	if err := typecheck.EnforceErrorHandling(program, env); err != nil {
		return err
	}
	typecheck.InferSynchronization(program, env)
	return nil
}

// rebuildCache builds a fresh cache from a full check.
func rebuildCache(program *ast.Program, sm *source.Map, env *typecheck.Env, existing *cache.CompilationCache) *cache.CompilationCache {
	c := existing
	if c == nil {
		c = cache.NewCompilationCache()
	}
	keyMap := cache.BuildDeclKeyMap(program, sm)
	hashes := cache.ComputeHashes(program, sm)
	effects := map[string]*cache.CachedBodyEffects{}
	errors := map[string][]string{}
	_ = forEachBodyDecl(program, keyMap, func(key cache.DeclKey, fn *ast.Function, owner string) *diagnostics.CompileError {
		mangled := fn.Name.Value
		if owner != "" {
			mangled = types.MangleMethod(owner, fn.Name.Value)
		}
		ks := key.String()
		effects[ks] = cache.CaptureBodyEffects(env, mangled, fn.Sp.Start, fn.Sp.End)
		errors[ks] = sortedSet(env.FnErrors[mangled])
		return nil
	})
	cache.Update(c, keyMap, hashes, cache.BuildDependencyGraph(program, env, keyMap), effects, errors)
	return c
}

// forEachBodyDecl visits every concrete function and method with its decl
// key and owning class (or "").
func forEachBodyDecl(program *ast.Program, keyMap *cache.DeclKeyMap, visit func(cache.DeclKey, *ast.Function, string) *diagnostics.CompileError) *diagnostics.CompileError {
	for _, fn := range program.Functions {
		if fn.IsGeneric() {
			continue
		}
		if key, ok := keyMap.Key(fn.ID); ok {
			if err := visit(key, fn, ""); err != nil {
				return err
			}
		}
	}
	for _, c := range program.Classes {
		if c.IsGeneric() {
			continue
		}
		for _, m := range c.Methods {
			if key, ok := keyMap.Key(m.ID); ok {
				if err := visit(key, m, c.Name.Value); err != nil {
					return err
				}
			}
		}
	}
	if program.App != nil {
		for _, m := range program.App.Methods {
			if key, ok := keyMap.Key(m.ID); ok {
				if err := visit(key, m, program.App.Name.Value); err != nil {
					return err
				}
			}
		}
	}
	for _, s := range program.Stages {
		for _, m := range s.Methods {
			if key, ok := keyMap.Key(m.ID); ok {
				if err := visit(key, m, s.Name.Value); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func sortedSet(set map[string]bool) []string {
	if len(set) == 0 {
		return nil
	}
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
