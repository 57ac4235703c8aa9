// Package typecheck is the middle-end semantic pipeline: two-phase name
// registration, type resolution and inference, trait and DI validation,
// contracts, scope blocks, mut-self discipline, error-effect inference,
// concurrency synchronization inference, and the serializability check.
//
// Every pass shares one mutable *Env per compilation. The env owns all
// registries and the span-keyed side tables that downstream passes (closure
// lifting, monomorphization, codegen) consume.
package typecheck

import (
	"github.com/plutolang/pluto/internal/ast"
	"github.com/plutolang/pluto/internal/source"
	"github.com/plutolang/pluto/internal/types"
)

// SpanKey keys a side table by the byte-offset range of the spanning node.
type SpanKey = [2]int

// FnSpanKey keys per-call-site tables by the containing function's mangled
// name plus the call's span start.
type FnSpanKey struct {
	Fn    string
	Start int
}

// VarKey identifies a local variable by name and scope depth, for the
// unused-variable tables.
type VarKey struct {
	Name  string
	Depth int
}

// FuncSig is a fully resolved function or method signature. For methods,
// Params[0] is the self type.
type FuncSig struct {
	Params []types.Type
	Return types.Type
}

// FieldInfo is one resolved class field.
type FieldInfo struct {
	Name       string
	Type       types.Type
	IsInjected bool
}

// ClassInfo is the resolved shape of a concrete class (or app/stage, which
// register as classes so mangling and self typing work identically).
type ClassInfo struct {
	Fields     []FieldInfo
	Methods    []string
	ImplTraits []string
	Lifecycle  ast.Lifecycle
}

// ImplementsTrait reports whether the class declares the trait.
func (c *ClassInfo) ImplementsTrait(name string) bool {
	for _, t := range c.ImplTraits {
		if t == name {
			return true
		}
	}
	return false
}

// Field returns the named field, or nil.
func (c *ClassInfo) Field(name string) *FieldInfo {
	for i := range c.Fields {
		if c.Fields[i].Name == name {
			return &c.Fields[i]
		}
	}
	return nil
}

// HasMethod reports whether the class declares (or inherited) the method.
func (c *ClassInfo) HasMethod(name string) bool {
	for _, m := range c.Methods {
		if m == name {
			return true
		}
	}
	return false
}

// TraitMethodSig is one trait method signature. Params[0] is a Void
// placeholder for self, replaced with the concrete class on registration.
type TraitMethodSig struct {
	Name string
	Sig  FuncSig
}

// TraitInfo is the resolved shape of a trait.
type TraitInfo struct {
	Methods         []TraitMethodSig
	DefaultMethods  map[string]bool
	StaticMethods   map[string]bool
	MutSelfMethods  map[string]bool
	MethodContracts map[string][]*ast.Contract
}

// Method returns the named method signature, or nil.
func (t *TraitInfo) Method(name string) *TraitMethodSig {
	for i := range t.Methods {
		if t.Methods[i].Name == name {
			return &t.Methods[i]
		}
	}
	return nil
}

// VariantInfo is one resolved enum variant.
type VariantInfo struct {
	Name   string
	Fields []FieldInfo
}

// EnumInfo is the resolved shape of a concrete enum.
type EnumInfo struct {
	Variants []VariantInfo
}

// Variant returns the named variant, or nil.
func (e *EnumInfo) Variant(name string) *VariantInfo {
	for i := range e.Variants {
		if e.Variants[i].Name == name {
			return &e.Variants[i]
		}
	}
	return nil
}

// ErrorInfo is the resolved shape of an error type.
type ErrorInfo struct {
	Fields []FieldInfo
}

// GenericFuncSig is a generic function template signature; parameter and
// return types may contain TypeParams.
type GenericFuncSig struct {
	TypeParams []string
	Bounds     map[string][]string
	Params     []types.Type
	Return     types.Type
}

// GenericClassInfo is a generic class template.
type GenericClassInfo struct {
	TypeParams     []string
	Bounds         map[string][]string
	Fields         []FieldInfo
	Methods        []string
	MethodSigs     map[string]FuncSig
	ImplTraits     []string
	MutSelfMethods map[string]bool
	Lifecycle      ast.Lifecycle
}

// GenericEnumInfo is a generic enum template.
type GenericEnumInfo struct {
	TypeParams []string
	Bounds     map[string][]string
	Variants   []VariantInfo
}

// InstKind discriminates what an Instantiation clones.
type InstKind int

const (
	InstFunction InstKind = iota
	InstClass
	InstEnum
)

// Instantiation is one recorded request to monomorphize a generic with
// concrete type arguments. The mangled form is the identity: two requests
// with the same mangled name are the same instantiation.
type Instantiation struct {
	Kind InstKind
	Name string
	Args []types.Type
}

// Mangled returns the instantiation's concrete name.
func (i Instantiation) Mangled() string {
	return types.MangleName(i.Name, i.Args)
}

// ResolutionKind discriminates how a method call dispatches. Codegen reads
// this to decide the call shape to emit; the effect pass reads it to decide
// fallibility.
type ResolutionKind int

const (
	// ResolveClass is static dispatch to a class-mangled method.
	ResolveClass ResolutionKind = iota
	// ResolveTraitDynamic is dynamic dispatch through a trait object.
	ResolveTraitDynamic
	// ResolveBuiltin is a built-in container/string/bytes method.
	ResolveBuiltin
	// ResolveTaskGet is Task.get(); SpawnedFn tracks the origin when known.
	ResolveTaskGet
	// ResolveTaskDetach is Task.detach(); infallible.
	ResolveTaskDetach
	// ResolveTaskCancel is Task.cancel(); infallible.
	ResolveTaskCancel
	// ResolveChannelSend raises ChannelClosed.
	ResolveChannelSend
	// ResolveChannelRecv raises ChannelClosed.
	ResolveChannelRecv
	// ResolveChannelTrySend raises ChannelClosed or ChannelFull.
	ResolveChannelTrySend
	// ResolveChannelTryRecv raises ChannelClosed or ChannelEmpty.
	ResolveChannelTryRecv
)

// MethodResolution records how one method call site dispatches.
type MethodResolution struct {
	Kind        ResolutionKind
	MangledName string // ResolveClass
	TraitName   string // ResolveTraitDynamic
	MethodName  string // ResolveTraitDynamic
	SpawnedFn   string // ResolveTaskGet; "" means unknown origin
}

// WiringKind discriminates how a scope-created field gets its value.
type WiringKind int

const (
	// WireSeed takes the value of the Nth seed expression.
	WireSeed WiringKind = iota
	// WireSingleton reads the singleton global of the named class.
	WireSingleton
	// WireScopedInstance takes an instance created within this scope.
	WireScopedInstance
)

// FieldWiring is one wiring decision for a scope block.
type FieldWiring struct {
	Kind      WiringKind
	SeedIndex int    // WireSeed
	ClassName string // WireSingleton / WireScopedInstance
}

// NamedWiring pairs a field name with its wiring.
type NamedWiring struct {
	Field  string
	Wiring FieldWiring
}

// ScopeResolution is the resolved DI plan of one scope block: computed here,
// consumed by codegen.
type ScopeResolution struct {
	// CreationOrder lists the scoped classes to allocate, leaves first.
	CreationOrder []string
	// FieldWirings maps each created class to its field wiring decisions.
	FieldWirings map[string][]NamedWiring
	// BindingSources says how each |binding| gets its value.
	BindingSources []FieldWiring
}

// Env is the type environment: one per compilation, threaded explicitly
// through every pass. Never share an Env across concurrent work.
type Env struct {
	scopes []map[string]types.Type

	Functions map[string]FuncSig
	Builtins  map[string]bool
	Classes   map[string]*ClassInfo
	Traits    map[string]*TraitInfo
	Enums     map[string]*EnumInfo
	Errors    map[string]*ErrorInfo
	ExternFns map[string]bool

	GenericFunctions map[string]*GenericFuncSig
	GenericClasses   map[string]*GenericClassInfo
	GenericEnums     map[string]*GenericEnumInfo

	// Instantiations is the monomorphization worklist, keyed by mangled
	// name for set semantics with a stable identity.
	Instantiations map[string]Instantiation
	// GenericRewrites maps generic call-site spans to mangled names.
	GenericRewrites map[SpanKey]string

	// MethodResolutions records dispatch per call site.
	MethodResolutions map[FnSpanKey]MethodResolution
	// FallibleBuiltinCalls marks call sites of fallible builtins (int pow).
	FallibleBuiltinCalls map[FnSpanKey]bool

	// ClosureCaptures maps closure spans to their capture sets.
	ClosureCaptures map[SpanKey][]Capture
	// ClosureReturnTypes maps closure spans to inferred return types.
	ClosureReturnTypes map[SpanKey]types.Type
	// ClosureFns maps lifted function names to their captures.
	ClosureFns map[string][]Capture

	// SpawnTargetFns maps spawn spans to the spawned callee's name.
	SpawnTargetFns map[SpanKey]string

	// ScopeResolutions maps scope-statement spans to their DI plans.
	ScopeResolutions map[SpanKey]*ScopeResolution

	App          *AppInfo
	Stages       map[string]*ClassInfo
	AmbientTypes map[string]bool
	DIOrder      []string
	// LifecycleOverridden marks classes whose lifecycle the app shortened;
	// they leave the app-bracket DI order.
	LifecycleOverridden map[string]bool

	// FnErrors is the per-function error-effect set, keyed by mangled name.
	FnErrors map[string]map[string]bool
	// MutSelfMethods is the set of mangled names declaring `mut self`.
	MutSelfMethods map[string]bool
	// SyncMethods marks methods of cross-thread singletons for locking:
	// mangled name → true when write-guarded, false when read-guarded.
	SyncMethods map[string]bool

	// VariableDecls and VariableReads feed unused-variable warnings.
	VariableDecls map[VarKey]source.Span
	VariableReads map[VarKey]bool

	// CurrentFn is the mangled name of the function being checked.
	CurrentFn string
	// CurrentGeneratorElem is the stream element type inside a generator.
	CurrentGeneratorElem types.Type
	// InEnsuresContext permits old(...) while checking ensures clauses.
	InEnsuresContext bool
	// LoopDepth validates break/continue; closures reset it.
	LoopDepth int

	// taskSpawnScopes mirrors the lexical scopes: variable → spawned fn.
	taskSpawnScopes []map[string]string
	// InvalidatedTaskVars holds task variables reassigned after their
	// origin was recorded; their .get() is conservatively fallible.
	InvalidatedTaskVars map[string]bool
	// immutableBindings mirrors the lexical scopes for let-without-mut.
	immutableBindings []map[string]bool

	// scopeBindings stacks the binding names of active scope blocks.
	scopeBindings []map[string]bool
	// scopeBodyDepths stacks the scope depth at each scope-block entry.
	scopeBodyDepths []int
	// scopeTainted stacks variables holding scope-tainted closures.
	scopeTainted []map[string]bool
	// ScopeTaintedClosures marks closure spans that captured a scope
	// binding; they may not escape the block.
	ScopeTaintedClosures map[SpanKey]bool
}

// AppInfo is the registered app declaration.
type AppInfo struct {
	Name string
	Info *ClassInfo
}

// Capture is one captured variable of a closure.
type Capture struct {
	Name string
	Type types.Type
}

// builtinNames is the fixed set of built-in free functions.
var builtinNames = []string{
	"print", "time_ns", "abs", "min", "max", "pow", "sqrt", "floor",
	"ceil", "round", "sin", "cos", "tan", "log", "gc_heap_size",
	"expect", "bytes_new",
}

// NewEnv returns an empty environment with builtins and the pre-seeded
// error types registered.
func NewEnv() *Env {
	env := &Env{
		scopes:               []map[string]types.Type{{}},
		Functions:            map[string]FuncSig{},
		Builtins:             map[string]bool{},
		Classes:              map[string]*ClassInfo{},
		Traits:               map[string]*TraitInfo{},
		Enums:                map[string]*EnumInfo{},
		Errors:               map[string]*ErrorInfo{},
		ExternFns:            map[string]bool{},
		GenericFunctions:     map[string]*GenericFuncSig{},
		GenericClasses:       map[string]*GenericClassInfo{},
		GenericEnums:         map[string]*GenericEnumInfo{},
		Instantiations:       map[string]Instantiation{},
		GenericRewrites:      map[SpanKey]string{},
		MethodResolutions:    map[FnSpanKey]MethodResolution{},
		FallibleBuiltinCalls: map[FnSpanKey]bool{},
		ClosureCaptures:      map[SpanKey][]Capture{},
		ClosureReturnTypes:   map[SpanKey]types.Type{},
		ClosureFns:           map[string][]Capture{},
		SpawnTargetFns:       map[SpanKey]string{},
		ScopeResolutions:     map[SpanKey]*ScopeResolution{},
		Stages:               map[string]*ClassInfo{},
		AmbientTypes:         map[string]bool{},
		LifecycleOverridden:  map[string]bool{},
		FnErrors:             map[string]map[string]bool{},
		MutSelfMethods:       map[string]bool{},
		SyncMethods:          map[string]bool{},
		VariableDecls:        map[VarKey]source.Span{},
		VariableReads:        map[VarKey]bool{},
		InvalidatedTaskVars:  map[string]bool{},
		taskSpawnScopes:      []map[string]string{{}},
		immutableBindings:    []map[string]bool{{}},
		ScopeTaintedClosures: map[SpanKey]bool{},
	}
	for _, b := range builtinNames {
		env.Builtins[b] = true
	}
	seedBuiltinErrors(env)
	return env
}

// seedBuiltinErrors pre-registers the error types the runtime can raise.
func seedBuiltinErrors(env *Env) {
	msg := func() *ErrorInfo {
		return &ErrorInfo{Fields: []FieldInfo{{Name: "message", Type: types.String{}}}}
	}
	env.Errors["MathError"] = msg()
	env.Errors["RustError"] = msg()
	env.Errors["ChannelClosed"] = msg()
	env.Errors["ChannelFull"] = msg()
	env.Errors["ChannelEmpty"] = msg()
	env.Errors["TaskCancelled"] = msg()
	env.Errors["NetworkError"] = msg()
	env.Errors["TimeoutError"] = &ErrorInfo{Fields: []FieldInfo{{Name: "millis", Type: types.Int{}}}}
	env.Errors["ServiceUnavailable"] = &ErrorInfo{Fields: []FieldInfo{{Name: "service", Type: types.String{}}}}
}

// PushScope enters a lexical scope.
func (e *Env) PushScope() {
	e.scopes = append(e.scopes, map[string]types.Type{})
	e.taskSpawnScopes = append(e.taskSpawnScopes, map[string]string{})
	e.immutableBindings = append(e.immutableBindings, map[string]bool{})
}

// PopScope leaves the innermost lexical scope.
func (e *Env) PopScope() {
	e.scopes = e.scopes[:len(e.scopes)-1]
	e.taskSpawnScopes = e.taskSpawnScopes[:len(e.taskSpawnScopes)-1]
	e.immutableBindings = e.immutableBindings[:len(e.immutableBindings)-1]
}

// Define binds a name in the innermost scope.
func (e *Env) Define(name string, ty types.Type) {
	e.scopes[len(e.scopes)-1][name] = ty
}

// Lookup resolves a name through the scope stack.
func (e *Env) Lookup(name string) (types.Type, bool) {
	for i := len(e.scopes) - 1; i >= 0; i-- {
		if ty, ok := e.scopes[i][name]; ok {
			return ty, true
		}
	}
	return nil, false
}

// LookupWithDepth resolves a name and reports the 0-indexed scope depth it
// was found at. Closure capture analysis compares this against the depth at
// closure entry.
func (e *Env) LookupWithDepth(name string) (types.Type, int, bool) {
	for i := len(e.scopes) - 1; i >= 0; i-- {
		if ty, ok := e.scopes[i][name]; ok {
			return ty, i, true
		}
	}
	return nil, 0, false
}

// ScopeDepth returns the number of open scopes.
func (e *Env) ScopeDepth() int {
	return len(e.scopes)
}

// MarkImmutable records a let-without-mut binding.
func (e *Env) MarkImmutable(name string) {
	e.immutableBindings[len(e.immutableBindings)-1][name] = true
}

// IsImmutable reports whether the binding was declared without mut.
func (e *Env) IsImmutable(name string) bool {
	for i := len(e.immutableBindings) - 1; i >= 0; i-- {
		if e.immutableBindings[i][name] {
			return true
		}
	}
	return false
}

// DefineTaskOrigin records which function a task-typed variable was spawned
// from, so .get() fallibility can follow the callee.
func (e *Env) DefineTaskOrigin(name, fn string) {
	e.taskSpawnScopes[len(e.taskSpawnScopes)-1][name] = fn
}

// LookupTaskOrigin resolves a task variable's spawn origin, unless a
// reassignment invalidated it.
func (e *Env) LookupTaskOrigin(name string) (string, bool) {
	if e.InvalidatedTaskVars[name] {
		return "", false
	}
	for i := len(e.taskSpawnScopes) - 1; i >= 0; i-- {
		if fn, ok := e.taskSpawnScopes[i][name]; ok {
			return fn, true
		}
	}
	return "", false
}

// PushScopeBlock enters a scope block with the given binding names.
func (e *Env) PushScopeBlock(bindings []string) {
	set := map[string]bool{}
	for _, b := range bindings {
		set[b] = true
	}
	e.scopeBindings = append(e.scopeBindings, set)
	e.scopeBodyDepths = append(e.scopeBodyDepths, e.ScopeDepth())
	e.scopeTainted = append(e.scopeTainted, map[string]bool{})
}

// PopScopeBlock leaves the innermost scope block.
func (e *Env) PopScopeBlock() {
	e.scopeBindings = e.scopeBindings[:len(e.scopeBindings)-1]
	e.scopeBodyDepths = e.scopeBodyDepths[:len(e.scopeBodyDepths)-1]
	e.scopeTainted = e.scopeTainted[:len(e.scopeTainted)-1]
}

// InScopeBlock reports whether a scope block is active.
func (e *Env) InScopeBlock() bool {
	return len(e.scopeBindings) > 0
}

// IsScopeBinding reports whether name is a binding of any active scope block.
func (e *Env) IsScopeBinding(name string) bool {
	for i := len(e.scopeBindings) - 1; i >= 0; i-- {
		if e.scopeBindings[i][name] {
			return true
		}
	}
	return false
}

// ScopeBodyDepth returns the scope depth at the innermost scope-block entry.
func (e *Env) ScopeBodyDepth() (int, bool) {
	if len(e.scopeBodyDepths) == 0 {
		return 0, false
	}
	return e.scopeBodyDepths[len(e.scopeBodyDepths)-1], true
}

// MarkScopeTaintedVar records that a variable holds a scope-tainted closure.
func (e *Env) MarkScopeTaintedVar(name string) {
	if len(e.scopeTainted) > 0 {
		e.scopeTainted[len(e.scopeTainted)-1][name] = true
	}
}

// IsScopeTaintedVar reports whether the variable holds a tainted closure.
func (e *Env) IsScopeTaintedVar(name string) bool {
	for i := len(e.scopeTainted) - 1; i >= 0; i-- {
		if e.scopeTainted[i][name] {
			return true
		}
	}
	return false
}

// ClassImplementsTrait reports whether the concrete class implements the
// trait.
func (e *Env) ClassImplementsTrait(className, traitName string) bool {
	info, ok := e.Classes[className]
	return ok && info.ImplementsTrait(traitName)
}

// RecordInstantiation adds an instantiation to the monomorphization
// worklist and returns its mangled name.
func (e *Env) RecordInstantiation(kind InstKind, name string, args []types.Type) string {
	inst := Instantiation{Kind: kind, Name: name, Args: args}
	mangled := inst.Mangled()
	if _, ok := e.Instantiations[mangled]; !ok {
		e.Instantiations[mangled] = inst
	}
	return mangled
}

// IsFnFallible reports whether the function's inferred error set is
// non-empty.
func (e *Env) IsFnFallible(name string) bool {
	return len(e.FnErrors[name]) > 0
}

// IsTraitMethodPotentiallyFallible reports whether any implementer's copy of
// the method is fallible. Trait-dynamic call sites fan out to every
// implementer.
func (e *Env) IsTraitMethodPotentiallyFallible(traitName, methodName string) bool {
	for className, info := range e.Classes {
		if info.ImplementsTrait(traitName) {
			if e.IsFnFallible(types.MangleMethod(className, methodName)) {
				return true
			}
		}
	}
	return false
}

// ResolveMethodFallibility answers whether the method call recorded at
// (currentFn, spanStart) is fallible. A missing resolution is a compiler
// bug surfaced as an internal error by the caller.
func (e *Env) ResolveMethodFallibility(currentFn string, spanStart int) (bool, bool) {
	res, ok := e.MethodResolutions[FnSpanKey{Fn: currentFn, Start: spanStart}]
	if !ok {
		return false, false
	}
	switch res.Kind {
	case ResolveClass:
		return e.IsFnFallible(res.MangledName), true
	case ResolveTraitDynamic:
		return e.IsTraitMethodPotentiallyFallible(res.TraitName, res.MethodName), true
	case ResolveBuiltin, ResolveTaskDetach, ResolveTaskCancel:
		return false, true
	case ResolveTaskGet:
		if res.SpawnedFn == "" {
			return true, true
		}
		return e.IsFnFallible(res.SpawnedFn), true
	case ResolveChannelSend, ResolveChannelRecv, ResolveChannelTrySend, ResolveChannelTryRecv:
		return true, true
	}
	return false, false
}
