// Package ast defines the parsed-program data model the compiler core
// consumes. Parsing itself happens upstream; the core receives a *Program
// plus a source map and mutates the tree in the rewrite passes
// (monomorphization, call-site rewrites, closure lifting).
//
// Every node carries the byte-offset span of the source text it came from.
// Declarations additionally carry a uuid identity that stays stable for the
// lifetime of one compilation; monomorphized clones get fresh identities.
package ast

import (
	"github.com/google/uuid"

	"github.com/plutolang/pluto/internal/source"
)

// Node is implemented by every AST node.
type Node interface {
	Span() source.Span
}

// Lifecycle is the DI lifetime of a class. The ordering
// Transient < Scoped < Singleton is load-bearing: a dependent's inferred
// lifecycle is the minimum of its own and its dependencies'.
type Lifecycle int

const (
	Transient Lifecycle = iota
	Scoped
	Singleton
)

func (l Lifecycle) String() string {
	switch l {
	case Transient:
		return "transient"
	case Scoped:
		return "scoped"
	case Singleton:
		return "singleton"
	}
	return "unknown"
}

// MinLifecycle returns the shorter of two lifecycles.
func MinLifecycle(a, b Lifecycle) Lifecycle {
	if a < b {
		return a
	}
	return b
}

// Name is an identifier with its span.
type Name struct {
	Value string
	Sp    source.Span
}

func (n Name) Span() source.Span { return n.Sp }

// Param is one function/method parameter. The self parameter is spelled
// "self" and carries a nil Type; its type is the enclosing class.
type Param struct {
	ID    uuid.UUID
	Name  Name
	Type  TypeExpr // nil for self
	IsMut bool
}

// ContractKind discriminates design-by-contract clauses.
type ContractKind int

const (
	Requires ContractKind = iota
	Ensures
	Invariant
)

// Contract is one requires/ensures/invariant clause.
type Contract struct {
	Kind ContractKind
	Expr Expr
	Sp   source.Span
}

func (c *Contract) Span() source.Span { return c.Sp }

// TypeParam is a generic type parameter with its trait bounds.
type TypeParam struct {
	Name   Name
	Bounds []Name
}

// Function is a free function, a method, or (after lifting) a lifted closure.
type Function struct {
	ID          uuid.UUID
	Name        Name
	TypeParams  []TypeParam
	Params      []Param
	ReturnType  TypeExpr // nil means void
	Contracts   []*Contract
	Body        *Block
	IsPub       bool
	IsOverride  bool
	IsGenerator bool
	Sp          source.Span
}

func (f *Function) Span() source.Span { return f.Sp }

// IsGeneric reports whether the function is a generic template.
func (f *Function) IsGeneric() bool { return len(f.TypeParams) > 0 }

// HasSelf reports whether the first parameter is self.
func (f *Function) HasSelf() bool {
	return len(f.Params) > 0 && f.Params[0].Name.Value == "self"
}

// HasMutSelf reports whether the first parameter is `mut self`.
func (f *Function) HasMutSelf() bool {
	return f.HasSelf() && f.Params[0].IsMut
}

// Field is one class/app/stage field. Injected fields are the bracket deps
// wired by the DI container rather than by construction.
type Field struct {
	ID         uuid.UUID
	Name       Name
	Type       TypeExpr
	IsInjected bool
}

// ClassDecl declares a class.
type ClassDecl struct {
	ID         uuid.UUID
	Name       Name
	TypeParams []TypeParam
	Fields     []Field
	Methods    []*Function
	ImplTraits []Name
	Uses       []Name
	Invariants []*Contract
	Lifecycle  Lifecycle
	Sp         source.Span
}

func (c *ClassDecl) Span() source.Span { return c.Sp }

// IsGeneric reports whether the class is a generic template.
func (c *ClassDecl) IsGeneric() bool { return len(c.TypeParams) > 0 }

// TraitMethod is one trait method; Body is non-nil for default methods.
type TraitMethod struct {
	Name       Name
	Params     []Param
	ReturnType TypeExpr
	Contracts  []*Contract
	Body       *Block
	IsStatic   bool
}

// TraitDecl declares a trait.
type TraitDecl struct {
	ID      uuid.UUID
	Name    Name
	Methods []*TraitMethod
	Sp      source.Span
}

func (t *TraitDecl) Span() source.Span { return t.Sp }

// VariantField is one field of an enum variant or error declaration.
type VariantField struct {
	Name Name
	Type TypeExpr
}

// Variant is one enum variant.
type Variant struct {
	Name   Name
	Fields []VariantField
}

// EnumDecl declares an algebraic enum.
type EnumDecl struct {
	ID         uuid.UUID
	Name       Name
	TypeParams []TypeParam
	Variants   []Variant
	Sp         source.Span
}

func (e *EnumDecl) Span() source.Span { return e.Sp }

// IsGeneric reports whether the enum is a generic template.
func (e *EnumDecl) IsGeneric() bool { return len(e.TypeParams) > 0 }

// ErrorDecl declares an error type.
type ErrorDecl struct {
	ID     uuid.UUID
	Name   Name
	Fields []VariantField
	Sp     source.Span
}

func (e *ErrorDecl) Span() source.Span { return e.Sp }

// ExternFn declares a foreign function. Parameter and return types are
// restricted to primitives and arrays of primitives.
type ExternFn struct {
	ID         uuid.UUID
	Name       Name
	Params     []Param
	ReturnType TypeExpr
	Sp         source.Span
}

func (e *ExternFn) Span() source.Span { return e.Sp }

// LifecycleOverride shortens a class's lifecycle from the app declaration.
type LifecycleOverride struct {
	ClassName Name
	Target    Lifecycle
}

// AppDecl is the single application declaration. The app is registered as a
// class so method mangling and self resolution work identically.
type AppDecl struct {
	ID                 uuid.UUID
	Name               Name
	InjectFields       []Field
	Methods            []*Function
	AmbientTypes       []Name
	LifecycleOverrides []LifecycleOverride
	Sp                 source.Span
}

func (a *AppDecl) Span() source.Span { return a.Sp }

// StageDecl is one distribution stage. Pub methods cross stage boundaries
// and are subject to the serializability check.
type StageDecl struct {
	ID      uuid.UUID
	Name    Name
	Fields  []Field
	Methods []*Function
	Sp      source.Span
}

func (s *StageDecl) Span() source.Span { return s.Sp }

// Program is a whole parsed compilation unit, imports already flattened.
type Program struct {
	Functions []*Function
	Classes   []*ClassDecl
	Traits    []*TraitDecl
	Enums     []*EnumDecl
	Errors    []*ErrorDecl
	ExternFns []*ExternFn
	App       *AppDecl
	Stages    []*StageDecl

	// FallibleExternFns names the extern functions whose foreign
	// implementation returns a Result; they raise RustError.
	FallibleExternFns []string
}

// Block is a brace-delimited statement list.
type Block struct {
	Stmts []Stmt
	Sp    source.Span
}

func (b *Block) Span() source.Span { return b.Sp }
