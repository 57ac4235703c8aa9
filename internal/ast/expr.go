package ast

import "github.com/plutolang/pluto/internal/source"

// Expr is implemented by every expression node.
type Expr interface {
	Node
	expr()
}

// IntLit is an integer literal.
type IntLit struct {
	Value int64
	Sp    source.Span
}

// FloatLit is a float literal.
type FloatLit struct {
	Value float64
	Sp    source.Span
}

// BoolLit is true or false.
type BoolLit struct {
	Value bool
	Sp    source.Span
}

// StringLit is a plain string literal.
type StringLit struct {
	Value string
	Sp    source.Span
}

// StringInterpPart is either literal text or an interpolated expression.
type StringInterpPart struct {
	Text string // used when Expr is nil
	Expr Expr
}

// StringInterp is a string literal with ${...} interpolations.
type StringInterp struct {
	Parts []StringInterpPart
	Sp    source.Span
}

// NoneLit is the none literal; it types as the Nullable(Void) sentinel until
// context widens it.
type NoneLit struct {
	Sp source.Span
}

// Ident is a variable reference.
type Ident struct {
	Name string
	Sp   source.Span
}

// BinOpKind enumerates binary operators.
type BinOpKind int

const (
	Add BinOpKind = iota
	Sub
	Mul
	Div
	Mod
	Eq
	Neq
	Lt
	Gt
	LtEq
	GtEq
	And
	Or
	BitAnd
	BitOr
	BitXor
	Shl
	Shr
)

// BinOp is a binary operation.
type BinOp struct {
	Op  BinOpKind
	LHS Expr
	RHS Expr
	Sp  source.Span
}

// UnaryOpKind enumerates unary operators.
type UnaryOpKind int

const (
	Neg UnaryOpKind = iota
	Not
	BitNot
)

// UnaryOp is a unary operation.
type UnaryOp struct {
	Op      UnaryOpKind
	Operand Expr
	Sp      source.Span
}

// Cast is `expr as T`.
type Cast struct {
	Value  Expr
	Target TypeExpr
	Sp     source.Span
}

// Call is a call of a named function (builtin, closure variable, generic, or
// monomorphic). TypeArgs carries explicit generic arguments; monomorphization
// clears it when it rewrites the name to the mangled instance.
type Call struct {
	FuncName Name
	TypeArgs []TypeExpr
	Args     []Expr
	Sp       source.Span
}

// MethodCall is obj.method(args).
type MethodCall struct {
	Object Expr
	Method Name
	Args   []Expr
	Sp     source.Span
}

// StaticTraitCall is Trait::method(args) for static trait methods.
type StaticTraitCall struct {
	TraitName  Name
	MethodName Name
	TypeArgs   []TypeExpr
	Args       []Expr
	Sp         source.Span
}

// FieldAccess is obj.field.
type FieldAccess struct {
	Object Expr
	Field  Name
	Sp     source.Span
}

// FieldInit is one field initializer in a struct or enum-data literal.
type FieldInit struct {
	Name  Name
	Value Expr
}

// StructLit constructs a class instance.
type StructLit struct {
	ClassName Name
	TypeArgs  []TypeExpr
	Fields    []FieldInit
	Sp        source.Span
}

// ArrayLit is [e1, e2, ...].
type ArrayLit struct {
	Elements []Expr
	Sp       source.Span
}

// MapEntry is one key/value pair in a map literal.
type MapEntry struct {
	Key   Expr
	Value Expr
}

// MapLit is Map<K, V>{k: v, ...}; key and value types are part of the syntax.
type MapLit struct {
	KeyType   TypeExpr
	ValueType TypeExpr
	Entries   []MapEntry
	Sp        source.Span
}

// SetLit is Set<T>{e1, ...}.
type SetLit struct {
	ElemType TypeExpr
	Elements []Expr
	Sp       source.Span
}

// Index is obj[idx].
type Index struct {
	Object Expr
	Idx    Expr
	Sp     source.Span
}

// EnumUnit constructs a unit enum variant: Color.Red.
type EnumUnit struct {
	EnumName Name
	Variant  Name
	TypeArgs []TypeExpr
	Sp       source.Span
}

// EnumData constructs a data-carrying enum variant: Status.Suspended{...}.
type EnumData struct {
	EnumName Name
	Variant  Name
	TypeArgs []TypeExpr
	Fields   []FieldInit
	Sp       source.Span
}

// RangeExpr is start..end; both endpoints must be ints.
type RangeExpr struct {
	Start     Expr
	End       Expr
	Inclusive bool
	Sp        source.Span
}

// Closure is (params) [T]? => body.
type Closure struct {
	Params     []Param
	ReturnType TypeExpr // nil means inferred
	Body       *Block
	Sp         source.Span
}

// ClosureCreate replaces a Closure after lifting: it names the lifted
// function and lists the captured variables whose values form the capture
// record.
type ClosureCreate struct {
	FnName   string
	Captures []string
	Sp       source.Span
}

// Propagate is call!: propagate the callee's error to the caller.
type Propagate struct {
	Value Expr
	Sp    source.Span
}

// NullPropagate is expr?: unwrap a nullable, early-returning none.
type NullPropagate struct {
	Value Expr
	Sp    source.Span
}

// CatchHandler is either the shorthand fallback expression or a wildcard
// handler binding the error.
type CatchHandler interface {
	catchHandler()
}

// CatchShorthand is `call catch fallback`.
type CatchShorthand struct {
	Fallback Expr
}

func (*CatchShorthand) catchHandler() {}

// CatchWildcard is `call catch err { handler }`.
type CatchWildcard struct {
	ErrName Name
	Body    Expr
}

func (*CatchWildcard) catchHandler() {}

// Catch is `call catch ...`: handle the callee's error locally.
type Catch struct {
	Value   Expr
	Handler CatchHandler
	Sp      source.Span
}

// Spawn starts a task. After desugaring, Call is a Closure wrapping the
// original function call.
type Spawn struct {
	Call Expr
	Sp   source.Span
}

// IfExpr is a branching expression; both branches are required and their
// types unify to the result.
type IfExpr struct {
	Cond Expr
	Then *Block
	Else *Block
	Sp   source.Span
}

// MatchExprArm is one arm of a match expression.
type MatchExprArm struct {
	EnumName Name
	Variant  Name
	Bindings []MatchBinding
	Value    Expr
}

// MatchExpr is a match used in expression position; arm values unify to the
// result type.
type MatchExpr struct {
	Scrutinee Expr
	Arms      []MatchExprArm
	Sp        source.Span
}

func (e *IntLit) Span() source.Span          { return e.Sp }
func (e *FloatLit) Span() source.Span        { return e.Sp }
func (e *BoolLit) Span() source.Span         { return e.Sp }
func (e *StringLit) Span() source.Span       { return e.Sp }
func (e *StringInterp) Span() source.Span    { return e.Sp }
func (e *NoneLit) Span() source.Span         { return e.Sp }
func (e *Ident) Span() source.Span           { return e.Sp }
func (e *BinOp) Span() source.Span           { return e.Sp }
func (e *UnaryOp) Span() source.Span         { return e.Sp }
func (e *Cast) Span() source.Span            { return e.Sp }
func (e *Call) Span() source.Span            { return e.Sp }
func (e *MethodCall) Span() source.Span      { return e.Sp }
func (e *StaticTraitCall) Span() source.Span { return e.Sp }
func (e *FieldAccess) Span() source.Span     { return e.Sp }
func (e *StructLit) Span() source.Span       { return e.Sp }
func (e *ArrayLit) Span() source.Span        { return e.Sp }
func (e *MapLit) Span() source.Span          { return e.Sp }
func (e *SetLit) Span() source.Span          { return e.Sp }
func (e *Index) Span() source.Span           { return e.Sp }
func (e *EnumUnit) Span() source.Span        { return e.Sp }
func (e *EnumData) Span() source.Span        { return e.Sp }
func (e *RangeExpr) Span() source.Span       { return e.Sp }
func (e *Closure) Span() source.Span         { return e.Sp }
func (e *ClosureCreate) Span() source.Span   { return e.Sp }
func (e *Propagate) Span() source.Span       { return e.Sp }
func (e *NullPropagate) Span() source.Span   { return e.Sp }
func (e *Catch) Span() source.Span           { return e.Sp }
func (e *Spawn) Span() source.Span           { return e.Sp }
func (e *IfExpr) Span() source.Span          { return e.Sp }
func (e *MatchExpr) Span() source.Span       { return e.Sp }

func (*IntLit) expr()          {}
func (*FloatLit) expr()        {}
func (*BoolLit) expr()         {}
func (*StringLit) expr()       {}
func (*StringInterp) expr()    {}
func (*NoneLit) expr()         {}
func (*Ident) expr()           {}
func (*BinOp) expr()           {}
func (*UnaryOp) expr()         {}
func (*Cast) expr()            {}
func (*Call) expr()            {}
func (*MethodCall) expr()      {}
func (*StaticTraitCall) expr() {}
func (*FieldAccess) expr()     {}
func (*StructLit) expr()       {}
func (*ArrayLit) expr()        {}
func (*MapLit) expr()          {}
func (*SetLit) expr()          {}
func (*Index) expr()           {}
func (*EnumUnit) expr()        {}
func (*EnumData) expr()        {}
func (*RangeExpr) expr()       {}
func (*Closure) expr()         {}
func (*ClosureCreate) expr()   {}
func (*Propagate) expr()       {}
func (*NullPropagate) expr()   {}
func (*Catch) expr()           {}
func (*Spawn) expr()           {}
func (*IfExpr) expr()          {}
func (*MatchExpr) expr()       {}
