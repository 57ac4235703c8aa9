package ast

import (
	"strings"

	"github.com/plutolang/pluto/internal/source"
)

// TypeExpr is a syntactic type annotation. The resolver lowers these to the
// semantic type lattice; monomorphization substitutes and rewrites them.
type TypeExpr interface {
	Node
	typeExpr()
	String() string
}

// NamedType is a bare type name: a primitive, class, trait, enum, or (inside
// a generic declaration) a type parameter.
type NamedType struct {
	Name string
	Sp   source.Span
}

func (t *NamedType) Span() source.Span { return t.Sp }
func (t *NamedType) typeExpr()         {}
func (t *NamedType) String() string    { return t.Name }

// ArrayType is [T].
type ArrayType struct {
	Elem TypeExpr
	Sp   source.Span
}

func (t *ArrayType) Span() source.Span { return t.Sp }
func (t *ArrayType) typeExpr()         {}
func (t *ArrayType) String() string    { return "[" + t.Elem.String() + "]" }

// FnType is fn(P1, ...) R.
type FnType struct {
	Params     []TypeExpr
	ReturnType TypeExpr // nil means void
	Sp         source.Span
}

func (t *FnType) Span() source.Span { return t.Sp }
func (t *FnType) typeExpr()         {}
func (t *FnType) String() string {
	parts := make([]string, len(t.Params))
	for i, p := range t.Params {
		parts[i] = p.String()
	}
	s := "fn(" + strings.Join(parts, ", ") + ")"
	if t.ReturnType != nil {
		s += " " + t.ReturnType.String()
	}
	return s
}

// GenericType is Head<A, ...>: either one of the built-in generic heads
// (Map, Set, Task, Sender, Receiver) or a user-defined generic.
type GenericType struct {
	Name     string
	TypeArgs []TypeExpr
	Sp       source.Span
}

func (t *GenericType) Span() source.Span { return t.Sp }
func (t *GenericType) typeExpr()         {}
func (t *GenericType) String() string {
	parts := make([]string, len(t.TypeArgs))
	for i, a := range t.TypeArgs {
		parts[i] = a.String()
	}
	return t.Name + "<" + strings.Join(parts, ", ") + ">"
}

// NullableType is T?.
type NullableType struct {
	Inner TypeExpr
	Sp    source.Span
}

func (t *NullableType) Span() source.Span { return t.Sp }
func (t *NullableType) typeExpr()         {}
func (t *NullableType) String() string    { return t.Inner.String() + "?" }

// StreamType is stream T, the declared return of a generator.
type StreamType struct {
	Elem TypeExpr
	Sp   source.Span
}

func (t *StreamType) Span() source.Span { return t.Sp }
func (t *StreamType) typeExpr()         {}
func (t *StreamType) String() string    { return "stream " + t.Elem.String() }
