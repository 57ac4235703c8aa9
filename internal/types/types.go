// Package types defines the semantic type lattice of the Pluto language,
// deterministic name mangling for monomorphized instances, and the
// unification used for generic type-argument inference.
//
// The lattice is a closed set: primitives, the built-in parameterized
// constructors, user-defined nominal types, and two placeholder forms
// (TypeParam, GenericInstance) that only exist inside generic signatures
// until concrete arguments arrive.
package types

import (
	"fmt"
	"reflect"
	"strings"
)

// Type is one point of the lattice. Concrete implementations are value
// structs so that reflect.DeepEqual gives structural equality.
type Type interface {
	String() string
	isType()
}

// GenericKind discriminates what a GenericInstance will resolve to.
type GenericKind int

const (
	GenericClass GenericKind = iota
	GenericEnum
)

type (
	// Int is the 64-bit signed integer type.
	Int struct{}
	// Float is the 64-bit float type.
	Float struct{}
	// Bool is the boolean type.
	Bool struct{}
	// String is the immutable string type.
	String struct{}
	// Void is the unit type of value-less functions.
	Void struct{}
	// Byte is a single octet.
	Byte struct{}
	// Bytes is a mutable byte buffer.
	Bytes struct{}
	// Range is the type of start..end expressions; iterable, not storable.
	Range struct{}
	// Error is the dynamic error value bound by catch handlers.
	Error struct{}

	// Class names a concrete class: either a declared name or a mangled
	// monomorphized instance.
	Class struct{ Name string }
	// Trait names a trait used as a dynamic-dispatch type.
	Trait struct{ Name string }
	// Enum names a concrete enum, declared or mangled.
	Enum struct{ Name string }

	// Array is [T].
	Array struct{ Elem Type }
	// Map is Map<K, V>; K must be hashable.
	Map struct{ Key, Value Type }
	// Set is Set<T>; T must be hashable.
	Set struct{ Elem Type }
	// Fn is a closure type.
	Fn struct {
		Params []Type
		Return Type
	}
	// Task is the handle of a spawned task.
	Task struct{ Elem Type }
	// Sender is the sending half of a channel.
	Sender struct{ Elem Type }
	// Receiver is the receiving half of a channel.
	Receiver struct{ Elem Type }
	// Nullable is T?. Nullable{Void{}} is the none sentinel.
	Nullable struct{ Inner Type }
	// Stream is the declared return type of generators.
	Stream struct{ Elem Type }

	// TypeParam is an unresolved type parameter inside a generic signature.
	TypeParam struct{ Name string }
	// GenericInstance is a user-defined generic whose arguments still
	// contain type parameters. It resolves to Class/Enum once all
	// arguments are concrete.
	GenericInstance struct {
		Kind GenericKind
		Name string
		Args []Type
	}
)

func (Int) isType()             {}
func (Float) isType()           {}
func (Bool) isType()            {}
func (String) isType()          {}
func (Void) isType()            {}
func (Byte) isType()            {}
func (Bytes) isType()           {}
func (Range) isType()           {}
func (Error) isType()           {}
func (Class) isType()           {}
func (Trait) isType()           {}
func (Enum) isType()            {}
func (Array) isType()           {}
func (Map) isType()             {}
func (Set) isType()             {}
func (Fn) isType()              {}
func (Task) isType()            {}
func (Sender) isType()          {}
func (Receiver) isType()        {}
func (Nullable) isType()        {}
func (Stream) isType()          {}
func (TypeParam) isType()       {}
func (GenericInstance) isType() {}

func (Int) String() string    { return "int" }
func (Float) String() string  { return "float" }
func (Bool) String() string   { return "bool" }
func (String) String() string { return "string" }
func (Void) String() string   { return "void" }
func (Byte) String() string   { return "byte" }
func (Bytes) String() string  { return "bytes" }
func (Range) String() string  { return "range" }
func (Error) String() string  { return "error" }

func (t Class) String() string { return t.Name }
func (t Trait) String() string { return "trait " + t.Name }
func (t Enum) String() string  { return t.Name }

func (t Array) String() string { return "[" + t.Elem.String() + "]" }
func (t Map) String() string {
	return fmt.Sprintf("Map<%s, %s>", t.Key, t.Value)
}
func (t Set) String() string { return fmt.Sprintf("Set<%s>", t.Elem) }
func (t Fn) String() string {
	parts := make([]string, len(t.Params))
	for i, p := range t.Params {
		parts[i] = p.String()
	}
	return fmt.Sprintf("fn(%s) %s", strings.Join(parts, ", "), t.Return)
}
func (t Task) String() string     { return fmt.Sprintf("Task<%s>", t.Elem) }
func (t Sender) String() string   { return fmt.Sprintf("Sender<%s>", t.Elem) }
func (t Receiver) String() string { return fmt.Sprintf("Receiver<%s>", t.Elem) }
func (t Nullable) String() string { return t.Inner.String() + "?" }
func (t Stream) String() string   { return "stream " + t.Elem.String() }

func (t TypeParam) String() string { return t.Name }
func (t GenericInstance) String() string {
	parts := make([]string, len(t.Args))
	for i, a := range t.Args {
		parts[i] = a.String()
	}
	return t.Name + "<" + strings.Join(parts, ", ") + ">"
}

// Equal reports structural equality of two types.
func Equal(a, b Type) bool {
	return reflect.DeepEqual(a, b)
}

// None is the type of the none literal before context widens it.
func None() Type {
	return Nullable{Inner: Void{}}
}

// IsNone reports whether t is the none sentinel Nullable(Void).
func IsNone(t Type) bool {
	n, ok := t.(Nullable)
	if !ok {
		return false
	}
	_, inner := n.Inner.(Void)
	return inner
}

// IsHashable reports whether t may key a Map or populate a Set.
func IsHashable(t Type) bool {
	switch t.(type) {
	case Int, Float, Bool, String, Byte, Enum:
		return true
	}
	return false
}

// IsNumeric reports whether t is int or float.
func IsNumeric(t Type) bool {
	switch t.(type) {
	case Int, Float:
		return true
	}
	return false
}

// ContainsTypeParam reports whether t still mentions an unresolved type
// parameter anywhere.
func ContainsTypeParam(t Type) bool {
	switch t := t.(type) {
	case TypeParam:
		return true
	case Array:
		return ContainsTypeParam(t.Elem)
	case Map:
		return ContainsTypeParam(t.Key) || ContainsTypeParam(t.Value)
	case Set:
		return ContainsTypeParam(t.Elem)
	case Fn:
		for _, p := range t.Params {
			if ContainsTypeParam(p) {
				return true
			}
		}
		return ContainsTypeParam(t.Return)
	case Task:
		return ContainsTypeParam(t.Elem)
	case Sender:
		return ContainsTypeParam(t.Elem)
	case Receiver:
		return ContainsTypeParam(t.Elem)
	case Nullable:
		return ContainsTypeParam(t.Inner)
	case Stream:
		return ContainsTypeParam(t.Elem)
	case GenericInstance:
		for _, a := range t.Args {
			if ContainsTypeParam(a) {
				return true
			}
		}
	}
	return false
}
