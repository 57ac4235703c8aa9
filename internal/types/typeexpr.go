package types

import (
	"github.com/plutolang/pluto/internal/ast"
	"github.com/plutolang/pluto/internal/source"
)

// ToTypeExpr converts a semantic type back to its AST annotation form.
// Closure lifting and monomorphization use this to synthesize annotations;
// the produced nodes carry dummy spans. Composed with the resolver this is
// the identity on every type expressible in a TypeExpr.
func ToTypeExpr(t Type) ast.TypeExpr {
	dummy := source.Dummy()
	named := func(name string) ast.TypeExpr {
		return &ast.NamedType{Name: name, Sp: dummy}
	}
	generic := func(name string, args ...Type) ast.TypeExpr {
		typeArgs := make([]ast.TypeExpr, len(args))
		for i, a := range args {
			typeArgs[i] = ToTypeExpr(a)
		}
		return &ast.GenericType{Name: name, TypeArgs: typeArgs, Sp: dummy}
	}
	switch t := t.(type) {
	case Int:
		return named("int")
	case Float:
		return named("float")
	case Bool:
		return named("bool")
	case String:
		return named("string")
	case Void:
		return named("void")
	case Byte:
		return named("byte")
	case Bytes:
		return named("bytes")
	case Range:
		return named("range")
	case Error:
		return named("error")
	case Class:
		return named(t.Name)
	case Trait:
		return named(t.Name)
	case Enum:
		return named(t.Name)
	case TypeParam:
		return named(t.Name)
	case Array:
		return &ast.ArrayType{Elem: ToTypeExpr(t.Elem), Sp: dummy}
	case Fn:
		params := make([]ast.TypeExpr, len(t.Params))
		for i, p := range t.Params {
			params[i] = ToTypeExpr(p)
		}
		var ret ast.TypeExpr
		if _, void := t.Return.(Void); !void {
			ret = ToTypeExpr(t.Return)
		}
		return &ast.FnType{Params: params, ReturnType: ret, Sp: dummy}
	case Map:
		return generic("Map", t.Key, t.Value)
	case Set:
		return generic("Set", t.Elem)
	case Task:
		return generic("Task", t.Elem)
	case Sender:
		return generic("Sender", t.Elem)
	case Receiver:
		return generic("Receiver", t.Elem)
	case Nullable:
		return &ast.NullableType{Inner: ToTypeExpr(t.Inner), Sp: dummy}
	case Stream:
		return &ast.StreamType{Elem: ToTypeExpr(t.Elem), Sp: dummy}
	case GenericInstance:
		return generic(t.Name, t.Args...)
	}
	return named("void")
}
