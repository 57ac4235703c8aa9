package types

import "strings"

// Mangling is purely structural and deterministic: the same base name and
// argument list always produce the same mangled name, and distinct inputs
// produce distinct outputs. Codegen, the error-effect pass, and the
// incremental cache all key on these names, so the scheme must never change
// shape without migrating all of them.

// MangleName encodes a generic instantiation: base$$arg1$arg2$...
func MangleName(base string, args []Type) string {
	suffixes := make([]string, len(args))
	for i, a := range args {
		suffixes[i] = mangleType(a)
	}
	return base + "$$" + strings.Join(suffixes, "$")
}

// MangleMethod encodes a method of a class, app, or stage: Class$method.
func MangleMethod(owner, method string) string {
	return owner + "$" + method
}

func mangleType(t Type) string {
	switch t := t.(type) {
	case Int:
		return "int"
	case Float:
		return "float"
	case Bool:
		return "bool"
	case String:
		return "string"
	case Void:
		return "void"
	case Byte:
		return "byte"
	case Bytes:
		return "bytes"
	case Range:
		return "range"
	case Error:
		return "error"
	case Class:
		return t.Name
	case Enum:
		return t.Name
	case Trait:
		return t.Name
	case TypeParam:
		return t.Name
	case Array:
		return "arr$" + mangleType(t.Elem)
	case Fn:
		parts := make([]string, len(t.Params))
		for i, p := range t.Params {
			parts[i] = mangleType(p)
		}
		return "fn$" + strings.Join(parts, "$") + "$ret$" + mangleType(t.Return)
	case Map:
		return "map$" + mangleType(t.Key) + "$" + mangleType(t.Value)
	case Set:
		return "set$" + mangleType(t.Elem)
	case Task:
		return "task$" + mangleType(t.Elem)
	case Sender:
		return "sender$" + mangleType(t.Elem)
	case Receiver:
		return "receiver$" + mangleType(t.Elem)
	case Nullable:
		return "nullable$" + mangleType(t.Inner)
	case Stream:
		return "stream$" + mangleType(t.Elem)
	case GenericInstance:
		suffixes := make([]string, len(t.Args))
		for i, a := range t.Args {
			suffixes[i] = mangleType(a)
		}
		return t.Name + "$$" + strings.Join(suffixes, "$")
	}
	return "unknown"
}

// BaseName returns the generic base of a possibly-mangled name:
// "Option$$int" → "Option", "Pair" → "Pair".
func BaseName(mangled string) string {
	if i := strings.Index(mangled, "$$"); i >= 0 {
		return mangled[:i]
	}
	return mangled
}

// IsMangledInstanceOf reports whether name is a monomorphized instance of
// the generic base.
func IsMangledInstanceOf(name, base string) bool {
	return strings.HasPrefix(name, base+"$$")
}
