package cache

import (
	"github.com/plutolang/pluto/internal/typecheck"
	"github.com/plutolang/pluto/internal/types"
)

// WireType is the serialized form of a semantic type. The lattice is a Go
// interface, which msgpack cannot round-trip directly; this closed record
// can.
type WireType struct {
	Kind string     `msgpack:"kind"`
	Name string     `msgpack:"name,omitempty"`
	Args []WireType `msgpack:"args,omitempty"`
}

func toWire(t types.Type) WireType {
	one := func(kind string, inner types.Type) WireType {
		return WireType{Kind: kind, Args: []WireType{toWire(inner)}}
	}
	switch t := t.(type) {
	case types.Int:
		return WireType{Kind: "int"}
	case types.Float:
		return WireType{Kind: "float"}
	case types.Bool:
		return WireType{Kind: "bool"}
	case types.String:
		return WireType{Kind: "string"}
	case types.Void:
		return WireType{Kind: "void"}
	case types.Byte:
		return WireType{Kind: "byte"}
	case types.Bytes:
		return WireType{Kind: "bytes"}
	case types.Range:
		return WireType{Kind: "range"}
	case types.Error:
		return WireType{Kind: "error"}
	case types.Class:
		return WireType{Kind: "class", Name: t.Name}
	case types.Trait:
		return WireType{Kind: "trait", Name: t.Name}
	case types.Enum:
		return WireType{Kind: "enum", Name: t.Name}
	case types.TypeParam:
		return WireType{Kind: "typeparam", Name: t.Name}
	case types.Array:
		return one("array", t.Elem)
	case types.Set:
		return one("set", t.Elem)
	case types.Task:
		return one("task", t.Elem)
	case types.Sender:
		return one("sender", t.Elem)
	case types.Receiver:
		return one("receiver", t.Elem)
	case types.Nullable:
		return one("nullable", t.Inner)
	case types.Stream:
		return one("stream", t.Elem)
	case types.Map:
		return WireType{Kind: "map", Args: []WireType{toWire(t.Key), toWire(t.Value)}}
	case types.Fn:
		args := make([]WireType, 0, len(t.Params)+1)
		for _, p := range t.Params {
			args = append(args, toWire(p))
		}
		args = append(args, toWire(t.Return))
		return WireType{Kind: "fn", Args: args}
	case types.GenericInstance:
		kind := "generic_class"
		if t.Kind == types.GenericEnum {
			kind = "generic_enum"
		}
		args := make([]WireType, len(t.Args))
		for i, a := range t.Args {
			args[i] = toWire(a)
		}
		return WireType{Kind: kind, Name: t.Name, Args: args}
	}
	return WireType{Kind: "void"}
}

func fromWire(w WireType) types.Type {
	arg := func(i int) types.Type {
		if i < len(w.Args) {
			return fromWire(w.Args[i])
		}
		return types.Void{}
	}
	switch w.Kind {
	case "int":
		return types.Int{}
	case "float":
		return types.Float{}
	case "bool":
		return types.Bool{}
	case "string":
		return types.String{}
	case "void":
		return types.Void{}
	case "byte":
		return types.Byte{}
	case "bytes":
		return types.Bytes{}
	case "range":
		return types.Range{}
	case "error":
		return types.Error{}
	case "class":
		return types.Class{Name: w.Name}
	case "trait":
		return types.Trait{Name: w.Name}
	case "enum":
		return types.Enum{Name: w.Name}
	case "typeparam":
		return types.TypeParam{Name: w.Name}
	case "array":
		return types.Array{Elem: arg(0)}
	case "set":
		return types.Set{Elem: arg(0)}
	case "task":
		return types.Task{Elem: arg(0)}
	case "sender":
		return types.Sender{Elem: arg(0)}
	case "receiver":
		return types.Receiver{Elem: arg(0)}
	case "nullable":
		return types.Nullable{Inner: arg(0)}
	case "stream":
		return types.Stream{Elem: arg(0)}
	case "map":
		return types.Map{Key: arg(0), Value: arg(1)}
	case "fn":
		if len(w.Args) == 0 {
			return types.Fn{Return: types.Void{}}
		}
		params := make([]types.Type, 0, len(w.Args)-1)
		for _, a := range w.Args[:len(w.Args)-1] {
			params = append(params, fromWire(a))
		}
		return types.Fn{Params: params, Return: fromWire(w.Args[len(w.Args)-1])}
	case "generic_class", "generic_enum":
		kind := types.GenericClass
		if w.Kind == "generic_enum" {
			kind = types.GenericEnum
		}
		args := make([]types.Type, len(w.Args))
		for i, a := range w.Args {
			args[i] = fromWire(a)
		}
		return types.GenericInstance{Kind: kind, Name: w.Name, Args: args}
	}
	return types.Void{}
}

// WireCapture is one serialized closure capture.
type WireCapture struct {
	Name string   `msgpack:"name"`
	Type WireType `msgpack:"type"`
}

func capturesToWire(caps []typecheck.Capture) []WireCapture {
	out := make([]WireCapture, len(caps))
	for i, c := range caps {
		out[i] = WireCapture{Name: c.Name, Type: toWire(c.Type)}
	}
	return out
}

func capturesFromWire(caps []WireCapture) []typecheck.Capture {
	out := make([]typecheck.Capture, len(caps))
	for i, c := range caps {
		out[i] = typecheck.Capture{Name: c.Name, Type: fromWire(c.Type)}
	}
	return out
}

// WireResolution is one serialized method resolution.
type WireResolution struct {
	Kind        int    `msgpack:"kind"`
	MangledName string `msgpack:"mangled,omitempty"`
	TraitName   string `msgpack:"trait,omitempty"`
	MethodName  string `msgpack:"method,omitempty"`
	SpawnedFn   string `msgpack:"spawned,omitempty"`
}

func resolutionToWire(r typecheck.MethodResolution) WireResolution {
	return WireResolution{
		Kind:        int(r.Kind),
		MangledName: r.MangledName,
		TraitName:   r.TraitName,
		MethodName:  r.MethodName,
		SpawnedFn:   r.SpawnedFn,
	}
}

func resolutionFromWire(w WireResolution) typecheck.MethodResolution {
	return typecheck.MethodResolution{
		Kind:        typecheck.ResolutionKind(w.Kind),
		MangledName: w.MangledName,
		TraitName:   w.TraitName,
		MethodName:  w.MethodName,
		SpawnedFn:   w.SpawnedFn,
	}
}

// WireWiring is one serialized scope field wiring.
type WireWiring struct {
	Kind      int    `msgpack:"kind"`
	SeedIndex int    `msgpack:"seed,omitempty"`
	ClassName string `msgpack:"class,omitempty"`
}

// WireScopeResolution is one serialized scope-block plan.
type WireScopeResolution struct {
	CreationOrder  []string `msgpack:"creation_order"`
	FieldWirings   map[string][]WireNamedWiring `msgpack:"field_wirings"`
	BindingSources []WireWiring `msgpack:"binding_sources"`
}

// WireNamedWiring pairs a field name with a wiring.
type WireNamedWiring struct {
	Field  string     `msgpack:"field"`
	Wiring WireWiring `msgpack:"wiring"`
}

func wiringToWire(w typecheck.FieldWiring) WireWiring {
	return WireWiring{Kind: int(w.Kind), SeedIndex: w.SeedIndex, ClassName: w.ClassName}
}

func wiringFromWire(w WireWiring) typecheck.FieldWiring {
	return typecheck.FieldWiring{Kind: typecheck.WiringKind(w.Kind), SeedIndex: w.SeedIndex, ClassName: w.ClassName}
}

func scopeResolutionToWire(r *typecheck.ScopeResolution) WireScopeResolution {
	out := WireScopeResolution{
		CreationOrder: append([]string(nil), r.CreationOrder...),
		FieldWirings:  map[string][]WireNamedWiring{},
	}
	for class, wirings := range r.FieldWirings {
		for _, nw := range wirings {
			out.FieldWirings[class] = append(out.FieldWirings[class], WireNamedWiring{
				Field:  nw.Field,
				Wiring: wiringToWire(nw.Wiring),
			})
		}
	}
	for _, b := range r.BindingSources {
		out.BindingSources = append(out.BindingSources, wiringToWire(b))
	}
	return out
}

func scopeResolutionFromWire(w WireScopeResolution) *typecheck.ScopeResolution {
	out := &typecheck.ScopeResolution{
		CreationOrder: append([]string(nil), w.CreationOrder...),
		FieldWirings:  map[string][]typecheck.NamedWiring{},
	}
	for class, wirings := range w.FieldWirings {
		for _, nw := range wirings {
			out.FieldWirings[class] = append(out.FieldWirings[class], typecheck.NamedWiring{
				Field:  nw.Field,
				Wiring: wiringFromWire(nw.Wiring),
			})
		}
	}
	for _, b := range w.BindingSources {
		out.BindingSources = append(out.BindingSources, wiringFromWire(b))
	}
	return out
}
