package typecheck

import (
	"fmt"

	"github.com/plutolang/pluto/internal/ast"
	"github.com/plutolang/pluto/internal/diagnostics"
	"github.com/plutolang/pluto/internal/types"
)

// ValidateSerializableTypes checks every pub stage method: all non-self
// parameter types and the return type must lie in the serializable subset,
// since their values cross a stage boundary on the wire. Runs after
// monomorphization, when all types are concrete.
func ValidateSerializableTypes(program *ast.Program, env *Env) *diagnostics.CompileError {
	if len(program.Stages) == 0 {
		return nil
	}
	for _, stage := range program.Stages {
		for _, method := range stage.Methods {
			if !method.IsPub {
				continue
			}
			for _, param := range method.Params {
				if param.Name.Value == "self" {
					continue
				}
				paramType, err := ResolveType(param.Type, env)
				if err != nil {
					return err
				}
				if reason := checkSerializable(paramType, env, map[string]bool{}); reason != "" {
					return diagnostics.TypeErrf(param.Type.Span(),
						"parameter '%s' in stage pub method '%s' has non-serializable type: %s",
						param.Name.Value, method.Name.Value, reason)
				}
			}
			if method.ReturnType != nil {
				retType, err := ResolveType(method.ReturnType, env)
				if err != nil {
					return err
				}
				if reason := checkSerializable(retType, env, map[string]bool{}); reason != "" {
					return diagnostics.TypeErrf(method.ReturnType.Span(),
						"return type of stage pub method '%s' is not serializable: %s",
						method.Name.Value, reason)
				}
			}
		}
	}
	return nil
}

// checkSerializable returns "" when the type is serializable, or the reason
// it is not. The visited set guards recursive class and enum definitions.
func checkSerializable(t types.Type, env *Env, visited map[string]bool) string {
	switch t := t.(type) {
	case types.Int, types.Float, types.Bool, types.String, types.Byte, types.Bytes, types.Void:
		return ""
	case types.Nullable:
		return checkSerializable(t.Inner, env, visited)
	case types.Array:
		return checkSerializable(t.Elem, env, visited)
	case types.Map:
		if reason := checkSerializable(t.Key, env, visited); reason != "" {
			return reason
		}
		return checkSerializable(t.Value, env, visited)
	case types.Set:
		return checkSerializable(t.Elem, env, visited)
	case types.Class:
		if visited[t.Name] {
			return ""
		}
		visited[t.Name] = true
		defer delete(visited, t.Name)
		info, ok := env.Classes[t.Name]
		if !ok {
			return fmt.Sprintf("class '%s' not found in type environment", t.Name)
		}
		// Injected fields are wired by the container, never marshaled.
		for _, f := range info.Fields {
			if f.IsInjected {
				continue
			}
			if reason := checkSerializable(f.Type, env, visited); reason != "" {
				return fmt.Sprintf("field '%s' has type that is not serializable: %s", f.Name, reason)
			}
		}
		return ""
	case types.Enum:
		if visited[t.Name] {
			return ""
		}
		visited[t.Name] = true
		defer delete(visited, t.Name)
		info, ok := env.Enums[t.Name]
		if !ok {
			return fmt.Sprintf("enum '%s' not found in type environment", t.Name)
		}
		for _, v := range info.Variants {
			for _, f := range v.Fields {
				if reason := checkSerializable(f.Type, env, visited); reason != "" {
					return fmt.Sprintf("variant '%s' field '%s' has type that is not serializable: %s", v.Name, f.Name, reason)
				}
			}
		}
		return ""
	case types.Fn:
		return "closures cannot be serialized"
	case types.Task:
		return "Task<T> is a runtime handle and cannot be serialized"
	case types.Sender:
		return "Sender<T> is a runtime handle and cannot be serialized"
	case types.Receiver:
		return "Receiver<T> is a runtime handle and cannot be serialized"
	case types.Trait:
		return "trait types cannot be serialized (vtable pointer with no concrete type)"
	case types.Stream:
		return "stream types are not yet supported for marshaling"
	case types.TypeParam:
		return fmt.Sprintf("unresolved type parameter '%s' (this is a compiler bug)", t.Name)
	case types.GenericInstance:
		return fmt.Sprintf("unresolved generic instance '%s' (this is a compiler bug)", t.Name)
	case types.Range:
		return "range type is not serializable (internal type)"
	case types.Error:
		return "error types cannot be serialized directly"
	}
	return "unknown type"
}
