package types

// Unify matches a signature type (which may contain TypeParams) against a
// concrete argument type, binding each type parameter on first sight and
// enforcing equality on subsequent sightings. It descends structurally
// through every compound constructor. Returns false when no consistent
// binding exists: the caller reports a type-parameter-inference error at
// the call site.
func Unify(param, arg Type, bindings map[string]Type) bool {
	switch p := param.(type) {
	case TypeParam:
		if bound, ok := bindings[p.Name]; ok {
			return Equal(bound, arg)
		}
		bindings[p.Name] = arg
		return true
	case Array:
		a, ok := arg.(Array)
		return ok && Unify(p.Elem, a.Elem, bindings)
	case Map:
		a, ok := arg.(Map)
		return ok && Unify(p.Key, a.Key, bindings) && Unify(p.Value, a.Value, bindings)
	case Set:
		a, ok := arg.(Set)
		return ok && Unify(p.Elem, a.Elem, bindings)
	case Task:
		a, ok := arg.(Task)
		return ok && Unify(p.Elem, a.Elem, bindings)
	case Sender:
		a, ok := arg.(Sender)
		return ok && Unify(p.Elem, a.Elem, bindings)
	case Receiver:
		a, ok := arg.(Receiver)
		return ok && Unify(p.Elem, a.Elem, bindings)
	case Nullable:
		a, ok := arg.(Nullable)
		return ok && Unify(p.Inner, a.Inner, bindings)
	case Stream:
		a, ok := arg.(Stream)
		return ok && Unify(p.Elem, a.Elem, bindings)
	case Fn:
		a, ok := arg.(Fn)
		if !ok || len(p.Params) != len(a.Params) {
			return false
		}
		for i := range p.Params {
			if !Unify(p.Params[i], a.Params[i], bindings) {
				return false
			}
		}
		return Unify(p.Return, a.Return, bindings)
	case GenericInstance:
		// A generic instance unifies against the mangled concrete type
		// it would resolve to, or against another instance of the same
		// base generic.
		switch a := arg.(type) {
		case GenericInstance:
			if p.Kind != a.Kind || p.Name != a.Name || len(p.Args) != len(a.Args) {
				return false
			}
			for i := range p.Args {
				if !Unify(p.Args[i], a.Args[i], bindings) {
					return false
				}
			}
			return true
		case Class:
			return p.Kind == GenericClass && unifyAgainstMangled(p, a.Name, bindings)
		case Enum:
			return p.Kind == GenericEnum && unifyAgainstMangled(p, a.Name, bindings)
		}
		return false
	default:
		return Equal(param, arg)
	}
}

// unifyAgainstMangled handles GenericInstance vs a mangled concrete name.
// All-concrete instance args must mangle to exactly the argument's name.
func unifyAgainstMangled(p GenericInstance, concreteName string, bindings map[string]Type) bool {
	if !IsMangledInstanceOf(concreteName, p.Name) {
		return false
	}
	sub := Substitute(p, bindings)
	if ContainsTypeParam(sub) {
		// Parameters remain unbound; a mangled name alone cannot bind
		// them: treat as inference failure.
		return false
	}
	switch s := sub.(type) {
	case Class:
		return s.Name == concreteName
	case Enum:
		return s.Name == concreteName
	}
	return false
}

// Substitute replaces bound type parameters in t. A GenericInstance whose
// arguments all become concrete collapses to the mangled Class/Enum.
func Substitute(t Type, bindings map[string]Type) Type {
	switch t := t.(type) {
	case TypeParam:
		if bound, ok := bindings[t.Name]; ok {
			return bound
		}
		return t
	case Array:
		return Array{Elem: Substitute(t.Elem, bindings)}
	case Map:
		return Map{Key: Substitute(t.Key, bindings), Value: Substitute(t.Value, bindings)}
	case Set:
		return Set{Elem: Substitute(t.Elem, bindings)}
	case Task:
		return Task{Elem: Substitute(t.Elem, bindings)}
	case Sender:
		return Sender{Elem: Substitute(t.Elem, bindings)}
	case Receiver:
		return Receiver{Elem: Substitute(t.Elem, bindings)}
	case Nullable:
		return Nullable{Inner: Substitute(t.Inner, bindings)}
	case Stream:
		return Stream{Elem: Substitute(t.Elem, bindings)}
	case Fn:
		params := make([]Type, len(t.Params))
		for i, p := range t.Params {
			params[i] = Substitute(p, bindings)
		}
		return Fn{Params: params, Return: Substitute(t.Return, bindings)}
	case GenericInstance:
		args := make([]Type, len(t.Args))
		concrete := true
		for i, a := range t.Args {
			args[i] = Substitute(a, bindings)
			if ContainsTypeParam(args[i]) {
				concrete = false
			}
		}
		if !concrete {
			return GenericInstance{Kind: t.Kind, Name: t.Name, Args: args}
		}
		mangled := MangleName(t.Name, args)
		if t.Kind == GenericEnum {
			return Enum{Name: mangled}
		}
		return Class{Name: mangled}
	}
	return t
}
