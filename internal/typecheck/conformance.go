package typecheck

import (
	"sort"
	"strings"

	"github.com/plutolang/pluto/internal/ast"
	"github.com/plutolang/pluto/internal/diagnostics"
	"github.com/plutolang/pluto/internal/types"
)

// CheckTraitConformance verifies every class against its implemented
// traits: required methods present (or inherited as defaults), matching
// parameter/return types, matching `mut self`, no Liskov-violating added
// preconditions, and no contract-carrying method collisions across traits.
func CheckTraitConformance(program *ast.Program, env *Env) *diagnostics.CompileError {
	for _, c := range program.Classes {
		if c.IsGeneric() {
			continue
		}
		if err := checkClassConformance(c, env); err != nil {
			return err
		}
	}
	return nil
}

func checkClassConformance(c *ast.ClassDecl, env *Env) *diagnostics.CompileError {
	className := c.Name.Value
	info := env.Classes[className]
	if info == nil {
		return diagnostics.TypeErrf(c.Sp, "unknown class '%s'", className)
	}

	// Two implemented traits declaring the same method with contracts is
	// ambiguous: which contract binds the impl?
	contractTraits := map[string][]string{}
	for _, traitName := range c.ImplTraits {
		traitInfo, ok := env.Traits[traitName.Value]
		if !ok {
			continue
		}
		for _, m := range traitInfo.Methods {
			if _, hasContracts := traitInfo.MethodContracts[m.Name]; hasContracts {
				contractTraits[m.Name] = append(contractTraits[m.Name], traitName.Value)
			}
		}
	}
	for _, methodName := range sortedKeys(contractTraits) {
		traitNames := contractTraits[methodName]
		if len(traitNames) > 1 {
			sort.Strings(traitNames)
			return diagnostics.TypeErrf(c.Sp,
				"class '%s' implements traits %s which both define method '%s' with contracts; this is not supported",
				className, strings.Join(traitNames, " and "), methodName)
		}
	}

	for _, traitNameRef := range c.ImplTraits {
		traitName := traitNameRef.Value
		traitInfo, ok := env.Traits[traitName]
		if !ok {
			return diagnostics.TypeErrf(traitNameRef.Sp, "unknown trait '%s'", traitName)
		}
		for _, traitMethod := range traitInfo.Methods {
			methodName := traitMethod.Name
			mangled := types.MangleMethod(className, methodName)

			if info.HasMethod(methodName) {
				classSig, ok := env.Functions[mangled]
				if !ok {
					return diagnostics.TypeErrf(traitNameRef.Sp, "missing method signature for '%s.%s'", className, methodName)
				}
				traitNonSelf := traitMethod.Sig.Params[1:]
				classNonSelf := classSig.Params[1:]
				if len(traitNonSelf) != len(classNonSelf) {
					return diagnostics.TypeErrf(traitNameRef.Sp,
						"method '%s' of class '%s' has wrong number of parameters for trait '%s'",
						methodName, className, traitName)
				}
				for i := range traitNonSelf {
					if !types.Equal(traitNonSelf[i], classNonSelf[i]) {
						return diagnostics.TypeErrf(traitNameRef.Sp,
							"method '%s' parameter %d type mismatch: trait '%s' expects %s, class '%s' has %s",
							methodName, i+1, traitName, traitNonSelf[i], className, classNonSelf[i])
					}
				}
				if !types.Equal(traitMethod.Sig.Return, classSig.Return) {
					return diagnostics.TypeErrf(traitNameRef.Sp,
						"method '%s' return type mismatch: trait '%s' expects %s, class '%s' returns %s",
						methodName, traitName, traitMethod.Sig.Return, className, classSig.Return)
				}
				traitMut := traitInfo.MutSelfMethods[methodName]
				classMut := env.MutSelfMethods[mangled]
				if traitMut && !classMut {
					return diagnostics.TypeErrf(traitNameRef.Sp,
						"method '%s' in trait '%s' declares 'mut self', but class '%s' does not",
						methodName, traitName, className)
				}
				if !traitMut && classMut {
					return diagnostics.TypeErrf(traitNameRef.Sp,
						"method '%s' in trait '%s' declares 'self', but class '%s' declares 'mut self'",
						methodName, traitName, className)
				}
				// Liskov: a trait method with no requires effectively has
				// "requires true"; an impl adding requires strengthens the
				// precondition and breaks substitutability.
				for _, m := range c.Methods {
					if m.Name.Value != methodName {
						continue
					}
					for _, contract := range m.Contracts {
						if contract.Kind == ast.Requires {
							return diagnostics.TypeErrf(m.Name.Sp,
								"method '%s' on class '%s' cannot add 'requires' clauses: it implements trait '%s' and adding preconditions would violate the Liskov Substitution Principle",
								methodName, className, traitName)
						}
					}
				}
			} else if traitInfo.DefaultMethods[methodName] {
				// Inherit the default: register it under the class-mangled
				// name with self rebound to the concrete class.
				params := append([]types.Type(nil), traitMethod.Sig.Params...)
				if len(params) > 0 {
					params[0] = types.Class{Name: className}
				}
				env.Functions[mangled] = FuncSig{Params: params, Return: traitMethod.Sig.Return}
				if traitInfo.MutSelfMethods[methodName] {
					env.MutSelfMethods[mangled] = true
				}
				info.Methods = append(info.Methods, methodName)
			} else {
				return diagnostics.TypeErrf(traitNameRef.Sp,
					"class '%s' does not implement required method '%s' from trait '%s'",
					className, methodName, traitName)
			}
		}
	}
	return nil
}
