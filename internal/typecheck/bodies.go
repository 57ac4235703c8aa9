package typecheck

import (
	"github.com/google/uuid"

	"github.com/plutolang/pluto/internal/ast"
	"github.com/plutolang/pluto/internal/diagnostics"
)

// CheckAllBodies type-checks every concrete function and method body plus
// contracts, class invariants, trait-method contracts, inherited default
// method bodies, and app/stage methods. Generic templates are skipped;
// monomorphization re-checks their concrete copies.
func CheckAllBodies(program *ast.Program, env *Env) *diagnostics.CompileError {
	for _, fn := range program.Functions {
		if fn.IsGeneric() {
			continue
		}
		if err := CheckFunction(fn, env, ""); err != nil {
			return err
		}
		if err := checkFunctionContracts(fn, env, ""); err != nil {
			return err
		}
	}

	for _, c := range program.Classes {
		if c.IsGeneric() {
			continue
		}
		for _, m := range c.Methods {
			if err := CheckFunction(m, env, c.Name.Value); err != nil {
				return err
			}
			if err := checkFunctionContracts(m, env, c.Name.Value); err != nil {
				return err
			}
		}
		if err := checkClassInvariants(c, env); err != nil {
			return err
		}
	}

	if err := checkTraitMethodContracts(program, env); err != nil {
		return err
	}

	// Inherited default bodies check once per inheriting class, with self
	// typed as that class.
	for _, c := range program.Classes {
		if c.IsGeneric() {
			continue
		}
		if err := checkInheritedDefaults(program, c, env); err != nil {
			return err
		}
	}

	if program.App != nil {
		for _, m := range program.App.Methods {
			if err := CheckFunction(m, env, program.App.Name.Value); err != nil {
				return err
			}
			if err := checkFunctionContracts(m, env, program.App.Name.Value); err != nil {
				return err
			}
		}
	}
	for _, s := range program.Stages {
		for _, m := range s.Methods {
			if err := CheckFunction(m, env, s.Name.Value); err != nil {
				return err
			}
			if err := checkFunctionContracts(m, env, s.Name.Value); err != nil {
				return err
			}
		}
	}
	return nil
}

func checkInheritedDefaults(program *ast.Program, c *ast.ClassDecl, env *Env) *diagnostics.CompileError {
	ownMethods := map[string]bool{}
	for _, m := range c.Methods {
		ownMethods[m.Name.Value] = true
	}
	for _, traitName := range c.ImplTraits {
		for _, t := range program.Traits {
			if t.Name.Value != traitName.Value {
				continue
			}
			for _, tm := range t.Methods {
				if tm.Body == nil || ownMethods[tm.Name.Value] {
					continue
				}
				tmp := &ast.Function{
					ID:         uuid.New(),
					Name:       tm.Name,
					Params:     tm.Params,
					ReturnType: tm.ReturnType,
					Contracts:  tm.Contracts,
					Body:       tm.Body,
					Sp:         tm.Body.Sp,
				}
				if err := CheckFunction(tmp, env, c.Name.Value); err != nil {
					return err
				}
			}
		}
	}
	return nil
}
