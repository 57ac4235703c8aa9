package typecheck

import (
	"strings"

	"github.com/plutolang/pluto/internal/ast"
	"github.com/plutolang/pluto/internal/diagnostics"
)

// TypeCheck runs the registration, resolution, validation, body-checking,
// mut-self, error-effect, and synchronization passes over one program,
// returning the populated environment and the collected warnings.
// Monomorphization, closure lifting, and the serializability check run
// separately because they rewrite the program.
func TypeCheck(program *ast.Program) (*Env, []diagnostics.Warning, *diagnostics.CompileError) {
	env := NewEnv()
	if err := CheckProgram(program, env); err != nil {
		return nil, nil, err
	}
	return env, GenerateWarnings(program, env), nil
}

// CheckProgram runs the pipeline against a caller-supplied environment.
func CheckProgram(program *ast.Program, env *Env) *diagnostics.CompileError {
	if err := CheckSignatures(program, env); err != nil {
		return err
	}
	if err := CheckAllBodies(program, env); err != nil {
		return err
	}
	if err := EnforceMutSelf(program, env); err != nil {
		return err
	}

	// Extern functions whose foreign side returns Result raise RustError;
	// seeding them before inference lets the effect propagate to callers.
	for _, fnName := range program.FallibleExternFns {
		set := env.FnErrors[fnName]
		if set == nil {
			set = map[string]bool{}
			env.FnErrors[fnName] = set
		}
		set["RustError"] = true
	}
	InferErrorSets(program, env)
	if err := EnforceErrorHandling(program, env); err != nil {
		return err
	}
	InferSynchronization(program, env)
	return nil
}

// CheckSignatures runs the signature-level passes: two-phase registration,
// DI-graph validation, and trait conformance. Body checking is separate so
// incremental builds can re-check only affected bodies.
func CheckSignatures(program *ast.Program, env *Env) *diagnostics.CompileError {
	// Phase 0: names only.
	if err := registerTraitNames(program, env); err != nil {
		return err
	}
	if err := registerEnumNames(program, env); err != nil {
		return err
	}
	if err := registerAppPlaceholder(program, env); err != nil {
		return err
	}
	if err := registerStagePlaceholders(program, env); err != nil {
		return err
	}
	if err := registerErrorNames(program, env); err != nil {
		return err
	}
	if err := registerClassNames(program, env); err != nil {
		return err
	}

	// Phase 1: signatures, now that every name exists.
	if err := resolveErrorFields(program, env); err != nil {
		return err
	}
	if err := resolveTraitSignatures(program, env); err != nil {
		return err
	}
	if err := resolveEnumFields(program, env); err != nil {
		return err
	}
	if err := resolveClassFields(program, env); err != nil {
		return err
	}
	if err := registerExternFns(program, env); err != nil {
		return err
	}
	if err := registerFunctions(program, env); err != nil {
		return err
	}
	if err := registerMethodSigs(program, env); err != nil {
		return err
	}
	if err := registerAppFieldsAndMethods(program, env); err != nil {
		return err
	}
	if err := registerStageFieldsAndMethods(program, env); err != nil {
		return err
	}

	if err := ValidateDIGraph(program, env); err != nil {
		return err
	}
	return CheckTraitConformance(program, env)
}

// GenerateWarnings produces the warning list: currently unused-variable
// warnings, skipping _-prefixed names and function parameters, sorted by
// span for deterministic output.
func GenerateWarnings(program *ast.Program, env *Env) []diagnostics.Warning {
	paramNames := map[string]bool{}
	collectParams := func(methods []*ast.Function) {
		for _, m := range methods {
			for _, p := range m.Params {
				paramNames[p.Name.Value] = true
			}
		}
	}
	collectParams(program.Functions)
	for _, c := range program.Classes {
		collectParams(c.Methods)
	}
	if program.App != nil {
		collectParams(program.App.Methods)
	}
	for _, s := range program.Stages {
		collectParams(s.Methods)
	}

	var warnings []diagnostics.Warning
	for key, declSpan := range env.VariableDecls {
		if strings.HasPrefix(key.Name, "_") {
			continue
		}
		if paramNames[key.Name] {
			continue
		}
		if env.VariableReads[key] {
			continue
		}
		warnings = append(warnings, diagnostics.Warning{
			Kind: diagnostics.WarnUnusedVariable,
			Msg:  "unused variable '" + key.Name + "'",
			Span: declSpan,
		})
	}
	diagnostics.SortWarnings(warnings)
	return warnings
}
