// Package ffi scans Rust source files for functions exposable to Pluto as
// extern fns. The binding surface is deliberately small: public free
// functions over i64, f64, and bool. A Result return marks the function
// fallible: calls to it raise RustError and must be handled. Other public
// functions (&str, String, Vec<...>, generics) are skipped with a warning so
// users see why a binding is missing; methods inside impl blocks are skipped
// without one.
package ffi

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/google/uuid"

	"github.com/plutolang/pluto/internal/ast"
	"github.com/plutolang/pluto/internal/source"
)

// RustType is a Pluto-visible Rust parameter or return type.
type RustType int

const (
	RustI64 RustType = iota
	RustF64
	RustBool
	RustUnit
)

func (t RustType) String() string {
	switch t {
	case RustI64:
		return "i64"
	case RustF64:
		return "f64"
	case RustBool:
		return "bool"
	case RustUnit:
		return "()"
	}
	return "?"
}

// typeExpr lowers the Rust type to the Pluto annotation it binds as.
func (t RustType) typeExpr() ast.TypeExpr {
	named := func(n string) ast.TypeExpr { return &ast.NamedType{Name: n, Sp: source.Dummy()} }
	switch t {
	case RustI64:
		return named("int")
	case RustF64:
		return named("float")
	case RustBool:
		return named("bool")
	}
	return nil
}

// FnSig is one scanned binding.
type FnSig struct {
	Name     string
	Params   []RustType
	Return   RustType
	Fallible bool
}

// ScanResult is everything extracted from one Rust source file.
type ScanResult struct {
	Fns []FnSig
	// Skipped records public functions the scanner could not bind, with
	// the reason, so users see why a binding is missing.
	Skipped []string
}

// parseRustType recognizes the bindable subset: i64, f64, bool, and the
// unit type.
func parseRustType(s string) (RustType, bool) {
	switch strings.TrimSpace(s) {
	case "i64":
		return RustI64, true
	case "f64":
		return RustF64, true
	case "bool":
		return RustBool, true
	case "", "()":
		return RustUnit, true
	}
	return RustUnit, false
}

// parseReturnType handles plain types and Result<T, E>; the latter marks
// the function fallible with T as the Pluto-visible return. The E type is
// ignored entirely.
func parseReturnType(s string) (RustType, bool, bool) {
	s = strings.TrimSpace(s)
	if inner, ok := strings.CutPrefix(s, "Result<"); ok {
		inner = strings.TrimSuffix(inner, ">")
		// Split off the error type at the top-level comma.
		depth := 0
		okType := inner
		for i, r := range inner {
			switch r {
			case '<':
				depth++
			case '>':
				depth--
			case ',':
				if depth == 0 {
					okType = inner[:i]
				}
			}
		}
		t, valid := parseRustType(okType)
		return t, true, valid
	}
	t, valid := parseRustType(s)
	return t, false, valid
}

// ScanSource extracts bindable `pub fn` declarations from Rust source text.
// Methods (inside impl blocks), cfg-gated items, and doc(hidden) items are
// skipped; unbindable public functions are recorded with a reason.
func ScanSource(src string) ScanResult {
	var result ScanResult
	lines := strings.Split(src, "\n")
	implDepth := 0
	braceDepth := 0
	skipNext := false

	for _, line := range lines {
		trimmed := strings.TrimSpace(line)

		if strings.HasPrefix(trimmed, "#[cfg(") || strings.Contains(trimmed, "doc(hidden)") {
			skipNext = true
			continue
		}
		if strings.HasPrefix(trimmed, "impl ") || trimmed == "impl" {
			implDepth = braceDepth + 1
		}
		braceDepth += strings.Count(trimmed, "{") - strings.Count(trimmed, "}")
		if implDepth > 0 && braceDepth < implDepth {
			implDepth = 0
		}

		if !strings.HasPrefix(trimmed, "pub fn ") {
			if strings.HasPrefix(trimmed, "fn ") {
				skipNext = false
			}
			continue
		}
		if skipNext {
			skipNext = false
			continue
		}
		if implDepth > 0 {
			// Methods need a receiver story; only free functions bind.
			continue
		}

		sig, reason := parseFnLine(trimmed)
		if reason != "" {
			result.Skipped = append(result.Skipped, reason)
			continue
		}
		result.Fns = append(result.Fns, sig)
	}
	return result
}

func parseFnLine(line string) (FnSig, string) {
	rest := strings.TrimPrefix(line, "pub fn ")
	open := strings.IndexByte(rest, '(')
	if open < 0 {
		return FnSig{}, fmt.Sprintf("malformed fn declaration: %s", line)
	}
	name := strings.TrimSpace(rest[:open])
	if strings.ContainsAny(name, "<") {
		return FnSig{}, fmt.Sprintf("fn '%s' skipped: generic functions cannot bind", strings.Split(name, "<")[0])
	}
	closeIdx := matchingParen(rest, open)
	if closeIdx < 0 {
		return FnSig{}, fmt.Sprintf("fn '%s' skipped: unterminated parameter list", name)
	}
	paramList := rest[open+1 : closeIdx]

	var params []RustType
	for _, p := range splitTopLevel(paramList, ',') {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		colon := strings.IndexByte(p, ':')
		if colon < 0 {
			return FnSig{}, fmt.Sprintf("fn '%s' skipped: untyped parameter '%s'", name, p)
		}
		ty, ok := parseRustType(p[colon+1:])
		if !ok || ty == RustUnit {
			return FnSig{}, fmt.Sprintf("fn '%s' skipped: unsupported parameter type '%s'", name, strings.TrimSpace(p[colon+1:]))
		}
		params = append(params, ty)
	}

	retPart := strings.TrimSpace(rest[closeIdx+1:])
	// Single-line bodies trail the signature; the return type never
	// contains a brace.
	if idx := strings.IndexByte(retPart, '{'); idx >= 0 {
		retPart = retPart[:idx]
	}
	retPart = strings.TrimSpace(retPart)
	ret := RustUnit
	fallible := false
	if after, ok := strings.CutPrefix(retPart, "->"); ok {
		var valid bool
		ret, fallible, valid = parseReturnType(after)
		if !valid {
			if fallible {
				return FnSig{}, fmt.Sprintf("fn '%s' skipped: unsupported Ok type in '%s'", name, strings.TrimSpace(after))
			}
			return FnSig{}, fmt.Sprintf("fn '%s' skipped: unsupported return type '%s'", name, strings.TrimSpace(after))
		}
	}
	return FnSig{Name: name, Params: params, Return: ret, Fallible: fallible}, ""
}

func matchingParen(s string, open int) int {
	depth := 0
	for i := open; i < len(s); i++ {
		switch s[i] {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

func splitTopLevel(s string, sep byte) []string {
	var parts []string
	depth := 0
	last := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '<', '(', '[':
			depth++
		case '>', ')', ']':
			depth--
		case sep:
			if depth == 0 {
				parts = append(parts, s[last:i])
				last = i + 1
			}
		}
	}
	parts = append(parts, s[last:])
	return parts
}

// ScanFiles scans multiple Rust binding files concurrently and merges the
// results in name order, so the output is deterministic regardless of
// scheduling.
func ScanFiles(paths []string) (ScanResult, error) {
	results := make([]ScanResult, len(paths))
	var g errgroup.Group
	for i, path := range paths {
		g.Go(func() error {
			data, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("read binding file %s: %w", path, err)
			}
			results[i] = ScanSource(string(data))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return ScanResult{}, err
	}
	var merged ScanResult
	for _, r := range results {
		merged.Fns = append(merged.Fns, r.Fns...)
		merged.Skipped = append(merged.Skipped, r.Skipped...)
	}
	sort.Slice(merged.Fns, func(i, j int) bool { return merged.Fns[i].Name < merged.Fns[j].Name })
	return merged, nil
}

// ToExternDecls converts scanned signatures to extern declarations plus the
// fallible-function name list the effect pass seeds with RustError.
func ToExternDecls(result ScanResult) ([]*ast.ExternFn, []string) {
	var decls []*ast.ExternFn
	var fallible []string
	for _, sig := range result.Fns {
		decl := &ast.ExternFn{
			ID:   uuid.New(),
			Name: ast.Name{Value: sig.Name, Sp: source.Dummy()},
		}
		for i, p := range sig.Params {
			decl.Params = append(decl.Params, ast.Param{
				ID:   uuid.New(),
				Name: ast.Name{Value: fmt.Sprintf("a%d", i), Sp: source.Dummy()},
				Type: p.typeExpr(),
			})
		}
		if sig.Return != RustUnit {
			decl.ReturnType = sig.Return.typeExpr()
		}
		decls = append(decls, decl)
		if sig.Fallible {
			fallible = append(fallible, sig.Name)
		}
	}
	return decls, fallible
}
