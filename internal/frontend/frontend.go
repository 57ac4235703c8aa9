// Package frontend is the seam between the compiler core and the lexer/
// parser, which live in a separate component. The driver registers a parse
// function at init; builds without a frontend still link and report a
// clear error instead of panicking.
package frontend

import (
	"errors"

	"github.com/plutolang/pluto/internal/ast"
	"github.com/plutolang/pluto/internal/source"
)

// ParseFunc turns the files of a source map into a parsed program with
// imports flattened.
type ParseFunc func(sm *source.Map) (*ast.Program, error)

var parse ParseFunc

// Register installs the frontend. The parser component calls this from an
// init function when linked into the binary.
func Register(f ParseFunc) {
	parse = f
}

// Parse runs the registered frontend.
func Parse(sm *source.Map) (*ast.Program, error) {
	if parse == nil {
		return nil, errors.New("no parser frontend linked into this build")
	}
	return parse(sm)
}
