package cache

import (
	"crypto/sha256"

	"github.com/google/uuid"

	"github.com/plutolang/pluto/internal/ast"
	"github.com/plutolang/pluto/internal/source"
)

// ContentHash is a SHA-256 digest of a declaration's source byte range.
type ContentHash [32]byte

// DeclHashes splits a declaration's content into the API region (signature
// text, up to the body) and the impl region (the whole declaration). An API
// change invalidates callers; an impl change invalidates only the
// declaration itself.
type DeclHashes struct {
	APIHash  ContentHash `msgpack:"api_hash"`
	ImplHash ContentHash `msgpack:"impl_hash"`
}

func hashRange(sm *source.Map, sp source.Span) ContentHash {
	return sha256.Sum256([]byte(sm.Slice(sp)))
}

// hashDecl hashes a declaration: the API hash covers the span up to the
// body start (the signature), the impl hash the full span. Declarations
// without bodies hash identically for both.
func hashDecl(sm *source.Map, declSpan source.Span, body *ast.Block) DeclHashes {
	impl := hashRange(sm, declSpan)
	api := impl
	if body != nil && body.Sp.Start > declSpan.Start && body.Sp.Start <= declSpan.End {
		api = hashRange(sm, source.WithFile(declSpan.Start, body.Sp.Start, declSpan.FileID))
	}
	return DeclHashes{APIHash: api, ImplHash: impl}
}

// ComputeHashes computes content hashes for every declaration, keyed by the
// per-compilation uuid.
func ComputeHashes(program *ast.Program, sm *source.Map) map[uuid.UUID]DeclHashes {
	out := map[uuid.UUID]DeclHashes{}
	for _, f := range program.Functions {
		out[f.ID] = hashDecl(sm, f.Sp, f.Body)
	}
	for _, c := range program.Classes {
		out[c.ID] = hashDecl(sm, c.Sp, nil)
		for _, m := range c.Methods {
			out[m.ID] = hashDecl(sm, m.Sp, m.Body)
		}
	}
	for _, t := range program.Traits {
		out[t.ID] = hashDecl(sm, t.Sp, nil)
	}
	for _, e := range program.Enums {
		out[e.ID] = hashDecl(sm, e.Sp, nil)
	}
	for _, e := range program.Errors {
		out[e.ID] = hashDecl(sm, e.Sp, nil)
	}
	for _, e := range program.ExternFns {
		out[e.ID] = hashDecl(sm, e.Sp, nil)
	}
	if program.App != nil {
		out[program.App.ID] = hashDecl(sm, program.App.Sp, nil)
		for _, m := range program.App.Methods {
			out[m.ID] = hashDecl(sm, m.Sp, m.Body)
		}
	}
	for _, s := range program.Stages {
		out[s.ID] = hashDecl(sm, s.Sp, nil)
		for _, m := range s.Methods {
			out[m.ID] = hashDecl(sm, m.Sp, m.Body)
		}
	}
	return out
}
