// Package diagnostics defines the structured error and warning records
// produced by every compiler pass. The core never formats diagnostics for
// display; it hands these records to whatever front end asked for the
// compilation (CLI printer, LSP, test harness).
package diagnostics

import (
	"fmt"
	"sort"

	"github.com/plutolang/pluto/internal/source"
)

// Kind classifies a compile error. Passes pick the kind that matches the
// rule they enforce; front ends may use it for grouping or severity styling.
type Kind int

const (
	// KindType covers name resolution and type checking failures.
	KindType Kind = iota
	// KindEffect covers error-effect violations (unhandled fallible call,
	// ! on an infallible call, ! inside spawn arguments).
	KindEffect
	// KindScope covers scope-block wiring and escape failures.
	KindScope
	// KindIncremental covers recoverable cache problems (corrupt or
	// truncated cache); callers fall back to a full build.
	KindIncremental
	// KindInternal marks compiler bugs: unresolved method resolutions at
	// enforcement time, missing monomorphized instances.
	KindInternal
)

func (k Kind) String() string {
	switch k {
	case KindType:
		return "type error"
	case KindEffect:
		return "effect error"
	case KindScope:
		return "scope error"
	case KindIncremental:
		return "incremental error"
	case KindInternal:
		return "internal error"
	}
	return "error"
}

// CompileError is one diagnostic with a primary span. Passes stop at the
// first error per function or method scope, so a compilation surfaces the
// first real problem in each body rather than a cascade.
type CompileError struct {
	Kind    Kind
	Msg     string
	Span    source.Span
	Related []source.Span
	Help    string
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

// TypeErr builds a KindType error at span.
func TypeErr(msg string, span source.Span) *CompileError {
	return &CompileError{Kind: KindType, Msg: msg, Span: span}
}

// TypeErrf builds a KindType error with a formatted message.
func TypeErrf(span source.Span, format string, args ...any) *CompileError {
	return &CompileError{Kind: KindType, Msg: fmt.Sprintf(format, args...), Span: span}
}

// EffectErrf builds a KindEffect error with a formatted message.
func EffectErrf(span source.Span, format string, args ...any) *CompileError {
	return &CompileError{Kind: KindEffect, Msg: fmt.Sprintf(format, args...), Span: span}
}

// ScopeErrf builds a KindScope error with a formatted message.
func ScopeErrf(span source.Span, format string, args ...any) *CompileError {
	return &CompileError{Kind: KindScope, Msg: fmt.Sprintf(format, args...), Span: span}
}

// IncrementalErrf builds a KindIncremental error.
func IncrementalErrf(format string, args ...any) *CompileError {
	return &CompileError{Kind: KindIncremental, Msg: fmt.Sprintf(format, args...)}
}

// Internalf builds a KindInternal error. These indicate compiler bugs and are
// not user-recoverable.
func Internalf(span source.Span, format string, args ...any) *CompileError {
	return &CompileError{Kind: KindInternal, Msg: fmt.Sprintf(format, args...), Span: span}
}

// WarningKind tags a warning so front ends can filter.
type WarningKind int

const (
	WarnUnusedVariable WarningKind = iota
)

func (k WarningKind) String() string {
	switch k {
	case WarnUnusedVariable:
		return "unused-variable"
	}
	return "warning"
}

// Warning is a non-fatal diagnostic. Warnings are always collected and
// returned alongside a successful environment.
type Warning struct {
	Kind WarningKind
	Msg  string
	Span source.Span
}

// SortWarnings orders warnings by span start for deterministic output.
func SortWarnings(ws []Warning) {
	sort.Slice(ws, func(i, j int) bool {
		if ws[i].Span.FileID != ws[j].Span.FileID {
			return ws[i].Span.FileID < ws[j].Span.FileID
		}
		return ws[i].Span.Start < ws[j].Span.Start
	})
}
