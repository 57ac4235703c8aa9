// Package source carries source positions and file contents through the
// compiler. Spans are byte-offset ranges into a single file; every AST node
// and diagnostic carries one. Side tables all over the type checker are keyed
// by span coordinates, so spans must survive AST rewrites unchanged (or, for
// monomorphized clones, be offset into a disjoint virtual range).
package source

import "fmt"

// Span is a half-open byte range [Start, End) in the file identified by FileID.
type Span struct {
	Start  int
	End    int
	FileID int
}

// NewSpan returns a span in file 0.
func NewSpan(start, end int) Span {
	return Span{Start: start, End: end}
}

// WithFile returns a span with an explicit file id.
func WithFile(start, end, fileID int) Span {
	return Span{Start: start, End: end, FileID: fileID}
}

// Dummy is the zero span, used for synthesized nodes that have no source
// location (lifted closures, substituted type annotations).
func Dummy() Span {
	return Span{}
}

// Offset returns the span shifted by delta. Monomorphization uses this to move
// every span of a clone into its own virtual range.
func (s Span) Offset(delta int) Span {
	return Span{Start: s.Start + delta, End: s.End + delta, FileID: s.FileID}
}

// Key returns the (start, end) pair used as a side-table key.
func (s Span) Key() [2]int {
	return [2]int{s.Start, s.End}
}

func (s Span) String() string {
	return fmt.Sprintf("%d..%d", s.Start, s.End)
}
