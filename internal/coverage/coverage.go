// Package coverage builds the coverage map consumed by instrumentation and
// reads/writes the runtime counter data file. Only the map scan lives in
// the compiler core; HTML and LCOV rendering happen downstream.
package coverage

import (
	"github.com/plutolang/pluto/internal/ast"
	"github.com/plutolang/pluto/internal/source"
)

// Kind classifies one coverage point.
type Kind int

const (
	FunctionEntry Kind = iota
	Statement
	BranchThen
	BranchElse
	LoopEntry
	MatchArm
)

func (k Kind) String() string {
	switch k {
	case FunctionEntry:
		return "function-entry"
	case Statement:
		return "statement"
	case BranchThen:
		return "branch-then"
	case BranchElse:
		return "branch-else"
	case LoopEntry:
		return "loop-entry"
	case MatchArm:
		return "match-arm"
	}
	return "unknown"
}

// Point is one instrumentation site. IDs are dense and index the counter
// array in the data file.
type Point struct {
	ID           int    `json:"id"`
	Kind         Kind   `json:"kind"`
	FunctionName string `json:"function"`
	Line         int    `json:"line"`
	// BranchID groups the then/else (or arm) points of one branching
	// construct; unique within the file.
	BranchID int `json:"branch_id,omitempty"`
}

// FileInfo names one covered file.
type FileInfo struct {
	Path string `json:"path"`
}

// Map is the complete coverage map of a build.
type Map struct {
	Files  []FileInfo `json:"files"`
	Points []Point    `json:"points"`
}

// NumPoints returns the number of instrumentation sites.
func (m *Map) NumPoints() int {
	return len(m.Points)
}

type scanner struct {
	m        *Map
	index    *source.LineIndex
	srcLen   int
	fileID   int
	branchID int
	fn       string
}

// BuildMap scans every function and method that originates in the entry
// source file and emits a numbered list of coverage points. Monomorphized
// copies and synthesized declarations are excluded by requiring the decl's
// file id to be the entry file and its span to fall within the source text.
func BuildMap(program *ast.Program, sm *source.Map) *Map {
	m := &Map{}
	entry := sm.Get(0)
	if entry == nil {
		return m
	}
	m.Files = []FileInfo{{Path: entry.Path}}
	s := &scanner{
		m:      m,
		index:  source.NewLineIndex(entry.Text),
		srcLen: len(entry.Text),
	}

	scanFn := func(name string, fn *ast.Function) {
		if !s.originatesInEntry(fn.Sp) {
			return
		}
		s.fn = name
		s.emit(FunctionEntry, fn.Sp, 0)
		s.scanBlock(fn.Body)
	}

	for _, fn := range program.Functions {
		scanFn(fn.Name.Value, fn)
	}
	for _, c := range program.Classes {
		for _, method := range c.Methods {
			scanFn(c.Name.Value+"."+method.Name.Value, method)
		}
	}
	if program.App != nil {
		for _, method := range program.App.Methods {
			scanFn(program.App.Name.Value+"."+method.Name.Value, method)
		}
	}
	for _, st := range program.Stages {
		for _, method := range st.Methods {
			scanFn(st.Name.Value+"."+method.Name.Value, method)
		}
	}
	return m
}

func (s *scanner) originatesInEntry(sp source.Span) bool {
	return sp.FileID == s.fileID && sp.Start >= 0 && sp.End <= s.srcLen
}

func (s *scanner) emit(kind Kind, sp source.Span, branchID int) {
	s.m.Points = append(s.m.Points, Point{
		ID:           len(s.m.Points),
		Kind:         kind,
		FunctionName: s.fn,
		Line:         s.index.Line(sp.Start),
		BranchID:     branchID,
	})
}

func (s *scanner) nextBranchID() int {
	s.branchID++
	return s.branchID
}

func (s *scanner) scanBlock(b *ast.Block) {
	if b == nil {
		return
	}
	for _, stmt := range b.Stmts {
		s.scanStmt(stmt)
	}
}

func (s *scanner) scanStmt(stmt ast.Stmt) {
	s.emit(Statement, stmt.Span(), 0)
	switch st := stmt.(type) {
	case *ast.If:
		id := s.nextBranchID()
		s.emit(BranchThen, st.Then.Sp, id)
		if st.Else != nil {
			s.emit(BranchElse, st.Else.Sp, id)
			s.scanBlock(st.Then)
			s.scanBlock(st.Else)
		} else {
			// The implicit else arm still gets a point so branch
			// coverage can report the untaken side.
			s.emit(BranchElse, st.Sp, id)
			s.scanBlock(st.Then)
		}
	case *ast.While:
		s.emit(LoopEntry, st.Body.Sp, s.nextBranchID())
		s.scanBlock(st.Body)
	case *ast.For:
		s.emit(LoopEntry, st.Body.Sp, s.nextBranchID())
		s.scanBlock(st.Body)
	case *ast.Match:
		id := s.nextBranchID()
		for _, arm := range st.Arms {
			s.emit(MatchArm, arm.Body.Sp, id)
			s.scanBlock(arm.Body)
		}
	case *ast.Select:
		for _, arm := range st.Arms {
			s.scanBlock(arm.Body)
		}
		if st.Default != nil {
			s.scanBlock(st.Default)
		}
	case *ast.Scope:
		s.scanBlock(st.Body)
	}
}
