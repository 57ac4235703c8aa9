package coverage

import (
	"bytes"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plutolang/pluto/internal/ast"
	"github.com/plutolang/pluto/internal/source"
)

// Coverage scans care about decl spans and file ids, not types, so the
// fixtures are assembled directly against a fake source text.

const sampleSource = `fn main() {
    let x = 42
    if x > 10 {
        print(x)
    } else {
        print(0)
    }
    while x > 0 {
        print(x)
    }
}
`

func spanIn(start, end int) source.Span { return source.NewSpan(start, end) }

func sampleProgram() *ast.Program {
	body := &ast.Block{
		Stmts: []ast.Stmt{
			&ast.Let{Name: ast.Name{Value: "x", Sp: spanIn(20, 21)}, Value: &ast.IntLit{Value: 42, Sp: spanIn(24, 26)}, Sp: spanIn(16, 26)},
			&ast.If{
				Cond: &ast.BoolLit{Value: true, Sp: spanIn(34, 40)},
				Then: &ast.Block{
					Stmts: []ast.Stmt{&ast.ExprStmt{Value: &ast.IntLit{Value: 1, Sp: spanIn(51, 59)}, Sp: spanIn(51, 59)}},
					Sp:    spanIn(41, 65),
				},
				Else: &ast.Block{
					Stmts: []ast.Stmt{&ast.ExprStmt{Value: &ast.IntLit{Value: 0, Sp: spanIn(80, 88)}, Sp: spanIn(80, 88)}},
					Sp:    spanIn(71, 94),
				},
				Sp: spanIn(31, 94),
			},
			&ast.While{
				Cond: &ast.BoolLit{Value: true, Sp: spanIn(105, 110)},
				Body: &ast.Block{
					Stmts: []ast.Stmt{&ast.ExprStmt{Value: &ast.IntLit{Value: 2, Sp: spanIn(121, 129)}, Sp: spanIn(121, 129)}},
					Sp:    spanIn(111, 135),
				},
				Sp: spanIn(99, 135),
			},
		},
		Sp: spanIn(10, 137),
	}
	return &ast.Program{Functions: []*ast.Function{{
		ID:   uuid.New(),
		Name: ast.Name{Value: "main", Sp: spanIn(3, 7)},
		Body: body,
		Sp:   spanIn(0, 137),
	}}}
}

func TestBuildMapSimpleFunction(t *testing.T) {
	sm := source.NewMap()
	sm.AddFile("test.pluto", sampleSource)
	m := BuildMap(sampleProgram(), sm)

	require.Len(t, m.Files, 1)
	assert.Equal(t, "test.pluto", m.Files[0].Path)

	var entries, stmts, thens, elses, loops []Point
	for _, p := range m.Points {
		switch p.Kind {
		case FunctionEntry:
			entries = append(entries, p)
		case Statement:
			stmts = append(stmts, p)
		case BranchThen:
			thens = append(thens, p)
		case BranchElse:
			elses = append(elses, p)
		case LoopEntry:
			loops = append(loops, p)
		}
	}
	require.Len(t, entries, 1)
	assert.Equal(t, "main", entries[0].FunctionName)
	// let, if, two branch-body statements, while, loop-body statement.
	assert.GreaterOrEqual(t, len(stmts), 5)
	require.Len(t, thens, 1)
	require.Len(t, elses, 1)
	assert.Equal(t, thens[0].BranchID, elses[0].BranchID, "then/else share a branch id")
	require.Len(t, loops, 1)
	assert.NotEqual(t, thens[0].BranchID, loops[0].BranchID, "branch ids are unique per construct")
}

func TestBuildMapImplicitElse(t *testing.T) {
	sm := source.NewMap()
	sm.AddFile("test.pluto", sampleSource)
	program := &ast.Program{Functions: []*ast.Function{{
		ID:   uuid.New(),
		Name: ast.Name{Value: "f", Sp: spanIn(0, 4)},
		Body: &ast.Block{
			Stmts: []ast.Stmt{&ast.If{
				Cond: &ast.BoolLit{Value: true, Sp: spanIn(10, 14)},
				Then: &ast.Block{Sp: spanIn(15, 20)},
				Sp:   spanIn(8, 20),
			}},
			Sp: spanIn(5, 22),
		},
		Sp: spanIn(0, 22),
	}}}
	m := BuildMap(program, sm)
	var elses int
	for _, p := range m.Points {
		if p.Kind == BranchElse {
			elses++
		}
	}
	assert.Equal(t, 1, elses, "implicit else still gets a point")
}

// Point ids index the counter array densely.
func TestPointIDsDense(t *testing.T) {
	sm := source.NewMap()
	sm.AddFile("test.pluto", sampleSource)
	m := BuildMap(sampleProgram(), sm)
	for i, p := range m.Points {
		assert.Equal(t, i, p.ID)
	}
}

// Monomorphized copies live at offset spans beyond the source length and
// must be excluded from the map.
func TestBuildMapExcludesOffsetClones(t *testing.T) {
	sm := source.NewMap()
	sm.AddFile("test.pluto", sampleSource)
	program := sampleProgram()
	clone := &ast.Function{
		ID:   uuid.New(),
		Name: ast.Name{Value: "main$$int", Sp: spanIn(10000003, 10000007)},
		Body: &ast.Block{Sp: spanIn(10000010, 10000137)},
		Sp:   spanIn(10000000, 10000137),
	}
	program.Functions = append(program.Functions, clone)
	m := BuildMap(program, sm)
	for _, p := range m.Points {
		assert.NotEqual(t, "main$$int", p.FunctionName, "clone leaked into coverage map")
	}
}

func TestDataFileRoundTrip(t *testing.T) {
	counters := []int64{3, 0, 7, 1, 0, 42}
	var buf bytes.Buffer
	require.NoError(t, WriteData(&buf, counters))

	// Header is a little-endian signed count.
	raw := buf.Bytes()
	require.Len(t, raw, 8+8*len(counters))
	assert.Equal(t, byte(len(counters)), raw[0])

	got, err := ReadData(bytes.NewReader(raw))
	require.NoError(t, err)
	assert.Equal(t, counters, got)
}

func TestDataFileTruncatedRejected(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteData(&buf, []int64{1, 2, 3}))
	raw := buf.Bytes()[:12] // cut mid-counter
	_, err := ReadData(bytes.NewReader(raw))
	assert.Error(t, err)
}
