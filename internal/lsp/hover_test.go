package lsp

import (
	"strings"
	"testing"

	"github.com/plutolang/pluto/internal/source"
	"github.com/plutolang/pluto/internal/typecheck"
	"github.com/plutolang/pluto/internal/types"
)

func hoverFixture() (*typecheck.Env, *source.Map) {
	env := typecheck.NewEnv()
	env.Functions["add"] = typecheck.FuncSig{
		Params: []types.Type{types.Int{}, types.Int{}},
		Return: types.Int{},
	}
	env.Classes["Point"] = &typecheck.ClassInfo{
		Fields: []typecheck.FieldInfo{
			{Name: "x", Type: types.Int{}},
			{Name: "y", Type: types.Int{}},
		},
		Methods: []string{"get_x"},
	}
	env.Enums["Color"] = &typecheck.EnumInfo{
		Variants: []typecheck.VariantInfo{
			{Name: "Red"},
			{Name: "Custom", Fields: []typecheck.FieldInfo{{Name: "rgb", Type: types.Int{}}}},
		},
	}
	sm := source.NewMap()
	sm.AddFile("main.pluto", "fn use() { add(Point, Color) }")
	return env, sm
}

func TestHoverFunction(t *testing.T) {
	env, sm := hoverFixture()
	// Offset 12 is inside "add".
	got := Hover(env, sm, 0, 12)
	if !strings.Contains(got, "fn add(int, int) int") {
		t.Errorf("hover = %q", got)
	}
	if !strings.HasPrefix(got, "```pluto") {
		t.Errorf("hover should be a pluto code block, got %q", got)
	}
}

func TestHoverClass(t *testing.T) {
	env, sm := hoverFixture()
	got := Hover(env, sm, 0, 16) // inside "Point"
	for _, want := range []string{"class Point {", "x: int", "y: int"} {
		if !strings.Contains(got, want) {
			t.Errorf("hover missing %q:\n%s", want, got)
		}
	}
}

func TestHoverEnum(t *testing.T) {
	env, sm := hoverFixture()
	got := Hover(env, sm, 0, 23) // inside "Color"
	for _, want := range []string{"enum Color {", "Red", "Custom { rgb: int }"} {
		if !strings.Contains(got, want) {
			t.Errorf("hover missing %q:\n%s", want, got)
		}
	}
}

func TestHoverBuiltinError(t *testing.T) {
	env := typecheck.NewEnv()
	sm := source.NewMap()
	sm.AddFile("main.pluto", "raise TimeoutError { millis: 5 }")
	got := Hover(env, sm, 0, 7)
	for _, want := range []string{"error TimeoutError {", "millis: int"} {
		if !strings.Contains(got, want) {
			t.Errorf("hover missing %q:\n%s", want, got)
		}
	}
}

func TestHoverUnknownWord(t *testing.T) {
	env, sm := hoverFixture()
	if got := Hover(env, sm, 0, 3); got != "" { // "use" is not registered
		t.Errorf("expected empty hover, got %q", got)
	}
	if got := Hover(env, sm, 0, 9); got != "" { // "{" is not a word
		t.Errorf("expected empty hover on punctuation, got %q", got)
	}
}
