package types

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestMangleNameDeterministic(t *testing.T) {
	a := MangleName("identity", []Type{Int{}})
	b := MangleName("identity", []Type{Int{}})
	if a != b {
		t.Fatalf("mangling not deterministic: %q vs %q", a, b)
	}
	if a != "identity$$int" {
		t.Errorf("MangleName = %q, want identity$$int", a)
	}
}

func TestMangleCompoundTypes(t *testing.T) {
	cases := []struct {
		ty   Type
		want string
	}{
		{Array{Elem: Int{}}, "box$$arr$int"},
		{Map{Key: String{}, Value: Int{}}, "box$$map$string$int"},
		{Set{Elem: Byte{}}, "box$$set$byte"},
		{Task{Elem: Float{}}, "box$$task$float"},
		{Sender{Elem: Bool{}}, "box$$sender$bool"},
		{Receiver{Elem: Bool{}}, "box$$receiver$bool"},
		{Nullable{Inner: Int{}}, "box$$nullable$int"},
		{Fn{Params: []Type{Int{}, String{}}, Return: Bool{}}, "box$$fn$int$string$ret$bool"},
		{Class{Name: "Point"}, "box$$Point"},
		{GenericInstance{Kind: GenericClass, Name: "Pair", Args: []Type{Int{}, String{}}}, "box$$Pair$$int$string"},
	}
	for _, c := range cases {
		if got := MangleName("box", []Type{c.ty}); got != c.want {
			t.Errorf("MangleName(box, %s) = %q, want %q", c.ty, got, c.want)
		}
	}
}

// Distinct base/arg pairs must never collide.
func TestMangleInjective(t *testing.T) {
	seen := map[string]string{}
	inputs := []struct {
		base string
		args []Type
	}{
		{"f", []Type{Int{}}},
		{"f", []Type{Float{}}},
		{"f", []Type{Array{Elem: Int{}}}},
		{"f", []Type{Int{}, Int{}}},
		{"g", []Type{Int{}}},
		{"f", []Type{Map{Key: Int{}, Value: Int{}}}},
		{"f", []Type{Nullable{Inner: Int{}}}},
	}
	for _, in := range inputs {
		m := MangleName(in.base, in.args)
		if prev, dup := seen[m]; dup {
			t.Errorf("collision: %q produced by both %v and %s%v", m, prev, in.base, in.args)
		}
		seen[m] = in.base + MangleName("", in.args)
	}
}

func TestMangleMethod(t *testing.T) {
	if got := MangleMethod("Point", "get_x"); got != "Point$get_x" {
		t.Errorf("MangleMethod = %q", got)
	}
}

func TestBaseName(t *testing.T) {
	if BaseName("Option$$int") != "Option" {
		t.Errorf("BaseName(Option$$int) = %q", BaseName("Option$$int"))
	}
	if BaseName("Plain") != "Plain" {
		t.Errorf("BaseName(Plain) = %q", BaseName("Plain"))
	}
	if !IsMangledInstanceOf("Option$$int", "Option") {
		t.Error("Option$$int should be an instance of Option")
	}
	if IsMangledInstanceOf("OptionLike$$int", "Option") {
		t.Error("OptionLike$$int must not be an instance of Option")
	}
}

func TestUnifyBindsOnFirstSight(t *testing.T) {
	bindings := map[string]Type{}
	if !Unify(TypeParam{Name: "T"}, Int{}, bindings) {
		t.Fatal("unify failed")
	}
	if !Equal(bindings["T"], Int{}) {
		t.Fatalf("T bound to %v", bindings["T"])
	}
	// Second sighting must match the first binding.
	if Unify(TypeParam{Name: "T"}, String{}, bindings) {
		t.Fatal("conflicting binding accepted")
	}
	if !Unify(TypeParam{Name: "T"}, Int{}, bindings) {
		t.Fatal("consistent re-binding rejected")
	}
}

func TestUnifyStructural(t *testing.T) {
	bindings := map[string]Type{}
	param := Map{Key: TypeParam{Name: "K"}, Value: Array{Elem: TypeParam{Name: "V"}}}
	arg := Map{Key: String{}, Value: Array{Elem: Int{}}}
	if !Unify(param, arg, bindings) {
		t.Fatal("structural unify failed")
	}
	if !Equal(bindings["K"], String{}) || !Equal(bindings["V"], Int{}) {
		t.Fatalf("bindings = %v", bindings)
	}
}

func TestUnifyFn(t *testing.T) {
	bindings := map[string]Type{}
	param := Fn{Params: []Type{TypeParam{Name: "A"}}, Return: TypeParam{Name: "B"}}
	arg := Fn{Params: []Type{Int{}}, Return: Bool{}}
	if !Unify(param, arg, bindings) {
		t.Fatal("fn unify failed")
	}
	if !Equal(bindings["A"], Int{}) || !Equal(bindings["B"], Bool{}) {
		t.Fatalf("bindings = %v", bindings)
	}
	// Arity mismatch fails.
	if Unify(param, Fn{Params: nil, Return: Bool{}}, map[string]Type{}) {
		t.Fatal("arity mismatch accepted")
	}
}

func TestSubstituteResolvesGenericInstance(t *testing.T) {
	gi := GenericInstance{Kind: GenericClass, Name: "Pair", Args: []Type{TypeParam{Name: "A"}, TypeParam{Name: "B"}}}
	got := Substitute(gi, map[string]Type{"A": Int{}, "B": String{}})
	want := Class{Name: "Pair$$int$string"}
	if !Equal(got, want) {
		t.Fatalf("Substitute = %v, want %v", got, want)
	}
	// Partial substitution stays a GenericInstance.
	partial := Substitute(gi, map[string]Type{"A": Int{}})
	if _, ok := partial.(GenericInstance); !ok {
		t.Fatalf("partial Substitute = %v, want GenericInstance", partial)
	}
}

func TestIsHashable(t *testing.T) {
	for _, ok := range []Type{Int{}, Float{}, Bool{}, String{}, Byte{}, Enum{Name: "Color"}} {
		if !IsHashable(ok) {
			t.Errorf("%s should be hashable", ok)
		}
	}
	for _, bad := range []Type{Bytes{}, Array{Elem: Int{}}, Class{Name: "P"}, Fn{Return: Void{}}} {
		if IsHashable(bad) {
			t.Errorf("%s should not be hashable", bad)
		}
	}
}

func TestNoneSentinel(t *testing.T) {
	if !IsNone(None()) {
		t.Error("None() must satisfy IsNone")
	}
	if IsNone(Nullable{Inner: Int{}}) {
		t.Error("int? is not the none sentinel")
	}
}

func TestTypeStrings(t *testing.T) {
	cases := map[string]Type{
		"int":              Int{},
		"[int]":            Array{Elem: Int{}},
		"Map<string, int>": Map{Key: String{}, Value: Int{}},
		"fn(int) bool":     Fn{Params: []Type{Int{}}, Return: Bool{}},
		"int?":             Nullable{Inner: Int{}},
		"Task<int>":        Task{Elem: Int{}},
		"stream int":       Stream{Elem: Int{}},
		"trait Shape":      Trait{Name: "Shape"},
		"Pair<int, T>":     GenericInstance{Kind: GenericClass, Name: "Pair", Args: []Type{Int{}, TypeParam{Name: "T"}}},
	}
	for want, ty := range cases {
		if got := ty.String(); got != want {
			t.Errorf("String() = %q, want %q", got, want)
		}
	}
}

func TestEqualUsesStructure(t *testing.T) {
	a := Map{Key: String{}, Value: Array{Elem: Int{}}}
	b := Map{Key: String{}, Value: Array{Elem: Int{}}}
	if !Equal(a, b) {
		t.Error("structurally identical maps must be Equal")
	}
	if diff := cmp.Diff(a, b); diff != "" {
		t.Errorf("unexpected diff:\n%s", diff)
	}
}
