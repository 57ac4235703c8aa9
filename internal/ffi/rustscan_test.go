package ffi

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScanBasicFunctions(t *testing.T) {
	src := `
pub fn add(a: i64, b: i64) -> i64 { a + b }
pub fn mul(a: f64, b: f64) -> f64 { a * b }
pub fn negate(x: f64) -> f64 { -x }
pub fn is_positive(x: i64) -> bool { x > 0 }
fn private_helper(x: i64) -> i64 { x }
`
	result := ScanSource(src)
	require.Len(t, result.Fns, 4)
	assert.Equal(t, "add", result.Fns[0].Name)
	assert.Equal(t, []RustType{RustI64, RustI64}, result.Fns[0].Params)
	assert.Equal(t, RustI64, result.Fns[0].Return)
	assert.False(t, result.Fns[0].Fallible)
	assert.Equal(t, RustBool, result.Fns[3].Return)
	assert.Empty(t, result.Skipped)
}

func TestScanResultMarksFallible(t *testing.T) {
	src := `
pub fn risky(x: i64) -> Result<i64, String> { Ok(x) }
pub fn safe(x: i64) -> i64 { x }
`
	result := ScanSource(src)
	require.Len(t, result.Fns, 2)
	assert.True(t, result.Fns[0].Fallible)
	assert.Equal(t, RustI64, result.Fns[0].Return)
	assert.False(t, result.Fns[1].Fallible)
}

func TestScanResultUnitOk(t *testing.T) {
	src := `pub fn do_thing() -> Result<(), String> { Ok(()) }`
	result := ScanSource(src)
	require.Len(t, result.Fns, 1)
	assert.True(t, result.Fns[0].Fallible)
	assert.Equal(t, RustUnit, result.Fns[0].Return)
}

func TestScanResultUnsupportedOkSkipped(t *testing.T) {
	src := `pub fn bad(x: i64) -> Result<Vec<i64>, String> { Ok(vec![x]) }`
	result := ScanSource(src)
	assert.Empty(t, result.Fns)
	require.Len(t, result.Skipped, 1)
	assert.Contains(t, result.Skipped[0], "unsupported Ok type")
}

func TestScanSkipsStringTypes(t *testing.T) {
	src := `
pub fn greet(name: &str) -> String { format!("hi {name}") }
pub fn good(x: i64) -> i64 { x }
`
	result := ScanSource(src)
	require.Len(t, result.Fns, 1)
	assert.Equal(t, "good", result.Fns[0].Name)
	require.Len(t, result.Skipped, 1)
	assert.Contains(t, result.Skipped[0], "greet")
}

func TestScanSkipsVectorTypes(t *testing.T) {
	src := `
pub fn bad(data: Vec<u8>) -> Vec<u8> { data }
pub fn sum(xs: Vec<i64>) -> i64 { xs.iter().sum() }
pub fn good(x: i64) -> i64 { x }
`
	result := ScanSource(src)
	require.Len(t, result.Fns, 1)
	assert.Equal(t, "good", result.Fns[0].Name)
	require.Len(t, result.Skipped, 2)
	assert.Contains(t, result.Skipped[0], "bad")
	assert.Contains(t, result.Skipped[1], "sum")
}

func TestScanSkipsImplMethods(t *testing.T) {
	src := `
struct Foo;
impl Foo {
    pub fn method(x: i64) -> i64 { x }
}
pub fn free_fn(x: i64) -> i64 { x }
`
	result := ScanSource(src)
	require.Len(t, result.Fns, 1)
	assert.Equal(t, "free_fn", result.Fns[0].Name)
}

func TestScanSkipsCfgGated(t *testing.T) {
	src := `
#[cfg(test)]
pub fn cfg_gated(x: i64) -> i64 { x }
pub fn normal(x: i64) -> i64 { x }
`
	result := ScanSource(src)
	require.Len(t, result.Fns, 1)
	assert.Equal(t, "normal", result.Fns[0].Name)
}

func TestScanSkipsGenerics(t *testing.T) {
	src := `pub fn generic<T>(x: T) -> T { x }`
	result := ScanSource(src)
	assert.Empty(t, result.Fns)
	require.Len(t, result.Skipped, 1)
	assert.Contains(t, result.Skipped[0], "generic")
}

func TestScanFilesMergesDeterministically(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.rs"), []byte("pub fn zeta(x: i64) -> i64 { x }\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.rs"), []byte("pub fn alpha(x: i64) -> i64 { x }\n"), 0o644))
	result, err := ScanFiles([]string{filepath.Join(dir, "b.rs"), filepath.Join(dir, "a.rs")})
	require.NoError(t, err)
	require.Len(t, result.Fns, 2)
	assert.Equal(t, "alpha", result.Fns[0].Name)
	assert.Equal(t, "zeta", result.Fns[1].Name)
}

func TestToExternDecls(t *testing.T) {
	result := ScanResult{Fns: []FnSig{
		{Name: "risky", Params: []RustType{RustI64}, Return: RustI64, Fallible: true},
		{Name: "beep", Params: []RustType{RustBool}, Return: RustUnit},
	}}
	decls, fallible := ToExternDecls(result)
	require.Len(t, decls, 2)
	assert.Equal(t, "risky", decls[0].Name.Value)
	assert.NotNil(t, decls[0].ReturnType)
	assert.Nil(t, decls[1].ReturnType, "unit return binds as void")
	assert.Equal(t, []string{"risky"}, fallible)
}
