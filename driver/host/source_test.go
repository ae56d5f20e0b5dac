package host

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSource_Signatures(t *testing.T) {
	src := `
// fills a buffer
#define WIDTH 16
__kernel void set_value(__global uchar* data, uchar value) {
	data[get_global_id(0)] = value; /* ) ignored */
}

kernel void __attribute__((reqd_work_group_size(64, 1, 1)))
scale(global const float *restrict in, __global float* out, const float factor,
      __local float* scratch, unsigned int n, float4 bias, image2d_t img) {
	const char* s = "{ not a brace";
}

__kernel void empty(void) {}
`
	defs, diags := parseSource(src)
	require.Empty(t, diags)
	require.Len(t, defs, 3)

	assert.Equal(t, "set_value", defs[0].Name)
	assert.Equal(t, 4, defs[0].Line)
	want := []Param{
		{Name: "data", Type: "uchar", Kind: ParamGlobal, Size: 1, Pointer: true},
		{Name: "value", Type: "uchar", Kind: ParamScalar, Size: 1},
	}
	if diff := cmp.Diff(want, defs[0].Params); diff != "" {
		t.Errorf("set_value params mismatch (-want +got):\n%s", diff)
	}

	want = []Param{
		{Name: "in", Type: "float", Kind: ParamGlobal, Size: 4, Pointer: true},
		{Name: "out", Type: "float", Kind: ParamGlobal, Size: 4, Pointer: true},
		{Name: "factor", Type: "float", Kind: ParamScalar, Size: 4},
		{Name: "scratch", Type: "float", Kind: ParamLocal, Size: 4, Pointer: true},
		{Name: "n", Type: "uint", Kind: ParamScalar, Size: 4},
		{Name: "bias", Type: "float4", Kind: ParamScalar, Size: 16},
		{Name: "img", Type: "image2d_t", Kind: ParamGlobal, Size: 8},
	}
	assert.Equal(t, "scale", defs[1].Name)
	if diff := cmp.Diff(want, defs[1].Params); diff != "" {
		t.Errorf("scale params mismatch (-want +got):\n%s", diff)
	}

	assert.Equal(t, "empty", defs[2].Name)
	assert.Empty(t, defs[2].Params)
}

func TestParseSource_Prototype(t *testing.T) {
	defs, diags := parseSource("__kernel void k(__global int* p);\n__kernel void k(__global int* p) {}")
	require.Empty(t, diags)
	require.Len(t, defs, 1)
}

func TestParseSource_Errors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"unbalanced brace", "__kernel void k(__global int* p) {\n", "1:34: error: expected '}' to match this '{'"},
		{"mismatched", "__kernel void k(__global int* p] {}", "expected ')' to match '('"},
		{"extra closer", "}", "extraneous closing '}'"},
		{"unterminated comment", "/* never closed", "unterminated /* comment"},
		{"unterminated string", "__kernel void k() { \"abc\n }", "missing terminating '\"' character"},
		{"missing expression", "__kernel void k(__global int* p) {\n  p[0] = ;\n}", "2:10: error: expected expression"},
		{"non-void", "__kernel int k() { return 0; }", "kernel functions must have void return type"},
		{"unknown type", "__kernel void k(__global foo* p) {}", "unknown type name 'foo'"},
		{"private pointer", "__kernel void k(int* p) {}", "must point to global, constant or local memory"},
		{"qualified scalar", "__kernel void k(__global int n) {}", "may not be qualified with an address space"},
		{"missing name", "__kernel void k(__global int*) {}", "expected parameter name"},
		{"redefinition", "__kernel void k() {}\n__kernel void k() {}", "2:15: error: redefinition of 'k'"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, diags := parseSource(tt.src)
			require.NotEmpty(t, diags)
			assert.Contains(t, formatLog(diags), tt.want)
		})
	}
}

func TestFormatLog(t *testing.T) {
	assert.Equal(t, "", formatLog(nil))

	log := formatLog([]diagnostic{{3, 7, "first"}, {4, 1, "second"}})
	lines := strings.Split(log, "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "<program>:3:7: error: first", lines[0])
	assert.Equal(t, "<program>:4:1: error: second", lines[1])
	assert.Equal(t, "2 errors generated.", lines[2])

	assert.True(t, strings.HasSuffix(formatLog([]diagnostic{{1, 1, "x"}}), "1 error generated."))
}

func TestTypeSize(t *testing.T) {
	tests := map[string]int{
		"uchar": 1, "short": 2, "float": 4, "double": 8,
		"int2": 8, "float3": 16, "uchar16": 16, "long4": 32,
		"bool2": 0, "size_t2": 0, "foo": 0, "float5": 0,
	}
	for name, want := range tests {
		assert.Equal(t, want, typeSize(name), name)
	}
}
