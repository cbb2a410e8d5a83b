package lint

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/specialistvlad/scadlive/internal/diag"
)

func lintErr(line, col int, msg string) diag.Diagnostic {
	return diag.Diagnostic{Line: line, Column: col, EndColumn: col + 1, Message: msg, Severity: diag.Error, Origin: diag.StaticLint}
}

func TestCheck_CleanSource(t *testing.T) {
	t.Parallel()
	src := `// box with a hole
$fn = 64;
size = 20;
difference() {
    cube(size, center = true);
    cylinder(h = size + 2, r = 5, center = true);
}
`
	res := Check(src)
	assert.True(t, res.Valid)
	assert.Empty(t, res.Diagnostics)
}

func TestCheck_StrayClosingBracket(t *testing.T) {
	t.Parallel()
	testCases := []struct {
		name string
		src  string
		want diag.Diagnostic
	}{
		{"paren", "cube(10);\n  )\n", lintErr(2, 3, "unexpected closing ')'")},
		{"bracket", "x = 1;]", lintErr(1, 7, "unexpected closing ']'")},
		{"brace after block", "union() {\n  cube(1);\n}\n}\n", lintErr(4, 1, "unexpected closing '}'")},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			res := Check(tc.src)
			require.False(t, res.Valid)
			errs := res.Errors()
			require.Len(t, errs, 1)
			if diff := cmp.Diff(tc.want, errs[0]); diff != "" {
				t.Errorf("unexpected diagnostic (-want +got):\n%s", diff)
			}
		})
	}
}

func TestCheck_UnclosedParen(t *testing.T) {
	t.Parallel()
	res := Check("cube([10,10,10]")

	require.False(t, res.Valid)
	require.Len(t, res.Errors(), 1)
	got := res.Errors()[0]
	assert.Equal(t, 1, got.Line)
	assert.Equal(t, 5, got.Column)
	assert.Contains(t, got.Message, "unclosed '('")
}

func TestCheck_MismatchedCloser(t *testing.T) {
	t.Parallel()
	res := Check("translate([1, 2, 3)) cube(1);")

	errs := res.Errors()
	require.NotEmpty(t, errs)
	assert.Equal(t, "')' does not match '[' opened at line 1, column 11", errs[0].Message)
	assert.Equal(t, 19, errs[0].Column)
}

func TestCheck_DelimitersInsideCommentsAndStrings(t *testing.T) {
	t.Parallel()
	src := `/* ignore ( [ { */
echo("unbalanced ) ] } \" quote");
// trailing ( comment
text("a(b");
`
	res := Check(src)
	assert.True(t, res.Valid, "diagnostics: %v", res.Diagnostics)
}

func TestCheck_UnterminatedStringAndComment(t *testing.T) {
	t.Parallel()

	res := Check("echo(\"abc);\n")
	require.False(t, res.Valid)
	assert.Equal(t, "unterminated string", res.Errors()[0].Message)
	assert.Equal(t, 6, res.Errors()[0].Column)

	res = Check("cube(1);\n/* never closed\n")
	require.Len(t, res.Errors(), 1)
	assert.Equal(t, diag.Diagnostic{Line: 2, Column: 1, Message: "unterminated block comment", Severity: diag.Error, Origin: diag.StaticLint}, res.Errors()[0])
}

func TestCheck_MissingTerminatorWarnings(t *testing.T) {
	t.Parallel()
	testCases := []struct {
		name  string
		src   string
		lines []int
	}{
		{"assignment", "width = 10\ncube(width);\n", []int{1}},
		{"primitive in block", "union() {\n  cube(1)\n  sphere(2);\n}\n", []int{2}},
		{"continuation suppresses", "total = 1\n  + 2;\ncube(total);\n", nil},
		{"transform takes a child", "translate([0, 0, 5])\n  cube(1);\n", nil},
		{"multi-line call", "cylinder(h = 3,\n  r = 1);\n", nil},
		{"after last semicolon", "a = 1; b = 2\n", []int{1}},
		{"equality is not assignment", "echo(a == b);\n", nil},
		{"comment only line between", "x = 3\n// note\n+ 4;\n", nil},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			res := Check(tc.src)
			require.True(t, res.Valid, "warnings must not invalidate: %v", res.Diagnostics)
			var lines []int
			for _, w := range res.Warnings() {
				lines = append(lines, w.Line)
				assert.Equal(t, "statement may be missing ';'", w.Message)
			}
			assert.Equal(t, tc.lines, lines)
		})
	}
}

func TestCheck_UTF8Columns(t *testing.T) {
	t.Parallel()
	res := Check("text(\"héllo\"); )")
	require.Len(t, res.Errors(), 1)
	assert.Equal(t, 16, res.Errors()[0].Column)
}

func TestCheck_Deterministic(t *testing.T) {
	t.Parallel()
	src := "cube([1, 2)\nsphere(3"
	assert.Equal(t, Check(src), Check(src))
}
