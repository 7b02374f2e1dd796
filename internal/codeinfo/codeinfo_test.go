package codeinfo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const pythonScript = `from earsketch import *
beat = "0+++0+++"
count = 4

def addBeat(track, start):
    pattern = [1, 2]
    makeBeat(HIPHOP_DUSTYGROOVE_007, track, start, beat)
    return pattern

def neverCalled():
    count = "text"

for measure in range(1, 9):
    addBeat(1, measure)
total = count + 1
`

func TestScanPython(t *testing.T) {
	t.Parallel()

	src := Scan(Python, pythonScript)
	fn, ok := src.Function("addBeat")
	require.True(t, ok)
	assert.Equal(t, 4, fn.Start)
	assert.Equal(t, 7, fn.End)
	assert.Equal(t, []string{"track", "start"}, fn.Params)
	assert.True(t, fn.Returns)
	assert.True(t, fn.Called)

	unused, ok := src.Function("neverCalled")
	require.True(t, ok)
	assert.False(t, unused.Called)
	assert.True(t, src.InUncalledFunction(10))

	assert.Contains(t, src.VariableNames(), "beat")
	assert.Contains(t, src.VariableNames(), "measure")
}

func TestEstimateVariableTypeSkipsUncalledFunctions(t *testing.T) {
	t.Parallel()

	src := Scan(Python, pythonScript)
	assert.Equal(t, TypeInt, src.EstimateVariableType("count", 14))
	assert.Equal(t, TypeStr, src.EstimateVariableType("beat", 6))
	assert.Equal(t, TypeList, src.EstimateVariableType("pattern", 7))
	assert.Equal(t, "", src.EstimateVariableType("pattern", 14))
	assert.Equal(t, "", src.EstimateVariableType("missing", 3))
}

func TestEstimateDataType(t *testing.T) {
	t.Parallel()

	samples := map[string]bool{"HIPHOP_DUSTYGROOVE_007": true}
	src := Scan(Python, pythonScript, WithSampleLookup(func(name string) bool { return samples[name] }))

	cases := map[string]string{
		"[1, 2]":                 TypeList,
		`"abc"`:                  TypeStr,
		"True":                   TypeBool,
		"12":                     TypeInt,
		"1.5":                    TypeFloat,
		"x > 3":                  TypeBool,
		"len(beat)":              TypeInt,
		"addBeat(1, 2)":          TypeList,
		"HIPHOP_DUSTYGROOVE_007": TypeSample,
		"addBeat":                TypeFunc,
		"beat + beat":            TypeStr,
		"unknownName":            "",
	}
	for expr, want := range cases {
		assert.Equal(t, want, src.EstimateDataType(expr), expr)
	}
	assert.Equal(t, TypeList, src.EstimateFunctionReturn("addBeat"))
}

func TestScanJavaScript(t *testing.T) {
	t.Parallel()

	script := `init();
var tempo = 120;
function section(start, end) {
  var x = start + 1;
  return "abc";
}
for (var i = 0; i < 4; i++) {
  section(i, i + 1);
}
finish();`

	src := Scan(JavaScript, script)
	fn, ok := src.Function("section")
	require.True(t, ok)
	assert.Equal(t, 2, fn.Start)
	assert.Equal(t, 5, fn.End)
	assert.Equal(t, 2, fn.Args())
	assert.Equal(t, TypeStr, src.EstimateFunctionReturn("section"))
	assert.Equal(t, TypeInt, src.EstimateVariableType("tempo", 8))
	assert.Equal(t, TypeInt, src.EstimateVariableType("i", 8))
}

func TestStripComment(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "x = 1 ", StripComment(Python, "x = 1 # note"))
	assert.Equal(t, `s = "a # b"`, StripComment(Python, `s = "a # b"`))
	assert.Equal(t, "x = 1;", TrimCommentsAndWhitespace(JavaScript, "  x = 1; // c"))
	assert.Equal(t, 4, LeadingSpaces("    y"))
}

func TestAnalyze(t *testing.T) {
	t.Parallel()

	res := Analyze(Python, pythonScript)
	assert.Equal(t, 2, res.Features[FeatureForLoopsRange])
	assert.Equal(t, 3, res.Features[FeatureRepeatExecution])
	assert.GreaterOrEqual(t, res.Features[FeatureMakeBeat], 1)
	assert.Equal(t, 0, res.Features[FeatureConditionals])
	assert.Equal(t, 1, res.Counts.MakeBeat)
	assert.Greater(t, res.Depth.Breadth, 0)

	empty := Analyze(Python, "from earsketch import *\n")
	assert.Equal(t, 0, empty.Depth.Breadth)
	assert.Len(t, empty.Features, len(AllFeatures))
}

func TestLanguage(t *testing.T) {
	t.Parallel()

	assert.Equal(t, JavaScript, LanguageOf("song.js"))
	assert.Equal(t, Python, LanguageOf("song.py"))
	lang, err := ParseLanguage("JS")
	require.NoError(t, err)
	assert.Equal(t, JavaScript, lang)
	_, err = ParseLanguage("ruby")
	assert.Error(t, err)
	assert.True(t, ContainsWord("if count > 1:", "count"))
	assert.False(t, ContainsWord("if counter > 1:", "count"))
}

func TestUses(t *testing.T) {
	t.Parallel()

	src := Scan(Python, "a = 1\nb = 2\nprint(a)\na = a + 1\nfor m in range(2):\n    pass\n")
	assert.Equal(t, []int{2, 3}, src.Uses("a"))
	assert.Empty(t, src.Uses("b"))
	v, ok := src.Variable("m")
	require.True(t, ok)
	assert.True(t, v.Assignments[0].Loop)

	js := Scan(JavaScript, "var n = 1;\nn = 2;\nn = n * 2;\nprintln(n);\n")
	assert.Equal(t, []int{2, 3}, js.Uses("n"))
}

func TestIsNumeric(t *testing.T) {
	t.Parallel()

	for _, s := range []string{"1", "1.5", " -2 ", "0.25"} {
		assert.True(t, IsNumeric(s), s)
	}
	for _, s := range []string{"", "inf", "nan", "Infinity", "-Inf", "NaN", "x1"} {
		assert.False(t, IsNumeric(s), s)
	}
}
