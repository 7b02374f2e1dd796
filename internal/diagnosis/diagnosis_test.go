package diagnosis

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashureev/cadence/internal/codeinfo"
)

func TestClosingParen(t *testing.T) {
	t.Parallel()

	body, pos, ok := ClosingParen([]string{"foo(bar(1,2))"}, 0, true)
	require.True(t, ok)
	assert.Equal(t, "foo(bar(1,2)", body)
	assert.Equal(t, Position{Line: 0, Col: 13}, pos)

	body, pos, ok = ClosingParen([]string{"foo(bar(1,2)"}, 0, true)
	assert.False(t, ok)
	assert.Equal(t, "", body)
	assert.Equal(t, Position{}, pos)

	_, _, ok = ClosingParen([]string{`print(")")`}, 0, true)
	assert.True(t, ok, "parentheses inside strings are ignored")

	body, pos, ok = ClosingParen([]string{"fitMedia(a,", "  1, 1, 5)", "x = 1"}, 0, true)
	require.True(t, ok)
	assert.Equal(t, "fitMedia(a,  1, 1, 5", body)
	assert.Equal(t, 1, pos.Line)

	_, _, ok = ClosingParen([]string{"a(", "b)", "c()"}, 0, false)
	assert.True(t, ok)
	_, _, ok = ClosingParen([]string{"a(", "b", "c()"}, 0, false)
	assert.False(t, ok)
}

func TestIsTypo(t *testing.T) {
	t.Parallel()

	assert.True(t, IsTypo("fitMdia", "fitMedia"))
	assert.False(t, IsTypo("fitMedia", "fitMedia"))
	assert.False(t, IsTypo("x", "fitMedia"))
	assert.True(t, IsTypo("pint", "print"))
	assert.False(t, IsTypo("pint", "in"))
}

func TestCleanupListsAndObjects(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "OPENBRACE1| 2CLOSEBRACE, x", CleanupListsAndObjects("[1, 2], x"))
	assert.Equal(t, "OPENBRACEa: OPENBRACE1|2CLOSEBRACECLOSEBRACE,b", CleanupListsAndObjects("{a: [1,2]},b"))
}

func diagnose(t *testing.T, lang codeinfo.Language, err RuntimeError, text string) Classification {
	t.Helper()
	d := NewDiagnoser(WithSampleLookup(func(name string) bool {
		return name == "HIPHOP_DUSTYGROOVE_007" || name == "OS_SNARE03"
	}))
	return d.Diagnose(lang, err, text)
}

func TestPythonNameTypo(t *testing.T) {
	t.Parallel()

	src := "from earsketch import *\npint(\"hello\")\n"
	err := ParseRuntimeError("NameError: name 'pint' is not defined on line 2", 0)
	assert.Equal(t, 2, err.Line)
	assert.Equal(t, classify("name", "typo: print"), diagnose(t, codeinfo.Python, err, src))
}

func TestPythonNamePrefersVariables(t *testing.T) {
	t.Parallel()

	src := "from earsketch import *\nmelody = HIPHOP_DUSTYGROOVE_007\nfitMedia(melodi, 1, 1, 5)\n"
	err := RuntimeError{Type: "NameError", Message: "name 'melodi' is not defined", Line: 3}
	assert.Equal(t, classify("name", "typo: melody"), diagnose(t, codeinfo.Python, err, src))

	err = RuntimeError{Type: "NameError", Message: "name 'zzz' is not defined", Line: 3}
	assert.Equal(t, classify("name", "unrecognized: zzz"), diagnose(t, codeinfo.Python, err, src))
}

func TestPythonFileLevelChecks(t *testing.T) {
	t.Parallel()

	err := RuntimeError{Type: "SyntaxError", Message: "bad input", Line: 2}
	assert.Equal(t, classify("parentheses", "mismatch"),
		diagnose(t, codeinfo.Python, err, "from earsketch import *\nfitMedia(OS_SNARE03, 1, 1, 5\n"))
	assert.Equal(t, classify("import", "missing import"),
		diagnose(t, codeinfo.Python, err, "setTempo(120)\nfitMedia(OS_SNARE03, 1, 1, 5)\n"))
}

func TestPythonFitMedia(t *testing.T) {
	t.Parallel()

	cases := map[string]Classification{
		"Fitmedia(OS_SNARE03, 1, 1, 5)":             classify("fitMedia", "miscapitalization"),
		"fitMedia OS_SNARE03":                       classify("fitMedia", "missing parentheses"),
		"fitMedia(OS_SNARE03, 1, 1)":                classify("fitMedia", "too few arguments"),
		"fitMedia(OS_SNARE03, 1, 1, 5, 6)":          classify("fitMedia", "too many arguments"),
		"fitMedia(1, 1, 1, 5)":                      classify("fitMedia", "arg 1 wrong type"),
		"fitMedia(OS_SNARE03, \"one\", 1, 5)":       classify("fitMedia", "arg 2 wrong type"),
		"fitMedia(OS_SNARE03, 1.5, 1, 5)":           classify("fitMedia", "track number not integer"),
		"fitMedia(OS_SNARE03, 0, 1, 5)":             classify("fitMedia", "invalid track number"),
		"fitMedia(OS_SNARE03, 1, 0, 5)":             classify("fitMedia", "invalid start measure"),
		"fitMedia(OS_SNARE03, 1, 5, 3)":             classify("fitMedia", "backwards start/end"),
		"fitMedia(OS_SNARE03, 1, [1, 2], 5)":        classify("fitMedia", "arg 3 wrong type"),
		"fitMedia(OS_SNARE03, 1, 1, 5)":             {},
		"fitMedia(OS_SNARE03, track, start, start)": {},
	}
	for line, want := range cases {
		src := "from earsketch import *\n" + line + "\n"
		err := RuntimeError{Type: "TypeError", Message: "bad call", Line: 2}
		assert.Equal(t, want, diagnose(t, codeinfo.Python, err, src), line)
	}
}

func TestPythonFunction(t *testing.T) {
	t.Parallel()

	cases := map[string]Classification{
		"def beat(a, b)\n    x = 1\n":        classify("function", "missing colon"),
		"def beat(a, b):\nx = 1\n":           classify("function", "missing body"),
		"def (a):\n    x = 1\n":              classify("function", "missing function name"),
		"def beat:\n    x = 1\n":             classify("function", "missing parentheses"),
		"def beat(a b):\n    x = 1\n":        classify("function", "parameters missing commas"),
		"def beat(1, b):\n    x = 1\n":       classify("function", "value instead of parameter"),
		"def beat(start, end):\n    x = 1\n": {},
	}
	for body, want := range cases {
		src := "from earsketch import *\n" + body
		err := RuntimeError{Type: "SyntaxError", Message: "bad input", Line: 2}
		assert.Equal(t, want, diagnose(t, codeinfo.Python, err, src), body)
	}
}

func TestPythonLoopsAndConditionals(t *testing.T) {
	t.Parallel()

	cases := map[string]Classification{
		"for i in range(1, 5)\n    x = i\n":          classify("for loop", "missing colon"),
		"for i range(1, 5):\n    x = i\n":            classify("for loop", "missing in"),
		"for in range(1, 5):\n    x = i\n":           classify("for loop", "missing iterator name"),
		"for i in range(1, 2, 3, 4):\n    x = i\n":   classify("for loop", "incorrect number of range arguments"),
		"for i in range(\"a\"):\n    x = i\n":        classify("for loop", "non-numeric range argument"),
		"for i in range(1, 5):\nx = i\n":             classify("for loop", "missing body"),
		"for i in 5:\n    x = i\n":                   classify("for loop", "invalid iterable"),
		"for i in [1, 2]:\n    x = i\n":              {},
		"while x < 3\n    x = x + 1\n":               classify("while loop", "missing colon"),
		"while (x < 3:\n    x = x + 1\n":             classify("parentheses", "mismatch"),
		"if x > 3\n    y = 1\n":                      classify("conditional", "missing colon"),
		"if x > 3:\ny = 1\n":                         classify("conditional", "missing body"),
		"if x > 3:\n    y = 1\n  else:\n    y = 2\n": {},
	}
	for body, want := range cases {
		src := "from earsketch import *\nx = 1\n" + body
		err := RuntimeError{Type: "SyntaxError", Message: "bad input", Line: 3}
		assert.Equal(t, want, diagnose(t, codeinfo.Python, err, src), body)
	}

	src := "from earsketch import *\nx = 1\nif x > 3:\n    y = 1\n    else:\n        y = 2\n"
	err := RuntimeError{Type: "SyntaxError", Message: "bad input", Line: 5}
	assert.Equal(t, classify("conditional", "misindented else"), diagnose(t, codeinfo.Python, err, src))
}

func TestPythonCall(t *testing.T) {
	t.Parallel()

	src := "from earsketch import *\ndef section(start, end):\n    x = start\n    return x\n\nsection(1)\n"
	err := RuntimeError{Type: "TypeError", Message: "section() takes 2 arguments", Line: 6}
	assert.Equal(t, classify("function call", "too few arguments"), diagnose(t, codeinfo.Python, err, src))

	src = "from earsketch import *\ndef section(start, end):\n    x = start\n    return x\n\nsection(1, 2, 3)\n"
	assert.Equal(t, classify("function call", "too many arguments"), diagnose(t, codeinfo.Python, err, src))

	src = "from earsketch import *\nnew section(1, 2)\n"
	err = RuntimeError{Type: "SyntaxError", Message: "bad input", Line: 2}
	assert.Equal(t, classify("function call", "extra words"), diagnose(t, codeinfo.Python, err, src))
}

func TestJavaScript(t *testing.T) {
	t.Parallel()

	err := RuntimeError{Type: "ReferenceError", Message: "fitMdia is not defined", Line: 2}
	assert.Equal(t, classify("name", "typo: fitMedia"), diagnose(t, codeinfo.JavaScript, err, "init();\nfitMdia(OS_SNARE03, 1, 1, 5);\n"))

	cases := map[string]Classification{
		"function beat(a, b) {\n  var x = 1;\n":               classify("function", "missing closing curly brace"),
		"function beat(a, b)\n  var x = 1;\n}\n":              classify("function", "missing open curly brace"),
		"function 1beat(a) {\n}\n":                            classify("function", "invalid function name"),
		"function beat(a, 2) {\n}\n":                          classify("function", "value instead of parameter"),
		"for (var i = 0; i < 4) {\n}\n":                       classify("for loop", "invalid loop declaration"),
		"for var i = 0; i < 4; i++ {\n}\n":                    classify("for loop", "missing opening parenthesis"),
		"if x > 3 {\n}\n":                                     classify("conditional", "missing opening parenthesis"),
		"if (x > 3) {\n} else if (x) {\n}\n":                  classify("conditional", "invalid condition"),
		"if (x > 3) {\n  fitMedia(OS_SNARE03, 1, 1, 5);\n}\n": {},
	}
	for body, want := range cases {
		src := "init();\nvar x = 1;\n" + body
		err := RuntimeError{Type: "SyntaxError", Message: "missing ; before statement", Line: 3}
		assert.Equal(t, want, diagnose(t, codeinfo.JavaScript, err, src), body)
	}

	err = RuntimeError{Type: "SyntaxError", Message: "unexpected end of input", Line: 3}
	assert.Equal(t, classify("syntax", "mismatched curly braces"),
		diagnose(t, codeinfo.JavaScript, err, "init();\nvar x = [1, 2];\nvar y = {a: 1;\n"))
}

func TestJavaScriptWordTypo(t *testing.T) {
	t.Parallel()

	err := RuntimeError{Type: "TypeError", Message: "not a function", Line: 2}
	assert.Equal(t, classify("name", "typo: setTempo"), diagnose(t, codeinfo.JavaScript, err, "init();\nsetTemp0(120);\n"))
}

func TestLoopHeadersSeeOnlyEarlierAssignments(t *testing.T) {
	t.Parallel()

	err := RuntimeError{Type: "SyntaxError", Message: "bad input", Line: 3}
	assert.Equal(t, Classification{},
		diagnose(t, codeinfo.Python, err, "from earsketch import *\nx = 1\nfor i in range(i):\n    x = i\n"))
	assert.Equal(t, Classification{},
		diagnose(t, codeinfo.JavaScript, err, "init();\nvar x = 1;\nfor (var i = 0; i; i++) {\n}\n"))
	assert.Equal(t, classify("for loop", "invalid loop condition"),
		diagnose(t, codeinfo.JavaScript, err, "init();\nvar n = 5;\nfor (var i = 0; n; i++) {\n}\n"))
}

func TestReversedParentheses(t *testing.T) {
	t.Parallel()

	err := RuntimeError{Type: "SyntaxError", Message: "bad input", Line: 2}
	assert.Equal(t, classify("function call", "parentheses mismatch"),
		diagnose(t, codeinfo.Python, err, "from earsketch import *\nfoo)(\n"))
	assert.Equal(t, classify("for loop", "range missing parentheses"),
		diagnose(t, codeinfo.Python, err, "from earsketch import *\nfor i in range)(:\n    x = 1\n"))
}

func TestDiagnoseNeverPanics(t *testing.T) {
	t.Parallel()

	bodies := []string{
		"",
		"\n\n",
		"foo)(",
		")(",
		"for i in range)(:\n    x = 1",
		"for i in range(:\n    x = 1",
		"for i in range):\n    x = 1",
		"for i in foo)(:\n    x = 1",
		"for (var i = 0; i < 4; i++)(\n}",
		"for )var i = 0; i < 4; i++( {\n}",
		"if )x > 3( {\n}",
		"if (\n",
		"if x)(:\n    y = 1",
		"while )x(:\n    x = 1",
		"def f)(:\n    x = 1",
		"def ():\n    x = 1",
		"function f)( {\n}",
		"function (",
		"fitMedia)(",
		"fitMedia(",
		"fitMedia(OS_SNARE03, 1, 1, 5",
		"x = [1, 2",
		"x = ]1, 2[",
		"y = {a: 1",
		"}{",
		"()",
		"[]",
		"else:",
		"    else:",
		"for",
		"if",
		"def",
		"function",
	}
	lines := []int{-5, 0, 1, 2, 3, 50}
	for _, lang := range []codeinfo.Language{codeinfo.Python, codeinfo.JavaScript} {
		for _, body := range bodies {
			for _, prefix := range []string{"", "from earsketch import *\n", "init();\n"} {
				for _, line := range lines {
					for _, typ := range []string{"SyntaxError", "TypeError", "NameError", "ReferenceError"} {
						text := prefix + body
						err := RuntimeError{Type: typ, Message: "name 'foo' is not defined", Line: line}
						assert.NotPanics(t, func() {
							NewDiagnoser(WithMemoSize(0)).Diagnose(lang, err, text)
						}, "%s %q line %d %s", lang, text, line, typ)
					}
				}
			}
		}
	}
}

func TestDiagnoseIsDeterministic(t *testing.T) {
	t.Parallel()

	src := "from earsketch import *\nfor i in range(1, 5)\n    fitMedia(OS_SNARE03, 1, i, i + 1)\n"
	err := RuntimeError{Type: "SyntaxError", Message: "bad input", Line: 2}
	first := NewDiagnoser(WithMemoSize(0)).Diagnose(codeinfo.Python, err, src)
	second := NewDiagnoser(WithMemoSize(0)).Diagnose(codeinfo.Python, err, src)
	memo := NewDiagnoser()
	third := memo.Diagnose(codeinfo.Python, err, src)
	fourth := memo.Diagnose(codeinfo.Python, err, src)
	assert.Equal(t, first, second)
	assert.Equal(t, first, third)
	assert.Equal(t, third, fourth)
	assert.Equal(t, classify("for loop", "missing colon"), first)
}

func TestClassificationJSON(t *testing.T) {
	t.Parallel()

	data, err := json.Marshal(classify("name", "typo: print"))
	require.NoError(t, err)
	assert.JSONEq(t, `["name","typo: print"]`, string(data))

	var c Classification
	require.NoError(t, json.Unmarshal([]byte(`["for loop","missing colon"]`), &c))
	assert.Equal(t, classify("for loop", "missing colon"), c)
}

func TestParseRuntimeError(t *testing.T) {
	t.Parallel()

	e := ParseRuntimeError("ExternalError: TypeError: bad operand on line 7", 0)
	assert.Equal(t, RuntimeError{Type: "TypeError", Message: "bad operand", Line: 7}, e)
	assert.Equal(t, "TypeError: bad operand on line 7", e.String())
	assert.Equal(t, RuntimeError{Type: "SyntaxError", Line: 3}, ParseRuntimeError("SyntaxError", 3))
}

func TestStateAndExplain(t *testing.T) {
	t.Parallel()

	ex := DefaultExplanations()
	var s State
	assert.False(t, s.Active())
	assert.Equal(t, ex.Apology, ex.Explain(s))

	err := RuntimeError{Type: "NameError", Message: "name 'pint' is not defined", Line: 2}
	s.Store(err, "from earsketch import *\npint(1)", classify("name", "typo: print"))
	assert.True(t, s.Active())
	assert.True(t, s.Same(err))
	assert.Equal(t, "pint(1)", s.ErrorLine)
	assert.Equal(t, "i think you might have meant print. check the spelling and the capitalization", ex.Explain(s))

	s.Classification = classify("function", "missing colon")
	assert.Contains(t, ex.Explain(s), "colon")

	s.Classification = classify("mystery", "thing")
	assert.Equal(t, ex.Errors["NameError"], ex.Explain(s))

	s.Err = &RuntimeError{Type: "WeirdError"}
	assert.Equal(t, "it might be a mystery thing", ex.Explain(s))

	s.Clear()
	assert.False(t, s.Active())
}
