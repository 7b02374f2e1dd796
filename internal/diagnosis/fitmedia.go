package diagnosis

import (
	"math"
	"strconv"
	"strings"

	"github.com/ashureev/cadence/internal/codeinfo"
)

// Argument shapes used by the fitMedia checker.
const (
	argNum    = "Num"
	argObject = "ObjOrArray"
	argBool   = "bool"
	argStr    = "Str"
	argSample = "Sample"
)

var boolMarkers = []string{" true ", " false ", ">", "<", "=", " and ", " or ", "&&", "||"}

// checkFitMedia validates the fitMedia call starting on line idx: spelling,
// parentheses, argument count, the coarse type of each argument and, where
// the values are literal numbers, the track and measure ranges.
func (a *analysis) checkFitMedia(idx int) Classification {
	line := ""
	if idx >= 0 && idx < len(a.lines) {
		line = codeinfo.TrimCommentsAndWhitespace(a.lang, a.lines[idx])
	}
	for _, miss := range []string{"fitmedia", "FitMedia", "Fitmedia"} {
		if strings.Contains(line, miss) {
			return classify("fitMedia", "miscapitalization")
		}
	}
	if !strings.Contains(line, "(") {
		return classify("fitMedia", "missing parentheses")
	}
	body, _, ok := ClosingParen(a.lines, idx, true)
	if !ok || body == "" {
		return classify("fitMedia", "missing parentheses")
	}

	argString := body[strings.Index(body, "(")+1:]
	args := strings.Split(CleanupListsAndObjects(argString), ",")
	switch {
	case len(args) > 4:
		return classify("fitMedia", "too many arguments")
	case len(args) < 4:
		return classify("fitMedia", "too few arguments")
	}

	types := make([]string, len(args))
	values := make([]float64, len(args))
	known := make([]bool, len(args))
	for i, raw := range args {
		arg := codeinfo.TrimCommentsAndWhitespace(a.lang, raw)
		types[i] = a.argType(arg, idx)
		if types[i] == argNum && codeinfo.IsNumeric(arg) {
			values[i], _ = strconv.ParseFloat(strings.TrimSpace(arg), 64)
			known[i] = true
		}
	}

	if types[0] != argSample && types[0] != "" {
		return classify("fitMedia", "arg 1 wrong type")
	}
	for i := 1; i < 4; i++ {
		if types[i] != argNum && types[i] != "" {
			return classify("fitMedia", "arg "+strconv.Itoa(i+1)+" wrong type")
		}
	}

	track, start, end := 1, 2, 3
	if known[track] {
		if values[track] != math.Trunc(values[track]) {
			return classify("fitMedia", "track number not integer")
		}
		if values[track] < 1 {
			return classify("fitMedia", "invalid track number")
		}
	}
	if known[start] && values[start] < 1 {
		return classify("fitMedia", "invalid start measure")
	}
	if known[end] && values[end] < 1 {
		return classify("fitMedia", "invalid end measure")
	}
	if known[start] && known[end] && values[end] <= values[start] {
		return classify("fitMedia", "backwards start/end")
	}
	return Classification{}
}

// argType guesses the shape of one call argument. An empty result means the
// shape could not be determined and is not held against the student.
func (a *analysis) argType(arg string, idx int) string {
	padded := strings.ToLower(" " + arg + " ")
	switch {
	case codeinfo.IsNumeric(arg):
		return argNum
	case strings.HasPrefix(arg, "OPENBRACE"):
		return argObject
	case containsAny(padded, boolMarkers):
		return argBool
	case strings.ContainsAny(arg, `"'`):
		return argStr
	case strings.Contains(arg, "+"):
		first := strings.TrimSpace(strings.Split(arg, "+")[0])
		if strings.ContainsAny(first, `"'`) {
			return argStr
		}
		if codeinfo.IsNumeric(first) {
			return argNum
		}
		return a.exprType(first, idx)
	}
	if a.isSample != nil && a.isSample(arg) {
		return argSample
	}
	return a.exprType(arg, idx)
}

// exprType resolves a call or a variable name, as seen from line idx, to an
// argument shape.
func (a *analysis) exprType(expr string, idx int) string {
	var t string
	if strings.ContainsAny(expr, "()") {
		name := expr
		if i := strings.Index(expr, "("); i >= 0 {
			name = strings.TrimSpace(expr[:i])
		}
		if bt, ok := codeinfo.BuiltinReturn(name); ok {
			t = bt
		} else {
			t = a.src.EstimateFunctionReturn(name)
		}
	} else {
		t = a.src.EstimateVariableType(expr, idx)
	}
	switch t {
	case codeinfo.TypeInt, codeinfo.TypeFloat:
		return argNum
	case codeinfo.TypeBool:
		return argBool
	case codeinfo.TypeList:
		return argObject
	}
	return t
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
