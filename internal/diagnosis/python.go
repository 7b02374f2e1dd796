package diagnosis

import (
	"slices"
	"strings"

	"github.com/ashureev/cadence/internal/codeinfo"
)

var pythonBlockKeywords = []string{"if", "elif", "else", "for", "while", "in"}

func (a *analysis) diagnosePython() Classification {
	if a.err.Type == "NameError" {
		return a.checkName(firstQuoted(a.err.Message))
	}
	if _, _, ok := ClosingParen(a.lines, 0, false); !ok {
		return classify("parentheses", "mismatch")
	}
	if !strings.Contains(a.text, "from earsketch import *") && !strings.Contains(a.text, "from earsketch import*") {
		return classify("import", "missing import")
	}

	line := a.errorLine
	lower := strings.ToLower(line)
	if strings.Contains(lower, "fitmedia") {
		return a.checkFitMedia(a.errIdx)
	}
	if codeinfo.ContainsWord(lower, "def") || codeinfo.ContainsWord(lower, "function") {
		return a.checkPythonFunction(a.errIdx)
	}

	if !a.mentionsKnownName(line) && !containsAnyWord(lower, pythonBlockKeywords) {
		trimmed := codeinfo.TrimCommentsAndWhitespace(codeinfo.Python, line)
		colon := strings.HasSuffix(trimmed, ":")
		open := strings.LastIndex(line, "(")
		closing := -1
		if c := strings.LastIndex(line, ")"); c > open {
			closing = c
		}
		signals := 0
		if colon {
			signals++
		}
		if open > 0 {
			signals++
		}
		if closing > 0 {
			signals++
		}
		if signals > 0 && !colon {
			return a.checkPythonCall(line)
		}
		if signals > 1 {
			if c := a.checkPythonFunction(a.errIdx); !c.Empty() {
				return c
			}
		}
	}

	for i := a.errIdx; i >= 0 && i < len(a.lines); i++ {
		l := codeinfo.StripComment(codeinfo.Python, a.lines[i])
		switch {
		case codeinfo.ContainsWord(l, "for"):
			return a.checkPythonFor(i)
		case codeinfo.ContainsWord(l, "while"):
			return a.checkPythonWhile(i)
		case codeinfo.ContainsWord(l, "if"), codeinfo.ContainsWord(l, "elif"), codeinfo.ContainsWord(l, "else"):
			return a.checkPythonConditional(i)
		case codeinfo.ContainsWord(l, "def"):
			return a.checkPythonFunction(i)
		}
	}
	return a.braceFallback()
}

// mentionsKnownName reports whether the line uses a keyword or API function.
func (a *analysis) mentionsKnownName(line string) bool {
	for _, name := range a.known {
		if codeinfo.ContainsWord(line, name) {
			return true
		}
	}
	return false
}

func (a *analysis) missingBody(idx int) bool {
	return codeinfo.LeadingSpaces(nextNonBlank(a.lines, idx)) <= codeinfo.LeadingSpaces(a.lines[idx])
}

func (a *analysis) checkPythonFunction(idx int) Classification {
	if a.missingBody(idx) {
		return classify("function", "missing body")
	}
	line := codeinfo.TrimCommentsAndWhitespace(codeinfo.Python, a.lines[idx])
	rest, ok := strings.CutPrefix(line, "def ")
	if !ok {
		return classify("function", "missing def")
	}
	header := strings.TrimSpace(strings.TrimSuffix(rest, ":"))
	paren := strings.Index(header, "(")
	switch {
	case paren == -1:
		return classify("function", "missing parentheses")
	case paren == 0:
		return classify("function", "missing function name")
	case !strings.HasSuffix(rest, ":"):
		return classify("function", "missing colon")
	case !strings.HasSuffix(header, ")"):
		return classify("function", "missing parentheses")
	}
	return a.checkParameters(header[paren+1 : len(header)-1])
}

// checkParameters flags a declaration whose parameter list holds values
// rather than names.
func (a *analysis) checkParameters(params string) Classification {
	params = strings.TrimSpace(params)
	if params == "" {
		return Classification{}
	}
	if strings.Contains(params, " ") && !strings.Contains(params, ",") {
		return classify("function", "parameters missing commas")
	}
	names := a.src.VariableNames()
	for _, p := range strings.Split(CleanupListsAndObjects(params), ",") {
		p = strings.TrimSpace(p)
		if codeinfo.IsNumeric(p) || p == "True" || p == "False" || p == "true" || p == "false" ||
			strings.ContainsAny(p, `"'|`) || slices.Contains(names, p) {
			return classify("function", "value instead of parameter")
		}
	}
	return Classification{}
}

func (a *analysis) checkPythonFor(idx int) Classification {
	if a.missingBody(idx) {
		return classify("for loop", "missing body")
	}
	line := codeinfo.TrimCommentsAndWhitespace(codeinfo.Python, a.lines[idx])
	rest, ok := strings.CutPrefix(line, "for")
	if !ok {
		return classify("for loop", "missing for")
	}
	rest = strings.TrimSpace(rest)
	iterator, rest, _ := strings.Cut(rest, " ")
	if iterator == "" || iterator == "in" {
		return classify("for loop", "missing iterator name")
	}
	rest = strings.TrimSpace(rest)
	if !strings.HasPrefix(rest, "in") {
		return classify("for loop", "missing in")
	}
	rest = strings.TrimSpace(strings.TrimPrefix(rest, "in"))
	if !strings.HasSuffix(rest, ":") {
		return classify("for loop", "missing colon")
	}
	iterable := strings.TrimSpace(strings.TrimSuffix(rest, ":"))

	if strings.HasPrefix(iterable, "range") {
		if !strings.Contains(iterable, "(") || !strings.Contains(iterable, ")") {
			return classify("for loop", "range missing parentheses")
		}
		if strings.LastIndex(iterable, ")") < strings.Index(iterable, "(") {
			return classify("for loop", "range missing parentheses")
		}
		argString := iterable[strings.Index(iterable, "(")+1 : strings.LastIndex(iterable, ")")]
		args := strings.Split(CleanupListsAndObjects(argString), ",")
		if len(args) < 1 || len(args) > 3 {
			return classify("for loop", "incorrect number of range arguments")
		}
		for _, arg := range args {
			arg = strings.TrimSpace(arg)
			if t := a.argType(arg, idx); arg == "" || (t != argNum && t != "") {
				return classify("for loop", "non-numeric range argument")
			}
		}
		return Classification{}
	}

	if !a.validIterable(iterable, idx) {
		return classify("for loop", "invalid iterable")
	}
	return Classification{}
}

func (a *analysis) validIterable(iterable string, idx int) bool {
	switch {
	case strings.Contains(iterable, "(") && strings.HasSuffix(iterable, ")"):
		name := strings.TrimSpace(iterable[:strings.Index(iterable, "(")])
		if dot := strings.LastIndex(name, "."); dot >= 0 {
			name = name[dot+1:]
		}
		if t, ok := codeinfo.BuiltinReturn(name); ok {
			return t == codeinfo.TypeStr || t == codeinfo.TypeList
		}
		if _, ok := a.src.Function(name); ok {
			t := a.src.EstimateFunctionReturn(name)
			return t == codeinfo.TypeStr || t == codeinfo.TypeList
		}
		return true
	case strings.HasPrefix(iterable, "[") && strings.HasSuffix(iterable, "]"):
		return true
	case codeinfo.IsNumeric(iterable):
		return false
	case strings.ContainsAny(iterable, `"'`):
		return true
	case strings.ContainsAny(iterable, "[]"):
		return false
	}
	if _, ok := a.src.Variable(iterable); ok {
		t := a.src.EstimateVariableType(iterable, idx)
		return t == codeinfo.TypeStr || t == codeinfo.TypeList || t == ""
	}
	return true
}

func (a *analysis) checkPythonCall(line string) Classification {
	if !strings.Contains(line, "(") || !strings.Contains(line, ")") {
		return classify("function call", "missing parentheses")
	}
	if open, closing := countParens(line); open != closing || strings.LastIndex(line, ")") < strings.Index(line, "(") {
		return classify("function call", "parentheses mismatch")
	}

	args := strings.Split(line[strings.Index(line, "(")+1:strings.LastIndex(line, ")")], ",")
	if strings.TrimSpace(strings.Join(args, "")) == "" {
		args = nil
	}
	callee := codeinfo.TrimCommentsAndWhitespace(codeinfo.Python, line[:strings.Index(line, "(")])
	if lhs, rhs, ok := strings.Cut(callee, "="); ok && !strings.ContainsAny(lhs, "(") {
		callee = strings.TrimSpace(rhs)
	}
	if strings.Contains(callee, " ") {
		return classify("function call", "extra words")
	}
	if slices.Contains(a.known, callee) {
		return Classification{}
	}
	if fn, ok := a.src.Function(callee); ok {
		switch {
		case fn.Args() > len(args):
			return classify("function call", "too few arguments")
		case fn.Args() < len(args):
			return classify("function call", "too many arguments")
		}
	}
	return Classification{}
}

// checkPythonWhile looks at parenthesis balance, the colon and the body.
// Parentheses are optional around a Python condition so only a mismatch counts.
func (a *analysis) checkPythonWhile(idx int) Classification {
	line := a.lines[idx]
	if !strings.Contains(line, "while") {
		return classify("while loop", "missing while keyword")
	}
	if open, closing := countParens(line); open != closing {
		return classify("while loop", "parentheses mismatch")
	}
	if !strings.HasSuffix(codeinfo.TrimCommentsAndWhitespace(codeinfo.Python, line), ":") {
		return classify("while loop", "missing colon")
	}
	if a.missingBody(idx) {
		return classify("while loop", "missing body")
	}
	return Classification{}
}

func (a *analysis) checkPythonConditional(idx int) Classification {
	line := a.lines[idx]
	clean := codeinfo.StripComment(codeinfo.Python, line)
	if codeinfo.ContainsWord(clean, "if") || codeinfo.ContainsWord(clean, "elif") {
		if open, closing := countParens(clean); open != closing {
			return classify("conditional", "parentheses mismatch")
		}
		if !strings.HasSuffix(strings.TrimSpace(clean), ":") {
			return classify("conditional", "missing colon")
		}
		if a.missingBody(idx) {
			return classify("conditional", "missing body")
		}
	}

	trimmed := strings.TrimSpace(clean)
	if strings.HasPrefix(trimmed, "elif") || strings.HasPrefix(trimmed, "else") {
		indent := codeinfo.LeadingSpaces(line)
		for i := idx - 1; i >= 0; i-- {
			above := a.lines[i]
			if strings.TrimSpace(above) == "" || codeinfo.LeadingSpaces(above) > indent {
				continue
			}
			head := strings.TrimSpace(above)
			if codeinfo.LeadingSpaces(above) < indent ||
				!(strings.HasPrefix(head, "if") || strings.HasPrefix(head, "elif")) {
				return classify("conditional", "misindented else")
			}
			break
		}
	}
	return Classification{}
}

func containsAnyWord(s string, words []string) bool {
	for _, w := range words {
		if codeinfo.ContainsWord(s, w) {
			return true
		}
	}
	return false
}
