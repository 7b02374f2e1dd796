package diagnosis

import (
	"regexp"
	"slices"
	"strings"
	"unicode"

	"github.com/ashureev/cadence/internal/codeinfo"
)

var jsConditionMarkers = []string{">", "<", "==", "===", ">=", "<=", "!=", "!==", " true ", " false "}

var notDefinedPattern = regexp.MustCompile(`([A-Za-z_$][\w$]*) is not defined`)

func (a *analysis) diagnoseJavaScript() Classification {
	if a.err.Type == "ReferenceError" {
		name := a.err.Message
		if m := notDefinedPattern.FindStringSubmatch(a.err.Message); m != nil {
			name = m[1]
		}
		return a.checkName(strings.TrimSpace(name))
	}

	words := strings.FieldsFunc(a.errorLine, func(r rune) bool {
		return !(r == '_' || r == '$' || unicode.IsLetter(r) || unicode.IsDigit(r))
	})
	for _, word := range words {
		if len(word) <= 4 || slices.Contains(a.known, word) {
			continue
		}
		for _, known := range a.known {
			if IsTypo(word, known) {
				return classify("name", "typo: "+known)
			}
		}
	}

	lowered := strings.ToLower(codeinfo.TrimCommentsAndWhitespace(codeinfo.JavaScript, a.errorLine))
	if strings.HasPrefix(lowered, "fitmedia") {
		if c := a.checkFitMedia(a.errIdx); !c.Empty() {
			return c
		}
	}

	for i, raw := range a.lines {
		line := codeinfo.StripComment(codeinfo.JavaScript, raw)
		if codeinfo.ContainsWord(line, "function") || codeinfo.ContainsWord(line, "def") {
			if c := a.checkJSFunction(i); !c.Empty() {
				return c
			}
		}
		if codeinfo.ContainsWord(line, "for") && !strings.Contains(line, " in ") && !strings.Contains(line, " of ") {
			if c := a.checkJSFor(i); !c.Empty() {
				return c
			}
		}
		if strings.HasPrefix(strings.TrimSpace(line), "if") {
			if c := a.checkJSConditional(i, 0); !c.Empty() {
				return c
			}
		}
	}
	return a.braceFallback()
}

func (a *analysis) checkJSFunction(idx int) Classification {
	line := codeinfo.TrimCommentsAndWhitespace(codeinfo.JavaScript, a.lines[idx])
	rest, ok := strings.CutPrefix(line, "function")
	if !ok {
		if _, _, isExpr := strings.Cut(line, "= function"); isExpr {
			return Classification{}
		}
		return classify("function", "missing function keyword")
	}
	rest = strings.TrimSpace(rest)
	if rest == "" || !unicode.IsLetter(rune(rest[0])) {
		return classify("function", "invalid function name")
	}
	if !strings.Contains(rest, "(") {
		return classify("function", "missing opening parenthesis")
	}
	body, pos, ok := ClosingParen(a.lines, idx, true)
	if !ok {
		return classify("function", "missing closing parenthesis")
	}
	params := body[strings.Index(body, "(")+1:]

	brace, found := a.openBraceAfter(pos, true)
	if !found {
		return classify("function", "missing open curly brace")
	}
	if _, closed := a.closeBraceAfter(brace); !closed {
		return classify("function", "missing closing curly brace")
	}
	return a.checkParameters(params)
}

func (a *analysis) checkJSFor(idx int) Classification {
	line := codeinfo.StripComment(codeinfo.JavaScript, a.lines[idx])
	at := strings.Index(line, "for")
	if !strings.HasPrefix(strings.TrimSpace(line[at+3:]), "(") {
		return classify("for loop", "missing opening parenthesis")
	}
	body, _, ok := ClosingParen(a.lines, idx, true)
	if !ok {
		return classify("for loop", "missing closing parenthesis")
	}
	header := body[strings.Index(body, "(")+1:]
	parts := strings.Split(header, ";")
	if len(parts) != 3 {
		return classify("for loop", "invalid loop declaration")
	}
	if !a.validJSCondition(parts[1], idx) {
		return classify("for loop", "invalid loop condition")
	}
	return Classification{}
}

// checkJSConditional checks the if statement on line idx and then any
// "else if" chained after its block.
func (a *analysis) checkJSConditional(idx, depth int) Classification {
	line := codeinfo.StripComment(codeinfo.JavaScript, a.lines[idx])
	at := strings.Index(line, "if")
	if at < 0 || depth > len(a.lines) {
		return Classification{}
	}
	if !strings.HasPrefix(strings.TrimSpace(line[at+2:]), "(") {
		return classify("conditional", "missing opening parenthesis")
	}
	body, pos, ok := ClosingParen(a.lines, idx, true)
	if !ok {
		return classify("conditional", "missing closing parenthesis")
	}
	condition := body[strings.Index(body, "(")+1:]
	if !a.validJSCondition(condition, idx) {
		return classify("conditional", "invalid condition")
	}

	if brace, found := a.openBraceAfter(pos, false); found {
		if end, closed := a.closeBraceAfter(brace); closed {
			pos = end
		}
	}
	if pos.Line < len(a.lines) {
		next := a.lines[pos.Line]
		if pos.Col <= len(next) && strings.HasPrefix(strings.TrimSpace(next[pos.Col:]), "else if") {
			return a.checkJSConditional(pos.Line, depth+1)
		}
	}
	return Classification{}
}

// validJSCondition accepts a comparison, a boolean literal, or a call or
// variable that is boolean or of unknown type.
func (a *analysis) validJSCondition(condition string, idx int) bool {
	if containsAny(condition, jsConditionMarkers) {
		return true
	}
	condition = strings.TrimSpace(condition)
	switch {
	case condition == "true", condition == "false":
		return true
	case strings.HasPrefix(condition, `"`), strings.HasPrefix(condition, "'"), codeinfo.IsNumeric(condition):
		return false
	}
	if strings.Contains(condition, "(") {
		t := a.src.EstimateFunctionReturn(strings.TrimSpace(strings.Split(condition, "(")[0]))
		return t == codeinfo.TypeBool || t == ""
	}
	t := a.src.EstimateVariableType(condition, idx)
	return t == codeinfo.TypeBool || t == ""
}

// openBraceAfter finds the first '{' after pos. When strict, any other
// non-space character before it means the brace is missing.
func (a *analysis) openBraceAfter(pos Position, strict bool) (Position, bool) {
	for i := pos.Line; i < len(a.lines); i++ {
		line := a.lines[i]
		start := 0
		if i == pos.Line {
			start = pos.Col
		}
		for j := start; j < len(line); j++ {
			switch line[j] {
			case '{':
				return Position{Line: i, Col: j}, true
			case ' ', '\t', '\n', '\r':
			default:
				if strict {
					return pos, false
				}
			}
		}
	}
	return pos, false
}

// closeBraceAfter finds the '}' balancing the '{' at open and returns the
// position just past it.
func (a *analysis) closeBraceAfter(open Position) (Position, bool) {
	depth := 1
	for i := open.Line; i < len(a.lines); i++ {
		line := a.lines[i]
		start := 0
		if i == open.Line {
			start = open.Col + 1
		}
		for j := start; j < len(line); j++ {
			switch line[j] {
			case '{':
				depth++
			case '}':
				depth--
				if depth == 0 {
					return Position{Line: i, Col: j + 1}, true
				}
			}
		}
	}
	return open, false
}
