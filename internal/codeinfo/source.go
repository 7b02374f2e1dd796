package codeinfo

import (
	"math"
	"regexp"
	"slices"
	"strconv"
	"strings"
)

// Coarse data types produced by type estimation. An empty string means unknown.
const (
	TypeList   = "List"
	TypeStr    = "Str"
	TypeInt    = "Int"
	TypeFloat  = "Float"
	TypeBool   = "Bool"
	TypeSample = "Sample"
	TypeFunc   = "Func"
)

// Assignment is one assignment to a variable. Lines are zero-based.
type Assignment struct {
	Line  int
	Value string
	Loop  bool
}

// Variable collects every assignment made to a name.
type Variable struct {
	Name        string
	Assignments []Assignment
}

// Function is a user-defined function. Start is the declaration line and End
// the last line of its body.
type Function struct {
	Name         string
	Start        int
	End          int
	Params       []string
	Returns      bool
	ReturnValues []string
	Aliases      []string
	Called       bool
}

// Args returns the declared parameter count.
func (f Function) Args() int {
	return len(f.Params)
}

// Contains reports whether line is inside the function body.
func (f Function) Contains(line int) bool {
	return line > f.Start && line <= f.End
}

// Source is the scanned model of a script.
type Source struct {
	Language  Language
	Lines     []string
	Variables []Variable
	Functions []Function

	isSample func(string) bool
}

// Option configures Scan.
type Option func(*Source)

// WithSampleLookup lets type estimation recognise sample constants.
func WithSampleLookup(fn func(string) bool) Option {
	return func(s *Source) {
		s.isSample = fn
	}
}

var (
	pyDefPattern     = regexp.MustCompile(`^\s*def\s+([A-Za-z_]\w*)\s*\(([^)]*)\)?`)
	jsDefPattern     = regexp.MustCompile(`^\s*function\s+([A-Za-z_$][\w$]*)\s*\(([^)]*)\)?`)
	pyAssignPattern  = regexp.MustCompile(`^\s*([A-Za-z_]\w*)\s*([-+*/%]?)=\s*([^=].*)$`)
	jsAssignPattern  = regexp.MustCompile(`^\s*(?:var\s+|let\s+|const\s+)?([A-Za-z_$][\w$]*)\s*([-+*/%]?)=\s*([^=].*?);?\s*$`)
	pyForPattern     = regexp.MustCompile(`^\s*for\s+([A-Za-z_]\w*)\s+in\s+(.+?):?\s*$`)
	jsForPattern     = regexp.MustCompile(`^\s*for\s*\(\s*(?:var\s+|let\s+|const\s+)?([A-Za-z_$][\w$]*)\s*=\s*([^;]+);`)
	returnPattern    = regexp.MustCompile(`^\s*return\b\s*(.*?);?\s*$`)
	identPattern     = regexp.MustCompile(`^[A-Za-z_$][\w$]*$`)
	callPattern      = regexp.MustCompile(`^([A-Za-z_$][\w$.]*)\s*\((.*)\)$`)
	intPattern       = regexp.MustCompile(`^-?\d+$`)
	floatPattern     = regexp.MustCompile(`^-?(\d+\.\d*|\.\d+)([eE][-+]?\d+)?$`)
	comparePattern   = regexp.MustCompile(`==|!=|<=|>=|<|>|\bnot\b|\band\b|\bor\b|&&|\|\|`)
	callSitePattern  = regexp.MustCompile(`([A-Za-z_$][\w$]*)\s*\(`)
	jsFuncVarPattern = regexp.MustCompile(`^\s*(?:var\s+|let\s+|const\s+)?([A-Za-z_$][\w$]*)\s*=\s*function\s*\(([^)]*)\)`)
)

// Scan builds a Source model from raw text. It is tolerant of broken code.
func Scan(lang Language, text string, opts ...Option) *Source {
	s := &Source{
		Language: lang,
		Lines:    strings.Split(text, "\n"),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.scanFunctions()
	s.scanAssignments()
	s.scanCalls()
	return s
}

func (s *Source) clean(i int) string {
	return StripComment(s.Language, s.Lines[i])
}

func (s *Source) scanFunctions() {
	for i := range s.Lines {
		line := s.clean(i)
		var m []string
		if s.Language == JavaScript {
			if m = jsDefPattern.FindStringSubmatch(line); m == nil {
				m = jsFuncVarPattern.FindStringSubmatch(line)
			}
		} else {
			m = pyDefPattern.FindStringSubmatch(line)
		}
		if m == nil {
			continue
		}
		fn := Function{Name: m[1], Start: i, Params: splitParams(m[2])}
		if s.Language == JavaScript {
			fn.End = s.braceBlockEnd(i)
		} else {
			fn.End = s.indentBlockEnd(i)
		}
		for j := fn.Start + 1; j <= fn.End && j < len(s.Lines); j++ {
			if rm := returnPattern.FindStringSubmatch(s.clean(j)); rm != nil {
				fn.Returns = true
				if rm[1] != "" {
					fn.ReturnValues = append(fn.ReturnValues, strings.TrimSpace(rm[1]))
				}
			}
		}
		s.Functions = append(s.Functions, fn)
	}
}

func splitParams(raw string) []string {
	var params []string
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			params = append(params, p)
		}
	}
	return params
}

// indentBlockEnd finds the last line of the indented block opened at start.
func (s *Source) indentBlockEnd(start int) int {
	indent := LeadingSpaces(s.Lines[start])
	end := start
	for j := start + 1; j < len(s.Lines); j++ {
		if strings.TrimSpace(s.clean(j)) == "" {
			continue
		}
		if LeadingSpaces(s.Lines[j]) <= indent {
			break
		}
		end = j
	}
	return end
}

// braceBlockEnd finds the line holding the brace that closes the block opened
// at or after start. Unbalanced blocks extend to the end of the file.
func (s *Source) braceBlockEnd(start int) int {
	depth := 0
	opened := false
	for j := start; j < len(s.Lines); j++ {
		for _, c := range s.clean(j) {
			switch c {
			case '{':
				depth++
				opened = true
			case '}':
				depth--
			}
			if opened && depth == 0 {
				return j
			}
		}
	}
	return len(s.Lines) - 1
}

func (s *Source) scanAssignments() {
	assignPattern, forPattern := pyAssignPattern, pyForPattern
	if s.Language == JavaScript {
		assignPattern, forPattern = jsAssignPattern, jsForPattern
	}
	for i := range s.Lines {
		line := s.clean(i)
		if m := forPattern.FindStringSubmatch(line); m != nil {
			value := ""
			if s.Language == JavaScript {
				value = strings.TrimSpace(m[2])
			}
			s.assignment(m[1], Assignment{Line: i, Value: value, Loop: true})
			continue
		}
		m := assignPattern.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		name, op, value := m[1], m[2], strings.TrimSpace(m[3])
		if op != "" {
			value = name + " " + op + " " + value
		}
		if fn := s.function(value); fn != nil && identPattern.MatchString(value) {
			fn.Aliases = append(fn.Aliases, name)
		}
		s.assignment(name, Assignment{Line: i, Value: value})
	}
}

func (s *Source) assignment(name string, a Assignment) {
	for i := range s.Variables {
		if s.Variables[i].Name == name {
			s.Variables[i].Assignments = append(s.Variables[i].Assignments, a)
			return
		}
	}
	s.Variables = append(s.Variables, Variable{Name: name, Assignments: []Assignment{a}})
}

// Uses lists the lines that mention name, skipping lines that only assign it.
func (s *Source) Uses(name string) []int {
	v, ok := s.Variable(name)
	assigned := map[int]string{}
	if ok {
		for _, a := range v.Assignments {
			assigned[a.Line] = a.Value
		}
	}
	var out []int
	for i := range s.Lines {
		line := s.clean(i)
		if !ContainsWord(line, name) {
			continue
		}
		if value, isAssign := assigned[i]; isAssign && !ContainsWord(value, name) {
			// "x = x + 1" reads x; "x = 1" does not.
			if _, rhs, _ := strings.Cut(line, "="); !ContainsWord(rhs, name) {
				continue
			}
		}
		out = append(out, i)
	}
	return out
}

func (s *Source) scanCalls() {
	for i := range s.Functions {
		fn := &s.Functions[i]
		names := append([]string{fn.Name}, fn.Aliases...)
		for j := range s.Lines {
			if j == fn.Start {
				continue
			}
			for _, m := range callSitePattern.FindAllStringSubmatch(s.clean(j), -1) {
				if slices.Contains(names, m[1]) {
					fn.Called = true
				}
			}
		}
	}
}

func (s *Source) function(name string) *Function {
	for i := range s.Functions {
		if s.Functions[i].Name == name || slices.Contains(s.Functions[i].Aliases, name) {
			return &s.Functions[i]
		}
	}
	return nil
}

// Function looks up a user function by name or alias.
func (s *Source) Function(name string) (Function, bool) {
	if fn := s.function(name); fn != nil {
		return *fn, true
	}
	return Function{}, false
}

// Variable looks up a variable by name.
func (s *Source) Variable(name string) (Variable, bool) {
	for _, v := range s.Variables {
		if v.Name == name {
			return v, true
		}
	}
	return Variable{}, false
}

// VariableNames returns every assigned name in order of first assignment.
func (s *Source) VariableNames() []string {
	names := make([]string, len(s.Variables))
	for i, v := range s.Variables {
		names[i] = v.Name
	}
	return names
}

// EnclosingFunction returns the function whose body holds line.
func (s *Source) EnclosingFunction(line int) (Function, bool) {
	for _, fn := range s.Functions {
		if fn.Contains(line) {
			return fn, true
		}
	}
	return Function{}, false
}

// InUncalledFunction reports whether line belongs to a function that is never
// called anywhere in the script.
func (s *Source) InUncalledFunction(line int) bool {
	for _, fn := range s.Functions {
		if !fn.Called && line >= fn.Start && line <= fn.End {
			return true
		}
	}
	return false
}

// EstimateDataType infers a coarse type tag from the literal shape of expr.
func (s *Source) EstimateDataType(expr string) string {
	return s.estimate(expr, map[string]bool{})
}

func (s *Source) estimate(expr string, seen map[string]bool) string {
	expr = strings.TrimSpace(expr)
	if expr == "" || seen[expr] {
		return ""
	}
	seen[expr] = true

	switch {
	case strings.HasPrefix(expr, "["):
		return TypeList
	case strings.HasPrefix(expr, `"`), strings.HasPrefix(expr, "'"), strings.HasPrefix(expr, "`"):
		return TypeStr
	case expr == "True", expr == "False", expr == "true", expr == "false":
		return TypeBool
	case intPattern.MatchString(expr):
		return TypeInt
	case floatPattern.MatchString(expr):
		return TypeFloat
	case comparePattern.MatchString(expr):
		return TypeBool
	}

	if m := callPattern.FindStringSubmatch(expr); m != nil && balanced(m[2]) {
		name := m[1]
		if idx := strings.LastIndexByte(name, '.'); idx >= 0 {
			name = name[idx+1:]
		}
		if t, ok := BuiltinReturn(name); ok {
			return t
		}
		if fn := s.function(name); fn != nil && fn.Returns && len(fn.ReturnValues) > 0 {
			return s.estimate(fn.ReturnValues[0], seen)
		}
		return ""
	}

	if identPattern.MatchString(expr) {
		if s.isSample != nil && s.isSample(expr) {
			return TypeSample
		}
		if s.function(expr) != nil {
			return TypeFunc
		}
		if v, ok := s.Variable(expr); ok && len(v.Assignments) > 0 {
			return s.estimate(v.Assignments[len(v.Assignments)-1].Value, seen)
		}
		return ""
	}

	if idx := strings.IndexAny(expr, "+-*/%"); idx > 0 {
		return s.estimate(expr[:idx], seen)
	}
	return ""
}

func balanced(s string) bool {
	depth := 0
	for _, c := range s {
		switch c {
		case '(':
			depth++
		case ')':
			depth--
			if depth < 0 {
				return false
			}
		}
	}
	return depth == 0
}

// EstimateVariableType estimates the type of name as seen from line. It uses
// the latest earlier assignment made either in the same function as line or
// outside any function, ignoring bodies of functions that are never called.
func (s *Source) EstimateVariableType(name string, line int) string {
	v, ok := s.Variable(name)
	if !ok {
		return ""
	}
	scope, inFunction := s.EnclosingFunction(line)

	var latest *Assignment
	for i := range v.Assignments {
		a := &v.Assignments[i]
		if a.Line >= line || s.InUncalledFunction(a.Line) {
			continue
		}
		owner, owned := s.EnclosingFunction(a.Line)
		if owned && (!inFunction || owner.Start != scope.Start) {
			continue
		}
		if latest == nil || a.Line > latest.Line {
			latest = a
		}
	}
	if latest == nil {
		return ""
	}
	return s.EstimateDataType(latest.Value)
}

// EstimateFunctionReturn estimates the type returned by a user function.
func (s *Source) EstimateFunctionReturn(name string) string {
	fn := s.function(name)
	if fn == nil || !fn.Returns || len(fn.ReturnValues) == 0 {
		return ""
	}
	return s.EstimateDataType(fn.ReturnValues[0])
}

// IsNumeric reports whether s is a finite numeric literal. Identifiers such
// as inf or nan are names, not numbers.
func IsNumeric(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return false
	}
	f, err := strconv.ParseFloat(s, 64)
	return err == nil && !math.IsInf(f, 0) && !math.IsNaN(f)
}
