package codeinfo

import (
	"regexp"
	"strings"
)

// Feature names a code concept tracked by the complexity scorer.
type Feature string

const (
	FeatureErrors             Feature = "errors"
	FeatureVariables          Feature = "variables"
	FeatureMakeBeat           Feature = "makeBeat"
	FeatureWhileLoops         Feature = "whileLoops"
	FeatureForLoopsRange      Feature = "forLoopsRange"
	FeatureForLoopsIterable   Feature = "forLoopsIterable"
	FeatureIterables          Feature = "iterables"
	FeatureNesting            Feature = "nesting"
	FeatureConditionals       Feature = "conditionals"
	FeatureUsedInConditionals Feature = "usedInConditionals"
	FeatureRepeatExecution    Feature = "repeatExecution"
	FeatureManipulateValue    Feature = "manipulateValue"
	FeatureIndexing           Feature = "indexing"
	FeatureConsoleInput       Feature = "consoleInput"
	FeatureListOps            Feature = "listOps"
	FeatureStrOps             Feature = "strOps"
	FeatureBinOps             Feature = "binOps"
	FeatureComparisons        Feature = "comparisons"
)

// AllFeatures lists features in their canonical order.
var AllFeatures = []Feature{
	FeatureErrors, FeatureVariables, FeatureMakeBeat, FeatureWhileLoops,
	FeatureForLoopsRange, FeatureForLoopsIterable, FeatureIterables, FeatureNesting,
	FeatureConditionals, FeatureUsedInConditionals, FeatureRepeatExecution,
	FeatureManipulateValue, FeatureIndexing, FeatureConsoleInput, FeatureListOps,
	FeatureStrOps, FeatureBinOps, FeatureComparisons,
}

// Features maps each feature to a level between 0 and 3.
type Features map[Feature]int

// Clone returns an independent copy.
func (f Features) Clone() Features {
	out := make(Features, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}

// Depth summarises structural nesting and concept breadth.
type Depth struct {
	Depth   int `json:"depth"`
	Breadth int `json:"breadth"`
}

// Counts tallies calls to the main music API functions.
type Counts struct {
	FitMedia  int `json:"fitMedia"`
	MakeBeat  int `json:"makeBeat"`
	SetEffect int `json:"setEffect"`
	SetTempo  int `json:"setTempo"`
}

// Results is the output of the complexity scorer.
type Results struct {
	Features Features `json:"codeFeatures"`
	Depth    Depth    `json:"depth"`
	Counts   Counts   `json:"counts"`
}

// Scorer computes complexity results for a script.
type Scorer interface {
	Score(lang Language, text string) Results
}

// HeuristicScorer is a text-pattern Scorer.
type HeuristicScorer struct{}

// Score implements Scorer.
func (HeuristicScorer) Score(lang Language, text string) Results {
	return Analyze(lang, text)
}

var (
	pyRangeLoop   = regexp.MustCompile(`^\s*for\s+\w+\s+in\s+range\s*\(([^)]*)\)`)
	pyIterLoop    = regexp.MustCompile(`^\s*for\s+\w+\s+in\s+`)
	jsCountLoop   = regexp.MustCompile(`^\s*for\s*\([^;]*;[^;]*;`)
	jsIterLoop    = regexp.MustCompile(`^\s*for\s*\(.*\s(in|of)\s`)
	whilePattern  = regexp.MustCompile(`^\s*while\b`)
	ifPattern     = regexp.MustCompile(`^\s*(if\b|\}?\s*else\s+if\b)`)
	elsePattern   = regexp.MustCompile(`^\s*(\}\s*)?(else\b|elif\b)`)
	elifPattern   = regexp.MustCompile(`^\s*(\}\s*)?(elif\b|else\s+if\b)`)
	indexPattern  = regexp.MustCompile(`[\w\])]\[[^\]]+\]`)
	listLiteral   = regexp.MustCompile(`=\s*\[`)
	binOpPattern  = regexp.MustCompile(`[\w)\]]\s*[-+*/%]\s*[\w(\["']`)
	comparePatt   = regexp.MustCompile(`==|!=|<=|>=|[^<]<[^<=]|[^>]>[^>=]`)
	augmentedPatt = regexp.MustCompile(`[-+*/%]=|\+\+|--`)
	listOpPattern = regexp.MustCompile(`\.(append|extend|insert|pop|remove|reverse|sort|push|shift|unshift|splice|concat)\s*\(`)
	strOpPattern  = regexp.MustCompile(`\.(join|split|strip|upper|lower|startswith|substring|toUpperCase|toLowerCase|replace|charAt)\s*\(`)
	blockOpener   = regexp.MustCompile(`^\s*(def|function|for|while|if|elif|else)\b`)
)

// Analyze scores text with line-level heuristics. Each feature gets 0 when
// absent and up to 3 for the more advanced uses of the concept.
func Analyze(lang Language, text string) Results {
	src := Scan(lang, text)
	f := Features{}
	for _, name := range AllFeatures {
		f[name] = 0
	}
	raise := func(feature Feature, level int) {
		if level > f[feature] {
			f[feature] = level
		}
	}

	var counts Counts
	maxDepth := 0
	var openIndents []int

	for i := range src.Lines {
		line := src.clean(i)
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}

		indent := LeadingSpaces(line)
		for len(openIndents) > 0 && indent <= openIndents[len(openIndents)-1] {
			openIndents = openIndents[:len(openIndents)-1]
		}
		if blockOpener.MatchString(line) {
			openIndents = append(openIndents, indent)
			if len(openIndents) > maxDepth {
				maxDepth = len(openIndents)
			}
			if len(openIndents) > 1 {
				raise(FeatureNesting, 1)
			}
		}

		counts.FitMedia += strings.Count(line, "fitMedia(")
		counts.MakeBeat += strings.Count(line, "makeBeat(")
		counts.SetEffect += strings.Count(line, "setEffect(")
		counts.SetTempo += strings.Count(line, "setTempo(")

		if strings.HasPrefix(trimmed, "try") {
			raise(FeatureErrors, 1)
		}
		if strings.Contains(line, "makeBeat(") {
			level := 1
			if counts.MakeBeat > 1 {
				level = 2
			}
			if len(openIndents) > 0 && !blockOpener.MatchString(line) {
				level = 3
			}
			raise(FeatureMakeBeat, level)
		}
		if whilePattern.MatchString(line) {
			raise(FeatureWhileLoops, 1)
			raise(FeatureRepeatExecution, 1)
		}
		switch lang {
		case JavaScript:
			if jsIterLoop.MatchString(line) {
				raise(FeatureForLoopsIterable, 1)
				raise(FeatureRepeatExecution, 1)
			} else if jsCountLoop.MatchString(line) {
				raise(FeatureForLoopsRange, 1+min(2, strings.Count(line, ";")-1))
				raise(FeatureRepeatExecution, 1)
			}
		default:
			if m := pyRangeLoop.FindStringSubmatch(line); m != nil {
				raise(FeatureForLoopsRange, max(1, min(3, len(splitParams(m[1])))))
				raise(FeatureRepeatExecution, 1)
			} else if pyIterLoop.MatchString(line) {
				raise(FeatureForLoopsIterable, 1)
				raise(FeatureRepeatExecution, 1)
			}
		}
		if ifPattern.MatchString(line) {
			raise(FeatureConditionals, 1)
			for _, name := range src.VariableNames() {
				if ContainsWord(line, name) {
					raise(FeatureUsedInConditionals, 1)
					break
				}
			}
		}
		if elsePattern.MatchString(line) {
			raise(FeatureConditionals, 2)
		}
		if elifPattern.MatchString(line) {
			raise(FeatureConditionals, 3)
		}
		if indexPattern.MatchString(line) && !strings.HasPrefix(trimmed, "[") {
			raise(FeatureIndexing, 1)
		}
		if listLiteral.MatchString(line) {
			raise(FeatureIterables, 1)
		}
		if augmentedPatt.MatchString(line) {
			raise(FeatureManipulateValue, 1)
		}
		if strings.Contains(line, "readInput(") {
			raise(FeatureConsoleInput, 1)
		}
		if listOpPattern.MatchString(line) {
			raise(FeatureListOps, 1)
		}
		if strOpPattern.MatchString(line) {
			raise(FeatureStrOps, 1)
		}
		if binOpPattern.MatchString(line) {
			raise(FeatureBinOps, 1)
		}
		if comparePatt.MatchString(line) && !strings.Contains(trimmed, "import") {
			raise(FeatureComparisons, 1)
		}
	}

	if len(src.Variables) > 0 {
		raise(FeatureVariables, 1)
		for _, v := range src.Variables {
			if len(v.Assignments) > 1 {
				raise(FeatureVariables, 2)
				raise(FeatureManipulateValue, 1)
			}
		}
	}
	for _, fn := range src.Functions {
		raise(FeatureRepeatExecution, 2)
		if fn.Called {
			raise(FeatureRepeatExecution, 3)
		}
		if len(fn.Params) > 0 {
			raise(FeatureVariables, 3)
		}
	}
	depth := min(maxDepth, 3)
	breadth := 0
	for feature, value := range f {
		if feature != FeatureErrors && value > 0 {
			breadth += value
		}
	}
	return Results{Features: f, Depth: Depth{Depth: depth, Breadth: breadth}, Counts: counts}
}

// ContainsWord reports whether word occurs in s delimited by non-identifier
// characters.
func ContainsWord(s, word string) bool {
	if word == "" {
		return false
	}
	for from := 0; from < len(s); {
		idx := strings.Index(s[from:], word)
		if idx < 0 {
			return false
		}
		start := from + idx
		end := start + len(word)
		if (start == 0 || !isIdentByte(s[start-1])) && (end == len(s) || !isIdentByte(s[end])) {
			return true
		}
		from = start + 1
	}
	return false
}

func isIdentByte(c byte) bool {
	return c == '_' || c == '$' || c >= '0' && c <= '9' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z'
}
