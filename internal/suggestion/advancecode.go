package suggestion

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/samber/lo"

	"github.com/ashureev/cadence/internal/codeinfo"
)

var (
	clipCallPattern = regexp.MustCompile(`\b(fitMedia|makeBeat)\s*\(\s*([A-Za-z_$][\w$]*)`)
	pyRangeFor      = regexp.MustCompile(`^\s*for\s+([A-Za-z_]\w*)\s+in\s+range\s*\(`)
	jsCountFor      = regexp.MustCompile(`^\s*for\s*\([^;]*;\s*([A-Za-z_$][\w$]*)\s*[<>!=]`)
	callAssign      = regexp.MustCompile(`^([A-Za-z_$][\w$]*)\s*\(`)
)

// advanceCode suggests deeper use of the concepts the project already has.
func (g *Generator) advanceCode(c Context) Recommendation {
	current := c.Results.Features
	src := codeinfo.Scan(c.Language, c.Source)
	var opts options
	content := map[string]Recommendation{}
	offer := func(key string, rec Recommendation, accumulate bool) {
		content[key] = rec
		w := g.addWeight(rec, defaultMaxWeight, defaultMinWeight)
		if accumulate {
			opts.add(key, w)
			return
		}
		opts.set(key, w)
	}

	goals := c.model().ComplexityGoals
	for _, f := range codeinfo.AllFeatures {
		if current[f] > 0 && current[f] < goals[f] {
			key := fmt.Sprintf("%s%d", f, current[f]+1)
			if rec, ok := g.content.AdvanceCode[key]; ok {
				offer(key, rec, false)
			}
		}
	}

	for _, topic := range g.recentAdditions(c.History) {
		key := fmt.Sprintf("%s%d", topic, current[topic]+1)
		if rec, ok := g.content.AdvanceCode[key]; ok {
			offer(key, rec, true)
		}
	}

	if recs := modularizeSuggestions(src); len(recs) > 0 {
		offer("modularize", g.pick(recs), false)
	}
	if c.Report != nil && len(c.Report.Sections) > 1 && len(src.Functions) == 0 {
		offer("function", simple(413, "we can store the code that creates one of our sections as a custom function so we can reuse it"), false)
	}
	if recs := loopSuggestions(src); len(recs) > 0 {
		offer("loop", g.pick(recs), false)
	}
	if recs := stepSuggestions(src); len(recs) > 0 {
		offer("step", g.pick(recs), false)
	}
	if len(opts) == 0 {
		offer("function", simple(417, "adding a [LINK|function] can help us reuse our code multiple times"), false)
	}

	rec := content[g.weightedRandom(opts, opts[0].key)]
	elif := "elif"
	if c.Language == codeinfo.JavaScript {
		elif = "else if"
	}
	rec.Utterance = strings.ReplaceAll(rec.Utterance, "[ELIF]", elif)
	return rec
}

func simple(id int, utterance string) Recommendation {
	return Recommendation{ID: id, Utterance: utterance}
}

// recentAdditions returns up to three concepts that first appeared in the
// most recent runs, newest first.
func (g *Generator) recentAdditions(history []codeinfo.Features) []codeinfo.Feature {
	var deltas [][]codeinfo.Feature
	if len(history) > 0 {
		prior := history[0]
		for _, run := range history[1:] {
			added := lo.Filter(codeinfo.AllFeatures, func(f codeinfo.Feature, _ int) bool {
				return prior[f] == 0 && run[f] > 0
			})
			if len(added) > 0 {
				deltas = append(deltas, added)
				prior = run
			}
		}
	}

	var out []codeinfo.Feature
	for i := len(deltas) - 1; i >= 0 && len(out) < 3; i-- {
		topics := deltas[i]
		if len(out)+len(topics) <= 3 {
			out = append(out, topics...)
			continue
		}
		topics = append([]codeinfo.Feature(nil), topics...)
		for len(out) < 3 && len(topics) > 0 {
			j := g.rnd.IntN(len(topics))
			out = append(out, topics[j])
			topics = append(topics[:j], topics[j+1:]...)
		}
	}
	return out
}

// modularizeSuggestions flags functions that are never called and variables
// that are never read.
func modularizeSuggestions(src *codeinfo.Source) []Recommendation {
	var out []Recommendation
	for _, fn := range src.Functions {
		if !fn.Called {
			out = append(out, simple(410, "i think you can modularize your code by calling "+fn.Name+" at least once"))
		}
	}
	for _, v := range src.Variables {
		if v.Name == "" || len(v.Assignments) == 0 || v.Assignments[0].Loop || len(src.Uses(v.Name)) > 0 {
			continue
		}
		if _, isFunc := src.Function(v.Name); isFunc {
			continue
		}
		first := v.Assignments[0].Value
		if m := callAssign.FindStringSubmatch(first); m != nil {
			if _, ok := src.Function(m[1]); ok {
				out = append(out, simple(411, "looks like there's a defined variable using function return data but it hasn't been called yet: "+v.Name))
				continue
			}
		}
		out = append(out, simple(412, "looks like there's a defined variable but it hasn't been called yet: "+v.Name))
	}
	return out
}

// loopSuggestions flags clips placed by several calls of the same function.
func loopSuggestions(src *codeinfo.Source) []Recommendation {
	type call struct{ fn, clip string }
	counts := map[call]int{}
	var order []call
	for _, line := range src.Lines {
		line = codeinfo.StripComment(src.Language, line)
		for _, m := range clipCallPattern.FindAllStringSubmatch(line, -1) {
			k := call{m[1], m[2]}
			if counts[k] == 0 {
				order = append(order, k)
			}
			counts[k]++
		}
	}
	var out []Recommendation
	for _, k := range order {
		if counts[k] > 1 {
			out = append(out, simple(414, "we have a few lines using "+k.clip+". we could try putting in a loop to do this with fewer lines of code"))
		}
	}
	return out
}

// stepSuggestions flags counting loops whose body changes the loop variable.
func stepSuggestions(src *codeinfo.Source) []Recommendation {
	var out []Recommendation
	for i, raw := range src.Lines {
		line := codeinfo.StripComment(src.Language, raw)
		var name string
		var id int
		if src.Language == codeinfo.JavaScript {
			m := jsCountFor.FindStringSubmatch(line)
			if m == nil {
				continue
			}
			name, id = m[1], 415
		} else {
			m := pyRangeFor.FindStringSubmatch(line)
			if m == nil {
				continue
			}
			name, id = m[1], 416
		}
		change := regexp.MustCompile(`^\s*` + regexp.QuoteMeta(name) + `\s*([-+*/%]=|\+\+|--)`)
		for j := i + 1; j <= loopEnd(src, i); j++ {
			if change.MatchString(src.Lines[j]) {
				out = append(out, simple(id, fmt.Sprintf("maybe we should add a step function since you change %s on line %d", name, j+1)))
			}
		}
	}
	return out
}

// loopEnd returns the last body line of the loop declared on line start.
func loopEnd(src *codeinfo.Source, start int) int {
	if src.Language == codeinfo.JavaScript {
		depth := 0
		opened := false
		for j := start; j < len(src.Lines); j++ {
			for _, ch := range codeinfo.StripComment(src.Language, src.Lines[j]) {
				switch ch {
				case '{':
					depth++
					opened = true
				case '}':
					depth--
				}
			}
			if opened && depth <= 0 {
				return j
			}
		}
		return len(src.Lines) - 1
	}
	indent := codeinfo.LeadingSpaces(src.Lines[start])
	end := start
	for j := start + 1; j < len(src.Lines); j++ {
		if strings.TrimSpace(src.Lines[j]) == "" {
			continue
		}
		if codeinfo.LeadingSpaces(src.Lines[j]) <= indent {
			break
		}
		end = j
	}
	return end
}
