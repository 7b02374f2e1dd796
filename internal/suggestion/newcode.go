package suggestion

import (
	"slices"
	"sort"
	"strconv"

	"github.com/samber/lo"

	"github.com/ashureev/cadence/internal/codeinfo"
)

// newCode suggests the next concepts in the curriculum that the project does
// not use yet.
func (g *Generator) newCode(c Context) Recommendation {
	current := c.Results.Features
	var opts options
	for _, idx := range g.nextCurriculumItems(current) {
		opts.set(strconv.Itoa(idx), g.addWeight(g.content.NewCode[idx], defaultMaxWeight, defaultMinWeight))
	}
	for _, idx := range g.itemsFromRecentProjects(current, c.RecentProjects) {
		opts.set(strconv.Itoa(idx), g.addWeight(g.content.NewCode[idx], defaultMaxWeight, defaultMinWeight))
	}

	// The step right after the most advanced concept in use.
	next := highestStep(current) + 1
	for !opts.has(strconv.Itoa(next)) && next < lastSuggestible {
		next++
	}
	if rec, ok := g.content.NewCode[next]; ok && next <= lastSuggestible {
		opts.add(strconv.Itoa(next), g.addWeight(rec, defaultMaxWeight, defaultMinWeight))
	}

	goals := c.model().ComplexityGoals
	for _, o := range slices.Clone(opts) {
		idx, _ := strconv.Atoi(o.key)
		for _, step := range curriculum[idx] {
			if goals[step.Feature] == step.Level && step.Level > current[step.Feature] {
				opts.add(o.key, g.addWeight(g.content.NewCode[idx], defaultMaxWeight, defaultMinWeight))
				break
			}
		}
	}

	key := g.weightedRandom(opts, "0")
	idx, _ := strconv.Atoi(key)
	rec, ok := g.content.NewCode[idx]
	if !ok {
		return g.content.NewCode[0]
	}
	return rec
}

// inProject reports whether the first concept of a curriculum step is used.
func inProject(current codeinfo.Features, idx int) bool {
	if idx < 0 || idx >= len(curriculum) {
		return false
	}
	return current[curriculum[idx][0].Feature] > 0
}

func highestStep(current codeinfo.Features) int {
	highest := 0
	for idx, step := range curriculum {
		for _, s := range step {
			if current[s.Feature] > 0 {
				highest = idx
			}
		}
	}
	return highest
}

// nextCurriculumItems finds, for the three most advanced steps in use, the
// next authored step the project does not use yet.
func (g *Generator) nextCurriculumItems(current codeinfo.Features) []int {
	var present []int
	for idx := len(curriculum) - 1; idx >= 0 && len(present) < 3; idx-- {
		for _, s := range curriculum[idx] {
			if current[s.Feature] > 0 {
				present = append(present, idx)
				break
			}
		}
	}

	var out []int
	for _, i := range present {
		j := i + 1
		for j <= lastSuggestible {
			_, authored := g.content.NewCode[j]
			if authored && !inProject(current, j) && !slices.Contains(out, j) {
				break
			}
			j++
		}
		if j <= lastSuggestible {
			out = append(out, j)
		}
	}
	return out
}

// itemsFromRecentProjects returns up to three authored steps for the concepts
// the student used least across other projects.
func (g *Generator) itemsFromRecentProjects(current codeinfo.Features, recent []codeinfo.Features) []int {
	usage := map[codeinfo.Feature]int{}
	for _, features := range recent {
		for f, v := range features {
			if v > 0 {
				usage[f]++
			}
		}
	}
	topics := lo.Filter(codeinfo.AllFeatures, func(f codeinfo.Feature, _ int) bool {
		return usage[f] > 0
	})
	sort.SliceStable(topics, func(i, j int) bool { return usage[topics[i]] < usage[topics[j]] })

	var out []int
	for _, topic := range topics {
		for idx, step := range curriculum {
			if _, authored := g.content.NewCode[idx]; !authored || inProject(current, idx) || slices.Contains(out, idx) {
				continue
			}
			if slices.ContainsFunc(step, func(s goal) bool { return s.Feature == topic }) {
				out = append(out, idx)
			}
		}
		if len(out) >= 3 {
			break
		}
	}
	return out
}
