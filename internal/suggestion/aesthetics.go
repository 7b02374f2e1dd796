package suggestion

import (
	"fmt"

	"github.com/samber/lo"

	"github.com/ashureev/cadence/internal/projectmodel"
)

// aesthetics suggests musical changes: new sounds, a longer song, missing
// instruments, a different form or effects.
func (g *Generator) aesthetics(c Context) Recommendation {
	model := c.model()
	report := c.Report
	var opts options
	content := map[string]Recommendation{}
	offer := func(key string, rec Recommendation, maxWeight, minWeight float64) {
		content[key] = rec
		opts.set(key, g.addWeight(rec, maxWeight, minWeight))
	}

	if len(c.SoundRecommendations) == 0 {
		offer("sound", g.content.Nuclei["oneSound"], 0.1, 0.1)
	} else {
		names := g.content.nucleusNames()
		offer("sounds", g.content.Nuclei[names[g.rnd.IntN(len(names))]], 0.1, 0.1)
	}

	if report.Empty() || report.Overview.Measures < model.LengthMeasures || report.Overview.LengthSeconds < model.LengthSeconds {
		offer("addMeasures", g.content.Aesthetics["addMeasures"], defaultMaxWeight, defaultMinWeight)
	}

	if recs := instrumentSuggestions(c, model); len(recs) > 0 {
		offer("instrument", g.pick(recs), 0.30, 0.15)
	}

	if !report.Empty() {
		if rec, ok := g.formSuggestion(report.Form(), model.Form); ok {
			offer("form", rec, defaultMaxWeight, defaultMinWeight)
		}
		if len(model.Instrument) == 0 {
			if rec, ok := g.content.Aesthetics["selectInstrument"]; ok {
				offer("selectInstrument", rec, defaultMinWeight, defaultMinWeight)
			}
		}
	}

	if report != nil && report.Overview.Measures > 0 {
		if model.API["setEffect"] > 0 {
			offer("effect", g.content.Aesthetics["effect"], 0.15, 0.05)
		} else {
			offer("effect", g.content.Aesthetics["effect"], 0.3, 0.1)
		}
	}

	key := g.weightedRandom(opts, opts[0].key)
	return content[key]
}

// instrumentSuggestions finds sections missing an instrument the student
// wants, or one heard elsewhere in the song when no goal is set.
func instrumentSuggestions(c Context, model *projectmodel.Model) []Recommendation {
	report := c.Report
	if report.Empty() || c.InstrumentOf == nil {
		return nil
	}
	var out []Recommendation
	for i, section := range report.Sections {
		wanted := model.Instrument
		if len(wanted) == 0 {
			other := report.Sections[0]
			for j, s := range report.Sections {
				if j != i {
					other = s
					break
				}
			}
			wanted = report.Instruments(other.Start, other.End)
		}
		present := lo.Map(section.Sounds, func(sound string, _ int) string {
			return c.InstrumentOf(sound)
		})
		for _, instrument := range lo.Without(wanted, present...) {
			out = append(out, Recommendation{
				ID:        302,
				Utterance: fmt.Sprintf("measures %d-%d could use some %s sounds", section.Start, section.End, instrument),
				Explain:   "we can add more sounds to a section using [LINK|fitMedia]. we can check the sound browser for " + instrument + " sounds",
				ExamplePY: fmt.Sprintf("[LINK|fitMedia](sound, track, %d, %d)", section.Start, section.End),
				ExampleJS: fmt.Sprintf("[LINK|fitMedia](sound, track, %d, %d);", section.Start, section.End),
			})
		}
	}
	return out
}

// formSuggestion compares the song form against the goal, or against a random
// known form when there is no goal.
func (g *Generator) formSuggestion(form, required string) (Recommendation, bool) {
	goal := required
	if goal == "" {
		goal = projectmodel.AllForms[g.rnd.IntN(len(projectmodel.AllForms))]
	}
	if form == "" || form == goal {
		return Recommendation{}, false
	}
	utterance := fmt.Sprintf("our project looks like '%s' form. how about making it '%s' by adding or removing a [LINK|section]?", form, goal)
	if required != "" {
		utterance = fmt.Sprintf("we want '%s' form, but our project looks more like '%s' form. how about adding or removing a [LINK|section]?", goal, form)
	}
	const example = "intros, verses, choruses, and outros are examples of [LINK|section]s."
	return Recommendation{
		ID:        303,
		Utterance: utterance,
		Explain:   "a [LINK|section] is made up of several measures (musical time units), and it expresses an idea or feeling. usually, musicians try to add contrast between different sections",
		ExamplePY: example,
		ExampleJS: example,
	}, true
}
