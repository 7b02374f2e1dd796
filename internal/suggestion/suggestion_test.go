package suggestion

import (
	"math/rand/v2"
	"slices"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashureev/cadence/internal/codeinfo"
	"github.com/ashureev/cadence/internal/music"
	"github.com/ashureev/cadence/internal/projectmodel"
)

func newTestGenerator(seed uint64) *Generator {
	return NewGenerator(DefaultContent(), rand.New(rand.NewPCG(seed, seed+1)))
}

func TestAdjustWeightKeepsSumAtOne(t *testing.T) {
	t.Parallel()

	g := newTestGenerator(1)
	g.AdjustWeight(NewCode, -0.2)
	w := g.Weights()
	assert.InDelta(t, 1.0/3-0.2, w[NewCode], 1e-9)
	assert.InDelta(t, 1.0, w[NewCode]+w[AdvanceCode]+w[Aesthetics], 1e-9)
	assert.InDelta(t, w[AdvanceCode], w[Aesthetics], 1e-9)

	g.AdjustWeight(NewCode, -1)
	assert.Zero(t, g.Weights()[NewCode])
	// A zeroed module resets the table before the next adjustment.
	g.AdjustWeight(AdvanceCode, 0)
	assert.InDelta(t, 1.0/3, g.Weights()[NewCode], 1e-9)
}

func TestGenerateRecordsHistoryAndModule(t *testing.T) {
	t.Parallel()

	g := newTestGenerator(2)
	rec := g.Generate(Context{Language: codeinfo.Python}, Aesthetics)
	assert.Equal(t, Aesthetics, rec.Module)
	require.Len(t, g.History(), 1)
	assert.Less(t, g.Weights()[Aesthetics], 1.0/3)
}

func TestAestheticsFirstSuggestionIsASoundOrLength(t *testing.T) {
	t.Parallel()

	for seed := uint64(0); seed < 20; seed++ {
		g := newTestGenerator(seed)
		rec := g.Generate(Context{}, Aesthetics)
		assert.Contains(t, []int{55, 300}, rec.ID)
	}
}

func TestAestheticsInstrumentAndForm(t *testing.T) {
	t.Parallel()

	model := projectmodel.Default()
	require.NoError(t, model.Update(projectmodel.Instrument, "BASS"))
	require.NoError(t, model.Update(projectmodel.Form, "ABA"))
	report := &music.Report{
		Overview: music.Overview{Measures: 16, LengthSeconds: 40},
		Sections: []music.Section{
			{Label: "A", Start: 1, End: 8, Sounds: []string{"DRUMS_1"}},
			{Label: "B", Start: 9, End: 16, Sounds: []string{"BASS_1"}},
		},
	}
	c := Context{
		Model:                model,
		Report:               report,
		SoundRecommendations: []string{"X"},
		InstrumentOf: func(s string) string {
			return strings.Split(s, "_")[0]
		},
	}

	recs := instrumentSuggestions(c, model)
	require.Len(t, recs, 1)
	assert.Equal(t, "measures 1-8 could use some BASS sounds", recs[0].Utterance)

	g := newTestGenerator(3)
	form, ok := g.formSuggestion(report.Form(), model.Form)
	require.True(t, ok)
	assert.Contains(t, form.Utterance, "we want 'ABA' form")

	seen := map[int]bool{}
	for seed := uint64(0); seed < 60; seed++ {
		seen[newTestGenerator(seed).Generate(c, Aesthetics).ID] = true
	}
	assert.True(t, seen[302])
	assert.False(t, seen[300], "long enough songs are not asked to grow")
}

func TestNewCodeFollowsCurriculum(t *testing.T) {
	t.Parallel()

	features := codeinfo.Features{codeinfo.FeatureVariables: 1, codeinfo.FeatureMakeBeat: 1}
	g := newTestGenerator(4)
	assert.Equal(t, []int{2, 5}, g.nextCurriculumItems(features))

	for seed := uint64(0); seed < 20; seed++ {
		rec := newTestGenerator(seed).Generate(Context{Results: codeinfo.Results{Features: features}}, NewCode)
		assert.Contains(t, []int{202, 205}, rec.ID)
	}

	// Concepts the student rarely used elsewhere come back as candidates.
	recent := []codeinfo.Features{{codeinfo.FeatureConsoleInput: 1}}
	assert.Equal(t, []int{11}, g.itemsFromRecentProjects(features, recent))
}

func TestAdvanceCodeFindsRepetitionAndUnusedCode(t *testing.T) {
	t.Parallel()

	script := `from earsketch import *
unused = 5
def chorus(start):
    fitMedia(HIPHOP_DUSTYGROOVE_007, 1, start, start + 4)
fitMedia(POP_GLOW_DRUMS_001, 1, 1, 5)
fitMedia(POP_GLOW_DRUMS_001, 1, 9, 13)
for m in range(1, 9):
    m += 1
`
	src := codeinfo.Scan(codeinfo.Python, script)
	mods := modularizeSuggestions(src)
	ids := make([]int, 0, len(mods))
	for _, r := range mods {
		ids = append(ids, r.ID)
	}
	assert.ElementsMatch(t, []int{410, 412}, ids)

	loops := loopSuggestions(src)
	require.Len(t, loops, 1)
	assert.Contains(t, loops[0].Utterance, "POP_GLOW_DRUMS_001")

	steps := stepSuggestions(src)
	require.Len(t, steps, 1)
	assert.Equal(t, "maybe we should add a step function since you change m on line 8", steps[0].Utterance)
}

func TestAdvanceCodeReplacesElif(t *testing.T) {
	t.Parallel()

	model := projectmodel.Default()
	model.ComplexityGoals[codeinfo.FeatureConditionals] = 3
	features := codeinfo.Features{codeinfo.FeatureConditionals: 2}
	for _, lang := range []codeinfo.Language{codeinfo.Python, codeinfo.JavaScript} {
		g := newTestGenerator(5)
		rec := g.Generate(Context{Language: lang, Model: model, Results: codeinfo.Results{Features: features}}, AdvanceCode)
		require.Equal(t, 405, rec.ID)
		assert.NotContains(t, rec.Utterance, "[ELIF]")
		if lang == codeinfo.JavaScript {
			assert.Contains(t, rec.Utterance, `"else if"`)
		} else {
			assert.Contains(t, rec.Utterance, `"elif"`)
		}
	}
}

func TestRecentAdditions(t *testing.T) {
	t.Parallel()

	g := newTestGenerator(6)
	history := []codeinfo.Features{
		{},
		{codeinfo.FeatureVariables: 1},
		{codeinfo.FeatureVariables: 1},
		{codeinfo.FeatureVariables: 1, codeinfo.FeatureConditionals: 1},
	}
	assert.Equal(t, []codeinfo.Feature{codeinfo.FeatureConditionals, codeinfo.FeatureVariables}, g.recentAdditions(history))
}

func TestNucleusNamesAreSorted(t *testing.T) {
	t.Parallel()

	c := DefaultContent()
	names := c.nucleusNames()
	require.Len(t, names, len(c.Nuclei))
	assert.True(t, slices.IsSorted(names))
}
