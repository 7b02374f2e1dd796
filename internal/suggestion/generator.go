package suggestion

import (
	"math/rand/v2"
	"slices"

	"github.com/ashureev/cadence/internal/codeinfo"
	"github.com/ashureev/cadence/internal/music"
	"github.com/ashureev/cadence/internal/projectmodel"
)

// Module names a suggestion source.
type Module string

const (
	NewCode     Module = "newCode"
	AdvanceCode Module = "advanceCode"
	Aesthetics  Module = "aesthetics"
)

// Modules lists every module in selection order.
var Modules = []Module{NewCode, AdvanceCode, Aesthetics}

const (
	usedPenalty = -0.2

	defaultMaxWeight = 0.15
	defaultMinWeight = 0.05
)

// Context is the project snapshot a suggestion is generated from.
type Context struct {
	Language codeinfo.Language
	Source   string
	Results  codeinfo.Results
	Model    *projectmodel.Model
	Report   *music.Report

	// History holds the complexity of earlier runs of this project, oldest first.
	History []codeinfo.Features
	// RecentProjects holds the final complexity of the student's other projects.
	RecentProjects []codeinfo.Features
	// SoundRecommendations are the sounds already recommended in this project.
	SoundRecommendations []string
	// InstrumentOf resolves a sound name to its instrument.
	InstrumentOf func(sound string) string
}

func (c Context) model() *projectmodel.Model {
	if c.Model == nil {
		return projectmodel.Default()
	}
	return c.Model
}

// Generator holds the module weights and suggestion history of one project.
// It is not safe for concurrent use.
type Generator struct {
	content *Content
	rnd     *rand.Rand
	weights map[Module]float64
	history []Recommendation
}

// NewGenerator returns a generator with equal module weights. A nil rnd is
// seeded from the runtime.
func NewGenerator(content *Content, rnd *rand.Rand) *Generator {
	if rnd == nil {
		rnd = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	g := &Generator{content: content, rnd: rnd, weights: make(map[Module]float64, len(Modules))}
	g.ResetWeights()
	return g
}

// Generate produces a suggestion from module, or from a weighted random
// module when module is empty. The chosen module is made less likely next
// time.
func (g *Generator) Generate(c Context, module Module) Recommendation {
	if module == "" {
		module = g.selectModule()
	}
	var rec Recommendation
	switch module {
	case NewCode:
		rec = g.newCode(c)
	case AdvanceCode:
		rec = g.advanceCode(c)
	default:
		module = Aesthetics
		rec = g.aesthetics(c)
	}
	rec.Module = module
	g.AdjustWeight(module, usedPenalty)
	g.history = append(g.history, rec)
	return rec
}

// AdjustWeight moves the weight of m by delta, clamped to [0, 1], and rescales
// the other modules so the weights still sum to one.
func (g *Generator) AdjustWeight(m Module, delta float64) {
	for _, w := range g.weights {
		if w == 0 {
			g.ResetWeights()
			break
		}
	}
	initial := g.weights[m]
	remainder := 0.0
	for _, other := range Modules {
		if other != m {
			remainder += g.weights[other]
		}
	}
	g.weights[m] = min(max(initial+delta, 0), 1)
	applied := g.weights[m] - initial
	if remainder == 0 {
		return
	}
	for _, other := range Modules {
		if other != m {
			g.weights[other] = g.weights[other] / remainder * (remainder - applied)
		}
	}
}

// ResetWeights makes every module equally likely.
func (g *Generator) ResetWeights() {
	for _, m := range Modules {
		g.weights[m] = 1 / float64(len(Modules))
	}
}

// Weights returns a copy of the module weights.
func (g *Generator) Weights() map[Module]float64 {
	out := make(map[Module]float64, len(g.weights))
	for m, w := range g.weights {
		out[m] = w
	}
	return out
}

// History returns the suggestions generated so far.
func (g *Generator) History() []Recommendation {
	return slices.Clone(g.history)
}

func (g *Generator) selectModule() Module {
	var opts options
	for _, m := range Modules {
		opts.set(string(m), g.weights[m])
	}
	return Module(g.weightedRandom(opts, string(Modules[0])))
}

// addWeight favours suggestions that have not been made yet.
func (g *Generator) addWeight(rec Recommendation, maxWeight, minWeight float64) float64 {
	for _, h := range g.history {
		if h.ID == rec.ID {
			return minWeight
		}
	}
	return maxWeight
}

type option struct {
	key    string
	weight float64
}

// options is an insertion-ordered weight table.
type options []option

func (o *options) set(key string, weight float64) {
	for i := range *o {
		if (*o)[i].key == key {
			(*o)[i].weight = weight
			return
		}
	}
	*o = append(*o, option{key: key, weight: weight})
}

func (o *options) add(key string, weight float64) {
	for i := range *o {
		if (*o)[i].key == key {
			(*o)[i].weight += weight
			return
		}
	}
	*o = append(*o, option{key: key, weight: weight})
}

func (o options) has(key string) bool {
	return slices.ContainsFunc(o, func(opt option) bool { return opt.key == key })
}

// weightedRandom picks a key with probability proportional to its weight, or
// fallback when nothing can be picked.
func (g *Generator) weightedRandom(opts options, fallback string) string {
	sum := 0.0
	for _, o := range opts {
		sum += o.weight
	}
	if len(opts) == 0 || sum <= 0 {
		return fallback
	}
	target := g.rnd.Float64() * sum
	cumulative := 0.0
	for _, o := range opts {
		cumulative += o.weight
		if cumulative >= target {
			return o.key
		}
	}
	return opts[len(opts)-1].key
}

func (g *Generator) pick(recs []Recommendation) Recommendation {
	return recs[g.rnd.IntN(len(recs))]
}
