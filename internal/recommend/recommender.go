package recommend

import (
	"context"
	"math/rand/v2"
	"slices"
	"sort"
	"strings"
	"sync"

	"github.com/lithammer/fuzzysearch/fuzzy"
	"github.com/samber/lo"
)

const (
	candidatePool = 200
	randomInputs  = 5
)

// Field selects a catalog attribute.
type Field int

const (
	FieldGenre Field = iota
	FieldInstrument
)

// Request describes one recommendation query. Limits are relaxed from the
// end, genres first, until enough sounds are found.
type Request struct {
	Inputs      []string
	Genres      []string
	Instruments []string
	Exclude     []string
	Count       int
}

// Recommender suggests sounds for a set of input sounds.
type Recommender interface {
	Recommend(ctx context.Context, req Request) ([]string, error)
	RandomInputs(existing []string) []string
	InputsFromScript(text string) []string
	Available(field Field) []string
	Known(name string) bool
	Instrument(name string) string
	Size() int
}

// ContentRecommender scores catalog entries against the input sounds.
type ContentRecommender struct {
	catalog *Catalog

	mu  sync.Mutex
	rnd *rand.Rand
}

// NewContentRecommender builds a recommender over c. A nil rnd is seeded from
// the runtime.
func NewContentRecommender(c *Catalog, rnd *rand.Rand) *ContentRecommender {
	if rnd == nil {
		rnd = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &ContentRecommender{catalog: c, rnd: rnd}
}

// Catalog returns the catalog the recommender draws from.
func (r *ContentRecommender) Catalog() *Catalog {
	return r.catalog
}

// Size is the number of sounds that can be recommended.
func (r *ContentRecommender) Size() int {
	return r.catalog.Len()
}

// Known reports whether name is a catalog sound.
func (r *ContentRecommender) Known(name string) bool {
	_, ok := r.catalog.Lookup(name)
	return ok
}

// Instrument returns the instrument of a catalog sound, or "" when unknown.
func (r *ContentRecommender) Instrument(name string) string {
	s, ok := r.catalog.Lookup(name)
	if !ok {
		return ""
	}
	return s.Instrument
}

// Available lists the distinct values of field, skipping one-shot drum hits.
func (r *ContentRecommender) Available(field Field) []string {
	values := lo.FilterMap(r.catalog.Sounds, func(s Sound, _ int) (string, bool) {
		v := s.Genre
		if field == FieldInstrument {
			v = s.Instrument
		}
		return v, v != "" && v != makeBeatGenre
	})
	return lo.Uniq(values)
}

// InputsFromScript lists catalog sounds named in text, ignoring commented-out
// mentions and one-shot drum hits.
func (r *ContentRecommender) InputsFromScript(text string) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		comment := strings.Index(line, "#")
		if js := strings.Index(line, "//"); js >= 0 && (comment < 0 || js < comment) {
			comment = js
		}
		for _, s := range r.catalog.Sounds {
			if strings.HasPrefix(s.Name, "OS_") || slices.Contains(out, s.Name) {
				continue
			}
			idx := strings.Index(line, s.Name)
			if idx < 0 || comment >= 0 && idx > comment {
				continue
			}
			out = append(out, s.Name)
		}
	}
	return out
}

// RandomInputs tops existing up to five distinct random catalog sounds.
func (r *ContentRecommender) RandomInputs(existing []string) []string {
	out := slices.Clone(existing)
	r.mu.Lock()
	defer r.mu.Unlock()
	for tries := 0; len(out) < randomInputs && tries < 10*randomInputs; tries++ {
		name := r.catalog.Sounds[r.rnd.IntN(len(r.catalog.Sounds))].Name
		if !slices.Contains(out, name) {
			out = append(out, name)
		}
	}
	return out
}

// Search returns catalog names that fuzzily match query, closest first.
func (r *ContentRecommender) Search(query string) []string {
	names := lo.Map(r.catalog.Sounds, func(s Sound, _ int) string { return s.Name })
	ranks := fuzzy.RankFindNormalizedFold(query, names)
	sort.Sort(ranks)
	return lo.Map(ranks, func(rk fuzzy.Rank, _ int) string { return rk.Target })
}

// Recommend returns up to req.Count sounds that are not inputs and were not
// recommended before. The exclusion list is ignored once it covers the whole
// catalog.
func (r *ContentRecommender) Recommend(ctx context.Context, req Request) ([]string, error) {
	count := req.Count
	if count <= 0 {
		count = 3
	}
	exclude := req.Exclude
	if len(exclude) >= r.catalog.Len() {
		exclude = nil
	}
	genres := slices.Clone(req.Genres)
	instruments := slices.Clone(req.Instruments)
	songKey := r.estimateKey(req.Inputs)
	keys := []int{}
	if songKey >= 0 {
		keys = append(keys, songKey)
	}

	var best []string
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		candidates := r.candidates(genres, instruments, keys)
		scores := make(map[string]float64, len(candidates))
		for _, c := range candidates {
			if slices.Contains(exclude, c.Name) || slices.Contains(req.Inputs, c.Name) {
				continue
			}
			scores[c.Name] = r.score(c, req.Inputs, songKey)
		}
		best = lo.Keys(scores)
		sort.Slice(best, func(i, j int) bool {
			if scores[best[i]] != scores[best[j]] {
				return scores[best[i]] > scores[best[j]]
			}
			return best[i] < best[j]
		})
		if len(best) > count {
			best = best[:count]
		}
		if len(best) >= count {
			return best, nil
		}
		switch {
		case len(genres) > 0:
			genres = genres[:len(genres)-1]
		case len(instruments) > 0:
			instruments = instruments[:len(instruments)-1]
		case len(keys) > 0:
			keys = keys[:0]
		default:
			return best, nil
		}
	}
}

func (r *ContentRecommender) candidates(genres, instruments []string, keys []int) []Sound {
	out := lo.Filter(r.catalog.Sounds, func(s Sound, _ int) bool {
		if s.Genre == makeBeatGenre {
			return false
		}
		if len(genres) > 0 && !slices.Contains(genres, s.Genre) {
			return false
		}
		if len(instruments) > 0 && !slices.Contains(instruments, s.Instrument) {
			return false
		}
		// Unpitched sounds fit any key.
		return len(keys) == 0 || s.keyNumber < 0 || slices.Contains(keys, s.keyNumber)
	})
	r.mu.Lock()
	r.rnd.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	r.mu.Unlock()
	if len(out) > candidatePool {
		out = out[:candidatePool]
	}
	return out
}

// score rewards sounds that share a genre with the inputs, add an instrument
// the inputs lack, and sit in or next to the song key.
func (r *ContentRecommender) score(c Sound, inputs []string, songKey int) float64 {
	total := 0.0
	for _, name := range inputs {
		in, ok := r.catalog.Lookup(name)
		if !ok {
			continue
		}
		if in.Genre == c.Genre {
			total++
		}
		if in.Artist != "" && in.Artist == c.Artist {
			total += 0.5
		}
		if in.Instrument == c.Instrument {
			total -= 0.5
		}
	}
	if songKey >= 0 && c.keyNumber >= 0 {
		switch c.keyNumber {
		case songKey:
			total += 3 * c.KeyConfidence
		case RelativeKey(songKey):
			total += 2 * c.KeyConfidence
		}
	}
	return total
}

// estimateKey returns the most common key among inputs, lowest on ties, or -1.
func (r *ContentRecommender) estimateKey(inputs []string) int {
	counts := map[int]int{}
	for _, name := range inputs {
		if s, ok := r.catalog.Lookup(name); ok && s.keyNumber >= 0 {
			counts[s.keyNumber]++
		}
	}
	best, bestCount := -1, 0
	for k, n := range counts {
		if n > bestCount || n == bestCount && k < best {
			best, bestCount = k, n
		}
	}
	return best
}
