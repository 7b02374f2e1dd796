package dialogue

import (
	"context"
	"strings"

	"github.com/samber/lo"

	"github.com/ashureev/cadence/internal/history"
	"github.com/ashureev/cadence/internal/projectmodel"
	"github.com/ashureev/cadence/internal/recommend"
	"github.com/ashureev/cadence/internal/utterance"
)

// bareSoundRecs counts the [sound_rec] placeholders still waiting for a sound.
func bareSoundRecs(tpl utterance.Template) int {
	return lo.CountBy(tpl, func(tok utterance.Token) bool {
		return tok.Keyword == utterance.KeywordSoundRec && len(tok.Args) == 0
	})
}

// recommendSounds fills every [sound_rec] placeholder with a recommended
// sound and appends the recommendations to a [SOUNDWAIT] directive. When the
// recommender cannot supply enough sounds the whole text is replaced with an
// apology.
func (e *Engine) recommendSounds(ctx context.Context, s *Session, tpl utterance.Template, params []any) (utterance.Template, []any) {
	if !s.node.hasTarget(e.content.Roles.FitMediaHelp) {
		s.node.Options = append(s.node.Options,
			NodeOption(e.content.Roles.FitMediaHelp),
			NodeOption(e.content.Roles.InstrumentSelect))
	}

	genres, instruments, limitParams := e.soundLimits(s)
	params = append(params, limitParams...)

	count := bareSoundRecs(tpl)
	inputs := e.rec.InputsFromScript(s.source)
	if rep := s.report(); s.section != "" && !rep.Empty() {
		inSection := rep.SectionSounds(s.section)
		inputs = lo.Filter(inputs, func(name string, _ int) bool { return lo.Contains(inSection, name) })
	}
	if len(inputs) == 0 {
		inputs = e.rec.RandomInputs(inputs)
	}
	if len(s.recHistory) >= e.rec.Size() {
		s.recHistory = nil
	}

	recs, err := e.rec.Recommend(ctx, recommend.Request{
		Inputs:      inputs,
		Genres:      genres,
		Instruments: instruments,
		Exclude:     s.recHistory,
		Count:       count,
	})
	if err != nil {
		e.log.Warn("sound recommendation failed", "project", s.project, "error", err)
		recs = nil
	}
	if len(recs) > count {
		recs = recs[:count]
	}
	s.recHistory = append(s.recHistory, recs...)
	params = append(params, []any{utterance.KeywordSoundRec, recs})

	if len(recs) < count {
		return utterance.Parse(outOfIdeas), params
	}
	s.pendingSounds = append(s.pendingSounds, recs)

	next := 0
	tpl = tpl.Expand(utterance.KeywordSoundRec, func(tok utterance.Token) string {
		if len(tok.Args) > 0 {
			return tok.String()
		}
		name := recs[next]
		next++
		return "[" + utterance.KeywordSoundRec + "|" + name + "]"
	})
	tpl = tpl.Expand("SOUNDWAIT", func(tok utterance.Token) string {
		return "[SOUNDWAIT|" + tok.Arg(0) + "|" + strings.Join(recs, "|") + "]"
	})
	return tpl, params
}

// soundLimits picks the genre and instrument limits: the node's own
// parameters first, then those remembered from an earlier node, then the
// project model. Node parameters are remembered and reported.
func (e *Engine) soundLimits(s *Session) (genres, instruments []string, params []any) {
	pick := func(fromNode string, remembered *string, prop projectmodel.Property, name string) []string {
		switch {
		case fromNode != "":
			*remembered = fromNode
			params = append(params, []any{name, fromNode})
			return []string{fromNode}
		case *remembered != "":
			return []string{*remembered}
		default:
			return s.model.Values(prop)
		}
	}
	genres = pick(s.node.Params.Genre, &s.recGenre, projectmodel.Genre, "genre")
	instruments = pick(s.node.Params.Instrument, &s.recInstrument, projectmodel.Instrument, "instrument")
	return genres, instruments, params
}

// recordUsedSounds reports recommended sounds that made it into the script
// and forgets them.
func (e *Engine) recordUsedSounds(s *Session, inputs []string) {
	if len(s.pendingSounds) == 0 {
		return
	}
	pending := s.pendingSounds[:0]
	for _, batch := range s.pendingSounds {
		used, unused := lo.FilterReject(batch, func(name string, _ int) bool { return lo.Contains(inputs, name) })
		for _, name := range used {
			s.soundsUsedCount++
			e.record(s, history.E(history.LabelSoundUsed, name), "")
		}
		if len(unused) > 0 {
			pending = append(pending, unused)
		}
	}
	s.pendingSounds = pending
}
