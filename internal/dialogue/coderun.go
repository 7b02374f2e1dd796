package dialogue

import (
	"context"

	"github.com/samber/lo"

	"github.com/ashureev/cadence/internal/codeinfo"
	"github.com/ashureev/cadence/internal/diagnosis"
	"github.com/ashureev/cadence/internal/history"
	"github.com/ashureev/cadence/internal/music"
	"github.com/ashureev/cadence/internal/suggestion"
	"github.com/ashureev/cadence/internal/utterance"
)

// StatusNewError is returned by HandleError for an error the agent has not
// seen yet.
const StatusNewError = "newError"

const recentDeltas = 3

// StoreErrorInfo diagnoses a failed run and keeps the result as the project's
// open error.
func (e *Engine) StoreErrorInfo(project string, err diagnosis.RuntimeError, source string, lang codeinfo.Language) (diagnosis.Classification, error) {
	s, lockErr := e.lock(project)
	if lockErr != nil {
		return diagnosis.Classification{}, lockErr
	}
	defer s.mu.Unlock()
	c := e.diag.Diagnose(lang, err, source)
	s.errState.Store(err, source, c)
	return c, nil
}

// HandleError records a failed run. It returns "" when the run repeats the
// error the agent is already waiting on, and StatusNewError otherwise.
func (e *Engine) HandleError(project string, err diagnosis.RuntimeError, source string) (string, error) {
	s, lockErr := e.lock(project)
	if lockErr != nil {
		return "", lockErr
	}
	defer s.mu.Unlock()
	e.record(s, history.E(history.LabelCompileError, err.String()), "")
	if s.errState.Same(err) && s.wait.Kind == WaitError {
		return "", nil
	}
	s.source = source
	return StatusNewError, nil
}

// ProcessCodeRun takes in a successful run: the script and the analysis of the
// song it made. It updates the session, reweighs the suggestion modules and
// resumes a waiting conversation. With no wait it makes an unprompted
// suggestion, or points out overlapping sounds, to a student who has talked
// to the agent. The returned segments are what the agent says, if anything.
func (e *Engine) ProcessCodeRun(ctx context.Context, project, source string, report *music.Report) ([]utterance.Segment, error) {
	s, err := e.lock(project)
	if err != nil {
		return nil, err
	}
	defer s.mu.Unlock()

	s.source = source
	s.edits = 0
	inputs := e.rec.InputsFromScript(source)
	e.recordUsedSounds(s, inputs)

	s.complexity = e.scorer.Score(s.language, source)
	s.errState.Clear()
	s.runs = append(s.runs, s.complexity.Features.Clone())
	s.reports = append(s.reports, report)
	if len(s.reports) > maxReports {
		s.reports = s.reports[len(s.reports)-maxReports:]
	}
	e.registry.recordRun(project, s.complexity.Features)
	e.record(s, history.E(history.LabelCompileSuccess), "")

	if !s.interacted {
		return []utterance.Segment{}, nil
	}
	e.reweigh(s, report)

	switch s.wait.Kind {
	case WaitRun, WaitError:
		return e.resume(ctx, s)
	case WaitSound:
		if lo.Some(inputs, s.wait.Sounds) {
			return e.resume(ctx, s)
		}
		return []utterance.Segment{}, nil
	}

	switch {
	case s.helpTopic == "" && len(s.overlaps) == 0:
		return e.startTree(ctx, s, "suggest", false)
	case len(s.overlaps) > 0:
		if err := e.enter(s, e.content.Roles.Overlap); err != nil {
			return nil, err
		}
		return e.showNext(ctx, s, s.node.Utterance, true)
	}
	return []utterance.Segment{}, nil
}

func (e *Engine) resume(ctx context.Context, s *Session) ([]utterance.Segment, error) {
	id := s.wait.Node
	s.wait = Wait{}
	if err := e.enter(s, id); err != nil {
		return nil, err
	}
	return e.showNext(ctx, s, s.node.Utterance, true)
}

// reweigh shifts the suggestion modules toward what the project needs: code
// when goals are unmet or the student has mostly been changing sounds, music
// when the song is empty or the student has mostly been changing code.
func (e *Engine) reweigh(s *Session, report *music.Report) {
	g := s.generator
	unmet := float64(len(s.model.UnmetGoals(s.complexity.Features))) / 10
	g.AdjustWeight(suggestion.NewCode, unmet)
	g.AdjustWeight(suggestion.AdvanceCode, unmet)
	if report.Empty() {
		g.AdjustWeight(suggestion.Aesthetics, 1)
	}

	codeDeltas, soundDeltas := 0, 0
	for i := max(1, len(s.runs)-recentDeltas); i < len(s.runs); i++ {
		codeDeltas += lo.CountBy(codeinfo.AllFeatures, func(f codeinfo.Feature) bool {
			return s.runs[i][f] != s.runs[i-1][f]
		})
	}
	for i := max(1, len(s.reports)-recentDeltas); i < len(s.reports); i++ {
		added, removed := lo.Difference(s.reports[i].AllSounds(), s.reports[i-1].AllSounds())
		if len(added) > 0 || len(removed) > 0 {
			soundDeltas++
		}
	}
	switch {
	case soundDeltas > codeDeltas:
		g.AdjustWeight(suggestion.NewCode, 0.2)
		g.AdjustWeight(suggestion.AdvanceCode, 0.2)
	case codeDeltas > soundDeltas:
		g.AdjustWeight(suggestion.Aesthetics, 0.2)
	}
	g.AdjustWeight(suggestion.AdvanceCode, -0.5*float64(s.complexity.Depth.Breadth)/15)
}
