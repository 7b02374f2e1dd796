package dialogue

import (
	"context"
	"fmt"
	"strings"

	"github.com/samber/lo"

	"github.com/ashureev/cadence/internal/codeinfo"
	"github.com/ashureev/cadence/internal/history"
	"github.com/ashureev/cadence/internal/projectmodel"
	"github.com/ashureev/cadence/internal/recommend"
	"github.com/ashureev/cadence/internal/suggestion"
	"github.com/ashureev/cadence/internal/utterance"
)

const (
	fixErrorFirst    = "let's fix our error first. "
	sectionQuestion  = "sure, do you want ideas for a specific section?"
	noPropertyIdea   = "i'm not sure what to suggest right now. let's get started working, and then i can come up with some more ideas."
	defaultSection   = "one of our sections"
	codeRequestEvent = "codeRequest"
)

// showNext interprets text against the active node of s and renders it.
// Directives run in a fixed order: node flags and property edits, section
// selection, help topics, suggestions and error explanations, sound
// recommendations, then waits and highlights, which truncate the text.
func (e *Engine) showNext(ctx context.Context, s *Session, text string, prompted bool) ([]utterance.Segment, error) {
	if s.node == nil {
		return []utterance.Segment{}, nil
	}
	node := s.node
	if node.Terminal {
		s.done = true
	}
	for _, ev := range node.Events {
		if ev != codeRequestEvent {
			e.record(s, history.E(history.LabelRequest, ev), "")
		}
	}
	if node.Disengage {
		s.interacted = false
	}

	var params []any
	tpl := e.editProperties(s, utterance.Parse(text))

	if node.ErrorFirst && s.errState.Active() {
		if err := e.enterTree(s, "error"); err != nil {
			return nil, err
		}
		tpl = utterance.Parse(fixErrorFirst + s.node.Utterance)
	}

	tpl, err := e.sectionSelect(s, tpl)
	if err != nil {
		return nil, err
	}
	tpl = e.helpTopic(s, tpl)

	tpl, params, err = e.suggestCode(s, tpl, params, prompted)
	if err != nil {
		return nil, err
	}

	if bareSoundRecs(tpl) > 0 {
		tpl, params = e.recommendSounds(ctx, s, tpl, params)
	}

	tpl = e.setWait(s, tpl)
	tpl = e.highlight(s, tpl)

	segments := tpl.Segments(e.links)
	if len(segments) > 0 {
		if params == nil {
			params = []any{}
		}
		e.record(s, history.E(string(s.node.ID), params), "")
	}
	return segments, nil
}

func (e *Engine) enterTree(s *Session, name string) error {
	id, ok := e.content.Tree(name)
	if !ok {
		return fmt.Errorf("%w: tree %q", ErrUnknownNode, name)
	}
	return e.enter(s, id)
}

// editProperties applies the node's property parameters and the directives
// that edit the project model.
func (e *Engine) editProperties(s *Session, tpl utterance.Template) utterance.Template {
	p := s.node.Params
	if p.Property != 0 {
		s.property = p.Property
	}
	if p.PropertyValue != "" {
		s.propertyValue = p.PropertyValue
	}
	if p.ChangePropertyValue != "" {
		s.propertyValueToChange = p.ChangePropertyValue
	}

	if tpl.Has("RESET_PARAMS") {
		s.recGenre, s.recInstrument, s.section = "", "", ""
		tpl = tpl.Truncate("RESET_PARAMS")
	}
	if tpl.Has("STOREPROPERTY") {
		tpl = tpl.Remove("STOREPROPERTY")
		if s.property != 0 && s.propertyValue != "" {
			e.modelEdit(s, s.model.Update(s.property, s.propertyValue))
		}
		e.record(s, history.E(history.LabelProjectModel, s.model.Clone()), "")
	}
	if tpl.Has("CLEARPROPERTY") {
		tpl = tpl.Remove("CLEARPROPERTY")
		e.modelEdit(s, s.model.Remove(s.property, s.propertyValue))
		e.record(s, history.E(history.LabelProjectModel, s.model.Clone()), "")
	}
	if tpl.Has("REPLACEPROPERTY") {
		tpl = tpl.Remove("REPLACEPROPERTY")
		e.modelEdit(s, s.model.Remove(s.property, s.propertyValueToChange))
		e.modelEdit(s, s.model.Update(s.property, s.propertyValue))
		s.propertyValueToChange = ""
		e.record(s, history.E(history.LabelProjectModel, s.model.Clone()), "")
	}
	if tpl.Has("SUGGESTPROPERTY") {
		idea, ok := e.suggestProperty(s)
		if !ok {
			return utterance.Parse(noPropertyIdea)
		}
		tpl = tpl.Expand("SUGGESTPROPERTY", func(utterance.Token) string { return utterance.Escape(idea) })
	}
	if tpl.Has("CURRENTPROPERTY") {
		name := "the code"
		if s.property != 0 && s.property != projectmodel.CodeStructure {
			name = s.property.String()
		}
		tpl = tpl.Expand("CURRENTPROPERTY", func(utterance.Token) string { return name })
	}
	return tpl
}

func (e *Engine) modelEdit(s *Session, err error) {
	if err != nil {
		e.log.Debug("project model edit skipped", "project", s.project, "error", err)
	}
}

// suggestProperty proposes a value for a property that can still take one.
func (e *Engine) suggestProperty(s *Session) (string, bool) {
	var candidates []projectmodel.Property
	if len(s.model.Values(projectmodel.Genre)) < len(e.propertyOptions(projectmodel.Genre)) {
		candidates = append(candidates, projectmodel.Genre)
	}
	if len(s.model.Values(projectmodel.Form)) == 0 {
		candidates = append(candidates, projectmodel.Form)
	}
	if len(candidates) == 0 {
		return "", false
	}
	prop := candidates[s.rnd.IntN(len(candidates))]
	current := s.model.Values(prop)
	values := lo.Without(e.propertyOptions(prop), current...)
	if len(values) == 0 {
		return "", false
	}
	value := values[s.rnd.IntN(len(values))]
	s.property = prop
	s.propertyValue = value
	if prop == projectmodel.Genre && len(current) > 0 {
		return fmt.Sprintf("what if we also did %s for our %s?", value, prop), true
	}
	return fmt.Sprintf("what if we did %s for our %s?", value, prop), true
}

// propertyOptions lists the values the student can pick for p.
func (e *Engine) propertyOptions(p projectmodel.Property) []string {
	switch p {
	case projectmodel.Genre:
		return e.rec.Available(recommend.FieldGenre)
	case projectmodel.Instrument:
		return e.rec.Available(recommend.FieldInstrument)
	case projectmodel.Form:
		return projectmodel.AllForms
	case projectmodel.CodeStructure:
		return e.content.Properties.CodeStructures
	default:
		return nil
	}
}

// sectionSelect handles [SECTIONSELECT|a,b|n]: with more than one section in
// the latest report the student is asked to choose among a and b, otherwise
// the conversation moves straight to n.
func (e *Engine) sectionSelect(s *Session, tpl utterance.Template) (utterance.Template, error) {
	idx := index(tpl, "SECTIONSELECT")
	if idx < 0 {
		return tpl, nil
	}
	tok := tpl[idx]
	rest := tpl[idx+1:].String()
	if rep := s.report(); rep != nil && len(rep.Sections) > 1 {
		s.node.Options = lo.Map(strings.Split(tok.Arg(0), ","), func(id string, _ int) Option {
			return NodeOption(NodeID(strings.TrimSpace(id)))
		})
		return utterance.Parse(sectionQuestion + rest), nil
	}
	if err := e.enter(s, NodeID(tok.Arg(1))); err != nil {
		return nil, err
	}
	return utterance.Parse(s.node.Utterance + rest), nil
}

// helpTopic updates the session's help topic from the node and expands the
// help directives.
func (e *Engine) helpTopic(s *Session, tpl utterance.Template) utterance.Template {
	if topic := s.node.Params.HelpTopic; topic != nil {
		if *topic != "" {
			s.helpTopic = *topic
		}
	} else {
		s.helpTopic = ""
	}

	if tpl.Has("CLEARSUGGESTION") {
		s.suggestion = nil
		tpl = tpl.Truncate("CLEARSUGGESTION")
	}
	if tpl.Is("GREETING") {
		text := e.content.Greeting.Returning
		if len(s.history) < 2 {
			text = e.content.Greeting.First
		}
		tpl = utterance.Parse(text)
	}
	item, ok := e.content.Help[s.helpTopic]
	if !ok {
		return tpl
	}
	for i, step := range item.Steps {
		if tpl.Is(fmt.Sprintf("STEP%d", i+1)) {
			return utterance.Parse(step)
		}
	}
	if tpl.Is("HELPEXAMPLE") {
		s.helpTopic = ""
		if s.language == codeinfo.JavaScript {
			return utterance.Parse(item.ExampleJS)
		}
		return utterance.Parse(item.ExamplePY)
	}
	return tpl
}

// suggestCode resolves the suggestion directives, the error explanation and
// the section and form placeholders.
func (e *Engine) suggestCode(s *Session, tpl utterance.Template, params []any, prompted bool) (utterance.Template, []any, error) {
	switch {
	case tpl.Has("SUGGESTION"):
		text, id, err := e.generateSuggestion(s, prompted)
		if err != nil {
			return nil, nil, err
		}
		if id != 0 {
			params = append(params, []any{"SUGGESTION", id})
		}
		tpl = utterance.Parse(text)
	case tpl.Has("SUGGESTIONEXPLAIN"):
		if s.suggestion != nil && s.suggestion.Explain != "" {
			params = append(params, []any{s.node.Utterance, s.suggestion.Explain})
			tpl = utterance.Parse(s.suggestion.Explain)
		} else {
			tpl = tpl.Remove("SUGGESTIONEXPLAIN")
		}
	case tpl.Has("SUGGESTIONEXAMPLE"):
		if s.suggestion != nil && s.suggestion.Example(s.language) != "" {
			example := s.suggestion.Example(s.language)
			params = append(params, []any{s.node.Utterance, example})
			tpl = utterance.Parse(example)
		} else {
			tpl = tpl.Remove("SUGGESTIONEXAMPLE")
		}
	}

	if tpl.Has("ERROREXPLAIN") {
		explanation := e.explain.Explain(s.errState)
		params = append(params, []any{"ERROREXPLAIN", explanation})
		tpl = tpl.Expand("ERROREXPLAIN", func(utterance.Token) string { return explanation })
	}
	if tpl.Has("SECTION") {
		tpl = tpl.Expand("SECTION", func(utterance.Token) string { return e.randomSection(s) })
	}
	if tpl.Has("FORM") {
		form, ok := e.nextForm(s)
		if !ok {
			return utterance.Template{}, params, nil
		}
		s.propertyValue = form
		tpl = tpl.Expand("FORM", func(utterance.Token) string { return form })
	}
	return tpl, params, nil
}

// generateSuggestion asks the suggestion generator for the next idea. An open
// compile error takes priority: prompted requests are redirected to the error
// tree, unprompted ones stay silent.
func (e *Engine) generateSuggestion(s *Session, prompted bool) (string, int, error) {
	if s.errState.Active() {
		if !prompted {
			return "", 0, nil
		}
		if err := e.enterTree(s, "error"); err != nil {
			return "", 0, err
		}
		return fixErrorFirst + s.node.Utterance, 0, nil
	}
	if prompted {
		s.interacted = true
		e.record(s, history.E(history.LabelRequest, codeRequestEvent), "")
	}

	var module suggestion.Module
	if s.complexity.Depth.Breadth == 0 {
		module = suggestion.Aesthetics
	}
	rec := s.generator.Generate(e.suggestionContext(s), module)
	if rec.Empty() {
		rec = e.suggestions.Nuclei["oneSound"]
	}
	s.suggestion = &rec

	if tok, ok := utterance.Parse(rec.Utterance).Find("STARTTREE"); ok {
		if err := e.enterTree(s, tok.Arg(0)); err != nil {
			return "", 0, err
		}
		return s.node.Utterance, rec.ID, nil
	}
	return rec.Utterance, rec.ID, nil
}

func (e *Engine) suggestionContext(s *Session) suggestion.Context {
	return suggestion.Context{
		Language:             s.language,
		Source:               s.source,
		Results:              s.complexity,
		Model:                s.model,
		Report:               s.report(),
		History:              s.runs,
		RecentProjects:       e.registry.recentProjects(s.project),
		SoundRecommendations: s.recHistory,
		InstrumentOf:         e.rec.Instrument,
	}
}

func (e *Engine) randomSection(s *Session) string {
	rep := s.report()
	if rep == nil || len(rep.Sections) == 0 {
		return defaultSection
	}
	sec := rep.Sections[s.rnd.IntN(len(rep.Sections))]
	return fmt.Sprintf("the section between measures %d and %d", sec.Start, sec.End)
}

// nextForm picks a song form that extends the form heard in the latest run.
func (e *Engine) nextForm(s *Session) (string, bool) {
	current := s.report().Form()
	forms := lo.Filter(projectmodel.AllForms, func(f string, _ int) bool {
		return strings.HasPrefix(f, current) && f != current
	})
	if len(forms) == 0 {
		return "", false
	}
	return forms[s.rnd.IntN(len(forms))], true
}

// setWait installs the wait encoded in the text, replacing any previous one,
// and cuts the text where the wait begins. Text without a wait clears it.
func (e *Engine) setWait(s *Session, tpl utterance.Template) utterance.Template {
	for _, w := range []struct {
		keyword string
		kind    WaitKind
	}{
		{"WAIT", WaitRun},
		{"ERRORWAIT", WaitError},
		{"SOUNDWAIT", WaitSound},
	} {
		tok, ok := tpl.Find(w.keyword)
		if !ok {
			continue
		}
		s.wait = Wait{Kind: w.kind, Node: NodeID(tok.Arg(0))}
		if w.kind == WaitSound && len(tok.Args) > 1 {
			s.wait.Sounds = append([]string(nil), tok.Args[1:]...)
		}
		return tpl.Truncate(w.keyword)
	}
	s.wait = Wait{}
	return tpl
}

// highlight sets the UI zone to light up and cuts the directive.
func (e *Engine) highlight(s *Session, tpl utterance.Template) utterance.Template {
	if tpl.Has("HIGHLIGHTHISTORY") {
		switch {
		case !s.ui.ScriptBrowserOpen:
			s.highlight = "scripts"
		case s.ui.ActiveTab != "":
			s.highlight = "script:" + s.ui.ActiveTab
		}
		tpl = tpl.Truncate("HIGHLIGHTHISTORY")
	}
	if tpl.Has("HIGHLIGHTSEARCHAPI") {
		s.highlight = "api"
		if s.ui.APIBrowserOpen {
			s.highlight = "apiSearchBar"
		}
		tpl = tpl.Truncate("HIGHLIGHTSEARCHAPI")
	}
	if tpl.Has("HIGHLIGHTSEARCHCURR") {
		s.highlight = "curriculumButton"
		if s.ui.CurriculumOpen {
			s.highlight = "curriculumSearchBar"
		}
		tpl = tpl.Truncate("HIGHLIGHTSEARCHCURR")
	}
	if tpl.Has("CLEARHIGHLIGHT") {
		s.highlight = ""
		tpl = tpl.Truncate("CLEARHIGHLIGHT")
	}
	return tpl
}

func index(tpl utterance.Template, keyword string) int {
	for i, tok := range tpl {
		if tok.Keyword == keyword {
			return i
		}
	}
	return -1
}
