package dialogue

import (
	"fmt"
	"slices"
	"strings"

	"github.com/samber/lo"

	"github.com/ashureev/cadence/internal/projectmodel"
	"github.com/ashureev/cadence/internal/recommend"
)

const (
	dropupGenre      = "genre"
	dropupInstrument = "instrument"
	curriculumButton = "curriculumButton"
)

// CreateButtons returns the replies offered at the active node. Generator
// options are expanded into fresh nodes, which become the node's options.
func (e *Engine) CreateButtons(project string) ([]Button, error) {
	s, err := e.lock(project)
	if err != nil {
		return nil, err
	}
	defer s.mu.Unlock()
	return e.buttons(s), nil
}

func (e *Engine) buttons(s *Session) []Button {
	if s.node == nil {
		s.dropup = ""
		return []Button{}
	}
	n := s.node
	s.dropup = n.Dropup
	if len(n.Options) == 0 {
		return []Button{}
	}
	if n.ID == e.content.Roles.BeginSuggestion && s.suggestion == nil {
		return slices.Clone(e.content.IdleButtons)
	}

	var buttons []Button
	if n.Options[0].Kind == OptionSynth {
		buttons = e.synthButtons(s, n.Options[0])
	} else {
		buttons = e.nodeButtons(s)
	}
	return e.withHighlightHelp(s, buttons)
}

// nodeButtons maps node options to buttons. Genre and instrument lists only
// offer what the sound catalog holds; the explain and example replies only
// appear when the pending suggestion has them.
func (e *Engine) nodeButtons(s *Session) []Button {
	var (
		available []string
		filter    bool
	)
	switch s.node.Dropup {
	case dropupGenre:
		available, filter = e.rec.Available(recommend.FieldGenre), true
	case dropupInstrument:
		available, filter = e.rec.Available(recommend.FieldInstrument), true
	}

	roles := e.content.Roles
	buttons := make([]Button, 0, len(s.node.Options))
	for _, o := range s.node.Options {
		id := o.Target(s.language)
		if id == "" {
			continue
		}
		target, ok := e.lookup(s, id)
		if !ok {
			e.log.Warn("dialogue option points at unknown node", "project", s.project, "node", s.node.ID, "option", id)
			continue
		}
		if filter && !lo.Contains(available, strings.ToUpper(target.Title)) {
			continue
		}
		if id == roles.SuggestionExplain && (s.suggestion == nil || s.suggestion.Explain == "") {
			continue
		}
		if id == roles.SuggestionExample && (s.suggestion == nil || s.suggestion.Example(s.language) == "") {
			continue
		}
		buttons = append(buttons, Button{Label: target.Title, Value: string(id)})
	}
	return buttons
}

// synthButtons generates one node per choice from the option's template and
// makes them the active node's options. Nodes generated for an earlier
// choice are dropped; ids keep increasing.
func (e *Engine) synthButtons(s *Session, opt Option) []Button {
	template, ok := e.content.Node(opt.Node)
	if !ok {
		e.log.Warn("dialogue generator template missing", "project", s.project, "template", opt.Node)
		return []Button{}
	}
	clear(s.synth)

	var (
		options []Option
		buttons []Button
	)
	add := func(title string, p Params) {
		n := s.synthesize(template)
		n.Title = title
		n.Params = p
		options = append(options, NodeOption(n.ID))
		buttons = append(buttons, Button{Label: title, Value: string(n.ID)})
	}
	addAuthored := func(id NodeID, title string) {
		if title == "" {
			if n, ok := e.content.Node(id); ok {
				title = n.Title
			}
		}
		options = append(options, NodeOption(id))
		buttons = append(buttons, Button{Label: title, Value: string(id)})
	}

	switch opt.Synth {
	case SynthSections:
		rep := s.report()
		if rep == nil || len(rep.Sections) == 0 {
			addAuthored(e.content.Roles.WholeSong, "the whole song")
			break
		}
		for _, sec := range rep.Sections {
			add(fmt.Sprintf("Section %s between measures %d and %d", sec.Label, sec.Start, sec.End), Params{Section: sec.Label})
		}

	case SynthProperties:
		for _, p := range projectmodel.AllProperties {
			limit := len(e.propertyOptions(p))
			if p == projectmodel.Form {
				limit = 1
			}
			if len(s.model.Values(p)) < limit {
				add(e.content.Properties.Button(p), Params{Property: p})
			}
		}
		if len(s.model.Properties()) > 0 {
			addAuthored(e.content.Roles.ChangeIdeas, "")
		}

	case SynthPropertyValues:
		if s.property == 0 {
			break
		}
		s.dropup = s.property.DropupLabel()
		for _, v := range e.propertyOptions(s.property) {
			if !s.model.Has(v) {
				add(v, Params{PropertyValue: v})
			}
		}

	case SynthClearProperty:
		for _, entry := range s.model.Properties() {
			add(entry.Property.String()+": "+entry.Value, Params{Property: entry.Property, PropertyValue: entry.Value})
		}

	case SynthChangeProperty:
		for _, entry := range s.model.Properties() {
			add(entry.Property.String()+": "+entry.Value, Params{Property: entry.Property, ChangePropertyValue: entry.Value})
		}

	case SynthSwapProperty:
		if s.property == 0 {
			break
		}
		s.dropup = s.property.DropupLabel()
		current := s.model.Values(s.property)
		for _, v := range e.propertyOptions(s.property) {
			if v == s.propertyValueToChange || !lo.Contains(current, v) {
				add(v, Params{Property: s.property, PropertyValue: v})
			}
		}
	}

	s.node.Options = options
	if buttons == nil {
		buttons = []Button{}
	}
	return buttons
}

// withHighlightHelp puts the highlight follow-up replies first while a UI
// zone is lit. The curriculum button only counts once the student has
// switched to the curriculum.
func (e *Engine) withHighlightHelp(s *Session, buttons []Button) []Button {
	if s.highlight == "" || (!s.ui.SwitchedToCurriculum && s.highlight == curriculumButton) {
		return buttons
	}
	var extra []Button
	for _, id := range e.content.Roles.HighlightHelp {
		if lo.ContainsBy(buttons, func(b Button) bool { return b.Value == string(id) }) {
			continue
		}
		if n, ok := e.content.Node(id); ok {
			extra = append(extra, Button{Label: n.Title, Value: string(id)})
		}
	}
	return append(extra, buttons...)
}
