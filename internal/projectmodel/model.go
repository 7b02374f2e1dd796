// Package projectmodel holds the goals agreed for a project: the musical
// properties the student wants and the code concepts the assignment expects.
package projectmodel

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/samber/lo"

	"github.com/ashureev/cadence/internal/codeinfo"
)

// Property is an editable project goal.
type Property int

const (
	Genre Property = iota + 1
	Instrument
	Form
	CodeStructure
)

var propertyNames = map[Property]string{
	Genre:         "genre",
	Instrument:    "instrument",
	Form:          "form",
	CodeStructure: "code structure",
}

var dropupLabels = map[Property]string{
	Genre:         "genre",
	Instrument:    "instrument",
	Form:          "Forms",
	CodeStructure: "Code Structures",
}

// AllProperties lists the editable properties in display order.
var AllProperties = []Property{Genre, Instrument, Form, CodeStructure}

func (p Property) String() string {
	if name, ok := propertyNames[p]; ok {
		return name
	}
	return fmt.Sprintf("property(%d)", int(p))
}

// DropupLabel is the menu heading shown while picking values for p.
func (p Property) DropupLabel() string {
	return dropupLabels[p]
}

// MarshalText implements encoding.TextMarshaler.
func (p Property) MarshalText() ([]byte, error) {
	if _, ok := propertyNames[p]; !ok {
		return nil, fmt.Errorf("unknown property %d", int(p))
	}
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *Property) UnmarshalText(text []byte) error {
	parsed, err := ParseProperty(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// ParseProperty resolves a property name case-insensitively.
func ParseProperty(s string) (Property, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for p, name := range propertyNames {
		if name == s {
			return p, nil
		}
	}
	return 0, fmt.Errorf("unknown property %q", s)
}

// AllForms are the song forms the agent knows how to suggest.
var AllForms = []string{"ABA", "ABAB", "ABCBA", "ABAC", "ABACAB", "ABBA", "ABCCAB", "ABCAB", "ABCAC", "ABACA", "ABACABA"}

// Entry is one property value in the model.
type Entry struct {
	Property Property `json:"property"`
	Value    string   `json:"value"`
}

// Model is the goal configuration of one project. Zero or empty values mean
// there is no goal.
type Model struct {
	Genre           []string          `json:"genre"`
	Instrument      []string          `json:"instrument"`
	Form            string            `json:"form"`
	CodeStructure   []string          `json:"codeStructure"`
	LengthSeconds   float64           `json:"lengthSeconds"`
	LengthMeasures  int               `json:"lengthMeasures"`
	ComplexityGoals codeinfo.Features `json:"complexityGoals"`
	API             map[string]int    `json:"api"`
}

// Default returns the model every project starts from.
func Default() *Model {
	goals := codeinfo.Features{}
	for _, f := range codeinfo.AllFeatures {
		goals[f] = 0
	}
	goals[codeinfo.FeatureMakeBeat] = 1
	goals[codeinfo.FeatureForLoopsIterable] = 1
	goals[codeinfo.FeatureConditionals] = 1
	goals[codeinfo.FeatureRepeatExecution] = 3
	goals[codeinfo.FeatureConsoleInput] = 1
	return &Model{
		Genre:           []string{},
		Instrument:      []string{},
		CodeStructure:   []string{},
		LengthSeconds:   15,
		ComplexityGoals: goals,
		API:             map[string]int{"makeBeat": 1, "setEffect": 0},
	}
}

// Update adds value to p. List properties ignore duplicates.
func (m *Model) Update(p Property, value string) error {
	switch p {
	case Genre:
		m.Genre = appendUnique(m.Genre, value)
	case Instrument:
		m.Instrument = appendUnique(m.Instrument, value)
	case CodeStructure:
		m.CodeStructure = appendUnique(m.CodeStructure, value)
	case Form:
		m.Form = value
	default:
		return fmt.Errorf("update model: unknown property %d", int(p))
	}
	return nil
}

// Remove deletes one value from p.
func (m *Model) Remove(p Property, value string) error {
	switch p {
	case Genre:
		m.Genre = lo.Without(m.Genre, value)
	case Instrument:
		m.Instrument = lo.Without(m.Instrument, value)
	case CodeStructure:
		m.CodeStructure = lo.Without(m.CodeStructure, value)
	case Form:
		if m.Form == value {
			m.Form = ""
		}
	default:
		return fmt.Errorf("remove property: unknown property %d", int(p))
	}
	return nil
}

// Clear empties p.
func (m *Model) Clear(p Property) {
	switch p {
	case Genre:
		m.Genre = []string{}
	case Instrument:
		m.Instrument = []string{}
	case CodeStructure:
		m.CodeStructure = []string{}
	case Form:
		m.Form = ""
	}
}

// Values returns the values held for p.
func (m *Model) Values(p Property) []string {
	switch p {
	case Genre:
		return slices.Clone(m.Genre)
	case Instrument:
		return slices.Clone(m.Instrument)
	case CodeStructure:
		return slices.Clone(m.CodeStructure)
	case Form:
		if m.Form != "" {
			return []string{m.Form}
		}
	}
	return nil
}

// Properties lists every value currently set, property by property.
func (m *Model) Properties() []Entry {
	var out []Entry
	for _, p := range AllProperties {
		for _, v := range m.Values(p) {
			out = append(out, Entry{Property: p, Value: v})
		}
	}
	return out
}

// Has reports whether any property holds value.
func (m *Model) Has(value string) bool {
	return lo.ContainsBy(m.Properties(), func(e Entry) bool { return e.Value == value })
}

// UnmetGoals lists the complexity goals that features do not reach yet.
func (m *Model) UnmetGoals(features codeinfo.Features) []codeinfo.Feature {
	return lo.Filter(codeinfo.AllFeatures, func(f codeinfo.Feature, _ int) bool {
		goal := m.ComplexityGoals[f]
		return goal > 0 && features[f] < goal
	})
}

// Clone returns a deep copy.
func (m *Model) Clone() *Model {
	out := *m
	out.Genre = slices.Clone(m.Genre)
	out.Instrument = slices.Clone(m.Instrument)
	out.CodeStructure = slices.Clone(m.CodeStructure)
	out.ComplexityGoals = m.ComplexityGoals.Clone()
	out.API = make(map[string]int, len(m.API))
	for k, v := range m.API {
		out.API[k] = v
	}
	return &out
}

// MarshalJSON keeps nil lists as empty arrays in history records.
func (m *Model) MarshalJSON() ([]byte, error) {
	type plain Model
	c := m.Clone()
	if c.Genre == nil {
		c.Genre = []string{}
	}
	if c.Instrument == nil {
		c.Instrument = []string{}
	}
	if c.CodeStructure == nil {
		c.CodeStructure = []string{}
	}
	return json.Marshal((*plain)(c))
}

func appendUnique(list []string, value string) []string {
	if value == "" || slices.Contains(list, value) {
		return list
	}
	return append(list, value)
}
