package diagnosis

import (
	_ "embed"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed explanations.yaml
var defaultExplanations []byte

// Explanations maps diagnoses to the sentences the agent says about them.
type Explanations struct {
	Apology    string                       `yaml:"apology"`
	Categories map[string]map[string]string `yaml:"categories"`
	Names      map[string]string            `yaml:"names"`
	Errors     map[string]string            `yaml:"errors"`
}

// LoadExplanations parses an explanation table.
func LoadExplanations(data []byte) (*Explanations, error) {
	var e Explanations
	if err := yaml.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("parse explanations: %w", err)
	}
	if e.Apology == "" {
		return nil, fmt.Errorf("parse explanations: apology is required")
	}
	return &e, nil
}

// DefaultExplanations returns the built-in table.
func DefaultExplanations() *Explanations {
	e, err := LoadExplanations(defaultExplanations)
	if err != nil {
		panic(err)
	}
	return e
}

// Explain picks the best sentence for s: the exact (category, subtype) entry,
// then the name templates with [NAME] filled in, then the raw error type,
// then a generic restatement, and finally the apology.
func (e *Explanations) Explain(s State) string {
	c := s.Classification
	if text, ok := e.Categories[c.Category][c.Subtype]; ok && text != "" {
		return text
	}
	if c.Category == "name" {
		kind, name, found := strings.Cut(c.Subtype, ":")
		if tmpl, ok := e.Names[strings.TrimSpace(kind)]; ok && found {
			return strings.Replace(tmpl, "[NAME]", strings.TrimSpace(name), 1)
		}
	}
	if s.Err != nil {
		if text, ok := e.Errors[s.Err.Type]; ok {
			return text
		}
	}
	if !c.Empty() {
		return "it might be a " + c.String()
	}
	return e.Apology
}
