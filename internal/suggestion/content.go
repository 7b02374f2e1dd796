// Package suggestion picks the next idea the agent offers a student: new code
// concepts, refinements of concepts already in use, or musical changes. Three
// modules compete through weights that shift as suggestions are made.
package suggestion

import (
	_ "embed"
	"fmt"
	"os"
	"sort"

	"github.com/samber/lo"
	"gopkg.in/yaml.v3"

	"github.com/ashureev/cadence/internal/codeinfo"
)

//go:embed content.yaml
var defaultContent []byte

// Recommendation is one suggestion with its optional explanation and
// per-language example.
type Recommendation struct {
	ID        int    `yaml:"id" json:"id"`
	Module    Module `yaml:"-" json:"module,omitempty"`
	Utterance string `yaml:"utterance" json:"utterance"`
	Explain   string `yaml:"explain" json:"explain,omitempty"`
	ExamplePY string `yaml:"examplePY" json:"examplePY,omitempty"`
	ExampleJS string `yaml:"exampleJS" json:"exampleJS,omitempty"`
}

// Example returns the example for lang.
func (r Recommendation) Example(lang codeinfo.Language) string {
	if lang == codeinfo.JavaScript {
		return r.ExampleJS
	}
	return r.ExamplePY
}

// Empty reports whether the recommendation carries no utterance.
func (r Recommendation) Empty() bool {
	return r.Utterance == ""
}

// Content is the authored suggestion text.
type Content struct {
	Nuclei      map[string]Recommendation `yaml:"nuclei"`
	NewCode     map[int]Recommendation    `yaml:"newCode"`
	AdvanceCode map[string]Recommendation `yaml:"advanceCode"`
	Aesthetics  map[string]Recommendation `yaml:"aesthetics"`
}

// ParseContent decodes YAML content and checks the entries the modules rely on.
func ParseContent(data []byte) (*Content, error) {
	var c Content
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("decode suggestion content: %w", err)
	}
	if _, ok := c.Nuclei["oneSound"]; !ok {
		return nil, fmt.Errorf("decode suggestion content: missing oneSound nucleus")
	}
	if _, ok := c.NewCode[0]; !ok {
		return nil, fmt.Errorf("decode suggestion content: missing first curriculum entry")
	}
	for _, key := range []string{"addMeasures", "effect"} {
		if _, ok := c.Aesthetics[key]; !ok {
			return nil, fmt.Errorf("decode suggestion content: missing aesthetics %q", key)
		}
	}
	return &c, nil
}

// LoadContent reads a content file, or the embedded content when path is empty.
func LoadContent(path string) (*Content, error) {
	if path == "" {
		return DefaultContent(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read suggestion content: %w", err)
	}
	return ParseContent(data)
}

// DefaultContent returns the embedded content.
func DefaultContent() *Content {
	c, err := ParseContent(defaultContent)
	if err != nil {
		panic(err)
	}
	return c
}

func (c *Content) nucleusNames() []string {
	names := lo.Keys(c.Nuclei)
	sort.Strings(names)
	return names
}

// goal is one feature level of a curriculum step.
type goal struct {
	Feature codeinfo.Feature
	Level   int
}

// curriculum orders code concepts the way lessons introduce them. The first
// goal of each step decides whether the step is already in a project.
var curriculum = [][]goal{
	{{codeinfo.FeatureVariables, 1}},
	{{codeinfo.FeatureMakeBeat, 1}},
	{{codeinfo.FeatureForLoopsRange, 2}, {codeinfo.FeatureForLoopsIterable, 1}},
	{{codeinfo.FeatureBinOps, 1}},
	{{codeinfo.FeatureForLoopsRange, 3}},
	{{codeinfo.FeatureConditionals, 1}},
	{{codeinfo.FeatureConditionals, 3}},
	{{codeinfo.FeatureComparisons, 1}},
	{{codeinfo.FeatureRepeatExecution, 1}},
	{{codeinfo.FeatureRepeatExecution, 3}},
	{{codeinfo.FeatureManipulateValue, 3}},
	{{codeinfo.FeatureConsoleInput, 1}},
	{{codeinfo.FeatureStrOps, 1}},
	{{codeinfo.FeatureIndexing, 1}},
	{{codeinfo.FeatureMakeBeat, 3}},
}

// lastSuggestible is the highest curriculum step a new-code suggestion targets.
const lastSuggestible = 13
