package dialogue

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ashureev/cadence/internal/projectmodel"
	"github.com/ashureev/cadence/internal/utterance"
)

//go:embed tree.yaml
var defaultTree []byte

//go:embed help.yaml
var defaultHelp []byte

// Button is a reply the student can pick. Value is a node id or a tree name.
type Button struct {
	Label string `yaml:"label" json:"label"`
	Value string `yaml:"value" json:"value"`
}

// Menu is a top-level group of entry points.
type Menu struct {
	Name    string   `yaml:"name" json:"name"`
	Label   string   `yaml:"label" json:"label"`
	Options []NodeID `yaml:"options" json:"-"`
}

// Roles name the nodes the engine treats specially.
type Roles struct {
	BeginSuggestion   NodeID   `yaml:"beginSuggestion"`
	SuggestionExplain NodeID   `yaml:"suggestionExplain"`
	SuggestionExample NodeID   `yaml:"suggestionExample"`
	WholeSong         NodeID   `yaml:"wholeSong"`
	ChangeIdeas       NodeID   `yaml:"changeIdeas"`
	FitMediaHelp      NodeID   `yaml:"fitMediaHelp"`
	InstrumentSelect  NodeID   `yaml:"instrumentSelect"`
	RunPrompt         NodeID   `yaml:"runPrompt"`
	Overlap           NodeID   `yaml:"overlap"`
	HighlightHelp     []NodeID `yaml:"highlightHelp"`
}

func (r Roles) all() map[string]NodeID {
	out := map[string]NodeID{
		"beginSuggestion":   r.BeginSuggestion,
		"suggestionExplain": r.SuggestionExplain,
		"suggestionExample": r.SuggestionExample,
		"wholeSong":         r.WholeSong,
		"changeIdeas":       r.ChangeIdeas,
		"fitMediaHelp":      r.FitMediaHelp,
		"instrumentSelect":  r.InstrumentSelect,
		"runPrompt":         r.RunPrompt,
		"overlap":           r.Overlap,
	}
	for i, id := range r.HighlightHelp {
		out[fmt.Sprintf("highlightHelp[%d]", i)] = id
	}
	return out
}

// HelpItem is a three-step walkthrough with an example per language.
type HelpItem struct {
	Steps     []string `yaml:"steps"`
	ExamplePY string   `yaml:"examplePY"`
	ExampleJS string   `yaml:"exampleJS"`
}

// Greeting holds the texts of the [GREETING] directive.
type Greeting struct {
	First     string `yaml:"first"`
	Returning string `yaml:"returning"`
}

// PropertyContent configures the project-idea dialogue.
type PropertyContent struct {
	Buttons        map[string]string `yaml:"buttons"`
	CodeStructures []string          `yaml:"codeStructures"`

	buttons map[projectmodel.Property]string
}

// Button returns the label offered for adding a value to p.
func (p PropertyContent) Button(prop projectmodel.Property) string {
	return p.buttons[prop]
}

// Content is the authored conversation: nodes, entry points and help topics.
// It is read-only once loaded.
type Content struct {
	Trees       map[string]NodeID `yaml:"trees"`
	Roles       Roles             `yaml:"roles"`
	Greeting    Greeting          `yaml:"greeting"`
	IdleButtons []Button          `yaml:"idleButtons"`
	Menus       []Menu            `yaml:"menus"`
	Properties  PropertyContent   `yaml:"properties"`
	Nodes       map[NodeID]*Node  `yaml:"nodes"`

	Help map[string]HelpItem `yaml:"-"`
}

// ParseContent decodes a tree file and a help file and validates them.
// Unknown keys are rejected.
func ParseContent(tree, help []byte) (*Content, error) {
	var c Content
	if err := decodeStrict(tree, &c); err != nil {
		return nil, fmt.Errorf("parse dialogue tree: %w", err)
	}
	if err := decodeStrict(help, &c.Help); err != nil {
		return nil, fmt.Errorf("parse help topics: %w", err)
	}
	for id, n := range c.Nodes {
		if n == nil {
			return nil, fmt.Errorf("parse dialogue tree: node %q is empty", id)
		}
		n.ID = id
	}
	c.Properties.buttons = make(map[projectmodel.Property]string, len(c.Properties.Buttons))
	for name, label := range c.Properties.Buttons {
		p, err := projectmodel.ParseProperty(name)
		if err != nil {
			return nil, fmt.Errorf("parse dialogue tree: %w", err)
		}
		c.Properties.buttons[p] = label
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func decodeStrict(data []byte, out any) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	return dec.Decode(out)
}

// LoadContent reads the tree from path and uses the built-in help topics.
func LoadContent(path string) (*Content, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read dialogue tree: %w", err)
	}
	return ParseContent(data, defaultHelp)
}

// DefaultContent returns the built-in conversation.
func DefaultContent() *Content {
	c, err := ParseContent(defaultTree, defaultHelp)
	if err != nil {
		panic(err)
	}
	return c
}

// Node returns an authored node.
func (c *Content) Node(id NodeID) (*Node, bool) {
	n, ok := c.Nodes[id]
	return n, ok
}

// Tree returns the entry node of a named tree.
func (c *Content) Tree(name string) (NodeID, bool) {
	id, ok := c.Trees[name]
	return id, ok
}

// IDs lists the authored node ids in numeric-then-lexical order.
func (c *Content) IDs() []NodeID {
	ids := make([]NodeID, 0, len(c.Nodes))
	for id := range c.Nodes {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		a, b := string(ids[i]), string(ids[j])
		if len(a) != len(b) {
			return len(a) < len(b)
		}
		return a < b
	})
	return ids
}

// Validate checks that every reference in the content resolves: option
// targets, generator templates, roles, tree entries, menu entries, wait and
// section-select targets, and help topics.
func (c *Content) Validate() error {
	var errs []error
	ref := func(where string, id NodeID) {
		if id.Generated() {
			errs = append(errs, fmt.Errorf("%s: %q uses the generated id prefix", where, id))
			return
		}
		if _, ok := c.Nodes[id]; !ok {
			errs = append(errs, fmt.Errorf("%s: unknown node %q", where, id))
		}
	}

	for name, id := range c.Trees {
		ref("tree "+name, id)
	}
	for name, id := range c.Roles.all() {
		ref("role "+name, id)
	}
	for _, m := range c.Menus {
		for _, id := range m.Options {
			ref("menu "+m.Name, id)
		}
	}
	for _, b := range c.IdleButtons {
		if _, ok := c.Trees[b.Value]; ok {
			continue
		}
		ref("idle button "+b.Label, NodeID(b.Value))
	}
	for _, p := range projectmodel.AllProperties {
		if c.Properties.buttons[p] == "" {
			errs = append(errs, fmt.Errorf("properties: missing button for %s", p))
		}
	}

	for _, id := range c.IDs() {
		n := c.Nodes[id]
		where := "node " + string(id)
		for _, o := range n.Options {
			switch o.Kind {
			case OptionNode, OptionSynth:
				ref(where, o.Node)
			case OptionLanguage:
				ref(where, o.Node)
				ref(where, o.JS)
			}
		}
		if topic := n.Params.HelpTopic; topic != nil && *topic != "" {
			if _, ok := c.Help[*topic]; !ok {
				errs = append(errs, fmt.Errorf("%s: unknown help topic %q", where, *topic))
			}
		}
		tpl := utterance.Parse(n.Utterance)
		for _, kw := range []string{"WAIT", "ERRORWAIT", "SOUNDWAIT"} {
			if tok, ok := tpl.Find(kw); ok {
				ref(where+" "+kw, NodeID(tok.Arg(0)))
			}
		}
		if tok, ok := tpl.Find("SECTIONSELECT"); ok {
			for _, s := range strings.Split(tok.Arg(0), ",") {
				ref(where+" SECTIONSELECT", NodeID(strings.TrimSpace(s)))
			}
			ref(where+" SECTIONSELECT", NodeID(tok.Arg(1)))
		}
	}
	for name, item := range c.Help {
		if len(item.Steps) != 3 {
			errs = append(errs, fmt.Errorf("help %s: expected 3 steps, got %d", name, len(item.Steps)))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("validate dialogue content: %w", err)
	}
	return nil
}
