package dialogue

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ashureev/cadence/internal/codeinfo"
	"github.com/ashureev/cadence/internal/projectmodel"
)

// NodeID identifies a node. Authored ids are the keys of the content file.
// Generated ids start with "~" and never collide with authored ones.
type NodeID string

const generatedPrefix = "~"

// Generated reports whether the id was minted at runtime.
func (id NodeID) Generated() bool {
	return strings.HasPrefix(string(id), generatedPrefix)
}

// OptionKind tells how an option entry is resolved.
type OptionKind int

const (
	// OptionNode points at another node.
	OptionNode OptionKind = iota
	// OptionLanguage points at one node for Python and another for JavaScript.
	OptionLanguage
	// OptionSynth asks the engine to generate one node per available choice
	// from a template node.
	OptionSynth
)

// Synth names a family of generated choices.
type Synth int

const (
	SynthSections Synth = iota + 1
	SynthProperties
	SynthPropertyValues
	SynthClearProperty
	SynthChangeProperty
	SynthSwapProperty
)

var synthMarkers = map[string]Synth{
	"SECTIONS":              SynthSections,
	"PROPERTIES":            SynthProperties,
	"PROPERTYOPTIONS":       SynthPropertyValues,
	"CLEARPROPERTYOPTIONS":  SynthClearProperty,
	"CHANGEPROPERTYOPTIONS": SynthChangeProperty,
	"SWAPPROPERTYOPTIONS":   SynthSwapProperty,
}

func (s Synth) String() string {
	for marker, v := range synthMarkers {
		if v == s {
			return marker
		}
	}
	return "synth(" + strconv.Itoa(int(s)) + ")"
}

// Option is one entry of a node's option list.
type Option struct {
	Kind  OptionKind
	Node  NodeID // target, Python target or template
	JS    NodeID // JavaScript target of a language option
	Synth Synth
}

// NodeOption builds a plain node option.
func NodeOption(id NodeID) Option {
	return Option{Kind: OptionNode, Node: id}
}

// ParseOption reads the authored form of an option: a node id, a
// "[PY:a|JS:b]" language pair, or a generator marker such as "SECTIONS|75".
// Brackets around a marker are optional.
func ParseOption(s string) (Option, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Option{}, fmt.Errorf("parse option: empty")
	}
	body := strings.TrimSuffix(strings.TrimPrefix(s, "["), "]")
	if strings.HasPrefix(body, "PY:") {
		py, js, ok := strings.Cut(body, "|")
		if !ok || !strings.HasPrefix(js, "JS:") {
			return Option{}, fmt.Errorf("parse option %q: expected [PY:a|JS:b]", s)
		}
		return Option{
			Kind: OptionLanguage,
			Node: NodeID(strings.TrimPrefix(py, "PY:")),
			JS:   NodeID(strings.TrimPrefix(js, "JS:")),
		}, nil
	}
	if marker, template, ok := strings.Cut(body, "|"); ok {
		synth, known := synthMarkers[marker]
		if !known {
			return Option{}, fmt.Errorf("parse option %q: unknown generator %q", s, marker)
		}
		return Option{Kind: OptionSynth, Synth: synth, Node: NodeID(template)}, nil
	}
	if strings.ContainsAny(s, "[]| ") {
		return Option{}, fmt.Errorf("parse option %q: not a node id", s)
	}
	return NodeOption(NodeID(s)), nil
}

// Target resolves the node an option leads to for lang. Generator options
// have no target.
func (o Option) Target(lang codeinfo.Language) NodeID {
	switch o.Kind {
	case OptionNode:
		return o.Node
	case OptionLanguage:
		if lang == codeinfo.JavaScript {
			return o.JS
		}
		return o.Node
	default:
		return ""
	}
}

// String returns the authored form.
func (o Option) String() string {
	switch o.Kind {
	case OptionLanguage:
		return "[PY:" + string(o.Node) + "|JS:" + string(o.JS) + "]"
	case OptionSynth:
		return o.Synth.String() + "|" + string(o.Node)
	default:
		return string(o.Node)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (o Option) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (o *Option) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := ParseOption(s)
	if err != nil {
		return fmt.Errorf("line %d: %w", value.Line, err)
	}
	*o = parsed
	return nil
}

// Params are applied to the session when a node is entered. The zero value of
// every field means "leave unchanged", except HelpTopic: a missing topic
// clears the current one and an empty topic keeps it.
type Params struct {
	Genre               string                `yaml:"genre" json:"genre,omitempty"`
	Instrument          string                `yaml:"instrument" json:"instrument,omitempty"`
	Section             string                `yaml:"section" json:"section,omitempty"`
	Property            projectmodel.Property `yaml:"property" json:"property,omitempty"`
	PropertyValue       string                `yaml:"propertyValue" json:"propertyValue,omitempty"`
	ChangePropertyValue string                `yaml:"changePropertyValue" json:"changePropertyValue,omitempty"`
	HelpTopic           *string               `yaml:"helpTopic" json:"helpTopic,omitempty"`
}

// merge overlays the non-empty fields of p onto dst.
func (p Params) merge(dst *Params) {
	if p.Genre != "" {
		dst.Genre = p.Genre
	}
	if p.Instrument != "" {
		dst.Instrument = p.Instrument
	}
	if p.Section != "" {
		dst.Section = p.Section
	}
	if p.Property != 0 {
		dst.Property = p.Property
	}
	if p.PropertyValue != "" {
		dst.PropertyValue = p.PropertyValue
	}
	if p.ChangePropertyValue != "" {
		dst.ChangePropertyValue = p.ChangePropertyValue
	}
	if p.HelpTopic != nil {
		topic := *p.HelpTopic
		dst.HelpTopic = &topic
	}
}

// Node is one unit of authored conversation.
type Node struct {
	ID        NodeID   `yaml:"-" json:"id"`
	Title     string   `yaml:"title" json:"title"`
	Utterance string   `yaml:"utterance" json:"utterance"`
	Options   []Option `yaml:"options" json:"options"`
	Params    Params   `yaml:"params" json:"params"`
	Dropup    string   `yaml:"dropup" json:"dropup,omitempty"`
	Events    []string `yaml:"events" json:"events,omitempty"`

	// Terminal marks the goodbye node that ends the conversation.
	Terminal bool `yaml:"terminal" json:"terminal,omitempty"`
	// Disengage marks the "maybe later" reply: suggestions stop until the
	// student talks to the agent again.
	Disengage bool `yaml:"disengage" json:"disengage,omitempty"`
	// ErrorFirst redirects to the error tree while a compile error is open.
	ErrorFirst bool `yaml:"errorFirst" json:"errorFirst,omitempty"`
}

// clone returns a working copy whose option list may be rewritten.
func (n *Node) clone() *Node {
	c := *n
	c.Options = slices.Clone(n.Options)
	c.Events = slices.Clone(n.Events)
	if n.Params.HelpTopic != nil {
		topic := *n.Params.HelpTopic
		c.Params.HelpTopic = &topic
	}
	return &c
}

// hasTarget reports whether any option leads to id.
func (n *Node) hasTarget(id NodeID) bool {
	return slices.ContainsFunc(n.Options, func(o Option) bool {
		return o.Kind != OptionSynth && (o.Node == id || o.JS == id)
	})
}
