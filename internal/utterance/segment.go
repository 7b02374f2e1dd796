package utterance

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Kind is the rendering type of a segment.
type Kind string

const (
	KindPlaintext Kind = "plaintext"
	KindLink      Kind = "LINK"
	KindSoundRec  Kind = "sound_rec"
)

// Keywords understood by the renderer.
const (
	KeywordLink     = "LINK"
	KeywordSoundRec = "sound_rec"
)

// Segment is one renderable piece of an utterance. A link carries its label and
// target; a sound recommendation carries the sample name.
type Segment struct {
	Kind   Kind
	Values []string
}

// Plain builds a plaintext segment.
func Plain(s string) Segment {
	return Segment{Kind: KindPlaintext, Values: []string{s}}
}

// Text returns the displayed text of the segment.
func (s Segment) Text() string {
	if len(s.Values) == 0 {
		return ""
	}
	return s.Values[0]
}

// MarshalJSON encodes the segment as ["kind", [values...]].
func (s Segment) MarshalJSON() ([]byte, error) {
	values := s.Values
	if values == nil {
		values = []string{}
	}
	return json.Marshal([]any{s.Kind, values})
}

// UnmarshalJSON decodes the ["kind", [values...]] form.
func (s *Segment) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decode segment: %w", err)
	}
	if len(raw) != 2 {
		return fmt.Errorf("decode segment: expected 2 elements, got %d", len(raw))
	}
	if err := json.Unmarshal(raw[0], &s.Kind); err != nil {
		return fmt.Errorf("decode segment kind: %w", err)
	}
	if err := json.Unmarshal(raw[1], &s.Values); err != nil {
		return fmt.Errorf("decode segment values: %w", err)
	}
	return nil
}

// Segments renders the template. Unknown directives degrade to the plaintext of
// their payload and unknown link targets to the plaintext of their label.
func (t Template) Segments(links map[string]string) []Segment {
	segments := make([]Segment, 0, len(t))
	for _, tok := range t {
		if !tok.IsDirective() {
			if tok.Text != "" {
				segments = append(segments, Plain(tok.Text))
			}
			continue
		}
		payload := tok.Payload()
		switch tok.Keyword {
		case KeywordLink:
			if target, ok := links[payload]; ok {
				segments = append(segments, Segment{Kind: KindLink, Values: []string{payload, target}})
			} else if payload != "" {
				segments = append(segments, Plain(payload))
			}
		case KeywordSoundRec:
			if len(tok.Args) > 0 && payload != "" {
				segments = append(segments, Segment{Kind: KindSoundRec, Values: []string{payload}})
			}
		default:
			if payload != "" {
				segments = append(segments, Plain(payload))
			}
		}
	}
	return segments
}

// Render parses and renders s in one step.
func Render(s string, links map[string]string) []Segment {
	return Parse(s).Segments(links)
}

// JoinText concatenates the displayed text of the segments.
func JoinText(segments []Segment) string {
	var b strings.Builder
	for _, s := range segments {
		b.WriteString(s.Text())
	}
	return b.String()
}
