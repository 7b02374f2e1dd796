// Package music describes the analysed shape of a rendered song: its overall
// length, the sections a listener would hear and the sounds placed in each
// measure. Reports are produced by the audio engine and consumed read-only.
package music

import (
	"sort"
	"strings"
)

// Overview holds whole-song totals.
type Overview struct {
	Measures      int     `json:"measures"`
	LengthSeconds float64 `json:"lengthSeconds"`
}

// Section is a labelled span of measures, both ends inclusive.
type Section struct {
	Label  string   `json:"label"`
	Start  int      `json:"start"`
	End    int      `json:"end"`
	Sounds []string `json:"sounds"`
}

// Item is one sound placed in a measure.
type Item struct {
	Name       string `json:"name"`
	Type       string `json:"type"`
	Track      int    `json:"track"`
	Genre      string `json:"genre,omitempty"`
	Instrument string `json:"instrument,omitempty"`
}

// Report is the analysis of one successful run.
type Report struct {
	Overview Overview       `json:"overview"`
	Sections []Section      `json:"sections"`
	Measures map[int][]Item `json:"measures"`
}

// Empty reports whether the report carries no music at all.
func (r *Report) Empty() bool {
	return r == nil || (len(r.Measures) == 0 && len(r.Sections) == 0)
}

// Form returns the song form spelled by the first letter of each section
// label, e.g. "ABA".
func (r *Report) Form() string {
	if r == nil {
		return ""
	}
	var b strings.Builder
	for _, s := range r.Sections {
		for _, c := range s.Label {
			if c >= 'A' && c <= 'Z' || c >= 'a' && c <= 'z' || c >= '0' && c <= '9' {
				b.WriteRune(c)
				break
			}
		}
	}
	return b.String()
}

// Section returns the section with the given label.
func (r *Report) Section(label string) (Section, bool) {
	if r == nil {
		return Section{}, false
	}
	for _, s := range r.Sections {
		if s.Label == label {
			return s, true
		}
	}
	return Section{}, false
}

// SectionSounds lists the sounds used in the labelled section.
func (r *Report) SectionSounds(label string) []string {
	s, ok := r.Section(label)
	if !ok {
		return nil
	}
	return s.Sounds
}

// AllSounds lists every distinct sound name in measure order.
func (r *Report) AllSounds() []string {
	if r == nil {
		return nil
	}
	measures := make([]int, 0, len(r.Measures))
	for m := range r.Measures {
		measures = append(measures, m)
	}
	sort.Ints(measures)
	seen := make(map[string]bool)
	var out []string
	for _, m := range measures {
		for _, item := range r.Measures[m] {
			if !seen[item.Name] {
				seen[item.Name] = true
				out = append(out, item.Name)
			}
		}
	}
	for _, s := range r.Sections {
		for _, name := range s.Sounds {
			if !seen[name] {
				seen[name] = true
				out = append(out, name)
			}
		}
	}
	return out
}

// Instruments lists the distinct instruments heard in measures start..end.
func (r *Report) Instruments(start, end int) []string {
	if r == nil {
		return nil
	}
	seen := make(map[string]bool)
	var out []string
	for m := start; m <= end; m++ {
		for _, item := range r.Measures[m] {
			if item.Instrument != "" && !seen[item.Instrument] {
				seen[item.Instrument] = true
				out = append(out, item.Instrument)
			}
		}
	}
	return out
}
