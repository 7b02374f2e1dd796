// Package recommend suggests sounds that fit the ones a student already uses.
// It scores catalog entries by genre, instrument and key affinity and never
// repeats a recommendation until the whole catalog has been offered.
package recommend

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var defaultCatalog []byte

// makeBeatGenre marks one-shot drum hits that only make sense inside makeBeat.
const makeBeatGenre = "MAKEBEAT"

// Sound is one catalog entry.
type Sound struct {
	Name          string  `yaml:"name" json:"name"`
	Genre         string  `yaml:"genre" json:"genre"`
	Instrument    string  `yaml:"instrument" json:"instrument"`
	Artist        string  `yaml:"artist" json:"artist"`
	Key           string  `yaml:"key" json:"key,omitempty"`
	KeyConfidence float64 `yaml:"keyConfidence" json:"keyConfidence"`

	keyNumber int
}

// Catalog is the set of sounds the recommender may draw from.
type Catalog struct {
	Sounds []Sound `yaml:"sounds"`

	byName map[string]*Sound
}

// ParseCatalog decodes a YAML catalog.
func ParseCatalog(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	if len(c.Sounds) == 0 {
		return nil, fmt.Errorf("decode catalog: no sounds")
	}
	c.byName = make(map[string]*Sound, len(c.Sounds))
	for i := range c.Sounds {
		s := &c.Sounds[i]
		if s.Name == "" {
			return nil, fmt.Errorf("decode catalog: sound %d has no name", i)
		}
		if _, dup := c.byName[s.Name]; dup {
			return nil, fmt.Errorf("decode catalog: duplicate sound %q", s.Name)
		}
		s.keyNumber = -1
		if s.Key != "" {
			n, err := KeyNumber(s.Key)
			if err != nil {
				return nil, fmt.Errorf("decode catalog: sound %q: %w", s.Name, err)
			}
			s.keyNumber = n
		}
		c.byName[s.Name] = s
	}
	return &c, nil
}

// LoadCatalog reads a catalog file, or the embedded catalog when path is empty.
func LoadCatalog(path string) (*Catalog, error) {
	if path == "" {
		return DefaultCatalog(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return ParseCatalog(data)
}

// DefaultCatalog returns the embedded catalog.
func DefaultCatalog() *Catalog {
	c, err := ParseCatalog(defaultCatalog)
	if err != nil {
		panic(err)
	}
	return c
}

// Lookup returns the named sound.
func (c *Catalog) Lookup(name string) (Sound, bool) {
	s, ok := c.byName[name]
	if !ok {
		return Sound{}, false
	}
	return *s, true
}

// Len is the number of sounds in the catalog.
func (c *Catalog) Len() int {
	return len(c.Sounds)
}

var pitchClasses = map[string]int{
	"C": 0, "B#": 0, "C#": 1, "Db": 1, "D": 2, "D#": 3, "Eb": 3, "E": 4, "Fb": 4,
	"F": 5, "E#": 5, "F#": 6, "Gb": 6, "G": 7, "G#": 8, "Ab": 8, "A": 9,
	"A#": 10, "Bb": 10, "B": 11, "Cb": 11,
}

// KeyNumber converts a label such as "A minor" to 0..23, majors first.
func KeyNumber(label string) (int, error) {
	fields := strings.Fields(label)
	if len(fields) != 2 {
		return 0, fmt.Errorf("invalid key %q", label)
	}
	pc, ok := pitchClasses[fields[0]]
	if !ok {
		return 0, fmt.Errorf("invalid key %q", label)
	}
	switch strings.ToLower(fields[1]) {
	case "major":
		return pc, nil
	case "minor":
		return pc + 12, nil
	}
	return 0, fmt.Errorf("invalid key %q", label)
}

// RelativeKey maps a major key to its relative minor and back.
func RelativeKey(n int) int {
	if n >= 12 {
		return (n + 3) % 12
	}
	return (n+9)%12 + 12
}
