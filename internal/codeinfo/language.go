// Package codeinfo builds a lightweight, regex-based model of a student script:
// its variables, assignments and user functions, plus a heuristic complexity
// score. It never parses the program and never fails on malformed input.
package codeinfo

import (
	"fmt"
	"path"
	"strings"
)

// Language is a supported student language.
type Language int

const (
	Python Language = iota
	JavaScript
)

// String returns the canonical lowercase name.
func (l Language) String() string {
	if l == JavaScript {
		return "javascript"
	}
	return "python"
}

// MarshalText implements encoding.TextMarshaler.
func (l Language) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (l *Language) UnmarshalText(text []byte) error {
	parsed, err := ParseLanguage(string(text))
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

// ParseLanguage accepts "python", "py", "javascript" and "js" in any case.
func ParseLanguage(s string) (Language, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "python", "py", "":
		return Python, nil
	case "javascript", "js":
		return JavaScript, nil
	default:
		return Python, fmt.Errorf("unknown language %q", s)
	}
}

// LanguageOf infers the language from a project file name.
func LanguageOf(project string) Language {
	if strings.EqualFold(path.Ext(project), ".js") {
		return JavaScript
	}
	return Python
}

// CommentPrefix is the line comment marker for the language.
func (l Language) CommentPrefix() string {
	if l == JavaScript {
		return "//"
	}
	return "#"
}

// StripComment removes a trailing line comment that is not inside a string
// literal. Quote parity decides whether the marker is inside a string.
func StripComment(lang Language, line string) string {
	marker := lang.CommentPrefix()
	if !strings.Contains(line, marker) {
		return line
	}
	single, double := 0, 0
	for i := 0; i < len(line); i++ {
		switch line[i] {
		case '\'':
			single++
		case '"':
			double++
		}
		if strings.HasPrefix(line[i:], marker) && single%2 == 0 && double%2 == 0 {
			return line[:i]
		}
	}
	return line
}

// TrimCommentsAndWhitespace strips a trailing comment and surrounding spaces.
func TrimCommentsAndWhitespace(lang Language, line string) string {
	return strings.TrimSpace(StripComment(lang, line))
}

// LeadingSpaces counts leading space characters. Tabs are not expanded.
func LeadingSpaces(line string) int {
	n := 0
	for n < len(line) && line[n] == ' ' {
		n++
	}
	return n
}
