// Package diagnosis turns a student's runtime or compile error into a short
// (category, subtype) classification by re-reading the script text. The
// checks are heuristics: they never parse the program and an empty result is
// an ordinary outcome.
package diagnosis

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Classification is a diagnosis such as {"function", "missing colon"}.
// The zero value means the diagnosis was inconclusive.
type Classification struct {
	Category string
	Subtype  string
}

// Empty reports whether the diagnosis was inconclusive.
func (c Classification) Empty() bool {
	return c.Category == "" && c.Subtype == ""
}

func (c Classification) String() string {
	return strings.TrimSpace(c.Category + " " + c.Subtype)
}

// MarshalJSON encodes the classification as a two element array.
func (c Classification) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]string{c.Category, c.Subtype})
}

// UnmarshalJSON accepts the two element array form.
func (c *Classification) UnmarshalJSON(data []byte) error {
	var parts []string
	if err := json.Unmarshal(data, &parts); err != nil {
		return fmt.Errorf("decode classification: %w", err)
	}
	*c = Classification{}
	if len(parts) > 0 {
		c.Category = parts[0]
	}
	if len(parts) > 1 {
		c.Subtype = parts[1]
	}
	return nil
}

func classify(category, subtype string) Classification {
	return Classification{Category: category, Subtype: subtype}
}

// RuntimeError is the error reported by the script runner. Line is one-based;
// zero means the runner did not report a line.
type RuntimeError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	Line    int    `json:"line"`
}

func (e RuntimeError) String() string {
	s := e.Type
	if e.Message != "" {
		s += ": " + e.Message
	}
	if e.Line > 0 {
		s += " on line " + strconv.Itoa(e.Line)
	}
	return s
}

var onLinePattern = regexp.MustCompile(`\s+on line (\d+)\s*$`)

// ParseRuntimeError splits a raw "Type: message" string as printed by the
// runners. A wrapping "ExternalError:" prefix is removed. A trailing
// "on line N" fills Line when line is zero.
func ParseRuntimeError(raw string, line int) RuntimeError {
	raw = strings.TrimSpace(raw)
	if m := onLinePattern.FindStringSubmatch(raw); m != nil {
		if line == 0 {
			line, _ = strconv.Atoi(m[1])
		}
		raw = raw[:len(raw)-len(m[0])]
	}
	typ, msg, found := strings.Cut(raw, ":")
	if !found {
		return RuntimeError{Type: strings.TrimSpace(raw), Line: line}
	}
	typ = strings.TrimSpace(typ)
	msg = strings.TrimSpace(msg)
	if typ == "ExternalError" {
		if inner, rest, ok := strings.Cut(msg, ":"); ok {
			typ, msg = strings.TrimSpace(inner), strings.TrimSpace(rest)
		}
	}
	return RuntimeError{Type: typ, Message: msg, Line: line}
}
