package diagnosis

import "strings"

// State is the error context kept for one project between a failed run and
// the next successful one.
type State struct {
	Err            *RuntimeError  `json:"error,omitempty"`
	Text           string         `json:"-"`
	Lines          []string       `json:"-"`
	ErrorLine      string         `json:"errorLine,omitempty"`
	Classification Classification `json:"classification"`
}

// Store records a new error and its diagnosis.
func (s *State) Store(err RuntimeError, text string, c Classification) {
	e := err
	s.Err = &e
	s.Text = text
	s.Lines = strings.Split(text, "\n")
	s.ErrorLine = ""
	if idx := err.Line - 1; idx >= 0 && idx < len(s.Lines) {
		s.ErrorLine = s.Lines[idx]
	}
	s.Classification = c
}

// Clear forgets the current error.
func (s *State) Clear() {
	*s = State{}
}

// Active reports whether an error is outstanding.
func (s *State) Active() bool {
	return s.Err != nil
}

// Same reports whether err is the error already recorded.
func (s *State) Same(err RuntimeError) bool {
	return s.Err != nil && s.Err.String() == err.String()
}
