// Package history records every dialogue transition of a project and forwards
// the records to telemetry sinks. Delivery is best effort: a failing sink is
// logged and never retried.
package history

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Labels of entries that do not name a dialogue node.
const (
	LabelRequest        = "request"
	LabelProjectModel   = "projectModel"
	LabelCompileSuccess = "Successful Compilation"
	LabelCompileError   = "Compilation With Error"
	LabelCodeUpdates    = "Code Updates"
	LabelCurriculum     = "curriculum"
	LabelSoundUsed      = "sound suggestion used"
	LabelSuggestionUsed = "code suggestion used"
	LabelStudentEdited  = "student edited"
	LabelOverlap        = "overlap"
	LabelStartNode      = "0"
)

// Entry is one transition record: a label, usually a node id, followed by
// free-form values. It encodes as a JSON array.
type Entry struct {
	Label string
	Args  []any
}

// E builds an entry.
func E(label string, args ...any) Entry {
	return Entry{Label: label, Args: args}
}

// MarshalJSON encodes the entry as [label, args...].
func (e Entry) MarshalJSON() ([]byte, error) {
	out := make([]any, 0, len(e.Args)+1)
	out = append(out, e.Label)
	out = append(out, e.Args...)
	return json.Marshal(out)
}

// UnmarshalJSON decodes the array form. Values decode as generic JSON.
func (e *Entry) UnmarshalJSON(data []byte) error {
	var raw []any
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decode history entry: %w", err)
	}
	if len(raw) == 0 {
		return fmt.Errorf("decode history entry: empty array")
	}
	switch label := raw[0].(type) {
	case string:
		e.Label = label
	case float64:
		e.Label = fmt.Sprintf("%g", label)
	default:
		return fmt.Errorf("decode history entry: label has type %T", raw[0])
	}
	e.Args = raw[1:]
	return nil
}

// Record is an entry addressed to a user and project, ready for upload.
type Record struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Project   string    `json:"project"`
	Node      Entry     `json:"node"`
	Source    string    `json:"source,omitempty"`
	UI        string    `json:"ui"`
	CreatedAt time.Time `json:"created_at"`
}

// NewRecord stamps an entry with a fresh id and the current time.
func NewRecord(username, project string, e Entry, source, ui string) Record {
	return Record{
		ID:        uuid.NewString(),
		Username:  username,
		Project:   project,
		Node:      e,
		Source:    source,
		UI:        ui,
		CreatedAt: time.Now().UTC(),
	}
}
