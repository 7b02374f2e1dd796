// Package agent exposes the dialogue engine to students over HTTP and
// websockets, and keeps the per-user bookkeeping around it.
package agent

import (
	"github.com/ashureev/cadence/internal/codeinfo"
	"github.com/ashureev/cadence/internal/diagnosis"
	"github.com/ashureev/cadence/internal/dialogue"
	"github.com/ashureev/cadence/internal/music"
	"github.com/ashureev/cadence/internal/utterance"
)

// Caller identifies who is talking to the agent.
type Caller struct {
	UserID    string
	SessionID string
	RequestID string
	Channel   string
}

// Reply is what the agent says and the replies it offers next.
type Reply struct {
	Segments []utterance.Segment `json:"segments"`
	Buttons  []dialogue.Button   `json:"buttons"`
	Dropup   string              `json:"dropup,omitempty"`
	Waiting  bool                `json:"waiting"`
	Done     bool                `json:"done"`
}

// Silent reports whether the reply has nothing to show.
func (r Reply) Silent() bool {
	return len(r.Segments) == 0
}

// ActivateRequest is the body of POST /activate.
type ActivateRequest struct {
	Language string `json:"language"`
}

// DialogueRequest is the body of POST /dialogue.
type DialogueRequest struct {
	Input  string `json:"input"`
	Direct bool   `json:"direct"`
}

// NextRequest is the body of POST /dialogue/next.
type NextRequest struct {
	Utterance string `json:"utterance"`
}

// CompileErrorRequest is the body of POST /compile/error.
type CompileErrorRequest struct {
	Error    diagnosis.RuntimeError `json:"error"`
	Source   string                 `json:"source"`
	Language *codeinfo.Language     `json:"language,omitempty"`
}

// CompileErrorResponse pairs the diagnosis with anything the agent says.
type CompileErrorResponse struct {
	Classification diagnosis.Classification `json:"classification"`
	Status         string                   `json:"status"`
	Reply          Reply                    `json:"reply"`
}

// CompileSuccessRequest is the body of POST /compile/success.
type CompileSuccessRequest struct {
	Source string        `json:"source"`
	Report *music.Report `json:"report"`
}

// CodeRequest is the body of POST /code.
type CodeRequest struct {
	Source string `json:"source"`
}

// InteractRequest is the body of POST /interact.
type InteractRequest struct {
	Interacted bool `json:"interacted"`
}

// CurriculumRequest is the body of POST /curriculum.
type CurriculumRequest struct {
	Page string `json:"page"`
}

// OverlapsRequest is the body of POST /overlaps.
type OverlapsRequest struct {
	Overlaps []dialogue.Overlap `json:"overlaps"`
}

// WaitsResponse answers GET /waits.
type WaitsResponse struct {
	Waiting bool `json:"waiting"`
}

// LiveMessage is a client message on the dialogue websocket.
type LiveMessage struct {
	Type      string `json:"type"`
	Input     string `json:"input,omitempty"`
	Direct    bool   `json:"direct,omitempty"`
	Utterance string `json:"utterance,omitempty"`
	Source    string `json:"source,omitempty"`
}

// LiveEvent is a server message on the dialogue websocket.
type LiveEvent struct {
	Type    string `json:"type"`
	Project string `json:"project,omitempty"`
	Reply   *Reply `json:"reply,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Live event types.
const (
	EventConnected = "connected"
	EventReply     = "reply"
	EventPong      = "pong"
	EventError     = "error"
)
