package dialogue

import (
	"math/rand/v2"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/ashureev/cadence/internal/codeinfo"
	"github.com/ashureev/cadence/internal/diagnosis"
	"github.com/ashureev/cadence/internal/history"
	"github.com/ashureev/cadence/internal/music"
	"github.com/ashureev/cadence/internal/projectmodel"
	"github.com/ashureev/cadence/internal/suggestion"
)

// WaitKind says what a suspended conversation is waiting for.
type WaitKind int

const (
	WaitNone WaitKind = iota
	// WaitRun resumes on the next successful run.
	WaitRun
	// WaitError resumes once the student's error is fixed.
	WaitError
	// WaitSound resumes once one of the suggested sounds is used.
	WaitSound
)

func (k WaitKind) String() string {
	switch k {
	case WaitRun:
		return "run"
	case WaitError:
		return "error"
	case WaitSound:
		return "sound"
	default:
		return "none"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (k WaitKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Wait is the single suspension a session can hold. Setting a new wait
// replaces the previous one.
type Wait struct {
	Kind   WaitKind `json:"kind"`
	Node   NodeID   `json:"node,omitempty"`
	Sounds []string `json:"sounds,omitempty"`
}

// Active reports whether the session is waiting.
func (w Wait) Active() bool {
	return w.Kind != WaitNone
}

// Overlap reports two sounds placed on top of each other.
type Overlap struct {
	First   string `json:"first"`
	Second  string `json:"second"`
	Measure int    `json:"measure"`
}

// UIState is what the client tells the engine about its layout, used to pick
// highlight targets.
type UIState struct {
	ScriptBrowserOpen    bool   `json:"scriptBrowserOpen"`
	APIBrowserOpen       bool   `json:"apiBrowserOpen"`
	CurriculumOpen       bool   `json:"curriculumOpen"`
	SwitchedToCurriculum bool   `json:"switchedToCurriculum"`
	ActiveTab            string `json:"activeTab,omitempty"`
}

const maxReports = 10

// Session is the conversation state of one project. All fields are guarded by
// mu and only changed by the Engine.
type Session struct {
	mu sync.Mutex

	project  string
	language codeinfo.Language

	source     string
	complexity codeinfo.Results
	node       *Node
	suggestion *suggestion.Recommendation
	params     Params

	recGenre      string
	recInstrument string
	section       string

	property              projectmodel.Property
	propertyValue         string
	propertyValueToChange string

	helpTopic  string
	history    []history.Entry
	recHistory []string
	dropup     string
	overlaps   []Overlap
	done       bool
	wait       Wait
	errState   diagnosis.State
	model      *projectmodel.Model
	highlight  string
	ui         UIState
	interacted bool
	edits      int

	// pendingSounds are recommendation batches not yet used in a run.
	pendingSounds   [][]string
	soundsUsedCount int

	runs    []codeinfo.Features
	reports []*music.Report

	generator *suggestion.Generator
	rnd       *rand.Rand

	synth     map[NodeID]*Node
	nextSynth int
}

func (s *Session) report() *music.Report {
	if len(s.reports) == 0 {
		return nil
	}
	return s.reports[len(s.reports)-1]
}

// synthesize registers a copy of template under a fresh generated id.
func (s *Session) synthesize(template *Node) *Node {
	n := template.clone()
	n.ID = NodeID(generatedPrefix + strconv.Itoa(s.nextSynth))
	s.nextSynth++
	s.synth[n.ID] = n
	return n
}

// View is a read-only snapshot of a session.
type View struct {
	Project        string                     `json:"project"`
	Language       codeinfo.Language          `json:"language"`
	Node           NodeID                     `json:"node,omitempty"`
	Dropup         string                     `json:"dropup,omitempty"`
	Wait           Wait                       `json:"wait"`
	HelpTopic      string                     `json:"helpTopic,omitempty"`
	Highlight      string                     `json:"highlight,omitempty"`
	Done           bool                       `json:"done"`
	Interacted     bool                       `json:"interacted"`
	Classification diagnosis.Classification   `json:"classification"`
	Suggestion     *suggestion.Recommendation `json:"suggestion,omitempty"`
	Model          *projectmodel.Model        `json:"model"`
	History        []history.Entry            `json:"history"`
	Overlaps       []Overlap                  `json:"overlaps,omitempty"`
}

func (s *Session) view() View {
	v := View{
		Project:        s.project,
		Language:       s.language,
		Dropup:         s.dropup,
		Wait:           s.wait,
		HelpTopic:      s.helpTopic,
		Highlight:      s.highlight,
		Done:           s.done,
		Interacted:     s.interacted,
		Classification: s.errState.Classification,
		Model:          s.model.Clone(),
		History:        append([]history.Entry(nil), s.history...),
		Overlaps:       append([]Overlap(nil), s.overlaps...),
	}
	if s.node != nil {
		v.Node = s.node.ID
	}
	if s.suggestion != nil {
		rec := *s.suggestion
		v.Suggestion = &rec
	}
	return v
}

// Registry holds one session per project key. A session is created only by
// Engine.SetActiveProject; lookups report whether it exists.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	// finals keeps the latest complexity of every project for cross-project
	// suggestions without touching other sessions' locks.
	finals map[string]codeinfo.Features
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
		finals:   make(map[string]codeinfo.Features),
	}
}

// Get returns the session of project.
func (r *Registry) Get(project string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[project]
	return s, ok
}

func (r *Registry) getOrCreate(project string, create func() *Session) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[project]; ok {
		return s, false
	}
	s := create()
	r.sessions[project] = s
	return s, true
}

// Remove drops the session of project. The project's last complexity stays
// available to its owner's other projects.
func (r *Registry) Remove(project string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[project]; !ok {
		return false
	}
	delete(r.sessions, project)
	return true
}

// Len is the number of sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Projects lists the project keys in sorted order.
func (r *Registry) Projects() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.sessions))
	for k := range r.sessions {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func (r *Registry) recordRun(project string, f codeinfo.Features) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.finals[project] = f.Clone()
}

// recentProjects returns the latest complexity of the owner's other projects.
// Project keys are "<owner>:<name>".
func (r *Registry) recentProjects(project string) []codeinfo.Features {
	owner, _, ok := strings.Cut(project, ":")
	if !ok {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	keys := make([]string, 0, len(r.finals))
	for k := range r.finals {
		if k != project && strings.HasPrefix(k, owner+":") {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	out := make([]codeinfo.Features, 0, len(keys))
	for _, k := range keys {
		out = append(out, r.finals[k].Clone())
	}
	return out
}
