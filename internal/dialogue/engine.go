// Package dialogue runs the tutoring conversation: a graph of authored nodes
// walked per project, with directives in each utterance that read and change
// the project's session, and waits that resume the conversation when the
// student runs their code.
package dialogue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strconv"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/ashureev/cadence/internal/codeinfo"
	"github.com/ashureev/cadence/internal/diagnosis"
	"github.com/ashureev/cadence/internal/history"
	"github.com/ashureev/cadence/internal/projectmodel"
	"github.com/ashureev/cadence/internal/recommend"
	"github.com/ashureev/cadence/internal/suggestion"
	"github.com/ashureev/cadence/internal/utterance"
)

var (
	// ErrProjectNotStarted is returned for a project that was never activated.
	ErrProjectNotStarted = errors.New("dialogue: project not started")
	// ErrUnknownNode is returned when input or content points at a missing node.
	ErrUnknownNode = errors.New("dialogue: unknown node")
)

const (
	editThreshold       = 25
	defaultRecentScript = 1024
	outOfIdeas          = "i'm out of ideas. you can add some sounds to inspire me"
)

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithContent replaces the built-in conversation.
func WithContent(c *Content) EngineOption {
	return func(e *Engine) { e.content = c }
}

// WithRecommender sets the sound recommender.
func WithRecommender(r recommend.Recommender) EngineOption {
	return func(e *Engine) { e.rec = r }
}

// WithScorer sets the complexity scorer.
func WithScorer(s codeinfo.Scorer) EngineOption {
	return func(e *Engine) { e.scorer = s }
}

// WithDiagnoser sets the error diagnoser.
func WithDiagnoser(d *diagnosis.Diagnoser) EngineOption {
	return func(e *Engine) { e.diag = d }
}

// WithExplanations sets the error explanation table.
func WithExplanations(x *diagnosis.Explanations) EngineOption {
	return func(e *Engine) { e.explain = x }
}

// WithSuggestions sets the suggestion texts.
func WithSuggestions(c *suggestion.Content) EngineOption {
	return func(e *Engine) { e.suggestions = c }
}

// WithPublisher sets where history entries are sent.
func WithPublisher(p history.Publisher) EngineOption {
	return func(e *Engine) { e.pub = p }
}

// WithLinks sets the link table used to render utterances.
func WithLinks(links map[string]string) EngineOption {
	return func(e *Engine) { e.links = links }
}

// WithRand seeds all randomness of the engine from rnd.
func WithRand(rnd *rand.Rand) EngineOption {
	return func(e *Engine) { e.rnd = rnd }
}

// WithLogger sets the logger.
func WithLogger(log *slog.Logger) EngineOption {
	return func(e *Engine) {
		if log != nil {
			e.log = log
		}
	}
}

// WithRecentScriptCache bounds the number of projects whose last script is
// remembered for change detection.
func WithRecentScriptCache(n int) EngineOption {
	return func(e *Engine) { e.recentSize = n }
}

// Engine walks the conversation of every project. Calls for one project are
// serialized; different projects proceed in parallel.
type Engine struct {
	content     *Content
	rec         recommend.Recommender
	scorer      codeinfo.Scorer
	diag        *diagnosis.Diagnoser
	explain     *diagnosis.Explanations
	suggestions *suggestion.Content
	pub         history.Publisher
	links       map[string]string
	log         *slog.Logger

	rndMu sync.Mutex
	rnd   *rand.Rand

	registry   *Registry
	recentSize int
	recent     *lru.Cache[string, string]
}

// New builds an engine. Missing collaborators get their built-in defaults.
func New(opts ...EngineOption) (*Engine, error) {
	e := &Engine{
		log:        slog.Default(),
		registry:   NewRegistry(),
		recentSize: defaultRecentScript,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.rnd == nil {
		e.rnd = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	if e.content == nil {
		e.content = DefaultContent()
	}
	if e.rec == nil {
		e.rec = recommend.NewContentRecommender(recommend.DefaultCatalog(), e.childRand())
	}
	if e.scorer == nil {
		e.scorer = codeinfo.HeuristicScorer{}
	}
	if e.diag == nil {
		e.diag = diagnosis.NewDiagnoser(diagnosis.WithSampleLookup(e.rec.Known), diagnosis.WithLogger(e.log))
	}
	if e.explain == nil {
		e.explain = diagnosis.DefaultExplanations()
	}
	if e.suggestions == nil {
		e.suggestions = suggestion.DefaultContent()
	}
	if e.pub == nil {
		e.pub = history.Discard{}
	}
	if e.links == nil {
		e.links = utterance.DefaultLinks
	}
	cache, err := lru.New[string, string](e.recentSize)
	if err != nil {
		return nil, fmt.Errorf("create recent script cache: %w", err)
	}
	e.recent = cache
	return e, nil
}

// Content returns the conversation the engine walks.
func (e *Engine) Content() *Content {
	return e.content
}

// Registry exposes the sessions.
func (e *Engine) Registry() *Registry {
	return e.registry
}

func (e *Engine) childRand() *rand.Rand {
	e.rndMu.Lock()
	defer e.rndMu.Unlock()
	return rand.New(rand.NewPCG(e.rnd.Uint64(), e.rnd.Uint64()))
}

// SetActiveProject creates the session of project on first use and updates
// its language.
func (e *Engine) SetActiveProject(project string, lang codeinfo.Language) error {
	if project == "" {
		return fmt.Errorf("set active project: empty project key")
	}
	s, created := e.registry.getOrCreate(project, func() *Session {
		return &Session{
			project:   project,
			language:  lang,
			property:  projectmodel.Genre,
			model:     projectmodel.Default(),
			generator: suggestion.NewGenerator(e.suggestions, e.childRand()),
			rnd:       e.childRand(),
			synth:     make(map[NodeID]*Node),
		}
	})
	if created {
		e.log.Debug("dialogue session created", "project", project, "language", lang)
		return nil
	}
	s.mu.Lock()
	s.language = lang
	s.mu.Unlock()
	return nil
}

// CloseProject forgets the session of project. A later SetActiveProject
// starts a fresh conversation.
func (e *Engine) CloseProject(project string) bool {
	if !e.registry.Remove(project) {
		return false
	}
	e.recent.Remove(project)
	e.log.Debug("dialogue session closed", "project", project)
	return true
}

// lock returns the locked session of project. Callers must unlock it.
func (e *Engine) lock(project string) (*Session, error) {
	s, ok := e.registry.Get(project)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrProjectNotStarted, project)
	}
	s.mu.Lock()
	return s, nil
}

// View returns a snapshot of the session of project.
func (e *Engine) View(project string) (View, error) {
	s, err := e.lock(project)
	if err != nil {
		return View{}, err
	}
	defer s.mu.Unlock()
	return s.view(), nil
}

// GenerateOutput advances the conversation with the student's input: a tree
// name, a node id, or an index into the current options. With direct set the
// input is always taken as a node id.
func (e *Engine) GenerateOutput(ctx context.Context, project, input string, direct bool) ([]utterance.Segment, error) {
	s, err := e.lock(project)
	if err != nil {
		return nil, err
	}
	defer s.mu.Unlock()

	if _, ok := e.content.Tree(input); ok {
		return e.startTree(ctx, s, input, true)
	}
	if direct || s.node != nil && s.node.ID == e.content.Roles.RunPrompt {
		if err := e.enter(s, NodeID(input)); err != nil {
			return nil, err
		}
		return e.showNext(ctx, s, s.node.Utterance, true)
	}
	if s.node == nil {
		return []utterance.Segment{}, nil
	}
	if len(s.node.Options) == 0 {
		text := s.node.Utterance
		s.node = nil
		return displayOnly(utterance.Parse(text)).Segments(e.links), nil
	}
	if input == "" {
		return []utterance.Segment{}, nil
	}

	next := NodeID(input)
	if _, ok := e.lookup(s, next); !ok {
		idx, err := strconv.Atoi(input)
		if err != nil || idx < 0 || idx >= len(s.node.Options) {
			return nil, fmt.Errorf("%w: option %q", ErrUnknownNode, input)
		}
		next = s.node.Options[idx].Target(s.language)
	}
	if err := e.enter(s, next); err != nil {
		return nil, err
	}
	s.node.Params.merge(&s.params)
	if s.params.Section != "" {
		s.section = s.params.Section
	}
	return e.showNext(ctx, s, s.node.Utterance, true)
}

// ShowNextDialogue renders text, or the current node's utterance when text is
// empty, against the session.
func (e *Engine) ShowNextDialogue(ctx context.Context, project, text string) ([]utterance.Segment, error) {
	s, err := e.lock(project)
	if err != nil {
		return nil, err
	}
	defer s.mu.Unlock()
	if s.node == nil {
		return []utterance.Segment{}, nil
	}
	if text == "" {
		text = s.node.Utterance
	}
	return e.showNext(ctx, s, text, true)
}

// ActiveWaits reports whether the conversation of project is suspended.
func (e *Engine) ActiveWaits(project string) (bool, error) {
	s, err := e.lock(project)
	if err != nil {
		return false, err
	}
	defer s.mu.Unlock()
	return s.wait.Active(), nil
}

// StudentInteract marks whether the student has engaged with the agent.
// Unprompted suggestions are only made to engaged students.
func (e *Engine) StudentInteract(project string, interacted bool) error {
	s, err := e.lock(project)
	if err != nil {
		return err
	}
	defer s.mu.Unlock()
	s.interacted = interacted
	return nil
}

// SetCurrentOverlap stores the overlapping sounds found in the last run.
func (e *Engine) SetCurrentOverlap(project string, overlaps []Overlap) error {
	s, err := e.lock(project)
	if err != nil {
		return err
	}
	defer s.mu.Unlock()
	s.overlaps = append([]Overlap(nil), overlaps...)
	if len(overlaps) > 0 {
		e.record(s, history.E(history.LabelOverlap, overlaps), "")
	}
	return nil
}

// SetUIState records the client layout used to choose highlight targets.
func (e *Engine) SetUIState(project string, ui UIState) error {
	s, err := e.lock(project)
	if err != nil {
		return err
	}
	defer s.mu.Unlock()
	s.ui = ui
	return nil
}

// AddCurriculumPage records that the student opened a curriculum page,
// unless the last entry already records the same page.
func (e *Engine) AddCurriculumPage(project, page string) error {
	s, err := e.lock(project)
	if err != nil {
		return err
	}
	defer s.mu.Unlock()
	if n := len(s.history); n > 0 {
		last := s.history[n-1]
		if last.Label == history.LabelCurriculum && len(last.Args) > 0 && last.Args[0] == page {
			return nil
		}
	}
	e.record(s, history.E(history.LabelCurriculum, page), "")
	return nil
}

// CheckForCodeUpdates records the script when it differs from the last one
// seen for project. The first script seen is only remembered.
func (e *Engine) CheckForCodeUpdates(project, code string) error {
	s, err := e.lock(project)
	if err != nil {
		return err
	}
	defer s.mu.Unlock()
	if code == "" {
		return nil
	}
	prev, seen := e.recent.Get(project)
	e.recent.Add(project, code)
	if seen && prev != code {
		e.record(s, history.E(history.LabelCodeUpdates), code)
	}
	return nil
}

// StudentEditedCode counts an edit. After more than editThreshold edits
// without a run, and with nothing else going on, the agent asks the student
// to run their code and the prompt is returned; otherwise nil.
func (e *Engine) StudentEditedCode(ctx context.Context, project string) ([]utterance.Segment, error) {
	s, err := e.lock(project)
	if err != nil {
		return nil, err
	}
	defer s.mu.Unlock()
	s.edits++
	if s.edits <= editThreshold || s.helpTopic != "" || s.suggestion != nil || e.lastNode(s) == e.content.Roles.RunPrompt {
		return nil, nil
	}
	s.edits = 0
	e.record(s, history.E(history.LabelStudentEdited, editThreshold), "")
	if err := e.enter(s, e.content.Roles.RunPrompt); err != nil {
		return nil, err
	}
	return e.showNext(ctx, s, s.node.Utterance, false)
}

// Menu lists the top-level menus with their buttons.
func (e *Engine) Menu() []MenuView {
	out := make([]MenuView, 0, len(e.content.Menus))
	for _, m := range e.content.Menus {
		v := MenuView{Name: m.Name, Label: m.Label}
		for _, id := range m.Options {
			if n, ok := e.content.Node(id); ok {
				v.Buttons = append(v.Buttons, Button{Label: n.Title, Value: string(id)})
			}
		}
		out = append(out, v)
	}
	return out
}

// MenuView is a menu with resolved buttons.
type MenuView struct {
	Name    string   `json:"name"`
	Label   string   `json:"label"`
	Buttons []Button `json:"buttons"`
}

// lookup finds a generated node of s or an authored node.
func (e *Engine) lookup(s *Session, id NodeID) (*Node, bool) {
	if n, ok := s.synth[id]; ok {
		return n, true
	}
	return e.content.Node(id)
}

// enter makes a working copy of id the active node.
func (e *Engine) enter(s *Session, id NodeID) error {
	n, ok := e.lookup(s, id)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownNode, id)
	}
	s.node = n.clone()
	return nil
}

func (e *Engine) startTree(ctx context.Context, s *Session, name string, prompted bool) ([]utterance.Segment, error) {
	id, ok := e.content.Tree(name)
	if !ok {
		return nil, fmt.Errorf("%w: tree %q", ErrUnknownNode, name)
	}
	if err := e.enter(s, id); err != nil {
		return nil, err
	}
	return e.showNext(ctx, s, s.node.Utterance, prompted)
}

// record appends an entry to the session history and publishes it.
func (e *Engine) record(s *Session, entry history.Entry, source string) {
	s.history = append(s.history, entry)
	e.pub.Publish(s.project, entry, source)
}

// lastNode returns the most recent history entry that names a node.
func (e *Engine) lastNode(s *Session) NodeID {
	for i := len(s.history) - 1; i >= 0; i-- {
		id := NodeID(s.history[i].Label)
		if _, ok := e.lookup(s, id); ok {
			return id
		}
	}
	return ""
}

// displayOnly keeps the parts of a template that render: text, links and
// filled sound recommendations.
func displayOnly(t utterance.Template) utterance.Template {
	out := make(utterance.Template, 0, len(t))
	for _, tok := range t {
		switch tok.Keyword {
		case "", utterance.KeywordLink, utterance.KeywordSoundRec:
			out = append(out, tok)
		}
	}
	return out
}
