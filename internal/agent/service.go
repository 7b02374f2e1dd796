package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ashureev/cadence/internal/codeinfo"
	"github.com/ashureev/cadence/internal/dialogue"
	"github.com/ashureev/cadence/internal/domain"
	"github.com/ashureev/cadence/internal/history"
	"github.com/ashureev/cadence/internal/store"
	"github.com/ashureev/cadence/internal/utterance"
)

// errorTree is the conversation started for a new compile error once the
// student has talked to the agent.
const errorTree = "error"

const defaultHistoryLimit = 500

// ErrInvalidLanguage is returned when a project is activated with a language
// the agent does not speak.
var ErrInvalidLanguage = errors.New("invalid language")

// Service runs the dialogue engine on behalf of students: it keys projects by
// user, keeps project records current, logs the conversation and pushes every
// reply to the project's live connections.
type Service struct {
	engine Engine
	repo   store.Repository
	convo  ConversationLogger
	hub    *Hub
	log    *slog.Logger
	now    func() time.Time
}

// NewService creates a service. A nil logger or hub disables that output.
func NewService(engine Engine, repo store.Repository, convo ConversationLogger, hub *Hub, log *slog.Logger) *Service {
	if convo == nil {
		convo = noopConversationLogger{}
	}
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		engine: engine,
		repo:   repo,
		convo:  convo,
		hub:    hub,
		log:    log,
		now:    time.Now,
	}
}

// Activate starts or resumes the conversation about a project. An empty
// language is inferred from the project name.
func (s *Service) Activate(ctx context.Context, c Caller, name, language string) (*domain.Project, error) {
	lang := codeinfo.LanguageOf(name)
	if language != "" {
		var err error
		if lang, err = codeinfo.ParseLanguage(language); err != nil {
			return nil, fmt.Errorf("activate project: %w: %v", ErrInvalidLanguage, err)
		}
	}
	key := domain.ProjectKey(c.UserID, name)
	if err := s.engine.SetActiveProject(key, lang); err != nil {
		return nil, fmt.Errorf("activate project: %w", err)
	}

	now := s.now()
	p, err := s.repo.GetProject(ctx, c.UserID, name)
	if err != nil {
		return nil, fmt.Errorf("load project: %w", err)
	}
	if p == nil {
		p = &domain.Project{UserID: c.UserID, Name: name, CreatedAt: now}
	}
	p.Language = lang.String()
	p.LastActiveAt = now
	if err := s.repo.UpsertProject(ctx, p); err != nil {
		return nil, fmt.Errorf("save project: %w", err)
	}
	s.log.Info("Project activated", "user_id", c.UserID, "project", name, "language", lang)
	return p, nil
}

// Dialogue answers a student's reply or typed input.
func (s *Service) Dialogue(ctx context.Context, c Caller, name string, req DialogueRequest) (Reply, error) {
	key := domain.ProjectKey(c.UserID, name)
	s.logEvent(c, name, "outbound", "dialogue_input", req.Input, map[string]any{"direct": req.Direct})

	if req.Input != "" {
		if err := s.engine.StudentInteract(key, true); err != nil {
			return Reply{}, err
		}
	}
	segments, err := s.engine.GenerateOutput(ctx, key, req.Input, req.Direct)
	if err != nil {
		return Reply{}, err
	}
	return s.respond(c, name, "dialogue_reply", segments)
}

// Next renders a follow-up utterance at the current node, or the node's own
// utterance when none is given.
func (s *Service) Next(ctx context.Context, c Caller, name string, req NextRequest) (Reply, error) {
	key := domain.ProjectKey(c.UserID, name)
	segments, err := s.engine.ShowNextDialogue(ctx, key, req.Utterance)
	if err != nil {
		return Reply{}, err
	}
	return s.respond(c, name, "dialogue_reply", segments)
}

// Buttons returns the replies offered at the current node.
func (s *Service) Buttons(_ context.Context, c Caller, name string) ([]dialogue.Button, error) {
	return s.engine.CreateButtons(domain.ProjectKey(c.UserID, name))
}

// CompileError diagnoses a failed run. A new error opens the error
// conversation for a student who has been talking to the agent.
func (s *Service) CompileError(ctx context.Context, c Caller, name string, req CompileErrorRequest) (CompileErrorResponse, error) {
	key := domain.ProjectKey(c.UserID, name)
	view, err := s.engine.View(key)
	if err != nil {
		return CompileErrorResponse{}, err
	}
	lang := view.Language
	if req.Language != nil {
		lang = *req.Language
	}

	status, err := s.engine.HandleError(key, req.Error, req.Source)
	if err != nil {
		return CompileErrorResponse{}, err
	}
	classification, err := s.engine.StoreErrorInfo(key, req.Error, req.Source, lang)
	if err != nil {
		return CompileErrorResponse{}, err
	}
	s.touchProject(ctx, c.UserID, name, false)
	s.logEvent(c, name, "outbound", "compile_error", req.Error.String(), map[string]any{
		"classification": classification.String(),
		"status":         status,
	})

	resp := CompileErrorResponse{Classification: classification, Status: status, Reply: emptyReply()}
	if status != dialogue.StatusNewError || !view.Interacted || view.Done {
		return resp, nil
	}
	segments, err := s.engine.GenerateOutput(ctx, key, errorTree, false)
	if err != nil {
		return CompileErrorResponse{}, err
	}
	resp.Reply, err = s.respond(c, name, "error_reply", segments)
	if err != nil {
		return CompileErrorResponse{}, err
	}
	return resp, nil
}

// CompileSuccess takes in a successful run and its song analysis.
func (s *Service) CompileSuccess(ctx context.Context, c Caller, name string, req CompileSuccessRequest) (Reply, error) {
	key := domain.ProjectKey(c.UserID, name)
	segments, err := s.engine.ProcessCodeRun(ctx, key, req.Source, req.Report)
	if err != nil {
		return Reply{}, err
	}
	s.touchProject(ctx, c.UserID, name, true)
	sections := 0
	if req.Report != nil {
		sections = len(req.Report.Sections)
	}
	s.logEvent(c, name, "outbound", "compile_success", "", map[string]any{"sections": sections})
	return s.respond(c, name, "run_reply", segments)
}

// Code takes in an edit of the project's script.
func (s *Service) Code(ctx context.Context, c Caller, name string, req CodeRequest) (Reply, error) {
	key := domain.ProjectKey(c.UserID, name)
	if err := s.engine.CheckForCodeUpdates(key, req.Source); err != nil {
		return Reply{}, err
	}
	segments, err := s.engine.StudentEditedCode(ctx, key)
	if err != nil {
		return Reply{}, err
	}
	if len(segments) == 0 {
		return emptyReply(), nil
	}
	return s.respond(c, name, "edit_reply", segments)
}

// Waits reports whether the conversation is suspended.
func (s *Service) Waits(c Caller, name string) (bool, error) {
	return s.engine.ActiveWaits(domain.ProjectKey(c.UserID, name))
}

// State returns a snapshot of the conversation.
func (s *Service) State(c Caller, name string) (dialogue.View, error) {
	return s.engine.View(domain.ProjectKey(c.UserID, name))
}

// Interact sets whether the student is engaged with the agent.
func (s *Service) Interact(c Caller, name string, interacted bool) error {
	return s.engine.StudentInteract(domain.ProjectKey(c.UserID, name), interacted)
}

// Curriculum records a curriculum page the student opened.
func (s *Service) Curriculum(c Caller, name, page string) error {
	return s.engine.AddCurriculumPage(domain.ProjectKey(c.UserID, name), page)
}

// Overlaps reports overlapping sounds found in the last run.
func (s *Service) Overlaps(c Caller, name string, overlaps []dialogue.Overlap) error {
	return s.engine.SetCurrentOverlap(domain.ProjectKey(c.UserID, name), overlaps)
}

// UI records the client's layout.
func (s *Service) UI(c Caller, name string, ui dialogue.UIState) error {
	return s.engine.SetUIState(domain.ProjectKey(c.UserID, name), ui)
}

// History returns the stored transitions of a project, oldest first.
func (s *Service) History(ctx context.Context, c Caller, name string, limit int) ([]history.Record, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	records, err := s.repo.ListHistory(ctx, domain.ProjectKey(c.UserID, name), limit)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	return records, nil
}

// respond completes segments into a reply, logs it and pushes it to the
// project's live connections.
func (s *Service) respond(c Caller, name, eventType string, segments []utterance.Segment) (Reply, error) {
	key := domain.ProjectKey(c.UserID, name)
	reply := emptyReply()
	reply.Segments = segments
	if reply.Segments == nil {
		reply.Segments = []utterance.Segment{}
	}

	buttons, err := s.engine.CreateButtons(key)
	if err != nil {
		return Reply{}, err
	}
	reply.Buttons = buttons
	view, err := s.engine.View(key)
	if err != nil {
		return Reply{}, err
	}
	reply.Dropup = view.Dropup
	reply.Waiting = view.Wait.Active()
	reply.Done = view.Done

	if !reply.Silent() {
		s.logEvent(c, name, "inbound", eventType, utterance.JoinText(segments), map[string]any{
			"node":    view.Node,
			"buttons": len(buttons),
			"waiting": reply.Waiting,
		})
		if s.hub != nil {
			s.hub.Broadcast(key, LiveEvent{Type: EventReply, Project: name, Reply: &reply})
		}
	}
	return reply, nil
}

func (s *Service) touchProject(ctx context.Context, userID, name string, success bool) {
	p, err := s.repo.GetProject(ctx, userID, name)
	if err != nil {
		s.log.Warn("Failed to load project", "error", err, "user_id", userID, "project", name)
		return
	}
	if p == nil {
		return
	}
	p.RecordRun(success, s.now())
	if err := s.repo.UpsertProject(ctx, p); err != nil {
		s.log.Warn("Failed to update project", "error", err, "user_id", userID, "project", name)
	}
}

func (s *Service) logEvent(c Caller, name, direction, eventType, content string, meta map[string]any) {
	if meta == nil {
		meta = map[string]any{}
	}
	if c.RequestID != "" {
		meta["request_id"] = c.RequestID
	}
	s.convo.Log(ConversationLogEvent{
		Timestamp:  s.now().UTC().Format(time.RFC3339Nano),
		UserID:     c.UserID,
		SessionID:  c.SessionID,
		Project:    name,
		Channel:    c.Channel,
		Direction:  direction,
		EventType:  eventType,
		ContentRaw: content,
		Content:    cleanForReadability(content),
		Meta:       meta,
	})
}

// Close releases the conversation logger.
func (s *Service) Close() error {
	return s.convo.Close()
}

func emptyReply() Reply {
	return Reply{Segments: []utterance.Segment{}, Buttons: []dialogue.Button{}}
}

// isClientError reports whether err was caused by the request rather than
// the service.
func isClientError(err error) bool {
	return errors.Is(err, dialogue.ErrProjectNotStarted) ||
		errors.Is(err, dialogue.ErrUnknownNode) ||
		errors.Is(err, ErrInvalidLanguage)
}
