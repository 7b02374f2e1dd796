package agent

import (
	"context"

	"github.com/ashureev/cadence/internal/codeinfo"
	"github.com/ashureev/cadence/internal/diagnosis"
	"github.com/ashureev/cadence/internal/dialogue"
	"github.com/ashureev/cadence/internal/music"
	"github.com/ashureev/cadence/internal/utterance"
)

// Engine defines the dialogue operations the agent drives.
type Engine interface {
	SetActiveProject(project string, lang codeinfo.Language) error
	CloseProject(project string) bool
	View(project string) (dialogue.View, error)

	GenerateOutput(ctx context.Context, project, input string, direct bool) ([]utterance.Segment, error)
	ShowNextDialogue(ctx context.Context, project, text string) ([]utterance.Segment, error)
	CreateButtons(project string) ([]dialogue.Button, error)
	ActiveWaits(project string) (bool, error)

	StoreErrorInfo(project string, err diagnosis.RuntimeError, source string, lang codeinfo.Language) (diagnosis.Classification, error)
	HandleError(project string, err diagnosis.RuntimeError, source string) (string, error)
	ProcessCodeRun(ctx context.Context, project, source string, report *music.Report) ([]utterance.Segment, error)
	CheckForCodeUpdates(project, code string) error
	StudentEditedCode(ctx context.Context, project string) ([]utterance.Segment, error)

	StudentInteract(project string, interacted bool) error
	SetCurrentOverlap(project string, overlaps []dialogue.Overlap) error
	SetUIState(project string, ui dialogue.UIState) error
	AddCurriculumPage(project, page string) error
}

// Ensure the dialogue engine implements Engine.
var _ Engine = (*dialogue.Engine)(nil)
