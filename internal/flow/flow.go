// Package flow implements the per-state handlers of the medical-intake
// dialogue.
//
// Each dialogue state has one Flow responsible for extracting the fields
// relevant to that state, selecting the next outstanding question, and
// deciding the state transition. Flows own no persistent data: they operate
// on the StateContext passed in by the dialogue manager and are discarded
// when the manager transitions out of their state.
package flow

import (
	"log/slog"

	"github.com/medpipe/medpipe/internal/catalog"
	"github.com/medpipe/medpipe/internal/models"
)

// Flow is the capability contract every state handler implements.
type Flow interface {
	// State returns the dialogue state this flow is bound to.
	State() models.DialogueState

	// ProcessResponse inspects the user message, writes recognized values
	// into the context's medical info, and reports whether an emergency
	// condition was detected.
	ProcessResponse(message string, c *models.StateContext) bool

	// NextQuestion returns the prompt for the next unanswered field, by
	// importance tier (high before medium before low) and catalog
	// declaration order within a tier. ok is false when every field owned
	// by this state is filled.
	NextQuestion(c *models.StateContext) (question string, ok bool)

	// NextState decides the follow-up state from the collected info.
	NextState(c *models.StateContext) models.DialogueState
}

// Constructor builds a flow instance over the shared field catalogs.
type Constructor func(cats *catalog.Set) Flow

var registry = make(map[models.DialogueState]Constructor)

// Register associates a dialogue state with a flow constructor.
func Register(state models.DialogueState, ctor Constructor) {
	registry[state] = ctor
}

// New instantiates the flow for a state. ok is false for states with no
// handler, such as the terminal state.
func New(state models.DialogueState, cats *catalog.Set) (Flow, bool) {
	ctor, ok := registry[state]
	if !ok {
		slog.Debug("flow.New: no handler registered", "state", state)
		return nil, false
	}
	return ctor(cats), true
}

func init() {
	Register(models.StateInitial, func(cats *catalog.Set) Flow { return NewInitialFlow() })
	Register(models.StateCollectingBaseInfo, func(cats *catalog.Set) Flow { return NewBaseInfoFlow(cats) })
	Register(models.StateCollectingSymptoms, func(cats *catalog.Set) Flow { return NewSymptomFlow(cats) })
	Register(models.StateLifeStyle, func(cats *catalog.Set) Flow { return NewLifestyleFlow(cats) })
	Register(models.StateDiagnosis, func(cats *catalog.Set) Flow { return NewDiagnosisFlow() })
	Register(models.StateMedicalAdvice, func(cats *catalog.Set) Flow { return NewMedicalAdviceFlow() })
	Register(models.StateReferral, func(cats *catalog.Set) Flow { return NewReferralFlow() })
	Register(models.StateEducation, func(cats *catalog.Set) Flow { return NewEducationFlow() })
}
