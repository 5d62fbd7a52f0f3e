// Package flow provides the shared field-collection mechanics used by the
// information-gathering flows.
package flow

import (
	"log/slog"
	"strings"

	"github.com/medpipe/medpipe/internal/catalog"
	"github.com/medpipe/medpipe/internal/models"
	"github.com/medpipe/medpipe/internal/prompts"
)

// collector implements the question/answer bookkeeping common to the
// collection states. It remembers which field the last question asked for
// and records the next user message as that field's answer.
type collector struct {
	state   models.DialogueState
	cat     *catalog.Catalog
	pending string // field id of the outstanding question, empty if none
}

func newCollector(state models.DialogueState, cat *catalog.Catalog) collector {
	return collector{state: state, cat: cat}
}

// State returns the dialogue state this flow is bound to.
func (f *collector) State() models.DialogueState { return f.state }

// ProcessResponse records the message as the answer to the outstanding
// question, if any. The first message after entering a collection state has
// no outstanding question and is not captured as a field value.
func (f *collector) ProcessResponse(message string, c *models.StateContext) bool {
	message = strings.TrimSpace(message)
	if f.pending == "" || message == "" {
		return false
	}
	c.MedicalInfo[f.pending] = message
	c.Touch()
	slog.Debug("flow.ProcessResponse: field recorded", "state", f.state, "field", f.pending)
	f.pending = ""
	return false
}

// NextQuestion selects the highest-priority unanswered field and returns
// its prompt, marking the field as the outstanding question.
func (f *collector) NextQuestion(c *models.StateContext) (string, bool) {
	unfilled := f.cat.Unfilled(c.MedicalInfo)
	if len(unfilled) == 0 {
		return "", false
	}
	f.pending = unfilled[0].ID
	return prompts.Question(unfilled[0]), true
}

// NextState advances to the default successor once every owned field is
// filled. Flows with branch logic override this.
func (f *collector) NextState(c *models.StateContext) models.DialogueState {
	if !f.cat.Complete(c.MedicalInfo) {
		return f.state
	}
	return models.StateTransitions[f.state][0]
}
