// Package dialogue implements the turn-based medical-intake state machine.
//
// The Manager owns one conversation: it holds the state context, binds the
// flow of the current state, and orchestrates the per-turn pipeline of
// termination checks, field extraction, state transition, and response
// production. Collection states answer with the next outstanding question;
// output states answer with generated text grounded in retrieved knowledge.
package dialogue

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/medpipe/medpipe/internal/catalog"
	"github.com/medpipe/medpipe/internal/flow"
	"github.com/medpipe/medpipe/internal/genai"
	"github.com/medpipe/medpipe/internal/knowledge"
	"github.com/medpipe/medpipe/internal/models"
	"github.com/medpipe/medpipe/internal/prompts"
	"github.com/medpipe/medpipe/internal/tone"
)

// Referral urgency labels passed to generation.
const (
	UrgencyUrgent    = "urgent"
	UrgencyNonUrgent = "non_urgent"
)

// defaultRetrievalK is how many knowledge snippets back one generation.
const defaultRetrievalK = 3

// Manager drives one conversation. It is not safe for concurrent use; the
// session layer serializes access per conversation.
type Manager struct {
	cfg       models.Config
	cats      *catalog.Set
	retriever knowledge.Retriever
	generator genai.ClientInterface
	tracker   *tone.Tracker

	c       *models.StateContext
	flow    flow.Flow
	history []models.ConversationMessage
	urgency string
}

// NewManager creates a manager for a fresh conversation. The retriever and
// generator may be nil; generation states then fail with
// ErrGeneratorNotConfigured or proceed without knowledge context.
func NewManager(cfg models.Config, cats *catalog.Set, retriever knowledge.Retriever, generator genai.ClientInterface) *Manager {
	return NewManagerWithContext(cfg, cats, retriever, generator, models.NewStateContext())
}

// NewManagerWithContext creates a manager over an existing state context,
// used when restoring a persisted conversation. The flow is rebound to the
// context's current state.
func NewManagerWithContext(cfg models.Config, cats *catalog.Set, retriever knowledge.Retriever, generator genai.ClientInterface, c *models.StateContext) *Manager {
	m := &Manager{
		cfg:       cfg,
		cats:      cats,
		retriever: retriever,
		generator: generator,
		tracker:   tone.NewTracker(),
		c:         c,
		urgency:   UrgencyNonUrgent,
	}
	m.flow, _ = flow.New(c.State, cats)
	return m
}

// Context returns the conversation's state context.
func (m *Manager) Context() *models.StateContext { return m.c }

// State returns the current dialogue state.
func (m *Manager) State() models.DialogueState { return m.c.State }

// History returns the conversation history.
func (m *Manager) History() []models.ConversationMessage { return m.history }

// SetHistory replaces the conversation history, used on session restore.
func (m *Manager) SetHistory(history []models.ConversationMessage) { m.history = history }

// Ended reports whether the conversation has reached the terminal state.
func (m *Manager) Ended() bool { return m.c.State.Terminal() }

// ProcessMessage runs one turn of the dialogue and returns the assistant
// reply. Termination checks run before the turn is counted; a conversation
// past its time or turn budget is moved to the terminal state and answered
// with the corresponding fixed message.
func (m *Manager) ProcessMessage(ctx context.Context, message string) (string, error) {
	if m.c.State.Terminal() {
		return prompts.ClosureMessage, nil
	}
	if m.c.Elapsed() > m.cfg.Timeout() {
		slog.Info("dialogue: conversation timed out", "elapsed", m.c.Elapsed(), "turns", m.c.TurnCount)
		m.transitionTo(models.StateEnded)
		return m.reply(prompts.TimeoutMessage), nil
	}
	if m.c.TurnCount >= m.cfg.MaxTurns {
		slog.Info("dialogue: turn budget exhausted", "turns", m.c.TurnCount)
		m.transitionTo(models.StateEnded)
		return m.reply(prompts.MaxTurnsMessage), nil
	}

	m.c.TurnCount++
	m.c.Touch()
	m.tracker.Observe(message)
	m.history = append(m.history, models.ConversationMessage{Role: "user", Content: message, Timestamp: time.Now()})

	// The first message of a conversation only opens it: advance out of the
	// initial state before extraction so the greeting turn asks the first
	// base info question instead of storing the greeting as an answer.
	if m.c.State == models.StateInitial {
		m.transitionTo(models.StateCollectingBaseInfo)
	}

	transitioned := false
	if m.flow != nil {
		emergency := m.flow.ProcessResponse(message, m.c)
		if emergency {
			m.urgency = UrgencyUrgent
			m.transitionTo(models.StateReferral)
			transitioned = true
		} else if next := m.flow.NextState(m.c); next != m.c.State {
			if models.CanTransition(m.c.State, next) {
				m.transitionTo(next)
				transitioned = true
			} else {
				slog.Warn("dialogue: disallowed transition suppressed", "from", m.c.State, "to", next)
			}
		}
	}

	out, err := m.respond(ctx, message, transitioned)
	if err != nil {
		return "", err
	}
	return m.reply(out), nil
}

// respond produces the turn's reply for the (possibly just entered) state.
func (m *Manager) respond(ctx context.Context, message string, transitioned bool) (string, error) {
	if m.c.State.RequiresGeneration() {
		return m.generate(ctx, message)
	}
	if m.flow != nil {
		if question, ok := m.flow.NextQuestion(m.c); ok {
			if transitioned {
				return prompts.TransitionNotice + question, nil
			}
			return question, nil
		}
	}
	slog.Warn("dialogue: no reply available", "state", m.c.State, "turn", m.c.TurnCount)
	return prompts.ApologyMessage, nil
}

// generate runs retrieval and the generation collaborator for the current
// output state. The successor transition happens at the start of the next
// turn, driven by this state's flow.
func (m *Manager) generate(ctx context.Context, message string) (string, error) {
	if m.generator == nil {
		return "", models.ErrGeneratorNotConfigured
	}

	query := strings.TrimSpace(m.c.MedicalInfo["main"] + " " + message)
	var knowledgeContext string
	if m.retriever != nil {
		snippets, err := m.retriever.Search(ctx, query, defaultRetrievalK)
		if err != nil {
			// Retrieval failure degrades to ungrounded generation.
			slog.Error("dialogue: knowledge retrieval failed", "state", m.c.State, "error", err)
		} else {
			knowledgeContext = knowledge.FormatContext(snippets)
		}
	}

	pc := genai.PromptContext{
		KnowledgeContext: knowledgeContext,
		FormattedInfo:    m.cats.FormatMedicalInfo(m.c.MedicalInfo),
		Urgency:          m.urgency,
		StyleGuide:       m.tracker.Guide(),
	}
	out, err := m.generator.Generate(ctx, m.c.State, m.history, pc)
	if err != nil {
		return "", fmt.Errorf("generation failed in state %s: %w", m.c.State, err)
	}
	return out, nil
}

// reply records the assistant message and returns it.
func (m *Manager) reply(assistantMessage string) string {
	m.history = append(m.history, models.ConversationMessage{Role: "assistant", Content: assistantMessage, Timestamp: time.Now()})
	return assistantMessage
}

// transitionTo moves the conversation to the given state and rebinds the
// flow. The terminal state has no flow.
func (m *Manager) transitionTo(next models.DialogueState) {
	slog.Info("dialogue: state transition", "from", m.c.State, "to", next, "turn", m.c.TurnCount)
	m.c.State = next
	m.c.Touch()
	m.flow, _ = flow.New(next, m.cats)
}

// Urgency returns the current referral urgency label.
func (m *Manager) Urgency() string { return m.urgency }
