// Package models defines the core data structures for MedPipe.
//
// It includes the dialogue state enumeration, the per-conversation state
// context, process configuration, and shared types used across modules.
package models

import (
	"errors"
	"time"
)

// DialogueState identifies a phase of the medical-intake conversation.
type DialogueState string

const (
	// StateInitial is the state of a freshly created conversation.
	StateInitial DialogueState = "initial"
	// StateCollectingBaseInfo collects age, gender and basic history.
	StateCollectingBaseInfo DialogueState = "collecting_base_info"
	// StateCollectingSymptoms collects the chief complaint and its details.
	StateCollectingSymptoms DialogueState = "collecting_symptoms"
	// StateLifeStyle collects sleep, diet and other lifestyle habits.
	StateLifeStyle DialogueState = "life_style"
	// StateDiagnosis produces a preliminary assessment.
	StateDiagnosis DialogueState = "diagnosis"
	// StateMedicalAdvice produces care suggestions.
	StateMedicalAdvice DialogueState = "medical_advice"
	// StateReferral covers both urgent and routine referral output.
	StateReferral DialogueState = "referral"
	// StateEducation produces closing health education output.
	StateEducation DialogueState = "education"
	// StateEnded is the terminal state.
	StateEnded DialogueState = "ended"
)

// StateTransitions is the explicit transition graph of the dialogue.
// The first entry of each list is the default successor.
var StateTransitions = map[DialogueState][]DialogueState{
	StateInitial:            {StateCollectingBaseInfo},
	StateCollectingBaseInfo: {StateCollectingSymptoms},
	StateCollectingSymptoms: {StateLifeStyle, StateReferral},
	StateLifeStyle:          {StateDiagnosis},
	StateDiagnosis:          {StateMedicalAdvice, StateReferral},
	StateMedicalAdvice:      {StateEducation},
	StateReferral:           {StateEducation},
	StateEducation:          {StateEnded},
	StateEnded:              {StateEnded},
}

// IsValidState reports whether s is one of the enumerated dialogue states.
func IsValidState(s DialogueState) bool {
	_, ok := StateTransitions[s]
	return ok
}

// Terminal reports whether the state ends the conversation.
func (s DialogueState) Terminal() bool {
	return s == StateEnded
}

// RequiresGeneration reports whether entering this state requires a
// generated natural-language response instead of a collection question.
func (s DialogueState) RequiresGeneration() bool {
	switch s {
	case StateDiagnosis, StateMedicalAdvice, StateReferral, StateEducation:
		return true
	default:
		return false
	}
}

// CanTransition reports whether the transition graph allows from -> to.
func CanTransition(from, to DialogueState) bool {
	for _, next := range StateTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// StateContext is the mutable per-conversation record. It is exclusively
// owned by the dialogue manager; flows receive it for the duration of a
// single call and must not retain it.
type StateContext struct {
	State       DialogueState     `json:"state"`
	MedicalInfo map[string]string `json:"medical_info"`
	TurnCount   int               `json:"turn_count"`
	StartTime   time.Time         `json:"start_time"`
	LastUpdate  time.Time         `json:"last_update,omitempty"`
}

// NewStateContext creates a fresh context in the initial state.
func NewStateContext() *StateContext {
	return &StateContext{
		State:       StateInitial,
		MedicalInfo: make(map[string]string),
		StartTime:   time.Now(),
	}
}

// Elapsed returns the wall-clock time since the context was created.
func (c *StateContext) Elapsed() time.Duration {
	return time.Since(c.StartTime)
}

// Touch records that the context was mutated.
func (c *StateContext) Touch() {
	c.LastUpdate = time.Now()
}

// Config holds process-level dialogue configuration. It is read once at
// startup and passed into the manager at construction; there is no ambient
// package-level configuration.
type Config struct {
	MaxTurns       int     // maximum number of processed turns per conversation
	TimeoutSeconds int     // wall-clock budget per conversation
	MinConfidence  float64 // confidence floor for the generation-side intent classifier
}

// Default configuration values.
const (
	DefaultMaxTurns       = 100
	DefaultTimeoutSeconds = 500
	DefaultMinConfidence  = 0.7
)

// DefaultConfig returns the default dialogue configuration.
func DefaultConfig() Config {
	return Config{
		MaxTurns:       DefaultMaxTurns,
		TimeoutSeconds: DefaultTimeoutSeconds,
		MinConfidence:  DefaultMinConfidence,
	}
}

// Timeout returns the conversation timeout as a duration.
func (c Config) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// Snippet is a ranked text fragment returned by knowledge retrieval.
type Snippet struct {
	Text     string            `json:"text"`
	Metadata map[string]string `json:"metadata,omitempty"`
	Score    float64           `json:"score,omitempty"`
}

// ConversationMessage is a single exchange entry in the conversation history.
type ConversationMessage struct {
	Role      string    `json:"role"` // "user" or "assistant"
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Error variables shared across modules.
var (
	ErrSessionNotFound        = errors.New("session not found")
	ErrSessionExpired         = errors.New("session expired")
	ErrGeneratorNotConfigured = errors.New("generation collaborator not configured")
	ErrCatalogNotFound        = errors.New("field catalog not found")
	ErrUnknownField           = errors.New("field not present in catalog")
)
