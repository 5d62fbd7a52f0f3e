// Package models defines session persistence structures for MedPipe.
package models

import "time"

// Session is the persisted snapshot of one conversation. The live dialogue
// manager owns the in-memory StateContext; the session row is written back
// after every processed turn so conversations survive a restart.
type Session struct {
	ID           string                `json:"id"`
	Username     string                `json:"username,omitempty"`
	Context      StateContext          `json:"context"`
	History      []ConversationMessage `json:"history,omitempty"`
	CreatedAt    time.Time             `json:"created_at"`
	UpdatedAt    time.Time             `json:"updated_at"`
	LastActivity time.Time             `json:"last_activity"`
}
