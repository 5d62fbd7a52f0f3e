package store

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/medpipe/medpipe/internal/models"
)

// nilIfEmpty returns nil if s is empty, otherwise returns s.
// Used for nullable database columns.
func nilIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// marshalSession encodes the context and history columns of a session row.
func marshalSession(s models.Session) (contextJSON, historyJSON string, err error) {
	ctxBytes, err := json.Marshal(s.Context)
	if err != nil {
		return "", "", fmt.Errorf("failed to marshal session context: %w", err)
	}
	if len(s.History) == 0 {
		return string(ctxBytes), "", nil
	}
	histBytes, err := json.Marshal(s.History)
	if err != nil {
		return "", "", fmt.Errorf("failed to marshal session history: %w", err)
	}
	return string(ctxBytes), string(histBytes), nil
}

// scanSession scans a session row from either sql.Rows or sql.Row.
func scanSession(scan func(dest ...interface{}) error) (models.Session, error) {
	var s models.Session
	var username, contextJSON, historyJSON sql.NullString
	if err := scan(&s.ID, &username, &contextJSON, &historyJSON, &s.CreatedAt, &s.UpdatedAt, &s.LastActivity); err != nil {
		return s, err
	}
	s.Username = username.String
	if contextJSON.Valid {
		if err := json.Unmarshal([]byte(contextJSON.String), &s.Context); err != nil {
			return s, fmt.Errorf("failed to unmarshal session context: %w", err)
		}
	}
	if historyJSON.Valid && historyJSON.String != "" {
		if err := json.Unmarshal([]byte(historyJSON.String), &s.History); err != nil {
			return s, fmt.Errorf("failed to unmarshal session history: %w", err)
		}
	}
	return s, nil
}

// scanSnippet scans a snippet row, decoding the metadata column.
func scanSnippet(scan func(dest ...interface{}) error) (models.Snippet, error) {
	var sn models.Snippet
	var id int64
	var metadataJSON sql.NullString
	if err := scan(&id, &sn.Text, &metadataJSON); err != nil {
		return sn, err
	}
	if metadataJSON.Valid && metadataJSON.String != "" {
		if err := json.Unmarshal([]byte(metadataJSON.String), &sn.Metadata); err != nil {
			return sn, fmt.Errorf("failed to unmarshal snippet metadata: %w", err)
		}
	}
	return sn, nil
}

// marshalMetadata encodes snippet metadata for storage.
func marshalMetadata(sn models.Snippet) (string, error) {
	if len(sn.Metadata) == 0 {
		return "", nil
	}
	b, err := json.Marshal(sn.Metadata)
	if err != nil {
		return "", fmt.Errorf("failed to marshal snippet metadata: %w", err)
	}
	return string(b), nil
}
