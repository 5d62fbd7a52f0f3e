// Package testutil provides common test utilities and helpers for MedPipe tests.
package testutil

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/medpipe/medpipe/internal/models"
	"github.com/medpipe/medpipe/internal/store"
)

// AssertHTTPStatus checks the HTTP status code and fails the test if it doesn't match.
func AssertHTTPStatus(t *testing.T, expected, actual int, context string) {
	t.Helper()
	if actual != expected {
		t.Errorf("%s: expected status %d, got %d", context, expected, actual)
	}
}

// AssertJSONResponse decodes the standard response envelope and validates
// the status field.
func AssertJSONResponse(t *testing.T, rr *httptest.ResponseRecorder, expectedStatus models.APIStatus) models.APIResponse {
	t.Helper()
	var response models.APIResponse
	if err := json.NewDecoder(rr.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode JSON response: %v", err)
	}
	if response.Status != expectedStatus {
		t.Errorf("expected status %q, got %q", expectedStatus, response.Status)
	}
	return response
}

// CreateHTTPRequest creates an HTTP request with optional JSON body for testing.
func CreateHTTPRequest(t *testing.T, method, url string, body interface{}) *http.Request {
	t.Helper()
	reqBody := bytes.NewBuffer(nil)
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to marshal request body: %v", err)
		}
		reqBody = bytes.NewBuffer(jsonData)
	}
	req, err := http.NewRequest(method, url, reqBody)
	if err != nil {
		t.Fatalf("failed to create HTTP request: %v", err)
	}
	return req
}

// SeedSnippets adds knowledge snippets to the store for testing.
func SeedSnippets(t *testing.T, st store.Store, texts ...string) {
	t.Helper()
	snippets := make([]models.Snippet, 0, len(texts))
	for _, text := range texts {
		snippets = append(snippets, models.Snippet{Text: text})
	}
	if err := st.AddSnippets(snippets); err != nil {
		t.Fatalf("failed to seed snippets: %v", err)
	}
}

// MustMarshalJSON marshals an object to JSON and fails the test on error.
func MustMarshalJSON(t *testing.T, v interface{}) []byte {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("failed to marshal JSON: %v", err)
	}
	return data
}

// MustUnmarshalJSON unmarshals JSON data into target and fails the test on error.
func MustUnmarshalJSON(t *testing.T, data []byte, target interface{}) {
	t.Helper()
	if err := json.Unmarshal(data, target); err != nil {
		t.Fatalf("failed to unmarshal JSON: %v", err)
	}
}
