// Package models defines API response structures shared by the HTTP layer.
package models

// APIStatus represents the status field of an API response.
type APIStatus string

const (
	// StatusOK indicates a successful operation.
	StatusOK APIStatus = "ok"
	// StatusError indicates a failed operation.
	StatusError APIStatus = "error"
)

// APIResponse is the standard JSON envelope returned by the HTTP API.
type APIResponse struct {
	Status  APIStatus   `json:"status"`
	Message string      `json:"message,omitempty"`
	Result  interface{} `json:"result,omitempty"`
}

// Success creates a successful response with the given result payload.
func Success(result interface{}) APIResponse {
	return APIResponse{Status: StatusOK, Result: result}
}

// SuccessWithMessage creates a successful response with a message and payload.
func SuccessWithMessage(message string, result interface{}) APIResponse {
	return APIResponse{Status: StatusOK, Message: message, Result: result}
}

// Error creates an error response with the given message.
func Error(message string) APIResponse {
	return APIResponse{Status: StatusError, Message: message}
}
