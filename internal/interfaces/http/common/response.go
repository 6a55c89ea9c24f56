package common

import (
	"encoding/json"
	"log"
	"net/http"
)

// Envelope is the response body shared by every endpoint.
type Envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// WriteJSON serializes payload to JSON with status and logs on failure.
func WriteJSON(logger *log.Logger, w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil && logger != nil {
		logger.Printf("JSON エンコードに失敗: %v", err)
	}
}

// WriteSuccess wraps data in a success envelope.
func WriteSuccess(logger *log.Logger, w http.ResponseWriter, status int, message string, data any) {
	WriteJSON(logger, w, status, Envelope{Success: true, Message: message, Data: data})
}

// WriteFailure writes a failure envelope with a message key and detail.
func WriteFailure(logger *log.Logger, w http.ResponseWriter, status int, message, detail string) {
	WriteJSON(logger, w, status, Envelope{Success: false, Message: message, Error: detail})
}

// WriteError maps err to its status and message key. Internal errors are logged and hidden.
func WriteError(logger *log.Logger, w http.ResponseWriter, err error) {
	mapped := MapError(err)
	if mapped.Status >= http.StatusInternalServerError && logger != nil {
		logger.Printf("request failed: %v", err)
	}
	WriteFailure(logger, w, mapped.Status, mapped.Message, mapped.Detail)
}
