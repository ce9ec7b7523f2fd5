package utils

import (
	"encoding/json"
	"log"
	"net/http"
)

// Error codes shared across handlers.
const (
	CodeUnauthorized  = "unauthorized"
	CodeUnsafeContent = "unsafe_content"
	CodeRateLimited   = "rate_limited"
	CodeMisconfigured = "misconfigured"
	CodeBadRequest    = "bad_request"
	CodeNotFound      = "not_found"
	CodeConflict      = "conflict"
	CodeInternal      = "internal"
)

// ErrorPayload is the uniform error envelope.
type ErrorPayload struct {
	Error         string `json:"error"`
	Code          string `json:"code"`
	Reason        string `json:"reason,omitempty"`
	RetryAfterSec int    `json:"retryAfterSeconds,omitempty"`
	CrisisLevel   int    `json:"crisisLevel,omitempty"`
	ShowEmergency bool   `json:"showEmergency,omitempty"`
}

// RespondJSON writes a JSON response.
func RespondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("failed to encode response: %v", err)
	}
}

// RespondError writes a coded error envelope.
func RespondError(w http.ResponseWriter, status int, code, message string) {
	RespondJSON(w, status, ErrorPayload{Error: message, Code: code})
}

// RespondErrorPayload writes a prebuilt error envelope.
func RespondErrorPayload(w http.ResponseWriter, status int, payload ErrorPayload) {
	RespondJSON(w, status, payload)
}
