// Package api carries the HTTP envelope and middleware shared by all
// handlers: every response is {"status", "data", "message"}.
package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"libraflow/internal/domain"
)

type envelope struct {
	Status  string      `json:"status"`
	Data    interface{} `json:"data"`
	Message string      `json:"message,omitempty"`
}

// Success writes a success envelope.
func Success(w http.ResponseWriter, status int, data interface{}, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(envelope{Status: "success", Data: data, Message: message})
}

// Error writes an error envelope.
func Error(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(envelope{Status: "error", Message: message})
}

// Fail maps a service error onto its HTTP status and writes the envelope.
func Fail(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		Error(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrInvalidTransition), errors.Is(err, domain.ErrInvalidArgument):
		Error(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrStorageUnavailable):
		Error(w, http.StatusServiceUnavailable, "storage unavailable")
	default:
		Error(w, http.StatusInternalServerError, "internal error")
	}
}
