package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/palumbou/another-documents-chat-ai-sub000/internal/domain"
	"github.com/palumbou/another-documents-chat-ai-sub000/internal/processing"
)

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

// statusFor maps the error taxonomy to HTTP status codes.
func statusFor(err error) int {
	var maxBytes *http.MaxBytesError
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrAlreadyExists),
		errors.Is(err, domain.ErrConcurrentProcessing),
		errors.Is(err, domain.ErrProjectNotEmpty),
		errors.Is(err, domain.ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, domain.ErrFileTooLarge), errors.As(err, &maxBytes):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, domain.ErrUnsupportedFormat):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, domain.ErrInvalidProject), errors.Is(err, domain.ErrInvalidFilename):
		return http.StatusUnprocessableEntity
	case errors.Is(err, processing.ErrQueueFull), errors.Is(err, processing.ErrStopped):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}
