package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/YelzhanWeb/orderflow/internal/domain"
)

type SuccessResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

type ErrorResponse struct {
	Success bool              `json:"success"`
	Error   string            `json:"error"`
	Message string            `json:"message"`
	Errors  []ValidationError `json:"errors,omitempty"`
}

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func respondJSON(w http.ResponseWriter, code int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}

func respondOK(w http.ResponseWriter, message string, data interface{}) {
	respondJSON(w, http.StatusOK, SuccessResponse{Success: true, Message: message, Data: data})
}

func respondError(w http.ResponseWriter, code int, kind, message string) {
	respondJSON(w, code, ErrorResponse{Error: kind, Message: message})
}

// respondFailure maps a status service failure onto an HTTP status.
func respondFailure(w http.ResponseWriter, err error) {
	kind := domain.KindOf(err)
	code := http.StatusInternalServerError
	switch kind {
	case domain.KindOrderNotFound:
		code = http.StatusNotFound
	case domain.KindStatusUnchanged, domain.KindConflict:
		code = http.StatusConflict
	case domain.KindInvalidStatus, domain.KindInvalidRole:
		code = http.StatusBadRequest
	case domain.KindTransitionDenied:
		code = http.StatusForbidden
	case domain.KindStoreFailure:
		respondError(w, code, string(kind), "Failed to process the request, try again later")
		return
	default:
		respondError(w, code, "INTERNAL", "Internal server error")
		return
	}

	message := err.Error()
	var f *domain.Failure
	if errors.As(err, &f) {
		message = f.Message
	}
	respondError(w, code, string(kind), message)
}
