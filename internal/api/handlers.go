package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/terra-clan/pylearn-arcade/internal/game"
	"github.com/terra-clan/pylearn-arcade/internal/session"
)

const maxBodyBytes = 64 << 10

// Response helpers

type apiResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *apiError   `json:"error,omitempty"`
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	resp := apiResponse{
		Success: status >= 200 && status < 300,
		Data:    data,
	}

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	resp := apiResponse{
		Success: false,
		Error: &apiError{
			Code:    code,
			Message: message,
		},
	}

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode error response", "error", err)
	}
}

// errorStatus maps manager and engine errors to an HTTP status and error code
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, session.ErrSessionNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, session.ErrActivityNotFound):
		return http.StatusNotFound, "activity_not_found"
	case errors.Is(err, session.ErrSessionClosed):
		return http.StatusConflict, "session_closed"
	case errors.Is(err, session.ErrNotCompleted):
		return http.StatusConflict, "not_completed"
	case errors.Is(err, session.ErrClaimInProgress):
		return http.StatusConflict, "claim_in_progress"
	case errors.Is(err, session.ErrRateLimited):
		return http.StatusTooManyRequests, "rate_limited"
	case errors.Is(err, session.ErrInvalidToken):
		return http.StatusForbidden, "invalid_token"
	case errors.Is(err, game.ErrInvalidPhase):
		return http.StatusConflict, "invalid_phase"
	case errors.Is(err, game.ErrUnknownEvent), errors.Is(err, game.ErrOutOfRange):
		return http.StatusBadRequest, "invalid_event"
	}
	return http.StatusInternalServerError, "internal_error"
}

// respondSessionError writes err as an API error. Unexpected errors are
// logged and hidden behind a generic message.
func respondSessionError(w http.ResponseWriter, err error, action, id string) {
	status, code := errorStatus(err)
	if status == http.StatusInternalServerError {
		slog.Error("failed to "+action, "error", err, "session_id", id)
		respondError(w, status, code, "failed to "+action)
		return
	}
	respondError(w, status, code, err.Error())
}

// decodeAndValidate reads a JSON body into v and runs its validate tags. It
// writes the error response itself and returns false on failure.
func (s *Server) decodeAndValidate(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return false
	}

	if err := s.validate.Struct(v); err != nil {
		respondError(w, http.StatusBadRequest, "validation_error", validationMessage(err))
		return false
	}
	return true
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, fe.Field()+" is required")
		case "max", "lte":
			msgs = append(msgs, fmt.Sprintf("%s must be at most %s", fe.Field(), fe.Param()))
		case "gte", "min":
			msgs = append(msgs, fmt.Sprintf("%s must be at least %s", fe.Field(), fe.Param()))
		default:
			msgs = append(msgs, fe.Field()+" is invalid")
		}
	}
	return strings.Join(msgs, "; ")
}

// Health handlers

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	statuses, ready := s.health.HealthCheckAll(r.Context())
	if !ready {
		slog.Warn("readiness check failed", "checks", statuses)
		respondJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
			"status": "not_ready",
			"checks": statuses,
		})
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":        "ready",
		"checks":        statuses,
		"live_sessions": s.sessions.Live(),
	})
}
