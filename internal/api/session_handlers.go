package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/terra-clan/pylearn-arcade/internal/game"
	"github.com/terra-clan/pylearn-arcade/internal/models"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req models.CreateSessionRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}

	resp, err := s.sessions.Create(r.Context(), req.ActivitySlug, PlayerFromContext(r.Context()))
	if err != nil {
		respondSessionError(w, err, "create session", "")
		return
	}

	respondJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	resp, err := s.sessions.Get(r.Context(), id, PlayerFromContext(r.Context()))
	if err != nil {
		respondSessionError(w, err, "get session", id)
		return
	}

	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSessionEvent(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req models.EventRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}

	resp, err := s.sessions.Dispatch(r.Context(), id, PlayerFromContext(r.Context()), toEvent(req))
	if err != nil {
		respondSessionError(w, err, "apply event", id)
		return
	}

	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleClaimReward(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	outcome, err := s.sessions.Claim(r.Context(), id, PlayerFromContext(r.Context()))
	if err != nil {
		respondSessionError(w, err, "claim reward", id)
		return
	}

	respondJSON(w, http.StatusOK, outcome)
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := s.sessions.Delete(r.Context(), id, PlayerFromContext(r.Context())); err != nil {
		respondSessionError(w, err, "delete session", id)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"message": "session deleted",
	})
}

// handleListSessions lists the caller's own sessions
func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	player := PlayerFromContext(r.Context())
	filters := models.SessionFilters{
		PlayerID:     player.ID,
		ActivitySlug: q.Get("activity"),
		Status:       models.SessionStatus(q.Get("status")),
		Limit:        defaultListLimit,
	}

	if limitStr := q.Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 {
			filters.Limit = min(l, maxListLimit)
		}
	}
	if offsetStr := q.Get("offset"); offsetStr != "" {
		if o, err := strconv.Atoi(offsetStr); err == nil && o >= 0 {
			filters.Offset = o
		}
	}

	// Anonymous callers share one id, so there is nothing of theirs to list
	var sessions []*models.GameSession
	var total int
	if !player.Anonymous() {
		var err error
		sessions, total, err = s.sessions.List(r.Context(), filters)
		if err != nil {
			respondSessionError(w, err, "list sessions", "")
			return
		}
	}
	if sessions == nil {
		sessions = []*models.GameSession{}
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"sessions": sessions,
		"total":    total,
		"limit":    filters.Limit,
		"offset":   filters.Offset,
	})
}

func toEvent(req models.EventRequest) game.Event {
	return game.Event{
		Type:  req.Type,
		ID:    req.ID,
		Delta: req.Delta,
		Value: req.Value,
		Key:   req.Key,
	}
}
