package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/terra-clan/pylearn-arcade/internal/game"
	"github.com/terra-clan/pylearn-arcade/internal/models"
)

// Catalog handlers: categories and the activities inside them

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	categories := s.catalog.ListCategories()
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"categories": categories,
		"total":      len(categories),
	})
}

func (s *Server) handleListCategoryActivities(w http.ResponseWriter, r *http.Request) {
	categoryID := chi.URLParam(r, "id")
	if s.catalog.GetCategory(categoryID) == nil {
		respondError(w, http.StatusNotFound, "not_found", "category not found")
		return
	}

	activities := summaries(s.catalog.List(models.ActivityFilters{Category: categoryID}))
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"activities": activities,
		"total":      len(activities),
	})
}

func (s *Server) handleListActivities(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filters := models.ActivityFilters{
		Category: q.Get("category"),
		Type:     game.Kind(q.Get("type")),
		Tag:      q.Get("tag"),
	}

	activities := summaries(s.catalog.List(filters))
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"activities": activities,
		"total":      len(activities),
	})
}

func (s *Server) handleGetActivity(w http.ResponseWriter, r *http.Request) {
	activity := s.catalog.Get(chi.URLParam(r, "slug"))
	if activity == nil {
		respondError(w, http.StatusNotFound, "not_found", "activity not found")
		return
	}
	respondJSON(w, http.StatusOK, activity)
}

func summaries(activities []*models.Activity) []models.CatalogActivity {
	out := make([]models.CatalogActivity, 0, len(activities))
	for _, a := range activities {
		out = append(out, a.Summary())
	}
	return out
}
