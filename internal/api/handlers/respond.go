package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"twinguard-lab/internal/domain/models"
)

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// respondDomainError maps sentinel errors to HTTP status codes
func respondDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, models.ErrNodeNotFound),
		errors.Is(err, models.ErrPredictionNotFound),
		errors.Is(err, models.ErrRecommendationNotFound):
		respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, models.ErrValidationFailed):
		respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, models.ErrInvalidOperation),
		errors.Is(err, models.ErrAlreadyRunning),
		errors.Is(err, models.ErrNotRunning),
		errors.Is(err, models.ErrNotStopped):
		respondError(w, http.StatusConflict, err.Error())
	default:
		respondError(w, http.StatusInternalServerError, err.Error())
	}
}
