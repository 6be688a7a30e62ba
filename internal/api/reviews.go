package api

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/kkmtyyz/video-training-service/internal/auth"
	"github.com/kkmtyyz/video-training-service/internal/store"
)

// --- Reviews ---

type createReviewRequest struct {
	TrainingID string `json:"trainingId"`
	Rating     int    `json:"rating"`
	Comment    string `json:"comment"`
}

func (s *Server) handleReview(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.listReviews(w, r)
	case http.MethodPost:
		s.createReview(w, r)
	default:
		httpError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) listReviews(w http.ResponseWriter, r *http.Request) {
	trainingID := r.URL.Query().Get("trainingId")
	if trainingID == "" {
		httpError(w, http.StatusBadRequest, "trainingId is required")
		return
	}

	reviews, err := s.store.ListReviews(r.Context(), trainingID)
	if err != nil {
		httpError(w, http.StatusInternalServerError, "failed to list reviews", err.Error())
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"reviews": reviews,
	})
}

// createReview creates or replaces the caller's review. One review per
// (training, user): posting again overwrites the previous one.
func (s *Server) createReview(w http.ResponseWriter, r *http.Request) {
	claims, err := auth.FromRequest(r)
	if err != nil {
		httpError(w, http.StatusUnauthorized, "unauthorized", err.Error())
		return
	}

	var req createReviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.TrainingID == "" {
		httpError(w, http.StatusBadRequest, "trainingId is required")
		return
	}
	if req.Rating < 1 || req.Rating > 5 {
		httpError(w, http.StatusBadRequest, "rating must be between 1 and 5")
		return
	}

	// Reviews only make sense against a training that exists.
	training, err := s.store.GetTraining(r.Context(), req.TrainingID)
	if err != nil {
		httpError(w, http.StatusInternalServerError, "failed to load training", err.Error())
		return
	}
	if training == nil {
		httpError(w, http.StatusNotFound, "training not found")
		return
	}

	review := &store.Review{
		TrainingID: req.TrainingID,
		Email:      claims.Email,
		Rating:     req.Rating,
		Comment:    req.Comment,
	}
	if err := s.store.PutReview(r.Context(), review); err != nil {
		httpError(w, http.StatusInternalServerError, "failed to save review", err.Error())
		return
	}

	log.Info().
		Str("trainingId", req.TrainingID).
		Int("rating", req.Rating).
		Msg("Review saved")
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
