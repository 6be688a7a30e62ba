package api

import (
	"encoding/json"
	"net/http"
	"regexp"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/kkmtyyz/video-training-service/internal/auth"
	"github.com/kkmtyyz/video-training-service/internal/notify"
	"github.com/kkmtyyz/video-training-service/internal/store"
	"github.com/kkmtyyz/video-training-service/internal/workflow"
)

// stagingKeyRegex matches the UUID object keys issued by upload intake.
var stagingKeyRegex = regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)

// --- Create / detail ---

// createTrainingRequest keeps the field names the web UI has always sent.
type createTrainingRequest struct {
	TrainingTitle         string `json:"trainingTitle"`
	TrainingDescription   string `json:"trainingDescription"`
	TrainingVideoS3Bucket string `json:"trainingVideoS3Bucket"`
	TrainingVideoS3Key    string `json:"trainingVideoS3Key"`
}

func (s *Server) handleTraining(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.getTraining(w, r)
	case http.MethodPost:
		s.createTraining(w, r)
	default:
		httpError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// createTraining is the submission handler: persist a Pending record,
// then trigger the workflow asynchronously. Returns immediately; the
// caller polls the training status for progress.
func (s *Server) createTraining(w http.ResponseWriter, r *http.Request) {
	var req createTrainingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	switch {
	case req.TrainingTitle == "":
		httpError(w, http.StatusBadRequest, "trainingTitle is required")
		return
	case req.TrainingDescription == "":
		httpError(w, http.StatusBadRequest, "trainingDescription is required")
		return
	case req.TrainingVideoS3Bucket != s.cfg.UploadBucket:
		// Only the staging bucket this deployment issued upload URLs
		// for is accepted as a source.
		httpError(w, http.StatusBadRequest, "unknown upload bucket")
		return
	case !stagingKeyRegex.MatchString(req.TrainingVideoS3Key):
		httpError(w, http.StatusBadRequest, "invalid upload key")
		return
	}

	training := &store.Training{
		TrainingID:   uuid.NewString(),
		Title:        req.TrainingTitle,
		Description:  req.TrainingDescription,
		SourceBucket: req.TrainingVideoS3Bucket,
		SourceKey:    req.TrainingVideoS3Key,
		Status:       store.StatusPending,
	}

	// The record must exist (Pending) before orchestration starts; a
	// persistence failure means no workflow and no partial state.
	if err := s.store.CreateTraining(r.Context(), training); err != nil {
		httpError(w, http.StatusInternalServerError, "failed to create training", err.Error())
		return
	}

	in := workflow.Input{
		TrainingID:    training.TrainingID,
		TrainingTitle: training.Title,
		SourceBucket:  training.SourceBucket,
		SourceKey:     training.SourceKey,
	}
	if err := s.dispatch.Dispatch(r.Context(), in); err != nil {
		// The record exists but its workflow never started. Mark it
		// failed so it cannot sit Pending forever.
		log.Error().Err(err).Str("trainingId", training.TrainingID).Msg("Workflow dispatch failed")
		if markErr := s.store.MarkFailed(r.Context(), training.TrainingID, "workflow dispatch failed"); markErr != nil {
			log.Error().Err(markErr).Str("trainingId", training.TrainingID).Msg("Failed to record dispatch failure")
		}
		httpError(w, http.StatusInternalServerError, "failed to start processing")
		return
	}

	s.emit(r, notify.EventTrainingSubmitted, notify.TrainingEvent{
		TrainingID: training.TrainingID,
		Title:      training.Title,
	})

	log.Info().
		Str("trainingId", training.TrainingID).
		Str("title", training.Title).
		Msg("Training submitted")
	respondJSON(w, http.StatusOK, map[string]string{
		"trainingId": training.TrainingID,
	})
}

// trainingInfoResponse merges the record with the caller's completion.
type trainingInfoResponse struct {
	store.Training
	IsCompleted bool `json:"isCompleted"`
}

func (s *Server) getTraining(w http.ResponseWriter, r *http.Request) {
	claims, err := auth.FromRequest(r)
	if err != nil {
		httpError(w, http.StatusUnauthorized, "unauthorized", err.Error())
		return
	}

	trainingID := r.URL.Query().Get("trainingId")
	if trainingID == "" {
		httpError(w, http.StatusBadRequest, "trainingId is required")
		return
	}

	training, err := s.store.GetTraining(r.Context(), trainingID)
	if err != nil {
		httpError(w, http.StatusInternalServerError, "failed to load training", err.Error())
		return
	}
	if training == nil {
		httpError(w, http.StatusNotFound, "training not found")
		return
	}

	// The status row is created lazily; absence means not completed.
	completed := false
	status, err := s.store.GetUserStatus(r.Context(), claims.Email, trainingID)
	if err != nil {
		httpError(w, http.StatusInternalServerError, "failed to load training status", err.Error())
		return
	}
	if status != nil {
		completed = status.IsCompleted
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"trainingInfo": trainingInfoResponse{
			Training:    *training,
			IsCompleted: completed,
		},
	})
}

// --- List ---

func (s *Server) handleTrainingList(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httpError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	trainings, err := s.store.ListReadyTrainings(r.Context(), 0)
	if err != nil {
		httpError(w, http.StatusInternalServerError, "failed to list trainings", err.Error())
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"trainings": trainings,
	})
}

// --- Playback completion ---

type markCompleteRequest struct {
	TrainingID string `json:"trainingId"`
}

// handleTrainingStatus records that the calling user finished watching
// a training. Idempotent: the client fires it whenever playback crosses
// the completion threshold, which can happen more than once.
func (s *Server) handleTrainingStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		httpError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	claims, err := auth.FromRequest(r)
	if err != nil {
		httpError(w, http.StatusUnauthorized, "unauthorized", err.Error())
		return
	}

	var req markCompleteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.TrainingID == "" {
		httpError(w, http.StatusBadRequest, "trainingId is required")
		return
	}

	if err := s.store.MarkCompleted(r.Context(), claims.Email, req.TrainingID); err != nil {
		httpError(w, http.StatusInternalServerError, "failed to update training status", err.Error())
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
