// Package api implements the HTTP surface consumed by the web UI.
//
// The same handlers serve two deployments: the API Lambda (behind the
// ALB and API Gateway, via the Lambda HTTP adapter) and the local
// development server. Handlers take the caller's identity from the ALB
// OIDC header; the local server injects a fixed developer identity.
//
// Endpoints:
//
//	GET  /api/health                — health check
//	GET  /api/video/presigned-url   — presigned S3 PUT URL for browser upload
//	POST /api/training              — create a training, start its workflow
//	GET  /api/training              — training detail + caller's completion
//	GET  /api/training/list         — ready trainings
//	PUT  /api/training/status       — mark training completed for caller
//	GET  /api/review                — reviews for a training
//	POST /api/review                — create/replace caller's review
package api

import (
	"context"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/kkmtyyz/video-training-service/internal/config"
	"github.com/kkmtyyz/video-training-service/internal/notify"
	"github.com/kkmtyyz/video-training-service/internal/s3util"
	"github.com/kkmtyyz/video-training-service/internal/store"
	"github.com/kkmtyyz/video-training-service/internal/workflow"
)

// UploadIntake issues staging upload targets.
type UploadIntake interface {
	NewUploadTarget(ctx context.Context) (*s3util.UploadTarget, error)
}

// Dispatcher triggers a training's transcode workflow asynchronously.
// Dispatch must return once the workflow is accepted, not when it
// finishes; the submission handler never waits for transcoding.
type Dispatcher interface {
	Dispatch(ctx context.Context, in workflow.Input) error
}

// Server holds the wired dependencies for all handlers.
type Server struct {
	cfg      config.Config
	store    store.Store
	uploads  UploadIntake
	dispatch Dispatcher
	events   workflow.EventSink
}

// New creates a Server. events may be nil to disable lifecycle events.
func New(cfg config.Config, st store.Store, uploads UploadIntake, dispatch Dispatcher, events workflow.EventSink) *Server {
	return &Server{
		cfg:      cfg,
		store:    st,
		uploads:  uploads,
		dispatch: dispatch,
		events:   events,
	}
}

// emit publishes a lifecycle event, logging and swallowing failures.
func (s *Server) emit(r *http.Request, detailType string, event notify.TrainingEvent) {
	if s.events == nil {
		return
	}
	if err := s.events.Emit(r.Context(), detailType, event); err != nil {
		log.Error().Err(err).Str("detailType", detailType).Msg("Lifecycle event emission failed")
	}
}

// Routes returns the service mux.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/health", s.handleHealth)
	mux.HandleFunc("/api/video/presigned-url", s.handlePresignedURL)
	mux.HandleFunc("/api/training", s.handleTraining)
	mux.HandleFunc("/api/training/list", s.handleTrainingList)
	mux.HandleFunc("/api/training/status", s.handleTrainingStatus)
	mux.HandleFunc("/api/review", s.handleReview)

	return mux
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"service": "video-training-service",
	})
}
