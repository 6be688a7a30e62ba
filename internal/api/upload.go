package api

import (
	"net/http"

	"github.com/rs/zerolog/log"
)

// handlePresignedURL issues a presigned S3 PUT URL so the browser can
// upload the source video directly to the staging bucket. The key is
// generated server-side; the client echoes bucket and key back on the
// training create call.
func (s *Server) handlePresignedURL(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httpError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	target, err := s.uploads.NewUploadTarget(r.Context())
	if err != nil {
		httpError(w, http.StatusInternalServerError, "failed to create upload URL", err.Error())
		return
	}

	log.Debug().Str("key", target.Key).Msg("Issued presigned upload URL")
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"presignedUrlInfo": target,
	})
}
