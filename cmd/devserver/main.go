// Package main provides a local development server.
//
// It serves the same API as the API Lambda against in-process stand-ins
// for the AWS pieces: an in-memory store, a fake transcode service that
// completes jobs after a short delay, log-only notifications, and an
// upload intake that issues file-scheme targets instead of presigned
// URLs. Workflows run in goroutines inside this process, so a created
// training moves Pending → Converting → Ready within a few seconds
// without any AWS credentials.
//
// Usage:
//
//	go run ./cmd/devserver [-addr :8080] [-delay 3s] [-fail "msg"]
package main

import (
	"context"
	"encoding/base64"
	"flag"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/kkmtyyz/video-training-service/internal/api"
	"github.com/kkmtyyz/video-training-service/internal/auth"
	"github.com/kkmtyyz/video-training-service/internal/config"
	"github.com/kkmtyyz/video-training-service/internal/logging"
	"github.com/kkmtyyz/video-training-service/internal/notify"
	"github.com/kkmtyyz/video-training-service/internal/s3util"
	"github.com/kkmtyyz/video-training-service/internal/store"
	"github.com/kkmtyyz/video-training-service/internal/transcode"
	"github.com/kkmtyyz/video-training-service/internal/workflow"
)

const devBucket = "dev-upload-bucket"
const devEmail = "developer@localhost"

// localIntake issues upload targets without S3. The URL points back at
// this server, which accepts any PUT (the devserver never reads the
// uploaded bytes; the fake transcoder does not need them).
type localIntake struct {
	addr string
}

func (l *localIntake) NewUploadTarget(_ context.Context) (*s3util.UploadTarget, error) {
	key := uuid.NewString()
	return &s3util.UploadTarget{
		Bucket: devBucket,
		Key:    key,
		URL:    fmt.Sprintf("http://%s/dev/upload/%s", l.addr, key),
	}, nil
}

// localDispatcher runs each workflow in a goroutine inside this
// process, standing in for the async Lambda invoke.
type localDispatcher struct {
	engine *workflow.Engine
}

func (d *localDispatcher) Dispatch(_ context.Context, in workflow.Input) error {
	go func() {
		if _, err := d.engine.Run(context.Background(), in); err != nil {
			log.Error().Err(err).Str("trainingId", in.TrainingID).Msg("Workflow rejected input")
		}
	}()
	return nil
}

// withDevIdentity injects the ALB OIDC header with a fixed developer
// identity when the caller did not supply one, so handlers see the same
// auth surface as in production.
func withDevIdentity(next http.Handler) http.Handler {
	enc := base64.RawURLEncoding
	header := enc.EncodeToString([]byte(`{"alg":"ES256"}`))
	payload := enc.EncodeToString([]byte(fmt.Sprintf(`{"email":%q,"sub":"dev"}`, devEmail)))
	token := header + "." + payload + "." + enc.EncodeToString([]byte("dev"))

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get(auth.OIDCDataHeader) == "" {
			r.Header.Set(auth.OIDCDataHeader, token)
		}
		next.ServeHTTP(w, r)
	})
}

func main() {
	addr := flag.String("addr", "localhost:8080", "listen address")
	delay := flag.Int("delay", 3, "seconds before a fake transcode job completes")
	failMsg := flag.String("fail", "", "fail every transcode job with this message")
	flag.Parse()

	logging.Init()

	st := store.NewMemoryStore()
	jobs := transcode.NewFakeService(time.Duration(*delay) * time.Second)
	jobs.FailAll = *failMsg

	cfg := config.Config{
		UploadBucket: devBucket,
		WebBucket:    "dev-web-bucket",
		VideoPrefix:  config.DefaultVideoPrefix,
		PollInterval: time.Second,
	}

	engine := workflow.New(workflow.Config{
		Store:        st,
		Jobs:         jobs,
		Notifier:     notify.LogNotifier{},
		DestBucket:   cfg.WebBucket,
		DestPrefix:   cfg.VideoPrefix,
		PollInterval: cfg.PollInterval,
	})

	server := api.New(cfg, st, &localIntake{addr: *addr}, &localDispatcher{engine: engine}, nil)

	mux := http.NewServeMux()
	mux.Handle("/api/", server.Routes())
	mux.HandleFunc("/dev/upload/", func(w http.ResponseWriter, r *http.Request) {
		// Accept and discard the upload body.
		w.WriteHeader(http.StatusOK)
	})

	log.Info().
		Str("addr", *addr).
		Str("identity", devEmail).
		Int("transcodeDelaySeconds", *delay).
		Bool("failAll", *failMsg != "").
		Msg("Development server listening")

	if err := http.ListenAndServe(*addr, withDevIdentity(mux)); err != nil {
		log.Fatal().Err(err).Msg("Server exited")
	}
}
