package api

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/kkmtyyz/video-training-service/internal/auth"
	"github.com/kkmtyyz/video-training-service/internal/config"
	"github.com/kkmtyyz/video-training-service/internal/notify"
	"github.com/kkmtyyz/video-training-service/internal/s3util"
	"github.com/kkmtyyz/video-training-service/internal/store"
	"github.com/kkmtyyz/video-training-service/internal/workflow"
)

const testBucket = "upload-bucket"

// validKey is a well-formed staging key (UUID format).
const validKey = "4f2d9c1a-8b3e-4a5d-9c7f-1e2d3c4b5a69"

// --- Test fakes ---

type fakeIntake struct {
	target *s3util.UploadTarget
	err    error
}

func (f *fakeIntake) NewUploadTarget(ctx context.Context) (*s3util.UploadTarget, error) {
	return f.target, f.err
}

type recordingDispatcher struct {
	mu     sync.Mutex
	inputs []workflow.Input
	err    error
}

func (d *recordingDispatcher) Dispatch(ctx context.Context, in workflow.Input) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return d.err
	}
	d.inputs = append(d.inputs, in)
	return nil
}

type recordingSink struct {
	mu     sync.Mutex
	events []string
}

func (s *recordingSink) Emit(ctx context.Context, detailType string, event notify.TrainingEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, detailType)
	return nil
}

// oidcData builds the ALB OIDC data header value for the given email.
func oidcData(t *testing.T, email string) string {
	t.Helper()
	enc := base64.RawURLEncoding
	header := enc.EncodeToString([]byte(`{"alg":"ES256"}`))
	payload := enc.EncodeToString([]byte(fmt.Sprintf(`{"email":%q,"sub":"user-1"}`, email)))
	return header + "." + payload + "." + enc.EncodeToString([]byte("sig"))
}

type env struct {
	server   *Server
	store    *store.MemoryStore
	intake   *fakeIntake
	dispatch *recordingDispatcher
	sink     *recordingSink
	handler  http.Handler
}

func newEnv(t *testing.T) *env {
	t.Helper()
	st := store.NewMemoryStore()
	intake := &fakeIntake{
		target: &s3util.UploadTarget{
			Bucket: testBucket,
			Key:    validKey,
			URL:    "https://example.com/put",
		},
	}
	dispatch := &recordingDispatcher{}
	sink := &recordingSink{}
	cfg := config.Config{UploadBucket: testBucket}
	srv := New(cfg, st, intake, dispatch, sink)
	return &env{
		server:   srv,
		store:    st,
		intake:   intake,
		dispatch: dispatch,
		sink:     sink,
		handler:  srv.Routes(),
	}
}

func (e *env) do(t *testing.T, method, path string, body interface{}, email string) *httptest.ResponseRecorder {
	t.Helper()
	var rd *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		rd = bytes.NewReader(b)
	} else {
		rd = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, rd)
	if email != "" {
		req.Header.Set(auth.OIDCDataHeader, oidcData(t, email))
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(v); err != nil {
		t.Fatalf("failed to decode response: %v\nBody: %s", err, rec.Body.String())
	}
}

// --- Tests ---

func TestHealth(t *testing.T) {
	e := newEnv(t)
	rec := e.do(t, http.MethodGet, "/api/health", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestPresignedURL(t *testing.T) {
	e := newEnv(t)
	rec := e.do(t, http.MethodGet, "/api/video/presigned-url", nil, "user@example.com")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		PresignedURLInfo s3util.UploadTarget `json:"presignedUrlInfo"`
	}
	decode(t, rec, &resp)
	if resp.PresignedURLInfo.Bucket != testBucket {
		t.Errorf("expected bucket %q, got %q", testBucket, resp.PresignedURLInfo.Bucket)
	}
	if resp.PresignedURLInfo.URL == "" {
		t.Error("expected non-empty URL")
	}
}

func TestPresignedURL_IntakeError(t *testing.T) {
	e := newEnv(t)
	e.intake.err = errors.New("s3 down")
	e.intake.target = nil

	rec := e.do(t, http.MethodGet, "/api/video/presigned-url", nil, "user@example.com")
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "s3 down") {
		t.Error("internal error detail leaked to client")
	}
}

func TestCreateTraining(t *testing.T) {
	e := newEnv(t)
	rec := e.do(t, http.MethodPost, "/api/training", map[string]string{
		"trainingTitle":         "Intro to Go",
		"trainingDescription":   "Basics",
		"trainingVideoS3Bucket": testBucket,
		"trainingVideoS3Key":    validKey,
	}, "author@example.com")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		TrainingID string `json:"trainingId"`
	}
	decode(t, rec, &resp)
	if resp.TrainingID == "" {
		t.Fatal("expected a trainingId")
	}

	// Record persisted as Pending before the workflow runs.
	training, err := e.store.GetTraining(context.Background(), resp.TrainingID)
	if err != nil || training == nil {
		t.Fatalf("training not persisted: %v", err)
	}
	if training.Status != store.StatusPending {
		t.Errorf("expected Pending, got %s", training.Status)
	}

	// Workflow dispatched with the record's coordinates.
	if len(e.dispatch.inputs) != 1 {
		t.Fatalf("expected 1 dispatch, got %d", len(e.dispatch.inputs))
	}
	in := e.dispatch.inputs[0]
	if in.TrainingID != resp.TrainingID || in.SourceBucket != testBucket || in.SourceKey != validKey {
		t.Errorf("unexpected dispatch input: %+v", in)
	}

	if len(e.sink.events) != 1 || e.sink.events[0] != notify.EventTrainingSubmitted {
		t.Errorf("expected TrainingSubmitted event, got %v", e.sink.events)
	}
}

func TestCreateTraining_Validation(t *testing.T) {
	e := newEnv(t)
	cases := []struct {
		name string
		body map[string]string
	}{
		{"missing title", map[string]string{
			"trainingDescription":   "Basics",
			"trainingVideoS3Bucket": testBucket,
			"trainingVideoS3Key":    validKey,
		}},
		{"missing description", map[string]string{
			"trainingTitle":         "Intro",
			"trainingVideoS3Bucket": testBucket,
			"trainingVideoS3Key":    validKey,
		}},
		{"wrong bucket", map[string]string{
			"trainingTitle":         "Intro",
			"trainingDescription":   "Basics",
			"trainingVideoS3Bucket": "someone-elses-bucket",
			"trainingVideoS3Key":    validKey,
		}},
		{"malformed key", map[string]string{
			"trainingTitle":         "Intro",
			"trainingDescription":   "Basics",
			"trainingVideoS3Bucket": testBucket,
			"trainingVideoS3Key":    "../../etc/passwd",
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := e.do(t, http.MethodPost, "/api/training", tc.body, "author@example.com")
			if rec.Code != http.StatusBadRequest {
				t.Errorf("expected 400, got %d", rec.Code)
			}
		})
	}

	if len(e.dispatch.inputs) != 0 {
		t.Errorf("no workflow should have been dispatched, got %d", len(e.dispatch.inputs))
	}
}

func TestCreateTraining_DispatchFailure(t *testing.T) {
	e := newEnv(t)
	e.dispatch.err = errors.New("lambda unavailable")

	rec := e.do(t, http.MethodPost, "/api/training", map[string]string{
		"trainingTitle":         "Intro",
		"trainingDescription":   "Basics",
		"trainingVideoS3Bucket": testBucket,
		"trainingVideoS3Key":    validKey,
	}, "author@example.com")
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}

	// The stranded record must not stay Pending.
	trainings, err := e.store.ListReadyTrainings(context.Background(), 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(trainings) != 0 {
		t.Errorf("expected no ready trainings, got %d", len(trainings))
	}
}

func TestGetTraining(t *testing.T) {
	e := newEnv(t)
	seed := &store.Training{
		TrainingID:  "T1",
		Title:       "Intro",
		Description: "Basics",
		Status:      store.StatusPending,
	}
	if err := e.store.CreateTraining(context.Background(), seed); err != nil {
		t.Fatal(err)
	}
	if err := e.store.MarkCompleted(context.Background(), "viewer@example.com", "T1"); err != nil {
		t.Fatal(err)
	}

	rec := e.do(t, http.MethodGet, "/api/training?trainingId=T1", nil, "viewer@example.com")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		TrainingInfo struct {
			TrainingID  string `json:"trainingId"`
			Title       string `json:"title"`
			IsCompleted bool   `json:"isCompleted"`
		} `json:"trainingInfo"`
	}
	decode(t, rec, &resp)
	if resp.TrainingInfo.TrainingID != "T1" || resp.TrainingInfo.Title != "Intro" {
		t.Errorf("unexpected training info: %+v", resp.TrainingInfo)
	}
	if !resp.TrainingInfo.IsCompleted {
		t.Error("expected isCompleted=true for viewer")
	}

	// A different user has not completed it.
	rec = e.do(t, http.MethodGet, "/api/training?trainingId=T1", nil, "other@example.com")
	decode(t, rec, &resp)
	if resp.TrainingInfo.IsCompleted {
		t.Error("expected isCompleted=false for other user")
	}
}

func TestGetTraining_NotFound(t *testing.T) {
	e := newEnv(t)
	rec := e.do(t, http.MethodGet, "/api/training?trainingId=missing", nil, "viewer@example.com")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestGetTraining_Unauthorized(t *testing.T) {
	e := newEnv(t)
	rec := e.do(t, http.MethodGet, "/api/training?trainingId=T1", nil, "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestTrainingList_OnlyReady(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	for _, id := range []string{"T1", "T2"} {
		if err := e.store.CreateTraining(ctx, &store.Training{
			TrainingID: id, Title: id, Description: "d", Status: store.StatusPending,
		}); err != nil {
			t.Fatal(err)
		}
	}
	if err := e.store.MarkConverting(ctx, "T1"); err != nil {
		t.Fatal(err)
	}
	if err := e.store.MarkReady(ctx, "T1", "video/T1/T1.m3u8"); err != nil {
		t.Fatal(err)
	}

	rec := e.do(t, http.MethodGet, "/api/training/list", nil, "viewer@example.com")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp struct {
		Trainings []store.Training `json:"trainings"`
	}
	decode(t, rec, &resp)
	if len(resp.Trainings) != 1 || resp.Trainings[0].TrainingID != "T1" {
		t.Errorf("expected only T1 listed, got %+v", resp.Trainings)
	}
}

func TestMarkComplete(t *testing.T) {
	e := newEnv(t)
	rec := e.do(t, http.MethodPut, "/api/training/status", map[string]string{
		"trainingId": "T1",
	}, "viewer@example.com")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	status, err := e.store.GetUserStatus(context.Background(), "viewer@example.com", "T1")
	if err != nil {
		t.Fatal(err)
	}
	if status == nil || !status.IsCompleted {
		t.Errorf("expected completed status row, got %+v", status)
	}
}

func TestReviews(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	if err := e.store.CreateTraining(ctx, &store.Training{
		TrainingID: "T1", Title: "Intro", Description: "d", Status: store.StatusPending,
	}); err != nil {
		t.Fatal(err)
	}

	rec := e.do(t, http.MethodPost, "/api/review", map[string]interface{}{
		"trainingId": "T1",
		"rating":     4,
		"comment":    "clear and concise",
	}, "viewer@example.com")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = e.do(t, http.MethodGet, "/api/review?trainingId=T1", nil, "viewer@example.com")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp struct {
		Reviews []store.Review `json:"reviews"`
	}
	decode(t, rec, &resp)
	if len(resp.Reviews) != 1 {
		t.Fatalf("expected 1 review, got %d", len(resp.Reviews))
	}
	if resp.Reviews[0].Email != "viewer@example.com" || resp.Reviews[0].Rating != 4 {
		t.Errorf("unexpected review: %+v", resp.Reviews[0])
	}
}

func TestCreateReview_Validation(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	if err := e.store.CreateTraining(ctx, &store.Training{
		TrainingID: "T1", Title: "Intro", Description: "d", Status: store.StatusPending,
	}); err != nil {
		t.Fatal(err)
	}

	// Rating outside 1..5.
	rec := e.do(t, http.MethodPost, "/api/review", map[string]interface{}{
		"trainingId": "T1",
		"rating":     6,
	}, "viewer@example.com")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for rating 6, got %d", rec.Code)
	}

	// Unknown training.
	rec = e.do(t, http.MethodPost, "/api/review", map[string]interface{}{
		"trainingId": "missing",
		"rating":     3,
	}, "viewer@example.com")
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown training, got %d", rec.Code)
	}
}
