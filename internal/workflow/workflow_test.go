package workflow

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/kkmtyyz/video-training-service/internal/notify"
	"github.com/kkmtyyz/video-training-service/internal/store"
	"github.com/kkmtyyz/video-training-service/internal/transcode"
)

// --- Test fakes ---

type recordedNotification struct {
	Outcome notify.Outcome
	Title   string
}

type recordingNotifier struct {
	mu    sync.Mutex
	calls []recordedNotification
	err   error
}

func (n *recordingNotifier) Notify(_ context.Context, outcome notify.Outcome, title string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, recordedNotification{outcome, title})
	return n.err
}

func (n *recordingNotifier) last(t *testing.T) recordedNotification {
	t.Helper()
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.calls) == 0 {
		t.Fatal("expected a notification")
	}
	return n.calls[len(n.calls)-1]
}

type recordingSink struct {
	mu     sync.Mutex
	events []string
}

func (s *recordingSink) Emit(_ context.Context, detailType string, _ notify.TrainingEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, detailType)
	return nil
}

type fakeSource struct {
	exists bool
	err    error
}

func (f *fakeSource) ObjectExists(context.Context, string, string) (bool, error) {
	return f.exists, f.err
}

// brokenReadyStore wraps a store and fails MarkReady.
type brokenReadyStore struct {
	store.TrainingStore
}

func (brokenReadyStore) MarkReady(context.Context, string, string) error {
	return fmt.Errorf("table write throttled")
}

// stuckJobs never reports a terminal status.
type stuckJobs struct{}

func (stuckJobs) SubmitJob(context.Context, transcode.JobSpec) (string, error) {
	return "stuck-1", nil
}

func (stuckJobs) PollJob(context.Context, string) (transcode.JobStatus, error) {
	return transcode.JobStatus{State: transcode.StateProgressing}, nil
}

// --- Helpers ---

func pendingTraining(t *testing.T, s store.Store, id, title string) {
	t.Helper()
	err := s.CreateTraining(context.Background(), &store.Training{
		TrainingID:   id,
		Title:        title,
		Description:  "x",
		SourceBucket: "staging",
		SourceKey:    "abc",
		Status:       store.StatusPending,
	})
	if err != nil {
		t.Fatal(err)
	}
}

func testInput(id, title string) Input {
	return Input{
		TrainingID:    id,
		TrainingTitle: title,
		SourceBucket:  "staging",
		SourceKey:     "abc",
	}
}

func newEngine(s store.TrainingStore, jobs transcode.JobService, n notify.Notifier, opts ...func(*Config)) *Engine {
	cfg := Config{
		Store:        s,
		Jobs:         jobs,
		Notifier:     n,
		DestBucket:   "web",
		DestPrefix:   "video",
		PollInterval: time.Millisecond,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return New(cfg)
}

// --- Tests ---

func TestRun_Success(t *testing.T) {
	s := store.NewMemoryStore()
	n := &recordingNotifier{}
	sink := &recordingSink{}
	pendingTraining(t, s, "T1", "Intro")

	eng := newEngine(s, transcode.NewFakeService(0), n, func(c *Config) { c.Events = sink })
	result, err := eng.Run(context.Background(), testInput("T1", "Intro"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.State != StateSucceeded {
		t.Errorf("expected Succeeded, got %s", result.State)
	}
	if result.VideoKey != "video/T1/T1.m3u8" {
		t.Errorf("expected video key video/T1/T1.m3u8, got %q", result.VideoKey)
	}

	got, _ := s.GetTraining(context.Background(), "T1")
	if got.Status != store.StatusReady {
		t.Errorf("expected record status Ready, got %s", got.Status)
	}
	if got.VideoKey != "video/T1/T1.m3u8" {
		t.Errorf("expected record video key video/T1/T1.m3u8, got %q", got.VideoKey)
	}

	if last := n.last(t); last.Outcome != notify.OutcomeSucceeded || last.Title != "Intro" {
		t.Errorf("expected (succeeded, Intro) notification, got %+v", last)
	}
	if len(sink.events) != 1 || sink.events[0] != notify.EventTrainingReady {
		t.Errorf("expected one TrainingReady event, got %v", sink.events)
	}
}

func TestRun_JobFailure(t *testing.T) {
	s := store.NewMemoryStore()
	n := &recordingNotifier{}
	pendingTraining(t, s, "T1", "Intro")

	jobs := transcode.NewFakeService(0)
	jobs.FailAll = "unsupported codec"

	eng := newEngine(s, jobs, n)
	result, err := eng.Run(context.Background(), testInput("T1", "Intro"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.State != StateFailed {
		t.Errorf("expected Failed, got %s", result.State)
	}

	got, _ := s.GetTraining(context.Background(), "T1")
	if got.Status != store.StatusFailed {
		t.Errorf("expected record status Failed, got %s", got.Status)
	}
	if got.VideoKey != "" {
		t.Errorf("failed record must carry no video key, got %q", got.VideoKey)
	}

	if last := n.last(t); last.Outcome != notify.OutcomeFailed || last.Title != "Intro" {
		t.Errorf("expected (failed, Intro) notification, got %+v", last)
	}
}

func TestRun_MalformedInput(t *testing.T) {
	s := store.NewMemoryStore()
	n := &recordingNotifier{}

	eng := newEngine(s, transcode.NewFakeService(0), n)
	_, err := eng.Run(context.Background(), Input{TrainingID: "T1"})

	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if len(n.calls) != 0 {
		t.Errorf("malformed input must not notify, got %v", n.calls)
	}
}

func TestRun_MissingSourceObject(t *testing.T) {
	s := store.NewMemoryStore()
	n := &recordingNotifier{}
	pendingTraining(t, s, "T1", "Intro")

	eng := newEngine(s, transcode.NewFakeService(0), n, func(c *Config) {
		c.Source = &fakeSource{exists: false}
	})
	result, err := eng.Run(context.Background(), testInput("T1", "Intro"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.State != StateFailed {
		t.Errorf("expected Failed for missing source, got %s", result.State)
	}
	got, _ := s.GetTraining(context.Background(), "T1")
	if got.Status != store.StatusFailed {
		t.Errorf("expected record status Failed, got %s", got.Status)
	}
}

func TestRun_PersistenceFailure(t *testing.T) {
	mem := store.NewMemoryStore()
	n := &recordingNotifier{}
	pendingTraining(t, mem, "T1", "Intro")

	eng := newEngine(brokenReadyStore{mem}, transcode.NewFakeService(0), n)
	result, err := eng.Run(context.Background(), testInput("T1", "Intro"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.State != StateFailed {
		t.Errorf("expected Failed, got %s", result.State)
	}
	if last := n.last(t); last.Outcome != notify.OutcomeFailed {
		t.Errorf("expected failed notification, got %+v", last)
	}
	got, _ := mem.GetTraining(context.Background(), "T1")
	if got.Status != store.StatusFailed {
		t.Errorf("expected record status Failed, got %s", got.Status)
	}
}

func TestRun_NotificationFailureSwallowed(t *testing.T) {
	s := store.NewMemoryStore()
	n := &recordingNotifier{err: fmt.Errorf("topic gone")}
	pendingTraining(t, s, "T1", "Intro")

	eng := newEngine(s, transcode.NewFakeService(0), n)
	result, err := eng.Run(context.Background(), testInput("T1", "Intro"))
	if err != nil {
		t.Fatalf("notification failure must not surface: %v", err)
	}
	if result.State != StateSucceeded {
		t.Errorf("expected Succeeded despite notification failure, got %s", result.State)
	}

	got, _ := s.GetTraining(context.Background(), "T1")
	if got.Status != store.StatusReady {
		t.Errorf("notification failure must not roll back the record, got %s", got.Status)
	}
}

func TestRun_TranscodeTimeout(t *testing.T) {
	s := store.NewMemoryStore()
	n := &recordingNotifier{}
	pendingTraining(t, s, "T1", "Intro")

	eng := newEngine(s, stuckJobs{}, n, func(c *Config) {
		c.Timeout = 10 * time.Millisecond
	})
	result, err := eng.Run(context.Background(), testInput("T1", "Intro"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.State != StateFailed {
		t.Errorf("expected Failed on timeout, got %s", result.State)
	}
	if last := n.last(t); last.Outcome != notify.OutcomeFailed {
		t.Errorf("expected failed notification, got %+v", last)
	}
}

func TestRun_ConcurrentWorkflowsAreIndependent(t *testing.T) {
	s := store.NewMemoryStore()
	n := &recordingNotifier{}
	jobs := transcode.NewFakeService(5 * time.Millisecond)

	const count = 10
	for i := 0; i < count; i++ {
		pendingTraining(t, s, fmt.Sprintf("T%d", i), fmt.Sprintf("Training %d", i))
	}

	var wg sync.WaitGroup
	for i := 0; i < count; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("T%d", i)
			eng := newEngine(s, jobs, n)
			result, err := eng.Run(context.Background(), testInput(id, "Training "+id))
			if err != nil {
				t.Errorf("workflow %s: %v", id, err)
				return
			}
			if result.State != StateSucceeded {
				t.Errorf("workflow %s: expected Succeeded, got %s", id, result.State)
			}
		}(i)
	}
	wg.Wait()

	for i := 0; i < count; i++ {
		id := fmt.Sprintf("T%d", i)
		got, _ := s.GetTraining(context.Background(), id)
		want := fmt.Sprintf("video/%s/%s.m3u8", id, id)
		if got.Status != store.StatusReady || got.VideoKey != want {
			t.Errorf("training %s: status=%s videoKey=%q", id, got.Status, got.VideoKey)
		}
	}
}
