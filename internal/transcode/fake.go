package transcode

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// FakeService is an in-process JobService for the local development
// server and tests. Submitted jobs become terminal after a fixed delay;
// FailAll switches the outcome for exercising the failure branch.
type FakeService struct {
	// Delay before a job reports terminal status. Zero means jobs are
	// terminal on the first poll.
	Delay time.Duration

	// FailAll makes every job end in StateError with this message when
	// non-empty.
	FailAll string

	mu   sync.Mutex
	jobs map[string]time.Time
	seq  int
}

var _ JobService = (*FakeService)(nil)

// NewFakeService creates a FakeService whose jobs complete after delay.
func NewFakeService(delay time.Duration) *FakeService {
	return &FakeService{
		Delay: delay,
		jobs:  make(map[string]time.Time),
	}
}

func (s *FakeService) SubmitJob(_ context.Context, spec JobSpec) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.seq++
	jobID := fmt.Sprintf("fake-job-%d", s.seq)
	s.jobs[jobID] = time.Now().Add(s.Delay)
	return jobID, nil
}

func (s *FakeService) PollJob(_ context.Context, jobID string) (JobStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doneAt, ok := s.jobs[jobID]
	if !ok {
		return JobStatus{}, fmt.Errorf("unknown job %s", jobID)
	}
	if time.Now().Before(doneAt) {
		return JobStatus{State: StateProgressing}, nil
	}
	if s.FailAll != "" {
		return JobStatus{State: StateError, Done: true, Err: s.FailAll}, nil
	}
	return JobStatus{State: StateComplete, Done: true}, nil
}
