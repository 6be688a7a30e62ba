package store

import (
	"context"
	"fmt"
	"sync"
)

// MemoryStore is an in-memory Store used by the local development
// server and by tests. It enforces the same lifecycle conditions as
// DynamoStore so workflow behavior is identical in both environments.
type MemoryStore struct {
	mu        sync.RWMutex
	trainings map[string]Training
	statuses  map[string]UserTrainingStatus // key: email + "/" + trainingID
	reviews   map[string]Review             // key: trainingID + "/" + email
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		trainings: make(map[string]Training),
		statuses:  make(map[string]UserTrainingStatus),
		reviews:   make(map[string]Review),
	}
}

// --- Training operations ---

func (s *MemoryStore) CreateTraining(_ context.Context, t *Training) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.trainings[t.TrainingID]; ok {
		return fmt.Errorf("create training %s: %w", t.TrainingID, ErrTrainingExists)
	}
	if t.CreatedAt == 0 {
		t.CreatedAt = now().Unix()
	}
	s.trainings[t.TrainingID] = *t
	return nil
}

func (s *MemoryStore) GetTraining(_ context.Context, trainingID string) (*Training, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.trainings[trainingID]
	if !ok {
		return nil, nil
	}
	return &t, nil
}

func (s *MemoryStore) ListReadyTrainings(_ context.Context, limit int) ([]*Training, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 || limit > listScanLimit {
		limit = listScanLimit
	}

	var trainings []*Training
	for _, t := range s.trainings {
		if t.Status != StatusReady || t.VideoKey == "" {
			continue
		}
		t := t
		trainings = append(trainings, &t)
		if len(trainings) == limit {
			break
		}
	}
	return trainings, nil
}

func (s *MemoryStore) MarkConverting(_ context.Context, trainingID string) error {
	return s.transition(trainingID, func(t *Training) error {
		if t.Status != StatusPending {
			return ErrInvalidTransition
		}
		t.Status = StatusConverting
		return nil
	})
}

func (s *MemoryStore) MarkReady(_ context.Context, trainingID, videoKey string) error {
	return s.transition(trainingID, func(t *Training) error {
		if t.Status != StatusConverting || t.VideoKey != "" {
			return ErrInvalidTransition
		}
		t.Status = StatusReady
		t.VideoKey = videoKey
		return nil
	})
}

func (s *MemoryStore) MarkFailed(_ context.Context, trainingID, errMsg string) error {
	return s.transition(trainingID, func(t *Training) error {
		if t.Status.Terminal() {
			return ErrInvalidTransition
		}
		t.Status = StatusFailed
		t.Error = errMsg
		return nil
	})
}

func (s *MemoryStore) transition(trainingID string, apply func(*Training) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.trainings[trainingID]
	if !ok {
		return fmt.Errorf("training %s: %w", trainingID, ErrInvalidTransition)
	}
	if err := apply(&t); err != nil {
		return err
	}
	s.trainings[trainingID] = t
	return nil
}

// --- User training status operations ---

func (s *MemoryStore) GetUserStatus(_ context.Context, email, trainingID string) (*UserTrainingStatus, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	status, ok := s.statuses[email+"/"+trainingID]
	if !ok {
		return nil, nil
	}
	return &status, nil
}

func (s *MemoryStore) MarkCompleted(_ context.Context, email, trainingID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.statuses[email+"/"+trainingID] = UserTrainingStatus{
		Email:       email,
		TrainingID:  trainingID,
		IsCompleted: true,
	}
	return nil
}

// --- Review operations ---

func (s *MemoryStore) PutReview(_ context.Context, r *Review) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if r.Timestamp == "" {
		r.Timestamp = now().Format("2006-01-02T15:04:05")
	}
	s.reviews[r.TrainingID+"/"+r.Email] = *r
	return nil
}

func (s *MemoryStore) ListReviews(_ context.Context, trainingID string) ([]*Review, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var reviews []*Review
	for _, r := range s.reviews {
		if r.TrainingID == trainingID {
			r := r
			reviews = append(reviews, &r)
		}
	}
	return reviews, nil
}
