// Package store provides persistent storage for training records,
// per-user completion status, and reviews.
//
// The backing store is DynamoDB with three tables keyed exactly as the
// access patterns demand: Trainings by TrainingId, UserTrainingStatus
// by (Email, TrainingId), Reviews by (TrainingId, Email). Status
// transitions on a training are enforced with condition expressions so
// a record can only move forward through its lifecycle regardless of
// how many writers race.
package store

import (
	"context"
	"errors"
	"time"
)

// Status is the lifecycle state of a training record.
//
// Transitions are forward-only: Pending → Converting → Ready|Failed.
// VideoKey is set in the same write that moves a record to Ready and
// never otherwise, so VideoKey is non-empty iff Status == Ready.
type Status string

const (
	StatusPending    Status = "Pending"
	StatusConverting Status = "Converting"
	StatusReady      Status = "Ready"
	StatusFailed     Status = "Failed"
)

// Terminal reports whether no further transitions are possible.
func (s Status) Terminal() bool {
	return s == StatusReady || s == StatusFailed
}

// Store errors. Implementations map their backend's native failures
// (e.g. DynamoDB ConditionalCheckFailedException) onto these so callers
// can branch without knowing the backend.
var (
	// ErrTrainingExists is returned when creating a training whose ID
	// is already taken.
	ErrTrainingExists = errors.New("training already exists")

	// ErrInvalidTransition is returned when a status update would move
	// a record backward (e.g. Ready → Converting) or skip a state.
	ErrInvalidTransition = errors.New("invalid status transition")
)

// Training is a record in the Trainings table.
//
// SourceBucket/SourceKey reference the staged raw upload and are only
// meaningful until transcoding completes. VideoKey is the HLS manifest
// path under the serving bucket, set when the record becomes Ready.
type Training struct {
	TrainingID   string `json:"trainingId" dynamodbav:"TrainingId"`
	Title        string `json:"title" dynamodbav:"Title"`
	Description  string `json:"description" dynamodbav:"Description"`
	SourceBucket string `json:"sourceBucket,omitempty" dynamodbav:"SourceBucket,omitempty"`
	SourceKey    string `json:"sourceKey,omitempty" dynamodbav:"SourceKey,omitempty"`
	VideoKey     string `json:"videoKey,omitempty" dynamodbav:"VideoKey,omitempty"`
	Status       Status `json:"status" dynamodbav:"TrainingStatus"`
	Error        string `json:"error,omitempty" dynamodbav:"ErrorMessage,omitempty"`
	CreatedAt    int64  `json:"createdAt" dynamodbav:"CreatedAt"`
}

// UserTrainingStatus is a record in the UserTrainingStatus table.
// Rows are created lazily on the first write for a (user, training)
// pair. IsCompleted is monotonic: once true, it never reverts.
type UserTrainingStatus struct {
	Email       string `json:"email" dynamodbav:"Email"`
	TrainingID  string `json:"trainingId" dynamodbav:"TrainingId"`
	IsCompleted bool   `json:"isCompleted" dynamodbav:"IsCompleted"`
}

// Review is a record in the Reviews table. One review per
// (training, user); re-submitting replaces the previous one.
type Review struct {
	TrainingID string `json:"trainingId" dynamodbav:"TrainingId"`
	Email      string `json:"email" dynamodbav:"Email"`
	Rating     int    `json:"rating" dynamodbav:"Rating"`
	Comment    string `json:"comment" dynamodbav:"Comment"`
	Timestamp  string `json:"timestamp" dynamodbav:"Timestamp"`
}

// TrainingStore persists training records and their lifecycle.
// Each method is safe for concurrent use. Get methods return (nil, nil)
// when the requested record does not exist.
type TrainingStore interface {
	// CreateTraining writes a new record. Returns ErrTrainingExists if
	// the TrainingID is already taken. CreatedAt is filled in when zero.
	CreateTraining(ctx context.Context, t *Training) error

	// GetTraining retrieves a record by ID. Returns nil, nil if not found.
	GetTraining(ctx context.Context, trainingID string) (*Training, error)

	// ListReadyTrainings returns up to limit records whose video asset
	// is available for playback.
	ListReadyTrainings(ctx context.Context, limit int) ([]*Training, error)

	// MarkConverting moves a Pending record to Converting.
	// Returns ErrInvalidTransition if the record is not Pending.
	MarkConverting(ctx context.Context, trainingID string) error

	// MarkReady moves a Converting record to Ready and sets VideoKey in
	// the same conditional write. Returns ErrInvalidTransition if the
	// record is not Converting or already carries a VideoKey.
	MarkReady(ctx context.Context, trainingID, videoKey string) error

	// MarkFailed moves a non-terminal record to Failed, recording the
	// failure detail. Returns ErrInvalidTransition if the record is
	// already terminal.
	MarkFailed(ctx context.Context, trainingID, errMsg string) error
}

// UserStatusStore persists per-user training completion.
type UserStatusStore interface {
	// GetUserStatus retrieves a user's status row. Returns nil, nil if
	// the user has never interacted with the training.
	GetUserStatus(ctx context.Context, email, trainingID string) (*UserTrainingStatus, error)

	// MarkCompleted sets IsCompleted=true for the pair, creating the
	// row if needed. Idempotent: repeat calls are no-ops.
	MarkCompleted(ctx context.Context, email, trainingID string) error
}

// ReviewStore persists training reviews.
type ReviewStore interface {
	// PutReview creates or replaces the caller's review of a training.
	// Timestamp is filled in when empty.
	PutReview(ctx context.Context, r *Review) error

	// ListReviews returns all reviews for a training.
	ListReviews(ctx context.Context, trainingID string) ([]*Review, error)
}

// Store combines the three persistence interfaces. Both the DynamoDB
// and in-memory implementations satisfy it.
type Store interface {
	TrainingStore
	UserStatusStore
	ReviewStore
}

// now is stubbed in tests.
var now = time.Now
