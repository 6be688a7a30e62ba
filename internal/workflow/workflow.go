// Package workflow runs the transcode orchestration for one training.
//
// The original deployment expressed this flow as a managed state
// machine; here it is an explicit in-process engine with the same
// shape: ConvertingInput → Transcoding → Persisting → Succeeded, with a
// Failed terminal state reachable from Transcoding or Persisting. State
// transitions are persisted through the training record's status
// column, so an observer sees only Pending, Converting, Ready, Failed.
//
// Error policy follows the source behavior: a single attempt per step,
// no automatic retries, explicit propagation to the terminal Notifier
// step. Callers needing resilience re-submit the training.
package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/kkmtyyz/video-training-service/internal/notify"
	"github.com/kkmtyyz/video-training-service/internal/store"
	"github.com/kkmtyyz/video-training-service/internal/transcode"
)

// State names the engine's internal steps. Only terminal states are
// observable outside the engine (through the record status).
type State string

const (
	StateConvertingInput State = "ConvertingInput"
	StateTranscoding     State = "Transcoding"
	StatePersisting      State = "Persisting"
	StateSucceeded       State = "Succeeded"
	StateFailed          State = "Failed"
)

// Input is the raw trigger payload from the submission handler.
type Input struct {
	TrainingID    string `json:"trainingId"`
	TrainingTitle string `json:"trainingTitle"`
	SourceBucket  string `json:"sourceBucket"`
	SourceKey     string `json:"sourceKey"`
}

// Result is the terminal outcome of one workflow run.
type Result struct {
	State    State
	VideoKey string
	Err      string
}

// SourceChecker verifies the staged source object exists. A nil checker
// skips the check (the local development server has no staging bucket).
type SourceChecker interface {
	ObjectExists(ctx context.Context, bucket, key string) (bool, error)
}

// EventSink receives machine-readable lifecycle events. A nil sink
// disables emission.
type EventSink interface {
	Emit(ctx context.Context, detailType string, event notify.TrainingEvent) error
}

// Config wires an Engine. Store and Jobs are required; a nil Notifier,
// Source, or Events disables that concern.
type Config struct {
	Store    store.TrainingStore
	Jobs     transcode.JobService
	Notifier notify.Notifier
	Source   SourceChecker
	Events   EventSink

	// DestBucket/DestPrefix locate the HLS output in the serving bucket.
	DestBucket string
	DestPrefix string

	// PollInterval between transcode job status checks.
	PollInterval time.Duration

	// Timeout bounds the transcode step. The source behavior has no
	// timeout; this defensive bound keeps an abandoned job from
	// suspending a workflow forever. Zero means no bound.
	Timeout time.Duration
}

// Engine drives one training's workflow to a terminal state. Engines
// are stateless between runs; concurrent runs for different trainings
// are fully independent.
type Engine struct {
	cfg Config
}

// New creates an Engine.
func New(cfg Config) *Engine {
	return &Engine{cfg: cfg}
}

// Run executes the workflow for one training and blocks until a
// terminal state. A non-nil error is returned only for malformed input
// (the one fatal, non-retried failure before any state exists to
// update); every other failure drives the record to Failed and is
// reported through the Result.
func (e *Engine) Run(ctx context.Context, in Input) (Result, error) {
	// ConvertingInput: normalize the trigger payload. Pure data
	// transform; malformed input is fatal and non-retried.
	spec, err := e.convertInput(in)
	if err != nil {
		return Result{}, err
	}

	logger := log.With().Str("trainingId", in.TrainingID).Str("title", in.TrainingTitle).Logger()
	logger.Info().Msg("Workflow started")

	// Transcoding.
	if err := e.transcoding(ctx, spec); err != nil {
		return e.fail(ctx, in, err), nil
	}

	// Persisting: the sole writer of VideoKey.
	videoKey := transcode.ManifestKey(e.cfg.DestPrefix, in.TrainingID)
	if err := e.cfg.Store.MarkReady(ctx, in.TrainingID, videoKey); err != nil {
		return e.fail(ctx, in, &PersistenceError{Op: "mark ready", Err: err}), nil
	}

	// Succeeded.
	logger.Info().Str("videoKey", videoKey).Msg("Workflow succeeded")
	e.emit(ctx, notify.EventTrainingReady, notify.TrainingEvent{
		TrainingID: in.TrainingID,
		Title:      in.TrainingTitle,
		VideoKey:   videoKey,
	})
	e.notify(ctx, notify.OutcomeSucceeded, in.TrainingTitle)

	return Result{State: StateSucceeded, VideoKey: videoKey}, nil
}

// convertInput is the ConvertingInput state.
func (e *Engine) convertInput(in Input) (transcode.JobSpec, error) {
	switch {
	case in.TrainingID == "":
		return transcode.JobSpec{}, &ValidationError{Reason: "trainingId is required"}
	case in.TrainingTitle == "":
		return transcode.JobSpec{}, &ValidationError{Reason: "trainingTitle is required"}
	case in.SourceBucket == "" || in.SourceKey == "":
		return transcode.JobSpec{}, &ValidationError{Reason: "source location is required"}
	}
	return transcode.JobSpec{
		TrainingID:   in.TrainingID,
		SourceBucket: in.SourceBucket,
		SourceKey:    in.SourceKey,
		DestBucket:   e.cfg.DestBucket,
		DestPrefix:   e.cfg.DestPrefix,
	}, nil
}

// transcoding is the Transcoding state: record the transition, verify
// the deferred source-existence check, submit the job, and suspend
// until the job reports terminal status.
func (e *Engine) transcoding(ctx context.Context, spec transcode.JobSpec) error {
	if err := e.cfg.Store.MarkConverting(ctx, spec.TrainingID); err != nil {
		return &PersistenceError{Op: "mark converting", Err: err}
	}

	if e.cfg.Source != nil {
		exists, err := e.cfg.Source.ObjectExists(ctx, spec.SourceBucket, spec.SourceKey)
		if err != nil {
			return &UpstreamJobError{Detail: fmt.Sprintf("check source object: %v", err)}
		}
		if !exists {
			return &UpstreamJobError{Detail: fmt.Sprintf("source object s3://%s/%s does not exist", spec.SourceBucket, spec.SourceKey)}
		}
	}

	jobID, err := e.cfg.Jobs.SubmitJob(ctx, spec)
	if err != nil {
		return &UpstreamJobError{Detail: fmt.Sprintf("submit job: %v", err)}
	}

	status, err := e.waitForJob(ctx, jobID)
	if err != nil {
		return err
	}
	if !status.Succeeded() {
		return &UpstreamJobError{Detail: status.Err}
	}
	return nil
}

// waitForJob polls until the job is terminal or the timeout elapses.
// This suspends only the one workflow; other trainings' workflows run
// in their own invocations.
func (e *Engine) waitForJob(ctx context.Context, jobID string) (transcode.JobStatus, error) {
	if e.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.Timeout)
		defer cancel()
	}

	interval := e.cfg.PollInterval
	if interval <= 0 {
		interval = time.Second
	}

	// Poll once immediately so short jobs finish without waiting a
	// full interval.
	for {
		status, err := e.cfg.Jobs.PollJob(ctx, jobID)
		if err != nil {
			return transcode.JobStatus{}, &UpstreamJobError{Detail: fmt.Sprintf("poll job %s: %v", jobID, err)}
		}
		if status.Done {
			return status, nil
		}

		select {
		case <-ctx.Done():
			return transcode.JobStatus{}, &UpstreamJobError{Detail: fmt.Sprintf("job %s: %v", jobID, ctx.Err())}
		case <-time.After(interval):
		}
	}
}

// fail is the Failed terminal state: record the failure, emit the
// lifecycle event, and converge on the Notifier.
func (e *Engine) fail(ctx context.Context, in Input, cause error) Result {
	log.Error().
		Err(cause).
		Str("trainingId", in.TrainingID).
		Str("title", in.TrainingTitle).
		Msg("Workflow failed")

	if err := e.cfg.Store.MarkFailed(ctx, in.TrainingID, cause.Error()); err != nil {
		// The failure record is best-effort at this point; the
		// notification below still informs the operator.
		log.Error().Err(err).Str("trainingId", in.TrainingID).Msg("Failed to record failure status")
	}

	e.emit(ctx, notify.EventTrainingFailed, notify.TrainingEvent{
		TrainingID: in.TrainingID,
		Title:      in.TrainingTitle,
		Error:      cause.Error(),
	})
	e.notify(ctx, notify.OutcomeFailed, in.TrainingTitle)

	return Result{State: StateFailed, Err: cause.Error()}
}

// notify sends the operator notification. Errors are logged and
// swallowed: delivery never affects the record's terminal status.
func (e *Engine) notify(ctx context.Context, outcome notify.Outcome, title string) {
	if e.cfg.Notifier == nil {
		return
	}
	if err := e.cfg.Notifier.Notify(ctx, outcome, title); err != nil {
		log.Error().Err(err).Str("title", title).Msg("Outcome notification failed")
	}
}

// emit sends a lifecycle event when a sink is configured. Best-effort.
func (e *Engine) emit(ctx context.Context, detailType string, event notify.TrainingEvent) {
	if e.cfg.Events == nil {
		return
	}
	if err := e.cfg.Events.Emit(ctx, detailType, event); err != nil {
		log.Error().Err(err).Str("detailType", detailType).Msg("Lifecycle event emission failed")
	}
}
