// Package transcode wraps the external transcode job service behind a
// submit/poll contract.
//
// The production implementation submits AWS Elemental MediaConvert jobs
// producing an HLS rendition of the raw upload. The transcoding
// computation itself runs entirely inside the managed service; this
// package only owns the job-submission/poll/result contract.
package transcode

import (
	"context"
	"fmt"
)

// JobSpec describes one transcode job: a raw source object and the
// serving-side destination for the HLS output.
type JobSpec struct {
	TrainingID   string
	SourceBucket string
	SourceKey    string

	// DestBucket/DestPrefix locate the HLS output. The manifest lands
	// at {DestPrefix}/{TrainingID}/{TrainingID}.m3u8 inside DestBucket.
	DestBucket string
	DestPrefix string
}

// JobState is the coarse lifecycle of a submitted job.
type JobState string

const (
	StateSubmitted   JobState = "SUBMITTED"
	StateProgressing JobState = "PROGRESSING"
	StateComplete    JobState = "COMPLETE"
	StateError       JobState = "ERROR"
	StateCanceled    JobState = "CANCELED"
)

// JobStatus is a poll result. Done is true for any terminal state;
// Err carries the failure detail when the terminal state is not COMPLETE.
type JobStatus struct {
	State JobState
	Done  bool
	Err   string
}

// Succeeded reports a terminal, successful job.
func (s JobStatus) Succeeded() bool {
	return s.Done && s.State == StateComplete
}

// JobService is the async job API of the external transcoding pipeline.
type JobService interface {
	// SubmitJob starts a transcode job and returns its ID.
	SubmitJob(ctx context.Context, spec JobSpec) (string, error)

	// PollJob reports the current status of a job.
	PollJob(ctx context.Context, jobID string) (JobStatus, error)
}

// ManifestKey returns the serving-bucket key of the HLS manifest for a
// training: {prefix}/{trainingId}/{trainingId}.m3u8.
func ManifestKey(prefix, trainingID string) string {
	return fmt.Sprintf("%s/%s/%s.m3u8", prefix, trainingID, trainingID)
}

// destinationURI returns the s3:// destination base the job writes to.
// MediaConvert appends the container extensions itself, so the URI ends
// at the manifest basename without an extension.
func destinationURI(bucket, prefix, trainingID string) string {
	return fmt.Sprintf("s3://%s/%s/%s/%s", bucket, prefix, trainingID, trainingID)
}
