package workflow

import "fmt"

// ValidationError marks malformed workflow input. It is raised before
// any record state is touched and is never retried.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "invalid workflow input: " + e.Reason
}

// UpstreamJobError marks a terminal transcode job failure (submission,
// polling, timeout, missing source, or the job itself erroring). It
// drives the record to Failed.
type UpstreamJobError struct {
	Detail string
}

func (e *UpstreamJobError) Error() string {
	return "transcode job failed: " + e.Detail
}

// PersistenceError marks a store write failure during the workflow. It
// drives the record to Failed.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence failed (%s): %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}
