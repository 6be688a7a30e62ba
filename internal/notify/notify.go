// Package notify delivers workflow outcome messages.
//
// Delivery is best-effort by design: a lost notification never affects
// the correctness of the training record, so callers log notification
// errors and move on. Two channels exist — an SNS topic for the human
// operator and an EventBridge bus for machine consumers.
package notify

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
)

// Outcome is the human-readable terminal result of a workflow.
type Outcome string

const (
	OutcomeSucceeded Outcome = "succeeded"
	OutcomeFailed    Outcome = "failed"
)

// Subject is the operator notification subject line.
const Subject = "[Video Training Service] Training creation notice"

// Notifier sends a terminal workflow outcome to the operator channel.
type Notifier interface {
	// Notify reports that creation of the named training reached the
	// given outcome. Implementations must not block on retries; a
	// returned error is for logging only.
	Notify(ctx context.Context, outcome Outcome, trainingTitle string) error
}

// Body renders the operator message for an outcome.
func Body(outcome Outcome, trainingTitle string) string {
	return fmt.Sprintf(
		"This is an automated message from the video training service.\n"+
			"Creation of the following training has %s.\n"+
			"Training title: %s",
		outcome, trainingTitle)
}

// LogNotifier writes notifications to the service log only. Used by the
// local development server where no SNS topic exists.
type LogNotifier struct{}

var _ Notifier = LogNotifier{}

func (LogNotifier) Notify(_ context.Context, outcome Outcome, trainingTitle string) error {
	log.Info().
		Str("outcome", string(outcome)).
		Str("title", trainingTitle).
		Msg("Training outcome notification (log only)")
	return nil
}
