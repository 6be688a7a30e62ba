package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	eventbridgetypes "github.com/aws/aws-sdk-go-v2/service/eventbridge/types"
	"github.com/rs/zerolog/log"
)

// eventSource identifies this service on the EventBridge bus.
const eventSource = "video-training-service"

// Training lifecycle event detail types.
const (
	EventTrainingSubmitted = "TrainingSubmitted"
	EventTrainingReady     = "TrainingReady"
	EventTrainingFailed    = "TrainingFailed"
)

// TrainingEvent is the detail payload for all lifecycle events.
type TrainingEvent struct {
	TrainingID string `json:"trainingId"`
	Title      string `json:"title"`
	VideoKey   string `json:"videoKey,omitempty"`
	Error      string `json:"error,omitempty"`
}

// EventEmitter publishes training lifecycle events to an EventBridge
// bus. Like the operator notifications, emission is best-effort.
type EventEmitter struct {
	client  *eventbridge.Client
	busName string
}

// NewEventEmitter creates an EventEmitter for the given bus.
func NewEventEmitter(client *eventbridge.Client, busName string) *EventEmitter {
	return &EventEmitter{
		client:  client,
		busName: busName,
	}
}

// Emit publishes one lifecycle event. detailType must be one of the
// EventTraining* constants.
func (e *EventEmitter) Emit(ctx context.Context, detailType string, event TrainingEvent) error {
	detail, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", detailType, err)
	}

	result, err := e.client.PutEvents(ctx, &eventbridge.PutEventsInput{
		Entries: []eventbridgetypes.PutEventsRequestEntry{
			{
				EventBusName: aws.String(e.busName),
				Source:       aws.String(eventSource),
				DetailType:   aws.String(detailType),
				Detail:       aws.String(string(detail)),
			},
		},
	})
	if err != nil {
		return fmt.Errorf("PutEvents %s: %w", detailType, err)
	}

	if result.FailedEntryCount > 0 {
		for i, entry := range result.Entries {
			if entry.ErrorCode != nil || entry.ErrorMessage != nil {
				return fmt.Errorf("PutEvents entry %d failed: %s - %s",
					i, aws.ToString(entry.ErrorCode), aws.ToString(entry.ErrorMessage))
			}
		}
	}

	log.Debug().
		Str("trainingId", event.TrainingID).
		Str("detailType", detailType).
		Msg("Lifecycle event emitted")
	return nil
}
