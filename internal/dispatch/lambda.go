// Package dispatch triggers transcode workflows asynchronously.
package dispatch

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	lambdasvc "github.com/aws/aws-sdk-go-v2/service/lambda"
	lambdatypes "github.com/aws/aws-sdk-go-v2/service/lambda/types"
	"github.com/rs/zerolog/log"

	"github.com/kkmtyyz/video-training-service/internal/workflow"
)

// LambdaDispatcher invokes the transcode Lambda with
// InvocationType=Event, so the API Lambda returns immediately without
// waiting for the workflow to run.
type LambdaDispatcher struct {
	client      *lambdasvc.Client
	functionARN string
}

// NewLambdaDispatcher creates a dispatcher targeting the transcode
// Lambda.
func NewLambdaDispatcher(client *lambdasvc.Client, functionARN string) *LambdaDispatcher {
	return &LambdaDispatcher{
		client:      client,
		functionARN: functionARN,
	}
}

// Dispatch sends the workflow input to the transcode Lambda.
func (d *LambdaDispatcher) Dispatch(ctx context.Context, in workflow.Input) error {
	if d.functionARN == "" {
		return fmt.Errorf("transcode lambda not configured")
	}

	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal workflow input: %w", err)
	}

	log.Debug().
		Str("trainingId", in.TrainingID).
		Int("payloadSize", len(payload)).
		Msg("Invoking transcode Lambda asynchronously")

	_, err = d.client.Invoke(ctx, &lambdasvc.InvokeInput{
		FunctionName:   aws.String(d.functionARN),
		InvocationType: lambdatypes.InvocationTypeEvent,
		Payload:        payload,
	})
	if err != nil {
		return fmt.Errorf("invoke transcode lambda: %w", err)
	}
	return nil
}
