// Package main provides the transcode Lambda entry point.
//
// Invoked asynchronously by the API Lambda via lambda:Invoke
// (Event type) with one workflow input per training. It drives the
// training's transcode workflow end to end: MediaConvert job
// submission, status polling, result persistence, and operator
// notification. One invocation runs one workflow to a terminal state.
package main

import (
	"context"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/rs/zerolog/log"

	"github.com/kkmtyyz/video-training-service/internal/config"
	"github.com/kkmtyyz/video-training-service/internal/lambdaboot"
	"github.com/kkmtyyz/video-training-service/internal/logging"
	"github.com/kkmtyyz/video-training-service/internal/metrics"
	"github.com/kkmtyyz/video-training-service/internal/notify"
	"github.com/kkmtyyz/video-training-service/internal/s3util"
	"github.com/kkmtyyz/video-training-service/internal/transcode"
	"github.com/kkmtyyz/video-training-service/internal/workflow"
)

var engine *workflow.Engine

func init() {
	initStart := time.Now()
	logging.Init()

	cfg := config.FromEnv()
	if err := cfg.Require("UploadBucket", "WebBucket", "MediaConvertRoleARN", "MediaConvertQueueARN"); err != nil {
		log.Fatal().Err(err).Msg("Transcode Lambda not configured")
	}

	awsCfg := lambdaboot.InitAWS()
	s3c := lambdaboot.InitS3(awsCfg)
	st := lambdaboot.InitStore(awsCfg, cfg)

	jobs := transcode.NewMediaConvertService(awsCfg, cfg.MediaConvertRoleARN, cfg.MediaConvertQueueARN, cfg.MediaConvertEndpoint)

	var notifier notify.Notifier
	topicARN := lambdaboot.ResolveTopicARN(awsCfg, cfg)
	if topicARN != "" {
		notifier = notify.NewTopicNotifier(sns.NewFromConfig(awsCfg), topicARN)
	}

	var events workflow.EventSink
	if cfg.EventBusName != "" {
		events = notify.NewEventEmitter(eventbridge.NewFromConfig(awsCfg), cfg.EventBusName)
	}

	engine = workflow.New(workflow.Config{
		Store:        st,
		Jobs:         jobs,
		Notifier:     notifier,
		Source:       s3util.NewSourceChecker(s3c.Client),
		Events:       events,
		DestBucket:   cfg.WebBucket,
		DestPrefix:   cfg.VideoPrefix,
		PollInterval: cfg.PollInterval,
		Timeout:      cfg.TranscodeTimeout,
	})

	lambdaboot.StartupLog("transcode-lambda", initStart).
		S3Bucket("upload", cfg.UploadBucket).
		S3Bucket("web", cfg.WebBucket).
		DynamoTable("trainings", cfg.TrainingsTable).
		Topic("notifications", topicARN).
		Feature("notifications", notifier != nil).
		Feature("events", events != nil).
		Config("videoPrefix", cfg.VideoPrefix).
		Config("pollInterval", cfg.PollInterval.String()).
		Config("transcodeTimeout", cfg.TranscodeTimeout.String()).
		Log()
}

// handler runs one workflow. Errors are returned only for malformed
// input; workflow failures land the record in Failed and are reported
// through metrics, not as handler errors (the invoke is async, so a
// returned error would only trigger the Lambda retry policy, and the
// workflow is single-attempt).
func handler(ctx context.Context, in workflow.Input) error {
	start := time.Now()

	result, err := engine.Run(ctx, in)
	if err != nil {
		log.Error().Err(err).Str("trainingId", in.TrainingID).Msg("Workflow rejected input")
		metrics.Workflow(in.TrainingID, "rejected", time.Since(start))
		return err
	}

	outcome := "succeeded"
	if result.State == workflow.StateFailed {
		outcome = "failed"
	}
	metrics.Workflow(in.TrainingID, outcome, time.Since(start))
	return nil
}

func main() {
	lambda.Start(handler)
}
