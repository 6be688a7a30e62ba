// Package main provides the API Lambda entry point.
//
// It serves the web UI's HTTP API from behind the ALB, which handles
// OIDC authentication and forwards the caller's identity in the
// x-amzn-oidc-data header. Transcode work is handed off to the
// transcode Lambda via async invoke; this Lambda never waits for a
// transcode to finish.
package main

import (
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	lambdasvc "github.com/aws/aws-sdk-go-v2/service/lambda"
	"github.com/awslabs/aws-lambda-go-api-proxy/httpadapter"
	"github.com/rs/zerolog/log"

	"github.com/kkmtyyz/video-training-service/internal/api"
	"github.com/kkmtyyz/video-training-service/internal/config"
	"github.com/kkmtyyz/video-training-service/internal/dispatch"
	"github.com/kkmtyyz/video-training-service/internal/lambdaboot"
	"github.com/kkmtyyz/video-training-service/internal/logging"
	"github.com/kkmtyyz/video-training-service/internal/notify"
	"github.com/kkmtyyz/video-training-service/internal/s3util"
	"github.com/kkmtyyz/video-training-service/internal/workflow"
)

var server *api.Server

func init() {
	initStart := time.Now()
	logging.Init()

	cfg := config.FromEnv()
	if err := cfg.Require("UploadBucket", "TranscodeLambdaARN"); err != nil {
		log.Fatal().Err(err).Msg("API Lambda not configured")
	}

	awsCfg := lambdaboot.InitAWS()
	s3c := lambdaboot.InitS3(awsCfg)
	st := lambdaboot.InitStore(awsCfg, cfg)

	intake := s3util.NewIntake(s3c.Presigner, cfg.UploadBucket, cfg.PresignExpiry)
	dispatcher := dispatch.NewLambdaDispatcher(lambdasvc.NewFromConfig(awsCfg), cfg.TranscodeLambdaARN)

	var events workflow.EventSink
	if cfg.EventBusName != "" {
		events = notify.NewEventEmitter(eventbridge.NewFromConfig(awsCfg), cfg.EventBusName)
	}

	server = api.New(cfg, st, intake, dispatcher, events)

	lambdaboot.StartupLog("api-lambda", initStart).
		S3Bucket("upload", cfg.UploadBucket).
		DynamoTable("trainings", cfg.TrainingsTable).
		DynamoTable("userStatus", cfg.UserStatusTable).
		DynamoTable("reviews", cfg.ReviewsTable).
		LambdaFunc("transcode", cfg.TranscodeLambdaARN).
		Feature("events", events != nil).
		Config("presignExpiry", cfg.PresignExpiry.String()).
		Log()
}

func main() {
	adapter := httpadapter.NewV2(server.Routes())
	lambda.Start(adapter.ProxyWithContext)
}
