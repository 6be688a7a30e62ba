// Package lambdaboot provides shared Lambda cold-start bootstrap logic.
//
// Both Lambdas need some subset of: AWS config, S3, DynamoDB, the SSM
// parameter fetch for the notification topic, and startup logging. This
// package extracts the common init patterns so each Lambda's init() is
// a short composition of helpers.
package lambdaboot

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/rs/zerolog/log"

	"github.com/kkmtyyz/video-training-service/internal/config"
	"github.com/kkmtyyz/video-training-service/internal/logging"
	"github.com/kkmtyyz/video-training-service/internal/store"
)

// S3Clients holds the S3 client and presigner.
type S3Clients struct {
	Client    *s3.Client
	Presigner *s3.PresignClient
}

// InitAWS loads the default AWS config. Fatals on error: a Lambda
// without credentials cannot do anything useful.
func InitAWS() aws.Config {
	cfg, err := awsconfig.LoadDefaultConfig(context.Background())
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load AWS config")
	}
	log.Debug().Str("region", cfg.Region).Msg("AWS config loaded")
	return cfg
}

// InitS3 creates an S3 client and presigner from the shared config.
func InitS3(cfg aws.Config) S3Clients {
	client := s3.NewFromConfig(cfg)
	return S3Clients{
		Client:    client,
		Presigner: s3.NewPresignClient(client),
	}
}

// InitStore creates the DynamoDB store over the configured tables.
// Fatals if any table name is missing.
func InitStore(awsCfg aws.Config, cfg config.Config) *store.DynamoStore {
	if err := cfg.Require("TrainingsTable", "UserStatusTable", "ReviewsTable"); err != nil {
		log.Fatal().Err(err).Msg("DynamoDB tables not configured")
	}
	return store.NewDynamoStore(dynamodb.NewFromConfig(awsCfg), store.Tables{
		Trainings:  cfg.TrainingsTable,
		UserStatus: cfg.UserStatusTable,
		Reviews:    cfg.ReviewsTable,
	})
}

// ResolveTopicARN returns the notification topic ARN, preferring the
// explicit configuration value and falling back to SSM Parameter Store.
// Returns "" (with a warning) when neither source yields one —
// notifications are then disabled, which is legal: they are best-effort.
func ResolveTopicARN(awsCfg aws.Config, cfg config.Config) string {
	if cfg.NotificationTopicARN != "" {
		return cfg.NotificationTopicARN
	}
	if cfg.TopicSSMParam == "" {
		log.Warn().Msg("Notification topic not configured — notifications disabled")
		return ""
	}

	ssmStart := time.Now()
	result, err := ssm.NewFromConfig(awsCfg).GetParameter(context.Background(), &ssm.GetParameterInput{
		Name: aws.String(cfg.TopicSSMParam),
	})
	if err != nil {
		log.Warn().Err(err).Str("param", cfg.TopicSSMParam).Msg("Notification topic not found in SSM — notifications disabled")
		return ""
	}
	arn := aws.ToString(result.Parameter.Value)
	log.Debug().Str("param", cfg.TopicSSMParam).Dur("elapsed", time.Since(ssmStart)).Msg("Notification topic ARN loaded from SSM")
	return arn
}

// StartupLog is a convenience wrapper for the startup logger.
func StartupLog(name string, initStart time.Time) *logging.StartupLogger {
	return logging.NewStartupLogger(name).InitDuration(time.Since(initStart))
}
