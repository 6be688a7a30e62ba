// Package config holds the process-wide service configuration.
//
// Configuration is loaded once at cold start from environment variables
// and passed to each component at construction. Components never read
// the environment themselves, so a test can build a Config literal and
// wire components without touching the process environment.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// Defaults for optional settings.
const (
	DefaultVideoPrefix      = "video"
	DefaultPresignExpiry    = time.Hour
	DefaultPollInterval     = 15 * time.Second
	DefaultTranscodeTimeout = 2 * time.Hour
)

// Config is the immutable service configuration. The zero value is not
// usable; build one with FromEnv or a literal in tests.
type Config struct {
	// DynamoDB tables.
	TrainingsTable  string
	UserStatusTable string
	ReviewsTable    string

	// S3 buckets. UploadBucket is the staging area for raw uploads,
	// WebBucket is the serving location for finished HLS assets.
	UploadBucket string
	WebBucket    string

	// VideoPrefix is the key prefix for finished assets in WebBucket.
	// The manifest for a training lands at
	// {VideoPrefix}/{trainingId}/{trainingId}.m3u8.
	VideoPrefix string

	// NotificationTopicARN is the SNS topic for operator notifications.
	// May be empty; the transcode Lambda then tries SSM (see TopicSSMParam).
	NotificationTopicARN string

	// TopicSSMParam is the SSM parameter holding the topic ARN when
	// NotificationTopicARN is unset.
	TopicSSMParam string

	// EventBusName is the EventBridge bus for training lifecycle events.
	// Empty disables event emission.
	EventBusName string

	// TranscodeLambdaARN is the worker function the API Lambda invokes
	// asynchronously to run a training's workflow.
	TranscodeLambdaARN string

	// MediaConvert job submission settings.
	MediaConvertRoleARN  string
	MediaConvertQueueARN string
	MediaConvertEndpoint string

	// PresignExpiry bounds the upload-intake write credential lifetime.
	PresignExpiry time.Duration

	// PollInterval is how often the workflow polls the transcode job.
	PollInterval time.Duration

	// TranscodeTimeout caps a single workflow's transcode step. The
	// source behavior defines no timeout; this is a defensive bound so
	// an abandoned job cannot suspend a workflow forever.
	TranscodeTimeout time.Duration
}

// FromEnv builds a Config from VT_* environment variables. Missing
// optional values get defaults; required values are checked by Require.
func FromEnv() Config {
	return Config{
		TrainingsTable:       os.Getenv("VT_TRAININGS_TABLE"),
		UserStatusTable:      os.Getenv("VT_USER_STATUS_TABLE"),
		ReviewsTable:         os.Getenv("VT_REVIEWS_TABLE"),
		UploadBucket:         os.Getenv("VT_UPLOAD_BUCKET"),
		WebBucket:            os.Getenv("VT_WEB_BUCKET"),
		VideoPrefix:          envOrDefault("VT_VIDEO_PREFIX", DefaultVideoPrefix),
		NotificationTopicARN: os.Getenv("VT_NOTIFICATION_TOPIC_ARN"),
		TopicSSMParam:        envOrDefault("VT_TOPIC_SSM_PARAM", "/video-training/prod/notification-topic-arn"),
		EventBusName:         os.Getenv("VT_EVENT_BUS_NAME"),
		TranscodeLambdaARN:   os.Getenv("VT_TRANSCODE_LAMBDA_ARN"),
		MediaConvertRoleARN:  os.Getenv("VT_MEDIACONVERT_ROLE_ARN"),
		MediaConvertQueueARN: os.Getenv("VT_MEDIACONVERT_QUEUE_ARN"),
		MediaConvertEndpoint: os.Getenv("VT_MEDIACONVERT_ENDPOINT"),
		PresignExpiry:        envDuration("VT_PRESIGN_EXPIRY", DefaultPresignExpiry),
		PollInterval:         envDuration("VT_POLL_INTERVAL", DefaultPollInterval),
		TranscodeTimeout:     envDuration("VT_TRANSCODE_TIMEOUT", DefaultTranscodeTimeout),
	}
}

// Require returns an error naming every requested field that is empty.
// Field names match the struct fields; each Lambda checks only the
// subset it actually uses.
func (c Config) Require(fields ...string) error {
	var missing []string
	for _, f := range fields {
		if c.field(f) == "" {
			missing = append(missing, f)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}
	return nil
}

func (c Config) field(name string) string {
	switch name {
	case "TrainingsTable":
		return c.TrainingsTable
	case "UserStatusTable":
		return c.UserStatusTable
	case "ReviewsTable":
		return c.ReviewsTable
	case "UploadBucket":
		return c.UploadBucket
	case "WebBucket":
		return c.WebBucket
	case "VideoPrefix":
		return c.VideoPrefix
	case "NotificationTopicARN":
		return c.NotificationTopicARN
	case "TranscodeLambdaARN":
		return c.TranscodeLambdaARN
	case "MediaConvertRoleARN":
		return c.MediaConvertRoleARN
	case "MediaConvertQueueARN":
		return c.MediaConvertQueueARN
	default:
		// Unknown names are treated as missing so a typo in a Require
		// call fails loudly at startup rather than passing silently.
		return ""
	}
}

func envOrDefault(envVar, defaultVal string) string {
	if v := os.Getenv(envVar); v != "" {
		return v
	}
	return defaultVal
}

func envDuration(envVar string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(envVar)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return defaultVal
	}
	return d
}
