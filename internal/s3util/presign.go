// Package s3util provides the S3 helpers used by upload intake and the
// transcode workflow.
package s3util

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// UploadTarget is a freshly issued staging destination: an object
// reference plus an expiring write credential (the presigned URL).
type UploadTarget struct {
	Bucket string `json:"bucket"`
	Key    string `json:"key"`
	URL    string `json:"url"`
}

// PresignUpload issues a new upload target in the staging bucket. Each
// call yields an independent target: the key is a fresh UUID, so
// repeated calls never collide.
func PresignUpload(ctx context.Context, presigner *s3.PresignClient, bucket string, expiry time.Duration) (*UploadTarget, error) {
	key := uuid.NewString()

	result, err := presigner.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket: &bucket,
		Key:    &key,
	}, func(opts *s3.PresignOptions) {
		opts.Expires = expiry
	})
	if err != nil {
		return nil, fmt.Errorf("presign PutObject %s/%s: %w", bucket, key, err)
	}

	log.Debug().Str("bucket", bucket).Str("key", key).Dur("expiry", expiry).Msg("Upload URL presigned")
	return &UploadTarget{
		Bucket: bucket,
		Key:    key,
		URL:    result.URL,
	}, nil
}

// ObjectExists reports whether the staged object is present. The
// submission handler defers this check to the workflow, which fails the
// training explicitly when the object is missing.
func ObjectExists(ctx context.Context, client *s3.Client, bucket, key string) (bool, error) {
	_, err := client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: &bucket,
		Key:    &key,
	})
	if err != nil {
		var notFound *s3types.NotFound
		if errors.As(err, &notFound) {
			return false, nil
		}
		return false, fmt.Errorf("HeadObject %s/%s: %w", bucket, key, err)
	}
	return true, nil
}
