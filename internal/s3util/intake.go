package s3util

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Intake issues upload targets against a fixed staging bucket with a
// fixed URL expiry. It satisfies the API server's UploadIntake.
type Intake struct {
	presigner *s3.PresignClient
	bucket    string
	expiry    time.Duration
}

// NewIntake creates an Intake for the staging bucket.
func NewIntake(presigner *s3.PresignClient, bucket string, expiry time.Duration) *Intake {
	return &Intake{
		presigner: presigner,
		bucket:    bucket,
		expiry:    expiry,
	}
}

// NewUploadTarget issues a fresh upload target.
func (i *Intake) NewUploadTarget(ctx context.Context) (*UploadTarget, error) {
	return PresignUpload(ctx, i.presigner, i.bucket, i.expiry)
}

// SourceChecker adapts the S3 client to the workflow's source check.
type SourceChecker struct {
	client *s3.Client
}

// NewSourceChecker creates a SourceChecker.
func NewSourceChecker(client *s3.Client) *SourceChecker {
	return &SourceChecker{client: client}
}

// ObjectExists reports whether the staged source object is present.
func (c *SourceChecker) ObjectExists(ctx context.Context, bucket, key string) (bool, error) {
	return ObjectExists(ctx, c.client, bucket, key)
}
