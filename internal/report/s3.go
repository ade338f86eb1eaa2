package report

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/picklr-io/reaper/internal/engine"
)

// S3API is the slice of the S3 client the sink uses.
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Sink stores each run summary as a JSON object at
// <prefix>/<yyyy>/<mm>/<dd>/<run-id>.json.
type S3Sink struct {
	client S3API
	bucket string
	prefix string
	retry  *engine.RetryPolicy
}

// NewS3Sink loads the default AWS configuration for region.
func NewS3Sink(ctx context.Context, bucket, prefix, region string) (*S3Sink, error) {
	if bucket == "" {
		return nil, fmt.Errorf("s3 report sink requires a bucket")
	}
	if region == "" {
		region = "us-east-1"
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("unable to load AWS config: %w", err)
	}
	return NewS3SinkWithClient(s3.NewFromConfig(cfg), bucket, prefix), nil
}

// NewS3SinkWithClient wraps an existing client.
func NewS3SinkWithClient(client S3API, bucket, prefix string) *S3Sink {
	return &S3Sink{
		client: client,
		bucket: bucket,
		prefix: strings.Trim(prefix, "/"),
		retry:  engine.DefaultRetryPolicy(),
	}
}

// Key returns the object key for a run.
func (s *S3Sink) Key(stats *engine.RunStats) string {
	day := stats.StartedAt.UTC().Format("2006/01/02")
	return path.Join(s.prefix, day, stats.RunID+".json")
}

func (s *S3Sink) Publish(ctx context.Context, stats *engine.RunStats) error {
	body, err := json.MarshalIndent(stats, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode run summary: %w", err)
	}
	key := s.Key(stats)

	err = engine.RetryWithBackoff(ctx, s.retry, func() error {
		_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket:               aws.String(s.bucket),
			Key:                  aws.String(key),
			Body:                 bytes.NewReader(body),
			ContentType:          aws.String("application/json"),
			ServerSideEncryption: s3types.ServerSideEncryptionAes256,
		})
		return err
	}, isRetryable)
	if err != nil {
		return fmt.Errorf("failed to write run summary to s3://%s/%s: %w", s.bucket, key, err)
	}
	return nil
}

var retryableCodes = map[string]bool{
	"SlowDown":            true,
	"RequestTimeout":      true,
	"InternalError":       true,
	"ServiceUnavailable":  true,
	"ThrottlingException": true,
}

func isRetryable(err error) bool {
	var ae smithy.APIError
	if errors.As(err, &ae) {
		return retryableCodes[ae.ErrorCode()]
	}
	return engine.IsTransientError(err)
}
