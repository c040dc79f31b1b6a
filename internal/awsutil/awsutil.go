// Package awsutil builds AWS SDK configuration from environment settings and
// classifies AWS API errors.
package awsutil

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"

	"cloudsathi/internal/config"
)

// accessDeniedCodes are the error codes AWS services use for permission failures.
var accessDeniedCodes = map[string]bool{
	"AccessDeniedException":       true,
	"AccessDenied":                true,
	"UnauthorizedOperation":       true,
	"UnrecognizedClientException": true,
	"InvalidClientTokenId":        true,
	"ExpiredTokenException":       true,
}

// NewConfig returns an aws.Config using the static credentials in cfg.
func NewConfig(cfg config.AWSConfig) aws.Config {
	return aws.Config{
		Region: cfg.Region,
		Credentials: credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID, cfg.SecretAccessKey, cfg.SessionToken,
		),
	}
}

// IsAccessDenied reports whether err is an AWS API error signalling the
// caller lacks permission or presented invalid credentials.
func IsAccessDenied(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return accessDeniedCodes[apiErr.ErrorCode()]
	}
	return false
}

// ErrorMessage returns the service-provided message for err when available.
func ErrorMessage(err error) string {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) && apiErr.ErrorMessage() != "" {
		return apiErr.ErrorMessage()
	}
	return err.Error()
}

// ParseS3Path extracts bucket and key from an "s3://bucket/path/to/file" URI.
func ParseS3Path(s3Path string) (bucket, key string, err error) {
	u, err := url.Parse(s3Path)
	if err != nil {
		return "", "", fmt.Errorf("parse S3 path %q: %w", s3Path, err)
	}
	if u.Scheme != "s3" {
		return "", "", fmt.Errorf("expected s3:// scheme, got %q", u.Scheme)
	}
	if u.Host == "" {
		return "", "", fmt.Errorf("missing bucket in S3 path %q", s3Path)
	}
	return u.Host, strings.TrimPrefix(u.Path, "/"), nil
}

// HeadBucketAPI is the subset of the S3 client used for readiness checks.
type HeadBucketAPI interface {
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
}

// BucketChecker verifies the Athena output bucket is reachable.
type BucketChecker struct {
	client HeadBucketAPI
	bucket string
}

// NewBucketChecker creates a checker for the bucket named in outputLocation.
func NewBucketChecker(client HeadBucketAPI, outputLocation string) (*BucketChecker, error) {
	bucket, _, err := ParseS3Path(outputLocation)
	if err != nil {
		return nil, err
	}
	return &BucketChecker{client: client, bucket: bucket}, nil
}

// NewS3BucketChecker builds an S3 client from cfg and wraps it in a BucketChecker.
func NewS3BucketChecker(cfg config.AWSConfig) (*BucketChecker, error) {
	client := s3.NewFromConfig(NewConfig(cfg))
	return NewBucketChecker(client, cfg.AthenaOutputLocation)
}

// Bucket returns the bucket being checked.
func (c *BucketChecker) Bucket() string { return c.bucket }

// Check issues a HeadBucket request.
func (c *BucketChecker) Check(ctx context.Context) error {
	_, err := c.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(c.bucket)})
	if err != nil {
		return fmt.Errorf("head bucket %s: %w", c.bucket, err)
	}
	return nil
}
