package awsutil

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cloudsathi/internal/config"
)

func TestIsAccessDenied(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"access denied", &smithy.GenericAPIError{Code: "AccessDeniedException", Message: "nope"}, true},
		{"wrapped", fmt.Errorf("call: %w", &smithy.GenericAPIError{Code: "AccessDeniedException"}), true},
		{"bad token", &smithy.GenericAPIError{Code: "UnrecognizedClientException"}, true},
		{"throttled", &smithy.GenericAPIError{Code: "ThrottlingException"}, false},
		{"plain", errors.New("boom"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsAccessDenied(tt.err))
		})
	}
}

func TestErrorMessage(t *testing.T) {
	assert.Equal(t, "User is not authorized", ErrorMessage(&smithy.GenericAPIError{Code: "AccessDeniedException", Message: "User is not authorized"}))
	assert.Equal(t, "boom", ErrorMessage(errors.New("boom")))
}

func TestParseS3Path(t *testing.T) {
	bucket, key, err := ParseS3Path("s3://my-athena-results-bucket/")
	require.NoError(t, err)
	assert.Equal(t, "my-athena-results-bucket", bucket)
	assert.Empty(t, key)

	bucket, key, err = ParseS3Path("s3://results/athena/2024/")
	require.NoError(t, err)
	assert.Equal(t, "results", bucket)
	assert.Equal(t, "athena/2024/", key)

	_, _, err = ParseS3Path("https://results/")
	require.Error(t, err)

	_, _, err = ParseS3Path("s3:///key")
	require.Error(t, err)
}

func TestNewConfig(t *testing.T) {
	cfg := NewConfig(config.AWSConfig{AccessKeyID: "AKIA", SecretAccessKey: "s", Region: "us-west-2"})
	assert.Equal(t, "us-west-2", cfg.Region)

	creds, err := cfg.Credentials.Retrieve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "AKIA", creds.AccessKeyID)
	assert.Equal(t, "s", creds.SecretAccessKey)
}

type fakeHeadBucket struct {
	bucket string
	err    error
}

func (f *fakeHeadBucket) HeadBucket(_ context.Context, in *s3.HeadBucketInput, _ ...func(*s3.Options)) (*s3.HeadBucketOutput, error) {
	f.bucket = aws.ToString(in.Bucket)
	return &s3.HeadBucketOutput{}, f.err
}

func TestBucketChecker(t *testing.T) {
	fake := &fakeHeadBucket{}
	checker, err := NewBucketChecker(fake, "s3://results-bucket/prefix/")
	require.NoError(t, err)
	assert.Equal(t, "results-bucket", checker.Bucket())

	require.NoError(t, checker.Check(context.Background()))
	assert.Equal(t, "results-bucket", fake.bucket)

	fake.err = errors.New("not found")
	err = checker.Check(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "results-bucket")

	_, err = NewBucketChecker(fake, "not-a-uri")
	require.Error(t, err)
}
