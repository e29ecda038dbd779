// Package awsconf loads the AWS SDK configuration shared by the S3 and DynamoDB clients.
package awsconf

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
)

// Options selects region, endpoint and credentials.
type Options struct {
	// Region is the AWS region (optional, uses SDK default if empty).
	Region string

	// Endpoint overrides the service endpoint (LocalStack, MinIO, DynamoDB Local).
	Endpoint string

	// AccessKeyID and SecretAccessKey force static credentials when both are set.
	AccessKeyID     string
	SecretAccessKey string
}

// Load resolves the SDK config. Every call is attempted once: retries are
// left to the caller, so the SDK retryer is disabled.
func Load(ctx context.Context, o Options) (aws.Config, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRetryer(func() aws.Retryer { return aws.NopRetryer{} }),
	}
	if o.Region != "" {
		opts = append(opts, awsconfig.WithRegion(o.Region))
	}
	if o.AccessKeyID != "" && o.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(o.AccessKeyID, o.SecretAccessKey, ""),
		))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return cfg, nil
}
