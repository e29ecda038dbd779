package awsconf

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/stretchr/testify/require"
)

func TestLoad_RegionCredentialsAndNoRetry(t *testing.T) {
	ctx := context.Background()
	cfg, err := Load(ctx, Options{Region: "eu-central-1", AccessKeyID: "AKID", SecretAccessKey: "secret"})
	require.NoError(t, err)
	require.Equal(t, "eu-central-1", cfg.Region)

	creds, err := cfg.Credentials.Retrieve(ctx)
	require.NoError(t, err)
	require.Equal(t, "AKID", creds.AccessKeyID)

	require.NotNil(t, cfg.Retryer)
	require.Equal(t, 1, cfg.Retryer().MaxAttempts())
	require.IsType(t, aws.NopRetryer{}, cfg.Retryer())
}
