//go:build integration

// Package localstack starts a LocalStack container for integration tests.
package localstack

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/and161185/filekeeper/internal/awsconf"
)

// Start runs LocalStack with the given services, or reuses LOCALSTACK_ENDPOINT
// when set, and returns options pointing at it.
func Start(t *testing.T, services string) awsconf.Options {
	t.Helper()
	opts := awsconf.Options{
		Region:          "us-east-1",
		AccessKeyID:     "test",
		SecretAccessKey: "test",
	}
	if endpoint := os.Getenv("LOCALSTACK_ENDPOINT"); endpoint != "" {
		opts.Endpoint = endpoint
		return opts
	}

	ctx := context.Background()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "localstack/localstack:3.0",
			ExposedPorts: []string{"4566/tcp"},
			Env: map[string]string{
				"SERVICES":              services,
				"DEFAULT_REGION":        opts.Region,
				"EAGER_SERVICE_LOADING": "1",
			},
			WaitingFor: wait.ForAll(
				wait.ForListeningPort("4566/tcp"),
				wait.ForHTTP("/_localstack/health").
					WithPort("4566/tcp").
					WithStartupTimeout(60*time.Second),
			),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("failed to start localstack container: %v", err)
	}
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("failed to get container host: %v", err)
	}
	port, err := container.MappedPort(ctx, "4566")
	if err != nil {
		t.Fatalf("failed to get container port: %v", err)
	}
	opts.Endpoint = fmt.Sprintf("http://%s:%s", host, port.Port())
	return opts
}
