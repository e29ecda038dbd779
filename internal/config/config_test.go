package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

// clearEnv blanks every bound variable so the host environment cannot leak in.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, env := range envBindings {
		t.Setenv(env, "")
		require.NoError(t, os.Unsetenv(env))
	}
}

func TestLoad_EnvDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("TABLE_NAME", "perms")
	t.Setenv("BUCKET_NAME", "files")
	t.Setenv("DATABASE_DSN", "postgres://u:p@localhost:5432/fk")

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, ":8443", cfg.Addr)
	require.Equal(t, "perms", cfg.TableName)
	require.Equal(t, "files", cfg.BucketName)
	require.Equal(t, BackendPostgres, cfg.MetadataBackend)
	require.Equal(t, BackendS3, cfg.ObjectBackend)
	require.Equal(t, 5*time.Second, cfg.ShutdownTimeout)
	require.Equal(t, zapcore.InfoLevel, cfg.ZapLevel())
	require.False(t, cfg.TLSEnabled())
}

func TestLoad_MissingTableAndBucketIsFatal(t *testing.T) {
	clearEnv(t)
	t.Setenv("DATABASE_DSN", "postgres://localhost/fk")

	_, err := Load("")
	require.Error(t, err)
	require.Contains(t, err.Error(), "TABLE_NAME")
	require.Contains(t, err.Error(), "BUCKET_NAME")
}

func TestLoad_BackendRequirements(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{name: "postgres needs dsn", env: map[string]string{"METADATA_BACKEND": "postgres"}, wantErr: "DATABASE_DSN"},
		{name: "badger needs dir", env: map[string]string{"METADATA_BACKEND": "badger"}, wantErr: "BADGER_DIR"},
		{name: "fs needs root", env: map[string]string{"METADATA_BACKEND": "dynamodb", "OBJECT_BACKEND": "fs"}, wantErr: "STORAGE_ROOT"},
		{name: "unknown backend", env: map[string]string{"METADATA_BACKEND": "mysql"}, wantErr: "metadata_backend"},
		{name: "cert without key", env: map[string]string{"METADATA_BACKEND": "dynamodb", "TLS_CERT": "cert.pem"}, wantErr: "TLS_KEY"},
		{name: "bad level", env: map[string]string{"METADATA_BACKEND": "dynamodb", "LOG_LEVEL": "trace"}, wantErr: "LOG_LEVEL"},
		{name: "bad endpoint", env: map[string]string{"METADATA_BACKEND": "dynamodb", "AWS_ENDPOINT_URL": "not a url"}, wantErr: "AWS_ENDPOINT_URL"},
		{name: "dynamodb and s3", env: map[string]string{"METADATA_BACKEND": "DynamoDB", "AWS_ENDPOINT_URL": "http://localhost:4566"}},
		{name: "badger and fs", env: map[string]string{"METADATA_BACKEND": "badger", "BADGER_DIR": "/tmp/b", "OBJECT_BACKEND": "fs", "STORAGE_ROOT": "/tmp/o"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv("TABLE_NAME", "perms")
			t.Setenv("BUCKET_NAME", "files")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			cfg, err := Load("")
			if tt.wantErr != "" {
				require.Error(t, err)
				require.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, cfg)
		})
	}
}

func TestLoad_FileThenEnvOverride(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "filekeeper.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
addr: ":9000"
table_name: perms
bucket_name: files
metadata_backend: badger
badger_dir: /var/lib/filekeeper
object_backend: fs
storage_root: /srv/objects
tls_cert: cert.pem
tls_key: key.pem
log_level: debug
shutdown_timeout: 10s
`), 0o600))
	t.Setenv("BUCKET_NAME", "other")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, ":9000", cfg.Addr)
	require.Equal(t, "other", cfg.BucketName)
	require.Equal(t, BackendBadger, cfg.MetadataBackend)
	require.Equal(t, "/srv/objects", cfg.StorageRoot)
	require.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
	require.Equal(t, zapcore.DebugLevel, cfg.ZapLevel())
	require.True(t, cfg.TLSEnabled())
}

func TestLoad_MissingFile(t *testing.T) {
	clearEnv(t)
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}
