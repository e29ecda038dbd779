// Package config loads server configuration from the environment and an
// optional config file.
//
// Precedence (highest to lowest): environment variables, config file, defaults.
package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
	"go.uber.org/zap/zapcore"
)

// Metadata backends.
const (
	BackendPostgres = "postgres"
	BackendDynamoDB = "dynamodb"
	BackendBadger   = "badger"
)

// Object backends.
const (
	BackendS3 = "s3"
	BackendFS = "fs"
)

// Config holds every setting of the server.
type Config struct {
	Addr string `mapstructure:"addr" validate:"required"`

	// TableName is the metadata table. The badger backend keeps one keyspace per directory and ignores it.
	TableName string `mapstructure:"table_name" validate:"required"`

	// BucketName is the object bucket (S3 bucket or subdirectory of StorageRoot).
	BucketName string `mapstructure:"bucket_name" validate:"required"`

	MetadataBackend string `mapstructure:"metadata_backend" validate:"required,oneof=postgres dynamodb badger"`
	ObjectBackend   string `mapstructure:"object_backend" validate:"required,oneof=s3 fs"`

	DSN         string `mapstructure:"dsn" validate:"required_if=MetadataBackend postgres"`
	BadgerDir   string `mapstructure:"badger_dir" validate:"required_if=MetadataBackend badger"`
	StorageRoot string `mapstructure:"storage_root" validate:"required_if=ObjectBackend fs"`

	AWSRegion        string `mapstructure:"aws_region"`
	AWSEndpoint      string `mapstructure:"aws_endpoint" validate:"omitempty,url"`
	S3ForcePathStyle bool   `mapstructure:"s3_force_path_style"`

	TLSCert string `mapstructure:"tls_cert" validate:"required_with=TLSKey"`
	TLSKey  string `mapstructure:"tls_key" validate:"required_with=TLSCert"`

	// JWTKey enables bearer token auth when set.
	JWTKey string `mapstructure:"jwt_key"`

	LogLevel        string        `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
	Dev             bool          `mapstructure:"dev"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"gt=0"`
}

// envBindings maps config keys to their environment variables.
var envBindings = map[string]string{
	"addr":                "ADDR",
	"table_name":          "TABLE_NAME",
	"bucket_name":         "BUCKET_NAME",
	"metadata_backend":    "METADATA_BACKEND",
	"object_backend":      "OBJECT_BACKEND",
	"dsn":                 "DATABASE_DSN",
	"badger_dir":          "BADGER_DIR",
	"storage_root":        "STORAGE_ROOT",
	"aws_region":          "AWS_REGION",
	"aws_endpoint":        "AWS_ENDPOINT_URL",
	"s3_force_path_style": "S3_FORCE_PATH_STYLE",
	"tls_cert":            "TLS_CERT",
	"tls_key":             "TLS_KEY",
	"jwt_key":             "JWT_KEY",
	"log_level":           "LOG_LEVEL",
	"dev":                 "DEV",
	"shutdown_timeout":    "SHUTDOWN_TIMEOUT",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("addr", ":8443")
	v.SetDefault("metadata_backend", BackendPostgres)
	v.SetDefault("object_backend", BackendS3)
	v.SetDefault("log_level", "info")
	v.SetDefault("shutdown_timeout", 5*time.Second)
}

// Load reads configuration. configPath may be empty; a set path must exist.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("bind %s: %w", env, err)
		}
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.MetadataBackend = strings.ToLower(cfg.MetadataBackend)
	cfg.ObjectBackend = strings.ToLower(cfg.ObjectBackend)
	cfg.LogLevel = strings.ToLower(cfg.LogLevel)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

var validate = newValidator()

func newValidator() *validator.Validate {
	val := validator.New(validator.WithRequiredStructEnabled())
	// report config keys instead of Go field names
	val.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("mapstructure"), ",")
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	return val
}

// Validate checks field rules and cross-field requirements.
func Validate(cfg *Config) error {
	err := validate.Struct(cfg)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, describe(fe))
	}
	return errors.New(strings.Join(msgs, "; "))
}

func describe(fe validator.FieldError) string {
	env := envBindings[fe.Field()]
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s (%s) is required", fe.Field(), env)
	case "required_if":
		return fmt.Sprintf("%s (%s) is required when %s", fe.Field(), env, fe.Param())
	case "required_with":
		return fmt.Sprintf("%s (%s) must be set together with %s", fe.Field(), env, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s (%s) must be one of [%s], got %q", fe.Field(), env, fe.Param(), fe.Value())
	default:
		return fmt.Sprintf("%s (%s) failed %q validation", fe.Field(), env, fe.Tag())
	}
}

// ZapLevel returns the configured log level.
func (c *Config) ZapLevel() zapcore.Level {
	lvl, err := zapcore.ParseLevel(c.LogLevel)
	if err != nil {
		return zapcore.InfoLevel
	}
	return lvl
}

// TLSEnabled reports whether the server should serve TLS.
func (c *Config) TLSEnabled() bool { return c.TLSCert != "" && c.TLSKey != "" }
