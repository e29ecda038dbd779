// Package s3 provides an S3-backed object store.
package s3

import (
	"bytes"
	"context"
	"errors"
	"net/http"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"go.uber.org/zap"

	"github.com/and161185/filekeeper/internal/awsconf"
	"github.com/and161185/filekeeper/internal/errs"
	"github.com/and161185/filekeeper/internal/fpath"
	"github.com/and161185/filekeeper/internal/repository"
)

// API is the subset of the S3 client used by Store.
type API interface {
	HeadObject(ctx context.Context, in *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Config holds configuration for the S3 object store.
type Config struct {
	// Bucket is the S3 bucket name.
	Bucket string

	// Endpoint is the S3 endpoint URL (optional, for S3-compatible services).
	Endpoint string

	// ForcePathStyle forces path-style addressing (required for LocalStack/MinIO).
	ForcePathStyle bool
}

// Store keeps one object per file, keyed by the normalized path.
type Store struct {
	client API
	bucket string
	log    *zap.Logger
}

// New creates a store with an existing client.
func New(client API, cfg Config, log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{client: client, bucket: cfg.Bucket, log: log}
}

// NewFromConfig builds the S3 client from AWS options.
func NewFromConfig(ctx context.Context, cfg Config, o awsconf.Options, log *zap.Logger) (*Store, error) {
	awsCfg, err := awsconf.Load(ctx, o)
	if err != nil {
		return nil, err
	}

	var s3Opts []func(*s3.Options)
	if cfg.Endpoint != "" {
		s3Opts = append(s3Opts, func(so *s3.Options) {
			so.BaseEndpoint = aws.String(cfg.Endpoint)
		})
	}
	if cfg.ForcePathStyle {
		s3Opts = append(s3Opts, func(so *s3.Options) {
			so.UsePathStyle = true
		})
	}
	return New(s3.NewFromConfig(awsCfg, s3Opts...), cfg, log), nil
}

// Exists reports whether the object is present. Only a genuine not-found
// answer yields false; every other failure is a ServerError.
func (s *Store) Exists(ctx context.Context, p fpath.FilePath) (bool, error) {
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(p.Normalized()),
	})
	if err == nil {
		return true, nil
	}
	if isNotFound(err) {
		return false, nil
	}
	s.log.Error("s3 head object", zap.String("key", p.Normalized()), zap.Error(err))
	return false, errs.Server("checking file existence failed")
}

// Create writes an empty object, overwriting any existing one.
func (s *Store) Create(ctx context.Context, p fpath.FilePath) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(p.Normalized()),
		Body:          bytes.NewReader(nil),
		ContentLength: aws.Int64(0),
	})
	if err != nil {
		s.log.Error("s3 put object", zap.String("key", p.Normalized()), zap.Error(err))
		return errs.Server("failed to create file object")
	}
	return nil
}

// isNotFound recognizes the not-found shapes S3 and compatible services return.
// HeadObject has no body, so a bare 404 response is common.
func isNotFound(err error) bool {
	var nf *types.NotFound
	if errors.As(err, &nf) {
		return true
	}
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var re *awshttp.ResponseError
	if errors.As(err, &re) {
		return re.HTTPStatusCode() == http.StatusNotFound
	}
	return false
}

var _ repository.ObjectStore = (*Store)(nil)
